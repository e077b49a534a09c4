package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/shantanubawankar/Stockpricetracker/config"
	"github.com/shantanubawankar/Stockpricetracker/models"
	"github.com/shantanubawankar/Stockpricetracker/routes"
	"github.com/shantanubawankar/Stockpricetracker/scheduler"
	"github.com/shantanubawankar/Stockpricetracker/services"
)

func main() {
	log.Println("==============================================")
	log.Println("  Stock Price Tracker API - Starting...")
	log.Println("==============================================")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Printf("Warning: Config load issue: %v", err)
	}

	// Set Gin mode based on environment
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database connection and run migrations
	db, err := config.InitDB()
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	if err := models.MigrateUserModels(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	// Quote adapter, optionally wrapped in the Redis cache
	quoteService := services.NewQuoteService(cfg.AlphaVantageKey, cfg.ProviderTimeout)
	var fetcher services.QuoteFetcher = quoteService
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		fetcher = services.NewCachedQuoteFetcher(quoteService, rdb, cfg.QuoteCacheTTL)
		log.Printf("Quote cache enabled (redis=%s, ttl=%v)", cfg.RedisAddr, cfg.QuoteCacheTTL)
	}

	// Optional MongoDB quote snapshot archive
	var archive *services.QuoteArchive
	if cfg.MongoURI != "" {
		archive, err = services.NewQuoteArchive(cfg.MongoURI)
		if err != nil {
			log.Printf("Quote archive not available: %v", err)
			archive = nil
		}
	}

	// Streaming core
	feed := services.NewFeedHub()
	registry := services.NewStreamRegistry(services.NewGormStore(db), fetcher, cfg.PollInterval)
	if archive != nil {
		registry.Archive = archive
	}
	registry.Feed = feed

	// Create Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestLogger())

	setupHealthEndpoints(router)
	routes.SetupRoutes(router, db, cfg, quoteService, registry, feed)

	// Start background scheduler
	jobScheduler := scheduler.NewScheduler(db, archive)
	jobScheduler.Start()

	// No WriteTimeout: the event stream endpoint holds its response open
	// for the life of the connection
	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}

	go func() {
		log.Printf("Server listening on 0.0.0.0:%s", cfg.Port)
		log.Println("==============================================")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	gracefulShutdown(server, jobScheduler, registry, feed, archive)
}

// gracefulShutdown handles graceful shutdown of the server
func gracefulShutdown(server *http.Server, jobScheduler *scheduler.Scheduler,
	registry *services.StreamRegistry, feed *services.FeedHub, archive *services.QuoteArchive) {

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Printf("Received signal %v, shutting down gracefully...", sig)

	// Stop background work before the listener so no session keeps the
	// server from draining
	jobScheduler.Stop()
	registry.CloseAll()
	feed.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	if archive != nil {
		if err := archive.Close(ctx); err != nil {
			log.Printf("Quote archive close error: %v", err)
		}
	}

	if config.DB != nil {
		sqlDB, err := config.DB.DB()
		if err == nil {
			sqlDB.Close()
			log.Println("Database connection closed")
		}
	}

	log.Println("Server shutdown completed")
}

// setupHealthEndpoints sets up liveness and readiness probes
func setupHealthEndpoints(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	router.GET("/ready", func(c *gin.Context) {
		sqlDB, err := config.DB.DB()
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "Database connection error",
			})
			return
		}
		if err := sqlDB.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "Database ping failed",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status": "ready",
		})
	})
}

// corsMiddleware returns a CORS middleware handler
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestLogger returns a request logging middleware
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Skip logging for health checks to reduce noise
		path := c.Request.URL.Path
		if path == "/health" || path == "/ready" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		if c.Writer.Status() >= 400 || duration > 1*time.Second {
			log.Printf("%s %s %d %v", c.Request.Method, path, c.Writer.Status(), duration)
		}
	}
}
