package routes

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/shantanubawankar/Stockpricetracker/config"
	"github.com/shantanubawankar/Stockpricetracker/controllers"
	"github.com/shantanubawankar/Stockpricetracker/middleware"
	"github.com/shantanubawankar/Stockpricetracker/services"
)

// SetupRoutes sets up all API routes
func SetupRoutes(router *gin.Engine, db *gorm.DB, cfg *config.Config,
	quotes *services.QuoteService, registry *services.StreamRegistry, feed *services.FeedHub) {

	authController := controllers.NewAuthController(db, cfg.JWTSecret)
	watchlistController := controllers.NewWatchlistController(db)
	alertController := controllers.NewAlertController(db)
	marketController := controllers.NewMarketController(quotes)
	streamController := controllers.NewStreamController(registry)

	api := router.Group("/api")
	{
		api.POST("/register", authController.Register)
		api.POST("/login", authController.Login)
		api.POST("/logout", authController.Logout)

		authed := api.Group("")
		authed.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret))
		{
			authed.GET("/me", authController.Me)

			authed.GET("/watchlist", watchlistController.List)
			authed.POST("/watchlist", watchlistController.Add)
			authed.DELETE("/watchlist/:symbol", watchlistController.Remove)

			authed.GET("/alerts", alertController.List)
			authed.POST("/alerts", alertController.Create)
			authed.DELETE("/alerts/:id", alertController.Delete)

			authed.GET("/search", marketController.Search)
			authed.GET("/quote", marketController.Quote)
			authed.GET("/historic", marketController.Historic)

			authed.GET("/stream", streamController.Stream)

			authed.GET("/feed", func(c *gin.Context) {
				feed.HandleWebSocket(c.Writer, c.Request)
			})
		}
	}
}
