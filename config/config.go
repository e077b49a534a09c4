package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	Port            string
	Environment     string
	DBDriver        string
	DBDSN           string
	JWTSecret       string
	AlphaVantageKey string
	PollInterval    time.Duration
	ProviderTimeout time.Duration
	RedisAddr       string
	QuoteCacheTTL   time.Duration
	MongoURI        string
}

var AppConfig *Config
var DB *gorm.DB

// LoadConfig loads environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Port:            getEnv("PORT", "8080"),
		Environment:     getEnv("ENVIRONMENT", "development"),
		DBDriver:        getEnv("DB_DRIVER", "sqlite"),
		DBDSN:           getEnv("DB_DSN", "data.db"),
		JWTSecret:       getEnv("JWT_SECRET", "dev_secret_change_me"),
		AlphaVantageKey: getEnv("ALPHA_VANTAGE_API_KEY", ""),
		PollInterval:    getEnvSeconds("POLL_INTERVAL_SECONDS", 15),
		ProviderTimeout: getEnvSeconds("PROVIDER_TIMEOUT_SECONDS", 10),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		QuoteCacheTTL:   getEnvSeconds("QUOTE_CACHE_TTL_SECONDS", 10),
		MongoURI:        getEnv("MONGODB_URI", ""),
	}

	if config.AlphaVantageKey == "" {
		log.Println("WARNING: ALPHA_VANTAGE_API_KEY not configured, quote fetches will fail")
	}

	AppConfig = config
	return config, nil
}

// InitDB initializes the database connection for the configured driver
func InitDB() (*gorm.DB, error) {
	var logLevel logger.LogLevel
	if AppConfig.Environment == "production" {
		logLevel = logger.Error
	} else {
		logLevel = logger.Info
	}

	gormConfig := &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	}

	var db *gorm.DB
	var err error
	switch AppConfig.DBDriver {
	case "postgres":
		db, err = gorm.Open(postgres.Open(AppConfig.DBDSN), gormConfig)
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(AppConfig.DBDSN), gormConfig)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", AppConfig.DBDriver)
	}
	if err != nil {
		log.Printf("Database connection error: %v", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection with ping
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	log.Printf("Database connection verified (driver=%s)", AppConfig.DBDriver)
	DB = db
	return db, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvSeconds reads an integer number of seconds as a duration
func getEnvSeconds(key string, defaultSeconds int) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return time.Duration(defaultSeconds) * time.Second
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		log.Printf("Invalid %s=%q, using default %ds", key, value, defaultSeconds)
		return time.Duration(defaultSeconds) * time.Second
	}
	return time.Duration(n) * time.Second
}
