package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
// The values are loaded from environment variables.
type Config struct {
	Port     string
	LogLevel string
	APIToken string

	DatabaseURL string

	PriceAPIBaseURL        string
	PriceCacheTTL          time.Duration
	PriceRequestsPerSecond float64
}

// Load reads configuration from environment variables, falling back to a
// .env file when one is present.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: error loading .env file: %v. Relying on OS environment variables.", err)
	}

	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		APIToken: getEnv("API_TOKEN", "dev-token"),

		DatabaseURL: databaseURL(),

		PriceAPIBaseURL:        getEnv("PRICE_API_BASE_URL", "http://localhost:9090"),
		PriceCacheTTL:          getEnvAsDuration("PRICE_CACHE_TTL", 5*time.Minute),
		PriceRequestsPerSecond: getEnvAsFloat("PRICE_REQUESTS_PER_SECOND", 5),
	}
}

// databaseURL honours an explicit DB_CONN_STR, otherwise builds the connection
// string from individual vars (Docker friendly).
func databaseURL() string {
	if connStr := os.Getenv("DB_CONN_STR"); connStr != "" {
		return connStr
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		getEnv("DB_HOST", "localhost"),
		getEnv("DB_PORT", "5432"),
		getEnv("DB_USER", "postgres"),
		getEnv("DB_PASSWORD", "postgres"),
		getEnv("DB_NAME", "investrack"),
	)
}

// getEnv retrieves an environment variable or returns a fallback value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvAsDuration retrieves an environment variable as a time.Duration or
// returns a fallback.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback)
		return fallback
	}
	return value
}

// getEnvAsFloat retrieves an environment variable as a float64 or returns a
// fallback.
func getEnvAsFloat(key string, fallback float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Invalid numeric value for %s ('%s'), using default: %g", key, valueStr, fallback)
		return fallback
	}
	return value
}
