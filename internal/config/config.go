package config

import (
	"os"
	"strconv"
	"time"

	"empiria/internal/cache"
	"empiria/internal/database"
	"empiria/internal/external"
	"empiria/internal/messaging"
)

// Config holds the application configuration
type Config struct {
	Port      string
	GinMode   string
	LogLevel  string
	LogFormat string

	// Storefront base URL for checkout success/cancel redirects
	AppBaseURL string

	// How long a processor-hosted checkout session stays payable
	CheckoutTTL time.Duration

	Database database.Config
	NATS     messaging.Config
	Redis    cache.Config
	Stripe   external.StripeConfig
	Email    external.EmailConfig
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:      getEnv("PORT", "8080"),
		GinMode:   getEnv("GIN_MODE", "debug"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		AppBaseURL:  getEnv("APP_BASE_URL", "https://shop.empiriaindia.com"),
		CheckoutTTL: time.Duration(getEnvInt("CHECKOUT_TTL_MIN", 30)) * time.Minute,

		Database: database.Config{
			Host:               getEnv("DB_HOST", "localhost"),
			Port:               getEnvInt("DB_PORT", 5432),
			User:               getEnv("DB_USER", "empiria"),
			Password:           getEnv("DB_PASSWORD", "empiria123"),
			DBName:             getEnv("DB_NAME", "empiria"),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetimeMin: getEnvInt("DB_CONN_MAX_LIFETIME_MIN", 5),
			ConnMaxIdleTimeMin: getEnvInt("DB_CONN_MAX_IDLE_TIME_MIN", 1),
		},

		NATS: messaging.Config{
			URL:       getEnv("NATS_URL", "nats://localhost:4222"),
			ClusterID: getEnv("NATS_CLUSTER_ID", "empiria"),
			ClientID:  getEnv("NATS_CLIENT_ID", "empiria-api"),
		},

		Redis: cache.Config{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			TTLMin:   getEnvInt("REDIS_STATUS_TTL_MIN", 30),
		},

		Stripe: external.StripeConfig{
			BaseURL:       getEnv("STRIPE_API_URL", "https://api.stripe.com"),
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
			Timeout:       time.Duration(getEnvInt("STRIPE_TIMEOUT_SEC", 30)) * time.Second,
		},

		Email: external.EmailConfig{
			BaseURL: getEnv("EMAIL_API_URL", "https://api.resend.com"),
			APIKey:  getEnv("EMAIL_API_KEY", ""),
			From:    getEnv("EMAIL_FROM", "Empiria <tickets@empiriaindia.com>"),
			Timeout: time.Duration(getEnvInt("EMAIL_TIMEOUT_SEC", 30)) * time.Second,
		},
	}
}

// getEnv returns the environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable value or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
