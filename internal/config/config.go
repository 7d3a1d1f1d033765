package config

import (
	"os"
	"strconv"
)

// Config holds all configuration for the service
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NATS     NATSConfig
	App      AppConfig
	Payment  PaymentConfig
	Checkout CheckoutConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string
	Port string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// NATSConfig holds NATS configuration
type NATSConfig struct {
	URL string
}

// AppConfig holds application configuration
type AppConfig struct {
	Environment string
	LogLevel    string
}

// PaymentConfig holds payment provider configuration
type PaymentConfig struct {
	PesapalBaseURL        string
	PesapalConsumerKey    string
	PesapalConsumerSecret string
	PesapalCallbackURL    string
	PayPalBaseURL         string
	PayPalClientID        string
	PayPalClientSecret    string
	PayPalCurrency        string
}

// CheckoutConfig holds checkout and reservation behavior configuration
type CheckoutConfig struct {
	ReservationExpiryMinutes int // Stale pending orders are cancelled after this window (default: 30)
	MaxConflictRetries       int // Checkout retries on concurrent-write conflicts (default: 3)
	ExpirySweepBatchSize     int // Max stale orders reclaimed per sweep (default: 100)
}

// New creates a new configuration instance
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Host: getEnvWithDefault("SERVER_HOST", "0.0.0.0"),
			Port: getEnvWithDefault("SERVER_PORT", "8094"),
		},
		Database: DatabaseConfig{
			Host:     getEnvWithDefault("DB_HOST", "localhost"),
			Port:     getEnvWithDefault("DB_PORT", "5432"),
			User:     getEnvWithDefault("DB_USER", "postgres"),
			Password: getEnvWithDefault("DB_PASSWORD", "postgres"),
			Name:     getEnvWithDefault("DB_NAME", "commerce_db"),
			SSLMode:  getEnvWithDefault("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnvWithDefault("REDIS_HOST", "localhost"),
			Port:     getEnvWithDefault("REDIS_PORT", "6379"),
			Password: getEnvWithDefault("REDIS_PASSWORD", ""),
			DB:       getEnvAsIntWithDefault("REDIS_DB", 0),
		},
		NATS: NATSConfig{
			URL: getEnvWithDefault("NATS_URL", "nats://localhost:4222"),
		},
		App: AppConfig{
			Environment: getEnvWithDefault("APP_ENV", "development"),
			LogLevel:    getEnvWithDefault("LOG_LEVEL", "info"),
		},
		Payment: PaymentConfig{
			PesapalBaseURL:        getEnvWithDefault("PESAPAL_BASE_URL", "https://pay.pesapal.com/v3"),
			PesapalConsumerKey:    getEnvWithDefault("PESAPAL_CONSUMER_KEY", ""),
			PesapalConsumerSecret: getEnvWithDefault("PESAPAL_CONSUMER_SECRET", ""),
			PesapalCallbackURL:    getEnvWithDefault("PESAPAL_CALLBACK_URL", ""),
			PayPalBaseURL:         getEnvWithDefault("PAYPAL_BASE_URL", "https://api-m.paypal.com"),
			PayPalClientID:        getEnvWithDefault("PAYPAL_CLIENT_ID", ""),
			PayPalClientSecret:    getEnvWithDefault("PAYPAL_CLIENT_SECRET", ""),
			PayPalCurrency:        getEnvWithDefault("PAYPAL_CURRENCY", "USD"),
		},
		Checkout: CheckoutConfig{
			ReservationExpiryMinutes: getEnvAsIntWithDefault("RESERVATION_EXPIRY_MINUTES", 30),
			MaxConflictRetries:       getEnvAsIntWithDefault("CHECKOUT_MAX_CONFLICT_RETRIES", 3),
			ExpirySweepBatchSize:     getEnvAsIntWithDefault("EXPIRY_SWEEP_BATCH_SIZE", 100),
		},
	}
}

// getEnvWithDefault gets environment variable with a default fallback
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntWithDefault gets environment variable as integer with default fallback
func getEnvAsIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
