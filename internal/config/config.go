package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// JWT configuration
	JWT JWTConfig

	// Payment provider configuration
	Payment PaymentConfig

	// Redis configuration
	Redis RedisConfig

	// Event publishing configuration
	Events EventsConfig

	// Payment reconciliation job
	Reconciler ReconcilerConfig

	// CORS configuration
	CORS CORSConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
	AutoMigrate        bool
}

// JWTConfig holds identity token configuration
type JWTConfig struct {
	Secret            string
	Issuer            string
	AccessTokenExpiry time.Duration
}

// PaymentConfig holds Stripe configuration
type PaymentConfig struct {
	SecretKey     string // Stripe secret key (never expose to client)
	WebhookSecret string // Stripe endpoint signing secret
	Currency      string
	LockTTL       time.Duration // how long intent creation holds the per-booking lock
}

// RedisConfig holds Redis configuration. An empty URL selects the in-process lock.
type RedisConfig struct {
	URL string
}

// EventsConfig holds RabbitMQ configuration. An empty URL disables publishing.
type EventsConfig struct {
	AMQPURL  string
	Exchange string
}

// ReconcilerConfig holds the stale-payment reconciliation schedule
type ReconcilerConfig struct {
	Enabled    bool
	Schedule   string // cron spec
	StaleAfter time.Duration
	BatchSize  int
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
			AutoMigrate:        getEnvAsBool("DATABASE_AUTO_MIGRATE", true),
		},
		JWT: jwtFromEnv(),
		Payment: PaymentConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
			Currency:      strings.ToLower(getEnv("PAYMENT_CURRENCY", "usd")),
			LockTTL:       getEnvAsDuration("PAYMENT_LOCK_TTL", 15*time.Second),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		Events: EventsConfig{
			AMQPURL:  getEnv("AMQP_URL", ""),
			Exchange: getEnv("AMQP_EXCHANGE", "dogwalk.events"),
		},
		Reconciler: ReconcilerConfig{
			Enabled:    getEnvAsBool("RECONCILE_ENABLED", true),
			Schedule:   getEnv("RECONCILE_SCHEDULE", "*/10 * * * *"),
			StaleAfter: getEnvAsDuration("RECONCILE_STALE_AFTER", 30*time.Minute),
			BatchSize:  getEnvAsInt("RECONCILE_BATCH_SIZE", 50),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization", "Stripe-Signature"}),
		},
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadJWT loads only the token settings, for tools that sign tokens offline
func LoadJWT() (JWTConfig, error) {
	_ = godotenv.Load()

	cfg := jwtFromEnv()
	if cfg.Secret == "" {
		return cfg, fmt.Errorf("JWT_SECRET is required")
	}
	return cfg, nil
}

func jwtFromEnv() JWTConfig {
	return JWTConfig{
		Secret:            getEnv("JWT_SECRET", ""),
		Issuer:            getEnv("JWT_ISSUER", ""),
		AccessTokenExpiry: time.Duration(getEnvAsInt("JWT_ACCESS_TOKEN_EXPIRY", 3600)) * time.Second,
	}
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.IsProduction() {
		if c.Payment.SecretKey == "" {
			return fmt.Errorf("STRIPE_SECRET_KEY is required in production")
		}
		if c.Payment.WebhookSecret == "" {
			return fmt.Errorf("STRIPE_WEBHOOK_SECRET is required in production")
		}
	}

	if c.Payment.LockTTL <= 0 {
		return fmt.Errorf("PAYMENT_LOCK_TTL must be positive")
	}

	if c.Reconciler.Enabled && c.Reconciler.BatchSize <= 0 {
		return fmt.Errorf("RECONCILE_BATCH_SIZE must be positive")
	}

	return nil
}

// Warnings lists non-fatal configuration gaps worth logging at startup
func (c *Config) Warnings() []string {
	var warnings []string
	if c.Payment.SecretKey == "" {
		warnings = append(warnings, "STRIPE_SECRET_KEY is not set; payment intent creation and refunds will fail")
	}
	if c.Payment.WebhookSecret == "" {
		warnings = append(warnings, "STRIPE_WEBHOOK_SECRET is not set; all webhooks will be rejected")
	}
	if c.Redis.URL == "" {
		warnings = append(warnings, "REDIS_URL is not set; using in-process payment locks")
	}
	if c.Events.AMQPURL == "" {
		warnings = append(warnings, "AMQP_URL is not set; lifecycle events are not published")
	}
	return warnings
}

// Helper functions to get environment variables

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid boolean value for %s, using default: %t", key, defaultValue)
		return defaultValue
	}
	return value
}

// getEnvAsDuration accepts Go duration strings ("15s", "30m")
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Invalid duration value for %s, using default: %s", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
