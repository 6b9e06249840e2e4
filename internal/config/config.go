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

// RequestTimeout bounds how long the HTTP server lets one request run
const RequestTimeout = 15 * time.Second

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Redis configuration (idempotency keys)
	Redis RedisConfig

	// Order event publishing configuration
	Events EventsConfig

	// Integrity audit configuration
	Audit AuditConfig

	// CORS configuration
	CORS CORSConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
	Timezone    string // used to resolve "today" when a booking omits the date
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	Driver             string // "postgres" (lib/pq) or "pgx" (pgx stdlib)
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
	IsolationLevel     string // read_committed or serializable
	TxMaxAttempts      int    // attempts for serialization/deadlock aborts
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr               string
	Password           string
	DB                 int
	IdempotencyTTL     time.Duration
	IdempotencyLockTTL time.Duration // must outlive the slowest request
}

// EventsConfig holds outbox publishing configuration
type EventsConfig struct {
	Broker       string // none, rabbitmq, kafka
	AMQPURL      string
	AMQPExchange string
	KafkaBrokers []string
	KafkaTopic   string
	PollInterval time.Duration
	BatchSize    int
	ClaimLease   time.Duration
}

// AuditConfig holds the integrity audit schedule
type AuditConfig struct {
	Enabled bool
	Cron    string // cron spec with seconds field
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
			Timezone:    getEnv("SERVICE_TIMEZONE", "Asia/Shanghai"),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			Driver:             getEnv("DATABASE_DRIVER", "postgres"),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
			IsolationLevel:     getEnv("DATABASE_ISOLATION_LEVEL", "read_committed"),
			TxMaxAttempts:      getEnvAsInt("DATABASE_TX_MAX_ATTEMPTS", 3),
		},
		Redis: RedisConfig{
			Addr:               getEnv("REDIS_ADDR", ""),
			Password:           getEnv("REDIS_PASSWORD", ""),
			DB:                 getEnvAsInt("REDIS_DB", 0),
			IdempotencyTTL:     getEnvAsDuration("IDEMPOTENCY_TTL", 24*time.Hour),
			IdempotencyLockTTL: getEnvAsDuration("IDEMPOTENCY_LOCK_TTL", time.Minute),
		},
		Events: EventsConfig{
			Broker:       getEnv("EVENTS_BROKER", "none"),
			AMQPURL:      getEnv("AMQP_URL", ""),
			AMQPExchange: getEnv("AMQP_EXCHANGE", "orders"),
			KafkaBrokers: getEnvAsSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			KafkaTopic:   getEnv("KAFKA_TOPIC", "order-events"),
			PollInterval: getEnvAsDuration("OUTBOX_POLL_INTERVAL", 2*time.Second),
			BatchSize:    getEnvAsInt("OUTBOX_BATCH_SIZE", 50),
			ClaimLease:   getEnvAsDuration("OUTBOX_CLAIM_LEASE", time.Minute),
		},
		Audit: AuditConfig{
			Enabled: getEnvAsBool("INTEGRITY_AUDIT_ENABLED", true),
			Cron:    getEnv("INTEGRITY_AUDIT_CRON", "0 */15 * * * *"),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization", "Idempotency-Key", "X-Request-ID"}),
		},
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	switch c.Database.Driver {
	case "postgres", "pgx":
	default:
		return fmt.Errorf("invalid DATABASE_DRIVER: %s (must be 'postgres' or 'pgx')", c.Database.Driver)
	}

	switch c.Database.IsolationLevel {
	case "read_committed", "serializable":
	default:
		return fmt.Errorf("invalid DATABASE_ISOLATION_LEVEL: %s (must be 'read_committed' or 'serializable')", c.Database.IsolationLevel)
	}

	if c.Redis.IdempotencyLockTTL < RequestTimeout {
		return fmt.Errorf("IDEMPOTENCY_LOCK_TTL must be at least %s", RequestTimeout)
	}

	if c.Database.TxMaxAttempts < 1 {
		return fmt.Errorf("DATABASE_TX_MAX_ATTEMPTS must be at least 1")
	}

	if _, err := time.LoadLocation(c.Server.Timezone); err != nil {
		return fmt.Errorf("invalid SERVICE_TIMEZONE %q: %w", c.Server.Timezone, err)
	}

	switch c.Events.Broker {
	case "none":
	case "rabbitmq":
		if c.Events.AMQPURL == "" {
			return fmt.Errorf("AMQP_URL is required when EVENTS_BROKER=rabbitmq")
		}
	case "kafka":
		if len(c.Events.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required when EVENTS_BROKER=kafka")
		}
	default:
		return fmt.Errorf("invalid EVENTS_BROKER: %s (must be 'none', 'rabbitmq' or 'kafka')", c.Events.Broker)
	}

	if c.Events.BatchSize < 1 {
		return fmt.Errorf("OUTBOX_BATCH_SIZE must be at least 1")
	}

	return nil
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
