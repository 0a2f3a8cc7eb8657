package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/verenigingen/chapterkit/pkg/observability"
	"github.com/verenigingen/chapterkit/pkg/permissions"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Cache configuration
	Cache CacheConfig

	// Sync configuration
	Sync SyncConfig

	// Observability configuration
	Observability ObservabilityConfig

	// AdminToken gates the admin HTTP surface. Empty disables it.
	AdminToken string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds PostgreSQL settings
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	ConnLifetime time.Duration
}

// CacheConfig holds scope cache settings. RedisURL empty selects the
// in-process LRU.
type CacheConfig struct {
	Enabled  bool
	RedisURL string
	RedisDB  int
	LRUSize  int
	TTL      time.Duration
}

// SyncConfig holds the scheduled job settings
type SyncConfig struct {
	// ReconcileSchedule is the cron spec for the nightly bulk role
	// sync.
	ReconcileSchedule string

	// ValidationSchedule is the cron spec for periodic security
	// validation. Empty disables it.
	ValidationSchedule string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("CHAPTERKIT_HOST", "0.0.0.0"),
			Port:            getEnv("CHAPTERKIT_PORT", "8080"),
			ReadTimeout:     getEnvDuration("CHAPTERKIT_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("CHAPTERKIT_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("CHAPTERKIT_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("CHAPTERKIT_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthPort:      getEnv("CHAPTERKIT_HEALTH_PORT", "9090"),
		},
		Database: DatabaseConfig{
			URL:          getEnv("CHAPTERKIT_POSTGRES_URL", ""),
			MaxOpenConns: getEnvInt("CHAPTERKIT_POSTGRES_MAX_CONNS", 25),
			MaxIdleConns: getEnvInt("CHAPTERKIT_POSTGRES_IDLE_CONNS", 5),
			ConnLifetime: getEnvDuration("CHAPTERKIT_POSTGRES_CONN_LIFETIME", 30*time.Minute),
		},
		Cache: CacheConfig{
			Enabled:  getEnvBool("CHAPTERKIT_CACHE_ENABLED", true),
			RedisURL: getEnv("CHAPTERKIT_REDIS_URL", ""),
			RedisDB:  getEnvInt("CHAPTERKIT_REDIS_DB", 0),
			LRUSize:  getEnvInt("CHAPTERKIT_CACHE_LRU_SIZE", 1024),
			TTL:      getEnvDuration("CHAPTERKIT_CACHE_TTL", permissions.DefaultScopeTTL),
		},
		Sync: SyncConfig{
			ReconcileSchedule:  getEnv("CHAPTERKIT_RECONCILE_SCHEDULE", "0 3 * * *"),
			ValidationSchedule: getEnv("CHAPTERKIT_VALIDATION_SCHEDULE", "0 */6 * * *"),
		},
		Observability: ObservabilityConfig{
			LogLevel:       parseLogLevel(getEnv("CHAPTERKIT_LOG_LEVEL", "info")),
			MetricsEnabled: getEnvBool("CHAPTERKIT_METRICS_ENABLED", true),
		},
		AdminToken: getEnv("CHAPTERKIT_ADMIN_TOKEN", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}
	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Sync.ReconcileSchedule == "" {
		return fmt.Errorf("reconcile schedule is required")
	}
	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
