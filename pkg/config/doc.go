// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings.
//
// # Configuration Structure
//
// Server settings:
//
//	CHAPTERKIT_HOST="0.0.0.0"
//	CHAPTERKIT_PORT="8080"
//	CHAPTERKIT_HEALTH_PORT="8081"
//	CHAPTERKIT_READ_TIMEOUT="30s"
//	CHAPTERKIT_WRITE_TIMEOUT="30s"
//	CHAPTERKIT_IDLE_TIMEOUT="120s"
//	CHAPTERKIT_SHUTDOWN_TIMEOUT="30s"
//
// Database settings:
//
//	CHAPTERKIT_POSTGRES_URL="postgres://localhost/chapterkit"
//	CHAPTERKIT_POSTGRES_MAX_CONNS="20"
//	CHAPTERKIT_POSTGRES_IDLE_CONNS="5"
//	CHAPTERKIT_POSTGRES_CONN_LIFETIME="30m"
//
// Scope cache settings (empty redis URL selects the in-process LRU):
//
//	CHAPTERKIT_CACHE_ENABLED="true"
//	CHAPTERKIT_REDIS_URL="redis://localhost:6379"
//	CHAPTERKIT_REDIS_DB="0"
//	CHAPTERKIT_CACHE_LRU_SIZE="1024"
//	CHAPTERKIT_CACHE_TTL="5m"
//
// Scheduled job settings:
//
//	CHAPTERKIT_RECONCILE_SCHEDULE="30 2 * * *"
//	CHAPTERKIT_VALIDATION_SCHEDULE="0 3 * * 0"
//
// Observability and admin surface:
//
//	CHAPTERKIT_LOG_LEVEL="info"  # debug, info, warn, error
//	CHAPTERKIT_METRICS_ENABLED="true"
//	CHAPTERKIT_ADMIN_TOKEN=""    # empty keeps the admin API closed
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Server: %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//	fmt.Printf("Log level: %v\n", cfg.Observability.LogLevel)
//
// # Related Packages
//
//   - pkg/observability: Uses observability configuration
//   - cmd/chapterkit: Wires the loaded configuration at startup
package config
