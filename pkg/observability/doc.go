// Package observability provides structured logging, Prometheus metrics,
// health checks, and graceful shutdown for the permission engine.
//
// # Structured Logging
//
// Create a logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("user", user).Info("scopes resolved")
//
// Context-aware logging:
//
//	logger.WithError(err).Error("role sync failed")
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.FilterBuilt("Member", "scoped")
//	metrics.SyncRun("bulk", err, elapsed)
//
// Expose them:
//
//	mux.Handle("/metrics", observability.MetricsHandler(registry))
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient)
//	observability.RegisterHealthRoutes(mux, checker)
//
// # Graceful Shutdown
//
//	sm := observability.NewShutdownManager(logger, server, 30*time.Second)
//	sm.Register("database", func(ctx context.Context) error { return db.Close() })
//	err := sm.WaitForShutdown()
package observability
