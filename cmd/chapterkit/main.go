package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"github.com/verenigingen/chapterkit/pkg/api"
	"github.com/verenigingen/chapterkit/pkg/audit"
	"github.com/verenigingen/chapterkit/pkg/config"
	"github.com/verenigingen/chapterkit/pkg/directory"
	"github.com/verenigingen/chapterkit/pkg/middleware"
	"github.com/verenigingen/chapterkit/pkg/observability"
	"github.com/verenigingen/chapterkit/pkg/permissions"
	"github.com/verenigingen/chapterkit/pkg/rolesync"
	"github.com/verenigingen/chapterkit/pkg/secaudit"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).
			WithError(err).Error("invalid configuration")
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("chapterkit exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx := context.Background()

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return err
	}
	if err := directory.RunMigrations(db); err != nil {
		return err
	}
	logger.Info("database ready")

	var redisClient *redis.Client
	if cfg.Cache.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.Cache.RedisURL)
		if err != nil {
			return err
		}
		opts.DB = cfg.Cache.RedisDB
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			// The scope cache fails open, so a dead redis at boot is
			// degraded service, not a fatal error.
			logger.WithError(err).Warn("redis unreachable at startup")
		}
	}

	var registry *prometheus.Registry
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		registry = prometheus.NewRegistry()
		metrics = observability.NewMetrics(registry)
	}

	store := directory.NewStore(db)
	cache := buildScopeCache(cfg, redisClient)
	resolver := permissions.NewResolver(store, cache)
	builder := permissions.NewQueryBuilder(resolver, logger, metrics)
	evaluator := permissions.NewEvaluator(store, resolver, logger, metrics)
	auditLog := audit.NewDBLogger(db)
	syncer := rolesync.NewSyncer(store, resolver, auditLog, logger, metrics)
	validator := secaudit.NewValidator(store, resolver, builder, evaluator, syncer, auditLog, logger, metrics)

	server := api.NewServer(api.Deps{
		Store:      store,
		Resolver:   resolver,
		Builder:    builder,
		Evaluator:  evaluator,
		Syncer:     syncer,
		Validator:  validator,
		AuditLog:   auditLog,
		Logger:     logger,
		Metrics:    metrics,
		AdminToken: cfg.AdminToken,
		RateLimit:  buildRateLimit(ctx, redisClient),
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	healthServer := buildHealthServer(cfg, db, redisClient, registry)

	scheduler, err := buildScheduler(ctx, cfg, syncer, validator, logger)
	if err != nil {
		return err
	}
	scheduler.Start()

	if metrics != nil {
		go pollDBStats(ctx, db, metrics)
	}

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.Register("health server", healthServer.Shutdown)
	shutdown.Register("scheduler", func(ctx context.Context) error {
		select {
		case <-scheduler.Stop().Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	shutdown.Register("audit log", func(context.Context) error {
		return auditLog.Close()
	})
	if redisClient != nil {
		shutdown.Register("redis", func(context.Context) error {
			return redisClient.Close()
		})
	}

	go func() {
		logger.WithField("addr", healthServer.Addr).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("health server failed")
		}
	}()
	go func() {
		logger.WithField("addr", httpServer.Addr).Info("admin API listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("admin API failed")
		}
	}()

	return shutdown.WaitForShutdown()
}

func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnLifetime)
	return db, nil
}

// buildScopeCache selects the shared redis cache when configured,
// falling back to the in-process LRU. Disabled caching still returns
// an LRU with a minimal TTL so the resolver has somewhere to write.
func buildScopeCache(cfg *config.Config, redisClient *redis.Client) permissions.ScopeCache {
	if !cfg.Cache.Enabled {
		return permissions.NewLRUScopeCache(1, time.Nanosecond)
	}
	if redisClient != nil {
		return permissions.NewRedisScopeCache(redisClient, cfg.Cache.TTL)
	}
	return permissions.NewLRUScopeCache(cfg.Cache.LRUSize, cfg.Cache.TTL)
}

func buildRateLimit(ctx context.Context, redisClient *redis.Client) func(http.Handler) http.Handler {
	if redisClient != nil {
		limiter := middleware.NewDistributedRateLimiter(redisClient, middleware.DefaultRateLimitConfig(), "chapterkit:ratelimit")
		return limiter.Handler
	}
	m := middleware.NewRateLimitMiddleware(middleware.DefaultRateLimitConfig())
	m.StartCleanup(ctx)
	return m.Handler
}

func buildHealthServer(cfg *config.Config, db *sql.DB, redisClient *redis.Client, registry *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	observability.RegisterHealthRoutes(mux, observability.NewHealthChecker(db, redisClient))
	if registry != nil {
		mux.Handle("/metrics", observability.MetricsHandler(registry))
	}
	return &http.Server{
		Addr:        cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler:     mux,
		ReadTimeout: cfg.Server.ReadTimeout,
	}
}

// buildScheduler wires the nightly reconciliation and the periodic
// security validation.
func buildScheduler(ctx context.Context, cfg *config.Config, syncer *rolesync.Syncer, validator *secaudit.Validator, logger *observability.Logger) (*cron.Cron, error) {
	c := cron.New()

	_, err := c.AddFunc(cfg.Sync.ReconcileSchedule, func() {
		defer observability.RecoverPanic(logger, "scheduled role sync")
		summary, err := syncer.SyncAll(ctx)
		if err != nil {
			logger.WithError(err).Error("scheduled role sync failed")
			return
		}
		logger.WithFields(map[string]interface{}{
			"total":    summary.Total,
			"assigned": summary.Assigned,
			"removed":  summary.Removed,
			"failed":   len(summary.Failed),
		}).Info("scheduled role sync finished")
	})
	if err != nil {
		return nil, err
	}

	if cfg.Sync.ValidationSchedule != "" {
		_, err = c.AddFunc(cfg.Sync.ValidationSchedule, func() {
			defer observability.RecoverPanic(logger, "scheduled security validation")
			report := validator.Run(ctx)
			logger.WithField("run_id", report.ID).
				WithField("overall", string(report.Overall())).
				Info("scheduled security validation finished")
		})
		if err != nil {
			return nil, err
		}
	}
	return c, nil
}

func pollDBStats(ctx context.Context, db *sql.DB, metrics *observability.Metrics) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.ObserveDBStats(db.Stats())
		}
	}
}
