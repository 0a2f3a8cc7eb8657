package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Permission metrics
	FiltersBuiltTotal   *prometheus.CounterVec
	AccessChecksTotal   *prometheus.CounterVec
	AccessCheckDuration *prometheus.HistogramVec

	// Scope cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec
	CacheInvalidationsTotal prometheus.Counter

	// Role synchronization metrics
	SyncRunsTotal     *prometheus.CounterVec
	SyncDuration      *prometheus.HistogramVec
	RolesAssignedTotal prometheus.Counter
	RolesRemovedTotal  prometheus.Counter

	// Security validation metrics
	ValidationRunsTotal *prometheus.CounterVec
	ValidationFindings  *prometheus.GaugeVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chapterkit_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chapterkit_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		FiltersBuiltTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chapterkit_filters_built_total",
				Help: "List filters built, by record type and outcome",
			},
			[]string{"record_type", "outcome"},
		),
		AccessChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chapterkit_access_checks_total",
				Help: "Record-level access checks, by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		AccessCheckDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chapterkit_access_check_duration_seconds",
				Help:    "Access check duration in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25},
			},
			[]string{"operation"},
		),

		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chapterkit_cache_hits_total",
				Help: "Scope cache hits",
			},
			[]string{"cache_type"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chapterkit_cache_misses_total",
				Help: "Scope cache misses",
			},
			[]string{"cache_type"},
		),
		CacheInvalidationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "chapterkit_cache_invalidations_total",
				Help: "Scope cache generation bumps",
			},
		),

		SyncRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chapterkit_role_sync_runs_total",
				Help: "Role synchronization runs, by trigger and outcome",
			},
			[]string{"trigger", "outcome"},
		),
		SyncDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chapterkit_role_sync_duration_seconds",
				Help:    "Role synchronization duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"trigger"},
		),
		RolesAssignedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "chapterkit_roles_assigned_total",
				Help: "Derived roles assigned",
			},
		),
		RolesRemovedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "chapterkit_roles_removed_total",
				Help: "Derived roles removed",
			},
		),

		ValidationRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chapterkit_validation_runs_total",
				Help: "Security validation runs, by overall status",
			},
			[]string{"status"},
		),
		ValidationFindings: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "chapterkit_validation_findings",
				Help: "Findings from the latest security validation run, by severity",
			},
			[]string{"severity"},
		),

		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "chapterkit_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "chapterkit_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.FiltersBuiltTotal,
		m.AccessChecksTotal,
		m.AccessCheckDuration,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheInvalidationsTotal,
		m.SyncRunsTotal,
		m.SyncDuration,
		m.RolesAssignedTotal,
		m.RolesRemovedTotal,
		m.ValidationRunsTotal,
		m.ValidationFindings,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// FilterBuilt records one built list filter.
func (m *Metrics) FilterBuilt(recordType, outcome string) {
	m.FiltersBuiltTotal.WithLabelValues(recordType, outcome).Inc()
}

// AccessCheck records one record-level check with its duration.
func (m *Metrics) AccessCheck(operation string, allowed bool, d time.Duration) {
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	m.AccessChecksTotal.WithLabelValues(operation, outcome).Inc()
	m.AccessCheckDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// SyncRun records one synchronization run with its duration.
func (m *Metrics) SyncRun(trigger string, err error, d time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.SyncRunsTotal.WithLabelValues(trigger, outcome).Inc()
	m.SyncDuration.WithLabelValues(trigger).Observe(d.Seconds())
}

// ObserveDBStats copies connection pool stats into the gauges.
func (m *Metrics) ObserveDBStats(stats sql.DBStats) {
	m.DBConnectionsActive.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
		})
	}
}

// MetricsHandler returns the /metrics endpoint handler.
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
