package observability

import (
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	if metrics == nil {
		t.Fatal("NewMetrics returned nil")
	}

	// Registering on a fresh registry must not panic twice for the same
	// metric names.
	other := prometheus.NewRegistry()
	_ = NewMetrics(other)
}

func TestMetricsFilterBuilt(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.FilterBuilt("Member", "scoped")
	metrics.FilterBuilt("Member", "scoped")
	metrics.FilterBuilt("Member", "denied")

	got := testutil.ToFloat64(metrics.FiltersBuiltTotal.WithLabelValues("Member", "scoped"))
	if got != 2 {
		t.Errorf("scoped count = %v, want 2", got)
	}
	got = testutil.ToFloat64(metrics.FiltersBuiltTotal.WithLabelValues("Member", "denied"))
	if got != 1 {
		t.Errorf("denied count = %v, want 1", got)
	}
}

func TestMetricsAccessCheck(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.AccessCheck("member_read", true, 2*time.Millisecond)
	metrics.AccessCheck("member_read", false, time.Millisecond)

	allowed := testutil.ToFloat64(metrics.AccessChecksTotal.WithLabelValues("member_read", "allowed"))
	denied := testutil.ToFloat64(metrics.AccessChecksTotal.WithLabelValues("member_read", "denied"))
	if allowed != 1 || denied != 1 {
		t.Errorf("access checks allowed=%v denied=%v, want 1 and 1", allowed, denied)
	}
}

func TestMetricsSyncRun(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.SyncRun("bulk", nil, time.Second)
	metrics.SyncRun("bulk", errors.New("db down"), time.Second)

	ok := testutil.ToFloat64(metrics.SyncRunsTotal.WithLabelValues("bulk", "ok"))
	failed := testutil.ToFloat64(metrics.SyncRunsTotal.WithLabelValues("bulk", "error"))
	if ok != 1 || failed != 1 {
		t.Errorf("sync runs ok=%v error=%v, want 1 and 1", ok, failed)
	}
}

func TestMetricsObserveDBStats(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.ObserveDBStats(sql.DBStats{InUse: 3, Idle: 7})

	if got := testutil.ToFloat64(metrics.DBConnectionsActive); got != 3 {
		t.Errorf("active connections = %v, want 3", got)
	}
	if got := testutil.ToFloat64(metrics.DBConnectionsIdle); got != 7 {
		t.Errorf("idle connections = %v, want 7", got)
	}
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	handler := HTTPMetricsMiddleware(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/admin/resync", nil))

	got := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/admin/resync", "418"))
	if got != 1 {
		t.Errorf("http requests = %v, want 1", got)
	}
}

func TestMetricsHandler(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	metrics.FilterBuilt("Member", "scoped")

	rr := httptest.NewRecorder()
	MetricsHandler(registry).ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics returned status %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "chapterkit_filters_built_total") {
		t.Error("expected chapterkit_filters_built_total in metrics output")
	}
}
