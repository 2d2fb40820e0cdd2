package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := InitMetrics(reg)
	return m, reg
}

func TestInitMetrics_registersAllMetrics(t *testing.T) {
	m, reg := newTestMetrics(t)
	if m == nil {
		t.Fatal("InitMetrics returned nil")
	}

	expected := []string{
		"docquery_operations_total",
		"docquery_operation_duration_seconds",
		"docquery_backend_requests_total",
		"docquery_backend_request_duration_seconds",
		"docquery_backend_response_size_bytes",
		"docquery_backend_circuit_breaker_state",
		"docquery_backend_error_rate",
		"docquery_backend_transport_errors_total",
		"docquery_http_requests_total",
		"docquery_http_request_duration_seconds",
	}

	// Record a value for each metric so they appear in Gather.
	m.RecordOperation("find_all", "docs", OutcomeSuccess, time.Millisecond)
	m.RecordBackendRequest("PUT", "/_api/simple/all", 201, time.Millisecond, 128)
	m.SetCircuitBreakerState(0)
	m.SetBackendErrorRate(0.25)
	m.RecordTransportError("connection")
	m.RecordHTTPRequest("GET", "/health", 200, time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}

	for _, name := range expected {
		if !names[name] {
			t.Errorf("metric %q not registered", name)
		}
	}
}

func TestRecordOperation(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordOperation("remove_by_example", "docs", OutcomeSuccess, 20*time.Millisecond)
	m.RecordOperation("remove_by_example", "orders", OutcomeSuccess, 30*time.Millisecond)
	m.RecordOperation("remove_by_example", "docs", "unknown_collection", 10*time.Millisecond)

	if v := testutil.ToFloat64(m.OperationsTotal.WithLabelValues("remove_by_example", "", OutcomeSuccess)); v != 2 {
		t.Errorf("success count = %v, want 2 across collections", v)
	}
	if v := testutil.ToFloat64(m.OperationsTotal.WithLabelValues("remove_by_example", "", "unknown_collection")); v != 1 {
		t.Errorf("unknown_collection count = %v, want 1", v)
	}
	if n := testutil.CollectAndCount(m.OperationsTotal); n != 2 {
		t.Errorf("series = %d, want 2 without the collection label", n)
	}
	if testutil.CollectAndCount(m.OperationDuration) == 0 {
		t.Error("expected operation duration histogram to have observations")
	}
}

func TestRecordOperation_collectionLabel(t *testing.T) {
	m := InitMetrics(prometheus.NewRegistry(), WithCollectionLabel(true))

	m.RecordOperation("find_all", "docs", OutcomeSuccess, time.Millisecond)
	m.RecordOperation("find_all", "orders", OutcomeSuccess, time.Millisecond)

	if v := testutil.ToFloat64(m.OperationsTotal.WithLabelValues("find_all", "docs", OutcomeSuccess)); v != 1 {
		t.Errorf("docs count = %v, want 1", v)
	}
	if n := testutil.CollectAndCount(m.OperationsTotal); n != 2 {
		t.Errorf("series = %d, want one per collection", n)
	}
}

func TestRecordBackendRequest(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordBackendRequest("PUT", "/_api/simple/by-example", 404, 5*time.Millisecond, 90)

	val := testutil.ToFloat64(m.BackendRequestsTotal.WithLabelValues("PUT", "/_api/simple/by-example", "404"))
	if val != 1 {
		t.Errorf("backend requests = %v, want 1", val)
	}
	if testutil.CollectAndCount(m.BackendResponseSizeBytes) == 0 {
		t.Error("expected response size histogram to have observations")
	}
}

func TestSetCircuitBreakerState(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.SetCircuitBreakerState(2)
	if v := testutil.ToFloat64(m.BackendCircuitBreakerState); v != 2 {
		t.Errorf("circuit breaker state = %v, want 2 (open)", v)
	}
	m.SetCircuitBreakerState(0)
	if v := testutil.ToFloat64(m.BackendCircuitBreakerState); v != 0 {
		t.Errorf("circuit breaker state = %v, want 0 (closed)", v)
	}
}

func TestMetrics_nilSafe(t *testing.T) {
	var m *Metrics
	m.RecordOperation("find_all", "docs", OutcomeSuccess, time.Millisecond)
	m.RecordBackendRequest("PUT", "/x", 200, time.Millisecond, 0)
	m.RecordTransportError("timeout")
	m.SetCircuitBreakerState(1)
	m.RecordHTTPRequest("GET", "/", 200, time.Millisecond)
}

func TestMetricsMiddleware_usesRoutePattern(t *testing.T) {
	m, _ := newTestMetrics(t)

	// Build a chi router so route patterns are captured.
	r := chi.NewRouter()
	r.Use(m.MetricsMiddleware)
	r.Get("/collections/{name}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	req := httptest.NewRequest(http.MethodGet, "/collections/docs", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	val := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/collections/{name}", "200"))
	if val != 1 {
		t.Errorf("requests total = %v, want 1", val)
	}
}

func TestMetricsMiddleware_capturesStatusCode(t *testing.T) {
	m, _ := newTestMetrics(t)

	r := chi.NewRouter()
	r.Use(m.MetricsMiddleware)
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	val := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/ready", "503"))
	if val != 1 {
		t.Errorf("503 requests = %v, want 1", val)
	}
}

func TestMetricsMiddleware_fallsBackToPath(t *testing.T) {
	m, _ := newTestMetrics(t)

	// Use middleware directly without chi router.
	handler := m.MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/raw/path", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	val := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/raw/path", "200"))
	if val != 1 {
		t.Errorf("raw path requests = %v, want 1", val)
	}
}

func TestHandler_servesMetrics(t *testing.T) {
	m, reg := newTestMetrics(t)
	m.RecordOperation("find_all", "docs", OutcomeSuccess, time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "docquery_operations_total") {
		t.Error("metrics response should contain docquery_operations_total")
	}
}

func TestHistogramBuckets(t *testing.T) {
	for name, buckets := range map[string][]float64{
		"http":    httpDurationBuckets,
		"backend": backendDurationBuckets,
		"size":    bodySizeBuckets,
	} {
		for i := 1; i < len(buckets); i++ {
			if buckets[i] <= buckets[i-1] {
				t.Errorf("%s buckets not sorted at index %d", name, i)
			}
		}
	}
}
