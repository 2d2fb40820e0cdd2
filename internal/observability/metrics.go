package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Histogram bucket definitions.
var (
	httpDurationBuckets    = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	backendDurationBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
	bodySizeBuckets        = []float64{100, 1024, 10240, 102400, 1048576}
)

// Outcome label for operations that returned without error.
const OutcomeSuccess = "success"

// Metrics holds all Prometheus metric instruments. All recording helpers are
// safe to call on a nil *Metrics.
type Metrics struct {
	// Simple query operations
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec

	// Database round-trips
	BackendRequestsTotal       *prometheus.CounterVec
	BackendRequestDuration     *prometheus.HistogramVec
	BackendResponseSizeBytes   *prometheus.HistogramVec
	BackendCircuitBreakerState prometheus.Gauge
	BackendErrorRate           prometheus.Gauge
	BackendTransportErrors     *prometheus.CounterVec

	// Admin HTTP server
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	collectionLabel bool
}

// MetricsOption configures InitMetrics.
type MetricsOption func(*Metrics)

// WithCollectionLabel fills the collection label of docquery_operations_total
// with the collection name. Collection names come from callers, so the
// series count grows with every distinct collection queried; leave it off
// unless that set is small and fixed. When off the label is empty.
func WithCollectionLabel(enabled bool) MetricsOption {
	return func(m *Metrics) { m.collectionLabel = enabled }
}

// InitMetrics creates and registers all Prometheus metric instruments.
func InitMetrics(reg prometheus.Registerer, opts ...MetricsOption) *Metrics {
	m := &Metrics{
		OperationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docquery_operations_total",
			Help: "Total number of simple query operations.",
		}, []string{"operation", "collection", "outcome"}),
		OperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "docquery_operation_duration_seconds",
			Help:    "Simple query operation duration in seconds.",
			Buckets: backendDurationBuckets,
		}, []string{"operation"}),

		BackendRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docquery_backend_requests_total",
			Help: "Total number of database requests.",
		}, []string{"method", "path", "status"}),
		BackendRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "docquery_backend_request_duration_seconds",
			Help:    "Database request duration in seconds.",
			Buckets: backendDurationBuckets,
		}, []string{"path"}),
		BackendResponseSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "docquery_backend_response_size_bytes",
			Help:    "Database response body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"path"}),
		BackendCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "docquery_backend_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open).",
		}),
		BackendErrorRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "docquery_backend_error_rate",
			Help: "Share of failed database calls in the circuit breaker's current window.",
		}),
		BackendTransportErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docquery_backend_transport_errors_total",
			Help: "Total number of database requests that failed without a response.",
		}, []string{"reason"}),

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docquery_http_requests_total",
			Help: "Total number of admin HTTP requests.",
		}, []string{"method", "path_pattern", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "docquery_http_request_duration_seconds",
			Help:    "Admin HTTP request duration in seconds.",
			Buckets: httpDurationBuckets,
		}, []string{"method", "path_pattern"}),
	}

	for _, opt := range opts {
		opt(m)
	}

	reg.MustRegister(
		m.OperationsTotal,
		m.OperationDuration,
		m.BackendRequestsTotal,
		m.BackendRequestDuration,
		m.BackendResponseSizeBytes,
		m.BackendCircuitBreakerState,
		m.BackendErrorRate,
		m.BackendTransportErrors,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)

	return m
}

// --- Recording helpers ---

// RecordOperation records one simple query operation. outcome is
// OutcomeSuccess or a lower-cased error code.
func (m *Metrics) RecordOperation(operation, collection, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	if !m.collectionLabel {
		collection = ""
	}
	m.OperationsTotal.WithLabelValues(operation, collection, outcome).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordBackendRequest records a completed database round-trip.
func (m *Metrics) RecordBackendRequest(method, path string, status int, duration time.Duration, respSize int) {
	if m == nil {
		return
	}
	m.BackendRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.BackendRequestDuration.WithLabelValues(path).Observe(duration.Seconds())
	m.BackendResponseSizeBytes.WithLabelValues(path).Observe(float64(respSize))
}

// RecordTransportError records a round-trip that produced no response.
func (m *Metrics) RecordTransportError(reason string) {
	if m == nil {
		return
	}
	m.BackendTransportErrors.WithLabelValues(reason).Inc()
}

// SetCircuitBreakerState sets the circuit breaker state.
// State: 0=closed, 1=half-open, 2=open.
func (m *Metrics) SetCircuitBreakerState(state float64) {
	if m == nil {
		return
	}
	m.BackendCircuitBreakerState.Set(state)
}

// SetBackendErrorRate sets the breaker window's failure rate, from 0 to 1.
func (m *Metrics) SetBackendErrorRate(rate float64) {
	if m == nil {
		return
	}
	m.BackendErrorRate.Set(rate)
}

// RecordHTTPRequest records admin HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(method, pathPattern string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, pathPattern, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, pathPattern).Observe(duration.Seconds())
}

// --- HTTP Middleware ---

// MetricsMiddleware returns HTTP middleware that records request metrics using
// chi's route pattern (not the actual URL path) to avoid label cardinality
// explosion.
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := newStatusRecorder(w)

		next.ServeHTTP(rec, r)

		m.RecordHTTPRequest(r.Method, routePattern(r), rec.status, time.Since(start))
	})
}

// Handler returns the Prometheus HTTP handler for the given gatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// routePattern extracts chi's route pattern from the request context.
// Falls back to the raw URL path if no pattern is found.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return r.URL.Path
	}
	pattern := strings.Join(rctx.RoutePatterns, "")
	// chi route patterns have trailing /*, remove it.
	pattern = strings.TrimSuffix(pattern, "/*")
	if pattern == "" {
		return r.URL.Path
	}
	return pattern
}
