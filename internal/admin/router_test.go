package admin

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pitabwire/docquery/internal/config"
	"github.com/pitabwire/docquery/internal/observability"
)

func newTestRouter(t *testing.T, db observability.HealthChecker) (http.Handler, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewRouter(Dependencies{
		Metrics:   observability.InitMetrics(reg),
		Gatherer:  reg,
		Readiness: observability.ReadinessChecks{Database: db},
	}), reg
}

func healthy() observability.HealthChecker {
	return observability.HealthCheckFunc(func(context.Context) error { return nil })
}

func TestRouter_health(t *testing.T) {
	h, _ := newTestRouter(t, healthy())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers should be set")
	}
}

func TestRouter_ready(t *testing.T) {
	tests := []struct {
		name string
		db   observability.HealthChecker
		want int
	}{
		{name: "database up", db: healthy(), want: http.StatusOK},
		{name: "database down", db: observability.HealthCheckFunc(func(context.Context) error {
			return errors.New("connection refused")
		}), want: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestRouter(t, tt.db)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			var resp observability.ReadinessResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if _, ok := resp.Checks["database"]; !ok {
				t.Error("database check missing")
			}
		})
	}
}

func TestRouter_metricsRecordsAdminRequests(t *testing.T) {
	h, _ := newTestRouter(t, healthy())
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `docquery_http_requests_total{method="GET",path_pattern="/health",status="200"} 1`) {
		t.Errorf("metrics output missing health request:\n%s", rec.Body.String())
	}
}

func TestRouter_customMetricsPath(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := NewRouter(Dependencies{Gatherer: reg, MetricsPath: "/internal/metrics"})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/internal/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRouter_notFound(t *testing.T) {
	h, _ := newTestRouter(t, healthy())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q, want JSON", ct)
	}
}

func TestRecovery_handlesPanic(t *testing.T) {
	h := Recovery(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestServer_startAndShutdown(t *testing.T) {
	h, _ := newTestRouter(t, healthy())
	srv, err := Listen(config.ServerConfig{Port: 0, ReadTimeout: time.Second, WriteTimeout: time.Second}, h, nil)
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	srv.Start()

	resp, err := http.Get("http://" + srv.Addr() + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if err, ok := <-srv.Errors(); ok {
		t.Errorf("unexpected serve error: %v", err)
	}
}
