package integration

import (
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap/zaptest"

	"github.com/pitabwire/docquery/internal/admin"
	"github.com/pitabwire/docquery/internal/config"
	"github.com/pitabwire/docquery/internal/observability"
	"github.com/pitabwire/docquery/mapper"
	"github.com/pitabwire/docquery/simplequery"
	"github.com/pitabwire/docquery/transport"
)

const jwtSecretEnv = "DOCQUERY_TEST_JWT_SECRET"

// harness wires the real transport, facade and admin router against a
// fakeArangod.
type harness struct {
	DB       *fakeArangod
	Client   *transport.Client
	Manager  *simplequery.Manager
	Mappers  *mapper.Registry
	Metrics  *observability.Metrics
	Registry *prometheus.Registry
	Admin    http.Handler
}

type harnessConfig struct {
	secret    []byte
	clientJWT string
	database  string
	failures  int
	coolDown  time.Duration
}

type harnessOption func(*harnessConfig)

// withJWT makes the server require a token signed with secret and the client
// sign with clientSecret.
func withJWT(secret, clientSecret string) harnessOption {
	return func(c *harnessConfig) {
		c.secret = []byte(secret)
		c.clientJWT = clientSecret
	}
}

func withDatabase(name string) harnessOption {
	return func(c *harnessConfig) { c.database = name }
}

func withBreaker(failures int, coolDown time.Duration) harnessOption {
	return func(c *harnessConfig) {
		c.failures = failures
		c.coolDown = coolDown
	}
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	hc := harnessConfig{failures: 5, coolDown: 30 * time.Second}
	for _, opt := range opts {
		opt(&hc)
	}

	db := newFakeArangod(t, hc.secret)

	cfg := config.Defaults()
	cfg.Database.Endpoint = db.URL()
	cfg.Database.Name = hc.database
	cfg.Database.Timeout = 5 * time.Second
	cfg.Database.CircuitBreaker.FailureThreshold = hc.failures
	cfg.Database.CircuitBreaker.Timeout = hc.coolDown
	if hc.clientJWT != "" {
		t.Setenv(jwtSecretEnv, hc.clientJWT)
		cfg.Database.Auth = config.AuthConfig{
			Strategy:     config.AuthJWT,
			JWTSecretEnv: jwtSecretEnv,
			JWTTTL:       time.Hour,
		}
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config: %v", err)
	}

	logger := zaptest.NewLogger(t)
	registry := prometheus.NewRegistry()
	metrics := observability.InitMetrics(registry, observability.WithCollectionLabel(true))

	client, err := transport.NewClient(cfg.Database,
		transport.WithLogger(logger),
		transport.WithMetrics(metrics),
	)
	if err != nil {
		t.Fatalf("transport: %v", err)
	}

	mappers := mapper.NewRegistry()
	manager := simplequery.NewManager(client, mappers,
		simplequery.WithLogger(logger),
		simplequery.WithMetrics(metrics),
		simplequery.WithDefaultLimit(cfg.Query.DefaultLimit),
	)

	return &harness{
		DB:       db,
		Client:   client,
		Manager:  manager,
		Mappers:  mappers,
		Metrics:  metrics,
		Registry: registry,
		Admin: admin.NewRouter(admin.Dependencies{
			Logger:    logger,
			Metrics:   metrics,
			Gatherer:  registry,
			Readiness: observability.ReadinessChecks{Database: client},
		}),
	}
}
