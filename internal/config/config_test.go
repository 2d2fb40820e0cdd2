package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_valid(t *testing.T) {
	cfg, err := Load("testdata/valid.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 15s", cfg.Server.ReadTimeout)
	}
	if cfg.Database.Endpoint != "https://arango.internal:8529" {
		t.Errorf("Database.Endpoint = %q", cfg.Database.Endpoint)
	}
	if cfg.Database.Name != "shop" {
		t.Errorf("Database.Name = %q", cfg.Database.Name)
	}
	if cfg.Database.Timeout != 10*time.Second {
		t.Errorf("Database.Timeout = %v, want 10s", cfg.Database.Timeout)
	}
	if cfg.Database.Auth.Strategy != AuthBasic {
		t.Errorf("Database.Auth.Strategy = %q, want basic", cfg.Database.Auth.Strategy)
	}
	if cfg.Database.CircuitBreaker.FailureThreshold != 7 {
		t.Errorf("CircuitBreaker.FailureThreshold = %d, want 7", cfg.Database.CircuitBreaker.FailureThreshold)
	}
	// Not set in the file: default survives.
	if cfg.Database.CircuitBreaker.SuccessThreshold != 2 {
		t.Errorf("CircuitBreaker.SuccessThreshold = %d, want default 2", cfg.Database.CircuitBreaker.SuccessThreshold)
	}
	if cfg.Query.DefaultLimit != 250 {
		t.Errorf("Query.DefaultLimit = %d, want 250", cfg.Query.DefaultLimit)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.Observability.LogLevel)
	}
	if !cfg.Observability.Metrics.CollectionLabel {
		t.Error("Metrics.CollectionLabel = false, want true")
	}
	if !cfg.Observability.Metrics.Enabled || cfg.Observability.Metrics.Path != "/metrics" {
		t.Errorf("Metrics = %+v, want defaults kept beside collection_label", cfg.Observability.Metrics)
	}
}

func TestLoad_missing_file(t *testing.T) {
	_, err := Load("testdata/nonexistent.yaml")
	if err == nil {
		t.Fatal("Load() with missing file should return error")
	}
}

func TestLoad_missing_endpoint(t *testing.T) {
	_, err := Load("testdata/missing_endpoint.yaml")
	if err == nil {
		t.Fatal("Load() with empty endpoint should return error")
	}
	if !strings.Contains(err.Error(), "database.endpoint is required") {
		t.Errorf("error = %v", err)
	}
}

func TestLoad_unsupported_auth(t *testing.T) {
	_, err := Load("testdata/bad_auth.yaml")
	if err == nil || !strings.Contains(err.Error(), "kerberos") {
		t.Fatalf("Load() error = %v, want unsupported strategy", err)
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Database.Endpoint != "http://localhost:8529" {
		t.Errorf("default Database.Endpoint = %q", cfg.Database.Endpoint)
	}
	if cfg.Query.DefaultLimit != 1000 {
		t.Errorf("default Query.DefaultLimit = %d, want 1000", cfg.Query.DefaultLimit)
	}
	if cfg.Database.Auth.Strategy != AuthNone {
		t.Errorf("default Auth.Strategy = %q, want none", cfg.Database.Auth.Strategy)
	}
	if cfg.Observability.LogLevel != "info" {
		t.Errorf("default LogLevel = %q, want info", cfg.Observability.LogLevel)
	}
	if cfg.Observability.Metrics.CollectionLabel {
		t.Error("default Metrics.CollectionLabel = true, want false")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Defaults().Validate() error = %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DOCQUERY_SERVER_PORT", "3000")
	t.Setenv("DOCQUERY_DATABASE_ENDPOINT", "http://env-db:8529")
	t.Setenv("DOCQUERY_DATABASE_NAME", "envdb")
	t.Setenv("DOCQUERY_OBSERVABILITY_LOG_LEVEL", "error")

	cfg, err := Load("testdata/valid.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 3000 {
		t.Errorf("Server.Port = %d, want 3000 (env override)", cfg.Server.Port)
	}
	if cfg.Database.Endpoint != "http://env-db:8529" {
		t.Errorf("Database.Endpoint = %q, want env override", cfg.Database.Endpoint)
	}
	if cfg.Database.Name != "envdb" {
		t.Errorf("Database.Name = %q, want env override", cfg.Database.Name)
	}
	if cfg.Observability.LogLevel != "error" {
		t.Errorf("LogLevel = %q, want error (env override)", cfg.Observability.LogLevel)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "invalid port when server enabled",
			mutate: func(c *Config) {
				c.Server.Enabled = true
				c.Server.Port = 0
			},
			wantErr: "server.port",
		},
		{
			name:   "port ignored when server disabled",
			mutate: func(c *Config) { c.Server.Port = 0 },
		},
		{
			name:    "relative endpoint",
			mutate:  func(c *Config) { c.Database.Endpoint = "localhost:8529/x" },
			wantErr: "absolute URL",
		},
		{
			name:    "basic without username",
			mutate:  func(c *Config) { c.Database.Auth.Strategy = AuthBasic },
			wantErr: "username",
		},
		{
			name:    "jwt without secret env",
			mutate:  func(c *Config) { c.Database.Auth.Strategy = AuthJWT },
			wantErr: "jwt_secret_env",
		},
		{
			name:    "non-positive default limit",
			mutate:  func(c *Config) { c.Query.DefaultLimit = 0 },
			wantErr: "default_limit",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestAuthConfig_secretsFromEnv(t *testing.T) {
	t.Setenv("DOCQUERY_TEST_PASSWORD", "s3cret")
	t.Setenv("DOCQUERY_TEST_JWT", "signing-key")

	a := AuthConfig{PasswordEnv: "DOCQUERY_TEST_PASSWORD", JWTSecretEnv: "DOCQUERY_TEST_JWT"}
	if got := a.Password(); got != "s3cret" {
		t.Errorf("Password() = %q", got)
	}
	if got := a.JWTSecret(); got != "signing-key" {
		t.Errorf("JWTSecret() = %q", got)
	}
	if got := (AuthConfig{}).Password(); got != "" {
		t.Errorf("Password() with no env = %q, want empty", got)
	}
}
