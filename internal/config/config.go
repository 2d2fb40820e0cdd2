// Package config loads and validates application configuration from YAML files
// and environment variables.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Auth strategies supported by the database transport.
const (
	AuthNone  = "none"
	AuthBasic = "basic"
	AuthJWT   = "jwt"
)

// Config is the root application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Query         QueryConfig         `yaml:"query"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig describes the admin HTTP server (health, readiness, metrics).
type ServerConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig describes how to reach the database server.
type DatabaseConfig struct {
	Endpoint       string               `yaml:"endpoint"`
	Name           string               `yaml:"name"`
	Timeout        time.Duration        `yaml:"timeout"`
	Auth           AuthConfig           `yaml:"auth"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// AuthConfig describes authentication for database calls. Secrets are read
// from the named environment variables, never from the file itself.
type AuthConfig struct {
	Strategy     string        `yaml:"strategy"`
	Username     string        `yaml:"username"`
	PasswordEnv  string        `yaml:"password_env"`
	JWTSecretEnv string        `yaml:"jwt_secret_env"`
	JWTTTL       time.Duration `yaml:"jwt_ttl"`
	ServerID     string        `yaml:"server_id"`
}

// Password returns the password from PasswordEnv.
func (a AuthConfig) Password() string {
	if a.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(a.PasswordEnv)
}

// JWTSecret returns the signing secret from JWTSecretEnv.
func (a AuthConfig) JWTSecret() string {
	if a.JWTSecretEnv == "" {
		return ""
	}
	return os.Getenv(a.JWTSecretEnv)
}

// CircuitBreakerConfig describes circuit breaker settings for the database.
type CircuitBreakerConfig struct {
	FailureThreshold   int           `yaml:"failure_threshold"`
	SuccessThreshold   int           `yaml:"success_threshold"`
	Timeout            time.Duration `yaml:"timeout"`
	ErrorRateThreshold float64       `yaml:"error_rate_threshold"`
	ErrorRateWindow    time.Duration `yaml:"error_rate_window"`
}

// QueryConfig describes simple query defaults used by the CLI.
type QueryConfig struct {
	DefaultLimit int `yaml:"default_limit"`
}

// ObservabilityConfig describes logging, tracing, and metrics settings.
type ObservabilityConfig struct {
	LogLevel string        `yaml:"log_level"`
	Tracing  TracingConfig `yaml:"tracing"`
	Metrics  MetricsConfig `yaml:"metrics"`
}

// TracingConfig describes distributed tracing settings.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// MetricsConfig describes Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`

	// CollectionLabel labels operation counters by collection name.
	CollectionLabel bool `yaml:"collection_label"`
}

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            9464,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Endpoint: "http://localhost:8529",
			Timeout:  30 * time.Second,
			Auth: AuthConfig{
				Strategy: AuthNone,
				JWTTTL:   time.Hour,
			},
			CircuitBreaker: CircuitBreakerConfig{
				FailureThreshold: 5,
				SuccessThreshold: 2,
				Timeout:          30 * time.Second,
			},
		},
		Query: QueryConfig{
			DefaultLimit: 1000,
		},
		Observability: ObservabilityConfig{
			LogLevel: "info",
			Tracing: TracingConfig{
				Exporter:     "otlp",
				SamplingRate: 0.1,
			},
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}

// Load reads a YAML config file, applies environment variable overrides,
// and validates required fields.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required fields are present and valid.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Enabled && (c.Server.Port < 1 || c.Server.Port > 65535) {
		errs = append(errs, "server.port must be between 1 and 65535")
	}

	if c.Database.Endpoint == "" {
		errs = append(errs, "database.endpoint is required")
	} else if u, err := url.Parse(c.Database.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, "database.endpoint must be an absolute URL")
	}

	switch c.Database.Auth.Strategy {
	case AuthNone, "":
	case AuthBasic:
		if c.Database.Auth.Username == "" {
			errs = append(errs, "database.auth.username is required for basic auth")
		}
	case AuthJWT:
		if c.Database.Auth.JWTSecretEnv == "" {
			errs = append(errs, "database.auth.jwt_secret_env is required for jwt auth")
		}
	default:
		errs = append(errs, fmt.Sprintf("database.auth.strategy %q is not supported", c.Database.Auth.Strategy))
	}

	if c.Query.DefaultLimit < 1 {
		errs = append(errs, "query.default_limit must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// applyEnvOverrides reads DOCQUERY_* environment variables and overrides config
// values. Only the most commonly overridden fields are supported.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DOCQUERY_SERVER_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DOCQUERY_DATABASE_ENDPOINT"); v != "" {
		cfg.Database.Endpoint = v
	}
	if v := os.Getenv("DOCQUERY_DATABASE_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("DOCQUERY_DATABASE_AUTH_STRATEGY"); v != "" {
		cfg.Database.Auth.Strategy = v
	}
	if v := os.Getenv("DOCQUERY_DATABASE_AUTH_USERNAME"); v != "" {
		cfg.Database.Auth.Username = v
	}
	if v := os.Getenv("DOCQUERY_OBSERVABILITY_LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
}
