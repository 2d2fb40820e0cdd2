// Package transport sends simple query requests to the database server over
// HTTP. It implements model.Transport.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pitabwire/docquery/internal/config"
	"github.com/pitabwire/docquery/internal/observability"
	"github.com/pitabwire/docquery/model"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 10 << 20

// Client is a model.Transport backed by net/http. It performs exactly one
// round-trip per SendRequest; there are no retries. Client is safe for
// concurrent use.
type Client struct {
	endpoint string
	database string
	http     *http.Client
	auth     Authenticator
	breaker  *Breaker
	logger   *zap.Logger
	metrics  *observability.Metrics
}

var _ model.Transport = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger used for round-trip and breaker events.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithAuthenticator overrides the authenticator built from the config.
func WithAuthenticator(a Authenticator) Option {
	return func(c *Client) { c.auth = a }
}

// NewClient builds a Client for the server described by cfg.
func NewClient(cfg config.DatabaseConfig, opts ...Option) (*Client, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("transport: invalid endpoint %q", cfg.Endpoint)
	}

	auth, err := NewAuthenticator(cfg.Auth)
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		database: cfg.Name,
		http:     &http.Client{Timeout: timeout},
		auth:     auth,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	cb := cfg.CircuitBreaker
	c.breaker = NewBreaker(BreakerSettings{
		FailureThreshold:   cb.FailureThreshold,
		SuccessThreshold:   cb.SuccessThreshold,
		CoolDown:           cb.Timeout,
		ErrorRateThreshold: cb.ErrorRateThreshold,
		ErrorRateWindow:    cb.ErrorRateWindow,
		OnStateChange:      c.breakerChanged,
	})
	return c, nil
}

// SendRequest implements model.Transport.
func (c *Client) SendRequest(ctx context.Context, req *model.Request) (*model.Response, error) {
	if req == nil {
		return nil, errors.New("transport: nil request")
	}

	database := c.database
	if cc := model.CallContextFrom(ctx); cc != nil && cc.Database != "" {
		database = cc.Database
	}

	ctx, span := observability.StartBackendCall(ctx, string(req.Method), req.Path, database)
	resp, err := c.roundTrip(ctx, req, database)
	if rate, calls := c.breaker.ErrorRate(); calls > 0 {
		c.metrics.SetBackendErrorRate(rate)
	}
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	observability.EndBackendCall(span, status, err)
	return resp, err
}

func (c *Client) roundTrip(ctx context.Context, req *model.Request, database string) (*model.Response, error) {
	logger := observability.CallLogger(ctx, c.logger)

	if !c.breaker.Allow() {
		c.metrics.RecordTransportError("circuit_open")
		return nil, model.NewBackendUnavailableError()
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, string(req.Method), c.buildURL(database, req), body)
	if err != nil {
		return nil, fmt.Errorf("transport: build request: %w", err)
	}
	c.setHeaders(ctx, httpReq, req.Body != nil)
	if c.auth != nil {
		if err := c.auth.Authorize(httpReq); err != nil {
			return nil, err
		}
	}

	if ce := logger.Check(zap.DebugLevel, "database request"); ce != nil {
		ce.Write(
			zap.String("method", string(req.Method)),
			zap.String("path", req.Path),
			zap.String("request_id", httpReq.Header.Get("X-Request-Id")),
			zap.Any("body", redactedBody(req.Body)),
		)
	}

	start := time.Now()
	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			c.metrics.RecordTransportError("canceled")
			return nil, fmt.Errorf("transport: %s %s: %w", req.Method, req.Path, ctx.Err())
		}
		c.breaker.Failure()
		if isConnectionError(err) {
			c.metrics.RecordTransportError("connection")
			logger.Error("database unreachable", zap.String("path", req.Path), zap.Error(err))
			return nil, model.NewBackendUnavailableError()
		}
		c.metrics.RecordTransportError("request")
		return nil, fmt.Errorf("transport: %s %s: %w", req.Method, req.Path, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes+1))
	if err != nil {
		c.breaker.Failure()
		c.metrics.RecordTransportError("read")
		return nil, fmt.Errorf("transport: read response: %w", err)
	}
	if len(respBody) > maxResponseBytes {
		c.metrics.RecordTransportError("too_large")
		logger.Warn("database response too large",
			zap.String("path", req.Path),
			zap.Int("status", httpResp.StatusCode),
			zap.Int("limit_bytes", maxResponseBytes),
		)
		return nil, model.NewMalformedResponseError(
			fmt.Sprintf("transport: %s %s: response too large (over %d bytes)", req.Method, req.Path, maxResponseBytes),
		)
	}

	switch {
	case httpResp.StatusCode >= 500:
		c.breaker.Failure()
	case httpResp.StatusCode < 400:
		c.breaker.Success()
	}

	elapsed := time.Since(start)
	c.metrics.RecordBackendRequest(string(req.Method), req.Path, httpResp.StatusCode, elapsed, len(respBody))
	logger.Debug("database response",
		zap.String("path", req.Path),
		zap.Int("status", httpResp.StatusCode),
		zap.Duration("duration", elapsed),
		zap.Int("bytes", len(respBody)),
	)

	return &model.Response{
		StatusCode: httpResp.StatusCode,
		Headers:    extractResponseHeaders(httpResp),
		Body:       respBody,
	}, nil
}

// HealthCheck asks the server for its version. Any non-200 answer fails.
func (c *Client) HealthCheck(ctx context.Context) error {
	resp, err := c.SendRequest(ctx, &model.Request{Method: model.MethodGet, Path: "/_api/version"})
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("transport: version check returned status %d", resp.StatusCode)
	}
	return nil
}

// BreakerState reports the circuit breaker state.
func (c *Client) BreakerState() BreakerState {
	return c.breaker.State()
}

func (c *Client) breakerChanged(from, to BreakerState) {
	c.metrics.SetCircuitBreakerState(float64(to))
	if to == BreakerOpen {
		c.logger.Warn("database circuit breaker opened", zap.Stringer("from", from))
		return
	}
	c.logger.Info("database circuit breaker state changed",
		zap.Stringer("from", from), zap.Stringer("to", to))
}

func (c *Client) buildURL(database string, req *model.Request) string {
	var b strings.Builder
	b.WriteString(c.endpoint)
	if database != "" {
		b.WriteString("/_db/")
		b.WriteString(url.PathEscape(database))
	}
	b.WriteString(req.URI())
	return b.String()
}

func (c *Client) setHeaders(ctx context.Context, r *http.Request, hasBody bool) {
	r.Header.Set("Accept", "application/json")
	if hasBody {
		r.Header.Set("Content-Type", "application/json")
	}

	requestID := ""
	if cc := model.CallContextFrom(ctx); cc != nil {
		requestID = sanitizeHeader(cc.CorrelationID)
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}
	r.Header.Set("X-Request-Id", requestID)

	observability.InjectTraceHeaders(ctx, r.Header)
}

func redactedBody(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return fmt.Sprintf("<%d bytes>", len(body))
	}
	return observability.RedactBody(m, nil)
}

// sanitizeHeader strips newlines and carriage returns to prevent header injection.
func sanitizeHeader(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	return s
}

func extractResponseHeaders(resp *http.Response) map[string]string {
	headers := make(map[string]string)
	for _, key := range []string{
		"Content-Type", "X-Request-Id", "Server", "X-Arango-Queue-Time-Seconds",
	} {
		if v := resp.Header.Get(key); v != "" {
			headers[key] = v
		}
	}
	return headers
}

func isConnectionError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}
