package transport

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pitabwire/docquery/internal/config"
)

// Authenticator sets credentials on an outbound request.
type Authenticator interface {
	Authorize(req *http.Request) error
}

// NewAuthenticator builds the authenticator selected by cfg.Strategy. It
// returns nil for AuthNone.
func NewAuthenticator(cfg config.AuthConfig) (Authenticator, error) {
	switch cfg.Strategy {
	case "", config.AuthNone:
		return nil, nil
	case config.AuthBasic:
		return &BasicAuth{Username: cfg.Username, Password: cfg.Password()}, nil
	case config.AuthJWT:
		secret := cfg.JWTSecret()
		if secret == "" {
			return nil, fmt.Errorf("transport: jwt secret env %q is empty", cfg.JWTSecretEnv)
		}
		return NewJWTAuth([]byte(secret), cfg.ServerID, cfg.JWTTTL), nil
	default:
		return nil, fmt.Errorf("transport: unsupported auth strategy %q", cfg.Strategy)
	}
}

// BasicAuth sends HTTP basic credentials.
type BasicAuth struct {
	Username string
	Password string
}

// Authorize implements Authenticator.
func (a *BasicAuth) Authorize(req *http.Request) error {
	req.SetBasicAuth(sanitizeHeader(a.Username), sanitizeHeader(a.Password))
	return nil
}

// jwtRefreshMargin is how long before expiry a cached token is replaced.
const jwtRefreshMargin = time.Minute

// JWTAuth signs superuser tokens with the server's shared secret and sends
// them as bearer tokens. A signed token is reused until it nears expiry.
type JWTAuth struct {
	secret   []byte
	serverID string
	ttl      time.Duration
	now      func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewJWTAuth returns a JWTAuth. A non-positive ttl defaults to one hour.
func NewJWTAuth(secret []byte, serverID string, ttl time.Duration) *JWTAuth {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &JWTAuth{secret: secret, serverID: serverID, ttl: ttl, now: time.Now}
}

// Authorize implements Authenticator.
func (a *JWTAuth) Authorize(req *http.Request) error {
	token, err := a.Token()
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "bearer "+token)
	return nil
}

// Token returns a valid signed token, signing a new one when needed.
func (a *JWTAuth) Token() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	if a.token != "" && now.Add(jwtRefreshMargin).Before(a.expires) {
		return a.token, nil
	}

	expires := now.Add(a.ttl)
	claims := jwt.MapClaims{
		"iss": "arangodb",
		"iat": now.Unix(),
		"exp": expires.Unix(),
	}
	if a.serverID != "" {
		claims["server_id"] = a.serverID
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("transport: sign jwt: %w", err)
	}
	a.token = signed
	a.expires = expires
	return signed, nil
}
