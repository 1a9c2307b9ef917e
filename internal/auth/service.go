package auth

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/novacore-ai/gateway/internal/errors"
	"github.com/novacore-ai/gateway/internal/logging"
	"github.com/novacore-ai/gateway/internal/middleware"
)

// ServiceTokenHeader carries the gateway's own identity to backends and
// inbound service callers' identity to the gateway.
const ServiceTokenHeader = "X-Service-Token"

const (
	serviceTokenTTL     = 24 * time.Hour
	serviceTokenRefresh = time.Hour // re-mint when this close to expiry
)

// ServiceMinter mints and caches the short-lived token asserting the
// gateway's identity to downstream services. The token must never be
// logged or returned to an end user.
type ServiceMinter struct {
	secret      []byte
	serviceName string
	now         func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewServiceMinter creates a minter for the service-to-service secret.
// This secret is distinct from the end-user secret so compromise of one
// does not compromise the other.
func NewServiceMinter(secret, serviceName string) *ServiceMinter {
	return &ServiceMinter{
		secret:      []byte(secret),
		serviceName: serviceName,
		now:         time.Now,
	}
}

// Mint signs a fresh service identity token.
func (m *ServiceMinter) Mint() (string, error) {
	if len(m.secret) == 0 {
		return "", fmt.Errorf("service secret not configured")
	}

	now := m.now()
	claims := jwt.MapClaims{
		"serviceName": m.serviceName,
		"type":        "service",
		"iat":         now.Unix(),
		"exp":         now.Add(serviceTokenTTL).Unix(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign service token: %w", err)
	}

	m.mu.Lock()
	m.token = signed
	m.expiresAt = now.Add(serviceTokenTTL)
	m.mu.Unlock()

	return signed, nil
}

// Token returns the cached service token, re-minting on demand when close
// to expiry. Returns "" in degraded mode: the proxy then omits the header
// and backends that require it reject with their own auth error, which is
// a visible and acceptable failure.
func (m *ServiceMinter) Token() string {
	m.mu.Lock()
	token := m.token
	expiresAt := m.expiresAt
	m.mu.Unlock()

	if token != "" && m.now().Before(expiresAt.Add(-serviceTokenRefresh)) {
		return token
	}

	fresh, err := m.Mint()
	if err != nil {
		logging.Warn("service token mint failed, proxying without service identity", zap.Error(err))
		return token // possibly stale or "", degraded either way
	}
	return fresh
}

// MintWithRetry mints the startup token, retrying with exponential backoff
// for up to maxElapsed before giving up and leaving the gateway degraded.
func (m *ServiceMinter) MintWithRetry(maxElapsed time.Duration) error {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = maxElapsed

	return backoff.Retry(func() error {
		_, err := m.Mint()
		return err
	}, policy)
}

// ServiceVerifier verifies inbound X-Service-Token headers on
// service-to-service routes.
type ServiceVerifier struct {
	secret     []byte
	prevSecret []byte
}

// NewServiceVerifier creates a verifier for the service secret and optional
// previous secret (rotation window).
func NewServiceVerifier(secret, previous string) *ServiceVerifier {
	v := &ServiceVerifier{secret: []byte(secret)}
	if previous != "" {
		v.prevSecret = []byte(previous)
	}
	return v
}

// Verify checks an inbound service token and returns the calling service's
// name. The type claim must equal "service": an end-user token presented on
// a service route never passes.
func (v *ServiceVerifier) Verify(tokenString string) (string, error) {
	if tokenString == "" {
		return "", errors.ErrForbidden.WithDetails("Service token required for service-to-service calls")
	}

	mapClaims, err := v.parse(tokenString, v.secret)
	if err != nil && v.prevSecret != nil {
		mapClaims, err = v.parse(tokenString, v.prevSecret)
	}
	if err != nil {
		return "", errors.ErrForbidden.WithDetails("Invalid service token")
	}

	if typ, _ := mapClaims["type"].(string); typ != "service" {
		return "", errors.ErrForbidden.WithDetails("Invalid service token type")
	}

	name, _ := mapClaims["serviceName"].(string)
	return name, nil
}

func (v *ServiceVerifier) parse(tokenString string, key []byte) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return key, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
	)
	if err != nil {
		return nil, err
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type")
	}
	return mapClaims, nil
}

// Middleware enforces service authentication on internal routes.
func (v *ServiceVerifier) Middleware() middleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := v.Verify(r.Header.Get(ServiceTokenHeader)); err != nil {
				gwErr := err.(*errors.GatewayError)
				if id := middleware.CorrelationID(r); id != "" {
					gwErr = gwErr.WithCorrelationID(id)
				}
				gwErr.WriteJSON(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
