package tier

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/novacore-ai/gateway/internal/auth"
	"github.com/novacore-ai/gateway/internal/logging"
)

// Resolver resolves a user's subscription tier, consulting the cache first
// and falling back to a single bounded-timeout call to the identity
// backend's whoami endpoint.
type Resolver struct {
	cache   *Cache
	authURL string
	client  *http.Client
	timeout time.Duration
}

// NewResolver creates a resolver against the auth backend base URL.
func NewResolver(cache *Cache, authURL string, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = 4 * time.Second
	}
	return &Resolver{
		cache:   cache,
		authURL: authURL,
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		timeout: timeout,
	}
}

// whoamiResponse is the subset of the auth backend's /auth/me payload the
// gateway cares about.
type whoamiResponse struct {
	SubscriptionTier string `json:"subscription_tier"`
}

// Resolve populates claims.Tier best-effort. The bearer token is the
// original caller's: the whoami call answers "who is this end user", not
// "who is the gateway". Any failure degrades silently and the request
// proceeds without a tier. Never retries within the request.
func (r *Resolver) Resolve(ctx context.Context, claims *auth.Claims, bearer string) {
	if claims == nil || claims.UserID == "" {
		return
	}

	// Tier already embedded in the token: short-circuit, write through.
	if claims.Tier != "" {
		r.cache.Set(claims.UserID, claims.Tier)
		return
	}

	if tier, ok := r.cache.Get(claims.UserID); ok {
		claims.Tier = tier
		return
	}

	tier, err := r.lookup(ctx, bearer)
	if err != nil {
		logging.Debug("tier lookup failed, proceeding without tier",
			zap.String("user_id", claims.UserID),
			zap.Error(err),
		)
		return
	}

	claims.Tier = tier
	r.cache.Set(claims.UserID, tier)
}

// lookup issues the single whoami round trip.
func (r *Resolver) lookup(ctx context.Context, bearer string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.authURL+"/auth/me", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &statusError{code: resp.StatusCode}
	}

	var body whoamiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}

	if body.SubscriptionTier == "" {
		return DefaultTier, nil
	}
	return body.SubscriptionTier, nil
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return http.StatusText(e.code)
}
