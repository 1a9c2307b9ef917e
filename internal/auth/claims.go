package auth

import (
	"context"
	"net/http"
)

// Claims is the verified identity decoded from an end-user bearer token.
// It is attached to the request for its duration and never cached as a
// whole; only the tier field is cached separately.
type Claims struct {
	UserID string
	Email  string
	Role   string
	Tier   string // optional embedded subscription tier
}

type claimsKey struct{}

// WithClaims attaches verified claims to ctx.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// ClaimsFromRequest returns the request's verified claims, or nil for
// anonymous requests on optional-auth routes.
func ClaimsFromRequest(r *http.Request) *Claims {
	c, _ := r.Context().Value(claimsKey{}).(*Claims)
	return c
}
