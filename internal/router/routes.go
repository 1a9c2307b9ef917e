package router

import (
	"net/http"
	"strings"

	"github.com/novacore-ai/gateway/internal/config"
)

// AuthMode selects the credential a route demands.
type AuthMode int

const (
	// AuthNone passes requests through unauthenticated (login/register).
	AuthNone AuthMode = iota
	// AuthUser requires a valid end-user bearer token.
	AuthUser
	// AuthService requires a valid service token (other services calling
	// this gateway), never an end-user token.
	AuthService
)

// Route maps an inbound path prefix to a backend.
type Route struct {
	Name       string // normalized metric/log label
	Prefix     string // inbound prefix, e.g. "/api/chat"
	Backend    string // backend service name
	BaseURL    string
	Mount      string // backend mount point the prefix is rewritten to
	Auth       AuthMode
	EnrichTier bool // attach X-User-Tier (quota-sensitive backends)
}

// Table builds the static route matrix from the configured backend URLs.
func Table(b config.BackendsConfig) []Route {
	return []Route{
		{Name: "/api/auth", Prefix: "/api/auth", Backend: "auth", BaseURL: b.Auth, Mount: "/auth", Auth: AuthNone},
		{Name: "/api/billing", Prefix: "/api/billing", Backend: "billing", BaseURL: b.Billing, Mount: "/billing", Auth: AuthUser},
		{Name: "/api/usage", Prefix: "/api/usage", Backend: "usage", BaseURL: b.Usage, Mount: "/usage", Auth: AuthUser},
		{Name: "/api/chat", Prefix: "/api/chat", Backend: "chat", BaseURL: b.Chat, Mount: "/chat", Auth: AuthUser},
		{Name: "/api/memory", Prefix: "/api/memory", Backend: "memory", BaseURL: b.Memory, Mount: "/memory", Auth: AuthUser, EnrichTier: true},
		{Name: "/api/notes", Prefix: "/api/notes", Backend: "notes", BaseURL: b.Notes, Mount: "/notes", Auth: AuthUser},
		{Name: "/api/study", Prefix: "/api/study", Backend: "study", BaseURL: b.Study, Mount: "/study", Auth: AuthUser},
		{Name: "/api/quiz", Prefix: "/api/quiz", Backend: "quiz", BaseURL: b.Quiz, Mount: "/api/quiz", Auth: AuthUser},
		{Name: "/api/ngs", Prefix: "/api/ngs", Backend: "ngs", BaseURL: b.NGS, Mount: "/", Auth: AuthUser},
		{Name: "/api/mcp", Prefix: "/api/mcp", Backend: "mcp", BaseURL: b.MCP, Mount: "/mcp", Auth: AuthUser},
		{Name: "/internal/intelligence", Prefix: "/internal/intelligence", Backend: "intelligence", BaseURL: b.Intelligence, Mount: "/", Auth: AuthService},
	}
}

// RewritePath rewrites an inbound path onto the route's backend mount.
// "/api/chat/sessions" with mount "/chat" becomes "/chat/sessions".
func (rt Route) RewritePath(path string) string {
	suffix := strings.TrimPrefix(path, rt.Prefix)
	return singleJoiningSlash(rt.Mount, suffix)
}

// Matches reports whether the request path falls under this route. A bare
// prefix match ("/api/chatx") does not count; the next byte must be "/" or
// end of path.
func (rt Route) Matches(path string) bool {
	if !strings.HasPrefix(path, rt.Prefix) {
		return false
	}
	rest := path[len(rt.Prefix):]
	return rest == "" || rest[0] == '/'
}

// Match returns the route owning the request path, if any.
func Match(routes []Route, r *http.Request) (Route, bool) {
	for _, rt := range routes {
		if rt.Matches(r.URL.Path) {
			return rt, true
		}
	}
	return Route{}, false
}

// singleJoiningSlash joins two URL paths with exactly one slash.
func singleJoiningSlash(a, b string) string {
	aslash := strings.HasSuffix(a, "/")
	bslash := strings.HasPrefix(b, "/")
	switch {
	case aslash && bslash:
		return a + b[1:]
	case !aslash && !bslash:
		if b == "" {
			return a
		}
		return a + "/" + b
	}
	return a + b
}
