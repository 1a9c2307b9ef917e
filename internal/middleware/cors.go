package middleware

import (
	"net/http"
	"strings"
)

// CORS handles preflight and response headers for the configured origins.
// An empty origin list disables CORS entirely (same-origin deployments).
type CORS struct {
	allowOrigins    []string
	allowAllOrigins bool
	allowMethods    string
	allowHeaders    string
	maxAge          string
}

// NewCORS creates a CORS handler for the given allowed origins.
func NewCORS(origins []string) *CORS {
	c := &CORS{
		allowOrigins: origins,
		allowMethods: "GET, POST, PUT, DELETE, PATCH, OPTIONS",
		allowHeaders: "Content-Type, Authorization, X-Correlation-ID",
		maxAge:       "86400",
	}
	for _, o := range origins {
		if o == "*" {
			c.allowAllOrigins = true
			break
		}
	}
	return c
}

// Middleware answers preflight requests and applies CORS headers to
// everything else.
func (c *CORS) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(c.allowOrigins) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			origin := r.Header.Get("Origin")

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				c.handlePreflight(w, origin)
				return
			}

			if origin != "" && c.originAllowed(origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Add("Vary", "Origin")
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (c *CORS) handlePreflight(w http.ResponseWriter, origin string) {
	if !c.originAllowed(origin) {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h := w.Header()
	h.Set("Access-Control-Allow-Origin", origin)
	h.Set("Access-Control-Allow-Methods", c.allowMethods)
	h.Set("Access-Control-Allow-Headers", c.allowHeaders)
	h.Set("Access-Control-Allow-Credentials", "true")
	h.Set("Access-Control-Max-Age", c.maxAge)
	h.Set("Vary", "Origin, Access-Control-Request-Method, Access-Control-Request-Headers")
	w.WriteHeader(http.StatusNoContent)
}

func (c *CORS) originAllowed(origin string) bool {
	if c.allowAllOrigins {
		return true
	}
	for _, allowed := range c.allowOrigins {
		if allowed == origin {
			return true
		}
		// Wildcard subdomain matching: *.example.com
		if strings.HasPrefix(allowed, "*.") && strings.HasSuffix(origin, allowed[1:]) {
			return true
		}
	}
	return false
}
