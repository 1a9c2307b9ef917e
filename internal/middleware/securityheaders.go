package middleware

import "net/http"

// headerPair is a pre-computed header name + value.
type headerPair struct {
	name  string
	value string
}

var securityHeaders = []headerPair{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Referrer-Policy", "strict-origin-when-cross-origin"},
	{"X-Permitted-Cross-Domain-Policies", "none"},
}

// SecurityHeaders sets baseline security headers on every response.
func SecurityHeaders() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for _, p := range securityHeaders {
				h.Set(p.name, p.value)
			}
			next.ServeHTTP(w, r)
		})
	}
}
