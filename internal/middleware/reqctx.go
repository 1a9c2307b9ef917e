package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"
)

// RequestContext carries per-request gateway state. Created by the
// correlation middleware, read-only afterwards, discarded at response end.
type RequestContext struct {
	CorrelationID string
	ArrivedAt     time.Time
}

type requestContextKey struct{}

// WithRequestContext attaches a RequestContext to ctx.
func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, rc)
}

// GetRequestContext returns the request's RequestContext, or nil.
func GetRequestContext(r *http.Request) *RequestContext {
	rc, _ := r.Context().Value(requestContextKey{}).(*RequestContext)
	return rc
}

// CorrelationID returns the request's correlation id, or "" if none was stamped.
func CorrelationID(r *http.Request) string {
	if rc := GetRequestContext(r); rc != nil {
		return rc.CorrelationID
	}
	return ""
}

// ClientIP extracts the client IP, honoring X-Forwarded-For and X-Real-IP
// set by the edge proxy in front of the gateway.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx >= 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if rip := r.Header.Get("X-Real-IP"); rip != "" {
		return rip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
