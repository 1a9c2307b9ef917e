package middleware

import (
	"net/http"
	"time"

	"github.com/novacore-ai/gateway/internal/metrics"
)

// Metrics records count and latency for a normalized route. The route label
// is fixed per handler at registration time, so path parameters never leak
// into label cardinality.
func Metrics(mc *metrics.Collector, route string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(sw, r)

			mc.RecordRequest(route, r.Method, sw.status, time.Since(start).Seconds())
		})
	}
}
