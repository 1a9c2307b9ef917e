package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// CorrelationHeader is the header carrying the correlation id, echoed on
// the response and propagated to every backend call.
const CorrelationHeader = "X-Correlation-ID"

func init() {
	// Batch crypto/rand reads into a pool to avoid a syscall per UUID.
	uuid.EnableRandPool()
}

// Correlation stamps every inbound request with a correlation id. An
// inbound header is trusted and echoed; otherwise a new id is generated.
func Correlation() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(CorrelationHeader)
			if id == "" {
				id = uuid.New().String()
			}

			r.Header.Set(CorrelationHeader, id)
			w.Header().Set(CorrelationHeader, id)

			rc := &RequestContext{
				CorrelationID: id,
				ArrivedAt:     time.Now(),
			}
			next.ServeHTTP(w, r.WithContext(WithRequestContext(r.Context(), rc)))
		})
	}
}
