package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/novacore-ai/gateway/internal/errors"
	"github.com/novacore-ai/gateway/internal/logging"
)

// Recovery catches panics from any downstream handler and answers 500 with
// the generic envelope. Panic details reach the client only outside
// production; stack traces never do.
func Recovery(production bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logging.Error("panic recovered",
						zap.Any("error", rec),
						zap.String("path", r.URL.Path),
						zap.String("correlation_id", CorrelationID(r)),
						zap.ByteString("stack", debug.Stack()),
					)

					gwErr := errors.ErrInternalServer
					if !production {
						gwErr = gwErr.WithDetails(fmt.Sprintf("panic: %v", rec))
					}
					if id := CorrelationID(r); id != "" {
						gwErr = gwErr.WithCorrelationID(id)
					}
					gwErr.WriteJSON(w)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
