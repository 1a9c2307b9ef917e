package errors

import (
	"encoding/json"
	"net/http"
)

// GatewayError represents an error that can be returned to clients as a
// stable JSON envelope. Backend-originated errors are passed through the
// proxy untouched and never wrapped in this type.
type GatewayError struct {
	Code          int    `json:"code"`
	ErrorKind     string `json:"error"`
	Message       string `json:"message"`
	Details       string `json:"details,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

func (e *GatewayError) Error() string {
	return e.Message
}

// WriteJSON writes the error as JSON to the response.
// Base singletons (no details/correlation id) use pre-serialized bytes.
func (e *GatewayError) WriteJSON(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Code)
	if pre, ok := preSerialized[e]; ok {
		w.Write(pre)
		return
	}
	json.NewEncoder(w).Encode(e)
}

// Error taxonomy. Missing credential and bad credential are distinct so the
// auth middleware can answer 401 vs 403 without string matching.
var (
	ErrUnauthenticated = &GatewayError{
		Code:      http.StatusUnauthorized,
		ErrorKind: "unauthenticated",
		Message:   "Authentication token not provided",
	}

	ErrInvalidToken = &GatewayError{
		Code:      http.StatusForbidden,
		ErrorKind: "invalid_token",
		Message:   "Authentication token is invalid or expired",
	}

	ErrForbidden = &GatewayError{
		Code:      http.StatusForbidden,
		ErrorKind: "forbidden",
		Message:   "Insufficient permissions",
	}

	ErrRateLimited = &GatewayError{
		Code:      http.StatusTooManyRequests,
		ErrorKind: "rate_limited",
		Message:   "Too many requests, please try again later",
	}

	ErrBackendUnavailable = &GatewayError{
		Code:      http.StatusServiceUnavailable,
		ErrorKind: "backend_unavailable",
		Message:   "Upstream service is unavailable",
	}

	ErrNotFound = &GatewayError{
		Code:      http.StatusNotFound,
		ErrorKind: "not_found",
		Message:   "Not Found",
	}

	ErrInternalServer = &GatewayError{
		Code:      http.StatusInternalServerError,
		ErrorKind: "internal_error",
		Message:   "Internal Server Error",
	}
)

// preSerialized holds JSON-encoded bytes for base error singletons.
var preSerialized map[*GatewayError][]byte

func init() {
	bases := []*GatewayError{
		ErrUnauthenticated, ErrInvalidToken, ErrForbidden, ErrRateLimited,
		ErrBackendUnavailable, ErrNotFound, ErrInternalServer,
	}
	preSerialized = make(map[*GatewayError][]byte, len(bases))
	for _, e := range bases {
		b, _ := json.Marshal(e)
		b = append(b, '\n') // match json.Encoder behavior
		preSerialized[e] = b
	}
}

// WithDetails returns a copy with a details string attached.
func (e *GatewayError) WithDetails(details string) *GatewayError {
	clone := *e
	clone.Details = details
	return &clone
}

// WithCorrelationID returns a copy carrying the request's correlation id.
func (e *GatewayError) WithCorrelationID(id string) *GatewayError {
	clone := *e
	clone.CorrelationID = id
	return &clone
}
