package errors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteJSONSingleton(t *testing.T) {
	rec := httptest.NewRecorder()
	ErrRateLimited.WriteJSON(rec)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %q", ct)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["error"] != "rate_limited" {
		t.Errorf("expected error kind rate_limited, got %v", body["error"])
	}
	if body["message"] == "" {
		t.Error("envelope must carry a message")
	}
}

func TestStatusCodes(t *testing.T) {
	tests := []struct {
		err  *GatewayError
		code int
	}{
		{ErrUnauthenticated, http.StatusUnauthorized},
		{ErrInvalidToken, http.StatusForbidden},
		{ErrForbidden, http.StatusForbidden},
		{ErrRateLimited, http.StatusTooManyRequests},
		{ErrBackendUnavailable, http.StatusServiceUnavailable},
		{ErrNotFound, http.StatusNotFound},
		{ErrInternalServer, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		tt.err.WriteJSON(rec)
		if rec.Code != tt.code {
			t.Errorf("%s: expected %d, got %d", tt.err.ErrorKind, tt.code, rec.Code)
		}
	}
}

func TestWithDetailsDoesNotMutateSingleton(t *testing.T) {
	detailed := ErrBackendUnavailable.WithDetails("the chat service is down")

	if ErrBackendUnavailable.Details != "" {
		t.Fatal("singleton must not be mutated")
	}
	if detailed.Details != "the chat service is down" {
		t.Errorf("expected details on copy, got %q", detailed.Details)
	}
	if detailed.Code != ErrBackendUnavailable.Code {
		t.Errorf("copy should keep the code, got %d", detailed.Code)
	}
}

func TestWithCorrelationID(t *testing.T) {
	withID := ErrNotFound.WithCorrelationID("abc-123")

	rec := httptest.NewRecorder()
	withID.WriteJSON(rec)

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["correlation_id"] != "abc-123" {
		t.Errorf("expected correlation id in envelope, got %v", body["correlation_id"])
	}
	if ErrNotFound.CorrelationID != "" {
		t.Error("singleton must not be mutated")
	}
}

func TestErrorMessage(t *testing.T) {
	if ErrRateLimited.Error() != ErrRateLimited.Message {
		t.Error("Error() should return the client-facing message")
	}
}
