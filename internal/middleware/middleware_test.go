package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestChainOrder(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	handler := NewChain(tag("outer"), tag("middle")).Append(tag("inner")).
		ThenFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "handler")
		})

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	want := []string{"outer", "middle", "inner", "handler"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}
}

func TestCorrelationGeneratesID(t *testing.T) {
	var inHandler string
	handler := Correlation()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inHandler = CorrelationID(r)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	echoed := rec.Header().Get(CorrelationHeader)
	if echoed == "" {
		t.Fatal("response should carry a correlation id")
	}
	if inHandler != echoed {
		t.Errorf("context id %q and response header %q should match", inHandler, echoed)
	}
}

func TestCorrelationEchoesInboundID(t *testing.T) {
	handler := Correlation()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(CorrelationHeader, "client-chosen-id")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get(CorrelationHeader); got != "client-chosen-id" {
		t.Errorf("inbound id should be echoed, got %q", got)
	}
}

func TestRecoveryAnswers500(t *testing.T) {
	handler := Recovery(true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/chat", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	// In production the panic value must not leak to clients.
	if strings.Contains(rec.Body.String(), "boom") {
		t.Errorf("panic detail leaked in production mode: %s", rec.Body.String())
	}
}

func TestRecoveryDetailsInDevelopment(t *testing.T) {
	handler := Recovery(false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/chat", nil))

	if !strings.Contains(rec.Body.String(), "boom") {
		t.Errorf("development mode should include panic details: %s", rec.Body.String())
	}
}

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("expected nosniff, got %q", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("expected DENY, got %q", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	c := NewCORS([]string{"https://app.example.com"})
	handler := c.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("preflight must not reach the handler")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("expected origin echoed, got %q", got)
	}
	if rec.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Error("preflight should list allowed methods")
	}
}

func TestCORSDisallowedOrigin(t *testing.T) {
	c := NewCORS([]string{"https://app.example.com"})
	handler := c.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/api/chat", nil)
	req.Header.Set("Origin", "https://evil.example.org")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("disallowed origin must not be echoed, got %q", got)
	}
}

func TestCORSWildcardSubdomain(t *testing.T) {
	c := NewCORS([]string{"*.example.com"})
	if !c.originAllowed("https://app.example.com") {
		t.Error("subdomain should match wildcard")
	}
	if c.originAllowed("https://example.org") {
		t.Error("other domain should not match wildcard")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		realIP     string
		want       string
	}{
		{"remote addr only", "10.0.0.1:1234", "", "", "10.0.0.1"},
		{"forwarded for", "10.0.0.1:1234", "1.2.3.4", "", "1.2.3.4"},
		{"forwarded chain uses first hop", "10.0.0.1:1234", "1.2.3.4, 10.0.0.2", "", "1.2.3.4"},
		{"real ip fallback", "10.0.0.1:1234", "", "5.6.7.8", "5.6.7.8"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.remoteAddr
		if tt.xff != "" {
			req.Header.Set("X-Forwarded-For", tt.xff)
		}
		if tt.realIP != "" {
			req.Header.Set("X-Real-IP", tt.realIP)
		}
		if got := ClientIP(req); got != tt.want {
			t.Errorf("%s: ClientIP = %q, want %q", tt.name, got, tt.want)
		}
	}
}
