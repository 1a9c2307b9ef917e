package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testServiceSecret = "service-secret-for-tests"

func TestMintAndVerify(t *testing.T) {
	m := NewServiceMinter(testServiceSecret, "gateway")
	token, err := m.Mint()
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	v := NewServiceVerifier(testServiceSecret, "")
	name, err := v.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if name != "gateway" {
		t.Errorf("expected serviceName gateway, got %q", name)
	}
}

func TestMintedTokenClaims(t *testing.T) {
	m := NewServiceMinter(testServiceSecret, "gateway")
	token, err := m.Mint()
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		return []byte(testServiceSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	claims := parsed.Claims.(jwt.MapClaims)
	if claims["type"] != "service" {
		t.Errorf("expected type service, got %v", claims["type"])
	}
	iat, _ := claims.GetIssuedAt()
	exp, _ := claims.GetExpirationTime()
	if got := exp.Sub(iat.Time); got != 24*time.Hour {
		t.Errorf("expected 24h lifetime, got %v", got)
	}
}

func TestMintWithoutSecret(t *testing.T) {
	m := NewServiceMinter("", "gateway")
	if _, err := m.Mint(); err == nil {
		t.Fatal("mint without a secret should fail")
	}
	if token := m.Token(); token != "" {
		t.Errorf("degraded minter should return empty token, got %q", token)
	}
}

func TestTokenCachedUntilRefreshWindow(t *testing.T) {
	m := NewServiceMinter(testServiceSecret, "gateway")
	base := time.Now()
	m.now = func() time.Time { return base }

	first := m.Token()
	if first == "" {
		t.Fatal("expected a token")
	}
	if m.Token() != first {
		t.Error("token should be cached on immediate re-read")
	}

	// Inside the refresh window the token is re-minted.
	base = base.Add(23*time.Hour + 30*time.Minute)
	second := m.Token()
	if second == "" {
		t.Fatal("expected a refreshed token")
	}
	if second == first {
		t.Error("token near expiry should be re-minted")
	}
}

func TestServiceVerifierRejectsUserToken(t *testing.T) {
	// An end-user token signed with the service secret still lacks the
	// type claim and must not pass a service route.
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-123",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testServiceSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	v := NewServiceVerifier(testServiceSecret, "")
	if _, err := v.Verify(token); err == nil {
		t.Error("token without type=service should be rejected")
	}
}

func TestServiceVerifierRotatedSecret(t *testing.T) {
	v := NewServiceVerifier("new-service-secret", testServiceSecret)

	// Services still signing with the previous secret keep working
	// through the rotation window.
	m := NewServiceMinter(testServiceSecret, "chat")
	token, _ := m.Mint()
	name, err := v.Verify(token)
	if err != nil {
		t.Fatalf("previous-secret token should verify: %v", err)
	}
	if name != "chat" {
		t.Errorf("expected serviceName chat, got %q", name)
	}

	// And tokens minted with the current secret verify as well.
	m = NewServiceMinter("new-service-secret", "billing")
	token, _ = m.Mint()
	if _, err := v.Verify(token); err != nil {
		t.Fatalf("current-secret token should verify: %v", err)
	}
}

func TestServiceVerifierRejectsWrongSecret(t *testing.T) {
	m := NewServiceMinter("other-secret", "intruder")
	token, _ := m.Mint()

	v := NewServiceVerifier(testServiceSecret, "")
	if _, err := v.Verify(token); err == nil {
		t.Error("token signed with the wrong secret should be rejected")
	}
}

func TestServiceMiddleware(t *testing.T) {
	v := NewServiceVerifier(testServiceSecret, "")
	handler := v.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Missing header: 403.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/internal/intelligence/run", nil))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without service token, got %d", rec.Code)
	}

	// Valid service token: passes.
	m := NewServiceMinter(testServiceSecret, "chat")
	token, _ := m.Mint()
	req := httptest.NewRequest(http.MethodGet, "/internal/intelligence/run", nil)
	req.Header.Set(ServiceTokenHeader, token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 with service token, got %d", rec.Code)
	}
}
