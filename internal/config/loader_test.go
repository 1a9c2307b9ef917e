package config

import (
	"strings"
	"testing"
	"time"
)

const validYAML = `
environment: production
auth:
  user_secret: ${TEST_USER_SECRET}
  service_secret: ${TEST_SERVICE_SECRET}
  service_name: gateway
backends:
  auth: http://auth:3000
  billing: http://billing:3000
  usage: http://usage:3000
  chat: http://chat:3000
  memory: http://memory:3000
  notes: http://notes:3000
  study: http://study:3000
  quiz: http://quiz:3000
  ngs: http://ngs:3000
  mcp: http://mcp:3000
  intelligence: http://intelligence:3000
`

func setSecrets(t *testing.T) {
	t.Helper()
	t.Setenv("TEST_USER_SECRET", "user-secret")
	t.Setenv("TEST_SERVICE_SECRET", "service-secret")
}

func TestParseExpandsEnvVars(t *testing.T) {
	setSecrets(t)

	cfg, err := NewLoader().Parse([]byte(validYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Auth.UserSecret != "user-secret" {
		t.Errorf("expected expanded user secret, got %q", cfg.Auth.UserSecret)
	}
	if cfg.Auth.ServiceSecret != "service-secret" {
		t.Errorf("expected expanded service secret, got %q", cfg.Auth.ServiceSecret)
	}
}

func TestParseAppliesDefaults(t *testing.T) {
	setSecrets(t)

	cfg, err := NewLoader().Parse([]byte(validYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.RateLimit.Window != 15*time.Minute {
		t.Errorf("expected default 15m window, got %v", cfg.RateLimit.Window)
	}
	if cfg.RateLimit.MaxRequests != 100 {
		t.Errorf("expected default 100 requests, got %d", cfg.RateLimit.MaxRequests)
	}
	if cfg.TierCache.TTL != 5*time.Minute {
		t.Errorf("expected default 5m tier TTL, got %v", cfg.TierCache.TTL)
	}
	if cfg.WebSocket.SweepInterval != 30*time.Second {
		t.Errorf("expected default 30s sweep, got %v", cfg.WebSocket.SweepInterval)
	}
	if cfg.Server.Address != ":8080" {
		t.Errorf("expected default address, got %q", cfg.Server.Address)
	}
}

func TestParseMissingUserSecretFatal(t *testing.T) {
	// The variable is deliberately unset: it expands to "" and validation
	// must refuse to start an unauthenticated gateway.
	t.Setenv("TEST_SERVICE_SECRET", "service-secret")
	t.Setenv("TEST_USER_SECRET", "")

	_, err := NewLoader().Parse([]byte(validYAML))
	if err == nil {
		t.Fatal("expected error for missing user secret")
	}
	if !strings.Contains(err.Error(), "user_secret") {
		t.Errorf("error should name the missing secret: %v", err)
	}
}

func TestParseMissingServiceSecretFatal(t *testing.T) {
	t.Setenv("TEST_USER_SECRET", "user-secret")
	t.Setenv("TEST_SERVICE_SECRET", "")

	if _, err := NewLoader().Parse([]byte(validYAML)); err == nil {
		t.Fatal("expected error for missing service secret")
	}
}

func TestParseIdenticalSecretsFatal(t *testing.T) {
	t.Setenv("TEST_USER_SECRET", "same")
	t.Setenv("TEST_SERVICE_SECRET", "same")

	_, err := NewLoader().Parse([]byte(validYAML))
	if err == nil {
		t.Fatal("expected error for identical secrets")
	}
	if !strings.Contains(err.Error(), "distinct") {
		t.Errorf("error should explain the distinctness requirement: %v", err)
	}
}

func TestParseMissingBackendFatal(t *testing.T) {
	setSecrets(t)

	yaml := strings.Replace(validYAML, "  chat: http://chat:3000\n", "", 1)
	_, err := NewLoader().Parse([]byte(yaml))
	if err == nil {
		t.Fatal("expected error for missing backend URL")
	}
	if !strings.Contains(err.Error(), "chat") {
		t.Errorf("error should name the backend: %v", err)
	}
}

func TestParseInvalidBackendURLFatal(t *testing.T) {
	setSecrets(t)

	yaml := strings.Replace(validYAML, "http://chat:3000", "not a url", 1)
	if _, err := NewLoader().Parse([]byte(yaml)); err == nil {
		t.Fatal("expected error for invalid backend URL")
	}
}

func TestParseInvalidRateLimitFatal(t *testing.T) {
	setSecrets(t)

	yaml := validYAML + `
rate_limit:
  enabled: true
  max_requests: -5
`
	if _, err := NewLoader().Parse([]byte(yaml)); err == nil {
		t.Fatal("expected error for negative rate limit")
	}
}

func TestAllowedOriginList(t *testing.T) {
	c := CORSConfig{AllowedOrigins: "https://app.example.com, https://admin.example.com ,"}
	got := c.AllowedOriginList()
	if len(got) != 2 {
		t.Fatalf("expected 2 origins, got %v", got)
	}
	if got[0] != "https://app.example.com" || got[1] != "https://admin.example.com" {
		t.Errorf("origins not trimmed: %v", got)
	}
}
