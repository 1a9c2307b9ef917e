package config

import (
	"time"
)

// Config is the root gateway configuration.
type Config struct {
	Environment string          `yaml:"environment"` // "production" or "development"
	Server      ServerConfig    `yaml:"server"`
	Logging     LoggingConfig   `yaml:"logging"`
	Auth        AuthConfig      `yaml:"auth"`
	CORS        CORSConfig      `yaml:"cors"`
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
	TierCache   TierCacheConfig `yaml:"tier_cache"`
	Health      HealthConfig    `yaml:"health"`
	Proxy       ProxyConfig     `yaml:"proxy"`
	WebSocket   WebSocketConfig `yaml:"websocket"`
	Backends    BackendsConfig  `yaml:"backends"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Address           string        `yaml:"address"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// AuthConfig holds the two independent JWT secrets. The user secret signs
// end-user bearer tokens; the service secret signs gateway-to-backend
// identity tokens. Compromise of one must not compromise the other.
type AuthConfig struct {
	UserSecret            string `yaml:"user_secret"`
	UserSecretPrevious    string `yaml:"user_secret_previous"` // rotation window, optional
	ServiceSecret         string `yaml:"service_secret"`
	ServiceSecretPrevious string `yaml:"service_secret_previous"` // rotation window, optional
	ServiceName           string `yaml:"service_name"`
}

// CORSConfig holds allowed origins. Origins is a comma-separated string so
// it can come straight from a single environment variable.
type CORSConfig struct {
	AllowedOrigins string `yaml:"allowed_origins"`
}

// RateLimitConfig holds fixed-window limiter settings.
type RateLimitConfig struct {
	Enabled       bool          `yaml:"enabled"`
	PathPrefix    string        `yaml:"path_prefix"`
	Window        time.Duration `yaml:"window"`
	MaxRequests   int           `yaml:"max_requests"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// TierCacheConfig bounds the userId -> subscription tier cache.
type TierCacheConfig struct {
	MaxEntries    int           `yaml:"max_entries"`
	TTL           time.Duration `yaml:"ttl"`
	LookupTimeout time.Duration `yaml:"lookup_timeout"`
}

// HealthConfig holds aggregation probe settings.
type HealthConfig struct {
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
}

// ProxyConfig holds upstream dispatch settings.
type ProxyConfig struct {
	Timeout        time.Duration        `yaml:"timeout"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// CircuitBreakerConfig controls the per-backend breaker.
type CircuitBreakerConfig struct {
	Enabled             bool          `yaml:"enabled"`
	ConsecutiveFailures uint32        `yaml:"consecutive_failures"`
	OpenTimeout         time.Duration `yaml:"open_timeout"`
}

// WebSocketConfig holds the connection gateway settings.
type WebSocketConfig struct {
	Path          string        `yaml:"path"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
}

// BackendsConfig maps each backend service to its base URL.
type BackendsConfig struct {
	Auth         string `yaml:"auth"`
	Billing      string `yaml:"billing"`
	Usage        string `yaml:"usage"`
	Chat         string `yaml:"chat"`
	Memory       string `yaml:"memory"`
	Notes        string `yaml:"notes"`
	Study        string `yaml:"study"`
	Quiz         string `yaml:"quiz"`
	NGS          string `yaml:"ngs"`
	MCP          string `yaml:"mcp"`
	Intelligence string `yaml:"intelligence"`
}

// DefaultConfig returns a configuration with sensible defaults applied.
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Address:           ":8080",
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   30 * time.Second,
		},
		Logging: LoggingConfig{Level: "info"},
		Auth: AuthConfig{
			ServiceName: "gateway",
		},
		RateLimit: RateLimitConfig{
			Enabled:       true,
			PathPrefix:    "/api/",
			Window:        15 * time.Minute,
			MaxRequests:   100,
			SweepInterval: 5 * time.Minute,
		},
		TierCache: TierCacheConfig{
			MaxEntries:    1024,
			TTL:           5 * time.Minute,
			LookupTimeout: 4 * time.Second,
		},
		Health: HealthConfig{
			ProbeTimeout: 3 * time.Second,
		},
		Proxy: ProxyConfig{
			Timeout: 30 * time.Second,
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:             true,
				ConsecutiveFailures: 5,
				OpenTimeout:         30 * time.Second,
			},
		},
		WebSocket: WebSocketConfig{
			Path:          "/ws/chat",
			SweepInterval: 30 * time.Second,
			WriteTimeout:  10 * time.Second,
		},
	}
}

// AllowedOriginList splits the comma-separated CORS origin string.
func (c CORSConfig) AllowedOriginList() []string {
	return splitAndTrim(c.AllowedOrigins)
}
