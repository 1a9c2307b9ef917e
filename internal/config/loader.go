package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/goccy/go-yaml"
)

// Loader handles configuration loading and parsing.
type Loader struct {
	envPattern *regexp.Regexp
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		envPattern: regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`),
	}
}

// Load reads and parses a configuration file.
func (l *Loader) Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return l.Parse(data)
}

// Parse parses configuration from YAML bytes. Environment variables are
// expanded before unmarshalling, so secrets never need to live in the file.
func (l *Loader) Parse(data []byte) (*Config, error) {
	expanded := l.expandEnvVars(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := l.validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} with environment variable values.
// Unset variables expand to the empty string so validation catches them.
func (l *Loader) expandEnvVars(input string) string {
	return l.envPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := strings.TrimPrefix(strings.TrimSuffix(match, "}"), "${")
		return os.Getenv(varName)
	})
}

// validate checks configuration for errors. Running without either JWT
// secret would mean running with authentication disabled, so both are
// startup-fatal.
func (l *Loader) validate(cfg *Config) error {
	if cfg.Server.Address == "" {
		return fmt.Errorf("server address is required")
	}

	if cfg.Auth.UserSecret == "" {
		return fmt.Errorf("auth.user_secret is required (USER_JWT_SECRET)")
	}
	if cfg.Auth.ServiceSecret == "" {
		return fmt.Errorf("auth.service_secret is required (SERVICE_JWT_SECRET)")
	}
	if cfg.Auth.UserSecret == cfg.Auth.ServiceSecret {
		return fmt.Errorf("user and service secrets must be distinct")
	}
	if cfg.Auth.ServiceName == "" {
		return fmt.Errorf("auth.service_name is required")
	}

	for name, base := range cfg.Backends.All() {
		if base == "" {
			return fmt.Errorf("backend %q: base URL is required", name)
		}
		u, err := url.Parse(base)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("backend %q: invalid base URL %q", name, base)
		}
	}

	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.MaxRequests <= 0 {
			return fmt.Errorf("rate_limit.max_requests must be positive")
		}
		if cfg.RateLimit.Window <= 0 {
			return fmt.Errorf("rate_limit.window must be positive")
		}
	}

	if cfg.TierCache.MaxEntries <= 0 {
		return fmt.Errorf("tier_cache.max_entries must be positive")
	}

	return nil
}

// All returns the backend base URLs keyed by service name.
func (b BackendsConfig) All() map[string]string {
	return map[string]string{
		"auth":         b.Auth,
		"billing":      b.Billing,
		"usage":        b.Usage,
		"chat":         b.Chat,
		"memory":       b.Memory,
		"notes":        b.Notes,
		"study":        b.Study,
		"quiz":         b.Quiz,
		"ngs":          b.NGS,
		"mcp":          b.MCP,
		"intelligence": b.Intelligence,
	}
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
