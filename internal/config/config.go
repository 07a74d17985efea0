package config

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/ecoguard/ecoguard/internal/core/ratelimit"
)

// Rate limit backends.
const (
	BackendMemory = "memory"
	BackendLibsql = "libsql"
	BackendRedis  = "redis"
)

// Config represents the complete application configuration.
// Values come from defaults, an optional YAML file, ECOGUARD_* environment
// variables and runtime overrides, in increasing precedence.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Security  SecurityConfig  `mapstructure:"security"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Health    HealthConfig    `mapstructure:"health"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// MaxRPS caps sustained API throughput across all callers. Zero disables.
	MaxRPS float64 `mapstructure:"max_rps"`
	Burst  int     `mapstructure:"burst"`

	// TrustedProxies lists the IPs or CIDRs whose forwarding headers are
	// honored. Requests from anywhere else are keyed on their peer address.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

// ProxyPrefixes parses TrustedProxies. Bare addresses become single-host
// prefixes.
func (s ServerConfig) ProxyPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(s.TrustedProxies))
	for _, entry := range s.TrustedProxies {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("invalid proxy %q: %w", entry, err)
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy %q: %w", entry, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// StoreConfig contains database configuration for libsql/Turso
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// RedisConfig contains connection settings for the shared counter backend.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// RateLimitConfig selects the counter backend and the limits it enforces.
type RateLimitConfig struct {
	// Backend is one of memory, libsql or redis.
	Backend       string                     `mapstructure:"backend"`
	Max           int                        `mapstructure:"max"`
	Window        time.Duration              `mapstructure:"window"`
	SweepInterval time.Duration              `mapstructure:"sweep_interval"`
	Routes        map[string]ratelimit.Limit `mapstructure:"routes"`
}

// Policies converts the configured limits into limiter policies.
func (c RateLimitConfig) Policies() ratelimit.Policies {
	routes := make(map[string]ratelimit.Limit, len(c.Routes))
	for prefix, limit := range c.Routes {
		routes[prefix] = limit
	}
	return ratelimit.Policies{
		Default: ratelimit.Limit{Max: c.Max, Window: c.Window},
		Routes:  routes,
	}
}

// SecurityConfig feeds the request gate and the API key ring.
type SecurityConfig struct {
	// AllowedOrigins lists CORS origins; "*" allows any.
	AllowedOrigins      []string `mapstructure:"allowed_origins"`
	APIKeys             []string `mapstructure:"api_keys"`
	RulesFile           string   `mapstructure:"rules_file"`
	BlockEmptyUserAgent bool     `mapstructure:"block_empty_user_agent"`
}

// LoggingConfig contains logging configuration
// Supports progressive logging profiles:
// - SIMPLE: Console output only (CLI tools)
// - STRUCTURED: Structured sinks, correlation IDs (API services)
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated metrics endpoint port (Prometheus format)
	Port int `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}
