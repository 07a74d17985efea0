// Package config provides centralized configuration management for ecoguard.
// Defaults are registered on a viper instance, which layers the optional
// config file and ECOGUARD_* environment variables on top; Load decodes the
// merged settings into a typed Config and validates it.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/ecoguard/ecoguard/internal/core/ratelimit"
)

// AppName names config, data and env namespaces.
const AppName = "ecoguard"

// EnvPrefix is prepended to every environment variable viper resolves.
const EnvPrefix = "ECOGUARD"

// ErrInvalid marks a configuration that cannot be used to start the service.
var ErrInvalid = errors.New("invalid configuration")

// ConfigurationError names the offending key.
type ConfigurationError struct {
	Key    string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrInvalid, e.Key, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", ErrInvalid, e.Key, e.Reason)
}

func (e *ConfigurationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalid, e.Err}
	}
	return []error{ErrInvalid}
}

// Legacy environment variables read without the ECOGUARD_ prefix.
const (
	EnvAllowedOrigins = "ALLOWED_ORIGINS"
	EnvAPIKey1        = "API_KEY_1"
	EnvAPIKey2        = "API_KEY_2"
)

var (
	appConfig *Config
	configMu  sync.RWMutex
)

// SetDefaults registers every known key so env lookups and AllSettings see it.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.max_rps", 0)
	v.SetDefault("server.burst", 0)
	v.SetDefault("server.trusted_proxies", []string{})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "STRUCTURED")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	v.SetDefault("health.enabled", true)

	// Rate limit defaults
	v.SetDefault("rate_limit.backend", BackendMemory)
	v.SetDefault("rate_limit.max", ratelimit.DefaultLimit.Max)
	v.SetDefault("rate_limit.window", ratelimit.DefaultLimit.Window)
	v.SetDefault("rate_limit.sweep_interval", ratelimit.DefaultSweepInterval)
	v.SetDefault("rate_limit.routes", map[string]any{})

	// Store defaults
	v.SetDefault("store.driver", "libsql")
	v.SetDefault("store.path", "")
	v.SetDefault("store.url", "")
	v.SetDefault("store.auth_token", "")

	// Redis defaults
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "ecoguard:ratelimit:")
	v.SetDefault("redis.timeout", 2*time.Second)

	// Security defaults
	v.SetDefault("security.allowed_origins", []string{"*"})
	v.SetDefault("security.api_keys", []string{})
	v.SetDefault("security.rules_file", "")
	v.SetDefault("security.block_empty_user_agent", false)
}

// BindEnv enables ECOGUARD_SECTION_KEY lookups and the unprefixed legacy
// ALLOWED_ORIGINS variable.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("security.allowed_origins", EnvPrefix+"_SECURITY_ALLOWED_ORIGINS", EnvAllowedOrigins)
}

// Load decodes the settings held by v, applies runtime overrides and
// validates the result. Safe to call again on reload.
func Load(v *viper.Viper, runtimeOverrides ...map[string]any) (*Config, error) {
	if v == nil {
		v = viper.New()
		SetDefaults(v)
		BindEnv(v)
	}

	merged := v.AllSettings()
	for _, overrides := range runtimeOverrides {
		mergeMaps(merged, overrides)
	}

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(merged); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Security.AllowedOrigins = cleanList(cfg.Security.AllowedOrigins)
	cfg.Server.TrustedProxies = cleanList(cfg.Server.TrustedProxies)
	cfg.Security.APIKeys = cleanList(append(cfg.Security.APIKeys, legacyAPIKeys()...))

	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	setConfig(cfg)

	return cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return &ConfigurationError{Key: "server.port", Reason: fmt.Sprintf("must be between 1 and 65535 (got %d)", c.Server.Port)}
	}
	if c.Server.MaxRPS < 0 {
		return &ConfigurationError{Key: "server.max_rps", Reason: "must not be negative"}
	}
	if c.Server.MaxRPS > 0 && c.Server.Burst < 1 {
		return &ConfigurationError{Key: "server.burst", Reason: "must be at least 1 when server.max_rps is set"}
	}
	if _, err := c.Server.ProxyPrefixes(); err != nil {
		return &ConfigurationError{Key: "server.trusted_proxies", Err: err}
	}

	switch c.RateLimit.Backend {
	case BackendMemory, BackendLibsql:
	case BackendRedis:
		if strings.TrimSpace(c.Redis.Addr) == "" {
			return &ConfigurationError{Key: "redis.addr", Reason: "required for the redis backend"}
		}
	default:
		return &ConfigurationError{Key: "rate_limit.backend", Reason: fmt.Sprintf("unsupported backend %q (use memory, libsql or redis)", c.RateLimit.Backend)}
	}

	if c.RateLimit.SweepInterval <= 0 {
		return &ConfigurationError{Key: "rate_limit.sweep_interval", Reason: "must be positive"}
	}
	if err := (ratelimit.Limit{Max: c.RateLimit.Max, Window: c.RateLimit.Window}).Validate(); err != nil {
		return &ConfigurationError{Key: "rate_limit", Err: err}
	}

	prefixes := make([]string, 0, len(c.RateLimit.Routes))
	for prefix := range c.RateLimit.Routes {
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)
	for _, prefix := range prefixes {
		if !strings.HasPrefix(prefix, "/") {
			return &ConfigurationError{Key: "rate_limit.routes." + prefix, Reason: "route prefix must start with /"}
		}
		if err := c.RateLimit.Routes[prefix].Validate(); err != nil {
			return &ConfigurationError{Key: "rate_limit.routes." + prefix, Err: err}
		}
	}

	return nil
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// DefaultConfigDir returns the XDG-compliant config directory for the app.
func DefaultConfigDir() string {
	return gfconfig.GetAppConfigDir(AppName)
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configDir := DefaultConfigDir()
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// DefaultStorePath returns the XDG-compliant path to the rate limit database.
func DefaultStorePath() string {
	dataDir := gfconfig.GetAppDataDir(AppName)
	if strings.TrimSpace(dataDir) == "" {
		return "./" + AppName + ".db"
	}
	return filepath.Join(dataDir, AppName+".db")
}

func legacyAPIKeys() []string {
	var keys []string
	for _, name := range []string{EnvAPIKey1, EnvAPIKey2} {
		if value := strings.TrimSpace(os.Getenv(name)); value != "" {
			keys = append(keys, value)
		}
	}
	return keys
}

func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

func mergeMaps(dst, src map[string]any) {
	for key, value := range src {
		key = strings.ToLower(key)
		srcMap, srcIsMap := value.(map[string]any)
		dstMap, dstIsMap := dst[key].(map[string]any)
		if srcIsMap && dstIsMap {
			mergeMaps(dstMap, srcMap)
			continue
		}
		dst[key] = value
	}
}
