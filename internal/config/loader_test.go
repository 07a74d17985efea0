package config

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoguard/ecoguard/internal/core/ratelimit"
)

func newViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	BindEnv(v)
	return v
}

func TestLoad(t *testing.T) {
	t.Run("LoadDefaults", func(t *testing.T) {
		t.Setenv("XDG_DATA_HOME", t.TempDir())

		cfg, err := Load(newViper(t))
		require.NoError(t, err)
		require.NotNil(t, cfg)

		// Verify server defaults
		assert.Equal(t, "localhost", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
		assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
		assert.Equal(t, 120*time.Second, cfg.Server.IdleTimeout)
		assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
		assert.Zero(t, cfg.Server.MaxRPS)

		// Verify store defaults
		assert.Equal(t, "libsql", cfg.Store.Driver)
		expectedStorePath := filepath.Join(gfconfig.GetAppDataDir("ecoguard"), "ecoguard.db")
		assert.Equal(t, expectedStorePath, cfg.Store.Path)

		// Verify rate limit defaults
		assert.Equal(t, BackendMemory, cfg.RateLimit.Backend)
		assert.Equal(t, 100, cfg.RateLimit.Max)
		assert.Equal(t, 15*time.Minute, cfg.RateLimit.Window)
		assert.Equal(t, 5*time.Minute, cfg.RateLimit.SweepInterval)

		// Verify security defaults
		assert.Equal(t, []string{"*"}, cfg.Security.AllowedOrigins)
		assert.Empty(t, cfg.Security.APIKeys)
		assert.False(t, cfg.Security.BlockEmptyUserAgent)

		assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
		assert.Equal(t, 2*time.Second, cfg.Redis.Timeout)

		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, "STRUCTURED", cfg.Logging.Profile)
		assert.True(t, cfg.Metrics.Enabled)
		assert.Equal(t, 9090, cfg.Metrics.Port)
		assert.True(t, cfg.Health.Enabled)
	})

	t.Run("RuntimeOverrides", func(t *testing.T) {
		overrides := map[string]any{
			"server": map[string]any{
				"port": 9000,
				"host": "0.0.0.0",
			},
			"logging": map[string]any{
				"level": "debug",
			},
		}

		cfg, err := Load(newViper(t), overrides)
		require.NoError(t, err)

		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 9000, cfg.Server.Port)
		assert.Equal(t, "debug", cfg.Logging.Level)

		// Verify non-overridden values remain default
		assert.Equal(t, "STRUCTURED", cfg.Logging.Profile)
		assert.Equal(t, 9090, cfg.Metrics.Port)
	})

	t.Run("EnvOverrides", func(t *testing.T) {
		t.Setenv("ECOGUARD_SERVER_PORT", "3000")
		t.Setenv("ECOGUARD_LOGGING_LEVEL", "warn")
		t.Setenv("ECOGUARD_METRICS_ENABLED", "false")
		t.Setenv("ECOGUARD_RATE_LIMIT_MAX", "25")
		t.Setenv("ECOGUARD_RATE_LIMIT_WINDOW", "1m")
		t.Setenv("ECOGUARD_RATE_LIMIT_BACKEND", "redis")

		cfg, err := Load(newViper(t))
		require.NoError(t, err)

		assert.Equal(t, 3000, cfg.Server.Port)
		assert.Equal(t, "warn", cfg.Logging.Level)
		assert.False(t, cfg.Metrics.Enabled)
		assert.Equal(t, 25, cfg.RateLimit.Max)
		assert.Equal(t, time.Minute, cfg.RateLimit.Window)
		assert.Equal(t, BackendRedis, cfg.RateLimit.Backend)
	})

	t.Run("LegacyEnv", func(t *testing.T) {
		t.Setenv(EnvAllowedOrigins, "https://a.example, https://b.example")
		t.Setenv(EnvAPIKey1, "key-one")
		t.Setenv(EnvAPIKey2, "key-two")

		cfg, err := Load(newViper(t))
		require.NoError(t, err)

		assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Security.AllowedOrigins)
		assert.Equal(t, []string{"key-one", "key-two"}, cfg.Security.APIKeys)
	})

	t.Run("ConfigPrecedence", func(t *testing.T) {
		t.Setenv("ECOGUARD_SERVER_PORT", "4000")

		overrides := map[string]any{
			"server": map[string]any{
				"port": 5000,
			},
		}

		cfg, err := Load(newViper(t), overrides)
		require.NoError(t, err)

		// Runtime override should take precedence over env var
		assert.Equal(t, 5000, cfg.Server.Port)
	})

	t.Run("NilViperUsesDefaults", func(t *testing.T) {
		cfg, err := Load(nil)
		require.NoError(t, err)
		assert.Equal(t, 8080, cfg.Server.Port)
	})
}

func TestLoadRouteLimits(t *testing.T) {
	overrides := map[string]any{
		"rate_limit": map[string]any{
			"routes": map[string]any{
				"/api/alerts": map[string]any{"max": 10, "window": "1m"},
			},
		},
	}

	cfg, err := Load(newViper(t), overrides)
	require.NoError(t, err)

	policies := cfg.RateLimit.Policies()
	assert.Equal(t, ratelimit.Limit{Max: 10, Window: time.Minute}, policies.For("/api/alerts"))
	assert.Equal(t, ratelimit.DefaultLimit, policies.For("/api/sensors/readings"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]any
		key       string
	}{
		{
			name:      "ZeroMax",
			overrides: map[string]any{"rate_limit": map[string]any{"max": 0}},
			key:       "rate_limit",
		},
		{
			name:      "NegativeWindow",
			overrides: map[string]any{"rate_limit": map[string]any{"window": "-1s"}},
			key:       "rate_limit",
		},
		{
			name:      "UnknownBackend",
			overrides: map[string]any{"rate_limit": map[string]any{"backend": "memcached"}},
			key:       "rate_limit.backend",
		},
		{
			name:      "BadPort",
			overrides: map[string]any{"server": map[string]any{"port": 70000}},
			key:       "server.port",
		},
		{
			name:      "RPSWithoutBurst",
			overrides: map[string]any{"server": map[string]any{"max_rps": 10, "burst": 0}},
			key:       "server.burst",
		},
		{
			name:      "BadTrustedProxy",
			overrides: map[string]any{"server": map[string]any{"trusted_proxies": []string{"10.0.0.0/8", "not-an-ip"}}},
			key:       "server.trusted_proxies",
		},
		{
			name: "RouteWithoutSlash",
			overrides: map[string]any{"rate_limit": map[string]any{
				"routes": map[string]any{"api": map[string]any{"max": 1, "window": "1s"}},
			}},
			key: "rate_limit.routes.api",
		},
		{
			name: "RouteZeroWindow",
			overrides: map[string]any{"rate_limit": map[string]any{
				"routes": map[string]any{"/api": map[string]any{"max": 1, "window": "0s"}},
			}},
			key: "rate_limit.routes./api",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(newViper(t), tt.overrides)
			require.Error(t, err)
			require.ErrorIs(t, err, ErrInvalid)

			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.key, cfgErr.Key)
		})
	}

	t.Run("LimitErrorsKeepSentinel", func(t *testing.T) {
		_, err := Load(newViper(t), map[string]any{"rate_limit": map[string]any{"max": -1}})
		require.ErrorIs(t, err, ratelimit.ErrInvalidConfig)
	})
}

func TestGetConfig(t *testing.T) {
	cfg, err := Load(newViper(t))
	require.NoError(t, err)

	retrieved := GetConfig()
	require.NotNil(t, retrieved)
	assert.Equal(t, cfg.Server.Port, retrieved.Server.Port)
}

func TestDurationParsing(t *testing.T) {
	t.Setenv("ECOGUARD_SERVER_READ_TIMEOUT", "45s")
	t.Setenv("ECOGUARD_SERVER_SHUTDOWN_TIMEOUT", "5m")

	cfg, err := Load(newViper(t))
	require.NoError(t, err)

	assert.Equal(t, 45*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Server.ShutdownTimeout)
}

func TestConfigReload(t *testing.T) {
	v := newViper(t)

	cfg1, err := Load(v)
	require.NoError(t, err)
	initialPort := cfg1.Server.Port

	cfg2, err := Load(v, map[string]any{
		"server": map[string]any{"port": initialPort + 1000},
	})
	require.NoError(t, err)
	assert.Equal(t, initialPort+1000, cfg2.Server.Port)
	assert.Equal(t, cfg2.Server.Port, GetConfig().Server.Port)
}

func TestProxyPrefixes(t *testing.T) {
	t.Setenv("ECOGUARD_SERVER_TRUSTED_PROXIES", "10.0.0.0/8, 192.0.2.7,2001:db8::/32")

	cfg, err := Load(newViper(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.7", "2001:db8::/32"}, cfg.Server.TrustedProxies)

	prefixes, err := cfg.Server.ProxyPrefixes()
	require.NoError(t, err)
	require.Len(t, prefixes, 3)
	assert.Equal(t, "10.0.0.0/8", prefixes[0].String())
	assert.Equal(t, "192.0.2.7/32", prefixes[1].String())
	assert.Equal(t, "2001:db8::/32", prefixes[2].String())

	none, err := ServerConfig{}.ProxyPrefixes()
	require.NoError(t, err)
	assert.Empty(t, none)
}
