package cmd

import (
	"context"
	"fmt"

	"github.com/ecoguard/ecoguard/internal/config"
	"github.com/ecoguard/ecoguard/internal/core/ratelimit"
	"github.com/ecoguard/ecoguard/internal/core/store"
	"github.com/ecoguard/ecoguard/internal/core/store/redisstore"
)

// backend is an opened rate limit store with its admin surface and health probe.
type backend struct {
	name  string
	store ratelimit.Store
	admin ratelimit.Admin
	ping  func(ctx context.Context) error
	close func() error
}

// openBackend opens the store selected by rate_limit.backend.
func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	switch cfg.RateLimit.Backend {
	case config.BackendMemory, "":
		mem := ratelimit.NewMemoryStore()
		return &backend{
			name:  config.BackendMemory,
			store: mem,
			admin: mem,
			ping:  func(context.Context) error { return nil },
			close: func() error { return nil },
		}, nil

	case config.BackendLibsql:
		db, err := store.OpenMigrated(ctx, cfg.Store)
		if err != nil {
			return nil, fmt.Errorf("open libsql store: %w", err)
		}
		return &backend{
			name:  config.BackendLibsql,
			store: db,
			admin: db,
			ping:  db.Ping,
			close: db.Close,
		}, nil

	case config.BackendRedis:
		rs, err := redisstore.Dial(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("connect redis store: %w", err)
		}
		return &backend{
			name:  config.BackendRedis,
			store: rs,
			admin: rs,
			ping:  rs.Ping,
			close: rs.Close,
		}, nil

	default:
		return nil, &config.ConfigurationError{
			Key:    "rate_limit.backend",
			Reason: fmt.Sprintf("unknown backend %q", cfg.RateLimit.Backend),
		}
	}
}

// openAdminBackend opens a backend whose state outlives the process. The
// memory backend is rejected because its counters live inside `serve`.
func openAdminBackend(ctx context.Context) (*backend, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.RateLimit.Backend == config.BackendMemory {
		return nil, fmt.Errorf("rate_limit.backend is %q: counters live inside the server process, use the /api/ratelimit/records routes instead", config.BackendMemory)
	}
	return openBackend(ctx, cfg)
}
