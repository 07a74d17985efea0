// Package redisstore shares rate limit counters between service instances
// through Redis.
package redisstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ecoguard/ecoguard/internal/config"
	"github.com/ecoguard/ecoguard/internal/core/ratelimit"
)

//go:embed fixed_window.lua
var fixedWindowScript string

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "ecoguard:ratelimit:"

const scanBatch = 256

var (
	_ ratelimit.Store = (*Store)(nil)
	_ ratelimit.Admin = (*Store)(nil)
)

// Store keeps fixed-window counters in Redis hashes that expire when their
// window closes.
type Store struct {
	client  redis.UniversalClient
	prefix  string
	timeout time.Duration
	script  *redis.Script
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix overrides DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithTimeout bounds each Redis round trip. Zero leaves the caller's context alone.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Store) {
		s.timeout = timeout
	}
}

// New wraps an existing client.
func New(client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		client: client,
		prefix: DefaultPrefix,
		script: redis.NewScript(fixedWindowScript),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dial connects to Redis and verifies the connection.
func Dial(ctx context.Context, cfg config.RedisConfig) (*Store, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, errors.New("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr, err)
	}

	return New(client, WithPrefix(cfg.Prefix), WithTimeout(cfg.Timeout)), nil
}

// Hit runs the fixed-window transition atomically on the Redis server.
func (s *Store) Hit(ctx context.Context, key string, limit ratelimit.Limit, now time.Time) (ratelimit.Decision, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	values, err := s.script.Run(ctx, s.client, []string{s.prefix + key},
		limit.Max,
		limit.Window.Milliseconds(),
		now.UnixMilli(),
	).Int64Slice()
	if err != nil {
		return ratelimit.Decision{}, fmt.Errorf("redis rate limit hit: %w", err)
	}
	if len(values) != 3 {
		return ratelimit.Decision{}, fmt.Errorf("redis rate limit hit: unexpected reply length %d", len(values))
	}

	decision := ratelimit.Decision{
		Allowed: values[0] == 1,
		Limit:   limit.Max,
		ResetAt: time.UnixMilli(values[2]).UTC(),
	}
	if decision.Allowed {
		decision.Remaining = limit.Max - int(values[1])
	}
	return decision, nil
}

// Sweep is a no-op: Redis expires each record when its window closes.
func (s *Store) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}

// List returns stored records whose key starts with prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]ratelimit.Record, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	keys, err := s.scan(ctx, prefix)
	if err != nil {
		return nil, err
	}

	records := make([]ratelimit.Record, 0, len(keys))
	for _, full := range keys {
		fields, err := s.client.HMGet(ctx, full, "count", "reset").Result()
		if err != nil {
			return nil, fmt.Errorf("redis read %s: %w", full, err)
		}
		count, okCount := parseInt(fields[0])
		reset, okReset := parseInt(fields[1])
		if !okCount || !okReset {
			continue
		}
		records = append(records, ratelimit.Record{
			Key:           strings.TrimPrefix(full, s.prefix),
			Count:         int(count),
			WindowResetAt: time.UnixMilli(reset).UTC(),
		})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Key < records[j].Key })
	return records, nil
}

// Reset deletes records whose key starts with prefix.
func (s *Store) Reset(ctx context.Context, prefix string) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	keys, err := s.scan(ctx, prefix)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}

	deleted, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis reset: %w", err)
	}
	return deleted, nil
}

// Len counts stored records.
func (s *Store) Len(ctx context.Context) (int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	keys, err := s.scan(ctx, "")
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.client.Ping(ctx).Err()
}

// Close releases the client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) scan(ctx context.Context, prefix string) ([]string, error) {
	pattern := escapeGlob(s.prefix+prefix) + "*"

	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := s.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan: %w", err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func escapeGlob(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
	return replacer.Replace(value)
}

func parseInt(value any) (int64, bool) {
	switch v := value.(type) {
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	case int64:
		return v, true
	default:
		return 0, false
	}
}
