package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ecoguard/ecoguard/internal/core/ratelimit"
)

var _ ratelimit.Store = (*Store)(nil)

// Hit applies one fixed-window hit to key inside a transaction.
func (s *Store) Hit(ctx context.Context, key string, limit ratelimit.Limit, now time.Time) (ratelimit.Decision, error) {
	if s == nil || s.DB == nil {
		return ratelimit.Decision{}, ErrNotInitialized
	}
	if ctx == nil {
		ctx = context.Background()
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return ratelimit.Decision{}, errors.New("rate limit key is required")
	}

	s.hitMu.Lock()
	defer s.hitMu.Unlock()

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return ratelimit.Decision{}, fmt.Errorf("begin rate limit hit: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck // no-op after commit

	var (
		count   int
		resetAt int64
		found   = true
	)
	row := tx.QueryRowContext(ctx, `
		SELECT count, window_reset_at
		FROM rate_limit_records
		WHERE key = ?
	`, key)
	if err := row.Scan(&count, &resetAt); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return ratelimit.Decision{}, fmt.Errorf("fetch rate limit record: %w", err)
		}
		found = false
	}

	current := ratelimit.Record{Key: key, Count: count, WindowResetAt: time.UnixMilli(resetAt).UTC()}
	next, decision := ratelimit.Advance(current, found, key, limit, now)
	if !decision.Allowed {
		return decision, nil
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO rate_limit_records (key, count, window_reset_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			count = excluded.count,
			window_reset_at = excluded.window_reset_at
	`, key, next.Count, next.WindowResetAt.UnixMilli()); err != nil {
		return ratelimit.Decision{}, fmt.Errorf("store rate limit record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return ratelimit.Decision{}, fmt.Errorf("commit rate limit hit: %w", err)
	}
	return decision, nil
}

// Sweep deletes every record whose window closed at or before now.
func (s *Store) Sweep(ctx context.Context, now time.Time) (int, error) {
	if s == nil || s.DB == nil {
		return 0, ErrNotInitialized
	}
	if ctx == nil {
		ctx = context.Background()
	}

	s.hitMu.Lock()
	defer s.hitMu.Unlock()

	result, err := s.DB.ExecContext(ctx, `
		DELETE FROM rate_limit_records
		WHERE window_reset_at <= ?
	`, now.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("sweep rate limit records: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sweep rate limit records: %w", err)
	}
	return int(affected), nil
}
