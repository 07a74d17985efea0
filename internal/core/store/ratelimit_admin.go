package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ecoguard/ecoguard/internal/core/ratelimit"
)

var _ ratelimit.Admin = (*Store)(nil)

// ErrEmptyScope is returned when a Scope selects nothing explicitly.
var ErrEmptyScope = errors.New("store: scope needs a key, a prefix or all")

// Scope selects rate limit records by exact key, key prefix, or all of them.
type Scope struct {
	All    bool
	Key    string
	Prefix string
}

// ScopeForPrefix maps the ratelimit.Admin prefix convention onto a Scope:
// a blank prefix selects every record.
func ScopeForPrefix(prefix string) Scope {
	if strings.TrimSpace(prefix) == "" {
		return Scope{All: true}
	}
	return Scope{Prefix: prefix}
}

func (sc Scope) filter() (string, []any, error) {
	key, prefix := strings.TrimSpace(sc.Key), strings.TrimSpace(sc.Prefix)
	switch {
	case sc.All:
		return "", nil, nil
	case key != "":
		return "WHERE key = ?", []any{key}, nil
	case prefix != "":
		return `WHERE key LIKE ? ESCAPE '\'`, []any{likeEscaper.Replace(prefix) + "%"}, nil
	default:
		return "", nil, ErrEmptyScope
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// scoped checks the store and resolves sc into a WHERE clause.
func (s *Store) scoped(ctx context.Context, sc Scope) (context.Context, string, []any, error) {
	if s == nil || s.DB == nil {
		return ctx, "", nil, ErrNotInitialized
	}
	if ctx == nil {
		ctx = context.Background()
	}
	where, args, err := sc.filter()
	return ctx, where, args, err
}

// Records returns the records in sc ordered by key.
func (s *Store) Records(ctx context.Context, sc Scope) ([]ratelimit.Record, error) {
	ctx, where, args, err := s.scoped(ctx, sc)
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx,
		"SELECT key, count, window_reset_at FROM rate_limit_records "+where+" ORDER BY key", args...)
	if err != nil {
		return nil, fmt.Errorf("list rate limits: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	records := []ratelimit.Record{}
	for rows.Next() {
		var rec ratelimit.Record
		var resetMillis int64
		if err := rows.Scan(&rec.Key, &rec.Count, &resetMillis); err != nil {
			return nil, fmt.Errorf("scan rate limits: %w", err)
		}
		rec.WindowResetAt = time.UnixMilli(resetMillis).UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rate limits: %w", err)
	}
	return records, nil
}

// Count returns how many records sc selects.
func (s *Store) Count(ctx context.Context, sc Scope) (int, error) {
	ctx, where, args, err := s.scoped(ctx, sc)
	if err != nil {
		return 0, err
	}

	var n int
	if err := s.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM rate_limit_records "+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rate limits: %w", err)
	}
	return n, nil
}

// Delete removes the records in sc. It holds hitMu so a concurrent Hit
// cannot resurrect a counter mid-delete.
func (s *Store) Delete(ctx context.Context, sc Scope) (int64, error) {
	ctx, where, args, err := s.scoped(ctx, sc)
	if err != nil {
		return 0, err
	}

	s.hitMu.Lock()
	defer s.hitMu.Unlock()

	result, err := s.DB.ExecContext(ctx, "DELETE FROM rate_limit_records "+where, args...)
	if err != nil {
		return 0, fmt.Errorf("reset rate limits: %w", err)
	}
	return result.RowsAffected()
}

// List implements ratelimit.Admin.
func (s *Store) List(ctx context.Context, prefix string) ([]ratelimit.Record, error) {
	return s.Records(ctx, ScopeForPrefix(prefix))
}

// Reset implements ratelimit.Admin.
func (s *Store) Reset(ctx context.Context, prefix string) (int64, error) {
	return s.Delete(ctx, ScopeForPrefix(prefix))
}

// Len implements ratelimit.Admin.
func (s *Store) Len(ctx context.Context) (int, error) {
	return s.Count(ctx, Scope{All: true})
}
