// Package ratelimit implements fixed-window request counting keyed by caller
// and route.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidConfig marks a limit that can never be enforced.
var ErrInvalidConfig = errors.New("invalid rate limit configuration")

// DefaultLimit applies when no route policy matches.
var DefaultLimit = Limit{Max: 100, Window: 15 * time.Minute}

// Limit represents a fixed window: at most Max hits per Window.
type Limit struct {
	Max    int           `json:"max" mapstructure:"max"`
	Window time.Duration `json:"window" mapstructure:"window"`
}

// ConfigurationError reports which field of a Limit is unusable.
type ConfigurationError struct {
	Field string
	Value any
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s must be positive (got %v)", ErrInvalidConfig, e.Field, e.Value)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrInvalidConfig
}

// Validate rejects non-positive max or window values.
func (l Limit) Validate() error {
	if l.Max <= 0 {
		return &ConfigurationError{Field: "max", Value: l.Max}
	}
	if l.Window <= 0 {
		return &ConfigurationError{Field: "window", Value: l.Window}
	}
	return nil
}

// Record is the stored counter for one key.
type Record struct {
	Key           string    `json:"key"`
	Count         int       `json:"count"`
	WindowResetAt time.Time `json:"window_reset_at"`
}

// Expired reports whether the window has closed at now.
func (r Record) Expired(now time.Time) bool {
	return !now.Before(r.WindowResetAt)
}

// Decision is the outcome of a single hit.
type Decision struct {
	Allowed   bool      `json:"allowed"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// RetryAfter returns the whole seconds a denied caller should wait, at least one.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	wait := d.ResetAt.Sub(now)
	secs := math.Ceil(wait.Seconds())
	if secs < 1 {
		secs = 1
	}
	return time.Duration(secs) * time.Second
}

// Advance applies one hit to rec and returns the record to persist with the
// decision. A denied hit returns rec untouched.
func Advance(rec Record, found bool, key string, limit Limit, now time.Time) (Record, Decision) {
	if !found || rec.Expired(now) {
		next := Record{Key: key, Count: 1, WindowResetAt: now.Add(limit.Window)}
		return next, Decision{
			Allowed:   true,
			Limit:     limit.Max,
			Remaining: limit.Max - 1,
			ResetAt:   next.WindowResetAt,
		}
	}

	if rec.Count < limit.Max {
		rec.Count++
		return rec, Decision{
			Allowed:   true,
			Limit:     limit.Max,
			Remaining: limit.Max - rec.Count,
			ResetAt:   rec.WindowResetAt,
		}
	}

	return rec, Decision{
		Allowed:   false,
		Limit:     limit.Max,
		Remaining: 0,
		ResetAt:   rec.WindowResetAt,
	}
}

// Store holds counters. Hit must be atomic per key and Sweep must not
// interleave with Hit.
type Store interface {
	Hit(ctx context.Context, key string, limit Limit, now time.Time) (Decision, error)
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// Admin exposes stored records for inspection and manual resets.
// An empty prefix matches every key.
type Admin interface {
	List(ctx context.Context, prefix string) ([]Record, error)
	Reset(ctx context.Context, prefix string) (int64, error)
	Len(ctx context.Context) (int, error)
}
