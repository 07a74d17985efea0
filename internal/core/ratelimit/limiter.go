package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Limiter enforces fixed-window limits against a Store.
type Limiter struct {
	Store    Store
	Policies Policies
	Clock    func() time.Time
}

// Policies maps path prefixes to limits. The longest matching prefix wins.
type Policies struct {
	Default Limit
	Routes  map[string]Limit
}

// NewLimiter validates every configured limit before returning a limiter.
func NewLimiter(store Store, policies Policies) (*Limiter, error) {
	if store == nil {
		return nil, errors.New("rate limit store is required")
	}
	if policies.Default == (Limit{}) {
		policies.Default = DefaultLimit
	}
	if err := policies.Validate(); err != nil {
		return nil, err
	}
	return &Limiter{Store: store, Policies: policies}, nil
}

// Validate checks the default limit and every route limit.
func (p Policies) Validate() error {
	if err := p.Default.Validate(); err != nil {
		return fmt.Errorf("default policy: %w", err)
	}
	for prefix, limit := range p.Routes {
		if strings.TrimSpace(prefix) == "" {
			return fmt.Errorf("%w: route prefix is empty", ErrInvalidConfig)
		}
		if err := limit.Validate(); err != nil {
			return fmt.Errorf("route %q: %w", prefix, err)
		}
	}
	return nil
}

// For resolves the limit for path.
func (p Policies) For(path string) Limit {
	best := ""
	for prefix := range p.Routes {
		if strings.HasPrefix(path, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return p.Default
	}
	return p.Routes[best]
}

// Prefixes lists the configured route prefixes in order.
func (p Policies) Prefixes() []string {
	prefixes := make([]string, 0, len(p.Routes))
	for prefix := range p.Routes {
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)
	return prefixes
}

// Check records one hit for key under limit.
func (l *Limiter) Check(ctx context.Context, key string, limit Limit) (Decision, error) {
	if l == nil || l.Store == nil {
		return Decision{}, errors.New("rate limiter is not initialized")
	}
	if err := limit.Validate(); err != nil {
		return Decision{}, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	decision, err := l.Store.Hit(ctx, key, limit, l.now())
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit store: %w", err)
	}
	return decision, nil
}

// Allow checks the policy for path against the caller's key.
func (l *Limiter) Allow(ctx context.Context, client string, path string) (Decision, error) {
	return l.Check(ctx, Key(client, path), l.Policies.For(path))
}

// Sweep drops expired records from the store.
func (l *Limiter) Sweep(ctx context.Context) (int, error) {
	if l == nil || l.Store == nil {
		return 0, nil
	}
	return l.Store.Sweep(ctx, l.now())
}

// Now returns the limiter's current time.
func (l *Limiter) Now() time.Time {
	return l.now()
}

func (l *Limiter) now() time.Time {
	if l != nil && l.Clock != nil {
		return l.Clock()
	}
	return time.Now().UTC()
}

// Key joins a client identifier and a route into a store key.
func Key(client string, path string) string {
	return client + ":" + path
}
