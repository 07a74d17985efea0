package ratelimit

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps counters in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

// Hit applies one hit to key.
func (m *MemoryStore) Hit(_ context.Context, key string, limit Limit, now time.Time) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, found := m.records[key]
	next, decision := Advance(rec, found, key, limit, now)
	if decision.Allowed {
		m.records[key] = next
	}
	return decision, nil
}

// Sweep removes every record whose window has closed.
func (m *MemoryStore) Sweep(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, rec := range m.records {
		if rec.Expired(now) {
			delete(m.records, key)
			removed++
		}
	}
	return removed, nil
}

// List returns records whose key starts with prefix, ordered by key.
func (m *MemoryStore) List(_ context.Context, prefix string) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	records := []Record{}
	for key, rec := range m.records {
		if strings.HasPrefix(key, prefix) {
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Key < records[j].Key })
	return records, nil
}

// Reset deletes records whose key starts with prefix.
func (m *MemoryStore) Reset(_ context.Context, prefix string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for key := range m.records {
		if strings.HasPrefix(key, prefix) {
			delete(m.records, key)
			deleted++
		}
	}
	return deleted, nil
}

// Len returns the number of tracked keys, expired or not.
func (m *MemoryStore) Len(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records), nil
}
