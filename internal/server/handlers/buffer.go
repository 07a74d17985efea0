package handlers

import "sync"

// RingBuffer keeps the most recent items up to a fixed capacity.
type RingBuffer[T any] struct {
	mu    sync.RWMutex
	items []T
	next  int
	full  bool
}

// NewRingBuffer creates a buffer holding at most capacity items.
func NewRingBuffer[T any](capacity int) *RingBuffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer[T]{items: make([]T, capacity)}
}

// Add stores item, evicting the oldest when full.
func (b *RingBuffer[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[b.next] = item
	b.next = (b.next + 1) % len(b.items)
	if b.next == 0 {
		b.full = true
	}
}

// Latest returns up to n items, newest first. n <= 0 returns everything held.
func (b *RingBuffer[T]) Latest(n int) []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	size := b.lenLocked()
	if n <= 0 || n > size {
		n = size
	}

	out := make([]T, 0, n)
	idx := b.next
	for i := 0; i < n; i++ {
		idx = (idx - 1 + len(b.items)) % len(b.items)
		out = append(out, b.items[idx])
	}
	return out
}

// Len returns the number of items held.
func (b *RingBuffer[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lenLocked()
}

// Cap returns the buffer capacity.
func (b *RingBuffer[T]) Cap() int {
	return len(b.items)
}

func (b *RingBuffer[T]) lenLocked() int {
	if b.full {
		return len(b.items)
	}
	return b.next
}
