// ABOUTME: Counter storage for fixed-window rate limiting
// ABOUTME: Store interface plus an in-memory implementation with a cleanup janitor

package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Store defines the interface for rate limit counter backends.
type Store interface {
	// Increment adds one to the counter for key and returns the new count and
	// when the key's current window closes. A closed window starts over at 1.
	Increment(ctx context.Context, key string, now time.Time, window time.Duration) (count int, resetAt time.Time, err error)

	// Reset removes the counter for key.
	Reset(ctx context.Context, key string) error

	// Close releases any resources held by the store.
	Close() error
}

type counter struct {
	count   int
	resetAt time.Time
}

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory Store. It is safe for concurrent use; counters
// are lost on restart.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]*counter
	done     chan struct{}
	closed   bool
}

// NewMemoryStore creates a MemoryStore whose janitor drops closed windows
// every sweep interval.
func NewMemoryStore(sweep time.Duration) *MemoryStore {
	if sweep <= 0 {
		sweep = time.Minute
	}
	m := &MemoryStore{
		counters: make(map[string]*counter),
		done:     make(chan struct{}),
	}
	go m.cleanup(sweep)
	return m
}

// Increment counts one request for key in its current window.
func (m *MemoryStore) Increment(_ context.Context, key string, now time.Time, window time.Duration) (int, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.counters[key]
	if !ok || !now.Before(c.resetAt) {
		c = &counter{resetAt: now.Add(window)}
		m.counters[key] = c
	}
	c.count++
	return c.count, c.resetAt, nil
}

// Reset removes the counter for key.
func (m *MemoryStore) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.counters, key)
	return nil
}

// Len reports how many keys are tracked.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.counters)
}

// cleanup runs in a background goroutine, periodically removing closed windows.
func (m *MemoryStore) cleanup(sweep time.Duration) {
	ticker := time.NewTicker(sweep)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			m.sweep(now)
		case <-m.done:
			return
		}
	}
}

// sweep drops every counter whose window closed before now.
func (m *MemoryStore) sweep(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, c := range m.counters {
		if !now.Before(c.resetAt) {
			delete(m.counters, key)
		}
	}
}

// Close stops the janitor. It is safe to call multiple times.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.closed {
		close(m.done)
		m.closed = true
	}
	return nil
}
