package store

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// MemoryStore is an in-process Store used for tests and single-node
// deployments without an external backend. Expiry is evaluated lazily on
// read against the injected clock, so tests can advance time deterministically.
type MemoryStore struct {
	mu       sync.Mutex
	values   map[string]memoryEntry
	counters map[string]memoryCounter
	clock    clockwork.Clock
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

type memoryCounter struct {
	count     int64
	expiresAt time.Time
}

// NewMemoryStore creates an in-memory store using the real clock.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(clockwork.NewRealClock())
}

// NewMemoryStoreWithClock creates an in-memory store with an injected clock.
func NewMemoryStoreWithClock(clock clockwork.Clock) *MemoryStore {
	return &MemoryStore{
		values:   make(map[string]memoryEntry),
		counters: make(map[string]memoryCounter),
		clock:    clock,
	}
}

// Get returns the value stored under key if it has not expired.
func (ms *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	entry, ok := ms.values[key]
	if !ok || !ms.clock.Now().Before(entry.expiresAt) {
		delete(ms.values, key)
		return "", false, nil
	}
	return entry.value, true, nil
}

// Set stores value under key with the given TTL.
func (ms *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.values[key] = memoryEntry{value: value, expiresAt: ms.clock.Now().Add(ttl)}
	return nil
}

// Incr increments the counter under key, creating it with the given TTL.
func (ms *MemoryStore) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	counter, ok := ms.counters[key]
	if !ok || !ms.clock.Now().Before(counter.expiresAt) {
		counter = memoryCounter{count: 0, expiresAt: ms.clock.Now().Add(ttl)}
	}
	counter.count++
	ms.counters[key] = counter
	return counter.count, nil
}

// Decr decrements the counter under key. A missing counter stays at zero.
func (ms *MemoryStore) Decr(_ context.Context, key string) (int64, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	counter, ok := ms.counters[key]
	if !ok || !ms.clock.Now().Before(counter.expiresAt) {
		return 0, nil
	}
	counter.count--
	ms.counters[key] = counter
	return counter.count, nil
}

// GetCount returns the counter under key, or zero when absent or expired.
func (ms *MemoryStore) GetCount(_ context.Context, key string) (int64, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	counter, ok := ms.counters[key]
	if !ok || !ms.clock.Now().Before(counter.expiresAt) {
		return 0, nil
	}
	return counter.count, nil
}

// Ping always succeeds for the in-memory store.
func (ms *MemoryStore) Ping(_ context.Context) error { return nil }

// Close is a no-op for the in-memory store.
func (ms *MemoryStore) Close() error { return nil }
