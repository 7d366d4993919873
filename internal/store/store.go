// Package store provides the durable key-value and counter backend shared
// by the result cache and the quota tracker. Implementations must be safe
// for concurrent use; Incr must have atomic counter semantics.
package store

import (
	"context"
	"time"
)

// Store is a minimal KV store with TTLs plus atomic day counters.
// Values expire on their own; there is no explicit delete path.
type Store interface {
	// Get returns (value, true, nil) on hit; ("", false, nil) on miss or
	// after expiry.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key with the given TTL, replacing any
	// previous value.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Incr atomically increments the counter under key and returns the
	// new value. The TTL is applied when the counter is first created.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Decr atomically decrements the counter under key and returns the
	// new value. Used to compensate a reservation that exceeded a ceiling.
	Decr(ctx context.Context, key string) (int64, error)

	// GetCount returns the current counter value, or zero when the key is
	// absent or expired.
	GetCount(ctx context.Context, key string) (int64, error)

	// Ping checks the health of the backend.
	Ping(ctx context.Context) error

	// Close releases the backend connection.
	Close() error
}
