// Package cache stores resolved addresses in the durable store so that
// repeated lookups of the same place never hit an external provider within
// the TTL window. Entries are immutable once written; the only
// invalidation is TTL expiry.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/UnknownOlympus/meridian/internal/models"
	"github.com/UnknownOlympus/meridian/internal/store"
)

// coordPrecision is the number of decimal places coordinates are rounded
// to for reverse keys. Four decimals is roughly 11 meters, so repeated
// lookups from the same spot share an entry.
const coordPrecision = 4

// Cache is the result cache keyed by lookup direction and normalized input.
type Cache struct {
	store store.Store
	ttl   time.Duration
}

// New creates a result cache with the given TTL.
func New(st store.Store, ttl time.Duration) *Cache {
	return &Cache{store: st, ttl: ttl}
}

// GetReverse looks up a cached reverse resolution for the coordinate pair.
func (c *Cache) GetReverse(ctx context.Context, lat, lng float64) (*models.ResolvedAddress, bool, error) {
	return c.get(ctx, ReverseKey(lat, lng))
}

// GetForward looks up a cached forward resolution for the address text.
func (c *Cache) GetForward(ctx context.Context, address string) (*models.ResolvedAddress, bool, error) {
	return c.get(ctx, ForwardKey(address))
}

// PutReverse stores a reverse resolution under the normalized coordinate key.
func (c *Cache) PutReverse(ctx context.Context, lat, lng float64, addr *models.ResolvedAddress) error {
	return c.put(ctx, ReverseKey(lat, lng), addr)
}

// PutForward stores a forward resolution under the normalized address key.
func (c *Cache) PutForward(ctx context.Context, address string, addr *models.ResolvedAddress) error {
	return c.put(ctx, ForwardKey(address), addr)
}

func (c *Cache) get(ctx context.Context, key string) (*models.ResolvedAddress, bool, error) {
	raw, hit, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache entry: %w", err)
	}
	if !hit {
		return nil, false, nil
	}

	var addr models.ResolvedAddress
	if err = json.Unmarshal([]byte(raw), &addr); err != nil {
		// A corrupt entry behaves like a miss; the fresh result overwrites it.
		return nil, false, nil
	}

	return &addr, true, nil
}

func (c *Cache) put(ctx context.Context, key string, addr *models.ResolvedAddress) error {
	raw, err := json.Marshal(addr)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	if err = c.store.Set(ctx, key, string(raw), c.ttl); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}

	return nil
}

// ReverseKey normalizes a coordinate pair into a cache key by rounding to
// a fixed precision.
func ReverseKey(lat, lng float64) string {
	return fmt.Sprintf("geo:rev:%.*f,%.*f", coordPrecision, lat, coordPrecision, lng)
}

// ForwardKey normalizes free-text address input into a cache key: trimmed,
// case-folded, and hashed so arbitrary user text stays a bounded key.
func ForwardKey(address string) string {
	normalized := strings.ToLower(strings.TrimSpace(address))
	sum := sha256.Sum256([]byte(normalized))
	return "geo:fwd:" + hex.EncodeToString(sum[:16])
}
