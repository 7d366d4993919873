// Package quota enforces per-provider daily call ceilings on top of the
// durable counter store. Counters are keyed by provider and UTC calendar
// day, so the reset at midnight is implicit: a new day means a new key,
// and stale keys expire by TTL without any reset job.
package quota

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/UnknownOlympus/meridian/internal/store"
	"github.com/jonboulle/clockwork"
)

// counterTTL keeps a day key alive long past midnight so that usage stats
// remain readable until well after the day rolls over.
const counterTTL = 48 * time.Hour

// Tracker gates provider invocations against configured daily ceilings.
type Tracker struct {
	store    store.Store
	ceilings map[string]int // Provider name -> daily call ceiling. Zero or negative means unlimited.
	clock    clockwork.Clock
	log      *slog.Logger
}

// NewTracker creates a quota tracker using the real clock.
func NewTracker(st store.Store, ceilings map[string]int, log *slog.Logger) *Tracker {
	return NewTrackerWithClock(st, ceilings, clockwork.NewRealClock(), log)
}

// NewTrackerWithClock creates a quota tracker with an injected clock, so
// tests can cross day boundaries deterministically.
func NewTrackerWithClock(st store.Store, ceilings map[string]int, clock clockwork.Clock, log *slog.Logger) *Tracker {
	return &Tracker{store: st, ceilings: ceilings, clock: clock, log: log}
}

// TryReserve attempts to reserve one call for the provider today. It
// returns true and consumes one unit of quota when the provider is under
// its ceiling; otherwise it returns false without consuming anything.
// An increment that lands over the ceiling is compensated with a
// best-effort decrement so the counter tracks actual provider calls.
func (t *Tracker) TryReserve(ctx context.Context, provider string) (bool, error) {
	ceiling, ok := t.ceilings[provider]
	if !ok || ceiling <= 0 {
		// Unlimited provider: count the call for stats, never refuse.
		if _, err := t.store.Incr(ctx, t.dayKey(provider), counterTTL); err != nil {
			return false, fmt.Errorf("failed to count call for provider %s: %w", provider, err)
		}
		return true, nil
	}

	key := t.dayKey(provider)
	count, err := t.store.Incr(ctx, key, counterTTL)
	if err != nil {
		return false, fmt.Errorf("failed to reserve quota for provider %s: %w", provider, err)
	}

	if count > int64(ceiling) {
		if _, err = t.store.Decr(ctx, key); err != nil {
			t.log.WarnContext(ctx, "Failed to roll back over-ceiling increment",
				"provider", provider, "error", err)
		}
		return false, nil
	}

	return true, nil
}

// Usage returns today's call counts for the given providers. Providers
// without any calls today report zero.
func (t *Tracker) Usage(ctx context.Context, providers []string) (map[string]int, error) {
	usage := make(map[string]int, len(providers))
	for _, provider := range providers {
		count, err := t.store.GetCount(ctx, t.dayKey(provider))
		if err != nil {
			return nil, fmt.Errorf("failed to read usage for provider %s: %w", provider, err)
		}
		usage[provider] = int(count)
	}
	return usage, nil
}

// dayKey builds the per-provider counter key for the current UTC day.
func (t *Tracker) dayKey(provider string) string {
	return fmt.Sprintf("quota:%s:%s", provider, t.clock.Now().UTC().Format("2006-01-02"))
}
