package quota_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/UnknownOlympus/meridian/internal/quota"
	"github.com/UnknownOlympus/meridian/internal/store"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_TryReserve(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	t.Run("reserves until the ceiling then refuses", func(t *testing.T) {
		clock := clockwork.NewFakeClock()
		tracker := quota.NewTrackerWithClock(
			store.NewMemoryStoreWithClock(clock),
			map[string]int{"google": 2},
			clock, logger,
		)

		for range 2 {
			ok, err := tracker.TryReserve(ctx, "google")
			require.NoError(t, err)
			assert.True(t, ok)
		}

		ok, err := tracker.TryReserve(ctx, "google")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("refused reservation does not consume quota", func(t *testing.T) {
		clock := clockwork.NewFakeClock()
		tracker := quota.NewTrackerWithClock(
			store.NewMemoryStoreWithClock(clock),
			map[string]int{"opencage": 1},
			clock, logger,
		)

		ok, err := tracker.TryReserve(ctx, "opencage")
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = tracker.TryReserve(ctx, "opencage")
		require.NoError(t, err)
		require.False(t, ok)

		usage, err := tracker.Usage(ctx, []string{"opencage"})
		require.NoError(t, err)
		assert.Equal(t, 1, usage["opencage"])
	})

	t.Run("unconfigured provider is unlimited but still counted", func(t *testing.T) {
		clock := clockwork.NewFakeClock()
		tracker := quota.NewTrackerWithClock(
			store.NewMemoryStoreWithClock(clock),
			map[string]int{},
			clock, logger,
		)

		for range 50 {
			ok, err := tracker.TryReserve(ctx, "nominatim")
			require.NoError(t, err)
			require.True(t, ok)
		}

		usage, err := tracker.Usage(ctx, []string{"nominatim"})
		require.NoError(t, err)
		assert.Equal(t, 50, usage["nominatim"])
	})

	t.Run("zero ceiling means unlimited", func(t *testing.T) {
		clock := clockwork.NewFakeClock()
		tracker := quota.NewTrackerWithClock(
			store.NewMemoryStoreWithClock(clock),
			map[string]int{"nominatim": 0},
			clock, logger,
		)

		ok, err := tracker.TryReserve(ctx, "nominatim")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("quota resets when the day rolls over", func(t *testing.T) {
		clock := clockwork.NewFakeClock()
		tracker := quota.NewTrackerWithClock(
			store.NewMemoryStoreWithClock(clock),
			map[string]int{"geoapify": 1},
			clock, logger,
		)

		ok, err := tracker.TryReserve(ctx, "geoapify")
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = tracker.TryReserve(ctx, "geoapify")
		require.NoError(t, err)
		require.False(t, ok)

		clock.Advance(24 * time.Hour)

		ok, err = tracker.TryReserve(ctx, "geoapify")
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestTracker_Usage(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	tracker := quota.NewTrackerWithClock(
		store.NewMemoryStoreWithClock(clock),
		map[string]int{"google": 1000},
		clock, slog.Default(),
	)

	_, err := tracker.TryReserve(ctx, "google")
	require.NoError(t, err)
	_, err = tracker.TryReserve(ctx, "google")
	require.NoError(t, err)

	usage, err := tracker.Usage(ctx, []string{"google", "opencage"})
	require.NoError(t, err)

	assert.Equal(t, 2, usage["google"])
	assert.Equal(t, 0, usage["opencage"])
}
