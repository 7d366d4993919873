package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/UnknownOlympus/meridian/internal/store"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestPostgresStore_Integration exercises the store against a real
// PostgreSQL instance. It needs a container runtime, so it is skipped
// in short mode.
func TestPostgresStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("meridian_test"),
		postgres.WithUsername("meridian"),
		postgres.WithPassword("meridian"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	ps := store.NewPostgresStore(pool)
	require.NoError(t, ps.EnsureSchema(ctx))

	t.Run("kv round trip", func(t *testing.T) {
		require.NoError(t, ps.Set(ctx, "geo:rev:12.9716,77.5946", `{"city":"Bengaluru"}`, time.Hour))

		value, ok, err := ps.Get(ctx, "geo:rev:12.9716,77.5946")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, `{"city":"Bengaluru"}`, value)
	})

	t.Run("expired kv entry is a miss", func(t *testing.T) {
		require.NoError(t, ps.Set(ctx, "ephemeral", "gone", -time.Second))

		_, ok, err := ps.Get(ctx, "ephemeral")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("counter increments, decrements and reads back", func(t *testing.T) {
		count, err := ps.Incr(ctx, "quota:nominatim:day", time.Hour)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		count, err = ps.Incr(ctx, "quota:nominatim:day", time.Hour)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)

		count, err = ps.Decr(ctx, "quota:nominatim:day")
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		count, err = ps.GetCount(ctx, "quota:nominatim:day")
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("expired counter resets on next increment", func(t *testing.T) {
		count, err := ps.Incr(ctx, "quota:stale:day", -time.Second)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		count, err = ps.Incr(ctx, "quota:stale:day", time.Hour)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("ping succeeds", func(t *testing.T) {
		require.NoError(t, ps.Ping(ctx))
	})
}
