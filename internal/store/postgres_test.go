package store_test

import (
	"regexp"
	"testing"
	"time"

	"github.com/UnknownOlympus/meridian/internal/store"
	"github.com/jonboulle/clockwork"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const getQuery = `
	SELECT value FROM geo_kv
	WHERE key = $1 AND expires_at > $2;
`

const setQuery = `
	INSERT INTO geo_kv (key, value, expires_at)
	VALUES ($1, $2, $3)
	ON CONFLICT (key) DO UPDATE SET value = $2, expires_at = $3;
`

const incrQuery = `
	INSERT INTO geo_counters (key, count, expires_at)
	VALUES ($1, 1, $2)
	ON CONFLICT (key) DO UPDATE SET
		count = CASE WHEN geo_counters.expires_at <= $3 THEN 1 ELSE geo_counters.count + 1 END,
		expires_at = CASE WHEN geo_counters.expires_at <= $3 THEN $2 ELSE geo_counters.expires_at END
	RETURNING count;
`

const decrQuery = `
	UPDATE geo_counters SET count = count - 1
	WHERE key = $1 AND expires_at > $2
	RETURNING count;
`

const getCountQuery = `
	SELECT count FROM geo_counters
	WHERE key = $1 AND expires_at > $2;
`

func TestPostgresStore_Get(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	clock := clockwork.NewFakeClock()
	now := clock.Now()

	t.Run("success - value found", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		ps := store.NewPostgresStoreWithClock(mock, clock)

		mock.ExpectQuery(regexp.QuoteMeta(getQuery)).
			WithArgs("geo:rev:12.9716,77.5946", now).
			WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow(`{"display_name":"MG Road"}`))

		value, ok, err := ps.Get(ctx, "geo:rev:12.9716,77.5946")

		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, `{"display_name":"MG Road"}`, value)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("miss - no rows", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		ps := store.NewPostgresStoreWithClock(mock, clock)

		mock.ExpectQuery(regexp.QuoteMeta(getQuery)).
			WithArgs("absent", now).
			WillReturnRows(pgxmock.NewRows([]string{"value"}))

		_, ok, err := ps.Get(ctx, "absent")

		require.NoError(t, err)
		assert.False(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("error - query fails", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		ps := store.NewPostgresStoreWithClock(mock, clock)

		mock.ExpectQuery(regexp.QuoteMeta(getQuery)).
			WithArgs("key", now).
			WillReturnError(assert.AnError)

		_, _, err = ps.Get(ctx, "key")

		require.Error(t, err)
		require.ErrorContains(t, err, "failed to query kv entry")
		require.ErrorIs(t, err, assert.AnError)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStore_Set(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	clock := clockwork.NewFakeClock()
	now := clock.Now()

	t.Run("success - upsert", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		ps := store.NewPostgresStoreWithClock(mock, clock)

		mock.ExpectExec(regexp.QuoteMeta(setQuery)).
			WithArgs("key", "value", now.Add(24*time.Hour)).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err = ps.Set(ctx, "key", "value", 24*time.Hour)

		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("error - exec fails", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		ps := store.NewPostgresStoreWithClock(mock, clock)

		mock.ExpectExec(regexp.QuoteMeta(setQuery)).
			WithArgs("key", "value", now.Add(time.Hour)).
			WillReturnError(assert.AnError)

		err = ps.Set(ctx, "key", "value", time.Hour)

		require.Error(t, err)
		require.ErrorContains(t, err, "failed to upsert kv entry")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStore_Counters(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	clock := clockwork.NewFakeClock()
	now := clock.Now()

	t.Run("incr returns new count", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		ps := store.NewPostgresStoreWithClock(mock, clock)

		mock.ExpectQuery(regexp.QuoteMeta(incrQuery)).
			WithArgs("quota:google:2026-09-01", now.Add(48*time.Hour), now).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(42)))

		count, err := ps.Incr(ctx, "quota:google:2026-09-01", 48*time.Hour)

		require.NoError(t, err)
		assert.Equal(t, int64(42), count)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("incr propagates errors", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		ps := store.NewPostgresStoreWithClock(mock, clock)

		mock.ExpectQuery(regexp.QuoteMeta(incrQuery)).
			WithArgs("key", now.Add(time.Hour), now).
			WillReturnError(assert.AnError)

		_, err = ps.Incr(ctx, "key", time.Hour)

		require.Error(t, err)
		require.ErrorContains(t, err, "failed to increment counter")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("decr returns updated count", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		ps := store.NewPostgresStoreWithClock(mock, clock)

		mock.ExpectQuery(regexp.QuoteMeta(decrQuery)).
			WithArgs("key", now).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(9)))

		count, err := ps.Decr(ctx, "key")

		require.NoError(t, err)
		assert.Equal(t, int64(9), count)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("decr on missing counter returns zero", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		ps := store.NewPostgresStoreWithClock(mock, clock)

		mock.ExpectQuery(regexp.QuoteMeta(decrQuery)).
			WithArgs("absent", now).
			WillReturnRows(pgxmock.NewRows([]string{"count"}))

		count, err := ps.Decr(ctx, "absent")

		require.NoError(t, err)
		assert.Equal(t, int64(0), count)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("getcount on missing counter returns zero", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		ps := store.NewPostgresStoreWithClock(mock, clock)

		mock.ExpectQuery(regexp.QuoteMeta(getCountQuery)).
			WithArgs("absent", now).
			WillReturnRows(pgxmock.NewRows([]string{"count"}))

		count, err := ps.GetCount(ctx, "absent")

		require.NoError(t, err)
		assert.Equal(t, int64(0), count)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStore_EnsureSchema(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		ps := store.NewPostgresStore(mock)

		mock.ExpectExec("CREATE TABLE IF NOT EXISTS geo_kv").
			WillReturnResult(pgxmock.NewResult("CREATE", 0))

		require.NoError(t, ps.EnsureSchema(t.Context()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("error - exec fails", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		ps := store.NewPostgresStore(mock)

		mock.ExpectExec("CREATE TABLE IF NOT EXISTS geo_kv").
			WillReturnError(assert.AnError)

		err = ps.EnsureSchema(t.Context())

		require.Error(t, err)
		require.ErrorContains(t, err, "failed to create store schema")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
