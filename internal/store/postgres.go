package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
)

// Database is the subset of pgxpool.Pool the store depends on.
// Narrowing it keeps the store testable with pgxmock.
type Database interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store on PostgreSQL, for deployments that
// already run Postgres and do not want a separate Redis. Expiry is
// evaluated against expires_at on every read; stale rows are left for
// the next write to overwrite.
type PostgresStore struct {
	db    Database
	clock clockwork.Clock
}

// NewDatabase creates a pgx connection pool and verifies it with a ping.
func NewDatabase(ctx context.Context, host, port, user, password, name string) (*pgxpool.Pool, error) {
	connString := fmt.Sprintf("postgres://%s:%s@%s:%s/%s", user, password, host, port, name)

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// NewPostgresStore creates a Postgres-backed store.
func NewPostgresStore(db Database) *PostgresStore {
	return NewPostgresStoreWithClock(db, clockwork.NewRealClock())
}

// NewPostgresStoreWithClock creates a Postgres-backed store with an
// injected clock, for deterministic expiry in tests.
func NewPostgresStoreWithClock(db Database, clock clockwork.Clock) *PostgresStore {
	return &PostgresStore{db: db, clock: clock}
}

// EnsureSchema creates the store tables when they do not exist yet.
func (ps *PostgresStore) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS geo_kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS geo_counters (
			key TEXT PRIMARY KEY,
			count BIGINT NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL
		);
	`

	if _, err := ps.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create store schema: %w", err)
	}

	return nil
}

// Get returns the value stored under key if it has not expired.
func (ps *PostgresStore) Get(ctx context.Context, key string) (string, bool, error) {
	query := `
		SELECT value FROM geo_kv
		WHERE key = $1 AND expires_at > $2;
	`

	var value string
	err := ps.db.QueryRow(ctx, query, key, ps.clock.Now()).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query kv entry: %w", err)
	}

	return value, true, nil
}

// Set stores value under key with the given TTL, replacing a previous row.
func (ps *PostgresStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	query := `
		INSERT INTO geo_kv (key, value, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = $2, expires_at = $3;
	`

	if _, err := ps.db.Exec(ctx, query, key, value, ps.clock.Now().Add(ttl)); err != nil {
		return fmt.Errorf("failed to upsert kv entry: %w", err)
	}

	return nil
}

// Incr atomically increments the counter under key. An expired row is
// reset to 1 with a fresh TTL in the same statement.
func (ps *PostgresStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	query := `
		INSERT INTO geo_counters (key, count, expires_at)
		VALUES ($1, 1, $2)
		ON CONFLICT (key) DO UPDATE SET
			count = CASE WHEN geo_counters.expires_at <= $3 THEN 1 ELSE geo_counters.count + 1 END,
			expires_at = CASE WHEN geo_counters.expires_at <= $3 THEN $2 ELSE geo_counters.expires_at END
		RETURNING count;
	`

	now := ps.clock.Now()

	var count int64
	if err := ps.db.QueryRow(ctx, query, key, now.Add(ttl), now).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to increment counter: %w", err)
	}

	return count, nil
}

// Decr decrements the counter under key. A missing counter stays at zero.
func (ps *PostgresStore) Decr(ctx context.Context, key string) (int64, error) {
	query := `
		UPDATE geo_counters SET count = count - 1
		WHERE key = $1 AND expires_at > $2
		RETURNING count;
	`

	var count int64
	err := ps.db.QueryRow(ctx, query, key, ps.clock.Now()).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to decrement counter: %w", err)
	}

	return count, nil
}

// GetCount returns the counter under key, or zero when absent or expired.
func (ps *PostgresStore) GetCount(ctx context.Context, key string) (int64, error) {
	query := `
		SELECT count FROM geo_counters
		WHERE key = $1 AND expires_at > $2;
	`

	var count int64
	err := ps.db.QueryRow(ctx, query, key, ps.clock.Now()).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query counter: %w", err)
	}

	return count, nil
}

// Ping checks the database connection.
func (ps *PostgresStore) Ping(ctx context.Context) error {
	if err := ps.db.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (ps *PostgresStore) Close() error {
	ps.db.Close()
	return nil
}
