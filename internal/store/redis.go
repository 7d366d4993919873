package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on a Redis instance. This is the production
// backend: counters and cache entries survive process restarts and are
// shared between replicas, and Redis handles TTL expiry natively.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// Get returns the value stored under key if it has not expired.
func (rs *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := rs.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get key %q: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key with the given TTL.
func (rs *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := rs.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %q: %w", key, err)
	}
	return nil
}

// Incr increments the counter under key. The TTL is attached only on the
// first increment, so the counter expires relative to its creation.
func (rs *RedisStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := rs.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment key %q: %w", key, err)
	}
	if count == 1 {
		if err = rs.client.Expire(ctx, key, ttl).Err(); err != nil {
			return count, fmt.Errorf("failed to set TTL on key %q: %w", key, err)
		}
	}
	return count, nil
}

// Decr decrements the counter under key.
func (rs *RedisStore) Decr(ctx context.Context, key string) (int64, error) {
	count, err := rs.client.Decr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to decrement key %q: %w", key, err)
	}
	return count, nil
}

// GetCount returns the counter under key, or zero when absent.
func (rs *RedisStore) GetCount(ctx context.Context, key string) (int64, error) {
	count, err := rs.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read counter %q: %w", key, err)
	}
	return count, nil
}

// Ping checks the Redis connection.
func (rs *RedisStore) Ping(ctx context.Context) error {
	if err := rs.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (rs *RedisStore) Close() error {
	return rs.client.Close()
}
