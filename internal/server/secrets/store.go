// Package secrets wraps the ephemeral key-value store holding short-lived
// security material: confirmation codes, failed-attempt counters and
// lockout flags. All entries carry an explicit TTL and self-expire.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkravets/backoffice/internal/common"
	"github.com/redis/go-redis/v9"
)

// Store is the ephemeral key-value capability injected into the workflows.
// Get reports absence as common.ErrNotFound, not as a generic error.
type Store interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error

	// CompareAndDelete atomically deletes key if its current value equals
	// expected, reporting whether the delete happened. Concurrent
	// redeemers of the same key see at most one true result.
	CompareAndDelete(ctx context.Context, key, expected string) (bool, error)

	// Increment adds one to a counter key, setting ttl when the key is
	// created, and returns the new value.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// compareAndDeleteScript deletes the key only when it still holds the
// expected value, closing the check-then-act race between redeemers.
var compareAndDeleteScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore implements Store over a Redis client.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Open connects to Redis and verifies the connection with a bounded ping.
func Open(addr, passwd string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: passwd,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("secret store set: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", common.ErrNotFound
		}
		return "", fmt.Errorf("secret store get: %w", err)
	}
	return value, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("secret store delete: %w", err)
	}
	return nil
}

func (s *RedisStore) CompareAndDelete(ctx context.Context, key, expected string) (bool, error) {
	n, err := compareAndDeleteScript.Run(ctx, s.client, []string{key}, expected).Int64()
	if err != nil {
		return false, fmt.Errorf("secret store compare-and-delete: %w", err)
	}
	return n == 1, nil
}

func (s *RedisStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("secret store increment: %w", err)
	}
	return incr.Val(), nil
}

// Close releases the underlying Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
