package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces every key this service writes to Redis.
const keyPrefix = "urlkeeper:"

// RedisStore implements Cache and TokenStore over a shared Redis client.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and pings it to verify connectivity
// before returning. The returned store is safe for concurrent use.
func NewRedisStore(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return &RedisStore{client: client}, nil
}

// Close releases the underlying Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute func() (string, error)) (string, error) {
	full := keyPrefix + key
	val, err := s.client.Get(ctx, full).Result()
	if err == nil {
		return val, nil
	}
	if !errors.Is(err, redis.Nil) {
		// Backend trouble: serve the computed value rather than failing
		// the read path.
		return compute()
	}

	val, err = compute()
	if err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, full, val, ttl).Err(); err != nil {
		return val, nil
	}
	return val, nil
}

func (s *RedisStore) Invalidate(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("invalidating cache key %q: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, keyPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("storing token %q: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("fetching token %q: %w", key, err)
	}
	return val, true, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("deleting token %q: %w", key, err)
	}
	return nil
}

func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	ttl, err := s.client.TTL(ctx, keyPrefix+key).Result()
	if err != nil {
		return 0, false, fmt.Errorf("reading ttl of %q: %w", key, err)
	}
	// go-redis returns -2 for a missing key and -1 for no expiry.
	if ttl < 0 {
		return 0, false, nil
	}
	return ttl, true, nil
}
