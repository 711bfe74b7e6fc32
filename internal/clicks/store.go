// Package clicks tracks per-code click counters in a dedicated counter
// store and periodically folds them into the authoritative store.
// Counters are ephemeral and high-write-rate; the authoritative click
// count only advances when the aggregator flushes.
package clicks

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces pending click counters in the counter store.
const KeyPrefix = "click:"

// CounterStore is the surface the recorder and aggregator need from the
// counter store. GetInt returns 0 for absent keys.
type CounterStore interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	GetInt(ctx context.Context, key string) (int64, error)
	Del(ctx context.Context, key string) error
	Keys(ctx context.Context, pattern string) ([]string, error)
}

// redisCounterStore adapts a go-redis client to the CounterStore
// interface. Key enumeration uses SCAN, not KEYS, to avoid blocking
// the store under a large pending set.
type redisCounterStore struct {
	client *redis.Client
}

// NewRedisCounterStore wraps a Redis client as a CounterStore.
func NewRedisCounterStore(client *redis.Client) CounterStore {
	return &redisCounterStore{client: client}
}

func (s *redisCounterStore) Incr(ctx context.Context, key string) (int64, error) {
	return s.client.Incr(ctx, key).Result()
}

func (s *redisCounterStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.Expire(ctx, key, ttl).Err()
}

func (s *redisCounterStore) GetInt(ctx context.Context, key string) (int64, error) {
	val, err := s.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return val, err
}

func (s *redisCounterStore) Del(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

func (s *redisCounterStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}
