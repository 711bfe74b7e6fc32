// Package ratelimit implements sliding-window admission control backed
// by a single shared ordered-set store. The limiter fails open: if the
// backing store is unreachable the event is admitted, prioritizing
// availability over strict quota enforcement during an outage.
package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is the ordered-set surface the limiter needs from its backing
// store. Scores are event timestamps in milliseconds.
type Store interface {
	RemoveRangeByScore(ctx context.Context, key string, min, max int64) error
	CountMembers(ctx context.Context, key string) (int64, error)
	AddMember(ctx context.Context, key, member string, score int64) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// redisStore adapts a go-redis client to the Store interface using
// sorted-set commands.
type redisStore struct {
	client *redis.Client
}

// NewRedisStore wraps a Redis client as a limiter Store.
func NewRedisStore(client *redis.Client) Store {
	return &redisStore{client: client}
}

func (s *redisStore) RemoveRangeByScore(ctx context.Context, key string, min, max int64) error {
	return s.client.ZRemRangeByScore(ctx, key,
		strconv.FormatInt(min, 10),
		strconv.FormatInt(max, 10),
	).Err()
}

func (s *redisStore) CountMembers(ctx context.Context, key string) (int64, error) {
	return s.client.ZCard(ctx, key).Result()
}

func (s *redisStore) AddMember(ctx context.Context, key, member string, score int64) error {
	return s.client.ZAdd(ctx, key, redis.Z{
		Score:  float64(score),
		Member: member,
	}).Err()
}

func (s *redisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.Expire(ctx, key, ttl).Err()
}
