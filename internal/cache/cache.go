package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

const (
	// DefaultTTL bounds staleness between an update to the authoritative
	// record and cache convergence. Explicit invalidation on writes runs
	// alongside it.
	DefaultTTL = 24 * time.Hour

	// DefaultTimeout bounds each backing-store round-trip so a slow shard
	// never blocks a request indefinitely.
	DefaultTimeout = 500 * time.Millisecond
)

// Cache presents a single logical key-value cache over the sharded
// backing stores. Every operation is fail-open: a backing-store error
// is logged and degraded to a miss (Get) or a no-op (Set, Delete),
// since the authoritative store is always reachable as fallback.
type Cache struct {
	ring    *Ring
	ttl     time.Duration
	timeout time.Duration
	logger  *slog.Logger
}

// Config holds optional cache settings.
type Config struct {
	TTL     time.Duration // defaults to DefaultTTL
	Timeout time.Duration // per-call timeout, defaults to DefaultTimeout
	Logger  *slog.Logger
}

// New creates a cache facade over the given ring.
func New(ring *Ring, cfg *Config) *Cache {
	if cfg == nil {
		cfg = &Config{}
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Cache{
		ring:    ring,
		ttl:     ttl,
		timeout: timeout,
		logger:  logger,
	}
}

// Get reads key from its shard. It returns the value and true on a hit,
// and "" and false on a miss or any backing-store error.
func (c *Cache) Get(ctx context.Context, key string) (string, bool) {
	start := time.Now()
	shard := c.ring.GetShard(key)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	val, err := shard.Store.Get(ctx, key)
	switch {
	case err == nil:
		c.logEvent(ctx, "cache_get", key, start, "hit")
		return val, true
	case errors.Is(err, ErrMiss):
		c.logEvent(ctx, "cache_get", key, start, "miss")
		return "", false
	default:
		c.logger.WarnContext(ctx, "cache get failed, treating as miss",
			"key", key,
			"shard", shard.Name,
			"error", err.Error(),
		)
		return "", false
	}
}

// Set writes key with the configured TTL to its shard. Backing-store
// errors are logged and swallowed.
func (c *Cache) Set(ctx context.Context, key, value string) {
	start := time.Now()
	shard := c.ring.GetShard(key)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := shard.Store.SetWithTTL(ctx, key, value, c.ttl); err != nil {
		c.logger.WarnContext(ctx, "cache set failed",
			"key", key,
			"shard", shard.Name,
			"error", err.Error(),
		)
		return
	}
	c.logEvent(ctx, "cache_set", key, start, "ok")
}

// Delete removes key from its shard. Used for invalidation when the
// authoritative record changes. Same fail-open policy as Set.
func (c *Cache) Delete(ctx context.Context, key string) {
	start := time.Now()
	shard := c.ring.GetShard(key)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := shard.Store.Del(ctx, key); err != nil {
		c.logger.WarnContext(ctx, "cache delete failed",
			"key", key,
			"shard", shard.Name,
			"error", err.Error(),
		)
		return
	}
	c.logEvent(ctx, "cache_delete", key, start, "ok")
}

// TTL returns the write TTL applied by Set.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Health reports per-shard reachability for diagnostics.
func (c *Cache) Health(ctx context.Context) map[string]bool {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.ring.Health(ctx)
}

func (c *Cache) logEvent(ctx context.Context, operation, key string, start time.Time, outcome string) {
	c.logger.DebugContext(ctx, "cache operation",
		"operation", operation,
		"key", key,
		"duration_ms", time.Since(start).Milliseconds(),
		"outcome", outcome,
	)
}
