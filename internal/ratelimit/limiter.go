package ratelimit

import (
	"context"
	"log/slog"
	"strconv"
	"time"
)

const (
	// DefaultMaxRequests and DefaultWindow give 100 events per trailing
	// 60-second window per limiter key.
	DefaultMaxRequests = 100
	DefaultWindow      = 60 * time.Second

	// DefaultTimeout bounds each backing-store round-trip.
	DefaultTimeout = 500 * time.Millisecond
)

// SlidingWindow admits or rejects events for a key such that no key
// exceeds MaxRequests within the trailing Window. State is one ordered
// set per key scored by event timestamp in milliseconds.
type SlidingWindow struct {
	store       Store
	maxRequests int64
	window      time.Duration
	timeout     time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// Config holds limiter settings. Zero values fall back to defaults.
type Config struct {
	MaxRequests int64
	Window      time.Duration
	Timeout     time.Duration
	Logger      *slog.Logger

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// NewSlidingWindow creates a limiter over the given store.
func NewSlidingWindow(store Store, cfg *Config) *SlidingWindow {
	if cfg == nil {
		cfg = &Config{}
	}

	maxRequests := cfg.MaxRequests
	if maxRequests <= 0 {
		maxRequests = DefaultMaxRequests
	}

	window := cfg.Window
	if window <= 0 {
		window = DefaultWindow
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &SlidingWindow{
		store:       store,
		maxRequests: maxRequests,
		window:      window,
		timeout:     timeout,
		logger:      logger,
		now:         now,
	}
}

// Allow evaluates one event against key's window: expire the trailing
// edge, count what remains, and insert the event if the key is under
// quota. Rejected events do not consume quota. Any store error fails
// open and admits the event.
func (l *SlidingWindow) Allow(ctx context.Context, key string) bool {
	redisKey := "ratelimit:" + key
	now := l.now()
	nowMs := now.UnixMilli()
	windowStart := nowMs - l.window.Milliseconds()

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	if err := l.store.RemoveRangeByScore(ctx, redisKey, 0, windowStart); err != nil {
		return l.failOpen(ctx, key, err)
	}

	count, err := l.store.CountMembers(ctx, redisKey)
	if err != nil {
		return l.failOpen(ctx, key, err)
	}

	if count >= l.maxRequests {
		l.logger.DebugContext(ctx, "rate limit rejected",
			"operation", "ratelimit_check",
			"key", key,
			"count", count,
			"outcome", "rejected",
		)
		return false
	}

	member := strconv.FormatInt(now.UnixNano(), 10)
	if err := l.store.AddMember(ctx, redisKey, member, nowMs); err != nil {
		return l.failOpen(ctx, key, err)
	}

	// Idle keys self-clean once they fall a full window behind.
	if err := l.store.Expire(ctx, redisKey, 2*l.window); err != nil {
		return l.failOpen(ctx, key, err)
	}

	l.logger.DebugContext(ctx, "rate limit admitted",
		"operation", "ratelimit_check",
		"key", key,
		"count", count,
		"outcome", "admitted",
	)
	return true
}

func (l *SlidingWindow) failOpen(ctx context.Context, key string, err error) bool {
	l.logger.WarnContext(ctx, "rate limit store error, failing open",
		"key", key,
		"error", err.Error(),
	)
	return true
}
