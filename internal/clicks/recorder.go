package clicks

import (
	"context"
	"log/slog"
	"time"

	"github.com/sundayezeilo/shortlink/internal/worker"
)

const (
	// DefaultCounterTTL bounds how long an unflushed counter survives.
	// A counter that is never flushed within its TTL is lost; the
	// aggregator normally drains it well before that.
	DefaultCounterTTL = 24 * time.Hour

	// DefaultTimeout bounds each counter-store round-trip.
	DefaultTimeout = 500 * time.Millisecond
)

// Recorder increments click counters off the request path. Record
// dispatches the increment to a worker pool and returns immediately;
// counter-store latency or failure never delays or fails the response
// being served.
type Recorder struct {
	store   CounterStore
	pool    *worker.Pool
	ttl     time.Duration
	timeout time.Duration
	logger  *slog.Logger
}

// RecorderConfig holds recorder settings.
type RecorderConfig struct {
	CounterTTL time.Duration
	Timeout    time.Duration
	Logger     *slog.Logger
}

// NewRecorder creates a recorder dispatching to the given pool.
func NewRecorder(store CounterStore, pool *worker.Pool, cfg *RecorderConfig) *Recorder {
	if cfg == nil {
		cfg = &RecorderConfig{}
	}

	ttl := cfg.CounterTTL
	if ttl <= 0 {
		ttl = DefaultCounterTTL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Recorder{
		store:   store,
		pool:    pool,
		ttl:     ttl,
		timeout: timeout,
		logger:  logger,
	}
}

// Record dispatches a click increment for code. Fire-and-forget: the
// caller does not learn whether the increment succeeded.
func (r *Recorder) Record(code string) {
	r.pool.Submit(worker.Task{
		Name: "click_increment",
		Fn: func(ctx context.Context) error {
			return r.increment(ctx, code)
		},
	})
}

func (r *Recorder) increment(ctx context.Context, code string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	key := KeyPrefix + code
	if _, err := r.store.Incr(ctx, key); err != nil {
		return err
	}
	return r.store.Expire(ctx, key, r.ttl)
}

// Clear removes the pending counter for code, used when the underlying
// record is deleted. Failures are logged and swallowed; a leftover
// counter becomes an orphan the aggregator discards.
func (r *Recorder) Clear(ctx context.Context, code string) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.store.Del(ctx, KeyPrefix+code); err != nil {
		r.logger.WarnContext(ctx, "failed to clear click counter",
			"code", code,
			"error", err.Error(),
		)
	}
}
