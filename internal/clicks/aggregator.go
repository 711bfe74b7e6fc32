package clicks

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sundayezeilo/shortlink/internal/errx"
)

// DefaultSyncInterval is how often pending counters are folded into the
// authoritative store.
const DefaultSyncInterval = 60 * time.Second

// LinkStore is the authoritative-store surface the aggregator needs:
// atomically add a click delta to the record for slug. Implementations
// return an errx.NotFound error when no such record exists.
type LinkStore interface {
	AddClicks(ctx context.Context, slug string, delta int64) error
}

// Summary describes one aggregation run.
type Summary struct {
	Keys    int           // counter keys successfully folded
	Clicks  int64         // total clicks folded
	Skipped int           // keys skipped (empty counter or orphan)
	Failed  int           // keys that errored and were left for the next run
	Elapsed time.Duration
}

// Aggregator periodically drains pending click counters into the
// authoritative store. Runs never overlap: if a prior run is still in
// flight when the timer fires, the tick is skipped. Within a run each
// key is processed independently; one bad key never aborts the batch.
//
// Semantics are at-least-once: a crash between persisting the delta and
// deleting the counter key re-applies the same delta on the next run.
type Aggregator struct {
	counters CounterStore
	links    LinkStore
	interval time.Duration
	logger   *slog.Logger

	running  atomic.Bool
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// AggregatorConfig holds aggregator settings.
type AggregatorConfig struct {
	Interval time.Duration
	Logger   *slog.Logger
}

// NewAggregator creates an aggregator; call Start to begin the periodic
// sync loop.
func NewAggregator(counters CounterStore, links LinkStore, cfg *AggregatorConfig) *Aggregator {
	if cfg == nil {
		cfg = &AggregatorConfig{}
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultSyncInterval
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Aggregator{
		counters: counters,
		links:    links,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start launches the periodic sync loop in a background goroutine.
func (a *Aggregator) Start(ctx context.Context) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()

		for {
			select {
			case <-a.stopChan:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.tick(ctx)
			}
		}
	}()
}

// Stop terminates the sync loop and waits for an in-flight run.
func (a *Aggregator) Stop() {
	a.stopOnce.Do(func() {
		close(a.stopChan)
	})
	a.wg.Wait()
}

func (a *Aggregator) tick(ctx context.Context) {
	if !a.running.CompareAndSwap(false, true) {
		a.logger.Warn("click sync still in flight, skipping tick")
		return
	}
	defer a.running.Store(false)

	summary := a.RunOnce(ctx)
	a.logger.Info("click sync complete",
		"operation", "click_sync",
		"keys", summary.Keys,
		"clicks", summary.Clicks,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"duration_ms", summary.Elapsed.Milliseconds(),
	)
}

// RunOnce performs a single aggregation pass over all pending counter
// keys and returns a summary. Callers other than the internal loop must
// not invoke it concurrently with itself.
func (a *Aggregator) RunOnce(ctx context.Context) Summary {
	start := time.Now()
	var summary Summary

	keys, err := a.counters.Keys(ctx, KeyPrefix+"*")
	if err != nil {
		a.logger.Error("failed to enumerate click counters", "error", err.Error())
		summary.Elapsed = time.Since(start)
		return summary
	}

	for _, key := range keys {
		code := strings.TrimPrefix(key, KeyPrefix)

		count, err := a.counters.GetInt(ctx, key)
		if err != nil {
			summary.Failed++
			a.logger.Warn("failed to read click counter", "code", code, "error", err.Error())
			continue
		}
		if count <= 0 {
			summary.Skipped++
			continue
		}

		if err := a.links.AddClicks(ctx, code, count); err != nil {
			if errx.IsKind(err, errx.NotFound) {
				// Orphaned counter: the record was deleted after clicks
				// accrued. Discard the delta and the key so a re-created
				// code never inherits stale clicks.
				summary.Skipped++
				a.logger.Warn("orphaned click counter, discarding delta",
					"code", code,
					"clicks", count,
				)
				if err := a.counters.Del(ctx, key); err != nil {
					a.logger.Warn("failed to delete orphaned counter",
						"code", code, "error", err.Error())
				}
				continue
			}
			summary.Failed++
			a.logger.Warn("failed to fold click counter", "code", code, "error", err.Error())
			continue
		}

		// Delete after persist. A crash in between double-counts on the
		// next run; accepted at-least-once slack.
		if err := a.counters.Del(ctx, key); err != nil {
			summary.Failed++
			a.logger.Warn("failed to delete flushed counter", "code", code, "error", err.Error())
			continue
		}

		summary.Keys++
		summary.Clicks += count
	}

	summary.Elapsed = time.Since(start)
	return summary
}
