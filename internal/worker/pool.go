// Package worker provides a bounded goroutine pool for fire-and-forget
// work dispatched off the request path, such as click-counter updates.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Task is a unit of work executed by the pool.
type Task struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Pool runs tasks on a fixed set of workers fed from a bounded queue.
// Submission never blocks: when the queue is full the task is dropped
// and counted, keeping the caller's latency independent of the pool.
type Pool struct {
	workers   int
	taskQueue chan Task
	logger    *slog.Logger
	wg        sync.WaitGroup
	stopOnce  sync.Once
	stopChan  chan struct{}

	completed atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}

// Config holds pool settings. Zero values fall back to defaults.
type Config struct {
	Workers   int
	QueueSize int
	Logger    *slog.Logger
}

// NewPool creates and starts a worker pool.
func NewPool(cfg *Config) *Pool {
	if cfg == nil {
		cfg = &Config{}
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}

	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pool{
		workers:   workers,
		taskQueue: make(chan Task, queueSize),
		logger:    logger,
		stopChan:  make(chan struct{}),
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			// Finish what was accepted before the stop; Submit stops
			// enqueueing once stopChan is closed.
			for {
				select {
				case task := <-p.taskQueue:
					p.run(task)
				default:
					return
				}
			}
		case task := <-p.taskQueue:
			p.run(task)
		}
	}
}

func (p *Pool) run(task Task) {
	start := time.Now()

	err := p.safeRun(task)
	if err != nil {
		p.failed.Add(1)
		p.logger.Warn("background task failed",
			"task", task.Name,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err.Error(),
		)
		return
	}
	p.completed.Add(1)
}

func (p *Pool) safeRun(task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return task.Fn(context.Background())
}

// Submit enqueues a task without blocking. It returns false if the pool
// is stopped or the queue is full; the task is dropped in both cases.
func (p *Pool) Submit(task Task) bool {
	select {
	case <-p.stopChan:
		p.dropped.Add(1)
		return false
	default:
	}

	select {
	case p.taskQueue <- task:
		return true
	default:
		p.dropped.Add(1)
		p.logger.Warn("background task dropped, queue full", "task", task.Name)
		return false
	}
}

// Stop shuts the pool down, waiting up to timeout for every accepted
// task, queued or in flight, to finish.
func (p *Pool) Stop(timeout time.Duration) error {
	var err error
	p.stopOnce.Do(func() {
		close(p.stopChan)

		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(timeout):
			err = fmt.Errorf("worker pool stop timed out after %v", timeout)
		}
	})
	return err
}

// Stats reports task counts since startup.
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:   p.workers,
		Queued:    len(p.taskQueue),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Dropped:   p.dropped.Load(),
	}
}

// Stats is a point-in-time snapshot of pool activity.
type Stats struct {
	Workers   int
	Queued    int
	Completed uint64
	Failed    uint64
	Dropped   uint64
}
