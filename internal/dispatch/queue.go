// Package dispatch runs fire-and-forget side effects (audit lines, reference
// relinking) on a small pool of workers fed by a bounded channel.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go-lms/internal/config"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Task is one unit of background work. It receives a context detached from the
// request that queued it.
type Task func(ctx context.Context) error

type job struct {
	name string
	fn   Task
}

// DropHook is called when a task could not be queued.
type DropHook func(name string)

type Queue struct {
	jobs    chan job
	logger  *zap.Logger
	timeout time.Duration
	onDrop  DropHook

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewQueue starts workers immediately. Call Stop to drain.
func NewQueue(workers, buffer int, logger *zap.Logger) *Queue {
	if workers < 1 {
		workers = 1
	}
	if buffer < 1 {
		buffer = 1
	}
	q := &Queue{
		jobs:    make(chan job, buffer),
		logger:  logger.With(zap.String("component", "dispatch")),
		timeout: 30 * time.Second,
	}
	q.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go q.worker()
	}
	return q
}

// NewDispatchQueue is the fx constructor; the queue is drained on shutdown.
func NewDispatchQueue(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) *Queue {
	q := NewQueue(cfg.DispatchWorkers, cfg.DispatchBuffer, logger)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return q.Stop(ctx)
		},
	})
	return q
}

// OnDrop registers a hook invoked for every task rejected by Submit.
func (q *Queue) OnDrop(hook DropHook) {
	q.onDrop = hook
}

// Submit queues fn without blocking. It returns false when the queue is full or stopped.
func (q *Queue) Submit(name string, fn Task) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.drop(name, "queue stopped")
		return false
	}
	select {
	case q.jobs <- job{name: name, fn: fn}:
		return true
	default:
		q.drop(name, "queue full")
		return false
	}
}

func (q *Queue) drop(name, reason string) {
	q.logger.Warn("Dropped background task", zap.String("task", name), zap.String("reason", reason))
	if q.onDrop != nil {
		q.onDrop(name)
	}
}

// Stop refuses new tasks and waits for queued ones to finish or ctx to expire.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("dispatch queue stop: %w", ctx.Err())
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for j := range q.jobs {
		q.run(j)
	}
}

func (q *Queue) run(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("Background task panicked", zap.String("task", j.name), zap.Any("panic", r))
		}
	}()

	if err := j.fn(ctx); err != nil {
		q.logger.Warn("Background task failed", zap.String("task", j.name), zap.Error(err))
	}
}
