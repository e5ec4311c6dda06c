package tpool

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Task is a unit of fire-and-forget work. Its error, if any, goes to the
// pool's ErrorHandler; the submitter never sees it.
type Task func() error

// Pool is a fixed-lifecycle worker pool: workers are added with Spawn,
// fed with PushTask, told to exit with Stop and reaped with Join.
type Pool struct {
	config Config

	// mu guards workers and the stopped transition. Spawn and Stop take
	// it for writing, PushTask for reading. Join holds it only while it
	// snapshots and trims the worker slice.
	mu      sync.RWMutex
	workers []*worker
	nextID  int

	// joinMu serializes Join callers while they wait outside mu.
	joinMu sync.Mutex

	// Created once, shared by all workers
	queue   *taskQueue
	stopped atomic.Bool
	stopCtx context.Context
	cancel  context.CancelFunc

	live atomic.Int64

	// Metrics
	metrics poolMetrics

	// Latency tracking
	latencySum   atomic.Uint64 // microseconds
	latencyCount atomic.Uint64
	latencyMax   atomic.Uint64 // microseconds
}

// poolMetrics tracks pool-wide statistics
type poolMetrics struct {
	submitted atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64
	panicked  atomic.Uint64
}

// New creates a pool with no workers. Tasks may be pushed before the
// first Spawn; they wait in the queue.
//
// Example:
//
//	pool, err := tpool.New(
//	    tpool.WithPollInterval(100 * time.Millisecond),
//	)
func New(opts ...Option) (*Pool, error) {
	cfg := DefaultConfig()

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		config:  cfg,
		queue:   newTaskQueue(),
		stopCtx: ctx,
		cancel:  cancel,
	}, nil
}

// Spawn starts n more workers. Calls are additive; there is no upper bound.
// Spawning zero workers is a no-op.
//
// Returns ErrInvalidCount if n is negative.
// Returns ErrPoolStopped if Stop has been called.
func (p *Pool) Spawn(n int) error {
	if n < 0 {
		return ErrInvalidCount
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped.Load() {
		return ErrPoolStopped
	}

	for i := 0; i < n; i++ {
		w := newWorker(p.nextID, p)
		p.nextID++
		p.workers = append(p.workers, w)
		p.live.Add(1)
		go w.run()
	}

	if n > 0 {
		p.config.Logger.Info("spawned workers",
			zap.Int("added", n),
			zap.Int("workers", len(p.workers)))
	}

	return nil
}

// PushTask enqueues task and returns without waiting for it to run.
// With no workers the task waits until one is spawned. After Stop the
// task is accepted but never run.
//
// Returns ErrNilTask if task is nil.
//
// Example:
//
//	err := pool.PushTask(func() error {
//	    return sendEmail(to)
//	})
func (p *Pool) PushTask(task Task) error {
	if task == nil {
		return ErrNilTask
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	p.queue.enqueue(envelope{
		id:       uuid.New(),
		task:     task,
		enqueued: time.Now(),
	})
	p.metrics.submitted.Add(1)
	p.config.Metrics.taskSubmitted()

	return nil
}

// Stop sets the stop flag. It does not wait for workers, does not drain
// the queue and does not interrupt running tasks. Calling it again is a
// no-op.
func (p *Pool) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped.Swap(true) {
		return
	}
	p.cancel()

	p.config.Logger.Info("pool stopped",
		zap.Int("workers", len(p.workers)),
		zap.Int("pending", p.queue.len()))
}

// Join blocks until every worker registered so far has exited, then
// forgets them. Without a prior Stop it blocks until some other goroutine
// calls Stop. With no workers it returns immediately.
func (p *Pool) Join() {
	_ = p.JoinContext(context.Background())
}

// JoinContext is Join bounded by ctx. Workers that exited before ctx was
// done are forgotten; the rest stay registered for a later Join.
func (p *Pool) JoinContext(ctx context.Context) error {
	p.joinMu.Lock()
	defer p.joinMu.Unlock()

	p.mu.RLock()
	workers := make([]*worker, len(p.workers))
	copy(workers, p.workers)
	p.mu.RUnlock()

	joined := 0
	var err error
wait:
	for _, w := range workers {
		select {
		case <-w.done:
			joined++
		case <-ctx.Done():
			err = ctx.Err()
			break wait
		}
	}

	if joined > 0 {
		p.mu.Lock()
		// Spawn only appends and joinMu excludes other joiners, so the
		// joined workers are still the head of the slice.
		p.workers = p.workers[joined:]
		p.mu.Unlock()

		p.config.Logger.Info("joined workers", zap.Int("joined", joined))
	}

	return err
}

// Shutdown stops the pool and waits for its workers.
func (p *Pool) Shutdown() {
	p.Stop()
	p.Join()
}

// IsStopped reports whether Stop has been called.
func (p *Pool) IsStopped() bool {
	return p.stopped.Load()
}

// NumWorkers returns the number of workers spawned and not yet joined.
func (p *Pool) NumWorkers() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.workers)
}

// Pending returns the number of tasks waiting in the queue.
func (p *Pool) Pending() int {
	return p.queue.len()
}

// handleError delivers a task failure to the configured handler
func (p *Pool) handleError(err *TaskError) {
	if p.config.ErrorHandler != nil {
		p.config.ErrorHandler(err)
		return
	}

	fields := []zap.Field{
		zap.Int("worker", err.WorkerID),
		zap.String("task", err.TaskID.String()),
		zap.Error(err.Err),
	}
	if pe, ok := err.Err.(*PanicError); ok {
		fields = append(fields, zap.String("stack", pe.Stack))
	}
	p.config.Logger.Warn("task failed", fields...)
}

// recordLatency records task execution latency
func (p *Pool) recordLatency(duration time.Duration) {
	micros := uint64(duration.Microseconds())

	p.latencySum.Add(micros)
	p.latencyCount.Add(1)

	for {
		current := p.latencyMax.Load()
		if micros <= current {
			break
		}
		if p.latencyMax.CompareAndSwap(current, micros) {
			break
		}
	}
}
