package tpool

import (
	"context"
	"runtime"
	"runtime/debug"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// WorkerState represents the current state of a worker
type WorkerState int32

const (
	// StateRunning is entered as soon as the worker goroutine starts.
	StateRunning WorkerState = iota
	// StateExiting is terminal: the worker observed the stop flag.
	StateExiting
)

func (s WorkerState) String() string {
	switch s {
	case StateRunning:
		return "RUNNING"
	case StateExiting:
		return "EXITING"
	default:
		return "UNKNOWN"
	}
}

// worker is one goroutine pulling from the pool's queue.
//
// The queue, stop flag and stop context are handed over by Spawn while it
// holds the pool's write lock; the worker never touches the pool lock.
type worker struct {
	id   int
	pool *Pool

	queue   *taskQueue
	stopped *atomic.Bool
	stopCtx context.Context

	state atomic.Int32

	// Metrics
	tasksExecuted atomic.Uint64
	tasksFailed   atomic.Uint64

	done chan struct{}
}

// newWorker creates a worker bound to the pool's shared handles.
// Caller must hold p.mu for writing.
func newWorker(id int, p *Pool) *worker {
	w := &worker{
		id:      id,
		pool:    p,
		queue:   p.queue,
		stopped: &p.stopped,
		stopCtx: p.stopCtx,
		done:    make(chan struct{}),
	}
	w.state.Store(int32(StateRunning))
	return w
}

// run is the main worker loop
func (w *worker) run() {
	defer close(w.done)

	cfg := &w.pool.config
	if cfg.LockOSThread {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}

	cfg.Metrics.workerStarted()
	cfg.Logger.Debug("worker started", zap.Int("worker", w.id))
	if cfg.OnWorkerStart != nil {
		cfg.OnWorkerStart(w.id)
	}

	for {
		if w.stopped.Load() {
			break
		}

		e, ok := w.next()
		if !ok {
			continue
		}
		w.execute(e)
	}

	w.state.Store(int32(StateExiting))

	if cfg.OnWorkerStop != nil {
		cfg.OnWorkerStop(w.id)
	}
	cfg.Logger.Debug("worker exiting", zap.Int("worker", w.id))
	cfg.Metrics.workerStopped()
	w.pool.live.Add(-1)
}

// next waits for one task according to the configured stop mode
func (w *worker) next() (envelope, bool) {
	if w.pool.config.StopMode == InterruptStop {
		e, err := w.queue.receiveContext(w.stopCtx)
		return e, err == nil
	}
	return w.queue.tryReceive(w.pool.config.PollInterval)
}

// execute runs a task exactly once with panic recovery. A dequeued task
// always runs to completion, even if Stop is called meanwhile.
func (w *worker) execute(e envelope) {
	p := w.pool
	p.config.Metrics.taskDequeued()

	start := time.Now()
	err := runTask(e.task)
	elapsed := time.Since(start)

	p.recordLatency(elapsed)
	p.config.Metrics.taskFinished(elapsed, err)
	w.tasksExecuted.Add(1)

	if err == nil {
		p.metrics.completed.Add(1)
		return
	}

	w.tasksFailed.Add(1)
	p.metrics.failed.Add(1)
	if _, ok := err.(*PanicError); ok {
		p.metrics.panicked.Add(1)
	}

	p.handleError(&TaskError{WorkerID: w.id, TaskID: e.id, Err: err})
}

// runTask calls task, converting a panic into a *PanicError
func runTask(task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: string(debug.Stack())}
		}
	}()

	return task()
}

// getState returns the current worker state
func (w *worker) getState() WorkerState {
	return WorkerState(w.state.Load())
}
