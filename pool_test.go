package tpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// newTestPool creates a pool with a short poll interval and registers a
// cleanup that shuts it down.
func newTestPool(t *testing.T, opts ...Option) *Pool {
	t.Helper()

	opts = append([]Option{WithPollInterval(10 * time.Millisecond)}, opts...)
	pool, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(pool.Shutdown)
	return pool
}

// ============================================================================
// Pool Creation Tests
// ============================================================================

func TestNew_DefaultConfig(t *testing.T) {
	pool, err := New()
	require.NoError(t, err)
	defer pool.Shutdown()

	assert.Equal(t, DefaultPollInterval, pool.config.PollInterval)
	assert.Equal(t, PollStop, pool.config.StopMode)
	assert.Equal(t, 0, pool.NumWorkers())
	assert.False(t, pool.IsStopped())
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{
			name: "zero poll interval",
			opts: []Option{WithPollInterval(0)},
		},
		{
			name: "negative poll interval",
			opts: []Option{WithPollInterval(-time.Second)},
		},
		{
			name: "unknown stop mode",
			opts: []Option{WithStopMode(StopMode(7))},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts...)
			require.Error(t, err)

			var poolErr *PoolError
			assert.ErrorAs(t, err, &poolErr)
		})
	}
}

func TestParseStopMode(t *testing.T) {
	tests := []struct {
		in      string
		want    StopMode
		wantErr bool
	}{
		{"", PollStop, false},
		{"poll", PollStop, false},
		{"interrupt", InterruptStop, false},
		{"spin", PollStop, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStopMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, mustParse(t, got.String()))
		})
	}
}

func mustParse(t *testing.T, s string) StopMode {
	t.Helper()
	m, err := ParseStopMode(s)
	require.NoError(t, err)
	return m
}

// ============================================================================
// Spawn Tests
// ============================================================================

func TestPool_Spawn_Additive(t *testing.T) {
	pool := newTestPool(t)

	for _, n := range []int{0, 1, 3, 0, 4} {
		before := pool.NumWorkers()
		require.NoError(t, pool.Spawn(n))
		assert.Equal(t, before+n, pool.NumWorkers())
		assert.Equal(t, before+n, pool.Stats().LiveWorkers)
	}

	ids := make(map[int]bool)
	for _, ws := range pool.Stats().WorkerStats {
		assert.False(t, ids[ws.WorkerID], "duplicate worker id %d", ws.WorkerID)
		ids[ws.WorkerID] = true
		assert.Equal(t, "RUNNING", ws.State)
	}
	assert.Len(t, ids, 8)
}

func TestPool_Spawn_Negative(t *testing.T) {
	pool := newTestPool(t)

	err := pool.Spawn(-1)
	assert.ErrorIs(t, err, ErrInvalidCount)
	assert.Equal(t, 0, pool.NumWorkers())
}

func TestPool_Spawn_AfterStop(t *testing.T) {
	pool := newTestPool(t)
	require.NoError(t, pool.Spawn(1))

	pool.Stop()

	err := pool.Spawn(2)
	assert.ErrorIs(t, err, ErrPoolStopped)
	assert.Equal(t, 1, pool.NumWorkers())
}

// ============================================================================
// PushTask Tests
// ============================================================================

func TestPool_PushTask_Executes(t *testing.T) {
	pool := newTestPool(t)
	require.NoError(t, pool.Spawn(2))

	done := make(chan struct{})
	require.NoError(t, pool.PushTask(func() error {
		close(done)
		return nil
	}))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task was not executed")
	}

	assert.Eventually(t, func() bool {
		return pool.Stats().Completed == 1
	}, time.Second, 5*time.Millisecond)
}

func TestPool_PushTask_NilTask(t *testing.T) {
	pool := newTestPool(t)

	err := pool.PushTask(nil)
	assert.ErrorIs(t, err, ErrNilTask)
	assert.Equal(t, uint64(0), pool.Stats().Submitted)
}

func TestPool_PushTask_DoesNotWait(t *testing.T) {
	pool := newTestPool(t)
	require.NoError(t, pool.Spawn(1))

	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	for i := 0; i < 10; i++ {
		require.NoError(t, pool.PushTask(func() error {
			<-release
			return nil
		}))
	}

	assert.Less(t, time.Since(start), 100*time.Millisecond,
		"PushTask must not wait for execution")
}

func TestPool_PushTask_BeforeSpawn(t *testing.T) {
	pool := newTestPool(t)

	var executed atomic.Bool
	require.NoError(t, pool.PushTask(func() error {
		executed.Store(true)
		return nil
	}))

	time.Sleep(30 * time.Millisecond)
	assert.False(t, executed.Load(), "no worker exists yet")
	assert.Equal(t, 1, pool.Pending())

	require.NoError(t, pool.Spawn(1))

	assert.Eventually(t, executed.Load, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, pool.Pending())
}

func TestPool_PushTask_AfterStopNeverRuns(t *testing.T) {
	pool := newTestPool(t)
	require.NoError(t, pool.Spawn(2))
	pool.Stop()
	pool.Join()

	var executed atomic.Bool
	require.NoError(t, pool.PushTask(func() error {
		executed.Store(true)
		return nil
	}))

	time.Sleep(30 * time.Millisecond)
	assert.False(t, executed.Load())
	assert.Equal(t, 1, pool.Stats().Pending)
}

func TestPool_PushTask_Concurrent(t *testing.T) {
	pool := newTestPool(t)
	require.NoError(t, pool.Spawn(4))

	const producers = 8
	const perProducer = 250
	var completed atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				_ = pool.PushTask(func() error {
					completed.Add(1)
					return nil
				})
			}
		}()
	}
	wg.Wait()

	assert.Eventually(t, func() bool {
		return completed.Load() == producers*perProducer
	}, 5*time.Second, 5*time.Millisecond)

	stats := pool.Stats()
	assert.Equal(t, uint64(producers*perProducer), stats.Submitted)
	assert.Equal(t, uint64(producers*perProducer), stats.Completed)
}

func TestPool_SingleProducerFIFO(t *testing.T) {
	pool := newTestPool(t)

	const numTasks = 200
	var order []int
	for i := 0; i < numTasks; i++ {
		i := i
		require.NoError(t, pool.PushTask(func() error {
			order = append(order, i)
			return nil
		}))
	}

	// No workers yet: pop in the order a worker would dequeue
	for i := 0; i < numTasks; i++ {
		e, ok := pool.queue.tryPop()
		require.True(t, ok)
		require.NoError(t, e.task())
	}

	require.Len(t, order, numTasks)
	for i, v := range order {
		require.Equal(t, i, v)
	}
}

func TestPool_DequeueOrderWithWorkers(t *testing.T) {
	pool := newTestPool(t)

	const numTasks = 100
	var mu sync.Mutex
	var dequeued []int

	// Every task records its index as soon as a worker starts it.
	// A single worker makes start order equal to dequeue order.
	for i := 0; i < numTasks; i++ {
		i := i
		require.NoError(t, pool.PushTask(func() error {
			mu.Lock()
			dequeued = append(dequeued, i)
			mu.Unlock()
			return nil
		}))
	}
	require.NoError(t, pool.Spawn(1))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(dequeued) == numTasks
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for i, v := range dequeued {
		require.Equal(t, i, v)
	}
}

// ============================================================================
// Error Handling Tests
// ============================================================================

func TestPool_TaskError_RoutedToHandler(t *testing.T) {
	var mu sync.Mutex
	var errs []error
	pool := newTestPool(t, WithErrorHandler(func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}))
	require.NoError(t, pool.Spawn(2))

	boom := errors.New("boom")
	require.NoError(t, pool.PushTask(func() error { return boom }))
	require.NoError(t, pool.PushTask(func() error { return nil }))

	assert.Eventually(t, func() bool {
		s := pool.Stats()
		return s.Completed+s.Failed == 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], boom)

	var taskErr *TaskError
	require.ErrorAs(t, errs[0], &taskErr)
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", taskErr.TaskID.String())
	assert.Contains(t, taskErr.Error(), "boom")

	stats := pool.Stats()
	assert.Equal(t, uint64(1), stats.Failed)
	assert.Equal(t, uint64(1), stats.Completed)
}

func TestPool_PanicRecovery(t *testing.T) {
	handled := make(chan error, 1)
	pool := newTestPool(t, WithErrorHandler(func(err error) {
		handled <- err
	}))
	require.NoError(t, pool.Spawn(1))

	require.NoError(t, pool.PushTask(func() error {
		panic("custom panic")
	}))

	var err error
	select {
	case err = <-handled:
	case <-time.After(time.Second):
		t.Fatal("panic was not reported")
	}

	var panicErr *PanicError
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, "custom panic", panicErr.Value)
	assert.NotEmpty(t, panicErr.Stack)

	// Worker survives the panic
	var executed atomic.Bool
	require.NoError(t, pool.PushTask(func() error {
		executed.Store(true)
		return nil
	}))
	assert.Eventually(t, executed.Load, time.Second, 5*time.Millisecond)

	stats := pool.Stats()
	assert.Equal(t, uint64(1), stats.Panicked)
	assert.Equal(t, 1, stats.LiveWorkers)
}

func TestPool_TaskError_DefaultHandlerLogs(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	pool := newTestPool(t, WithLogger(zap.New(core)))
	require.NoError(t, pool.Spawn(1))

	require.NoError(t, pool.PushTask(func() error {
		return errors.New("disk full")
	}))

	assert.Eventually(t, func() bool {
		return logs.FilterMessage("task failed").Len() == 1
	}, time.Second, 5*time.Millisecond)

	entry := logs.FilterMessage("task failed").All()[0]
	assert.Equal(t, "disk full", entry.ContextMap()["error"])
}

// ============================================================================
// Stop / Join Tests
// ============================================================================

func TestPool_Join_NoWorkers(t *testing.T) {
	pool := newTestPool(t)

	done := make(chan struct{})
	go func() {
		pool.Join()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Join with no workers should return immediately")
	}
}

func TestPool_StopJoin_Bounded(t *testing.T) {
	// Default 200ms poll interval
	pool, err := New()
	require.NoError(t, err)

	require.NoError(t, pool.Spawn(4))
	for i := 0; i < 100; i++ {
		require.NoError(t, pool.PushTask(func() error { return nil }))
	}

	start := time.Now()
	pool.Stop()
	pool.Join()
	elapsed := time.Since(start)

	assert.Less(t, elapsed, time.Second, "Join took %v", elapsed)
	assert.Equal(t, 0, pool.NumWorkers())
	assert.Equal(t, 0, pool.Stats().LiveWorkers)
}

func TestPool_StopJoin_WithQueuedTasks(t *testing.T) {
	pool := newTestPool(t)
	require.NoError(t, pool.Spawn(2))

	for i := 0; i < 50; i++ {
		require.NoError(t, pool.PushTask(func() error {
			time.Sleep(20 * time.Millisecond)
			return nil
		}))
	}
	time.Sleep(5 * time.Millisecond)

	start := time.Now()
	pool.Stop()
	pool.Join()

	// Two in-flight tasks finish; the queue is not drained
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	stats := pool.Stats()
	assert.Greater(t, stats.Pending, 0, "queue should not be drained")
	assert.Equal(t, uint64(50), stats.Submitted)
}

func TestPool_Stop_InFlightTaskCompletes(t *testing.T) {
	pool := newTestPool(t)
	require.NoError(t, pool.Spawn(1))

	started := make(chan struct{})
	var finished atomic.Bool
	require.NoError(t, pool.PushTask(func() error {
		close(started)
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
		return nil
	}))

	<-started
	pool.Stop()
	pool.Join()

	assert.True(t, finished.Load(), "dequeued task must run to completion")
}

func TestPool_Stop_Idempotent(t *testing.T) {
	pool := newTestPool(t)
	require.NoError(t, pool.Spawn(2))

	pool.Stop()
	pool.Stop()
	pool.Stop()

	assert.True(t, pool.IsStopped())
	pool.Join()
	assert.Equal(t, 0, pool.NumWorkers())
}

func TestPool_Join_Twice(t *testing.T) {
	pool := newTestPool(t)
	require.NoError(t, pool.Spawn(3))

	pool.Stop()
	pool.Join()

	done := make(chan struct{})
	go func() {
		pool.Join()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("second Join should return immediately")
	}
}

func TestPool_Join_BlocksUntilStop(t *testing.T) {
	pool := newTestPool(t)
	require.NoError(t, pool.Spawn(2))

	joined := make(chan struct{})
	go func() {
		pool.Join()
		close(joined)
	}()

	select {
	case <-joined:
		t.Fatal("Join returned before Stop")
	case <-time.After(50 * time.Millisecond):
	}

	// PushTask stays non-blocking while Join waits
	pushed := make(chan struct{})
	go func() {
		_ = pool.PushTask(func() error { return nil })
		close(pushed)
	}()
	select {
	case <-pushed:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("PushTask blocked behind Join")
	}

	pool.Stop()

	select {
	case <-joined:
	case <-time.After(time.Second):
		t.Fatal("Join did not return after Stop")
	}
}

func TestPool_JoinContext_Timeout(t *testing.T) {
	pool := newTestPool(t)
	require.NoError(t, pool.Spawn(2))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := pool.JoinContext(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, pool.NumWorkers(), "unjoined workers stay registered")

	pool.Stop()
	require.NoError(t, pool.JoinContext(context.Background()))
	assert.Equal(t, 0, pool.NumWorkers())
}

func TestPool_InterruptStop(t *testing.T) {
	// A long poll interval would make PollStop slow; InterruptStop is not
	// bound by it.
	pool, err := New(
		WithPollInterval(10*time.Second),
		WithStopMode(InterruptStop),
	)
	require.NoError(t, err)
	require.NoError(t, pool.Spawn(4))

	var executed atomic.Int32
	for i := 0; i < 20; i++ {
		require.NoError(t, pool.PushTask(func() error {
			executed.Add(1)
			return nil
		}))
	}
	assert.Eventually(t, func() bool { return executed.Load() == 20 },
		time.Second, 5*time.Millisecond)

	start := time.Now()
	pool.Shutdown()
	assert.Less(t, time.Since(start), 200*time.Millisecond)
	assert.Equal(t, 0, pool.Stats().LiveWorkers)
}

// ============================================================================
// Hooks / Stats Tests
// ============================================================================

func TestPool_WorkerHooks(t *testing.T) {
	var started, stopped atomic.Int32
	pool := newTestPool(t,
		WithWorkerHooks(
			func(int) { started.Add(1) },
			func(int) { stopped.Add(1) },
		),
		WithLockOSThread(true),
	)

	require.NoError(t, pool.Spawn(3))
	assert.Eventually(t, func() bool { return started.Load() == 3 },
		time.Second, 5*time.Millisecond)

	pool.Shutdown()
	assert.Equal(t, int32(3), stopped.Load())
}

func TestPool_Stats(t *testing.T) {
	pool := newTestPool(t, WithErrorHandler(func(error) {}))
	require.NoError(t, pool.Spawn(2))

	for i := 0; i < 10; i++ {
		fail := i%5 == 0
		require.NoError(t, pool.PushTask(func() error {
			time.Sleep(time.Millisecond)
			if fail {
				return errors.New("fail")
			}
			return nil
		}))
	}

	assert.Eventually(t, func() bool {
		s := pool.Stats()
		return s.Completed+s.Failed == 10
	}, 2*time.Second, 5*time.Millisecond)

	stats := pool.Stats()
	assert.Equal(t, uint64(10), stats.Submitted)
	assert.Equal(t, uint64(8), stats.Completed)
	assert.Equal(t, uint64(2), stats.Failed)
	assert.Equal(t, 0, stats.Pending)
	assert.Equal(t, 2, stats.NumWorkers)
	assert.Greater(t, stats.LatencyAvg, time.Duration(0))
	assert.GreaterOrEqual(t, stats.LatencyMax, stats.LatencyAvg)

	var executed, failed uint64
	for _, ws := range stats.WorkerStats {
		executed += ws.TasksExecuted
		failed += ws.TasksFailed
	}
	assert.Equal(t, uint64(10), executed)
	assert.Equal(t, uint64(2), failed)
}
