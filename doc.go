// Package tpool provides a fixed-lifecycle worker pool for Go.
//
// A pool owns one unbounded task queue, a stop flag and the set of worker
// goroutines pulling from that queue. Its lifecycle is driven by four
// explicit operations: Spawn adds workers, PushTask enqueues work, Stop
// tells workers to exit, and Join waits until they have.
//
// # Quick Start
//
//	pool, err := tpool.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := pool.Spawn(4); err != nil {
//	    log.Fatal(err)
//	}
//
//	for i := 0; i < 100; i++ {
//	    i := i
//	    pool.PushTask(func() error {
//	        fmt.Printf("Task %d executed\n", i)
//	        return nil
//	    })
//	}
//
//	pool.Stop()
//	pool.Join()
//
// # Lifecycle
//
// Spawn is additive: Spawn(2) followed by Spawn(3) leaves five workers.
// Tasks may be pushed before any worker exists; they wait in the queue
// and are picked up once a worker is spawned.
//
// Stop only flips the stop flag. It neither waits for workers nor drains
// the queue: a task already taken by a worker runs to completion, tasks
// still queued are never run. Join blocks until every spawned worker has
// observed the flag and exited. Calling Join without Stop blocks until
// another goroutine calls Stop.
//
//	pool.Stop()
//	pool.Join() // returns within about one PollInterval
//
// # Stop Detection
//
// An idle worker waits on the queue for at most PollInterval (200ms by
// default) before re-checking the stop flag, so shutdown latency is
// bounded by one interval:
//
//	pool, _ := tpool.New(
//	    tpool.WithPollInterval(50 * time.Millisecond),
//	)
//
// InterruptStop wakes idle workers the moment Stop is called instead:
//
//	pool, _ := tpool.New(
//	    tpool.WithStopMode(tpool.InterruptStop),
//	)
//
// # Error Handling
//
// Submission is fire-and-forget: PushTask never reports a task's outcome.
// A task that returns an error or panics is reported as a *TaskError to
// the pool's ErrorHandler. Without a handler the failure is logged at
// warn level.
//
//	sink := errsink.New()
//	pool, _ := tpool.New(
//	    tpool.WithErrorHandler(sink.Handle),
//	)
//	...
//	pool.Shutdown()
//	if err := sink.Err(); err != nil {
//	    log.Printf("some tasks failed: %v", err)
//	}
//
// # Default Pool
//
// SpawnThreads, PushTask, Stop and Join operate on a process-wide pool
// created lazily on first use. They exist for hosts that bind a fixed set
// of entry points; Go code should prefer an explicit *Pool.
//
// # Monitoring
//
// Stats returns task counters, latency and per-worker state. NewMetrics
// exposes the same flow as Prometheus collectors:
//
//	m, _ := tpool.NewMetrics("tpool", prometheus.DefaultRegisterer)
//	pool, _ := tpool.New(tpool.WithMetrics(m))
//
// # Thread Safety
//
// All exported methods are safe for concurrent use. Captured state in a
// task is handed to whichever worker runs it; the task must not race
// with its creator on that state.
package tpool
