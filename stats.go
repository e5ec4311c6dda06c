package tpool

import "time"

// Stats is a snapshot of pool counters. Values are read without a global
// lock and may be slightly inconsistent during concurrent operations.
//
// Example:
//
//	stats := pool.Stats()
//	fmt.Printf("Completed: %d/%d\n", stats.Completed, stats.Submitted)
type Stats struct {
	// Submitted is the total number of tasks accepted by PushTask.
	Submitted uint64

	// Completed is the number of tasks that returned nil.
	Completed uint64

	// Failed is the number of tasks that returned an error or panicked.
	Failed uint64

	// Panicked is the subset of Failed that panicked.
	Panicked uint64

	// Pending is the number of tasks still in the queue. After Stop these
	// are never run.
	Pending int

	// NumWorkers is the number of workers spawned and not yet joined.
	NumWorkers int

	// LiveWorkers is the number of worker goroutines that have not exited.
	LiveWorkers int

	// Stopped reports whether Stop has been called.
	Stopped bool

	// LatencyAvg is the average execution time of finished tasks.
	// Zero if no task has finished.
	LatencyAvg time.Duration

	// LatencyMax is the longest execution time observed.
	LatencyMax time.Duration

	// WorkerStats has one entry per registered worker, in spawn order.
	WorkerStats []WorkerStats
}

// WorkerStats contains statistics for an individual worker.
type WorkerStats struct {
	// WorkerID is assigned in spawn order starting at 0 and never reused.
	WorkerID int

	// TasksExecuted counts every task this worker ran, failed ones included.
	TasksExecuted uint64

	// TasksFailed counts tasks that returned an error or panicked.
	TasksFailed uint64

	// State is "RUNNING" or "EXITING".
	State string
}

// Stats returns a snapshot of pool statistics including task counts,
// latency and per-worker statistics.
func (p *Pool) Stats() Stats {
	p.mu.RLock()
	workerStats := make([]WorkerStats, len(p.workers))
	for i, w := range p.workers {
		workerStats[i] = WorkerStats{
			WorkerID:      w.id,
			TasksExecuted: w.tasksExecuted.Load(),
			TasksFailed:   w.tasksFailed.Load(),
			State:         w.getState().String(),
		}
	}
	p.mu.RUnlock()

	latencyCount := p.latencyCount.Load()
	latencyAvg := time.Duration(0)
	latencyMax := time.Duration(0)

	if latencyCount > 0 {
		latencyAvg = time.Duration(p.latencySum.Load()/latencyCount) * time.Microsecond
		latencyMax = time.Duration(p.latencyMax.Load()) * time.Microsecond
	}

	return Stats{
		Submitted:   p.metrics.submitted.Load(),
		Completed:   p.metrics.completed.Load(),
		Failed:      p.metrics.failed.Load(),
		Panicked:    p.metrics.panicked.Load(),
		Pending:     p.queue.len(),
		NumWorkers:  len(workerStats),
		LiveWorkers: int(p.live.Load()),
		Stopped:     p.stopped.Load(),
		LatencyAvg:  latencyAvg,
		LatencyMax:  latencyMax,
		WorkerStats: workerStats,
	}
}
