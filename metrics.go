package tpool

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus collectors for a pool. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	TasksSubmitted prometheus.Counter
	TasksCompleted prometheus.Counter
	TasksFailed    prometheus.Counter
	Workers        prometheus.Gauge
	QueueDepth     prometheus.Gauge
	TaskDuration   prometheus.Histogram
}

// NewMetrics creates the pool collectors and registers them with reg.
// Pass prometheus.DefaultRegisterer to expose them on the default handler.
func NewMetrics(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		TasksSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_submitted_total",
			Help:      "Total number of tasks pushed to the pool",
		}),
		TasksCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_completed_total",
			Help:      "Total number of tasks that returned without error",
		}),
		TasksFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_failed_total",
			Help:      "Total number of tasks that returned an error or panicked",
		}),
		Workers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workers",
			Help:      "Number of running worker goroutines",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Number of tasks waiting in the queue",
		}),
		TaskDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Histogram of task execution time",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	for _, c := range []prometheus.Collector{
		m.TasksSubmitted,
		m.TasksCompleted,
		m.TasksFailed,
		m.Workers,
		m.QueueDepth,
		m.TaskDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *Metrics) taskSubmitted() {
	if m == nil {
		return
	}
	m.TasksSubmitted.Inc()
	m.QueueDepth.Inc()
}

func (m *Metrics) taskDequeued() {
	if m == nil {
		return
	}
	m.QueueDepth.Dec()
}

func (m *Metrics) taskFinished(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.TaskDuration.Observe(d.Seconds())
	if err != nil {
		m.TasksFailed.Inc()
		return
	}
	m.TasksCompleted.Inc()
}

func (m *Metrics) workerStarted() {
	if m == nil {
		return
	}
	m.Workers.Inc()
}

func (m *Metrics) workerStopped() {
	if m == nil {
		return
	}
	m.Workers.Dec()
}
