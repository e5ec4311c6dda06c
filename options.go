package tpool

import (
	"time"

	"go.uber.org/zap"
)

// Option configures a Pool.
type Option func(*Config)

// WithPollInterval sets how long an idle worker waits on the queue
// between stop flag checks.
func WithPollInterval(d time.Duration) Option {
	return func(c *Config) {
		c.PollInterval = d
	}
}

// WithStopMode selects how idle workers observe Stop.
func WithStopMode(mode StopMode) Option {
	return func(c *Config) {
		c.StopMode = mode
	}
}

// WithErrorHandler routes task failures to fn.
func WithErrorHandler(fn func(error)) Option {
	return func(c *Config) {
		c.ErrorHandler = fn
	}
}

// WithWorkerHooks sets worker lifecycle callbacks. Either may be nil.
func WithWorkerHooks(onStart, onStop func(workerID int)) Option {
	return func(c *Config) {
		c.OnWorkerStart = onStart
		c.OnWorkerStop = onStop
	}
}

// WithLockOSThread pins every worker to a dedicated OS thread.
func WithLockOSThread(lock bool) Option {
	return func(c *Config) {
		c.LockOSThread = lock
	}
}

// WithLogger sets the pool logger. A nil logger is ignored.
func WithLogger(l *zap.Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	}
}

// WithMetrics attaches Prometheus collectors to the pool.
func WithMetrics(m *Metrics) Option {
	return func(c *Config) {
		c.Metrics = m
	}
}
