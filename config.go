package tpool

import (
	"time"

	"go.uber.org/zap"
)

// DefaultPollInterval bounds how long an idle worker waits on the queue
// before it re-checks the stop flag.
const DefaultPollInterval = 200 * time.Millisecond

// StopMode defines how idle workers notice a Stop request
type StopMode int

const (
	// PollStop re-checks the stop flag after every bounded queue wait.
	// Worst-case shutdown latency is one PollInterval per worker.
	PollStop StopMode = iota
	// InterruptStop wakes waiting workers as soon as Stop is called.
	InterruptStop
)

func (m StopMode) String() string {
	switch m {
	case PollStop:
		return "poll"
	case InterruptStop:
		return "interrupt"
	default:
		return "unknown"
	}
}

// ParseStopMode maps "poll" or "interrupt" to a StopMode.
func ParseStopMode(s string) (StopMode, error) {
	switch s {
	case "", "poll":
		return PollStop, nil
	case "interrupt":
		return InterruptStop, nil
	default:
		return PollStop, errInvalidConfig("unknown stop mode " + s)
	}
}

// Config contains all configuration options for the worker pool
type Config struct {
	// PollInterval is the bounded wait of an idle worker on the queue.
	// Defaults to 200ms
	PollInterval time.Duration

	// StopMode selects polling or interrupt-driven stop detection.
	// Defaults to PollStop
	StopMode StopMode

	// ErrorHandler receives every task failure as a *TaskError,
	// including recovered panics. It runs on the worker goroutine.
	// If nil, failures are logged at warn level
	ErrorHandler func(error)

	// OnWorkerStart is called when a worker starts
	// Useful for initialization, logging, or tracing
	OnWorkerStart func(workerID int)

	// OnWorkerStop is called when a worker exits its loop
	OnWorkerStop func(workerID int)

	// LockOSThread pins each worker goroutine to its own OS thread
	// for the lifetime of the worker.
	LockOSThread bool

	// Logger receives pool lifecycle and task failure logs.
	// Defaults to a no-op logger
	Logger *zap.Logger

	// Metrics, if set, is updated as tasks flow through the pool.
	Metrics *Metrics
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		PollInterval: DefaultPollInterval,
		StopMode:     PollStop,
		Logger:       zap.NewNop(),
	}
}

// Validate checks the configuration and returns an error if invalid
func (c *Config) Validate() error {
	if c.PollInterval <= 0 {
		return errInvalidConfig("PollInterval must be > 0")
	}

	if c.StopMode != PollStop && c.StopMode != InterruptStop {
		return errInvalidConfig("unknown StopMode")
	}

	if c.Logger == nil {
		return errInvalidConfig("Logger must not be nil")
	}

	return nil
}
