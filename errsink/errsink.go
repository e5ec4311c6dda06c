// Package errsink collects task failures reported by a tpool.Pool.
//
// A pool never returns task errors to the submitter; it hands them to an
// error handler instead. A Collector is such a handler:
//
//	sink := errsink.New(errsink.WithErrorMode(errsink.FailFast))
//	pool, _ := tpool.New(tpool.WithErrorHandler(sink.Handle))
//	...
//	pool.Shutdown()
//	if err := sink.Err(); err != nil {
//	    return err
//	}
package errsink

import (
	"sync"
	"sync/atomic"
)

// Collector records errors according to its ErrorMode. Handle is safe for
// concurrent use by any number of workers.
type Collector struct {
	config Config

	mu       sync.Mutex
	errors   []error
	firstErr error
	dropped  uint64

	count atomic.Uint64
}

// New creates a Collector with the given options
func New(opts ...Option) *Collector {
	return &Collector{
		config: BuildConfig(opts),
	}
}

// Handle records err. A nil err is ignored.
func (c *Collector) Handle(err error) {
	if err == nil {
		return
	}

	c.count.Add(1)

	c.mu.Lock()
	first := c.firstErr == nil
	if first {
		c.firstErr = err
	}
	if c.config.errorMode == CollectAll {
		if c.config.maxErrors <= 0 || len(c.errors) < c.config.maxErrors {
			c.errors = append(c.errors, err)
		} else {
			c.dropped++
		}
	}
	c.mu.Unlock()

	if first && c.config.onFirstError != nil {
		c.config.onFirstError(err)
	}
}

// Err returns the recorded failures: an *AggregateError for CollectAll,
// the first error for FailFast, nil for IgnoreErrors or when nothing
// failed.
func (c *Collector) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.config.errorMode {
	case FailFast:
		return c.firstErr

	case CollectAll:
		if len(c.errors) == 0 {
			return nil
		}
		collected := make([]error, len(c.errors))
		copy(collected, c.errors)
		return &AggregateError{Errors: collected, Dropped: c.dropped}

	default:
		return nil
	}
}

// Errors returns a copy of the retained errors.
func (c *Collector) Errors() []error {
	c.mu.Lock()
	defer c.mu.Unlock()

	errs := make([]error, len(c.errors))
	copy(errs, c.errors)
	return errs
}

// Count returns how many errors Handle has seen, in every mode.
func (c *Collector) Count() uint64 {
	return c.count.Load()
}
