package tpool

import (
	"fmt"

	"github.com/google/uuid"
)

// Common errors returned by the pool.
var (
	// ErrNilTask is returned when attempting to push a nil task function.
	// All pushed tasks must be non-nil function values.
	//
	// Example:
	//  var task tpool.Task
	//  err := pool.PushTask(task)
	//  if errors.Is(err, tpool.ErrNilTask) {
	//      log.Println("Cannot push nil task")
	//  }
	ErrNilTask = &PoolError{msg: "task is nil"}

	// ErrPoolStopped is returned by Spawn once Stop has been called.
	// A stopped pool never grows again; workers spawned after the stop
	// flag is set would exit on their first iteration.
	ErrPoolStopped = &PoolError{msg: "pool is stopped"}

	// ErrInvalidCount is returned by Spawn when asked for a negative
	// number of workers.
	ErrInvalidCount = &PoolError{msg: "worker count must be >= 0"}
)

// PoolError represents an error that occurred within the worker pool.
// It wraps underlying errors and provides context about pool operations.
//
// PoolError implements the error interface and supports error unwrapping
// via errors.Unwrap.
type PoolError struct {
	msg string // Human-readable error message
	err error  // Underlying error (if any)
}

// Error returns a formatted error message.
// If an underlying error exists, it is included in the output.
func (e *PoolError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("tpool: %s: %v", e.msg, e.err)
	}
	return fmt.Sprintf("tpool: %s", e.msg)
}

// Unwrap returns the underlying error, allowing use with errors.Is and errors.As.
func (e *PoolError) Unwrap() error {
	return e.err
}

// errInvalidConfig creates an error for invalid pool configuration.
// This is returned during pool creation when validation fails.
func errInvalidConfig(msg string) error {
	return &PoolError{msg: "invalid config: " + msg}
}

// TaskError reports a task that returned an error or panicked. It is
// delivered to the pool's ErrorHandler, never to the submitter.
type TaskError struct {
	WorkerID int
	TaskID   uuid.UUID
	Err      error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("tpool: worker %d: task %s: %v", e.WorkerID, e.TaskID, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// PanicError wraps a recovered panic value and its stack trace.
type PanicError struct {
	Value interface{}
	Stack string
}

// Error implements the error interface for PanicError.
func (p *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", p.Value)
}
