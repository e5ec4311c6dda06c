package tpool

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// compactThreshold is the consumed-prefix length past which the backing
// slice is shifted down instead of growing further.
const compactThreshold = 1024

// envelope is a task as it travels through the queue
type envelope struct {
	id       uuid.UUID
	task     Task
	enqueued time.Time
}

// taskQueue is an unbounded, multi-producer multi-consumer FIFO of tasks.
//
// Producers never block. Consumers wait on ready, a one-slot wakeup
// channel; a consumer that takes an item while more remain passes the
// wakeup on, so no waiting consumer is stranded.
type taskQueue struct {
	mu    sync.Mutex
	items []envelope
	head  int // index of the oldest undelivered item

	ready chan struct{}
}

// newTaskQueue creates an empty queue
func newTaskQueue() *taskQueue {
	return &taskQueue{
		ready: make(chan struct{}, 1),
	}
}

// enqueue appends a task. It never blocks and never fails.
func (q *taskQueue) enqueue(e envelope) {
	q.mu.Lock()
	q.items = append(q.items, e)
	q.mu.Unlock()

	q.notify()
}

// notify leaves a wakeup for one waiting consumer
func (q *taskQueue) notify() {
	select {
	case q.ready <- struct{}{}:
	default:
		// A wakeup is already pending
	}
}

// tryPop removes the oldest item if there is one
func (q *taskQueue) tryPop() (envelope, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.head >= len(q.items) {
		return envelope{}, false
	}

	e := q.items[q.head]
	q.items[q.head] = envelope{}
	q.head++

	switch {
	case q.head == len(q.items):
		q.items = q.items[:0]
		q.head = 0
	case q.head >= compactThreshold && q.head*2 >= len(q.items):
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}

	if q.head < len(q.items) {
		q.notify()
	}

	return e, true
}

// tryReceive waits up to timeout for a task. It returns false on timeout;
// a timeout is the normal idle path, not an error.
func (q *taskQueue) tryReceive(timeout time.Duration) (envelope, bool) {
	if e, ok := q.tryPop(); ok {
		return e, true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-q.ready:
			if e, ok := q.tryPop(); ok {
				return e, true
			}
			// Another consumer won the item; wait for the rest of the window
		case <-timer.C:
			return q.tryPop()
		}
	}
}

// receiveContext waits for a task until ctx is done.
func (q *taskQueue) receiveContext(ctx context.Context) (envelope, error) {
	if e, ok := q.tryPop(); ok {
		return e, nil
	}

	for {
		select {
		case <-q.ready:
			if e, ok := q.tryPop(); ok {
				return e, nil
			}
		case <-ctx.Done():
			return envelope{}, ctx.Err()
		}
	}
}

// len returns the number of queued tasks.
// This is a snapshot and may be stale during concurrent operations
func (q *taskQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}
