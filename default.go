package tpool

import "sync"

// defaultPool is built on first use; sync.OnceValue guarantees a single
// construction under concurrent first access.
var defaultPool = sync.OnceValue(func() *Pool {
	p, err := New()
	if err != nil {
		panic(err)
	}
	return p
})

// Default returns the process-wide pool used by the package-level
// functions. It lives for the lifetime of the process.
func Default() *Pool {
	return defaultPool()
}

// SpawnThreads starts n workers on the default pool. It reports false
// only if the default pool has already been stopped.
func SpawnThreads(n uint32) bool {
	return Default().Spawn(int(n)) == nil
}

// PushTask enqueues task on the default pool. A nil task panics.
func PushTask(task Task) {
	if err := Default().PushTask(task); err != nil {
		panic(err)
	}
}

// Stop sets the default pool's stop flag.
func Stop() {
	Default().Stop()
}

// Join waits for every worker of the default pool to exit.
func Join() {
	Default().Join()
}
