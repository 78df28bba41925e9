// Package worker provides worker pool implementations
package worker

import (
	"context"
	"slices"
	"sync"

	"github.com/jzx17/goworkq/pkg/types"
)

// task is one admitted submission waiting in the pool's queue
type task[T, R any] struct {
	id     int64
	index  int
	ctx    context.Context
	input  T
	future *Future[R]
}

// Future is the eventual result of one submitted task. It completes exactly
// once, with either a value or an error.
type Future[R any] struct {
	id    int64
	index int
	done  chan struct{}

	mu        sync.Mutex
	completed bool
	result    types.Result[R]
	callbacks []*callback
}

type callback struct {
	fn func()
}

func newFuture[R any](id int64, index int) *Future[R] {
	return &Future[R]{
		id:    id,
		index: index,
		done:  make(chan struct{}),
	}
}

// ID returns the pool-assigned task identifier
func (f *Future[R]) ID() int64 {
	return f.id
}

// Index returns the input position for batch submissions, -1 otherwise
func (f *Future[R]) Index() int {
	return f.index
}

// Done returns a channel closed once the result is available
func (f *Future[R]) Done() <-chan struct{} {
	return f.done
}

// Get blocks until the task completes or ctx is done. A task failure is
// returned as a *types.TaskError.
func (f *Future[R]) Get(ctx context.Context) (R, error) {
	select {
	case <-f.done:
		return f.result.Unpack()
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	}
}

// Result returns the outcome without blocking. The second value is false
// while the task is still pending.
func (f *Future[R]) Result() (types.Result[R], bool) {
	select {
	case <-f.done:
		return f.result, true
	default:
		return types.Result[R]{}, false
	}
}

// complete publishes r. Only the first call has an effect.
func (f *Future[R]) complete(r types.Result[R]) bool {
	f.mu.Lock()
	if f.completed {
		f.mu.Unlock()
		return false
	}
	f.completed = true
	f.result = r
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	for _, cb := range callbacks {
		cb.fn()
	}
	return true
}

// fail completes the future with cause wrapped in a *types.TaskError
func (f *Future[R]) fail(cause error) bool {
	return f.complete(types.Result[R]{
		TaskID:   f.id,
		WorkerID: -1,
		Error:    f.taskError(cause),
	})
}

func (f *Future[R]) taskError(cause error) *types.TaskError {
	te := types.NewTaskError(f.id, cause)
	te.Index = f.index
	return te
}

// whenDone runs fn once the future completes, immediately if it already has.
// The returned detach removes fn if it has not run yet.
func (f *Future[R]) whenDone(fn func()) (detach func()) {
	f.mu.Lock()
	if f.completed {
		f.mu.Unlock()
		fn()
		return func() {}
	}

	cb := &callback{fn: fn}
	f.callbacks = append(f.callbacks, cb)
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.callbacks = slices.DeleteFunc(f.callbacks, func(c *callback) bool { return c == cb })
	}
}

// pendingCallbacks reports how many callbacks are still attached
func (f *Future[R]) pendingCallbacks() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.callbacks)
}
