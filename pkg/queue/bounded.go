package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gammazero/deque"
	"github.com/jzx17/goworkq/internal/waitq"
	"github.com/jzx17/goworkq/pkg/types"
	"go.uber.org/zap"
)

// Unbounded is passed as capacity to create a queue whose Put never blocks
const Unbounded = -1

// ErrDoneUnderflow is returned by Done when no retrieved item is outstanding
var ErrDoneUnderflow = errors.New("done called more times than items retrieved")

// Stats is a point-in-time snapshot of a queue
type Stats struct {
	Len            int
	Cap            int
	Pending        int
	WaitingGetters int
	WaitingPutters int
	TotalPut       uint64
	TotalGot       uint64
	Closed         bool
}

// BoundedQueue is a FIFO with a fixed capacity, blocking Put and Get, and a
// pending-work tracker used to detect when every retrieved item has been
// processed.
//
// All state is guarded by a single mutex. Blocked callers wait on
// single-shot waiters outside the lock, and every state change wakes
// exactly one waiter of the opposite side.
type BoundedQueue[T any] struct {
	mu       sync.Mutex
	items    deque.Deque[T]
	capacity int
	pending  int
	closed   bool

	getters waitq.Queue
	putters waitq.Queue

	// closed while the queue is drained, replaced when it stops being drained
	drained chan struct{}

	totalPut uint64
	totalGot uint64

	opts options
}

// New creates a queue holding at most capacity items. Pass Unbounded for a
// queue without a limit.
func New[T any](capacity int, opts ...Option) (*BoundedQueue[T], error) {
	if capacity <= 0 && capacity != Unbounded {
		return nil, types.InvalidConfig("queue capacity must be positive, got %d", capacity)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	q := &BoundedQueue[T]{
		capacity: capacity,
		drained:  make(chan struct{}),
		opts:     o,
	}
	close(q.drained)
	q.observeLocked()
	return q, nil
}

// Put appends item, blocking while the queue is full. It fails with
// types.ErrShutdown once the queue is closed, or with ctx.Err().
func (q *BoundedQueue[T]) Put(ctx context.Context, item T) error {
	return q.put(ctx, item, nil)
}

// PutTimeout appends item, blocking at most d while the queue is full. On
// timeout the error matches both types.ErrTimeout and types.ErrFull. A
// non-positive d behaves like TryPut.
func (q *BoundedQueue[T]) PutTimeout(item T, d time.Duration) error {
	return q.PutTimeoutContext(context.Background(), item, d)
}

// PutTimeoutContext is PutTimeout that also gives up with ctx.Err() once ctx
// is done.
func (q *BoundedQueue[T]) PutTimeoutContext(ctx context.Context, item T, d time.Duration) error {
	if d <= 0 {
		return q.TryPut(item)
	}

	timer := q.opts.clock.NewTimer(d)
	defer timer.Stop()
	return q.put(ctx, item, timer.C())
}

// TryPut appends item without blocking, failing with types.ErrFull when
// there is no free slot.
func (q *BoundedQueue[T]) TryPut(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return types.ErrShutdown
	}
	if q.fullLocked() {
		return types.ErrFull
	}
	q.enqueueLocked(item)
	return nil
}

func (q *BoundedQueue[T]) put(ctx context.Context, item T, timeout <-chan time.Time) error {
	q.mu.Lock()
	for {
		if q.closed {
			q.mu.Unlock()
			return types.ErrShutdown
		}
		if !q.fullLocked() {
			q.enqueueLocked(item)
			q.mu.Unlock()
			return nil
		}

		w := q.putters.Add()
		q.observeLocked()
		q.mu.Unlock()

		select {
		case <-w.C():
			q.mu.Lock()
		case <-ctx.Done():
			q.abandon(&q.putters, w)
			return ctx.Err()
		case <-timeout:
			q.abandon(&q.putters, w)
			q.countTimeout("put")
			return types.ErrPutTimeout
		}
	}
}

// Get removes and returns the oldest item, blocking while the queue is
// empty. Once the queue is closed, remaining items are still returned and
// types.ErrClosed is reported when none are left.
func (q *BoundedQueue[T]) Get(ctx context.Context) (T, error) {
	return q.get(ctx, nil)
}

// GetTimeout removes and returns the oldest item, blocking at most d while
// the queue is empty. On timeout the error matches both types.ErrEmpty and
// types.ErrTimeout. A non-positive d behaves like TryGet.
func (q *BoundedQueue[T]) GetTimeout(d time.Duration) (T, error) {
	if d <= 0 {
		return q.TryGet()
	}

	timer := q.opts.clock.NewTimer(d)
	defer timer.Stop()
	return q.get(context.Background(), timer.C())
}

// TryGet removes and returns the oldest item without blocking, failing with
// types.ErrEmpty (or types.ErrClosed once closed) when there is none.
func (q *BoundedQueue[T]) TryGet() (T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.items.Len() == 0 {
		var zero T
		if q.closed {
			return zero, types.ErrClosed
		}
		return zero, types.ErrEmpty
	}
	return q.dequeueLocked(), nil
}

func (q *BoundedQueue[T]) get(ctx context.Context, timeout <-chan time.Time) (T, error) {
	var zero T

	q.mu.Lock()
	for {
		if q.items.Len() > 0 {
			item := q.dequeueLocked()
			q.mu.Unlock()
			return item, nil
		}
		if q.closed {
			q.mu.Unlock()
			return zero, types.ErrClosed
		}

		w := q.getters.Add()
		q.observeLocked()
		q.mu.Unlock()

		select {
		case <-w.C():
			q.mu.Lock()
		case <-ctx.Done():
			q.abandon(&q.getters, w)
			return zero, ctx.Err()
		case <-timeout:
			q.abandon(&q.getters, w)
			q.countTimeout("get")
			return zero, types.ErrGetTimeout
		}
	}
}

// Done marks one previously retrieved item as processed
func (q *BoundedQueue[T]) Done() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.pending == 0 {
		return ErrDoneUnderflow
	}
	q.pending--
	if q.drainedLocked() {
		close(q.drained)
	}
	q.observeLocked()
	return nil
}

// IsDrained reports whether the queue holds no items and every retrieved
// item has been marked done
func (q *BoundedQueue[T]) IsDrained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.drainedLocked()
}

// WaitDrained blocks until the queue is drained or ctx is done
func (q *BoundedQueue[T]) WaitDrained(ctx context.Context) error {
	q.mu.Lock()
	ch := q.drained
	q.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops admission. Blocked and future puts fail with
// types.ErrShutdown; gets drain the remaining items and then fail with
// types.ErrClosed. Close is idempotent.
func (q *BoundedQueue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	putters := q.putters.NotifyAll()
	getters := q.getters.NotifyAll()
	q.observeLocked()

	q.opts.logger.Debug("queue closed",
		zap.String("name", q.opts.name),
		zap.Int("remaining", q.items.Len()),
		zap.Int("woken_putters", putters),
		zap.Int("woken_getters", getters))
}

// IsClosed reports whether Close has been called
func (q *BoundedQueue[T]) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the number of items held
func (q *BoundedQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Cap returns the capacity, or Unbounded
func (q *BoundedQueue[T]) Cap() int {
	return q.capacity
}

// Pending returns the number of retrieved items not yet marked done
func (q *BoundedQueue[T]) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}

// Stats returns a consistent snapshot of the queue
func (q *BoundedQueue[T]) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	return Stats{
		Len:            q.items.Len(),
		Cap:            q.capacity,
		Pending:        q.pending,
		WaitingGetters: q.getters.Len(),
		WaitingPutters: q.putters.Len(),
		TotalPut:       q.totalPut,
		TotalGot:       q.totalGot,
		Closed:         q.closed,
	}
}

// DrainTo removes every held item without blocking and hands each to fn.
// Removed items count as retrieved and must be marked done.
func (q *BoundedQueue[T]) DrainTo(fn func(T)) int {
	q.mu.Lock()
	items := make([]T, 0, q.items.Len())
	for q.items.Len() > 0 {
		items = append(items, q.dequeueLocked())
	}
	q.mu.Unlock()

	for _, item := range items {
		fn(item)
	}
	return len(items)
}

func (q *BoundedQueue[T]) fullLocked() bool {
	return q.capacity != Unbounded && q.items.Len() >= q.capacity
}

func (q *BoundedQueue[T]) drainedLocked() bool {
	return q.items.Len() == 0 && q.pending == 0
}

func (q *BoundedQueue[T]) enqueueLocked(item T) {
	if q.drainedLocked() {
		q.drained = make(chan struct{})
	}
	q.items.PushBack(item)
	q.totalPut++

	q.getters.Notify()
	// a woken putter that finds room left lets the next one try too
	if !q.fullLocked() && q.putters.Len() > 0 {
		q.putters.Notify()
	}

	if q.opts.metrics != nil {
		q.opts.metrics.QueuePuts.WithLabelValues(q.opts.name).Inc()
	}
	q.observeLocked()
}

func (q *BoundedQueue[T]) dequeueLocked() T {
	item := q.items.PopFront()
	q.pending++
	q.totalGot++

	q.putters.Notify()
	if q.items.Len() > 0 && q.getters.Len() > 0 {
		q.getters.Notify()
	}

	if q.opts.metrics != nil {
		q.opts.metrics.QueueGets.WithLabelValues(q.opts.name).Inc()
	}
	q.observeLocked()
	return item
}

func (q *BoundedQueue[T]) abandon(wq *waitq.Queue, w *waitq.Waiter) {
	q.mu.Lock()
	defer q.mu.Unlock()
	wq.Abandon(w)
	q.observeLocked()
}

func (q *BoundedQueue[T]) countTimeout(op string) {
	if q.opts.metrics != nil {
		q.opts.metrics.QueueTimeouts.WithLabelValues(q.opts.name, op).Inc()
	}
}

func (q *BoundedQueue[T]) observeLocked() {
	m := q.opts.metrics
	if m == nil {
		return
	}
	m.QueueDepth.WithLabelValues(q.opts.name).Set(float64(q.items.Len()))
	m.QueuePending.WithLabelValues(q.opts.name).Set(float64(q.pending))
	m.QueueWaiting.WithLabelValues(q.opts.name, "get").Set(float64(q.getters.Len()))
	m.QueueWaiting.WithLabelValues(q.opts.name, "put").Set(float64(q.putters.Len()))
}
