package worker

import (
	"context"
	"sync/atomic"
	"time"

	errs "github.com/jzx17/goworkq/internal/errors"
	"github.com/jzx17/goworkq/pkg/retry"
	"github.com/jzx17/goworkq/pkg/types"
	"go.uber.org/zap"
)

// WorkerState defines the state of a Worker
type WorkerState int32

const (
	// WorkerStateIdle represents idle worker state
	WorkerStateIdle WorkerState = iota
	// WorkerStateWorking represents working worker state
	WorkerStateWorking
	// WorkerStateStopped represents stopped worker state
	WorkerStateStopped
)

// String returns the string representation of WorkerState
func (ws WorkerState) String() string {
	switch ws {
	case WorkerStateIdle:
		return "idle"
	case WorkerStateWorking:
		return "working"
	case WorkerStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Worker is a single goroutine taking tasks from its pool's queue
type Worker[T, R any] struct {
	id    int
	state int32 // atomic state
	pool  *Pool[T, R]
	done  chan struct{}

	// statistics
	totalProcessed int64
	totalFailed    int64
	lastTaskTime   int64 // Unix nanosecond timestamp
}

func newWorker[T, R any](id int, pool *Pool[T, R]) *Worker[T, R] {
	return &Worker[T, R]{
		id:    id,
		state: int32(WorkerStateIdle),
		pool:  pool,
		done:  make(chan struct{}),
	}
}

// ID returns the Worker ID
func (w *Worker[T, R]) ID() int {
	return w.id
}

// State returns the current Worker state
func (w *Worker[T, R]) State() WorkerState {
	return WorkerState(atomic.LoadInt32(&w.state))
}

// run takes tasks until the queue is closed and empty
func (w *Worker[T, R]) run() {
	defer func() {
		atomic.StoreInt32(&w.state, int32(WorkerStateStopped))
		close(w.done)
		w.pool.workerExited(w.id)
	}()

	for {
		t, err := w.pool.queue.Get(context.Background())
		if err != nil {
			return
		}
		w.processTask(t)
	}
}

// processTask processes a single task
func (w *Worker[T, R]) processTask(t *task[T, R]) {
	p := w.pool
	defer func() {
		if err := p.queue.Done(); err != nil {
			p.logger.Error("queue accounting out of sync", zap.Error(err))
		}
	}()

	// shut down without waiting: admitted tasks that have not started are cancelled
	if p.aborted.Load() {
		if t.future.fail(types.ErrShutdown) {
			p.cancelled.Increment()
		}
		return
	}

	atomic.StoreInt32(&w.state, int32(WorkerStateWorking))
	defer atomic.StoreInt32(&w.state, int32(WorkerStateIdle))
	p.taskStarted()

	startTime := p.config.Clock.Now()
	atomic.StoreInt64(&w.lastTaskTime, startTime.UnixNano())

	value, err := w.executeTask(t)

	executionTime := p.config.Clock.Since(startTime)

	result := types.Result[R]{
		TaskID:   t.id,
		WorkerID: w.id,
		Value:    value,
		Duration: executionTime,
	}
	if err != nil {
		atomic.AddInt64(&w.totalFailed, 1)
		result.Error = w.wrapError(t, err)
	} else {
		atomic.AddInt64(&w.totalProcessed, 1)
	}

	// counters first so Stats agrees with any future observed as done
	p.taskFinished(t.id, w.id, executionTime, result.Error)
	t.future.complete(result)
}

// executeTask runs the task body under the pool's retry policy with panic
// recovery
func (w *Worker[T, R]) executeTask(t *task[T, R]) (R, error) {
	p := w.pool
	return retry.Execute(t.ctx, p.config.Clock, p.config.Retry, func(ctx context.Context) (R, error) {
		return errs.CaptureValue(func() (R, error) {
			return p.fn(ctx, t.input)
		})
	})
}

func (w *Worker[T, R]) wrapError(t *task[T, R], err error) error {
	te := t.future.taskError(err)
	if pe, ok := errs.AsPanic(err); ok {
		te.Panicked = true
		te.Stack = pe.Stack
	}
	return te
}

// Stats gets Worker statistics
func (w *Worker[T, R]) Stats() WorkerStats {
	return WorkerStats{
		ID:             w.id,
		State:          w.State(),
		TotalProcessed: atomic.LoadInt64(&w.totalProcessed),
		TotalFailed:    atomic.LoadInt64(&w.totalFailed),
		LastTaskTime:   time.Unix(0, atomic.LoadInt64(&w.lastTaskTime)),
	}
}

// WorkerStats defines Worker statistics
type WorkerStats struct {
	ID             int
	State          WorkerState
	TotalProcessed int64
	TotalFailed    int64
	LastTaskTime   time.Time
}

// IsActive checks if Worker is active
func (ws WorkerStats) IsActive() bool {
	return ws.State == WorkerStateWorking
}

// IsIdle checks if Worker is idle
func (ws WorkerStats) IsIdle() bool {
	return ws.State == WorkerStateIdle
}

// GetSuccessRate gets the success rate
func (ws WorkerStats) GetSuccessRate() float64 {
	total := ws.TotalProcessed + ws.TotalFailed
	if total == 0 {
		return 0
	}
	return float64(ws.TotalProcessed) / float64(total)
}
