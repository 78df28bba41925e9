package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jzx17/goworkq/pkg/counter"
	"github.com/jzx17/goworkq/pkg/metrics"
	"github.com/jzx17/goworkq/pkg/queue"
	"github.com/jzx17/goworkq/pkg/retry"
	"github.com/jzx17/goworkq/pkg/types"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config defines configuration for a fixed worker pool
type Config struct {
	// Workers is the number of worker goroutines
	Workers int

	// QueueSize bounds the number of admitted tasks waiting for a worker.
	// Zero means unbounded.
	QueueSize int

	// SubmitTimeout is how long Submit waits for room in a bounded queue.
	// Zero fails fast with types.ErrFull.
	SubmitTimeout time.Duration

	// RateLimit caps admitted tasks per second (optional, zero means unlimited)
	RateLimit float64

	// RateBurst is the limiter bucket size, defaults to 1
	RateBurst int

	// Retry re-runs a failed task body (optional, defaults to a single attempt)
	Retry *retry.Policy

	// Clock for time operations (optional, defaults to real clock)
	Clock types.Clock

	// Logger (optional, defaults to a no-op logger)
	Logger *zap.Logger

	// Metrics (optional)
	Metrics *metrics.Registry

	// Name labels logs and metrics
	Name string
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Workers:       runtime.NumCPU(),
		QueueSize:     0,
		SubmitTimeout: 5 * time.Second,
		Clock:         types.NewRealClock(),
		Name:          "pool",
	}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.Workers <= 0 {
		return types.InvalidConfig("worker count must be positive, got %d", c.Workers)
	}
	if c.QueueSize < 0 {
		return types.InvalidConfig("queue size must not be negative, got %d", c.QueueSize)
	}
	if c.SubmitTimeout < 0 {
		return types.InvalidConfig("submit timeout must not be negative, got %v", c.SubmitTimeout)
	}
	if c.RateLimit < 0 {
		return types.InvalidConfig("rate limit must not be negative, got %v", c.RateLimit)
	}
	return nil
}

// Stats is a snapshot of pool activity
type Stats struct {
	State     types.LifecycleState
	Workers   int
	Active    int
	Queued    int
	Submitted int64
	Completed int64
	Failed    int64
	Cancelled int64
}

// Pool runs a fixed number of workers executing one task function over
// submitted inputs. Results are delivered through futures.
type Pool[T, R any] struct {
	config  Config
	fn      types.TaskFunc[T, R]
	queue   *queue.BoundedQueue[*task[T, R]]
	workers []*Worker[T, R]
	limiter *rate.Limiter
	logger  *zap.Logger

	state     atomic.Int32
	aborted   atomic.Bool
	closeOnce sync.Once
	live      atomic.Int32
	exited    chan struct{}

	nextID atomic.Int64
	active atomic.Int32

	submitted *counter.Counter
	completed *counter.Counter
	failed    *counter.Counter
	cancelled *counter.Counter
}

// New creates a pool running fn and starts its workers. A nil config uses
// DefaultConfig.
func New[T, R any](fn types.TaskFunc[T, R], config *Config) (*Pool[T, R], error) {
	if fn == nil {
		return nil, types.InvalidConfig("task function is required")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	cfg := *config
	cfg.Clock = types.OrRealClock(cfg.Clock)
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Name == "" {
		cfg.Name = "pool"
	}

	logger := cfg.Logger.With(
		zap.String("component", "pool"),
		zap.String("name", cfg.Name))

	capacity := cfg.QueueSize
	if capacity == 0 {
		capacity = queue.Unbounded
	}
	q, err := queue.New[*task[T, R]](capacity,
		queue.WithClock(cfg.Clock),
		queue.WithMetrics(cfg.Metrics, cfg.Name),
		queue.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	p := &Pool[T, R]{
		config:    cfg,
		fn:        fn,
		queue:     q,
		logger:    logger,
		exited:    make(chan struct{}),
		submitted: counter.New(),
		completed: counter.New(),
		failed:    counter.New(),
		cancelled: counter.New(),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	p.workers = make([]*Worker[T, R], cfg.Workers)
	p.live.Store(int32(cfg.Workers))
	for i := range p.workers {
		p.workers[i] = newWorker(i, p)
	}
	for _, w := range p.workers {
		go w.run()
	}
	if m := cfg.Metrics; m != nil {
		m.PoolWorkers.WithLabelValues(cfg.Name).Set(float64(cfg.Workers))
	}

	logger.Debug("pool started",
		zap.Int("workers", cfg.Workers),
		zap.Int("queue_size", cfg.QueueSize))
	return p, nil
}

// Submit admits one task and returns its future. It fails with
// types.ErrShutdown after shutdown. With a bounded queue it waits up to
// SubmitTimeout for room (types.ErrSubmitTimeout), or fails fast with
// types.ErrFull when SubmitTimeout is zero.
func (p *Pool[T, R]) Submit(input T) (*Future[R], error) {
	return p.submit(context.Background(), input, -1, false)
}

// SubmitContext is Submit with a context that also reaches the task body.
// The context also bounds rate limiting and the wait for queue room.
func (p *Pool[T, R]) SubmitContext(ctx context.Context, input T) (*Future[R], error) {
	return p.submit(ctx, input, -1, false)
}

func (p *Pool[T, R]) submit(ctx context.Context, input T, index int, block bool) (*Future[R], error) {
	if types.LifecycleState(p.state.Load()) != types.StateRunning {
		p.reject("shutdown")
		return nil, types.ErrShutdown
	}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			p.reject("rate")
			return nil, err
		}
	}

	id := p.nextID.Add(1)
	t := &task[T, R]{
		id:     id,
		index:  index,
		ctx:    ctx,
		input:  input,
		future: newFuture[R](id, index),
	}

	if err := p.enqueue(ctx, t, block); err != nil {
		p.reject(rejectReason(err))
		return nil, err
	}

	p.submitted.Increment()
	if m := p.config.Metrics; m != nil {
		m.TasksSubmitted.WithLabelValues(p.config.Name).Inc()
	}
	return t.future, nil
}

func (p *Pool[T, R]) enqueue(ctx context.Context, t *task[T, R], block bool) error {
	switch {
	case block || p.queue.Cap() == queue.Unbounded:
		return p.queue.Put(ctx, t)
	case p.config.SubmitTimeout > 0:
		err := p.queue.PutTimeoutContext(ctx, t, p.config.SubmitTimeout)
		if errors.Is(err, types.ErrTimeout) {
			return types.ErrSubmitTimeout
		}
		return err
	default:
		return p.queue.TryPut(t)
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, types.ErrShutdown):
		return "shutdown"
	case errors.Is(err, types.ErrTimeout):
		return "timeout"
	case errors.Is(err, types.ErrFull):
		return "full"
	default:
		return "cancelled"
	}
}

func (p *Pool[T, R]) reject(reason string) {
	if m := p.config.Metrics; m != nil {
		m.TasksRejected.WithLabelValues(p.config.Name, reason).Inc()
	}
}

// Shutdown stops admission; further submissions fail with
// types.ErrShutdown. With wait set it blocks until every admitted task has
// finished and the workers have exited. Without wait it returns at once:
// admitted tasks that have not started complete with types.ErrShutdown and
// workers exit after their current task. Shutdown may be called more than
// once; a later call without wait still cancels queued tasks.
func (p *Pool[T, R]) Shutdown(wait bool) error {
	if !wait {
		p.stop(true)
		return nil
	}
	return p.ShutdownContext(context.Background())
}

// ShutdownContext stops admission and waits for admitted tasks and workers
// to finish, or for ctx to be done
func (p *Pool[T, R]) ShutdownContext(ctx context.Context) error {
	p.stop(false)
	select {
	case <-p.exited:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool[T, R]) stop(abort bool) {
	if abort {
		p.aborted.Store(true)
	}

	p.closeOnce.Do(func() {
		p.state.CompareAndSwap(int32(types.StateRunning), int32(types.StateShuttingDown))
		p.queue.Close()
		p.logger.Debug("pool shutting down",
			zap.Bool("wait", !abort),
			zap.Int("queued", p.queue.Len()))
	})

	if abort {
		p.queue.DrainTo(func(t *task[T, R]) {
			if t.future.fail(types.ErrShutdown) {
				p.cancelled.Increment()
			}
			_ = p.queue.Done()
		})
	}
}

// Wait blocks until every worker has exited. It returns only after
// Shutdown has been called.
func (p *Pool[T, R]) Wait() {
	<-p.exited
}

// Done returns a channel closed once every worker has exited
func (p *Pool[T, R]) Done() <-chan struct{} {
	return p.exited
}

// Size returns the number of workers
func (p *Pool[T, R]) Size() int {
	return p.config.Workers
}

// State returns the admission state
func (p *Pool[T, R]) State() types.LifecycleState {
	return types.LifecycleState(p.state.Load())
}

// Stats returns a snapshot of pool activity
func (p *Pool[T, R]) Stats() Stats {
	return Stats{
		State:     p.State(),
		Workers:   int(p.live.Load()),
		Active:    int(p.active.Load()),
		Queued:    p.queue.Len(),
		Submitted: p.submitted.Value(),
		Completed: p.completed.Value(),
		Failed:    p.failed.Value(),
		Cancelled: p.cancelled.Value(),
	}
}

// WorkerStats gets statistics of all Workers
func (p *Pool[T, R]) WorkerStats() []WorkerStats {
	stats := make([]WorkerStats, len(p.workers))
	for i, w := range p.workers {
		stats[i] = w.Stats()
	}
	return stats
}

func (p *Pool[T, R]) taskStarted() {
	p.active.Add(1)
	if m := p.config.Metrics; m != nil {
		m.PoolActive.WithLabelValues(p.config.Name).Inc()
	}
}

func (p *Pool[T, R]) taskFinished(taskID int64, workerID int, duration time.Duration, err error) {
	p.active.Add(-1)

	m := p.config.Metrics
	if m != nil {
		m.PoolActive.WithLabelValues(p.config.Name).Dec()
		m.TaskDuration.WithLabelValues(p.config.Name).Observe(duration.Seconds())
	}

	if err == nil {
		p.completed.Increment()
		if m != nil {
			m.TasksCompleted.WithLabelValues(p.config.Name).Inc()
		}
		return
	}

	p.failed.Increment()
	if m != nil {
		m.TasksFailed.WithLabelValues(p.config.Name).Inc()
	}

	fields := []zap.Field{
		zap.Int64("task_id", taskID),
		zap.Int("worker_id", workerID),
		zap.Duration("duration", duration),
		zap.Error(err),
	}
	if te, ok := types.AsTaskError(err); ok && te.Panicked {
		p.logger.Warn("task panicked", append(fields, zap.String("stack", te.Stack))...)
		return
	}
	p.logger.Debug("task failed", fields...)
}

func (p *Pool[T, R]) workerExited(workerID int) {
	if m := p.config.Metrics; m != nil {
		m.PoolWorkers.WithLabelValues(p.config.Name).Dec()
	}
	p.logger.Debug("worker stopped", zap.Int("worker_id", workerID))

	if p.live.Add(-1) == 0 {
		p.state.Store(int32(types.StateTerminated))
		close(p.exited)
		p.logger.Debug("pool terminated",
			zap.Int64("completed", p.completed.Value()),
			zap.Int64("failed", p.failed.Value()),
			zap.Int64("cancelled", p.cancelled.Value()))
	}
}
