package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	errs "github.com/jzx17/goworkq/internal/errors"
	"github.com/jzx17/goworkq/pkg/counter"
	"github.com/jzx17/goworkq/pkg/latch"
	"github.com/jzx17/goworkq/pkg/queue"
	"github.com/jzx17/goworkq/pkg/retry"
	"github.com/jzx17/goworkq/pkg/shutdown"
	"github.com/jzx17/goworkq/pkg/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// ErrAlreadyRun is returned when Run is called a second time
var ErrAlreadyRun = errors.New("coordinator has already run")

// Emitter hands one item to the shared queue. It blocks while the queue is
// full, subject to the configured put timeout and retry policy.
type Emitter[T any] func(item T) error

// ProducerFunc generates items through emit. A returned error is recorded
// but does not stop the run.
type ProducerFunc[T any] func(ctx context.Context, producerID int, emit Emitter[T]) error

// ConsumerFunc processes one item. A returned error or panic is recorded
// and the consumer moves on to the next item.
type ConsumerFunc[T any] func(ctx context.Context, consumerID int, item T) error

// Report summarizes a finished run
type Report struct {
	Produced    int64
	Consumed    int64
	PerProducer []int64
	PerConsumer []int64
	Failures    int64
	Errors      []error
	Elapsed     time.Duration
}

// Coordinator runs producers and consumers over a bounded queue and shuts
// the consumers down only after every produced item has been processed.
type Coordinator[T any] struct {
	config Config

	queue   *queue.BoundedQueue[T]
	signal  *shutdown.Signal
	started *latch.Latch
	limiter *rate.Limiter
	errors  *errs.Collector
	logger  *zap.Logger

	produced []*counter.Counter
	consumed []*counter.Counter

	ran atomic.Bool
}

// New creates a coordinator. A nil config uses DefaultConfig.
func New[T any](config *Config) (*Coordinator[T], error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	cfg := config.withDefaults()

	logger := cfg.Logger.With(
		zap.String("component", "coordinator"),
		zap.String("name", cfg.Name))

	q, err := queue.New[T](cfg.Capacity,
		queue.WithClock(cfg.Clock),
		queue.WithMetrics(cfg.Metrics, cfg.Name),
		queue.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	c := &Coordinator[T]{
		config:   cfg,
		queue:    q,
		signal:   shutdown.NewWithClock(cfg.Clock),
		started:  latch.NewWithClock(cfg.Consumers, cfg.Clock),
		errors:   errs.NewCollector(cfg.MaxErrors),
		logger:   logger,
		produced: newCounters(cfg.Producers),
		consumed: newCounters(cfg.Consumers),
	}
	if cfg.ProduceRate > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.ProduceRate), cfg.ProduceBurst)
	}

	return c, nil
}

// Run creates a coordinator from config and runs it once
func Run[T any](ctx context.Context, config *Config, produce ProducerFunc[T], consume ConsumerFunc[T]) (Report, error) {
	c, err := New[T](config)
	if err != nil {
		return Report{}, err
	}
	return c.Run(ctx, produce, consume)
}

// Queue exposes the shared queue for observation
func (c *Coordinator[T]) Queue() *queue.BoundedQueue[T] {
	return c.queue
}

// Signal exposes the shutdown signal raised once the queue has drained
func (c *Coordinator[T]) Signal() *shutdown.Signal {
	return c.signal
}

// Run starts every consumer, then every producer, waits for the producers,
// waits until the queue is drained, raises the shutdown signal and waits for
// the consumers. Producer and consumer failures are collected into the
// report and the returned error; they never stop the run. If ctx is done
// before the run completes, everyone is released and ctx.Err() is returned.
func (c *Coordinator[T]) Run(ctx context.Context, produce ProducerFunc[T], consume ConsumerFunc[T]) (Report, error) {
	if produce == nil || consume == nil {
		return Report{}, types.InvalidConfig("producer and consumer functions are required")
	}
	if !c.ran.CompareAndSwap(false, true) {
		return Report{}, ErrAlreadyRun
	}

	start := c.config.Clock.Now()
	c.logger.Debug("run starting",
		zap.Int("producers", c.config.Producers),
		zap.Int("consumers", c.config.Consumers),
		zap.Int("capacity", c.config.Capacity))

	var consumers errgroup.Group
	for i := 0; i < c.config.Consumers; i++ {
		consumers.Go(func() error {
			c.started.CountDown()
			return c.runConsumer(ctx, i, consume)
		})
	}

	runErr := c.started.Wait(ctx)

	if runErr == nil {
		var producers errgroup.Group
		for i := 0; i < c.config.Producers; i++ {
			producers.Go(func() error {
				c.runProducer(ctx, i, produce)
				return nil
			})
		}
		_ = producers.Wait()
		c.logger.Debug("producers finished", zap.Int64("produced", sum(c.produced)))

		runErr = c.queue.WaitDrained(ctx)
	}

	c.signal.Raise()
	if runErr != nil {
		// release consumers blocked in a poll without waiting for the timeout
		c.queue.Close()
	}
	_ = consumers.Wait()
	c.queue.Close()

	report := c.report(c.config.Clock.Since(start))
	c.logger.Debug("run finished",
		zap.Int64("produced", report.Produced),
		zap.Int64("consumed", report.Consumed),
		zap.Int64("failures", report.Failures),
		zap.Duration("duration", report.Elapsed))

	if runErr != nil {
		return report, runErr
	}
	return report, c.errors.Err()
}

func (c *Coordinator[T]) runProducer(ctx context.Context, id int, produce ProducerFunc[T]) {
	logger := c.logger.With(zap.Int("producer_id", id))
	emit := func(item T) error {
		return c.emit(ctx, id, item)
	}

	err := errs.Capture(func() error {
		return produce(ctx, id, emit)
	})
	if err != nil {
		c.fail("producer", fmt.Errorf("producer %d: %w", id, err))
		logger.Warn("producer failed", zap.Error(err))
		return
	}
	logger.Debug("producer done", zap.Int64("produced", c.produced[id].Value()))
}

func (c *Coordinator[T]) emit(ctx context.Context, id int, item T) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	err := retry.Do(ctx, c.config.Clock, c.config.PutRetry, func(ctx context.Context) error {
		if c.config.PutTimeout <= 0 {
			return c.queue.Put(ctx, item)
		}
		return c.queue.PutTimeoutContext(ctx, item, c.config.PutTimeout)
	})
	if err != nil {
		return err
	}

	c.produced[id].Increment()
	if m := c.config.Metrics; m != nil {
		m.ItemsProduced.WithLabelValues(c.config.Name).Inc()
	}
	return nil
}

func (c *Coordinator[T]) runConsumer(ctx context.Context, id int, consume ConsumerFunc[T]) error {
	logger := c.logger.With(zap.Int("consumer_id", id))
	logger.Debug("consumer started")

	for {
		if ctx.Err() != nil {
			logger.Debug("consumer cancelled")
			return nil
		}

		item, err := c.queue.GetTimeout(c.config.GetTimeout)
		switch {
		case err == nil:
			c.handle(ctx, id, item, consume, logger)
		case errors.Is(err, types.ErrClosed):
			logger.Debug("consumer stopping, queue closed")
			return nil
		case errors.Is(err, types.ErrTimeout):
			if c.signal.IsRaised() && c.queue.Len() == 0 {
				logger.Debug("consumer stopping, shutdown signalled",
					zap.Int64("consumed", c.consumed[id].Value()))
				return nil
			}
		default:
			return err
		}
	}
}

func (c *Coordinator[T]) handle(ctx context.Context, id int, item T, consume ConsumerFunc[T], logger *zap.Logger) {
	// the item counts as processed whether or not consume succeeds
	defer func() {
		if err := c.queue.Done(); err != nil {
			logger.Error("done accounting out of sync", zap.Error(err))
		}
	}()

	err := errs.Capture(func() error {
		return consume(ctx, id, item)
	})

	c.consumed[id].Increment()
	if m := c.config.Metrics; m != nil {
		m.ItemsConsumed.WithLabelValues(c.config.Name).Inc()
	}

	if err != nil {
		c.fail("consumer", fmt.Errorf("consumer %d: %w", id, err))
		if pe, ok := errs.AsPanic(err); ok {
			logger.Warn("consumer panicked", zap.Any("panic", pe.Value), zap.String("stack", pe.Stack))
		} else {
			logger.Debug("consumer failed", zap.Error(err))
		}
	}
}

func (c *Coordinator[T]) fail(role string, err error) {
	c.errors.Add(err)
	if m := c.config.Metrics; m != nil {
		m.RunFailures.WithLabelValues(c.config.Name, role).Inc()
	}
}

func (c *Coordinator[T]) report(elapsed time.Duration) Report {
	r := Report{
		PerProducer: values(c.produced),
		PerConsumer: values(c.consumed),
		Failures:    c.errors.Count(),
		Errors:      c.errors.Errors(),
		Elapsed:     elapsed,
	}
	for _, n := range r.PerProducer {
		r.Produced += n
	}
	for _, n := range r.PerConsumer {
		r.Consumed += n
	}
	return r
}

func newCounters(n int) []*counter.Counter {
	out := make([]*counter.Counter, n)
	for i := range out {
		out[i] = counter.New()
	}
	return out
}

func values(cs []*counter.Counter) []int64 {
	out := make([]int64, len(cs))
	for i, c := range cs {
		out[i] = c.Value()
	}
	return out
}

func sum(cs []*counter.Counter) int64 {
	var total int64
	for _, c := range cs {
		total += c.Value()
	}
	return total
}
