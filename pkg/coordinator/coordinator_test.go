package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jzx17/goworkq/internal/testutils"
	"github.com/jzx17/goworkq/pkg/metrics"
	"github.com/jzx17/goworkq/pkg/retry"
	"github.com/jzx17/goworkq/pkg/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func fastConfig() *Config {
	cfg := DefaultConfig()
	cfg.GetTimeout = 10 * time.Millisecond
	cfg.PutTimeout = time.Second
	return cfg
}

func countingProducer(perProducer int) ProducerFunc[string] {
	return func(ctx context.Context, id int, emit Emitter[string]) error {
		for i := 0; i < perProducer; i++ {
			if err := emit(fmt.Sprintf("Item-%d-%d", id, i)); err != nil {
				return err
			}
		}
		return nil
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
	}{
		{name: "default config", mutate: func(*Config) {}},
		{name: "zero capacity should error", mutate: func(c *Config) { c.Capacity = 0 }, expectError: true},
		{name: "no producers should error", mutate: func(c *Config) { c.Producers = 0 }, expectError: true},
		{name: "no consumers should error", mutate: func(c *Config) { c.Consumers = 0 }, expectError: true},
		{name: "zero get timeout should error", mutate: func(c *Config) { c.GetTimeout = 0 }, expectError: true},
		{name: "negative put timeout should error", mutate: func(c *Config) { c.PutTimeout = -time.Second }, expectError: true},
		{name: "zero put timeout blocks", mutate: func(c *Config) { c.PutTimeout = 0 }},
		{name: "negative rate should error", mutate: func(c *Config) { c.ProduceRate = -1 }, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			c, err := New[int](cfg)
			if tt.expectError {
				require.Error(t, err)
				assert.ErrorIs(t, err, types.ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, cfg.Capacity, c.Queue().Cap())
			assert.False(t, c.Signal().IsRaised())
		})
	}

	t.Run("nil config uses defaults", func(t *testing.T) {
		c, err := New[int](nil)
		require.NoError(t, err)
		assert.Equal(t, 10, c.Queue().Cap())
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 10, cfg.Capacity)
	assert.Equal(t, 2, cfg.Producers)
	assert.Equal(t, 3, cfg.Consumers)
	assert.Equal(t, 500*time.Millisecond, cfg.GetTimeout)
	assert.Equal(t, 5*time.Second, cfg.PutTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestRun_Conservation(t *testing.T) {
	cfg := fastConfig()
	cfg.Capacity = 5
	ctx := testutils.Context(t)

	var mu sync.Mutex
	seen := make(map[string]int)

	report, err := Run(ctx, cfg, countingProducer(50), func(ctx context.Context, id int, item string) error {
		mu.Lock()
		seen[item]++
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, int64(100), report.Produced)
	assert.Equal(t, int64(100), report.Consumed)
	assert.Equal(t, []int64{50, 50}, report.PerProducer)
	assert.Len(t, report.PerConsumer, 3)
	assert.Zero(t, report.Failures)

	assert.Len(t, seen, 100)
	for item, n := range seen {
		assert.Equal(t, 1, n, "item %s consumed more than once", item)
	}
}

func TestRun_DrainBeforeShutdown(t *testing.T) {
	cfg := fastConfig()
	cfg.Capacity = 2
	ctx := testutils.Context(t)

	c, err := New[string](cfg)
	require.NoError(t, err)

	var raisedDuringWork atomic.Bool
	report, err := c.Run(ctx, countingProducer(10), func(ctx context.Context, id int, item string) error {
		time.Sleep(2 * time.Millisecond)
		if c.Signal().IsRaised() {
			raisedDuringWork.Store(true)
		}
		return nil
	})
	require.NoError(t, err)

	assert.False(t, raisedDuringWork.Load(), "shutdown was signalled while items were still being processed")
	assert.Equal(t, report.Produced, report.Consumed)
	assert.True(t, c.Signal().IsRaised())
	assert.True(t, c.Queue().IsDrained())
	assert.True(t, c.Queue().IsClosed())
}

func TestRun_PreservesPerProducerOrder(t *testing.T) {
	cfg := fastConfig()
	cfg.Producers = 1
	cfg.Consumers = 1
	ctx := testutils.Context(t)

	var got []string
	_, err := Run(ctx, cfg, countingProducer(20), func(ctx context.Context, id int, item string) error {
		got = append(got, item)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, got, 20)
	for i, item := range got {
		assert.Equal(t, fmt.Sprintf("Item-0-%d", i), item)
	}
}

func TestRun_ConsumerFailuresDoNotStopRun(t *testing.T) {
	cfg := fastConfig()
	ctx := testutils.Context(t)
	errBad := errors.New("bad item")

	report, err := Run(ctx, cfg, countingProducer(10), func(ctx context.Context, id int, item string) error {
		switch item {
		case "Item-0-3":
			return errBad
		case "Item-1-7":
			panic("consumer exploded")
		}
		return nil
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, errBad)
	assert.Equal(t, int64(20), report.Consumed, "failed items still count as processed")
	assert.Equal(t, int64(2), report.Failures)
	assert.Len(t, report.Errors, 2)
}

func TestRun_ProducerFailureIsReported(t *testing.T) {
	cfg := fastConfig()
	ctx := testutils.Context(t)
	errSource := errors.New("source unavailable")

	report, err := Run(ctx, cfg, func(ctx context.Context, id int, emit Emitter[int]) error {
		if id == 1 {
			return errSource
		}
		for i := 0; i < 5; i++ {
			if err := emit(i); err != nil {
				return err
			}
		}
		return nil
	}, func(ctx context.Context, id int, item int) error {
		return nil
	})

	assert.ErrorIs(t, err, errSource)
	assert.Equal(t, int64(5), report.Produced)
	assert.Equal(t, int64(5), report.Consumed)
	assert.Equal(t, int64(1), report.Failures)
}

func TestRun_ContextCancellation(t *testing.T) {
	cfg := fastConfig()
	cfg.PutTimeout = 0
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var consumed atomic.Int32
	done := make(chan error, 1)
	go func() {
		_, err := Run(ctx, cfg, func(ctx context.Context, id int, emit Emitter[int]) error {
			for i := 0; ; i++ {
				if err := emit(i); err != nil {
					return err
				}
			}
		}, func(ctx context.Context, id int, item int) error {
			consumed.Add(1)
			time.Sleep(time.Millisecond)
			return nil
		})
		done <- err
	}()

	require.Eventually(t, func() bool { return consumed.Load() > 5 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(testutils.DefaultTimeout):
		t.Fatal("run did not return after cancellation")
	}
}

func TestRun_CancellationReleasesBlockedProducer(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Capacity = 1
	cfg.Producers = 1
	cfg.Consumers = 1
	cfg.GetTimeout = 10 * time.Millisecond
	c, err := New[int](cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := c.Run(ctx, func(ctx context.Context, id int, emit Emitter[int]) error {
			for i := 0; ; i++ {
				if err := emit(i); err != nil {
					return err
				}
			}
		}, func(ctx context.Context, id int, item int) error {
			<-ctx.Done()
			return ctx.Err()
		})
		done <- err
	}()

	// one item held by the consumer, one in the queue, the producer waiting
	require.Eventually(t, func() bool {
		return c.Queue().Stats().WaitingPutters == 1
	}, time.Second, time.Millisecond)

	start := time.Now()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
		assert.Less(t, time.Since(start), cfg.PutTimeout/2)
	case <-time.After(2 * time.Second):
		t.Fatalf("run still blocked %v after cancellation", 2*time.Second)
	}
}

func TestRun_OnlyOnce(t *testing.T) {
	c, err := New[int](fastConfig())
	require.NoError(t, err)
	ctx := testutils.Context(t)

	noop := func(ctx context.Context, id int, emit Emitter[int]) error { return nil }
	consume := func(ctx context.Context, id int, item int) error { return nil }

	_, err = c.Run(ctx, noop, consume)
	require.NoError(t, err)

	_, err = c.Run(ctx, noop, consume)
	assert.ErrorIs(t, err, ErrAlreadyRun)

	_, err = Run[int](ctx, fastConfig(), nil, consume)
	assert.ErrorIs(t, err, types.ErrInvalidConfig)
}

func TestRun_PutRetryOnTimeout(t *testing.T) {
	cfg := fastConfig()
	cfg.Capacity = 1
	cfg.Producers = 1
	cfg.Consumers = 1
	cfg.PutTimeout = time.Millisecond
	cfg.PutRetry = &retry.Policy{
		MaxAttempts: 1000,
		Backoff:     retry.NewFixedBackoff(time.Millisecond),
	}
	ctx := testutils.Context(t)

	var retries atomic.Int32
	cfg.PutRetry.OnRetry = func(int, error, time.Duration) { retries.Add(1) }

	report, err := Run(ctx, cfg, countingProducer(10), func(ctx context.Context, id int, item string) error {
		time.Sleep(5 * time.Millisecond)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, int64(10), report.Consumed)
	assert.Positive(t, retries.Load(), "a slow consumer should force put retries")
}

func TestRun_PutTimeoutWithoutRetryFailsProducer(t *testing.T) {
	cfg := fastConfig()
	cfg.Capacity = 1
	cfg.Producers = 1
	cfg.Consumers = 1
	cfg.PutTimeout = time.Millisecond
	ctx := testutils.Context(t)

	release := make(chan struct{})
	report, err := Run(ctx, cfg, func(ctx context.Context, id int, emit Emitter[int]) error {
		defer close(release)
		for i := 0; i < 3; i++ {
			if err := emit(i); err != nil {
				return err
			}
		}
		return nil
	}, func(ctx context.Context, id int, item int) error {
		<-release
		return nil
	})

	assert.ErrorIs(t, err, types.ErrTimeout)
	assert.ErrorIs(t, err, types.ErrFull)
	assert.Equal(t, report.Produced, report.Consumed)
	assert.Less(t, report.Produced, int64(3))
}

func TestRun_ProduceRate(t *testing.T) {
	cfg := fastConfig()
	cfg.Producers = 1
	cfg.ProduceRate = 200
	cfg.ProduceBurst = 1
	ctx := testutils.Context(t)

	report, err := Run(ctx, cfg, countingProducer(11), func(ctx context.Context, id int, item string) error {
		return nil
	})
	require.NoError(t, err)

	// ten intervals of 5ms after the first token
	assert.GreaterOrEqual(t, report.Elapsed, 45*time.Millisecond)
}

func TestRun_MetricsAndLogging(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	reg, _ := metrics.NewIsolated()

	cfg := fastConfig()
	cfg.Name = "orders"
	cfg.Logger = zap.New(core)
	cfg.Metrics = reg
	ctx := testutils.Context(t)

	_, err := Run(ctx, cfg, countingProducer(4), func(ctx context.Context, id int, item string) error {
		if item == "Item-0-0" {
			return errors.New("rejected")
		}
		return nil
	})
	require.Error(t, err)

	assert.Equal(t, 8.0, testutil.ToFloat64(reg.ItemsProduced.WithLabelValues("orders")))
	assert.Equal(t, 8.0, testutil.ToFloat64(reg.ItemsConsumed.WithLabelValues("orders")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.RunFailures.WithLabelValues("orders", "consumer")))
	assert.Equal(t, 0.0, testutil.ToFloat64(reg.QueueDepth.WithLabelValues("orders")))

	finished := logs.FilterMessage("run finished").All()
	require.Len(t, finished, 1)
	fields := finished[0].ContextMap()
	assert.Equal(t, "coordinator", fields["component"])
	assert.Equal(t, "orders", fields["name"])
	assert.Equal(t, int64(8), fields["consumed"])

	assert.Equal(t, 3, logs.FilterMessage("consumer started").Len())
}
