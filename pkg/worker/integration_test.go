package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jzx17/goworkq/internal/testutils"
	"github.com/jzx17/goworkq/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPool_HighLoad high load integration test
func TestPool_HighLoad(t *testing.T) {
	var executed atomic.Int64
	p := newTestPool(t, func(ctx context.Context, n int) (int, error) {
		executed.Add(1)
		return n + 1, nil
	}, &Config{
		Workers:       50,
		QueueSize:     1000,
		SubmitTimeout: 5 * time.Second,
	})
	ctx := testutils.Context(t)

	numTasks := 10000
	futures := make([]*Future[int], numTasks)
	start := time.Now()

	for i := range numTasks {
		f, err := p.Submit(i)
		require.NoError(t, err)
		futures[i] = f
	}

	for i, f := range futures {
		v, err := f.Get(ctx)
		require.NoError(t, err)
		require.Equal(t, i+1, v)
	}

	duration := time.Since(start)
	t.Logf("Processed %d tasks in %v", numTasks, duration)
	t.Logf("Throughput: %.2f tasks/second", float64(numTasks)/duration.Seconds())

	assert.Equal(t, int64(numTasks), executed.Load())
	assert.Equal(t, int64(numTasks), p.Stats().Completed)
	assert.Equal(t, types.StateRunning, p.State())
}

// TestPool_ConcurrentSubmission concurrent submission test
func TestPool_ConcurrentSubmission(t *testing.T) {
	p := newTestPool(t, square, &Config{
		Workers:       10,
		QueueSize:     500,
		SubmitTimeout: 5 * time.Second,
	})
	ctx := testutils.Context(t)

	numGoroutines := 20
	tasksPerGoroutine := 100

	var (
		mu  sync.Mutex
		ids = make(map[int64]bool)
		sum atomic.Int64
	)
	testutils.RunConcurrently(numGoroutines, func(g int) {
		for i := range tasksPerGoroutine {
			f, err := p.Submit(g*tasksPerGoroutine + i)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			ids[f.ID()] = true
			mu.Unlock()

			v, err := f.Get(ctx)
			if assert.NoError(t, err) {
				sum.Add(int64(v))
			}
		}
	})

	total := numGoroutines * tasksPerGoroutine
	var want int64
	for n := range total {
		want += int64(n * n)
	}
	assert.Len(t, ids, total, "task ids must be unique")
	assert.Equal(t, want, sum.Load())
	assert.Equal(t, int64(total), p.Stats().Submitted)
}

// TestPool_LongRunningTasks checks that slow tasks occupy every worker
func TestPool_LongRunningTasks(t *testing.T) {
	var running, peak atomic.Int32
	p := newTestPool(t, func(ctx context.Context, n int) (int, error) {
		cur := running.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		running.Add(-1)
		return n, nil
	}, &Config{Workers: 5})

	inputs := make([]int, 20)
	start := time.Now()
	_, err := p.MapOrdered(testutils.Context(t), inputs)
	require.NoError(t, err)

	assert.LessOrEqual(t, peak.Load(), int32(5), "never more tasks than workers")
	assert.Equal(t, int32(5), peak.Load())
	// four rounds of 20ms
	assert.GreaterOrEqual(t, time.Since(start), 75*time.Millisecond)
}

// TestPool_GracefulShutdownUnderLoad shuts down while producers are still
// submitting. Every accepted task must finish; every rejection must be
// ErrShutdown.
func TestPool_GracefulShutdownUnderLoad(t *testing.T) {
	var executed atomic.Int64
	p, err := New(func(ctx context.Context, n int) (int, error) {
		time.Sleep(100 * time.Microsecond)
		executed.Add(1)
		return n, nil
	}, &Config{Workers: 4, QueueSize: 64, SubmitTimeout: time.Second})
	require.NoError(t, err)

	var accepted, rejected atomic.Int64
	var futuresMu sync.Mutex
	var futures []*Future[int]

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; ; i++ {
				select {
				case <-stop:
					return
				default:
				}
				f, err := p.Submit(g*100000 + i)
				if err != nil {
					assert.ErrorIs(t, err, types.ErrShutdown)
					rejected.Add(1)
					return
				}
				accepted.Add(1)
				futuresMu.Lock()
				futures = append(futures, f)
				futuresMu.Unlock()
			}
		}()
	}

	time.Sleep(30 * time.Millisecond)
	require.NoError(t, p.Shutdown(true))
	close(stop)
	wg.Wait()

	assert.Equal(t, accepted.Load(), executed.Load())
	assert.Equal(t, types.StateTerminated, p.State())
	for _, f := range futures {
		r, ok := f.Result()
		require.True(t, ok, "accepted task left pending after graceful shutdown")
		assert.NoError(t, r.Error)
	}
	t.Logf("accepted %d, rejected %d", accepted.Load(), rejected.Load())
}

// TestPool_ErrorRecovery mixes failing, panicking and healthy tasks
func TestPool_ErrorRecovery(t *testing.T) {
	errBad := errors.New("bad")
	p := newTestPool(t, func(ctx context.Context, n int) (int, error) {
		switch n % 3 {
		case 1:
			return 0, errBad
		case 2:
			panic("boom")
		}
		return n, nil
	}, &Config{Workers: 3})

	var ok, failed, panicked int
	for _, r := range p.MapOrderedSeq(testutils.Context(t), make99()) {
		te, isTaskErr := types.AsTaskError(r.Error)
		switch {
		case r.Error == nil:
			ok++
		case isTaskErr && te.Panicked:
			panicked++
		default:
			assert.ErrorIs(t, r.Error, errBad)
			failed++
		}
	}

	assert.Equal(t, 33, ok)
	assert.Equal(t, 33, failed)
	assert.Equal(t, 33, panicked)
	assert.Equal(t, 3, p.Stats().Workers, "workers survive failing tasks")
}

func make99() []int {
	inputs := make([]int, 99)
	for i := range inputs {
		inputs[i] = i
	}
	return inputs
}

// BenchmarkPool_HighThroughput benchmark test
func BenchmarkPool_HighThroughput(b *testing.B) {
	p, err := New(square, &Config{Workers: 8, QueueSize: 1024, SubmitTimeout: time.Second})
	require.NoError(b, err)
	defer func() { _ = p.Shutdown(true) }()

	ctx := context.Background()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			f, err := p.Submit(i)
			if err != nil {
				b.Fatal(err)
			}
			if _, err := f.Get(ctx); err != nil {
				b.Fatal(err)
			}
			i++
		}
	})
}
