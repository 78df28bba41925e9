package shutdown

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jzx17/goworkq/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignal_InitialState(t *testing.T) {
	s := New()

	assert.False(t, s.IsRaised())
	testutils.RequireOpen(t, s.Done(), 10*time.Millisecond)
}

func TestSignal_RaiseIsIdempotent(t *testing.T) {
	s := New()

	s.Raise()
	assert.True(t, s.IsRaised())

	assert.NotPanics(t, s.Raise)
	assert.True(t, s.IsRaised(), "raised flag must never reset")
}

func TestSignal_BroadcastsToAllWaiters(t *testing.T) {
	s := New()
	const waiters = 20

	var woke atomic.Int32
	var started sync.WaitGroup
	started.Add(waiters)

	done := testutils.Go(func() {
		testutils.RunConcurrently(waiters, func(int) {
			started.Done()
			if s.Wait(context.Background()) == nil {
				woke.Add(1)
			}
		})
	})

	started.Wait()
	s.Raise()

	testutils.RequireClosed(t, done, time.Second)
	assert.Equal(t, int32(waiters), woke.Load())
}

func TestSignal_LateObserversSeeRaise(t *testing.T) {
	s := New()
	s.Raise()

	assert.True(t, s.WaitTimeout(0))
	assert.True(t, s.WaitTimeout(time.Hour))
	assert.NoError(t, s.Wait(context.Background()))
}

func TestSignal_WaitContextCancelled(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSignal_WaitTimeoutExpires(t *testing.T) {
	mock, clock := testutils.NewMockClockPair(t)
	s := NewWithClock(clock)
	ctx := testutils.Context(t)

	result := make(chan bool, 1)
	go func() {
		result <- s.WaitTimeout(100 * time.Millisecond)
	}()

	got, ok := testutils.AdvanceUntil(ctx, mock, 100*time.Millisecond, result)
	require.True(t, ok, "waiter never returned")
	assert.False(t, got)
	assert.False(t, s.IsRaised())
}

func TestSignal_WaitTimeoutRaisedMidWait(t *testing.T) {
	s := New()

	result := make(chan bool, 1)
	go func() {
		result <- s.WaitTimeout(5 * time.Second)
	}()

	time.Sleep(10 * time.Millisecond)
	s.Raise()

	select {
	case got := <-result:
		assert.True(t, got)
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken by Raise")
	}
}

func TestSignal_WaitTimeoutZero(t *testing.T) {
	s := New()
	assert.False(t, s.WaitTimeout(0))
	assert.False(t, s.WaitTimeout(-time.Second))
}
