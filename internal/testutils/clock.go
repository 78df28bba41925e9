package testutils

import (
	"context"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/jzx17/goworkq/pkg/types"
)

// NewMockClock creates a mock clock for testing
func NewMockClock(t testing.TB) *quartz.Mock {
	return quartz.NewMock(t)
}

// ClockWrapper wraps quartz.Mock to implement our Clock interface
type ClockWrapper struct {
	*quartz.Mock
}

// NewClockWrapper creates a new ClockWrapper
func NewClockWrapper(mock *quartz.Mock) *ClockWrapper {
	return &ClockWrapper{Mock: mock}
}

// NewMockClockPair returns the quartz mock and the wrapper handed to components
func NewMockClockPair(t testing.TB) (*quartz.Mock, types.Clock) {
	mock := quartz.NewMock(t)
	return mock, NewClockWrapper(mock)
}

// Now returns the current time
func (c *ClockWrapper) Now() time.Time {
	return c.Mock.Now()
}

// Since returns the time elapsed since t
func (c *ClockWrapper) Since(t time.Time) time.Duration {
	return c.Mock.Since(t)
}

// After returns a channel that delivers the current time after the duration
func (c *ClockWrapper) After(d time.Duration) <-chan time.Time {
	timer := c.Mock.NewTimer(d)
	return timer.C
}

// Sleep blocks for the given duration
func (c *ClockWrapper) Sleep(d time.Duration) {
	timer := c.Mock.NewTimer(d)
	<-timer.C
}

// NewTimer creates a new Timer
func (c *ClockWrapper) NewTimer(d time.Duration) types.Timer {
	timer := c.Mock.NewTimer(d)
	return &TimerWrapper{timer: timer}
}

// TimerWrapper wraps quartz timer
type TimerWrapper struct {
	timer *quartz.Timer
}

func (t *TimerWrapper) C() <-chan time.Time {
	return t.timer.C
}

func (t *TimerWrapper) Stop() bool {
	return t.timer.Stop()
}

func (t *TimerWrapper) Reset(d time.Duration) bool {
	return t.timer.Reset(d)
}

// AdvanceAndWait moves the mock clock forward by d and waits until every
// timer that fired has been delivered
func AdvanceAndWait(ctx context.Context, mock *quartz.Mock, d time.Duration) {
	mock.Advance(d).MustWait(ctx)
}

// AdvanceUntil repeatedly advances the mock clock by step until a value
// arrives on ch or ctx is done. step must divide the awaited timer's
// duration.
func AdvanceUntil[V any](ctx context.Context, mock *quartz.Mock, step time.Duration, ch <-chan V) (V, bool) {
	for {
		select {
		case v := <-ch:
			return v, true
		case <-ctx.Done():
			var zero V
			return zero, false
		case <-time.After(5 * time.Millisecond):
			AdvanceAndWait(ctx, mock, step)
		}
	}
}
