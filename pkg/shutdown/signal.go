// Package shutdown provides a one-shot broadcast flag for cooperative shutdown
package shutdown

import (
	"context"
	"sync"
	"time"

	"github.com/jzx17/goworkq/pkg/types"
)

// Signal is a monotonic flag: once raised it stays raised and every current
// and future observer sees it. Raising closes a channel, so any number of
// goroutines can block on it without missing the transition.
type Signal struct {
	once  sync.Once
	ch    chan struct{}
	clock types.Clock
}

// New creates a lowered signal backed by the real clock
func New() *Signal {
	return NewWithClock(nil)
}

// NewWithClock creates a lowered signal whose timed waits use clock
func NewWithClock(clock types.Clock) *Signal {
	return &Signal{
		ch:    make(chan struct{}),
		clock: types.OrRealClock(clock),
	}
}

// Raise sets the flag and wakes all waiters. Calling it again has no effect.
func (s *Signal) Raise() {
	s.once.Do(func() {
		close(s.ch)
	})
}

// IsRaised reports whether Raise has been called, without blocking
func (s *Signal) IsRaised() bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}

// Done returns a channel closed when the signal is raised
func (s *Signal) Done() <-chan struct{} {
	return s.ch
}

// Wait blocks until the signal is raised or ctx is done
func (s *Signal) Wait(ctx context.Context) error {
	select {
	case <-s.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitTimeout blocks up to d for the signal. It returns true if the signal
// was raised and false if d elapsed first.
func (s *Signal) WaitTimeout(d time.Duration) bool {
	if s.IsRaised() {
		return true
	}
	if d <= 0 {
		return false
	}

	timer := s.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-s.ch:
		return true
	case <-timer.C():
		// the signal may have been raised at the same instant
		return s.IsRaised()
	}
}
