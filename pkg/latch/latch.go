// Package latch provides a count-down gate that opens once a fixed number of
// events have happened
package latch

import (
	"context"
	"sync"
	"time"

	"github.com/jzx17/goworkq/pkg/types"
)

// Latch opens when its count reaches zero. The count only decreases, and
// once open the latch stays open.
type Latch struct {
	mu    sync.Mutex
	count int
	open  chan struct{}
	clock types.Clock
}

// New creates a latch that opens after n calls to CountDown. A latch with
// n <= 0 is created open.
func New(n int) *Latch {
	return NewWithClock(n, nil)
}

// NewWithClock creates a latch whose timed waits use clock
func NewWithClock(n int, clock types.Clock) *Latch {
	l := &Latch{
		count: n,
		open:  make(chan struct{}),
		clock: types.OrRealClock(clock),
	}
	if n <= 0 {
		l.count = 0
		close(l.open)
	}
	return l
}

// CountDown decrements the count, opening the latch when it reaches zero.
// Calls after the latch opened are ignored.
func (l *Latch) CountDown() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.count == 0 {
		return
	}
	l.count--
	if l.count == 0 {
		close(l.open)
	}
}

// Count returns the remaining count
func (l *Latch) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Done returns a channel closed when the latch opens
func (l *Latch) Done() <-chan struct{} {
	return l.open
}

// Wait blocks until the latch opens or ctx is done
func (l *Latch) Wait(ctx context.Context) error {
	select {
	case <-l.open:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitTimeout blocks up to d for the latch to open and reports whether it did
func (l *Latch) WaitTimeout(d time.Duration) bool {
	select {
	case <-l.open:
		return true
	default:
	}
	if d <= 0 {
		return false
	}

	timer := l.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-l.open:
		return true
	case <-timer.C():
		select {
		case <-l.open:
			return true
		default:
			return false
		}
	}
}
