package types

import (
	"time"
)

// Clock is the time source behind every put/get timeout, retry backoff and
// task duration. Tests swap in a mock so deadlines fire on demand.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
	After(d time.Duration) <-chan time.Time
	// Sleep is used between retry attempts
	Sleep(d time.Duration)
	// NewTimer backs the bounded waits of PutTimeout and GetTimeout
	NewTimer(d time.Duration) Timer
}

// Timer is the part of time.Timer a timed queue wait needs
type Timer interface {
	C() <-chan time.Time
	Stop() bool
	Reset(d time.Duration) bool
}

// RealClock reads the wall clock
type RealClock struct{}

// NewRealClock is the clock used when a config leaves Clock unset
func NewRealClock() Clock {
	return RealClock{}
}

func (RealClock) Now() time.Time                         { return time.Now() }
func (RealClock) Since(t time.Time) time.Duration        { return time.Since(t) }
func (RealClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
func (RealClock) Sleep(d time.Duration)                  { time.Sleep(d) }

func (RealClock) NewTimer(d time.Duration) Timer {
	return wallTimer{time.NewTimer(d)}
}

type wallTimer struct {
	*time.Timer
}

func (t wallTimer) C() <-chan time.Time { return t.Timer.C }

// OrRealClock returns c, or the wall clock when c is nil
func OrRealClock(c Clock) Clock {
	if c == nil {
		return NewRealClock()
	}
	return c
}
