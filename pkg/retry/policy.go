// Package retry provides retry mechanism strategies and implementations
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/jzx17/goworkq/pkg/types"
)

// RetryCondition is a function that determines retry conditions
type RetryCondition func(error) bool

// Policy bounds and paces the attempts made by Do
type Policy struct {
	// MaxAttempts is the total number of calls, including the first one.
	// Values below 1 mean a single attempt.
	MaxAttempts int

	// Backoff computes the wait before each retry. Nil retries immediately.
	Backoff BackoffStrategy

	// Retryable decides whether an error is worth another attempt.
	// Nil means DefaultRetryCondition.
	Retryable RetryCondition

	// OnRetry, if set, is called before waiting for each retry
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultPolicy retries timeouts three times in total with exponential
// backoff starting at 10ms
func DefaultPolicy() *Policy {
	return &Policy{
		MaxAttempts: 3,
		Backoff:     NewExponentialBackoff(10*time.Millisecond, WithMaxDelay(time.Second)),
		Retryable:   DefaultRetryCondition,
	}
}

// NoRetry is a policy that makes exactly one attempt
func NoRetry() *Policy {
	return &Policy{MaxAttempts: 1}
}

// ShouldRetry reports whether err after the given attempt warrants another
func (p *Policy) ShouldRetry(err error, attempt int) bool {
	if p == nil || err == nil || attempt >= p.maxAttempts() {
		return false
	}
	cond := p.Retryable
	if cond == nil {
		cond = DefaultRetryCondition
	}
	return cond(err)
}

// NextDelay returns the wait before retry number attempt
func (p *Policy) NextDelay(attempt int) time.Duration {
	if p == nil || p.Backoff == nil {
		return 0
	}
	return p.Backoff.NextDelay(attempt)
}

func (p *Policy) maxAttempts() int {
	if p == nil || p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// DefaultRetryCondition retries bounded-wait expiries. Context errors and
// shutdown are never retried.
func DefaultRetryCondition(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, types.ErrShutdown) || errors.Is(err, types.ErrClosed) {
		return false
	}
	return errors.Is(err, types.ErrTimeout)
}
