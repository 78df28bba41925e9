// Package retry provides retry executor implementation
package retry

import (
	"context"
	"fmt"

	"github.com/jzx17/goworkq/pkg/types"
)

// ExecuteFunc is the function type to retry
type ExecuteFunc[T any] func(ctx context.Context) (T, error)

// AttemptsError is returned when the policy gave up. It unwraps to the last
// error so callers can still match its sentinels.
type AttemptsError struct {
	Attempts int
	Err      error
}

// Error implements the error interface
func (e *AttemptsError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

// Unwrap returns the last error
func (e *AttemptsError) Unwrap() error {
	return e.Err
}

// Do calls fn until it succeeds, the policy refuses another attempt, or ctx
// is done. A nil policy makes a single attempt.
func Do(ctx context.Context, clock types.Clock, policy *Policy, fn func(ctx context.Context) error) error {
	_, err := Execute(ctx, clock, policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Execute is Do for functions that produce a value
func Execute[T any](ctx context.Context, clock types.Clock, policy *Policy, fn ExecuteFunc[T]) (T, error) {
	var zero T
	clock = types.OrRealClock(clock)

	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}

		if !policy.ShouldRetry(err, attempt) {
			if attempt > 1 {
				return zero, &AttemptsError{Attempts: attempt, Err: err}
			}
			return zero, err
		}

		delay := policy.NextDelay(attempt)
		if policy.OnRetry != nil {
			policy.OnRetry(attempt, err, delay)
		}

		if delay > 0 {
			timer := clock.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			case <-timer.C():
			}
		}
	}
}
