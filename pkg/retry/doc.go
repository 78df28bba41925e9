// Package retry provides bounded retries with pluggable backoff.
//
// Key Features:
//
// 1. Backoff algorithms:
//   - FixedBackoff: Fixed delay
//   - ExponentialBackoff: Exponential backoff with a cap
//
// 2. Jitter support:
//   - FullJitter: Full jitter
//   - EqualJitter: Equal jitter
//
// 3. Policy:
//   - MaxAttempts bounds the total number of calls
//   - Retryable selects which errors are retried (timeouts by default)
//   - OnRetry observes each retry, e.g. for logging
//
// 4. Execution:
//   - Do and Execute run a function under a Policy
//   - Backoff waits use types.Clock so tests can run on a mock clock
//   - Context cancellation interrupts both calls and waits
//
// Basic usage example:
//
//	policy := &retry.Policy{
//		MaxAttempts: 5,
//		Backoff:     retry.NewExponentialBackoff(50 * time.Millisecond),
//	}
//
//	err := retry.Do(ctx, nil, policy, func(ctx context.Context) error {
//		return q.PutTimeout(item, time.Second)
//	})
//
// When the policy gives up after more than one attempt the error is an
// *AttemptsError wrapping the last failure, so errors.Is still matches
// types.ErrTimeout and friends.
package retry
