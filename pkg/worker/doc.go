/*
Package worker provides a fixed-size worker pool that runs one task function
over submitted inputs and delivers results through futures.

# Overview

Pool supports:
- A fixed number of worker goroutines started by New
- A bounded or unbounded task queue (see package queue)
- Submission timeouts, fail-fast submission and rate limiting
- Per-task panic recovery and optional retries
- Futures with blocking and non-blocking result access
- Completion-order and input-order result collection
- Graceful and immediate shutdown

# Core Components

## Pool

Each worker takes tasks from a shared FIFO queue. A task that fails or
panics completes its future with a *types.TaskError; the worker carries on
with the next task.

## Future

A Future completes exactly once. Get blocks until the result is available,
Result polls, and Done exposes a channel for select loops.

## Collecting results

AsCompleted yields futures as they complete. MapOrdered and MapOrderedSeq
submit a batch and return the results in input order; MapOrderedSeq streams
each result as soon as every earlier one is available.

# Usage Examples

Basic usage:

	pool, err := worker.New(func(ctx context.Context, n int) (int, error) {
		return n * n, nil
	}, &worker.Config{Workers: 4})
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Shutdown(true)

	f, err := pool.Submit(7)
	if err != nil {
		log.Printf("Failed to submit task: %v", err)
	}
	v, err := f.Get(ctx) // 49

Results in completion order:

	for f, r := range worker.AsCompleted(ctx, futures...) {
		fmt.Printf("task %d -> %v (%v)\n", f.ID(), r.Value, r.Error)
	}

Results in input order:

	squares, err := pool.MapOrdered(ctx, []int{0, 1, 2, 3})

# Shutdown

Shutdown(true) stops admission, lets every admitted task finish and waits
for the workers. Shutdown(false) returns at once: tasks still queued
complete with types.ErrShutdown and workers exit after their current task.
Running tasks are never interrupted.

# Configuration Options

Config supports the following configurations:
- Workers: Number of worker goroutines
- QueueSize: Task queue capacity, zero for unbounded
- SubmitTimeout: How long Submit waits for room in a bounded queue
- RateLimit, RateBurst: Admission rate limiting
- Retry: Retry policy applied to task bodies
- Clock, Logger, Metrics, Name: Ambient dependencies
*/
package worker
