/*
Package queue provides a generic bounded FIFO for handing work between
goroutines.

# Overview

BoundedQueue supports:
- Blocking Put and Get with context cancellation
- Bounded waits (PutTimeout, GetTimeout) and non-blocking TryPut, TryGet
- Pending-work tracking with Done, IsDrained and WaitDrained
- Close, after which puts fail and gets drain what is left
- Optional Prometheus metrics and zap logging

# Usage

	q, err := queue.New[string](10)
	if err != nil {
		return err
	}

	go func() {
		for {
			item, err := q.GetTimeout(500 * time.Millisecond)
			if errors.Is(err, types.ErrTimeout) {
				continue
			}
			if err != nil {
				return
			}
			process(item)
			_ = q.Done()
		}
	}()

	_ = q.Put(ctx, "Item-0-0")
	_ = q.WaitDrained(ctx)
	q.Close()

# Timeouts

A timed-out get returns an error matching both types.ErrEmpty and
types.ErrTimeout; a timed-out put matches types.ErrFull and types.ErrTimeout.
Timers come from the configured types.Clock, so tests can drive them with a
mock clock.
*/
package queue
