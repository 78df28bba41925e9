// Package types defines core interfaces and types shared across goworkq packages
package types

import (
	"context"
	"time"
)

// TaskFunc is a caller-supplied task body executed by a worker pool
type TaskFunc[T, R any] func(ctx context.Context, input T) (R, error)

// Result defines the outcome of one asynchronous task
type Result[R any] struct {
	// TaskID identifies the task that produced the result
	TaskID int64

	// WorkerID is the worker that executed the task, -1 if it never ran
	WorkerID int

	// Value is the execution result
	Value R

	// Error is the execution error
	Error error

	// Duration is the execution time
	Duration time.Duration
}

// Failed reports whether the task ended with an error
func (r Result[R]) Failed() bool {
	return r.Error != nil
}

// Unpack returns the value and error pair
func (r Result[R]) Unpack() (R, error) {
	return r.Value, r.Error
}

// LifecycleState defines the admission state of a queue or pool
type LifecycleState int32

const (
	// StateRunning accepts new work
	StateRunning LifecycleState = iota
	// StateShuttingDown rejects new work while admitted work finishes
	StateShuttingDown
	// StateTerminated has no remaining work or workers
	StateTerminated
)

// String returns the string representation of LifecycleState
func (s LifecycleState) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting-down"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}
