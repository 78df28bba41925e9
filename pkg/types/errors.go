// Package types defines error types
package types

import (
	"errors"
	"fmt"
)

// Predefined errors
var (
	// ErrTimeout indicates a blocking put, get or submit exceeded its wait bound
	ErrTimeout = errors.New("operation timeout")

	// ErrEmpty indicates a get found no item
	ErrEmpty = errors.New("queue is empty")

	// ErrFull indicates a put found no free slot
	ErrFull = errors.New("queue is full")

	// ErrShutdown indicates an attempt to admit work after shutdown
	ErrShutdown = errors.New("shut down: not accepting new work")

	// ErrClosed indicates a get on a closed queue with nothing left to return
	ErrClosed = errors.New("queue is closed")

	// ErrInvalidConfig indicates a rejected configuration value
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Combined errors returned when a bounded wait expires. Both match
// ErrTimeout as well as the condition that caused the wait.
var (
	ErrGetTimeout    = fmt.Errorf("%w: %w", ErrEmpty, ErrTimeout)
	ErrPutTimeout    = fmt.Errorf("%w: %w", ErrFull, ErrTimeout)
	ErrSubmitTimeout = fmt.Errorf("submit: %w: %w", ErrFull, ErrTimeout)
)

// InvalidConfig wraps ErrInvalidConfig with a formatted reason
func InvalidConfig(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// TaskError carries a failure raised by a task body. It is attached to the
// task's result slot and surfaced only when that result is retrieved.
type TaskError struct {
	// TaskID is the pool-assigned task identifier
	TaskID int64

	// Index is the input position for batch operations, -1 otherwise
	Index int

	// Cause is the underlying error
	Cause error

	// Panicked reports whether the task body panicked
	Panicked bool

	// Stack holds the goroutine stack when the task panicked
	Stack string
}

// Error implements the error interface
func (e *TaskError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("task %d (input %d) failed: %v", e.TaskID, e.Index, e.Cause)
	}
	return fmt.Sprintf("task %d failed: %v", e.TaskID, e.Cause)
}

// Unwrap returns the underlying error
func (e *TaskError) Unwrap() error {
	return e.Cause
}

// NewTaskError creates a task error with no input index
func NewTaskError(taskID int64, cause error) *TaskError {
	return &TaskError{
		TaskID: taskID,
		Index:  -1,
		Cause:  cause,
	}
}

// AsTaskError extracts a *TaskError from err's chain
func AsTaskError(err error) (*TaskError, bool) {
	var te *TaskError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
