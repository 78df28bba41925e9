// Package errors provides panic capture and failure collection shared by the
// worker pool and the coordinator
package errors

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
)

// PanicError is a recovered panic converted into an error
type PanicError struct {
	// Value is what was passed to panic
	Value any

	// Stack is the stack of the panicking goroutine
	Stack string
}

// Error implements the error interface
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes the panic value when it was itself an error
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Capture runs fn and converts a panic into a *PanicError
func Capture(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{
				Value: r,
				Stack: string(debug.Stack()),
			}
		}
	}()

	return fn()
}

// CaptureValue is Capture for functions that produce a value
func CaptureValue[T any](fn func() (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{
				Value: r,
				Stack: string(debug.Stack()),
			}
		}
	}()

	return fn()
}

// AsPanic extracts a *PanicError from err's chain
func AsPanic(err error) (*PanicError, bool) {
	var pe *PanicError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// DefaultCollectorLimit is the number of errors a Collector keeps when
// created with a non-positive limit
const DefaultCollectorLimit = 100

// Collector accumulates errors from concurrent goroutines. Every error is
// counted; only the first limit are retained.
type Collector struct {
	mu    sync.Mutex
	errs  []error
	total int64
	limit int
}

// NewCollector creates a collector that retains at most limit errors
func NewCollector(limit int) *Collector {
	if limit <= 0 {
		limit = DefaultCollectorLimit
	}
	return &Collector{limit: limit}
}

// Add records err. Nil errors are ignored.
func (c *Collector) Add(err error) {
	if err == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.total++
	if len(c.errs) < c.limit {
		c.errs = append(c.errs, err)
	}
}

// Count returns the number of errors added
func (c *Collector) Count() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// Errors returns a copy of the retained errors in the order they were added
func (c *Collector) Errors() []error {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]error, len(c.errs))
	copy(out, c.errs)
	return out
}

// Err joins the retained errors, or returns nil if none were added
func (c *Collector) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.errs) == 0 {
		return nil
	}
	joined := errors.Join(c.errs...)
	if dropped := c.total - int64(len(c.errs)); dropped > 0 {
		return fmt.Errorf("%w\n(and %d more)", joined, dropped)
	}
	return joined
}
