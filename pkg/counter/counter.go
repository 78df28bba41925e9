// Package counter provides a mutex-guarded integer counter.
//
// Every read-modify-write runs inside a single critical section, so
// concurrent increments never interleave and Value always reflects a
// fully-completed sequence of prior updates. The queue and pool packages
// guard their own counters with the same discipline.
package counter

import "sync"

// Option configures a Counter
type Option func(*Counter)

// WithYield installs fn between the read and the write of every update.
// The hook runs while the lock is held.
func WithYield(fn func()) Option {
	return func(c *Counter) {
		c.yield = fn
	}
}

// Counter is a single integer value guarded by a mutex
type Counter struct {
	mu    sync.Mutex
	value int64
	yield func()
}

// New creates a counter starting at zero
func New(opts ...Option) *Counter {
	c := &Counter{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Increment adds one and returns the new value
func (c *Counter) Increment() int64 {
	return c.Add(1)
}

// Add adds n and returns the new value
func (c *Counter) Add(n int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.value
	if c.yield != nil {
		c.yield()
	}
	c.value = current + n
	return c.value
}

// Value returns the current value
func (c *Counter) Value() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Reset sets the value back to zero and returns the previous value
func (c *Counter) Reset() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.value
	c.value = 0
	return prev
}
