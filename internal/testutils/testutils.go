// Package testutils provides simplified testing utilities and helper functions
package testutils

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// DefaultTimeout bounds every blocking step in tests
const DefaultTimeout = 5 * time.Second

// Context returns a context that is cancelled after DefaultTimeout or when
// the test ends
func Context(t testing.TB) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	t.Cleanup(cancel)
	return ctx
}

// RunConcurrently starts n goroutines running fn(i) and waits for all of them
func RunConcurrently(n int, fn func(i int)) {
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			fn(i)
		}(i)
	}
	wg.Wait()
}

// RequireClosed fails the test if ch is not closed within timeout
func RequireClosed(t testing.TB, ch <-chan struct{}, timeout time.Duration, msgAndArgs ...interface{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(timeout):
		require.FailNow(t, "channel was not closed in time", msgAndArgs...)
	}
}

// RequireOpen fails the test if ch is closed within wait
func RequireOpen(t testing.TB, ch <-chan struct{}, wait time.Duration, msgAndArgs ...interface{}) {
	t.Helper()
	select {
	case <-ch:
		require.FailNow(t, "channel closed unexpectedly", msgAndArgs...)
	case <-time.After(wait):
	}
}

// Go runs fn in a goroutine and returns a channel closed when it returns
func Go(fn func()) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	return done
}
