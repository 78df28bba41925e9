// Package waitq keeps a FIFO of blocked goroutines so that a state change
// can wake exactly one of them.
//
// A Queue is not safe for concurrent use on its own: every method must be
// called with the owner's lock held. Waiting on Waiter.C happens outside the
// lock.
package waitq

import "github.com/gammazero/deque"

// compaction kicks in once abandoned waiters outnumber live ones and there
// are at least this many of them
const compactThreshold = 32

// Waiter is a single-shot wakeup slot. Its channel has a buffer of one: a
// notification fills it, and an abandoning waiter fills it itself so that
// Notify knows to skip it.
type Waiter struct {
	ch chan struct{}
}

// C returns the channel that receives the wakeup
func (w *Waiter) C() <-chan struct{} {
	return w.ch
}

// Queue is a FIFO of waiters
type Queue struct {
	waiters deque.Deque[*Waiter]
	live    int
	dead    int
}

// Add enqueues a new waiter
func (q *Queue) Add() *Waiter {
	w := &Waiter{ch: make(chan struct{}, 1)}
	q.waiters.PushBack(w)
	q.live++
	return w
}

// Notify wakes the oldest live waiter. It reports whether one was woken.
func (q *Queue) Notify() bool {
	for q.waiters.Len() > 0 {
		w := q.waiters.PopFront()
		select {
		case w.ch <- struct{}{}:
			q.live--
			return true
		default:
			// abandoned; its own Abandon filled the buffer
			q.dead--
		}
	}
	return false
}

// NotifyAll wakes every live waiter and empties the queue
func (q *Queue) NotifyAll() int {
	woken := 0
	for q.Notify() {
		woken++
	}
	return woken
}

// Abandon removes w from consideration after its owner stopped waiting
// (timeout or cancellation). If w had already been notified, the wakeup is
// handed to the next waiter so it is not lost. It reports whether the
// notification was passed on.
func (q *Queue) Abandon(w *Waiter) bool {
	select {
	case w.ch <- struct{}{}:
		// still queued; Notify will discard it
		q.live--
		q.dead++
		q.maybeCompact()
		return false
	default:
		// notified but never consumed
		<-w.ch
		q.Notify()
		return true
	}
}

// Len returns the number of live waiters
func (q *Queue) Len() int {
	return q.live
}

func (q *Queue) maybeCompact() {
	if q.live == 0 {
		q.waiters.Clear()
		q.dead = 0
		return
	}
	if q.dead < compactThreshold || q.dead < q.live {
		return
	}

	n := q.waiters.Len()
	for i := 0; i < n; i++ {
		w := q.waiters.PopFront()
		if len(w.ch) == 0 {
			q.waiters.PushBack(w)
		}
	}
	q.dead = 0
}
