package worker

import (
	"cmp"
	"context"
	"iter"

	"github.com/addrummond/heap"
	"github.com/jzx17/goworkq/pkg/types"
)

// AsCompleted yields each distinct future once, in the order the futures
// complete. Iteration ends when all of them have been yielded, when the
// caller stops, or when ctx is done; check ctx.Err() to tell the last case
// apart. Futures still pending when iteration ends keep no reference to it.
func AsCompleted[R any](ctx context.Context, futures ...*Future[R]) iter.Seq2[*Future[R], types.Result[R]] {
	return func(yield func(*Future[R], types.Result[R]) bool) {
		seen := make(map[*Future[R]]struct{}, len(futures))
		ready := make(chan *Future[R], len(futures))
		var detach []func()
		defer func() {
			for _, d := range detach {
				d()
			}
		}()
		for _, f := range futures {
			if f == nil {
				continue
			}
			if _, dup := seen[f]; dup {
				continue
			}
			seen[f] = struct{}{}
			detach = append(detach, f.whenDone(func() { ready <- f }))
		}

		for range len(seen) {
			select {
			case f := <-ready:
				r, _ := f.Result()
				if !yield(f, r) {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}
}

// MapOrdered runs the pool's function over inputs and returns the results
// in input order. It waits for every task; if any failed, the failure with
// the lowest input index is returned as a *types.TaskError and the results
// are discarded. Submission blocks while a bounded queue is full.
func (p *Pool[T, R]) MapOrdered(ctx context.Context, inputs []T) ([]R, error) {
	futures := p.submitAll(ctx, inputs)

	results := make([]R, len(inputs))
	var firstErr error
	for i, f := range futures {
		select {
		case <-f.Done():
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		r, _ := f.Result()
		if r.Error != nil {
			if firstErr == nil {
				firstErr = r.Error
			}
			continue
		}
		results[i] = r.Value
	}

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

// MapOrderedSeq submits every input when iteration starts and yields
// (index, result) pairs in input order, each as soon as all earlier ones
// have been yielded. Failed tasks are yielded with their error set.
func (p *Pool[T, R]) MapOrderedSeq(ctx context.Context, inputs []T) iter.Seq2[int, types.Result[R]] {
	return func(yield func(int, types.Result[R]) bool) {
		futures := p.submitAll(ctx, inputs)

		var pending heap.Heap[indexedResult[R], heap.Min]
		next := 0
		for f, r := range AsCompleted(ctx, futures...) {
			heap.PushOrderable(&pending, indexedResult[R]{index: f.Index(), result: r})

			for {
				top, ok := heap.Peek(&pending)
				if !ok || top.index != next {
					break
				}
				_, _ = heap.PopOrderable(&pending)
				if !yield(top.index, top.result) {
					return
				}
				next++
			}
		}
	}
}

// submitAll admits every input, blocking for room. An input that cannot be
// admitted gets a future that has already failed with the reason.
func (p *Pool[T, R]) submitAll(ctx context.Context, inputs []T) []*Future[R] {
	futures := make([]*Future[R], len(inputs))
	for i, in := range inputs {
		f, err := p.submit(ctx, in, i, true)
		if err != nil {
			f = newFuture[R](p.nextID.Add(1), i)
			f.fail(err)
		}
		futures[i] = f
	}
	return futures
}

// Map runs fn over inputs on a temporary pool of the given size and returns
// the results in input order
func Map[T, R any](ctx context.Context, workers int, fn types.TaskFunc[T, R], inputs []T) ([]R, error) {
	cfg := DefaultConfig()
	cfg.Workers = workers

	p, err := New(fn, cfg)
	if err != nil {
		return nil, err
	}
	defer func() { _ = p.Shutdown(true) }()

	return p.MapOrdered(ctx, inputs)
}

// indexedResult orders completed results by input position
type indexedResult[R any] struct {
	index  int
	result types.Result[R]
}

func (a *indexedResult[R]) Cmp(b *indexedResult[R]) int {
	return cmp.Compare(a.index, b.index)
}
