package worker

import (
	"context"
)

// indexedJob carries its position so Map can restore input order
type indexedJob[T, R any] struct {
	index int
	item  T
	fn    func(ctx context.Context, index int, item T) (R, error)
}

type indexedResult[R any] struct {
	index int
	value R
	err   error
}

func (r *indexedResult[R]) GetError() error {
	return r.err
}

func (j *indexedJob[T, R]) Execute(ctx context.Context) Result {
	value, err := j.fn(ctx, j.index, j.item)
	return &indexedResult[R]{index: j.index, value: value, err: err}
}

// Map runs fn over items on a pool of the given size and returns the values
// and errors in input order. Items that never ran because ctx was cancelled
// get the zero value and ctx's error.
func Map[T, R any](ctx context.Context, workers int, items []T, fn func(ctx context.Context, index int, item T) (R, error)) ([]R, []error) {
	values := make([]R, len(items))
	errs := make([]error, len(items))
	if len(items) == 0 {
		return values, errs
	}
	if workers > len(items) {
		workers = len(items)
	}

	pool := NewPool(ctx, workers)
	pool.Start()

	done := make([]bool, len(items))
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for res := range pool.Results() {
			r := res.(*indexedResult[R])
			values[r.index] = r.value
			errs[r.index] = r.err
			done[r.index] = true
		}
	}()

	for i, item := range items {
		if !pool.Submit(&indexedJob[T, R]{index: i, item: item, fn: fn}) {
			break
		}
	}
	pool.closeQueue()
	pool.wg.Wait()
	pool.closeResults()
	<-collected
	pool.cancelFunc()

	for i := range items {
		if !done[i] {
			errs[i] = ctx.Err()
			if errs[i] == nil {
				errs[i] = context.Canceled
			}
		}
	}
	return values, errs
}
