// Package executor runs one action over a batch of items on a bounded pool.
package executor

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultLimit caps concurrent workers when Options.Limit is unset.
const DefaultLimit = 16

type Options struct {
	Limit int
	// Progress is called with completed and total counts every Every
	// completions and once more when the batch is finished.
	Progress func(done, total int)
	Every    int
}

type Result struct {
	Total  int
	Done   int
	Failed int
}

// Run calls fn for every item with at most opts.Limit calls in flight.
// Items are handed to workers in ascending key order; completion order is
// not defined. A failing call is counted and never stops the batch. Once
// ctx is done no further items are started.
func Run[T any](ctx context.Context, items []T, key func(T) string, fn func(context.Context, T) error, opts Options) Result {
	res := Result{Total: len(items)}
	if len(items) == 0 {
		return res
	}

	sorted := slices.Clone(items)
	slices.SortStableFunc(sorted, func(a, b T) int { return cmp.Compare(key(a), key(b)) })

	limit := opts.Limit
	if limit < 1 {
		limit = DefaultLimit
	}

	every := opts.Every
	if every < 1 {
		every = limit
	}

	var mu sync.Mutex
	finish := func(err error) {
		mu.Lock()
		defer mu.Unlock()

		res.Done++
		if err != nil {
			res.Failed++
		}

		if opts.Progress != nil && (res.Done%every == 0 || res.Done == res.Total) {
			opts.Progress(res.Done, res.Total)
		}
	}

	var g errgroup.Group
	g.SetLimit(min(limit, len(sorted)))

	for _, item := range sorted {
		if ctx.Err() != nil {
			break
		}

		g.Go(func() error {
			finish(fn(ctx, item))
			return nil
		})
	}

	_ = g.Wait()
	return res
}
