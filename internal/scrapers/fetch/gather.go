package fetch

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Gather runs fn for every item on at most `limit` goroutines and returns the
// results in item order. Once ctx is done no new calls are started, the
// results of items that never ran are left as zero values.
func Gather[T, R any](ctx context.Context, items []T, limit int, fn func(context.Context, T) R) []R {
	results := make([]R, len(items))
	if limit <= 0 {
		limit = 1
	}

	group := errgroup.Group{}
	group.SetLimit(limit)
	for i, item := range items {
		if ctx.Err() != nil {
			break
		}
		group.Go(func() error {
			results[i] = fn(ctx, item)
			return nil
		})
	}
	group.Wait()

	return results
}
