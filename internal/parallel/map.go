package parallel

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Map calls mapFunc for every element of input with at most limit calls
// running at the same time. Results keep the order of input. A canceled
// context is passed down to mapFunc, which decides what to return then.
func Map[E, D any](ctx context.Context, limit int, input []E, mapFunc func(context.Context, E) D) []D {
	ret := make([]D, len(input))
	if len(input) == 0 {
		return ret
	}

	var g errgroup.Group
	g.SetLimit(max(limit, 1))
	for i, entry := range input {
		g.Go(func() error {
			ret[i] = mapFunc(ctx, entry)
			return nil
		})
	}
	_ = g.Wait()
	return ret
}
