package train

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Build constructs the i-th independent orchestrator. Each must own its
// own model and simulator instance.
type Build func(i int) (*Orchestrator, error)

// Ensemble trains n independent runs concurrently, at most one per CPU.
// The first failure cancels the runs that have not finished.
func Ensemble(ctx context.Context, n int, build Build) ([]State, error) {
	states := make([]State, n)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i := 0; i < n; i++ {
		g.Go(func() error {
			o, err := build(i)
			if err != nil {
				return err
			}
			st, err := o.Run(ctx)
			states[i] = st
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return states, err
	}
	return states, nil
}
