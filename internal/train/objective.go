package train

import (
	"context"

	"github.com/san-kum/neuralfmu/internal/dynamo"
	"github.com/san-kum/neuralfmu/internal/loss"
)

// LossFunc evaluates the model at its current parameters.
type LossFunc func(ctx context.Context) (float64, error)

// Runner produces a trajectory from the current parameters.
type Runner interface {
	Run(ctx context.Context) (dynamo.Trajectory, error)
	SaveAt() []float64
}

// TrajectoryLoss runs the problem and compares its trajectory with
// reference. Comparison timestamps are the problem's save points, or the
// reference timestamps when it has none.
func TrajectoryLoss(problem Runner, reference dynamo.Trajectory, cmp loss.Compare) LossFunc {
	ts := problem.SaveAt()
	if len(ts) == 0 {
		ts = reference.Times()
	}
	return func(ctx context.Context) (float64, error) {
		traj, err := problem.Run(ctx)
		if err != nil {
			return 0, err
		}
		return cmp.Loss(reference, traj, ts)
	}
}
