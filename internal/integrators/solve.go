package integrators

import (
	"context"
	"math"

	"github.com/san-kum/neuralfmu/internal/dynamo"
)

// SolveOptions configures Solve. Zero values fall back to DefaultSolveOptions.
type SolveOptions struct {
	// Dt is the fixed step, or the initial step for adaptive integrators.
	Dt        float64
	Tolerance float64
	MinDt     float64
	// MaxDt caps adaptive steps; 0 means the whole span.
	MaxDt float64
	// MaxSteps bounds accepted plus rejected step attempts.
	MaxSteps int
}

func DefaultSolveOptions() SolveOptions {
	return SolveOptions{
		Dt:        1e-3,
		Tolerance: 1e-6,
		MinDt:     1e-12,
		MaxSteps:  1_000_000,
	}
}

func (o SolveOptions) withDefaults() SolveOptions {
	d := DefaultSolveOptions()
	if o.Dt <= 0 {
		o.Dt = d.Dt
	}
	if o.Tolerance <= 0 {
		o.Tolerance = d.Tolerance
	}
	if o.MinDt <= 0 {
		o.MinDt = d.MinDt
	}
	if o.MaxSteps <= 0 {
		o.MaxSteps = d.MaxSteps
	}
	return o
}

// Statistics are solver diagnostics of one Solve call.
type Statistics struct {
	Steps       int
	Rejected    int
	Evaluations int
	LastDt      float64
}

type Solution struct {
	Times  []float64
	States []dynamo.State
	Stats  Statistics
}

// Trajectory converts the solution into an immutable trajectory.
func (s *Solution) Trajectory(names []string) (dynamo.Trajectory, error) {
	return dynamo.NewTrajectory(s.Times, s.States, names)
}

type countingSystem struct {
	System
	evals int
}

func (c *countingSystem) Derive(x dynamo.State, t float64) (dynamo.State, error) {
	c.evals++
	return c.System.Derive(x, t)
}

// Solve integrates sys from x0 across span. When saveAt is empty every
// accepted step is recorded, giving a solver-chosen grid; otherwise steps
// are shortened to land exactly on each save point and only those are
// recorded. Derivative errors abort the solve and are wrapped in a
// SimulationError carrying step and time.
func Solve(ctx context.Context, sys System, integ Integrator, x0 dynamo.State, span dynamo.Span, saveAt []float64, opts SolveOptions) (*Solution, error) {
	if err := span.Validate(); err != nil {
		return nil, err
	}
	if len(x0) != sys.StateDim() {
		return nil, dynamo.Configf("solve", dynamo.ErrDimensionMismatch, "initial state has %d components, system has %d", len(x0), sys.StateDim())
	}
	if err := validateSaveAt(saveAt, span); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	maxDt := opts.MaxDt
	if maxDt <= 0 {
		maxDt = span.Duration()
	}

	counter := &countingSystem{System: sys}
	eps := 1e-12 * math.Max(1, math.Abs(span.Stop))

	sol := &Solution{}
	record := func(t float64, x dynamo.State) {
		sol.Times = append(sol.Times, t)
		sol.States = append(sol.States, x.Clone())
	}

	x := x0.Clone()
	t := span.Start
	dt := math.Min(opts.Dt, maxDt)
	next := 0

	if len(saveAt) == 0 {
		record(t, x)
	} else if math.Abs(saveAt[0]-t) <= eps {
		record(t, x)
		next++
	}

	adaptive, isAdaptive := integ.(AdaptiveIntegrator)

	for span.Stop-t > eps {
		select {
		case <-ctx.Done():
			return sol, ctx.Err()
		default:
		}

		if sol.Stats.Steps+sol.Stats.Rejected >= opts.MaxSteps {
			return sol, &dynamo.SimulationError{Step: sol.Stats.Steps, Time: t, State: x.Clone(), Wrapped: dynamo.ErrStepFailed}
		}

		target := span.Stop
		if next < len(saveAt) {
			target = saveAt[next]
		}
		h := math.Min(dt, target-t)
		hitTarget := target-t-h <= eps

		var newX dynamo.State
		var err error
		if isAdaptive {
			var dtNew float64
			var accepted bool
			newX, dtNew, accepted, err = adaptive.StepAdaptive(counter, x, t, h, opts.Tolerance)
			if err == nil && (!newX.IsValid() || math.IsNaN(dtNew) || math.IsInf(dtNew, 0)) {
				sol.Stats.Evaluations = counter.evals
				return sol, &dynamo.SimulationError{Step: sol.Stats.Steps, Time: t + h, State: newX, Wrapped: dynamo.ErrInvalidState}
			}
			if err == nil && !accepted {
				sol.Stats.Rejected++
				dt = dtNew
				if dt < opts.MinDt {
					return sol, &dynamo.SimulationError{Step: sol.Stats.Steps, Time: t, State: x.Clone(), Wrapped: dynamo.ErrStepTooSmall}
				}
				continue
			}
			if err == nil && !hitTarget {
				dt = math.Min(math.Max(dtNew, opts.MinDt), maxDt)
			} else if err == nil {
				dt = math.Min(math.Max(dt, dtNew), maxDt)
			}
		} else {
			newX, err = integ.Step(counter, x, t, h)
		}
		if err != nil {
			sol.Stats.Evaluations = counter.evals
			return sol, &dynamo.SimulationError{Step: sol.Stats.Steps, Time: t, State: x.Clone(), Wrapped: err}
		}
		if !newX.IsValid() {
			sol.Stats.Evaluations = counter.evals
			return sol, &dynamo.SimulationError{Step: sol.Stats.Steps, Time: t + h, State: newX, Wrapped: dynamo.ErrInvalidState}
		}

		x = newX
		if hitTarget {
			t = target
		} else {
			t += h
		}
		sol.Stats.Steps++
		sol.Stats.LastDt = h

		if len(saveAt) == 0 {
			record(t, x)
		} else if next < len(saveAt) && hitTarget && target == saveAt[next] {
			record(t, x)
			next++
		}
	}

	sol.Stats.Evaluations = counter.evals
	return sol, nil
}

func validateSaveAt(saveAt []float64, span dynamo.Span) error {
	eps := 1e-12 * math.Max(1, math.Abs(span.Stop))
	for i, ts := range saveAt {
		if ts < span.Start-eps || ts > span.Stop+eps {
			return dynamo.Configf("solve", dynamo.ErrOutOfDomain, "save point %g outside [%g, %g]", ts, span.Start, span.Stop)
		}
		if i > 0 && !(ts > saveAt[i-1]) {
			return dynamo.Configf("solve", dynamo.ErrUnsorted, "save point %d (%g) not after %g", i, ts, saveAt[i-1])
		}
	}
	return nil
}
