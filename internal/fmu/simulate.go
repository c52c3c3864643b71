package fmu

import (
	"context"
	"math"

	"github.com/san-kum/neuralfmu/internal/dynamo"
	"github.com/san-kum/neuralfmu/internal/integrators"
)

type Mode int

const (
	ModelExchange Mode = iota
	CoSimulation
)

func (m Mode) String() string {
	if m == CoSimulation {
		return "cs"
	}
	return "me"
}

// SimulateOptions configures a plain FMU run without neural stages.
type SimulateOptions struct {
	Mode   Mode
	Span   dynamo.Span
	SaveAt []float64
	// Record lists the variables to record; empty records the states.
	Record      []string
	StartValues map[string]float64
	// Input, when set, is applied to the model inputs before every step.
	Input func(t float64) []float64
	// Solver drives model exchange; nil means adaptive RK45.
	Solver integrators.Integrator
	Solve  integrators.SolveOptions
	// Step is the co-simulation communication step when SaveAt is empty.
	Step float64
}

// Setup resets inst and runs it through experiment setup and
// initialization, applying start values in between.
func Setup(inst *Instance, span dynamo.Span, start map[string]float64) error {
	if err := inst.Reset(); err != nil {
		return err
	}
	if err := inst.SetupExperiment(span.Start, span.Stop); err != nil {
		return err
	}
	if err := inst.EnterInitializationMode(); err != nil {
		return err
	}
	for name, v := range start {
		ref, err := inst.Description().ValueReference(name)
		if err != nil {
			return err
		}
		if err := inst.SetReal([]ValueReference{ref}, []float64{v}); err != nil {
			return err
		}
	}
	return inst.ExitInitializationMode()
}

// Simulate sets up inst and records the requested variables over the span.
func Simulate(ctx context.Context, inst *Instance, opts SimulateOptions) (dynamo.Trajectory, error) {
	if err := opts.Span.Validate(); err != nil {
		return dynamo.Trajectory{}, err
	}
	desc := inst.Description()
	record := desc.States
	names, err := desc.Names(record)
	if err != nil {
		return dynamo.Trajectory{}, err
	}
	if len(opts.Record) > 0 {
		if record, err = desc.ValueReferences(opts.Record...); err != nil {
			return dynamo.Trajectory{}, err
		}
		names = append([]string(nil), opts.Record...)
	}
	if err := Setup(inst, opts.Span, opts.StartValues); err != nil {
		return dynamo.Trajectory{}, err
	}

	if opts.Mode == CoSimulation {
		return simulateCS(ctx, inst, opts, record, names)
	}
	return simulateME(ctx, inst, opts, record, names)
}

func applyInput(inst *Instance, input func(float64) []float64, t float64) error {
	if input == nil {
		return nil
	}
	return inst.SetReal(inst.Description().Inputs, input(t))
}

func simulateME(ctx context.Context, inst *Instance, opts SimulateOptions, record []ValueReference, names []string) (dynamo.Trajectory, error) {
	x0, err := inst.GetContinuousStates()
	if err != nil {
		return dynamo.Trajectory{}, err
	}
	solver := opts.Solver
	if solver == nil {
		solver = integrators.NewRK45()
	}

	sys := integrators.SystemFunc{
		Dim: len(x0),
		Fn: func(x dynamo.State, t float64) (dynamo.State, error) {
			if err := inst.SetTime(t); err != nil {
				return nil, err
			}
			if err := applyInput(inst, opts.Input, t); err != nil {
				return nil, err
			}
			if err := inst.SetContinuousStates(x); err != nil {
				return nil, err
			}
			return inst.GetDerivatives()
		},
	}

	sol, err := integrators.Solve(ctx, sys, solver, x0, opts.Span, opts.SaveAt, opts.Solve)
	if err != nil {
		return dynamo.Trajectory{}, err
	}

	values := make([]dynamo.State, len(sol.Times))
	for k, t := range sol.Times {
		if err := inst.SetTime(t); err != nil {
			return dynamo.Trajectory{}, err
		}
		if err := applyInput(inst, opts.Input, t); err != nil {
			return dynamo.Trajectory{}, err
		}
		if err := inst.SetContinuousStates(sol.States[k]); err != nil {
			return dynamo.Trajectory{}, err
		}
		v, err := inst.GetReal(record)
		if err != nil {
			return dynamo.Trajectory{}, err
		}
		values[k] = v
	}
	return dynamo.NewTrajectory(sol.Times, values, names)
}

func simulateCS(ctx context.Context, inst *Instance, opts SimulateOptions, record []ValueReference, names []string) (dynamo.Trajectory, error) {
	grid := opts.SaveAt
	if len(grid) == 0 {
		if opts.Step <= 0 {
			return dynamo.Trajectory{}, dynamo.Configf("simulate", dynamo.ErrTimeSpan, "co-simulation needs a step or save points")
		}
		grid = MacroGrid(opts.Span, opts.Step)
	}
	if grid[0] != opts.Span.Start {
		return dynamo.Trajectory{}, dynamo.Configf("simulate", dynamo.ErrOutOfDomain, "co-simulation grid must start at %g, got %g", opts.Span.Start, grid[0])
	}

	times := make([]float64, 0, len(grid))
	values := make([]dynamo.State, 0, len(grid))
	sample := func(t float64) error {
		v, err := inst.GetReal(record)
		if err != nil {
			return err
		}
		times = append(times, t)
		values = append(values, v)
		return nil
	}

	if err := applyInput(inst, opts.Input, grid[0]); err != nil {
		return dynamo.Trajectory{}, err
	}
	if err := sample(grid[0]); err != nil {
		return dynamo.Trajectory{}, err
	}
	for k := 1; k < len(grid); k++ {
		select {
		case <-ctx.Done():
			return dynamo.Trajectory{}, ctx.Err()
		default:
		}
		if err := applyInput(inst, opts.Input, grid[k-1]); err != nil {
			return dynamo.Trajectory{}, err
		}
		if err := inst.DoStep(grid[k] - grid[k-1]); err != nil {
			return dynamo.Trajectory{}, err
		}
		if err := sample(grid[k]); err != nil {
			return dynamo.Trajectory{}, err
		}
	}
	return dynamo.NewTrajectory(times, values, names)
}

// MacroGrid returns the communication points start, start+dt, ... with the
// last step shortened to end exactly at span.Stop. It has ceil(T/dt)+1
// points for a span of length T.
func MacroGrid(span dynamo.Span, dt float64) []float64 {
	if dt <= 0 || span.Stop <= span.Start {
		return nil
	}
	n := int(math.Ceil(span.Duration()/dt - 1e-9))
	grid := make([]float64, n+1)
	for k := 0; k < n; k++ {
		grid[k] = span.Start + float64(k)*dt
	}
	grid[n] = span.Stop
	return grid
}
