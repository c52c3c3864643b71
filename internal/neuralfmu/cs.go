package neuralfmu

import (
	"context"
	"math"

	"github.com/san-kum/neuralfmu/internal/adapter"
	"github.com/san-kum/neuralfmu/internal/dynamo"
	"github.com/san-kum/neuralfmu/internal/fmu"
	"github.com/san-kum/neuralfmu/internal/nn"
)

// Input supplies the simulator inputs applied over the macro step that
// starts at t.
type Input func(t float64) []float64

// CS is a co-simulation hybrid model: every macro step the chain maps the
// inputs to corrected outputs, with one simulator step in its first stage.
type CS struct {
	*base
	stage *adapter.CSStage
	tail  *nn.Chain
	grid  []float64
	// keep[k] is true when macro grid point k is recorded.
	keep  []bool
	names []string
}

// NewCS checks that chain starts with a co-simulation stage on inst and
// ends with one component per model output. Save points must lie on the
// macro grid of the stage's step size.
func NewCS(inst *fmu.Instance, chain *nn.Chain, span dynamo.Span, opts ...Option) (*CS, error) {
	b, err := newBase("cs", inst, chain, span, opts)
	if err != nil {
		return nil, err
	}
	st, ok := chain.Stage(0).(*adapter.CSStage)
	if !ok || st.Instance() != inst {
		return nil, dynamo.Configf("cs", dynamo.ErrInvalidState, "first stage must be a co-simulation stage on the given instance")
	}
	desc := inst.Description()
	if chain.OutDim() != len(desc.Outputs) {
		return nil, dynamo.Configf("cs", dynamo.ErrDimensionMismatch, "chain emits %d components, model has %d outputs", chain.OutDim(), len(desc.Outputs))
	}
	names, err := desc.Names(desc.Outputs)
	if err != nil {
		return nil, err
	}

	grid := fmu.MacroGrid(span, st.Step())
	keep, err := gridMask(grid, b.saveAt)
	if err != nil {
		return nil, err
	}
	if err := b.claim(); err != nil {
		return nil, err
	}
	return &CS{base: b, stage: st, tail: chain.Tail(1), grid: grid, keep: keep, names: names}, nil
}

func gridMask(grid, saveAt []float64) ([]bool, error) {
	keep := make([]bool, len(grid))
	if len(saveAt) == 0 {
		for i := range keep {
			keep[i] = true
		}
		return keep, nil
	}
	k := 0
	for _, t := range saveAt {
		tol := 1e-9 * math.Max(1, math.Abs(t))
		for k < len(grid) && grid[k] < t-tol {
			k++
		}
		if k == len(grid) || math.Abs(grid[k]-t) > tol {
			return nil, dynamo.Configf("cs", dynamo.ErrOutOfDomain, "save point %g is not on the macro grid", t)
		}
		keep[k] = true
	}
	return keep, nil
}

func (c *CS) StateCount() int { return len(c.inst.Description().Outputs) }

// Steps is the number of adapter calls one Simulate makes.
func (c *CS) Steps() int { return len(c.grid) - 1 }

func (c *CS) forward(y []float64) ([]float64, error) {
	if c.tail == nil {
		return y, nil
	}
	return c.tail.Forward(y)
}

// Simulate runs the macro steps over the span. A nil input holds every
// simulator input at zero.
func (c *CS) Simulate(ctx context.Context, input Input) (dynamo.Trajectory, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := fmu.Setup(c.inst, c.span, c.start); err != nil {
		return dynamo.Trajectory{}, err
	}
	if input == nil {
		zero := make([]float64, c.stage.InDim())
		input = func(float64) []float64 { return zero }
	}

	times := make([]float64, 0, len(c.grid))
	values := make([]dynamo.State, 0, len(c.grid))
	record := func(k int, y []float64) {
		if c.keep[k] {
			times = append(times, c.grid[k])
			values = append(values, y)
		}
	}

	c.stats.Runs++
	y0, err := c.stage.Sample()
	if err != nil {
		return dynamo.Trajectory{}, err
	}
	if y0, err = c.forward(y0); err != nil {
		return dynamo.Trajectory{}, err
	}
	record(0, y0)

	for k := 1; k < len(c.grid); k++ {
		select {
		case <-ctx.Done():
			return dynamo.Trajectory{}, ctx.Err()
		default:
		}
		y, err := c.stage.Advance(c.grid[k]-c.grid[k-1], input(c.grid[k-1]))
		c.stats.AdapterCalls++
		if err != nil {
			return dynamo.Trajectory{}, err
		}
		if y, err = c.forward(y); err != nil {
			return dynamo.Trajectory{}, err
		}
		record(k, y)
	}
	return dynamo.NewTrajectory(times, values, c.names)
}

// Bind fixes the input signal for repeated runs.
func (c *CS) Bind(input Input) *Problem {
	return &Problem{Model: c, run: func(ctx context.Context) (dynamo.Trajectory, error) {
		return c.Simulate(ctx, input)
	}}
}
