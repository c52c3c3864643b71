package neuralfmu

import (
	"context"

	"github.com/san-kum/neuralfmu/internal/adapter"
	"github.com/san-kum/neuralfmu/internal/dynamo"
	"github.com/san-kum/neuralfmu/internal/fmu"
	"github.com/san-kum/neuralfmu/internal/integrators"
	"github.com/san-kum/neuralfmu/internal/nn"
)

// ME is a model exchange hybrid model: the chain is integrated as
// dx/dt = chain(x) with the instance clock positioned at the solver time.
type ME struct {
	*base
	solver integrators.Integrator
	names  []string
}

// NewME checks that chain starts with a model exchange stage on inst and
// maps states back to states. A nil solver selects adaptive RK45.
func NewME(inst *fmu.Instance, chain *nn.Chain, span dynamo.Span, solver integrators.Integrator, opts ...Option) (*ME, error) {
	b, err := newBase("me", inst, chain, span, opts)
	if err != nil {
		return nil, err
	}
	st, ok := chain.Stage(0).(*adapter.MEStage)
	if !ok || st.Instance() != inst {
		return nil, dynamo.Configf("me", dynamo.ErrInvalidState, "first stage must be a model exchange stage on the given instance")
	}
	n := inst.Description().NumStates()
	if chain.OutDim() != n {
		return nil, dynamo.Configf("me", dynamo.ErrDimensionMismatch, "chain emits %d components, model has %d states", chain.OutDim(), n)
	}
	names, err := inst.Description().Names(inst.Description().States)
	if err != nil {
		return nil, err
	}
	if solver == nil {
		solver = integrators.NewRK45()
	}
	if err := b.claim(); err != nil {
		return nil, err
	}
	return &ME{base: b, solver: solver, names: names}, nil
}

func (m *ME) StateCount() int { return m.inst.Description().NumStates() }

// Simulate integrates from x0 over the span. A nil x0 starts from the
// states the instance reports after initialization.
func (m *ME) Simulate(ctx context.Context, x0 dynamo.State) (dynamo.Trajectory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := fmu.Setup(m.inst, m.span, m.start); err != nil {
		return dynamo.Trajectory{}, err
	}
	if x0 == nil {
		var err error
		if x0, err = m.inst.GetContinuousStates(); err != nil {
			return dynamo.Trajectory{}, err
		}
	}
	if len(x0) != m.StateCount() {
		return dynamo.Trajectory{}, dynamo.Configf("me", dynamo.ErrDimensionMismatch, "initial state has %d components, model has %d states", len(x0), m.StateCount())
	}

	calls := 0
	sys := integrators.SystemFunc{
		Dim: len(x0),
		Fn: func(x dynamo.State, t float64) (dynamo.State, error) {
			if err := m.inst.SetTime(t); err != nil {
				return nil, err
			}
			calls++
			return m.chain.Forward(x)
		},
	}

	sol, err := integrators.Solve(ctx, sys, m.solver, x0, m.span, m.saveAt, m.solve)
	m.stats.Runs++
	m.stats.AdapterCalls += calls
	if sol != nil {
		m.stats.Solver = sol.Stats
	}
	if err != nil {
		return dynamo.Trajectory{}, err
	}
	return sol.Trajectory(m.names)
}

// Bind fixes the initial state for repeated runs.
func (m *ME) Bind(x0 dynamo.State) *Problem {
	x0 = x0.Clone()
	if len(x0) == 0 {
		x0 = nil
	}
	return &Problem{Model: m, run: func(ctx context.Context) (dynamo.Trajectory, error) {
		return m.Simulate(ctx, x0)
	}}
}
