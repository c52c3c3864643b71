package neuralfmu

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/san-kum/neuralfmu/internal/dynamo"
	"github.com/san-kum/neuralfmu/internal/fmu"
	"github.com/san-kum/neuralfmu/internal/integrators"
	"github.com/san-kum/neuralfmu/internal/nn"
)

// Model is the view of a hybrid model the training loop works with.
type Model interface {
	Params() []float64
	SetParams(p []float64) error
	NumParams() int
	// StateCount is the dimension of the primary vector the pipeline emits:
	// states for model exchange, outputs for co-simulation.
	StateCount() int
	Span() dynamo.Span
	SaveAt() []float64
	Stats() Stats
	Close()
}

// Stats are cumulative diagnostics since construction.
type Stats struct {
	Runs int
	// AdapterCalls counts simulator stage evaluations.
	AdapterCalls int
	// Solver holds the statistics of the most recent model exchange run.
	Solver integrators.Statistics
}

type Option func(*settings)

type settings struct {
	saveAt []float64
	start  map[string]float64
	solve  integrators.SolveOptions
}

// WithSaveAt sets the sampling schedule. Without it model exchange keeps
// every accepted solver step and co-simulation every macro step.
func WithSaveAt(ts []float64) Option {
	return func(s *settings) { s.saveAt = append([]float64(nil), ts...) }
}

// WithStartValues sets variables by name before every initialization.
func WithStartValues(values map[string]float64) Option {
	return func(s *settings) {
		s.start = make(map[string]float64, len(values))
		for k, v := range values {
			s.start[k] = v
		}
	}
}

func WithSolveOptions(o integrators.SolveOptions) Option {
	return func(s *settings) { s.solve = o }
}

var owners atomic.Int64

// base holds what ME and CS share: instance ownership, parameters,
// schedule and statistics.
type base struct {
	mu sync.Mutex

	inst  *fmu.Instance
	chain *nn.Chain
	span  dynamo.Span
	owner string
	settings

	stats Stats
}

func newBase(kind string, inst *fmu.Instance, chain *nn.Chain, span dynamo.Span, opts []Option) (*base, error) {
	if inst == nil || chain == nil {
		return nil, dynamo.Configf(kind, dynamo.ErrInvalidState, "instance and chain are required")
	}
	if err := span.Validate(); err != nil {
		return nil, err
	}
	b := &base{inst: inst, chain: chain, span: span}
	for _, o := range opts {
		o(&b.settings)
	}
	if err := checkSaveAt(b.saveAt, span); err != nil {
		return nil, err
	}
	for name := range b.start {
		if _, err := inst.Description().ValueReference(name); err != nil {
			return nil, err
		}
	}
	b.owner = fmt.Sprintf("%s-%d", kind, owners.Add(1))
	return b, nil
}

func checkSaveAt(ts []float64, span dynamo.Span) error {
	eps := 1e-12 * math.Max(1, math.Abs(span.Stop))
	for i, t := range ts {
		if t < span.Start-eps || t > span.Stop+eps {
			return dynamo.Configf("save points", dynamo.ErrOutOfDomain, "%g outside [%g, %g]", t, span.Start, span.Stop)
		}
		if i > 0 && !(t > ts[i-1]) {
			return dynamo.Configf("save points", dynamo.ErrUnsorted, "point %d (%g) not after %g", i, t, ts[i-1])
		}
	}
	return nil
}

func (b *base) claim() error { return b.inst.Claim(b.owner) }

func (b *base) Params() []float64 { return b.chain.Params() }

func (b *base) SetParams(p []float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.chain.SetParams(p)
}

func (b *base) NumParams() int          { return b.chain.NumParams() }
func (b *base) Span() dynamo.Span       { return b.span }
func (b *base) SaveAt() []float64       { return append([]float64(nil), b.saveAt...) }
func (b *base) Chain() *nn.Chain        { return b.chain }
func (b *base) Instance() *fmu.Instance { return b.inst }

func (b *base) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// Close gives up ownership of the instance.
func (b *base) Close() { b.inst.Release(b.owner) }

// Problem is a model bound to fixed initial conditions or inputs, ready to
// be re-run after every parameter update.
type Problem struct {
	Model
	run func(ctx context.Context) (dynamo.Trajectory, error)
}

func (p *Problem) Run(ctx context.Context) (dynamo.Trajectory, error) { return p.run(ctx) }
