package nn

import (
	"github.com/san-kum/neuralfmu/internal/dynamo"
)

// Chain runs stages in order, feeding each output into the next input.
type Chain struct {
	stages []Stage
}

// NewChain checks that consecutive stage dimensions agree.
func NewChain(stages ...Stage) (*Chain, error) {
	if len(stages) == 0 {
		return nil, dynamo.Configf("chain", dynamo.ErrDimensionMismatch, "no stages")
	}
	for i := 1; i < len(stages); i++ {
		if stages[i-1].OutDim() != stages[i].InDim() {
			return nil, dynamo.Configf("chain", dynamo.ErrDimensionMismatch,
				"stage %d outputs %d components but stage %d takes %d", i-1, stages[i-1].OutDim(), i, stages[i].InDim())
		}
	}
	return &Chain{stages: append([]Stage(nil), stages...)}, nil
}

func (c *Chain) Len() int          { return len(c.stages) }
func (c *Chain) Stage(i int) Stage { return c.stages[i] }
func (c *Chain) InDim() int        { return c.stages[0].InDim() }
func (c *Chain) OutDim() int       { return c.stages[len(c.stages)-1].OutDim() }

// Tail returns the chain without its first from stages, or nil when
// nothing is left.
func (c *Chain) Tail(from int) *Chain {
	if from >= len(c.stages) {
		return nil
	}
	return &Chain{stages: c.stages[from:]}
}

func (c *Chain) Forward(in []float64) ([]float64, error) {
	x := in
	for _, s := range c.stages {
		var err error
		if x, err = s.Forward(x); err != nil {
			return nil, err
		}
	}
	return x, nil
}

func (c *Chain) NumParams() int {
	n := 0
	for _, s := range c.stages {
		n += len(s.Params())
	}
	return n
}

// Params returns a copy of all trainable parameters in stage order.
func (c *Chain) Params() []float64 {
	p := make([]float64, 0, c.NumParams())
	for _, s := range c.stages {
		p = append(p, s.Params()...)
	}
	return p
}

// SetParams overwrites all trainable parameters from p.
func (c *Chain) SetParams(p []float64) error {
	if len(p) != c.NumParams() {
		return dynamo.Configf("set params", dynamo.ErrDimensionMismatch, "got %d parameters, chain has %d", len(p), c.NumParams())
	}
	return TransferParams(c, p, 0)
}

// TransferParams copies parameters into the chain's stages, reading p from
// offset onward. Values past what the chain holds are ignored.
func TransferParams(c *Chain, p []float64, offset int) error {
	if offset < 0 || len(p)-offset < c.NumParams() {
		return dynamo.Configf("transfer params", dynamo.ErrDimensionMismatch,
			"%d values from offset %d cannot fill %d parameters", len(p), offset, c.NumParams())
	}
	for _, s := range c.stages {
		view := s.Params()
		offset += copy(view, p[offset:offset+len(view)])
	}
	return nil
}
