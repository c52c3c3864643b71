package adapter

import (
	"math"

	"github.com/san-kum/neuralfmu/internal/dynamo"
	"github.com/san-kum/neuralfmu/internal/fmu"
)

// MEStage maps a state vector to its derivative followed by the probed
// values. It reads the instance time, so the caller positions the clock.
type MEStage struct {
	inst    *fmu.Instance
	getRefs []fmu.ValueReference
}

// NewMEStage resolves the probed variable names against the instance.
func NewMEStage(inst *fmu.Instance, probe ...string) (*MEStage, error) {
	refs, err := inst.Description().ValueReferences(probe...)
	if err != nil {
		return nil, err
	}
	return &MEStage{inst: inst, getRefs: refs}, nil
}

func (s *MEStage) Instance() *fmu.Instance { return s.inst }
func (s *MEStage) InDim() int              { return s.inst.Description().NumStates() }
func (s *MEStage) OutDim() int             { return s.InDim() + len(s.getRefs) }
func (s *MEStage) Params() []float64       { return nil }

func (s *MEStage) Forward(x []float64) ([]float64, error) {
	res, err := DoStepME(s.inst, x, math.NaN(), nil, nil, s.getRefs)
	if err != nil {
		return nil, err
	}
	return res.Concat(), nil
}

// CSStage maps an input vector to the outputs after one macro step,
// followed by the probed values.
type CSStage struct {
	inst    *fmu.Instance
	dt      float64
	getRefs []fmu.ValueReference
}

// NewCSStage builds a co-simulation stage with macro step dt.
func NewCSStage(inst *fmu.Instance, dt float64, probe ...string) (*CSStage, error) {
	if !(dt > 0) || math.IsInf(dt, 0) {
		return nil, dynamo.Configf("cs stage", dynamo.ErrTimeSpan, "macro step must be positive, got %g", dt)
	}
	refs, err := inst.Description().ValueReferences(probe...)
	if err != nil {
		return nil, err
	}
	return &CSStage{inst: inst, dt: dt, getRefs: refs}, nil
}

func (s *CSStage) Instance() *fmu.Instance { return s.inst }
func (s *CSStage) Step() float64           { return s.dt }
func (s *CSStage) InDim() int              { return len(s.inst.Description().Inputs) }
func (s *CSStage) OutDim() int             { return len(s.inst.Description().Outputs) + len(s.getRefs) }
func (s *CSStage) Params() []float64       { return nil }

func (s *CSStage) Forward(u []float64) ([]float64, error) {
	return s.Advance(s.dt, u)
}

// Advance is Forward with an explicit step size, used for a shortened
// final macro step.
func (s *CSStage) Advance(h float64, u []float64) ([]float64, error) {
	res, err := DoStepCS(s.inst, h, s.inst.Description().Inputs, u, s.getRefs)
	if err != nil {
		return nil, err
	}
	return res.Concat(), nil
}

// Sample reads outputs and probed values without stepping.
func (s *CSStage) Sample() ([]float64, error) {
	out, err := s.inst.GetReal(s.inst.Description().Outputs)
	if err != nil {
		return nil, err
	}
	probed, err := probe(s.inst, s.getRefs)
	if err != nil {
		return nil, err
	}
	return dynamo.StepResult{Values: out, Probed: probed}.Concat(), nil
}
