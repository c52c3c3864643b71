package dynamo

import "math"

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// StepResult is what one Step Adapter call produces. Values holds the
// state derivative (model exchange) or the outputs (co-simulation); Probed
// holds the additionally requested variables, in request order.
type StepResult struct {
	Values State
	Probed []float64
}

// Concat returns Values followed by Probed as one fresh vector.
func (r StepResult) Concat() State {
	out := make(State, 0, len(r.Values)+len(r.Probed))
	out = append(out, r.Values...)
	return append(out, r.Probed...)
}

// Span is a closed simulation interval.
type Span struct {
	Start float64
	Stop  float64
}

func (s Span) Duration() float64 { return s.Stop - s.Start }

func (s Span) Validate() error {
	if math.IsNaN(s.Start) || math.IsNaN(s.Stop) || s.Stop <= s.Start {
		return Configf("span", ErrTimeSpan, "need start < stop, got [%g, %g]", s.Start, s.Stop)
	}
	return nil
}

// Range returns start, start+step, ... up to and including stop (within a
// small tolerance), the way a reference data grid is usually laid out.
func Range(start, step, stop float64) []float64 {
	if step <= 0 || stop < start {
		return nil
	}
	n := int(math.Floor((stop-start)/step + 1e-9))
	ts := make([]float64, n+1)
	for i := range ts {
		ts[i] = start + float64(i)*step
	}
	if math.Abs(ts[n]-stop) < 1e-9*math.Max(1, math.Abs(stop)) {
		ts[n] = stop
	}
	return ts
}
