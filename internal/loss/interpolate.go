package loss

import (
	"fmt"

	"gonum.org/v1/gonum/interp"
)

// Interpolation selects how a trajectory is evaluated between samples.
type Interpolation int

const (
	Linear Interpolation = iota
	// Constant holds the value of the next sample (left-continuous).
	Constant
	Akima
)

func (m Interpolation) String() string {
	switch m {
	case Linear:
		return "linear"
	case Constant:
		return "constant"
	case Akima:
		return "akima"
	default:
		return fmt.Sprintf("interpolation(%d)", int(m))
	}
}

// ParseInterpolation maps a configured name to a method. The empty name is
// linear.
func ParseInterpolation(name string) (Interpolation, error) {
	switch name {
	case "", "linear":
		return Linear, nil
	case "constant":
		return Constant, nil
	case "akima":
		return Akima, nil
	}
	return 0, fmt.Errorf("loss: unknown interpolation %q", name)
}

type fittable interface {
	Fit(xs, ys []float64) error
	Predict(x float64) float64
}

func (m Interpolation) predictor() fittable {
	switch m {
	case Constant:
		return &interp.PiecewiseConstant{}
	case Akima:
		return &interp.AkimaSpline{}
	default:
		return &interp.PiecewiseLinear{}
	}
}

// constant predicts a single-sample trajectory.
type constant float64

func (c constant) Predict(float64) float64 { return float64(c) }

// fit returns a predictor for one component. Single-sample trajectories
// are constant.
func (m Interpolation) fit(xs, ys []float64) (interface{ Predict(float64) float64 }, error) {
	if len(xs) == 1 {
		return constant(ys[0]), nil
	}
	p := m.predictor()
	if err := p.Fit(xs, ys); err != nil {
		return nil, err
	}
	return p, nil
}
