package nn

import (
	"github.com/san-kum/neuralfmu/internal/dynamo"
)

// Stage is one step of a pipeline. Params returns a view of the trainable
// parameters; frozen stages return nil.
type Stage interface {
	Forward(in []float64) ([]float64, error)
	InDim() int
	OutDim() int
	Params() []float64
}

// Func is a frozen stage around a plain function.
type Func struct {
	Name string
	In   int
	Out  int
	Fn   func(in []float64) ([]float64, error)
}

func (f *Func) InDim() int        { return f.In }
func (f *Func) OutDim() int       { return f.Out }
func (f *Func) Params() []float64 { return nil }

func (f *Func) Forward(in []float64) ([]float64, error) {
	if len(in) != f.In {
		return nil, dynamo.Configf(f.Name, dynamo.ErrDimensionMismatch, "input has %d components, want %d", len(in), f.In)
	}
	out, err := f.Fn(in)
	if err != nil {
		return nil, err
	}
	if len(out) != f.Out {
		return nil, dynamo.Configf(f.Name, dynamo.ErrDimensionMismatch, "output has %d components, want %d", len(out), f.Out)
	}
	return out, nil
}

// Select keeps the listed components of an n-dimensional input.
func Select(n int, idx ...int) *Func {
	keep := append([]int(nil), idx...)
	return &Func{
		Name: "select",
		In:   n,
		Out:  len(keep),
		Fn: func(in []float64) ([]float64, error) {
			out := make([]float64, len(keep))
			for k, i := range keep {
				if i < 0 || i >= len(in) {
					return nil, dynamo.Configf("select", dynamo.ErrDimensionMismatch, "index %d out of range for %d inputs", i, len(in))
				}
				out[k] = in[i]
			}
			return out, nil
		},
	}
}

// Passthrough is the n-dimensional identity stage.
func Passthrough(n int) *Func {
	return &Func{
		Name: "identity",
		In:   n,
		Out:  n,
		Fn: func(in []float64) ([]float64, error) {
			return append([]float64(nil), in...), nil
		},
	}
}
