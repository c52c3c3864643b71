package nn

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/neuralfmu/internal/dynamo"
)

// Initializer fills the weights and biases of a freshly built layer.
type Initializer func(w, b []float64, in, out int)

// Zeros initializes everything to zero.
func Zeros(w, b []float64, in, out int) {
	clear(w)
	clear(b)
}

// Glorot draws weights uniformly from the Glorot range with zero biases.
// Layers built with the same rng in the same order get the same weights.
func Glorot(rng *rand.Rand) Initializer {
	return func(w, b []float64, in, out int) {
		limit := math.Sqrt(6 / float64(in+out))
		for i := range w {
			w[i] = (2*rng.Float64() - 1) * limit
		}
		clear(b)
	}
}

// Eye sets the weights to the identity (truncated when in != out) with
// zero biases.
func Eye(w, b []float64, in, out int) {
	clear(w)
	clear(b)
	for i := 0; i < min(in, out); i++ {
		w[i*in+i] = 1
	}
}

// Dense computes act(W*x + b). W is out x in, stored row-major ahead of b
// in one flat parameter slice.
type Dense struct {
	in, out int
	act     Activation
	params  []float64
	w       *mat.Dense
	b       []float64
}

func NewDense(in, out int, act Activation, init Initializer) *Dense {
	if act.F == nil {
		act = Identity
	}
	params := make([]float64, out*in+out)
	d := &Dense{
		in:     in,
		out:    out,
		act:    act,
		params: params,
		w:      mat.NewDense(out, in, params[:out*in]),
		b:      params[out*in:],
	}
	if init == nil {
		init = Zeros
	}
	init(params[:out*in], d.b, in, out)
	return d
}

func (d *Dense) InDim() int             { return d.in }
func (d *Dense) OutDim() int            { return d.out }
func (d *Dense) Params() []float64      { return d.params }
func (d *Dense) Activation() Activation { return d.act }

func (d *Dense) Forward(in []float64) ([]float64, error) {
	if len(in) != d.in {
		return nil, dynamo.Configf("dense", dynamo.ErrDimensionMismatch, "input has %d components, want %d", len(in), d.in)
	}
	x := mat.NewVecDense(d.in, append([]float64(nil), in...))
	var y mat.VecDense
	y.MulVec(d.w, x)

	out := make([]float64, d.out)
	copy(out, y.RawVector().Data)
	floats.Add(out, d.b)
	for i, v := range out {
		out[i] = d.act.F(v)
	}
	return out, nil
}
