package train

import (
	"fmt"
	"math"
)

// Optimizer updates params in place from grads. Reset clears any
// accumulated state.
type Optimizer interface {
	Update(params, grads []float64)
	Reset()
}

// Adam implements the Adam optimizer with bias correction.
//
//	m[i] = β1·m[i] + (1-β1)·g[i]
//	v[i] = β2·v[i] + (1-β2)·g[i]²
//	w[i] = w[i] - lr · m̂[i] / (√v̂[i] + ε)
//
// Parameters with a zero gradient are left untouched.
type Adam struct {
	lr           float64
	beta1, beta2 float64
	eps          float64
	m, v         []float64
	step         int
}

// NewAdam uses β1=0.9, β2=0.999, ε=1e-8.
func NewAdam(lr float64) *Adam {
	return &Adam{lr: lr, beta1: 0.9, beta2: 0.999, eps: 1e-8}
}

func (a *Adam) Update(params, grads []float64) {
	if len(a.m) != len(params) {
		a.m = make([]float64, len(params))
		a.v = make([]float64, len(params))
		a.step = 0
	}
	a.step++
	c1 := 1 - math.Pow(a.beta1, float64(a.step))
	c2 := 1 - math.Pow(a.beta2, float64(a.step))

	for i, g := range grads {
		if g == 0 {
			continue
		}
		a.m[i] = a.beta1*a.m[i] + (1-a.beta1)*g
		a.v[i] = a.beta2*a.v[i] + (1-a.beta2)*g*g
		params[i] -= a.lr * (a.m[i] / c1) / (math.Sqrt(a.v[i]/c2) + a.eps)
	}
}

func (a *Adam) Reset() {
	a.m, a.v, a.step = nil, nil, 0
}

func (a *Adam) SetLR(lr float64) { a.lr = lr }

// Descent is plain gradient descent.
type Descent struct {
	LR float64
}

func (d *Descent) Update(params, grads []float64) {
	for i, g := range grads {
		params[i] -= d.LR * g
	}
}

func (d *Descent) Reset() {}

// NewOptimizer builds an optimizer by name.
func NewOptimizer(name string, lr float64) (Optimizer, error) {
	switch name {
	case "", "adam":
		return NewAdam(lr), nil
	case "descent", "sgd":
		return &Descent{LR: lr}, nil
	}
	return nil, fmt.Errorf("train: unknown optimizer %q", name)
}
