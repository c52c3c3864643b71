package train

import (
	"context"
	"fmt"
	"math"
)

// Params is the part of a model the training loop mutates.
type Params interface {
	Params() []float64
	SetParams(p []float64) error
}

// Gradient estimates dLoss/dp for every trainable parameter of m. It must
// leave the parameters of m as it found them.
type Gradient interface {
	Gradient(ctx context.Context, m Params, loss LossFunc) ([]float64, error)
}

// CentralDifference approximates each partial derivative with
// (L(p+h) - L(p-h)) / 2h where h = Step·max(1, |p|).
type CentralDifference struct {
	Step float64
}

const DefaultGradientStep = 1e-6

func (c CentralDifference) Gradient(ctx context.Context, m Params, loss LossFunc) (grad []float64, err error) {
	step := c.Step
	if step <= 0 {
		step = DefaultGradientStep
	}
	p := m.Params()
	orig := append([]float64(nil), p...)
	defer func() {
		if rerr := m.SetParams(orig); rerr != nil && err == nil {
			grad, err = nil, fmt.Errorf("restoring parameters: %w", rerr)
		}
	}()

	grad = make([]float64, len(p))
	for i := range p {
		h := step * math.Max(1, math.Abs(orig[i]))

		p[i] = orig[i] + h
		if err := m.SetParams(p); err != nil {
			return nil, err
		}
		plus, err := loss(ctx)
		if err != nil {
			return nil, err
		}

		p[i] = orig[i] - h
		if err := m.SetParams(p); err != nil {
			return nil, err
		}
		minus, err := loss(ctx)
		if err != nil {
			return nil, err
		}

		p[i] = orig[i]
		grad[i] = (plus - minus) / (2 * h)
	}
	return grad, nil
}
