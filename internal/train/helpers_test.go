package train

import (
	"context"
	"errors"
	"io"
	"log/slog"
)

// quadratic is a parameter vector with loss |p - target|².
type quadratic struct {
	p, target []float64
	evals     int
}

func newQuadratic(p, target []float64) *quadratic {
	return &quadratic{p: append([]float64(nil), p...), target: target}
}

func (q *quadratic) Params() []float64 { return append([]float64(nil), q.p...) }

func (q *quadratic) SetParams(p []float64) error {
	if len(p) != len(q.p) {
		return errors.New("wrong length")
	}
	copy(q.p, p)
	return nil
}

func (q *quadratic) loss(ctx context.Context) (float64, error) {
	q.evals++
	sum := 0.0
	for i := range q.p {
		d := q.p[i] - q.target[i]
		sum += d * d
	}
	return sum, nil
}

// countingOptimizer counts Update calls.
type countingOptimizer struct {
	Optimizer
	updates int
	resets  int
}

func (c *countingOptimizer) Update(params, grads []float64) {
	c.updates++
	c.Optimizer.Update(params, grads)
}

func (c *countingOptimizer) Reset() {
	c.resets++
	c.Optimizer.Reset()
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
