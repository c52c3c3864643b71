package integrators

import (
	"math"

	"github.com/san-kum/neuralfmu/internal/dynamo"
)

// Dormand-Prince 5(4) tableau. The seventh stage is evaluated at the
// fifth-order solution (first same as last) and only feeds the error
// estimate.
var (
	dpNodes = [7]float64{0, 1.0 / 5, 3.0 / 10, 4.0 / 5, 8.0 / 9, 1, 1}

	dpCoupling = [6][]float64{
		{},
		{1.0 / 5},
		{3.0 / 40, 9.0 / 40},
		{44.0 / 45, -56.0 / 15, 32.0 / 9},
		{19372.0 / 6561, -25360.0 / 2187, 64448.0 / 6561, -212.0 / 729},
		{9017.0 / 3168, -355.0 / 33, 46732.0 / 5247, 49.0 / 176, -5103.0 / 18656},
	}

	// fifth-order weights, identical to the last coupling row
	dpWeights = [7]float64{35.0 / 384, 0, 500.0 / 1113, 125.0 / 192, -2187.0 / 6784, 11.0 / 84, 0}

	// fifth minus fourth-order weights
	dpError = [7]float64{
		35.0/384 - 5179.0/57600,
		0,
		500.0/1113 - 7571.0/16695,
		125.0/192 - 393.0/640,
		-2187.0/6784 + 92097.0/339200,
		11.0/84 - 187.0/2100,
		-1.0 / 40,
	}
)

// RK45 is the adaptive Dormand-Prince method. The step size controller
// shrinks by at most minScale and grows by at most maxScale per step.
type RK45 struct {
	safety   float64
	minScale float64
	maxScale float64
}

func NewRK45() *RK45 {
	return &RK45{
		safety:   0.9,
		minScale: 0.2,
		maxScale: 10.0,
	}
}

// Step takes one fifth-order step of size dt without error control.
func (r *RK45) Step(sys System, x dynamo.State, t, dt float64) (dynamo.State, error) {
	newX, _, _, err := r.StepAdaptive(sys, x, t, dt, 1e-6)
	return newX, err
}

func (r *RK45) StepAdaptive(sys System, x dynamo.State, t, dt, tol float64) (dynamo.State, float64, bool, error) {
	n := len(x)
	var k [7]dynamo.State

	for s := 0; s < 6; s++ {
		stage := make(dynamo.State, n)
		for i := 0; i < n; i++ {
			acc := 0.0
			for j, b := range dpCoupling[s] {
				acc += b * k[j][i]
			}
			stage[i] = x[i] + dt*acc
		}
		ks, err := sys.Derive(stage, t+dpNodes[s]*dt)
		if err != nil {
			return nil, 0, false, err
		}
		k[s] = ks
	}

	xNew := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		acc := 0.0
		for s := 0; s < 6; s++ {
			acc += dpWeights[s] * k[s][i]
		}
		xNew[i] = x[i] + dt*acc
	}
	k7, err := sys.Derive(xNew, t+dt)
	if err != nil {
		return nil, 0, false, err
	}
	k[6] = k7

	errMax := 0.0
	for i := 0; i < n; i++ {
		est := 0.0
		for s, e := range dpError {
			est += e * k[s][i]
		}
		scale := math.Abs(x[i]) + math.Abs(dt*k[0][i]) + 1e-10
		errMax = math.Max(errMax, math.Abs(dt*est)/scale)
	}

	ratio := errMax / tol
	return xNew, r.nextStep(dt, ratio), ratio <= 1, nil
}

// nextStep proposes the following step size from the error ratio of the
// step just taken. A NaN ratio shrinks like a failed step.
func (r *RK45) nextStep(dt, ratio float64) float64 {
	switch {
	case math.IsNaN(ratio):
		return dt * r.minScale
	case ratio > 1:
		return dt * math.Max(r.minScale, r.safety*math.Pow(ratio, -0.25))
	case ratio > 0:
		return dt * math.Min(r.maxScale, r.safety*math.Pow(ratio, -0.2))
	default:
		return dt * r.maxScale
	}
}
