package integrators

import "github.com/san-kum/neuralfmu/internal/dynamo"

var (
	rk4Nodes   = [4]float64{0, 0.5, 0.5, 1}
	rk4Weights = [4]float64{1.0 / 6, 1.0 / 3, 1.0 / 3, 1.0 / 6}
)

// RK4 is the classic fixed-step fourth-order method. It reuses a stage
// buffer between steps, so one RK4 must not be shared across goroutines.
type RK4 struct {
	stage dynamo.State
}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) Step(sys System, x dynamo.State, t, dt float64) (dynamo.State, error) {
	n := len(x)
	if len(r.stage) != n {
		r.stage = make(dynamo.State, n)
	}

	result := x.Clone()
	copy(r.stage, x)
	for s := range rk4Nodes {
		k, err := sys.Derive(r.stage, t+rk4Nodes[s]*dt)
		if err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			result[i] += dt * rk4Weights[s] * k[i]
			if s < 3 {
				r.stage[i] = x[i] + dt*rk4Nodes[s+1]*k[i]
			}
		}
	}
	return result, nil
}
