package integrators

import "github.com/san-kum/neuralfmu/internal/dynamo"

// System is a right-hand side dX/dt = f(X, t). Derive may fail when the
// underlying simulator rejects the query; the error is propagated unchanged.
type System interface {
	Derive(x dynamo.State, t float64) (dynamo.State, error)
	StateDim() int
}

type Integrator interface {
	Step(sys System, x dynamo.State, t, dt float64) (dynamo.State, error)
}

// AdaptiveIntegrator proposes the next step size and reports whether the
// attempted step met the tolerance. A rejected step must be retried by the
// caller with the proposed size.
type AdaptiveIntegrator interface {
	Integrator
	StepAdaptive(sys System, x dynamo.State, t, dt, tol float64) (xNew dynamo.State, dtNew float64, accepted bool, err error)
}

// SystemFunc adapts a plain function to System.
type SystemFunc struct {
	Dim int
	Fn  func(x dynamo.State, t float64) (dynamo.State, error)
}

func (s SystemFunc) Derive(x dynamo.State, t float64) (dynamo.State, error) { return s.Fn(x, t) }
func (s SystemFunc) StateDim() int                                          { return s.Dim }
