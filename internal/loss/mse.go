package loss

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/neuralfmu/internal/dynamo"
)

// DefaultTolerance is the relative slack allowed when a comparison
// timestamp sits on a trajectory boundary.
const DefaultTolerance = 1e-9

// MSE is the mean squared difference of two equally long vectors.
func MSE(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, dynamo.Configf("mse", dynamo.ErrDimensionMismatch, "%d values against %d", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, nil
	}
	d := floats.Distance(a, b, 2)
	return d * d / float64(len(a)), nil
}

// Compare configures MSEInterpolate.
type Compare struct {
	Method Interpolation
	// Reference and Candidate select the compared columns by index, in
	// pairs. Nil compares every column in order.
	Reference []int
	Candidate []int
	Tolerance float64
}

// MSEInterpolate compares every column of two trajectories with linear
// interpolation onto ts. A nil ts uses the reference timestamps.
func MSEInterpolate(reference, candidate dynamo.Trajectory, ts []float64) (float64, error) {
	return Compare{}.Loss(reference, candidate, ts)
}

// Loss interpolates the selected columns of both trajectories onto ts and
// returns the mean squared difference over all of them. Every timestamp
// must lie inside both trajectory domains.
func (c Compare) Loss(reference, candidate dynamo.Trajectory, ts []float64) (float64, error) {
	if reference.Len() == 0 || candidate.Len() == 0 {
		return 0, dynamo.Configf("mse interpolate", dynamo.ErrOutOfDomain, "empty trajectory")
	}
	if ts == nil {
		ts = reference.Times()
	}
	refCols, candCols, err := c.columns(reference, candidate)
	if err != nil {
		return 0, err
	}
	tol := c.Tolerance
	if tol <= 0 {
		tol = DefaultTolerance
	}
	for i, t := range ts {
		if i > 0 && !(t > ts[i-1]) {
			return 0, dynamo.Configf("mse interpolate", dynamo.ErrUnsorted, "comparison timestamp %d (%g) not after %g", i, t, ts[i-1])
		}
		if err := inDomain("reference", reference, t, tol); err != nil {
			return 0, err
		}
		if err := inDomain("candidate", candidate, t, tol); err != nil {
			return 0, err
		}
	}

	want := make([]float64, 0, len(ts)*len(refCols))
	got := make([]float64, 0, len(ts)*len(refCols))
	for k := range refCols {
		a, err := sample(c.Method, reference, refCols[k], ts)
		if err != nil {
			return 0, err
		}
		b, err := sample(c.Method, candidate, candCols[k], ts)
		if err != nil {
			return 0, err
		}
		want = append(want, a...)
		got = append(got, b...)
	}
	return MSE(want, got)
}

func (c Compare) columns(reference, candidate dynamo.Trajectory) ([]int, []int, error) {
	refCols, candCols := c.Reference, c.Candidate
	if refCols == nil && candCols == nil {
		if reference.Dim() != candidate.Dim() {
			return nil, nil, dynamo.Configf("mse interpolate", dynamo.ErrDimensionMismatch,
				"reference has %d columns, candidate %d", reference.Dim(), candidate.Dim())
		}
		refCols = make([]int, reference.Dim())
		for i := range refCols {
			refCols[i] = i
		}
		return refCols, refCols, nil
	}
	if len(refCols) != len(candCols) {
		return nil, nil, dynamo.Configf("mse interpolate", dynamo.ErrDimensionMismatch,
			"%d reference columns paired with %d candidate columns", len(refCols), len(candCols))
	}
	for k := range refCols {
		if refCols[k] < 0 || refCols[k] >= reference.Dim() || candCols[k] < 0 || candCols[k] >= candidate.Dim() {
			return nil, nil, dynamo.Configf("mse interpolate", dynamo.ErrDimensionMismatch,
				"column pair (%d, %d) out of range", refCols[k], candCols[k])
		}
	}
	return refCols, candCols, nil
}

func inDomain(which string, tr dynamo.Trajectory, t, tol float64) error {
	lo, hi := tr.Domain()
	slack := tol * math.Max(1, math.Abs(t))
	if math.IsNaN(t) || t < lo-slack || t > hi+slack {
		return dynamo.Configf("mse interpolate", dynamo.ErrOutOfDomain, "timestamp %g outside %s domain [%g, %g]", t, which, lo, hi)
	}
	return nil
}

func sample(m Interpolation, tr dynamo.Trajectory, col int, ts []float64) ([]float64, error) {
	ys, err := tr.Column(col)
	if err != nil {
		return nil, err
	}
	p, err := m.fit(tr.Times(), ys)
	if err != nil {
		return nil, dynamo.Configf("mse interpolate", dynamo.ErrUnsorted, "%v", err)
	}
	out := make([]float64, len(ts))
	for i, t := range ts {
		out[i] = p.Predict(t)
	}
	return out, nil
}
