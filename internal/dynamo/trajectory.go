package dynamo

import "fmt"

// Trajectory is an ordered sequence of time-stamped vectors. Constructors
// copy their inputs so a Trajectory is never mutated after creation.
type Trajectory struct {
	times  []float64
	values []State
	names  []string
}

// NewTrajectory validates and copies times and values. names is optional;
// when given it must have one entry per vector component.
func NewTrajectory(times []float64, values []State, names []string) (Trajectory, error) {
	if len(times) != len(values) {
		return Trajectory{}, Configf("trajectory", ErrDimensionMismatch, "%d timestamps for %d samples", len(times), len(values))
	}
	dim := -1
	for i, v := range values {
		if dim < 0 {
			dim = len(v)
		} else if len(v) != dim {
			return Trajectory{}, Configf("trajectory", ErrDimensionMismatch, "sample %d has %d components, want %d", i, len(v), dim)
		}
	}
	for i := 1; i < len(times); i++ {
		if !(times[i] > times[i-1]) {
			return Trajectory{}, Configf("trajectory", ErrUnsorted, "t[%d]=%g after t[%d]=%g", i, times[i], i-1, times[i-1])
		}
	}
	if names != nil && dim >= 0 && len(names) != dim {
		return Trajectory{}, Configf("trajectory", ErrDimensionMismatch, "%d names for %d components", len(names), dim)
	}

	tr := Trajectory{
		times:  append([]float64(nil), times...),
		values: make([]State, len(values)),
	}
	for i, v := range values {
		tr.values[i] = v.Clone()
	}
	if names != nil {
		tr.names = append([]string(nil), names...)
	}
	return tr, nil
}

func (tr Trajectory) Len() int { return len(tr.times) }

// Dim returns the number of components per sample, or 0 when empty.
func (tr Trajectory) Dim() int {
	if len(tr.values) == 0 {
		return 0
	}
	return len(tr.values[0])
}

// Time returns the i-th timestamp.
func (tr Trajectory) Time(i int) float64 { return tr.times[i] }

// Value returns a copy of the i-th sample.
func (tr Trajectory) Value(i int) State { return tr.values[i].Clone() }

// Times returns a copy of all timestamps.
func (tr Trajectory) Times() []float64 { return append([]float64(nil), tr.times...) }

// Names returns a copy of the component names, nil when unnamed.
func (tr Trajectory) Names() []string {
	if tr.names == nil {
		return nil
	}
	return append([]string(nil), tr.names...)
}

// Domain returns the first and last timestamp.
func (tr Trajectory) Domain() (float64, float64) {
	if len(tr.times) == 0 {
		return 0, 0
	}
	return tr.times[0], tr.times[len(tr.times)-1]
}

// Column returns component i of every sample.
func (tr Trajectory) Column(i int) ([]float64, error) {
	if i < 0 || i >= tr.Dim() {
		return nil, Configf("trajectory", ErrDimensionMismatch, "component %d of %d", i, tr.Dim())
	}
	col := make([]float64, len(tr.values))
	for k, v := range tr.values {
		col[k] = v[i]
	}
	return col, nil
}

// Index resolves a component name.
func (tr Trajectory) Index(name string) (int, error) {
	for i, n := range tr.names {
		if n == name {
			return i, nil
		}
	}
	return -1, Configf("trajectory", ErrValueReference, "no component named %q", name)
}

// Select returns a trajectory restricted to the given components.
func (tr Trajectory) Select(components ...int) (Trajectory, error) {
	values := make([]State, len(tr.values))
	for k, v := range tr.values {
		s := make(State, len(components))
		for j, c := range components {
			if c < 0 || c >= len(v) {
				return Trajectory{}, Configf("trajectory", ErrDimensionMismatch, "component %d of %d", c, len(v))
			}
			s[j] = v[c]
		}
		values[k] = s
	}
	var names []string
	if tr.names != nil {
		names = make([]string, len(components))
		for j, c := range components {
			names[j] = tr.names[c]
		}
	}
	return NewTrajectory(tr.times, values, names)
}

func (tr Trajectory) String() string {
	t0, t1 := tr.Domain()
	return fmt.Sprintf("trajectory{samples=%d dim=%d t=[%g, %g]}", tr.Len(), tr.Dim(), t0, t1)
}
