package fmu

import (
	"fmt"
	"math"
	"sync"

	"github.com/san-kum/neuralfmu/internal/dynamo"
	"github.com/san-kum/neuralfmu/internal/integrators"
)

const DefaultMicroStep = 1e-3

type phase int

const (
	phaseInstantiated phase = iota
	phaseInitializing
	phaseInitialized
	phaseTerminated
)

func (p phase) String() string {
	switch p {
	case phaseInstantiated:
		return "instantiated"
	case phaseInitializing:
		return "initializing"
	case phaseInitialized:
		return "initialized"
	default:
		return "terminated"
	}
}

type Option func(*Instance)

// WithMicroStep sets the largest internal step DoStep takes.
func WithMicroStep(h float64) Option {
	return func(i *Instance) {
		if h > 0 {
			i.microStep = h
		}
	}
}

// Instance is one running copy of a Model.
type Instance struct {
	mu sync.Mutex

	model     Model
	desc      *ModelDescription
	values    []float64
	scratch   []float64
	t         float64
	tStart    float64
	tStop     float64
	phase     phase
	microStep float64
	steps     int
	integ     *integrators.RK4
	opts      []Option

	ownerMu sync.Mutex
	owner   string
}

func Instantiate(m Model, opts ...Option) (*Instance, error) {
	desc := m.Description()
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	inst := &Instance{
		model:     m,
		desc:      desc,
		values:    make([]float64, len(desc.Variables)),
		scratch:   make([]float64, len(desc.Variables)),
		microStep: DefaultMicroStep,
		integ:     integrators.NewRK4(),
		opts:      opts,
	}
	for _, o := range opts {
		o(inst)
	}
	inst.loadStartValues()
	return inst, nil
}

// Clone instantiates a fresh, unclaimed instance of the same model.
func (i *Instance) Clone() (*Instance, error) {
	return Instantiate(i.model, i.opts...)
}

func (i *Instance) Description() *ModelDescription { return i.desc }

func (i *Instance) loadStartValues() {
	for _, v := range i.desc.Variables {
		i.values[v.Reference] = v.Start
	}
	i.t = i.tStart
	i.steps = 0
}

// Claim marks the instance as exclusively owned by owner. A second owner
// gets ErrInstanceInUse until Release.
func (i *Instance) Claim(owner string) error {
	i.ownerMu.Lock()
	defer i.ownerMu.Unlock()
	if i.owner != "" && i.owner != owner {
		return dynamo.Configf("claim", dynamo.ErrInstanceInUse, "%s is owned by %s", i.desc.ModelName, i.owner)
	}
	i.owner = owner
	return nil
}

func (i *Instance) Release(owner string) {
	i.ownerMu.Lock()
	defer i.ownerMu.Unlock()
	if i.owner == owner {
		i.owner = ""
	}
}

func (i *Instance) SetupExperiment(tStart, tStop float64) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.phase != phaseInstantiated {
		return i.lifecycleErr("SetupExperiment")
	}
	if err := (dynamo.Span{Start: tStart, Stop: tStop}).Validate(); err != nil {
		return err
	}
	i.tStart, i.tStop = tStart, tStop
	i.t = tStart
	return nil
}

func (i *Instance) EnterInitializationMode() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.phase != phaseInstantiated {
		return i.lifecycleErr("EnterInitializationMode")
	}
	i.phase = phaseInitializing
	return nil
}

func (i *Instance) ExitInitializationMode() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.phase != phaseInitializing {
		return i.lifecycleErr("ExitInitializationMode")
	}
	if mi, ok := i.model.(Initializer); ok {
		if err := mi.Initialize(i.t, i.values); err != nil {
			return dynamo.Configf("ExitInitializationMode", dynamo.ErrInvalidState, "%v", err)
		}
	}
	if err := i.evaluate(i.t, i.values); err != nil {
		return err
	}
	i.phase = phaseInitialized
	return nil
}

// Reset returns the instance to the instantiated phase with start values.
func (i *Instance) Reset() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.phase == phaseTerminated {
		return i.lifecycleErr("Reset")
	}
	i.phase = phaseInstantiated
	i.loadStartValues()
	return nil
}

func (i *Instance) Terminate() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.phase = phaseTerminated
}

func (i *Instance) Time() float64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.t
}

// Steps returns the number of completed DoStep calls since the last Reset.
func (i *Instance) Steps() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.steps
}

func (i *Instance) SetTime(t float64) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.phase == phaseTerminated {
		return i.lifecycleErr("SetTime")
	}
	i.t = t
	return nil
}

func (i *Instance) GetReal(refs []ValueReference) ([]float64, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.phase == phaseTerminated {
		return nil, i.lifecycleErr("GetReal")
	}
	if err := i.desc.check(refs); err != nil {
		return nil, err
	}
	if i.phase == phaseInitialized {
		if err := i.evaluate(i.t, i.values); err != nil {
			return nil, err
		}
	}
	out := make([]float64, len(refs))
	for k, r := range refs {
		out[k] = i.values[r]
	}
	return out, nil
}

func (i *Instance) SetReal(refs []ValueReference, values []float64) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.phase == phaseTerminated {
		return i.lifecycleErr("SetReal")
	}
	if len(refs) != len(values) {
		return dynamo.Configf("SetReal", dynamo.ErrValueReference, "%d references for %d values", len(refs), len(values))
	}
	if err := i.desc.check(refs); err != nil {
		return err
	}
	for k, r := range refs {
		i.values[r] = values[k]
	}
	return nil
}

func (i *Instance) GetContinuousStates() (dynamo.State, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.phase == phaseTerminated {
		return nil, i.lifecycleErr("GetContinuousStates")
	}
	x := make(dynamo.State, len(i.desc.States))
	for k, r := range i.desc.States {
		x[k] = i.values[r]
	}
	return x, nil
}

func (i *Instance) SetContinuousStates(x dynamo.State) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.phase == phaseTerminated {
		return i.lifecycleErr("SetContinuousStates")
	}
	if len(x) != len(i.desc.States) {
		return dynamo.Configf("SetContinuousStates", dynamo.ErrDimensionMismatch, "%d values for %d states", len(x), len(i.desc.States))
	}
	for k, r := range i.desc.States {
		i.values[r] = x[k]
	}
	return nil
}

// GetDerivatives evaluates the model at the current time and states and
// returns the state derivatives. Persistent time and states are untouched.
func (i *Instance) GetDerivatives() (dynamo.State, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.phase != phaseInitialized {
		return nil, i.lifecycleErr("GetDerivatives")
	}
	if err := i.evaluate(i.t, i.values); err != nil {
		return nil, err
	}
	dx := make(dynamo.State, len(i.desc.Derivatives))
	for k, r := range i.desc.Derivatives {
		dx[k] = i.values[r]
	}
	if !dx.IsValid() {
		return nil, &dynamo.SimulationError{Step: i.steps, Time: i.t, State: dx, Wrapped: dynamo.ErrInvalidState}
	}
	return dx, nil
}

// DoStep advances the instance by one communication step of size h,
// taking as many internal RK4 steps as the micro step requires. Inputs are
// held constant across the step.
func (i *Instance) DoStep(h float64) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.phase != phaseInitialized {
		return i.lifecycleErr("DoStep")
	}
	if !(h > 0) || math.IsInf(h, 0) {
		return dynamo.Configf("DoStep", dynamo.ErrTimeSpan, "step size must be positive, got %g", h)
	}

	x := make(dynamo.State, len(i.desc.States))
	for k, r := range i.desc.States {
		x[k] = i.values[r]
	}

	n := int(math.Ceil(h/i.microStep - 1e-9))
	if n < 1 {
		n = 1
	}
	micro := h / float64(n)
	sys := integrators.SystemFunc{Dim: len(x), Fn: i.derive}

	t := i.t
	for k := 0; k < n; k++ {
		next, err := i.integ.Step(sys, x, t, micro)
		if err != nil {
			return &dynamo.SimulationError{Step: i.steps, Time: t, State: x, Wrapped: fmt.Errorf("%w: %w", dynamo.ErrStepFailed, err)}
		}
		if !next.IsValid() {
			return &dynamo.SimulationError{Step: i.steps, Time: t + micro, State: next, Wrapped: fmt.Errorf("%w: %w", dynamo.ErrStepFailed, dynamo.ErrInvalidState)}
		}
		x = next
		t += micro
	}

	for k, r := range i.desc.States {
		i.values[r] = x[k]
	}
	i.t += h
	i.steps++
	return i.evaluate(i.t, i.values)
}

// derive evaluates the model on a scratch copy so intermediate stages never
// leak into the persistent value store.
func (i *Instance) derive(x dynamo.State, t float64) (dynamo.State, error) {
	copy(i.scratch, i.values)
	for k, r := range i.desc.States {
		i.scratch[r] = x[k]
	}
	if err := i.model.Evaluate(t, i.scratch); err != nil {
		return nil, err
	}
	dx := make(dynamo.State, len(i.desc.Derivatives))
	for k, r := range i.desc.Derivatives {
		dx[k] = i.scratch[r]
	}
	return dx, nil
}

func (i *Instance) evaluate(t float64, values []float64) error {
	if err := i.model.Evaluate(t, values); err != nil {
		return &dynamo.SimulationError{Step: i.steps, Time: t, Wrapped: fmt.Errorf("%w: %w", dynamo.ErrStepFailed, err)}
	}
	return nil
}

func (i *Instance) lifecycleErr(op string) error {
	return &dynamo.SimulationError{
		Step:    i.steps,
		Time:    i.t,
		Wrapped: fmt.Errorf("%w: %s while %s", dynamo.ErrLifecycle, op, i.phase),
	}
}
