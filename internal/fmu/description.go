package fmu

import (
	"fmt"

	"github.com/san-kum/neuralfmu/internal/dynamo"
)

// ValueReference identifies a real variable of a model. References are
// dense: the variable with reference i lives at index i of the value store.
type ValueReference uint32

type Causality int

const (
	Parameter Causality = iota
	Input
	Output
	Local
	StateVariable
	Derivative
)

var causalityNames = [...]string{"parameter", "input", "output", "local", "state", "derivative"}

func (c Causality) String() string {
	if int(c) < len(causalityNames) {
		return causalityNames[c]
	}
	return fmt.Sprintf("causality(%d)", int(c))
}

type Variable struct {
	Name        string
	Reference   ValueReference
	Causality   Causality
	Start       float64
	Description string
}

type ModelDescription struct {
	ModelName   string
	Variables   []Variable
	States      []ValueReference
	Derivatives []ValueReference
	Inputs      []ValueReference
	Outputs     []ValueReference
}

// Validate checks that references are dense and that the state and
// derivative lists pair up.
func (md *ModelDescription) Validate() error {
	for i, v := range md.Variables {
		if int(v.Reference) != i {
			return dynamo.Configf("model description", dynamo.ErrValueReference, "variable %q has reference %d at index %d", v.Name, v.Reference, i)
		}
	}
	if len(md.States) != len(md.Derivatives) {
		return dynamo.Configf("model description", dynamo.ErrDimensionMismatch, "%d states but %d derivatives", len(md.States), len(md.Derivatives))
	}
	for _, list := range [][]ValueReference{md.States, md.Derivatives, md.Inputs, md.Outputs} {
		if err := md.check(list); err != nil {
			return err
		}
	}
	return nil
}

func (md *ModelDescription) NumStates() int { return len(md.States) }

// ValueReference resolves a variable name.
func (md *ModelDescription) ValueReference(name string) (ValueReference, error) {
	for _, v := range md.Variables {
		if v.Name == name {
			return v.Reference, nil
		}
	}
	return 0, dynamo.Configf("value reference", dynamo.ErrValueReference, "model %s has no variable %q", md.ModelName, name)
}

// ValueReferences resolves several names in order.
func (md *ModelDescription) ValueReferences(names ...string) ([]ValueReference, error) {
	refs := make([]ValueReference, len(names))
	for i, n := range names {
		ref, err := md.ValueReference(n)
		if err != nil {
			return nil, err
		}
		refs[i] = ref
	}
	return refs, nil
}

// Names maps references back to variable names.
func (md *ModelDescription) Names(refs []ValueReference) ([]string, error) {
	if err := md.check(refs); err != nil {
		return nil, err
	}
	names := make([]string, len(refs))
	for i, r := range refs {
		names[i] = md.Variables[r].Name
	}
	return names, nil
}

func (md *ModelDescription) check(refs []ValueReference) error {
	for _, r := range refs {
		if int(r) >= len(md.Variables) {
			return dynamo.Configf("value reference", dynamo.ErrValueReference, "reference %d out of range for model %s (%d variables)", r, md.ModelName, len(md.Variables))
		}
	}
	return nil
}

// Model is the equation contract of an FMU. Evaluate reads states, inputs
// and parameters from values and writes derivatives, outputs and locals
// back into it. It must not retain values.
type Model interface {
	Description() *ModelDescription
	Evaluate(t float64, values []float64) error
}

// Initializer is implemented by models that derive start states from
// parameters when initialization mode is left.
type Initializer interface {
	Initialize(t float64, values []float64) error
}
