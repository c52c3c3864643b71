package nn

import (
	"fmt"
	"math"
	"sort"
)

type Activation struct {
	Name string
	F    func(float64) float64
}

var (
	Identity = Activation{Name: "identity", F: func(x float64) float64 { return x }}
	Tanh     = Activation{Name: "tanh", F: math.Tanh}
	ReLU     = Activation{Name: "relu", F: func(x float64) float64 { return math.Max(0, x) }}
	Sigmoid  = Activation{Name: "sigmoid", F: func(x float64) float64 { return 1 / (1 + math.Exp(-x)) }}
)

var activations = map[string]Activation{
	Identity.Name: Identity,
	Tanh.Name:     Tanh,
	ReLU.Name:     ReLU,
	Sigmoid.Name:  Sigmoid,
}

// ActivationByName resolves a configured activation. The empty name is
// the identity.
func ActivationByName(name string) (Activation, error) {
	if name == "" {
		return Identity, nil
	}
	a, ok := activations[name]
	if !ok {
		return Activation{}, fmt.Errorf("nn: unknown activation %q (have %v)", name, ActivationNames())
	}
	return a, nil
}

func ActivationNames() []string {
	names := make([]string, 0, len(activations))
	for n := range activations {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
