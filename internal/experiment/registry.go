package experiment

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/san-kum/neuralfmu/internal/fmu"
	"github.com/san-kum/neuralfmu/internal/integrators"
	"github.com/san-kum/neuralfmu/internal/models"
	"github.com/san-kum/neuralfmu/internal/nn"
	"github.com/san-kum/neuralfmu/internal/train"
)

// Registry resolves the names used in experiment configurations.
type Registry struct {
	models       map[string]func() (fmu.Model, error)
	solvers      map[string]func() integrators.Integrator
	optimizers   map[string]func(lr float64) (train.Optimizer, error)
	initializers map[string]func(seed int64) nn.Initializer
}

func NewRegistry() *Registry {
	r := &Registry{
		models:       make(map[string]func() (fmu.Model, error)),
		solvers:      make(map[string]func() integrators.Integrator),
		optimizers:   make(map[string]func(float64) (train.Optimizer, error)),
		initializers: make(map[string]func(int64) nn.Initializer),
	}

	for _, name := range models.Names() {
		r.models[name] = func() (fmu.Model, error) { return models.Lookup(name) }
	}

	r.solvers["euler"] = func() integrators.Integrator { return integrators.NewEuler() }
	r.solvers["rk4"] = func() integrators.Integrator { return integrators.NewRK4() }
	r.solvers["rk45"] = func() integrators.Integrator { return integrators.NewRK45() }

	for _, name := range []string{"adam", "descent"} {
		r.optimizers[name] = func(lr float64) (train.Optimizer, error) { return train.NewOptimizer(name, lr) }
	}

	r.initializers["glorot"] = func(seed int64) nn.Initializer { return nn.Glorot(rand.New(rand.NewSource(seed))) }
	r.initializers["zeros"] = func(int64) nn.Initializer { return nn.Zeros }
	r.initializers["eye"] = func(int64) nn.Initializer { return nn.Eye }

	return r
}

// RegisterModel adds or replaces a model constructor.
func (r *Registry) RegisterModel(name string, ctor func() fmu.Model) {
	r.models[name] = func() (fmu.Model, error) { return ctor(), nil }
}

func (r *Registry) GetModel(name string) (fmu.Model, error) {
	fn, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("unknown model: %s", name)
	}
	return fn()
}

// GetSolver resolves a model exchange solver. The empty name is rk45.
func (r *Registry) GetSolver(name string) (integrators.Integrator, error) {
	if name == "" {
		name = "rk45"
	}
	fn, ok := r.solvers[name]
	if !ok {
		return nil, fmt.Errorf("unknown solver: %s", name)
	}
	return fn(), nil
}

// GetOptimizer resolves an optimizer. The empty name is adam.
func (r *Registry) GetOptimizer(name string, lr float64) (train.Optimizer, error) {
	if name == "" {
		name = "adam"
	}
	fn, ok := r.optimizers[name]
	if !ok {
		return nil, fmt.Errorf("unknown optimizer: %s", name)
	}
	return fn(lr)
}

func (r *Registry) GetInitializer(name string, seed int64) (nn.Initializer, error) {
	fn, ok := r.initializers[name]
	if !ok {
		return nil, fmt.Errorf("unknown initializer: %s", name)
	}
	return fn(seed), nil
}

func (r *Registry) ListModels() []string      { return sortedKeys(r.models) }
func (r *Registry) ListSolvers() []string     { return sortedKeys(r.solvers) }
func (r *Registry) ListOptimizers() []string  { return sortedKeys(r.optimizers) }
func (r *Registry) ListActivations() []string { return nn.ActivationNames() }

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
