package models

import (
	"fmt"
	"sort"

	"github.com/san-kum/neuralfmu/internal/fmu"
)

var builtin = map[string]func() *SpringPendulum{
	"SpringPendulum1D":         NewSpringPendulum1D,
	"SpringFrictionPendulum1D": NewSpringFrictionPendulum1D,
	"SpringPendulumExtForce1D": NewSpringPendulumExtForce1D,
}

// Lookup returns a new instance of the named built-in model.
func Lookup(name string) (fmu.Model, error) {
	ctor, ok := builtin[name]
	if !ok {
		return nil, fmt.Errorf("models: unknown model %q (have %v)", name, Names())
	}
	return ctor(), nil
}

func Names() []string {
	names := make([]string, 0, len(builtin))
	for n := range builtin {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
