package models

import (
	"math"

	"github.com/san-kum/neuralfmu/internal/fmu"
)

const (
	DefaultMass      = 1.0
	DefaultStiffness = 10.0
	DefaultRestLen   = 1.0
	DefaultDamping   = 0.5
	DefaultCoulomb   = 0.5
	DefaultStartPos  = 0.5

	// frictionVelocity smooths the Coulomb sign function around v = 0.
	frictionVelocity = 0.01
)

// Value references shared by all spring pendulum variants. Friction and
// external force variables exist in every variant and stay zero when the
// variant does not use them, so references are stable across models.
const (
	RefPosition fmu.ValueReference = iota
	RefVelocity
	RefDerPosition
	RefDerVelocity
	RefMass
	RefStiffness
	RefRestLength
	RefStartPosition
	RefDamping
	RefCoulomb
	RefExtForce
	RefAcceleration
	RefSpringForce
	RefFrictionForce
)

// SpringPendulum is a mass on a spring moving in one dimension, optionally
// with viscous plus smoothed Coulomb friction and an external force input.
type SpringPendulum struct {
	name     string
	friction bool
	extForce bool
	desc     *fmu.ModelDescription
}

// NewSpringPendulum1D is the frictionless oscillator.
func NewSpringPendulum1D() *SpringPendulum {
	return newSpringPendulum("SpringPendulum1D", false, false)
}

// NewSpringFrictionPendulum1D adds viscous and Coulomb friction.
func NewSpringFrictionPendulum1D() *SpringPendulum {
	return newSpringPendulum("SpringFrictionPendulum1D", true, false)
}

// NewSpringPendulumExtForce1D exposes an external force input and position
// and acceleration outputs, the shape co-simulation training expects.
func NewSpringPendulumExtForce1D() *SpringPendulum {
	return newSpringPendulum("SpringPendulumExtForce1D", false, true)
}

func newSpringPendulum(name string, friction, extForce bool) *SpringPendulum {
	damping, coulomb := 0.0, 0.0
	if friction {
		damping, coulomb = DefaultDamping, DefaultCoulomb
	}
	extCausality := fmu.Parameter
	if extForce {
		extCausality = fmu.Input
	}

	vars := []fmu.Variable{
		{Name: "mass.s", Causality: fmu.StateVariable, Start: DefaultStartPos, Description: "position"},
		{Name: "mass.v", Causality: fmu.StateVariable, Description: "velocity"},
		{Name: "der(mass.s)", Causality: fmu.Derivative},
		{Name: "der(mass.v)", Causality: fmu.Derivative},
		{Name: "mass.m", Causality: fmu.Parameter, Start: DefaultMass},
		{Name: "spring.c", Causality: fmu.Parameter, Start: DefaultStiffness},
		{Name: "spring.s_rel0", Causality: fmu.Parameter, Start: DefaultRestLen},
		{Name: "mass_s0", Causality: fmu.Parameter, Start: DefaultStartPos, Description: "initial position"},
		{Name: "damper.d", Causality: fmu.Parameter, Start: damping},
		{Name: "friction.fc", Causality: fmu.Parameter, Start: coulomb},
		{Name: "extForce", Causality: extCausality},
		{Name: "mass.a", Causality: fmu.Output, Description: "acceleration"},
		{Name: "mass.f", Causality: fmu.Local, Description: "spring force"},
		{Name: "friction.f", Causality: fmu.Local, Description: "friction force"},
	}
	for i := range vars {
		vars[i].Reference = fmu.ValueReference(i)
	}

	desc := &fmu.ModelDescription{
		ModelName:   name,
		Variables:   vars,
		States:      []fmu.ValueReference{RefPosition, RefVelocity},
		Derivatives: []fmu.ValueReference{RefDerPosition, RefDerVelocity},
	}
	if extForce {
		desc.Inputs = []fmu.ValueReference{RefExtForce}
		desc.Outputs = []fmu.ValueReference{RefPosition, RefAcceleration}
	} else {
		desc.Outputs = []fmu.ValueReference{RefPosition, RefVelocity, RefAcceleration}
	}

	return &SpringPendulum{name: name, friction: friction, extForce: extForce, desc: desc}
}

func (p *SpringPendulum) Description() *fmu.ModelDescription { return p.desc }

func (p *SpringPendulum) Initialize(t float64, v []float64) error {
	v[RefPosition] = v[RefStartPosition]
	return nil
}

func (p *SpringPendulum) Evaluate(t float64, v []float64) error {
	s, vel := v[RefPosition], v[RefVelocity]
	m := v[RefMass]
	if m <= 0 {
		return errNonPositiveMass
	}

	spring := -v[RefStiffness] * (s - v[RefRestLength])

	var friction float64
	if p.friction {
		friction = -v[RefDamping]*vel - v[RefCoulomb]*math.Tanh(vel/frictionVelocity)
	}

	var ext float64
	if p.extForce {
		ext = v[RefExtForce]
	}

	acc := (spring + friction + ext) / m

	v[RefDerPosition] = vel
	v[RefDerVelocity] = acc
	v[RefAcceleration] = acc
	v[RefSpringForce] = spring
	v[RefFrictionForce] = friction
	return nil
}
