package config

import "sort"

var Presets = map[string]*Config{
	// Co-simulation: a network corrects the outputs of a pendulum whose
	// reference run starts from mass_s0 = 1.3.
	"simple_cs": {
		Name: "simple_cs", Mode: "cs", Model: "SpringPendulumExtForce1D",
		Start: 0, Stop: 5, Step: 0.01, Output: "runs",
		Reference: ReferenceConfig{
			StartValues: map[string]float64{"mass_s0": 1.3},
			Record:      []string{"mass.s", "mass.v", "mass.a"},
		},
		Network: NetworkConfig{Layers: []Layer{{16, "tanh"}, {16, "tanh"}}, Init: "glorot"},
		Training: TrainingConfig{
			Iterations: 300, CallbackEvery: 10, Optimizer: "adam", LearningRate: 1e-3,
			Interpolation: "linear", Target: []string{"mass.a"}, Output: []int{1},
		},
	},
	// Model exchange: learn the friction a frictionless pendulum lacks.
	"simple_me": {
		Name: "simple_me", Mode: "me", Model: "SpringPendulum1D", Solver: "rk45",
		Start: 0, Stop: 5, Step: 0.01, Tolerance: 1e-6, Output: "runs",
		Reference: ReferenceConfig{
			Model:  "SpringFrictionPendulum1D",
			Record: []string{"mass.s", "mass.v", "mass.f", "mass.a"},
		},
		Network: NetworkConfig{Layers: []Layer{{16, "tanh"}, {16, "tanh"}}, Init: "glorot"},
		Training: TrainingConfig{
			Iterations: 1000, CallbackEvery: 10, Optimizer: "adam", LearningRate: 1e-3,
			Interpolation: "linear", Target: []string{"mass.s"}, Output: []int{0},
		},
	},
	// As simple_me with a coarser grid and the mass fed to the network.
	"advanced_me": {
		Name: "advanced_me", Mode: "me", Model: "SpringPendulum1D", Solver: "rk45",
		Start: 0, Stop: 5, Step: 0.1, Tolerance: 1e-6, Output: "runs",
		Probe: []string{"mass.m"},
		Reference: ReferenceConfig{
			Model:  "SpringFrictionPendulum1D",
			Record: []string{"mass.s", "mass.v", "mass.f", "mass.a"},
		},
		Network: NetworkConfig{Layers: []Layer{{16, "tanh"}, {16, "tanh"}}, Init: "glorot"},
		Training: TrainingConfig{
			Iterations: 1000, CallbackEvery: 10, Optimizer: "adam", LearningRate: 1e-3,
			Interpolation: "linear", Target: []string{"mass.s"}, Output: []int{0},
		},
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone copies c including its maps and slices.
func (c *Config) Clone() *Config {
	out := *c
	out.StartValues = cloneMap(c.StartValues)
	out.Probe = append([]string(nil), c.Probe...)
	out.Reference.StartValues = cloneMap(c.Reference.StartValues)
	out.Reference.Record = append([]string(nil), c.Reference.Record...)
	out.Network.Layers = append([]Layer(nil), c.Network.Layers...)
	out.Training.Target = append([]string(nil), c.Training.Target...)
	out.Training.Output = append([]int(nil), c.Training.Output...)
	return &out
}

func cloneMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
