package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/neuralfmu/internal/dynamo"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Mode != "me" {
		t.Errorf("expected mode me, got %s", cfg.Mode)
	}
	if cfg.Step <= 0 {
		t.Error("step should be positive")
	}
	if cfg.ReferenceModel() != "SpringFrictionPendulum1D" {
		t.Errorf("unexpected reference model %s", cfg.ReferenceModel())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestPresetsValidate(t *testing.T) {
	for _, name := range ListPresets() {
		if err := GetPreset(name).Validate(); err != nil {
			t.Errorf("preset %s: %v", name, err)
		}
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("simple_cs")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if cfg.Reference.StartValues["mass_s0"] != 1.3 {
		t.Errorf("expected mass_s0 1.3, got %v", cfg.Reference.StartValues)
	}
	if cfg.ReferenceModel() != "SpringPendulumExtForce1D" {
		t.Errorf("reference should default to the trained model, got %s", cfg.ReferenceModel())
	}

	cfg.Reference.StartValues["mass_s0"] = 9
	cfg.Network.Layers[0].Width = 1
	again := GetPreset("simple_cs")
	if again.Reference.StartValues["mass_s0"] != 1.3 || again.Network.Layers[0].Width != 16 {
		t.Error("modifying a preset copy changed the preset")
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	if cfg := GetPreset("nonexistent"); cfg != nil {
		t.Error("expected nil for nonexistent preset")
	}
}

func TestListPresets(t *testing.T) {
	got := ListPresets()
	want := []string{"advanced_me", "simple_cs", "simple_me"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("preset %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "experiment.yaml")
	data := `
mode: cs
model: SpringPendulumExtForce1D
step: 0.05
reference:
  model: SpringPendulumExtForce1D
  start_values:
    mass_s0: 1.3
    mass.m: 2
  record: [mass.s, mass.a]
network:
  layers:
    - width: 8
      activation: relu
training:
  iterations: 25
  target: [mass.a]
  output: [1]
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Mode != "cs" || cfg.Step != 0.05 {
		t.Errorf("file values not applied: mode=%s step=%v", cfg.Mode, cfg.Step)
	}
	if cfg.Stop != DefaultStop {
		t.Errorf("missing keys should keep defaults, stop=%v", cfg.Stop)
	}
	if cfg.Reference.StartValues["mass_s0"] != 1.3 || cfg.Reference.StartValues["mass.m"] != 2 {
		t.Errorf("unexpected start values %v", cfg.Reference.StartValues)
	}
	if len(cfg.Network.Layers) != 1 || cfg.Network.Layers[0] != (Layer{Width: 8, Activation: "relu"}) {
		t.Errorf("unexpected layers %v", cfg.Network.Layers)
	}
	if cfg.Training.Iterations != 25 || cfg.Training.Optimizer != "adam" {
		t.Errorf("unexpected training config %+v", cfg.Training)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("loaded config should validate: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("NEURALFMU_TRAINING_ITERATIONS", "42")
	t.Setenv("NEURALFMU_NETWORK_LAYERS", "8:relu,4")
	t.Setenv("NEURALFMU_SOLVER", "rk4")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Training.Iterations != 42 {
		t.Errorf("expected 42 iterations, got %d", cfg.Training.Iterations)
	}
	if cfg.Solver != "rk4" {
		t.Errorf("expected solver rk4, got %s", cfg.Solver)
	}
	want := []Layer{{Width: 8, Activation: "relu"}, {Width: 4}}
	if len(cfg.Network.Layers) != len(want) {
		t.Fatalf("expected layers %v, got %v", want, cfg.Network.Layers)
	}
	for i := range want {
		if cfg.Network.Layers[i] != want[i] {
			t.Errorf("layer %d: expected %v, got %v", i, want[i], cfg.Network.Layers[i])
		}
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "advanced.yaml")
	if err := Save(path, GetPreset("advanced_me")); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Name != "advanced_me" || cfg.Step != 0.1 {
		t.Errorf("unexpected config %+v", cfg)
	}
	if len(cfg.Probe) != 1 || cfg.Probe[0] != "mass.m" {
		t.Errorf("expected probe [mass.m], got %v", cfg.Probe)
	}
}

func TestParseLayer(t *testing.T) {
	l, err := ParseLayer(" 16:tanh ")
	if err != nil || l != (Layer{Width: 16, Activation: "tanh"}) {
		t.Errorf("got %v, %v", l, err)
	}
	if _, err := ParseLayer("wide:tanh"); err == nil {
		t.Error("expected error for non-numeric width")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"mode", func(c *Config) { c.Mode = "hybrid" }, dynamo.ErrInvalidConfig},
		{"model", func(c *Config) { c.Model = "Pendulum3D" }, dynamo.ErrInvalidConfig},
		{"span", func(c *Config) { c.Stop = c.Start }, dynamo.ErrTimeSpan},
		{"step", func(c *Config) { c.Step = 0 }, dynamo.ErrInvalidConfig},
		{"width", func(c *Config) { c.Network.Layers[0].Width = 0 }, dynamo.ErrInvalidConfig},
		{"activation", func(c *Config) { c.Network.Layers[1].Activation = "swish" }, dynamo.ErrInvalidConfig},
		{"init", func(c *Config) { c.Network.Init = "random" }, dynamo.ErrInvalidConfig},
		{"interpolation", func(c *Config) { c.Training.Interpolation = "cubic" }, dynamo.ErrInvalidConfig},
		{"targets", func(c *Config) { c.Training.Output = []int{0, 1} }, dynamo.ErrInvalidConfig},
		{"unrecorded", func(c *Config) { c.Training.Target = []string{"mass.m"} }, dynamo.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !dynamo.IsConfiguration(err) || !errors.Is(err, tt.want) {
				t.Errorf("expected configuration error %v, got %v", tt.want, err)
			}
		})
	}
}
