package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/neuralfmu/internal/dynamo"
	"github.com/san-kum/neuralfmu/internal/loss"
	"github.com/san-kum/neuralfmu/internal/models"
	"github.com/san-kum/neuralfmu/internal/nn"
)

const (
	DefaultStart        = 0.0
	DefaultStop         = 5.0
	DefaultStep         = 0.01
	DefaultTolerance    = 1e-6
	DefaultIterations   = 300
	DefaultCallback     = 10
	DefaultLearningRate = 1e-3
	DefaultWidth        = 16

	// EnvPrefix prefixes environment overrides, e.g. NEURALFMU_TRAINING_ITERATIONS.
	EnvPrefix = "NEURALFMU"

	// keyDelimiter replaces viper's "." so variable names such as
	// "mass.s" survive as map keys.
	keyDelimiter = "::"
)

type Config struct {
	Name  string `yaml:"name" mapstructure:"name"`
	Mode  string `yaml:"mode" mapstructure:"mode"`
	Model string `yaml:"model" mapstructure:"model"`
	// Solver drives model exchange runs. Co-simulation ignores it.
	Solver    string  `yaml:"solver" mapstructure:"solver"`
	Start     float64 `yaml:"start" mapstructure:"start"`
	Stop      float64 `yaml:"stop" mapstructure:"stop"`
	Step      float64 `yaml:"step" mapstructure:"step"`
	Tolerance float64 `yaml:"tolerance" mapstructure:"tolerance"`
	Seed      int64   `yaml:"seed" mapstructure:"seed"`
	Output    string  `yaml:"output" mapstructure:"output"`

	StartValues map[string]float64 `yaml:"start_values,omitempty" mapstructure:"start_values"`
	// Probe lists extra variables the simulator stage reads after each
	// evaluation and feeds to the network.
	Probe []string `yaml:"probe,omitempty" mapstructure:"probe"`

	Reference ReferenceConfig `yaml:"reference" mapstructure:"reference"`
	Network   NetworkConfig   `yaml:"network" mapstructure:"network"`
	Training  TrainingConfig  `yaml:"training" mapstructure:"training"`
}

// ReferenceConfig describes the run that produces the training data.
type ReferenceConfig struct {
	// Model defaults to the trained model when empty.
	Model       string             `yaml:"model,omitempty" mapstructure:"model"`
	StartValues map[string]float64 `yaml:"start_values,omitempty" mapstructure:"start_values"`
	Record      []string           `yaml:"record" mapstructure:"record"`
}

type Layer struct {
	Width      int    `yaml:"width" mapstructure:"width"`
	Activation string `yaml:"activation" mapstructure:"activation"`
}

func (l Layer) String() string { return fmt.Sprintf("%d:%s", l.Width, l.Activation) }

// NetworkConfig lists the hidden layers after the simulator stage. A
// linear output layer back to the state count is always appended.
type NetworkConfig struct {
	Layers []Layer `yaml:"layers" mapstructure:"layers"`
	Init   string  `yaml:"init" mapstructure:"init"`
}

type TrainingConfig struct {
	Iterations    int     `yaml:"iterations" mapstructure:"iterations"`
	CallbackEvery int     `yaml:"callback_every" mapstructure:"callback_every"`
	Optimizer     string  `yaml:"optimizer" mapstructure:"optimizer"`
	LearningRate  float64 `yaml:"learning_rate" mapstructure:"learning_rate"`
	GradientStep  float64 `yaml:"gradient_step" mapstructure:"gradient_step"`
	Interpolation string  `yaml:"interpolation" mapstructure:"interpolation"`
	// Target names the recorded reference variables the loss compares and
	// Output the matching column of the hybrid model's trajectory.
	Target []string `yaml:"target" mapstructure:"target"`
	Output []int    `yaml:"output" mapstructure:"output"`
}

var initializers = []string{"glorot", "zeros", "eye"}

func DefaultConfig() *Config {
	return &Config{
		Name:      "simple_me",
		Mode:      "me",
		Model:     "SpringPendulum1D",
		Solver:    "rk45",
		Start:     DefaultStart,
		Stop:      DefaultStop,
		Step:      DefaultStep,
		Tolerance: DefaultTolerance,
		Output:    "runs",
		Reference: ReferenceConfig{
			Model:  "SpringFrictionPendulum1D",
			Record: []string{"mass.s", "mass.v", "mass.f", "mass.a"},
		},
		Network: NetworkConfig{
			Layers: []Layer{{Width: DefaultWidth, Activation: "tanh"}, {Width: DefaultWidth, Activation: "tanh"}},
			Init:   "glorot",
		},
		Training: TrainingConfig{
			Iterations:    DefaultIterations,
			CallbackEvery: DefaultCallback,
			Optimizer:     "adam",
			LearningRate:  DefaultLearningRate,
			Interpolation: "linear",
			Target:        []string{"mass.s"},
			Output:        []int{0},
		},
	}
}

// Load reads a YAML experiment file over the defaults. Every key can be
// overridden from the environment with the NEURALFMU_ prefix and nested
// keys joined by "_". An empty path loads defaults and environment only.
// Viper folds map keys to lower case, so start value names should be
// lower case too.
func Load(path string) (*Config, error) {
	v := viper.NewWithOptions(viper.KeyDelimiter(keyDelimiter))
	v.SetConfigType("yaml")

	if err := setDefaults(v, DefaultConfig()); err != nil {
		return nil, err
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(keyDelimiter, "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToSliceHookFunc(","),
			stringToLayerHookFunc(),
		),
		WeaklyTypedInput: true,
		Result:           &cfg,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers every leaf of cfg as a viper default so the
// environment can override keys the file does not mention.
func setDefaults(v *viper.Viper, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return err
	}
	flatten("", tree, v.SetDefault)
	return nil
}

func flatten(prefix string, tree map[string]any, set func(string, any)) {
	for k, val := range tree {
		key := k
		if prefix != "" {
			key = prefix + keyDelimiter + k
		}
		if sub, ok := val.(map[string]any); ok {
			flatten(key, sub, set)
			continue
		}
		set(key, val)
	}
}

// stringToLayerHookFunc accepts "16:tanh" shorthand for a layer, which is
// what NEURALFMU_NETWORK_LAYERS="16:tanh,16:tanh" decodes to.
func stringToLayerHookFunc() mapstructure.DecodeHookFunc {
	return func(f, t reflect.Type, data interface{}) (interface{}, error) {
		if t != reflect.TypeOf(Layer{}) || f.Kind() != reflect.String {
			return data, nil
		}
		return ParseLayer(data.(string))
	}
}

// ParseLayer reads "width" or "width:activation".
func ParseLayer(s string) (Layer, error) {
	width, act, _ := strings.Cut(strings.TrimSpace(s), ":")
	n, err := strconv.Atoi(width)
	if err != nil {
		return Layer{}, fmt.Errorf("layer %q: width: %w", s, err)
	}
	return Layer{Width: n, Activation: act}, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ReferenceModel is the model that generates training data.
func (c *Config) ReferenceModel() string {
	if c.Reference.Model != "" {
		return c.Reference.Model
	}
	return c.Model
}

func (c *Config) Span() dynamo.Span { return dynamo.Span{Start: c.Start, Stop: c.Stop} }

// SaveAt is the sampling grid start, start+step, ..., stop.
func (c *Config) SaveAt() []float64 { return dynamo.Range(c.Start, c.Step, c.Stop) }

// Validate reports every problem it finds as configuration errors joined
// together.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, dynamo.Configf("config", dynamo.ErrInvalidConfig, format, args...))
	}

	if c.Mode != "me" && c.Mode != "cs" {
		bad("mode must be me or cs, got %q", c.Mode)
	}
	for _, name := range []string{c.Model, c.ReferenceModel()} {
		if _, err := models.Lookup(name); err != nil {
			bad("%v", err)
		}
	}
	if err := c.Span().Validate(); err != nil {
		errs = append(errs, err)
	}
	if !(c.Step > 0) {
		bad("step must be positive, got %g", c.Step)
	}
	if c.Tolerance < 0 {
		bad("tolerance must not be negative, got %g", c.Tolerance)
	}
	if len(c.Reference.Record) == 0 {
		bad("reference records no variables")
	}

	for i, l := range c.Network.Layers {
		if l.Width <= 0 {
			bad("layer %d has width %d", i, l.Width)
		}
		if _, err := nn.ActivationByName(l.Activation); err != nil {
			bad("layer %d: %v", i, err)
		}
	}
	if !contains(initializers, c.Network.Init) {
		bad("unknown initializer %q (have %v)", c.Network.Init, initializers)
	}

	t := c.Training
	if t.Iterations < 0 || t.CallbackEvery < 0 {
		bad("iterations and callback_every must not be negative")
	}
	if t.LearningRate < 0 || t.GradientStep < 0 {
		bad("learning_rate and gradient_step must not be negative")
	}
	if _, err := loss.ParseInterpolation(t.Interpolation); err != nil {
		bad("%v", err)
	}
	if len(t.Target) == 0 || len(t.Target) != len(t.Output) {
		bad("training compares %d targets with %d outputs", len(t.Target), len(t.Output))
	}
	for _, name := range t.Target {
		if !contains(c.Reference.Record, name) {
			bad("target %q is not recorded by the reference", name)
		}
	}
	return errors.Join(errs...)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
