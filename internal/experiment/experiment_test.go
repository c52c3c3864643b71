package experiment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync/atomic"
	"testing"

	"github.com/san-kum/neuralfmu/internal/config"
	"github.com/san-kum/neuralfmu/internal/dynamo"
	"github.com/san-kum/neuralfmu/internal/integrators"
	"github.com/san-kum/neuralfmu/internal/train"
)

func quiet() Option {
	return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// small shrinks a preset so a few training iterations stay fast.
func small(t *testing.T, preset string) *config.Config {
	t.Helper()
	cfg := config.GetPreset(preset)
	if cfg == nil {
		t.Fatalf("missing preset %s", preset)
	}
	cfg.Stop = 1
	cfg.Step = 0.1
	cfg.Solver = "rk4"
	cfg.Network.Layers = []config.Layer{{Width: 4, Activation: "tanh"}}
	cfg.Training.Iterations = 4
	cfg.Training.CallbackEvery = 2
	cfg.Training.LearningRate = 1e-2
	return cfg
}

func TestRunnerModelExchange(t *testing.T) {
	cfg := small(t, "simple_me")
	r := NewRunner(cfg, quiet())
	if err := r.Setup(context.Background()); err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	defer r.Close()

	if r.Reference().Len() != 11 || r.Reference().Dim() != 4 {
		t.Errorf("expected 11 reference samples of 4 variables, got %d x %d", r.Reference().Len(), r.Reference().Dim())
	}
	if r.Before().Len() != 11 || r.Before().Dim() != 2 {
		t.Errorf("expected 11 hybrid samples of 2 states, got %d x %d", r.Before().Len(), r.Before().Dim())
	}
	if r.Before().Value(0)[0] != r.Reference().Value(0)[0] {
		t.Error("hybrid model should start from the reference states")
	}

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res.State.Phase != train.Converged || res.State.Iteration != 4 {
		t.Errorf("unexpected final state %+v", res.State)
	}
	if len(res.History) != 4 {
		t.Errorf("expected 4 loss values, got %d", len(res.History))
	}
	if res.After.Len() != 11 {
		t.Errorf("expected a trained trajectory, got %d samples", res.After.Len())
	}
	if res.Stats.Runs == 0 || res.Stats.Solver.Steps == 0 {
		t.Errorf("missing diagnostics %+v", res.Stats)
	}

	run := res.StorageRun()
	if run.Meta.Solver != "rk4" || run.Meta.Phase != "converged" || len(run.Meta.Params) != res.NumParams {
		t.Errorf("unexpected metadata %+v", run.Meta)
	}
	if run.Meta.FinalLoss == nil || *run.Meta.FinalLoss != res.State.Loss {
		t.Errorf("expected final loss %v, got %v", res.State.Loss, run.Meta.FinalLoss)
	}
	if len(run.Trajectories) != 4 {
		t.Errorf("expected reference, baseline, before and after, got %d trajectories", len(run.Trajectories))
	}
}

func TestRunnerCoSimulation(t *testing.T) {
	cfg := small(t, "simple_cs")
	r := NewRunner(cfg, quiet())
	if err := r.Setup(context.Background()); err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	defer r.Close()

	s, err := r.Reference().Index("mass.s")
	if err != nil {
		t.Fatal(err)
	}
	if got := r.Reference().Value(0)[s]; got != 1.3 {
		t.Errorf("reference should start at mass_s0 = 1.3, got %v", got)
	}
	if got := r.Baseline().Value(0)[s]; got != 0.5 {
		t.Errorf("baseline should start at the default position, got %v", got)
	}

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	for _, l := range res.History {
		if math.IsNaN(l) || math.IsInf(l, 0) {
			t.Fatalf("non-finite loss in history %v", res.History)
		}
	}
	if res.Stats.AdapterCalls == 0 {
		t.Error("expected simulator steps to be counted")
	}
}

func TestZeroNetworkEmitsZeros(t *testing.T) {
	cfg := small(t, "simple_cs")
	cfg.Network.Init = "zeros"
	r := NewRunner(cfg, quiet())
	if err := r.Setup(context.Background()); err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	defer r.Close()

	before := r.Before()
	for i := 0; i < before.Len(); i++ {
		for _, v := range before.Value(i) {
			if v != 0 {
				t.Fatalf("sample %d = %v, want zeros", i, before.Value(i))
			}
		}
	}
}

func TestRunnerProbe(t *testing.T) {
	cfg := small(t, "advanced_me")
	cfg.Step = 0.1
	cfg.Training.Iterations = 1
	r := NewRunner(cfg, quiet())
	if err := r.Setup(context.Background()); err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	defer r.Close()

	// states plus mass.m feed a 4-wide layer, which maps back to 2 states
	if want := (3*4 + 4) + (4*2 + 2); r.Hybrid().NumParams() != want {
		t.Errorf("expected %d parameters, got %d", want, r.Hybrid().NumParams())
	}
}

func TestRunnerCallbacks(t *testing.T) {
	var calls atomic.Int32
	cb := train.CallbackFunc(func(s train.State) error {
		calls.Add(1)
		return nil
	})
	r := NewRunner(small(t, "simple_me"), quiet(), WithCallback(cb))
	if err := r.Setup(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if _, err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 callbacks for 4 iterations every 2, got %d", calls.Load())
	}
}

func TestRunnerConfigurationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"invalid config", func(c *config.Config) { c.Mode = "both" }},
		{"output column", func(c *config.Config) { c.Training.Output = []int{5} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := small(t, "simple_me")
			tt.mutate(cfg)
			r := NewRunner(cfg, quiet())
			err := r.Setup(context.Background())
			if !dynamo.IsConfiguration(err) {
				t.Errorf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestBuildHybridTerminatesOnFailure(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"initializer", func(c *config.Config) { c.Network.Init = "nope" }},
		{"activation", func(c *config.Config) { c.Network.Layers[0].Activation = "nope" }},
		{"solver", func(c *config.Config) { c.Solver = "nope" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := small(t, "simple_me")
			tt.mutate(cfg)
			r := NewRunner(cfg, quiet())
			if err := r.buildHybrid(); err == nil {
				t.Fatal("expected build failure")
			}
			if r.inst == nil {
				t.Fatal("instance was never created")
			}
			if err := r.inst.Reset(); !errors.Is(err, dynamo.ErrLifecycle) {
				t.Errorf("expected terminated instance, got %v", err)
			}
		})
	}
}

func TestRunnerCloseTerminates(t *testing.T) {
	r := NewRunner(small(t, "simple_me"), quiet())
	if err := r.Setup(context.Background()); err != nil {
		t.Fatal(err)
	}
	r.Close()
	if err := r.inst.Reset(); !errors.Is(err, dynamo.ErrLifecycle) {
		t.Errorf("expected terminated instance after Close, got %v", err)
	}
}

func TestRunBeforeSetup(t *testing.T) {
	if _, err := NewRunner(config.DefaultConfig()).Run(context.Background()); err == nil {
		t.Error("expected error when running before setup")
	}
}

func TestSweep(t *testing.T) {
	cfg := small(t, "simple_me")
	cfg.Training.Iterations = 2
	results, err := Sweep(context.Background(), cfg, 2, quiet())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for i, res := range results {
		if res.Config.Seed != cfg.Seed+int64(i) {
			t.Errorf("member %d has seed %d", i, res.Config.Seed)
		}
		if res.State.Phase != train.Converged {
			t.Errorf("member %d ended in %v", i, res.State.Phase)
		}
	}
	if results[0].State.Params[0] == results[1].State.Params[0] {
		t.Error("members with different seeds should start from different weights")
	}
}

func TestSweepRejectsEmpty(t *testing.T) {
	_, err := Sweep(context.Background(), config.DefaultConfig(), 0)
	if !errors.Is(err, dynamo.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()

	if got := reg.ListSolvers(); len(got) != 3 || got[0] != "euler" {
		t.Errorf("unexpected solvers %v", got)
	}
	if got := reg.ListModels(); len(got) != 3 {
		t.Errorf("expected 3 models, got %v", got)
	}
	if got := reg.ListOptimizers(); len(got) != 2 {
		t.Errorf("expected 2 optimizers, got %v", got)
	}

	solver, err := reg.GetSolver("")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := solver.(integrators.AdaptiveIntegrator); !ok {
		t.Errorf("default solver should be adaptive, got %T", solver)
	}

	for _, fn := range []func() error{
		func() error { _, err := reg.GetModel("Pendulum3D"); return err },
		func() error { _, err := reg.GetSolver("verlet"); return err },
		func() error { _, err := reg.GetOptimizer("lbfgs", 0.1); return err },
		func() error { _, err := reg.GetInitializer("random", 1); return err },
	} {
		if fn() == nil {
			t.Error("expected error for unknown name")
		}
	}
}
