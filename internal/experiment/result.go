package experiment

import (
	"context"
	"fmt"

	"github.com/san-kum/neuralfmu/internal/config"
	"github.com/san-kum/neuralfmu/internal/dynamo"
	"github.com/san-kum/neuralfmu/internal/neuralfmu"
	"github.com/san-kum/neuralfmu/internal/storage"
	"github.com/san-kum/neuralfmu/internal/train"
)

type Result struct {
	Config  *config.Config
	State   train.State
	History []float64

	Reference dynamo.Trajectory
	// Baseline is the trained model simulated without a network.
	Baseline dynamo.Trajectory
	Before   dynamo.Trajectory
	// After is empty unless training converged.
	After dynamo.Trajectory

	NumParams int
	Stats     neuralfmu.Stats
}

// Trajectories returns the non-empty trajectories by role.
func (r *Result) Trajectories() map[string]dynamo.Trajectory {
	out := make(map[string]dynamo.Trajectory, 4)
	for name, tr := range map[string]dynamo.Trajectory{
		"reference": r.Reference,
		"baseline":  r.Baseline,
		"before":    r.Before,
		"after":     r.After,
	} {
		if tr.Len() > 0 {
			out[name] = tr
		}
	}
	return out
}

// StorageRun converts the result for persistence.
func (r *Result) StorageRun() storage.Run {
	cfg := r.Config
	meta := storage.RunMetadata{
		Name:       cfg.Name,
		Mode:       cfg.Mode,
		Model:      cfg.Model,
		Reference:  cfg.ReferenceModel(),
		Seed:       cfg.Seed,
		Start:      cfg.Start,
		Stop:       cfg.Stop,
		Step:       cfg.Step,
		Iterations: r.State.Iteration,
		Phase:      r.State.Phase.String(),
		FinalLoss:  storage.Loss(r.State.Loss),
		BestLoss:   storage.Loss(r.State.BestLoss),
		Elapsed:    r.State.Elapsed,
		Targets:    append([]string(nil), cfg.Training.Target...),
		Outputs:    append([]int(nil), cfg.Training.Output...),
		Params:     append([]float64(nil), r.State.Params...),
		Stats: map[string]float64{
			"params":             float64(r.NumParams),
			"runs":               float64(r.Stats.Runs),
			"adapter_calls":      float64(r.Stats.AdapterCalls),
			"solver_steps":       float64(r.Stats.Solver.Steps),
			"solver_rejected":    float64(r.Stats.Solver.Rejected),
			"solver_evaluations": float64(r.Stats.Solver.Evaluations),
		},
	}
	if cfg.Mode == "me" {
		meta.Solver = cfg.Solver
	}
	if r.State.Err != nil {
		meta.Error = r.State.Err.Error()
	}
	return storage.Run{Meta: meta, Trajectories: r.Trajectories(), Loss: r.History}
}

// Sweep trains n copies of cfg in parallel, member i seeded with
// cfg.Seed+i. The reference is simulated once and shared. Callbacks in
// opts are shared by all members and must be safe for concurrent use.
// Results are returned for every member that was set up, in member order.
func Sweep(ctx context.Context, cfg *config.Config, n int, opts ...Option) ([]*Result, error) {
	if n <= 0 {
		return nil, dynamo.Configf("sweep", dynamo.ErrInvalidConfig, "need at least one run, got %d", n)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	first := NewRunner(cfg, opts...)
	if err := first.LoadReference(ctx); err != nil {
		return nil, err
	}
	shared := append(append([]Option(nil), opts...), WithReference(first.Reference()))

	runners := make([]*Runner, n)
	defer func() {
		for _, r := range runners {
			if r != nil {
				r.Close()
			}
		}
	}()

	states, err := train.Ensemble(ctx, n, func(i int) (*train.Orchestrator, error) {
		member := cfg.Clone()
		member.Seed = cfg.Seed + int64(i)
		member.Name = fmt.Sprintf("%s-%d", cfg.Name, i)
		r := NewRunner(member, shared...)
		if err := r.Setup(ctx); err != nil {
			return nil, err
		}
		runners[i] = r
		return r.Trainer(), nil
	})

	results := make([]*Result, 0, n)
	for i, r := range runners {
		if r != nil {
			results = append(results, r.Finish(ctx, states[i]))
		}
	}
	return results, err
}
