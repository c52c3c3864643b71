package experiment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/san-kum/neuralfmu/internal/adapter"
	"github.com/san-kum/neuralfmu/internal/config"
	"github.com/san-kum/neuralfmu/internal/dynamo"
	"github.com/san-kum/neuralfmu/internal/fmu"
	"github.com/san-kum/neuralfmu/internal/integrators"
	"github.com/san-kum/neuralfmu/internal/loss"
	"github.com/san-kum/neuralfmu/internal/neuralfmu"
	"github.com/san-kum/neuralfmu/internal/nn"
	"github.com/san-kum/neuralfmu/internal/train"
)

type Option func(*Runner)

func WithRegistry(r *Registry) Option {
	return func(rn *Runner) { rn.reg = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(rn *Runner) { rn.log = l }
}

// WithCallback registers a training callback. It runs every
// callback_every iterations like the built-in progress log.
func WithCallback(cb train.Callback) Option {
	return func(rn *Runner) { rn.callbacks = append(rn.callbacks, cb) }
}

// WithReference reuses training data instead of simulating the reference
// model, so parallel runs share one reference.
func WithReference(tr dynamo.Trajectory) Option {
	return func(rn *Runner) {
		rn.reference = tr
		rn.haveReference = true
	}
}

// Runner builds and trains one hybrid model from a configuration: it
// simulates the reference, wires the simulator stage and dense layers into
// a NeuralFMU and drives the training loop.
type Runner struct {
	cfg       *config.Config
	reg       *Registry
	log       *slog.Logger
	callbacks []train.Callback

	reference     dynamo.Trajectory
	haveReference bool
	baseline      dynamo.Trajectory
	before        dynamo.Trajectory

	inst    *fmu.Instance
	hybrid  neuralfmu.Model
	problem *neuralfmu.Problem
	trainer *train.Orchestrator
}

func NewRunner(cfg *config.Config, opts ...Option) *Runner {
	r := &Runner{cfg: cfg, log: slog.Default()}
	for _, o := range opts {
		o(r)
	}
	if r.reg == nil {
		r.reg = NewRegistry()
	}
	return r
}

func (r *Runner) Config() *config.Config       { return r.cfg }
func (r *Runner) Reference() dynamo.Trajectory { return r.reference }
func (r *Runner) Baseline() dynamo.Trajectory  { return r.baseline }
func (r *Runner) Before() dynamo.Trajectory    { return r.before }
func (r *Runner) Hybrid() neuralfmu.Model      { return r.hybrid }
func (r *Runner) Trainer() *train.Orchestrator { return r.trainer }

func (r *Runner) mode() fmu.Mode {
	if r.cfg.Mode == "cs" {
		return fmu.CoSimulation
	}
	return fmu.ModelExchange
}

func (r *Runner) solveOptions() integrators.SolveOptions {
	return integrators.SolveOptions{Dt: r.cfg.Step, Tolerance: r.cfg.Tolerance}
}

// Setup validates the configuration, produces the reference and baseline
// trajectories, builds the hybrid model and simulates it once before
// training.
func (r *Runner) Setup(ctx context.Context) error {
	if err := r.cfg.Validate(); err != nil {
		return err
	}

	if err := r.LoadReference(ctx); err != nil {
		return err
	}

	baseline, err := r.simulate(ctx, r.cfg.Model, r.cfg.StartValues)
	if err != nil {
		return fmt.Errorf("baseline simulation: %w", err)
	}
	r.baseline = baseline

	if err := r.buildHybrid(); err != nil {
		r.Close()
		return err
	}
	if err := r.buildTrainer(); err != nil {
		r.Close()
		return err
	}

	if r.before, err = r.problem.Run(ctx); err != nil {
		r.Close()
		return fmt.Errorf("initial hybrid simulation: %w", err)
	}
	return nil
}

// LoadReference simulates the reference model unless a reference was
// given with WithReference.
func (r *Runner) LoadReference(ctx context.Context) error {
	if r.haveReference {
		return nil
	}
	ref, err := r.simulate(ctx, r.cfg.ReferenceModel(), r.cfg.Reference.StartValues)
	if err != nil {
		return fmt.Errorf("reference simulation: %w", err)
	}
	r.reference = ref
	r.haveReference = true
	return nil
}

// simulate runs a plain model over the configured grid, recording the
// reference variables.
func (r *Runner) simulate(ctx context.Context, name string, start map[string]float64) (dynamo.Trajectory, error) {
	model, err := r.reg.GetModel(name)
	if err != nil {
		return dynamo.Trajectory{}, err
	}
	inst, err := fmu.Instantiate(model)
	if err != nil {
		return dynamo.Trajectory{}, err
	}
	defer inst.Terminate()

	opts := fmu.SimulateOptions{
		Mode:        r.mode(),
		Span:        r.cfg.Span(),
		SaveAt:      r.cfg.SaveAt(),
		Record:      r.cfg.Reference.Record,
		StartValues: start,
		Solve:       r.solveOptions(),
		Step:        r.cfg.Step,
	}
	if opts.Mode == fmu.ModelExchange {
		if opts.Solver, err = r.reg.GetSolver(r.cfg.Solver); err != nil {
			return dynamo.Trajectory{}, err
		}
	}
	return fmu.Simulate(ctx, inst, opts)
}

// buildHybrid terminates the simulator instance again when any later
// stage of the build fails.
func (r *Runner) buildHybrid() (err error) {
	cfg := r.cfg
	model, err := r.reg.GetModel(cfg.Model)
	if err != nil {
		return err
	}
	inst, err := fmu.Instantiate(model)
	if err != nil {
		return err
	}
	r.inst = inst
	defer func() {
		if err != nil {
			inst.Terminate()
		}
	}()
	desc := inst.Description()

	var first nn.Stage
	var outDim int
	if r.mode() == fmu.CoSimulation {
		if first, err = adapter.NewCSStage(inst, cfg.Step, cfg.Probe...); err != nil {
			return err
		}
		outDim = len(desc.Outputs)
	} else {
		if first, err = adapter.NewMEStage(inst, cfg.Probe...); err != nil {
			return err
		}
		outDim = desc.NumStates()
	}

	initializer, err := r.reg.GetInitializer(cfg.Network.Init, cfg.Seed)
	if err != nil {
		return err
	}
	stages := []nn.Stage{first}
	in := first.OutDim()
	for _, l := range cfg.Network.Layers {
		act, err := nn.ActivationByName(l.Activation)
		if err != nil {
			return err
		}
		stages = append(stages, nn.NewDense(in, l.Width, act, initializer))
		in = l.Width
	}
	stages = append(stages, nn.NewDense(in, outDim, nn.Identity, initializer))

	chain, err := nn.NewChain(stages...)
	if err != nil {
		return err
	}

	opts := []neuralfmu.Option{
		neuralfmu.WithSaveAt(cfg.SaveAt()),
		neuralfmu.WithStartValues(cfg.StartValues),
		neuralfmu.WithSolveOptions(r.solveOptions()),
	}
	if r.mode() == fmu.CoSimulation {
		cs, err := neuralfmu.NewCS(inst, chain, cfg.Span(), opts...)
		if err != nil {
			return err
		}
		r.hybrid, r.problem = cs, cs.Bind(nil)
		return nil
	}

	solver, err := r.reg.GetSolver(cfg.Solver)
	if err != nil {
		return err
	}
	me, err := neuralfmu.NewME(inst, chain, cfg.Span(), solver, opts...)
	if err != nil {
		return err
	}
	x0, err := r.initialStates(desc)
	if err != nil {
		me.Close()
		return err
	}
	r.hybrid, r.problem = me, me.Bind(x0)
	return nil
}

// initialStates takes the hybrid model's start states from the first
// reference sample when the reference records every state, so both start
// from the same point. Otherwise the model's own initialization decides.
func (r *Runner) initialStates(desc *fmu.ModelDescription) (dynamo.State, error) {
	names, err := desc.Names(desc.States)
	if err != nil {
		return nil, err
	}
	if r.reference.Len() == 0 {
		return nil, nil
	}
	first := r.reference.Value(0)
	x0 := make(dynamo.State, len(names))
	for i, name := range names {
		col, err := r.reference.Index(name)
		if err != nil {
			return nil, nil
		}
		x0[i] = first[col]
	}
	return x0, nil
}

func (r *Runner) buildTrainer() error {
	t := r.cfg.Training
	method, err := loss.ParseInterpolation(t.Interpolation)
	if err != nil {
		return err
	}
	refCols := make([]int, len(t.Target))
	for i, name := range t.Target {
		if refCols[i], err = r.reference.Index(name); err != nil {
			return err
		}
	}
	for _, c := range t.Output {
		if c < 0 || c >= r.hybrid.StateCount() {
			return dynamo.Configf("experiment", dynamo.ErrDimensionMismatch, "output column %d outside the %d hybrid model components", c, r.hybrid.StateCount())
		}
	}
	cmp := loss.Compare{Method: method, Reference: refCols, Candidate: append([]int(nil), t.Output...)}

	opt, err := r.reg.GetOptimizer(t.Optimizer, t.LearningRate)
	if err != nil {
		return err
	}

	opts := []train.Option{
		train.WithOptimizer(opt),
		train.WithGradient(train.CentralDifference{Step: t.GradientStep}),
		train.WithLogger(r.log),
		train.WithCallback(train.CallbackFunc(r.logStats)),
	}
	for _, cb := range r.callbacks {
		opts = append(opts, train.WithCallback(cb))
	}

	r.trainer, err = train.New(r.hybrid, train.TrajectoryLoss(r.problem, r.reference, cmp),
		train.Config{Iterations: t.Iterations, CallbackEvery: t.CallbackEvery}, opts...)
	return err
}

func (r *Runner) logStats(s train.State) error {
	st := r.hybrid.Stats()
	r.log.Info("hybrid model",
		"iteration", s.Iteration,
		"runs", st.Runs,
		"adapter_calls", st.AdapterCalls,
		"solver_steps", st.Solver.Steps,
		"solver_rejected", st.Solver.Rejected,
	)
	return nil
}

// Run trains the hybrid model. The result is non-nil whenever Setup
// succeeded, even when training aborts.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if r.trainer == nil {
		return nil, fmt.Errorf("experiment not setup")
	}
	st, err := r.trainer.Run(ctx)
	return r.Finish(ctx, st), err
}

// Finish collects the outcome of a training run driven elsewhere, e.g. by
// the live monitor. A converged run is simulated once more with the
// trained parameters.
func (r *Runner) Finish(ctx context.Context, st train.State) *Result {
	res := &Result{
		Config:    r.cfg,
		State:     st,
		History:   r.trainer.History(),
		Reference: r.reference,
		Baseline:  r.baseline,
		Before:    r.before,
		NumParams: r.hybrid.NumParams(),
	}
	if st.Phase == train.Converged {
		after, err := r.problem.Run(ctx)
		if err != nil {
			r.log.Warn("final hybrid simulation failed", "error", err)
		} else {
			res.After = after
		}
	}
	res.Stats = r.hybrid.Stats()
	return res
}

// Close releases and terminates the simulator instance of the hybrid
// model.
func (r *Runner) Close() {
	if r.hybrid != nil {
		r.hybrid.Close()
	}
	if r.inst != nil {
		r.inst.Terminate()
	}
}
