package train

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/san-kum/neuralfmu/internal/dynamo"
)

// Config bounds a training run.
type Config struct {
	Iterations int
	// CallbackEvery is the callback period K; callbacks run after update
	// k whenever k%K == 0. Zero disables callbacks.
	CallbackEvery int
}

type Option func(*Orchestrator)

func WithOptimizer(opt Optimizer) Option {
	return func(o *Orchestrator) { o.opt = opt }
}

func WithGradient(g Gradient) Option {
	return func(o *Orchestrator) { o.grad = g }
}

func WithCallback(cb Callback) Option {
	return func(o *Orchestrator) { o.callbacks = append(o.callbacks, cb) }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// Orchestrator owns the iteration counter and optimizer state of one
// training run. It is not safe for concurrent Run calls; State may be
// read from any goroutine.
type Orchestrator struct {
	model     Params
	loss      LossFunc
	cfg       Config
	opt       Optimizer
	grad      Gradient
	callbacks []Callback
	log       *slog.Logger

	mu      sync.Mutex
	state   State
	history []float64
}

// New builds an orchestrator. Without options it uses Adam with learning
// rate 1e-3 and central differences.
func New(model Params, loss LossFunc, cfg Config, opts ...Option) (*Orchestrator, error) {
	if model == nil || loss == nil {
		return nil, dynamo.Configf("train", dynamo.ErrInvalidState, "model and loss are required")
	}
	if cfg.Iterations < 0 || cfg.CallbackEvery < 0 {
		return nil, dynamo.Configf("train", dynamo.ErrInvalidState, "iterations and callback period must not be negative")
	}
	o := &Orchestrator{
		model: model,
		loss:  loss,
		cfg:   cfg,
		opt:   NewAdam(1e-3),
		grad:  CentralDifference{},
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.state = State{Phase: Idle, Loss: math.NaN(), BestLoss: math.Inf(1)}
	return o, nil
}

// State returns a snapshot of the run.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.clone()
}

// History returns the loss evaluated at every completed iteration.
func (o *Orchestrator) History() []float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]float64(nil), o.history...)
}

// Reset clears the iteration counter, loss history and optimizer state.
// Model parameters are kept.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opt.Reset()
	o.history = nil
	o.state = State{Phase: Idle, Loss: math.NaN(), BestLoss: math.Inf(1)}
}

func (o *Orchestrator) setPhase(p Phase) {
	o.mu.Lock()
	o.state.Phase = p
	o.mu.Unlock()
}

// Run iterates until the iteration budget is spent (Converged) or a
// failure occurs (Aborted). Model evaluations within one iteration are not
// interrupted by ctx.
func (o *Orchestrator) Run(ctx context.Context) (State, error) {
	start := time.Now()
	o.log.Debug("training started", "iterations", o.cfg.Iterations, "params", len(o.model.Params()))

	for {
		o.mu.Lock()
		it := o.state.Iteration
		o.mu.Unlock()
		if it >= o.cfg.Iterations {
			break
		}

		if err := ctx.Err(); err != nil {
			return o.abort(it, err, start)
		}
		evalCtx := context.WithoutCancel(ctx)

		o.setPhase(Evaluating)
		l, err := o.loss(evalCtx)
		if err != nil {
			return o.abort(it, err, start)
		}
		if math.IsNaN(l) || math.IsInf(l, 0) {
			return o.abort(it, fmt.Errorf("%w: %v at iteration %d", dynamo.ErrNonFiniteLoss, l, it), start)
		}

		g, err := o.grad.Gradient(evalCtx, o.model, o.loss)
		if err != nil {
			return o.abort(it, err, start)
		}
		norm := dynamo.State(g).Norm()
		if math.IsNaN(norm) || math.IsInf(norm, 0) {
			return o.abort(it, fmt.Errorf("%w: gradient norm %v at iteration %d", dynamo.ErrNonFiniteLoss, norm, it), start)
		}
		o.mu.Lock()
		o.state.Phase = GradientComputed
		o.state.Loss = l
		o.state.GradNorm = norm
		o.mu.Unlock()

		p := o.model.Params()
		o.opt.Update(p, g)
		if err := o.model.SetParams(p); err != nil {
			return o.abort(it, err, start)
		}

		o.mu.Lock()
		o.state.Phase = Updated
		o.state.Iteration = it + 1
		o.state.BestLoss = math.Min(o.state.BestLoss, l)
		o.state.Params = p
		o.state.Elapsed = time.Since(start)
		o.history = append(o.history, l)
		snap := o.state.clone()
		o.mu.Unlock()

		if k := o.cfg.CallbackEvery; k > 0 && snap.Iteration%k == 0 {
			o.log.Info("training", "iteration", snap.Iteration, "loss", l, "grad_norm", norm)
			o.notify(snap)
		}
	}

	o.mu.Lock()
	o.state.Phase = Converged
	o.state.Elapsed = time.Since(start)
	final := o.state.clone()
	o.mu.Unlock()
	o.log.Debug("training converged", "iterations", final.Iteration, "loss", final.Loss, "best", final.BestLoss)
	return final, nil
}

func (o *Orchestrator) notify(s State) {
	for _, cb := range o.callbacks {
		if err := safeCall(cb, s.clone()); err != nil {
			cerr := &dynamo.CallbackError{Iteration: s.Iteration, Wrapped: err}
			o.log.Warn("callback failed", "iteration", s.Iteration, "error", cerr)
		}
	}
}

func (o *Orchestrator) abort(it int, err error, start time.Time) (State, error) {
	o.mu.Lock()
	o.state.Phase = Aborted
	o.state.Err = err
	o.state.Elapsed = time.Since(start)
	final := o.state.clone()
	o.mu.Unlock()
	o.log.Error("training aborted", "iteration", it, "error", err)
	return final, err
}
