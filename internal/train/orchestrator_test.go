package train

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/san-kum/neuralfmu/internal/dynamo"
)

func TestUpdateAndCallbackCounts(t *testing.T) {
	tests := []struct {
		n, k      int
		callbacks int
	}{
		{10, 1, 10},
		{10, 3, 3},
		{10, 5, 2},
		{7, 10, 0},
		{5, 0, 0},
	}
	for _, tt := range tests {
		q := newQuadratic([]float64{1, 1}, []float64{0, 0})
		opt := &countingOptimizer{Optimizer: NewAdam(0.01)}
		calls := 0
		o, err := New(q, q.loss, Config{Iterations: tt.n, CallbackEvery: tt.k},
			WithOptimizer(opt),
			WithLogger(quietLogger()),
			WithCallback(CallbackFunc(func(s State) error {
				calls++
				if s.Iteration%tt.k != 0 {
					t.Errorf("callback at iteration %d with period %d", s.Iteration, tt.k)
				}
				return nil
			})))
		if err != nil {
			t.Fatal(err)
		}
		st, err := o.Run(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if opt.updates != tt.n || st.Iteration != tt.n {
			t.Errorf("N=%d: %d updates, iteration %d", tt.n, opt.updates, st.Iteration)
		}
		if calls != tt.callbacks {
			t.Errorf("N=%d K=%d: %d callbacks, want %d", tt.n, tt.k, calls, tt.callbacks)
		}
		if st.Phase != Converged {
			t.Errorf("final phase %v, want converged", st.Phase)
		}
		if len(o.History()) != tt.n {
			t.Errorf("history has %d entries, want %d", len(o.History()), tt.n)
		}
	}
}

func TestLossDecreases(t *testing.T) {
	q := newQuadratic([]float64{2, -1}, []float64{0.5, 0.5})
	o, err := New(q, q.loss, Config{Iterations: 200}, WithOptimizer(NewAdam(0.05)), WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}
	st, err := o.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	h := o.History()
	if h[len(h)-1] >= h[0]/100 {
		t.Errorf("loss went from %v to %v", h[0], h[len(h)-1])
	}
	if st.BestLoss > h[len(h)-1] {
		t.Errorf("best loss %v above last loss %v", st.BestLoss, h[len(h)-1])
	}
}

func TestCallbackFailuresAreSuppressed(t *testing.T) {
	q := newQuadratic([]float64{1}, []float64{0})
	after := 0
	o, err := New(q, q.loss, Config{Iterations: 4, CallbackEvery: 1},
		WithLogger(quietLogger()),
		WithCallback(CallbackFunc(func(State) error { return errors.New("plot failed") })),
		WithCallback(CallbackFunc(func(State) error { panic("boom") })),
		WithCallback(CallbackFunc(func(State) error { after++; return nil })),
	)
	if err != nil {
		t.Fatal(err)
	}
	st, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("callback failure aborted training: %v", err)
	}
	if st.Phase != Converged || after != 4 {
		t.Errorf("phase %v, later callback ran %d times", st.Phase, after)
	}
}

func TestSimulationErrorAborts(t *testing.T) {
	q := newQuadratic([]float64{1}, []float64{0})
	simErr := &dynamo.SimulationError{Step: 3, Time: 0.3, Wrapped: dynamo.ErrStepFailed}
	calls := 0
	lossFn := func(ctx context.Context) (float64, error) {
		calls++
		if calls > 5 {
			return 0, simErr
		}
		return q.loss(ctx)
	}
	opt := &countingOptimizer{Optimizer: NewAdam(0.01)}
	o, err := New(q, lossFn, Config{Iterations: 10}, WithOptimizer(opt), WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}
	st, err := o.Run(context.Background())
	if !errors.Is(err, dynamo.ErrStepFailed) || !dynamo.IsSimulation(err) {
		t.Fatalf("expected the simulation error, got %v", err)
	}
	if st.Phase != Aborted || st.Err == nil {
		t.Errorf("phase %v err %v, want aborted", st.Phase, st.Err)
	}
	// each iteration evaluates once plus twice for the single parameter
	if opt.updates != 1 {
		t.Errorf("%d updates before abort, want 1", opt.updates)
	}
}

func TestNonFiniteLossAborts(t *testing.T) {
	q := newQuadratic([]float64{1}, []float64{0})
	o, err := New(q, func(context.Context) (float64, error) { return math.NaN(), nil }, Config{Iterations: 3}, WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}
	st, err := o.Run(context.Background())
	if !errors.Is(err, dynamo.ErrNonFiniteLoss) {
		t.Errorf("expected ErrNonFiniteLoss, got %v", err)
	}
	if st.Phase != Aborted || st.Iteration != 0 {
		t.Errorf("phase %v iteration %d", st.Phase, st.Iteration)
	}
}

func TestCancellationBetweenIterations(t *testing.T) {
	q := newQuadratic([]float64{1}, []float64{0})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	o, err := New(q, q.loss, Config{Iterations: 100, CallbackEvery: 1},
		WithLogger(quietLogger()),
		WithCallback(CallbackFunc(func(s State) error {
			if s.Iteration == 3 {
				cancel()
			}
			return nil
		})))
	if err != nil {
		t.Fatal(err)
	}
	st, err := o.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if st.Iteration != 3 || st.Phase != Aborted {
		t.Errorf("stopped at iteration %d in phase %v, want 3 aborted", st.Iteration, st.Phase)
	}
}

func TestResetAndResume(t *testing.T) {
	q := newQuadratic([]float64{1}, []float64{0})
	opt := &countingOptimizer{Optimizer: NewAdam(0.01)}
	o, err := New(q, q.loss, Config{Iterations: 3}, WithOptimizer(opt), WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := o.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if st, _ := o.Run(context.Background()); st.Iteration != 3 || opt.updates != 3 {
		t.Errorf("second run without reset did %d updates", opt.updates)
	}

	o.Reset()
	if st := o.State(); st.Phase != Idle || st.Iteration != 0 || opt.resets != 1 || len(o.History()) != 0 {
		t.Errorf("reset left %+v", st)
	}
	if _, err := o.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if opt.updates != 6 {
		t.Errorf("%d updates after reset and rerun, want 6", opt.updates)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	q := newQuadratic([]float64{1}, []float64{0})
	if _, err := New(q, q.loss, Config{Iterations: -1}); !dynamo.IsConfiguration(err) {
		t.Errorf("expected configuration error, got %v", err)
	}
	if _, err := New(nil, q.loss, Config{}); !dynamo.IsConfiguration(err) {
		t.Errorf("expected configuration error, got %v", err)
	}
}
