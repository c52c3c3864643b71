package train

import (
	"context"
	"errors"
	"testing"
)

func TestEnsemble(t *testing.T) {
	states, err := Ensemble(context.Background(), 4, func(i int) (*Orchestrator, error) {
		q := newQuadratic([]float64{float64(i)}, []float64{0})
		return New(q, q.loss, Config{Iterations: 5}, WithLogger(quietLogger()))
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(states) != 4 {
		t.Fatalf("got %d states", len(states))
	}
	for i, st := range states {
		if st.Phase != Converged || st.Iteration != 5 {
			t.Errorf("run %d ended in %v after %d iterations", i, st.Phase, st.Iteration)
		}
	}
}

func TestEnsembleBuildError(t *testing.T) {
	boom := errors.New("no instance")
	_, err := Ensemble(context.Background(), 3, func(i int) (*Orchestrator, error) {
		if i == 1 {
			return nil, boom
		}
		q := newQuadratic([]float64{1}, []float64{0})
		return New(q, q.loss, Config{Iterations: 2}, WithLogger(quietLogger()))
	})
	if !errors.Is(err, boom) {
		t.Errorf("expected %v, got %v", boom, err)
	}
}
