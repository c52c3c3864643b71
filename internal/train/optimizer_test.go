package train

import (
	"math"
	"testing"
)

func TestAdamFirstStep(t *testing.T) {
	a := NewAdam(0.1)
	p := []float64{1, -1}
	a.Update(p, []float64{2, -3})

	// The bias-corrected first step moves each parameter by lr against the
	// gradient sign.
	if math.Abs(p[0]-0.9) > 1e-6 || math.Abs(p[1]+0.9) > 1e-6 {
		t.Errorf("after first step p = %v, want [0.9 -0.9]", p)
	}
}

func TestAdamSkipsZeroGradient(t *testing.T) {
	a := NewAdam(0.1)
	p := []float64{0.5, 0.25, -2}
	for i := 0; i < 5; i++ {
		a.Update(p, []float64{0, 0, 0})
	}
	want := []float64{0.5, 0.25, -2}
	for i := range p {
		if p[i] != want[i] {
			t.Errorf("p[%d] = %v, want unchanged %v", i, p[i], want[i])
		}
	}
}

func TestAdamReset(t *testing.T) {
	a := NewAdam(0.1)
	p := []float64{1}
	a.Update(p, []float64{1})
	a.Update(p, []float64{1})
	a.Reset()
	if a.step != 0 || a.m != nil {
		t.Errorf("reset left step=%d m=%v", a.step, a.m)
	}
	q := []float64{1}
	a.Update(q, []float64{1})
	if math.Abs(q[0]-0.9) > 1e-6 {
		t.Errorf("first step after reset gave %v, want 0.9", q[0])
	}
}

func TestDescent(t *testing.T) {
	d := &Descent{LR: 0.5}
	p := []float64{1, 2}
	d.Update(p, []float64{2, -2})
	if p[0] != 0 || p[1] != 3 {
		t.Errorf("p = %v, want [0 3]", p)
	}
}

func TestNewOptimizer(t *testing.T) {
	for _, name := range []string{"", "adam", "descent", "sgd"} {
		if _, err := NewOptimizer(name, 0.01); err != nil {
			t.Errorf("NewOptimizer(%q): %v", name, err)
		}
	}
	if _, err := NewOptimizer("lbfgs", 0.01); err == nil {
		t.Error("expected error for unknown optimizer")
	}
}
