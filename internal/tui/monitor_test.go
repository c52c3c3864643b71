package tui

import (
	"errors"
	"math"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/neuralfmu/internal/train"
)

func TestModelTracksState(t *testing.T) {
	var m tea.Model = newModel("simple_cs", 10)
	for i := 1; i <= 3; i++ {
		m, _ = m.Update(stateMsg(train.State{Phase: train.Updated, Iteration: i, Loss: 1 / float64(i), BestLoss: 1 / float64(i)}))
	}
	view := m.View()
	for _, want := range []string{"simple_cs", "3/10", "training", "3.3333e-01"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
	if got := len(m.(model).losses); got != 3 {
		t.Errorf("tracked %d losses, want 3", got)
	}
}

func TestModelDone(t *testing.T) {
	var m tea.Model = newModel("run", 2)
	m, cmd := m.Update(doneMsg{state: train.State{Phase: train.Converged, Iteration: 2}})
	if cmd == nil {
		t.Error("done should quit the program")
	}
	if !strings.Contains(m.View(), "converged") {
		t.Errorf("view does not report convergence:\n%s", m.View())
	}

	m, _ = newModel("run", 2).Update(doneMsg{err: errors.New("step 3 (t=0.3000): dynamo: simulator step failed")})
	if view := m.View(); !strings.Contains(view, "aborted") || !strings.Contains(view, "step failed") {
		t.Errorf("view does not report the failure:\n%s", view)
	}
}

func TestQuitKey(t *testing.T) {
	_, cmd := newModel("run", 1).Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Error("q should quit")
	}
}

func TestHistoryBounded(t *testing.T) {
	var m tea.Model = newModel("run", 1000)
	for i := 0; i < 2*historyLen; i++ {
		m, _ = m.Update(stateMsg(train.State{Iteration: i, Loss: float64(i)}))
	}
	if got := len(m.(model).losses); got != historyLen {
		t.Errorf("history has %d entries, want %d", got, historyLen)
	}
}

func TestSparkline(t *testing.T) {
	if got := sparkline([]float64{0, 1}, 10); got != "▁█" {
		t.Errorf("sparkline = %q", got)
	}
	if got := sparkline([]float64{2, 2, 2}, 10); got != "▁▁▁" {
		t.Errorf("flat sparkline = %q", got)
	}
	if formatLoss(math.NaN()) != "-" {
		t.Error("NaN loss should render as -")
	}
}

func TestMonitorWithoutProgram(t *testing.T) {
	if err := NewMonitor("idle", 1).OnIteration(train.State{}); err != nil {
		t.Errorf("callback without a running view should be a no-op, got %v", err)
	}
}
