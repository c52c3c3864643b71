package train

import (
	"fmt"
	"time"
)

type Phase int

const (
	Idle Phase = iota
	Evaluating
	GradientComputed
	Updated
	Converged
	Aborted
)

var phaseNames = [...]string{"idle", "evaluating", "gradient-computed", "updated", "converged", "aborted"}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Done reports whether the phase is terminal.
func (p Phase) Done() bool { return p == Converged || p == Aborted }

// State is a snapshot of a training run. Callbacks receive a copy and may
// keep it.
type State struct {
	Phase Phase
	// Iteration counts completed parameter updates.
	Iteration int
	// Loss is the most recently evaluated loss.
	Loss     float64
	BestLoss float64
	GradNorm float64
	Params   []float64
	Elapsed  time.Duration
	// Err is set when Phase is Aborted.
	Err error
}

func (s State) clone() State {
	s.Params = append([]float64(nil), s.Params...)
	return s
}
