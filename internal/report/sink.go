package report

import (
	"fmt"
	"sort"

	"github.com/san-kum/neuralfmu/internal/dynamo"
)

// Series is one named line of a chart.
type Series struct {
	Name string
	X, Y []float64
}

// Sink draws a chart of one or more series.
type Sink interface {
	Plot(title string, series ...Series) error
}

// Column extracts component col of tr as a series named after it.
func Column(tr dynamo.Trajectory, col int, name string) (Series, error) {
	ys, err := tr.Column(col)
	if err != nil {
		return Series{}, err
	}
	if name == "" {
		if names := tr.Names(); names != nil {
			name = names[col]
		} else {
			name = fmt.Sprintf("x%d", col)
		}
	}
	return Series{Name: name, X: tr.Times(), Y: ys}, nil
}

// Compare plots component col of each trajectory on one chart.
func Compare(s Sink, title string, col int, trajs map[string]dynamo.Trajectory) error {
	series := make([]Series, 0, len(trajs))
	for _, name := range sortedKeys(trajs) {
		sr, err := Column(trajs[name], col, name)
		if err != nil {
			return err
		}
		series = append(series, sr)
	}
	return s.Plot(title, series...)
}

func sortedKeys(m map[string]dynamo.Trajectory) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Fit plots one chart per compared variable. Each trajectory contributes
// the column named target when it has one, else column outputs[i].
func Fit(s Sink, trajs map[string]dynamo.Trajectory, targets []string, outputs []int) error {
	if len(targets) != len(outputs) {
		return fmt.Errorf("report: %d targets for %d outputs", len(targets), len(outputs))
	}
	for i, target := range targets {
		series := make([]Series, 0, len(trajs))
		for _, name := range sortedKeys(trajs) {
			tr := trajs[name]
			col, err := tr.Index(target)
			if err != nil {
				col = outputs[i]
			}
			sr, err := Column(tr, col, name)
			if err != nil {
				return err
			}
			series = append(series, sr)
		}
		if err := s.Plot(target, series...); err != nil {
			return err
		}
	}
	return nil
}
