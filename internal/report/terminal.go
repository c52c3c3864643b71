package report

import (
	"fmt"
	"io"

	"github.com/guptarohit/asciigraph"
)

var seriesColors = []asciigraph.AnsiColor{asciigraph.Cyan, asciigraph.Red, asciigraph.Green, asciigraph.Yellow, asciigraph.Magenta}

// Terminal draws charts with asciigraph. X values are ignored; series are
// assumed to share a grid.
type Terminal struct {
	w      io.Writer
	Height int
	Width  int
	Color  bool
}

func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w, Height: 12, Width: 70}
}

func (t *Terminal) Plot(title string, series ...Series) error {
	data := make([][]float64, 0, len(series))
	legend := make([]string, 0, len(series))
	for _, s := range series {
		if len(s.Y) == 0 {
			continue
		}
		data = append(data, s.Y)
		legend = append(legend, s.Name)
	}
	if len(data) == 0 {
		return fmt.Errorf("report: nothing to plot for %q", title)
	}

	opts := []asciigraph.Option{
		asciigraph.Height(t.Height),
		asciigraph.Width(t.Width),
		asciigraph.Caption(title),
	}
	if t.Color {
		opts = append(opts, asciigraph.SeriesColors(seriesColors[:min(len(data), len(seriesColors))]...))
		opts = append(opts, asciigraph.SeriesLegends(legend...))
	}
	if _, err := fmt.Fprintln(t.w, asciigraph.PlotMany(data, opts...)); err != nil {
		return err
	}
	if !t.Color && len(legend) > 1 {
		_, err := fmt.Fprintf(t.w, "series: %v\n", legend)
		return err
	}
	return nil
}
