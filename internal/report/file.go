package report

import (
	"fmt"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// File saves one figure per Plot call into Dir, named after the title.
// Format is any extension gonum/plot can write: png, svg, pdf.
type File struct {
	Dir    string
	Format string
	Width  vg.Length
	Height vg.Length
}

func NewFile(dir, format string) *File {
	if format == "" {
		format = "png"
	}
	return &File{Dir: dir, Format: format, Width: 8 * vg.Inch, Height: 4 * vg.Inch}
}

// Path returns where a chart with the given title is written.
func (f *File) Path(title string) string {
	return filepath.Join(f.Dir, slug(title)+"."+f.Format)
}

func (f *File) Plot(title string, series ...Series) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "t"
	p.Add(plotter.NewGrid())

	for i, s := range series {
		if len(s.X) != len(s.Y) {
			return fmt.Errorf("report: series %q has %d x and %d y values", s.Name, len(s.X), len(s.Y))
		}
		xys := make(plotter.XYs, len(s.X))
		for k := range s.X {
			xys[k].X, xys[k].Y = s.X[k], s.Y[k]
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return fmt.Errorf("report: series %q: %w", s.Name, err)
		}
		line.Color = plotutil.Color(i)
		line.Dashes = plotutil.Dashes(i)
		p.Add(line)
		p.Legend.Add(s.Name, line)
	}
	p.Legend.Top = true

	if err := p.Save(f.Width, f.Height, f.Path(title)); err != nil {
		return fmt.Errorf("report: save %s: %w", title, err)
	}
	return nil
}

func slug(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
	if s == "" {
		return "plot"
	}
	return s
}
