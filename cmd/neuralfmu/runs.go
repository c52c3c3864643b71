package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/neuralfmu/internal/config"
	"github.com/san-kum/neuralfmu/internal/dynamo"
	"github.com/san-kum/neuralfmu/internal/experiment"
	"github.com/san-kum/neuralfmu/internal/fmu"
	"github.com/san-kum/neuralfmu/internal/integrators"
	"github.com/san-kum/neuralfmu/internal/report"
	"github.com/san-kum/neuralfmu/internal/storage"
)

func simulateModel(cmd *cobra.Command, args []string) error {
	reg := experiment.NewRegistry()
	model, err := reg.GetModel(args[0])
	if err != nil {
		return err
	}
	inst, err := fmu.Instantiate(model)
	if err != nil {
		return err
	}
	defer inst.Terminate()

	start := make(map[string]float64, len(setValues))
	for name, raw := range setValues {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("invalid start value %s=%q: %w", name, raw, err)
		}
		start[name] = v
	}

	opts := fmu.SimulateOptions{
		Span:        dynamo.Span{Start: 0, Stop: stop},
		SaveAt:      dynamo.Range(0, step, stop),
		Record:      record,
		StartValues: start,
		Solve:       integrators.SolveOptions{Dt: step, Tolerance: config.DefaultTolerance},
		Step:        step,
	}
	switch mode {
	case "me":
		opts.Mode = fmu.ModelExchange
		if opts.Solver, err = reg.GetSolver(solver); err != nil {
			return err
		}
	case "cs":
		opts.Mode = fmu.CoSimulation
	default:
		return fmt.Errorf("unknown mode %q (me or cs)", mode)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	began := time.Now()
	tr, err := fmu.Simulate(ctx, inst, opts)
	if err != nil {
		return err
	}
	fmt.Printf("%s (%s): %d samples in %v, %d steps\n", args[0], opts.Mode, tr.Len(), time.Since(began).Round(time.Microsecond), inst.Steps())

	sinks := []report.Sink{report.NewTerminal(os.Stdout)}
	if plotDir != "" {
		if err := os.MkdirAll(plotDir, 0755); err != nil {
			return err
		}
		sinks = append(sinks, report.NewFile(plotDir, plotFormat))
	}
	for col := 0; col < tr.Dim(); col++ {
		sr, err := report.Column(tr, col, "")
		if err != nil {
			return err
		}
		for _, sink := range sinks {
			if err := sink.Plot(sr.Name, sr); err != nil {
				return err
			}
		}
	}
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tMODE\tMODEL\tTIME\tITERS\tLOSS\tPHASE")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			r.ID,
			r.Name,
			r.Mode,
			r.Model,
			r.Timestamp.Format("2006-01-02 15:04"),
			r.Iterations,
			storage.FormatLoss(r.FinalLoss),
			r.Phase,
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	history, err := st.LoadLoss(meta.ID)
	if err != nil {
		return err
	}
	trajs := make(map[string]dynamo.Trajectory, len(meta.Trajectories))
	for _, name := range meta.Trajectories {
		tr, err := st.LoadTrajectory(meta.ID, name)
		if err != nil {
			return err
		}
		trajs[name] = tr
	}

	var sink report.Sink = report.NewTerminal(os.Stdout)
	if plotDir != "" {
		if err := os.MkdirAll(plotDir, 0755); err != nil {
			return err
		}
		sink = report.NewFile(plotDir, plotFormat)
	}
	if err := plotOutcome(sink, trajs, history, meta.Targets, meta.Outputs); err != nil {
		return err
	}
	if plotDir != "" {
		fmt.Printf("charts written to %s\n", plotDir)
	}
	return nil
}

// plotOutcome draws the loss history, if any, and the fit of every
// compared variable.
func plotOutcome(sink report.Sink, trajs map[string]dynamo.Trajectory, history []float64, targets []string, outputs []int) error {
	if len(history) > 0 {
		its := make([]float64, len(history))
		for i := range its {
			its[i] = float64(i + 1)
		}
		if err := sink.Plot("loss", report.Series{Name: "loss", X: its, Y: history}); err != nil {
			return err
		}
	}
	if len(trajs) == 0 || len(targets) == 0 {
		return nil
	}
	return report.Fit(sink, trajs, targets, outputs)
}

func exportRun(cmd *cobra.Command, args []string) error {
	path := "-"
	if len(args) > 1 {
		path = args[1]
	}
	st := storage.New(dataDir)
	if err := st.Export(args[0], path); err != nil {
		return err
	}
	if path != "-" {
		fmt.Fprintf(os.Stderr, "exported %s to %s\n", args[0], path)
	}
	return nil
}

func showPresets(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tMODE\tMODEL\tREFERENCE\tITERS")
		for _, name := range config.ListPresets() {
			p := config.GetPreset(name)
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", name, p.Mode, p.Model, p.ReferenceModel(), p.Training.Iterations)
		}
		return w.Flush()
	}

	p := config.GetPreset(args[0])
	if p == nil {
		return fmt.Errorf("unknown preset: %s (available: %v)", args[0], config.ListPresets())
	}
	if outFile != "" {
		if err := config.Save(outFile, p); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", outFile)
		return nil
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}
