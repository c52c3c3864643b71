package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/neuralfmu/internal/experiment"
	"github.com/san-kum/neuralfmu/internal/report"
	"github.com/san-kum/neuralfmu/internal/storage"
	"github.com/san-kum/neuralfmu/internal/train"
	"github.com/san-kum/neuralfmu/internal/tui"
)

func trainModel(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	var opts []experiment.Option
	var mon *tui.Monitor
	if useTUI {
		mon = tui.NewMonitor(cfg.Name, cfg.Training.Iterations)
		opts = append(opts,
			experiment.WithCallback(mon),
			experiment.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		)
	}
	var files *report.File
	if plotDir != "" {
		if err := os.MkdirAll(plotDir, 0755); err != nil {
			return err
		}
		files = report.NewFile(plotDir, plotFormat)
		opts = append(opts, experiment.WithCallback(report.NewLossCallback(files, "loss")))
	}

	r := experiment.NewRunner(cfg, opts...)
	fmt.Printf("setting up %s (%s, %s)...\n", cfg.Name, cfg.Mode, cfg.Model)
	if err := r.Setup(ctx); err != nil {
		return err
	}
	defer r.Close()
	fmt.Printf("network parameters: %d\n", r.Hybrid().NumParams())

	start := time.Now()
	var res *experiment.Result
	var trainErr error
	if mon != nil {
		var st train.State
		st, trainErr = mon.Run(ctx, r.Trainer())
		res = r.Finish(ctx, st)
	} else {
		res, trainErr = r.Run(ctx)
	}
	elapsed := time.Since(start)

	fmt.Printf("%s after %d iterations in %v\n", res.State.Phase, res.State.Iteration, elapsed.Round(time.Millisecond))
	fmt.Printf("loss: %.6g (best %.6g)\n", res.State.Loss, res.State.BestLoss)
	if trainErr != nil {
		fmt.Printf("error: %v\n", trainErr)
	}

	if err := showResult(res, files); err != nil {
		return err
	}

	if !noSave {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		runID, err := st.SaveRun(res.StorageRun())
		if err != nil {
			return err
		}
		fmt.Printf("run id: %s\n", runID)
	}
	return trainErr
}

// showResult draws the loss and fit charts in the terminal, and into files
// when a file sink is given.
func showResult(res *experiment.Result, files *report.File) error {
	sinks := []report.Sink{report.NewTerminal(os.Stdout)}
	if files != nil {
		sinks = append(sinks, files)
	}
	for _, sink := range sinks {
		if err := plotOutcome(sink, res.Trajectories(), res.History, res.Config.Training.Target, res.Config.Training.Output); err != nil {
			return err
		}
	}
	if files != nil {
		fmt.Printf("charts written to %s\n", files.Dir)
	}
	return nil
}

func sweepModel(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	fmt.Printf("training %d runs of %s...\n", runs, cfg.Name)
	start := time.Now()
	results, sweepErr := experiment.Sweep(ctx, cfg, runs)
	fmt.Printf("completed in %v\n", time.Since(start).Round(time.Millisecond))

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSEED\tPHASE\tITERS\tLOSS\tBEST\tID")
	for _, res := range results {
		runID, err := st.SaveRun(res.StorageRun())
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%.6g\t%.6g\t%s\n",
			res.Config.Name,
			res.Config.Seed,
			res.State.Phase,
			res.State.Iteration,
			res.State.Loss,
			res.State.BestLoss,
			runID,
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return sweepErr
}
