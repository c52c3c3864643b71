package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/san-kum/neuralfmu/internal/config"
)

var (
	dataDir  string
	logLevel string

	// experiment selection, shared by train and sweep
	configFile string
	preset     string
	iterations int
	lr         float64
	seed       int64
	optimizer  string
	solver     string

	// output
	plotDir    string
	plotFormat string
	useTUI     bool
	noSave     bool
	runs       int
	outFile    string

	// plain simulation
	mode      string
	stop      float64
	step      float64
	record    []string
	setValues map[string]string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "neuralfmu",
		Short:         "train neural networks around simulation models",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(logLevel)
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".neuralfmu", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	simulateCmd := &cobra.Command{
		Use:   "simulate [model]",
		Short: "simulate a model without a network",
		Args:  cobra.ExactArgs(1),
		RunE:  simulateModel,
	}
	simulateCmd.Flags().StringVar(&mode, "mode", "me", "me or cs")
	simulateCmd.Flags().Float64Var(&stop, "time", config.DefaultStop, "stop time")
	simulateCmd.Flags().Float64Var(&step, "step", config.DefaultStep, "save interval and co-simulation step")
	simulateCmd.Flags().StringVar(&solver, "solver", "rk45", "model exchange solver")
	simulateCmd.Flags().StringSliceVar(&record, "record", nil, "variables to record (default: states)")
	simulateCmd.Flags().StringToStringVar(&setValues, "set", nil, "start values, e.g. --set mass_s0=1.3")
	simulateCmd.Flags().StringVar(&plotDir, "plot", "", "also write charts to this directory")

	trainCmd := &cobra.Command{
		Use:   "train",
		Short: "train a hybrid model",
		Args:  cobra.NoArgs,
		RunE:  trainModel,
	}
	addExperimentFlags(trainCmd)
	trainCmd.Flags().BoolVar(&useTUI, "tui", false, "show a live training monitor")
	trainCmd.Flags().StringVar(&plotDir, "plot", "", "write charts to this directory")
	trainCmd.Flags().StringVar(&plotFormat, "format", "png", "chart format (png, svg, pdf)")
	trainCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "train several differently seeded runs in parallel",
		Args:  cobra.NoArgs,
		RunE:  sweepModel,
	}
	addExperimentFlags(sweepCmd)
	sweepCmd.Flags().IntVarP(&runs, "runs", "n", 4, "number of runs")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run results",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&plotDir, "dir", "", "write charts to this directory instead of the terminal")
	plotCmd.Flags().StringVar(&plotFormat, "format", "png", "chart format (png, svg, pdf)")

	exportCmd := &cobra.Command{
		Use:   "export [run_id] [path]",
		Short: "export a run as JSON (.zst compresses, - or no path for stdout)",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  exportRun,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [name]",
		Short: "list presets or print one as yaml",
		Args:  cobra.MaximumNArgs(1),
		RunE:  showPresets,
	}
	presetsCmd.Flags().StringVarP(&outFile, "out", "o", "", "write the preset to this file")

	rootCmd.AddCommand(simulateCmd, trainCmd, sweepCmd, listCmd, plotCmd, exportCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addExperimentFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	cmd.Flags().IntVar(&iterations, "iterations", 0, "training iterations")
	cmd.Flags().Float64Var(&lr, "lr", 0, "learning rate")
	cmd.Flags().Int64Var(&seed, "seed", 0, "network initialization seed")
	cmd.Flags().StringVar(&optimizer, "optimizer", "", "optimizer (adam, descent)")
	cmd.Flags().StringVar(&solver, "solver", "", "model exchange solver (euler, rk4, rk45)")
}

func setupLogging(level string) error {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
	return nil
}

// loadConfig resolves the experiment: a preset, else the config file (or
// defaults and environment), then explicitly set flags on top.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg *config.Config
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	} else {
		var err error
		if cfg, err = config.Load(configFile); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	flags := cmd.Flags()
	if flags.Changed("iterations") {
		cfg.Training.Iterations = iterations
	}
	if flags.Changed("lr") {
		cfg.Training.LearningRate = lr
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("optimizer") {
		cfg.Training.Optimizer = optimizer
	}
	if flags.Changed("solver") {
		cfg.Solver = solver
	}
	return cfg, nil
}
