// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"
	"time"

	"github.com/AleutianAI/banditlab/cmd/banditlab/config"
	"github.com/AleutianAI/banditlab/services/bandit"
	"github.com/AleutianAI/banditlab/services/bandit/compare"
	"github.com/AleutianAI/banditlab/services/bandit/export"
	"github.com/AleutianAI/banditlab/services/bandit/store"
	"github.com/AleutianAI/banditlab/services/bandit/telemetry"
	"github.com/AleutianAI/banditlab/services/bandit/visualize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// runOptions are the flags of the run command.
type runOptions struct {
	means       []float64
	trials      int
	seed        uint64
	algorithms  []string
	csvPath     string
	plotsDir    string
	window      int
	storePath   string
	projectID   string
	description string
	metricsFile string
	traceFile   string
	metric      string
	jsonOut     bool
}

// runOutput is the --json document.
type runOutput struct {
	ProjectID  string          `json:"project_id,omitempty"`
	Runs       []runView       `json:"runs"`
	Comparison *compare.Report `json:"comparison,omitempty"`
	Files      []string        `json:"files,omitempty"`
}

type runView struct {
	RunID       string         `json:"run_id,omitempty"`
	Algorithm   string         `json:"algorithm"`
	Means       []float64      `json:"means"`
	Interrupted bool           `json:"interrupted"`
	Summary     bandit.Summary `json:"summary"`
}

func newRunCmd(a *app) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation of each configured algorithm",
		Long: `Run plays every selected algorithm for the same number of trials against
its own copy of the arms, prints a summary table and a statistical comparison
of the first two runs, and optionally writes CSV, PNG charts, metrics and
traces, and saves the runs to the store.

Interrupting with Ctrl-C stops the current run; the trials completed so far
are still reported and saved.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSimulation(cmd, a, opts)
		},
	}

	f := cmd.Flags()
	f.Float64SliceVar(&opts.means, "means", nil, "true arm means, e.g. 1,2,3,4 (default from config)")
	f.IntVar(&opts.trials, "trials", 0, "trials per algorithm (default from config)")
	f.Uint64Var(&opts.seed, "seed", 0, "random seed for reproducible runs")
	f.StringSliceVar(&opts.algorithms, "algorithms", nil, "algorithms to run: epsilon_greedy, thompson_sampling")
	f.StringVar(&opts.csvPath, "csv", "", "write every trial to this CSV file")
	f.StringVar(&opts.plotsDir, "plots", "", "write PNG charts into this directory")
	f.IntVar(&opts.window, "window", 0, "learning-curve rolling window (default from config)")
	f.StringVar(&opts.storePath, "store", "", "save runs to the store at this path")
	f.StringVar(&opts.projectID, "project", "", "store runs under this existing project")
	f.StringVar(&opts.description, "description", "", "description for a new project")
	f.StringVar(&opts.metricsFile, "metrics-file", "", "write Prometheus metrics in text format to this file")
	f.StringVar(&opts.traceFile, "trace-file", "", "write OpenTelemetry spans to this file")
	f.StringVar(&opts.metric, "metric", string(compare.MetricRegret), "comparison metric: regret or reward")
	f.BoolVar(&opts.jsonOut, "json", false, "print results as JSON")

	return cmd
}

func runSimulation(cmd *cobra.Command, a *app, opts *runOptions) error {
	sim := a.cfg.Simulation
	if cmd.Flags().Changed("means") {
		sim.Means = opts.means
	}
	if opts.trials != 0 {
		sim.Trials = opts.trials
	}
	if cmd.Flags().Changed("seed") {
		seed := opts.seed
		sim.Seed = &seed
	}
	if len(opts.algorithms) > 0 {
		sim.Algorithms = opts.algorithms
	}
	window := a.cfg.Output.Window
	if opts.window > 0 {
		window = opts.window
	}
	csvPath := firstNonEmpty(opts.csvPath, a.cfg.Output.CSV)
	plotsDir := firstNonEmpty(opts.plotsDir, a.cfg.Output.PlotsDir)
	metricsFile := firstNonEmpty(opts.metricsFile, a.cfg.Output.MetricsFile)
	metric := compare.Metric(opts.metric)
	if metric != compare.MetricRegret && metric != compare.MetricReward {
		return usageErr("--metric must be regret or reward, got %q", opts.metric)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	persistCtx := context.WithoutCancel(ctx)
	logger := a.logger.Slog()

	// Store first: a project may supply the means.
	var (
		st      *store.Store
		project *store.Project
	)
	if path := a.storePath(opts.storePath); path != "" || opts.projectID != "" {
		var err error
		if st, err = a.openStore(path); err != nil {
			return err
		}
		defer st.Close()

		if opts.projectID != "" {
			if project, err = st.GetProject(ctx, opts.projectID); err != nil {
				return err
			}
			if !cmd.Flags().Changed("means") {
				sim.Means = project.Means
			}
		}
	}

	if len(sim.Means) == 0 {
		return usageErr("at least one arm mean is required")
	}
	if sim.Trials <= 0 {
		return usageErr("--trials must be positive, got %d", sim.Trials)
	}
	for _, alg := range sim.Algorithms {
		if alg != config.AlgorithmEpsilonGreedy && alg != config.AlgorithmThompsonSampling {
			return usageErr("unknown algorithm %q", alg)
		}
	}

	policies := make([]bandit.Policy, 0, len(sim.Algorithms))
	for i, alg := range sim.Algorithms {
		p, err := newPolicy(alg, sim.Means, sim.Seed, i)
		if err != nil {
			return err
		}
		policies = append(policies, p)
	}

	// Telemetry
	tcfg := telemetry.DefaultConfig()
	var traceOut *os.File
	if opts.traceFile != "" {
		if err := os.MkdirAll(filepath.Dir(opts.traceFile), 0o755); err != nil {
			return fmt.Errorf("create trace dir: %w", err)
		}
		f, err := os.Create(opts.traceFile)
		if err != nil {
			return fmt.Errorf("create trace file: %w", err)
		}
		traceOut = f
		defer traceOut.Close()
		tcfg.TraceExporter = telemetry.ExporterStdout
		tcfg.TraceWriter = f
	}

	var (
		registry *prometheus.Registry
		recorder bandit.Recorder
	)
	if metricsFile != "" {
		registry = prometheus.NewRegistry()
		tcfg.MetricExporter = telemetry.ExporterPrometheus
		tcfg.Registerer = registry
	}

	providers, err := telemetry.Init(ctx, tcfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := providers.Shutdown(persistCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	if registry != nil {
		pcfg := telemetry.DefaultPrometheusConfig()
		pcfg.Registry = registry
		promSink, err := telemetry.NewPrometheusSink(pcfg)
		if err != nil {
			return err
		}
		defer promSink.Close()

		otelSink, err := telemetry.NewOTelSink(providers.MeterProvider)
		if err != nil {
			return err
		}
		recorder = telemetry.Fanout{promSink, otelSink}
	}

	spin := a.out.NewSpinner(fmt.Sprintf("simulating %d trials x %d algorithms", sim.Trials, len(policies)))
	runner := bandit.NewRunner(
		bandit.WithLogger(logger),
		bandit.WithTracerProvider(providers.TracerProvider),
		bandit.WithRecorder(recorder),
		bandit.WithProgress(func(alg string, done, total int) {
			spin.SetMessage(fmt.Sprintf("%-17s %s", alg, a.out.ProgressBar(done, total, 24)))
		}),
	)

	// Simulate
	startedAt := time.Now()
	if !opts.jsonOut {
		spin.Start()
	}
	cmp, runErr := runner.Compare(ctx, sim.Trials, policies...)

	interrupted := errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded)
	switch {
	case opts.jsonOut:
	case runErr == nil:
		spin.StopWithSuccess(fmt.Sprintf("simulated %d trials x %d algorithms in %s",
			sim.Trials, len(policies), time.Since(startedAt).Round(time.Millisecond)))
	case interrupted:
		spin.Stop()
	default:
		spin.StopWithError(runErr.Error())
	}
	if runErr != nil && !interrupted {
		return runErr
	}
	results := cmp.Results
	if len(results) == 0 {
		return runErr
	}

	output := runOutput{Runs: make([]runView, len(results))}
	for i, res := range results {
		output.Runs[i] = runView{
			Algorithm:   res.Algorithm,
			Means:       res.Means,
			Interrupted: res.Interrupted,
			Summary:     res.Summary,
		}
	}

	// Outputs
	if csvPath != "" {
		if err := export.WriteFile(csvPath, results...); err != nil {
			return err
		}
		output.Files = append(output.Files, csvPath)
		logger.Info("wrote csv", "path", csvPath)
	}

	if plotsDir != "" {
		vcfg := visualize.DefaultConfig()
		vcfg.Window = window
		paths, err := visualize.RenderAll(plotsDir, vcfg, results...)
		if err != nil {
			return err
		}
		output.Files = append(output.Files, paths...)
		logger.Info("wrote plots", "dir", plotsDir, "count", len(paths))
	}

	if st != nil {
		if project == nil {
			desc := opts.description
			if desc == "" {
				desc = fmt.Sprintf("%d-armed bandit %v", len(sim.Means), sim.Means)
			}
			if project, err = st.CreateProject(persistCtx, desc, sim.Means); err != nil {
				return err
			}
			logger.Info("created project", "project_id", project.ID)
		}
		output.ProjectID = project.ID
		for i, res := range results {
			run, err := st.SaveRun(persistCtx, project.ID, res, startedAt)
			if err != nil {
				return err
			}
			output.Runs[i].RunID = run.ID
		}
	}

	if len(results) >= 2 {
		copts := compare.DefaultOptions()
		copts.Metric = metric
		report, err := compare.Runs(results[0], results[1], copts)
		if err != nil {
			logger.Warn("comparison skipped", "error", err)
		} else {
			output.Comparison = report
		}
	}

	if registry != nil {
		// Collection through the bridge needs the meter provider alive, so
		// the textfile is written before the deferred Shutdown.
		if err := telemetry.WriteTextfile(metricsFile, registry); err != nil {
			return err
		}
		output.Files = append(output.Files, metricsFile)
	}

	if opts.jsonOut {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(output); err != nil {
			return err
		}
	} else {
		printRunOutput(a, output)
	}

	if interrupted {
		return fmt.Errorf("simulation interrupted: %w", runErr)
	}
	return nil
}

// newPolicy builds one policy with its own arms. With a seed, run i draws
// arm rewards from seed+2i and makes choices from seed+2i+1.
func newPolicy(alg string, means []float64, seed *uint64, i int) (bandit.Policy, error) {
	armSrc, polSrc := bandit.NewUnseededSource(), bandit.NewUnseededSource()
	if seed != nil {
		base := *seed + 2*uint64(i)
		armSrc, polSrc = bandit.NewSource(base), bandit.NewSource(base+1)
	}

	arms, err := bandit.NewArmSet(slices.Clone(means), armSrc)
	if err != nil {
		return nil, err
	}
	switch alg {
	case config.AlgorithmEpsilonGreedy:
		return bandit.NewEpsilonGreedy(arms, polSrc)
	case config.AlgorithmThompsonSampling:
		return bandit.NewThompsonSampling(arms, polSrc)
	default:
		return nil, usageErr("unknown algorithm %q", alg)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
