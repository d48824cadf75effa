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
	"github.com/AleutianAI/banditlab/services/bandit"
	"github.com/AleutianAI/banditlab/services/bandit/compare"
	"github.com/AleutianAI/banditlab/services/bandit/export"
	"github.com/AleutianAI/banditlab/services/bandit/store"
	"github.com/AleutianAI/banditlab/services/bandit/visualize"
	"github.com/spf13/cobra"
)

func newRunsCmd(a *app) *cobra.Command {
	flags := &storeFlags{}
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect, export and compare stored runs",
	}
	flags.bind(cmd)

	list := &cobra.Command{
		Use:   "list <project-id>",
		Short: "List the runs of a project, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(a, flags, func(st *store.Store) error {
				runs, err := st.ListRuns(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if flags.jsonOut {
					return writeJSON(a, runs)
				}
				if len(runs) == 0 {
					a.out.Info("no runs")
					return nil
				}
				printStoredRuns(a, runs)
				return nil
			})
		},
	}

	var csvPath, plotsDir string
	var window int
	exportCmd := &cobra.Command{
		Use:   "export <run-id>...",
		Short: "Write stored runs to CSV and/or PNG charts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if csvPath == "" && plotsDir == "" {
				return usageErr("pass --csv, --plots, or both")
			}
			return withStore(a, flags, func(st *store.Store) error {
				results, err := loadResults(cmd, st, args)
				if err != nil {
					return err
				}
				return writeArtifacts(a, results, csvPath, plotsDir, window)
			})
		},
	}
	exportCmd.Flags().StringVar(&csvPath, "csv", "", "CSV output path")
	exportCmd.Flags().StringVar(&plotsDir, "plots", "", "PNG output directory")
	exportCmd.Flags().IntVar(&window, "window", 0, "learning-curve rolling window (default from config)")

	var metric string
	cmpCmd := &cobra.Command{
		Use:   "compare <run-id> <run-id>",
		Short: "Run a Welch t-test on two stored runs",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := compare.DefaultOptions()
			opts.Metric = compare.Metric(metric)
			if opts.Metric != compare.MetricRegret && opts.Metric != compare.MetricReward {
				return usageErr("--metric must be regret or reward, got %q", metric)
			}
			return withStore(a, flags, func(st *store.Store) error {
				results, err := loadResults(cmd, st, args)
				if err != nil {
					return err
				}
				report, err := compare.Runs(results[0], results[1], opts)
				if err != nil {
					return err
				}
				if flags.jsonOut {
					return writeJSON(a, report)
				}
				printReport(a, report)
				return nil
			})
		},
	}
	cmpCmd.Flags().StringVar(&metric, "metric", string(compare.MetricRegret), "regret or reward")

	cmd.AddCommand(list, exportCmd, cmpCmd)
	return cmd
}

// loadResults rebuilds RunResults from stored runs, in argument order.
func loadResults(cmd *cobra.Command, st *store.Store, ids []string) ([]*bandit.RunResult, error) {
	results := make([]*bandit.RunResult, 0, len(ids))
	for _, id := range ids {
		run, err := st.GetRun(cmd.Context(), id)
		if err != nil {
			return nil, err
		}
		p, err := st.GetProject(cmd.Context(), run.ProjectID)
		if err != nil {
			return nil, err
		}
		results = append(results, &bandit.RunResult{
			Algorithm:   run.Algorithm,
			Means:       p.Means,
			Records:     run.Records,
			Summary:     run.Summary,
			Interrupted: run.Interrupted,
		})
	}
	return results, nil
}

// newPlotCmd renders charts from a CSV written by run --csv.
func newPlotCmd(a *app) *cobra.Command {
	var dir string
	var window int
	cmd := &cobra.Command{
		Use:   "plot <csv-file>",
		Short: "Render PNG charts from a trial CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			results, err := export.ReadFile(args[0])
			if err != nil {
				return err
			}
			return writeArtifacts(a, results, "", dir, window)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "plots", "PNG output directory")
	cmd.Flags().IntVar(&window, "window", 0, "learning-curve rolling window (default from config)")
	return cmd
}

// writeArtifacts writes the CSV and charts that were asked for.
func writeArtifacts(a *app, results []*bandit.RunResult, csvPath, plotsDir string, window int) error {
	if csvPath != "" {
		if err := export.WriteFile(csvPath, results...); err != nil {
			return err
		}
		a.out.Success("wrote " + csvPath)
	}
	if plotsDir != "" {
		cfg := visualize.DefaultConfig()
		cfg.Window = a.cfg.Output.Window
		if window > 0 {
			cfg.Window = window
		}
		var paths []string
		err := a.out.WithSpinner("rendering charts", func() error {
			var err error
			paths, err = visualize.RenderAll(plotsDir, cfg, results...)
			return err
		})
		if err != nil {
			return err
		}
		for _, p := range paths {
			a.out.Success("wrote " + p)
		}
	}
	return nil
}
