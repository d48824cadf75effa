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
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/banditlab/services/bandit"
	"github.com/AleutianAI/banditlab/services/bandit/compare"
	"github.com/AleutianAI/banditlab/services/bandit/store"
)

var summaryHeaders = []string{
	"Algorithm", "Trials", "Mean reward", "Total reward",
	"Mean regret", "Total regret", "Pulls per arm", "Status",
}

func printRunOutput(a *app, o runOutput) {
	a.out.Title("Simulation results")
	if o.ProjectID != "" {
		a.out.KeyValue([2]string{"project", o.ProjectID})
	}

	rows := make([][]string, len(o.Runs))
	best, bestRegret := -1, 0.0
	for i, r := range o.Runs {
		rows[i] = summaryRow(r.Algorithm, r.Summary, r.Interrupted)
		if best < 0 || r.Summary.MeanRegret < bestRegret {
			best, bestRegret = i, r.Summary.MeanRegret
		}
	}
	if len(o.Runs) < 2 {
		best = -1
	}
	a.out.Table(summaryHeaders, rows, best)

	if o.Comparison != nil {
		printReport(a, o.Comparison)
	}
	for _, f := range o.Files {
		a.out.Success("wrote " + f)
	}
	for _, r := range o.Runs {
		if r.Interrupted {
			a.out.Warning(fmt.Sprintf("%s stopped after %d trials", r.Algorithm, r.Summary.Trials))
		}
	}
}

func summaryRow(alg string, s bandit.Summary, interrupted bool) []string {
	status := "complete"
	if interrupted {
		status = "interrupted"
	}
	return []string{
		alg,
		strconv.Itoa(s.Trials),
		ff(s.MeanReward),
		ff(s.TotalReward),
		ff(s.MeanRegret),
		ff(s.TotalRegret),
		joinInts(s.ArmCounts),
		status,
	}
}

func printReport(a *app, r *compare.Report) {
	a.out.Title(fmt.Sprintf("%s vs %s (%s)", r.A, r.B, r.Metric))

	pairs := [][2]string{
		{"mean " + r.A, ff(r.MeanA)},
		{"mean " + r.B, ff(r.MeanB)},
	}
	if r.TTest != nil {
		pairs = append(pairs,
			[2]string{"t statistic", ff(r.TTest.TStatistic)},
			[2]string{"p value", strconv.FormatFloat(r.TTest.PValue, 'g', 4, 64)},
			[2]string{"df", strconv.FormatFloat(r.TTest.DegreesOfFreedom, 'f', 1, 64)},
		)
	} else {
		pairs = append(pairs, [2]string{"t test", "skipped (zero variance)"})
	}
	if r.CI != nil {
		pairs = append(pairs, [2]string{
			fmt.Sprintf("%.0f%% CI of difference", r.CI.Level*100),
			fmt.Sprintf("[%s, %s]", ff(r.CI.Lower), ff(r.CI.Upper)),
		})
	}
	if r.Bootstrap != nil {
		pairs = append(pairs, [2]string{
			fmt.Sprintf("%.0f%% bootstrap CI", r.Bootstrap.Level*100),
			fmt.Sprintf("[%s, %s]%s", ff(r.Bootstrap.Lower), ff(r.Bootstrap.Upper), zeroNote(r.Bootstrap)),
		})
	}
	pairs = append(pairs, [2]string{"effect size", fmt.Sprintf("%s (%s)", ff(r.EffectSize), r.Effect)})
	if r.TrialsForPower > 0 {
		pairs = append(pairs, [2]string{"trials for 80% power", strconv.Itoa(r.TrialsForPower)})
	}
	a.out.KeyValue(pairs...)

	a.out.Box("Verdict", verdict(r))
}

// zeroNote flags an interval that rules out no difference.
func zeroNote(ci *compare.ConfidenceInterval) string {
	if ci.Contains(0) {
		return ""
	}
	return " excludes 0"
}

func verdict(r *compare.Report) string {
	switch {
	case r.Winner == "":
		return "no difference between the runs"
	case r.Significant():
		return fmt.Sprintf("%s wins on %s", r.Winner, r.Metric)
	default:
		return fmt.Sprintf("%s is ahead on %s, not significant", r.Winner, r.Metric)
	}
}

func printProjects(a *app, projects []*store.Project) {
	headers := []string{"ID", "Description", "Arms", "Best arm", "Most pulled", "Last run", "Created"}
	rows := make([][]string, len(projects))
	for i, p := range projects {
		rows[i] = []string{
			p.ID,
			p.Description,
			strconv.Itoa(p.NumberBandits),
			strconv.Itoa(p.BestArm()),
			optInt(p.OptimalArm),
			optTime(p.LastAlgorithmRun),
			p.CreatedAt.Format(time.DateTime),
		}
	}
	a.out.Table(headers, rows, -1)
}

func printArms(a *app, arms []*store.Arm) {
	headers := []string{"Arm", "True mean", "Pulls", "Explored", "Estimated mean", "Last reward"}
	rows := make([][]string, len(arms))
	for i, arm := range arms {
		rows[i] = []string{
			strconv.Itoa(arm.Index),
			ff(arm.Mean),
			strconv.Itoa(arm.Trials),
			strconv.Itoa(arm.Explored),
			ff(arm.EstimatedMean),
			ff(arm.LastReward),
		}
	}
	a.out.Table(headers, rows, -1)
}

func printStoredRuns(a *app, runs []*store.Run) {
	headers := append([]string{"Run ID", "Finished"}, summaryHeaders...)
	rows := make([][]string, len(runs))
	for i, r := range runs {
		rows[i] = append(
			[]string{r.ID, r.FinishedAt.Format(time.DateTime)},
			summaryRow(r.Algorithm, r.Summary, r.Interrupted)...,
		)
	}
	a.out.Table(headers, rows, -1)
}

func ff(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, "/")
}

func optInt(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}

func optTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.DateTime)
}
