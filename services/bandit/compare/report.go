// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package compare

import (
	"errors"
	"fmt"

	"github.com/AleutianAI/banditlab/services/bandit"
	"gonum.org/v1/gonum/stat"
)

// ErrNilRun is returned when Runs receives a nil result.
var ErrNilRun = errors.New("run result must not be nil")

// Metric selects the per-trial series two runs are compared on.
type Metric string

const (
	// MetricRegret compares per-trial regret. Lower is better.
	MetricRegret Metric = "regret"

	// MetricReward compares per-trial observed reward. Higher is better.
	MetricReward Metric = "reward"
)

// Options configures Runs.
type Options struct {
	// Metric is the compared series. Default: MetricRegret.
	Metric Metric

	// Alpha is the significance level. Default: 0.05.
	Alpha float64

	// ConfidenceLevel for the mean-difference interval. Default: 0.95.
	ConfidenceLevel float64

	// Power is the target power for TrialsForPower. Default: 0.8.
	Power float64

	// BootstrapIterations for the bootstrap interval. Default: 1000.
	// Negative disables the bootstrap.
	BootstrapIterations int

	// Source drives bootstrap resampling. Nil uses a fixed seed, so the
	// same runs always give the same interval.
	Source bandit.Source
}

// DefaultOptions returns regret at alpha 0.05 and 80% power, with 95%
// intervals from 1000 bootstrap resamples.
func DefaultOptions() Options {
	return Options{
		Metric:              MetricRegret,
		Alpha:               0.05,
		ConfidenceLevel:     0.95,
		Power:               0.8,
		BootstrapIterations: 1000,
	}
}

// Report is the statistical comparison of two runs.
type Report struct {
	// A and B are the algorithm labels of the compared runs.
	A string `json:"a"`
	B string `json:"b"`

	// Metric is the compared series.
	Metric Metric `json:"metric"`

	// MeanA and MeanB are the per-trial means of the metric.
	MeanA float64 `json:"mean_a"`
	MeanB float64 `json:"mean_b"`

	// TTest is nil when both series have zero variance.
	TTest *TTestResult `json:"t_test,omitempty"`

	// CI bounds MeanA - MeanB.
	CI *ConfidenceInterval `json:"ci"`

	// Bootstrap is a percentile bootstrap interval for MeanA - MeanB.
	// Nil when the bootstrap is disabled.
	Bootstrap *ConfidenceInterval `json:"bootstrap_ci,omitempty"`

	// EffectSize is Cohen's d of A against B. Zero with zero variance.
	EffectSize float64        `json:"effect_size"`
	Effect     EffectCategory `json:"effect"`

	// TrialsForPower is the trials per run needed to detect EffectSize at
	// Alpha with the configured power. Zero when EffectSize is zero.
	TrialsForPower int `json:"trials_for_power,omitempty"`

	// Winner is the label with the better mean, empty on an exact tie.
	Winner string `json:"winner"`
}

// Significant reports whether the difference passed the t-test.
func (r *Report) Significant() bool {
	return r.TTest != nil && r.TTest.Significant
}

// Runs compares two runs trial by trial.
//
// Description:
//
//	Pulls the metric series out of both runs and applies Welch's t-test,
//	a Welch confidence interval, a bootstrap interval, and Cohen's d, and
//	estimates the run length needed to detect that effect. The winner is
//	decided by mean alone; check Significant before trusting it.
//
// Inputs:
//   - a, b: Runs to compare. Neither may be nil. Each needs at least 2 records.
//   - opts: Zero fields fall back to DefaultOptions.
//
// Outputs:
//   - *Report: The comparison.
//   - error: ErrNilRun or ErrInsufficientSamples.
func Runs(a, b *bandit.RunResult, opts Options) (*Report, error) {
	if a == nil || b == nil {
		return nil, ErrNilRun
	}
	opts = withDefaults(opts)

	seriesA, seriesB, err := series(a, b, opts.Metric)
	if err != nil {
		return nil, err
	}
	if len(seriesA) < 2 || len(seriesB) < 2 {
		return nil, fmt.Errorf("%w: %d and %d trials", ErrInsufficientSamples, len(seriesA), len(seriesB))
	}

	report := &Report{A: a.Algorithm, B: b.Algorithm, Metric: opts.Metric}

	ci, err := CalculateCI(seriesA, seriesB, opts.ConfidenceLevel)
	if err != nil {
		return nil, err
	}
	report.CI = ci

	tt, err := WelchTTest(seriesA, seriesB, opts.Alpha)
	switch {
	case errors.Is(err, ErrZeroVariance):
	case err != nil:
		return nil, err
	default:
		report.TTest = tt
	}

	d, err := EffectSize(seriesA, seriesB)
	if err != nil && !errors.Is(err, ErrZeroVariance) {
		return nil, err
	}
	report.EffectSize = d
	report.Effect = CategorizeEffect(d)
	if d != 0 {
		report.TrialsForPower = RequiredTrials(d, opts.Alpha, opts.Power)
	}

	if opts.BootstrapIterations > 0 {
		boot, err := BootstrapCI(seriesA, seriesB, opts.ConfidenceLevel, opts.BootstrapIterations, opts.Source)
		if err != nil {
			return nil, err
		}
		report.Bootstrap = boot
	}

	report.MeanA = stat.Mean(seriesA, nil)
	report.MeanB = stat.Mean(seriesB, nil)
	report.Winner = winner(report, opts.Metric)

	return report, nil
}

func withDefaults(opts Options) Options {
	def := DefaultOptions()
	if opts.Metric == "" {
		opts.Metric = def.Metric
	}
	if opts.Alpha <= 0 || opts.Alpha >= 1 {
		opts.Alpha = def.Alpha
	}
	if opts.ConfidenceLevel <= 0 || opts.ConfidenceLevel >= 1 {
		opts.ConfidenceLevel = def.ConfidenceLevel
	}
	if opts.Power <= 0 || opts.Power >= 1 {
		opts.Power = def.Power
	}
	if opts.BootstrapIterations == 0 {
		opts.BootstrapIterations = def.BootstrapIterations
	}
	return opts
}

func series(a, b *bandit.RunResult, m Metric) ([]float64, []float64, error) {
	switch m {
	case MetricRegret:
		return a.Regrets(), b.Regrets(), nil
	case MetricReward:
		return a.Rewards(), b.Rewards(), nil
	default:
		return nil, nil, fmt.Errorf("unknown metric %q", m)
	}
}

func winner(r *Report, m Metric) string {
	if r.MeanA == r.MeanB {
		return ""
	}
	aBetter := r.MeanA > r.MeanB
	if m == MetricRegret {
		aBetter = !aBetter
	}
	if aBetter {
		return r.A
	}
	return r.B
}
