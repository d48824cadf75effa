// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package bandit

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary holds the scalar results of one run.
type Summary struct {
	// Trials is the number of records summarized.
	Trials int `json:"trials"`

	// MeanReward is the average observed reward.
	MeanReward float64 `json:"mean_reward"`

	// TotalReward is the sum of observed rewards.
	TotalReward float64 `json:"total_reward"`

	// MeanRegret is the average per-trial regret (true-mean basis).
	MeanRegret float64 `json:"mean_regret"`

	// TotalRegret is the sum of per-trial regrets.
	TotalRegret float64 `json:"total_regret"`

	// ArmCounts is how often each arm was chosen. Nil when k was unknown.
	ArmCounts []int `json:"arm_counts,omitempty"`
}

// Summarize reduces trial records into a Summary.
//
// Description:
//
//	Pure function. Both algorithms are summarized on the same basis: mean
//	regret averages the recorded regret, which is computed from true means,
//	never from observed rewards.
//
// Inputs:
//   - records: Trial records in any order.
//   - k: Number of arms for ArmCounts. Zero or less omits ArmCounts, and
//     records whose arm falls outside [0, k) are not counted.
//
// Outputs:
//   - Summary: Zero-valued averages when records is empty.
func Summarize(records []TrialRecord, k int) Summary {
	s := Summary{Trials: len(records)}
	if k > 0 {
		s.ArmCounts = make([]int, k)
	}
	if len(records) == 0 {
		return s
	}

	for _, rec := range records {
		s.TotalReward += rec.Reward
		s.TotalRegret += rec.Regret
		if rec.Arm >= 0 && rec.Arm < k {
			s.ArmCounts[rec.Arm]++
		}
	}
	n := float64(len(records))
	s.MeanReward = s.TotalReward / n
	s.MeanRegret = s.TotalRegret / n
	return s
}

// -----------------------------------------------------------------------------
// Curve Helpers
// -----------------------------------------------------------------------------

// RollingMean returns the mean of every complete window of size window.
//
// Element i covers values[i : i+window], so the result has
// len(values)-window+1 elements, or none if values is shorter than window.
func RollingMean(values []float64, window int) []float64 {
	if window <= 0 || len(values) < window {
		return nil
	}
	out := make([]float64, 0, len(values)-window+1)
	sum := floats.Sum(values[:window])
	out = append(out, sum/float64(window))
	for i := window; i < len(values); i++ {
		sum += values[i] - values[i-window]
		out = append(out, sum/float64(window))
	}
	return out
}

// CumulativeSum returns the running totals of values.
func CumulativeSum(values []float64) []float64 {
	if len(values) == 0 {
		return nil
	}
	out := make([]float64, len(values))
	return floats.CumSum(out, values)
}

// WindowedMean splits values into consecutive, non-overlapping windows and
// returns the mean of each. A trailing partial window is dropped.
func WindowedMean(values []float64, window int) []float64 {
	if window <= 0 {
		return nil
	}
	n := len(values) / window
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = stat.Mean(values[i*window:(i+1)*window], nil)
	}
	return out
}
