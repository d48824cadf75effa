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
	"context"
	"fmt"
)

// Algorithm labels carried by every TrialRecord.
const (
	LabelEpsilonGreedy    = "Epsilon-Greedy"
	LabelThompsonSampling = "Thompson Sampling"
)

// Policy is the capability every bandit algorithm provides.
//
// Description:
//
//	Any type with these methods can be driven by Runner. There is no shared
//	base implementation; policies only agree on this contract, which keeps
//	their RunResults structurally identical.
type Policy interface {
	// Name returns the algorithm label written into each TrialRecord.
	Name() string

	// Pull selects an arm and observes one reward from it.
	Pull() (arm int, reward float64, err error)

	// Update folds one observation into the policy's state.
	Update(arm int, reward float64) error

	// RunExperiment plays nTrials sequential trials from the current state.
	RunExperiment(ctx context.Context, nTrials int) (*RunResult, error)

	// Summarize reduces the most recent run. Zero Summary before any run.
	Summarize() Summary
}

// TrialRecord is one row of a run's trial log.
type TrialRecord struct {
	// Trial is the 1-based trial index.
	Trial int `json:"trial"`

	// Arm is the chosen arm index in [0, K).
	Arm int `json:"arm"`

	// Reward is the observed reward.
	Reward float64 `json:"reward"`

	// Regret is best true mean minus the chosen arm's true mean.
	Regret float64 `json:"regret"`

	// Algorithm is the label of the policy that produced the record.
	Algorithm string `json:"algorithm"`
}

// RunResult is the complete, ordered output of one policy run.
//
// A RunResult is read-only once returned.
type RunResult struct {
	// Algorithm is the policy label.
	Algorithm string `json:"algorithm"`

	// Means are the true arm means the run was played against.
	Means []float64 `json:"means"`

	// Records holds one entry per completed trial, in trial order.
	Records []TrialRecord `json:"records"`

	// Summary is derived from Records.
	Summary Summary `json:"summary"`

	// Interrupted is true when the run stopped early on context cancellation.
	// Records then cover only the trials completed before the cut.
	Interrupted bool `json:"interrupted"`
}

// Rewards returns the observed rewards in trial order.
func (r *RunResult) Rewards() []float64 {
	out := make([]float64, len(r.Records))
	for i, rec := range r.Records {
		out[i] = rec.Reward
	}
	return out
}

// Regrets returns the per-trial regrets in trial order.
func (r *RunResult) Regrets() []float64 {
	out := make([]float64, len(r.Records))
	for i, rec := range r.Records {
		out[i] = rec.Regret
	}
	return out
}

// trialStepper is the per-trial surface the shared loop drives.
type trialStepper interface {
	beginTrial(t int)
	Pull() (int, float64, error)
	Update(int, float64) error
}

// runTrials is the loop shared by every policy: begin, pull, update, record.
//
// A failed pull or update discards the whole attempt. Context cancellation
// is checked between trials and yields the records completed so far.
func runTrials(ctx context.Context, p trialStepper, arms *ArmSet, label string, nTrials int) (*RunResult, error) {
	if nTrials <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTrials, nTrials)
	}

	records := make([]TrialRecord, 0, nTrials)
	var cut error
	progress := progressFrom(ctx)
	stride := progressStride(nTrials)

	for t := 1; t <= nTrials; t++ {
		if err := ctx.Err(); err != nil {
			cut = fmt.Errorf("%s interrupted after %d of %d trials: %w", label, t-1, nTrials, err)
			break
		}

		p.beginTrial(t)
		arm, reward, err := p.Pull()
		if err != nil {
			return nil, fmt.Errorf("%s trial %d pull: %w", label, t, err)
		}
		if err := p.Update(arm, reward); err != nil {
			return nil, fmt.Errorf("%s trial %d update: %w", label, t, err)
		}
		regret, err := arms.Regret(arm)
		if err != nil {
			return nil, fmt.Errorf("%s trial %d regret: %w", label, t, err)
		}

		records = append(records, TrialRecord{
			Trial:     t,
			Arm:       arm,
			Reward:    reward,
			Regret:    regret,
			Algorithm: label,
		})
		if progress != nil && (t%stride == 0 || t == nTrials) {
			progress(label, t, nTrials)
		}
	}

	return &RunResult{
		Algorithm:   label,
		Means:       arms.Means(),
		Records:     records,
		Summary:     Summarize(records, arms.Len()),
		Interrupted: cut != nil,
	}, cut
}
