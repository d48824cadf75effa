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

// ThompsonSampling keeps an independent Beta posterior per arm and plays
// the arm whose posterior draw is largest.
//
// Description:
//
//	Every arm starts at Beta(1, 1). After a pull, a positive reward adds
//	one to alpha and anything else adds one to beta. Rewards are Gaussian,
//	so the reward sign stands in for a Bernoulli outcome; the posterior is
//	biased relative to a Gaussian model and that bias is part of the
//	algorithm's observed convergence curve.
//
// Thread Safety: Not safe for concurrent use.
type ThompsonSampling struct {
	arms  *ArmSet
	src   Source
	alpha []float64
	beta  []float64
	draws []float64
	last  *RunResult
}

// NewThompsonSampling creates the policy with uniform Beta(1, 1) priors.
//
// Inputs:
//   - arms: The arm set to play.
//   - src: Randomness for posterior draws. Nil means an unseeded source.
//
// Outputs:
//   - *ThompsonSampling: The policy.
//   - error: ErrNilArmSet when arms is nil.
func NewThompsonSampling(arms *ArmSet, src Source) (*ThompsonSampling, error) {
	if arms == nil {
		return nil, ErrNilArmSet
	}
	if src == nil {
		src = NewUnseededSource()
	}
	k := arms.Len()
	t := &ThompsonSampling{
		arms:  arms,
		src:   src,
		alpha: make([]float64, k),
		beta:  make([]float64, k),
		draws: make([]float64, k),
	}
	for i := 0; i < k; i++ {
		t.alpha[i] = 1
		t.beta[i] = 1
	}
	return t, nil
}

func (t *ThompsonSampling) Name() string {
	return LabelThompsonSampling
}

func (t *ThompsonSampling) String() string {
	return fmt.Sprintf("ThompsonSampling(arms=%d)", t.arms.Len())
}

func (t *ThompsonSampling) beginTrial(int) {}

// SelectArm draws once from every posterior and returns the argmax.
func (t *ThompsonSampling) SelectArm() int {
	for i := range t.draws {
		t.draws[i] = t.src.Beta(t.alpha[i], t.beta[i])
	}
	return argmax(t.draws)
}

// Pull selects an arm and samples its reward.
func (t *ThompsonSampling) Pull() (int, float64, error) {
	arm := t.SelectArm()
	reward, err := t.arms.Sample(arm)
	if err != nil {
		return 0, 0, err
	}
	return arm, reward, nil
}

// Update credits a success when reward > 0 and a failure otherwise.
func (t *ThompsonSampling) Update(arm int, reward float64) error {
	if arm < 0 || arm >= len(t.alpha) {
		return armError(arm, len(t.alpha))
	}
	if reward > 0 {
		t.alpha[arm]++
	} else {
		t.beta[arm]++
	}
	return nil
}

// RunExperiment plays nTrials trials. See EpsilonGreedy.RunExperiment.
func (t *ThompsonSampling) RunExperiment(ctx context.Context, nTrials int) (*RunResult, error) {
	if t == nil {
		return nil, ErrNilPolicy
	}
	result, err := runTrials(ctx, t, t.arms, LabelThompsonSampling, nTrials)
	if result != nil {
		t.last = result
	}
	return result, err
}

// Summarize returns the summary of the most recent run.
func (t *ThompsonSampling) Summarize() Summary {
	if t == nil || t.last == nil {
		return Summary{}
	}
	return t.last.Summary
}

// Posterior returns the current Beta parameters of one arm.
func (t *ThompsonSampling) Posterior(arm int) (alpha, beta float64, err error) {
	if arm < 0 || arm >= len(t.alpha) {
		return 0, 0, armError(arm, len(t.alpha))
	}
	return t.alpha[arm], t.beta[arm], nil
}

var _ Policy = (*ThompsonSampling)(nil)
