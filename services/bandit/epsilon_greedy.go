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

// EpsilonGreedy plays a random arm with probability epsilon = 1/t and the
// arm with the highest running sample mean otherwise.
//
// Thread Safety: Not safe for concurrent use.
type EpsilonGreedy struct {
	arms      *ArmSet
	src       Source
	epsilon   float64
	counts    []int
	estimates []float64
	last      *RunResult
}

// NewEpsilonGreedy creates the policy with all estimates at zero and
// epsilon at 1, the value for trial 1.
//
// Inputs:
//   - arms: The arm set to play.
//   - src: Randomness for exploration. Nil means an unseeded source.
//
// Outputs:
//   - *EpsilonGreedy: The policy.
//   - error: ErrNilArmSet when arms is nil.
func NewEpsilonGreedy(arms *ArmSet, src Source) (*EpsilonGreedy, error) {
	if arms == nil {
		return nil, ErrNilArmSet
	}
	if src == nil {
		src = NewUnseededSource()
	}
	return &EpsilonGreedy{
		arms:      arms,
		src:       src,
		epsilon:   1,
		counts:    make([]int, arms.Len()),
		estimates: make([]float64, arms.Len()),
	}, nil
}

func (e *EpsilonGreedy) Name() string {
	return LabelEpsilonGreedy
}

func (e *EpsilonGreedy) String() string {
	return fmt.Sprintf("EpsilonGreedy(epsilon=%.3f, arms=%d)", e.epsilon, e.arms.Len())
}

// StartTrial sets epsilon for trial t (1-based) to 1/t.
func (e *EpsilonGreedy) StartTrial(t int) {
	if t < 1 {
		t = 1
	}
	e.epsilon = 1 / float64(t)
}

func (e *EpsilonGreedy) beginTrial(t int) {
	e.StartTrial(t)
}

// Epsilon returns the current exploration probability.
func (e *EpsilonGreedy) Epsilon() float64 {
	return e.epsilon
}

// SelectArm chooses an arm without mutating any state.
func (e *EpsilonGreedy) SelectArm() int {
	if e.src.Float64() < e.epsilon {
		return e.src.IntN(e.arms.Len())
	}
	return argmax(e.estimates)
}

// Pull selects an arm and samples its reward.
func (e *EpsilonGreedy) Pull() (int, float64, error) {
	arm := e.SelectArm()
	reward, err := e.arms.Sample(arm)
	if err != nil {
		return 0, 0, err
	}
	return arm, reward, nil
}

// Update increments the arm's count and moves its estimate toward reward:
//
//	estimate += (reward - estimate) / count
//
// which keeps the estimate equal to the arithmetic mean of the arm's rewards.
func (e *EpsilonGreedy) Update(arm int, reward float64) error {
	if arm < 0 || arm >= len(e.counts) {
		return armError(arm, len(e.counts))
	}
	e.counts[arm]++
	e.estimates[arm] += (reward - e.estimates[arm]) / float64(e.counts[arm])
	return nil
}

// RunExperiment plays nTrials trials with the 1/t schedule.
//
// Outputs:
//   - *RunResult: One record per completed trial. Partial on cancellation.
//   - error: ErrInvalidTrials if nTrials <= 0, ErrNilPolicy on a nil
//     receiver, or the wrapped context error.
func (e *EpsilonGreedy) RunExperiment(ctx context.Context, nTrials int) (*RunResult, error) {
	if e == nil {
		return nil, ErrNilPolicy
	}
	result, err := runTrials(ctx, e, e.arms, LabelEpsilonGreedy, nTrials)
	if result != nil {
		e.last = result
	}
	return result, err
}

// Summarize returns the summary of the most recent run.
func (e *EpsilonGreedy) Summarize() Summary {
	if e == nil || e.last == nil {
		return Summary{}
	}
	return e.last.Summary
}

// Counts returns a copy of the per-arm pull counts.
func (e *EpsilonGreedy) Counts() []int {
	out := make([]int, len(e.counts))
	copy(out, e.counts)
	return out
}

// Estimates returns a copy of the per-arm running means.
func (e *EpsilonGreedy) Estimates() []float64 {
	out := make([]float64, len(e.estimates))
	copy(out, e.estimates)
	return out
}

// argmax returns the index of the largest value, lowest index on ties.
func argmax(values []float64) int {
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[best] {
			best = i
		}
	}
	return best
}

var _ Policy = (*EpsilonGreedy)(nil)
