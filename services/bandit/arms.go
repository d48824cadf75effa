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
	"fmt"
	"math"
)

// RewardStdDev is the fixed standard deviation of every arm's reward.
const RewardStdDev = 1.0

// ArmSet holds the true reward means of K arms.
//
// Description:
//
//	Each arm rewards a draw from N(mean, 1). The means are fixed for the
//	lifetime of the set; the constructor copies its input and Means returns
//	a copy, so nothing outside the set can mutate them.
//
// Thread Safety: Not safe for concurrent use (the Source is shared).
type ArmSet struct {
	means []float64
	best  float64
	src   Source
}

// NewArmSet creates an arm set over the given true means.
//
// Inputs:
//   - means: True mean reward for each arm. Must be non-empty and finite.
//   - src: Randomness for reward draws. Nil means an unseeded source.
//
// Outputs:
//   - *ArmSet: The arm set. Nil on error.
//   - error: ErrEmptyArmSet or ErrInvalidConfiguration on bad means.
func NewArmSet(means []float64, src Source) (*ArmSet, error) {
	if len(means) == 0 {
		return nil, ErrEmptyArmSet
	}
	if src == nil {
		src = NewUnseededSource()
	}

	owned := make([]float64, len(means))
	best := math.Inf(-1)
	for i, m := range means {
		if math.IsNaN(m) || math.IsInf(m, 0) {
			return nil, fmt.Errorf("%w: arm %d has non-finite mean %v", ErrInvalidConfiguration, i, m)
		}
		owned[i] = m
		if m > best {
			best = m
		}
	}

	return &ArmSet{means: owned, best: best, src: src}, nil
}

// Len returns K, the number of arms.
func (a *ArmSet) Len() int {
	return len(a.means)
}

// Means returns a copy of the true means.
func (a *ArmSet) Means() []float64 {
	out := make([]float64, len(a.means))
	copy(out, a.means)
	return out
}

// Mean returns the true mean of one arm.
func (a *ArmSet) Mean(arm int) (float64, error) {
	if err := a.check(arm); err != nil {
		return 0, err
	}
	return a.means[arm], nil
}

// Best returns the largest true mean.
func (a *ArmSet) Best() float64 {
	return a.best
}

// Regret returns the gap between the best true mean and the arm's true mean.
// It is never negative.
func (a *ArmSet) Regret(arm int) (float64, error) {
	if err := a.check(arm); err != nil {
		return 0, err
	}
	return a.best - a.means[arm], nil
}

// Sample draws one reward from the arm's N(mean, 1) distribution.
func (a *ArmSet) Sample(arm int) (float64, error) {
	if err := a.check(arm); err != nil {
		return 0, err
	}
	return a.src.Normal(a.means[arm], RewardStdDev), nil
}

func (a *ArmSet) check(arm int) error {
	if arm < 0 || arm >= len(a.means) {
		return armError(arm, len(a.means))
	}
	return nil
}
