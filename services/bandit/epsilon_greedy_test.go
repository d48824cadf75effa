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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

func TestEpsilonGreedy_Schedule(t *testing.T) {
	src := NewSource(11)
	eg := mustEpsilonGreedy(t, mustArms(t, []float64{1, 2, 3}, src), src)
	assert.Equal(t, 1.0, eg.Epsilon())

	prev := 2.0
	for trial := 1; trial <= 1000; trial++ {
		eg.StartTrial(trial)
		assert.Equal(t, 1/float64(trial), eg.Epsilon(), "trial %d", trial)
		assert.Less(t, eg.Epsilon(), prev)
		prev = eg.Epsilon()

		arm, reward, err := eg.Pull()
		require.NoError(t, err)
		require.NoError(t, eg.Update(arm, reward))
	}
}

func TestEpsilonGreedy_ExploitsLowestIndexOnTie(t *testing.T) {
	src := &scriptedSource{uniform: 0.99, intn: 2}
	eg := mustEpsilonGreedy(t, mustArms(t, []float64{1, 2, 3}, src), src)
	eg.StartTrial(2) // epsilon 0.5, u = 0.99 exploits

	assert.Equal(t, 0, eg.SelectArm())

	require.NoError(t, eg.Update(2, 5))
	require.NoError(t, eg.Update(1, 5))
	assert.Equal(t, 1, eg.SelectArm())
}

func TestEpsilonGreedy_ExploresBelowEpsilon(t *testing.T) {
	src := &scriptedSource{uniform: 0.2, intn: 2}
	eg := mustEpsilonGreedy(t, mustArms(t, []float64{1, 2, 3}, src), src)
	require.NoError(t, eg.Update(0, 10))

	eg.StartTrial(4) // epsilon 0.25 > 0.2
	assert.Equal(t, 2, eg.SelectArm())

	eg.StartTrial(5) // epsilon 0.2, not strictly greater
	assert.Equal(t, 0, eg.SelectArm())
}

func TestEpsilonGreedy_IncrementalMeanIdentity(t *testing.T) {
	src := NewSource(5)
	eg := mustEpsilonGreedy(t, mustArms(t, []float64{0.5, 1.5, -1}, src), src)
	observed := make([][]float64, 3)

	for trial := 1; trial <= 3000; trial++ {
		eg.StartTrial(trial)
		arm, reward, err := eg.Pull()
		require.NoError(t, err)
		require.NoError(t, eg.Update(arm, reward))
		observed[arm] = append(observed[arm], reward)

		est := eg.Estimates()
		for i, rewards := range observed {
			if len(rewards) == 0 {
				assert.Zero(t, est[i])
				continue
			}
			assert.InDelta(t, stat.Mean(rewards, nil), est[i], 1e-9, "arm %d trial %d", i, trial)
		}
	}
}

func TestEpsilonGreedy_CountsMatchTrials(t *testing.T) {
	src := NewSource(8)
	eg := mustEpsilonGreedy(t, mustArms(t, []float64{1, 2, 3, 4}, src), src)

	result, err := eg.RunExperiment(context.Background(), 2500)
	require.NoError(t, err)

	total := 0
	for _, c := range eg.Counts() {
		total += c
	}
	assert.Equal(t, 2500, total)
	assert.Len(t, result.Records, 2500)
	assert.Equal(t, eg.Counts(), result.Summary.ArmCounts)
	assert.Equal(t, result.Summary, eg.Summarize())
	assert.Equal(t, 1/2500.0, eg.Epsilon())
}

func TestEpsilonGreedy_UpdateOutOfRange(t *testing.T) {
	src := NewSource(1)
	eg := mustEpsilonGreedy(t, mustArms(t, []float64{1}, src), src)

	assert.ErrorIs(t, eg.Update(1, 0), ErrArmOutOfRange)
	assert.ErrorIs(t, eg.Update(-1, 0), ErrArmOutOfRange)
	assert.Equal(t, []int{0}, eg.Counts())
}

func TestEpsilonGreedy_SummarizeBeforeRun(t *testing.T) {
	src := NewSource(1)
	eg := mustEpsilonGreedy(t, mustArms(t, []float64{1}, src), src)
	assert.Equal(t, Summary{}, eg.Summarize())
	assert.Contains(t, eg.String(), "arms=1")
}
