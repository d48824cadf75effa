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
)

func TestThompsonSampling_UniformPrior(t *testing.T) {
	src := NewSource(1)
	ts := mustThompsonSampling(t, mustArms(t, []float64{1, 2, 3}, src), src)

	for arm := 0; arm < 3; arm++ {
		a, b, err := ts.Posterior(arm)
		require.NoError(t, err)
		assert.Equal(t, 1.0, a)
		assert.Equal(t, 1.0, b)
	}
}

func TestThompsonSampling_UpdateBySign(t *testing.T) {
	tests := []struct {
		name      string
		reward    float64
		wantAlpha float64
		wantBeta  float64
	}{
		{"positive reward is success", 0.1, 2, 1},
		{"zero reward is failure", 0, 1, 2},
		{"negative reward is failure", -3, 1, 2},
		{"large reward counts once", 1e6, 2, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := NewSource(1)
			ts := mustThompsonSampling(t, mustArms(t, []float64{0, 0}, src), src)

			require.NoError(t, ts.Update(1, tt.reward))

			a, b, err := ts.Posterior(1)
			require.NoError(t, err)
			assert.Equal(t, tt.wantAlpha, a)
			assert.Equal(t, tt.wantBeta, b)

			a0, b0, _ := ts.Posterior(0)
			assert.Equal(t, 1.0, a0)
			assert.Equal(t, 1.0, b0)
		})
	}
}

func TestThompsonSampling_SelectsLargestDraw(t *testing.T) {
	src := &scriptedSource{
		beta: func(alpha, beta float64) float64 { return alpha / (alpha + beta) },
	}
	ts := mustThompsonSampling(t, mustArms(t, []float64{1, 2, 3}, src), src)

	assert.Equal(t, 0, ts.SelectArm(), "ties go to the lowest index")

	require.NoError(t, ts.Update(2, 1))
	assert.Equal(t, 2, ts.SelectArm())

	require.NoError(t, ts.Update(2, -1))
	require.NoError(t, ts.Update(2, -1))
	assert.Equal(t, 0, ts.SelectArm())
}

func TestThompsonSampling_PosteriorCountsMatchPulls(t *testing.T) {
	src := NewSource(21)
	ts := mustThompsonSampling(t, mustArms(t, []float64{-0.5, 0.2, 1, 0}, src), src)

	prevA := []float64{1, 1, 1, 1}
	prevB := []float64{1, 1, 1, 1}
	pulls := make([]int, 4)

	for trial := 1; trial <= 2000; trial++ {
		arm, reward, err := ts.Pull()
		require.NoError(t, err)
		require.NoError(t, ts.Update(arm, reward))
		pulls[arm]++

		for i := 0; i < 4; i++ {
			a, b, err := ts.Posterior(i)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, a, prevA[i])
			assert.GreaterOrEqual(t, b, prevB[i])
			assert.GreaterOrEqual(t, a, 1.0)
			assert.GreaterOrEqual(t, b, 1.0)
			prevA[i], prevB[i] = a, b
		}
	}

	for i := 0; i < 4; i++ {
		a, b, _ := ts.Posterior(i)
		assert.Equal(t, float64(pulls[i]), a+b-2, "arm %d", i)
	}
}

func TestThompsonSampling_RunExperimentPosteriors(t *testing.T) {
	src := NewSource(4)
	ts := mustThompsonSampling(t, mustArms(t, []float64{1, 2, 3, 4}, src), src)

	result, err := ts.RunExperiment(context.Background(), 3000)
	require.NoError(t, err)
	require.Len(t, result.Records, 3000)

	for i, count := range result.Summary.ArmCounts {
		a, b, _ := ts.Posterior(i)
		assert.Equal(t, float64(count), a+b-2)
	}
	assert.Equal(t, result.Summary, ts.Summarize())
}

func TestThompsonSampling_PosteriorOutOfRange(t *testing.T) {
	src := NewSource(1)
	ts := mustThompsonSampling(t, mustArms(t, []float64{1}, src), src)

	_, _, err := ts.Posterior(1)
	assert.ErrorIs(t, err, ErrArmOutOfRange)
	assert.ErrorIs(t, ts.Update(5, 1), ErrInvalidConfiguration)
}
