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
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

func TestNewArmSet_Validation(t *testing.T) {
	tests := []struct {
		name  string
		means []float64
		want  error
	}{
		{"nil means", nil, ErrEmptyArmSet},
		{"empty means", []float64{}, ErrEmptyArmSet},
		{"NaN mean", []float64{1, math.NaN()}, ErrInvalidConfiguration},
		{"infinite mean", []float64{math.Inf(1)}, ErrInvalidConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			arms, err := NewArmSet(tt.means, NewSource(1))
			assert.Nil(t, arms)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, ErrInvalidConfiguration)
		})
	}
}

func TestArmSet_MeansAreImmutable(t *testing.T) {
	input := []float64{1, 2, 3}
	arms := mustArms(t, input, NewSource(1))

	input[0] = 100
	got := arms.Means()
	got[1] = 200

	assert.Equal(t, []float64{1, 2, 3}, arms.Means())
	assert.Equal(t, 3.0, arms.Best())
}

func TestArmSet_Regret(t *testing.T) {
	arms := mustArms(t, []float64{1, 4, 2.5}, NewSource(1))

	for arm, want := range []float64{3, 0, 1.5} {
		got, err := arms.Regret(arm)
		require.NoError(t, err)
		assert.InDelta(t, want, got, 1e-12)
		assert.GreaterOrEqual(t, got, 0.0)
	}
}

func TestArmSet_OutOfRange(t *testing.T) {
	arms := mustArms(t, []float64{1, 2}, NewSource(1))

	for _, arm := range []int{-1, 2, 99} {
		_, err := arms.Sample(arm)
		assert.True(t, errors.Is(err, ErrArmOutOfRange), "arm %d", arm)
		assert.True(t, errors.Is(err, ErrInvalidConfiguration), "arm %d", arm)

		_, err = arms.Regret(arm)
		assert.ErrorIs(t, err, ErrArmOutOfRange)

		_, err = arms.Mean(arm)
		assert.ErrorIs(t, err, ErrArmOutOfRange)
	}
}

func TestArmSet_SampleDistribution(t *testing.T) {
	arms := mustArms(t, []float64{-2, 3}, NewSource(7))

	const n = 20000
	draws := make([]float64, n)
	for i := range draws {
		r, err := arms.Sample(1)
		require.NoError(t, err)
		draws[i] = r
	}

	mean, std := stat.MeanStdDev(draws, nil)
	assert.InDelta(t, 3.0, mean, 0.05)
	assert.InDelta(t, RewardStdDev, std, 0.05)
}

func TestArmSet_NilSourceIsUnseeded(t *testing.T) {
	arms := mustArms(t, []float64{0}, nil)
	_, err := arms.Sample(0)
	assert.NoError(t, err)
}
