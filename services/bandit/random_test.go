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
	"testing"

	"github.com/stretchr/testify/assert"
)

func drawAll(src Source) []float64 {
	out := make([]float64, 0, 400)
	for i := 0; i < 100; i++ {
		out = append(out,
			src.Float64(),
			float64(src.IntN(7)),
			src.Normal(1, 1),
			src.Beta(2, 3),
		)
	}
	return out
}

func TestNewSource_SameSeedSameStream(t *testing.T) {
	assert.Equal(t, drawAll(NewSource(99)), drawAll(NewSource(99)))
}

func TestNewSource_DifferentSeedsDiverge(t *testing.T) {
	assert.NotEqual(t, drawAll(NewSource(1)), drawAll(NewSource(2)))
}

func TestSource_Ranges(t *testing.T) {
	src := NewSource(3)
	for i := 0; i < 1000; i++ {
		u := src.Float64()
		assert.GreaterOrEqual(t, u, 0.0)
		assert.Less(t, u, 1.0)

		k := src.IntN(4)
		assert.GreaterOrEqual(t, k, 0)
		assert.Less(t, k, 4)

		b := src.Beta(1, 1)
		assert.GreaterOrEqual(t, b, 0.0)
		assert.LessOrEqual(t, b, 1.0)
	}
}

func TestNewUnseededSource_Independent(t *testing.T) {
	assert.NotEqual(t, drawAll(NewUnseededSource()), drawAll(NewUnseededSource()))
}
