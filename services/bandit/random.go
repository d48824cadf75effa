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
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// Source supplies every random draw a simulation makes.
//
// Description:
//
//	Policies and arm sets never touch ambient global randomness. Two runs
//	built on Sources with the same seed consume identical streams and
//	therefore produce identical trial records.
//
// Thread Safety: Implementations are NOT required to be safe for concurrent
// use. Give each run its own Source.
type Source interface {
	// Float64 returns a uniform value in [0, 1).
	Float64() float64

	// IntN returns a uniform integer in [0, n). n must be positive.
	IntN(n int) int

	// Normal returns a draw from N(mean, stddev²).
	Normal(mean, stddev float64) float64

	// Beta returns a draw from Beta(alpha, beta). Both must be positive.
	Beta(alpha, beta float64) float64
}

// pcgStream is a multiplier for deriving the second PCG word from the seed.
const pcgStream = 0x9e3779b97f4a7c15

// rngSource backs Source with a single PCG stream. The uniform helpers and
// the gonum distributions read from the same generator.
type rngSource struct {
	pcg *rand.PCG
	rng *rand.Rand
}

// NewSource returns a deterministic Source seeded with seed.
//
// Inputs:
//   - seed: Seed for the PCG generator.
//
// Outputs:
//   - Source: The seeded source. Never nil.
func NewSource(seed uint64) Source {
	pcg := rand.NewPCG(seed, seed^pcgStream)
	return &rngSource{
		pcg: pcg,
		rng: rand.New(pcg),
	}
}

// NewUnseededSource returns a Source seeded from the runtime's entropy.
// Every call yields an independent stream.
func NewUnseededSource() Source {
	return NewSource(rand.Uint64())
}

func (s *rngSource) Float64() float64 {
	return s.rng.Float64()
}

func (s *rngSource) IntN(n int) int {
	return s.rng.IntN(n)
}

func (s *rngSource) Normal(mean, stddev float64) float64 {
	return distuv.Normal{Mu: mean, Sigma: stddev, Src: s.pcg}.Rand()
}

func (s *rngSource) Beta(alpha, beta float64) float64 {
	return distuv.Beta{Alpha: alpha, Beta: beta, Src: s.pcg}.Rand()
}
