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
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// scriptedSource returns fixed values so selection logic can be pinned.
type scriptedSource struct {
	uniform float64
	intn    int
	normal  func(mean float64) float64
	beta    func(alpha, beta float64) float64
}

func (s *scriptedSource) Float64() float64 { return s.uniform }

func (s *scriptedSource) IntN(n int) int { return s.intn % n }

func (s *scriptedSource) Normal(mean, _ float64) float64 {
	if s.normal != nil {
		return s.normal(mean)
	}
	return mean
}

func (s *scriptedSource) Beta(alpha, beta float64) float64 {
	if s.beta != nil {
		return s.beta(alpha, beta)
	}
	return alpha / (alpha + beta)
}

// cancellingSource cancels its context after a fixed number of reward draws.
type cancellingSource struct {
	Source
	after  int
	draws  int
	cancel context.CancelFunc
}

func (s *cancellingSource) Normal(mean, stddev float64) float64 {
	s.draws++
	if s.draws == s.after {
		s.cancel()
	}
	return s.Source.Normal(mean, stddev)
}

// fakeRecorder keeps every run it is handed.
type fakeRecorder struct {
	mu   sync.Mutex
	runs []*RunResult
	err  error
}

func (f *fakeRecorder) RecordRun(_ context.Context, result *RunResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, result)
	return f.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustArms(t *testing.T, means []float64, src Source) *ArmSet {
	t.Helper()
	arms, err := NewArmSet(means, src)
	require.NoError(t, err)
	return arms
}

func mustEpsilonGreedy(t *testing.T, arms *ArmSet, src Source) *EpsilonGreedy {
	t.Helper()
	eg, err := NewEpsilonGreedy(arms, src)
	require.NoError(t, err)
	return eg
}

func mustThompsonSampling(t *testing.T, arms *ArmSet, src Source) *ThompsonSampling {
	t.Helper()
	ts, err := NewThompsonSampling(arms, src)
	require.NoError(t, err)
	return ts
}

// policyFactory builds a fresh policy over means with its own seeded source.
type policyFactory struct {
	name  string
	build func(t *testing.T, means []float64, seed uint64) Policy
}

var allPolicies = []policyFactory{
	{
		name: LabelEpsilonGreedy,
		build: func(t *testing.T, means []float64, seed uint64) Policy {
			src := NewSource(seed)
			return mustEpsilonGreedy(t, mustArms(t, means, src), src)
		},
	},
	{
		name: LabelThompsonSampling,
		build: func(t *testing.T, means []float64, seed uint64) Policy {
			src := NewSource(seed)
			return mustThompsonSampling(t, mustArms(t, means, src), src)
		},
	},
}
