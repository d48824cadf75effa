// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/AleutianAI/banditlab/services/bandit"
	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := InMemoryConfig()
	cfg.Clock = func() time.Time { return epoch }
	s, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func fixtureRun(means []float64, arms []int, rewards []float64, interrupted bool) *bandit.RunResult {
	best := means[0]
	for _, m := range means {
		best = math.Max(best, m)
	}
	records := make([]bandit.TrialRecord, len(arms))
	for i, arm := range arms {
		records[i] = bandit.TrialRecord{
			Trial:     i + 1,
			Arm:       arm,
			Reward:    rewards[i],
			Regret:    best - means[arm],
			Algorithm: bandit.LabelEpsilonGreedy,
		}
	}
	return &bandit.RunResult{
		Algorithm:   bandit.LabelEpsilonGreedy,
		Means:       means,
		Records:     records,
		Summary:     bandit.Summarize(records, len(means)),
		Interrupted: interrupted,
	}
}

// -----------------------------------------------------------------------------
// Projects
// -----------------------------------------------------------------------------

func TestCreateProject(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p, err := s.CreateProject(ctx, "pricing", []float64{1, 2, 3})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, 3, p.NumberBandits)
	assert.Equal(t, epoch, p.CreatedAt)
	assert.Nil(t, p.OptimalArm)
	assert.Nil(t, p.LastAlgorithmRun)
	assert.Equal(t, 2, p.BestArm())

	got, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Means, got.Means)
	assert.Equal(t, "pricing", got.Description)

	arms, err := s.Arms(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, arms, 3)
	for i, a := range arms {
		assert.Equal(t, i, a.Index)
		assert.Equal(t, p.Means[i], a.Mean)
		assert.Zero(t, a.Trials)
	}
}

func TestCreateProject_Invalid(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		desc  string
		means []float64
	}{
		{"no description", "", []float64{1}},
		{"no arms", "x", nil},
		{"nan mean", "x", []float64{1, math.NaN()}},
		{"infinite mean", "x", []float64{math.Inf(1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CreateProject(ctx, tt.desc, tt.means)
			assert.ErrorIs(t, err, ErrInvalidProject)
		})
	}
}

func TestListProjects_CreationOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var ids []string
	for _, desc := range []string{"a", "b", "c"} {
		p, err := s.CreateProject(ctx, desc, []float64{1})
		require.NoError(t, err)
		ids = append(ids, p.ID)
	}

	list, err := s.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i, p := range list {
		assert.Equal(t, ids[i], p.ID)
	}
}

func TestNotFound(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.GetProject(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Arms(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.ListRuns(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteProject(ctx, "missing"), ErrNotFound)

	_, err = s.SaveRun(ctx, "missing", fixtureRun([]float64{1}, []int{0}, []float64{1}, false), time.Time{})
	assert.ErrorIs(t, err, ErrNotFound)
}

// -----------------------------------------------------------------------------
// Runs
// -----------------------------------------------------------------------------

func TestSaveRun_UpdatesArmsAndProject(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	means := []float64{1, 2, 3}

	p, err := s.CreateProject(ctx, "pricing", means)
	require.NoError(t, err)

	res := fixtureRun(means, []int{0, 2, 2, 1, 2}, []float64{1.5, 3.0, 2.0, 2.5, 4.0}, false)
	started := epoch.Add(-time.Minute)

	run, err := s.SaveRun(ctx, p.ID, res, started)
	require.NoError(t, err)
	assert.Equal(t, started, run.StartedAt)
	assert.Equal(t, epoch, run.FinishedAt)
	assert.Equal(t, res.Summary, run.Summary)
	assert.Len(t, run.Records, 5)

	got, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got.OptimalArm)
	assert.Equal(t, 2, *got.OptimalArm)
	require.NotNil(t, got.LastAlgorithmRun)
	assert.True(t, epoch.Equal(*got.LastAlgorithmRun))

	arms, err := s.Arms(ctx, p.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, arms[0].Trials)
	assert.Equal(t, 1, arms[0].Explored)
	assert.Equal(t, 1.5, arms[0].EstimatedMean)

	assert.Equal(t, 1, arms[1].Trials)
	assert.Equal(t, 1, arms[1].Explored)

	assert.Equal(t, 3, arms[2].Trials)
	assert.Zero(t, arms[2].Explored)
	assert.InDelta(t, 3.0, arms[2].EstimatedMean, 1e-12)
	assert.Equal(t, 4.0, arms[2].LastReward)
}

func TestSaveRun_AccumulatesAcrossRuns(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	means := []float64{0, 1}

	p, err := s.CreateProject(ctx, "two arms", means)
	require.NoError(t, err)

	_, err = s.SaveRun(ctx, p.ID, fixtureRun(means, []int{1, 1}, []float64{1, 3}, false), time.Time{})
	require.NoError(t, err)
	_, err = s.SaveRun(ctx, p.ID, fixtureRun(means, []int{1, 0, 0}, []float64{5, 0, 0}, true), time.Time{})
	require.NoError(t, err)

	arms, err := s.Arms(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, arms[1].Trials)
	assert.InDelta(t, 3.0, arms[1].EstimatedMean, 1e-12)
	assert.Equal(t, 2, arms[0].Trials)

	got, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, *got.OptimalArm, "latest run pulled arm 0 most")

	runs, err := s.ListRuns(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.False(t, runs[0].Interrupted)
	assert.True(t, runs[1].Interrupted)
	for _, r := range runs {
		assert.Nil(t, r.Records, "listing omits records")
	}
}

func TestSaveRun_Mismatch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p, err := s.CreateProject(ctx, "x", []float64{1, 2})
	require.NoError(t, err)

	_, err = s.SaveRun(ctx, p.ID, fixtureRun([]float64{1, 2, 3}, []int{0}, []float64{1}, false), time.Time{})
	assert.ErrorIs(t, err, ErrRunMismatch)

	_, err = s.SaveRun(ctx, p.ID, fixtureRun([]float64{1, 5}, []int{0}, []float64{1}, false), time.Time{})
	assert.ErrorIs(t, err, ErrRunMismatch)

	_, err = s.SaveRun(ctx, p.ID, nil, time.Time{})
	assert.ErrorIs(t, err, ErrRunMismatch)

	runs, err := s.ListRuns(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, runs, "failed saves leave nothing behind")
}

func TestGetRun_WithRecords(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	means := []float64{1, 2, 3, 4}

	p, err := s.CreateProject(ctx, "sim", means)
	require.NoError(t, err)

	src := bandit.NewSource(5)
	arms, err := bandit.NewArmSet(means, src)
	require.NoError(t, err)
	runner := bandit.NewRunner(bandit.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	policy, err := bandit.NewThompsonSampling(arms, src)
	require.NoError(t, err)
	res, err := runner.Run(ctx, policy, 500)
	require.NoError(t, err)

	saved, err := s.SaveRun(ctx, p.ID, res, time.Time{})
	require.NoError(t, err)

	got, err := s.GetRun(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ProjectID)
	assert.Equal(t, bandit.LabelThompsonSampling, got.Algorithm)
	assert.Equal(t, res.Records, got.Records)
	assert.Equal(t, res.Summary, got.Summary)
}

func countKeys(t *testing.T, s *Store, prefix []byte) int {
	t.Helper()
	var n int
	require.NoError(t, s.db.View(func(txn *badger.Txn) error {
		n = len(collectKeys(txn, prefix))
		return nil
	}))
	return n
}

func TestSaveRun_LongRunInMemory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	means := []float64{1, 2, 3, 4}
	const trials = 20000

	p, err := s.CreateProject(ctx, "long", means)
	require.NoError(t, err)

	src := bandit.NewSource(11)
	arms, err := bandit.NewArmSet(means, src)
	require.NoError(t, err)
	policy, err := bandit.NewEpsilonGreedy(arms, src)
	require.NoError(t, err)
	res, err := policy.RunExperiment(ctx, trials)
	require.NoError(t, err)

	saved, err := s.SaveRun(ctx, p.ID, res, time.Time{})
	require.NoError(t, err)
	wantChunks := (trials + recordChunkSize - 1) / recordChunkSize
	assert.Equal(t, wantChunks, countKeys(t, s, recordsPrefix(saved.ID)))

	got, err := s.GetRun(ctx, saved.ID)
	require.NoError(t, err)
	require.Len(t, got.Records, trials)
	assert.Equal(t, res.Records, got.Records)

	arms2, err := s.Arms(ctx, p.ID)
	require.NoError(t, err)
	total := 0
	for _, a := range arms2 {
		total += a.Trials
	}
	assert.Equal(t, trials, total)

	require.NoError(t, s.DeleteProject(ctx, p.ID))
	assert.Zero(t, countKeys(t, s, []byte(prefixRecords)))
	assert.Zero(t, countKeys(t, s, []byte(prefixRunIdx)))
}

func TestSaveRun_FailureLeavesNoRecords(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p, err := s.CreateProject(ctx, "pair", []float64{1, 2})
	require.NoError(t, err)

	_, err = s.SaveRun(ctx, p.ID, fixtureRun([]float64{1, 3}, []int{0, 1}, []float64{1, 3}, false), time.Time{})
	require.ErrorIs(t, err, ErrRunMismatch)
	_, err = s.SaveRun(ctx, "missing", fixtureRun([]float64{1, 2}, []int{0}, []float64{1}, false), time.Time{})
	require.ErrorIs(t, err, ErrNotFound)

	assert.Zero(t, countKeys(t, s, []byte(prefixRecords)))
}

func TestDeleteProject_Cascades(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	means := []float64{1, 2}

	keep, err := s.CreateProject(ctx, "keep", means)
	require.NoError(t, err)
	drop, err := s.CreateProject(ctx, "drop", means)
	require.NoError(t, err)

	kept, err := s.SaveRun(ctx, keep.ID, fixtureRun(means, []int{1}, []float64{2}, false), time.Time{})
	require.NoError(t, err)
	dropped, err := s.SaveRun(ctx, drop.ID, fixtureRun(means, []int{0}, []float64{1}, false), time.Time{})
	require.NoError(t, err)

	require.NoError(t, s.DeleteProject(ctx, drop.ID))

	_, err = s.GetProject(ctx, drop.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetRun(ctx, dropped.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetRun(ctx, kept.ID)
	assert.NoError(t, err)
	list, err := s.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, keep.ID, list[0].ID)
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

func TestOpen_Persistent(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	cfg := DefaultConfig(dir)
	cfg.SyncWrites = false
	cfg.GCInterval = time.Hour

	s, err := Open(cfg)
	require.NoError(t, err)
	p, err := s.CreateProject(ctx, "durable", []float64{1, 2})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(cfg)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "durable", got.Description)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestCancelledContext(t *testing.T) {
	s := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.CreateProject(ctx, "x", []float64{1})
	assert.ErrorIs(t, err, context.Canceled)
	_, err = s.ListProjects(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
