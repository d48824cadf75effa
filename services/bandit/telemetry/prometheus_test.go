// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AleutianAI/banditlab/services/bandit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSink(t *testing.T) (*PrometheusSink, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	cfg := DefaultPrometheusConfig()
	cfg.Registry = reg
	sink, err := NewPrometheusSink(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sink.Close() })
	return sink, reg
}

func sampleResult(interrupted bool) *bandit.RunResult {
	records := []bandit.TrialRecord{
		{Trial: 1, Arm: 0, Reward: 0.5, Regret: 2, Algorithm: bandit.LabelThompsonSampling},
		{Trial: 2, Arm: 2, Reward: 3.5, Regret: 0, Algorithm: bandit.LabelThompsonSampling},
		{Trial: 3, Arm: 2, Reward: 2.5, Regret: 0, Algorithm: bandit.LabelThompsonSampling},
	}
	return &bandit.RunResult{
		Algorithm:   bandit.LabelThompsonSampling,
		Means:       []float64{1, 2, 3},
		Records:     records,
		Summary:     bandit.Summarize(records, 3),
		Interrupted: interrupted,
	}
}

// -----------------------------------------------------------------------------
// Configuration Tests
// -----------------------------------------------------------------------------

func TestDefaultPrometheusConfig(t *testing.T) {
	cfg := DefaultPrometheusConfig()
	assert.Equal(t, "banditlab", cfg.Namespace)
	assert.Equal(t, "bandit", cfg.Subsystem)
	assert.NotEmpty(t, cfg.RewardBuckets)
	assert.NoError(t, cfg.Validate())
}

func TestPrometheusConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*PrometheusConfig)
	}{
		{"empty namespace", func(c *PrometheusConfig) { c.Namespace = "" }},
		{"empty subsystem", func(c *PrometheusConfig) { c.Subsystem = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultPrometheusConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())

			_, err := NewPrometheusSink(cfg)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	_, err := NewPrometheusSink(nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

// -----------------------------------------------------------------------------
// RecordRun Tests
// -----------------------------------------------------------------------------

func TestPrometheusSink_RecordRun(t *testing.T) {
	sink, _ := newTestSink(t)
	res := sampleResult(false)

	require.NoError(t, sink.RecordRun(context.Background(), res))

	alg := bandit.LabelThompsonSampling
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.runsTotal.WithLabelValues(alg, "false")))
	assert.Equal(t, 3.0, testutil.ToFloat64(sink.trialsTotal.WithLabelValues(alg)))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.armPulls.WithLabelValues(alg, "0")))
	assert.Equal(t, 2.0, testutil.ToFloat64(sink.armPulls.WithLabelValues(alg, "2")))
	assert.InDelta(t, res.Summary.MeanReward, testutil.ToFloat64(sink.meanReward.WithLabelValues(alg)), 1e-12)
	assert.InDelta(t, res.Summary.MeanRegret, testutil.ToFloat64(sink.meanRegret.WithLabelValues(alg)), 1e-12)
	assert.InDelta(t, 2.0, testutil.ToFloat64(sink.totalRegret.WithLabelValues(alg)), 1e-12)

	// arm 1 was never pulled
	assert.Equal(t, 2, testutil.CollectAndCount(sink.armPulls))
	assert.Equal(t, 1, testutil.CollectAndCount(sink.rewards))
}

func TestPrometheusSink_RecordsInterruptedRuns(t *testing.T) {
	sink, _ := newTestSink(t)

	require.NoError(t, sink.RecordRun(context.Background(), sampleResult(true)))
	require.NoError(t, sink.RecordRun(context.Background(), sampleResult(false)))

	alg := bandit.LabelThompsonSampling
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.runsTotal.WithLabelValues(alg, "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.runsTotal.WithLabelValues(alg, "false")))
	assert.Equal(t, 6.0, testutil.ToFloat64(sink.trialsTotal.WithLabelValues(alg)))
}

func TestPrometheusSink_Errors(t *testing.T) {
	sink, _ := newTestSink(t)

	assert.ErrorIs(t, sink.RecordRun(context.Background(), nil), ErrNilResult)

	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close(), "close is idempotent")
	assert.ErrorIs(t, sink.RecordRun(context.Background(), sampleResult(false)), ErrSinkClosed)
}

func TestPrometheusSink_ArmLabelCardinality(t *testing.T) {
	reg := prometheus.NewRegistry()
	cfg := DefaultPrometheusConfig()
	cfg.Registry = reg
	cfg.MaxArmLabels = 2
	sink, err := NewPrometheusSink(cfg)
	require.NoError(t, err)
	defer sink.Close()

	require.NoError(t, sink.RecordRun(context.Background(), sampleResult(false)))
	assert.Equal(t, 2.0, testutil.ToFloat64(sink.armPulls.WithLabelValues(bandit.LabelThompsonSampling, "_other")))
}

func TestPrometheusSink_SharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	cfg := DefaultPrometheusConfig()
	cfg.Registry = reg

	first, err := NewPrometheusSink(cfg)
	require.NoError(t, err)
	second, err := NewPrometheusSink(cfg)
	require.NoError(t, err)

	require.NoError(t, first.RecordRun(context.Background(), sampleResult(false)))
	require.NoError(t, second.RecordRun(context.Background(), sampleResult(false)))

	assert.Equal(t, 2.0, testutil.ToFloat64(first.runsTotal.WithLabelValues(bandit.LabelThompsonSampling, "false")))
}

func TestPrometheusSink_AsRunnerRecorder(t *testing.T) {
	sink, _ := newTestSink(t)
	runner := bandit.NewRunner(
		bandit.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		bandit.WithRecorder(sink),
	)

	src := bandit.NewSource(3)
	arms, err := bandit.NewArmSet([]float64{1, 2}, src)
	require.NoError(t, err)

	policy, err := bandit.NewEpsilonGreedy(arms, src)
	require.NoError(t, err)

	_, err = runner.Run(context.Background(), policy, 40)
	require.NoError(t, err)

	assert.Equal(t, 40.0, testutil.ToFloat64(sink.trialsTotal.WithLabelValues(bandit.LabelEpsilonGreedy)))
}

// -----------------------------------------------------------------------------
// Textfile Tests
// -----------------------------------------------------------------------------

func TestWriteTextfile(t *testing.T) {
	sink, reg := newTestSink(t)
	require.NoError(t, sink.RecordRun(context.Background(), sampleResult(false)))

	path := filepath.Join(t.TempDir(), "bandit.prom")
	require.NoError(t, WriteTextfile(path, reg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.Contains(text, "banditlab_bandit_runs_total"))
	assert.True(t, strings.Contains(text, "banditlab_bandit_trial_reward_bucket"))
}

type registererOnly struct{ prometheus.Registerer }

func TestWriteTextfile_RequiresGatherer(t *testing.T) {
	err := WriteTextfile(filepath.Join(t.TempDir(), "x.prom"), registererOnly{prometheus.NewRegistry()})
	assert.ErrorIs(t, err, ErrNoGatherer)
}
