// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package visualize

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/AleutianAI/banditlab/services/bandit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func fixedRun(alg string, n int) *bandit.RunResult {
	records := make([]bandit.TrialRecord, n)
	for i := range records {
		records[i] = bandit.TrialRecord{
			Trial:     i + 1,
			Arm:       i % 2,
			Reward:    float64(i % 5),
			Regret:    float64(i % 2),
			Algorithm: alg,
		}
	}
	return &bandit.RunResult{Algorithm: alg, Records: records}
}

func TestLearningCurve(t *testing.T) {
	p, err := LearningCurve(10, fixedRun("A", 50), fixedRun("B", 5))
	require.NoError(t, err)
	assert.Contains(t, p.Title.Text, "window 10")
	assert.Equal(t, "Trial", p.X.Label.Text)

	var buf bytes.Buffer
	require.NoError(t, WritePNG(&buf, p, Config{}))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
}

func TestLearningCurve_Errors(t *testing.T) {
	_, err := LearningCurve(10)
	assert.ErrorIs(t, err, ErrNoResults)

	_, err = LearningCurve(10, nil, &bandit.RunResult{})
	assert.ErrorIs(t, err, ErrNoResults)

	_, err = LearningCurve(100, fixedRun("A", 20))
	assert.ErrorIs(t, err, ErrTooFewTrials)
}

func TestCumulativeCharts(t *testing.T) {
	for name, build := range map[string]func(...*bandit.RunResult) (*plot.Plot, error){
		"reward": CumulativeReward,
		"regret": CumulativeRegret,
	} {
		t.Run(name, func(t *testing.T) {
			p, err := build(fixedRun("A", 30), fixedRun("B", 30))
			require.NoError(t, err)
			assert.Contains(t, p.Y.Label.Text, "Total "+name)

			_, err = build()
			assert.ErrorIs(t, err, ErrNoResults)
		})
	}
}

func TestRenderAll(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "plots")
	cfg := Config{Window: 20}

	paths, err := RenderAll(dir, cfg, fixedRun("A", 100), fixedRun("B", 100))
	require.NoError(t, err)
	require.Len(t, paths, 3)

	for _, name := range []string{FileLearningCurve, FileCumulativeReward, FileCumulativeRegret} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.True(t, bytes.HasPrefix(data, pngMagic), name)
	}
}

func TestRenderAll_ShortRunsSkipLearningCurve(t *testing.T) {
	dir := t.TempDir()

	paths, err := RenderAll(dir, DefaultConfig(), fixedRun("A", 50))
	require.NoError(t, err)
	assert.Len(t, paths, 2)
	assert.NoFileExists(t, filepath.Join(dir, FileLearningCurve))

	_, err = RenderAll(dir, DefaultConfig())
	assert.ErrorIs(t, err, ErrNoResults)
}
