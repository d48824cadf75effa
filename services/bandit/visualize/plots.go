// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package visualize renders bandit runs as PNG line charts.
//
// Three charts are produced, one line per run:
//
//	learning_curve.png     rolling mean reward over a trailing window
//	cumulative_reward.png  running total of observed reward
//	cumulative_regret.png  running total of regret
//
// The series math lives in the bandit package (RollingMean, CumulativeSum);
// this package only lays the series out on gonum/plot canvases.
package visualize

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/AleutianAI/banditlab/services/bandit"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrNoResults is returned when there is nothing to plot.
	ErrNoResults = errors.New("no run results to plot")

	// ErrTooFewTrials is returned when no run is longer than the window.
	ErrTooFewTrials = errors.New("no run has enough trials for the rolling window")
)

// File names written by RenderAll.
const (
	FileLearningCurve    = "learning_curve.png"
	FileCumulativeReward = "cumulative_reward.png"
	FileCumulativeRegret = "cumulative_regret.png"
)

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// Config controls chart geometry.
type Config struct {
	// Width and Height of each image.
	Width  vg.Length
	Height vg.Length

	// Window is the rolling-mean window of the learning curve.
	Window int
}

// DefaultConfig returns 10x5 inch charts with a 200-trial window.
func DefaultConfig() Config {
	return Config{
		Width:  10 * vg.Inch,
		Height: 5 * vg.Inch,
		Window: 200,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Width <= 0 {
		c.Width = def.Width
	}
	if c.Height <= 0 {
		c.Height = def.Height
	}
	if c.Window <= 0 {
		c.Window = def.Window
	}
	return c
}

// -----------------------------------------------------------------------------
// Charts
// -----------------------------------------------------------------------------

// LearningCurve plots the rolling mean reward of each run.
//
// Description:
//
//	Point i of a line is the mean reward of trials i-window+1..i, so each
//	line starts at trial `window`. Runs shorter than the window are left
//	out of the chart.
//
// Outputs:
//   - *plot.Plot: The chart.
//   - error: ErrNoResults, ErrTooFewTrials, or a plotter error.
func LearningCurve(window int, results ...*bandit.RunResult) (*plot.Plot, error) {
	if window <= 0 {
		window = DefaultConfig().Window
	}
	runs := nonEmpty(results)
	if len(runs) == 0 {
		return nil, ErrNoResults
	}

	p := newChart(
		fmt.Sprintf("Learning curve (rolling mean reward, window %d)", window),
		"Trial", "Mean reward",
	)

	drawn := 0
	for i, res := range runs {
		rolling := bandit.RollingMean(res.Rewards(), window)
		if rolling == nil {
			continue
		}
		if err := addLine(p, i, res.Algorithm, rolling, window); err != nil {
			return nil, err
		}
		drawn++
	}
	if drawn == 0 {
		return nil, ErrTooFewTrials
	}
	return p, nil
}

// CumulativeReward plots the running total of observed reward.
func CumulativeReward(results ...*bandit.RunResult) (*plot.Plot, error) {
	return cumulative("Cumulative reward", "Total reward", results, (*bandit.RunResult).Rewards)
}

// CumulativeRegret plots the running total of regret.
func CumulativeRegret(results ...*bandit.RunResult) (*plot.Plot, error) {
	return cumulative("Cumulative regret", "Total regret", results, (*bandit.RunResult).Regrets)
}

func cumulative(title, yLabel string, results []*bandit.RunResult, values func(*bandit.RunResult) []float64) (*plot.Plot, error) {
	runs := nonEmpty(results)
	if len(runs) == 0 {
		return nil, ErrNoResults
	}

	p := newChart(title, "Trial", yLabel)
	for i, res := range runs {
		if err := addLine(p, i, res.Algorithm, bandit.CumulativeSum(values(res)), 1); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func newChart(title, xLabel, yLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.Legend.Top = true
	p.Add(plotter.NewGrid())
	return p
}

// addLine draws ys against trial numbers starting at firstTrial.
func addLine(p *plot.Plot, idx int, name string, ys []float64, firstTrial int) error {
	pts := make(plotter.XYs, len(ys))
	for i, y := range ys {
		pts[i].X = float64(firstTrial + i)
		pts[i].Y = y
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("plot %s: %w", name, err)
	}
	line.Color = plotutil.Color(idx)
	line.Width = vg.Points(1.5)

	p.Add(line)
	p.Legend.Add(name, line)
	return nil
}

func nonEmpty(results []*bandit.RunResult) []*bandit.RunResult {
	out := make([]*bandit.RunResult, 0, len(results))
	for _, res := range results {
		if res != nil && len(res.Records) > 0 {
			out = append(out, res)
		}
	}
	return out
}

// -----------------------------------------------------------------------------
// Output
// -----------------------------------------------------------------------------

// WritePNG encodes p as PNG to w.
func WritePNG(w io.Writer, p *plot.Plot, cfg Config) error {
	cfg = cfg.withDefaults()
	wt, err := p.WriterTo(cfg.Width, cfg.Height, "png")
	if err != nil {
		return fmt.Errorf("create png writer: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

func savePNG(path string, p *plot.Plot, cfg Config) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	if err := WritePNG(f, p, cfg); err != nil {
		f.Close()
		return fmt.Errorf("save %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

// RenderAll writes all three charts into dir.
//
// Description:
//
//	The directory is created when missing. A learning curve that cannot be
//	drawn because every run is shorter than the window is skipped; the
//	cumulative charts are always written.
//
// Outputs:
//   - []string: Paths of the files written.
//   - error: ErrNoResults, or a file or plotter error.
func RenderAll(dir string, cfg Config, results ...*bandit.RunResult) ([]string, error) {
	cfg = cfg.withDefaults()
	if len(nonEmpty(results)) == 0 {
		return nil, ErrNoResults
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create plot dir: %w", err)
	}

	var written []string

	learning, err := LearningCurve(cfg.Window, results...)
	switch {
	case errors.Is(err, ErrTooFewTrials):
	case err != nil:
		return nil, err
	default:
		path := filepath.Join(dir, FileLearningCurve)
		if err := savePNG(path, learning, cfg); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	charts := []struct {
		file  string
		build func(...*bandit.RunResult) (*plot.Plot, error)
	}{
		{FileCumulativeReward, CumulativeReward},
		{FileCumulativeRegret, CumulativeRegret},
	}
	for _, c := range charts {
		p, err := c.build(results...)
		if err != nil {
			return written, err
		}
		path := filepath.Join(dir, c.file)
		if err := savePNG(path, p, cfg); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	return written, nil
}
