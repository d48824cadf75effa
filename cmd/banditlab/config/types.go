// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads banditlab.yaml, applies BANDITLAB_* environment
// overrides and validates the result.
package config

import (
	"os"
	"path/filepath"
)

// Algorithm keys accepted in simulation.algorithms.
const (
	AlgorithmEpsilonGreedy    = "epsilon_greedy"
	AlgorithmThompsonSampling = "thompson_sampling"
)

// BanditConfig is the root of banditlab.yaml.
type BanditConfig struct {
	// Simulation: what to run when flags do not say otherwise
	Simulation SimulationConfig `yaml:"simulation"`

	// Store: embedded database for projects and runs
	Store StoreConfig `yaml:"store"`

	// Logging: console and file log settings
	Logging LoggingConfig `yaml:"logging"`

	// Output: where CSV, plots and metrics land
	Output OutputConfig `yaml:"output"`
}

type SimulationConfig struct {
	Means      []float64 `yaml:"means" validate:"required,min=1,max=1024"`
	Trials     int       `yaml:"trials" validate:"gt=0,lte=100000000"`
	Algorithms []string  `yaml:"algorithms" validate:"required,min=1,unique,dive,oneof=epsilon_greedy thompson_sampling"`

	// Seed makes runs reproducible. Nil means a fresh random seed per run.
	Seed *uint64 `yaml:"seed,omitempty"`
}

type StoreConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path" validate:"required_if=Enabled true"`
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Dir   string `yaml:"dir,omitempty"`
	JSON  bool   `yaml:"json"`
}

type OutputConfig struct {
	// CSV is the path of the trial CSV; empty disables it.
	CSV string `yaml:"csv,omitempty"`

	// PlotsDir receives the PNG charts; empty disables them.
	PlotsDir string `yaml:"plots_dir,omitempty"`

	// Window is the learning-curve rolling window.
	Window int `yaml:"window" validate:"gt=0"`

	// MetricsFile receives a Prometheus text-format snapshot.
	MetricsFile string `yaml:"metrics_file,omitempty"`
}

// DefaultConfig returns the settings of the reference experiment: four arms
// with means 1..4, 20000 trials, both algorithms, unseeded.
func DefaultConfig() BanditConfig {
	return BanditConfig{
		Simulation: SimulationConfig{
			Means:      []float64{1, 2, 3, 4},
			Trials:     20000,
			Algorithms: []string{AlgorithmEpsilonGreedy, AlgorithmThompsonSampling},
		},
		Store: StoreConfig{
			Enabled: false,
			Path:    filepath.Join(defaultHome(), "store"),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Output: OutputConfig{
			Window: 200,
		},
	}
}

// DefaultPath is ~/.banditlab/banditlab.yaml, or ./banditlab.yaml when the
// home directory is unknown.
func DefaultPath() string {
	return filepath.Join(defaultHome(), "banditlab.yaml")
}

func defaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".banditlab")
}
