// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"io"

	"github.com/AleutianAI/banditlab/cmd/banditlab/config"
	"github.com/AleutianAI/banditlab/pkg/logging"
	"github.com/AleutianAI/banditlab/pkg/ux"
	"github.com/AleutianAI/banditlab/services/bandit/store"
)

// app carries state shared by every command: flags of the root command,
// the loaded config, the logger and the printer.
type app struct {
	stdout io.Writer
	stderr io.Writer

	configPath string
	initConfig bool
	logLevel   string
	logDir     string
	outputMode string

	cfg    config.BanditConfig
	logger *logging.Logger
	out    *ux.Printer
}

// setup loads config and builds the logger and printer.
func (a *app) setup() error {
	cfg, err := config.Load(a.configPath, a.initConfig)
	if err != nil {
		return err
	}
	a.cfg = cfg

	levelName := cfg.Logging.Level
	if a.logLevel != "" {
		levelName = a.logLevel
	}
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return usageErr("%v", err)
	}

	logDir := cfg.Logging.Dir
	if a.logDir != "" {
		logDir = a.logDir
	}

	_ = a.logger.Close()
	a.logger = logging.New(logging.Config{
		Level:   level,
		LogDir:  logDir,
		Service: "banditlab",
		JSON:    cfg.Logging.JSON,
		Output:  a.stderr,
	})

	mode := ux.Mode("")
	if a.outputMode != "" {
		mode = ux.ParseMode(a.outputMode)
	}
	a.out = ux.NewPrinter(a.stdout, mode)

	a.logger.Debug("config loaded", "path", a.configPath, "trials", cfg.Simulation.Trials)
	if path := a.logger.FilePath(); path != "" {
		a.logger.Info("writing logs to file", "path", path)
	}
	return nil
}

func (a *app) teardown() error {
	return a.logger.Close()
}

// storePath resolves the store location: flag, then config when enabled.
func (a *app) storePath(flag string) string {
	if flag != "" {
		return flag
	}
	if a.cfg.Store.Enabled {
		return a.cfg.Store.Path
	}
	return ""
}

// openStore opens the store at path. A path is required.
func (a *app) openStore(path string) (*store.Store, error) {
	if path == "" {
		return nil, usageErr("no store configured: pass --store or set %s", config.EnvStorePath)
	}
	cfg := store.DefaultConfig(path)
	cfg.Logger = a.logger.Slog().With("component", "store")
	st, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}
