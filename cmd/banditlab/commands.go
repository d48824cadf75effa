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
	"errors"
	"fmt"
	"io"

	"github.com/AleutianAI/banditlab/cmd/banditlab/config"
	"github.com/AleutianAI/banditlab/pkg/logging"
	"github.com/AleutianAI/banditlab/services/bandit"
	"github.com/spf13/cobra"
)

// errUsage marks errors caused by bad flags or arguments.
var errUsage = errors.New("usage error")

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage),
		errors.Is(err, config.ErrInvalidConfig),
		errors.Is(err, bandit.ErrInvalidConfiguration):
		return 2
	default:
		return 1
	}
}

func usageErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

// newRootCmd builds the command tree writing to stdout and stderr.
func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr, logger: logging.Nop()}

	root := &cobra.Command{
		Use:   "banditlab",
		Short: "Simulate and compare multi-armed bandit algorithms",
		Long: `banditlab plays Epsilon-Greedy and Thompson Sampling against a set of
Gaussian arms, reports reward and regret, and can keep projects and runs in
an embedded store for later comparison.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.teardown()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", config.DefaultPath(), "path to banditlab.yaml")
	pf.BoolVar(&a.initConfig, "init-config", false, "write a default config file when none exists")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	pf.StringVar(&a.logDir, "log-dir", "", "also write JSON logs to this directory")
	pf.StringVar(&a.outputMode, "output", "", "output style: rich, plain, machine (default: detect)")

	root.AddCommand(
		newRunCmd(a),
		newPlotCmd(a),
		newProjectsCmd(a),
		newRunsCmd(a),
	)

	return root
}
