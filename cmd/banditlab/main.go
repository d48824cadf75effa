// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command banditlab simulates and compares multi-armed bandit algorithms.
package main

import (
	"os"

	"github.com/AleutianAI/banditlab/pkg/ux"
)

func main() {
	root := newRootCmd(os.Stdout, os.Stderr)
	if err := root.Execute(); err != nil {
		ux.NewPrinter(os.Stderr, "").Error(err.Error())
		os.Exit(exitCode(err))
	}
}
