// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package compare tests whether two bandit runs differ.
//
// Runs reduces a pair of RunResults to a Report: Welch's t-test on the
// per-trial series, a confidence interval on the mean difference, and
// Cohen's d. The lower-level functions work on plain float64 slices.
//
// Example:
//
//	cmp, _ := runner.Compare(ctx, 20000, eg, ts)
//	report, err := compare.Runs(cmp.Results[0], cmp.Results[1], compare.DefaultOptions())
//	if err == nil && report.Significant() {
//	    fmt.Println("winner:", report.Winner)
//	}
package compare
