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

import "context"

// ProgressFunc observes a run in flight. done counts completed trials out
// of total; algorithm is the policy label.
//
// It is called from the trial loop, so it must return quickly.
type ProgressFunc func(algorithm string, done, total int)

// progressSteps is how many times a run reports progress at most.
const progressSteps = 100

type progressKey struct{}

// ContextWithProgress returns a context whose runs report progress to fn.
// The trial loop reports about every 1% of the run and always at the end.
func ContextWithProgress(ctx context.Context, fn ProgressFunc) context.Context {
	if fn == nil {
		return ctx
	}
	return context.WithValue(ctx, progressKey{}, fn)
}

func progressFrom(ctx context.Context) ProgressFunc {
	fn, _ := ctx.Value(progressKey{}).(ProgressFunc)
	return fn
}

// progressStride is the number of trials between reports.
func progressStride(total int) int {
	return max(total/progressSteps, 1)
}
