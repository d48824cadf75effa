// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package bandit simulates multi-armed bandit policies against arms with
// known true means and records their trial-by-trial learning behaviour.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────────┐
//	│                            RUNNER                                │
//	├──────────────────────────────────────────────────────────────────┤
//	│                                                                  │
//	│   Runner.Run ──► Policy.RunExperiment ──► for t = 1..n:          │
//	│                        │                    select arm           │
//	│                        │                    ArmSet.Sample        │
//	│                        │                    update state         │
//	│                        │                    append TrialRecord   │
//	│                        ▼                                         │
//	│                    RunResult ──► Summarize ──► Recorder          │
//	│                                                                  │
//	└──────────────────────────────────────────────────────────────────┘
//
// # Components
//
//   - ArmSet: K true means, each arm rewards N(mean, 1).
//   - Source: injected randomness. Seed it to make runs reproducible.
//   - EpsilonGreedy: explores with probability 1/t, otherwise exploits the
//     running sample means.
//   - ThompsonSampling: draws one Beta sample per arm and plays the largest.
//   - Runner: a single execution contract for every Policy.
//   - Summarize: pure reduction of trial records into scalar summaries.
//
// # Usage
//
//	src := bandit.NewSource(42)
//	arms, err := bandit.NewArmSet([]float64{1, 2, 3, 4}, src)
//	if err != nil {
//	    return err
//	}
//	policy, err := bandit.NewEpsilonGreedy(arms, src)
//	if err != nil {
//	    return err
//	}
//	runner := bandit.NewRunner(bandit.WithLogger(logger))
//	result, err := runner.Run(ctx, policy, 20000)
//
// # Thompson Sampling Update Rule
//
// ThompsonSampling credits an arm with a success when the observed reward is
// positive and with a failure otherwise. Rewards are Gaussian, so this is a
// sign-based approximation rather than a conjugate update. The published
// comparison curves were produced with this rule and it is kept as is.
//
// # Thread Safety
//
// Policies and ArmSets are owned by a single run and are NOT safe for
// concurrent use. Two policies that share nothing (including their Source)
// may run on separate goroutines. Runner itself holds no per-run state.
package bandit
