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

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Recorder receives every finished run, e.g. a metrics sink.
type Recorder interface {
	RecordRun(ctx context.Context, result *RunResult) error
}

// -----------------------------------------------------------------------------
// Runner Options
// -----------------------------------------------------------------------------

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the structured logger. Nil is ignored.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRecorder attaches a Recorder that sees every finished run.
func WithRecorder(rec Recorder) RunnerOption {
	return func(r *Runner) {
		r.recorder = rec
	}
}

// WithTracerProvider sets the provider used for run spans.
// Default: the global provider.
func WithTracerProvider(tp trace.TracerProvider) RunnerOption {
	return func(r *Runner) {
		if tp != nil {
			r.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithProgress reports trial progress of every run to fn.
func WithProgress(fn ProgressFunc) RunnerOption {
	return func(r *Runner) {
		r.progress = fn
	}
}

const tracerName = "banditlab/bandit"

// -----------------------------------------------------------------------------
// Runner
// -----------------------------------------------------------------------------

// Runner gives every Policy the same execution contract.
//
// Description:
//
//	Runner validates the trial count, wraps the run in a span, logs start
//	and completion, and forwards the finished RunResult to the optional
//	Recorder. It keeps no per-run state; all learning state lives in the
//	policy.
//
// Thread Safety: Safe for concurrent use with distinct policies.
type Runner struct {
	logger   *slog.Logger
	recorder Recorder
	tracer   trace.Tracer
	progress ProgressFunc
}

// NewRunner creates a Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run plays nTrials trials of the policy.
//
// Inputs:
//   - ctx: Checked between trials. Cancellation yields a partial result.
//   - policy: The policy to drive. Must not be nil.
//   - nTrials: Number of trials. Must be positive.
//
// Outputs:
//   - *RunResult: The run. Non-nil alongside a context error.
//   - error: ErrNilPolicy, ErrInvalidTrials, a wrapped context error, or a
//     Recorder failure.
func (r *Runner) Run(ctx context.Context, policy Policy, nTrials int) (*RunResult, error) {
	if policy == nil {
		return nil, ErrNilPolicy
	}
	if nTrials <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTrials, nTrials)
	}

	ctx, span := r.tracer.Start(ctx, "bandit.Runner.Run",
		trace.WithAttributes(
			attribute.String("bandit.algorithm", policy.Name()),
			attribute.Int("bandit.trials", nTrials),
		),
	)
	defer span.End()

	logger := r.logger.With("algorithm", policy.Name())
	logger.Info("starting simulation", "trials", nTrials)
	start := time.Now()

	result, err := policy.RunExperiment(ContextWithProgress(ctx, r.progress), nTrials)
	if err != nil && result == nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("simulation failed", "error", err)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("bandit.completed_trials", result.Summary.Trials),
		attribute.Float64("bandit.mean_reward", result.Summary.MeanReward),
		attribute.Float64("bandit.total_regret", result.Summary.TotalRegret),
		attribute.Bool("bandit.interrupted", result.Interrupted),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "interrupted")
		logger.Warn("simulation interrupted",
			"completed_trials", result.Summary.Trials,
			"error", err,
		)
	} else {
		logger.Info("simulation complete",
			"duration_ms", time.Since(start).Milliseconds(),
			"mean_reward", result.Summary.MeanReward,
			"mean_regret", result.Summary.MeanRegret,
			"total_regret", result.Summary.TotalRegret,
		)
	}

	if r.recorder != nil {
		if recErr := r.recorder.RecordRun(ctx, result); recErr != nil {
			logger.Warn("recording run failed", "error", recErr)
			err = errors.Join(err, fmt.Errorf("record run: %w", recErr))
		}
	}

	return result, err
}

// -----------------------------------------------------------------------------
// Comparison
// -----------------------------------------------------------------------------

// Comparison holds the runs of several policies over the same arm means.
type Comparison struct {
	Results []*RunResult
}

// Best returns the run with the lowest mean regret, first on ties.
// Nil when the comparison is empty.
func (c *Comparison) Best() *RunResult {
	var best *RunResult
	for _, res := range c.Results {
		if best == nil || res.Summary.MeanRegret < best.Summary.MeanRegret {
			best = res
		}
	}
	return best
}

// Compare runs each policy for nTrials, one after another.
//
// Description:
//
//	Policies run sequentially in the order given. The first failure stops
//	the comparison; the runs completed before it are still returned.
func (r *Runner) Compare(ctx context.Context, nTrials int, policies ...Policy) (*Comparison, error) {
	cmp := &Comparison{Results: make([]*RunResult, 0, len(policies))}
	for _, p := range policies {
		res, err := r.Run(ctx, p, nTrials)
		if res != nil {
			cmp.Results = append(cmp.Results, res)
		}
		if err != nil {
			return cmp, err
		}
	}
	return cmp, nil
}
