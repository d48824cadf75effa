// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/AleutianAI/banditlab/services/bandit"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Exporter names accepted by Config.
const (
	ExporterNone       = "none"
	ExporterStdout     = "stdout"
	ExporterPrometheus = "prometheus"
)

// ErrUnknownExporter is returned by Init for an unsupported exporter name.
var ErrUnknownExporter = errors.New("unknown telemetry exporter")

// -----------------------------------------------------------------------------
// Providers
// -----------------------------------------------------------------------------

// Config selects the OpenTelemetry exporters.
type Config struct {
	ServiceName    string
	ServiceVersion string

	// TraceExporter is "stdout" or "none".
	TraceExporter string

	// TraceWriter receives stdout-exported spans. Default: os.Stdout.
	TraceWriter io.Writer

	// MetricExporter is "prometheus", "stdout" or "none".
	MetricExporter string

	// MetricWriter receives stdout-exported metrics. Default: os.Stdout.
	MetricWriter io.Writer

	// Registerer receives the OpenTelemetry Prometheus bridge.
	// Default: prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
}

// DefaultConfig disables both exporters.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "banditlab",
		ServiceVersion: "0.1.0",
		TraceExporter:  ExporterNone,
		MetricExporter: ExporterNone,
	}
}

// Providers holds the configured tracer and meter providers.
//
// Disabled exporters yield no-op providers, so callers can always pass
// TracerProvider and MeterProvider on without nil checks.
type Providers struct {
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider

	shutdown []func(context.Context) error
}

// Shutdown flushes and stops every exporter. Stdout exporters write their
// buffered spans and the final metric collection here.
func (p *Providers) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range p.shutdown {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	p.shutdown = nil
	return errors.Join(errs...)
}

// Init builds tracer and meter providers from cfg.
//
// Description:
//
//	Providers are returned rather than installed globally; hand them to
//	bandit.WithTracerProvider and NewOTelSink. Shutdown must be called
//	on exit or stdout exporters lose their buffered data.
//
// Outputs:
//   - *Providers: Ready providers. Never nil on success.
//   - error: ErrUnknownExporter or an exporter construction failure.
func Init(ctx context.Context, cfg Config) (*Providers, error) {
	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
	)

	p := &Providers{
		TracerProvider: tracenoop.NewTracerProvider(),
		MeterProvider:  noop.NewMeterProvider(),
	}

	switch cfg.TraceExporter {
	case ExporterNone, "":
	case ExporterStdout:
		exp, err := stdouttrace.New(
			stdouttrace.WithWriter(writerOr(cfg.TraceWriter)),
			stdouttrace.WithPrettyPrint(),
		)
		if err != nil {
			return nil, fmt.Errorf("create trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exp),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.AlwaysSample()),
		)
		p.TracerProvider = tp
		p.shutdown = append(p.shutdown, tp.Shutdown)
	default:
		return nil, fmt.Errorf("%w: trace %q", ErrUnknownExporter, cfg.TraceExporter)
	}

	var reader sdkmetric.Reader
	switch cfg.MetricExporter {
	case ExporterNone, "":
	case ExporterStdout:
		exp, err := stdoutmetric.New(
			stdoutmetric.WithWriter(writerOr(cfg.MetricWriter)),
			stdoutmetric.WithPrettyPrint(),
		)
		if err != nil {
			_ = p.Shutdown(ctx)
			return nil, fmt.Errorf("create metric exporter: %w", err)
		}
		reader = sdkmetric.NewPeriodicReader(exp)
	case ExporterPrometheus:
		reg := cfg.Registerer
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		exp, err := promexporter.New(promexporter.WithRegisterer(reg))
		if err != nil {
			_ = p.Shutdown(ctx)
			return nil, fmt.Errorf("create prometheus bridge: %w", err)
		}
		reader = exp
	default:
		_ = p.Shutdown(ctx)
		return nil, fmt.Errorf("%w: metric %q", ErrUnknownExporter, cfg.MetricExporter)
	}

	if reader != nil {
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(reader),
		)
		p.MeterProvider = mp
		p.shutdown = append(p.shutdown, mp.Shutdown)
	}

	return p, nil
}

func writerOr(w io.Writer) io.Writer {
	if w == nil {
		return os.Stdout
	}
	return w
}

// -----------------------------------------------------------------------------
// OTelSink
// -----------------------------------------------------------------------------

const meterName = "banditlab/bandit"

// OTelSink records bandit runs as OpenTelemetry instruments.
//
// Instruments:
//
//	bandit.runs          counter, attrs algorithm and interrupted
//	bandit.trials        counter, attr algorithm
//	bandit.trial.reward  histogram of per-trial rewards
//	bandit.run.regret    histogram of per-run mean regret
//
// Thread Safety: Safe for concurrent use.
type OTelSink struct {
	runs    metric.Int64Counter
	trials  metric.Int64Counter
	rewards metric.Float64Histogram
	regret  metric.Float64Histogram
}

// NewOTelSink creates the instruments on mp.
func NewOTelSink(mp metric.MeterProvider) (*OTelSink, error) {
	if mp == nil {
		mp = noop.NewMeterProvider()
	}
	m := mp.Meter(meterName)

	runs, err := m.Int64Counter("bandit.runs", metric.WithDescription("Completed or interrupted simulation runs"))
	if err != nil {
		return nil, fmt.Errorf("%w: runs: %v", ErrRegistrationFailed, err)
	}
	trials, err := m.Int64Counter("bandit.trials", metric.WithDescription("Trials played"))
	if err != nil {
		return nil, fmt.Errorf("%w: trials: %v", ErrRegistrationFailed, err)
	}
	rewards, err := m.Float64Histogram("bandit.trial.reward", metric.WithDescription("Observed per-trial reward"))
	if err != nil {
		return nil, fmt.Errorf("%w: reward: %v", ErrRegistrationFailed, err)
	}
	regret, err := m.Float64Histogram("bandit.run.regret", metric.WithDescription("Mean per-trial regret of a run"))
	if err != nil {
		return nil, fmt.Errorf("%w: regret: %v", ErrRegistrationFailed, err)
	}

	return &OTelSink{runs: runs, trials: trials, rewards: rewards, regret: regret}, nil
}

// RecordRun implements bandit.Recorder.
func (s *OTelSink) RecordRun(ctx context.Context, result *bandit.RunResult) error {
	if result == nil {
		return ErrNilResult
	}
	alg := metric.WithAttributes(attribute.String("algorithm", result.Algorithm))

	s.runs.Add(ctx, 1, metric.WithAttributes(
		attribute.String("algorithm", result.Algorithm),
		attribute.Bool("interrupted", result.Interrupted),
	))
	s.trials.Add(ctx, int64(len(result.Records)), alg)
	for _, rec := range result.Records {
		s.rewards.Record(ctx, rec.Reward, alg)
	}
	if len(result.Records) > 0 {
		s.regret.Record(ctx, result.Summary.MeanRegret, alg)
	}
	return nil
}

var _ bandit.Recorder = (*OTelSink)(nil)

// -----------------------------------------------------------------------------
// Fanout
// -----------------------------------------------------------------------------

// Fanout forwards every run to each recorder in order. Nil entries are
// skipped. All recorders see the run even when one fails; the errors are
// joined.
type Fanout []bandit.Recorder

// RecordRun implements bandit.Recorder.
func (f Fanout) RecordRun(ctx context.Context, result *bandit.RunResult) error {
	var errs []error
	for _, rec := range f {
		if rec == nil {
			continue
		}
		if err := rec.RecordRun(ctx, result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ bandit.Recorder = Fanout(nil)
