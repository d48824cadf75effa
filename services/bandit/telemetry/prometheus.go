// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry exports bandit runs as metrics and traces.
//
// Two recorders implement bandit.Recorder: PrometheusSink writes native
// Prometheus collectors and OTelSink writes OpenTelemetry instruments.
// Fanout attaches several to one Runner. Init builds the OpenTelemetry
// tracer and meter providers for the CLI. Batch callers that never serve
// /metrics can dump a registry with WriteTextfile.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/AleutianAI/banditlab/services/bandit"
	"github.com/prometheus/client_golang/prometheus"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrInvalidConfig is returned when the Prometheus configuration is invalid.
	ErrInvalidConfig = errors.New("invalid prometheus configuration")

	// ErrRegistrationFailed is returned when metric registration fails.
	ErrRegistrationFailed = errors.New("metric registration failed")

	// ErrSinkClosed is returned when recording after Close.
	ErrSinkClosed = errors.New("telemetry sink closed")

	// ErrNilResult is returned when RecordRun receives a nil result.
	ErrNilResult = errors.New("run result must not be nil")

	// ErrNoGatherer is returned by WriteTextfile when the registry cannot
	// be gathered.
	ErrNoGatherer = errors.New("registry does not implement prometheus.Gatherer")
)

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// PrometheusConfig configures the Prometheus sink.
//
// Thread Safety: Immutable after creation; safe for concurrent read access.
type PrometheusConfig struct {
	// Namespace is the metrics namespace. Required.
	Namespace string

	// Subsystem is the metrics subsystem. Required.
	Subsystem string

	// Registry is the Prometheus registry to use.
	// If nil, uses prometheus.DefaultRegisterer.
	Registry prometheus.Registerer

	// RewardBuckets defines histogram buckets for per-trial rewards.
	// If nil, uses default buckets.
	RewardBuckets []float64

	// MaxArmLabels caps the number of distinct arm label values.
	// Arms beyond the cap are reported as "_other". Default: 64.
	MaxArmLabels int
}

// DefaultPrometheusConfig returns a configuration with sensible defaults.
//
// Example:
//
//	config := telemetry.DefaultPrometheusConfig()
//	config.Registry = prometheus.NewRegistry()
//	sink, err := telemetry.NewPrometheusSink(config)
func DefaultPrometheusConfig() *PrometheusConfig {
	return &PrometheusConfig{
		Namespace:     "banditlab",
		Subsystem:     "bandit",
		RewardBuckets: prometheus.LinearBuckets(-2, 1, 10),
		MaxArmLabels:  64,
	}
}

// Validate checks that the configuration is valid.
func (c *PrometheusConfig) Validate() error {
	if c.Namespace == "" {
		return errors.New("namespace is required")
	}
	if c.Subsystem == "" {
		return errors.New("subsystem is required")
	}
	return nil
}

// -----------------------------------------------------------------------------
// Prometheus Sink
// -----------------------------------------------------------------------------

// PrometheusSink records finished bandit runs as Prometheus metrics.
//
// Description:
//
//	Every RecordRun call increments run, trial, and arm-pull counters,
//	observes each trial's reward into a histogram, and sets the latest
//	mean reward and regret gauges for the run's algorithm. Metrics are
//	registered on creation and unregistered on Close.
//
// Thread Safety: Safe for concurrent use.
type PrometheusSink struct {
	config   *PrometheusConfig
	registry prometheus.Registerer

	runsTotal   *prometheus.CounterVec
	trialsTotal *prometheus.CounterVec
	armPulls    *prometheus.CounterVec
	rewards     *prometheus.HistogramVec
	meanReward  *prometheus.GaugeVec
	meanRegret  *prometheus.GaugeVec
	totalRegret *prometheus.GaugeVec

	mu     sync.RWMutex
	closed bool

	collectors []prometheus.Collector
}

// NewPrometheusSink creates a new Prometheus sink.
//
// Inputs:
//   - config: Prometheus configuration. Must not be nil.
//
// Outputs:
//   - *PrometheusSink: The created sink. Never nil on success.
//   - error: Non-nil if configuration is invalid or registration fails.
//
// Assumptions:
//   - Collectors already registered under the same names are reused.
func NewPrometheusSink(config *PrometheusConfig) (*PrometheusSink, error) {
	if config == nil {
		return nil, ErrInvalidConfig
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}

	cfg := *config
	if cfg.RewardBuckets == nil {
		cfg.RewardBuckets = DefaultPrometheusConfig().RewardBuckets
	}
	if cfg.MaxArmLabels <= 0 {
		cfg.MaxArmLabels = DefaultPrometheusConfig().MaxArmLabels
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	sink := &PrometheusSink{
		config:   &cfg,
		registry: registry,
	}

	sink.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "runs_total",
			Help:      "Total simulation runs by algorithm and outcome",
		},
		[]string{"algorithm", "interrupted"},
	)

	sink.trialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "trials_total",
			Help:      "Total completed trials",
		},
		[]string{"algorithm"},
	)

	sink.armPulls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "arm_pulls_total",
			Help:      "Total pulls per arm",
		},
		[]string{"algorithm", "arm"},
	)

	sink.rewards = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "trial_reward",
			Help:      "Observed per-trial reward distribution",
			Buckets:   cfg.RewardBuckets,
		},
		[]string{"algorithm"},
	)

	sink.meanReward = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "mean_reward",
			Help:      "Mean reward of the most recent run",
		},
		[]string{"algorithm"},
	)

	sink.meanRegret = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "mean_regret",
			Help:      "Mean per-trial regret of the most recent run",
		},
		[]string{"algorithm"},
	)

	sink.totalRegret = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "total_regret",
			Help:      "Cumulative regret of the most recent run",
		},
		[]string{"algorithm"},
	)

	var err error
	if sink.runsTotal, err = register(registry, sink.runsTotal); err != nil {
		return nil, err
	}
	if sink.trialsTotal, err = register(registry, sink.trialsTotal); err != nil {
		return nil, err
	}
	if sink.armPulls, err = register(registry, sink.armPulls); err != nil {
		return nil, err
	}
	if sink.rewards, err = register(registry, sink.rewards); err != nil {
		return nil, err
	}
	if sink.meanReward, err = register(registry, sink.meanReward); err != nil {
		return nil, err
	}
	if sink.meanRegret, err = register(registry, sink.meanRegret); err != nil {
		return nil, err
	}
	if sink.totalRegret, err = register(registry, sink.totalRegret); err != nil {
		return nil, err
	}

	sink.collectors = []prometheus.Collector{
		sink.runsTotal,
		sink.trialsTotal,
		sink.armPulls,
		sink.rewards,
		sink.meanReward,
		sink.meanRegret,
		sink.totalRegret,
	}

	return sink, nil
}

// register adds c to reg. A collector already registered under the same
// descriptor is returned instead, so two sinks on one registry share series.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var alreadyErr prometheus.AlreadyRegisteredError
		if errors.As(err, &alreadyErr) {
			if existing, ok := alreadyErr.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, errors.Join(ErrRegistrationFailed, err)
	}
	return c, nil
}

// RecordRun records the metrics of one finished run.
//
// Inputs:
//   - ctx: Unused beyond satisfying bandit.Recorder.
//   - result: The run. Must not be nil. Interrupted runs are recorded too.
//
// Outputs:
//   - error: ErrNilResult or ErrSinkClosed.
//
// Thread Safety: Safe for concurrent use.
func (s *PrometheusSink) RecordRun(ctx context.Context, result *bandit.RunResult) error {
	if result == nil {
		return ErrNilResult
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}

	algorithm := result.Algorithm
	if algorithm == "" {
		algorithm = "unknown"
	}

	s.runsTotal.WithLabelValues(algorithm, strconv.FormatBool(result.Interrupted)).Inc()
	s.trialsTotal.WithLabelValues(algorithm).Add(float64(len(result.Records)))

	hist := s.rewards.WithLabelValues(algorithm)
	for _, rec := range result.Records {
		hist.Observe(rec.Reward)
	}

	for arm, count := range result.Summary.ArmCounts {
		if count == 0 {
			continue
		}
		s.armPulls.WithLabelValues(algorithm, s.armLabel(arm)).Add(float64(count))
	}

	s.meanReward.WithLabelValues(algorithm).Set(result.Summary.MeanReward)
	s.meanRegret.WithLabelValues(algorithm).Set(result.Summary.MeanRegret)
	s.totalRegret.WithLabelValues(algorithm).Set(result.Summary.TotalRegret)

	return nil
}

// armLabel bounds arm label cardinality.
func (s *PrometheusSink) armLabel(arm int) string {
	if arm >= s.config.MaxArmLabels {
		return "_other"
	}
	return strconv.Itoa(arm)
}

// Close unregisters all metrics. Idempotent.
func (s *PrometheusSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	for _, c := range s.collectors {
		s.registry.Unregister(c)
	}
	return nil
}

// WriteTextfile writes the registry in the text exposition format.
//
// Description:
//
//	Intended for node_exporter's textfile collector. The write is atomic:
//	prometheus writes to a temp file and renames it into place.
//
// Inputs:
//   - path: Destination file.
//   - registry: The registry to dump. Must implement prometheus.Gatherer.
func WriteTextfile(path string, registry prometheus.Registerer) error {
	gatherer, ok := registry.(prometheus.Gatherer)
	if !ok {
		return ErrNoGatherer
	}
	if err := prometheus.WriteToTextfile(path, gatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Verify interface compliance at compile time.
var _ bandit.Recorder = (*PrometheusSink)(nil)
