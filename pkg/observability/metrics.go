// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/exemplar"
)

// Metrics records run metrics. A zero Metrics records nothing.
type Metrics struct {
	registry *prom.Registry
	provider *sdkmetric.MeterProvider

	trackersStarted  metric.Int64Counter
	trackersFinished metric.Int64Counter
	trackerDuration  metric.Float64Histogram
	activeTrackers   metric.Int64UpDownCounter
	stepsCompleted   metric.Int64Counter
	retries          metric.Int64Counter
}

// InitMetrics creates the meter provider backed by a Prometheus registry.
func InitMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{}, nil
	}

	registry := prom.NewRegistry()
	exporter, err := otelprom.New(
		otelprom.WithRegisterer(registry),
		otelprom.WithNamespace(cfg.Namespace),
		otelprom.WithoutScopeInfo(),
		otelprom.WithoutTargetInfo(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	// The Prometheus exporter exports up-down counters as gauges, which
	// cannot carry exemplars; a sampled span in ctx would fail every scrape.
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithExemplarFilter(exemplar.AlwaysOffFilter),
	)
	meter := provider.Meter("steadfast")
	m := &Metrics{registry: registry, provider: provider}

	if m.trackersStarted, err = meter.Int64Counter("trackers_started",
		metric.WithDescription("Trackers started")); err != nil {
		return nil, fmt.Errorf("failed to create trackers started counter: %w", err)
	}
	if m.trackersFinished, err = meter.Int64Counter("trackers_finished",
		metric.WithDescription("Trackers finished, by outcome")); err != nil {
		return nil, fmt.Errorf("failed to create trackers finished counter: %w", err)
	}
	if m.trackerDuration, err = meter.Float64Histogram("tracker_duration_seconds",
		metric.WithDescription("Tracker duration in seconds")); err != nil {
		return nil, fmt.Errorf("failed to create tracker duration histogram: %w", err)
	}
	if m.activeTrackers, err = meter.Int64UpDownCounter("active_trackers",
		metric.WithDescription("Trackers currently running")); err != nil {
		return nil, fmt.Errorf("failed to create active trackers gauge: %w", err)
	}
	if m.stepsCompleted, err = meter.Int64Counter("steps_completed",
		metric.WithDescription("Steps completed across trackers")); err != nil {
		return nil, fmt.Errorf("failed to create steps counter: %w", err)
	}
	if m.retries, err = meter.Int64Counter("retries",
		metric.WithDescription("Retry attempts, by error category")); err != nil {
		return nil, fmt.Errorf("failed to create retries counter: %w", err)
	}
	return m, nil
}

// Enabled reports whether metrics are being collected.
func (m *Metrics) Enabled() bool {
	return m != nil && m.registry != nil
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if !m.Enabled() {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// TrackerStarted records a started tracker.
func (m *Metrics) TrackerStarted(ctx context.Context) {
	if !m.Enabled() {
		return
	}
	m.trackersStarted.Add(ctx, 1)
	m.activeTrackers.Add(ctx, 1)
}

// TrackerFinished records a terminal tracker with outcome "completed" or
// "failed".
func (m *Metrics) TrackerFinished(ctx context.Context, outcome string, d time.Duration) {
	if !m.Enabled() {
		return
	}
	attrs := metric.WithAttributes(attribute.String(AttrOutcome, outcome))
	m.trackersFinished.Add(ctx, 1, attrs)
	m.trackerDuration.Record(ctx, d.Seconds(), attrs)
	m.activeTrackers.Add(ctx, -1)
}

// StepCompleted records a finished step.
func (m *Metrics) StepCompleted(ctx context.Context) {
	if !m.Enabled() {
		return
	}
	m.stepsCompleted.Add(ctx, 1)
}

// RetryRecorded records a retry of an error in category.
func (m *Metrics) RetryRecorded(ctx context.Context, category string) {
	if !m.Enabled() {
		return
	}
	m.retries.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrCategory, category)))
}

// Shutdown flushes and stops the meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil || m.provider == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}
