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

// Package observability exports progress and retry activity as
// OpenTelemetry traces and Prometheus metrics, and serves them over HTTP.
package observability

import (
	"context"
	"errors"
	"io"
	"sync"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Manager owns the tracer and meter providers.
type Manager struct {
	config Config
	output io.Writer

	mu             sync.RWMutex
	tracerProvider trace.TracerProvider
	metrics        *Metrics
}

// NewManager creates a Manager. Output receives stdout-exported spans.
func NewManager(cfg Config, output io.Writer) *Manager {
	cfg.SetDefaults()
	return &Manager{
		config:         cfg,
		output:         output,
		tracerProvider: noop.NewTracerProvider(),
		metrics:        &Metrics{},
	}
}

// Initialize sets up tracing and metrics per the configuration.
func (m *Manager) Initialize(ctx context.Context) error {
	if err := m.config.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tp, err := InitTracer(ctx, m.config.Tracing, m.output)
	if err != nil {
		return err
	}
	m.tracerProvider = tp

	metrics, err := InitMetrics(m.config.Metrics)
	if err != nil {
		return err
	}
	m.metrics = metrics
	return nil
}

// Config returns the effective configuration.
func (m *Manager) Config() Config {
	return m.config
}

// Tracer returns a named tracer.
func (m *Manager) Tracer(name string) trace.Tracer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tracerProvider.Tracer(name)
}

// Metrics returns the metrics recorder.
func (m *Manager) Metrics() *Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metrics
}

// Shutdown flushes exporters.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	if spt, ok := m.tracerProvider.(interface{ Shutdown(context.Context) error }); ok {
		errs = append(errs, spt.Shutdown(ctx))
	}
	errs = append(errs, m.metrics.Shutdown(ctx))
	return errors.Join(errs...)
}
