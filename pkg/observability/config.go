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
	"fmt"
	"time"
)

// Config configures tracing, metrics and the observability HTTP server.
//
// Example YAML configuration:
//
//	observability:
//	  tracing:
//	    enabled: true
//	    exporter: stdout
//	  metrics:
//	    enabled: true
//	  server:
//	    enabled: true
//	    address: ":9464"
type Config struct {
	// Tracing configures OpenTelemetry tracing of trackers.
	Tracing TracingConfig `yaml:"tracing,omitempty" json:"tracing,omitempty"`

	// Metrics configures Prometheus metrics.
	Metrics MetricsConfig `yaml:"metrics,omitempty" json:"metrics,omitempty"`

	// Server exposes /metrics, /healthz and /progress over HTTP.
	Server ServerConfig `yaml:"server,omitempty" json:"server,omitempty"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	// Enabled turns on tracing.
	// Default: false
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// Exporter is "otlp" or "stdout".
	// Default: "otlp"
	Exporter string `yaml:"exporter,omitempty" json:"exporter,omitempty" jsonschema:"enum=otlp,enum=stdout,default=otlp"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`

	// SamplingRate is the fraction of traces sampled, 0 to 1.
	// Default: 1.0
	SamplingRate float64 `yaml:"sampling_rate,omitempty" json:"sampling_rate,omitempty" jsonschema:"minimum=0,maximum=1,default=1"`

	// ServiceName identifies this process in traces.
	// Default: "steadfast"
	ServiceName string `yaml:"service_name,omitempty" json:"service_name,omitempty"`

	// Insecure disables TLS for the OTLP connection.
	// Default: true
	Insecure *bool `yaml:"insecure,omitempty" json:"insecure,omitempty"`

	// Timeout for exporter operations.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	// Enabled turns on metrics collection.
	// Default: false
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// Endpoint is the path metrics are served on.
	// Default: "/metrics"
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`

	// Namespace prefixes all metric names.
	// Default: "steadfast"
	Namespace string `yaml:"namespace,omitempty" json:"namespace,omitempty"`
}

// ServerConfig configures the observability HTTP server.
type ServerConfig struct {
	// Enabled starts the server during a run.
	// Default: false
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// Address is the listen address.
	// Default: ":9464"
	Address string `yaml:"address,omitempty" json:"address,omitempty"`
}

// SetDefaults applies default values to Config.
func (c *Config) SetDefaults() {
	c.Tracing.SetDefaults()
	c.Metrics.SetDefaults()
	if c.Server.Address == "" {
		c.Server.Address = DefaultServerAddress
	}
}

// Validate checks the Config for errors.
func (c *Config) Validate() error {
	if err := c.Tracing.Validate(); err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	return nil
}

// SetDefaults applies default values to TracingConfig.
func (c *TracingConfig) SetDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = DefaultServiceName
	}
	if c.SamplingRate == 0 {
		c.SamplingRate = DefaultSamplingRate
	}
	if c.Exporter == "" {
		c.Exporter = ExporterOTLP
	}
	if c.Endpoint == "" {
		c.Endpoint = DefaultOTLPEndpoint
	}
	if c.Insecure == nil {
		insecure := true
		c.Insecure = &insecure
	}
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
}

// Validate checks TracingConfig for errors.
func (c *TracingConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.SamplingRate < 0 || c.SamplingRate > 1 {
		return fmt.Errorf("sampling_rate must be between 0 and 1, got %f", c.SamplingRate)
	}
	switch c.Exporter {
	case ExporterOTLP:
		if c.Endpoint == "" {
			return fmt.Errorf("endpoint is required for the otlp exporter")
		}
	case ExporterStdout:
	default:
		return fmt.Errorf("invalid exporter %q (valid: otlp, stdout)", c.Exporter)
	}
	return nil
}

// IsInsecure returns whether to use an insecure connection.
func (c *TracingConfig) IsInsecure() bool {
	return c.Insecure == nil || *c.Insecure
}

// SetDefaults applies default values to MetricsConfig.
func (c *MetricsConfig) SetDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = DefaultMetricsPath
	}
	if c.Namespace == "" {
		c.Namespace = DefaultServiceName
	}
}

// Validate checks MetricsConfig for errors.
func (c *MetricsConfig) Validate() error {
	if c.Enabled && c.Endpoint == "" {
		return fmt.Errorf("endpoint is required when metrics are enabled")
	}
	return nil
}
