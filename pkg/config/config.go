// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the steadfast configuration file.
//
// Example:
//
//	workspace: ./workspace
//	logger:
//	  level: info
//	progress:
//	  style: auto
//	retry:
//	  preset: api
//	checkpoint:
//	  max_checkpoints: 20
//	history:
//	  retention_days: 14
package config

import (
	"fmt"
	"time"

	"github.com/kadirpekel/steadfast/pkg/checkpoint"
	"github.com/kadirpekel/steadfast/pkg/history"
	"github.com/kadirpekel/steadfast/pkg/observability"
	"github.com/kadirpekel/steadfast/pkg/progress/display"
	"github.com/kadirpekel/steadfast/pkg/recovery"
)

// DefaultWorkspace is the workspace directory when none is configured.
const DefaultWorkspace = "workspace"

// Config is the root configuration.
type Config struct {
	// Workspace holds checkpoints, history and the interrupted-state file.
	// Default: "workspace"
	Workspace string `yaml:"workspace,omitempty" json:"workspace,omitempty" jsonschema:"title=Workspace,default=workspace"`

	Logger        LoggerConfig         `yaml:"logger,omitempty" json:"logger,omitempty"`
	Progress      ProgressConfig       `yaml:"progress,omitempty" json:"progress,omitempty"`
	Retry         RetryConfig          `yaml:"retry,omitempty" json:"retry,omitempty"`
	Checkpoint    checkpoint.Config    `yaml:"checkpoint,omitempty" json:"checkpoint,omitempty"`
	Shutdown      ShutdownConfig       `yaml:"shutdown,omitempty" json:"shutdown,omitempty"`
	History       history.Config       `yaml:"history,omitempty" json:"history,omitempty"`
	Observability observability.Config `yaml:"observability,omitempty" json:"observability,omitempty"`

	// Database is required when the checkpoint backend is "sql".
	Database *DatabaseConfig `yaml:"database,omitempty" json:"database,omitempty"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults applies default values to every section.
func (c *Config) SetDefaults() {
	if c.Workspace == "" {
		c.Workspace = DefaultWorkspace
	}
	c.Logger.SetDefaults()
	c.Progress.SetDefaults()
	c.Retry.SetDefaults()
	c.Checkpoint.SetDefaults(c.Workspace)
	c.Shutdown.SetDefaults()
	c.History.SetDefaults()
	c.Observability.SetDefaults()
	if c.Database != nil {
		c.Database.SetDefaults()
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Logger.Validate(); err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	if err := c.Progress.Validate(); err != nil {
		return fmt.Errorf("progress: %w", err)
	}
	if err := c.Retry.Validate(); err != nil {
		return fmt.Errorf("retry: %w", err)
	}
	if err := c.Checkpoint.Validate(); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	if c.Checkpoint.Backend == checkpoint.BackendSQL && c.Database == nil {
		return fmt.Errorf("checkpoint: the sql backend requires a database section")
	}
	if err := c.History.Validate(); err != nil {
		return fmt.Errorf("history: %w", err)
	}
	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	if c.Database != nil {
		if err := c.Database.Validate(); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	return nil
}

// ProgressConfig configures progress rendering.
type ProgressConfig struct {
	// Enabled turns progress output on.
	// Default: true
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty" jsonschema:"default=true"`

	// Style is rich, simple, minimal or auto.
	// Default: auto
	Style string `yaml:"style,omitempty" json:"style,omitempty" jsonschema:"enum=auto,enum=rich,enum=simple,enum=minimal,default=auto"`

	// IntermediateResults shows step output blocks.
	// Default: true
	IntermediateResults *bool `yaml:"intermediate_results,omitempty" json:"intermediate_results,omitempty" jsonschema:"default=true"`

	// MaxResultLength truncates intermediate results.
	// Default: 500
	MaxResultLength int `yaml:"max_result_length,omitempty" json:"max_result_length,omitempty" jsonschema:"minimum=0,default=500"`
}

// SetDefaults applies default values to ProgressConfig.
func (c *ProgressConfig) SetDefaults() {
	if c.Enabled == nil {
		c.Enabled = boolPtr(true)
	}
	if c.Style == "" {
		c.Style = "auto"
	}
	if c.IntermediateResults == nil {
		c.IntermediateResults = boolPtr(true)
	}
	if c.MaxResultLength == 0 {
		c.MaxResultLength = 500
	}
}

// Validate checks ProgressConfig for errors.
func (c *ProgressConfig) Validate() error {
	if _, ok := display.ParseStyle(c.Style); !ok {
		return fmt.Errorf("invalid style %q (valid: auto, rich, simple, minimal)", c.Style)
	}
	if c.MaxResultLength < 0 {
		return fmt.Errorf("max_result_length must be non-negative")
	}
	return nil
}

// IsEnabled returns whether progress output is enabled.
func (c *ProgressConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// ShowIntermediateResults returns whether step output is rendered.
func (c *ProgressConfig) ShowIntermediateResults() bool {
	return c.IntermediateResults == nil || *c.IntermediateResults
}

// DisplayOptions converts the configuration into display options.
func (c *ProgressConfig) DisplayOptions() []display.Option {
	style, _ := display.ParseStyle(c.Style)
	opts := []display.Option{
		display.WithIntermediateResults(c.ShowIntermediateResults()),
		display.WithMaxResultLength(c.MaxResultLength),
	}
	if style != "" {
		opts = append(opts, display.WithStyle(style))
	}
	return opts
}

// RetryConfig selects the default retry strategy. Explicit fields override
// the preset.
type RetryConfig struct {
	// Preset is default, api, browser, filesystem or quick.
	// Default: "default"
	Preset string `yaml:"preset,omitempty" json:"preset,omitempty" jsonschema:"enum=default,enum=api,enum=browser,enum=filesystem,enum=quick,default=default"`

	MaxRetries      *int          `yaml:"max_retries,omitempty" json:"max_retries,omitempty" jsonschema:"minimum=0"`
	InitialDelay    time.Duration `yaml:"initial_delay,omitempty" json:"initial_delay,omitempty"`
	MaxDelay        time.Duration `yaml:"max_delay,omitempty" json:"max_delay,omitempty"`
	ExponentialBase float64       `yaml:"exponential_base,omitempty" json:"exponential_base,omitempty" jsonschema:"minimum=1"`
	Jitter          *bool         `yaml:"jitter,omitempty" json:"jitter,omitempty"`
}

// SetDefaults applies default values to RetryConfig.
func (c *RetryConfig) SetDefaults() {
	if c.Preset == "" {
		c.Preset = "default"
	}
}

// Validate checks RetryConfig for errors.
func (c *RetryConfig) Validate() error {
	s, err := c.Strategy()
	if err != nil {
		return err
	}
	return s.Validate()
}

// Strategy resolves the preset and applies overrides.
func (c *RetryConfig) Strategy() (recovery.Strategy, error) {
	s, err := recovery.Preset(c.Preset)
	if err != nil {
		return recovery.Strategy{}, err
	}
	if c.MaxRetries != nil {
		s.MaxRetries = *c.MaxRetries
	}
	if c.InitialDelay > 0 {
		s.InitialDelay = c.InitialDelay
	}
	if c.MaxDelay > 0 {
		s.MaxDelay = c.MaxDelay
	}
	if c.ExponentialBase > 0 {
		s.ExponentialBase = c.ExponentialBase
	}
	if c.Jitter != nil {
		s.Jitter = *c.Jitter
	}
	return s, nil
}

// ShutdownConfig configures interrupt handling.
type ShutdownConfig struct {
	// SaveState writes the interrupted-state file on interrupt.
	// Default: true
	SaveState *bool `yaml:"save_state,omitempty" json:"save_state,omitempty" jsonschema:"default=true"`
}

// SetDefaults applies default values to ShutdownConfig.
func (c *ShutdownConfig) SetDefaults() {
	if c.SaveState == nil {
		c.SaveState = boolPtr(true)
	}
}

// ShouldSaveState returns whether the interrupted state is written.
func (c *ShutdownConfig) ShouldSaveState() bool {
	return c.SaveState == nil || *c.SaveState
}

func boolPtr(v bool) *bool { return &v }
