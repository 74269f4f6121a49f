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

package history

import "fmt"

// DefaultRetentionDays is how long sessions are kept by Cleanup.
const DefaultRetentionDays = 30

// Config configures conversation history persistence.
//
// Example YAML configuration:
//
//	history:
//	  enabled: true
//	  retention_days: 30
//	  auto_cleanup: true
type Config struct {
	// Enabled turns session saving on.
	// Default: true
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty" jsonschema:"title=Enabled,default=true"`

	// Dir overrides the history directory.
	// Default: "<workspace>/history"
	Dir string `yaml:"dir,omitempty" json:"dir,omitempty" jsonschema:"title=Directory"`

	// RetentionDays is the age after which Cleanup removes sessions. Zero
	// or less disables cleanup.
	// Default: 30
	RetentionDays int `yaml:"retention_days,omitempty" json:"retention_days,omitempty" jsonschema:"title=Retention Days,default=30"`

	// AutoCleanup runs Cleanup after every save.
	// Default: false
	AutoCleanup bool `yaml:"auto_cleanup,omitempty" json:"auto_cleanup,omitempty" jsonschema:"title=Auto Cleanup"`
}

// SetDefaults applies default values.
func (c *Config) SetDefaults() {
	if c.Enabled == nil {
		enabled := true
		c.Enabled = &enabled
	}
	if c.RetentionDays == 0 {
		c.RetentionDays = DefaultRetentionDays
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.RetentionDays < 0 {
		return fmt.Errorf("retention_days must be non-negative")
	}
	return nil
}

// IsEnabled returns whether history is saved.
func (c *Config) IsEnabled() bool {
	return c == nil || c.Enabled == nil || *c.Enabled
}
