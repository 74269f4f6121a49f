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

package checkpoint

import (
	"fmt"
	"path/filepath"
)

// Backend selects where checkpoints are persisted.
type Backend string

const (
	// BackendFile writes one JSON file per checkpoint.
	BackendFile Backend = "file"

	// BackendSQL stores checkpoints in the configured database.
	BackendSQL Backend = "sql"
)

// DefaultMaxCheckpoints is the index cap when none is configured.
const DefaultMaxCheckpoints = 10

// Config configures checkpoint behavior.
//
// Example YAML configuration:
//
//	checkpoint:
//	  enabled: true
//	  backend: file
//	  dir: workspace/checkpoints
//	  max_checkpoints: 10
type Config struct {
	// Enabled enables checkpointing.
	// Default: true
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty" jsonschema:"title=Enabled,default=true"`

	// Backend is "file" or "sql".
	// Default: "file"
	Backend Backend `yaml:"backend,omitempty" json:"backend,omitempty" jsonschema:"title=Backend,enum=file,enum=sql,default=file"`

	// Dir is the checkpoint directory for the file backend.
	// Default: "<workspace>/checkpoints"
	Dir string `yaml:"dir,omitempty" json:"dir,omitempty" jsonschema:"title=Directory"`

	// MaxCheckpoints caps how many checkpoints are kept; oldest go first.
	// Default: 10
	MaxCheckpoints int `yaml:"max_checkpoints,omitempty" json:"max_checkpoints,omitempty" jsonschema:"title=Max Checkpoints,minimum=1,default=10"`
}

// SetDefaults applies default values relative to the workspace directory.
func (c *Config) SetDefaults(workspace string) {
	if c.Enabled == nil {
		enabled := true
		c.Enabled = &enabled
	}
	if c.Backend == "" {
		c.Backend = BackendFile
	}
	if c.Dir == "" {
		if workspace == "" {
			workspace = "workspace"
		}
		c.Dir = filepath.Join(workspace, "checkpoints")
	}
	if c.MaxCheckpoints == 0 {
		c.MaxCheckpoints = DefaultMaxCheckpoints
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Backend != "" && c.Backend != BackendFile && c.Backend != BackendSQL {
		return fmt.Errorf("invalid checkpoint backend '%s' (valid: file, sql)", c.Backend)
	}
	if c.MaxCheckpoints < 0 {
		return fmt.Errorf("max_checkpoints must be non-negative")
	}
	return nil
}

// IsEnabled returns whether checkpointing is enabled.
func (c *Config) IsEnabled() bool {
	return c != nil && (c.Enabled == nil || *c.Enabled)
}
