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

package config

import (
	"github.com/invopop/jsonschema"
)

// SchemaID identifies the generated configuration schema.
const SchemaID = "https://github.com/kadirpekel/steadfast/schemas/config.json"

// Schema returns the JSON Schema of the configuration file, with all
// definitions inlined.
func Schema() *jsonschema.Schema {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	schema := reflector.Reflect(&Config{})
	schema.ID = SchemaID
	schema.Title = "Steadfast Configuration Schema"
	schema.Description = "Configuration for steadfast task runs: retries, progress, checkpoints, history and observability"
	schema.Version = "http://json-schema.org/draft-07/schema#"
	schema.Examples = []any{
		map[string]any{
			"workspace": "./workspace",
			"retry":     map[string]any{"preset": "api"},
			"checkpoint": map[string]any{
				"max_checkpoints": 20,
			},
			"observability": map[string]any{
				"metrics": map[string]any{"enabled": true},
			},
		},
	}
	return schema
}
