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

package main

import (
	"errors"
	"strings"

	"github.com/invopop/jsonschema"

	"github.com/kadirpekel/steadfast/pkg/config"
	"github.com/kadirpekel/steadfast/pkg/runner"
)

func configSchema() *jsonschema.Schema {
	return config.Schema()
}

func taskSchema() *jsonschema.Schema {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema := reflector.Reflect(&runner.Task{})
	schema.Title = "Steadfast Task Schema"
	schema.Version = "http://json-schema.org/draft-07/schema#"
	return schema
}

// diagnosedError turns CLI words into an error for classification.
func diagnosedError(words []string) error {
	return errors.New(strings.Join(words, " "))
}
