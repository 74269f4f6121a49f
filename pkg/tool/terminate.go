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

package tool

import (
	"context"
	"fmt"
)

// TerminateName is the name of the terminate tool.
const TerminateName = "terminate"

const terminateDescription = `Terminate the interaction when the request is met OR if the assistant cannot proceed further with the task.
When you have finished all the tasks, call this tool to end the work.`

type terminateArgs struct {
	Status string `json:"status" jsonschema:"required,description=The finish status of the interaction.,enum=success,enum=failure"`
}

// Terminate ends the interaction with a status.
type Terminate struct{}

// NewTerminate creates the terminate tool.
func NewTerminate() *Terminate {
	return &Terminate{}
}

// Name implements Tool.
func (*Terminate) Name() string { return TerminateName }

// Description implements Tool.
func (*Terminate) Description() string { return terminateDescription }

// Parameters implements Tool.
func (*Terminate) Parameters() map[string]any { return SchemaFor[terminateArgs]() }

// Execute implements Tool.
func (*Terminate) Execute(_ context.Context, args map[string]any) (*Result, error) {
	var a terminateArgs
	if err := DecodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Status == "" {
		a.Status = "success"
	}
	return Success(fmt.Sprintf("The interaction has been completed with status: %s", a.Status)), nil
}
