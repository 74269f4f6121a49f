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

// Package tool defines the tools an agent can invoke between reasoning
// steps, and a collection that dispatches calls to them by name.
package tool

import (
	"context"
	"strings"
)

// Tool is a named capability with a JSON-schema parameter description.
type Tool interface {
	// Name returns the unique name of the tool.
	Name() string

	// Description tells the model when to use the tool.
	Description() string

	// Parameters returns the JSON schema of the arguments.
	Parameters() map[string]any

	// Execute runs the tool with decoded arguments.
	Execute(ctx context.Context, args map[string]any) (*Result, error)
}

// Result is the outcome of a tool call.
type Result struct {
	Output      string `json:"output,omitempty"`
	Error       string `json:"error,omitempty"`
	Base64Image string `json:"base64_image,omitempty"`
	System      string `json:"system,omitempty"`
}

// Success creates a result carrying output.
func Success(output string) *Result {
	return &Result{Output: output}
}

// Failure creates a result carrying an error message.
func Failure(msg string) *Result {
	return &Result{Error: msg}
}

// Failed reports whether the result is an error.
func (r *Result) Failed() bool {
	return r != nil && r.Error != ""
}

// String renders the result as observed by the model.
func (r *Result) String() string {
	if r == nil {
		return ""
	}
	if r.Error != "" {
		return "Error: " + r.Error
	}
	return r.Output
}

// Special tools end the agent loop when called.
var specialTools = []string{TerminateName}

// IsSpecial reports whether name is a loop-ending tool, ignoring case.
func IsSpecial(name string) bool {
	for _, special := range specialTools {
		if strings.EqualFold(name, special) {
			return true
		}
	}
	return false
}
