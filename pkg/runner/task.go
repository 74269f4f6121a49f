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

package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/kadirpekel/steadfast/pkg/config"
	"github.com/kadirpekel/steadfast/pkg/config/provider"
	"github.com/kadirpekel/steadfast/pkg/recovery"
)

// Task is a named sequence of shell steps loaded from YAML.
//
// Example:
//
//	name: release
//	description: Build and publish
//	steps:
//	  - name: test
//	    run: go test ./...
//	  - name: upload
//	    run: ./scripts/upload.sh
//	    retry: api
//	    timeout: 2m
type Task struct {
	Name        string `yaml:"name" json:"name" jsonschema:"required"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Workspace overrides the configured workspace for this task.
	Workspace string `yaml:"workspace,omitempty" json:"workspace,omitempty"`

	Steps []Step `yaml:"steps" json:"steps" jsonschema:"required,minItems=1"`
}

// Step is one command of a Task.
type Step struct {
	Name string `yaml:"name" json:"name"`
	Run  string `yaml:"run" json:"run" jsonschema:"required"`

	// Retry names the retry preset. Empty uses the runner's default strategy.
	Retry string `yaml:"retry,omitempty" json:"retry,omitempty" jsonschema:"enum=default,enum=api,enum=browser,enum=filesystem,enum=quick"`

	// Timeout bounds a single attempt. Zero means no limit.
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	// Dir is the working directory, relative to the workspace.
	Dir string `yaml:"dir,omitempty" json:"dir,omitempty"`

	// Env adds variables to the command environment.
	Env map[string]string `yaml:"env,omitempty" json:"env,omitempty"`

	// ContinueOnError records the failure and moves on to the next step.
	ContinueOnError bool `yaml:"continue_on_error,omitempty" json:"continue_on_error,omitempty"`
}

// LoadTask reads and validates a task file through a file provider.
func LoadTask(ctx context.Context, path string) (*Task, error) {
	p, err := provider.New(provider.ProviderConfig{Type: provider.TypeFile, Path: path})
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}
	defer p.Close()

	data, err := p.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read task file: %w", err)
	}
	task, err := ParseTask(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return task, nil
}

// ParseTask decodes and validates a YAML or JSON task. Environment
// references in string values are expanded, ${VAR:-default} included.
func ParseTask(data []byte) (*Task, error) {
	var task Task
	if err := config.Decode(data, &task, config.CheckField[Step]("retry", config.CheckPreset)); err != nil {
		return nil, fmt.Errorf("failed to parse task: %w", err)
	}
	task.SetDefaults()
	if err := task.Validate(); err != nil {
		return nil, err
	}
	return &task, nil
}

// SetDefaults names unnamed steps after their position.
func (t *Task) SetDefaults() {
	for i := range t.Steps {
		if t.Steps[i].Name == "" {
			t.Steps[i].Name = fmt.Sprintf("step-%d", i+1)
		}
	}
}

// Validate checks the task for errors.
func (t *Task) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("task name is required")
	}
	if len(t.Steps) == 0 {
		return fmt.Errorf("task %q has no steps", t.Name)
	}
	seen := make(map[string]bool, len(t.Steps))
	for i, s := range t.Steps {
		if seen[s.Name] {
			return fmt.Errorf("steps[%d]: duplicate step name %q", i, s.Name)
		}
		seen[s.Name] = true
		if s.Run == "" {
			return fmt.Errorf("steps[%d] %q: run is required", i, s.Name)
		}
		if s.Timeout < 0 {
			return fmt.Errorf("steps[%d] %q: timeout must be non-negative", i, s.Name)
		}
		if s.Retry != "" {
			if _, err := recovery.Preset(s.Retry); err != nil {
				return fmt.Errorf("steps[%d] %q: %w", i, s.Name, err)
			}
		}
	}
	return nil
}

// StepNames returns the step names in order.
func (t *Task) StepNames() []string {
	names := make([]string, len(t.Steps))
	for i, s := range t.Steps {
		names[i] = s.Name
	}
	return names
}
