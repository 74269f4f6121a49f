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

package shutdown

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kadirpekel/steadfast/pkg/progress"
)

// StateFileName is the interrupted-state file inside a workspace.
const StateFileName = ".interrupted_state.json"

// DefaultWorkspace is used when no workspace directory is configured.
const DefaultWorkspace = "workspace"

// State is the snapshot written when a run is interrupted.
type State struct {
	InterruptedAt time.Time      `json:"interrupted_at"`
	Description   string         `json:"description"`
	CurrentStep   int            `json:"current_step"`
	TotalSteps    *int           `json:"total_steps"`
	StartTime     time.Time      `json:"start_time"`
	Duration      float64        `json:"duration"`
	Metadata      map[string]any `json:"metadata"`
	LastMessage   string         `json:"last_message"`
}

// Snapshot captures the resumable parts of tracker at time now.
func Snapshot(tracker *progress.Tracker, now time.Time) State {
	info := tracker.Info()
	md := info.Metadata
	if md == nil {
		md = map[string]any{}
	}
	return State{
		InterruptedAt: now,
		Description:   info.Description,
		CurrentStep:   info.CurrentStep,
		TotalSteps:    info.TotalSteps,
		StartTime:     info.StartTime,
		Duration:      info.Duration,
		Metadata:      md,
		LastMessage:   info.LastMessage,
	}
}

// StatePath returns the interrupted-state file path for workspace.
func StatePath(workspace string) string {
	if workspace == "" {
		workspace = DefaultWorkspace
	}
	return filepath.Join(workspace, StateFileName)
}

// WriteState persists state into workspace, replacing any previous snapshot.
func WriteState(workspace string, state State) (string, error) {
	path := StatePath(workspace)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create workspace: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal interrupted state: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write interrupted state: %w", err)
	}

	slog.Info("Interrupted state saved", "path", path)
	return path, nil
}

// LoadState reads the snapshot from workspace. It returns nil, nil when
// there is nothing to resume.
func LoadState(workspace string) (*State, error) {
	path := StatePath(workspace)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read interrupted state: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse interrupted state %s: %w", path, err)
	}

	slog.Debug("Loaded interrupted state", "path", path)
	return &state, nil
}

// ClearState removes the snapshot from workspace. A missing file is not an error.
func ClearState(workspace string) error {
	path := StatePath(workspace)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to clear interrupted state: %w", err)
	}
	slog.Debug("Cleared interrupted state", "path", path)
	return nil
}
