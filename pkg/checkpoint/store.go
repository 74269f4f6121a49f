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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

var (
	// ErrNotFound is returned when a checkpoint ID is unknown.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrNoCheckpoints is returned by RollbackToLatest when nothing was saved.
	ErrNoCheckpoints = errors.New("no checkpoints available for rollback")
)

// Store persists checkpoints.
type Store interface {
	// Save writes a checkpoint, replacing any record with the same ID.
	Save(ctx context.Context, cp *Checkpoint) error

	// Load reads a checkpoint. Returns ErrNotFound if absent.
	Load(ctx context.Context, id string) (*Checkpoint, error)

	// Delete removes a checkpoint. Returns ErrNotFound if absent.
	Delete(ctx context.Context, id string) error

	// List returns all stored checkpoints, oldest first.
	List(ctx context.Context) ([]*Checkpoint, error)
}

// FileStore keeps one JSON file per checkpoint, named <id>.json.
type FileStore struct {
	dir string
}

// NewFileStore creates a FileStore rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("checkpoint directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the storage directory.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(id string) (string, error) {
	if id == "" || filepath.Base(id) != id || id == "." || id == ".." {
		return "", fmt.Errorf("invalid checkpoint id %q", id)
	}
	return filepath.Join(s.dir, id+".json"), nil
}

// Save writes the checkpoint atomically through a temp file.
func (s *FileStore) Save(_ context.Context, cp *Checkpoint) error {
	path, err := s.path(cp.ID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".checkpoint-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move checkpoint into place: %w", err)
	}
	return nil
}

// Load reads a checkpoint file.
func (s *FileStore) Load(_ context.Context, id string) (*Checkpoint, error) {
	path, err := s.path(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint %s: %w", id, err)
	}
	return &cp, nil
}

// Delete removes a checkpoint file.
func (s *FileStore) Delete(_ context.Context, id string) error {
	path, err := s.path(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

// List loads every checkpoint file in the directory. Unreadable files are
// skipped with a warning.
func (s *FileStore) List(ctx context.Context) ([]*Checkpoint, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint directory: %w", err)
	}

	var out []*Checkpoint
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, idPrefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		cp, err := s.Load(ctx, strings.TrimSuffix(name, ".json"))
		if err != nil {
			slog.Warn("Skipping unreadable checkpoint", "file", name, "error", err)
			continue
		}
		out = append(out, cp)
	}
	sortOldestFirst(out)
	return out, nil
}

func sortOldestFirst(cps []*Checkpoint) {
	slices.SortStableFunc(cps, func(a, b *Checkpoint) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
}
