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

package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/kadirpekel/steadfast/pkg/schema"
)

// Option configures a Manager.
type Option func(*Manager)

// WithMaxCheckpoints caps the number of retained checkpoints.
func WithMaxCheckpoints(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.max = n
		}
	}
}

// WithClock overrides the time source used for timestamps and IDs.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// Manager saves, restores and evicts checkpoints.
type Manager struct {
	store Store
	max   int
	now   func() time.Time

	mu    sync.Mutex
	index []*Checkpoint // oldest first
}

// NewManager creates a Manager over store and loads the existing index,
// evicting anything beyond the cap.
func NewManager(ctx context.Context, store Store, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("checkpoint store is required")
	}
	m := &Manager{
		store: store,
		max:   DefaultMaxCheckpoints,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	existing, err := store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoints: %w", err)
	}
	m.index = existing
	m.evict(ctx)

	slog.Debug("Checkpoint manager ready", "checkpoints", len(m.index), "max", m.max)
	return m, nil
}

// NewFileManager creates a Manager persisting to dir.
func NewFileManager(ctx context.Context, dir string, opts ...Option) (*Manager, error) {
	store, err := NewFileStore(dir)
	if err != nil {
		return nil, err
	}
	return NewManager(ctx, store, opts...)
}

// Store returns the underlying store.
func (m *Manager) Store() Store {
	return m.store
}

// Save snapshots state and memory and returns the new checkpoint ID.
func (m *Manager) Save(ctx context.Context, state map[string]any, memory *schema.Memory, description string) (string, error) {
	if description == "" {
		description = DefaultDescription
	}
	now := m.now()
	cp := &Checkpoint{
		ID:          NewID(now),
		Timestamp:   now,
		State:       copyState(state),
		Memory:      memory.Clone(),
		Description: description,
	}
	if cp.State == nil {
		cp.State = map[string]any{}
	}

	if err := m.store.Save(ctx, cp); err != nil {
		return "", fmt.Errorf("failed to save checkpoint: %w", err)
	}

	m.mu.Lock()
	m.index = append(m.index, cp)
	m.evict(ctx)
	m.mu.Unlock()

	slog.Info("Checkpoint saved", "checkpoint_id", cp.ID)
	return cp.ID, nil
}

// Restore returns copies of the state and memory saved under id.
func (m *Manager) Restore(id string) (map[string]any, *schema.Memory, error) {
	m.mu.Lock()
	cp := m.find(id)
	m.mu.Unlock()
	if cp == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	slog.Info("Restored checkpoint", "checkpoint_id", id)
	return copyState(cp.State), cp.Memory.Clone(), nil
}

// Get returns a copy of the checkpoint saved under id.
func (m *Manager) Get(id string) (*Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := m.find(id)
	if cp == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return cp.clone(), nil
}

// List returns checkpoint summaries, newest first.
func (m *Manager) List() []Info {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Info, 0, len(m.index))
	for _, cp := range slices.Backward(m.index) {
		out = append(out, cp.Info())
	}
	slices.SortStableFunc(out, func(a, b Info) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	return out
}

// Len returns the number of indexed checkpoints.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.index)
}

// Delete removes a checkpoint. It reports false when id is unknown.
func (m *Manager) Delete(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteLocked(ctx, id)
}

func (m *Manager) deleteLocked(ctx context.Context, id string) (bool, error) {
	i := slices.IndexFunc(m.index, func(cp *Checkpoint) bool { return cp.ID == id })
	if i < 0 {
		return false, nil
	}
	if err := m.store.Delete(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
		return false, err
	}
	m.index = slices.Delete(m.index, i, i+1)

	slog.Info("Checkpoint deleted", "checkpoint_id", id)
	return true, nil
}

// Latest returns a copy of the most recent checkpoint, or nil.
func (m *Manager) Latest() *Checkpoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cp := m.latestLocked(); cp != nil {
		return cp.clone()
	}
	return nil
}

func (m *Manager) latestLocked() *Checkpoint {
	var latest *Checkpoint
	for _, cp := range m.index {
		if latest == nil || !cp.Timestamp.Before(latest.Timestamp) {
			latest = cp
		}
	}
	return latest
}

// RollbackToLatest restores the most recent checkpoint.
func (m *Manager) RollbackToLatest() (map[string]any, *schema.Memory, error) {
	m.mu.Lock()
	latest := m.latestLocked()
	m.mu.Unlock()
	if latest == nil {
		return nil, nil, ErrNoCheckpoints
	}
	return m.Restore(latest.ID)
}

func (m *Manager) find(id string) *Checkpoint {
	for _, cp := range m.index {
		if cp.ID == id {
			return cp
		}
	}
	return nil
}

// evict drops the oldest checkpoints beyond the cap. Callers hold mu or
// have exclusive access.
func (m *Manager) evict(ctx context.Context) {
	if len(m.index) <= m.max {
		return
	}
	sortOldestFirst(m.index)
	excess := len(m.index) - m.max
	for _, cp := range slices.Clone(m.index[:excess]) {
		if _, err := m.deleteLocked(ctx, cp.ID); err != nil {
			slog.Warn("Failed to evict checkpoint", "checkpoint_id", cp.ID, "error", err)
		}
	}
}
