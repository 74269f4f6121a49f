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

// Package history persists conversation sessions as JSON files so they can
// be listed, reloaded and pruned later.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/kadirpekel/steadfast/pkg/schema"
)

const (
	sessionPrefix    = "session_"
	summaryLimit     = 100
	defaultListLimit = 50
	cleanupScanLimit = 1000
)

var (
	// ErrNotFound is returned for unknown session IDs.
	ErrNotFound = errors.New("session not found")

	// ErrCorrupted is returned when a session file cannot be decoded.
	ErrCorrupted = errors.New("session file is corrupted")
)

// Metadata describes a saved session.
type Metadata struct {
	SessionID     string    `json:"session_id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	AgentName     string    `json:"agent_name"`
	AgentType     string    `json:"agent_type"`
	MessageCount  int       `json:"message_count"`
	TaskSummary   string    `json:"task_summary,omitempty"`
	WorkspacePath string    `json:"workspace_path,omitempty"`
}

// Session is the persisted file shape.
type Session struct {
	Metadata Metadata         `json:"metadata"`
	Messages []schema.Message `json:"messages"`
}

// SaveRequest describes a session to persist.
type SaveRequest struct {
	SessionID     string
	Memory        *schema.Memory
	AgentName     string
	AgentType     string
	WorkspacePath string
}

// Manager stores sessions under a directory.
type Manager struct {
	dir       string
	workspace string
	cfg       Config
	now       func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager creates a Manager storing sessions in <workspace>/history, or
// cfg.Dir when set.
func NewManager(workspace string, cfg *Config, opts ...Option) (*Manager, error) {
	m := &Manager{workspace: workspace, now: time.Now}
	if cfg != nil {
		m.cfg = *cfg
	}
	m.cfg.SetDefaults()
	if err := m.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid history config: %w", err)
	}
	for _, opt := range opts {
		opt(m)
	}

	m.dir = m.cfg.Dir
	if m.dir == "" {
		m.dir = filepath.Join(workspace, "history")
	}
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	return m, nil
}

// Dir returns the history directory.
func (m *Manager) Dir() string {
	return m.dir
}

// NewSessionID returns an ID of the form session_YYYYmmdd_HHMMSS_<8 chars>.
func (m *Manager) NewSessionID() string {
	id := sessionPrefix + m.now().Format("20060102_150405") + "_" + uuid.NewString()[:8]
	slog.Info("Created new session", "session_id", id)
	return id
}

func (m *Manager) path(id string) (string, error) {
	if !strings.HasPrefix(id, sessionPrefix) || filepath.Base(id) != id {
		return "", fmt.Errorf("invalid session id %q", id)
	}
	return filepath.Join(m.dir, id+".json"), nil
}

// Save writes the session atomically. It reports false without error when
// history is disabled. An existing session keeps its creation time.
func (m *Manager) Save(req SaveRequest) (bool, error) {
	if !m.cfg.IsEnabled() {
		slog.Debug("History is disabled, skipping save")
		return false, nil
	}
	path, err := m.path(req.SessionID)
	if err != nil {
		return false, err
	}

	var messages []schema.Message
	if req.Memory != nil {
		messages = req.Memory.Clone().Messages
	}
	if messages == nil {
		messages = []schema.Message{}
	}

	now := m.now()
	created := now
	if existing, err := m.readSession(path); err == nil {
		created = existing.Metadata.CreatedAt
	}

	workspace := req.WorkspacePath
	if workspace == "" {
		workspace = m.workspace
	}
	session := Session{
		Metadata: Metadata{
			SessionID:     req.SessionID,
			CreatedAt:     created,
			UpdatedAt:     now,
			AgentName:     req.AgentName,
			AgentType:     req.AgentType,
			MessageCount:  len(messages),
			TaskSummary:   TaskSummary(messages),
			WorkspacePath: workspace,
		},
		Messages: messages,
	}

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return false, fmt.Errorf("failed to encode session: %w", err)
	}
	tmp := strings.TrimSuffix(path, ".json") + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return false, fmt.Errorf("failed to write session: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return false, fmt.Errorf("failed to move session into place: %w", err)
	}

	slog.Info("Saved session", "session_id", req.SessionID, "messages", len(messages))

	if m.cfg.AutoCleanup {
		if _, err := m.Cleanup(0); err != nil {
			slog.Warn("History cleanup failed", "error", err)
		}
	}
	return true, nil
}

// Load restores the conversation memory of a session.
func (m *Manager) Load(id string) (*schema.Memory, error) {
	session, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	memory := schema.NewMemory(max(schema.DefaultMaxMessages, len(session.Messages)))
	memory.AddAll(session.Messages...)

	slog.Info("Loaded session", "session_id", id, "messages", memory.Len())
	return memory, nil
}

// Get reads a whole session file.
func (m *Manager) Get(id string) (*Session, error) {
	path, err := m.path(id)
	if err != nil {
		return nil, err
	}
	return m.readSession(path)
}

func (m *Manager) readSession(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, strings.TrimSuffix(filepath.Base(path), ".json"))
		}
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupted, filepath.Base(path), err)
	}
	return &session, nil
}

// List returns session metadata, newest first, at most limit entries. A
// non-positive limit means 50. Unreadable files are skipped.
func (m *Manager) List(limit int) ([]Metadata, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	paths, err := filepath.Glob(filepath.Join(m.dir, sessionPrefix+"*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	sessions := make([]Metadata, 0, len(paths))
	for _, path := range paths {
		session, err := m.readSession(path)
		if err != nil {
			slog.Warn("Failed to read session", "file", filepath.Base(path), "error", err)
			continue
		}
		sessions = append(sessions, session.Metadata)
	}
	slices.SortStableFunc(sessions, func(a, b Metadata) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions, nil
}

// Delete removes a session. It reports false when the session is unknown.
func (m *Manager) Delete(id string) (bool, error) {
	path, err := m.path(id)
	if err != nil {
		return false, err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Warn("Session not found for deletion", "session_id", id)
			return false, nil
		}
		return false, fmt.Errorf("failed to delete session: %w", err)
	}
	slog.Info("Deleted session", "session_id", id)
	return true, nil
}

// Exists reports whether a session file is present.
func (m *Manager) Exists(id string) bool {
	path, err := m.path(id)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Cleanup removes sessions created more than retentionDays ago and returns
// how many were deleted. Zero uses the configured retention; a negative
// value disables cleanup.
func (m *Manager) Cleanup(retentionDays int) (int, error) {
	if retentionDays == 0 {
		retentionDays = m.cfg.RetentionDays
	}
	if retentionDays <= 0 {
		slog.Debug("Retention disabled, skipping cleanup")
		return 0, nil
	}

	cutoff := m.now().AddDate(0, 0, -retentionDays)
	sessions, err := m.List(cleanupScanLimit)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, session := range sessions {
		if !session.CreatedAt.Before(cutoff) {
			continue
		}
		ok, err := m.Delete(session.SessionID)
		if err != nil {
			slog.Warn("Failed to delete old session", "session_id", session.SessionID, "error", err)
			continue
		}
		if ok {
			deleted++
		}
	}
	if deleted > 0 {
		slog.Info("Cleaned up old sessions", "deleted", deleted, "retention_days", retentionDays)
	}
	return deleted, nil
}

// TaskSummary returns the first non-empty user message, trimmed and cut to
// 100 characters with a trailing "..." when longer.
func TaskSummary(messages []schema.Message) string {
	for _, msg := range messages {
		if msg.Role != schema.RoleUser {
			continue
		}
		summary := strings.TrimSpace(msg.Content)
		if summary == "" {
			continue
		}
		if utf8.RuneCountInString(summary) > summaryLimit {
			return string([]rune(summary)[:summaryLimit]) + "..."
		}
		return summary
	}
	return ""
}
