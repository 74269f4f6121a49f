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

package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/steadfast/pkg/schema"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newManager(t *testing.T, cfg *Config) (*Manager, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 1, 11, 14, 30, 22, 0, time.UTC)}
	m, err := NewManager(t.TempDir(), cfg, WithClock(clock.Now))
	require.NoError(t, err)
	return m, clock
}

func conversation(first string) *schema.Memory {
	memory := schema.NewMemory(0)
	memory.AddAll(
		schema.SystemMessage("You are helpful."),
		schema.UserMessage(first),
		schema.AssistantMessage("On it."),
	)
	return memory
}

func TestManager_SaveAndLoad(t *testing.T) {
	m, _ := newManager(t, nil)
	id := m.NewSessionID()
	assert.True(t, strings.HasPrefix(id, "session_20250111_143022_"), id)

	ok, err := m.Save(SaveRequest{SessionID: id, Memory: conversation("  build the thing  "), AgentName: "runner", AgentType: "Runner"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, m.Exists(id))

	memory, err := m.Load(id)
	require.NoError(t, err)
	require.Equal(t, 3, memory.Len())
	assert.Equal(t, "On it.", memory.Messages[2].Content)

	session, err := m.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "build the thing", session.Metadata.TaskSummary)
	assert.Equal(t, 3, session.Metadata.MessageCount)
	assert.Equal(t, "runner", session.Metadata.AgentName)

	_, err = os.Stat(filepath.Join(m.Dir(), id+".tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestManager_FileShape(t *testing.T) {
	m, _ := newManager(t, nil)
	id := m.NewSessionID()
	_, err := m.Save(SaveRequest{SessionID: id, Memory: conversation("hi"), AgentName: "a", AgentType: "b"})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(m.Dir(), id+".json"))
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))

	messages, ok := doc["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, messages, 3)

	metadata, ok := doc["metadata"].(map[string]any)
	require.True(t, ok)
	for _, key := range []string{"session_id", "created_at", "updated_at", "agent_name", "agent_type", "message_count", "task_summary", "workspace_path"} {
		assert.Contains(t, metadata, key)
	}
}

func TestManager_ResaveKeepsCreatedAt(t *testing.T) {
	m, clock := newManager(t, nil)
	id := m.NewSessionID()
	created := clock.now

	_, err := m.Save(SaveRequest{SessionID: id, Memory: conversation("x")})
	require.NoError(t, err)
	clock.now = clock.now.Add(time.Hour)
	_, err = m.Save(SaveRequest{SessionID: id, Memory: conversation("x")})
	require.NoError(t, err)

	session, err := m.Get(id)
	require.NoError(t, err)
	assert.True(t, session.Metadata.CreatedAt.Equal(created))
	assert.True(t, session.Metadata.UpdatedAt.Equal(clock.now))
}

func TestManager_DisabledSkipsSave(t *testing.T) {
	disabled := false
	m, _ := newManager(t, &Config{Enabled: &disabled})

	ok, err := m.Save(SaveRequest{SessionID: "session_x", Memory: conversation("x")})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, m.Exists("session_x"))
}

func TestManager_ListNewestFirst(t *testing.T) {
	m, clock := newManager(t, nil)

	var ids []string
	for i := range 3 {
		id := m.NewSessionID()
		_, err := m.Save(SaveRequest{SessionID: id, Memory: conversation("task")})
		require.NoError(t, err)
		ids = append(ids, id)
		clock.now = clock.now.Add(time.Duration(i+1) * time.Minute)
	}
	require.NoError(t, os.WriteFile(filepath.Join(m.Dir(), "session_bad.json"), []byte("not json"), 0o644))

	list, err := m.List(0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, ids[2], list[0].SessionID)
	assert.Equal(t, ids[0], list[2].SessionID)

	limited, err := m.List(1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestManager_LoadErrors(t *testing.T) {
	m, _ := newManager(t, nil)

	_, err := m.Load("session_missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, os.WriteFile(filepath.Join(m.Dir(), "session_bad.json"), []byte("{"), 0o644))
	_, err = m.Load("session_bad")
	assert.ErrorIs(t, err, ErrCorrupted)

	_, err = m.Load("../etc/passwd")
	assert.Error(t, err)
}

func TestManager_Delete(t *testing.T) {
	m, _ := newManager(t, nil)
	id := m.NewSessionID()
	_, err := m.Save(SaveRequest{SessionID: id, Memory: conversation("x")})
	require.NoError(t, err)

	ok, err := m.Delete(id)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.Delete(id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestManager_Cleanup(t *testing.T) {
	m, clock := newManager(t, &Config{RetentionDays: 7})

	old := m.NewSessionID()
	_, err := m.Save(SaveRequest{SessionID: old, Memory: conversation("old")})
	require.NoError(t, err)

	clock.now = clock.now.AddDate(0, 0, 10)
	fresh := m.NewSessionID()
	_, err = m.Save(SaveRequest{SessionID: fresh, Memory: conversation("fresh")})
	require.NoError(t, err)

	disabled, err := m.Cleanup(-1)
	require.NoError(t, err)
	assert.Equal(t, 0, disabled)

	deleted, err := m.Cleanup(0)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	assert.False(t, m.Exists(old))
	assert.True(t, m.Exists(fresh))
}

func TestTaskSummary(t *testing.T) {
	long := strings.Repeat("a", 150)

	tests := []struct {
		name     string
		messages []schema.Message
		want     string
	}{
		{"no user message", []schema.Message{schema.SystemMessage("s")}, ""},
		{"first user message", []schema.Message{schema.UserMessage("one"), schema.UserMessage("two")}, "one"},
		{"skips empty", []schema.Message{schema.UserMessage("   "), schema.UserMessage("real")}, "real"},
		{"truncates", []schema.Message{schema.UserMessage(long)}, strings.Repeat("a", 100) + "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TaskSummary(tt.messages))
		})
	}
}

func TestFormatSessionList(t *testing.T) {
	assert.Equal(t, "No saved sessions found.", FormatSessionList(nil))

	out := FormatSessionList([]Metadata{{
		SessionID:    "session_20250111_143022_a7b3c5d1",
		AgentName:    "runner",
		MessageCount: 4,
		CreatedAt:    time.Date(2025, 1, 11, 14, 30, 22, 0, time.UTC),
		TaskSummary:  strings.Repeat("t", 40),
	}})
	assert.Contains(t, out, "Available Conversation Sessions")
	assert.Contains(t, out, "2025-01-11 14:30:22")
	assert.Contains(t, out, strings.Repeat("t", 27)+"...")
	assert.True(t, strings.HasSuffix(out, "Total: 1 session(s)"))
}

func TestFormatCleanupResult(t *testing.T) {
	assert.Equal(t, "No old sessions to clean up.", FormatCleanupResult(0))
	assert.Equal(t, "[OK] Cleaned up 1 old session.", FormatCleanupResult(1))
	assert.Equal(t, "[OK] Cleaned up 3 old sessions.", FormatCleanupResult(3))
}
