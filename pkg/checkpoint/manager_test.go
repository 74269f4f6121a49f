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
	"database/sql"
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

type stepClock struct {
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.now = c.now.Add(time.Second)
	return c.now
}

func newClock() *stepClock {
	return &stepClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func newFileManager(t *testing.T, opts ...Option) (*Manager, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "checkpoints")
	clock := newClock()
	m, err := NewFileManager(context.Background(), dir, append([]Option{WithClock(clock.Now)}, opts...)...)
	require.NoError(t, err)
	return m, dir
}

func TestNewID(t *testing.T) {
	id := NewID(time.Date(2025, 3, 1, 9, 5, 7, 0, time.UTC))
	assert.True(t, strings.HasPrefix(id, "checkpoint_20250301_090507_"), id)
	assert.Len(t, strings.TrimPrefix(id, "checkpoint_20250301_090507_"), 8)
}

func TestManager_RestoreIsIsolatedFromCallerMutation(t *testing.T) {
	m, _ := newFileManager(t)
	ctx := context.Background()

	state := map[string]any{
		"step":   3,
		"nested": map[string]any{"items": []any{"a", "b"}},
		"tags":   []string{"x"},
	}
	memory := schema.NewMemory(0)
	memory.Add(schema.UserMessage("hello"))

	id, err := m.Save(ctx, state, memory, "")
	require.NoError(t, err)

	state["step"] = 99
	state["nested"].(map[string]any)["items"] = []any{"changed"}
	state["tags"].([]string)[0] = "y"
	memory.Add(schema.AssistantMessage("later"))

	got, gotMemory, err := m.Restore(id)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"step":   3,
		"nested": map[string]any{"items": []any{"a", "b"}},
		"tags":   []string{"x"},
	}, got)
	require.NotNil(t, gotMemory)
	assert.Equal(t, 1, gotMemory.Len())

	// Restored values are copies too.
	got["step"] = 7
	again, _, err := m.Restore(id)
	require.NoError(t, err)
	assert.Equal(t, 3, again["step"])
}

func TestManager_SaveDefaultsAndFileFormat(t *testing.T) {
	m, dir := newFileManager(t)
	ctx := context.Background()

	memory := schema.NewMemory(0)
	memory.Add(schema.UserMessage("hi"))
	withMemory, err := m.Save(ctx, map[string]any{"k": "v"}, memory, "")
	require.NoError(t, err)
	withoutMemory, err := m.Save(ctx, nil, nil, "manual")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, withMemory+".json"))
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, withMemory, doc["checkpoint_id"])
	assert.Equal(t, DefaultDescription, doc["description"])
	assert.Equal(t, true, doc["has_memory"])
	assert.Equal(t, map[string]any{"k": "v"}, doc["state"])
	assert.Contains(t, doc, "timestamp")
	assert.Equal(t, []any{map[string]any{"role": "user", "content": "hi"}}, doc["memory_messages"])

	data, err = os.ReadFile(filepath.Join(dir, withoutMemory+".json"))
	require.NoError(t, err)
	doc = nil
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "manual", doc["description"])
	assert.Equal(t, false, doc["has_memory"])
	assert.NotContains(t, doc, "memory_messages")
	assert.Equal(t, map[string]any{}, doc["state"])
}

func TestManager_ListNewestFirstAndLatest(t *testing.T) {
	m, _ := newFileManager(t)
	ctx := context.Background()

	first, err := m.Save(ctx, map[string]any{"n": 1}, nil, "first")
	require.NoError(t, err)
	second, err := m.Save(ctx, map[string]any{"n": 2}, nil, "second")
	require.NoError(t, err)

	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, second, list[0].ID)
	assert.Equal(t, first, list[1].ID)
	assert.False(t, list[0].HasMemory)

	latest := m.Latest()
	require.NotNil(t, latest)
	assert.Equal(t, second, latest.ID)

	state, memory, err := m.RollbackToLatest()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"n": 2}, state)
	assert.Nil(t, memory)
}

func TestManager_EvictsOldestPastMax(t *testing.T) {
	m, dir := newFileManager(t, WithMaxCheckpoints(2))
	ctx := context.Background()

	var ids []string
	for i := range 3 {
		id, err := m.Save(ctx, map[string]any{"n": i}, nil, "")
		require.NoError(t, err)
		ids = append(ids, id)
	}

	assert.Equal(t, 2, m.Len())
	_, _, err := m.Restore(ids[0])
	assert.ErrorIs(t, err, ErrNotFound)
	_, statErr := os.Stat(filepath.Join(dir, ids[0]+".json"))
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(filepath.Join(dir, ids[2]+".json"))
	assert.NoError(t, statErr)
}

func TestManager_Delete(t *testing.T) {
	m, dir := newFileManager(t)
	ctx := context.Background()

	id, err := m.Save(ctx, map[string]any{}, nil, "")
	require.NoError(t, err)

	ok, err := m.Delete(ctx, "checkpoint_missing")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = m.Delete(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, m.Len())
	_, statErr := os.Stat(filepath.Join(dir, id+".json"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestManager_EmptyErrors(t *testing.T) {
	m, _ := newFileManager(t)

	_, _, err := m.RollbackToLatest()
	assert.ErrorIs(t, err, ErrNoCheckpoints)

	_, _, err = m.Restore("checkpoint_nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = m.Get("checkpoint_nope")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Nil(t, m.Latest())
	assert.Empty(t, m.List())
}

func TestManager_ReloadsIndexFromStore(t *testing.T) {
	m, dir := newFileManager(t)
	ctx := context.Background()

	memory := schema.NewMemory(0)
	memory.Add(schema.UserMessage("persisted"))
	id, err := m.Save(ctx, map[string]any{"phase": "build"}, memory, "before restart")
	require.NoError(t, err)

	// Files that are not checkpoints are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "checkpoint_broken.json"), []byte("{"), 0o644))

	reloaded, err := NewFileManager(ctx, dir)
	require.NoError(t, err)
	require.Equal(t, 1, reloaded.Len())

	state, gotMemory, err := reloaded.Restore(id)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"phase": "build"}, state)
	require.NotNil(t, gotMemory)
	assert.Equal(t, "persisted", gotMemory.Messages[0].Content)

	cp, err := reloaded.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "before restart", cp.Description)
}

func TestFileStore_RejectsPathIDs(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load(context.Background(), "../escape")
	assert.Error(t, err)
	err = store.Save(context.Background(), &Checkpoint{ID: "a/b"})
	assert.Error(t, err)
}

func TestSQLStore_SQLite(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	store, err := NewSQLStore(ctx, db, "sqlite3")
	require.NoError(t, err)

	clock := newClock()
	m, err := NewManager(ctx, store, WithClock(clock.Now), WithMaxCheckpoints(2))
	require.NoError(t, err)

	memory := schema.NewMemory(0)
	memory.Add(schema.SystemMessage("sys"))
	first, err := m.Save(ctx, map[string]any{"n": 1}, memory, "")
	require.NoError(t, err)
	_, err = m.Save(ctx, map[string]any{"n": 2}, nil, "")
	require.NoError(t, err)
	third, err := m.Save(ctx, map[string]any{"n": 3}, nil, "")
	require.NoError(t, err)

	_, err = store.Load(ctx, first)
	assert.ErrorIs(t, err, ErrNotFound)

	stored, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, third, stored[1].ID)

	reloaded, err := NewManager(ctx, store)
	require.NoError(t, err)
	state, _, err := reloaded.RollbackToLatest()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"n": float64(3)}, state)

	assert.ErrorIs(t, store.Delete(ctx, "checkpoint_missing"), ErrNotFound)
}

func TestSQLStore_UnsupportedDialect(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = NewSQLStore(context.Background(), db, "oracle")
	assert.Error(t, err)
}

func TestSQLStore_Rebind(t *testing.T) {
	s := &SQLStore{dialect: "postgres"}
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", s.rebind("SELECT a FROM t WHERE x = ? AND y = ?"))
	s.dialect = "mysql"
	assert.Equal(t, "x = ?", s.rebind("x = ?"))
}

func TestConfig_Defaults(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults("ws")
	assert.True(t, cfg.IsEnabled())
	assert.Equal(t, BackendFile, cfg.Backend)
	assert.Equal(t, filepath.Join("ws", "checkpoints"), cfg.Dir)
	assert.Equal(t, DefaultMaxCheckpoints, cfg.MaxCheckpoints)
	require.NoError(t, cfg.Validate())

	cfg.Backend = "s3"
	assert.Error(t, cfg.Validate())
}
