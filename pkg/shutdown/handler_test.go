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

package shutdown

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/steadfast/pkg/progress"
)

// syncBuffer is a bytes.Buffer safe for the handler goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestHandler(t *testing.T, opts ...Option) (*Handler, chan int, *syncBuffer) {
	t.Helper()
	codes := make(chan int, 4)
	out := &syncBuffer{}
	base := []Option{
		WithExitFunc(func(code int) { codes <- code }),
		WithOutput(out),
	}
	h := New(append(base, opts...)...)
	t.Cleanup(h.Restore)
	return h, codes, out
}

func waitExit(t *testing.T, codes chan int) int {
	t.Helper()
	select {
	case code := <-codes:
		return code
	case <-time.After(5 * time.Second):
		t.Fatal("exit was not called")
		return -1
	}
}

func TestHandler_FirstSignalSavesStateAndExits(t *testing.T) {
	workspace := t.TempDir()
	bus := progress.NewBus()
	tracker := progress.NewTracker("long task", progress.WithBus(bus), progress.WithTotalSteps(10))
	tracker.Update(progress.WithStep(3), progress.WithMessage("step 3"), progress.WithMetadata(map[string]any{"run": "abc"}))
	failures := make(chan string, 1)
	bus.Subscribe(progress.EventFailed, func(e progress.Event) { failures <- e.String("error") })

	h, codes, out := newTestHandler(t, WithTracker(tracker), WithWorkspace(workspace))

	h.signals <- os.Interrupt
	assert.Equal(t, 0, waitExit(t, codes))
	assert.Equal(t, "interrupted by SIGINT", <-failures)

	assert.True(t, h.ShutdownRequested())
	assert.True(t, tracker.IsFailed())
	assert.Equal(t, "Task interrupted by user", tracker.LastMessage())
	assert.Contains(t, out.String(), "Received interrupt signal (SIGINT)")

	state, err := LoadState(workspace)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, "long task", state.Description)
	assert.Equal(t, 3, state.CurrentStep)
	require.NotNil(t, state.TotalSteps)
	assert.Equal(t, 10, *state.TotalSteps)
	assert.Equal(t, "abc", state.Metadata["run"])
	assert.Equal(t, "Task interrupted by user", state.LastMessage)
	assert.False(t, state.InterruptedAt.IsZero())
}

func TestHandler_SecondSignalForcesExit(t *testing.T) {
	h, codes, _ := newTestHandler(t, WithWorkspace(t.TempDir()))

	h.signals <- os.Interrupt
	assert.Equal(t, 0, waitExit(t, codes))

	h.signals <- os.Interrupt
	assert.Equal(t, 1, waitExit(t, codes))
}

func TestHandler_SaveStateDisabled(t *testing.T) {
	workspace := t.TempDir()
	tracker := progress.NewTracker("task", progress.WithBus(progress.NewBus()))

	h, codes, _ := newTestHandler(t, WithTracker(tracker), WithWorkspace(workspace), WithSaveState(false))

	h.signals <- os.Interrupt
	assert.Equal(t, 0, waitExit(t, codes))

	assert.True(t, tracker.IsFailed())
	_, err := os.Stat(filepath.Join(workspace, StateFileName))
	assert.True(t, os.IsNotExist(err))
}

func TestHandler_FinishedTrackerIsNotFailed(t *testing.T) {
	workspace := t.TempDir()
	tracker := progress.NewTracker("task", progress.WithBus(progress.NewBus()))
	tracker.Complete("done")

	h, codes, _ := newTestHandler(t, WithWorkspace(workspace))
	h.SetTracker(tracker)

	h.signals <- os.Interrupt
	assert.Equal(t, 0, waitExit(t, codes))

	assert.True(t, tracker.IsCompleted())
	state, err := LoadState(workspace)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, "done", state.LastMessage)
}

func TestHandler_RestoreIsIdempotent(t *testing.T) {
	h := New(WithExitFunc(func(int) {}))
	assert.NotPanics(t, func() {
		h.Restore()
		h.Restore()
	})
}

func TestLoadAndClearState(t *testing.T) {
	workspace := t.TempDir()

	state, err := LoadState(workspace)
	require.NoError(t, err)
	assert.Nil(t, state)
	assert.NoError(t, ClearState(workspace))

	total := 5
	path, err := WriteState(workspace, State{
		InterruptedAt: time.Now(),
		Description:   "resume me",
		CurrentStep:   2,
		TotalSteps:    &total,
		Duration:      1.5,
		Metadata:      map[string]any{},
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(workspace, StateFileName), path)

	state, err = LoadState(workspace)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, "resume me", state.Description)
	assert.Equal(t, 1.5, state.Duration)

	require.NoError(t, ClearState(workspace))
	state, err = LoadState(workspace)
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestLoadState_Corrupt(t *testing.T) {
	workspace := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(workspace, StateFileName), []byte("{not json"), 0644))

	_, err := LoadState(workspace)
	assert.Error(t, err)
}

func TestStatePath_Default(t *testing.T) {
	assert.Equal(t, filepath.Join(DefaultWorkspace, StateFileName), StatePath(""))
}
