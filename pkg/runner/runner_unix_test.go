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

//go:build unix

package runner

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/steadfast/pkg/recovery"
	"github.com/kadirpekel/steadfast/pkg/shutdown"
)

func TestRunner_ResumeAfterInterruptInTaskWorkspace(t *testing.T) {
	base := t.TempDir()
	exited := make(chan int, 1)
	sh := shutdown.New(
		shutdown.WithWorkspace(base),
		shutdown.WithExitFunc(func(code int) { exited <- code }),
		shutdown.WithOutput(io.Discard),
	)
	t.Cleanup(sh.Restore)

	interrupting := ExecutorFunc(func(_ context.Context, step Step, _ string) (string, error) {
		if step.Name != "b" {
			return "ran " + step.Name, nil
		}
		if err := syscall.Kill(os.Getpid(), syscall.SIGINT); err != nil {
			return "", err
		}
		select {
		case <-exited:
		case <-time.After(5 * time.Second):
		}
		return "", recovery.NewFatal("stopped by interrupt", recovery.CategoryUnknown, nil)
	})

	task := threeSteps()
	task.Workspace = "sub"
	taskWorkspace := filepath.Join(base, "sub")

	r, err := New(Config{Workspace: base, Executor: interrupting, Shutdown: sh})
	require.NoError(t, err)
	_, err = r.Run(context.Background(), task, RunOptions{})
	require.Error(t, err)
	require.True(t, sh.ShutdownRequested())

	st, err := shutdown.LoadState(taskWorkspace)
	require.NoError(t, err)
	require.NotNil(t, st, "interrupted state is written to the task workspace")
	assert.NoFileExists(t, shutdown.StatePath(base))

	exec := newScriptedExecutor(nil)
	resumed, err := New(Config{Workspace: base, Executor: exec})
	require.NoError(t, err)

	result, err := resumed.Run(context.Background(), task, RunOptions{Resume: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, result.Skipped)
	assert.Equal(t, 1, exec.count("b"))

	st, err = shutdown.LoadState(taskWorkspace)
	require.NoError(t, err)
	assert.Nil(t, st)
}
