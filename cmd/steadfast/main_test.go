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

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/steadfast/pkg/checkpoint"
	"github.com/kadirpekel/steadfast/pkg/config"
	"github.com/kadirpekel/steadfast/pkg/shutdown"
)

func newTestCLI(t *testing.T) *CLI {
	t.Helper()
	return &CLI{
		Workspace: t.TempDir(),
		LogLevel:  "error",
	}
}

func TestCLI_ParseCommands(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"run", []string{"run", "main_test.go"}, "run <task>"},
		{"checkpoint show", []string{"checkpoints", "show", "abc"}, "checkpoints show <id>"},
		{"history cleanup", []string{"history", "cleanup", "--days", "3"}, "history cleanup"},
		{"resume clear", []string{"resume", "clear"}, "resume clear"},
		{"diagnose", []string{"diagnose", "connection", "refused"}, "diagnose <message>"},
		{"schema", []string{"schema", "--task"}, "schema"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cli CLI
			parser, err := kong.New(&cli, kong.Name("steadfast"))
			require.NoError(t, err)

			ctx, err := parser.Parse(tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ctx.Command())
		})
	}
}

func TestSetup_WorkspaceOverride(t *testing.T) {
	cli := newTestCLI(t)

	a, err := cli.setup(context.Background())
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, cli.Workspace, a.cfg.Workspace)
	assert.Equal(t, filepath.Join(cli.Workspace, "checkpoints"), a.cfg.Checkpoint.Dir)
}

func TestApplyWorkspace_KeepsExplicitCheckpointDir(t *testing.T) {
	cfg := config.Default()
	cfg.Checkpoint.Dir = "/var/lib/steadfast"

	applyWorkspace(cfg, "other")

	assert.Equal(t, "other", cfg.Workspace)
	assert.Equal(t, "/var/lib/steadfast", cfg.Checkpoint.Dir)
}

func TestSetup_InvalidLogLevel(t *testing.T) {
	cli := newTestCLI(t)
	cli.LogLevel = "loud"

	_, err := cli.setup(context.Background())
	assert.Error(t, err)
}

func TestResumeClearCmd(t *testing.T) {
	cli := newTestCLI(t)
	_, err := shutdown.WriteState(cli.Workspace, shutdown.State{Description: "build"})
	require.NoError(t, err)

	require.NoError(t, (&ResumeClearCmd{}).Run(cli))

	st, err := shutdown.LoadState(cli.Workspace)
	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestCheckpointsDeleteCmd(t *testing.T) {
	cli := newTestCLI(t)
	ctx := context.Background()

	mgr, err := checkpoint.NewFileManager(ctx, filepath.Join(cli.Workspace, "checkpoints"))
	require.NoError(t, err)
	id, err := mgr.Save(ctx, map[string]any{"step": 1}, nil, "first")
	require.NoError(t, err)

	require.NoError(t, (&CheckpointsDeleteCmd{ID: id}).Run(cli))

	err = (&CheckpointsDeleteCmd{ID: id}).Run(cli)
	assert.ErrorIs(t, err, checkpoint.ErrNotFound)
}

func TestTaskSchema(t *testing.T) {
	schema := taskSchema()
	require.NotNil(t, schema.Properties)

	_, ok := schema.Properties.Get("steps")
	assert.True(t, ok)
	assert.Contains(t, schema.Required, "name")
}

func TestDiagnosedError(t *testing.T) {
	err := diagnosedError([]string{"connection", "refused"})
	assert.EqualError(t, err, "connection refused")
}

func TestMain(m *testing.M) {
	os.Unsetenv(config.EnvLogLevel)
	os.Unsetenv(config.EnvLogFile)
	os.Unsetenv(config.EnvLogFormat)
	os.Exit(m.Run())
}
