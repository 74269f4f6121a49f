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

package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"runtime"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "INFO", want: slog.LevelInfo},
		{in: "", want: slog.LevelInfo},
		{in: "warning", want: slog.LevelWarn},
		{in: "warn", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "loud", want: slog.LevelInfo, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewHandler_Formats(t *testing.T) {
	tests := []struct {
		format string
		check  func(t *testing.T, out string)
	}{
		{
			format: FormatSimple,
			check: func(t *testing.T, out string) {
				assert.Equal(t, "WARN checkpoint saved id=cp1 step=3\n", out)
			},
		},
		{
			format: FormatVerbose,
			check: func(t *testing.T, out string) {
				assert.Regexp(t, `^\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2} WARN checkpoint saved id=cp1 step=3\n$`, out)
			},
		},
		{
			format: FormatJSON,
			check: func(t *testing.T, out string) {
				var rec map[string]any
				require.NoError(t, json.Unmarshal([]byte(out), &rec))
				assert.Equal(t, "checkpoint saved", rec["msg"])
				assert.Equal(t, "cp1", rec["id"])
			},
		},
		{
			format: FormatPretty,
			check: func(t *testing.T, out string) {
				assert.Contains(t, out, "checkpoint saved")
				assert.Contains(t, out, "id=cp1")
				assert.NotContains(t, out, "\033[", "no color on non-terminals")
			},
		},
		{
			format: "logfmt",
			check: func(t *testing.T, out string) {
				assert.Contains(t, out, `msg="checkpoint saved"`)
				assert.Contains(t, out, "level=WARN")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			log := slog.New(NewHandler(slog.LevelInfo, &buf, tt.format))
			log.Warn("checkpoint saved", "id", "cp1", "step", 3)
			tt.check(t, buf.String())
		})
	}
}

func TestNewHandler_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(slog.LevelWarn, &buf, FormatSimple))

	log.Info("hidden")
	log.Error("shown")
	assert.Equal(t, "ERROR shown\n", buf.String())
}

// libraryPC returns a program counter inside the sort package.
func libraryPC() uintptr {
	var pc uintptr
	values := []int{3, 1, 2}
	sort.Slice(values, func(i, j int) bool {
		if pc == 0 {
			var pcs [1]uintptr
			runtime.Callers(2, pcs[:])
			pc = pcs[0]
		}
		return values[i] < values[j]
	})
	return pc
}

func TestNewHandler_FiltersByCaller(t *testing.T) {
	var ownPCs [1]uintptr
	runtime.Callers(1, ownPCs[:])

	tests := []struct {
		name  string
		level slog.Level
		pc    uintptr
		want  string
	}{
		{"own record above debug", slog.LevelWarn, ownPCs[0], "WARN message\n"},
		{"library record above debug", slog.LevelWarn, libraryPC(), ""},
		{"record without caller", slog.LevelWarn, 0, "WARN message\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := NewHandler(tt.level, &buf, FormatSimple)

			record := slog.NewRecord(time.Now(), slog.LevelWarn, "message", tt.pc)
			require.NoError(t, h.Handle(context.Background(), record))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestNewHandler_DebugKeepsLibraryRecords(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandler(slog.LevelDebug, &buf, FormatSimple)

	record := slog.NewRecord(time.Now(), slog.LevelInfo, "from library", libraryPC())
	require.NoError(t, h.Handle(context.Background(), record))
	assert.Equal(t, "INFO from library\n", buf.String())
}

func TestLineHandler_AttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(slog.LevelDebug, &buf, FormatSimple))

	log.With("run", "r1").WithGroup("step").Debug("started", "name", "build")
	assert.Equal(t, "DEBUG started run=r1 step.name=build\n", buf.String())
}

func TestInitAndGetLogger(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	Init(slog.LevelInfo, &buf, FormatSimple)
	GetLogger().Info("hello")
	slog.Info("via default")

	assert.Equal(t, "INFO hello\nINFO via default\n", buf.String())
}

func TestOpenLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	f, cleanup, err := OpenLogFile(path)
	require.NoError(t, err)
	defer cleanup()

	_, err = f.WriteString("line\n")
	require.NoError(t, err)
	assert.FileExists(t, path)
}
