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

package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// waitDelay bounds how long a cancelled command may keep its output pipes
// open through orphaned children.
const waitDelay = time.Second

// Executor runs the command of a single step and returns its output.
type Executor interface {
	Execute(ctx context.Context, step Step, workdir string) (string, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, step Step, workdir string) (string, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, step Step, workdir string) (string, error) {
	return f(ctx, step, workdir)
}

// CommandError reports a command that exited unsuccessfully. Its message
// carries the tail of the output so that failures can be classified by
// what the command printed.
type CommandError struct {
	Command  string
	ExitCode int
	Output   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("command %q exited with code %d", e.Command, e.ExitCode)
	if tail := lastLine(e.Output); tail != "" {
		msg += ": " + tail
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }

// ShellExecutor runs steps with "sh -c".
type ShellExecutor struct {
	// Shell defaults to "sh".
	Shell string
}

// Execute runs step.Run and returns combined stdout and stderr.
func (e ShellExecutor) Execute(ctx context.Context, step Step, workdir string) (string, error) {
	shell := e.Shell
	if shell == "" {
		shell = "sh"
	}

	cmd := exec.CommandContext(ctx, shell, "-c", step.Run)
	cmd.WaitDelay = waitDelay
	cmd.Dir = workdir
	if step.Dir != "" {
		cmd.Dir = filepath.Join(workdir, step.Dir)
	}
	cmd.Env = os.Environ()
	for k, v := range step.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	output := strings.TrimRight(out.String(), "\n")
	if err == nil {
		return output, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return output, fmt.Errorf("command %q timed out: %w", step.Run, ctxErr)
		}
		return output, ctxErr
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return output, &CommandError{
			Command:  step.Run,
			ExitCode: exitErr.ExitCode(),
			Output:   output,
			Err:      err,
		}
	}
	return output, fmt.Errorf("failed to start %q: %w", step.Run, err)
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
