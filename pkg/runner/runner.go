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

// Package runner executes YAML tasks step by step with retries, progress
// reporting, checkpoints and resumption after an interrupt.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/kadirpekel/steadfast/pkg/checkpoint"
	"github.com/kadirpekel/steadfast/pkg/progress"
	"github.com/kadirpekel/steadfast/pkg/recovery"
	"github.com/kadirpekel/steadfast/pkg/shutdown"
)

// Checkpoint state keys written after every step.
const (
	StateTask           = "task"
	StateCompletedSteps = "completed_steps"
	StateFailedSteps    = "failed_steps"
	StateNextStep       = "next_step"
)

// ErrShutdownRequested is returned when an interrupt stops a run between steps.
var ErrShutdownRequested = errors.New("shutdown requested")

// Config contains the configuration for creating a Runner.
type Config struct {
	// Workspace is the default working directory and interrupted-state
	// location. Defaults to the current directory.
	Workspace string

	// Executor runs step commands. Defaults to ShellExecutor.
	Executor Executor

	// Retry executes steps with backoff. Defaults to recovery.Default().
	Retry *recovery.Handler

	// Checkpoints receives a checkpoint after every step (optional).
	Checkpoints *checkpoint.Manager

	// Shutdown is associated with the root tracker so an interrupt can
	// snapshot it (optional).
	Shutdown *shutdown.Handler

	// TrackerOptions are applied to the root tracker.
	TrackerOptions []progress.TrackerOption

	// OnRetry is called in addition to the tracker warning on every retry.
	OnRetry recovery.RetryFunc
}

// Runner executes tasks.
type Runner struct {
	workspace   string
	executor    Executor
	retry       *recovery.Handler
	checkpoints *checkpoint.Manager
	shutdown    *shutdown.Handler
	trackerOpts []progress.TrackerOption
	onRetry     recovery.RetryFunc
}

// StepResult is the outcome of one executed step.
type StepResult struct {
	Name     string
	Output   string
	Err      error
	Duration time.Duration
}

// Result summarizes a run.
type Result struct {
	Task      string
	Completed []StepResult
	Failed    []StepResult
	Skipped   []string
	Duration  time.Duration
}

// Succeeded reports whether no step failed.
func (r *Result) Succeeded() bool {
	return len(r.Failed) == 0
}

// RunOptions adjusts a single run.
type RunOptions struct {
	// Resume skips steps recorded as completed by an interrupted run or
	// the latest checkpoint of the same task.
	Resume bool
}

// New creates a new Runner.
func New(cfg Config) (*Runner, error) {
	workspace := cfg.Workspace
	if workspace == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve workspace: %w", err)
		}
		workspace = wd
	}

	executor := cfg.Executor
	if executor == nil {
		executor = ShellExecutor{}
	}
	retry := cfg.Retry
	if retry == nil {
		retry = recovery.Default()
	}

	return &Runner{
		workspace:   workspace,
		executor:    executor,
		retry:       retry,
		checkpoints: cfg.Checkpoints,
		shutdown:    cfg.Shutdown,
		trackerOpts: cfg.TrackerOptions,
		onRetry:     cfg.OnRetry,
	}, nil
}

// Workspace returns the effective workspace for task.
func (r *Runner) Workspace(task *Task) string {
	if task.Workspace == "" {
		return r.workspace
	}
	if filepath.IsAbs(task.Workspace) {
		return task.Workspace
	}
	return filepath.Join(r.workspace, task.Workspace)
}

// Run executes the steps of task in order. A failing step stops the run
// unless it sets ContinueOnError. The returned Result is non-nil even when
// an error is returned.
func (r *Runner) Run(ctx context.Context, task *Task, opts RunOptions) (*Result, error) {
	start := time.Now()
	result := &Result{Task: task.Name}
	defer func() { result.Duration = time.Since(start) }()

	workspace := r.Workspace(task)
	if err := os.MkdirAll(workspace, 0755); err != nil {
		return result, fmt.Errorf("failed to create workspace: %w", err)
	}

	var done []string
	if opts.Resume {
		done = r.resumePoint(task, workspace)
	}

	description := task.Name
	if task.Description != "" {
		description = task.Name + ": " + task.Description
	}
	trackerOpts := append([]progress.TrackerOption{progress.WithTotalSteps(len(task.Steps))}, r.trackerOpts...)
	root := progress.NewTracker(description, trackerOpts...)
	if r.shutdown != nil {
		r.shutdown.SetTracker(root)
		r.shutdown.SetWorkspace(workspace)
	}

	var completed, failed []string
	for i, step := range task.Steps {
		if slices.Contains(done, step.Name) {
			slog.Info("Skipping completed step", "task", task.Name, "step", step.Name)
			result.Skipped = append(result.Skipped, step.Name)
			completed = append(completed, step.Name)
			root.Update(progress.WithMessage(fmt.Sprintf("Skipped %s (already completed)", step.Name)),
				progress.WithMetadata(r.progressState(task, completed, failed, i+1)))
			continue
		}

		if err := ctx.Err(); err != nil {
			root.Fail(err, "Run cancelled")
			return result, err
		}
		if r.shutdown != nil && r.shutdown.ShutdownRequested() {
			return result, ErrShutdownRequested
		}

		sr := r.runStep(ctx, root, step, workspace)
		if sr.Err != nil {
			result.Failed = append(result.Failed, sr)
			failed = append(failed, step.Name)

			diag := recovery.Diagnose(sr.Err)
			root.ShowIntermediateResult(fmt.Sprintf("Step %s failed", step.Name), diag.Format(), "error")
			slog.Error("Step failed",
				"task", task.Name,
				"step", step.Name,
				"category", diag.Category,
				"error", sr.Err)

			if !step.ContinueOnError {
				state := r.progressState(task, completed, failed, i)
				root.Update(progress.WithIncrement(0), progress.WithMessage(fmt.Sprintf("Step %s failed", step.Name)),
					progress.WithMetadata(state))
				r.saveCheckpoint(ctx, state, fmt.Sprintf("Failed at %s", step.Name))
				root.Fail(sr.Err, fmt.Sprintf("Step %s failed", step.Name))
				return result, fmt.Errorf("step %q failed: %w", step.Name, sr.Err)
			}
		} else {
			result.Completed = append(result.Completed, sr)
			completed = append(completed, step.Name)
		}

		state := r.progressState(task, completed, failed, i+1)
		root.Update(progress.WithMessage(fmt.Sprintf("Step %s finished", step.Name)), progress.WithMetadata(state))
		r.saveCheckpoint(ctx, state, fmt.Sprintf("After %s", step.Name))
	}

	if len(failed) > 0 {
		root.Complete(fmt.Sprintf("Finished with %d failed step(s)", len(failed)))
	} else {
		root.Complete(fmt.Sprintf("All %d steps completed", len(task.Steps)))
	}
	if err := shutdown.ClearState(workspace); err != nil {
		slog.Warn("Failed to clear interrupted state", "error", err)
	}
	return result, nil
}

func (r *Runner) runStep(ctx context.Context, root *progress.Tracker, step Step, workspace string) StepResult {
	start := time.Now()
	sub := root.StartSubtask(step.Name)
	sub.StartStep(step.Run)

	strategy := r.retry.Strategy()
	if step.Retry != "" {
		// Validated on load, so an error here means the task was built by hand.
		if s, err := recovery.Preset(step.Retry); err == nil {
			strategy = s
		}
	}

	output, err := recovery.Do(ctx, r.retry, func(ctx context.Context) (string, error) {
		if step.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, step.Timeout)
			defer cancel()
		}
		return r.executor.Execute(ctx, step, workspace)
	},
		recovery.WithStrategy(strategy),
		recovery.WithOnRetry(func(err error, attempt int, delay time.Duration) {
			sub.Message(fmt.Sprintf("Retry %d for %s in %s: %v",
				attempt+1, step.Name, delay.Round(time.Millisecond), err), "warning")
			if r.onRetry != nil {
				r.onRetry(err, attempt, delay)
			}
		}),
	)

	sr := StepResult{Name: step.Name, Output: output, Err: err, Duration: time.Since(start)}
	if err != nil {
		if output != "" {
			sub.ShowIntermediateResult(step.Name+" output", output, "warning")
		}
		sub.Fail(err, fmt.Sprintf("%s failed", step.Name))
		return sr
	}

	if output != "" {
		sub.ShowIntermediateResult(step.Name, output, "result")
	}
	sub.CompleteStep(step.Name, "")
	sub.Complete(fmt.Sprintf("%s completed", step.Name))
	return sr
}

func (r *Runner) progressState(task *Task, completed, failed []string, next int) map[string]any {
	state := map[string]any{
		StateTask:           task.Name,
		StateCompletedSteps: slices.Clone(completed),
		StateFailedSteps:    slices.Clone(failed),
	}
	if next < len(task.Steps) {
		state[StateNextStep] = task.Steps[next].Name
	} else {
		state[StateNextStep] = nil
	}
	return state
}

func (r *Runner) saveCheckpoint(ctx context.Context, state map[string]any, description string) {
	if r.checkpoints == nil {
		return
	}
	if _, err := r.checkpoints.Save(ctx, state, nil, description); err != nil {
		slog.Warn("Failed to save checkpoint", "error", err)
	}
}

// resumePoint returns the steps already completed for task. The
// interrupted-state file wins over checkpoints.
func (r *Runner) resumePoint(task *Task, workspace string) []string {
	st, err := shutdown.LoadState(workspace)
	if err != nil {
		slog.Warn("Ignoring unreadable interrupted state", "error", err)
	}
	if st != nil && st.Metadata[StateTask] == task.Name {
		steps := stringList(st.Metadata[StateCompletedSteps])
		slog.Info("Resuming from interrupted state",
			"task", task.Name,
			"interrupted_at", st.InterruptedAt,
			"completed", len(steps))
		return steps
	}

	if r.checkpoints == nil {
		return nil
	}
	for _, info := range r.checkpoints.List() {
		if info.State[StateTask] != task.Name {
			continue
		}
		steps := stringList(info.State[StateCompletedSteps])
		slog.Info("Resuming from checkpoint",
			"task", task.Name,
			"checkpoint_id", info.ID,
			"completed", len(steps))
		return steps
	}
	return nil
}

// stringList accepts both in-process []string values and []any decoded
// from JSON.
func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return slices.Clone(list)
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
