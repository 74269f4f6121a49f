// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package agent implements the think/act loop that drives a task to
// completion, reporting progress, retrying model calls and saving a
// checkpoint after every step.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kadirpekel/steadfast/pkg/checkpoint"
	"github.com/kadirpekel/steadfast/pkg/history"
	"github.com/kadirpekel/steadfast/pkg/progress"
	"github.com/kadirpekel/steadfast/pkg/progress/display"
	"github.com/kadirpekel/steadfast/pkg/recovery"
	"github.com/kadirpekel/steadfast/pkg/schema"
)

// State is the lifecycle state of an agent.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateFinished State = "finished"
)

// DefaultMaxSteps bounds a run when no limit is configured.
const DefaultMaxSteps = 10

// Thinker decides whether an action is needed.
type Thinker interface {
	Think(ctx context.Context) (bool, error)
}

// Actor performs the action decided by the last Think.
type Actor interface {
	Act(ctx context.Context) (string, error)
}

// Brain thinks and acts.
type Brain interface {
	Thinker
	Actor
}

// finisher is implemented by brains that can end a run early.
type finisher interface {
	Finished() bool
}

// memoryOwner is implemented by brains that keep the conversation.
type memoryOwner interface {
	Memory() *schema.Memory
}

// ErrNotIdle is returned when Run is called on a busy agent.
var ErrNotIdle = errors.New("agent is not idle")

// Option configures a ReActAgent.
type Option func(*ReActAgent)

// WithMaxSteps bounds the number of think/act cycles per run.
func WithMaxSteps(n int) Option {
	return func(a *ReActAgent) {
		if n > 0 {
			a.maxSteps = n
		}
	}
}

// WithMemory sets the conversation memory.
func WithMemory(m *schema.Memory) Option {
	return func(a *ReActAgent) { a.memory = m }
}

// WithRetryHandler sets the handler used around Think.
func WithRetryHandler(h *recovery.Handler) Option {
	return func(a *ReActAgent) { a.retry = h }
}

// WithRetryStrategy overrides the strategy used around Think.
func WithRetryStrategy(s recovery.Strategy) Option {
	return func(a *ReActAgent) { a.strategy = s }
}

// WithCheckpoints saves a checkpoint after every step.
func WithCheckpoints(m *checkpoint.Manager) Option {
	return func(a *ReActAgent) { a.checkpoints = m }
}

// WithHistory saves the conversation when a run ends.
func WithHistory(m *history.Manager, sessionID string) Option {
	return func(a *ReActAgent) {
		a.history = m
		a.sessionID = sessionID
	}
}

// WithTrackerOptions passes options to the per-run tracker.
func WithTrackerOptions(opts ...progress.TrackerOption) Option {
	return func(a *ReActAgent) { a.trackerOpts = append(a.trackerOpts, opts...) }
}

// WithOnStart is called with the tracker of each run before the first step.
func WithOnStart(fn func(*progress.Tracker)) Option {
	return func(a *ReActAgent) { a.onStart = fn }
}

// ReActAgent alternates thinking and acting until the brain finishes or
// the step budget runs out.
type ReActAgent struct {
	name  string
	brain Brain

	maxSteps    int
	memory      *schema.Memory
	retry       *recovery.Handler
	strategy    recovery.Strategy
	checkpoints *checkpoint.Manager
	history     *history.Manager
	sessionID   string
	trackerOpts []progress.TrackerOption
	onStart     func(*progress.Tracker)

	state       State
	currentStep int
	tracker     *progress.Tracker
}

// New creates an agent around brain.
func New(name string, brain Brain, opts ...Option) *ReActAgent {
	a := &ReActAgent{
		name:     name,
		brain:    brain,
		maxSteps: DefaultMaxSteps,
		strategy: recovery.APIStrategy(),
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.memory == nil {
		if owner, ok := brain.(memoryOwner); ok {
			a.memory = owner.Memory()
		} else {
			a.memory = schema.NewMemory(0)
		}
	}
	if a.retry == nil {
		a.retry = recovery.Default()
	}
	return a
}

// Name returns the agent name.
func (a *ReActAgent) Name() string { return a.name }

// State returns the lifecycle state.
func (a *ReActAgent) State() State { return a.state }

// CurrentStep returns the step being executed, or the last one executed.
func (a *ReActAgent) CurrentStep() int { return a.currentStep }

// Memory returns the conversation memory.
func (a *ReActAgent) Memory() *schema.Memory { return a.memory }

// Tracker returns the tracker of the current or last run.
func (a *ReActAgent) Tracker() *progress.Tracker { return a.tracker }

// Step runs one think/act cycle.
func (a *ReActAgent) Step(ctx context.Context) (string, error) {
	stepName := fmt.Sprintf("Step %d", a.currentStep)
	if a.tracker != nil {
		a.tracker.StartStep(stepName)
	}

	shouldAct, err := recovery.Do(ctx, a.retry, a.brain.Think,
		recovery.WithStrategy(a.strategy),
		recovery.WithOnRetry(a.reportRetry))
	if err != nil {
		return "", err
	}

	if !shouldAct {
		result := "Thinking complete - no action needed"
		if a.tracker != nil {
			a.tracker.CompleteStep(stepName, result)
			a.tracker.Update(progress.WithMessage(result), progress.WithIncrement(1))
		}
		return result, nil
	}

	result, err := a.brain.Act(ctx)
	if err != nil {
		return "", err
	}

	if a.tracker != nil {
		a.tracker.CompleteStep(stepName, "Completed")
		a.tracker.Update(progress.WithMessage(stepName+" completed"), progress.WithIncrement(1))
	}
	return result, nil
}

func (a *ReActAgent) reportRetry(err error, attempt int, delay time.Duration) {
	if a.tracker == nil {
		return
	}
	a.tracker.Message(fmt.Sprintf("Retrying after %s (attempt %d): %v",
		display.FormatDuration(delay), attempt+1, err), "warning")
}

// Run executes steps until the brain finishes, a step fails or the step
// budget is used up. The request, when non-empty, is added to memory first.
func (a *ReActAgent) Run(ctx context.Context, request string) (string, error) {
	if a.state != StateIdle {
		return "", fmt.Errorf("%w: cannot run agent from state %s", ErrNotIdle, a.state)
	}
	if request != "" {
		a.memory.Add(schema.UserMessage(request))
	}

	opts := append([]progress.TrackerOption{progress.WithTotalSteps(a.maxSteps)}, a.trackerOpts...)
	a.tracker = progress.NewTracker(a.describe(request), opts...)
	if a.onStart != nil {
		a.onStart(a.tracker)
	}
	defer a.saveHistory()

	a.state = StateRunning
	a.currentStep = 0
	var results []string

	for a.currentStep < a.maxSteps && a.state != StateFinished {
		if err := ctx.Err(); err != nil {
			a.state = StateIdle
			a.tracker.Fail(err, "Run cancelled")
			return strings.Join(results, "\n"), err
		}

		a.currentStep++
		slog.Debug("Executing step", "agent", a.name, "step", a.currentStep, "max_steps", a.maxSteps)

		result, err := a.Step(ctx)
		if err != nil {
			diagnosis := recovery.Diagnose(err)
			slog.Error("Step failed",
				"agent", a.name,
				"step", a.currentStep,
				"category", diagnosis.Category,
				"retryable", diagnosis.Retryable,
				"error", err)
			a.tracker.Fail(err, fmt.Sprintf("Step %d failed", a.currentStep))
			a.state = StateIdle
			return strings.Join(results, "\n"), fmt.Errorf("step %d failed: %w", a.currentStep, err)
		}

		results = append(results, fmt.Sprintf("Step %d: %s", a.currentStep, result))
		if f, ok := a.brain.(finisher); ok && f.Finished() {
			a.state = StateFinished
		}
		a.saveCheckpoint(ctx, result)
	}

	if a.state != StateFinished && a.currentStep >= a.maxSteps {
		results = append(results, fmt.Sprintf("Terminated: Reached max steps (%d)", a.maxSteps))
	}
	a.tracker.Complete(fmt.Sprintf("Completed in %d steps", a.currentStep))
	a.currentStep = 0
	a.state = StateIdle

	if len(results) == 0 {
		return "No steps executed", nil
	}
	return strings.Join(results, "\n"), nil
}

func (a *ReActAgent) describe(request string) string {
	if request == "" {
		return a.name
	}
	return a.name + ": " + display.Truncate(request, 60, "...")
}

func (a *ReActAgent) saveCheckpoint(ctx context.Context, result string) {
	if a.checkpoints == nil {
		return
	}
	state := map[string]any{
		"agent":        a.name,
		"current_step": a.currentStep,
		"max_steps":    a.maxSteps,
		"state":        string(a.state),
		"last_result":  result,
	}
	if _, err := a.checkpoints.Save(ctx, state, a.memory, fmt.Sprintf("Step %d", a.currentStep)); err != nil {
		slog.Warn("Failed to save checkpoint", "agent", a.name, "step", a.currentStep, "error", err)
	}
}

func (a *ReActAgent) saveHistory() {
	if a.history == nil || a.sessionID == "" {
		return
	}
	if _, err := a.history.Save(history.SaveRequest{
		SessionID: a.sessionID,
		Memory:    a.memory,
		AgentName: a.name,
		AgentType: "ReActAgent",
	}); err != nil {
		slog.Warn("Failed to save conversation history", "session_id", a.sessionID, "error", err)
	}
}
