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

package progress

import (
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
)

// maxStepHistory bounds the step durations used for ETA smoothing.
const maxStepHistory = 5

// Tracker follows one unit of work. Trackers form a tree through
// StartSubtask; a parent finishing does not finish its children.
//
// A tracker is RUNNING until the first call to Complete or Fail, after
// which it is frozen and every mutating call is a no-op. The terminal
// transition is safe to race from a signal handling goroutine.
type Tracker struct {
	id           string
	description  string
	parent       *Tracker
	bus          *Bus
	showProgress bool
	now          func() time.Time

	mu            sync.Mutex
	totalSteps    *int
	currentStep   int
	startTime     time.Time
	endTime       time.Time
	stepStartedAt time.Time
	stepDurations []time.Duration
	metadata      map[string]any
	children      []*Tracker
	completed     bool
	failed        bool
	lastMessage   string
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithTotalSteps sets the expected number of steps.
func WithTotalSteps(n int) TrackerOption {
	return func(t *Tracker) {
		t.totalSteps = &n
	}
}

// WithBus publishes events to b instead of the default bus.
func WithBus(b *Bus) TrackerOption {
	return func(t *Tracker) {
		if b != nil {
			t.bus = b
		}
	}
}

// WithShowProgress toggles event publishing. Hidden trackers still track state.
func WithShowProgress(show bool) TrackerOption {
	return func(t *Tracker) {
		t.showProgress = show
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTracker creates a running tracker and publishes EventStarted.
func NewTracker(description string, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		id:           uuid.NewString(),
		description:  description,
		showProgress: true,
		now:          time.Now,
		metadata:     make(map[string]any),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.bus == nil {
		t.bus = DefaultBus()
	}
	t.startTime = t.now()

	t.emit(EventStarted, map[string]any{
		"description": description,
		"total_steps": t.totalSteps,
	})
	return t
}

// UpdateOption adjusts a single Update call.
type UpdateOption func(*update)

type update struct {
	step      *int
	message   string
	increment int
	metadata  map[string]any
}

// WithStep sets the current step absolutely instead of incrementing.
func WithStep(step int) UpdateOption {
	return func(u *update) { u.step = &step }
}

// WithMessage attaches a progress message.
func WithMessage(msg string) UpdateOption {
	return func(u *update) { u.message = msg }
}

// WithIncrement changes the increment from the default of 1.
func WithIncrement(n int) UpdateOption {
	return func(u *update) { u.increment = n }
}

// WithMetadata merges md into the tracker metadata.
func WithMetadata(md map[string]any) UpdateOption {
	return func(u *update) { u.metadata = md }
}

// Update advances the tracker and publishes EventUpdated.
func (t *Tracker) Update(opts ...UpdateOption) {
	u := update{increment: 1}
	for _, opt := range opts {
		opt(&u)
	}

	t.mu.Lock()
	if t.terminalLocked() {
		t.mu.Unlock()
		return
	}

	now := t.now()
	if !t.stepStartedAt.IsZero() {
		t.stepDurations = append(t.stepDurations, now.Sub(t.stepStartedAt))
		if len(t.stepDurations) > maxStepHistory {
			t.stepDurations = t.stepDurations[len(t.stepDurations)-maxStepHistory:]
		}
	}

	if u.step != nil {
		t.currentStep = *u.step
	} else {
		t.currentStep += u.increment
	}
	t.stepStartedAt = now

	maps.Copy(t.metadata, u.metadata)
	t.lastMessage = u.message

	data := map[string]any{
		"step":       t.currentStep,
		"total":      t.totalSteps,
		"message":    u.message,
		"percentage": t.percentageLocked(),
		"metadata":   u.metadata,
	}
	if eta, ok := t.etaLocked(now); ok {
		data["eta"] = eta.Seconds()
	} else {
		data["eta"] = nil
	}
	t.mu.Unlock()

	t.emit(EventUpdated, data)
}

// StartStep announces a named step. It does not move the step counter.
func (t *Tracker) StartStep(name string) {
	t.mu.Lock()
	if t.terminalLocked() {
		t.mu.Unlock()
		return
	}
	step := t.currentStep
	t.mu.Unlock()

	t.emit(EventStepStarted, map[string]any{
		"step":      step,
		"step_name": name,
	})
}

// CompleteStep announces the end of a named step with an optional result.
func (t *Tracker) CompleteStep(name, result string) {
	t.mu.Lock()
	if t.terminalLocked() {
		t.mu.Unlock()
		return
	}
	step := t.currentStep
	t.mu.Unlock()

	t.emit(EventStepCompleted, map[string]any{
		"step":      step,
		"step_name": name,
		"result":    result,
	})
}

// ShowIntermediateResult publishes a titled result block. category is one
// of result, error, warning or info.
func (t *Tracker) ShowIntermediateResult(title, content, category string) {
	if category == "" {
		category = "result"
	}
	t.emit(EventIntermediateResult, map[string]any{
		"title":    title,
		"content":  content,
		"category": category,
	})
}

// Message publishes a status line. level is one of info, success, warning or error.
func (t *Tracker) Message(text, level string) {
	if level == "" {
		level = "info"
	}
	t.emit(EventMessage, map[string]any{
		"text":  text,
		"level": level,
	})
}

// StartSubtask creates a child tracker sharing this tracker's bus and visibility.
func (t *Tracker) StartSubtask(description string, opts ...TrackerOption) *Tracker {
	base := []TrackerOption{
		WithBus(t.bus),
		WithShowProgress(t.showProgress),
		WithClock(t.now),
		func(c *Tracker) { c.parent = t },
	}
	child := NewTracker(description, append(base, opts...)...)

	t.mu.Lock()
	t.children = append(t.children, child)
	t.mu.Unlock()
	return child
}

// Complete marks the tracker completed. Only the first terminal call has effect.
func (t *Tracker) Complete(message string) {
	t.mu.Lock()
	if t.terminalLocked() {
		t.mu.Unlock()
		return
	}
	t.endTime = t.now()
	t.completed = true
	t.lastMessage = message
	if t.lastMessage == "" {
		t.lastMessage = "Completed"
	}
	if t.totalSteps != nil {
		t.currentStep = *t.totalSteps
	}
	data := map[string]any{
		"message":     message,
		"duration":    t.durationLocked().Seconds(),
		"total_steps": t.currentStep,
	}
	t.mu.Unlock()

	t.emit(EventCompleted, data)
}

// Fail marks the tracker failed. Only the first terminal call has effect.
func (t *Tracker) Fail(err error, message string) {
	if err == nil {
		err = errors.New("unknown error")
	}

	t.mu.Lock()
	if t.terminalLocked() {
		t.mu.Unlock()
		return
	}
	t.endTime = t.now()
	t.failed = true
	t.lastMessage = message
	if t.lastMessage == "" {
		t.lastMessage = err.Error()
	}
	data := map[string]any{
		"error":           err.Error(),
		"error_type":      fmt.Sprintf("%T", err),
		"message":         message,
		"duration":        t.durationLocked().Seconds(),
		"completed_steps": t.currentStep,
	}
	t.mu.Unlock()

	t.emit(EventFailed, data)
}

// SetTotalSteps changes the expected step count and publishes an update.
func (t *Tracker) SetTotalSteps(total int) {
	t.mu.Lock()
	t.totalSteps = &total
	t.mu.Unlock()
	t.Update(WithMessage("Updated total steps"))
}

// Run calls fn and finishes the tracker from its outcome: Complete on nil,
// Fail on error, Fail and re-panic on panic. The tracker always ends terminal.
func (t *Tracker) Run(fn func(*Tracker) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			t.Fail(fmt.Errorf("panic: %v", r), "")
			panic(r)
		}
	}()

	if err = fn(t); err != nil {
		t.Fail(err, "")
		return err
	}
	t.Complete("")
	return nil
}

// Track creates a tracker and runs fn under it.
func Track(description string, fn func(*Tracker) error, opts ...TrackerOption) error {
	return NewTracker(description, opts...).Run(fn)
}

// ID returns the tracker's unique identifier.
func (t *Tracker) ID() string { return t.id }

// Description returns the tracker description.
func (t *Tracker) Description() string { return t.description }

// Parent returns the parent tracker, or nil for a root.
func (t *Tracker) Parent() *Tracker { return t.parent }

// ShowProgress reports whether events are published.
func (t *Tracker) ShowProgress() bool { return t.showProgress }

// Children returns a copy of the subtask list.
func (t *Tracker) Children() []*Tracker {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Tracker, len(t.children))
	copy(out, t.children)
	return out
}

// CurrentStep returns the current step.
func (t *Tracker) CurrentStep() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.currentStep
}

// TotalSteps returns the expected step count, if known.
func (t *Tracker) TotalSteps() (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.totalSteps == nil {
		return 0, false
	}
	return *t.totalSteps, true
}

// StartTime returns when the tracker was created.
func (t *Tracker) StartTime() time.Time { return t.startTime }

// EndTime returns when the tracker finished, or the zero time while running.
func (t *Tracker) EndTime() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.endTime
}

// Metadata returns a copy of the merged metadata.
func (t *Tracker) Metadata() map[string]any {
	t.mu.Lock()
	defer t.mu.Unlock()
	return maps.Clone(t.metadata)
}

// LastMessage returns the most recent update, completion or failure message.
func (t *Tracker) LastMessage() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastMessage
}

func (t *Tracker) IsCompleted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completed
}

func (t *Tracker) IsFailed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failed
}

func (t *Tracker) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.terminalLocked()
}

// Percentage returns completion in [0, 100]; 0 when the total is unknown or zero.
func (t *Tracker) Percentage() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.percentageLocked()
}

// Duration returns elapsed time, frozen once the tracker is terminal.
func (t *Tracker) Duration() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.durationLocked()
}

// ETA estimates the remaining time. ok is false when the total is unknown
// or no step has been made.
func (t *Tracker) ETA() (eta time.Duration, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.etaLocked(t.now())
}

// Info is a point-in-time view of a tracker.
type Info struct {
	ID            string         `json:"id"`
	Description   string         `json:"description"`
	CurrentStep   int            `json:"current_step"`
	TotalSteps    *int           `json:"total_steps"`
	Percentage    float64        `json:"percentage"`
	Duration      float64        `json:"duration"`
	ETA           *float64       `json:"eta"`
	IsCompleted   bool           `json:"is_completed"`
	IsFailed      bool           `json:"is_failed"`
	IsRunning     bool           `json:"is_running"`
	LastMessage   string         `json:"last_message"`
	StartTime     time.Time      `json:"start_time"`
	EndTime       *time.Time     `json:"end_time"`
	Metadata      map[string]any `json:"metadata"`
	ChildrenCount int            `json:"children_count"`
}

// Info returns a snapshot of the tracker state.
func (t *Tracker) Info() Info {
	t.mu.Lock()
	defer t.mu.Unlock()

	info := Info{
		ID:            t.id,
		Description:   t.description,
		CurrentStep:   t.currentStep,
		Percentage:    t.percentageLocked(),
		Duration:      t.durationLocked().Seconds(),
		IsCompleted:   t.completed,
		IsFailed:      t.failed,
		IsRunning:     !t.terminalLocked(),
		LastMessage:   t.lastMessage,
		StartTime:     t.startTime,
		Metadata:      maps.Clone(t.metadata),
		ChildrenCount: len(t.children),
	}
	if t.totalSteps != nil {
		total := *t.totalSteps
		info.TotalSteps = &total
	}
	if eta, ok := t.etaLocked(t.now()); ok {
		secs := eta.Seconds()
		info.ETA = &secs
	}
	if !t.endTime.IsZero() {
		end := t.endTime
		info.EndTime = &end
	}
	return info
}

func (t *Tracker) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	status := "running"
	switch {
	case t.completed:
		status = "completed"
	case t.failed:
		status = "failed"
	}
	total := "?"
	if t.totalSteps != nil {
		total = fmt.Sprint(*t.totalSteps)
	}
	return fmt.Sprintf("Tracker(description=%q, step=%d/%s, status=%s)", t.description, t.currentStep, total, status)
}

func (t *Tracker) terminalLocked() bool {
	return t.completed || t.failed
}

func (t *Tracker) percentageLocked() float64 {
	if t.totalSteps == nil || *t.totalSteps == 0 {
		return 0
	}
	return min(100, float64(t.currentStep)/float64(*t.totalSteps)*100)
}

func (t *Tracker) durationLocked() time.Duration {
	end := t.endTime
	if end.IsZero() {
		end = t.now()
	}
	return end.Sub(t.startTime)
}

func (t *Tracker) etaLocked(now time.Time) (time.Duration, bool) {
	if t.totalSteps == nil || t.currentStep <= 0 {
		return 0, false
	}
	if t.currentStep >= *t.totalSteps {
		return 0, true
	}

	var perStep time.Duration
	if n := len(t.stepDurations); n > 0 {
		var sum time.Duration
		for _, d := range t.stepDurations {
			sum += d
		}
		perStep = sum / time.Duration(n)
	} else {
		end := t.endTime
		if end.IsZero() {
			end = now
		}
		perStep = end.Sub(t.startTime) / time.Duration(t.currentStep)
	}
	return perStep * time.Duration(*t.totalSteps-t.currentStep), true
}

func (t *Tracker) emit(eventType EventType, data map[string]any) {
	if !t.showProgress {
		return
	}
	t.bus.Publish(Event{
		Type:      eventType,
		Tracker:   t,
		Data:      data,
		Timestamp: t.now(),
	})
}
