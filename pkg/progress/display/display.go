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

package display

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/kadirpekel/steadfast/pkg/progress"
)

// DefaultMaxResultLength bounds intermediate result blocks.
const DefaultMaxResultLength = 200

var statusIcons = map[string]string{
	"info":    "ℹ",
	"success": "✓",
	"warning": "⚠",
	"error":   "✗",
}

func statusIcon(level string) string {
	if icon, ok := statusIcons[level]; ok {
		return icon
	}
	return "•"
}

type options struct {
	style           Style
	showPercentage  bool
	showETA         bool
	showSteps       bool
	showResults     bool
	maxResultLength int
	now             func() time.Time
}

// Option configures a Display.
type Option func(*options)

// WithStyle forces a style instead of detecting one from the output.
func WithStyle(s Style) Option {
	return func(o *options) { o.style = s }
}

// WithShowPercentage toggles the percentage column of the rich style.
func WithShowPercentage(show bool) Option {
	return func(o *options) { o.showPercentage = show }
}

// WithShowETA toggles the ETA column of the rich style.
func WithShowETA(show bool) Option {
	return func(o *options) { o.showETA = show }
}

// WithShowSteps toggles the step counter of the rich style.
func WithShowSteps(show bool) Option {
	return func(o *options) { o.showSteps = show }
}

// WithIntermediateResults toggles intermediate result blocks.
func WithIntermediateResults(show bool) Option {
	return func(o *options) { o.showResults = show }
}

// WithMaxResultLength sets the truncation length of intermediate results.
func WithMaxResultLength(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxResultLength = n
		}
	}
}

// WithTimeSource replaces time.Now for timestamps.
func WithTimeSource(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// TaskUpdate carries the fields to change on a task slot. Nil and empty
// fields are left alone.
type TaskUpdate struct {
	Completed   *int
	Total       *int
	Description string
}

// Display renders task progress to a writer.
type Display struct {
	out  io.Writer
	opts options

	mu   sync.Mutex
	rich *richRenderer
}

// New creates a display writing to out. Without WithStyle the style is
// detected from out.
func New(out io.Writer, opts ...Option) *Display {
	o := options{
		showPercentage:  true,
		showETA:         true,
		showSteps:       true,
		showResults:     true,
		maxResultLength: DefaultMaxResultLength,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.style == "" {
		o.style = DetectStyle(out)
	}

	d := &Display{out: out, opts: o}
	if o.style == StyleRich {
		r, err := newRichRenderer(out, o)
		if err != nil {
			slog.Warn("Rich display unavailable, falling back to simple mode", "error", err)
			d.opts.style = StyleSimple
		} else {
			d.rich = r
		}
	}
	return d
}

// Style returns the effective style after detection and fallback.
func (d *Display) Style() Style {
	return d.opts.style
}

// CreateTask opens a slot for tracker. Only the rich style draws slots.
func (d *Display) CreateTask(tracker *progress.Tracker, description string, total *int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.rich != nil {
		d.rich.add(tracker, description, total)
	}
}

// UpdateTask refreshes the slot for tracker. The simple and minimal styles
// print one timestamped line per update that carries a description.
func (d *Display) UpdateTask(tracker *progress.Tracker, u TaskUpdate) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.opts.style {
	case StyleRich:
		d.rich.update(tracker, u)
	case StyleSimple:
		if u.Description == "" {
			return
		}
		ts := FormatTimestamp(d.opts.now(), "")
		if total, ok := tracker.TotalSteps(); ok && total > 0 {
			fmt.Fprintf(d.out, "[%s] [%3.0f%%] %d/%d %s\n", ts, tracker.Percentage(), tracker.CurrentStep(), total, u.Description)
		} else {
			fmt.Fprintf(d.out, "[%s] %s\n", ts, u.Description)
		}
	case StyleMinimal:
		if u.Description == "" {
			return
		}
		fmt.Fprintf(d.out, "[%s] %s\n", FormatTimestamp(d.opts.now(), ""), u.Description)
	}
}

// CompleteTask finalises the slot for tracker and reports the elapsed time.
func (d *Display) CompleteTask(tracker *progress.Tracker, message string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	elapsed := FormatDuration(tracker.Duration())
	switch d.opts.style {
	case StyleRich:
		d.rich.complete(tracker)
		if message != "" {
			d.rich.status(message, "success")
		}
	case StyleSimple:
		if message == "" {
			message = "Completed"
		}
		fmt.Fprintf(d.out, "✓ %s (took %s)\n", message, elapsed)
	case StyleMinimal:
		fmt.Fprintf(d.out, "Completed in %s\n", elapsed)
	}
}

// FailTask closes the slot for tracker and prints an error line.
func (d *Display) FailTask(tracker *progress.Tracker, message string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.rich != nil {
		d.rich.remove(tracker)
	}
	d.statusLocked("Failed: "+message, "error")
}

// ShowStatus prints an icon-prefixed status line. level is info, success,
// warning or error.
func (d *Display) ShowStatus(message, level string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.statusLocked(message, level)
}

func (d *Display) statusLocked(message, level string) {
	if d.rich != nil {
		d.rich.status(message, level)
		return
	}
	fmt.Fprintf(d.out, "%s %s\n", statusIcon(level), message)
}

// ShowIntermediateResult prints a titled block truncated to the configured length.
func (d *Display) ShowIntermediateResult(title, content, category string) {
	if !d.opts.showResults {
		return
	}
	if len([]rune(content)) > d.opts.maxResultLength {
		content = string([]rune(content)[:d.opts.maxResultLength]) + "..."
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.rich != nil {
		d.rich.panel(title, content, category)
		return
	}
	fmt.Fprintf(d.out, "\n%s:\n%s\n\n", title, content)
}

// Stop ends any in-place rendering.
func (d *Display) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.rich != nil {
		d.rich.stop()
	}
}
