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
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"

	"github.com/kadirpekel/steadfast/pkg/progress"
)

const (
	clearLine = "\r\033[2K"
	barWidth  = 30
	maxPanel  = 100
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

type richTask struct {
	description string
	total       int
	completed   int
}

// richRenderer draws a single in-place progress line for the most recently
// touched task. Status lines and panels are printed above it.
type richRenderer struct {
	out   io.Writer
	opts  options
	tasks map[*progress.Tracker]*richTask
	live  bool
	frame int

	description *color.Color
	steps       *color.Color
	dim         *color.Color
	levels      map[string]*color.Color
}

func newRichRenderer(out io.Writer, opts options) (*richRenderer, error) {
	if color.NoColor {
		return nil, errors.New("output does not support colors")
	}

	return &richRenderer{
		out:         out,
		opts:        opts,
		tasks:       make(map[*progress.Tracker]*richTask),
		description: color.New(color.FgBlue, color.Bold),
		steps:       color.New(color.FgCyan),
		dim:         color.New(color.Faint),
		levels: map[string]*color.Color{
			"info":    color.New(color.FgBlue),
			"success": color.New(color.FgGreen),
			"warning": color.New(color.FgYellow),
			"error":   color.New(color.FgRed),
			"result":  color.New(color.FgGreen),
		},
	}, nil
}

func (r *richRenderer) levelColor(level string) *color.Color {
	if c, ok := r.levels[level]; ok {
		return c
	}
	return color.New(color.FgWhite)
}

func (r *richRenderer) add(tracker *progress.Tracker, description string, total *int) {
	t := &richTask{description: description, total: 100}
	if total != nil && *total > 0 {
		t.total = *total
	}
	r.tasks[tracker] = t
	r.render(tracker, t, false)
}

func (r *richRenderer) update(tracker *progress.Tracker, u TaskUpdate) {
	t, ok := r.tasks[tracker]
	if !ok {
		return
	}
	if u.Completed != nil {
		t.completed = *u.Completed
	}
	if u.Total != nil && *u.Total > 0 {
		t.total = *u.Total
	}
	if u.Description != "" {
		t.description = u.Description
	}
	r.render(tracker, t, false)
}

func (r *richRenderer) complete(tracker *progress.Tracker) {
	t, ok := r.tasks[tracker]
	if !ok {
		return
	}
	t.completed = t.total
	r.render(tracker, t, true)
	fmt.Fprint(r.out, "\n")
	r.live = false
	delete(r.tasks, tracker)
}

func (r *richRenderer) remove(tracker *progress.Tracker) {
	if _, ok := r.tasks[tracker]; !ok {
		return
	}
	delete(r.tasks, tracker)
	r.clear()
}

func (r *richRenderer) render(tracker *progress.Tracker, t *richTask, done bool) {
	pct := min(100, float64(t.completed)/float64(t.total)*100)

	icon := spinnerFrames[r.frame%len(spinnerFrames)]
	r.frame++
	if done {
		icon = r.levels["success"].Sprint("✓")
	}

	parts := []string{icon, r.description.Sprint(t.description)}
	if r.opts.showSteps {
		parts = append(parts, r.steps.Sprintf("%d/%d", t.completed, t.total))
	}
	parts = append(parts, ProgressBar(pct, barWidth))
	if r.opts.showPercentage {
		parts = append(parts, fmt.Sprintf("%3.0f%%", pct))
	}
	if r.opts.showETA && !done {
		parts = append(parts, r.dim.Sprint(FormatETA(tracker.ETA())))
	}

	fmt.Fprint(r.out, clearLine+strings.Join(parts, " "))
	r.live = true
}

func (r *richRenderer) clear() {
	if r.live {
		fmt.Fprint(r.out, clearLine)
		r.live = false
	}
}

func (r *richRenderer) status(message, level string) {
	r.clear()
	fmt.Fprintf(r.out, "%s %s\n", r.levelColor(level).Sprint(statusIcon(level)), message)
}

func (r *richRenderer) panel(title, content, category string) {
	r.clear()
	border := r.levelColor(category)

	lines := strings.Split(content, "\n")
	width := utf8.RuneCountInString(title) + 4
	for _, l := range lines {
		width = max(width, utf8.RuneCountInString(l)+2)
	}
	width = min(width, maxPanel)

	heading := "─ " + title + " "
	top := "╭" + heading + strings.Repeat("─", max(0, width-utf8.RuneCountInString(heading))) + "╮"
	fmt.Fprintln(r.out, border.Sprint(top))
	for _, l := range lines {
		l = Truncate(l, width-2, "…")
		pad := width - 2 - utf8.RuneCountInString(l)
		fmt.Fprintf(r.out, "%s %s%s %s\n", border.Sprint("│"), l, strings.Repeat(" ", max(0, pad)), border.Sprint("│"))
	}
	fmt.Fprintln(r.out, border.Sprint("╰"+strings.Repeat("─", width)+"╯"))
}

func (r *richRenderer) stop() {
	if r.live {
		fmt.Fprint(r.out, "\n")
		r.live = false
	}
	clear(r.tasks)
}
