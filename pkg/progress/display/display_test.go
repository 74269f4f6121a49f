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
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/steadfast/pkg/progress"
)

var fixedNow = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func newSimpleSetup(t *testing.T, style Style, opts ...Option) (*bytes.Buffer, *progress.Bus, *Handler) {
	t.Helper()
	var buf bytes.Buffer
	bus := progress.NewBus()
	d := New(&buf, append([]Option{WithStyle(style), WithTimeSource(fixedClock)}, opts...)...)
	h := NewHandler(d)
	h.Attach(bus)
	t.Cleanup(h.Close)
	return &buf, bus, h
}

func TestHandler_SimpleStyle(t *testing.T) {
	buf, bus, h := newSimpleSetup(t, StyleSimple)

	tr := progress.NewTracker("Build", progress.WithBus(bus), progress.WithTotalSteps(4), progress.WithClock(fixedClock))
	assert.Equal(t, 1, h.ActiveCount())

	tr.Update(progress.WithMessage("compiling"))
	tr.StartStep("link")
	tr.CompleteStep("link", "ok")
	tr.Message("heads up", "warning")
	tr.ShowIntermediateResult("Output", strings.Repeat("x", 250), "")
	tr.Complete("all done")

	want := "[12:00:00] [ 25%] 1/4 Build: compiling\n" +
		"[12:00:00] [ 25%] 1/4 Build: link\n" +
		"✓ ✓ link: ok\n" +
		"⚠ heads up\n" +
		"\nOutput:\n" + strings.Repeat("x", 200) + "...\n\n" +
		"✓ all done (took 0ms)\n"
	assert.Equal(t, want, buf.String())
	assert.Equal(t, 0, h.ActiveCount())
}

func TestHandler_Failure(t *testing.T) {
	buf, bus, h := newSimpleSetup(t, StyleSimple)

	tr := progress.NewTracker("Deploy", progress.WithBus(bus))
	tr.Fail(errors.New("boom"), "")

	assert.Equal(t, "✗ Failed: boom\n", buf.String())
	assert.Equal(t, 0, h.ActiveCount())

	buf.Reset()
	other := progress.NewTracker("Other", progress.WithBus(bus))
	other.Fail(errors.New("ignored"), "Task interrupted by user")
	assert.Equal(t, "✗ Failed: Task interrupted by user\n", buf.String())
}

func TestHandler_MinimalStyle(t *testing.T) {
	buf, bus, _ := newSimpleSetup(t, StyleMinimal)

	tr := progress.NewTracker("Sync", progress.WithBus(bus), progress.WithClock(fixedClock))
	tr.Update()
	tr.Message("note", "unknown-level")
	tr.Complete("")

	want := "[12:00:00] Sync\n" +
		"• note\n" +
		"Completed in 0ms\n"
	assert.Equal(t, want, buf.String())
}

func TestHandler_IntermediateResultsDisabled(t *testing.T) {
	buf, bus, _ := newSimpleSetup(t, StyleSimple, WithIntermediateResults(false))

	tr := progress.NewTracker("Quiet", progress.WithBus(bus))
	tr.ShowIntermediateResult("Hidden", "content", "info")

	assert.Empty(t, buf.String())
}

func TestHandler_Detach(t *testing.T) {
	buf, bus, h := newSimpleSetup(t, StyleSimple)

	h.Detach()
	h.Detach()
	assert.Equal(t, 0, bus.ListenerCount(""))

	tr := progress.NewTracker("Gone", progress.WithBus(bus))
	tr.Message("nobody listens", "info")
	assert.Empty(t, buf.String())
}

func TestDisplay_RichFallsBackWithoutColor(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	d := New(&bytes.Buffer{}, WithStyle(StyleRich))
	assert.Equal(t, StyleSimple, d.Style())
}

func TestDisplay_RichRendersBar(t *testing.T) {
	prev := color.NoColor
	color.NoColor = false
	t.Cleanup(func() { color.NoColor = prev })

	buf, bus, _ := newSimpleSetup(t, StyleRich)

	tr := progress.NewTracker("Index", progress.WithBus(bus), progress.WithTotalSteps(2), progress.WithClock(fixedClock))
	tr.Update()
	tr.ShowIntermediateResult("Peek", "line one\nline two", "warning")
	tr.Complete("finished")

	out := buf.String()
	require.NotEmpty(t, out)
	assert.Contains(t, out, "Index")
	assert.Contains(t, out, "█")
	assert.Contains(t, out, " 50%")
	assert.Contains(t, out, "100%")
	assert.Contains(t, out, "Peek")
	assert.Contains(t, out, "line two")
	assert.Contains(t, out, "finished")
}
