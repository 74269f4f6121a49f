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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0ms"},
		{500 * time.Millisecond, "500ms"},
		{1500 * time.Millisecond, "1.5s"},
		{150 * time.Second, "2m 30s"},
		{4500 * time.Second, "1h 15m"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDuration(tt.in))
		})
	}

	assert.Equal(t, "?", FormatETA(0, false))
	assert.Equal(t, "2.0s", FormatETA(2*time.Second, true))
}

func TestFormatNumber(t *testing.T) {
	tests := map[int64]string{
		0:        "0",
		999:      "999",
		1000:     "1,000",
		123456:   "123,456",
		1234567:  "1,234,567",
		-1234:    "-1,234",
		-999:     "-999",
	}
	for in, want := range tests {
		assert.Equal(t, want, FormatNumber(in), "input %d", in)
	}
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.5 KB", FormatBytes(1536))
	assert.Equal(t, "1.0 MB", FormatBytes(1<<20))
	assert.Equal(t, "2.0 TB", FormatBytes(2<<40))
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		max    int
		suffix string
		want   string
	}{
		{"fits", "hi", 5, "...", "hi"},
		{"exact", "hello", 5, "...", "hello"},
		{"cut", "hello world", 8, "...", "hello..."},
		{"suffix longer than max", "hello", 2, "...", ".."},
		{"runes", "héllo wörld", 7, "…", "héllo …"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Truncate(tt.text, tt.max, tt.suffix))
		})
	}
}

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "█████░░░░░", ProgressBar(50, 10))
	assert.Equal(t, "██████████", ProgressBar(150, 10))
	assert.Equal(t, "░░░░░░░░░░", ProgressBar(-5, 10))
	assert.Equal(t, "", ProgressBar(50, 0))
}

func TestFormatSpeed(t *testing.T) {
	assert.Equal(t, "15.5 items/s", FormatSpeed(31, 2*time.Second, ""))
	assert.Equal(t, "0.25 files/s", FormatSpeed(1, 4*time.Second, "files"))
	assert.Equal(t, "500 items/s", FormatSpeed(500, time.Second, ""))
	assert.Equal(t, "? items/s", FormatSpeed(10, 0, ""))
}

func TestSmallFormatters(t *testing.T) {
	assert.Equal(t, "45%", FormatPercentage(45, 0))
	assert.Equal(t, "67.5%", FormatPercentage(67.5, 1))

	total := 10
	assert.Equal(t, "5/10", FormatStepInfo(5, &total))
	assert.Equal(t, "5", FormatStepInfo(5, nil))

	ts := time.Date(2025, 3, 4, 9, 8, 7, 0, time.UTC)
	assert.Equal(t, "09:08:07", FormatTimestamp(ts, ""))
	assert.Equal(t, "2025-03-04", FormatTimestamp(ts, time.DateOnly))

	assert.Equal(t, "a   | bb ", FormatTableRow([]string{"a", "bb"}, []int{3, 3}, ""))
	assert.Equal(t, "a,b", FormatTableRow([]string{"a", "b", "c"}, []int{1, 1}, ","))
}

func TestColorize(t *testing.T) {
	assert.Equal(t, "\x1b[31mx\x1b[0m", Colorize("x", "red"))
	assert.Equal(t, "\x1b[32mok\x1b[0m", Colorize("ok", "GREEN"))
	assert.Equal(t, "plain", Colorize("plain", "chartreuse"))
}

func TestFormatKeyValues(t *testing.T) {
	data := map[string]any{
		"b": 1,
		"a": map[string]any{"c": "d"},
		"l": []int{1, 2},
	}

	want := "a:\n  c: d\nb: 1\nl: [2 items]"
	assert.Equal(t, want, FormatKeyValues(data, 0))
}

func TestDetectStyle(t *testing.T) {
	assert.Equal(t, StyleMinimal, DetectStyle(&bytes.Buffer{}))

	s, ok := ParseStyle("auto")
	assert.True(t, ok)
	assert.Equal(t, Style(""), s)

	s, ok = ParseStyle("rich")
	assert.True(t, ok)
	assert.Equal(t, StyleRich, s)

	_, ok = ParseStyle("fancy")
	assert.False(t, ok)
}
