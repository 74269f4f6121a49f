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
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fatih/color"
)

// FormatDuration renders d as "850ms", "1.5s", "2m 30s" or "1h 15m".
func FormatDuration(d time.Duration) string {
	seconds := d.Seconds()
	switch {
	case seconds < 1:
		return fmt.Sprintf("%.0fms", seconds*1000)
	case seconds < 60:
		return fmt.Sprintf("%.1fs", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%dm %ds", int(seconds)/60, int(seconds)%60)
	default:
		return fmt.Sprintf("%dh %dm", int(seconds)/3600, (int(seconds)%3600)/60)
	}
}

// FormatETA renders an estimate, or "?" when there is none.
func FormatETA(eta time.Duration, ok bool) string {
	if !ok {
		return "?"
	}
	return FormatDuration(eta)
}

// FormatPercentage renders value with the given number of decimals, e.g. "67.5%".
func FormatPercentage(value float64, decimals int) string {
	return strconv.FormatFloat(value, 'f', decimals, 64) + "%"
}

// FormatTimestamp formats t with layout, defaulting to "15:04:05" and the current time.
func FormatTimestamp(t time.Time, layout string) string {
	if t.IsZero() {
		t = time.Now()
	}
	if layout == "" {
		layout = time.TimeOnly
	}
	return t.Format(layout)
}

// FormatStepInfo renders "5/10", or "5" when the total is unknown.
func FormatStepInfo(current int, total *int) string {
	if total == nil {
		return strconv.Itoa(current)
	}
	return fmt.Sprintf("%d/%d", current, *total)
}

// FormatSpeed renders a throughput such as "15.5 items/s".
func FormatSpeed(items float64, elapsed time.Duration, unit string) string {
	if unit == "" {
		unit = "items"
	}
	if elapsed <= 0 {
		return fmt.Sprintf("? %s/s", unit)
	}
	speed := items / elapsed.Seconds()
	switch {
	case speed < 1:
		return fmt.Sprintf("%.2f %s/s", speed, unit)
	case speed < 100:
		return fmt.Sprintf("%.1f %s/s", speed, unit)
	default:
		return fmt.Sprintf("%.0f %s/s", speed, unit)
	}
}

// Truncate shortens text to at most maxLen runes, ending with suffix.
func Truncate(text string, maxLen int, suffix string) string {
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	runes := []rune(text)
	suffixRunes := []rune(suffix)
	keep := maxLen - len(suffixRunes)
	if keep <= 0 {
		if maxLen < 0 {
			maxLen = 0
		}
		return string(suffixRunes[:min(maxLen, len(suffixRunes))])
	}
	return string(runes[:keep]) + suffix
}

// FormatBytes renders a size such as "512 B" or "1.5 KB".
func FormatBytes(n int64) string {
	units := []string{"B", "KB", "MB", "GB", "TB"}
	size := float64(n)
	i := 0
	for size >= 1024 && i < len(units)-1 {
		size /= 1024
		i++
	}
	if i == 0 {
		return fmt.Sprintf("%d %s", n, units[0])
	}
	return fmt.Sprintf("%.1f %s", size, units[i])
}

// FormatNumber adds thousands separators: 1234567 -> "1,234,567".
func FormatNumber(n int64) string {
	s := strconv.FormatInt(n, 10)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	if len(s) <= 3 {
		return sign + s
	}

	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return sign + b.String()
}

// ProgressBar renders a bar of width cells filled to percentage.
func ProgressBar(percentage float64, width int) string {
	percentage = max(0, min(100, percentage))
	filled := int(float64(width) * percentage / 100)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// FormatTableRow left-justifies each column to its width and joins them.
func FormatTableRow(columns []string, widths []int, separator string) string {
	if separator == "" {
		separator = " | "
	}
	n := min(len(columns), len(widths))
	cells := make([]string, n)
	for i := 0; i < n; i++ {
		pad := widths[i] - utf8.RuneCountInString(columns[i])
		cells[i] = columns[i] + strings.Repeat(" ", max(0, pad))
	}
	return strings.Join(cells, separator)
}

var namedColors = map[string]color.Attribute{
	"black":   color.FgBlack,
	"red":     color.FgRed,
	"green":   color.FgGreen,
	"yellow":  color.FgYellow,
	"blue":    color.FgBlue,
	"magenta": color.FgMagenta,
	"cyan":    color.FgCyan,
	"white":   color.FgWhite,
}

// Colorize wraps text in the ANSI sequence for a named color regardless of
// terminal detection. Unknown names return text unchanged.
func Colorize(text, name string) string {
	attr, ok := namedColors[strings.ToLower(name)]
	if !ok {
		return text
	}
	c := color.New(attr)
	c.EnableColor()
	return c.Sprint(text)
}

// FormatKeyValues renders a map as indented "key: value" lines with keys
// sorted. Nested maps are indented, slices show their length.
func FormatKeyValues(data map[string]any, indent int) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	prefix := strings.Repeat("  ", indent)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		v := data[k]
		if nested, ok := v.(map[string]any); ok {
			lines = append(lines, prefix+k+":")
			if len(nested) > 0 {
				lines = append(lines, FormatKeyValues(nested, indent+1))
			}
			continue
		}
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
			lines = append(lines, fmt.Sprintf("%s%s: [%d items]", prefix, k, rv.Len()))
			continue
		}
		lines = append(lines, fmt.Sprintf("%s%s: %v", prefix, k, v))
	}
	return strings.Join(lines, "\n")
}
