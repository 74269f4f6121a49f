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
	"io"
	"os"

	"golang.org/x/term"
)

// Style selects how progress is rendered.
type Style string

const (
	StyleRich    Style = "rich"
	StyleSimple  Style = "simple"
	StyleMinimal Style = "minimal"
)

// ParseStyle converts a config value to a Style. Empty or "auto" yields "".
func ParseStyle(s string) (Style, bool) {
	switch Style(s) {
	case StyleRich, StyleSimple, StyleMinimal:
		return Style(s), true
	case "", "auto":
		return "", true
	}
	return "", false
}

// fdWriter is satisfied by *os.File.
type fdWriter interface {
	Fd() uintptr
}

// DetectStyle picks a style for w: minimal unless w is an interactive
// terminal of a supported type.
func DetectStyle(w io.Writer) Style {
	f, ok := w.(fdWriter)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return StyleMinimal
	}
	switch os.Getenv("TERM") {
	case "dumb", "unknown":
		return StyleMinimal
	}
	return StyleRich
}
