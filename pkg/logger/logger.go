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

// Package logger configures the process-wide slog logger.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/lmittmann/tint"
	"golang.org/x/term"
)

// Log formats accepted by Init.
const (
	FormatSimple  = "simple"
	FormatVerbose = "verbose"
	FormatPretty  = "pretty"
	FormatJSON    = "json"
)

const modulePrefix = "github.com/kadirpekel/steadfast"

// sourceRoot is the module directory this file was built from; it matches
// callers whose function names are rewritten by vendoring or -trimpath.
var sourceRoot = func() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return ""
	}
	return filepath.ToSlash(filepath.Dir(filepath.Dir(filepath.Dir(file)))) + "/"
}()

var (
	mu            sync.Mutex
	defaultLogger *slog.Logger
)

// ParseLevel converts a string log level to slog.Level.
// Valid levels: debug, info, warn, error.
func ParseLevel(levelStr string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (valid: debug, info, warn, error)", levelStr)
	}
}

// filteringHandler drops records logged outside this module unless the
// level is DEBUG.
type filteringHandler struct {
	handler  slog.Handler
	minLevel slog.Level
}

func (h *filteringHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.minLevel && h.handler.Enabled(ctx, level)
}

func (h *filteringHandler) Handle(ctx context.Context, record slog.Record) error {
	if h.minLevel <= slog.LevelDebug || isOwnPackage(record.PC) {
		return h.handler.Handle(ctx, record)
	}
	return nil
}

func (h *filteringHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &filteringHandler{handler: h.handler.WithAttrs(attrs), minLevel: h.minLevel}
}

func (h *filteringHandler) WithGroup(name string) slog.Handler {
	return &filteringHandler{handler: h.handler.WithGroup(name), minLevel: h.minLevel}
}

func isOwnPackage(pc uintptr) bool {
	if pc == 0 {
		return true
	}
	// CallersFrames expands inlined calls; FuncForPC would report the
	// slog function the caller was inlined into.
	frame, _ := runtime.CallersFrames([]uintptr{pc}).Next()
	if strings.HasPrefix(frame.Function, modulePrefix) {
		return true
	}
	return sourceRoot != "/" && strings.HasPrefix(filepath.ToSlash(frame.File), sourceRoot)
}

func levelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "\033[31m"
	case level >= slog.LevelWarn:
		return "\033[33m"
	case level >= slog.LevelInfo:
		return "\033[36m"
	default:
		return "\033[90m"
	}
}

func levelName(level slog.Level) string {
	name := strings.ToUpper(level.String())
	if name == "WARNING" {
		return "WARN"
	}
	return name
}

// lineHandler writes "LEVEL message k=v" lines, optionally prefixed with
// the time and with the level colored.
type lineHandler struct {
	mu       *sync.Mutex
	writer   io.Writer
	level    slog.Leveler
	attrs    []slog.Attr
	group    string
	useColor bool
	withTime bool
}

func (h *lineHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *lineHandler) Handle(_ context.Context, record slog.Record) error {
	var buf strings.Builder

	if h.withTime && !record.Time.IsZero() {
		buf.WriteString(record.Time.Format("2006/01/02 15:04:05 "))
	}
	if h.useColor {
		buf.WriteString(levelColor(record.Level))
		buf.WriteString(levelName(record.Level))
		buf.WriteString("\033[0m")
	} else {
		buf.WriteString(levelName(record.Level))
	}
	buf.WriteString(" ")
	buf.WriteString(record.Message)

	for _, a := range h.attrs {
		writeAttr(&buf, "", a)
	}
	record.Attrs(func(a slog.Attr) bool {
		writeAttr(&buf, h.group, a)
		return true
	})
	buf.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.writer, buf.String())
	return err
}

func (h *lineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = slices.Clone(h.attrs)
	for _, a := range attrs {
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		clone.attrs = append(clone.attrs, a)
	}
	return &clone
}

func (h *lineHandler) WithGroup(name string) slog.Handler {
	clone := *h
	if clone.group != "" {
		name = clone.group + "." + name
	}
	clone.group = name
	return &clone
}

func writeAttr(buf *strings.Builder, group string, a slog.Attr) {
	buf.WriteString(" ")
	if group != "" {
		buf.WriteString(group)
		buf.WriteString(".")
	}
	buf.WriteString(a.Key)
	buf.WriteString("=")
	buf.WriteString(a.Value.Resolve().String())
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// NewHandler builds the handler for format without installing it.
func NewHandler(level slog.Level, output io.Writer, format string) slog.Handler {
	useColor := IsTerminal(output)

	var handler slog.Handler
	switch format {
	case FormatSimple, "":
		handler = &lineHandler{mu: &sync.Mutex{}, writer: output, level: level, useColor: useColor}
	case FormatVerbose:
		handler = &lineHandler{mu: &sync.Mutex{}, writer: output, level: level, useColor: useColor, withTime: true}
	case FormatPretty:
		handler = tint.NewHandler(output, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
			NoColor:    !useColor,
		})
	case FormatJSON:
		handler = slog.NewJSONHandler(output, &slog.HandlerOptions{Level: level})
	default:
		handler = slog.NewTextHandler(output, &slog.HandlerOptions{Level: level})
	}
	return &filteringHandler{handler: handler, minLevel: level}
}

// Init installs the default logger. Records from other modules are only
// shown at DEBUG.
//
// format: "simple" (level + message), "verbose" (time + level + message),
// "pretty" (tinted), "json", or anything else for slog's text format.
func Init(level slog.Level, output io.Writer, format string) {
	logger := slog.New(NewHandler(level, output, format))

	mu.Lock()
	defaultLogger = logger
	mu.Unlock()

	slog.SetDefault(logger)
}

// OpenLogFile opens or creates a log file for appending and returns it
// with a cleanup function.
func OpenLogFile(path string) (*os.File, func(), error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, err
	}
	return file, func() { _ = file.Close() }, nil
}

// GetLogger returns the default logger, initializing it at INFO on stderr
// if Init was never called.
func GetLogger() *slog.Logger {
	mu.Lock()
	l := defaultLogger
	mu.Unlock()
	if l == nil {
		Init(slog.LevelInfo, os.Stderr, FormatSimple)
		mu.Lock()
		l = defaultLogger
		mu.Unlock()
	}
	return l
}
