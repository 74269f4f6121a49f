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

package shutdown

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kadirpekel/steadfast/pkg/progress"
)

// Handler turns interrupt signals into an orderly exit. The first signal
// fails the associated tracker, saves its state and exits with status 0.
// A second signal while that is in progress exits immediately with status 1.
type Handler struct {
	saveState bool
	exit      func(code int)
	out       io.Writer
	now       func() time.Time

	tracker   atomic.Pointer[progress.Tracker]
	workspace atomic.Pointer[string]
	requested atomic.Bool

	signals     chan os.Signal
	done        chan struct{}
	restoreOnce sync.Once
}

// Option configures a Handler.
type Option func(*Handler)

// WithTracker associates the tracker to fail and snapshot on interrupt.
func WithTracker(t *progress.Tracker) Option {
	return func(h *Handler) { h.tracker.Store(t) }
}

// WithSaveState toggles writing the interrupted-state file.
func WithSaveState(save bool) Option {
	return func(h *Handler) { h.saveState = save }
}

// WithWorkspace sets the directory holding the interrupted-state file.
func WithWorkspace(dir string) Option {
	return func(h *Handler) {
		h.SetWorkspace(dir)
	}
}

// WithExitFunc replaces os.Exit.
func WithExitFunc(fn func(code int)) Option {
	return func(h *Handler) {
		if fn != nil {
			h.exit = fn
		}
	}
}

// WithOutput sets where user-facing notices are printed. Defaults to stderr.
func WithOutput(w io.Writer) Option {
	return func(h *Handler) {
		if w != nil {
			h.out = w
		}
	}
}

// New installs the signal handlers and returns the handler. Call Restore
// when the protected work is finished.
func New(opts ...Option) *Handler {
	h := &Handler{
		saveState: true,
		exit:      os.Exit,
		out:       os.Stderr,
		now:       time.Now,
		signals:   make(chan os.Signal, 2),
		done:      make(chan struct{}),
	}
	h.SetWorkspace(DefaultWorkspace)
	for _, opt := range opts {
		opt(h)
	}

	signal.Notify(h.signals, shutdownSignals...)
	go h.loop()

	slog.Debug("Interrupt handlers registered", "signals", len(shutdownSignals))
	return h
}

// SetTracker replaces the associated tracker.
func (h *Handler) SetTracker(t *progress.Tracker) {
	h.tracker.Store(t)
}

// ShutdownRequested reports whether an interrupt has been received.
func (h *Handler) ShutdownRequested() bool {
	return h.requested.Load()
}

// SetWorkspace changes the directory the state file is written to. An
// empty dir is ignored.
func (h *Handler) SetWorkspace(dir string) {
	if dir != "" {
		h.workspace.Store(&dir)
	}
}

// Workspace returns the directory the state file is written to.
func (h *Handler) Workspace() string {
	return *h.workspace.Load()
}

// Restore stops intercepting signals, returning them to their default
// behaviour. It is safe to call any number of times.
func (h *Handler) Restore() {
	h.restoreOnce.Do(func() {
		signal.Stop(h.signals)
		close(h.done)
		slog.Debug("Interrupt handlers restored")
	})
}

func (h *Handler) loop() {
	for {
		select {
		case <-h.done:
			return
		case sig := <-h.signals:
			h.handle(sig)
		}
	}
}

func (h *Handler) handle(sig os.Signal) {
	if !h.requested.CompareAndSwap(false, true) {
		slog.Warn("Forced exit")
		h.Restore()
		h.exit(1)
		return
	}
	// Run the graceful path off the signal loop so a second signal can
	// still force an exit while state is being written.
	go h.shutdown(sig)
}

func (h *Handler) shutdown(sig os.Signal) {
	name := signalName(sig)
	fmt.Fprintf(h.out, "\n\nReceived interrupt signal (%s), shutting down gracefully...\n", name)
	fmt.Fprintln(h.out, "(press Ctrl+C again to force exit)")

	tracker := h.tracker.Load()
	if tracker != nil && tracker.IsRunning() {
		tracker.Fail(errors.New("interrupted by "+name), "Task interrupted by user")
	}

	if h.saveState && tracker != nil {
		if _, err := WriteState(h.Workspace(), Snapshot(tracker, h.now())); err != nil {
			slog.Error("Failed to save interrupted state", "error", err)
		}
	}

	h.exit(0)
}
