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
	"sync"

	"github.com/kadirpekel/steadfast/pkg/progress"
)

// Handler translates bus events into Display calls.
type Handler struct {
	display *Display

	mu     sync.Mutex
	bus    *progress.Bus
	sub    progress.Subscription
	active map[*progress.Tracker]struct{}
}

// NewHandler creates a handler rendering to d.
func NewHandler(d *Display) *Handler {
	return &Handler{
		display: d,
		active:  make(map[*progress.Tracker]struct{}),
	}
}

// Attach subscribes the handler to every event on bus. A handler is
// attached to at most one bus; attaching again moves it.
func (h *Handler) Attach(bus *progress.Bus) {
	h.Detach()
	h.mu.Lock()
	h.bus = bus
	h.sub = bus.SubscribeAll(h.HandleEvent)
	h.mu.Unlock()
}

// Detach unsubscribes from the bus, if attached.
func (h *Handler) Detach() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.bus != nil {
		h.bus.UnsubscribeAll(h.sub)
		h.bus = nil
	}
}

// ActiveCount returns how many trackers have started but not finished.
func (h *Handler) ActiveCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.active)
}

// HandleEvent renders a single event.
func (h *Handler) HandleEvent(e progress.Event) {
	tracker := e.Tracker

	switch e.Type {
	case progress.EventStarted:
		var total *int
		if n, ok := e.Int("total_steps"); ok {
			total = &n
		}
		h.display.CreateTask(tracker, e.String("description"), total)
		h.setActive(tracker, true)

	case progress.EventUpdated:
		description := tracker.Description()
		if msg := e.String("message"); msg != "" {
			description = description + ": " + msg
		}
		u := TaskUpdate{Description: description}
		if step, ok := e.Int("step"); ok {
			u.Completed = &step
		}
		if total, ok := e.Int("total"); ok {
			u.Total = &total
		}
		h.display.UpdateTask(tracker, u)

	case progress.EventCompleted:
		h.display.CompleteTask(tracker, e.String("message"))
		h.setActive(tracker, false)

	case progress.EventFailed:
		msg := e.String("message")
		if msg == "" {
			msg = e.String("error")
		}
		if msg == "" {
			msg = "Unknown error"
		}
		h.display.FailTask(tracker, msg)
		h.setActive(tracker, false)

	case progress.EventStepStarted:
		if name := e.String("step_name"); name != "" {
			h.display.UpdateTask(tracker, TaskUpdate{Description: tracker.Description() + ": " + name})
		}

	case progress.EventStepCompleted:
		if result := e.String("result"); result != "" {
			h.display.ShowStatus("✓ "+e.String("step_name")+": "+result, "success")
		}

	case progress.EventIntermediateResult:
		title := e.String("title")
		if title == "" {
			title = "Result"
		}
		h.display.ShowIntermediateResult(title, e.String("content"), e.String("category"))

	case progress.EventMessage:
		level := e.String("level")
		if level == "" {
			level = "info"
		}
		h.display.ShowStatus(e.String("text"), level)
	}
}

// Close detaches the handler and stops the display.
func (h *Handler) Close() {
	h.Detach()
	h.display.Stop()
	h.mu.Lock()
	clear(h.active)
	h.mu.Unlock()
}

func (h *Handler) setActive(tracker *progress.Tracker, active bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if active {
		h.active[tracker] = struct{}{}
	} else {
		delete(h.active, tracker)
	}
}
