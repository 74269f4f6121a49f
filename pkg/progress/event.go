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

import "time"

// EventType identifies what happened to a tracker.
type EventType string

const (
	EventStarted            EventType = "started"
	EventUpdated            EventType = "updated"
	EventCompleted          EventType = "completed"
	EventFailed             EventType = "failed"
	EventStepStarted        EventType = "step_started"
	EventStepCompleted      EventType = "step_completed"
	EventIntermediateResult EventType = "intermediate_result"
	EventMessage            EventType = "message"
)

// EventTypes lists every event type.
func EventTypes() []EventType {
	return []EventType{
		EventStarted,
		EventUpdated,
		EventCompleted,
		EventFailed,
		EventStepStarted,
		EventStepCompleted,
		EventIntermediateResult,
		EventMessage,
	}
}

// Event is published by a tracker. Listeners must treat it as read-only.
type Event struct {
	Type      EventType
	Tracker   *Tracker
	Data      map[string]any
	Timestamp time.Time
}

// String returns the value for key as a string, or "" when absent.
func (e Event) String(key string) string {
	if v, ok := e.Data[key].(string); ok {
		return v
	}
	return ""
}

// Int returns the value for key as an int.
func (e Event) Int(key string) (int, bool) {
	switch v := e.Data[key].(type) {
	case int:
		return v, true
	case *int:
		if v != nil {
			return *v, true
		}
	}
	return 0, false
}

// Float returns the value for key as a float64.
func (e Event) Float(key string) (float64, bool) {
	switch v := e.Data[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}
