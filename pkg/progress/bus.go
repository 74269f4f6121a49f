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

import (
	"log/slog"
	"slices"
	"sync"
)

// Listener receives published events.
type Listener func(Event)

// Subscription identifies a registered listener.
type Subscription uint64

type registration struct {
	id       Subscription
	listener Listener
}

// Bus is a synchronous publish/subscribe hub for progress events.
// Global listeners run before type-scoped ones; each group runs in
// registration order.
type Bus struct {
	mu     sync.RWMutex
	nextID Subscription
	global []registration
	byType map[EventType][]registration
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{byType: make(map[EventType][]registration)}
}

// Subscribe registers listener for one event type.
func (b *Bus) Subscribe(eventType EventType, listener Listener) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.byType[eventType] = append(b.byType[eventType], registration{id: b.nextID, listener: listener})
	return b.nextID
}

// SubscribeAll registers listener for every event type.
func (b *Bus) SubscribeAll(listener Listener) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.global = append(b.global, registration{id: b.nextID, listener: listener})
	return b.nextID
}

// Unsubscribe removes a type-scoped listener. Unknown subscriptions are ignored.
func (b *Bus) Unsubscribe(eventType EventType, sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	regs := b.byType[eventType]
	b.byType[eventType] = slices.DeleteFunc(regs, func(r registration) bool { return r.id == sub })
	if len(b.byType[eventType]) == 0 {
		delete(b.byType, eventType)
	}
}

// UnsubscribeAll removes a global listener. Unknown subscriptions are ignored.
func (b *Bus) UnsubscribeAll(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.global = slices.DeleteFunc(b.global, func(r registration) bool { return r.id == sub })
}

// Publish delivers event to every matching listener. A panicking listener
// is logged and skipped; Publish itself never fails.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	global := slices.Clone(b.global)
	scoped := slices.Clone(b.byType[event.Type])
	b.mu.RUnlock()

	for _, r := range global {
		dispatch(r.listener, event, "global")
	}
	for _, r := range scoped {
		dispatch(r.listener, event, "typed")
	}
}

func dispatch(listener Listener, event Event, scope string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Progress listener failed",
				"scope", scope,
				"event", event.Type,
				"error", r)
		}
	}()
	listener(event)
}

// Clear drops every listener.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.global = nil
	b.byType = make(map[EventType][]registration)
}

// ListenerCount returns the number of listeners for eventType, or the total
// across global and typed listeners when eventType is empty.
func (b *Bus) ListenerCount(eventType EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if eventType != "" {
		return len(b.byType[eventType])
	}
	total := len(b.global)
	for _, regs := range b.byType {
		total += len(regs)
	}
	return total
}
