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

package observability

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kadirpekel/steadfast/pkg/progress"
	"github.com/kadirpekel/steadfast/pkg/recovery"
)

type activeTracker struct {
	tracker *progress.Tracker
	span    trace.Span
	ctx     context.Context
}

// Recorder turns progress events into spans and metrics, and keeps the
// set of running trackers for the /progress endpoint.
type Recorder struct {
	tracer  trace.Tracer
	metrics *Metrics

	mu     sync.Mutex
	active map[string]*activeTracker
	bus    *progress.Bus
	sub    progress.Subscription
}

// NewRecorder creates a recorder. A nil tracer or metrics disables that
// side.
func NewRecorder(tracer trace.Tracer, metrics *Metrics) *Recorder {
	return &Recorder{
		tracer:  tracer,
		metrics: metrics,
		active:  make(map[string]*activeTracker),
	}
}

// NewRecorderFromManager creates a recorder using the manager's providers.
func NewRecorderFromManager(m *Manager) *Recorder {
	return NewRecorder(m.Tracer("steadfast/progress"), m.Metrics())
}

// Attach subscribes to every event on bus.
func (r *Recorder) Attach(bus *progress.Bus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bus != nil {
		return
	}
	r.bus = bus
	r.sub = bus.SubscribeAll(r.HandleEvent)
}

// Detach unsubscribes from the bus.
func (r *Recorder) Detach() {
	r.mu.Lock()
	bus, sub := r.bus, r.sub
	r.bus = nil
	r.mu.Unlock()
	if bus != nil {
		bus.UnsubscribeAll(sub)
	}
}

// HandleEvent records one event.
func (r *Recorder) HandleEvent(e progress.Event) {
	if e.Tracker == nil {
		return
	}
	id := e.Tracker.ID()

	switch e.Type {
	case progress.EventStarted:
		r.start(e.Tracker)
	case progress.EventStepCompleted:
		r.metrics.StepCompleted(context.Background())
	case progress.EventCompleted:
		r.finish(id, "completed", func(span trace.Span) {
			span.SetStatus(codes.Ok, e.String("message"))
		})
	case progress.EventFailed:
		r.finish(id, "failed", func(span trace.Span) {
			span.SetAttributes(attribute.String(AttrErrorType, e.String("error_type")))
			span.SetStatus(codes.Error, e.String("error"))
		})
	default:
		r.mu.Lock()
		at := r.active[id]
		r.mu.Unlock()
		if at != nil && at.span != nil {
			at.span.AddEvent(string(e.Type), trace.WithAttributes(attribute.String("message", e.String("message"))))
		}
	}
}

func (r *Recorder) start(t *progress.Tracker) {
	ctx := context.Background()

	r.mu.Lock()
	if parent := t.Parent(); parent != nil {
		if p := r.active[parent.ID()]; p != nil {
			ctx = p.ctx
		}
	}
	r.mu.Unlock()

	at := &activeTracker{tracker: t, ctx: ctx}
	if r.tracer != nil {
		attrs := []attribute.KeyValue{
			attribute.String(AttrTrackerID, t.ID()),
			attribute.String(AttrTrackerDescription, t.Description()),
		}
		if total, ok := t.TotalSteps(); ok {
			attrs = append(attrs, attribute.Int(AttrTrackerTotalSteps, total))
		}
		at.ctx, at.span = r.tracer.Start(ctx, SpanTracker,
			trace.WithTimestamp(t.StartTime()),
			trace.WithAttributes(attrs...))
	}

	r.mu.Lock()
	r.active[t.ID()] = at
	r.mu.Unlock()

	r.metrics.TrackerStarted(ctx)
}

func (r *Recorder) finish(id, outcome string, annotate func(trace.Span)) {
	r.mu.Lock()
	at := r.active[id]
	delete(r.active, id)
	r.mu.Unlock()
	if at == nil {
		return
	}

	if at.span != nil {
		annotate(at.span)
		at.span.SetAttributes(attribute.Int(AttrTrackerSteps, at.tracker.CurrentStep()))
		end := at.tracker.EndTime()
		if end.IsZero() {
			end = time.Now()
		}
		at.span.End(trace.WithTimestamp(end))
	}
	r.metrics.TrackerFinished(at.ctx, outcome, at.tracker.Duration())
}

// Active returns snapshots of running trackers, oldest first.
func (r *Recorder) Active() []progress.Info {
	r.mu.Lock()
	trackers := make([]*progress.Tracker, 0, len(r.active))
	for at := range maps.Values(r.active) {
		trackers = append(trackers, at.tracker)
	}
	r.mu.Unlock()

	slices.SortFunc(trackers, func(a, b *progress.Tracker) int {
		return a.StartTime().Compare(b.StartTime())
	})
	out := make([]progress.Info, 0, len(trackers))
	for _, t := range trackers {
		out = append(out, t.Info())
	}
	return out
}

// RetryObserver returns a retry callback that counts retries by category.
func RetryObserver(m *Metrics) recovery.RetryFunc {
	return func(err error, _ int, _ time.Duration) {
		m.RetryRecorded(context.Background(), string(recovery.Classify(err)))
	}
}
