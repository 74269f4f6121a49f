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
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// eventLog collects events published on a bus.
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func recordEvents(bus *Bus) *eventLog {
	log := &eventLog{}
	bus.SubscribeAll(func(e Event) {
		log.mu.Lock()
		log.events = append(log.events, e)
		log.mu.Unlock()
	})
	return log
}

func (l *eventLog) count(t EventType) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func (l *eventLog) last() Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.events[len(l.events)-1]
}

func TestTracker_StartedOnConstruction(t *testing.T) {
	bus := NewBus()
	log := recordEvents(bus)

	tr := NewTracker("index files", WithBus(bus), WithTotalSteps(3))

	require.Equal(t, 1, log.count(EventStarted))
	e := log.last()
	assert.Same(t, tr, e.Tracker)
	assert.Equal(t, "index files", e.String("description"))
	total, ok := e.Int("total_steps")
	assert.True(t, ok)
	assert.Equal(t, 3, total)
	assert.True(t, tr.IsRunning())
}

func TestTracker_Percentage(t *testing.T) {
	bus := NewBus()
	tr := NewTracker("work", WithBus(bus), WithTotalSteps(10))

	tr.Update()
	assert.Equal(t, 10.0, tr.Percentage())

	tr.Update(WithStep(10))
	assert.Equal(t, 100.0, tr.Percentage())

	tr.Complete("")
	assert.Equal(t, 10, tr.CurrentStep())

	tr.Update()
	assert.Equal(t, 10, tr.CurrentStep())
	assert.True(t, tr.IsCompleted())
	assert.False(t, tr.IsRunning())
}

func TestTracker_PercentageEdgeCases(t *testing.T) {
	bus := NewBus()

	unknown := NewTracker("unknown", WithBus(bus))
	unknown.Update(WithIncrement(5))
	assert.Equal(t, 0.0, unknown.Percentage())

	zero := NewTracker("zero", WithBus(bus), WithTotalSteps(0))
	zero.Update()
	assert.Equal(t, 0.0, zero.Percentage())

	over := NewTracker("over", WithBus(bus), WithTotalSteps(2))
	over.Update(WithStep(5))
	assert.Equal(t, 100.0, over.Percentage())
}

func TestTracker_ETA(t *testing.T) {
	clock := newFakeClock()
	bus := NewBus()
	tr := NewTracker("eta", WithBus(bus), WithTotalSteps(10), WithClock(clock.Now))

	_, ok := tr.ETA()
	assert.False(t, ok, "no progress yet")

	clock.Advance(2 * time.Second)
	tr.Update()
	eta, ok := tr.ETA()
	require.True(t, ok)
	assert.Equal(t, 18*time.Second, eta, "falls back to elapsed per step")

	clock.Advance(4 * time.Second)
	tr.Update()
	eta, ok = tr.ETA()
	require.True(t, ok)
	assert.Equal(t, 32*time.Second, eta, "uses recorded step durations")

	tr.Update(WithStep(10))
	eta, ok = tr.ETA()
	require.True(t, ok)
	assert.Equal(t, time.Duration(0), eta)

	unknown := NewTracker("unknown", WithBus(bus))
	unknown.Update()
	_, ok = unknown.ETA()
	assert.False(t, ok)
}

func TestTracker_StepHistoryIsBounded(t *testing.T) {
	clock := newFakeClock()
	tr := NewTracker("bounded", WithBus(NewBus()), WithTotalSteps(100), WithClock(clock.Now))

	for i := 1; i <= 8; i++ {
		clock.Advance(time.Duration(i) * time.Second)
		tr.Update()
	}

	assert.Len(t, tr.stepDurations, maxStepHistory)
	assert.Equal(t, 8*time.Second, tr.stepDurations[len(tr.stepDurations)-1])
	assert.Equal(t, 4*time.Second, tr.stepDurations[0])
}

func TestTracker_UpdateEvent(t *testing.T) {
	bus := NewBus()
	log := recordEvents(bus)
	tr := NewTracker("work", WithBus(bus), WithTotalSteps(4))

	tr.Update(WithMessage("halfway"), WithIncrement(2), WithMetadata(map[string]any{"files": 12}))

	e := log.last()
	assert.Equal(t, EventUpdated, e.Type)
	step, _ := e.Int("step")
	assert.Equal(t, 2, step)
	assert.Equal(t, "halfway", e.String("message"))
	pct, _ := e.Float("percentage")
	assert.Equal(t, 50.0, pct)
	assert.Equal(t, 12, tr.Metadata()["files"])
	assert.Equal(t, "halfway", tr.LastMessage())
}

func TestTracker_StepEventsDoNotMoveCounter(t *testing.T) {
	bus := NewBus()
	log := recordEvents(bus)
	tr := NewTracker("steps", WithBus(bus))

	tr.StartStep("Step 1")
	tr.CompleteStep("Step 1", "done")

	assert.Equal(t, 0, tr.CurrentStep())
	assert.Equal(t, 1, log.count(EventStepStarted))
	assert.Equal(t, 1, log.count(EventStepCompleted))
	assert.Equal(t, "done", log.last().String("result"))

	tr.Complete("")
	tr.StartStep("late")
	tr.CompleteStep("late", "")
	assert.Equal(t, 1, log.count(EventStepStarted))
	assert.Equal(t, 1, log.count(EventStepCompleted))
}

func TestTracker_TerminalTransitionsHappenOnce(t *testing.T) {
	bus := NewBus()
	log := recordEvents(bus)
	tr := NewTracker("once", WithBus(bus))

	tr.Fail(errors.New("broken"), "")
	tr.Complete("ignored")
	tr.Fail(errors.New("again"), "")

	assert.True(t, tr.IsFailed())
	assert.False(t, tr.IsCompleted())
	assert.Equal(t, 1, log.count(EventFailed))
	assert.Equal(t, 0, log.count(EventCompleted))
	assert.Equal(t, "broken", tr.LastMessage())

	e := log.last()
	assert.Equal(t, "broken", e.String("error"))
	assert.Equal(t, "*errors.errorString", e.String("error_type"))
}

func TestTracker_ConcurrentTerminalCalls(t *testing.T) {
	bus := NewBus()
	log := recordEvents(bus)
	tr := NewTracker("race", WithBus(bus))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			tr.Complete("")
		}()
		go func() {
			defer wg.Done()
			tr.Fail(errors.New("interrupted"), "")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, log.count(EventCompleted)+log.count(EventFailed))
}

func TestTracker_DurationFreezesWhenTerminal(t *testing.T) {
	clock := newFakeClock()
	tr := NewTracker("freeze", WithBus(NewBus()), WithClock(clock.Now))

	clock.Advance(3 * time.Second)
	tr.Complete("done")
	clock.Advance(time.Hour)

	assert.Equal(t, 3*time.Second, tr.Duration())
	assert.Equal(t, "done", tr.LastMessage())
}

func TestTracker_Run(t *testing.T) {
	t.Run("error fails exactly once", func(t *testing.T) {
		bus := NewBus()
		log := recordEvents(bus)
		tr := NewTracker("run", WithBus(bus))

		err := tr.Run(func(*Tracker) error { return errors.New("exploded") })

		assert.EqualError(t, err, "exploded")
		assert.True(t, tr.IsFailed())
		assert.False(t, tr.IsRunning())
		assert.Equal(t, 1, log.count(EventFailed))
	})

	t.Run("success completes", func(t *testing.T) {
		bus := NewBus()
		log := recordEvents(bus)

		err := Track("run", func(tr *Tracker) error {
			tr.Update()
			return nil
		}, WithBus(bus), WithTotalSteps(5))

		require.NoError(t, err)
		assert.Equal(t, 1, log.count(EventCompleted))
		step, _ := log.last().Int("total_steps")
		assert.Equal(t, 5, step)
	})

	t.Run("explicit completion is not repeated", func(t *testing.T) {
		bus := NewBus()
		log := recordEvents(bus)
		tr := NewTracker("run", WithBus(bus))

		err := tr.Run(func(tr *Tracker) error {
			tr.Complete("early")
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 1, log.count(EventCompleted))
	})

	t.Run("panic fails and repanics", func(t *testing.T) {
		bus := NewBus()
		log := recordEvents(bus)
		tr := NewTracker("run", WithBus(bus))

		assert.PanicsWithValue(t, "kaboom", func() {
			_ = tr.Run(func(*Tracker) error { panic("kaboom") })
		})
		assert.True(t, tr.IsFailed())
		assert.Equal(t, 1, log.count(EventFailed))
	})
}

func TestTracker_HiddenPublishesNothing(t *testing.T) {
	bus := NewBus()
	log := recordEvents(bus)

	tr := NewTracker("quiet", WithBus(bus), WithShowProgress(false), WithTotalSteps(2))
	tr.Update()
	tr.Message("hello", "info")
	tr.ShowIntermediateResult("title", "body", "")
	sub := tr.StartSubtask("child")
	sub.Complete("")
	tr.Complete("")

	assert.Empty(t, log.events)
	assert.True(t, tr.IsCompleted())
	assert.Equal(t, 2, tr.CurrentStep())
}

func TestTracker_Subtasks(t *testing.T) {
	bus := NewBus()
	log := recordEvents(bus)
	parent := NewTracker("parent", WithBus(bus), WithTotalSteps(2))

	child := parent.StartSubtask("child", WithTotalSteps(3))

	assert.Same(t, parent, child.Parent())
	assert.Equal(t, []*Tracker{child}, parent.Children())
	assert.Equal(t, 2, log.count(EventStarted))

	parent.Complete("")
	assert.True(t, child.IsRunning(), "children finish independently")

	child.Update()
	assert.Equal(t, 1, child.CurrentStep())
}

func TestTracker_SetTotalSteps(t *testing.T) {
	bus := NewBus()
	log := recordEvents(bus)
	tr := NewTracker("grow", WithBus(bus))

	tr.SetTotalSteps(4)

	total, ok := tr.TotalSteps()
	assert.True(t, ok)
	assert.Equal(t, 4, total)
	assert.Equal(t, 1, tr.CurrentStep())
	assert.Equal(t, "Updated total steps", log.last().String("message"))
}

func TestTracker_MessagesAndResults(t *testing.T) {
	bus := NewBus()
	log := recordEvents(bus)
	tr := NewTracker("chatty", WithBus(bus))

	tr.Message("careful", "warning")
	assert.Equal(t, "warning", log.last().String("level"))

	tr.Message("plain", "")
	assert.Equal(t, "info", log.last().String("level"))

	tr.ShowIntermediateResult("Output", "42", "")
	e := log.last()
	assert.Equal(t, EventIntermediateResult, e.Type)
	assert.Equal(t, "result", e.String("category"))
}

func TestTracker_Info(t *testing.T) {
	clock := newFakeClock()
	tr := NewTracker("info", WithBus(NewBus()), WithTotalSteps(4), WithClock(clock.Now))
	clock.Advance(time.Second)
	tr.Update(WithMetadata(map[string]any{"k": "v"}))

	info := tr.Info()
	assert.Equal(t, tr.ID(), info.ID)
	assert.Equal(t, 1, info.CurrentStep)
	require.NotNil(t, info.TotalSteps)
	assert.Equal(t, 4, *info.TotalSteps)
	assert.Equal(t, 25.0, info.Percentage)
	require.NotNil(t, info.ETA)
	assert.Equal(t, 3.0, *info.ETA)
	assert.Nil(t, info.EndTime)
	assert.True(t, info.IsRunning)
	assert.Equal(t, "v", info.Metadata["k"])

	tr.Fail(nil, "stopped")
	info = tr.Info()
	assert.True(t, info.IsFailed)
	assert.NotNil(t, info.EndTime)
	assert.Contains(t, tr.String(), "status=failed")
}
