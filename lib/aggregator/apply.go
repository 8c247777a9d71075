// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package aggregator

import (
	"time"

	"github.com/bureau-foundation/runscope/lib/event"
	"github.com/bureau-foundation/runscope/lib/histogram"
	"github.com/bureau-foundation/runscope/lib/schema/console"
)

// apply folds one event into state. It must only be called from the
// goroutine that owns the aggregator: the Run loop, or a test driving
// the aggregator directly without Run.
func (a *Aggregator) apply(ev event.Event) {
	a.counters.ProcessedEvents++

	switch ev.Type {
	case event.TaskSpawned:
		a.spawnTask(ev)
	case event.TaskPollStart:
		a.pollTask(ev, true)
	case event.TaskPollEnd:
		a.pollTask(ev, false)
	case event.TaskCompleted:
		a.completeTask(ev)
	case event.WakerCloned, event.WakerDropped, event.WakerWoken:
		a.wakerEvent(ev)
	case event.ResourceCreated:
		a.createResource(ev)
	case event.ResourceDropped:
		a.dropResource(ev)
	case event.AsyncOpCreated:
		a.createAsyncOp(ev)
	case event.AsyncOpPollStart:
		a.pollAsyncOp(ev, true)
	case event.AsyncOpPollEnd:
		a.pollAsyncOp(ev, false)
	case event.AsyncOpCompleted:
		a.completeAsyncOp(ev)
	default:
		a.counters.InvalidTransition++
	}
}

func (a *Aggregator) newTask(id event.TaskID, at time.Time) *task {
	return &task{
		id:        id,
		state:     console.TaskIdle,
		createdAt: at,
		poll:      newPollStats(a.precision),
		scheduled: histogram.New(a.precision),
	}
}

// taskFor returns the task for an update, synthesizing a placeholder
// for an unknown ID. It returns nil for the zero ID and for recently
// evicted IDs.
func (a *Aggregator) taskFor(id event.TaskID, at time.Time) *task {
	if t, ok := a.tasks[id]; ok {
		return t
	}
	if a.tombstones[event.KindTask].contains(uint64(id)) {
		a.counters.LateEvents++
		return nil
	}
	a.counters.UnknownEntity++
	if id == 0 {
		return nil
	}
	t := a.newTask(id, at)
	t.placeholder = true
	a.tasks[id] = t
	a.dirtyTasks[id] = struct{}{}
	return t
}

func (a *Aggregator) spawnTask(ev event.Event) {
	if ev.Task == 0 {
		a.counters.UnknownEntity++
		return
	}
	if existing, ok := a.tasks[ev.Task]; ok {
		if !existing.placeholder {
			a.counters.DuplicateSpawn++
			return
		}
		existing.placeholder = false
		existing.createdAt = ev.At
		existing.descriptor = describe(ev.Meta)
		a.dirtyTasks[ev.Task] = struct{}{}
		return
	}
	t := a.newTask(ev.Task, ev.At)
	t.descriptor = describe(ev.Meta)
	a.tasks[ev.Task] = t
	a.dirtyTasks[ev.Task] = struct{}{}
}

func (a *Aggregator) pollTask(ev event.Event, begin bool) {
	t := a.taskFor(ev.Task, ev.At)
	if t == nil {
		return
	}
	if t.terminal() {
		a.counters.InvalidTransition++
		return
	}

	if begin {
		if !t.poll.start(ev.At) {
			a.counters.NestedPollStart++
			return
		}
		t.state = console.TaskRunning
		if !t.wokenAt.IsZero() {
			t.scheduled.Record(ev.At.Sub(t.wokenAt))
			t.wokenAt = time.Time{}
		}
		a.polling[t.id] = t
	} else {
		if !t.poll.end(ev.At) {
			a.counters.UnmatchedPollEnd++
			return
		}
		t.state = console.TaskIdle
		delete(a.polling, t.id)
	}
	a.dirtyTasks[t.id] = struct{}{}
}

func (a *Aggregator) completeTask(ev event.Event) {
	t := a.taskFor(ev.Task, ev.At)
	if t == nil {
		return
	}
	if t.terminal() {
		a.counters.DuplicateCompletion++
		return
	}
	t.poll.abandon()
	delete(a.polling, t.id)
	t.state = console.TaskCompleted
	t.completedAt = ev.At
	a.retire(event.KindTask, uint64(t.id), ev.At)
	a.dirtyTasks[t.id] = struct{}{}
}

// wakerEvent updates waker statistics. Wakers may legitimately be
// dropped or woken after their task completed, so terminal tasks still
// accept waker updates.
func (a *Aggregator) wakerEvent(ev event.Event) {
	t := a.taskFor(ev.Task, ev.At)
	if t == nil {
		return
	}
	switch ev.Type {
	case event.WakerCloned:
		t.wakerClones++
	case event.WakerDropped:
		t.wakerDrops++
	case event.WakerWoken:
		t.wakes++
		t.lastWake = ev.At
		if ev.Self {
			t.selfWakes++
		}
		if !t.terminal() && t.wokenAt.IsZero() {
			t.wokenAt = ev.At
		}
	}
	a.dirtyTasks[t.id] = struct{}{}
}

func (a *Aggregator) resourceFor(id event.ResourceID, at time.Time) *resource {
	if r, ok := a.resources[id]; ok {
		return r
	}
	if a.tombstones[event.KindResource].contains(uint64(id)) {
		a.counters.LateEvents++
		return nil
	}
	a.counters.UnknownEntity++
	if id == 0 {
		return nil
	}
	r := &resource{id: id, state: console.ResourceLive, createdAt: at, placeholder: true}
	a.resources[id] = r
	a.dirtyResources[id] = struct{}{}
	return r
}

func (a *Aggregator) createResource(ev event.Event) {
	if ev.Resource == 0 {
		a.counters.UnknownEntity++
		return
	}
	if existing, ok := a.resources[ev.Resource]; ok {
		if !existing.placeholder {
			a.counters.DuplicateSpawn++
			return
		}
		existing.placeholder = false
		existing.createdAt = ev.At
		existing.owner = ev.Task
		existing.descriptor = describe(ev.Meta)
		a.dirtyResources[ev.Resource] = struct{}{}
		return
	}
	a.resources[ev.Resource] = &resource{
		id:         ev.Resource,
		owner:      ev.Task,
		descriptor: describe(ev.Meta),
		state:      console.ResourceLive,
		createdAt:  ev.At,
	}
	a.dirtyResources[ev.Resource] = struct{}{}
}

func (a *Aggregator) dropResource(ev event.Event) {
	r := a.resourceFor(ev.Resource, ev.At)
	if r == nil {
		return
	}
	if r.terminal() {
		a.counters.DuplicateCompletion++
		return
	}
	r.state = console.ResourceDropped
	r.droppedAt = ev.At
	a.retire(event.KindResource, uint64(r.id), ev.At)
	a.dirtyResources[r.id] = struct{}{}
}

func (a *Aggregator) asyncOpFor(id event.AsyncOpID, at time.Time) *asyncOp {
	if o, ok := a.asyncOps[id]; ok {
		return o
	}
	if a.tombstones[event.KindAsyncOp].contains(uint64(id)) {
		a.counters.LateEvents++
		return nil
	}
	a.counters.UnknownEntity++
	if id == 0 {
		return nil
	}
	o := &asyncOp{
		id:          id,
		state:       console.AsyncOpPending,
		createdAt:   at,
		placeholder: true,
		poll:        newPollStats(a.precision),
	}
	a.asyncOps[id] = o
	a.dirtyAsyncOps[id] = struct{}{}
	return o
}

func (a *Aggregator) createAsyncOp(ev event.Event) {
	if ev.AsyncOp == 0 {
		a.counters.UnknownEntity++
		return
	}
	if existing, ok := a.asyncOps[ev.AsyncOp]; ok {
		if !existing.placeholder {
			a.counters.DuplicateSpawn++
			return
		}
		existing.placeholder = false
		existing.createdAt = ev.At
		existing.resource = ev.Resource
		existing.owner = ev.Task
		existing.descriptor = describe(ev.Meta)
		a.dirtyAsyncOps[ev.AsyncOp] = struct{}{}
		return
	}
	a.asyncOps[ev.AsyncOp] = &asyncOp{
		id:         ev.AsyncOp,
		resource:   ev.Resource,
		owner:      ev.Task,
		descriptor: describe(ev.Meta),
		state:      console.AsyncOpPending,
		createdAt:  ev.At,
		poll:       newPollStats(a.precision),
	}
	a.dirtyAsyncOps[ev.AsyncOp] = struct{}{}
}

func (a *Aggregator) pollAsyncOp(ev event.Event, begin bool) {
	o := a.asyncOpFor(ev.AsyncOp, ev.At)
	if o == nil {
		return
	}
	if o.terminal() {
		a.counters.InvalidTransition++
		return
	}

	if begin {
		if !o.poll.start(ev.At) {
			a.counters.NestedPollStart++
			return
		}
	} else {
		if !o.poll.end(ev.At) {
			a.counters.UnmatchedPollEnd++
			return
		}
		if ev.Ready {
			o.state = console.AsyncOpReady
		}
	}
	a.dirtyAsyncOps[o.id] = struct{}{}
}

func (a *Aggregator) completeAsyncOp(ev event.Event) {
	o := a.asyncOpFor(ev.AsyncOp, ev.At)
	if o == nil {
		return
	}
	if o.terminal() {
		a.counters.DuplicateCompletion++
		return
	}
	o.poll.abandon()
	o.state = console.AsyncOpConsumed
	o.consumedAt = ev.At
	a.retire(event.KindAsyncOp, uint64(o.id), ev.At)
	a.dirtyAsyncOps[o.id] = struct{}{}
}
