// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package instrument

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/bureau-foundation/runscope/lib/clock"
	"github.com/bureau-foundation/runscope/lib/event"
	"github.com/bureau-foundation/runscope/lib/ring"
	"github.com/bureau-foundation/runscope/lib/taskctx"
)

// Recorder turns lifecycle hooks into queued events.
type Recorder struct {
	queue  *ring.Queue[event.Event]
	clock  clock.Clock
	target string

	nextTask     atomic.Uint64
	nextResource atomic.Uint64
	nextAsyncOp  atomic.Uint64
}

// New returns a Recorder pushing into queue. target names the
// instrumented subsystem on every created entity. A nil clock means
// clock.Real().
func New(queue *ring.Queue[event.Event], clk clock.Clock, target string) *Recorder {
	if clk == nil {
		clk = clock.Real()
	}
	return &Recorder{queue: queue, clock: clk, target: target}
}

func (r *Recorder) emit(ev event.Event) {
	ev.At = r.clock.Now()
	r.queue.Push(ev)
}

// callerLocation returns "file:line" for the caller skip frames above
// the hook.
func callerLocation(skip int) string {
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%s:%d", file, line)
}

// SpawnTask registers a new task and returns its ID. The spawn site is
// the caller of SpawnTask.
func (r *Recorder) SpawnTask(name string, fields ...event.Field) event.TaskID {
	if r == nil {
		return 0
	}
	id := event.TaskID(r.nextTask.Add(1))
	location := callerLocation(1)
	r.emit(event.Event{
		Type: event.TaskSpawned,
		Task: id,
		Meta: &event.Metadata{
			Target:   r.target,
			Name:     name,
			Location: location,
			Fields: append([]event.Field{
				event.F(event.FieldTaskName, name),
				event.F(event.FieldSpawnLocation, location),
			}, fields...),
		},
	})
	return id
}

// CompleteTask marks a task finished.
func (r *Recorder) CompleteTask(id event.TaskID) {
	if r == nil {
		return
	}
	r.emit(event.Event{Type: event.TaskCompleted, Task: id})
}

// Poll is an in-progress task poll. End must be called exactly once,
// typically deferred.
type Poll struct {
	recorder *Recorder
	task     event.TaskID
	guard    taskctx.Guard
	ended    bool
}

// BeginPoll records a poll start and makes id the current task on the
// context's stack until End. Without a stack in ctx, attribution is
// skipped but the poll is still recorded.
func (r *Recorder) BeginPoll(ctx context.Context, id event.TaskID) *Poll {
	if r == nil {
		return &Poll{}
	}
	poll := &Poll{recorder: r, task: id}
	if stack := taskctx.StackFrom(ctx); stack != nil {
		poll.guard = stack.Enter(id)
	}
	r.emit(event.Event{Type: event.TaskPollStart, Task: id})
	return poll
}

// End records the poll end and pops the task from the context stack.
// Repeated calls are no-ops.
func (p *Poll) End() {
	if p.ended || p.recorder == nil {
		p.ended = true
		return
	}
	p.ended = true
	p.guard.Exit()
	p.recorder.emit(event.Event{Type: event.TaskPollEnd, Task: p.task})
}

// NewResource registers a resource owned by the task currently being
// polled on ctx's stack, if any.
func (r *Recorder) NewResource(ctx context.Context, concreteType, kind string, fields ...event.Field) event.ResourceID {
	if r == nil {
		return 0
	}
	id := event.ResourceID(r.nextResource.Add(1))
	owner, _ := taskctx.Current(ctx)
	r.emit(event.Event{
		Type:     event.ResourceCreated,
		Task:     owner,
		Resource: id,
		Meta: &event.Metadata{
			Target:       r.target,
			ConcreteType: concreteType,
			ResourceKind: kind,
			Location:     callerLocation(1),
			Fields:       fields,
		},
	})
	return id
}

// DropResource marks a resource dropped.
func (r *Recorder) DropResource(id event.ResourceID) {
	if r == nil {
		return
	}
	r.emit(event.Event{Type: event.ResourceDropped, Resource: id})
}

// NewAsyncOp registers an operation against resource, owned by the
// task currently being polled on ctx's stack, if any.
func (r *Recorder) NewAsyncOp(ctx context.Context, resource event.ResourceID, source string, fields ...event.Field) event.AsyncOpID {
	if r == nil {
		return 0
	}
	id := event.AsyncOpID(r.nextAsyncOp.Add(1))
	owner, _ := taskctx.Current(ctx)
	r.emit(event.Event{
		Type:     event.AsyncOpCreated,
		Task:     owner,
		Resource: resource,
		AsyncOp:  id,
		Meta: &event.Metadata{
			Target:   r.target,
			Name:     source,
			Location: callerLocation(1),
			Fields:   fields,
		},
	})
	return id
}

// BeginAsyncOpPoll records the start of a poll of an async op.
func (r *Recorder) BeginAsyncOpPoll(id event.AsyncOpID) {
	if r == nil {
		return
	}
	r.emit(event.Event{Type: event.AsyncOpPollStart, AsyncOp: id})
}

// EndAsyncOpPoll records the end of a poll; ready reports that the
// operation's result became available.
func (r *Recorder) EndAsyncOpPoll(id event.AsyncOpID, ready bool) {
	if r == nil {
		return
	}
	r.emit(event.Event{Type: event.AsyncOpPollEnd, AsyncOp: id, Ready: ready})
}

// CompleteAsyncOp marks an async op's result consumed.
func (r *Recorder) CompleteAsyncOp(id event.AsyncOpID) {
	if r == nil {
		return
	}
	r.emit(event.Event{Type: event.AsyncOpCompleted, AsyncOp: id})
}

// CloneWaker records a new waker handle for task.
func (r *Recorder) CloneWaker(task event.TaskID) {
	if r == nil {
		return
	}
	r.emit(event.Event{Type: event.WakerCloned, Task: task})
}

// DropWaker records a waker handle for task being released.
func (r *Recorder) DropWaker(task event.TaskID) {
	if r == nil {
		return
	}
	r.emit(event.Event{Type: event.WakerDropped, Task: task})
}

// Wake records task being woken. A wake issued while task itself is
// the current task on ctx is a self-wake.
func (r *Recorder) Wake(ctx context.Context, task event.TaskID) {
	if r == nil {
		return
	}
	current, ok := taskctx.Current(ctx)
	r.emit(event.Event{Type: event.WakerWoken, Task: task, Self: ok && current == task})
}

// Dropped returns how many events the queue has discarded.
func (r *Recorder) Dropped() uint64 {
	if r == nil {
		return 0
	}
	return r.queue.Dropped()
}
