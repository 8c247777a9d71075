// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package instrument

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/runscope/lib/clock"
	"github.com/bureau-foundation/runscope/lib/event"
	"github.com/bureau-foundation/runscope/lib/ring"
	"github.com/bureau-foundation/runscope/lib/taskctx"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newRecorder(capacity int) (*Recorder, *ring.Queue[event.Event], *clock.FakeClock) {
	queue := ring.New[event.Event](capacity)
	fake := clock.Fake(epoch)
	return New(queue, fake, "runscope.test"), queue, fake
}

func drain(queue *ring.Queue[event.Event]) []event.Event {
	var events []event.Event
	queue.Drain(0, func(ev event.Event) { events = append(events, ev) })
	return events
}

func TestSpawnAssignsIDsAndMetadata(t *testing.T) {
	recorder, queue, _ := newRecorder(16)
	first := recorder.SpawnTask("accept", event.F("conn", 4))
	second := recorder.SpawnTask("")

	if first != 1 || second != 2 {
		t.Fatalf("task IDs = %d, %d, want 1, 2", first, second)
	}
	events := drain(queue)
	if len(events) != 2 || events[0].Type != event.TaskSpawned {
		t.Fatalf("events = %+v", events)
	}
	meta := events[0].Meta
	if meta.Name != "accept" || meta.Target != "runscope.test" {
		t.Fatalf("metadata = %+v", meta)
	}
	if !strings.Contains(meta.Location, "recorder_test.go:") {
		t.Fatalf("spawn location = %q, want this test file", meta.Location)
	}
	if !events[0].At.Equal(epoch) {
		t.Fatalf("event time = %v, want %v", events[0].At, epoch)
	}
}

func TestResourceOwnerFollowsPollStack(t *testing.T) {
	recorder, queue, _ := newRecorder(16)
	ctx := taskctx.WithStack(context.Background(), taskctx.NewStack())

	task := recorder.SpawnTask("owner")
	poll := recorder.BeginPoll(ctx, task)
	inside := recorder.NewResource(ctx, "chan int", "Sync")
	op := recorder.NewAsyncOp(ctx, inside, "recv")
	poll.End()
	poll.End()
	outside := recorder.NewResource(ctx, "time.Timer", "Timer")

	var owners = map[event.ResourceID]event.TaskID{}
	var opOwner event.TaskID
	var pollEnds int
	for _, ev := range drain(queue) {
		switch ev.Type {
		case event.ResourceCreated:
			owners[ev.Resource] = ev.Task
		case event.AsyncOpCreated:
			if ev.AsyncOp != op || ev.Resource != inside {
				t.Fatalf("async op event = %+v", ev)
			}
			opOwner = ev.Task
		case event.TaskPollEnd:
			pollEnds++
		}
	}
	if owners[inside] != task || opOwner != task {
		t.Fatalf("owners inside poll = %d/%d, want %d", owners[inside], opOwner, task)
	}
	if owners[outside] != 0 {
		t.Fatalf("owner outside poll = %d, want none", owners[outside])
	}
	if pollEnds != 1 {
		t.Fatalf("poll end recorded %d times", pollEnds)
	}
}

func TestNestedPollsRestoreOuterTask(t *testing.T) {
	recorder, queue, _ := newRecorder(32)
	stack := taskctx.NewStack()
	ctx := taskctx.WithStack(context.Background(), stack)

	parent := recorder.SpawnTask("parent")
	child := recorder.SpawnTask("child")
	outer := recorder.BeginPoll(ctx, parent)
	inner := recorder.BeginPoll(ctx, child)
	if current, _ := stack.Current(); current != child {
		t.Fatalf("current = %d during nested poll, want %d", current, child)
	}
	inner.End()
	resource := recorder.NewResource(ctx, "sync.Mutex", "Sync")
	outer.End()

	if stack.Depth() != 0 {
		t.Fatalf("stack depth %d after polls ended", stack.Depth())
	}
	for _, ev := range drain(queue) {
		if ev.Type == event.ResourceCreated && (ev.Resource != resource || ev.Task != parent) {
			t.Fatalf("resource attributed to %d, want parent %d", ev.Task, parent)
		}
	}
}

func TestWakeDetectsSelfWake(t *testing.T) {
	recorder, queue, _ := newRecorder(16)
	ctx := taskctx.WithStack(context.Background(), taskctx.NewStack())
	task := recorder.SpawnTask("yielder")
	other := recorder.SpawnTask("other")

	poll := recorder.BeginPoll(ctx, task)
	recorder.CloneWaker(task)
	recorder.Wake(ctx, task)
	recorder.Wake(ctx, other)
	poll.End()
	recorder.DropWaker(task)

	var wakes []event.Event
	for _, ev := range drain(queue) {
		if ev.Type == event.WakerWoken {
			wakes = append(wakes, ev)
		}
	}
	if len(wakes) != 2 || !wakes[0].Self || wakes[1].Self {
		t.Fatalf("wakes = %+v, want self then non-self", wakes)
	}
}

func TestFullQueueDropsWithoutBlocking(t *testing.T) {
	recorder, queue, _ := newRecorder(2)
	for range 5 {
		recorder.SpawnTask("burst")
	}
	if recorder.Dropped() != 3 || queue.Len() != 2 {
		t.Fatalf("dropped=%d queued=%d, want 3 and 2", recorder.Dropped(), queue.Len())
	}
}

func TestNilRecorderIsNoOp(t *testing.T) {
	var recorder *Recorder
	ctx := context.Background()
	id := recorder.SpawnTask("ignored")
	poll := recorder.BeginPoll(ctx, id)
	recorder.NewResource(ctx, "x", "y")
	recorder.Wake(ctx, id)
	poll.End()
	recorder.CompleteTask(id)
	if recorder.Dropped() != 0 {
		t.Fatal("nil recorder reported drops")
	}

	calls := 0
	wrapped := recorder.Observe(id, func(context.Context) bool { calls++; return true })
	if !wrapped(ctx) || calls != 1 {
		t.Fatal("nil recorder Observe did not pass through")
	}
}

func TestObserveRecordsPollsAndCompletion(t *testing.T) {
	recorder, queue, fake := newRecorder(32)
	ctx := taskctx.WithStack(context.Background(), taskctx.NewStack())
	task := recorder.SpawnTask("counter")

	remaining := 2
	poll := recorder.Observe(task, func(ctx context.Context) bool {
		if current, _ := taskctx.Current(ctx); current != task {
			t.Errorf("current task during poll = %d, want %d", current, task)
		}
		fake.Advance(time.Millisecond)
		remaining--
		return remaining == 0
	})
	for !poll(ctx) {
	}

	var types []event.Type
	for _, ev := range drain(queue)[1:] {
		types = append(types, ev.Type)
	}
	want := []event.Type{
		event.TaskPollStart, event.TaskPollEnd,
		event.TaskPollStart, event.TaskPollEnd,
		event.TaskCompleted,
	}
	if len(types) != len(want) {
		t.Fatalf("event types = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("event types = %v, want %v", types, want)
		}
	}
}

func TestObservePanicStillRecordsEnd(t *testing.T) {
	recorder, queue, _ := newRecorder(16)
	stack := taskctx.NewStack()
	ctx := taskctx.WithStack(context.Background(), stack)
	task := recorder.SpawnTask("crasher")

	poll := recorder.Observe(task, func(context.Context) bool { panic("boom") })
	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("panic was swallowed")
			}
		}()
		poll(ctx)
	}()

	if stack.Depth() != 0 {
		t.Fatalf("stack depth %d after panicking poll", stack.Depth())
	}
	events := drain(queue)
	last := events[len(events)-1]
	if last.Type != event.TaskCompleted || events[len(events)-2].Type != event.TaskPollEnd {
		t.Fatalf("events = %+v, want poll end then completion", events)
	}
}
