// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package publish

import (
	"errors"
	"testing"
	"time"

	"github.com/bureau-foundation/runscope/lib/schema/console"
	"github.com/bureau-foundation/runscope/lib/testutil"
)

func fullSnapshot(tick uint64) *console.Snapshot {
	return &console.Snapshot{
		Full:      true,
		Tick:      tick,
		Tasks:     []console.TaskUpdate{{ID: 1}, {ID: 2}},
		Resources: []console.ResourceUpdate{{ID: 10}},
	}
}

func deltaSnapshot(tick uint64) *console.Snapshot {
	return &console.Snapshot{Tick: tick, Tasks: []console.TaskUpdate{{ID: 2}}}
}

// countingTick returns a tick whose full builder records invocations.
func countingTick(tick uint64, builds *int) *Tick {
	return NewTick(deltaSnapshot(tick), func() *console.Snapshot {
		*builds++
		return fullSnapshot(tick)
	})
}

func receive(t *testing.T, subscription *Subscription) *console.Snapshot {
	t.Helper()
	message, ok := <-subscription.Messages()
	if !ok {
		t.Fatal("message channel closed unexpectedly")
	}
	return message
}

func TestSubscribeDeliversFullThenDeltas(t *testing.T) {
	publisher := New(Config{Buffer: 4})
	subscription, err := publisher.Subscribe(console.AllInterest(), fullSnapshot(0))
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	first := receive(t, subscription)
	if !first.Full || first.Seq != 1 || len(first.Tasks) != 2 {
		t.Fatalf("first message = %+v, want full snapshot seq 1", first)
	}

	builds := 0
	publisher.Publish(countingTick(1, &builds))
	second := receive(t, subscription)
	if second.Full || second.Seq != 2 || len(second.Tasks) != 1 {
		t.Fatalf("second message = %+v, want delta seq 2", second)
	}
	if builds != 0 {
		t.Fatalf("full snapshot built %d times with no subscriber needing it", builds)
	}
}

func TestInvalidInterestRejected(t *testing.T) {
	publisher := New(Config{})
	if _, err := publisher.Subscribe(console.Interest{}, fullSnapshot(0)); !errors.Is(err, console.ErrInvalidInterest) {
		t.Fatalf("Subscribe with empty interest = %v, want ErrInvalidInterest", err)
	}
	if publisher.Len() != 0 {
		t.Fatalf("rejected subscription registered: Len() = %d", publisher.Len())
	}
}

func TestSlowSubscriberDropsNewestAndResyncs(t *testing.T) {
	publisher := New(Config{Buffer: 2})
	slow, _ := publisher.Subscribe(console.AllInterest(), fullSnapshot(0))
	fast, _ := publisher.Subscribe(console.AllInterest(), fullSnapshot(0))
	receive(t, fast)

	builds := 0
	// slow holds the initial full; tick 1 fills its buffer, ticks 2
	// and 3 are dropped.
	for tick := uint64(1); tick <= 3; tick++ {
		publisher.Publish(countingTick(tick, &builds))
		if message := receive(t, fast); message.Full || message.Tick != tick {
			t.Fatalf("fast subscriber got %+v at tick %d", message, tick)
		}
	}
	if slow.Dropped() != 2 {
		t.Fatalf("slow.Dropped() = %d, want 2", slow.Dropped())
	}

	// The retained messages are the oldest ones.
	if message := receive(t, slow); !message.Full || message.Seq != 1 {
		t.Fatalf("slow first = %+v", message)
	}
	if message := receive(t, slow); message.Full || message.Tick != 1 {
		t.Fatalf("slow second = %+v", message)
	}

	publisher.Publish(countingTick(4, &builds))
	resync := receive(t, slow)
	if !resync.Full || resync.Tick != 4 {
		t.Fatalf("message after drop = %+v, want full snapshot at tick 4", resync)
	}
	if resync.Seq != 5 || resync.Dropped != 2 {
		t.Fatalf("resync seq=%d dropped=%d, want seq 5 dropped 2", resync.Seq, resync.Dropped)
	}
	// Only ticks 3 and 4 owed slow a full view.
	if builds != 2 {
		t.Fatalf("full builder ran %d times, want 2", builds)
	}

	publisher.Publish(countingTick(5, &builds))
	if message := receive(t, slow); message.Full {
		t.Fatalf("subscriber still resyncing after full delivered: %+v", message)
	}
}

func TestFullViewBuiltOncePerTick(t *testing.T) {
	publisher := New(Config{Buffer: 4})
	first, _ := publisher.Subscribe(console.AllInterest(), fullSnapshot(0))
	second, _ := publisher.Subscribe(console.Interest{IncludeTasks: true, FieldDetail: console.FieldDetailSummary}, fullSnapshot(0))
	first.Pause()
	first.Resume()
	second.Pause()
	second.Resume()

	builds := 0
	publisher.Publish(countingTick(1, &builds))
	if builds != 1 {
		t.Fatalf("full builder ran %d times, want 1", builds)
	}
}

func TestPauseResume(t *testing.T) {
	publisher := New(Config{Buffer: 4})
	subscription, _ := publisher.Subscribe(console.AllInterest(), fullSnapshot(0))
	receive(t, subscription)

	subscription.Pause()
	builds := 0
	publisher.Publish(countingTick(1, &builds))
	testutil.RequireNoReceive(t, subscription.Messages(), 10*time.Millisecond, "paused subscription received a message")

	subscription.Resume()
	publisher.Publish(countingTick(2, &builds))
	if message := receive(t, subscription); !message.Full || message.Tick != 2 {
		t.Fatalf("message after resume = %+v, want full snapshot", message)
	}
}

func TestSetInterestFiltersAndResyncs(t *testing.T) {
	publisher := New(Config{Buffer: 4})
	subscription, _ := publisher.Subscribe(console.AllInterest(), fullSnapshot(0))
	receive(t, subscription)

	if err := subscription.SetInterest(console.Interest{}); !errors.Is(err, console.ErrInvalidInterest) {
		t.Fatalf("SetInterest(empty) = %v", err)
	}
	if err := subscription.SetInterest(console.Interest{IncludeResources: true}); err != nil {
		t.Fatalf("SetInterest: %v", err)
	}

	builds := 0
	publisher.Publish(countingTick(1, &builds))
	message := receive(t, subscription)
	if !message.Full || len(message.Tasks) != 0 || len(message.Resources) != 1 {
		t.Fatalf("message after interest change = %+v", message)
	}
}

func TestClosedSubscriptionReapedOnTick(t *testing.T) {
	publisher := New(Config{Buffer: 4})
	closed, _ := publisher.Subscribe(console.AllInterest(), fullSnapshot(0))
	open, _ := publisher.Subscribe(console.AllInterest(), fullSnapshot(0))
	receive(t, open)

	closed.Close()
	closed.Close()
	if publisher.Len() != 2 {
		t.Fatalf("Len() = %d before tick, want 2", publisher.Len())
	}

	builds := 0
	publisher.Publish(countingTick(1, &builds))
	if publisher.Len() != 1 {
		t.Fatalf("Len() = %d after tick, want 1", publisher.Len())
	}

	// The buffered initial snapshot drains, then the channel closes.
	receive(t, closed)
	if _, ok := <-closed.Messages(); ok {
		t.Fatal("closed subscription still delivering")
	}
	if message := receive(t, open); message.Tick != 1 {
		t.Fatalf("open subscriber affected by close: %+v", message)
	}
}

func TestCloseEndsAllStreams(t *testing.T) {
	publisher := New(Config{Buffer: 1})
	subscription, _ := publisher.Subscribe(console.AllInterest(), fullSnapshot(0))
	publisher.Close()
	publisher.Close()

	receive(t, subscription)
	if _, ok := <-subscription.Messages(); ok {
		t.Fatal("message channel open after publisher Close")
	}
	if _, err := publisher.Subscribe(console.AllInterest(), fullSnapshot(0)); !errors.Is(err, ErrClosed) {
		t.Fatalf("Subscribe after Close = %v, want ErrClosed", err)
	}
	testutil.RequireClosed(t, subscription.Closing(), time.Second, "publisher Close did not close subscription")
}
