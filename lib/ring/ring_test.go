// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ring

import (
	"sync"
	"testing"

	"pgregory.net/rapid"
)

func TestCapacityRoundsUp(t *testing.T) {
	for _, test := range []struct{ requested, want int }{
		{0, 2}, {1, 2}, {3, 4}, {4096, 4096}, {5000, 8192},
	} {
		if got := New[int](test.requested).Cap(); got != test.want {
			t.Errorf("New(%d).Cap() = %d, want %d", test.requested, got, test.want)
		}
	}
}

func TestFullQueueDropsNewest(t *testing.T) {
	q := New[int](4)
	for i := range 4 {
		if !q.Push(i) {
			t.Fatalf("Push(%d) rejected before queue was full", i)
		}
	}
	if q.Push(99) {
		t.Fatal("Push succeeded on a full queue")
	}
	if q.Dropped() != 1 {
		t.Fatalf("Dropped() = %d, want 1", q.Dropped())
	}

	var got []int
	q.Drain(0, func(v int) { got = append(got, v) })
	if len(got) != 4 || got[0] != 0 || got[3] != 3 {
		t.Fatalf("drained %v, want [0 1 2 3]", got)
	}
	if !q.Push(4) {
		t.Fatal("Push rejected after drain")
	}
}

func TestNotifyCoalesces(t *testing.T) {
	q := New[int](8)
	q.Push(1)
	q.Push(2)

	select {
	case <-q.Notify():
	default:
		t.Fatal("no notification after push")
	}
	select {
	case <-q.Notify():
		t.Fatal("second notification for a single burst")
	default:
	}
}

func TestDrainLimit(t *testing.T) {
	q := New[int](8)
	for i := range 5 {
		q.Push(i)
	}
	if n := q.Drain(2, func(int) {}); n != 2 {
		t.Fatalf("Drain(2) consumed %d", n)
	}
	if q.Len() != 3 {
		t.Fatalf("Len() = %d after partial drain, want 3", q.Len())
	}
}

func TestConcurrentProducersAccountForEveryPush(t *testing.T) {
	const producers = 8
	const perProducer = 5000

	q := New[int](256)
	var wg sync.WaitGroup
	for range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perProducer {
				q.Push(i)
			}
		}()
	}
	finished := stop(&wg)

	received := 0
	for running := true; running; {
		select {
		case <-q.Notify():
		case <-finished:
			running = false
		}
		received += q.Drain(0, func(int) {})
	}

	if total := uint64(received) + q.Dropped(); total != producers*perProducer {
		t.Fatalf("received %d + dropped %d = %d, want %d", received, q.Dropped(), total, producers*perProducer)
	}
	if uint64(received) != q.Pushed() {
		t.Fatalf("received %d, Pushed() = %d", received, q.Pushed())
	}
}

func TestLenStaysInRangeUnderConcurrency(t *testing.T) {
	q := New[int](64)
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 20000 {
				q.Push(i)
			}
		}()
	}
	finished := stop(&wg)

	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		for {
			select {
			case <-finished:
				return
			default:
				q.Drain(0, func(int) {})
			}
		}
	}()

	for {
		select {
		case <-finished:
			<-consumerDone
			return
		default:
		}
		if n := q.Len(); n < 0 || n > q.Cap() {
			t.Fatalf("Len() = %d, want within [0, %d]", n, q.Cap())
		}
	}
}

// stop returns a channel closed once wg reaches zero.
func stop(wg *sync.WaitGroup) <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		wg.Wait()
		close(ch)
	}()
	return ch
}

func TestPropertyFIFOAndAccounting(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		capacity := rapid.IntRange(2, 64).Draw(rt, "capacity")
		q := New[int](capacity)
		var model []int
		next := 0
		var dropped uint64

		ops := rapid.SliceOfN(rapid.Bool(), 1, 300).Draw(rt, "ops")
		for _, push := range ops {
			if push {
				accepted := q.Push(next)
				if accepted != (len(model) < q.Cap()) {
					rt.Fatalf("Push accepted=%v with %d of %d queued", accepted, len(model), q.Cap())
				}
				if accepted {
					model = append(model, next)
				} else {
					dropped++
				}
				next++
				continue
			}
			value, ok := q.Pop()
			if ok != (len(model) > 0) {
				rt.Fatalf("Pop ok=%v with model length %d", ok, len(model))
			}
			if ok {
				if value != model[0] {
					rt.Fatalf("Pop = %d, want %d", value, model[0])
				}
				model = model[1:]
			}
		}
		if q.Dropped() != dropped {
			rt.Fatalf("Dropped() = %d, want %d", q.Dropped(), dropped)
		}
		if q.Len() != len(model) {
			rt.Fatalf("Len() = %d, want %d", q.Len(), len(model))
		}
	})
}
