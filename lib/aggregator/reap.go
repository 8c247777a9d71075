// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package aggregator

import (
	"container/heap"
	"time"

	"github.com/bureau-foundation/runscope/lib/event"
)

// retirement records when an entity reached its terminal state.
type retirement struct {
	at   time.Time
	kind event.Kind
	id   uint64
}

// before orders retirements for eviction: oldest first, then tasks
// before resources before async ops, then lowest ID.
func (r retirement) before(other retirement) bool {
	if !r.at.Equal(other.at) {
		return r.at.Before(other.at)
	}
	if r.kind != other.kind {
		return r.kind < other.kind
	}
	return r.id < other.id
}

// retirementHeap is a min-heap of retirements of one kind.
type retirementHeap []retirement

func (h retirementHeap) Len() int           { return len(h) }
func (h retirementHeap) Less(i, j int) bool { return h[i].before(h[j]) }
func (h retirementHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *retirementHeap) Push(x any)        { *h = append(*h, x.(retirement)) }
func (h *retirementHeap) Pop() any {
	old := *h
	last := old[len(old)-1]
	*h = old[:len(old)-1]
	return last
}

func (a *Aggregator) retire(kind event.Kind, id uint64, at time.Time) {
	heap.Push(&a.retired[kind], retirement{at: at, kind: kind, id: id})
}

// reap evicts retired entities whose retention has elapsed at now,
// then, while the resident count exceeds capacity, evicts the oldest
// retired entities regardless of retention. Live entities are never
// evicted.
func (a *Aggregator) reap(now time.Time) {
	for kind := range a.retired {
		retention := a.retention[kind]
		queue := &a.retired[kind]
		for queue.Len() > 0 && now.Sub((*queue)[0].at) > retention {
			if a.evict(heap.Pop(queue).(retirement)) {
				a.counters.EvictedByRetention++
			}
		}
	}

	if a.capacity <= 0 {
		return
	}
	for a.resident() > a.capacity {
		kind, ok := a.oldestRetiredKind()
		if !ok {
			return
		}
		if a.evict(heap.Pop(&a.retired[kind]).(retirement)) {
			a.counters.EvictedByCapacity++
		}
	}
}

// oldestRetiredKind returns the kind whose heap holds the globally
// oldest retirement.
func (a *Aggregator) oldestRetiredKind() (event.Kind, bool) {
	var (
		best  retirement
		found bool
	)
	for kind := range a.retired {
		if a.retired[kind].Len() == 0 {
			continue
		}
		head := a.retired[kind][0]
		if !found || head.before(best) {
			best, found = head, true
		}
	}
	return best.kind, found
}

// evict removes a retired entity and records its ID for the next
// delta. It returns false if the entity is no longer resident.
func (a *Aggregator) evict(r retirement) bool {
	switch r.kind {
	case event.KindTask:
		id := event.TaskID(r.id)
		if _, ok := a.tasks[id]; !ok {
			return false
		}
		delete(a.tasks, id)
		delete(a.dirtyTasks, id)
		delete(a.polling, id)
		a.evicted.Tasks = append(a.evicted.Tasks, r.id)
		a.tombstones[event.KindTask].add(r.id)
	case event.KindResource:
		id := event.ResourceID(r.id)
		if _, ok := a.resources[id]; !ok {
			return false
		}
		delete(a.resources, id)
		delete(a.dirtyResources, id)
		a.evicted.Resources = append(a.evicted.Resources, r.id)
		a.tombstones[event.KindResource].add(r.id)
	case event.KindAsyncOp:
		id := event.AsyncOpID(r.id)
		if _, ok := a.asyncOps[id]; !ok {
			return false
		}
		delete(a.asyncOps, id)
		delete(a.dirtyAsyncOps, id)
		a.evicted.AsyncOps = append(a.evicted.AsyncOps, r.id)
		a.tombstones[event.KindAsyncOp].add(r.id)
	default:
		return false
	}
	return true
}

func (a *Aggregator) resident() int {
	return len(a.tasks) + len(a.resources) + len(a.asyncOps)
}

// tombstoneSet remembers the most recently evicted IDs of one kind in
// a fixed-size ring, so late events for them can be recognized.
type tombstoneSet struct {
	ring []uint64
	next int
	ids  map[uint64]struct{}
}

func newTombstoneSet(size int) tombstoneSet {
	return tombstoneSet{
		ring: make([]uint64, 0, size),
		ids:  make(map[uint64]struct{}, size),
	}
}

// add records id, forgetting the oldest entry once the ring is full.
func (t *tombstoneSet) add(id uint64) {
	if cap(t.ring) == 0 {
		return
	}
	if _, ok := t.ids[id]; ok {
		return
	}
	if len(t.ring) < cap(t.ring) {
		t.ring = append(t.ring, id)
	} else {
		delete(t.ids, t.ring[t.next])
		t.ring[t.next] = id
		t.next = (t.next + 1) % len(t.ring)
	}
	t.ids[id] = struct{}{}
}

func (t *tombstoneSet) contains(id uint64) bool {
	_, ok := t.ids[id]
	return ok
}
