// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package aggregator

import (
	"cmp"
	"slices"
	"time"

	"github.com/bureau-foundation/runscope/lib/schema/console"
)

// delta advances the tick counter and returns every entity changed
// since the previous delta, plus the IDs evicted in between. It clears
// the change markers. Records are ordered by ID.
func (a *Aggregator) delta(now time.Time) *console.Snapshot {
	a.tick++
	snapshot := a.header(now, false)

	// A poll crossing the long-poll threshold changes a task's
	// warnings without any event.
	for id, t := range a.polling {
		if t.isLongPoll(now) != t.longPoll {
			a.dirtyTasks[id] = struct{}{}
		}
	}

	for id := range a.dirtyTasks {
		if t, ok := a.tasks[id]; ok {
			snapshot.Tasks = append(snapshot.Tasks, t.export(now))
			t.longPoll = t.isLongPoll(now)
		}
	}
	for id := range a.dirtyResources {
		if r, ok := a.resources[id]; ok {
			snapshot.Resources = append(snapshot.Resources, r.export())
		}
	}
	for id := range a.dirtyAsyncOps {
		if o, ok := a.asyncOps[id]; ok {
			snapshot.AsyncOps = append(snapshot.AsyncOps, o.export())
		}
	}
	clear(a.dirtyTasks)
	clear(a.dirtyResources)
	clear(a.dirtyAsyncOps)

	snapshot.Evicted = a.evicted
	a.evicted = console.Evicted{}

	sortRecords(snapshot)
	return snapshot
}

// full returns every resident entity. It does not touch change
// markers or the tick counter.
func (a *Aggregator) full(now time.Time) *console.Snapshot {
	snapshot := a.header(now, true)
	snapshot.Tasks = make([]console.TaskUpdate, 0, len(a.tasks))
	for _, t := range a.tasks {
		snapshot.Tasks = append(snapshot.Tasks, t.export(now))
	}
	snapshot.Resources = make([]console.ResourceUpdate, 0, len(a.resources))
	for _, r := range a.resources {
		snapshot.Resources = append(snapshot.Resources, r.export())
	}
	snapshot.AsyncOps = make([]console.AsyncOpUpdate, 0, len(a.asyncOps))
	for _, o := range a.asyncOps {
		snapshot.AsyncOps = append(snapshot.AsyncOps, o.export())
	}
	sortRecords(snapshot)
	return snapshot
}

func (a *Aggregator) header(now time.Time, full bool) *console.Snapshot {
	return &console.Snapshot{
		Full:     full,
		Tick:     a.tick,
		Now:      now.UnixNano(),
		Counters: a.currentCounters(),
		Resident: a.residentCounts(),
	}
}

func sortRecords(snapshot *console.Snapshot) {
	slices.SortFunc(snapshot.Tasks, func(x, y console.TaskUpdate) int { return cmp.Compare(x.ID, y.ID) })
	slices.SortFunc(snapshot.Resources, func(x, y console.ResourceUpdate) int { return cmp.Compare(x.ID, y.ID) })
	slices.SortFunc(snapshot.AsyncOps, func(x, y console.AsyncOpUpdate) int { return cmp.Compare(x.ID, y.ID) })
}
