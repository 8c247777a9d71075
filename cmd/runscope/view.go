// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"slices"

	"github.com/bureau-foundation/runscope/lib/schema/console"
)

// view is the client-side state rebuilt from a snapshot stream: a full
// snapshot replaces it, and each delta upserts changed records and
// removes evicted IDs.
type view struct {
	tasks     map[uint64]console.TaskUpdate
	resources map[uint64]console.ResourceUpdate
	asyncOps  map[uint64]console.AsyncOpUpdate

	synced   bool
	now      int64
	tick     uint64
	seq      uint64
	dropped  uint64
	resyncs  int
	counters console.Counters
	resident console.Resident
}

func newView() *view {
	return &view{
		tasks:     make(map[uint64]console.TaskUpdate),
		resources: make(map[uint64]console.ResourceUpdate),
		asyncOps:  make(map[uint64]console.AsyncOpUpdate),
	}
}

// apply merges one snapshot. Deltas before the first full snapshot are
// ignored; it reports whether the snapshot changed the view.
func (v *view) apply(snapshot *console.Snapshot) bool {
	if !snapshot.Full && !v.synced {
		return false
	}
	if snapshot.Full {
		if v.synced && snapshot.Dropped > v.dropped {
			v.resyncs++
		}
		clear(v.tasks)
		clear(v.resources)
		clear(v.asyncOps)
		v.synced = true
	}

	v.now = snapshot.Now
	v.tick = snapshot.Tick
	v.seq = snapshot.Seq
	v.dropped = snapshot.Dropped
	v.counters = snapshot.Counters
	v.resident = snapshot.Resident

	for _, task := range snapshot.Tasks {
		v.tasks[task.ID] = task
	}
	for _, resource := range snapshot.Resources {
		v.resources[resource.ID] = resource
	}
	for _, op := range snapshot.AsyncOps {
		v.asyncOps[op.ID] = op
	}
	for _, id := range snapshot.Evicted.Tasks {
		delete(v.tasks, id)
	}
	for _, id := range snapshot.Evicted.Resources {
		delete(v.resources, id)
	}
	for _, id := range snapshot.Evicted.AsyncOps {
		delete(v.asyncOps, id)
	}
	return true
}

func (v *view) sortedTasks() []console.TaskUpdate {
	return sortedByID(v.tasks, func(t console.TaskUpdate) uint64 { return t.ID })
}

func (v *view) sortedResources() []console.ResourceUpdate {
	return sortedByID(v.resources, func(r console.ResourceUpdate) uint64 { return r.ID })
}

func (v *view) sortedAsyncOps() []console.AsyncOpUpdate {
	return sortedByID(v.asyncOps, func(o console.AsyncOpUpdate) uint64 { return o.ID })
}

func sortedByID[T any](records map[uint64]T, id func(T) uint64) []T {
	out := make([]T, 0, len(records))
	for _, record := range records {
		out = append(out, record)
	}
	slices.SortFunc(out, func(a, b T) int {
		switch x, y := id(a), id(b); {
		case x < y:
			return -1
		case x > y:
			return 1
		default:
			return 0
		}
	})
	return out
}
