// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package console

import "github.com/bureau-foundation/runscope/lib/event"

// Counters are the collector's monotonically increasing drop and
// anomaly counts.
type Counters struct {
	// ProcessedEvents counts events applied by the aggregator.
	ProcessedEvents uint64 `cbor:"processed_events"`

	// DroppedEvents counts events discarded at the producer because
	// the event queue was full.
	DroppedEvents uint64 `cbor:"dropped_events"`

	UnmatchedPollEnd    uint64 `cbor:"unmatched_poll_end"`
	NestedPollStart     uint64 `cbor:"nested_poll_start"`
	UnknownEntity       uint64 `cbor:"unknown_entity"`
	DuplicateSpawn      uint64 `cbor:"duplicate_spawn"`
	DuplicateCompletion uint64 `cbor:"duplicate_completion"`
	InvalidTransition   uint64 `cbor:"invalid_transition"`

	EvictedByRetention uint64 `cbor:"evicted_by_retention"`
	EvictedByCapacity  uint64 `cbor:"evicted_by_capacity"`

	// LateEvents counts events for entities already evicted, such as
	// a waker dropped after its task was reaped. They are expected and
	// not anomalies.
	LateEvents uint64 `cbor:"late_events"`
}

// Anomalies is the total of the anomaly counters.
func (c Counters) Anomalies() uint64 {
	return c.UnmatchedPollEnd + c.NestedPollStart + c.UnknownEntity +
		c.DuplicateSpawn + c.DuplicateCompletion + c.InvalidTransition
}

// Resident counts entities currently held by the aggregator.
type Resident struct {
	Tasks     int `cbor:"tasks"`
	Resources int `cbor:"resources"`
	AsyncOps  int `cbor:"async_ops"`
}

// Total is the number of resident entities of all kinds.
func (r Resident) Total() int { return r.Tasks + r.Resources + r.AsyncOps }

// Evicted lists IDs removed from the aggregator since the previous
// snapshot.
type Evicted struct {
	Tasks     []uint64 `cbor:"tasks,omitempty"`
	Resources []uint64 `cbor:"resources,omitempty"`
	AsyncOps  []uint64 `cbor:"async_ops,omitempty"`
}

// IsEmpty reports whether no IDs were evicted.
func (e Evicted) IsEmpty() bool {
	return len(e.Tasks) == 0 && len(e.Resources) == 0 && len(e.AsyncOps) == 0
}

// Snapshot is one message of a subscription stream. A full snapshot
// holds every resident entity; a delta holds only entities changed
// since the previous tick plus the IDs evicted in between.
type Snapshot struct {
	Full bool `cbor:"full"`

	// Tick is the aggregator publish tick that produced the snapshot.
	Tick uint64 `cbor:"tick"`

	// Seq numbers messages within one subscription, starting at 1.
	Seq uint64 `cbor:"seq"`

	// Dropped is the subscription's cumulative count of messages
	// discarded because the subscriber was not keeping up.
	Dropped uint64 `cbor:"dropped"`

	// Now is the aggregator time at which the view was taken.
	Now int64 `cbor:"now"`

	Counters Counters `cbor:"counters"`
	Resident Resident `cbor:"resident"`

	Tasks     []TaskUpdate     `cbor:"tasks,omitempty"`
	Resources []ResourceUpdate `cbor:"resources,omitempty"`
	AsyncOps  []AsyncOpUpdate  `cbor:"async_ops,omitempty"`

	Evicted Evicted `cbor:"evicted,omitempty"`
}

// IsEmpty reports whether the snapshot carries no entity records and
// no evictions.
func (s *Snapshot) IsEmpty() bool {
	return len(s.Tasks) == 0 && len(s.Resources) == 0 && len(s.AsyncOps) == 0 && s.Evicted.IsEmpty()
}

// Filter returns a copy of s restricted to the interest's kinds. At
// summary detail, metadata fields and histogram buckets are removed.
// Record slices are shared with s when no stripping is needed;
// snapshots are treated as immutable once built.
func (s *Snapshot) Filter(interest Interest) *Snapshot {
	interest = interest.Normalized()
	summary := interest.FieldDetail == FieldDetailSummary

	out := &Snapshot{
		Full:     s.Full,
		Tick:     s.Tick,
		Now:      s.Now,
		Counters: s.Counters,
		Resident: s.Resident,
	}
	if interest.Includes(event.KindTask) {
		out.Tasks = s.Tasks
		out.Evicted.Tasks = s.Evicted.Tasks
		if summary {
			out.Tasks = summarizeTasks(s.Tasks)
		}
	}
	if interest.Includes(event.KindResource) {
		out.Resources = s.Resources
		out.Evicted.Resources = s.Evicted.Resources
		if summary {
			out.Resources = summarizeResources(s.Resources)
		}
	}
	if interest.Includes(event.KindAsyncOp) {
		out.AsyncOps = s.AsyncOps
		out.Evicted.AsyncOps = s.Evicted.AsyncOps
		if summary {
			out.AsyncOps = summarizeAsyncOps(s.AsyncOps)
		}
	}
	return out
}

// WithSequence returns a shallow copy of s stamped with per-subscription
// sequence and drop counts.
func (s *Snapshot) WithSequence(seq, dropped uint64) *Snapshot {
	stamped := *s
	stamped.Seq = seq
	stamped.Dropped = dropped
	return &stamped
}

func summarizeTasks(tasks []TaskUpdate) []TaskUpdate {
	if tasks == nil {
		return nil
	}
	out := make([]TaskUpdate, len(tasks))
	for i, task := range tasks {
		task.Fields = nil
		task.Stats.Histogram = task.Stats.Histogram.WithoutBuckets()
		task.Scheduled = task.Scheduled.WithoutBuckets()
		out[i] = task
	}
	return out
}

func summarizeResources(resources []ResourceUpdate) []ResourceUpdate {
	if resources == nil {
		return nil
	}
	out := make([]ResourceUpdate, len(resources))
	for i, resource := range resources {
		resource.Fields = nil
		out[i] = resource
	}
	return out
}

func summarizeAsyncOps(ops []AsyncOpUpdate) []AsyncOpUpdate {
	if ops == nil {
		return nil
	}
	out := make([]AsyncOpUpdate, len(ops))
	for i, op := range ops {
		op.Fields = nil
		op.Stats.Histogram = op.Stats.Histogram.WithoutBuckets()
		out[i] = op
	}
	return out
}
