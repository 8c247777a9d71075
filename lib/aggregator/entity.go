// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package aggregator

import (
	"time"

	"github.com/bureau-foundation/runscope/lib/event"
	"github.com/bureau-foundation/runscope/lib/histogram"
	"github.com/bureau-foundation/runscope/lib/schema/console"
)

// longPollThreshold is how long a poll may run before the task is
// flagged with WarningLongPoll.
const longPollThreshold = time.Second

// selfWakePercent is the share of wakes that must be self-wakes before
// a task is flagged with WarningSelfWakes.
const selfWakePercent = 50

// descriptor is the creation-time metadata shared by all kinds.
type descriptor struct {
	name         string
	target       string
	location     string
	concreteType string
	resourceKind string
	internal     bool
	fields       []console.Field
}

func describe(meta *event.Metadata) descriptor {
	if meta == nil {
		return descriptor{}
	}
	return descriptor{
		name:         meta.Name,
		target:       meta.Target,
		location:     event.TruncateLocation(meta.Location),
		concreteType: meta.ConcreteType,
		resourceKind: meta.ResourceKind,
		internal:     meta.Internal,
		fields:       console.FieldsFrom(event.NormalizeFields(meta.Fields)),
	}
}

// pollStats tracks poll timing for tasks and async ops.
type pollStats struct {
	polls     uint64
	busy      time.Duration
	firstPoll time.Time
	lastStart time.Time
	lastEnd   time.Time
	inPoll    bool
	durations *histogram.Histogram
}

func newPollStats(precision int) pollStats {
	return pollStats{durations: histogram.New(precision)}
}

// start records a poll start. It returns false if a poll was already
// in progress, in which case the original start is kept.
func (p *pollStats) start(at time.Time) bool {
	if p.inPoll {
		return false
	}
	p.inPoll = true
	p.lastStart = at
	if p.firstPoll.IsZero() {
		p.firstPoll = at
	}
	return true
}

// end completes the in-progress poll. It returns false if no poll was
// in progress.
func (p *pollStats) end(at time.Time) bool {
	if !p.inPoll {
		return false
	}
	p.inPoll = false
	p.lastEnd = at
	elapsed := max(at.Sub(p.lastStart), 0)
	p.polls++
	p.busy += elapsed
	p.durations.Record(elapsed)
	return true
}

// abandon discards an in-progress poll without recording a sample.
func (p *pollStats) abandon() { p.inPoll = false }

func (p *pollStats) export() console.PollStats {
	return console.PollStats{
		Polls:           p.polls,
		Busy:            p.busy,
		FirstPoll:       unixNano(p.firstPoll),
		LastPollStarted: unixNano(p.lastStart),
		LastPollEnded:   unixNano(p.lastEnd),
		Histogram:       p.durations.Snapshot(true),
	}
}

type task struct {
	id          event.TaskID
	descriptor  descriptor
	state       console.TaskState
	createdAt   time.Time
	completedAt time.Time
	placeholder bool

	poll      pollStats
	scheduled *histogram.Histogram

	wakes       uint64
	selfWakes   uint64
	wakerClones uint64
	wakerDrops  uint64
	lastWake    time.Time

	// wokenAt is the first wake since the last poll start; the next
	// poll start records the scheduling delay from it.
	wokenAt time.Time

	// longPoll is the long-poll lint as of the last published view.
	longPoll bool
}

func (t *task) terminal() bool { return t.state == console.TaskCompleted }

func (t *task) wakerCount() int64 {
	return int64(t.wakerClones) - int64(t.wakerDrops)
}

func (t *task) isLongPoll(now time.Time) bool {
	return t.poll.inPoll && now.Sub(t.poll.lastStart) > longPollThreshold
}

func (t *task) warnings(now time.Time) []string {
	var warnings []string
	if t.wakes > 0 && t.selfWakes*100 > t.wakes*selfWakePercent {
		warnings = append(warnings, console.WarningSelfWakes)
	}
	if t.state == console.TaskIdle && t.poll.polls > 0 && t.wakerClones > 0 &&
		t.wakerCount() <= 0 && t.wokenAt.IsZero() {
		warnings = append(warnings, console.WarningLostWaker)
	}
	if t.isLongPoll(now) {
		warnings = append(warnings, console.WarningLongPoll)
	}
	return warnings
}

func (t *task) export(now time.Time) console.TaskUpdate {
	return console.TaskUpdate{
		ID:          uint64(t.id),
		Name:        t.descriptor.name,
		Target:      t.descriptor.target,
		Location:    t.descriptor.location,
		Fields:      t.descriptor.fields,
		State:       t.state,
		CreatedAt:   unixNano(t.createdAt),
		CompletedAt: unixNano(t.completedAt),
		Stats:       t.poll.export(),
		Scheduled:   t.scheduled.Snapshot(true),
		Wakes:       t.wakes,
		SelfWakes:   t.selfWakes,
		WakerClones: t.wakerClones,
		WakerDrops:  t.wakerDrops,
		WakerCount:  t.wakerCount(),
		LastWake:    unixNano(t.lastWake),
		Warnings:    t.warnings(now),
		Placeholder: t.placeholder,
	}
}

type resource struct {
	id          event.ResourceID
	owner       event.TaskID
	descriptor  descriptor
	state       console.ResourceState
	createdAt   time.Time
	droppedAt   time.Time
	placeholder bool
}

func (r *resource) terminal() bool { return r.state == console.ResourceDropped }

func (r *resource) export() console.ResourceUpdate {
	return console.ResourceUpdate{
		ID:           uint64(r.id),
		Owner:        uint64(r.owner),
		ConcreteType: r.descriptor.concreteType,
		Kind:         r.descriptor.resourceKind,
		Target:       r.descriptor.target,
		Location:     r.descriptor.location,
		Internal:     r.descriptor.internal,
		Fields:       r.descriptor.fields,
		State:        r.state,
		CreatedAt:    unixNano(r.createdAt),
		DroppedAt:    unixNano(r.droppedAt),
		Placeholder:  r.placeholder,
	}
}

type asyncOp struct {
	id          event.AsyncOpID
	resource    event.ResourceID
	owner       event.TaskID
	descriptor  descriptor
	state       console.AsyncOpState
	createdAt   time.Time
	consumedAt  time.Time
	placeholder bool
	poll        pollStats
}

func (o *asyncOp) terminal() bool { return o.state == console.AsyncOpConsumed }

func (o *asyncOp) export() console.AsyncOpUpdate {
	return console.AsyncOpUpdate{
		ID:          uint64(o.id),
		Resource:    uint64(o.resource),
		Owner:       uint64(o.owner),
		Source:      o.descriptor.name,
		Target:      o.descriptor.target,
		Location:    o.descriptor.location,
		Fields:      o.descriptor.fields,
		State:       o.state,
		CreatedAt:   unixNano(o.createdAt),
		ConsumedAt:  unixNano(o.consumedAt),
		Stats:       o.poll.export(),
		Placeholder: o.placeholder,
	}
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}
