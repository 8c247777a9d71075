// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package console

import (
	"time"

	"github.com/bureau-foundation/runscope/lib/event"
	"github.com/bureau-foundation/runscope/lib/histogram"
)

// TaskState is the scheduling state of a task.
type TaskState string

const (
	TaskRunning   TaskState = "running"
	TaskIdle      TaskState = "idle"
	TaskCompleted TaskState = "completed"
)

// ResourceState is the lifecycle state of a resource.
type ResourceState string

const (
	ResourceLive    ResourceState = "live"
	ResourceDropped ResourceState = "dropped"
)

// AsyncOpState is the lifecycle state of an async operation.
type AsyncOpState string

const (
	AsyncOpPending  AsyncOpState = "pending"
	AsyncOpReady    AsyncOpState = "ready"
	AsyncOpConsumed AsyncOpState = "consumed"
)

// Task lint names carried in TaskUpdate.Warnings.
const (
	WarningSelfWakes = "self-wakes"
	WarningLostWaker = "lost-waker"
	WarningLongPoll  = "long-poll"
)

// Field is one metadata attribute. Value holds a bool, string,
// uint64, or int64; Debug marks a preformatted rendering of a
// non-scalar value.
type Field struct {
	Name  string `cbor:"name"`
	Value any    `cbor:"value"`
	Debug bool   `cbor:"debug,omitempty"`
}

// FieldsFrom converts event fields to their wire form.
func FieldsFrom(fields []event.Field) []Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]Field, len(fields))
	for i, field := range fields {
		out[i] = Field{Name: field.Name}
		switch field.Value.Kind {
		case event.ValueBool:
			out[i].Value = field.Value.Bool
		case event.ValueUint:
			out[i].Value = field.Value.Uint
		case event.ValueInt:
			out[i].Value = field.Value.Int
		case event.ValueDebug:
			out[i].Value = field.Value.Str
			out[i].Debug = true
		default:
			out[i].Value = field.Value.Str
		}
	}
	return out
}

// PollStats summarizes the polls of a task or async op.
type PollStats struct {
	Polls           uint64        `cbor:"polls"`
	Busy            time.Duration `cbor:"busy"`
	FirstPoll       int64         `cbor:"first_poll,omitempty"`
	LastPollStarted int64         `cbor:"last_poll_started,omitempty"`
	LastPollEnded   int64         `cbor:"last_poll_ended,omitempty"`

	// Histogram holds per-poll durations.
	Histogram histogram.Snapshot `cbor:"histogram"`
}

// TaskUpdate is the state of one task.
type TaskUpdate struct {
	ID       uint64    `cbor:"id"`
	Name     string    `cbor:"name,omitempty"`
	Target   string    `cbor:"target,omitempty"`
	Location string    `cbor:"location,omitempty"`
	Fields   []Field   `cbor:"fields,omitempty"`
	State    TaskState `cbor:"state"`

	CreatedAt   int64 `cbor:"created_at"`
	CompletedAt int64 `cbor:"completed_at,omitempty"`

	Stats PollStats `cbor:"stats"`

	// Scheduled holds durations from a wake to the poll it caused.
	Scheduled histogram.Snapshot `cbor:"scheduled"`

	Wakes       uint64 `cbor:"wakes"`
	SelfWakes   uint64 `cbor:"self_wakes"`
	WakerClones uint64 `cbor:"waker_clones"`
	WakerDrops  uint64 `cbor:"waker_drops"`
	WakerCount  int64  `cbor:"waker_count"`
	LastWake    int64  `cbor:"last_wake,omitempty"`

	Warnings []string `cbor:"warnings,omitempty"`

	// Placeholder marks a task synthesized from an event that
	// referenced an ID never seen spawned.
	Placeholder bool `cbor:"placeholder,omitempty"`
}

// ResourceUpdate is the state of one resource.
type ResourceUpdate struct {
	ID           uint64        `cbor:"id"`
	Owner        uint64        `cbor:"owner,omitempty"`
	ConcreteType string        `cbor:"concrete_type,omitempty"`
	Kind         string        `cbor:"kind,omitempty"`
	Target       string        `cbor:"target,omitempty"`
	Location     string        `cbor:"location,omitempty"`
	Internal     bool          `cbor:"internal,omitempty"`
	Fields       []Field       `cbor:"fields,omitempty"`
	State        ResourceState `cbor:"state"`

	CreatedAt int64 `cbor:"created_at"`
	DroppedAt int64 `cbor:"dropped_at,omitempty"`

	Placeholder bool `cbor:"placeholder,omitempty"`
}

// AsyncOpUpdate is the state of one async operation.
type AsyncOpUpdate struct {
	ID       uint64       `cbor:"id"`
	Resource uint64       `cbor:"resource,omitempty"`
	Owner    uint64       `cbor:"owner,omitempty"`

	// Source names the operation, e.g. "Timer::sleep".
	Source   string       `cbor:"source,omitempty"`
	Target   string       `cbor:"target,omitempty"`
	Location string       `cbor:"location,omitempty"`
	Fields   []Field      `cbor:"fields,omitempty"`
	State    AsyncOpState `cbor:"state"`

	CreatedAt  int64 `cbor:"created_at"`
	ConsumedAt int64 `cbor:"consumed_at,omitempty"`

	Stats PollStats `cbor:"stats"`

	Placeholder bool `cbor:"placeholder,omitempty"`
}
