// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"fmt"
	"time"
)

// TaskID identifies a task. Zero means no task.
type TaskID uint64

// ResourceID identifies a resource. Zero means no resource.
type ResourceID uint64

// AsyncOpID identifies an async operation. Zero means no async op.
type AsyncOpID uint64

// Kind is the entity kind an event concerns.
type Kind uint8

const (
	KindTask Kind = iota
	KindResource
	KindAsyncOp
)

func (k Kind) String() string {
	switch k {
	case KindTask:
		return "task"
	case KindResource:
		return "resource"
	case KindAsyncOp:
		return "async_op"
	default:
		return fmt.Sprintf("kind(%d)", k)
	}
}

// Type discriminates the lifecycle update an Event carries.
type Type uint8

const (
	TaskSpawned Type = iota + 1
	TaskPollStart
	TaskPollEnd
	TaskCompleted
	ResourceCreated
	ResourceDropped
	AsyncOpCreated
	AsyncOpPollStart
	AsyncOpPollEnd
	AsyncOpCompleted
	WakerCloned
	WakerDropped
	WakerWoken
)

var typeNames = [...]string{
	TaskSpawned:      "task_spawned",
	TaskPollStart:    "task_poll_start",
	TaskPollEnd:      "task_poll_end",
	TaskCompleted:    "task_completed",
	ResourceCreated:  "resource_created",
	ResourceDropped:  "resource_dropped",
	AsyncOpCreated:   "async_op_created",
	AsyncOpPollStart: "async_op_poll_start",
	AsyncOpPollEnd:   "async_op_poll_end",
	AsyncOpCompleted: "async_op_completed",
	WakerCloned:      "waker_cloned",
	WakerDropped:     "waker_dropped",
	WakerWoken:       "waker_woken",
}

func (t Type) String() string {
	if int(t) < len(typeNames) && typeNames[t] != "" {
		return typeNames[t]
	}
	return fmt.Sprintf("type(%d)", t)
}

// Kind returns the kind of the entity whose state the event mutates.
// Waker events mutate the task the waker belongs to.
func (t Type) Kind() Kind {
	switch t {
	case ResourceCreated, ResourceDropped:
		return KindResource
	case AsyncOpCreated, AsyncOpPollStart, AsyncOpPollEnd, AsyncOpCompleted:
		return KindAsyncOp
	default:
		return KindTask
	}
}

// Event is one lifecycle update.
type Event struct {
	Type Type

	// At is when the update happened on its origin goroutine.
	At time.Time

	// Task is the subject of task and waker events, and the owning
	// task (possibly zero) of resource and async-op creation.
	Task TaskID

	// Resource is the subject of resource events and the target
	// resource of async-op creation.
	Resource ResourceID

	// AsyncOp is the subject of async-op events.
	AsyncOp AsyncOpID

	// Ready reports, on AsyncOpPollEnd, that the poll completed the
	// operation's result.
	Ready bool

	// Self marks a WakerWoken raised from inside the woken task's own
	// poll.
	Self bool

	// Meta is set on TaskSpawned, ResourceCreated, and AsyncOpCreated.
	Meta *Metadata
}

// Metadata carries descriptive attributes of a newly created entity.
type Metadata struct {
	// Target is the instrumentation target (package or subsystem).
	Target string

	// Name is the task name, if one was given.
	Name string

	// Location is the spawn or creation site, "file:line".
	Location string

	// ConcreteType is the resource's Go type, e.g. "sync.Mutex".
	ConcreteType string

	// ResourceKind groups resources, e.g. "Sync" or "Timer".
	ResourceKind string

	// Internal hides a resource from clients that ask only for
	// user-visible resources.
	Internal bool

	// Fields are additional key/value attributes.
	Fields []Field
}

// ID returns the subject entity's ID as a plain integer.
func (e Event) ID() uint64 {
	switch e.Type.Kind() {
	case KindResource:
		return uint64(e.Resource)
	case KindAsyncOp:
		return uint64(e.AsyncOp)
	default:
		return uint64(e.Task)
	}
}
