// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package event defines the lifecycle records that instrumentation
// hooks emit and the aggregator folds into entity state.
//
// An [Event] is a flat value: a [Type] discriminator, a timestamp, the
// IDs it concerns, and an optional [Metadata] pointer that is set only
// on creation events. Keeping it flat means enqueueing an event on the
// hot path costs one copy and, for poll and waker events, no
// allocation.
//
// IDs are allocated per kind by the instrumentation layer, start at 1,
// and are never reused. Zero means "absent": a resource created outside
// any task has Task == 0.
//
// Producing an event performs no aggregation. Per entity, events reach
// the aggregator in the order they were generated on their origin
// goroutine; there is no ordering across entities.
package event
