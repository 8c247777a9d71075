// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package aggregator folds the instrumentation event stream into
// per-entity state and drives snapshot publication.
//
// An [Aggregator] is the only writer of task, resource, and async-op
// state. Producers push events into a lossy [ring.Queue]; the
// aggregator's Run loop drains it, applies each event, and on every
// publish tick reaps retired entities, builds a delta of what changed,
// and hands it to the [publish.Publisher]. Subscriptions and on-demand
// queries run on the same loop, so every view is built between events
// and never observes a half-applied update.
//
// Malformed or out-of-order events never fail: they are counted in
// [console.Counters] and the affected entity stays best-effort
// consistent. Events for IDs never seen created produce placeholder
// entities so later statistics have somewhere to go. Events for
// recently evicted IDs, such as a waker dropped after its task was
// reaped, are counted as late and never resurrect the entity.
//
// Retired entities (completed tasks, dropped resources, consumed
// async ops) stay resident for a retention period and are then
// evicted. Independently, when the resident count exceeds the
// configured capacity, the oldest retired entities are evicted early;
// live entities are never evicted, so the count may exceed capacity
// while everything is live. Eviction order is retirement time, then
// kind (tasks, resources, async ops), then lowest ID.
package aggregator
