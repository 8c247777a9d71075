// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package console defines the wire types exchanged between the
// runscope subscription server and inspection clients: snapshots of
// task, resource, and async-op state, the per-subscription interest
// filter, stream frames and control messages, and the status and
// task-details query results.
//
// All types are serialized as CBOR via lib/codec. Timestamps are Unix
// nanoseconds (zero means unset) and durations are nanoseconds, so
// records stay compact and comparable without time zone handling.
package console
