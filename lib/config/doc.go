// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the static configuration consumed by the
// runscope collector, its inspection socket, and the binaries.
//
// Configuration comes from a single YAML file named either by the
// RUNSCOPE_CONFIG environment variable ([Load]) or by a --config flag
// ([LoadFile]). Values missing from the file keep their [Default].
// Durations use Go syntax ("6s", "250ms"). Path fields support
// ${VAR} and ${VAR:-default} expansion.
//
// The collector section maps one-to-one onto the aggregator's
// static configuration: event_queue_capacity, retention_duration,
// async_op_retention, publish_interval, resident_capacity, and
// histogram_precision.
//
// This package depends on no other runscope packages.
package config
