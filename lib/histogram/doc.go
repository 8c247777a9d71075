// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package histogram records poll and scheduling durations with bounded
// precision and a fixed memory footprint.
//
// Values are nanoseconds bucketed log-linearly: every power-of-two
// range is split into the same number of linear sub-buckets, so the
// relative error of any reported value is at most 2^-(precision-1)
// regardless of magnitude. Values up to 2^36 ns (about 68s) are
// bucketed exactly; larger values land in the top bucket, while Max
// still reports them exactly.
//
// A Histogram allocates its bucket array on the first Record, so
// entities that are never polled cost only the summary fields. The
// exported form ([Histogram.Snapshot]) lists only non-empty buckets,
// which keeps wire size proportional to the spread of observed
// durations rather than to the number of samples.
//
// Histograms are not safe for concurrent use; the aggregator owns them.
package histogram
