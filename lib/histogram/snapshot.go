// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package histogram

import "time"

// Bucket is one non-empty bucket: Count values fell in [Low, High]
// nanoseconds.
type Bucket struct {
	Low   uint64 `cbor:"low"`
	High  uint64 `cbor:"high"`
	Count uint64 `cbor:"count"`
}

// Snapshot is the pre-aggregated, wire-ready form of a Histogram.
type Snapshot struct {
	Count     uint64        `cbor:"count"`
	Min       time.Duration `cbor:"min"`
	Max       time.Duration `cbor:"max"`
	Mean      time.Duration `cbor:"mean"`
	Last      time.Duration `cbor:"last"`
	Sum       time.Duration `cbor:"sum"`
	P50       time.Duration `cbor:"p50"`
	P90       time.Duration `cbor:"p90"`
	P99       time.Duration `cbor:"p99"`
	Precision int           `cbor:"precision,omitempty"`

	// Buckets is nil in summary-detail snapshots.
	Buckets []Bucket `cbor:"buckets,omitempty"`
}

// Snapshot exports the histogram. With withBuckets false only the
// summary statistics are filled in.
func (h *Histogram) Snapshot(withBuckets bool) Snapshot {
	if h == nil {
		return Snapshot{}
	}
	snapshot := Snapshot{
		Count:     h.count,
		Min:       h.Min(),
		Max:       h.Max(),
		Mean:      h.Mean(),
		Last:      h.Last(),
		Sum:       h.Sum(),
		P50:       h.Quantile(0.50),
		P90:       h.Quantile(0.90),
		P99:       h.Quantile(0.99),
		Precision: h.precision,
	}
	if withBuckets {
		snapshot.Buckets = h.Buckets()
	}
	return snapshot
}

// Buckets returns the non-empty buckets in ascending order.
func (h *Histogram) Buckets() []Bucket {
	var buckets []Bucket
	for index, count := range h.counts {
		if count == 0 {
			continue
		}
		low, high := bucketBounds(index, h.precision)
		buckets = append(buckets, Bucket{Low: low, High: high, Count: count})
	}
	return buckets
}

// WithoutBuckets returns s with the bucket list removed.
func (s Snapshot) WithoutBuckets() Snapshot {
	s.Buckets = nil
	return s
}
