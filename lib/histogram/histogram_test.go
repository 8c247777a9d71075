// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package histogram

import (
	"testing"
	"time"

	"pgregory.net/rapid"
)

func TestEmptyHistogram(t *testing.T) {
	h := New(DefaultPrecision)
	if h.Count() != 0 || h.Mean() != 0 || h.Quantile(0.5) != 0 {
		t.Fatalf("empty histogram reports data: count=%d mean=%v p50=%v", h.Count(), h.Mean(), h.Quantile(0.5))
	}
	if buckets := h.Buckets(); len(buckets) != 0 {
		t.Fatalf("empty histogram has %d buckets", len(buckets))
	}
}

func TestRecordSummary(t *testing.T) {
	h := New(DefaultPrecision)
	for _, d := range []time.Duration{2 * time.Millisecond, time.Millisecond, 3 * time.Millisecond} {
		h.Record(d)
	}

	if h.Count() != 3 {
		t.Fatalf("Count() = %d, want 3", h.Count())
	}
	if h.Min() != time.Millisecond || h.Max() != 3*time.Millisecond {
		t.Fatalf("Min/Max = %v/%v, want 1ms/3ms", h.Min(), h.Max())
	}
	if h.Last() != 3*time.Millisecond {
		t.Fatalf("Last() = %v, want 3ms", h.Last())
	}
	if h.Mean() != 2*time.Millisecond {
		t.Fatalf("Mean() = %v, want 2ms", h.Mean())
	}
}

func TestBucketIndexContinuity(t *testing.T) {
	for precision := MinPrecision; precision <= MaxPrecision; precision++ {
		previousHigh := int64(-1)
		for index := 0; index < bucketCount(precision); index++ {
			low, high := bucketBounds(index, precision)
			if int64(low) != previousHigh+1 {
				t.Fatalf("precision %d bucket %d starts at %d, previous ended at %d", precision, index, low, previousHigh)
			}
			if bucketIndex(low, precision) != index || bucketIndex(high, precision) != index {
				t.Fatalf("precision %d bucket %d bounds [%d,%d] map to %d/%d",
					precision, index, low, high, bucketIndex(low, precision), bucketIndex(high, precision))
			}
			previousHigh = int64(high)
		}
		if uint64(previousHigh) != maxValue {
			t.Fatalf("precision %d: last bucket ends at %d, want %d", precision, previousHigh, maxValue)
		}
	}
}

func TestOverflowClampsToTopBucket(t *testing.T) {
	h := New(3)
	huge := 10 * time.Minute
	h.Record(huge)

	if h.Max() != huge {
		t.Fatalf("Max() = %v, want exact %v", h.Max(), huge)
	}
	buckets := h.Buckets()
	if len(buckets) != 1 || buckets[0].High != maxValue {
		t.Fatalf("overflow value bucketed as %+v", buckets)
	}
}

func TestSnapshotSummaryOmitsBuckets(t *testing.T) {
	h := New(DefaultPrecision)
	h.Record(time.Microsecond)
	if snapshot := h.Snapshot(false); snapshot.Buckets != nil {
		t.Fatal("summary snapshot carries buckets")
	}
	if snapshot := h.Snapshot(true); len(snapshot.Buckets) != 1 || snapshot.Count != 1 {
		t.Fatalf("full snapshot = %+v", snapshot)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	h := New(DefaultPrecision)
	h.Record(time.Millisecond)
	clone := h.Clone()
	h.Record(time.Second)

	if clone.Count() != 1 || clone.Max() != time.Millisecond {
		t.Fatalf("clone changed with original: count=%d max=%v", clone.Count(), clone.Max())
	}
}

func TestPropertyBucketsAndQuantiles(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		precision := rapid.IntRange(MinPrecision, MaxPrecision).Draw(rt, "precision")
		values := rapid.SliceOfN(rapid.Int64Range(0, int64(maxValue)), 1, 200).Draw(rt, "values")

		h := New(precision)
		var minimum, maximum int64 = values[0], values[0]
		for _, value := range values {
			h.Record(time.Duration(value))
			minimum = min(minimum, value)
			maximum = max(maximum, value)
		}

		if h.Count() != uint64(len(values)) {
			rt.Fatalf("Count() = %d, want %d", h.Count(), len(values))
		}
		if h.Min() != time.Duration(minimum) || h.Max() != time.Duration(maximum) {
			rt.Fatalf("Min/Max = %d/%d, want %d/%d", h.Min(), h.Max(), minimum, maximum)
		}

		var total uint64
		for _, bucket := range h.Buckets() {
			total += bucket.Count
			if bucket.High < bucket.Low {
				rt.Fatalf("bucket %+v has inverted bounds", bucket)
			}
		}
		if total != h.Count() {
			rt.Fatalf("bucket counts sum to %d, want %d", total, h.Count())
		}

		for _, value := range values {
			low, high := bucketBounds(bucketIndex(uint64(value), precision), precision)
			if uint64(value) < low || uint64(value) > high {
				rt.Fatalf("value %d outside its bucket [%d,%d]", value, low, high)
			}
			if low > 0 && float64(high-low) > float64(low)/float64(uint64(1)<<(precision-1)) {
				rt.Fatalf("bucket [%d,%d] wider than precision %d allows", low, high, precision)
			}
		}

		p50 := h.Quantile(0.5)
		if p50 < h.Min() || p50 > h.Max() {
			rt.Fatalf("p50 %v outside [%v,%v]", p50, h.Min(), h.Max())
		}
		if p90 := h.Quantile(0.9); p90 < p50 {
			rt.Fatalf("p90 %v below p50 %v", p90, p50)
		}
		if h.Quantile(1) != h.Max() {
			rt.Fatalf("Quantile(1) = %v, want Max %v", h.Quantile(1), h.Max())
		}
	})
}
