// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package histogram

import (
	"math"
	"math/bits"
	"time"
)

// MaxBits is the bit width of the largest value bucketed exactly.
const MaxBits = 36

const (
	// MinPrecision and MaxPrecision bound the significant binary
	// digits kept per value.
	MinPrecision = 1
	MaxPrecision = 10

	// DefaultPrecision keeps relative error under ~6%.
	DefaultPrecision = 5
)

const maxValue = uint64(1)<<MaxBits - 1

// Histogram accumulates durations. The zero value is not usable; call
// New.
type Histogram struct {
	precision int
	counts    []uint64

	count uint64
	sum   uint64
	min   uint64
	max   uint64
	last  uint64
}

// New returns an empty histogram keeping precision significant binary
// digits. Out-of-range precisions are clamped.
func New(precision int) *Histogram {
	return &Histogram{precision: clampPrecision(precision)}
}

func clampPrecision(precision int) int {
	if precision < MinPrecision {
		return MinPrecision
	}
	if precision > MaxPrecision {
		return MaxPrecision
	}
	return precision
}

// Precision returns the configured significant binary digits.
func (h *Histogram) Precision() int { return h.precision }

// Record adds one duration. Negative durations count as zero.
func (h *Histogram) Record(d time.Duration) {
	value := uint64(0)
	if d > 0 {
		value = uint64(d)
	}

	if h.counts == nil {
		h.counts = make([]uint64, bucketCount(h.precision))
	}
	h.counts[bucketIndex(min(value, maxValue), h.precision)]++

	if h.count == 0 || value < h.min {
		h.min = value
	}
	if value > h.max {
		h.max = value
	}
	h.last = value
	h.count++
	if h.sum > math.MaxUint64-value {
		h.sum = math.MaxUint64
	} else {
		h.sum += value
	}
}

// Count returns the number of recorded values.
func (h *Histogram) Count() uint64 { return h.count }

// Min returns the smallest recorded value, or zero when empty.
func (h *Histogram) Min() time.Duration { return toDuration(h.min) }

// Max returns the largest recorded value, or zero when empty.
func (h *Histogram) Max() time.Duration { return toDuration(h.max) }

// Last returns the most recently recorded value.
func (h *Histogram) Last() time.Duration { return toDuration(h.last) }

// Sum returns the total of recorded values, saturating.
func (h *Histogram) Sum() time.Duration { return toDuration(h.sum) }

// Mean returns the arithmetic mean, or zero when empty.
func (h *Histogram) Mean() time.Duration {
	if h.count == 0 {
		return 0
	}
	return toDuration(h.sum / h.count)
}

// Quantile returns an upper bound for the q-th quantile (0 < q <= 1),
// accurate to the histogram's precision and clamped to [Min, Max].
func (h *Histogram) Quantile(q float64) time.Duration {
	if h.count == 0 {
		return 0
	}
	if q <= 0 {
		return h.Min()
	}
	rank := uint64(math.Ceil(q * float64(h.count)))
	if rank > h.count {
		rank = h.count
	}

	var seen uint64
	for index, count := range h.counts {
		seen += count
		if seen >= rank {
			_, high := bucketBounds(index, h.precision)
			return toDuration(max(min(high, h.max), h.min))
		}
	}
	return h.Max()
}

// Clone returns an independent copy.
func (h *Histogram) Clone() *Histogram {
	clone := *h
	if h.counts != nil {
		clone.counts = append([]uint64(nil), h.counts...)
	}
	return &clone
}

func toDuration(ns uint64) time.Duration {
	if ns > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(ns)
}

// bucketCount is the number of buckets for values in [0, maxValue].
func bucketCount(precision int) int {
	subCount := 1 << precision
	half := subCount >> 1
	return subCount + (MaxBits-precision)*half
}

// bucketIndex maps a value to its bucket. Values below 2^precision
// get one bucket each; above that, each power-of-two range gets
// 2^(precision-1) buckets.
func bucketIndex(value uint64, precision int) int {
	subCount := uint64(1) << precision
	if value < subCount {
		return int(value)
	}
	half := subCount >> 1
	exponent := bits.Len64(value) - precision
	mantissa := value >> exponent
	return int(subCount + uint64(exponent-1)*half + (mantissa - half))
}

// bucketBounds returns the inclusive value range of a bucket.
func bucketBounds(index int, precision int) (low, high uint64) {
	subCount := 1 << precision
	if index < subCount {
		return uint64(index), uint64(index)
	}
	half := subCount >> 1
	offset := index - subCount
	exponent := offset/half + 1
	mantissa := uint64(offset%half + half)
	return mantissa << exponent, (mantissa+1)<<exponent - 1
}
