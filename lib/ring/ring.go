// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ring provides the bounded, lossy queue that carries
// instrumentation events from producer goroutines to the aggregator.
//
// Producers never block and never allocate: when the queue is full the
// new item is discarded and counted. The single consumer learns about
// pending items through a capacity-1 notification channel, so a burst
// of pushes costs at most one wakeup.
package ring

import (
	"sync/atomic"
)

const cacheLinePad = 64

type cell[T any] struct {
	sequence atomic.Uint64
	value    T
}

// Queue is a bounded multi-producer queue using per-cell sequence
// numbers. Push is safe from any goroutine; Pop and Drain must be
// called from a single consumer.
type Queue[T any] struct {
	tail atomic.Uint64
	_    [cacheLinePad]byte
	head atomic.Uint64
	_    [cacheLinePad]byte

	dropped atomic.Uint64
	pushed  atomic.Uint64

	mask   uint64
	cells  []cell[T]
	notify chan struct{}
}

// New returns a queue holding at least capacity items. Capacity is
// rounded up to a power of two, minimum 2.
func New[T any](capacity int) *Queue[T] {
	size := 2
	for size < capacity {
		size <<= 1
	}
	q := &Queue[T]{
		mask:   uint64(size - 1),
		cells:  make([]cell[T], size),
		notify: make(chan struct{}, 1),
	}
	for i := range q.cells {
		q.cells[i].sequence.Store(uint64(i))
	}
	return q
}

// Push enqueues value. When the queue is full the value is discarded,
// the drop counter advances, and Push returns false.
func (q *Queue[T]) Push(value T) bool {
	for {
		tail := q.tail.Load()
		c := &q.cells[tail&q.mask]
		diff := int64(c.sequence.Load()) - int64(tail)

		switch {
		case diff == 0:
			if q.tail.CompareAndSwap(tail, tail+1) {
				c.value = value
				c.sequence.Store(tail + 1)
				q.pushed.Add(1)
				select {
				case q.notify <- struct{}{}:
				default:
				}
				return true
			}
		case diff < 0:
			q.dropped.Add(1)
			return false
		}
	}
}

// Pop dequeues the oldest item. Consumer only.
func (q *Queue[T]) Pop() (T, bool) {
	var zero T
	head := q.head.Load()
	c := &q.cells[head&q.mask]
	if int64(c.sequence.Load())-int64(head+1) < 0 {
		return zero, false
	}
	value := c.value
	c.value = zero
	c.sequence.Store(head + q.mask + 1)
	q.head.Store(head + 1)
	return value, true
}

// Drain pops up to limit items (all available when limit <= 0) and
// passes each to fn in FIFO order. It returns the number consumed.
func (q *Queue[T]) Drain(limit int, fn func(T)) int {
	consumed := 0
	for limit <= 0 || consumed < limit {
		value, ok := q.Pop()
		if !ok {
			break
		}
		fn(value)
		consumed++
	}
	return consumed
}

// Notify returns a channel that receives after pushes. Multiple pushes
// may coalesce into one notification; the consumer should Drain until
// empty on each receive.
func (q *Queue[T]) Notify() <-chan struct{} { return q.notify }

// Dropped returns the number of items discarded because the queue was
// full.
func (q *Queue[T]) Dropped() uint64 { return q.dropped.Load() }

// Pushed returns the number of items accepted.
func (q *Queue[T]) Pushed() uint64 { return q.pushed.Load() }

// Len returns an approximate count of queued items, always within
// [0, Cap()].
func (q *Queue[T]) Len() int {
	// head never passes tail, so loading head first observes
	// tail >= head.
	head := q.head.Load()
	tail := q.tail.Load()
	if tail <= head {
		return 0
	}
	return int(min(tail-head, uint64(len(q.cells))))
}

// Cap returns the queue's capacity.
func (q *Queue[T]) Cap() int { return len(q.cells) }
