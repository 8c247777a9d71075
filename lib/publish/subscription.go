// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package publish

import (
	"sync"
	"sync/atomic"

	"github.com/bureau-foundation/runscope/lib/schema/console"
)

// Subscription is one subscriber's stream. Its methods are safe for
// use from the goroutine serving the client while the publisher
// delivers to it.
type Subscription struct {
	id       uint64
	messages chan *console.Snapshot
	closing  chan struct{}
	once     sync.Once

	dropped atomic.Uint64

	mu        sync.Mutex
	interest  console.Interest
	paused    bool
	needsFull bool
	seq       uint64

	// generation advances whenever a full snapshot becomes owed, so
	// a full built for an older interest does not settle the debt.
	generation uint64
}

// ID returns the publisher-assigned subscription ID.
func (s *Subscription) ID() uint64 { return s.id }

// Messages returns the snapshot stream. The first message is always
// a full snapshot. The channel is closed once the subscription has
// been closed and reaped, or the publisher shut down.
func (s *Subscription) Messages() <-chan *console.Snapshot { return s.messages }

// Closing is closed as soon as Close is called.
func (s *Subscription) Closing() <-chan struct{} { return s.closing }

// Close unsubscribes. Idempotent. The message channel is closed by the
// publisher on its next tick.
func (s *Subscription) Close() {
	s.once.Do(func() { close(s.closing) })
}

// Pause stops delivery until Resume.
func (s *Subscription) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
}

// Resume restarts delivery. The next message is a full snapshot.
func (s *Subscription) Resume() {
	s.mu.Lock()
	if s.paused {
		s.paused = false
		s.needsFull = true
		s.generation++
	}
	s.mu.Unlock()
}

// SetInterest replaces the filter. The next message is a full snapshot
// under the new interest. An invalid interest leaves the current one
// in place.
func (s *Subscription) SetInterest(interest console.Interest) error {
	if err := interest.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.interest = interest.Normalized()
	s.needsFull = true
	s.generation++
	s.mu.Unlock()
	return nil
}

// Interest returns the current filter.
func (s *Subscription) Interest() console.Interest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interest
}

// Paused reports whether delivery is paused.
func (s *Subscription) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Dropped returns how many messages were discarded because the
// channel was full.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

func (s *Subscription) isClosing() bool {
	select {
	case <-s.closing:
		return true
	default:
		return false
	}
}

// subscriptionState is what Publish needs to pick and filter a view.
type subscriptionState struct {
	interest   console.Interest
	paused     bool
	needsFull  bool
	generation uint64
}

func (s *Subscription) state() subscriptionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return subscriptionState{
		interest:   s.interest,
		paused:     s.paused,
		needsFull:  s.needsFull,
		generation: s.generation,
	}
}

// deliver stamps view with the next sequence number and attempts a
// non-blocking send. A failed send is counted and schedules a full
// snapshot as the next message.
func (s *Subscription) deliver(view *console.Snapshot, generation uint64) {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	dropped := s.dropped.Load()
	s.mu.Unlock()

	select {
	case s.messages <- view.WithSequence(seq, dropped):
		if view.Full {
			s.mu.Lock()
			if s.generation == generation {
				s.needsFull = false
			}
			s.mu.Unlock()
		}
	default:
		s.dropped.Add(1)
		s.mu.Lock()
		s.needsFull = true
		s.mu.Unlock()
	}
}
