// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package publish

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/bureau-foundation/runscope/lib/schema/console"
)

// ErrClosed is returned by operations on a closed publisher or
// subscription.
var ErrClosed = errors.New("publish: closed")

// DefaultBuffer is the per-subscriber channel capacity used when the
// configured value is not positive.
const DefaultBuffer = 8

// Config configures a Publisher.
type Config struct {
	// Buffer is the per-subscriber message channel capacity.
	Buffer int

	Logger *slog.Logger
}

// Publisher owns the subscription set. Publish and Subscribe are
// called from the aggregator loop; Len and Close are safe from any
// goroutine.
type Publisher struct {
	buffer int
	logger *slog.Logger

	mu            sync.Mutex
	subscriptions map[uint64]*Subscription
	nextID        uint64
	closed        bool
}

// New creates a Publisher with no subscribers.
func New(config Config) *Publisher {
	if config.Buffer <= 0 {
		config.Buffer = DefaultBuffer
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	return &Publisher{
		buffer:        config.Buffer,
		logger:        config.Logger,
		subscriptions: make(map[uint64]*Subscription),
	}
}

// Tick is one publish cycle's material: the delta since the previous
// tick and a builder for the full view, invoked at most once.
type Tick struct {
	delta *console.Snapshot
	build func() *console.Snapshot
	full  *console.Snapshot
}

// NewTick wraps a delta and a lazily evaluated full snapshot. build
// runs on the goroutine calling Publish.
func NewTick(delta *console.Snapshot, build func() *console.Snapshot) *Tick {
	return &Tick{delta: delta, build: build}
}

// Delta returns the tick's delta snapshot.
func (t *Tick) Delta() *console.Snapshot { return t.delta }

// Full returns the tick's full snapshot, building it on first use.
func (t *Tick) Full() *console.Snapshot {
	if t.full == nil {
		t.full = t.build()
	}
	return t.full
}

// Subscribe registers a subscriber and queues initial, which must be a
// full snapshot, as its first message. The interest is validated;
// invalid interests are rejected without affecting other subscribers.
func (p *Publisher) Subscribe(interest console.Interest, initial *console.Snapshot) (*Subscription, error) {
	if err := interest.Validate(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}

	p.nextID++
	subscription := &Subscription{
		id:       p.nextID,
		messages: make(chan *console.Snapshot, p.buffer),
		closing:  make(chan struct{}),
		interest: interest.Normalized(),
	}
	subscription.deliver(initial.Filter(subscription.interest), 0)
	p.subscriptions[subscription.id] = subscription

	p.logger.Debug("subscriber added",
		"subscription", subscription.id,
		"subscribers", len(p.subscriptions),
	)
	return subscription, nil
}

// Publish delivers one tick to every subscriber. Closed subscriptions
// are reaped first. Paused subscriptions receive nothing. Never blocks.
func (p *Publisher) Publish(tick *Tick) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}

	deltaViews := make(map[console.Key]*console.Snapshot)
	fullViews := make(map[console.Key]*console.Snapshot)

	for id, subscription := range p.subscriptions {
		if subscription.isClosing() {
			p.reapLocked(id, subscription)
			continue
		}

		state := subscription.state()
		if state.paused {
			continue
		}

		key := state.interest.Key()
		var view *console.Snapshot
		if state.needsFull {
			view = fullViews[key]
			if view == nil {
				view = tick.Full().Filter(state.interest)
				fullViews[key] = view
			}
		} else {
			view = deltaViews[key]
			if view == nil {
				view = tick.Delta().Filter(state.interest)
				deltaViews[key] = view
			}
		}
		subscription.deliver(view, state.generation)
	}
}

// Len returns the number of registered subscriptions, including any
// closed but not yet reaped.
func (p *Publisher) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subscriptions)
}

// Close unregisters every subscription and closes their message
// channels. Later Subscribe calls fail with ErrClosed.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for id, subscription := range p.subscriptions {
		p.reapLocked(id, subscription)
	}
}

func (p *Publisher) reapLocked(id uint64, subscription *Subscription) {
	delete(p.subscriptions, id)
	subscription.Close()
	close(subscription.messages)
	p.logger.Debug("subscriber removed",
		"subscription", id,
		"dropped", subscription.Dropped(),
		"subscribers", len(p.subscriptions),
	)
}
