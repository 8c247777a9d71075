// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/runscope/lib/clock"
	"github.com/bureau-foundation/runscope/lib/event"
	"github.com/bureau-foundation/runscope/lib/histogram"
	"github.com/bureau-foundation/runscope/lib/publish"
	"github.com/bureau-foundation/runscope/lib/ring"
	"github.com/bureau-foundation/runscope/lib/schema/console"
)

var (
	// ErrStopped is returned by queries made after Run has returned.
	ErrStopped = errors.New("aggregator: stopped")

	// ErrNotFound is returned by TaskDetails for a task that is not
	// resident.
	ErrNotFound = errors.New("aggregator: not found")
)

// Config configures an Aggregator.
type Config struct {
	// Queue is the event queue producers push into. Required.
	Queue *ring.Queue[event.Event]

	// Publisher receives each tick's snapshots. If nil, one is
	// created with publish.DefaultBuffer.
	Publisher *publish.Publisher

	// Clock drives publish ticks and reap decisions. Nil means
	// clock.Real().
	Clock clock.Clock

	Logger *slog.Logger

	// Retention is how long completed tasks and dropped resources
	// stay resident.
	Retention time.Duration

	// AsyncOpRetention applies to consumed async ops. Zero means
	// Retention.
	AsyncOpRetention time.Duration

	// PublishInterval is the reap-and-publish cadence.
	PublishInterval time.Duration

	// ResidentCapacity bounds resident entities by evicting retired
	// ones early. Zero means unbounded.
	ResidentCapacity int

	// HistogramPrecision is passed to histogram.New.
	HistogramPrecision int

	// Tombstones is how many evicted IDs per kind are remembered so
	// that late events for them are counted instead of recreating the
	// entity. Zero means DefaultTombstones.
	Tombstones int
}

// DefaultTombstones is the default Config.Tombstones.
const DefaultTombstones = 4096

// Stats is the aggregator's externally visible health, refreshed on
// every publish tick.
type Stats struct {
	StartedAt     time.Time
	Tick          uint64
	Counters      console.Counters
	Resident      console.Resident
	Subscribers   int
	QueueLength   int
	QueueCapacity int
}

// Aggregator owns all entity state. Construct with New and drive with
// Run.
type Aggregator struct {
	queue     *ring.Queue[event.Event]
	publisher *publish.Publisher
	clock     clock.Clock
	logger    *slog.Logger

	retention [3]time.Duration
	interval  time.Duration
	capacity  int
	precision int

	tasks     map[event.TaskID]*task
	resources map[event.ResourceID]*resource
	asyncOps  map[event.AsyncOpID]*asyncOp

	// polling holds tasks with a poll in progress, for the long-poll
	// lint.
	polling map[event.TaskID]*task

	dirtyTasks     map[event.TaskID]struct{}
	dirtyResources map[event.ResourceID]struct{}
	dirtyAsyncOps  map[event.AsyncOpID]struct{}
	evicted        console.Evicted

	retired    [3]retirementHeap
	tombstones [3]tombstoneSet

	counters console.Counters
	logged   console.Counters
	tick     uint64

	startedAt time.Time
	stats     atomic.Pointer[Stats]
	running   atomic.Bool
	requests  chan func()
	done      chan struct{}
}

// New validates config and returns an idle Aggregator.
func New(config Config) (*Aggregator, error) {
	if config.Queue == nil {
		return nil, errors.New("aggregator: Queue is required")
	}
	if config.Retention < 0 || config.AsyncOpRetention < 0 {
		return nil, fmt.Errorf("aggregator: negative retention (%v, %v)", config.Retention, config.AsyncOpRetention)
	}
	if config.PublishInterval <= 0 {
		return nil, fmt.Errorf("aggregator: PublishInterval must be positive, got %v", config.PublishInterval)
	}
	if config.ResidentCapacity < 0 {
		return nil, fmt.Errorf("aggregator: negative ResidentCapacity %d", config.ResidentCapacity)
	}
	if config.Tombstones < 0 {
		return nil, fmt.Errorf("aggregator: negative Tombstones %d", config.Tombstones)
	}
	if config.Tombstones == 0 {
		config.Tombstones = DefaultTombstones
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	if config.Publisher == nil {
		config.Publisher = publish.New(publish.Config{Logger: config.Logger})
	}
	if config.HistogramPrecision == 0 {
		config.HistogramPrecision = histogram.DefaultPrecision
	}
	asyncOpRetention := config.AsyncOpRetention
	if asyncOpRetention == 0 {
		asyncOpRetention = config.Retention
	}

	a := &Aggregator{
		queue:          config.Queue,
		publisher:      config.Publisher,
		clock:          config.Clock,
		logger:         config.Logger,
		interval:       config.PublishInterval,
		capacity:       config.ResidentCapacity,
		precision:      config.HistogramPrecision,
		tasks:          make(map[event.TaskID]*task),
		resources:      make(map[event.ResourceID]*resource),
		asyncOps:       make(map[event.AsyncOpID]*asyncOp),
		polling:        make(map[event.TaskID]*task),
		dirtyTasks:     make(map[event.TaskID]struct{}),
		dirtyResources: make(map[event.ResourceID]struct{}),
		dirtyAsyncOps:  make(map[event.AsyncOpID]struct{}),
		startedAt:      config.Clock.Now(),
		requests:       make(chan func()),
		done:           make(chan struct{}),
	}
	a.retention[event.KindTask] = config.Retention
	a.retention[event.KindResource] = config.Retention
	a.retention[event.KindAsyncOp] = asyncOpRetention
	for kind := range a.tombstones {
		a.tombstones[kind] = newTombstoneSet(config.Tombstones)
	}
	a.storeStats()
	return a, nil
}

// Publisher returns the publisher the aggregator feeds.
func (a *Aggregator) Publisher() *publish.Publisher { return a.publisher }

// Run drains the event queue and publishes on every interval until ctx
// is cancelled. On cancellation it applies every queued event,
// publishes a final delta, closes all subscriptions, and returns.
func (a *Aggregator) Run(ctx context.Context) error {
	if !a.running.CompareAndSwap(false, true) {
		return errors.New("aggregator: Run called more than once")
	}
	defer close(a.done)

	ticker := a.clock.NewTicker(a.interval)
	defer ticker.Stop()

	a.logger.Info("aggregator started",
		"publish_interval", a.interval,
		"retention", a.retention[event.KindTask],
		"async_op_retention", a.retention[event.KindAsyncOp],
		"resident_capacity", a.capacity,
		"queue_capacity", a.queue.Cap(),
	)

	for {
		select {
		case <-ctx.Done():
			a.drain()
			a.publishTick(a.clock.Now())
			a.publisher.Close()
			a.logger.Info("aggregator stopped",
				"processed_events", a.counters.ProcessedEvents,
				"dropped_events", a.queue.Dropped(),
				"ticks", a.tick,
			)
			return nil

		case <-a.queue.Notify():
			a.drain()

		case <-ticker.C:
			a.drain()
			a.publishTick(a.clock.Now())

		case request := <-a.requests:
			request()
		}
	}
}

// Done is closed when Run returns.
func (a *Aggregator) Done() <-chan struct{} { return a.done }

// drain applies at most one queue's worth of events. Anything pushed
// after the notification that triggered this drain re-arms it, so a
// bounded drain never strands events and leaves room for ticks and
// requests under sustained load.
func (a *Aggregator) drain() {
	a.queue.Drain(a.queue.Cap(), a.apply)
}

func (a *Aggregator) publishTick(now time.Time) {
	a.reap(now)
	delta := a.delta(now)
	a.publisher.Publish(publish.NewTick(delta, func() *console.Snapshot {
		return a.full(now)
	}))
	a.storeStats()
	a.logAnomalies()
}

// do runs fn on the aggregator loop and waits for it to finish.
func (a *Aggregator) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	select {
	case a.requests <- func() { fn(); close(finished) }:
	case <-a.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	<-finished
	return nil
}

// Subscribe registers a subscriber whose first message is a full
// snapshot consistent with the deltas that follow it.
func (a *Aggregator) Subscribe(ctx context.Context, interest console.Interest) (*publish.Subscription, error) {
	if err := interest.Validate(); err != nil {
		return nil, err
	}
	var (
		subscription *publish.Subscription
		err          error
	)
	if doErr := a.do(ctx, func() {
		subscription, err = a.publisher.Subscribe(interest, a.full(a.clock.Now()))
	}); doErr != nil {
		return nil, doErr
	}
	return subscription, err
}

// TaskDetails returns one task with its full poll and scheduling
// histograms.
func (a *Aggregator) TaskDetails(ctx context.Context, id event.TaskID) (*console.TaskDetails, error) {
	var details *console.TaskDetails
	if err := a.do(ctx, func() {
		t, ok := a.lookupTask(id)
		if !ok {
			return
		}
		now := a.clock.Now()
		details = &console.TaskDetails{Now: now.UnixNano(), Task: t.export(now)}
	}); err != nil {
		return nil, err
	}
	if details == nil {
		return nil, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	return details, nil
}

// lookupTask resolves a task reference. Owner references held by
// resources and async ops may outlive their task; a miss means the
// owner is unknown.
func (a *Aggregator) lookupTask(id event.TaskID) (*task, bool) {
	t, ok := a.tasks[id]
	return t, ok
}

// Stats returns the health figures from the latest tick, with queue
// and subscriber figures read live.
func (a *Aggregator) Stats() Stats {
	stats := *a.stats.Load()
	stats.Counters.DroppedEvents = a.queue.Dropped()
	stats.QueueLength = a.queue.Len()
	stats.Subscribers = a.publisher.Len()
	return stats
}

func (a *Aggregator) storeStats() {
	a.stats.Store(&Stats{
		StartedAt:     a.startedAt,
		Tick:          a.tick,
		Counters:      a.currentCounters(),
		Resident:      a.residentCounts(),
		QueueCapacity: a.queue.Cap(),
	})
}

func (a *Aggregator) currentCounters() console.Counters {
	counters := a.counters
	counters.DroppedEvents = a.queue.Dropped()
	return counters
}

func (a *Aggregator) residentCounts() console.Resident {
	return console.Resident{
		Tasks:     len(a.tasks),
		Resources: len(a.resources),
		AsyncOps:  len(a.asyncOps),
	}
}

// logAnomalies emits one warning per tick summarizing counters that
// advanced since the previous tick.
func (a *Aggregator) logAnomalies() {
	current := a.currentCounters()
	previous := a.logged
	a.logged = current

	if current.Anomalies() > previous.Anomalies() {
		a.logger.Warn("event anomalies",
			"unmatched_poll_end", current.UnmatchedPollEnd-previous.UnmatchedPollEnd,
			"nested_poll_start", current.NestedPollStart-previous.NestedPollStart,
			"unknown_entity", current.UnknownEntity-previous.UnknownEntity,
			"duplicate_spawn", current.DuplicateSpawn-previous.DuplicateSpawn,
			"duplicate_completion", current.DuplicateCompletion-previous.DuplicateCompletion,
			"invalid_transition", current.InvalidTransition-previous.InvalidTransition,
		)
	}
	if current.DroppedEvents > previous.DroppedEvents {
		a.logger.Warn("events dropped at producer",
			"dropped", current.DroppedEvents-previous.DroppedEvents,
			"total_dropped", current.DroppedEvents,
			"queue_capacity", a.queue.Cap(),
		)
	}
}
