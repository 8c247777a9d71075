// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package promexport

import (
	"errors"
	"fmt"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/bureau-foundation/runscope/lib/aggregator"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "runscope"

// StatsProvider is satisfied by *aggregator.Aggregator.
type StatsProvider interface {
	Stats() aggregator.Stats
}

// Collector is a prom.Collector over one StatsProvider.
type Collector struct {
	provider StatsProvider

	processed   *prom.Desc
	dropped     *prom.Desc
	late        *prom.Desc
	anomalies   *prom.Desc
	evicted     *prom.Desc
	ticks       *prom.Desc
	resident    *prom.Desc
	subscribers *prom.Desc
	queueLength *prom.Desc
	queueCap    *prom.Desc
}

var _ prom.Collector = (*Collector)(nil)

// NewCollector builds a collector. An empty namespace means
// DefaultNamespace.
func NewCollector(namespace string, provider StatsProvider) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	desc := func(name, help string, labels ...string) *prom.Desc {
		return prom.NewDesc(prom.BuildFQName(namespace, "", name), help, labels, nil)
	}
	return &Collector{
		provider:    provider,
		processed:   desc("events_processed_total", "Lifecycle events applied by the aggregator."),
		dropped:     desc("events_dropped_total", "Lifecycle events dropped because the event queue was full."),
		late:        desc("events_late_total", "Events for entities that were already evicted."),
		anomalies:   desc("anomalies_total", "Events that violated the entity lifecycle.", "kind"),
		evicted:     desc("evicted_total", "Retired entities removed from memory.", "reason"),
		ticks:       desc("publish_ticks_total", "Completed reap-and-publish ticks."),
		resident:    desc("resident_entities", "Entities currently held by the aggregator.", "kind"),
		subscribers: desc("subscribers", "Open subscription streams."),
		queueLength: desc("event_queue_length", "Events waiting in the event queue."),
		queueCap:    desc("event_queue_capacity", "Event queue capacity."),
	}
}

// Describe implements prom.Collector.
func (c *Collector) Describe(ch chan<- *prom.Desc) {
	for _, desc := range []*prom.Desc{
		c.processed, c.dropped, c.late, c.anomalies, c.evicted, c.ticks,
		c.resident, c.subscribers, c.queueLength, c.queueCap,
	} {
		ch <- desc
	}
}

// Collect implements prom.Collector.
func (c *Collector) Collect(ch chan<- prom.Metric) {
	stats := c.provider.Stats()
	counters := stats.Counters

	counter := func(desc *prom.Desc, value uint64, labels ...string) {
		ch <- prom.MustNewConstMetric(desc, prom.CounterValue, float64(value), labels...)
	}
	gauge := func(desc *prom.Desc, value int, labels ...string) {
		ch <- prom.MustNewConstMetric(desc, prom.GaugeValue, float64(value), labels...)
	}

	counter(c.processed, counters.ProcessedEvents)
	counter(c.dropped, counters.DroppedEvents)
	counter(c.late, counters.LateEvents)
	counter(c.anomalies, counters.UnmatchedPollEnd, "unmatched_poll_end")
	counter(c.anomalies, counters.NestedPollStart, "nested_poll_start")
	counter(c.anomalies, counters.UnknownEntity, "unknown_entity")
	counter(c.anomalies, counters.DuplicateSpawn, "duplicate_spawn")
	counter(c.anomalies, counters.DuplicateCompletion, "duplicate_completion")
	counter(c.anomalies, counters.InvalidTransition, "invalid_transition")
	counter(c.evicted, counters.EvictedByRetention, "retention")
	counter(c.evicted, counters.EvictedByCapacity, "capacity")
	counter(c.ticks, stats.Tick)

	gauge(c.resident, stats.Resident.Tasks, "task")
	gauge(c.resident, stats.Resident.Resources, "resource")
	gauge(c.resident, stats.Resident.AsyncOps, "async_op")
	gauge(c.subscribers, stats.Subscribers)
	gauge(c.queueLength, stats.QueueLength)
	gauge(c.queueCap, stats.QueueCapacity)
}

// Register builds a collector and registers it with reg (the default
// registerer when nil). Registering an equivalent collector twice
// returns the existing one.
func Register(reg prom.Registerer, namespace string, provider StatsProvider) (*Collector, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	return registerCollector(reg, NewCollector(namespace, provider))
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegistered prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegistered) {
		existing, ok := alreadyRegistered.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}
	return collector, err
}
