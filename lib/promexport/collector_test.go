// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package promexport

import (
	"strings"
	"testing"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/bureau-foundation/runscope/lib/aggregator"
	"github.com/bureau-foundation/runscope/lib/schema/console"
)

type statsStub struct {
	stats aggregator.Stats
}

func (s *statsStub) Stats() aggregator.Stats { return s.stats }

func TestCollectorExportsStats(t *testing.T) {
	stub := &statsStub{stats: aggregator.Stats{
		Tick: 12,
		Counters: console.Counters{
			ProcessedEvents:    400,
			DroppedEvents:      3,
			UnmatchedPollEnd:   2,
			EvictedByRetention: 9,
			EvictedByCapacity:  1,
		},
		Resident:      console.Resident{Tasks: 5, Resources: 2, AsyncOps: 7},
		Subscribers:   1,
		QueueLength:   10,
		QueueCapacity: 4096,
	}}

	reg := prom.NewRegistry()
	if _, err := Register(reg, "", stub); err != nil {
		t.Fatalf("Register: %v", err)
	}

	expected := `
# HELP runscope_events_dropped_total Lifecycle events dropped because the event queue was full.
# TYPE runscope_events_dropped_total counter
runscope_events_dropped_total 3
# HELP runscope_evicted_total Retired entities removed from memory.
# TYPE runscope_evicted_total counter
runscope_evicted_total{reason="capacity"} 1
runscope_evicted_total{reason="retention"} 9
# HELP runscope_resident_entities Entities currently held by the aggregator.
# TYPE runscope_resident_entities gauge
runscope_resident_entities{kind="async_op"} 7
runscope_resident_entities{kind="resource"} 2
runscope_resident_entities{kind="task"} 5
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"runscope_events_dropped_total", "runscope_evicted_total", "runscope_resident_entities"); err != nil {
		t.Fatalf("GatherAndCompare: %v", err)
	}

	if count := testutil.CollectAndCount(NewCollector("", stub), "runscope_anomalies_total"); count != 6 {
		t.Fatalf("anomaly series = %d, want 6", count)
	}
}

func TestCollectorReadsStatsAtScrape(t *testing.T) {
	stub := &statsStub{}
	collector := NewCollector("test", stub)

	stub.stats.Subscribers = 4
	if got := testutil.ToFloat64(gaugeOnly(collector, "test_subscribers")); got != 4 {
		t.Fatalf("subscribers = %v, want 4", got)
	}
}

func TestRegisterTwiceReturnsExisting(t *testing.T) {
	reg := prom.NewRegistry()
	stub := &statsStub{}
	first, err := Register(reg, "", stub)
	if err != nil {
		t.Fatalf("first Register: %v", err)
	}
	second, err := Register(reg, "", stub)
	if err != nil {
		t.Fatalf("second Register: %v", err)
	}
	if first != second {
		t.Fatalf("second Register returned a new collector")
	}
}

// filtered narrows a collector to the metric named fqName so
// testutil.ToFloat64 sees exactly one series.
type filtered struct {
	collector *Collector
	fqName    string
}

func gaugeOnly(collector *Collector, fqName string) prom.Collector {
	return filtered{collector: collector, fqName: fqName}
}

func (f filtered) Describe(ch chan<- *prom.Desc) { prom.DescribeByCollect(f, ch) }

func (f filtered) Collect(ch chan<- prom.Metric) {
	all := make(chan prom.Metric, 32)
	f.collector.Collect(all)
	close(all)
	for metric := range all {
		if strings.Contains(metric.Desc().String(), `"`+f.fqName+`"`) {
			ch <- metric
		}
	}
}
