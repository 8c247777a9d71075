// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package console

import (
	"errors"
	"testing"

	"github.com/bureau-foundation/runscope/lib/codec"
	"github.com/bureau-foundation/runscope/lib/event"
	"github.com/bureau-foundation/runscope/lib/histogram"
)

func TestInterestValidate(t *testing.T) {
	tests := []struct {
		name     string
		interest Interest
		valid    bool
	}{
		{"all", AllInterest(), true},
		{"tasks summary", Interest{IncludeTasks: true, FieldDetail: FieldDetailSummary}, true},
		{"zstd", Interest{IncludeAsyncOps: true, Compression: "zstd"}, true},
		{"nothing selected", Interest{FieldDetail: FieldDetailFull}, false},
		{"bad detail", Interest{IncludeTasks: true, FieldDetail: "verbose"}, false},
		{"bad compression", Interest{IncludeTasks: true, Compression: "gzip"}, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.interest.Validate()
			if test.valid && err != nil {
				t.Fatalf("Validate() = %v, want nil", err)
			}
			if !test.valid && !errors.Is(err, ErrInvalidInterest) {
				t.Fatalf("Validate() = %v, want ErrInvalidInterest", err)
			}
		})
	}
}

func TestInterestKeyIgnoresCompression(t *testing.T) {
	plain := Interest{IncludeTasks: true}
	compressed := Interest{IncludeTasks: true, FieldDetail: FieldDetailFull, Compression: "lz4"}
	if plain.Key() != compressed.Key() {
		t.Fatalf("keys differ: %+v vs %+v", plain.Key(), compressed.Key())
	}
	if plain.Encoding() != codec.EncodingNone || compressed.Encoding() != codec.EncodingLZ4 {
		t.Fatalf("encodings = %q/%q", plain.Encoding(), compressed.Encoding())
	}
}

func sampleSnapshot() *Snapshot {
	h := histogram.New(histogram.DefaultPrecision)
	h.Record(2_000_000)
	return &Snapshot{
		Full: true,
		Tick: 7,
		Tasks: []TaskUpdate{{
			ID:     1,
			Fields: FieldsFrom([]event.Field{event.F("task.name", "worker")}),
			Stats:  PollStats{Polls: 1, Histogram: h.Snapshot(true)},
		}},
		Resources: []ResourceUpdate{{ID: 2, Owner: 1}},
		AsyncOps:  []AsyncOpUpdate{{ID: 3, Resource: 2, Stats: PollStats{Histogram: h.Snapshot(true)}}},
		Evicted:   Evicted{Tasks: []uint64{9}, AsyncOps: []uint64{10}},
	}
}

func TestFilterByKind(t *testing.T) {
	snapshot := sampleSnapshot()
	filtered := snapshot.Filter(Interest{IncludeResources: true})

	if len(filtered.Tasks) != 0 || len(filtered.AsyncOps) != 0 {
		t.Fatalf("filtered snapshot kept excluded kinds: %d tasks, %d ops", len(filtered.Tasks), len(filtered.AsyncOps))
	}
	if len(filtered.Resources) != 1 {
		t.Fatalf("filtered snapshot has %d resources, want 1", len(filtered.Resources))
	}
	if !filtered.Evicted.IsEmpty() {
		t.Fatalf("evictions of excluded kinds leaked: %+v", filtered.Evicted)
	}
	if filtered.Tick != 7 || !filtered.Full {
		t.Fatalf("header not preserved: tick=%d full=%v", filtered.Tick, filtered.Full)
	}
}

func TestFilterSummaryStripsDetail(t *testing.T) {
	snapshot := sampleSnapshot()
	filtered := snapshot.Filter(Interest{IncludeTasks: true, IncludeAsyncOps: true, FieldDetail: FieldDetailSummary})

	task := filtered.Tasks[0]
	if task.Fields != nil || task.Stats.Histogram.Buckets != nil {
		t.Fatalf("summary task kept detail: %+v", task)
	}
	if task.Stats.Histogram.Count != 1 {
		t.Fatalf("summary lost histogram count: %+v", task.Stats.Histogram)
	}
	if filtered.AsyncOps[0].Stats.Histogram.Buckets != nil {
		t.Fatal("summary async op kept buckets")
	}
	if snapshot.Tasks[0].Fields == nil || snapshot.Tasks[0].Stats.Histogram.Buckets == nil {
		t.Fatal("Filter mutated the source snapshot")
	}
}

func TestSnapshotIsEmpty(t *testing.T) {
	if !(&Snapshot{Tick: 3}).IsEmpty() {
		t.Fatal("header-only snapshot reported non-empty")
	}
	if (&Snapshot{Evicted: Evicted{Resources: []uint64{1}}}).IsEmpty() {
		t.Fatal("snapshot with evictions reported empty")
	}
}

func TestSnapshotRoundTripsThroughPayload(t *testing.T) {
	snapshot := sampleSnapshot().WithSequence(4, 2)
	payload, size, encoding, err := codec.EncodePayload(snapshot, codec.EncodingZstd)
	if err != nil {
		t.Fatalf("EncodePayload: %v", err)
	}
	var decoded Snapshot
	if err := codec.DecodePayload(payload, encoding, size, &decoded); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if decoded.Seq != 4 || decoded.Dropped != 2 || len(decoded.Tasks) != 1 {
		t.Fatalf("decoded = %+v", decoded)
	}
	if name := decoded.Tasks[0].Fields[0].Value; name != "worker" {
		t.Fatalf("field value = %#v, want worker", name)
	}
}
