// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/runscope/lib/histogram"
	"github.com/bureau-foundation/runscope/lib/schema/console"
)

func TestRenderTasksPlain(t *testing.T) {
	v := newView()
	v.apply(&console.Snapshot{Full: true, Now: int64(3 * time.Second), Tasks: []console.TaskUpdate{
		{
			ID: 2, Name: "worker", State: console.TaskIdle, CreatedAt: int64(time.Second),
			Stats:    console.PollStats{Polls: 4, Busy: 500 * time.Millisecond},
			Warnings: []string{console.WarningLostWaker},
			Location: "<mod>/demo/main.go:10",
		},
	}})

	var b strings.Builder
	newRenderer(false).renderTasks(&b, v)
	output := b.String()

	if strings.Contains(output, "\x1b[") {
		t.Fatalf("plain output contains escape sequences: %q", output)
	}
	for _, want := range []string{"Tasks (1)", "worker", "2.00s", "500.0ms", "1.50s", "lost-waker", "<mod>/demo/main.go:10"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestRenderHistogramScalesBars(t *testing.T) {
	snapshot := histogram.Snapshot{
		Count: 30, Min: time.Millisecond, Max: 4 * time.Millisecond,
		P50: time.Millisecond, P90: 4 * time.Millisecond, P99: 4 * time.Millisecond,
		Buckets: []histogram.Bucket{
			{Low: 0, High: uint64(time.Millisecond), Count: 20},
			{Low: uint64(time.Millisecond), High: uint64(4 * time.Millisecond), Count: 10},
		},
	}
	var b strings.Builder
	newRenderer(false).renderHistogram(&b, "Poll times", snapshot)
	lines := strings.Split(strings.TrimSpace(b.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines:\n%s", len(lines), b.String())
	}
	if full := strings.Count(lines[2], "█"); full != histogramBarWidth {
		t.Errorf("peak bar = %d cells, want %d", full, histogramBarWidth)
	}
	if half := strings.Count(lines[3], "█"); half != histogramBarWidth/2 {
		t.Errorf("half bar = %d cells, want %d", half, histogramBarWidth/2)
	}
}

func TestRenderEmptyHistogram(t *testing.T) {
	var b strings.Builder
	newRenderer(false).renderHistogram(&b, "Scheduled times", histogram.Snapshot{})
	if !strings.Contains(b.String(), "no samples") {
		t.Fatalf("output = %q", b.String())
	}
}

func TestWatchInterestDefaultsToAllKinds(t *testing.T) {
	opts, err := parseWatchFlags([]string{"--summary", "--compression", "lz4"})
	if err != nil {
		t.Fatalf("parseWatchFlags: %v", err)
	}
	interest := opts.interest()
	if !interest.IncludeTasks || !interest.IncludeResources || !interest.IncludeAsyncOps {
		t.Errorf("interest = %+v, want all kinds", interest)
	}
	if interest.FieldDetail != console.FieldDetailSummary || interest.Compression != "lz4" {
		t.Errorf("interest = %+v", interest)
	}

	opts, err = parseWatchFlags([]string{"--ops"})
	if err != nil {
		t.Fatalf("parseWatchFlags: %v", err)
	}
	if interest := opts.interest(); interest.IncludeTasks || !interest.IncludeAsyncOps {
		t.Errorf("--ops interest = %+v", interest)
	}

	if _, err := parseWatchFlags([]string{"--compression", "gzip"}); err == nil {
		t.Errorf("invalid compression accepted")
	}
}

func TestFormatDuration(t *testing.T) {
	for _, tc := range []struct {
		in   time.Duration
		want string
	}{
		{0, "0"},
		{500 * time.Nanosecond, "500ns"},
		{1500 * time.Nanosecond, "1.5µs"},
		{2500 * time.Microsecond, "2.5ms"},
		{1500 * time.Millisecond, "1.50s"},
		{90 * time.Second, "1m30s"},
	} {
		if got := formatDuration(tc.in); got != tc.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
