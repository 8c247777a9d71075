// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/bureau-foundation/runscope/lib/histogram"
	"github.com/bureau-foundation/runscope/lib/schema/console"
)

// column is one fixed-width table column.
type column struct {
	title string
	width int
}

// renderer formats views as fixed-width tables. Without styling it
// produces the same layout with no escape sequences, for pipes.
type renderer struct {
	header  lipgloss.Style
	cell    lipgloss.Style
	warning lipgloss.Style
	faint   lipgloss.Style
	states  map[string]lipgloss.Style
}

func newRenderer(styled bool) renderer {
	if !styled {
		plain := lipgloss.NewStyle()
		return renderer{header: plain, cell: plain, warning: plain, faint: plain}
	}
	return renderer{
		header:  lipgloss.NewStyle().Bold(true).Underline(true),
		cell:    lipgloss.NewStyle(),
		warning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
		faint:   lipgloss.NewStyle().Faint(true),
		states: map[string]lipgloss.Style{
			string(console.TaskRunning):     lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
			string(console.TaskIdle):        lipgloss.NewStyle().Foreground(lipgloss.Color("75")),
			string(console.TaskCompleted):   lipgloss.NewStyle().Faint(true),
			string(console.ResourceDropped): lipgloss.NewStyle().Faint(true),
			string(console.AsyncOpReady):    lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
			string(console.AsyncOpConsumed): lipgloss.NewStyle().Faint(true),
		},
	}
}

func (r renderer) row(columns []column, values []string, style func(i int) lipgloss.Style) string {
	cells := make([]string, len(columns))
	for i, col := range columns {
		value := values[i]
		if col.width > 0 {
			value = truncate(value, col.width)
			cells[i] = style(i).Width(col.width).Render(value)
		} else {
			cells[i] = style(i).Render(value)
		}
	}
	return strings.TrimRight(strings.Join(cells, " "), " ")
}

func (r renderer) table(b *strings.Builder, columns []column, rows [][]string, style func(row, col int) lipgloss.Style) {
	titles := make([]string, len(columns))
	for i, col := range columns {
		titles[i] = col.title
	}
	b.WriteString(r.row(columns, titles, func(int) lipgloss.Style { return r.header }))
	b.WriteByte('\n')
	for rowIndex, values := range rows {
		b.WriteString(r.row(columns, values, func(col int) lipgloss.Style { return style(rowIndex, col) }))
		b.WriteByte('\n')
	}
}

func (r renderer) stateStyle(state string) lipgloss.Style {
	if style, ok := r.states[state]; ok {
		return style
	}
	return r.cell
}

var taskColumns = []column{
	{"ID", 6}, {"STATE", 9}, {"NAME", 18}, {"TOTAL", 9}, {"BUSY", 9}, {"IDLE", 9},
	{"POLLS", 7}, {"WAKES", 6}, {"WARN", 18}, {"LOCATION", 0},
}

func (r renderer) renderTasks(b *strings.Builder, v *view) {
	tasks := v.sortedTasks()
	rows := make([][]string, len(tasks))
	for i, task := range tasks {
		total := taskTotal(task, v.now)
		idle := max(total-task.Stats.Busy, 0)
		rows[i] = []string{
			fmt.Sprint(task.ID),
			string(task.State),
			task.Name,
			formatDuration(total),
			formatDuration(task.Stats.Busy),
			formatDuration(idle),
			fmt.Sprint(task.Stats.Polls),
			fmt.Sprint(task.Wakes),
			strings.Join(task.Warnings, ","),
			task.Location,
		}
	}
	fmt.Fprintf(b, "Tasks (%d)\n", len(tasks))
	r.table(b, taskColumns, rows, func(row, col int) lipgloss.Style {
		switch taskColumns[col].title {
		case "STATE":
			return r.stateStyle(string(tasks[row].State))
		case "WARN":
			return r.warning
		case "LOCATION":
			return r.faint
		}
		return r.cell
	})
}

var resourceColumns = []column{
	{"ID", 6}, {"STATE", 8}, {"OWNER", 6}, {"TYPE", 18}, {"KIND", 10}, {"TOTAL", 9}, {"LOCATION", 0},
}

func (r renderer) renderResources(b *strings.Builder, v *view) {
	resources := v.sortedResources()
	rows := make([][]string, len(resources))
	for i, resource := range resources {
		end := v.now
		if resource.DroppedAt != 0 {
			end = resource.DroppedAt
		}
		rows[i] = []string{
			fmt.Sprint(resource.ID),
			string(resource.State),
			formatOwner(resource.Owner),
			resource.ConcreteType,
			resource.Kind,
			formatDuration(time.Duration(end - resource.CreatedAt)),
			resource.Location,
		}
	}
	fmt.Fprintf(b, "Resources (%d)\n", len(resources))
	r.table(b, resourceColumns, rows, func(row, col int) lipgloss.Style {
		switch resourceColumns[col].title {
		case "STATE":
			return r.stateStyle(string(resources[row].State))
		case "LOCATION":
			return r.faint
		}
		return r.cell
	})
}

var asyncOpColumns = []column{
	{"ID", 6}, {"STATE", 9}, {"RESOURCE", 8}, {"OWNER", 6}, {"SOURCE", 16}, {"POLLS", 6}, {"BUSY", 9}, {"LOCATION", 0},
}

func (r renderer) renderAsyncOps(b *strings.Builder, v *view) {
	ops := v.sortedAsyncOps()
	rows := make([][]string, len(ops))
	for i, op := range ops {
		rows[i] = []string{
			fmt.Sprint(op.ID),
			string(op.State),
			formatOwner(op.Resource),
			formatOwner(op.Owner),
			op.Source,
			fmt.Sprint(op.Stats.Polls),
			formatDuration(op.Stats.Busy),
			op.Location,
		}
	}
	fmt.Fprintf(b, "Async ops (%d)\n", len(ops))
	r.table(b, asyncOpColumns, rows, func(row, col int) lipgloss.Style {
		switch asyncOpColumns[col].title {
		case "STATE":
			return r.stateStyle(string(ops[row].State))
		case "LOCATION":
			return r.faint
		}
		return r.cell
	})
}

// renderHeader summarises stream health above the tables.
func (r renderer) renderHeader(b *strings.Builder, v *view) {
	line := fmt.Sprintf("tick %d  seq %d  resident %d/%d/%d  events %d  dropped events %d",
		v.tick, v.seq, v.resident.Tasks, v.resident.Resources, v.resident.AsyncOps,
		v.counters.ProcessedEvents, v.counters.DroppedEvents)
	b.WriteString(r.faint.Render(line))
	b.WriteByte('\n')
	if v.dropped > 0 {
		b.WriteString(r.warning.Render(fmt.Sprintf("%d snapshots dropped, %d resyncs", v.dropped, v.resyncs)))
		b.WriteByte('\n')
	}
	if anomalies := v.counters.Anomalies(); anomalies > 0 {
		b.WriteString(r.warning.Render(fmt.Sprintf("%d lifecycle anomalies", anomalies)))
		b.WriteByte('\n')
	}
}

func (r renderer) renderStatus(b *strings.Builder, status *console.Status) {
	fmt.Fprintf(b, "version       %s\n", status.Version)
	fmt.Fprintf(b, "uptime        %s\n", status.Uptime.Round(time.Second))
	fmt.Fprintf(b, "ticks         %d\n", status.Ticks)
	fmt.Fprintf(b, "subscribers   %d\n", status.Subscribers)
	fmt.Fprintf(b, "event queue   %d/%d\n", status.QueueLength, status.QueueCap)
	fmt.Fprintf(b, "resident      %d tasks, %d resources, %d async ops\n",
		status.Resident.Tasks, status.Resident.Resources, status.Resident.AsyncOps)
	counters := status.Counters
	fmt.Fprintf(b, "events        %d processed, %d dropped, %d late\n",
		counters.ProcessedEvents, counters.DroppedEvents, counters.LateEvents)
	fmt.Fprintf(b, "evicted       %d by retention, %d by capacity\n", counters.EvictedByRetention, counters.EvictedByCapacity)
	if counters.Anomalies() > 0 {
		b.WriteString(r.warning.Render(fmt.Sprintf(
			"anomalies     unmatched-end %d, nested-start %d, unknown %d, dup-spawn %d, dup-complete %d, invalid %d",
			counters.UnmatchedPollEnd, counters.NestedPollStart, counters.UnknownEntity,
			counters.DuplicateSpawn, counters.DuplicateCompletion, counters.InvalidTransition)))
		b.WriteByte('\n')
	}
}

func (r renderer) renderDetails(b *strings.Builder, details *console.TaskDetails) {
	task := details.Task
	fmt.Fprintf(b, "%s %d %s\n", r.header.Render("Task"), task.ID, task.Name)
	fmt.Fprintf(b, "state      %s\n", r.stateStyle(string(task.State)).Render(string(task.State)))
	if task.Target != "" {
		fmt.Fprintf(b, "target     %s\n", task.Target)
	}
	if task.Location != "" {
		fmt.Fprintf(b, "location   %s\n", task.Location)
	}
	for _, field := range task.Fields {
		fmt.Fprintf(b, "field      %s=%v\n", field.Name, field.Value)
	}
	fmt.Fprintf(b, "total      %s\n", formatDuration(taskTotal(task, details.Now)))
	fmt.Fprintf(b, "busy       %s over %d polls\n", formatDuration(task.Stats.Busy), task.Stats.Polls)
	fmt.Fprintf(b, "wakers     %d live, %d clones, %d drops\n", task.WakerCount, task.WakerClones, task.WakerDrops)
	fmt.Fprintf(b, "wakes      %d (%d self)\n", task.Wakes, task.SelfWakes)
	if len(task.Warnings) > 0 {
		b.WriteString(r.warning.Render("warnings   " + strings.Join(task.Warnings, ", ")))
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	r.renderHistogram(b, "Poll times", task.Stats.Histogram)
	b.WriteByte('\n')
	r.renderHistogram(b, "Scheduled times", task.Scheduled)
}

// histogramBarWidth is the widest bar in a rendered histogram.
const histogramBarWidth = 40

func (r renderer) renderHistogram(b *strings.Builder, title string, snapshot histogram.Snapshot) {
	b.WriteString(r.header.Render(title))
	b.WriteByte('\n')
	if snapshot.Count == 0 {
		b.WriteString(r.faint.Render("no samples"))
		b.WriteByte('\n')
		return
	}
	fmt.Fprintf(b, "count %d  min %s  p50 %s  p90 %s  p99 %s  max %s\n",
		snapshot.Count,
		formatDuration(snapshot.Min),
		formatDuration(snapshot.P50),
		formatDuration(snapshot.P90),
		formatDuration(snapshot.P99),
		formatDuration(snapshot.Max))

	var peak uint64
	for _, bucket := range snapshot.Buckets {
		peak = max(peak, bucket.Count)
	}
	for _, bucket := range snapshot.Buckets {
		bar := int(bucket.Count * histogramBarWidth / peak)
		fmt.Fprintf(b, "%9s %s %d\n",
			formatDuration(time.Duration(bucket.High)),
			strings.Repeat("█", max(bar, 1)),
			bucket.Count)
	}
}

func taskTotal(task console.TaskUpdate, now int64) time.Duration {
	end := now
	if task.CompletedAt != 0 {
		end = task.CompletedAt
	}
	return max(time.Duration(end-task.CreatedAt), 0)
}

func formatOwner(id uint64) string {
	if id == 0 {
		return "-"
	}
	return fmt.Sprint(id)
}

func formatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "0"
	case d < time.Microsecond:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	case d < time.Millisecond:
		return fmt.Sprintf("%.1fµs", float64(d)/float64(time.Microsecond))
	case d < time.Second:
		return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
	case d < time.Minute:
		return fmt.Sprintf("%.2fs", d.Seconds())
	default:
		return d.Round(time.Second).String()
	}
}

func truncate(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 1 {
		return string(runes[:width])
	}
	return string(runes[:width-1]) + "…"
}
