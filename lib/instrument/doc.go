// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package instrument is the hook surface a cooperative executor calls
// at task, resource, and async-op lifecycle points.
//
// A [Recorder] allocates IDs, stamps each hook with the current time,
// and pushes one event onto the aggregator's queue. Hooks never block:
// when the queue is full the event is dropped and counted by the
// queue. A nil *Recorder accepts every call and does nothing, so an
// executor can be built with instrumentation switched off.
//
// Attribution of resources and async ops to the task being polled
// uses the per-worker [taskctx.Stack] carried in the context passed to
// the hooks. Each worker goroutine installs its own stack once:
//
//	ctx = taskctx.WithStack(ctx, taskctx.NewStack())
//	for job := range jobs {
//	    poll := recorder.BeginPoll(ctx, job.id)
//	    ready := job.poll(ctx)
//	    poll.End()
//	}
package instrument
