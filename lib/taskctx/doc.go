// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package taskctx attributes resource and async-op events to the task
// being polled when they fire.
//
// Each worker goroutine of the host executor owns one [Stack]. Polling
// a task pushes its ID with [Stack.Enter]; the returned [Guard] pops it
// again and is meant to be released with defer, so the stack unwinds
// even when the poll panics. Polls nest when a task polls a child
// future, so the stack can be several entries deep; [Stack.Current]
// reads the innermost task.
//
// A Stack is never shared between goroutines and needs no locking. It
// travels to instrumentation call sites inside a context.Context:
//
//	stack := taskctx.NewStack()
//	ctx = taskctx.WithStack(ctx, stack)
//	...
//	guard := stack.Enter(id)
//	defer guard.Exit()
//	poll(ctx)
//
// Code that is not running inside any poll sees Current return false,
// and the instrumentation records an empty owner.
package taskctx
