// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package taskctx

import (
	"context"

	"github.com/bureau-foundation/runscope/lib/event"
)

// Stack is the per-goroutine stack of tasks currently being polled.
// The zero value is ready to use. Current and Depth treat a nil *Stack
// as empty.
type Stack struct {
	ids []event.TaskID
}

// NewStack returns an empty Stack with room for a few nested polls.
func NewStack() *Stack {
	return &Stack{ids: make([]event.TaskID, 0, 4)}
}

// Enter pushes id and returns the guard that pops it.
func (s *Stack) Enter(id event.TaskID) Guard {
	depth := len(s.ids)
	s.ids = append(s.ids, id)
	return Guard{stack: s, depth: depth}
}

// Current returns the innermost task being polled.
func (s *Stack) Current() (event.TaskID, bool) {
	if s == nil || len(s.ids) == 0 {
		return 0, false
	}
	return s.ids[len(s.ids)-1], true
}

// Depth returns the number of nested polls in progress.
func (s *Stack) Depth() int {
	if s == nil {
		return 0
	}
	return len(s.ids)
}

// Guard restores a Stack to the depth it had before the matching
// Enter.
type Guard struct {
	stack *Stack
	depth int
}

// Exit pops the guard's task and anything entered after it. Calling
// Exit more than once is harmless.
func (g Guard) Exit() {
	if g.stack == nil || len(g.stack.ids) <= g.depth {
		return
	}
	clear(g.stack.ids[g.depth:])
	g.stack.ids = g.stack.ids[:g.depth]
}

type stackKey struct{}

// WithStack returns a context carrying stack.
func WithStack(ctx context.Context, stack *Stack) context.Context {
	return context.WithValue(ctx, stackKey{}, stack)
}

// StackFrom returns the Stack carried by ctx, or nil.
func StackFrom(ctx context.Context) *Stack {
	if ctx == nil {
		return nil
	}
	stack, _ := ctx.Value(stackKey{}).(*Stack)
	return stack
}

// Current returns the innermost task being polled on the goroutine
// that owns ctx's Stack.
func Current(ctx context.Context) (event.TaskID, bool) {
	return StackFrom(ctx).Current()
}
