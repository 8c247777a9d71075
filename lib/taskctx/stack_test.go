// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package taskctx

import (
	"context"
	"testing"

	"github.com/bureau-foundation/runscope/lib/event"
)

func TestCurrentOutsideAnyTask(t *testing.T) {
	if _, ok := NewStack().Current(); ok {
		t.Fatal("empty stack reported a current task")
	}
	var stack *Stack
	if _, ok := stack.Current(); ok {
		t.Fatal("nil stack reported a current task")
	}
	if _, ok := Current(context.Background()); ok {
		t.Fatal("context without a stack reported a current task")
	}
}

func TestNestedEnterExit(t *testing.T) {
	stack := NewStack()

	outer := stack.Enter(1)
	inner := stack.Enter(2)
	if id, ok := stack.Current(); !ok || id != 2 {
		t.Fatalf("Current() = %d, %v; want 2, true", id, ok)
	}

	inner.Exit()
	if id, ok := stack.Current(); !ok || id != 1 {
		t.Fatalf("after inner exit Current() = %d, %v; want 1, true", id, ok)
	}

	inner.Exit()
	if stack.Depth() != 1 {
		t.Fatalf("second inner Exit changed depth to %d", stack.Depth())
	}

	outer.Exit()
	if stack.Depth() != 0 {
		t.Fatalf("Depth() = %d after all exits, want 0", stack.Depth())
	}
}

func TestOuterExitUnwindsForgottenInner(t *testing.T) {
	stack := NewStack()
	outer := stack.Enter(1)
	stack.Enter(2)
	stack.Enter(3)

	outer.Exit()
	if stack.Depth() != 0 {
		t.Fatalf("Depth() = %d, want 0", stack.Depth())
	}
}

func TestGuardPopsOnPanic(t *testing.T) {
	stack := NewStack()
	func() {
		defer func() { _ = recover() }()
		guard := stack.Enter(7)
		defer guard.Exit()
		panic("poll failed")
	}()
	if _, ok := stack.Current(); ok {
		t.Fatal("stack not unwound after panic")
	}
}

func TestContextCarriesStack(t *testing.T) {
	stack := NewStack()
	ctx := WithStack(context.Background(), stack)

	guard := stack.Enter(event.TaskID(42))
	id, ok := Current(ctx)
	guard.Exit()

	if !ok || id != 42 {
		t.Fatalf("Current(ctx) = %d, %v; want 42, true", id, ok)
	}
	if StackFrom(ctx) != stack {
		t.Fatal("StackFrom returned a different stack")
	}
}
