// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/runscope/lib/clock"
	"github.com/bureau-foundation/runscope/lib/event"
	"github.com/bureau-foundation/runscope/lib/instrument"
)

// workload spawns demo tasks into an executor. Each task shape
// exercises a different part of the collector: timers produce
// resources and async ops, yielders self-wake, a stuck task loses its
// waker, and a blocking task holds a worker past the long-poll
// threshold.
type workload struct {
	executor *executor
	clock    clock.Clock

	// lifetime bounds the timer goroutines parked by sleeping tasks.
	lifetime context.Context

	spawned atomic.Uint64
}

// seed spawns the one-off tasks that should be visible for the whole
// run.
func (w *workload) seed() {
	w.executor.spawn("stuck", w.stuck(), event.F("kind", "demo"))
	w.executor.spawn("blocking-io", w.blocking(1500*time.Millisecond), event.F("kind", "demo"))
}

// run spawns a random task every interval until ctx is cancelled.
func (w *workload) run(ctx context.Context, interval time.Duration) {
	ticker := w.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.spawnRandom()
		}
	}
}

func (w *workload) spawnRandom() {
	n := w.spawned.Add(1)
	switch rand.IntN(4) {
	case 0, 1:
		period := time.Duration(50+rand.IntN(450)) * time.Millisecond
		iterations := 1 + rand.IntN(20)
		w.executor.spawn(fmt.Sprintf("sleeper-%d", n), w.sleeper(period, iterations),
			event.F("period", period), event.F("iterations", iterations))
	case 2:
		w.executor.spawn(fmt.Sprintf("yielder-%d", n), w.yielder(5+rand.IntN(50)),
			event.F("kind", "cpu"))
	default:
		w.executor.spawn(fmt.Sprintf("oneshot-%d", n), w.oneshot(), event.F("kind", "short"))
	}
}

// sleeper waits on a timer resource iterations times. Each wait is one
// async op, polled until its timer fires.
func (w *workload) sleeper(period time.Duration, iterations int) func(*waker) instrument.PollFunc {
	recorder := w.executor.recorder
	return func(handle *waker) instrument.PollFunc {
		var (
			timer     event.ResourceID
			op        event.AsyncOpID
			fired     atomic.Bool
			remaining = iterations
		)
		return func(ctx context.Context) bool {
			if timer == 0 {
				timer = recorder.NewResource(ctx, "time.Timer", "timer", event.F("duration", period))
			}
			if op != 0 {
				recorder.BeginAsyncOpPoll(op)
				ready := fired.Load()
				recorder.EndAsyncOpPoll(op, ready)
				if !ready {
					return false
				}
				recorder.CompleteAsyncOp(op)
				op = 0
				remaining--
				if remaining == 0 {
					recorder.DropResource(timer)
					return true
				}
			}

			fired.Store(false)
			op = recorder.NewAsyncOp(ctx, timer, "Timer::sleep")
			wakeup := handle.clone()
			expired := w.clock.After(period)
			go func() {
				select {
				case <-expired:
					fired.Store(true)
					wakeup.wake(context.Background())
				case <-w.lifetime.Done():
					wakeup.drop()
				}
			}()
			return false
		}
	}
}

// yielder does a slice of work per poll and wakes itself until slices
// run out.
func (w *workload) yielder(slices int) func(*waker) instrument.PollFunc {
	return func(handle *waker) instrument.PollFunc {
		remaining := slices
		return func(ctx context.Context) bool {
			spin(50 * time.Microsecond)
			remaining--
			if remaining == 0 {
				return true
			}
			handle.clone().wake(ctx)
			return false
		}
	}
}

// oneshot finishes on its first poll.
func (w *workload) oneshot() func(*waker) instrument.PollFunc {
	return func(*waker) instrument.PollFunc {
		return func(context.Context) bool {
			spin(time.Duration(rand.IntN(200)) * time.Microsecond)
			return true
		}
	}
}

// stuck drops its only waker and never completes.
func (w *workload) stuck() func(*waker) instrument.PollFunc {
	return func(handle *waker) instrument.PollFunc {
		return func(context.Context) bool {
			handle.clone().drop()
			return false
		}
	}
}

// blocking holds its worker for d inside a single poll.
func (w *workload) blocking(d time.Duration) func(*waker) instrument.PollFunc {
	return func(*waker) instrument.PollFunc {
		return func(context.Context) bool {
			w.clock.Sleep(d)
			return true
		}
	}
}

func spin(d time.Duration) {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
	}
}
