// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/bureau-foundation/runscope/lib/event"
	"github.com/bureau-foundation/runscope/lib/instrument"
	"github.com/bureau-foundation/runscope/lib/taskctx"
)

// Job scheduling states. A wake that arrives while a job is running
// moves it to notified, and the worker requeues it after the poll.
const (
	jobIdle int32 = iota
	jobScheduled
	jobRunning
	jobNotified
	jobDone
)

// maxJobs bounds live jobs so the ready channel, which holds each job
// at most once, never blocks a waker.
const maxJobs = 1024

type job struct {
	id    event.TaskID
	name  string
	poll  instrument.PollFunc
	state atomic.Int32
}

// executor polls jobs cooperatively on a fixed set of worker
// goroutines. Each worker carries its own task context stack.
type executor struct {
	recorder *instrument.Recorder
	logger   *slog.Logger
	ready    chan *job
	live     atomic.Int64
	workers  sync.WaitGroup
}

func newExecutor(recorder *instrument.Recorder, logger *slog.Logger) *executor {
	return &executor{
		recorder: recorder,
		logger:   logger,
		ready:    make(chan *job, maxJobs),
	}
}

// start launches n workers. They exit when ctx is cancelled.
func (e *executor) start(ctx context.Context, n int) {
	for worker := range n {
		e.workers.Add(1)
		go func() {
			defer e.workers.Done()
			e.run(taskctx.WithStack(ctx, taskctx.NewStack()), worker)
		}()
	}
}

// wait blocks until every worker has exited.
func (e *executor) wait() { e.workers.Wait() }

// spawn registers a task and schedules its first poll. build receives
// the task's waker and returns the poll function. It reports false
// when the executor is at capacity.
func (e *executor) spawn(name string, build func(*waker) instrument.PollFunc, fields ...event.Field) bool {
	if e.live.Add(1) > maxJobs {
		e.live.Add(-1)
		return false
	}
	id := e.recorder.SpawnTask(name, fields...)
	j := &job{id: id, name: name}
	j.poll = e.recorder.Observe(id, build(&waker{executor: e, job: j}))
	e.schedule(j)
	return true
}

func (e *executor) schedule(j *job) {
	for {
		switch state := j.state.Load(); state {
		case jobIdle:
			if j.state.CompareAndSwap(jobIdle, jobScheduled) {
				e.ready <- j
				return
			}
		case jobRunning:
			if j.state.CompareAndSwap(jobRunning, jobNotified) {
				return
			}
		default:
			return
		}
	}
}

func (e *executor) run(ctx context.Context, worker int) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-e.ready:
			e.pollJob(ctx, worker, j)
		}
	}
}

func (e *executor) pollJob(ctx context.Context, worker int, j *job) {
	j.state.Store(jobRunning)
	done := e.safePoll(ctx, worker, j)
	if done {
		j.state.Store(jobDone)
		e.live.Add(-1)
		return
	}
	if !j.state.CompareAndSwap(jobRunning, jobIdle) {
		j.state.Store(jobScheduled)
		e.ready <- j
	}
}

// safePoll treats a panicking poll as a finished job. Observe has
// already recorded the poll end and completion.
func (e *executor) safePoll(ctx context.Context, worker int, j *job) (done bool) {
	defer func() {
		if recovered := recover(); recovered != nil {
			e.logger.Error("task panicked",
				"task_id", j.id,
				"task", j.name,
				"worker", worker,
				"panic", recovered,
			)
			done = true
		}
	}()
	return j.poll(ctx)
}

// waker reschedules one job. Every clone is matched by exactly one
// wake or drop.
type waker struct {
	executor *executor
	job      *job
}

func (w *waker) clone() *waker {
	w.executor.recorder.CloneWaker(w.job.id)
	return w
}

// wake consumes the handle. ctx identifies the waking task, if any.
func (w *waker) wake(ctx context.Context) {
	w.executor.recorder.Wake(ctx, w.job.id)
	w.executor.recorder.DropWaker(w.job.id)
	w.executor.schedule(w.job)
}

func (w *waker) drop() {
	w.executor.recorder.DropWaker(w.job.id)
}
