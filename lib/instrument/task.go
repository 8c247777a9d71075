// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package instrument

import (
	"context"

	"github.com/bureau-foundation/runscope/lib/event"
)

// PollFunc advances a task by one step and reports whether it has
// finished.
type PollFunc func(ctx context.Context) (done bool)

// Observe wraps poll so every call is recorded as one poll of task.
// When poll reports done the task is completed. A panicking poll still
// records its end and the task's completion before the panic resumes.
func (r *Recorder) Observe(task event.TaskID, poll PollFunc) PollFunc {
	if r == nil {
		return poll
	}
	return func(ctx context.Context) (done bool) {
		active := r.BeginPoll(ctx, task)
		defer func() {
			if recovered := recover(); recovered != nil {
				active.End()
				r.CompleteTask(task)
				panic(recovered)
			}
			active.End()
			if done {
				r.CompleteTask(task)
			}
		}()
		return poll(ctx)
	}
}
