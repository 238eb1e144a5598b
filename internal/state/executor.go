package state

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Task is a unit of concurrent work. It should return once ctx is done.
type Task func(ctx context.Context) error

// Executor runs tasks on a shared pool of goroutines until it is cancelled.
// A failing task is logged and does not cancel the others.
type Executor struct {
	ctx     context.Context
	cancel  context.CancelFunc
	group   errgroup.Group
	workers int
}

// newExecutor creates an executor running at most workers tasks at once.
// A non-positive limit means no limit.
func newExecutor(workers int) *Executor {
	if workers <= 0 {
		workers = -1
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Executor{
		ctx:     ctx,
		cancel:  cancel,
		workers: workers,
	}
	e.group.SetLimit(workers)
	return e
}

// tryGo starts task unless all workers are busy.
func (e *Executor) tryGo(task Task) error {
	ok := e.group.TryGo(func() error {
		err := task(e.ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("task failed", "error", err)
			return err
		}
		return nil
	})
	if !ok {
		return ErrExecutorFull
	}
	return nil
}

// stop cancels the context shared by all tasks.
func (e *Executor) stop() {
	e.cancel()
}

// wait blocks until every started task has returned and reports the first
// task error.
func (e *Executor) wait() error {
	return e.group.Wait()
}
