package client

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/pnnl/chgl/model"
)

// executor runs deferred receives on a bounded number of goroutines.
type executor struct {
	ctx context.Context
	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

func newExecutor(ctx context.Context, workers int) *executor {
	return &executor{
		ctx: ctx,
		sem: semaphore.NewWeighted(int64(workers)),
	}
}

// submit schedules the task.
// The task receives a non-nil error instead of running its job if the executor is shut down first.
func (e *executor) submit(task func(err error)) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		if err := e.sem.Acquire(e.ctx, 1); err != nil {
			task(model.MarkAs(err, model.ErrClosed, "executor"))
			return
		}
		defer e.sem.Release(1)

		task(nil)
	}()
}

// wait blocks until every submitted task has returned.
func (e *executor) wait() {
	e.wg.Wait()
}
