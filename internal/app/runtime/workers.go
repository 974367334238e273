package runtime

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

const maxConcurrentSpeak = 32

// workers runs speech jobs off the chat read loops and the socket intake.
// At most limit jobs run at once; Go blocks while all slots are taken.
type workers struct {
	ctx context.Context
	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

func newWorkers(ctx context.Context, limit int64) *workers {
	return &workers{ctx: ctx, sem: semaphore.NewWeighted(limit)}
}

// Go starts job with the workers' context. It reports false when the context
// ended before a slot freed up.
func (w *workers) Go(job func(ctx context.Context)) bool {
	if err := w.sem.Acquire(w.ctx, 1); err != nil {
		return false
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer w.sem.Release(1)
		job(w.ctx)
	}()
	return true
}

func (w *workers) Wait() { w.wg.Wait() }
