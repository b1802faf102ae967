// Package worker runs long-running loops and waits for them to finish.
package worker

import (
	"context"
	"errors"
	"sync"
)

// Worker is a loop that runs until its context is cancelled or it has nothing more to do.
type Worker interface {
	// Run is a blocking method that usually contains a for/select loop.
	Run(ctx context.Context) error
}

// Workers is a group of running workers. Zero value is ready to use.
type Workers struct {
	wg   sync.WaitGroup
	m    sync.Mutex
	errs []error
}

// StartWithOnFinishHandler runs r in a new goroutine and calls onFinish with its result after it returns.
func (w *Workers) StartWithOnFinishHandler(ctx context.Context, r Worker, onFinish func(error)) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		err := r.Run(ctx)
		if onFinish != nil {
			onFinish(err)
		}
		if err != nil {
			w.m.Lock()
			w.errs = append(w.errs, err)
			w.m.Unlock()
		}
	}()
}

// Start runs r in a new goroutine.
func (w *Workers) Start(ctx context.Context, r Worker) {
	w.StartWithOnFinishHandler(ctx, r, nil)
}

// Wait blocks until all workers return and returns their errors joined.
func (w *Workers) Wait() error {
	w.wg.Wait()
	w.m.Lock()
	defer w.m.Unlock()
	return errors.Join(w.errs...)
}
