package download

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/cenkalti/fetch/internal/logger"
)

// Task is a single download managed by a Manager.
// Tasks are created with Manager.AddTask and removed from the Manager when they reach a terminal state.
type Task struct {
	manager *Manager

	// Serializes state changes. Readers use the atomic pointer.
	m      sync.Mutex
	record atomic.Pointer[Record]

	// Reopen the existing target file and append to it.
	continueExisting bool
	// Number of retries before this task. Zero for the first attempt.
	attempt int

	// Cancelled by Cancel, on terminal state or when the Manager is closed.
	ctx    context.Context
	cancel context.CancelFunc

	log logger.Logger
}

func (m *Manager) newTask(rec Record, continueExisting bool, attempt int) *Task {
	ctx, cancel := context.WithCancel(m.ctx)
	t := &Task{
		manager:          m,
		continueExisting: continueExisting,
		attempt:          attempt,
		ctx:              ctx,
		cancel:           cancel,
		log:              logger.New("task " + rec.ID.Short()),
	}
	t.record.Store(&rec)
	return t
}

// ID of the task. It is derived from the URL.
func (t *Task) ID() ID {
	return t.record.Load().ID
}

// URL of the remote file.
func (t *Task) URL() string {
	return t.record.Load().URL
}

// Record returns the latest snapshot of the task.
// It is safe to call from Handler methods.
func (t *Task) Record() Record {
	return *t.record.Load()
}

// Attempt returns the number of retries made before this task.
func (t *Task) Attempt() int {
	return t.attempt
}

// Cancel stops the task. The download in progress is aborted and the partial file is deleted.
// Does nothing if the task is already in a terminal state.
func (t *Task) Cancel() {
	if t.transition(Cancelled, nil) {
		t.cancel()
	}
}
