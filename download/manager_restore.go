package download

import (
	"errors"
	"time"

	"github.com/cenkalti/backoff/v3"
)

// Restore loads unfinished tasks from the database and queues them in creation order.
// Queued and active tasks continue from the end of their existing files.
// Records of completed tasks that are left from an interrupted shutdown are cleaned up
// without calling the Handler.
// NewManager calls Restore if Config.ResumeOnStartup is set.
func (m *Manager) Restore() error {
	records, err := m.db.EnumerateTasks()
	if err != nil {
		return err
	}
	var resumed, cleaned int
	for _, rec := range records {
		switch rec.State {
		case Queued, Active:
			ok, err := m.resume(rec)
			if err != nil {
				return err
			}
			if ok {
				resumed++
			}
		default:
			m.cleanup(rec)
			cleaned++
		}
	}
	m.log.Infof("restored %d tasks, cleaned %d completed tasks", resumed, cleaned)
	return nil
}

func (m *Manager) resume(rec Record) (bool, error) {
	rec.State = Queued
	rec.CompletedAt = time.Time{}

	m.m.Lock()
	if m.closed {
		m.m.Unlock()
		return false, ErrManagerClosed
	}
	if _, ok := m.tasks[rec.URL]; ok {
		m.m.Unlock()
		return false, nil
	}
	t := m.newTask(rec, true, 0)
	m.register(t)
	m.m.Unlock()

	t.persist(rec)
	err := m.queue.Push(t)
	if err != nil {
		m.finalizeTask(t)
		t.cancel()
		return false, err
	}
	t.log.Debugf("resuming %s from %d", rec.URL, rec.Position)
	return true, nil
}

// cleanup repeats the final steps of a task that has reached a terminal state before the process stopped.
func (m *Manager) cleanup(rec Record) {
	var err error
	if rec.State == Succeeded {
		err = m.storage.Publish(rec.Path)
	} else {
		err = m.storage.Delete(rec.Path)
	}
	if err != nil {
		m.log.Warningf("cannot clean up file of %s task %s: %s", rec.State, rec.ID.Short(), err)
	}
	err = m.db.Remove(rec.ID)
	if err != nil {
		m.log.Errorln("cannot remove task from database:", err)
	}
}

// retryTask replaces a failed task with a new one that continues from the existing file.
// If the existing file cannot be part of a valid download, it is deleted and the new task starts from zero.
// The new task is queued after a delay that grows with the number of attempts.
// Called with the lock of old held.
func (m *Manager) retryTask(old *Task, cause error) {
	rec := old.Record()
	rec.State = Queued
	rec.CompletedAt = time.Time{}
	continueExisting := true
	if needsRestart(cause) {
		err := m.storage.Delete(rec.Path)
		if err != nil {
			old.log.Warningln("cannot delete file before retry:", err)
		}
		rec.Position = 0
		continueExisting = false
	}
	t := m.newTask(rec, continueExisting, old.attempt+1)

	m.m.Lock()
	if m.closed || m.tasks[rec.URL] != old {
		m.m.Unlock()
		// Saved as queued so it is resumed on next start.
		t.persist(rec)
		t.cancel()
		return
	}
	m.register(t)
	m.m.Unlock()

	t.persist(rec)
	m.metrics.Retried.Inc(1)
	delay := m.retryDelay(t.attempt)
	t.log.Infof("retrying in %s (attempt %d of %d)", delay, t.attempt, m.config.MaxRetries)
	time.AfterFunc(delay, func() {
		err := m.queue.Push(t)
		if err != nil {
			t.log.Debugln("cannot queue task for retry:", err)
		}
	})
}

// needsRestart reports whether the bytes written before err are unusable for a retry.
func needsRestart(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr) || errors.Is(err, errFileTooLarge)
}

// retryDelay returns the delay before the nth retry.
func (m *Manager) retryDelay(attempt int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.config.RetryInitialInterval
	b.MaxInterval = m.config.RetryMaxInterval
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	var d time.Duration
	for i := 0; i < attempt; i++ {
		d = b.NextBackOff()
	}
	return d
}
