package download

import (
	"io"
	"time"
)

func (t *Task) start() bool {
	return t.transition(Active, nil)
}

func (t *Task) succeed() bool {
	return t.transition(Succeeded, nil)
}

func (t *Task) fail(err error) bool {
	return t.transition(Failed, err)
}

// transition moves the task into a new state if it is allowed from the current one.
// The new record is saved to the database before the handler is notified.
// Returns false if the transition is not allowed.
func (t *Task) transition(to State, err error) bool {
	t.m.Lock()
	defer t.m.Unlock()

	old := t.record.Load()
	if !canTransition(old.State, to) {
		t.log.Debugf("ignoring transition from %s to %s", old.State, to)
		return false
	}
	rec := *old
	rec.State = to
	if to.Terminal() {
		rec.CompletedAt = time.Now().UTC()
	}
	t.persist(rec)
	t.record.Store(&rec)
	t.manager.metrics.transition(old.State, to)

	if err != nil {
		t.log.Infof("%s -> %s: %s", old.State, to, err)
	} else {
		t.log.Infof("%s -> %s", old.State, to)
	}

	behavior := t.notify(rec, err)
	t.manager.handler.OnProgress(t.manager, t)

	if !to.Terminal() {
		return true
	}
	if to == Failed && behavior == BehaviorRetry && t.attempt < t.manager.config.MaxRetries {
		t.manager.retryTask(t, err)
		t.cancel()
		return true
	}
	t.finish(rec, to == Succeeded && behavior != BehaviorRemove)
	return true
}

// notify calls the Handler method that corresponds to the state of rec.
func (t *Task) notify(rec Record, err error) Behavior {
	m := t.manager
	switch rec.State {
	case Succeeded:
		f, oerr := m.storage.OpenRead(rec.Path)
		if oerr != nil {
			t.log.Errorln("cannot open downloaded file:", oerr)
			return m.handler.OnSuccess(m, t, errReader{&IOError{Op: "open", Path: rec.Path, Err: oerr}})
		}
		defer f.Close()
		return m.handler.OnSuccess(m, t, f)
	case Failed:
		return m.handler.OnFailed(m, t, err, StatusCode(err))
	case Cancelled:
		return m.handler.OnCancelled(m, t)
	}
	return BehaviorNone
}

// finish releases the resources of a task in terminal state.
// Every step is idempotent so an interrupted finish can be repeated on restore.
func (t *Task) finish(rec Record, publish bool) {
	m := t.manager
	err := m.db.Remove(rec.ID)
	if err != nil {
		t.log.Errorln("cannot remove task from database:", err)
	}
	if publish {
		err = m.storage.Publish(rec.Path)
		if err != nil {
			t.log.Errorln("cannot publish downloaded file:", err)
		}
	} else {
		err = m.storage.Delete(rec.Path)
		if err != nil {
			t.log.Errorln("cannot delete file:", err)
		}
	}
	m.finalizeTask(t)
	t.cancel()
}

// progress updates the write position of an active task.
// Calls for tasks that are not active are ignored.
func (t *Task) progress(pos int64) {
	t.m.Lock()
	defer t.m.Unlock()

	old := t.record.Load()
	if old.State != Active {
		return
	}
	if pos < 0 || pos > old.Length {
		t.log.Errorf("invalid position: %d (length: %d)", pos, old.Length)
		return
	}
	rec := *old
	rec.Position = pos
	t.persist(rec)
	t.record.Store(&rec)
	t.manager.handler.OnProgress(t.manager, t)
}

// persist saves rec to the database. Errors are logged, the task continues.
func (t *Task) persist(rec Record) {
	err := t.manager.db.AddOrUpdate(rec)
	if err != nil {
		t.log.Errorln("cannot save task to database:", err)
	}
}

type errReader struct {
	err error
}

func (r errReader) Read([]byte) (int, error) {
	return 0, r.err
}

var _ io.Reader = errReader{}
