package download

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"strconv"

	"github.com/cenkalti/fetch/internal/logger"
	"github.com/cenkalti/fetch/internal/urldownloader"
	"github.com/cenkalti/fetch/internal/workqueue"
)

var errFileTooLarge = errors.New("existing file is larger than the remote file")

// downloadWorker takes tasks from the queue of the Manager and downloads them one by one.
type downloadWorker struct {
	manager *Manager
	log     logger.Logger
}

func newDownloadWorker(m *Manager, i int) *downloadWorker {
	return &downloadWorker{
		manager: m,
		log:     logger.New("worker #" + strconv.Itoa(i)),
	}
}

// Run processes tasks until the queue is closed and drained or ctx is cancelled.
func (w *downloadWorker) Run(ctx context.Context) error {
	for {
		t, err := w.manager.queue.Pop(ctx)
		if errors.Is(err, workqueue.ErrClosed) {
			return nil
		}
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			// Leave the task in queued state. It is going to be resumed on next start.
			return ctx.Err()
		}
		w.process(t)
	}
}

func (w *downloadWorker) process(t *Task) {
	defer func() {
		if v := recover(); v != nil {
			w.log.Errorf("panic while downloading %s: %v\n%s", t.URL(), v, debug.Stack())
			t.fail(fmt.Errorf("panic: %v", v))
		}
	}()
	err := w.download(t)
	switch {
	case err == nil:
	case w.manager.ctx.Err() != nil:
		w.log.Infoln("download is interrupted by shutdown:", t.URL())
	case t.ctx.Err() != nil:
		// Cancelled by the user. The file may be created again after it is deleted by Cancel.
		if t.Record().State == Cancelled {
			derr := w.manager.storage.Delete(t.Record().Path)
			if derr != nil {
				w.log.Errorln("cannot delete file:", derr)
			}
		}
	default:
		t.fail(err)
	}
}

// download writes the remaining bytes of the task to its file and verifies the content.
func (w *downloadWorker) download(t *Task) error {
	if !t.start() {
		w.log.Debugln("skipping task that is not queued:", t.URL())
		return nil
	}
	m := w.manager
	rec := t.Record()
	w.log.Debugf("downloading %s into %s", rec.URL, rec.Path)

	f, err := m.storage.OpenWrite(rec.Path, !t.continueExisting)
	if err != nil {
		return &IOError{Op: "open", Path: rec.Path, Err: err}
	}
	closed := false
	defer func() {
		if !closed {
			_ = f.Close()
		}
	}()
	pos, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return &IOError{Op: "seek", Path: rec.Path, Err: err}
	}
	if pos > rec.Length {
		return &IOError{Op: "seek", Path: rec.Path, Err: errFileTooLarge}
	}
	t.progress(pos)

	for _, job := range urldownloader.CreateJobs(pos, rec.Length, m.config.ChunkSize) {
		n, err := m.downloader.Download(t.ctx, rec.URL, job, f)
		m.metrics.downloaded(n)
		if err != nil {
			return convertDownloadError(err, rec.Path)
		}
		if n != job.Length {
			return &ProtocolError{Expected: job.Length, Actual: n}
		}
		t.progress(job.End())
	}

	closed = true
	err = f.Close()
	if err != nil {
		return &IOError{Op: "close", Path: rec.Path, Err: err}
	}
	if len(rec.Hash) > 0 {
		err = w.verify(rec)
		if err != nil {
			return err
		}
	}
	t.succeed()
	return nil
}

func (w *downloadWorker) verify(rec Record) error {
	r, err := w.manager.storage.OpenRead(rec.Path)
	if err != nil {
		return &IOError{Op: "open", Path: rec.Path, Err: err}
	}
	defer r.Close()
	sum, err := w.manager.hasher.Sum(r)
	if err != nil {
		return &IOError{Op: "read", Path: rec.Path, Err: err}
	}
	if !bytes.Equal(sum, rec.Hash) {
		return &ValidationError{Expected: rec.Hash, Actual: sum}
	}
	return nil
}

func convertDownloadError(err error, path string) error {
	var werr *urldownloader.WriteError
	if errors.As(err, &werr) {
		return &IOError{Op: "write", Path: path, Err: werr.Err}
	}
	var serr *urldownloader.StatusError
	if errors.As(err, &serr) {
		return &NetworkError{StatusCode: serr.Code, Err: err}
	}
	return &NetworkError{Err: err}
}
