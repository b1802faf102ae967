package download

import (
	"context"
	"io"
	"net/http"

	"github.com/cenkalti/fetch/internal/storage"
)

// Behavior is returned from Handler callbacks to tell the Manager what to do after a task completes.
type Behavior int

const (
	// BehaviorNone publishes succeeded downloads and deletes the others.
	BehaviorNone Behavior = iota
	// BehaviorRemove deletes the downloaded file instead of publishing it. Only meaningful from OnSuccess.
	BehaviorRemove
	// BehaviorRetry starts the failed download again from where it left. Only meaningful from OnFailed.
	// Retries are limited by Config.MaxRetries.
	BehaviorRetry
)

// Handler receives lifecycle events of tasks.
// Methods are called while the task is locked so they must not call Cancel on the same task.
// Reading the task with Record is safe.
type Handler interface {
	// OnSuccess is called when a download completes. r reads the downloaded content and is closed after OnSuccess returns.
	OnSuccess(m *Manager, t *Task, r io.Reader) Behavior
	// OnFailed is called when a download fails. statusCode is the HTTP status code if the failure is caused by a server response.
	OnFailed(m *Manager, t *Task, err error, statusCode int) Behavior
	// OnCancelled is called when a download is cancelled.
	OnCancelled(m *Manager, t *Task) Behavior
	// OnProgress is called after every change in the record of a task.
	OnProgress(m *Manager, t *Task)
}

// NopHandler ignores all events.
type NopHandler struct{}

var _ Handler = NopHandler{}

func (NopHandler) OnSuccess(*Manager, *Task, io.Reader) Behavior { return BehaviorNone }
func (NopHandler) OnFailed(*Manager, *Task, error, int) Behavior { return BehaviorNone }
func (NopHandler) OnCancelled(*Manager, *Task) Behavior { return BehaviorNone }
func (NopHandler) OnProgress(*Manager, *Task) {}

// MetadataProvider learns the length and optional multihash of a remote file.
type MetadataProvider interface {
	GetMetadata(ctx context.Context, client *http.Client, url string) (length int64, hash []byte, err error)
}

// MetadataFunc is an adapter to allow the use of ordinary functions as MetadataProvider.
type MetadataFunc func(ctx context.Context, client *http.Client, url string) (int64, []byte, error)

// GetMetadata calls f(ctx, client, url).
func (f MetadataFunc) GetMetadata(ctx context.Context, client *http.Client, url string) (int64, []byte, error) {
	return f(ctx, client, url)
}

// HashProvider computes a digest of a byte stream.
// It is used both for deriving task IDs from URLs and validating downloaded content.
type HashProvider interface {
	Sum(r io.Reader) ([]byte, error)
}

// Storage reads and writes download targets.
type Storage = storage.Storage

// File is a download target opened for writing.
type File = storage.File

// Database persists records of tasks that are not completed yet.
type Database interface {
	// EnumerateTasks returns all records ordered by creation time.
	EnumerateTasks() ([]Record, error)
	// GetTask returns the record with id. ok is false if it is not found.
	GetTask(id ID) (rec Record, ok bool, err error)
	AddOrUpdate(rec Record) error
	Remove(id ID) error
}
