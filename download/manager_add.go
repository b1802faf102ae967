package download

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"

	"github.com/cenkalti/fetch/internal/workqueue"
)

// AddTask starts downloading the file at rawURL into path in Storage.
// If there is already an unfinished task for rawURL, it is returned and no new download is started.
// Concurrent calls for the same URL share a single metadata request. The task of a merged call is created
// with the path, provider and continueExisting of the call that started the request.
// Cancelling ctx makes AddTask return ctx.Err() but does not stop a request that is shared with other calls,
// so the task may still be added.
// provider is used to learn the length and hash of the file. If it is nil, the default provider of the Manager is used.
// If continueExisting is true, the download continues from the end of an existing file instead of truncating it.
//
// AddTask returns after the task is queued. The result of the download is reported to the Handler.
func (m *Manager) AddTask(ctx context.Context, rawURL, path string, provider MetadataProvider, continueExisting bool) (*Task, error) {
	t, err := m.lookup(rawURL)
	if t != nil || err != nil {
		return t, err
	}
	if path == "" {
		path, err = fileNameFromURL(rawURL)
		if err != nil {
			return nil, err
		}
	}
	if provider == nil {
		provider = m.metadata
	}
	// Merged calls share the request, so it is not cancelled with ctx.
	addCtx := context.WithoutCancel(ctx)
	resultC := m.adding.DoChan(rawURL, func() (any, error) {
		return m.add(addCtx, rawURL, path, provider, continueExisting)
	})
	select {
	case res := <-resultC:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			m.log.Debugln("duplicate request is merged:", rawURL)
		}
		return res.Val.(*Task), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Manager) lookup(rawURL string) (*Task, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.closed {
		return nil, ErrManagerClosed
	}
	return m.tasks[rawURL], nil
}

func (m *Manager) add(ctx context.Context, rawURL, path string, provider MetadataProvider, continueExisting bool) (*Task, error) {
	// A previous request for the same URL may have added the task after the lookup in AddTask.
	if t, err := m.lookup(rawURL); t != nil || err != nil {
		return t, err
	}
	length, hash, err := provider.GetMetadata(ctx, m.client, rawURL)
	if err != nil {
		return nil, fmt.Errorf("cannot get metadata: %w", err)
	}
	if length < 0 {
		return nil, fmt.Errorf("invalid length: %d", length)
	}
	id, err := m.ID(rawURL)
	if err != nil {
		return nil, err
	}

	m.m.Lock()
	if m.closed {
		m.m.Unlock()
		return nil, ErrManagerClosed
	}
	// Another request for the same URL may be completed while waiting for metadata.
	if t, ok := m.tasks[rawURL]; ok {
		m.m.Unlock()
		return t, nil
	}
	t := m.newTask(newRecord(id, rawURL, path, length, hash), continueExisting, 0)
	m.register(t)
	m.m.Unlock()

	rec := t.Record()
	err = m.db.AddOrUpdate(rec)
	if err != nil {
		m.finalizeTask(t)
		t.cancel()
		return nil, err
	}
	err = m.queue.Push(t)
	if errors.Is(err, workqueue.ErrClosed) {
		// Record stays in database as queued and resumed on next start.
		m.finalizeTask(t)
		t.cancel()
		return nil, ErrManagerClosed
	}
	if err != nil {
		return nil, err
	}
	t.log.Infof("added %s (%d bytes)", rawURL, length)
	return t, nil
}

func fileNameFromURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" {
		return "", fmt.Errorf("cannot get file name from url: %s", rawURL)
	}
	return name, nil
}
