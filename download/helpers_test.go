package download

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/fetch/internal/hashing"
	"github.com/rcrowley/go-metrics"
	"github.com/stretchr/testify/require"
)

func init() {
	// Meters share a goroutine that is started with the first meter and never stops.
	// Start it here so it is not reported by leak checks.
	metrics.NewMeter().Stop()
}

const timeout = 10 * time.Second

func testConfig(t *testing.T) Config {
	dir := t.TempDir()
	cfg := DefaultConfig
	cfg.Database = filepath.Join(dir, "resume.db")
	cfg.DataDir = filepath.Join(dir, "data")
	cfg.ChunkSize = 1024
	cfg.ResumeOnStartup = false
	cfg.RPCEnabled = false
	cfg.ChunkReadTimeout = timeout
	cfg.RetryInitialInterval = 10 * time.Millisecond
	cfg.RetryMaxInterval = 100 * time.Millisecond
	cfg.MetadataMaxElapsedTime = 0
	return cfg
}

func stagingPath(cfg Config, name string) string {
	return filepath.Join(cfg.DataDir, ".partial", name)
}

func dataPath(cfg Config, name string) string {
	return filepath.Join(cfg.DataDir, name)
}

func newTestManager(t *testing.T, cfg Config, opt Options) *Manager {
	if opt.Database == nil {
		opt.Database = newMemDatabase()
	}
	m, err := NewManager(cfg, opt)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

// memDatabase keeps records in memory.
type memDatabase struct {
	m       sync.Mutex
	records map[ID]Record
	writes  int
}

var _ Database = (*memDatabase)(nil)

func newMemDatabase(records ...Record) *memDatabase {
	d := &memDatabase{records: make(map[ID]Record)}
	for _, rec := range records {
		d.records[rec.ID] = rec
	}
	return d
}

func (d *memDatabase) EnumerateTasks() ([]Record, error) {
	d.m.Lock()
	defer d.m.Unlock()
	records := make([]Record, 0, len(d.records))
	for _, rec := range d.records {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].CreatedAt.Before(records[j].CreatedAt) })
	return records, nil
}

func (d *memDatabase) GetTask(id ID) (Record, bool, error) {
	d.m.Lock()
	defer d.m.Unlock()
	rec, ok := d.records[id]
	return rec, ok, nil
}

func (d *memDatabase) AddOrUpdate(rec Record) error {
	d.m.Lock()
	defer d.m.Unlock()
	d.records[rec.ID] = rec
	d.writes++
	return nil
}

func (d *memDatabase) Remove(id ID) error {
	d.m.Lock()
	defer d.m.Unlock()
	delete(d.records, id)
	return nil
}

func (d *memDatabase) Len() int {
	d.m.Lock()
	defer d.m.Unlock()
	return len(d.records)
}

type event struct {
	Task    *Task
	State   State
	Err     error
	Status  int
	Content []byte
}

// testHandler sends terminal events to a channel.
type testHandler struct {
	events   chan event
	success  Behavior
	failed   Behavior
	progress func(m *Manager, t *Task)
}

func newTestHandler() *testHandler {
	return &testHandler{events: make(chan event, 100)}
}

func (h *testHandler) OnSuccess(m *Manager, t *Task, r io.Reader) Behavior {
	b, err := io.ReadAll(r)
	h.events <- event{Task: t, State: Succeeded, Err: err, Content: b}
	return h.success
}

func (h *testHandler) OnFailed(m *Manager, t *Task, err error, statusCode int) Behavior {
	h.events <- event{Task: t, State: Failed, Err: err, Status: statusCode}
	return h.failed
}

func (h *testHandler) OnCancelled(m *Manager, t *Task) Behavior {
	h.events <- event{Task: t, State: Cancelled}
	return BehaviorNone
}

func (h *testHandler) OnProgress(m *Manager, t *Task) {
	if h.progress != nil {
		h.progress(m, t)
	}
}

func (h *testHandler) wait(t *testing.T) event {
	t.Helper()
	select {
	case e := <-h.events:
		return e
	case <-time.After(timeout):
		t.Fatal("timeout waiting for handler event")
		return event{}
	}
}

func (h *testHandler) requireNoEvent(t *testing.T) {
	t.Helper()
	select {
	case e := <-h.events:
		t.Fatalf("unexpected event: %s %v", e.State, e.Err)
	default:
	}
}

// fileServer serves files with support for range requests and logs the requested ranges.
type fileServer struct {
	*httptest.Server
	files map[string][]byte

	m      sync.Mutex
	ranges []string
}

func newFileServer(t *testing.T, files map[string][]byte) *fileServer {
	s := &fileServer{files: files}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, ok := s.files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if r.Method == http.MethodGet {
			s.m.Lock()
			s.ranges = append(s.ranges, r.Header.Get("Range"))
			s.m.Unlock()
		}
		http.ServeContent(w, r, r.URL.Path, time.Time{}, bytes.NewReader(b))
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *fileServer) Ranges() []string {
	s.m.Lock()
	defer s.m.Unlock()
	return append([]string(nil), s.ranges...)
}

// staticMetadata returns a provider that reports the length and hash of content and counts the calls.
func staticMetadata(content []byte, withHash bool, calls *atomic.Int32) MetadataProvider {
	return MetadataFunc(func(ctx context.Context, client *http.Client, url string) (int64, []byte, error) {
		if calls != nil {
			calls.Add(1)
		}
		var hash []byte
		if withHash {
			var err error
			hash, err = hashing.Default.Sum(bytes.NewReader(content))
			if err != nil {
				return 0, nil, err
			}
		}
		return int64(len(content)), hash, nil
	})
}

func testContent(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return b
}
