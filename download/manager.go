// Package download provides a resumable downloader that fetches files over HTTP in byte ranges
// using a fixed number of workers.
package download

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/fetch/internal/hashing"
	"github.com/cenkalti/fetch/internal/logger"
	"github.com/cenkalti/fetch/internal/metadata"
	"github.com/cenkalti/fetch/internal/storage/filestorage"
	"github.com/cenkalti/fetch/internal/urldownloader"
	"github.com/cenkalti/fetch/internal/worker"
	"github.com/cenkalti/fetch/internal/workqueue"
	"github.com/juju/ratelimit"
	"github.com/mitchellh/go-homedir"
	"golang.org/x/sync/singleflight"
)

// Options contains the collaborators of a Manager.
// Nil fields are replaced with the defaults built from Config.
type Options struct {
	// Defaults to a Bolt database at Config.Database.
	Database Database
	// Defaults to files in Config.StagingDir that are moved into Config.DataDir when completed.
	Storage Storage
	// Defaults to NopHandler.
	Handler Handler
	// Used when nil provider is passed to AddTask. Defaults to a HEAD request.
	Metadata MetadataProvider
	// Defaults to SHA2-256 multihash.
	Hasher HashProvider
	// Defaults to a client with Config.HTTPResponseHeaderTimeout.
	HTTPClient *http.Client
}

// Manager downloads files with a fixed number of workers and keeps track of unfinished downloads.
type Manager struct {
	config     Config
	db         Database
	closeDB    func() error
	storage    Storage
	handler    Handler
	metadata   MetadataProvider
	hasher     HashProvider
	client     *http.Client
	downloader *urldownloader.URLDownloader
	queue      *workqueue.Queue[*Task]
	workers    worker.Workers
	adding     singleflight.Group
	metrics    *managerMetrics
	rpc        *rpcServer
	log        logger.Logger
	createdAt  time.Time

	// Shared by all tasks. Cancelled on Close.
	ctx    context.Context
	cancel context.CancelFunc

	m         sync.RWMutex
	tasks     map[string]*Task
	tasksByID map[ID]*Task
	closed    bool
}

// NewManager returns a new Manager and starts its workers.
// Unfinished downloads in the database are resumed if Config.ResumeOnStartup is set.
func NewManager(cfg Config, opt Options) (*Manager, error) {
	if cfg.ChunkSize <= 0 {
		return nil, errors.New("chunk size must be positive")
	}
	if cfg.NumWorkers <= 0 {
		return nil, errors.New("number of workers must be positive")
	}
	var err error
	cfg.Database, err = homedir.Expand(cfg.Database)
	if err != nil {
		return nil, err
	}
	cfg.DataDir, err = homedir.Expand(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	cfg.StagingDir, err = homedir.Expand(cfg.StagingDir)
	if err != nil {
		return nil, err
	}
	l := logger.New("manager")

	var closeDB func() error
	if opt.Database == nil {
		db, err := openBoltDatabase(cfg.Database)
		if err != nil {
			return nil, err
		}
		opt.Database = db
		closeDB = db.Close
	}
	defer func() {
		if err != nil && closeDB != nil {
			_ = closeDB()
		}
	}()
	if opt.Storage == nil {
		err = os.MkdirAll(cfg.DataDir, 0750)
		if err != nil {
			return nil, err
		}
		var sto *filestorage.FileStorage
		sto, err = filestorage.New(cfg.DataDir, cfg.StagingDir)
		if err != nil {
			return nil, err
		}
		opt.Storage = sto
	}
	if opt.Handler == nil {
		opt.Handler = NopHandler{}
	}
	if opt.Metadata == nil {
		opt.Metadata = metadata.New(cfg.HTTPUserAgent, cfg.MetadataMaxElapsedTime)
	}
	if opt.Hasher == nil {
		opt.Hasher = hashing.Default
	}
	if opt.HTTPClient == nil {
		opt.HTTPClient = &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				ResponseHeaderTimeout: cfg.HTTPResponseHeaderTimeout,
				MaxIdleConnsPerHost:   cfg.NumWorkers,
				IdleConnTimeout:       90 * time.Second,
			},
		}
	}
	var bucket *ratelimit.Bucket
	if cfg.SpeedLimitDownload > 0 {
		bucket = ratelimit.NewBucketWithRate(float64(cfg.SpeedLimitDownload), cfg.SpeedLimitDownload)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		config:   cfg,
		db:       opt.Database,
		closeDB:  closeDB,
		storage:  opt.Storage,
		handler:  opt.Handler,
		metadata: opt.Metadata,
		hasher:   opt.Hasher,
		client:   opt.HTTPClient,
		downloader: &urldownloader.URLDownloader{
			Client:      opt.HTTPClient,
			UserAgent:   cfg.HTTPUserAgent,
			ReadTimeout: cfg.ChunkReadTimeout,
			Bucket:      bucket,
		},
		queue:     workqueue.New[*Task](),
		log:       l,
		createdAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
		tasks:     make(map[string]*Task),
		tasksByID: make(map[ID]*Task),
	}
	m.initMetrics()
	if cfg.ResumeOnStartup {
		err = m.Restore()
		if err != nil {
			cancel()
			m.metrics.Close()
			return nil, err
		}
	}
	if cfg.RPCEnabled {
		m.rpc = newRPCServer(m)
		err = m.rpc.Start(cfg.RPCHost, cfg.RPCPort)
		if err != nil {
			cancel()
			m.metrics.Close()
			return nil, err
		}
	}
	for i := 0; i < cfg.NumWorkers; i++ {
		m.workers.Start(m.ctx, newDownloadWorker(m, i))
	}
	return m, nil
}

// ID returns the identity of the task that downloads url.
func (m *Manager) ID(url string) (ID, error) {
	return newID(m.hasher, url)
}

// ListTasks returns the unfinished tasks sorted by creation time.
func (m *Manager) ListTasks() []*Task {
	m.m.RLock()
	tasks := make([]*Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		tasks = append(tasks, t)
	}
	m.m.RUnlock()
	sort.Slice(tasks, func(i, j int) bool {
		a, b := tasks[i].Record(), tasks[j].Record()
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID < b.ID
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return tasks
}

// GetTask returns the unfinished task with id. Returns nil if there is no such task.
func (m *Manager) GetTask(id ID) *Task {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.tasksByID[id]
}

// Storage returns the storage that downloaded files are written into.
func (m *Manager) Storage() Storage {
	return m.storage
}

// register adds t to the live task maps. Must be called with m.m locked.
func (m *Manager) register(t *Task) {
	rec := t.Record()
	m.tasks[rec.URL] = t
	m.tasksByID[rec.ID] = t
}

// finalizeTask removes a task in terminal state from the Manager.
// Returns false if t is not registered, so repeated calls have no effect.
func (m *Manager) finalizeTask(t *Task) bool {
	rec := t.Record()
	m.m.Lock()
	defer m.m.Unlock()
	if m.tasks[rec.URL] != t {
		return false
	}
	delete(m.tasks, rec.URL)
	delete(m.tasksByID, rec.ID)
	return true
}
