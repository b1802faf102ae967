package download

import "time"

// Config for Manager.
type Config struct {
	// Database file to save resume data.
	Database string `yaml:"database"`
	// DataDir is where completed files are moved into.
	DataDir string `yaml:"data-dir"`
	// Incomplete files are written here. Defaults to "DataDir/.partial" if empty.
	StagingDir string `yaml:"staging-dir"`
	// Number of bytes requested from the server in a single range request.
	ChunkSize int64 `yaml:"chunk-size"`
	// Number of downloads that can run concurrently.
	NumWorkers int `yaml:"num-workers"`
	// Resume queued and active downloads found in database when Manager is created.
	ResumeOnStartup bool `yaml:"resume-on-startup"`
	// If the server does not send any bytes for this duration, the chunk request is cancelled.
	ChunkReadTimeout time.Duration `yaml:"chunk-read-timeout"`
	// Time to wait for response headers after sending a request.
	HTTPResponseHeaderTimeout time.Duration `yaml:"http-response-header-timeout"`
	// User-Agent header sent in HTTP requests.
	HTTPUserAgent string `yaml:"http-user-agent"`
	// Download speed limit for all downloads in bytes per second. Zero means no limit.
	SpeedLimitDownload int64 `yaml:"speed-limit-download"`
	// Number of times a failed download is retried when the Handler asks for it.
	MaxRetries int `yaml:"max-retries"`
	// Delay before the first retry. Doubles on each retry until RetryMaxInterval.
	RetryInitialInterval time.Duration `yaml:"retry-initial-interval"`
	RetryMaxInterval     time.Duration `yaml:"retry-max-interval"`
	// Failed metadata requests are retried until this duration passes.
	MetadataMaxElapsedTime time.Duration `yaml:"metadata-max-elapsed-time"`

	// Enable RPC server
	RPCEnabled bool `yaml:"rpc-enabled"`
	// Host to listen for RPC server
	RPCHost string `yaml:"rpc-host"`
	// Listen port for RPC server
	RPCPort int `yaml:"rpc-port"`
	// Time to wait for ongoing requests before shutting down RPC HTTP server.
	RPCShutdownTimeout time.Duration `yaml:"rpc-shutdown-timeout"`
}

// DefaultConfig for Manager. Do not pass zero value Config to NewManager.
// Copy this struct and modify instead.
var DefaultConfig = Config{
	Database:                  "~/.fetch/resume.db",
	DataDir:                   "~/fetch-downloads",
	ChunkSize:                 1 << 20,
	NumWorkers:                4,
	ResumeOnStartup:           true,
	ChunkReadTimeout:          30 * time.Second,
	HTTPResponseHeaderTimeout: 30 * time.Second,
	HTTPUserAgent:             "fetch/" + Version,
	MaxRetries:                3,
	RetryInitialInterval:      time.Second,
	RetryMaxInterval:          time.Minute,
	MetadataMaxElapsedTime:    30 * time.Second,

	RPCEnabled:         true,
	RPCHost:            "127.0.0.1",
	RPCPort:            7247,
	RPCShutdownTimeout: 5 * time.Second,
}
