package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/cenkalti/fetch/download"
	"github.com/cenkalti/fetch/internal/jsonutil"
	"github.com/cenkalti/fetch/internal/logger"
	"github.com/cenkalti/fetch/rpcclient"
	"github.com/cenkalti/log"
	"github.com/urfave/cli"
)

var (
	app = cli.NewApp()
	clt *rpcclient.Client
	cfg *download.Config
)

func main() {
	app.Version = download.Version
	app.Usage = "Resumable HTTP downloader"
	app.EnableBashCompletion = true
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "read config from `FILE`",
			Value: defaultConfig,
		},
		cli.StringFlag{
			Name:  "log-level",
			Usage: "one of debug, info, warning, error",
			Value: "info",
		},
		cli.BoolFlag{
			Name:  "debug, d",
			Usage: "enable debug log",
		},
	}
	app.Before = handleBeforeCommand
	app.Commands = []cli.Command{
		{
			Name:   "server",
			Usage:  "run download server in foreground",
			Action: handleServer,
		},
		{
			Name:      "download",
			Usage:     "download a single file and exit",
			ArgsUsage: "URL [PATH]",
			Flags: []cli.Flag{
				cli.BoolFlag{
					Name:  "continue",
					Usage: "continue from the end of existing file",
				},
			},
			Action: handleDownload,
		},
		{
			Name:  "client",
			Usage: "send commands to a running server",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "url",
					Usage: "URL of RPC server",
					Value: "http://127.0.0.1:" + fmt.Sprint(download.DefaultConfig.RPCPort),
				},
				cli.DurationFlag{
					Name:  "timeout",
					Usage: "request timeout",
					Value: 10 * time.Second,
				},
			},
			Before: handleBeforeClient,
			After:  handleAfterClient,
			Subcommands: []cli.Command{
				{
					Name:   "version",
					Usage:  "print server version",
					Action: handleVersion,
				},
				{
					Name:      "add",
					Usage:     "add a download",
					ArgsUsage: "URL [PATH]",
					Flags: []cli.Flag{
						cli.BoolFlag{
							Name:  "continue",
							Usage: "continue from the end of existing file",
						},
					},
					Action: handleAdd,
				},
				{
					Name:   "list",
					Usage:  "list unfinished downloads",
					Action: handleList,
				},
				{
					Name:      "get",
					Usage:     "show a download",
					ArgsUsage: "ID",
					Action:    handleGet,
				},
				{
					Name:      "cancel",
					Usage:     "cancel a download",
					ArgsUsage: "ID",
					Action:    handleCancel,
				},
				{
					Name:   "stats",
					Usage:  "show server statistics",
					Action: handleStats,
				},
			},
		},
	}
	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func handleBeforeCommand(c *cli.Context) error {
	level, err := logger.ParseLevel(c.String("log-level"))
	if err != nil {
		return err
	}
	if c.Bool("debug") {
		level = log.DEBUG
	}
	logger.SetLevel(level)
	cfg, err = LoadConfig(c.String("config"))
	return err
}

func handleServer(c *cli.Context) error {
	m, err := download.NewManager(*cfg, download.Options{})
	if err != nil {
		return err
	}
	waitSignal()
	return m.Close()
}

func handleDownload(c *cli.Context) error {
	rawURL := c.Args().Get(0)
	if rawURL == "" {
		return cli.NewExitError("URL is required", 1)
	}
	dcfg := *cfg
	dcfg.RPCEnabled = false
	dcfg.NumWorkers = 1
	dcfg.ResumeOnStartup = false
	if path := c.Args().Get(1); path != "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		dcfg.DataDir = filepath.Dir(abs)
	}
	h := newWaitHandler(dcfg.MaxRetries)
	m, err := download.NewManager(dcfg, download.Options{Handler: h})
	if err != nil {
		return err
	}
	name := c.Args().Get(1)
	if name != "" {
		name = filepath.Base(name)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		waitSignal()
		cancel()
		h.interrupt()
	}()
	_, err = m.AddTask(ctx, rawURL, name, nil, c.Bool("continue"))
	if err != nil {
		_ = m.Close()
		return err
	}
	err = <-h.done
	cerr := m.Close()
	if err != nil {
		return err
	}
	return cerr
}

var errInterrupted = errors.New("interrupted")

// waitHandler reports the final result of a single download.
type waitHandler struct {
	download.NopHandler
	maxRetries   int
	done         chan error
	lastProgress atomic.Int64
	log          logger.Logger
}

func newWaitHandler(maxRetries int) *waitHandler {
	return &waitHandler{
		maxRetries: maxRetries,
		done:       make(chan error, 1),
		log:        logger.New("download"),
	}
}

func (h *waitHandler) finish(err error) {
	select {
	case h.done <- err:
	default:
	}
}

func (h *waitHandler) interrupt() {
	h.finish(errInterrupted)
}

func (h *waitHandler) OnSuccess(m *download.Manager, t *download.Task, r io.Reader) download.Behavior {
	h.log.Infoln("downloaded", t.URL())
	h.finish(nil)
	return download.BehaviorNone
}

func (h *waitHandler) OnFailed(m *download.Manager, t *download.Task, err error, statusCode int) download.Behavior {
	if t.Attempt() < h.maxRetries {
		return download.BehaviorRetry
	}
	h.finish(err)
	return download.BehaviorNone
}

func (h *waitHandler) OnCancelled(m *download.Manager, t *download.Task) download.Behavior {
	h.finish(errors.New("cancelled"))
	return download.BehaviorNone
}

func (h *waitHandler) OnProgress(m *download.Manager, t *download.Task) {
	now := time.Now().UnixNano()
	last := h.lastProgress.Load()
	if now-last < int64(time.Second) || !h.lastProgress.CompareAndSwap(last, now) {
		return
	}
	rec := t.Record()
	if rec.Length == 0 {
		return
	}
	h.log.Infof("%s %d/%d bytes (%d%%), %d KiB/s",
		rec.State, rec.Position, rec.Length, rec.Position*100/rec.Length, m.Stats().SpeedDownload/1024)
}

func waitSignal() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch
	signal.Stop(ch)
}

func handleBeforeClient(c *cli.Context) error {
	clt = rpcclient.NewWithHTTPClient(c.String("url"), &http.Client{Timeout: c.Duration("timeout")})
	return nil
}

func handleAfterClient(c *cli.Context) error {
	if clt == nil {
		return nil
	}
	return clt.Close()
}

func handleVersion(c *cli.Context) error {
	version, err := clt.ServerVersion()
	if err != nil {
		return err
	}
	_, _ = os.Stdout.WriteString(version + "\n")
	return nil
}

func handleAdd(c *cli.Context) error {
	rawURL := c.Args().Get(0)
	if rawURL == "" {
		return cli.NewExitError("URL is required", 1)
	}
	t, err := clt.AddTask(rawURL, c.Args().Get(1), c.Bool("continue"))
	if err != nil {
		return err
	}
	return printStruct(t)
}

func handleList(c *cli.Context) error {
	tasks, err := clt.ListTasks()
	if err != nil {
		return err
	}
	b, err := jsonutil.MarshalCompactPrettyList(tasks)
	if err != nil {
		return err
	}
	_, _ = os.Stdout.Write(b)
	return nil
}

func handleGet(c *cli.Context) error {
	t, err := clt.GetTask(c.Args().Get(0))
	if err != nil {
		return err
	}
	return printStruct(t)
}

func handleCancel(c *cli.Context) error {
	return clt.CancelTask(c.Args().Get(0))
}

func handleStats(c *cli.Context) error {
	s, err := clt.GetStats()
	if err != nil {
		return err
	}
	return printStruct(s)
}

func printStruct(v any) error {
	b, err := jsonutil.MarshalCompactPretty(v)
	if err != nil {
		return err
	}
	_, _ = os.Stdout.Write(b)
	return nil
}
