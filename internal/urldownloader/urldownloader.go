// Package urldownloader downloads byte ranges of a file from a HTTP source.
package urldownloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/juju/ratelimit"
)

// ErrReadTimeout is returned when the server does not send any bytes for the configured duration.
var ErrReadTimeout = errors.New("read timeout")

// StatusError is returned when the server responds with an unexpected status code.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return "unexpected status code: " + strconv.Itoa(e.Code)
}

// RangeError is returned when the server responds with a different range than requested.
type RangeError struct {
	Requested string
	Received  string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("requested range %q, got %q", e.Requested, e.Received)
}

// WriteError wraps an error returned from the destination writer.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string {
	return "write error: " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *WriteError) Unwrap() error {
	return e.Err
}

// URLDownloader downloads jobs from a HTTP source.
type URLDownloader struct {
	Client      *http.Client
	UserAgent   string
	ReadTimeout time.Duration
	// Optional bucket shared between downloaders for limiting total download speed.
	Bucket *ratelimit.Bucket
}

// Download the bytes of job from url and copy them into w.
// Returns the number of bytes written. A short response is not an error;
// caller must compare the returned count with the job length.
func (d *URLDownloader) Download(ctx context.Context, url string, job Job, w io.Writer) (int64, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	rng := fmt.Sprintf("bytes=%d-%d", job.Begin, job.End()-1)
	req.Header.Set("Range", rng)
	if d.UserAgent != "" {
		req.Header.Set("User-Agent", d.UserAgent)
	}
	resp, err := d.Client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	err = checkResponse(resp, job, rng)
	if err != nil {
		return 0, err
	}

	var body io.Reader = resp.Body
	if d.Bucket != nil {
		body = ratelimit.Reader(body, d.Bucket)
	}
	var timedOut atomic.Bool
	if d.ReadTimeout > 0 {
		timer := time.AfterFunc(d.ReadTimeout, func() {
			timedOut.Store(true)
			cancel()
		})
		defer timer.Stop()
		body = &timeoutReader{r: body, t: timer, d: d.ReadTimeout}
	}

	n, err := io.CopyN(&errWriter{w: w}, body, job.Length)
	if err == io.EOF {
		// Short response. Let the caller decide.
		return n, nil
	}
	if timedOut.Load() && !errors.As(err, new(*WriteError)) {
		return n, ErrReadTimeout
	}
	return n, err
}

func checkResponse(resp *http.Response, job Job, rng string) error {
	switch resp.StatusCode {
	case http.StatusPartialContent:
		cr := resp.Header.Get("Content-Range")
		if cr == "" {
			return nil
		}
		expected := fmt.Sprintf("bytes %d-%d/", job.Begin, job.End()-1)
		if !strings.HasPrefix(cr, expected) {
			return &RangeError{Requested: rng, Received: cr}
		}
		return nil
	case http.StatusOK:
		// Server ignored the Range header. Acceptable only if the whole body is the requested range.
		if job.Begin == 0 && resp.ContentLength == job.Length {
			return nil
		}
		return &RangeError{Requested: rng, Received: "whole content"}
	default:
		return &StatusError{Code: resp.StatusCode}
	}
}

// timeoutReader resets the read timer on each read.
type timeoutReader struct {
	r io.Reader
	t *time.Timer
	d time.Duration
}

func (r *timeoutReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	r.t.Reset(r.d)
	return n, err
}

type errWriter struct {
	w io.Writer
}

func (w *errWriter) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	if err != nil {
		return n, &WriteError{Err: err}
	}
	return n, nil
}
