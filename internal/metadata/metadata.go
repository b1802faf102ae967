// Package metadata learns the length and checksum of a remote file before it is downloaded.
package metadata

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v3"
	"github.com/cenkalti/fetch/internal/hashing"
	"github.com/cenkalti/fetch/internal/logger"
	"github.com/multiformats/go-multihash"
)

// ErrUnknownLength is returned when the server does not report the content length.
var ErrUnknownLength = errors.New("server did not send content length")

// StatusError is returned when the server responds to HEAD request with an unexpected status code.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("metadata request failed with status code: %d", e.Code)
}

// Provider sends a HEAD request to learn the length and the SHA-256 digest of a file.
// The digest is read from "Digest" header (RFC 3230). Failed requests are retried with exponential backoff.
type Provider struct {
	UserAgent string
	// Give up retrying after this duration. Zero means no retry.
	MaxElapsedTime time.Duration

	log logger.Logger
}

// New returns a new Provider.
func New(userAgent string, maxElapsedTime time.Duration) *Provider {
	return &Provider{
		UserAgent:      userAgent,
		MaxElapsedTime: maxElapsedTime,
		log:            logger.New("metadata"),
	}
}

// GetMetadata returns the length of the file at url and its multihash if the server advertises one.
func (p *Provider) GetMetadata(ctx context.Context, client *http.Client, url string) (length int64, hash []byte, err error) {
	operation := func() error {
		var err2 error
		length, hash, err2 = p.head(ctx, client, url)
		var serr *StatusError
		if errors.As(err2, &serr) && serr.Code < 500 {
			return backoff.Permanent(err2)
		}
		if errors.Is(err2, ErrUnknownLength) {
			return backoff.Permanent(err2)
		}
		return err2
	}
	var b backoff.BackOff = &backoff.StopBackOff{}
	if p.MaxElapsedTime > 0 {
		eb := backoff.NewExponentialBackOff()
		eb.MaxElapsedTime = p.MaxElapsedTime
		b = eb
	}
	notify := func(err error, d time.Duration) {
		if p.log != nil {
			p.log.Debugf("cannot get metadata of %s: %s, retrying in %s", url, err, d)
		}
	}
	err = backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notify)
	return
}

func (p *Provider) head(ctx context.Context, client *http.Client, url string) (int64, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, nil, backoff.Permanent(err)
	}
	if p.UserAgent != "" {
		req.Header.Set("User-Agent", p.UserAgent)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, nil, &StatusError{Code: resp.StatusCode}
	}
	if resp.ContentLength < 0 {
		return 0, nil, ErrUnknownLength
	}
	hash, err := ParseDigest(resp.Header.Values("Digest"))
	if err != nil {
		return 0, nil, backoff.Permanent(err)
	}
	return resp.ContentLength, hash, nil
}

// ParseDigest finds the SHA-256 instance digest in Digest header values and returns it as a multihash.
// Returns nil if there is no SHA-256 digest.
func ParseDigest(values []string) ([]byte, error) {
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			algo, value, ok := strings.Cut(strings.TrimSpace(part), "=")
			if !ok || !strings.EqualFold(algo, "sha-256") {
				continue
			}
			digest, err := base64.StdEncoding.DecodeString(value)
			if err != nil {
				return nil, fmt.Errorf("invalid sha-256 digest: %w", err)
			}
			return hashing.FromDigest(digest, multihash.SHA2_256)
		}
	}
	return nil, nil
}
