package download

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/cenkalti/fetch/internal/hashing"
)

// ErrManagerClosed is returned from Manager.AddTask after Manager is closed.
var ErrManagerClosed = errors.New("manager is closed")

// NetworkError is returned when a range request fails or the server responds with an unexpected status.
type NetworkError struct {
	// HTTP status code of the response. Zero if no response is received.
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return "network error (status " + strconv.Itoa(e.StatusCode) + "): " + e.Err.Error()
	}
	return "network error: " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IOError is returned when reading from or writing to the storage fails.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return "io error: " + e.Op + " " + e.Path + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *IOError) Unwrap() error {
	return e.Err
}

// ValidationError is returned when the hash of a downloaded file does not match the expected hash.
type ValidationError struct {
	Expected []byte
	Actual   []byte
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("hash mismatch: expected %s, got %s", hashing.String(e.Expected), hashing.String(e.Actual))
}

// ProtocolError is returned when the server sends a different number of bytes than requested.
type ProtocolError struct {
	Expected int64
	Actual   int64
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("range not satisfiable: requested %d bytes, got %d", e.Expected, e.Actual)
}

// StatusCode returns the HTTP status code carried by err. Returns zero if there is none.
func StatusCode(err error) int {
	var nerr *NetworkError
	if errors.As(err, &nerr) {
		return nerr.StatusCode
	}
	return 0
}
