// Package storage contains the interface for reading and writing downloaded artifacts.
package storage

import "io"

// Storage is an interface for reading/writing download targets.
// Paths are relative to the root of the storage.
type Storage interface {
	// OpenRead opens the artifact at path for reading.
	// The artifact may be incomplete or already published.
	OpenRead(path string) (io.ReadCloser, error)
	// OpenWrite opens the artifact at path for writing.
	// Existing content is truncated if overwrite is true, kept otherwise.
	OpenWrite(path string, overwrite bool) (File, error)
	// Publish promotes a completed artifact to its final visible location.
	Publish(path string) error
	// Delete removes the artifact at path. Missing artifacts are not an error.
	Delete(path string) error
}

// File is a writable artifact. Seek to end returns the length of existing content.
type File interface {
	io.Writer
	io.Seeker
	io.Closer
}
