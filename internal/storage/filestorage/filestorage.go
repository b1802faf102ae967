// Package filestorage implements Storage interface that uses files on disk as storage.
//
// Artifacts are written under a staging directory and moved into the data directory when published.
package filestorage

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"github.com/cenkalti/fetch/internal/storage"
	"github.com/otiai10/copy"
)

// FileStorage keeps incomplete artifacts in a staging directory and published ones in a data directory.
type FileStorage struct {
	dest    string
	staging string
}

var _ storage.Storage = (*FileStorage)(nil)

// New returns a FileStorage that publishes into dest.
// Incomplete artifacts are kept under staging. If staging is empty, "dest/.partial" is used.
func New(dest, staging string) (*FileStorage, error) {
	var err error
	dest, err = filepath.Abs(dest)
	if err != nil {
		return nil, err
	}
	if staging == "" {
		staging = filepath.Join(dest, ".partial")
	}
	staging, err = filepath.Abs(staging)
	if err != nil {
		return nil, err
	}
	return &FileStorage{dest: dest, staging: staging}, nil
}

// Dest returns the directory that published artifacts are moved into.
func (s *FileStorage) Dest() string {
	return s.dest
}

// Staging returns the directory that incomplete artifacts are written into.
func (s *FileStorage) Staging() string {
	return s.staging
}

// All files are saved under root. Leading ".." elements are dropped by cleaning the path as absolute.
func join(root, name string) string {
	return filepath.Join(root, filepath.Clean(string(filepath.Separator)+name))
}

func (s *FileStorage) OpenRead(name string) (io.ReadCloser, error) {
	f, err := os.Open(join(s.staging, name))
	if os.IsNotExist(err) {
		f, err = os.Open(join(s.dest, name))
	}
	if err != nil {
		return nil, err
	}
	_ = adviseSequential(f)
	return f, nil
}

func (s *FileStorage) OpenWrite(name string, overwrite bool) (storage.File, error) {
	name = join(s.staging, name)

	// Create containing dir if not exists.
	err := os.MkdirAll(filepath.Dir(name), os.ModeDir|0750)
	if err != nil {
		return nil, err
	}

	flags := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	}
	const mode = 0640
	of, err := os.OpenFile(name, flags, mode) // nolint: gosec
	if err != nil {
		return nil, err
	}
	return &File{File: of}, nil
}

func (s *FileStorage) Publish(name string) error {
	src := join(s.staging, name)
	dst := join(s.dest, name)
	_, err := os.Stat(src)
	if os.IsNotExist(err) {
		// Already published.
		if _, err2 := os.Stat(dst); err2 == nil {
			return nil
		}
		return err
	}
	if err != nil {
		return err
	}
	err = os.MkdirAll(filepath.Dir(dst), os.ModeDir|0750)
	if err != nil {
		return err
	}
	err = os.Rename(src, dst)
	if errors.Is(err, syscall.EXDEV) {
		// Staging directory is on another device.
		err = copy.Copy(src, dst, copy.Options{Sync: true})
		if err != nil {
			return err
		}
		return os.Remove(src)
	}
	return err
}

func (s *FileStorage) Delete(name string) error {
	err := os.Remove(join(s.staging, name))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
