// Package boltdbresumer provides a resume database that uses a Bolt database file as storage.
package boltdbresumer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/btree"
	bolt "go.etcd.io/bbolt"
)

// Keys for the persistent storage.
var Keys = struct {
	State       []byte
	URL         []byte
	Dest        []byte
	Length      []byte
	Position    []byte
	Hash        []byte
	AddedAt     []byte
	CompletedAt []byte
}{
	State:       []byte("state"),
	URL:         []byte("url"),
	Dest:        []byte("dest"),
	Length:      []byte("length"),
	Position:    []byte("position"),
	Hash:        []byte("hash"),
	AddedAt:     []byte("added_at"),
	CompletedAt: []byte("completed_at"),
}

// ErrLocked is returned from Open when another process holds the database file.
var ErrLocked = errors.New("resume database is locked by another process")

// Resumer contains methods for saving/loading download state to a BoltDB database.
type Resumer struct {
	db     *bolt.DB
	bucket []byte
}

// New returns a new Resumer that keeps its data under bucket.
func New(db *bolt.DB, bucket []byte) (*Resumer, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		_, err2 := tx.CreateBucketIfNotExists(bucket)
		return err2
	})
	if err != nil {
		return nil, err
	}
	return &Resumer{
		db:     db,
		bucket: bucket,
	}, nil
}

// Open the database file at path, creating it with its parent directory if necessary.
func Open(path string, bucket []byte) (*Resumer, error) {
	err := os.MkdirAll(filepath.Dir(path), 0750)
	if err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0640, &bolt.Options{Timeout: time.Second})
	if err == bolt.ErrTimeout {
		return nil, ErrLocked
	} else if err != nil {
		return nil, err
	}
	r, err := New(db, bucket)
	if err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

// Close the underlying database.
func (r *Resumer) Close() error {
	return r.db.Close()
}

// Write the spec for download with `id`, replacing all previous values.
func (r *Resumer) Write(id string, spec *Spec) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.Bucket(r.bucket).CreateBucketIfNotExists([]byte(id))
		if err != nil {
			return err
		}
		_ = b.Put(Keys.State, []byte(spec.State))
		_ = b.Put(Keys.URL, []byte(spec.URL))
		_ = b.Put(Keys.Dest, []byte(spec.Dest))
		_ = b.Put(Keys.Length, []byte(strconv.FormatInt(spec.Length, 10)))
		_ = b.Put(Keys.Position, []byte(strconv.FormatInt(spec.Position, 10)))
		_ = b.Put(Keys.AddedAt, []byte(spec.AddedAt.Format(time.RFC3339Nano)))
		if len(spec.Hash) > 0 {
			_ = b.Put(Keys.Hash, spec.Hash)
		} else {
			_ = b.Delete(Keys.Hash)
		}
		if !spec.CompletedAt.IsZero() {
			_ = b.Put(Keys.CompletedAt, []byte(spec.CompletedAt.Format(time.RFC3339Nano)))
		} else {
			_ = b.Delete(Keys.CompletedAt)
		}
		return nil
	})
}

// Read the spec of download with `id`. Returns nil spec if it is not found.
func (r *Resumer) Read(id string) (*Spec, error) {
	var spec *Spec
	err := r.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(r.bucket).Bucket([]byte(id))
		if b == nil {
			return nil
		}
		var err error
		spec, err = readSpec(id, b)
		return err
	})
	return spec, err
}

// Remove the download with `id`. Removing a missing download is not an error.
func (r *Resumer) Remove(id string) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		err := tx.Bucket(r.bucket).DeleteBucket([]byte(id))
		if err == bolt.ErrBucketNotFound {
			return nil
		}
		return err
	})
}

// Enumerate returns all saved specs in the order they are added.
func (r *Resumer) Enumerate() ([]*Spec, error) {
	tree := btree.NewG(2, func(a, b *Spec) bool {
		if a.AddedAt.Equal(b.AddedAt) {
			return a.ID < b.ID
		}
		return a.AddedAt.Before(b.AddedAt)
	})
	err := r.db.View(func(tx *bolt.Tx) error {
		mb := tx.Bucket(r.bucket)
		return mb.ForEach(func(k, v []byte) error {
			if v != nil {
				// not a bucket
				return nil
			}
			spec, err := readSpec(string(k), mb.Bucket(k))
			if err != nil {
				return err
			}
			tree.ReplaceOrInsert(spec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	specs := make([]*Spec, 0, tree.Len())
	tree.Ascend(func(s *Spec) bool {
		specs = append(specs, s)
		return true
	})
	return specs, nil
}

func readSpec(id string, b *bolt.Bucket) (*Spec, error) {
	spec := &Spec{ID: id}

	value := b.Get(Keys.URL)
	if value == nil {
		return nil, fmt.Errorf("key not found: %q", string(Keys.URL))
	}
	spec.URL = string(value)

	var err error
	spec.State = string(b.Get(Keys.State))
	spec.Dest = string(b.Get(Keys.Dest))

	value = b.Get(Keys.Length)
	if value != nil {
		spec.Length, err = strconv.ParseInt(string(value), 10, 64)
		if err != nil {
			return nil, err
		}
	}

	value = b.Get(Keys.Position)
	if value != nil {
		spec.Position, err = strconv.ParseInt(string(value), 10, 64)
		if err != nil {
			return nil, err
		}
	}

	value = b.Get(Keys.Hash)
	if value != nil {
		spec.Hash = make([]byte, len(value))
		copy(spec.Hash, value)
	}

	value = b.Get(Keys.AddedAt)
	if value != nil {
		spec.AddedAt, err = time.Parse(time.RFC3339Nano, string(value))
		if err != nil {
			return nil, err
		}
	}

	value = b.Get(Keys.CompletedAt)
	if value != nil {
		spec.CompletedAt, err = time.Parse(time.RFC3339Nano, string(value))
		if err != nil {
			return nil, err
		}
	}

	return spec, nil
}
