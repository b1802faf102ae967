package download

import (
	"strings"
	"time"

	"github.com/cenkalti/fetch/internal/hashing"
)

// ID identifies a download. It is derived from the URL so the same URL always maps to the same ID.
type ID string

// NewID returns the ID of url computed with the default hash function.
func NewID(url string) ID {
	id, err := newID(hashing.Default, url)
	if err != nil {
		// Default hasher is always registered.
		panic(err)
	}
	return id
}

func newID(h HashProvider, url string) (ID, error) {
	sum, err := h.Sum(strings.NewReader(url))
	if err != nil {
		return "", err
	}
	return ID(hashing.String(sum)), nil
}

// Short returns a prefix of the ID for logging.
func (id ID) Short() string {
	const n = 12
	s := string(id)
	if len(s) > n+4 {
		// Skip multihash prefix, it is the same for all IDs.
		s = s[4 : n+4]
	}
	return s
}

// Record is a snapshot of the state of a download.
// Records are never modified. A new Record replaces the old one on every change.
type Record struct {
	ID        ID
	State     State
	CreatedAt time.Time
	URL       string
	// Path of the target, relative to the storage root.
	Path string
	// Total length of the file in bytes.
	Length int64
	// Number of bytes written to the target so far.
	Position int64
	// Expected multihash of the content. Nil if unknown.
	Hash []byte
	// Set when the task reaches a terminal state.
	CompletedAt time.Time
}

func newRecord(id ID, url, path string, length int64, hash []byte) Record {
	var h []byte
	if len(hash) > 0 {
		h = make([]byte, len(hash))
		copy(h, hash)
	}
	return Record{
		ID:        id,
		State:     Queued,
		CreatedAt: time.Now().UTC(),
		URL:       url,
		Path:      path,
		Length:    length,
		Hash:      h,
	}
}

// Completed returns true if the record is in a terminal state.
func (r Record) Completed() bool {
	return !r.CompletedAt.IsZero()
}
