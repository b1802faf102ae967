// Package hashing computes self-describing content digests in multihash format.
package hashing

import (
	"bytes"
	"io"
	"strings"

	"github.com/multiformats/go-multihash"
)

// Hasher computes multihash digests with a fixed hash function.
type Hasher struct {
	// Multihash code of the hash function. See multihash.Names for possible values.
	Code uint64
}

// Default hashes with SHA2-256.
var Default = Hasher{Code: multihash.SHA2_256}

// Sum reads r until EOF and returns the multihash of its content.
func (h Hasher) Sum(r io.Reader) ([]byte, error) {
	mh, err := multihash.SumStream(r, h.Code, -1)
	if err != nil {
		return nil, err
	}
	return []byte(mh), nil
}

// SumString returns the multihash of s.
func (h Hasher) SumString(s string) ([]byte, error) {
	return h.Sum(strings.NewReader(s))
}

// FromDigest wraps a raw digest produced by the hash function named by code into multihash format.
func FromDigest(digest []byte, code uint64) ([]byte, error) {
	return multihash.Encode(digest, code)
}

// Equal reports whether two multihashes are identical. Both values are validated.
func Equal(a, b []byte) bool {
	if _, err := multihash.Cast(a); err != nil {
		return false
	}
	if _, err := multihash.Cast(b); err != nil {
		return false
	}
	return bytes.Equal(a, b)
}

// String returns the hex representation of a multihash.
func String(b []byte) string {
	return multihash.Multihash(b).HexString()
}

// Parse converts the hex representation of a multihash back to bytes.
func Parse(s string) ([]byte, error) {
	mh, err := multihash.FromHexString(s)
	if err != nil {
		return nil, err
	}
	return []byte(mh), nil
}
