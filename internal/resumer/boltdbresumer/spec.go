package boltdbresumer

import "time"

// Spec contains the persisted fields of a single download.
type Spec struct {
	ID          string
	State       string
	URL         string
	Dest        string
	Length      int64
	Position    int64
	Hash        []byte
	AddedAt     time.Time
	CompletedAt time.Time
}
