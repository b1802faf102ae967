package download

import (
	"fmt"
	"strconv"
)

// State of a download task.
type State int

const (
	// Queued tasks are waiting in the work queue for a free worker.
	Queued State = iota
	// Active tasks are being downloaded by a worker.
	Active
	// Succeeded tasks are downloaded, verified and published.
	Succeeded
	// Failed tasks are stopped because of an error.
	Failed
	// Cancelled tasks are stopped by the user.
	Cancelled
)

var stateStrings = map[State]string{
	Queued:    "Queued",
	Active:    "Active",
	Succeeded: "Succeeded",
	Failed:    "Failed",
	Cancelled: "Cancelled",
}

func (s State) String() string {
	str, ok := stateStrings[s]
	if !ok {
		return strconv.FormatInt(int64(s), 10)
	}
	return str
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(b []byte) error {
	v, err := ParseState(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseState returns the State named by s.
func ParseState(s string) (State, error) {
	for k, v := range stateStrings {
		if v == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown state: %q", s)
}

// Terminal returns true if no more transitions are possible from the state.
func (s State) Terminal() bool {
	return s == Succeeded || s == Failed || s == Cancelled
}

// allowedFrom lists the states that a task can move from, keyed by the target state.
var allowedFrom = map[State][]State{
	Active:    {Queued},
	Succeeded: {Active},
	Failed:    {Active},
	Cancelled: {Queued, Active},
}

func canTransition(from, to State) bool {
	for _, s := range allowedFrom[to] {
		if s == from {
			return true
		}
	}
	return false
}
