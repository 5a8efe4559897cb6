// internal/types/ids.go
package types

import (
	"strings"

	"github.com/google/uuid"
)

// ThreadID is the provider's opaque conversation handle.
type ThreadID string

// Valid reports whether id is usable as a thread key and a directory name.
func (id ThreadID) Valid() bool {
	s := string(id)
	if s == "" || s == "." || s == ".." {
		return false
	}
	return !strings.ContainsAny(s, "/\\\x00")
}

type TurnID string
type RequestID string
type LaneKey string

func NewTurnID() TurnID {
	return TurnID(uuid.New().String())
}

func NewRequestID() RequestID {
	return RequestID(uuid.New().String())
}

// NewLaneKey joins parts into a lane key, e.g. "thread:<id>".
func NewLaneKey(parts ...string) LaneKey {
	return LaneKey(strings.Join(parts, ":"))
}

// ThreadLane is the lane that serializes turns on one thread.
func ThreadLane(id ThreadID) LaneKey {
	return NewLaneKey("thread", string(id))
}
