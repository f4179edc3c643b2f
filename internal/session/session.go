// Package session runs bounded review sessions over due cards.
//
// A Manager selects due cards through a store.CardStore, hands them out one
// at a time, and applies scheduler output back to the store as ratings come
// in. Sessions live in memory; Snapshot and Restore give the caller a plain
// serializable form for checkpointing.
package session

import (
	"encoding"
	"fmt"
	"time"

	"github.com/recallkit/recall/internal/srs"
)

// State is the lifecycle stage of a session.
type State int

const (
	Created   State = iota + 1 // built, queue not yet handed out
	Active                     // accepting ratings
	Paused                     // suspended, may resume
	Completed                  // queue exhausted; terminal
)

var (
	stateNames = [...]string{Created: "created", Active: "active", Paused: "paused", Completed: "completed"}

	stateByName = map[string]State{
		"created":   Created,
		"active":    Active,
		"paused":    Paused,
		"completed": Completed,
	}
)

var (
	_ fmt.Stringer             = State(0)
	_ encoding.TextMarshaler   = State(0)
	_ encoding.TextUnmarshaler = (*State)(nil)
)

func (s State) isValid() bool {
	return s >= Created && s <= Completed
}

// String returns the lowercase state name, or "state(n)" for invalid values.
func (s State) String() string {
	if s.isValid() {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	if !s.isValid() {
		return nil, fmt.Errorf("session: invalid state: %d", int(s))
	}
	return []byte(stateNames[s]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	v, ok := stateByName[string(text)]
	if !ok {
		return fmt.Errorf("session: invalid state: %q", text)
	}
	*s = v
	return nil
}

// Session is a bounded, ordered sequence of due cards under review.
// Its fields are owned by the Manager; read methods assume the single
// active caller the product guarantees per session.
type Session struct {
	id        string
	userID    string
	queue     []string
	cursor    int
	applied   map[string]srs.Rating
	state     State
	startedAt time.Time
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// UserID returns the owning user.
func (s *Session) UserID() string { return s.userID }

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// StartedAt returns when the session was started.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// Current returns the card at the front of the queue.
// ok is false once the queue is exhausted.
func (s *Session) Current() (cardID string, ok bool) {
	if s.cursor >= len(s.queue) {
		return "", false
	}
	return s.queue[s.cursor], true
}

// Stats is a read-only progress snapshot of a session.
type Stats struct {
	Reviewed  int       `json:"reviewed_count"`
	Remaining int       `json:"remaining_count"`
	StartedAt time.Time `json:"started_at"`
}

// Snapshot is the serializable form of a session: the ordered queue, the
// cursor, and the ratings already applied. It carries everything needed to
// checkpoint and later restore a session.
type Snapshot struct {
	ID        string                `json:"id"`
	UserID    string                `json:"user_id"`
	Queue     []string              `json:"queue"`
	Cursor    int                   `json:"cursor"`
	Applied   map[string]srs.Rating `json:"applied,omitempty"`
	State     State                 `json:"state"`
	StartedAt time.Time             `json:"started_at"`
}

func (s *Session) snapshot() Snapshot {
	queue := make([]string, len(s.queue))
	copy(queue, s.queue)
	applied := make(map[string]srs.Rating, len(s.applied))
	for id, r := range s.applied {
		applied[id] = r
	}
	return Snapshot{
		ID:        s.id,
		UserID:    s.userID,
		Queue:     queue,
		Cursor:    s.cursor,
		Applied:   applied,
		State:     s.state,
		StartedAt: s.startedAt,
	}
}
