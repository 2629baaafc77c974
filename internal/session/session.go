// Package session provides the in-memory store for conversation sessions.
//
// A session holds the bounded history of one conversation, keyed by an opaque
// server-generated id. History is bounded to the last K user/assistant pairs;
// the oldest pair is always evicted first. The store owns all session state:
// callers receive copies and never hold references into the store.
package session

import (
	"errors"
	"time"
)

// Sentinel errors, checked with errors.Is().
var (
	// ErrNotFound indicates the session does not exist.
	ErrNotFound = errors.New("session not found")

	// ErrBusy indicates another request is already in flight for the session.
	ErrBusy = errors.New("session busy")
)

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DefaultMaxPairs bounds history to the last 10 exchanges (20 turns),
// matching the transcript window sent to the collaborator.
const DefaultMaxPairs = 10

// Turn is one message within a session's history. Immutable once appended.
type Turn struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	PhoneIDs  []string  `json:"phone_ids,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is a snapshot of one conversation's state.
type Session struct {
	ID           string
	Turns        []Turn
	LastActivity time.Time
}
