package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/phonewise/phonewise/internal/log"
)

// Store is the process-wide session registry.
//
// Store is safe for concurrent use. A single mutex guards the map; every
// operation is O(1) in the number of sessions (plus the size of one bounded
// history), so requests for different sessions do not contend meaningfully.
// Per-session mutual exclusion across a whole request is provided by
// Acquire/Release, not by holding the map lock.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*entry
	maxPairs int
	logger   log.Logger

	now func() time.Time // injectable for tests
}

type entry struct {
	turns        []Turn
	lastActivity time.Time
	inFlight     bool
}

// NewStore creates a session store bounding each history to maxPairs
// user/assistant exchanges. maxPairs <= 0 selects DefaultMaxPairs.
func NewStore(maxPairs int, logger log.Logger) *Store {
	if maxPairs <= 0 {
		maxPairs = DefaultMaxPairs
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{
		sessions: make(map[string]*entry),
		maxPairs: maxPairs,
		logger:   logger,
		now:      time.Now,
	}
}

// Create registers a new empty session and returns its opaque id.
func (s *Store) Create() string {
	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = &entry{lastActivity: s.now()}

	s.logger.Debug("session created", "session_id", id)
	return id
}

// Get returns a snapshot of the session, or ErrNotFound.
func (s *Store) Get(id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok {
		return Session{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	turns := make([]Turn, len(e.turns))
	copy(turns, e.turns)
	return Session{ID: id, Turns: turns, LastActivity: e.lastActivity}, nil
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// AppendExchange commits a user turn and its assistant turn atomically.
// Committing both halves together is what keeps history consistent under
// cancellation: a request that dies mid-flight leaves no partial turn behind.
// If the history exceeds the pair bound afterwards, the oldest pair is evicted.
func (s *Store) AppendExchange(id string, user, assistant Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	now := s.now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if assistant.CreatedAt.IsZero() {
		assistant.CreatedAt = now
	}

	e.turns = append(e.turns, user, assistant)
	for len(e.turns) > 2*s.maxPairs {
		e.turns = e.turns[2:]
	}
	e.lastActivity = s.now()
	return nil
}

// Clear removes the session entirely. Clearing an absent session is not an
// error.
func (s *Store) Clear(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; ok {
		delete(s.sessions, id)
		s.logger.Debug("session cleared", "session_id", id)
	}
}

// Acquire claims the single in-flight slot for a session. It fails with
// ErrBusy while another request holds the slot, and ErrNotFound if the
// session does not exist. Callers must Release after the request completes.
func (s *Store) Acquire(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if e.inFlight {
		return fmt.Errorf("%w: %s", ErrBusy, id)
	}
	e.inFlight = true
	e.lastActivity = s.now()
	return nil
}

// Release frees the in-flight slot. Releasing an absent or idle session is a
// no-op so callers can defer it unconditionally.
func (s *Store) Release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.sessions[id]; ok {
		e.inFlight = false
	}
}

// PruneIdle deletes sessions whose last activity is older than ttl and which
// have no request in flight. Returns the number of sessions removed.
func (s *Store) PruneIdle(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-ttl)
	removed := 0
	for id, e := range s.sessions {
		if !e.inFlight && e.lastActivity.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Debug("pruned idle sessions", "removed", removed)
	}
	return removed
}
