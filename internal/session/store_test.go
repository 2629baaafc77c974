package session

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/phonewise/phonewise/internal/log"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func exchange(n int) (Turn, Turn) {
	now := time.Now()
	return Turn{Role: RoleUser, Text: fmt.Sprintf("question %d", n), CreatedAt: now},
		Turn{Role: RoleAssistant, Text: fmt.Sprintf("answer %d", n), CreatedAt: now}
}

func TestCreateAndGet(t *testing.T) {
	s := NewStore(0, log.NewNop())

	id := s.Create()
	require.NotEmpty(t, id)

	sess, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, id, sess.ID)
	assert.Empty(t, sess.Turns)

	_, err = s.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreate_UniqueIDs(t *testing.T) {
	s := NewStore(0, log.NewNop())

	seen := make(map[string]bool)
	for range 100 {
		id := s.Create()
		assert.False(t, seen[id], "duplicate session id %s", id)
		seen[id] = true
	}
}

func TestAppendExchange(t *testing.T) {
	s := NewStore(3, log.NewNop())
	id := s.Create()

	u, a := exchange(1)
	require.NoError(t, s.AppendExchange(id, u, a))

	sess, err := s.Get(id)
	require.NoError(t, err)
	require.Len(t, sess.Turns, 2)
	assert.Equal(t, RoleUser, sess.Turns[0].Role)
	assert.Equal(t, RoleAssistant, sess.Turns[1].Role)

	u, a = exchange(2)
	assert.ErrorIs(t, s.AppendExchange("nope", u, a), ErrNotFound)
}

func TestAppendExchange_StampsCreatedAt(t *testing.T) {
	frozen := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	s := NewStore(3, log.NewNop())
	s.now = func() time.Time { return frozen }
	id := s.Create()

	// Turns arriving without a timestamp get the commit time.
	require.NoError(t, s.AppendExchange(id,
		Turn{Role: RoleUser, Text: "q"},
		Turn{Role: RoleAssistant, Text: "a"},
	))

	sess, err := s.Get(id)
	require.NoError(t, err)
	require.Len(t, sess.Turns, 2)
	assert.Equal(t, frozen, sess.Turns[0].CreatedAt)
	assert.Equal(t, frozen, sess.Turns[1].CreatedAt)

	// An explicit timestamp is kept.
	earlier := frozen.Add(-time.Hour)
	require.NoError(t, s.AppendExchange(id,
		Turn{Role: RoleUser, Text: "q2", CreatedAt: earlier},
		Turn{Role: RoleAssistant, Text: "a2"},
	))

	sess, err = s.Get(id)
	require.NoError(t, err)
	require.Len(t, sess.Turns, 4)
	assert.Equal(t, earlier, sess.Turns[2].CreatedAt)
	assert.Equal(t, frozen, sess.Turns[3].CreatedAt)
}

func TestAppendExchange_EvictsOldestPairFirst(t *testing.T) {
	s := NewStore(2, log.NewNop())
	id := s.Create()

	for i := 1; i <= 4; i++ {
		u, a := exchange(i)
		require.NoError(t, s.AppendExchange(id, u, a))
	}

	sess, err := s.Get(id)
	require.NoError(t, err)
	require.Len(t, sess.Turns, 4)
	assert.Equal(t, "question 3", sess.Turns[0].Text)
	assert.Equal(t, "answer 4", sess.Turns[3].Text)
}

// History never exceeds the configured bound and always drops oldest-first,
// for arbitrary append sequences.
func TestBoundedHistory_Property(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for run := range 20 {
		maxPairs := 1 + rng.Intn(8)
		appends := 1 + rng.Intn(40)

		s := NewStore(maxPairs, log.NewNop())
		id := s.Create()

		for i := 1; i <= appends; i++ {
			u, a := exchange(i)
			require.NoError(t, s.AppendExchange(id, u, a))

			sess, err := s.Get(id)
			require.NoError(t, err)
			assert.LessOrEqual(t, len(sess.Turns), 2*maxPairs,
				"run %d: history exceeded bound after %d appends", run, i)
		}

		// The surviving turns must be exactly the newest ones, in order.
		sess, err := s.Get(id)
		require.NoError(t, err)
		kept := len(sess.Turns) / 2
		for j := range kept {
			want := appends - kept + j + 1
			assert.Equal(t, fmt.Sprintf("question %d", want), sess.Turns[2*j].Text, "run %d", run)
			assert.Equal(t, fmt.Sprintf("answer %d", want), sess.Turns[2*j+1].Text, "run %d", run)
		}
	}
}

func TestGet_ReturnsCopy(t *testing.T) {
	s := NewStore(0, log.NewNop())
	id := s.Create()
	u, a := exchange(1)
	require.NoError(t, s.AppendExchange(id, u, a))

	sess, err := s.Get(id)
	require.NoError(t, err)
	sess.Turns[0].Text = "mutated"

	again, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "question 1", again.Turns[0].Text)
}

func TestClear_Idempotent(t *testing.T) {
	s := NewStore(0, log.NewNop())
	id := s.Create()

	s.Clear(id)
	_, err := s.Get(id)
	assert.ErrorIs(t, err, ErrNotFound)

	// Clearing again, or clearing an id that never existed, must not panic.
	s.Clear(id)
	s.Clear("never-existed")
}

func TestAcquireRelease(t *testing.T) {
	s := NewStore(0, log.NewNop())
	id := s.Create()

	require.NoError(t, s.Acquire(id))
	assert.ErrorIs(t, s.Acquire(id), ErrBusy)

	s.Release(id)
	require.NoError(t, s.Acquire(id))

	assert.ErrorIs(t, s.Acquire("nope"), ErrNotFound)
	s.Release("nope") // no-op
}

func TestConcurrentAppends_DistinctSessions(t *testing.T) {
	s := NewStore(5, log.NewNop())

	const sessions = 16
	const perSession = 20

	ids := make([]string, sessions)
	for i := range ids {
		ids[i] = s.Create()
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 1; i <= perSession; i++ {
				u, a := exchange(i)
				if err := s.AppendExchange(id, u, a); err != nil {
					t.Errorf("append: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	for _, id := range ids {
		sess, err := s.Get(id)
		require.NoError(t, err)
		assert.Len(t, sess.Turns, 10, "session %s", id)
	}
}

func TestPruneIdle(t *testing.T) {
	s := NewStore(0, log.NewNop())

	base := time.Now()
	s.now = func() time.Time { return base }
	stale := s.Create()
	busy := s.Create()
	require.NoError(t, s.Acquire(busy))

	s.now = func() time.Time { return base.Add(time.Hour) }
	fresh := s.Create()

	removed := s.PruneIdle(30 * time.Minute)
	assert.Equal(t, 1, removed)

	_, err := s.Get(stale)
	assert.ErrorIs(t, err, ErrNotFound)

	// In-flight and fresh sessions survive.
	_, err = s.Get(busy)
	assert.NoError(t, err)
	_, err = s.Get(fresh)
	assert.NoError(t, err)
}
