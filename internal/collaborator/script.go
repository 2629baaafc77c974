package collaborator

import (
	"context"
	"sync"

	"github.com/phonewise/phonewise/internal/phonetool"
)

// Script is a Collaborator that replays a fixed sequence of responses. It is
// used in tests to drive the orchestration loop deterministically. Each call
// to Invoke consumes the next queued response and records the history it was
// given.
type Script struct {
	mu        sync.Mutex
	responses []Response
	calls     [][]Message
	status    string
}

// NewScript returns a scripted collaborator that will answer Invoke with the
// given responses in order.
func NewScript(responses ...Response) *Script {
	return &Script{responses: responses}
}

// WithStatus makes the script also implement StatusGenerator, answering every
// StatusMessage call with the given line.
func (s *Script) WithStatus(line string) *Script {
	s.status = line
	return s
}

func (s *Script) Invoke(_ context.Context, history []Message, _ []phonetool.Declaration) (Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make([]Message, len(history))
	copy(snapshot, history)
	s.calls = append(s.calls, snapshot)

	if len(s.responses) == 0 {
		return Response{Kind: KindFinal, Final: &Final{Text: "done"}}, nil
	}
	next := s.responses[0]
	s.responses = s.responses[1:]
	return next, nil
}

// StatusMessage satisfies StatusGenerator when a status line was configured.
func (s *Script) StatusMessage(context.Context, string) string {
	if s.status == "" {
		return fallbackStatus
	}
	return s.status
}

// Calls returns the histories recorded by each Invoke, oldest first.
func (s *Script) Calls() [][]Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]Message, len(s.calls))
	copy(out, s.calls)
	return out
}
