// Package orchestrator runs the dialogue loop between a user message, the
// LLM collaborator, and the deterministic catalog tools. One Run call handles
// one user message end to end: it assembles the transcript, lets the
// collaborator request tool rounds, streams status events, and terminates with
// exactly one complete event.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/phonewise/phonewise/internal/catalog"
	"github.com/phonewise/phonewise/internal/collaborator"
	"github.com/phonewise/phonewise/internal/log"
	"github.com/phonewise/phonewise/internal/phonetool"
	"github.com/phonewise/phonewise/internal/session"
)

const (
	// DefaultMaxRounds bounds tool-call rounds per user message.
	DefaultMaxRounds = 5
	// DefaultTimeout bounds total collaborator plus tool time per message.
	DefaultTimeout = 2 * time.Minute

	// MaxPhoneCards caps the phone cards attached to a complete event.
	MaxPhoneCards = 5

	// statusSlack is the extra iteration headroom granted to status-only
	// responses, which do not consume a tool round but must still terminate.
	statusSlack = 3

	degradedText = "I couldn't complete that request in time. Please try rephrasing or asking something simpler."
	errorText    = "I encountered an error. Please try again."
)

// Response types attached to complete events.
const (
	TypeRecommendation = "recommendation"
	TypeGeneral        = "general"
	TypeError          = "error"
)

// EventType discriminates streamed events.
type EventType string

const (
	EventStatus   EventType = "status"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// Event is one unit of progress surfaced to the transport. Status events carry
// Message; the single terminal complete event carries Result.
type Event struct {
	Type    EventType `json:"type"`
	Message string    `json:"message,omitempty"`
	Result  *Result   `json:"result,omitempty"`
}

// Result is the terminal payload of one orchestrated exchange. ToolCalls is
// bookkeeping for the transport's instruments and stays off the wire.
type Result struct {
	SessionID    string          `json:"sessionId"`
	Response     string          `json:"response"`
	Phones       []catalog.Phone `json:"phones"`
	ResponseType string          `json:"responseType"`
	ToolCalls    int             `json:"-"`
}

// Config tunes one Orchestrator.
type Config struct {
	MaxRounds int
	Timeout   time.Duration
}

// Orchestrator coordinates sessions, tools, and the collaborator.
type Orchestrator struct {
	sessions  *session.Store
	tools     *phonetool.Registry
	catalog   *catalog.Store
	collab    collaborator.Collaborator
	logger    log.Logger
	maxRounds int
	timeout   time.Duration
}

// New assembles an orchestrator. Zero config fields take defaults.
func New(sessions *session.Store, tools *phonetool.Registry, store *catalog.Store, collab collaborator.Collaborator, logger log.Logger, cfg Config) *Orchestrator {
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = DefaultMaxRounds
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Orchestrator{
		sessions:  sessions,
		tools:     tools,
		catalog:   store,
		collab:    collab,
		logger:    logger,
		maxRounds: cfg.MaxRounds,
		timeout:   cfg.Timeout,
	}
}

// Run processes one user message. An empty or unknown session id gets a fresh
// session; the id actually used is carried on the complete event. Status
// events are emitted through emit as they are produced, followed by exactly
// one complete event. A concurrent request on the same session returns
// session.ErrBusy before any event is emitted. If the caller's context is
// cancelled mid-flight no events are emitted and the session history is left
// untouched.
func (o *Orchestrator) Run(ctx context.Context, sessionID, message string, emit func(Event)) (*Result, error) {
	sessionID = o.resolveSession(sessionID)

	if err := o.sessions.Acquire(sessionID); err != nil {
		return nil, err
	}
	defer o.sessions.Release(sessionID)

	history, err := o.buildHistory(sessionID, message)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	o.emitStatus(runCtx, emit, message)

	outcome := o.loop(runCtx, sessionID, message, history, emit)

	// A cancelled caller gets nothing: no events, no history commit. The
	// exchange is committed as a whole or not at all.
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if outcome.commit {
		user := session.Turn{Role: session.RoleUser, Text: message}
		assistant := session.Turn{Role: session.RoleAssistant, Text: outcome.result.Response, PhoneIDs: phoneIDs(outcome.result.Phones)}
		if err := o.sessions.AppendExchange(sessionID, user, assistant); err != nil {
			o.logger.Error("history commit failed", "session", sessionID, "error", err)
		}
	}

	emit(Event{Type: EventComplete, Result: outcome.result})
	return outcome.result, nil
}

// ClearSession drops a session's history. Unknown ids are a no-op.
func (o *Orchestrator) ClearSession(id string) {
	o.sessions.Clear(id)
}

type outcome struct {
	result *Result
	commit bool
}

// loop drives collaborator rounds until a final answer, the round bound, or
// the deadline. It always produces a terminal result.
func (o *Orchestrator) loop(ctx context.Context, sessionID, message string, history []collaborator.Message, emit func(Event)) outcome {
	decls := o.tools.Declarations()

	var (
		phones          []catalog.Phone
		comparisonTable string
		toolCalls       int
	)

	// terminal annotates a loop exit with the tool-call tally.
	terminal := func(result *Result, commit bool) outcome {
		result.ToolCalls = toolCalls
		return outcome{result: result, commit: commit}
	}

	rounds := 0
	for iteration := 0; iteration < o.maxRounds+statusSlack; iteration++ {
		resp, err := o.collab.Invoke(ctx, history, decls)
		if err != nil {
			if ctx.Err() != nil {
				// Deadline, not a collaborator fault.
				return terminal(o.finalize(sessionID, degradedText, phones, comparisonTable), true)
			}
			o.logger.Error("collaborator invoke failed", "session", sessionID, "error", err)
			return terminal(&Result{SessionID: sessionID, Response: errorText, Phones: []catalog.Phone{}, ResponseType: TypeError}, false)
		}

		switch resp.Kind {
		case collaborator.KindStatus:
			if resp.Status != "" {
				emit(Event{Type: EventStatus, Message: resp.Status})
			}
			continue

		case collaborator.KindToolCalls:
			rounds++
			if rounds > o.maxRounds {
				return terminal(o.finalize(sessionID, degradedText, phones, comparisonTable), true)
			}
			history = append(history, collaborator.Message{Role: collaborator.RoleAssistant, ToolCalls: resp.ToolCalls})
			toolCalls += len(resp.ToolCalls)
			for _, call := range resp.ToolCalls {
				o.emitStatus(ctx, emit, fmt.Sprintf("Searching: %s", call.Name))

				content, result := o.dispatch(sessionID, call)
				if result != nil {
					phones = mergePhones(phones, result.Phones)
					if result.Comparison != nil {
						comparisonTable = result.Comparison.Markdown()
					}
				}
				history = append(history, collaborator.Message{
					Role:       collaborator.RoleTool,
					ToolCallID: call.ID,
					Content:    content,
				})
			}
			o.emitStatus(ctx, emit, fmt.Sprintf("Analyzing results (step %d)", rounds))

		case collaborator.KindFinal:
			text := resp.Final.Text
			if text == "" {
				text = "I found some information for you."
			}
			phones = mergePhones(phones, o.resolveIDs(resp.Final.PhoneIDs))
			return terminal(o.finalize(sessionID, text, phones, comparisonTable), true)
		}
	}

	return terminal(o.finalize(sessionID, degradedText, phones, comparisonTable), true)
}

// dispatch executes one tool call. Validation failures are returned as
// correctable text for the collaborator, never surfaced to the user.
func (o *Orchestrator) dispatch(sessionID string, call collaborator.ToolCall) (string, *phonetool.Result) {
	result, err := o.tools.Dispatch(call.Name, call.Arguments)
	if err != nil {
		o.logger.Warn("tool call rejected", "session", sessionID, "tool", call.Name, "error", err)
		return "Error: " + err.Error(), nil
	}
	o.logger.Info("tool executed", "session", sessionID, "tool", call.Name, "phones", len(result.Phones))
	return result.Text, &result
}

func (o *Orchestrator) finalize(sessionID, text string, phones []catalog.Phone, comparisonTable string) *Result {
	if comparisonTable != "" && !strings.Contains(text, "---") {
		text = comparisonTable + "\n\n" + text
	}
	if phones == nil {
		phones = []catalog.Phone{}
	}
	responseType := TypeGeneral
	if len(phones) > 0 {
		responseType = TypeRecommendation
	}
	return &Result{
		SessionID:    sessionID,
		Response:     text,
		Phones:       phones,
		ResponseType: responseType,
	}
}

// resolveSession maps empty or unknown ids to a fresh session.
func (o *Orchestrator) resolveSession(id string) string {
	if id == "" {
		return o.sessions.Create()
	}
	if _, err := o.sessions.Get(id); errors.Is(err, session.ErrNotFound) {
		o.logger.Debug("unknown session id, starting fresh", "supplied", id)
		return o.sessions.Create()
	}
	return id
}

func (o *Orchestrator) buildHistory(sessionID, message string) ([]collaborator.Message, error) {
	snap, err := o.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	history := make([]collaborator.Message, 0, len(snap.Turns)+2)
	history = append(history, collaborator.Message{Role: collaborator.RoleSystem, Content: collaborator.SystemPrompt})
	for _, turn := range snap.Turns {
		history = append(history, collaborator.Message{Role: turn.Role, Content: turn.Text})
	}
	history = append(history, collaborator.Message{Role: collaborator.RoleUser, Content: message})
	return history, nil
}

// emitStatus asks the collaborator for a progress line when it can produce
// one. Collaborators without status support stay silent here; scripted status
// responses still flow through the loop.
func (o *Orchestrator) emitStatus(ctx context.Context, emit func(Event), about string) {
	sg, ok := o.collab.(collaborator.StatusGenerator)
	if !ok {
		return
	}
	emit(Event{Type: EventStatus, Message: sg.StatusMessage(ctx, about)})
}

func (o *Orchestrator) resolveIDs(ids []string) []catalog.Phone {
	var out []catalog.Phone
	for _, id := range ids {
		if p, err := o.catalog.Resolve(id); err == nil {
			out = append(out, p)
		}
	}
	return out
}

// mergePhones appends newly seen phones in first-seen order up to the card cap.
func mergePhones(into []catalog.Phone, add []catalog.Phone) []catalog.Phone {
	for _, p := range add {
		if len(into) >= MaxPhoneCards {
			break
		}
		seen := false
		for _, existing := range into {
			if existing.ID == p.ID {
				seen = true
				break
			}
		}
		if !seen {
			into = append(into, p)
		}
	}
	return into
}

func phoneIDs(phones []catalog.Phone) []string {
	if len(phones) == 0 {
		return nil
	}
	ids := make([]string, len(phones))
	for i, p := range phones {
		ids[i] = p.ID
	}
	return ids
}
