// Package collaborator defines the narrow contract with the LLM component and
// its implementations.
//
// The collaborator is a black box: it receives the conversation transcript and
// the tool declarations, and answers with exactly one of a status line, a batch
// of tool calls, or a final answer. Everything model-specific lives behind this
// boundary so the orchestration protocol can be tested with a scripted
// implementation instead of a real model.
package collaborator

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/phonewise/phonewise/internal/phonetool"
)

// ErrUpstream indicates the model backend failed or was unreachable.
var ErrUpstream = errors.New("collaborator upstream failure")

// Message roles, mirroring the OpenAI chat wire shape.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry of the transcript sent to the collaborator.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`   // assistant messages requesting tools
	ToolCallID string     `json:"tool_call_id,omitempty"` // tool result messages
}

// ToolCall is a structured request to execute one deterministic catalog tool.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Kind discriminates the collaborator's response variants.
type Kind int

const (
	// KindStatus is a free-text progress line; the conversation continues.
	KindStatus Kind = iota
	// KindToolCalls requests one or more tool executions.
	KindToolCalls
	// KindFinal carries the final answer and terminates the exchange.
	KindFinal
)

// Response is the collaborator's answer to one Invoke call. Exactly one of
// Status, ToolCalls, or Final is meaningful, selected by Kind.
type Response struct {
	Kind      Kind
	Status    string
	ToolCalls []ToolCall
	Final     *Final
}

// Final is the collaborator's terminal answer: response text plus the ordered
// ids of the phones it references.
type Final struct {
	Text     string
	PhoneIDs []string
}

// Collaborator is the consumed LLM interface.
type Collaborator interface {
	Invoke(ctx context.Context, history []Message, tools []phonetool.Declaration) (Response, error)
}

// StatusGenerator is optionally implemented by collaborators that can produce
// short progress lines for streaming clients. The orchestration loop falls
// back to canned text when the collaborator does not implement it.
type StatusGenerator interface {
	StatusMessage(ctx context.Context, about string) string
}
