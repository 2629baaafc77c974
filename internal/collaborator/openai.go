package collaborator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/phonewise/phonewise/internal/log"
	"github.com/phonewise/phonewise/internal/phonetool"
)

// Generation parameters, matching the defaults the service has always used.
const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 2048
	fallbackStatus     = "Working on it..."
)

// ClientConfig configures the OpenAI-compatible chat client.
type ClientConfig struct {
	BaseURL string // e.g. http://localhost:11434/v1 (Ollama) or the Gemini OpenAI endpoint
	APIKey  string // "ollama" is accepted by Ollama; Gemini requires a real key
	Model   string
	Timeout time.Duration
	Logger  log.Logger
}

// Client talks to any OpenAI-compatible /chat/completions backend. It
// implements Collaborator and StatusGenerator.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	model   string
	logger  log.Logger
}

// NewClient creates a chat client for the configured backend.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		logger:  logger,
	}, nil
}

// OpenAI chat wire types.

type wireRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Tools       []wireTool    `json:"tools,omitempty"`
	ToolChoice  string        `json:"tool_choice,omitempty"`
}

type wireMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type wireTool struct {
	Type     string       `json:"type"`
	Function wireFunction `json:"function"`
}

type wireFunction struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`
}

type wireToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"` // JSON-encoded string per the OpenAI wire format
	} `json:"function"`
}

type wireResponse struct {
	Choices []struct {
		Message wireMessage `json:"message"`
	} `json:"choices"`
}

// Invoke sends the transcript and tool declarations to the backend and maps
// the reply onto the Response variants. A reply with tool calls becomes
// KindToolCalls; anything else is a Final.
func (c *Client) Invoke(ctx context.Context, history []Message, tools []phonetool.Declaration) (Response, error) {
	req := wireRequest{
		Model:       c.model,
		Messages:    toWire(history),
		Temperature: defaultTemperature,
		MaxTokens:   defaultMaxTokens,
	}
	if len(tools) > 0 {
		req.Tools = make([]wireTool, len(tools))
		for i, d := range tools {
			req.Tools[i] = wireTool{
				Type: "function",
				Function: wireFunction{
					Name:        d.Name,
					Description: d.Description,
					Parameters:  d.Schema,
				},
			}
		}
		req.ToolChoice = "auto"
	}

	msg, err := c.complete(ctx, req)
	if err != nil {
		return Response{}, err
	}

	if len(msg.ToolCalls) > 0 {
		calls := make([]ToolCall, 0, len(msg.ToolCalls))
		for _, tc := range msg.ToolCalls {
			calls = append(calls, ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: json.RawMessage(tc.Function.Arguments),
			})
		}
		return Response{Kind: KindToolCalls, ToolCalls: calls}, nil
	}

	text := strings.TrimSpace(msg.Content)
	if text == "" {
		text = "I found some information for you."
	}
	return Response{Kind: KindFinal, Final: &Final{Text: text}}, nil
}

// StatusMessage asks the model for a short progress line. Failures degrade to
// a canned message; a broken status must never break the request.
func (c *Client) StatusMessage(ctx context.Context, about string) string {
	msg, err := c.complete(ctx, wireRequest{
		Model: c.model,
		Messages: []wireMessage{
			{Role: RoleSystem, Content: statusPrompt},
			{Role: RoleUser, Content: about},
		},
		Temperature: defaultTemperature,
		MaxTokens:   64,
	})
	if err != nil {
		c.logger.Debug("status generation failed", "error", err)
		return fallbackStatus
	}
	status := strings.Trim(strings.TrimSpace(msg.Content), `"`)
	if status == "" {
		return fallbackStatus
	}
	return status
}

func (c *Client) complete(ctx context.Context, req wireRequest) (wireMessage, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return wireMessage{}, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return wireMessage{}, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return wireMessage{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return wireMessage{}, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, bytes.TrimSpace(data))
	}

	var decoded wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return wireMessage{}, fmt.Errorf("%w: decoding response: %v", ErrUpstream, err)
	}
	if len(decoded.Choices) == 0 {
		return wireMessage{}, fmt.Errorf("%w: empty choices", ErrUpstream)
	}
	return decoded.Choices[0].Message, nil
}

func toWire(history []Message) []wireMessage {
	out := make([]wireMessage, len(history))
	for i, m := range history {
		wm := wireMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			var wtc wireToolCall
			wtc.ID = tc.ID
			wtc.Type = "function"
			wtc.Function.Name = tc.Name
			wtc.Function.Arguments = string(tc.Arguments)
			wm.ToolCalls = append(wm.ToolCalls, wtc)
		}
		out[i] = wm
	}
	return out
}
