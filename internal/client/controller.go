package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/phonewise/phonewise/internal/catalog"
	"github.com/phonewise/phonewise/internal/log"
	"github.com/phonewise/phonewise/internal/sse"
)

// ErrNothingSelected is returned by CompareSelected when fewer than two
// phones are selected.
var ErrNothingSelected = errors.New("select at least two phones to compare")

// Exchange is the outcome of one completed chat round.
type Exchange struct {
	Response     string
	Phones       []catalog.Phone
	ResponseType string
}

// wireEvent covers every event shape the server streams.
type wireEvent struct {
	Type         string          `json:"type"`
	Message      string          `json:"message"`
	Response     string          `json:"response"`
	Phones       []catalog.Phone `json:"phones"`
	ResponseType string          `json:"response_type"`
	SessionID    string          `json:"session_id"`
}

// chatReply is the non-streaming endpoint's response body.
type chatReply struct {
	Response  string          `json:"response"`
	SessionID string          `json:"session_id"`
	Phones    []catalog.Phone `json:"phones"`
	Type      string          `json:"type"`
}

// Controller drives a conversation against the chat server. It keeps the
// session id sticky across exchanges, prefers the streaming endpoint, and
// falls back to the blocking endpoint when streaming fails. It also owns the
// comparison selection.
type Controller struct {
	http      *http.Client
	baseURL   string
	sessionID string
	logger    log.Logger

	Selection  *SelectionSet
	phoneNames map[string]string // id -> display name, from seen cards
}

// NewController creates a client controller for the server at baseURL.
func NewController(baseURL string, timeout time.Duration, logger log.Logger) *Controller {
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Controller{
		http:       &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
		Selection:  NewSelectionSet(),
		phoneNames: make(map[string]string),
	}
}

// SessionID returns the current sticky session id, empty before the first
// completed exchange.
func (c *Controller) SessionID() string {
	return c.sessionID
}

// Send submits a message. Status lines stream through onStatus as they
// arrive; the final answer is returned. If the streaming transport fails the
// message is retried once on the blocking endpoint.
func (c *Controller) Send(ctx context.Context, message string, onStatus func(string)) (*Exchange, error) {
	ex, err := c.stream(ctx, message, onStatus)
	if err == nil {
		return ex, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	c.logger.Debug("stream failed, falling back to blocking endpoint", "error", err)
	return c.post(ctx, message)
}

// CompareSelected synthesizes a comparison request from the selection. The
// selection is cleared after a successful exchange.
func (c *Controller) CompareSelected(ctx context.Context, onStatus func(string)) (*Exchange, error) {
	ids := c.Selection.IDs()
	if len(ids) < 2 {
		return nil, ErrNothingSelected
	}

	names := make([]string, len(ids))
	for i, id := range ids {
		if name, ok := c.phoneNames[id]; ok {
			names[i] = name
		} else {
			names[i] = id
		}
	}

	message := "Compare " + strings.Join(names, " vs ")
	ex, err := c.Send(ctx, message, onStatus)
	if err != nil {
		return nil, err
	}

	c.Selection.Clear()
	return ex, nil
}

// ClearChat asks the server to drop the session history and resets local
// state. Local state is reset even when the server call fails: the user asked
// for a fresh conversation and gets one either way.
func (c *Controller) ClearChat(ctx context.Context) error {
	var err error
	if c.sessionID != "" {
		err = c.postClear(ctx, c.sessionID)
	}

	c.sessionID = ""
	c.Selection.Clear()
	clear(c.phoneNames)
	return err
}

func (c *Controller) stream(ctx context.Context, message string, onStatus func(string)) (*Exchange, error) {
	q := url.Values{"message": {message}}
	if c.sessionID != "" {
		q.Set("session_id", c.sessionID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/chat/stream?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("opening stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("stream rejected: status %d", resp.StatusCode)
	}

	var decoder sse.Decoder
	buf := make([]byte, 4096)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			events, err := decoder.Feed(buf[:n])
			if err != nil {
				return nil, fmt.Errorf("decoding stream: %w", err)
			}
			for _, raw := range events {
				var e wireEvent
				if err := json.Unmarshal(raw, &e); err != nil {
					return nil, fmt.Errorf("decoding event: %w", err)
				}
				switch e.Type {
				case "status":
					if onStatus != nil {
						onStatus(e.Message)
					}
				case "complete":
					c.noteExchange(e.SessionID, e.Phones)
					return &Exchange{
						Response:     e.Response,
						Phones:       e.Phones,
						ResponseType: e.ResponseType,
					}, nil
				case "error":
					return nil, fmt.Errorf("server error: %s", e.Message)
				}
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				return nil, errors.New("stream ended without a complete event")
			}
			return nil, fmt.Errorf("reading stream: %w", readErr)
		}
	}
}

func (c *Controller) post(ctx context.Context, message string) (*Exchange, error) {
	body, err := json.Marshal(map[string]string{
		"message":    message,
		"session_id": c.sessionID,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("chat failed: status %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}

	var reply chatReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	c.noteExchange(reply.SessionID, reply.Phones)
	return &Exchange{
		Response:     reply.Response,
		Phones:       reply.Phones,
		ResponseType: reply.Type,
	}, nil
}

func (c *Controller) postClear(ctx context.Context, sessionID string) error {
	body, err := json.Marshal(map[string]string{"session_id": sessionID})
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat/clear", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("clear failed: status %d", resp.StatusCode)
	}
	return nil
}

// noteExchange records the session id and the names of seen phones so later
// selections can be phrased by name.
func (c *Controller) noteExchange(sessionID string, phones []catalog.Phone) {
	if sessionID != "" {
		c.sessionID = sessionID
	}
	for _, p := range phones {
		c.phoneNames[p.ID] = p.Name
	}
}
