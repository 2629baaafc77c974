package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/phonewise/phonewise/internal/catalog"
	"github.com/phonewise/phonewise/internal/log"
	"github.com/phonewise/phonewise/internal/orchestrator"
	"github.com/phonewise/phonewise/internal/session"
	"github.com/phonewise/phonewise/internal/sse"
	"github.com/phonewise/phonewise/internal/telemetry"
)

const maxMessageBytes = 1 << 20 // 1MB request body cap

// chatHandler serves the chat endpoints on top of the orchestrator.
//
// Endpoints:
//   - POST /api/chat        - blocking exchange, final answer only
//   - GET  /api/chat/stream - SSE stream of status events plus the final answer
//   - POST /api/chat/clear  - drop a session's history
type chatHandler struct {
	orchestrator *orchestrator.Orchestrator
	telemetry    *telemetry.Telemetry
	logger       log.Logger
}

// chatRequest is the body of POST /api/chat.
type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

// chatResponse is the blocking endpoint's reply.
type chatResponse struct {
	Response  string          `json:"response"`
	SessionID string          `json:"session_id"`
	Phones    []catalog.Phone `json:"phones"`
	Type      string          `json:"type"`
}

// Streamed event payloads. Every event carries a type discriminator; the
// complete event additionally carries the session id the client should keep.
type statusEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type completeEvent struct {
	Type         string          `json:"type"`
	Response     string          `json:"response"`
	Phones       []catalog.Phone `json:"phones"`
	ResponseType string          `json:"response_type"`
	SessionID    string          `json:"session_id"`
}

type errorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// send handles the blocking chat endpoint. Status events are produced and
// discarded; only the final answer is returned.
func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req chatRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxMessageBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "empty_message", "message cannot be empty")
		return
	}

	ctx, span := h.telemetry.Tracer.Start(r.Context(), "chat.send")
	defer span.End()

	result, err := h.orchestrator.Run(ctx, req.SessionID, req.Message, func(orchestrator.Event) {})
	if err != nil {
		h.recordChat(r, start, "error", 0)
		h.runError(w, req.SessionID, err)
		return
	}
	h.recordChat(r, start, result.ResponseType, result.ToolCalls)

	writeJSON(w, http.StatusOK, chatResponse{
		Response:  result.Response,
		SessionID: result.SessionID,
		Phones:    result.Phones,
		Type:      result.ResponseType,
	})
}

// stream handles the SSE chat endpoint. Parameters arrive as query values so
// EventSource clients can connect without a body.
func (h *chatHandler) stream(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	message := r.URL.Query().Get("message")
	if strings.TrimSpace(message) == "" {
		writeError(w, http.StatusBadRequest, "empty_message", "message cannot be empty")
		return
	}
	sessionID := r.URL.Query().Get("session_id")

	writer, err := sse.NewWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", "streaming not supported")
		return
	}

	ctx, span := h.telemetry.Tracer.Start(r.Context(), "chat.stream")
	defer span.End()

	emit := func(e orchestrator.Event) {
		var payload any
		switch e.Type {
		case orchestrator.EventStatus:
			payload = statusEvent{Type: "status", Message: e.Message}
		case orchestrator.EventComplete:
			payload = completeEvent{
				Type:         "complete",
				Response:     e.Result.Response,
				Phones:       e.Result.Phones,
				ResponseType: e.Result.ResponseType,
				SessionID:    e.Result.SessionID,
			}
		case orchestrator.EventError:
			payload = errorEvent{Type: "error", Message: e.Message}
		default:
			return
		}
		if err := writer.WriteJSON(ctx, payload); err != nil {
			h.logger.Debug("stream write failed", "error", err)
		}
	}

	result, err := h.orchestrator.Run(ctx, sessionID, message, emit)
	if err != nil {
		h.recordChat(r, start, "error", 0)
		if errors.Is(err, session.ErrBusy) {
			// Headers are already out; the busy condition becomes a terminal
			// stream event instead of a status code.
			_ = writer.WriteJSON(ctx, errorEvent{Type: "error", Message: "session is busy, retry shortly"})
			return
		}
		h.logger.Debug("stream aborted", "error", err)
		return
	}
	h.recordChat(r, start, result.ResponseType, result.ToolCalls)
}

// clearRequest is the body of POST /api/chat/clear.
type clearRequest struct {
	SessionID string `json:"session_id"`
}

// clear drops a session's history. The session id comes from the session_id
// query parameter, with a JSON body accepted as an alternative. Unknown or
// missing ids succeed: the client's goal is an empty conversation and an
// unknown id already is one.
func (h *chatHandler) clear(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		var req clearRequest
		r.Body = http.MaxBytesReader(w, r.Body, maxMessageBytes)
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			sessionID = req.SessionID
		}
	}

	h.orchestrator.ClearSession(sessionID)
	writeJSON(w, http.StatusOK, map[string]string{
		"status":     "cleared",
		"session_id": sessionID,
	})
}

func (h *chatHandler) runError(w http.ResponseWriter, sessionID string, err error) {
	if errors.Is(err, session.ErrBusy) {
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusTooManyRequests, "session_busy", "a request is already running for this session")
		return
	}
	h.logger.Error("chat request failed", "session", sessionID, "error", err)
	writeError(w, http.StatusInternalServerError, "chat_failed", "failed to process message")
}

func (h *chatHandler) recordChat(r *http.Request, start time.Time, outcome string, toolCalls int) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	h.telemetry.ChatRequests.Add(r.Context(), 1, attrs)
	h.telemetry.ChatDuration.Record(r.Context(), time.Since(start).Seconds(), attrs)
	if toolCalls > 0 {
		h.telemetry.ToolCalls.Add(r.Context(), int64(toolCalls), attrs)
	}
}
