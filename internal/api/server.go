// Package api exposes the chat service over HTTP: a JSON endpoint for
// single-shot exchanges, an SSE endpoint streaming status updates ahead of the
// final answer, and a history-clearing endpoint. Health probes bypass the
// middleware stack.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/phonewise/phonewise/internal/log"
	"github.com/phonewise/phonewise/internal/orchestrator"
	"github.com/phonewise/phonewise/internal/telemetry"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger       log.Logger
	Orchestrator *orchestrator.Orchestrator // Required
	Telemetry    *telemetry.Telemetry       // Optional: nil disables tracing and metrics
	CORSOrigins  []string                   // Allowed origins for CORS
	TrustProxy   bool                       // Trust X-Real-IP/X-Forwarded-For headers (behind reverse proxy)
	RateRPS      float64                    // Tokens refilled per second per IP (0 = default 5)
	RateBurst    int                        // Rate limiter burst size per IP (0 = default 10)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Orchestrator == nil {
		return nil, errors.New("orchestrator is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	tel := cfg.Telemetry
	if tel == nil {
		var err error
		tel, err = telemetry.Init(context.Background(), telemetry.Config{Enabled: false})
		if err != nil {
			return nil, err
		}
	}

	ch := &chatHandler{
		orchestrator: cfg.Orchestrator,
		telemetry:    tel,
		logger:       logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", ch.send)
	mux.HandleFunc("GET /api/chat/stream", ch.stream)
	mux.HandleFunc("POST /api/chat/clear", ch.clear)

	rps := cfg.RateRPS
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 10
	}
	rl := newRateLimiter(rps, burst)

	// Build middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → RateLimit → Routes
	// RequestID must be before Logging so request_id is available in log attributes.
	// CORS must be before RateLimit so preflight OPTIONS gets proper CORS headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Use a top-level mux to separate health probes from the middleware stack
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.HandleFunc("GET /{$}", root)
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
