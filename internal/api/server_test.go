package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/phonewise/phonewise/internal/catalog"
	"github.com/phonewise/phonewise/internal/collaborator"
	"github.com/phonewise/phonewise/internal/log"
	"github.com/phonewise/phonewise/internal/orchestrator"
	"github.com/phonewise/phonewise/internal/phonetool"
	"github.com/phonewise/phonewise/internal/session"
)

// newTestServer builds a server around a scripted collaborator.
func newTestServer(t *testing.T, responses ...collaborator.Response) (*Server, *session.Store) {
	t.Helper()

	store, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog.Default() failed: %v", err)
	}
	tools, err := phonetool.NewRegistry(store, log.NewNop())
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	sessions := session.NewStore(session.DefaultMaxPairs, log.NewNop())
	orch := orchestrator.New(sessions, tools, store, collaborator.NewScript(responses...), log.NewNop(), orchestrator.Config{})

	srv, err := NewServer(ServerConfig{
		Logger:       log.NewNop(),
		Orchestrator: orch,
		CORSOrigins:  []string{"http://localhost:5173"},
	})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	return srv, sessions
}

func TestNewServerRequiresOrchestrator(t *testing.T) {
	if _, err := NewServer(ServerConfig{}); err == nil {
		t.Fatal("expected error for missing orchestrator")
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
}

func TestRootEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("root status = %d", rec.Code)
	}
}

func TestRequestIDAssigned(t *testing.T) {
	handler := requestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	got := rec.Header().Get("X-Request-ID")
	if got == "" {
		t.Fatal("X-Request-ID header not set")
	}
	if _, err := uuid.Parse(got); err != nil {
		t.Errorf("X-Request-ID = %q, not a valid UUID", got)
	}
}

func TestRequestIDReusesValid(t *testing.T) {
	handler := requestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	want := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", want)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != want {
		t.Errorf("X-Request-ID = %q, want %q", got, want)
	}
}

func TestRequestIDRejectsInvalid(t *testing.T) {
	handler := requestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "not-a-uuid")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	got := rec.Header().Get("X-Request-ID")
	if got == "not-a-uuid" {
		t.Error("invalid X-Request-ID should be replaced")
	}
	if _, err := uuid.Parse(got); err != nil {
		t.Errorf("X-Request-ID = %q, not a valid UUID", got)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := recoveryMiddleware(log.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestCORSAllowedOrigin(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "http://localhost:5173")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("Allow-Origin = %q", got)
	}
}

func TestCORSUnknownOrigin(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "http://evil.example")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unknown origin must not be allowed, got %q", got)
	}
}

func TestRateLimiterAllowsThenBlocks(t *testing.T) {
	rl := newRateLimiter(0.001, 2)

	if !rl.allow("10.0.0.1") {
		t.Fatal("first request should pass")
	}
	if !rl.allow("10.0.0.1") {
		t.Fatal("second request within burst should pass")
	}
	if rl.allow("10.0.0.1") {
		t.Error("request beyond burst should be blocked")
	}
	if !rl.allow("10.0.0.2") {
		t.Error("different IP should have its own bucket")
	}
}

func TestRateLimiterSweepsStaleBuckets(t *testing.T) {
	rl := newRateLimiter(1, 1)

	rl.allow("10.0.0.1")
	rl.allow("10.0.0.2")

	// Age one bucket past the TTL and force the next allow to sweep.
	rl.buckets["10.0.0.1"].seen = time.Now().Add(-2 * rateBucketTTL)
	rl.sweptAt = time.Now().Add(-2 * rateSweepInterval)

	rl.allow("10.0.0.3")

	if _, ok := rl.buckets["10.0.0.1"]; ok {
		t.Error("stale bucket should have been swept")
	}
	if _, ok := rl.buckets["10.0.0.2"]; !ok {
		t.Error("fresh bucket must survive the sweep")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xRealIP    string
		xff        string
		trustProxy bool
		want       string
	}{
		{"remote addr only", "192.0.2.1:1234", "", "", false, "192.0.2.1"},
		{"headers ignored without trust", "192.0.2.1:1234", "203.0.113.9", "", false, "192.0.2.1"},
		{"x-real-ip trusted", "192.0.2.1:1234", "203.0.113.9", "", true, "203.0.113.9"},
		{"xff first ip", "192.0.2.1:1234", "", "203.0.113.7, 10.0.0.1", true, "203.0.113.7"},
		{"invalid header falls back", "192.0.2.1:1234", "not-an-ip", "", true, "192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xRealIP != "" {
				req.Header.Set("X-Real-IP", tt.xRealIP)
			}
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := clientIP(req, tt.trustProxy); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRateLimitReturns429(t *testing.T) {
	store, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog.Default() failed: %v", err)
	}
	tools, err := phonetool.NewRegistry(store, log.NewNop())
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	sessions := session.NewStore(session.DefaultMaxPairs, log.NewNop())
	orch := orchestrator.New(sessions, tools, store, collaborator.NewScript(), log.NewNop(), orchestrator.Config{})

	srv, err := NewServer(ServerConfig{
		Logger:       log.NewNop(),
		Orchestrator: orch,
		RateRPS:      0.001,
		RateBurst:    1,
	})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/chat/stream?message=hi", nil)
	req.RemoteAddr = "192.0.2.5:1111"

	first := httptest.NewRecorder()
	srv.Handler().ServeHTTP(first, req)
	if first.Code == http.StatusTooManyRequests {
		t.Fatal("first request should not be rate limited")
	}

	second := httptest.NewRecorder()
	srv.Handler().ServeHTTP(second, req.Clone(req.Context()))
	if second.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", second.Code)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Error("429 response should carry Retry-After")
	}
}
