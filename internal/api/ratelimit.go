package api

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/phonewise/phonewise/internal/log"
)

const (
	rateSweepInterval = 5 * time.Minute
	rateBucketTTL     = 10 * time.Minute
)

// rateLimiter hands out a token bucket per client IP. Buckets idle past
// rateBucketTTL are swept opportunistically from allow, so no background
// goroutine is needed.
type rateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*ipBucket
	limit   rate.Limit // tokens refilled per second
	burst   int
	sweptAt time.Time
}

type ipBucket struct {
	tokens *rate.Limiter
	seen   time.Time
}

func newRateLimiter(rps float64, burst int) *rateLimiter {
	return &rateLimiter{
		buckets: make(map[string]*ipBucket),
		limit:   rate.Limit(rps),
		burst:   burst,
		sweptAt: time.Now(),
	}
}

// allow reports whether ip may proceed, consuming one token. A first-seen ip
// starts with a full burst.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.sweep(now)

	b, ok := rl.buckets[ip]
	if !ok {
		b = &ipBucket{tokens: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[ip] = b
	}
	b.seen = now
	return b.tokens.Allow()
}

// sweep drops buckets not seen within rateBucketTTL. Caller holds rl.mu.
func (rl *rateLimiter) sweep(now time.Time) {
	if now.Sub(rl.sweptAt) < rateSweepInterval {
		return
	}
	for ip, b := range rl.buckets {
		if now.Sub(b.seen) > rateBucketTTL {
			delete(rl.buckets, ip)
		}
	}
	rl.sweptAt = now
}

// rateLimitMiddleware rejects requests from IPs that exhausted their bucket
// with 429 and a Retry-After hint.
func rateLimitMiddleware(rl *rateLimiter, trustProxy bool, logger log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r, trustProxy)
			if !rl.allow(ip) {
				logger.Warn("rate limit exceeded", "ip", ip, "path", r.URL.Path)
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP resolves the address used as the rate-limit key. Proxy headers
// count only when trustProxy is set, and only when they parse as real IPs;
// otherwise the key falls back to the connection's RemoteAddr.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if ip := forwardedIP(r); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// forwardedIP reads the reverse-proxy client headers: X-Real-IP first, then
// the first entry of X-Forwarded-For. Returns "" when neither holds a valid
// IP.
func forwardedIP(r *http.Request) string {
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if ip := net.ParseIP(strings.TrimSpace(xri)); ip != nil {
			return ip.String()
		}
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := xff
		if head, _, ok := strings.Cut(xff, ","); ok {
			first = head
		}
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}
	return ""
}
