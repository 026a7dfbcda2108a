package httpapi

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/r3e-labs/ruleengine/pkg/config"
)

var errRateLimited = errors.New("rate limit exceeded")

// rateLimiter hands out one token-bucket limiter per client IP, the same
// per-key scheme as the teacher's middleware.RateLimiter, sized for the
// mailbox round-trip this façade fronts rather than an upstream service
// call. RequestsPerSecond <= 0 disables limiting.
type rateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func newRateLimiter(cfg config.RateLimitConfig) *rateLimiter {
	if cfg.RequestsPerSecond <= 0 {
		return nil
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = int(cfg.RequestsPerSecond)
		if burst <= 0 {
			burst = 1
		}
	}
	return &rateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(cfg.RequestsPerSecond),
		burst:    burst,
	}
}

func (rl *rateLimiter) allow(key string) bool {
	rl.mu.Lock()
	limiter, ok := rl.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[key] = limiter
	}
	rl.mu.Unlock()
	return limiter.Allow()
}

// wrapWithRateLimit rejects with 429 once a client IP exceeds its bucket.
// A nil limiter (rate limiting disabled) is a pass-through.
func wrapWithRateLimit(rl *rateLimiter, next http.Handler) http.Handler {
	if rl == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(clientIP(r)) {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, errRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP mirrors the teacher's httputil.ClientIP: prefer a forwarded
// header, but only once the immediate peer looks like a local proxy.
func clientIP(r *http.Request) string {
	remote := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(remote); err == nil {
		remote = host
	}
	parsed := net.ParseIP(remote)
	trustForwarded := parsed != nil && (parsed.IsPrivate() || parsed.IsLoopback() || parsed.IsLinkLocalUnicast())
	if trustForwarded {
		if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
			if parts := strings.Split(xff, ","); len(parts) > 0 {
				if first := strings.TrimSpace(parts[0]); first != "" {
					return first
				}
			}
		}
	}
	if remote == "" {
		return "unknown"
	}
	return remote
}
