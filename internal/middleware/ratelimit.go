package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RateLimitConfig holds configuration for a specific rate limit
type RateLimitConfig struct {
	Name   string
	Limit  int
	Window time.Duration
	KeyFn  func(*http.Request) string
}

// RateLimit creates a rate limiting middleware. It fails open when the
// counter is unavailable.
func (m *Middleware) RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !m.cfg.Security.RateLimiting.Enabled || m.counter == nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			key := fmt.Sprintf("ratelimit:%s:%s", cfg.Name, cfg.KeyFn(r))

			count, ttl, err := m.counter.Hit(ctx, key, cfg.Window)
			if err != nil {
				m.log.Error().Err(err).Msg("failed to increment rate limit counter")
				next.ServeHTTP(w, r)
				return
			}
			if ttl < 0 {
				ttl = cfg.Window
			}
			resetTime := time.Now().Add(ttl).Unix()

			// Set rate limit headers
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(0, cfg.Limit-int(count))))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetTime, 10))

			// Check if limit exceeded
			if int(count) > cfg.Limit {
				w.Header().Set("Retry-After", strconv.FormatInt(int64(ttl.Seconds()), 10))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":{"code":"rate_limit_exceeded","message":"Too many requests. Please try again later."}}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the client IP address, used as the rate limit key. The
// X-Forwarded-For header is read only when server.trust_proxy is set, and
// then only its right-most entry, the one the proxy appended.
func (m *Middleware) ClientIP(r *http.Request) string {
	if m.cfg.Server.TrustProxy {
		if forwarded := r.Header.Values("X-Forwarded-For"); len(forwarded) > 0 {
			last := forwarded[len(forwarded)-1]
			if i := strings.LastIndexByte(last, ','); i >= 0 {
				last = last[i+1:]
			}
			if ip := strings.TrimSpace(last); ip != "" {
				return ip
			}
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
