package middleware

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/cyclopcam/logs"

	"github.com/technosupport/ts-vms-es/internal/ratelimit"
)

type RateLimitMiddleware struct {
	limiter *ratelimit.Limiter
	global  ratelimit.LimitConfig
	log     logs.Log
}

func NewRateLimitMiddleware(l *ratelimit.Limiter, global ratelimit.LimitConfig, log logs.Log) *RateLimitMiddleware {
	return &RateLimitMiddleware{limiter: l, global: global, log: log}
}

// GlobalLimiter applies the per-IP limit. chimiddleware.RealIP is expected
// to have rewritten RemoteAddr from X-Forwarded-For already.
// Redis failures never block traffic.
func (m *RateLimitMiddleware) GlobalLimiter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := fmt.Sprintf("rl:ip:%s", m.limiter.HashIP(clientIP(r)))

		decision, err := m.limiter.Allow(r.Context(), key, m.global)
		if errors.Is(err, ratelimit.ErrRedisUnavailable) {
			m.log.Warnf("RateLimit Redis error, failing open: %v", err)
			next.ServeHTTP(w, r)
			return
		} else if err != nil {
			m.log.Errorf("RateLimit error: %v", err)
			next.ServeHTTP(w, r)
			return
		}

		m.writeRateLimitHeaders(w, decision)
		if !decision.Allowed {
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *RateLimitMiddleware) writeRateLimitHeaders(w http.ResponseWriter, d *ratelimit.Decision) {
	if d.Limit <= 0 {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.Reset.Unix(), 10))
	if !d.Allowed {
		w.Header().Set("Retry-After", strconv.Itoa(d.RetryAfter))
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
