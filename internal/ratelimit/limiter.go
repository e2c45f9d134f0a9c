// Package ratelimit provides per-key token bucket rate limiting for MCP tools.
package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter keeps one token bucket per key, each with the same rate and
// burst. It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	rate    rate.Limit
	burst   int
	nowFunc func() time.Time // injectable clock for testing
}

// NewLimiter creates a rate limiter with the given rate (tokens/sec) and burst size.
// The burst size also serves as the initial number of tokens available.
func NewLimiter(perSecond float64, burst int) *Limiter {
	return &Limiter{
		buckets: make(map[string]*rate.Limiter),
		rate:    rate.Limit(perSecond),
		burst:   burst,
		nowFunc: time.Now,
	}
}

// Allow reports whether a request for key may proceed now.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(l.rate, l.burst)
		l.buckets[key] = b
	}
	now := l.nowFunc()
	l.mu.Unlock()
	return b.AllowN(now, 1)
}

// Burst returns the configured burst size.
func (l *Limiter) Burst() int { return l.burst }

// ToolLimiters maps tool names to their rate limiters.
type ToolLimiters map[string]*Limiter

// NewToolLimiters creates the default set of per-tool rate limiters.
// A run may simulate hundreds of peers, so it gets the tightest budget.
func NewToolLimiters() ToolLimiters {
	return ToolLimiters{
		"eigentrust_run":   NewLimiter(10.0/60.0, 3), // 10/minute, burst 3
		"eigentrust_info":  NewLimiter(1.0, 10),      // 60/minute, burst 10
		"eigentrust_list":  NewLimiter(1.0, 10),      // 60/minute, burst 10
		"eigentrust_graph": NewLimiter(30.0/60.0, 5), // 30/minute, burst 5
	}
}

// CheckLimit checks the rate limit for a given tool name.
// Returns nil if allowed, or an error if rate limited.
// Tools without a configured limiter are always allowed.
func CheckLimit(limiters ToolLimiters, toolName string) error {
	limiter, ok := limiters[toolName]
	if !ok {
		return nil
	}
	if !limiter.Allow(toolName) {
		return fmt.Errorf("rate limit exceeded for %s, please try again shortly", toolName)
	}
	return nil
}
