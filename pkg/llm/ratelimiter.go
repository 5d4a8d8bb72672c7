package llm

import (
	"sync"
	"time"
)

// providerLimiter tracks call timestamps for one provider within a rolling
// one-hour window. A single mutex guards both the slice and the cap so
// Allow/Record can never race against each other for the same provider.
type providerLimiter struct {
	mu        sync.Mutex
	limit     int
	calls     []time.Time
	nowFunc   func() time.Time
}

func newProviderLimiter(limit int) *providerLimiter {
	return &providerLimiter{limit: limit, nowFunc: time.Now}
}

// Allow reports whether another call is permitted right now, and if so
// records it. Expired entries (older than one hour) are pruned first so
// the window actually rolls rather than accumulating forever.
func (l *providerLimiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	cutoff := now.Add(-time.Hour)

	kept := l.calls[:0]
	for _, t := range l.calls {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	l.calls = kept

	if l.limit > 0 && len(l.calls) >= l.limit {
		return false
	}

	l.calls = append(l.calls, now)
	return true
}

// Remaining reports how many calls are left in the current window.
func (l *providerLimiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	cutoff := now.Add(-time.Hour)
	count := 0
	for _, t := range l.calls {
		if t.After(cutoff) {
			count++
		}
	}
	remaining := l.limit - count
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RetryAfter reports how long until the oldest call in the current window
// ages out and a new call would be permitted again. Returns 0 if the window
// isn't currently exhausted.
func (l *providerLimiter) RetryAfter() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.limit <= 0 || len(l.calls) < l.limit {
		return 0
	}
	resetAt := l.calls[0].Add(time.Hour)
	now := l.nowFunc()
	if resetAt.Before(now) {
		return 0
	}
	return resetAt.Sub(now)
}

// RateLimiter enforces a rolling one-hour call cap per provider slot
// (keyed by provider ID), matching the per-vendor hourly budgets in
// models.ProviderConfig.RateLimitPerHour.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*providerLimiter
}

// NewRateLimiter creates an empty limiter. A provider is capped only after
// Register; Allow lets a provider that was never registered through.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{limiters: make(map[string]*providerLimiter)}
}

// Register sets (or replaces) the hourly cap for a provider slot.
func (r *RateLimiter) Register(providerID string, limit int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiters[providerID] = newProviderLimiter(limit)
}

// Allow reports whether a call against providerID is permitted under its
// configured hourly cap, recording the call if so. An unregistered
// provider is always allowed (no cap configured).
func (r *RateLimiter) Allow(providerID string) bool {
	r.mu.Lock()
	l, ok := r.limiters[providerID]
	r.mu.Unlock()
	if !ok {
		return true
	}
	return l.Allow()
}

// Remaining reports the remaining budget for providerID in the current
// window, or -1 if the provider has no registered cap.
func (r *RateLimiter) Remaining(providerID string) int {
	r.mu.Lock()
	l, ok := r.limiters[providerID]
	r.mu.Unlock()
	if !ok {
		return -1
	}
	return l.Remaining()
}

// RetryAfter reports how long a caller should wait before providerID's
// window has room again, or 0 if the provider has no registered cap or
// isn't currently exhausted.
func (r *RateLimiter) RetryAfter(providerID string) time.Duration {
	r.mu.Lock()
	l, ok := r.limiters[providerID]
	r.mu.Unlock()
	if !ok {
		return 0
	}
	return l.RetryAfter()
}
