package hub

import (
	"sync"
	"time"
)

// RateLimiter tracks each user's last accepted send. State is in memory
// only; a restart loses it, which is acceptable for an anti-spam heuristic.
type RateLimiter struct {
	mu       sync.Mutex
	lastSent map[string]time.Time
}

// NewRateLimiter creates an empty rate limiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		lastSent: make(map[string]time.Time),
	}
}

// Allow reports whether the user may send under the given per-message
// interval. It does not record the send; callers Touch only after the
// message has passed every other check and been persisted.
func (rl *RateLimiter) Allow(userID string, rateLimitSec int, now time.Time) bool {
	if rateLimitSec <= 0 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	last, exists := rl.lastSent[userID]
	if !exists {
		return true
	}
	return now.Sub(last) >= time.Duration(rateLimitSec)*time.Second
}

// Touch records an accepted send.
func (rl *RateLimiter) Touch(userID string, now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.lastSent[userID] = now
}

// Cleanup drops entries idle longer than maxIdle to keep the map bounded.
func (rl *RateLimiter) Cleanup(now time.Time, maxIdle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for userID, last := range rl.lastSent {
		if now.Sub(last) > maxIdle {
			delete(rl.lastSent, userID)
		}
	}
}
