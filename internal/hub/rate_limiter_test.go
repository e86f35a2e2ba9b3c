package hub

import (
	"testing"
	"time"
)

func TestRateLimiter_AllowAndTouch(t *testing.T) {
	rl := NewRateLimiter()
	now := time.Now()

	if !rl.Allow("u1", 5, now) {
		t.Error("First send should always be allowed")
	}

	rl.Touch("u1", now)

	if rl.Allow("u1", 5, now.Add(2*time.Second)) {
		t.Error("Send inside the interval should be rejected")
	}
	if !rl.Allow("u1", 5, now.Add(5*time.Second)) {
		t.Error("Send exactly at the interval boundary should be allowed")
	}

	// Other users are unaffected.
	if !rl.Allow("u2", 5, now.Add(time.Second)) {
		t.Error("Limiter state must be per-user")
	}
}

func TestRateLimiter_AllowDoesNotRecord(t *testing.T) {
	rl := NewRateLimiter()
	now := time.Now()

	rl.Touch("u1", now)

	// Rejected attempts must not extend the window.
	rl.Allow("u1", 5, now.Add(time.Second))
	rl.Allow("u1", 5, now.Add(2*time.Second))

	if !rl.Allow("u1", 5, now.Add(5*time.Second)) {
		t.Error("Rejected attempts should not push the next allowed send out")
	}
}

func TestRateLimiter_ZeroIntervalNeverLimits(t *testing.T) {
	rl := NewRateLimiter()
	now := time.Now()

	rl.Touch("u1", now)

	if !rl.Allow("u1", 0, now) {
		t.Error("Zero interval should always allow")
	}
	if !rl.Allow("u1", -1, now) {
		t.Error("Negative interval should always allow")
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter()
	now := time.Now()

	rl.Touch("idle", now.Add(-2*time.Hour))
	rl.Touch("active", now.Add(-time.Minute))

	rl.Cleanup(now, time.Hour)

	rl.mu.Lock()
	_, idleKept := rl.lastSent["idle"]
	_, activeKept := rl.lastSent["active"]
	rl.mu.Unlock()

	if idleKept {
		t.Error("Idle entry should have been dropped")
	}
	if !activeKept {
		t.Error("Active entry should have been kept")
	}
}
