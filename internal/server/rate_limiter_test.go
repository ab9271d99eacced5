package server

import (
	"testing"
	"time"
)

func TestRateLimiterAllowsWithinLimit(t *testing.T) {
	limiter := newRateLimiter(3, time.Minute)
	for i := 0; i < 3; i++ {
		if !limiter.Allow("agent-1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if limiter.Allow("agent-1") {
		t.Fatalf("request beyond the limit should be denied")
	}
}

func TestRateLimiterIsolatesKeys(t *testing.T) {
	limiter := newRateLimiter(1, time.Minute)
	if !limiter.Allow("agent-1") {
		t.Fatalf("agent-1 should be allowed")
	}
	if !limiter.Allow("agent-2") {
		t.Fatalf("agent-2 should not share agent-1's window")
	}
}

func TestRateLimiterRejectsEmptyKey(t *testing.T) {
	limiter := newRateLimiter(1, time.Minute)
	if limiter.Allow("") {
		t.Fatalf("empty key should be denied")
	}
}

func TestRateLimiterResetsAfterWindow(t *testing.T) {
	limiter := newRateLimiter(1, time.Millisecond)
	if !limiter.Allow("agent-1") {
		t.Fatalf("first request should be allowed")
	}
	time.Sleep(5 * time.Millisecond)
	if !limiter.Allow("agent-1") {
		t.Fatalf("window should have reset")
	}
}
