package ratelimit

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestFixedWindowLimiterEnforcesQuota(t *testing.T) {
	redis := miniredis.RunT(t)
	limiter, err := NewRedisFixedWindowLimiter(redis.Addr(), "", "bookwyrm:ratelimit:login", 2, time.Minute)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	if !limiter.Allow("login|203.0.113.5") {
		t.Fatalf("first attempt should pass")
	}
	if !limiter.Allow("login|203.0.113.5") {
		t.Fatalf("second attempt should pass")
	}
	if limiter.Allow("login|203.0.113.5") {
		t.Fatalf("third attempt should be blocked")
	}
	// Another caller has its own window.
	if !limiter.Allow("login|203.0.113.9") {
		t.Fatalf("a different key must not share the quota")
	}
}

func TestFixedWindowLimiterFailsClosed(t *testing.T) {
	redis := miniredis.RunT(t)
	limiter, err := NewRedisFixedWindowLimiter(redis.Addr(), "", "bookwyrm:ratelimit:login", 5, time.Minute)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	redis.Close()
	if limiter.Allow("login|203.0.113.5") {
		t.Fatalf("limiter must deny when redis is unreachable")
	}
}

func TestFixedWindowLimiterRejectsBadConfig(t *testing.T) {
	if _, err := NewRedisFixedWindowLimiter("", "", "p", 1, time.Minute); err == nil {
		t.Fatalf("expected error for missing redis addr")
	}
	if _, err := NewRedisFixedWindowLimiter("localhost:6379", "", "p", 0, time.Minute); err == nil {
		t.Fatalf("expected error for non-positive limit")
	}
	if _, err := NewRedisFixedWindowLimiter("localhost:6379", "", "p", 1, 0); err == nil {
		t.Fatalf("expected error for non-positive window")
	}
}
