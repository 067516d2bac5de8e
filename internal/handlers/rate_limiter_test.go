package handlers

import (
	"testing"
	"time"
)

func TestUploadLimiterEnforcesWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	limiter := newUploadLimiter(2, time.Minute, func() time.Time { return now })

	if !limiter.Allow("user-1") || !limiter.Allow("user-1") {
		t.Fatal("expected first two uploads to pass")
	}
	if limiter.Allow("user-1") {
		t.Fatal("expected third upload to be rejected")
	}
	if !limiter.Allow("user-2") {
		t.Fatal("expected independent window per user")
	}

	now = now.Add(time.Minute)
	if !limiter.Allow("user-1") {
		t.Fatal("expected window to reset after expiry")
	}
}

func TestUploadLimiterRejectsBlankUser(t *testing.T) {
	limiter := newUploadLimiter(1, time.Minute, nil)
	if limiter.Allow("  ") {
		t.Fatal("expected blank user to be rejected")
	}
}

func TestUploadLimiterNilAdmitsEverything(t *testing.T) {
	var limiter *uploadLimiter
	if !limiter.Allow("user-1") {
		t.Fatal("expected nil limiter to admit uploads")
	}
}

func TestUploadLimiterInvalidConfig(t *testing.T) {
	if newUploadLimiter(0, time.Minute, nil) != nil {
		t.Fatal("expected nil limiter for zero limit")
	}
	if newUploadLimiter(3, 0, nil) != nil {
		t.Fatal("expected nil limiter for zero window")
	}
}
