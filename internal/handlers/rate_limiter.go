package handlers

import (
	"strings"
	"sync"
	"time"
)

// uploadLimiter throttles receipt uploads per user. A fixed window keeps the
// bookkeeping cheap; burst precision is not worth a sliding log here.
type uploadLimiter struct {
	limit  int
	window time.Duration
	clock  func() time.Time

	mu      sync.Mutex
	windows map[string]uploadWindow
}

type uploadWindow struct {
	used    int
	resetAt time.Time
}

func newUploadLimiter(limit int, window time.Duration, clock func() time.Time) *uploadLimiter {
	if limit <= 0 || window <= 0 {
		return nil
	}
	if clock == nil {
		clock = time.Now
	}
	return &uploadLimiter{
		limit:   limit,
		window:  window,
		clock:   clock,
		windows: make(map[string]uploadWindow),
	}
}

// Allow records one upload against the user's current window and reports
// whether it fits. A nil limiter admits everything.
func (l *uploadLimiter) Allow(userID string) bool {
	if l == nil {
		return true
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return false
	}

	now := l.clock()
	l.mu.Lock()
	defer l.mu.Unlock()

	win, ok := l.windows[userID]
	if !ok || !now.Before(win.resetAt) {
		l.dropStaleLocked(now)
		l.windows[userID] = uploadWindow{used: 1, resetAt: now.Add(l.window)}
		return true
	}
	if win.used >= l.limit {
		return false
	}
	win.used++
	l.windows[userID] = win
	return true
}

func (l *uploadLimiter) dropStaleLocked(now time.Time) {
	for key, win := range l.windows {
		if !now.Before(win.resetAt) {
			delete(l.windows, key)
		}
	}
}
