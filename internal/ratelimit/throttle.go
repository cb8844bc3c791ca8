package ratelimit

import (
	"sync"
	"time"
)

const (
	DefaultCommandLimit  = 5
	DefaultCommandWindow = 60 * time.Second
)

// Throttle is an in-memory sliding window keyed by Discord user ID. It is
// reset on restart.
type Throttle struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	requests map[string][]time.Time
	now      func() time.Time
}

func NewThrottle(limit int, window time.Duration) *Throttle {
	return &Throttle{
		limit:    limit,
		window:   window,
		requests: make(map[string][]time.Time),
		now:      time.Now,
	}
}

func (t *Throttle) Allow(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	cutoff := now.Add(-t.window)

	timestamps := t.requests[userID]
	pruned := timestamps[:0]
	for _, ts := range timestamps {
		if ts.After(cutoff) {
			pruned = append(pruned, ts)
		}
	}

	if len(pruned) >= t.limit {
		t.requests[userID] = pruned
		return false
	}

	t.requests[userID] = append(pruned, now)
	return true
}
