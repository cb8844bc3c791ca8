// Package ratelimit holds the bot's two sliding-window limiters: the
// store-backed per-account pin quota and the in-memory per-user command
// throttle.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jusunglee/mjpin/internal/store"
)

const (
	DefaultPinLimit  = 100
	DefaultPinWindow = 12 * time.Hour
)

// PinLimiter tracks pin events per Pinterest account under the pin_counts
// key. Each account maps to an insertion-ordered list of millisecond
// timestamps. Expired entries are dropped only when the account is written.
//
// Checking and recording are separate calls. Two concurrent pins for the same
// account can both pass the check. Records are serialized within the process,
// since every account shares one document.
type PinLimiter struct {
	store  store.Store
	mu     sync.Mutex
	limit  int
	window time.Duration
}

func NewPinLimiter(s store.Store, limit int, window time.Duration) *PinLimiter {
	if limit <= 0 {
		limit = DefaultPinLimit
	}
	if window <= 0 {
		window = DefaultPinWindow
	}
	return &PinLimiter{store: s, limit: limit, window: window}
}

func (l *PinLimiter) Limit() int {
	return l.limit
}

func (l *PinLimiter) Window() time.Duration {
	return l.window
}

// live reports whether ts is inside the window ending at now. An event at
// exactly now-window is outside.
func (l *PinLimiter) live(ts, now int64) bool {
	return now-ts < l.window.Milliseconds()
}

func (l *PinLimiter) load(ctx context.Context) (map[string][]int64, error) {
	counts := make(map[string][]int64)
	if err := store.ReadJSON(ctx, l.store, store.KeyPinCounts, &counts); err != nil {
		return nil, err
	}
	if counts == nil {
		// a stored null
		counts = make(map[string][]int64)
	}
	return counts, nil
}

// RecentCount returns how many pins accountID made in the window ending at
// now. It never writes.
func (l *PinLimiter) RecentCount(ctx context.Context, accountID string, now time.Time) (int, error) {
	counts, err := l.load(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading pin counts: %w", err)
	}

	nowMs := now.UnixMilli()
	n := 0
	for _, ts := range counts[accountID] {
		if l.live(ts, nowMs) {
			n++
		}
	}
	return n, nil
}

// Allowed reports whether accountID may pin at now, along with the count it
// was decided on.
func (l *PinLimiter) Allowed(ctx context.Context, accountID string, now time.Time) (bool, int, error) {
	n, err := l.RecentCount(ctx, accountID, now)
	if err != nil {
		return false, 0, err
	}
	return n < l.limit, n, nil
}

// Record appends now to accountID's history, dropping entries that have left
// the window. Other accounts are written back untouched.
func (l *PinLimiter) Record(ctx context.Context, accountID string, now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	counts, err := l.load(ctx)
	if err != nil {
		return fmt.Errorf("loading pin counts: %w", err)
	}

	nowMs := now.UnixMilli()
	timestamps := counts[accountID]
	pruned := make([]int64, 0, len(timestamps)+1)
	for _, ts := range timestamps {
		if l.live(ts, nowMs) {
			pruned = append(pruned, ts)
		}
	}
	counts[accountID] = append(pruned, nowMs)

	if err := store.WriteJSON(ctx, l.store, store.KeyPinCounts, counts); err != nil {
		return fmt.Errorf("saving pin counts: %w", err)
	}
	return nil
}
