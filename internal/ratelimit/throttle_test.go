package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThrottleAllowsUpToLimit(t *testing.T) {
	th := NewThrottle(DefaultCommandLimit, DefaultCommandWindow)
	for i := range DefaultCommandLimit {
		require.True(t, th.Allow("user-1"), "request %d should be allowed", i+1)
	}
	assert.False(t, th.Allow("user-1"), "request beyond limit should be denied")
}

func TestThrottleIsolatesUsers(t *testing.T) {
	th := NewThrottle(DefaultCommandLimit, DefaultCommandWindow)
	for range DefaultCommandLimit {
		th.Allow("user-1")
	}
	assert.False(t, th.Allow("user-1"))
	assert.True(t, th.Allow("user-2"))
}

func TestThrottleResetsAfterWindow(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	th := NewThrottle(2, time.Minute)
	th.now = func() time.Time { return now }

	require.True(t, th.Allow("u"))
	require.True(t, th.Allow("u"))
	require.False(t, th.Allow("u"))

	now = now.Add(time.Minute + time.Second)
	assert.True(t, th.Allow("u"))
}

func TestThrottleConcurrentAccess(t *testing.T) {
	th := NewThrottle(DefaultCommandLimit, DefaultCommandWindow)
	var wg sync.WaitGroup
	allowed := make([]int, 10)

	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			userID := fmt.Sprintf("user-%d", i)
			for range DefaultCommandLimit + 2 {
				if th.Allow(userID) {
					allowed[i]++
				}
			}
		}()
	}
	wg.Wait()

	for i, count := range allowed {
		assert.Equal(t, DefaultCommandLimit, count, "user-%d", i)
	}
}
