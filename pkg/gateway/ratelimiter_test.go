package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_ConcurrentCap(t *testing.T) {
	l := &ClientRateLimiter{requestsPerMinute: 100, maxConcurrent: 1}

	allowed, _ := l.CheckRequestAllowed()
	assert.True(t, allowed)
	l.RecordRequestStart()

	allowed, reason := l.CheckRequestAllowed()
	assert.False(t, allowed)
	assert.Equal(t, "too many concurrent requests", reason)

	l.RecordRequestEnd()
	allowed, _ = l.CheckRequestAllowed()
	assert.True(t, allowed)
}

func TestRateLimiter_WindowLimit(t *testing.T) {
	l := &ClientRateLimiter{requestsPerMinute: 2, maxConcurrent: 10}

	for i := 0; i < 2; i++ {
		l.RecordRequestStart()
		l.RecordRequestEnd()
	}

	allowed, reason := l.CheckRequestAllowed()
	assert.False(t, allowed)
	assert.Equal(t, "rate limit exceeded", reason)
}

func TestRateLimiter_PruneExpiresOldEntries(t *testing.T) {
	l := &ClientRateLimiter{requestsPerMinute: 1, maxConcurrent: 10}
	l.window = []time.Time{time.Now().Add(-2 * time.Minute)}

	allowed, _ := l.CheckRequestAllowed()
	assert.True(t, allowed)
	assert.Empty(t, l.window)
}

func TestRateLimiter_EndWithoutStart(t *testing.T) {
	l := NewClientRateLimiter()
	l.RecordRequestEnd() // must not go negative
	assert.Equal(t, 0, l.inFlight)
}
