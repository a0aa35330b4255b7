package gateway

import (
	"sync"
	"time"
)

const (
	defaultRequestsPerMinute = 60
	defaultMaxConcurrent     = 10
)

// ClientRateLimiter bounds one client's request rate with a sliding
// one-minute window plus a cap on in-flight requests.
type ClientRateLimiter struct {
	mu                sync.Mutex
	requestsPerMinute int
	maxConcurrent     int
	window            []time.Time
	inFlight          int
}

func NewClientRateLimiter() *ClientRateLimiter {
	return &ClientRateLimiter{
		requestsPerMinute: defaultRequestsPerMinute,
		maxConcurrent:     defaultMaxConcurrent,
	}
}

// CheckRequestAllowed reports whether another request fits under the limits,
// with a reason when it does not.
func (l *ClientRateLimiter) CheckRequestAllowed() (bool, string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.inFlight >= l.maxConcurrent {
		return false, "too many concurrent requests"
	}
	l.prune(time.Now())
	if len(l.window) >= l.requestsPerMinute {
		return false, "rate limit exceeded"
	}
	return true, ""
}

// RecordRequestStart counts a request against the window and the in-flight
// cap.
func (l *ClientRateLimiter) RecordRequestStart() {
	l.mu.Lock()
	l.window = append(l.window, time.Now())
	l.inFlight++
	l.mu.Unlock()
}

// RecordRequestEnd releases an in-flight slot.
func (l *ClientRateLimiter) RecordRequestEnd() {
	l.mu.Lock()
	if l.inFlight > 0 {
		l.inFlight--
	}
	l.mu.Unlock()
}

// prune drops window entries older than one minute. Caller holds l.mu; the
// window is append-only so it stays sorted.
func (l *ClientRateLimiter) prune(now time.Time) {
	cutoff := now.Add(-time.Minute)
	i := 0
	for i < len(l.window) && !l.window[i].After(cutoff) {
		i++
	}
	l.window = l.window[i:]
}
