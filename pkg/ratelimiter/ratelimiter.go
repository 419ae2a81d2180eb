package ratelimiter

import (
	"sync"
	"time"
)

// RequestCounter tracks request count and reset time for a client
type RequestCounter struct {
	Count     int
	ResetTime time.Time
}

// RateLimiter implements per-client fixed-window rate limiting with
// in-memory tracking. This guards the HTTP surface; the upstream chain
// providers are protected separately by the batch processor's gate.
type RateLimiter struct {
	requests map[string]*RequestCounter
	mutex    sync.RWMutex
	limit    int
	window   time.Duration
	stopCh   chan struct{}
}

// New creates a new RateLimiter with the specified limit and window, and
// starts a janitor that sweeps expired counters.
func New(limit int, window time.Duration, cleanupInterval time.Duration) *RateLimiter {
	rl := &RateLimiter{
		requests: make(map[string]*RequestCounter),
		limit:    limit,
		window:   window,
		stopCh:   make(chan struct{}),
	}

	go rl.janitor(cleanupInterval)

	return rl
}

// IsAllowed checks if the client is allowed to make a request.
// Returns true if allowed, false if the rate limit is exceeded.
func (rl *RateLimiter) IsAllowed(client string) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := time.Now()

	counter, exists := rl.requests[client]
	if !exists {
		rl.requests[client] = &RequestCounter{
			Count:     1,
			ResetTime: now.Add(rl.window),
		}
		return true
	}

	if now.After(counter.ResetTime) {
		counter.Count = 1
		counter.ResetTime = now.Add(rl.window)
		return true
	}

	if counter.Count >= rl.limit {
		return false
	}

	counter.Count++
	return true
}

// GetRequestInfo returns the current request count and reset time for a client
func (rl *RateLimiter) GetRequestInfo(client string) (count int, resetTime time.Time) {
	rl.mutex.RLock()
	defer rl.mutex.RUnlock()

	counter, exists := rl.requests[client]
	if !exists || time.Now().After(counter.ResetTime) {
		return 0, time.Now().Add(rl.window)
	}

	return counter.Count, counter.ResetTime
}

// janitor periodically removes expired entries to prevent memory leaks
func (rl *RateLimiter) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.removeExpired()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *RateLimiter) removeExpired() {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := time.Now()
	for client, counter := range rl.requests {
		if now.After(counter.ResetTime) {
			delete(rl.requests, client)
		}
	}
}

// Stop stops the janitor goroutine
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}
