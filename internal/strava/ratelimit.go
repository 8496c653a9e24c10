package strava

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Strava rate limits:
// - 100 requests per 15 minutes
// - 1000 requests per day

// RateLimiter tracks Strava API quota across every client in the
// process. One limiter is shared by all per-athlete clients because
// the quota belongs to the application, not the athlete.
type RateLimiter struct {
	mu sync.Mutex

	shortLimit    int
	shortUsage    int
	shortResetsAt time.Time

	dailyLimit    int
	dailyUsage    int
	dailyResetsAt time.Time

	// Minimum interval between requests
	minInterval time.Duration
	lastRequest time.Time
}

// NewRateLimiter creates a new rate limiter with Strava's limits
func NewRateLimiter() *RateLimiter {
	now := time.Now()
	return &RateLimiter{
		shortLimit:    100,
		shortResetsAt: now.Add(15 * time.Minute),
		dailyLimit:    1000,
		dailyResetsAt: now.Truncate(24 * time.Hour).Add(24 * time.Hour),
		minInterval:   150 * time.Millisecond,
	}
}

// Wait blocks until a request can be made without exceeding rate limits
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()

	// Reset windows if expired
	if now.After(r.shortResetsAt) {
		r.shortUsage = 0
		r.shortResetsAt = now.Add(15 * time.Minute)
	}
	if now.After(r.dailyResetsAt) {
		r.dailyUsage = 0
		r.dailyResetsAt = now.Truncate(24 * time.Hour).Add(24 * time.Hour)
	}

	if r.shortUsage >= r.shortLimit {
		if err := r.sleepLocked(ctx, time.Until(r.shortResetsAt)); err != nil {
			return err
		}
		r.shortUsage = 0
		r.shortResetsAt = time.Now().Add(15 * time.Minute)
	}

	if r.dailyUsage >= r.dailyLimit {
		if err := r.sleepLocked(ctx, time.Until(r.dailyResetsAt)); err != nil {
			return err
		}
		r.dailyUsage = 0
		r.dailyResetsAt = time.Now().Truncate(24 * time.Hour).Add(24 * time.Hour)
	}

	if elapsed := time.Since(r.lastRequest); elapsed < r.minInterval {
		if err := r.sleepLocked(ctx, r.minInterval-elapsed); err != nil {
			return err
		}
	}

	r.shortUsage++
	r.dailyUsage++
	r.lastRequest = time.Now()

	return nil
}

// sleepLocked releases the mutex for the duration of the sleep so
// other callers can observe state, then re-acquires it.
func (r *RateLimiter) sleepLocked(ctx context.Context, d time.Duration) error {
	r.mu.Unlock()
	defer r.mu.Lock()
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UpdateFromHeaders updates rate limit state from Strava response headers.
// Strava returns: X-RateLimit-Limit: "100,1000" and X-RateLimit-Usage: "34,512"
func (r *RateLimiter) UpdateFromHeaders(h http.Header) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if usage := h.Get("X-RateLimit-Usage"); usage != "" {
		if short, daily, ok := parsePair(usage); ok {
			r.shortUsage = short
			r.dailyUsage = daily
		}
	}
	if limit := h.Get("X-RateLimit-Limit"); limit != "" {
		if short, daily, ok := parsePair(limit); ok {
			r.shortLimit = short
			r.dailyLimit = daily
		}
	}
}

// Status returns remaining requests in the short and daily windows
func (r *RateLimiter) Status() (shortRemaining, dailyRemaining int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shortLimit - r.shortUsage, r.dailyLimit - r.dailyUsage
}

func parsePair(s string) (first, second int, ok bool) {
	parts := strings.Split(s, ",")
	if len(parts) < 2 {
		return 0, 0, false
	}
	first, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	second, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return first, second, true
}
