package realtime

import (
	"time"

	"golang.org/x/time/rate"
)

// newRateLimiter returns a per-connection token bucket: limit events may
// arrive at once, and the bucket refills at limit per window.
func newRateLimiter(limit int, window time.Duration) *rate.Limiter {
	if limit <= 0 {
		limit = rateLimitEvents
	}
	if window <= 0 {
		window = rateLimitWindow
	}
	return rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit)
}
