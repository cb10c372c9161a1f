package ratelimiter

import (
	"time"

	"golang.org/x/time/rate"
)

// SpacingLimiter enforces a minimum interval between calls without blocking:
// AllowAt either grants the call immediately or reports that the caller
// should skip it. The reference time is passed in so tests control it.
type SpacingLimiter struct {
	limiter *rate.Limiter
}

func NewSpacingLimiter(minInterval time.Duration) *SpacingLimiter {
	if minInterval <= 0 {
		minInterval = time.Nanosecond
	}
	return &SpacingLimiter{
		limiter: rate.NewLimiter(rate.Every(minInterval), 1),
	}
}

func (l *SpacingLimiter) AllowAt(now time.Time) bool {
	return l.limiter.AllowN(now, 1)
}
