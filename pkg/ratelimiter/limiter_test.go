package ratelimiter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSpacingLimiter(t *testing.T) {
	limiter := NewSpacingLimiter(1100 * time.Millisecond)
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, limiter.AllowAt(base))
	assert.False(t, limiter.AllowAt(base.Add(500*time.Millisecond)))
	assert.False(t, limiter.AllowAt(base.Add(1000*time.Millisecond)))
	assert.True(t, limiter.AllowAt(base.Add(1200*time.Millisecond)))
}
