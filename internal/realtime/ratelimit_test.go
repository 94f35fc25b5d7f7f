package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestRateLimiter_BurstThenRefill(t *testing.T) {
	l := newRateLimiter(3, 30*time.Second)
	t0 := time.Now()

	assert.True(t, l.AllowN(t0, 1))
	assert.True(t, l.AllowN(t0, 1))
	assert.True(t, l.AllowN(t0, 1))
	assert.False(t, l.AllowN(t0.Add(time.Second), 1), "4th event before any refill")

	// One event refills every window/limit.
	assert.True(t, l.AllowN(t0.Add(11*time.Second), 1))
	assert.False(t, l.AllowN(t0.Add(11*time.Second), 1))

	// A full window restores the whole burst.
	t1 := t0.Add(50 * time.Second)
	for i := 0; i < 3; i++ {
		assert.True(t, l.AllowN(t1, 1))
	}
	assert.False(t, l.AllowN(t1, 1))
}

func TestRateLimiter_Defaults(t *testing.T) {
	l := newRateLimiter(0, 0)
	assert.Equal(t, rateLimitEvents, l.Burst())
	assert.Equal(t, rate.Every(rateLimitWindow/time.Duration(rateLimitEvents)), l.Limit())

	now := time.Now()
	for i := 0; i < rateLimitEvents; i++ {
		assert.True(t, l.AllowN(now, 1))
	}
	assert.False(t, l.AllowN(now, 1))
}
