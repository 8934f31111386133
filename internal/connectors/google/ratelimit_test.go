package google

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_Allow(t *testing.T) {
	r := NewRateLimiterWithConfig(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 2})

	assert.True(t, r.Allow())
	assert.True(t, r.Allow())
	assert.False(t, r.Allow())
}

func TestRateLimiter_Backoff(t *testing.T) {
	r := NewRateLimiter()
	r.RecordRateLimitError(time.Hour)

	assert.False(t, r.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Wait(ctx), context.DeadlineExceeded)
}

func TestRateLimiter_ShortBackoffElapses(t *testing.T) {
	r := NewRateLimiter()
	r.RecordRateLimitError(10 * time.Millisecond)

	require.NoError(t, r.Wait(context.Background()))
	assert.True(t, r.Allow())
}

func TestRateLimiter_DefaultBackoff(t *testing.T) {
	r := NewRateLimiter()
	r.RecordRateLimitError(0)

	r.mu.Lock()
	remaining := time.Until(r.retryAt)
	r.mu.Unlock()
	assert.InDelta(t, DefaultBackoff.Seconds(), remaining.Seconds(), 1)
}
