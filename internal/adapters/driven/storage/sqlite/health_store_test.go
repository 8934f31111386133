package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lexindex/internal/core/domain"
)

func TestHealthStore_RecordMetricAggregatesBucket(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	createTestSource(t, store, "src-1")
	health := store.HealthStore()

	hour := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	metrics := []domain.CrawlMetric{
		{Success: true, Page: true, StatusCode: 200, ResponseTime: 100 * time.Millisecond},
		{Success: true, StatusCode: 200, ResponseTime: 300 * time.Millisecond},
		{Success: false, StatusCode: 429, ResponseTime: 200 * time.Millisecond, BanSignal: true},
		{Success: false, StatusCode: 502, ResponseTime: 400 * time.Millisecond},
	}
	for i, m := range metrics {
		at := hour.Add(time.Duration(i) * time.Minute)
		require.NoError(t, health.RecordMetric(ctx, "src-1", at, m))
	}

	buckets, err := health.ListMetrics(ctx, "src-1", hour)
	require.NoError(t, err)
	require.Len(t, buckets, 1)

	b := buckets[0]
	assert.Equal(t, hour, b.HourStart)
	assert.Equal(t, 4, b.TotalRequests)
	assert.Equal(t, 2, b.SuccessfulRequests)
	assert.Equal(t, 2, b.FailedRequests)
	assert.Equal(t, 1, b.Errors429)
	assert.Equal(t, 0, b.Errors503)
	assert.Equal(t, 1, b.Errors5xx)
	assert.Equal(t, 1, b.BanDetections)
	assert.Equal(t, 1, b.PagesThisHour, "listing requests add no pages")
	assert.Equal(t, 1, b.PagesThisDay)
	assert.InDelta(t, 250.0, b.AvgResponseTimeMs, 0.001)
}

func TestHealthStore_SeparateHoursAndCleanup(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	createTestSource(t, store, "src-1")
	health := store.HealthStore()

	old := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	recent := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, health.RecordMetric(ctx, "src-1", old, domain.CrawlMetric{Success: true}))
	require.NoError(t, health.RecordMetric(ctx, "src-1", recent, domain.CrawlMetric{Success: true}))

	all, err := health.ListMetrics(ctx, "src-1", old)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	n, err := health.DeleteMetricsBefore(ctx, recent.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	all, err = health.ListMetrics(ctx, "src-1", old)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, recent, all[0].HourStart)
}

func TestHealthStore_BanLifecycle(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	createTestSource(t, store, "src-1")
	health := store.HealthStore()

	ban, err := health.GetBan(ctx, "src-1")
	require.NoError(t, err)
	assert.Nil(t, ban)

	bannedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, health.SaveBan(ctx, domain.BanStatus{
		SourceID:   "src-1",
		IsBanned:   true,
		BannedAt:   bannedAt,
		RetryAfter: bannedAt.Add(time.Hour),
		Reason:     "captcha",
		Confidence: domain.BanConfidenceHigh,
	}))
	// Saving twice stays a single row.
	require.NoError(t, health.SaveBan(ctx, domain.BanStatus{
		SourceID:   "src-1",
		IsBanned:   true,
		BannedAt:   bannedAt,
		RetryAfter: bannedAt.Add(2 * time.Hour),
		Reason:     "captcha",
		Confidence: domain.BanConfidenceHigh,
	}))

	ban, err = health.GetBan(ctx, "src-1")
	require.NoError(t, err)
	require.NotNil(t, ban)
	assert.True(t, ban.IsBanned)
	assert.Equal(t, bannedAt.Add(2*time.Hour), ban.RetryAfter)
	assert.Equal(t, domain.BanConfidenceHigh, ban.Confidence)

	require.NoError(t, health.ClearBan(ctx, "src-1"))
	ban, err = health.GetBan(ctx, "src-1")
	require.NoError(t, err)
	assert.False(t, ban.IsBanned)
	assert.Equal(t, bannedAt, ban.BannedAt)
}
