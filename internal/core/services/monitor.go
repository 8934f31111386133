package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/custodia-labs/lexindex/internal/core/domain"
	"github.com/custodia-labs/lexindex/internal/core/ports/driven"
	"github.com/custodia-labs/lexindex/internal/core/ports/driving"
	"github.com/custodia-labs/lexindex/internal/logger"
)

// Ensure HealthMonitor implements the interface.
var _ driving.HealthMonitor = (*HealthMonitor)(nil)

// Monitor defaults.
const (
	DefaultHealthPeriodHours = 24
	DefaultMetricsRetention  = 30 * 24 * time.Hour
)

// HealthMonitor tracks per-source request outcomes and gates crawls on bans
// and quotas. Writes never fail the caller and gating fails open.
type HealthMonitor struct {
	sources driven.SourceStore
	health  driven.HealthStore
	now     func() time.Time
}

// NewHealthMonitor creates a monitor over the given stores.
func NewHealthMonitor(sources driven.SourceStore, health driven.HealthStore) *HealthMonitor {
	return &HealthMonitor{
		sources: sources,
		health:  health,
		now:     time.Now,
	}
}

// RecordCrawlMetric adds one request outcome to the current hour's bucket.
func (m *HealthMonitor) RecordCrawlMetric(ctx context.Context, sourceID string, metric domain.CrawlMetric) {
	if err := m.health.RecordMetric(ctx, sourceID, m.now().UTC(), metric); err != nil {
		logger.Warn("monitor: recording metric for %s: %v", sourceID, err)
	}
}

// GetCrawlerHealthStats aggregates the buckets of the last periodHours.
// Returns nil without error when the source is unknown.
func (m *HealthMonitor) GetCrawlerHealthStats(ctx context.Context, sourceID string, periodHours int) (*domain.CrawlerHealthStats, error) {
	source, err := m.sources.Get(ctx, sourceID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get source: %w", err)
	}
	return m.statsFor(ctx, source, periodHours)
}

// AllSourcesHealth returns stats for every active source, ordered by source name.
func (m *HealthMonitor) AllSourcesHealth(ctx context.Context, periodHours int) ([]domain.CrawlerHealthStats, error) {
	sources, err := m.sources.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	result := make([]domain.CrawlerHealthStats, 0, len(sources))
	for i := range sources {
		if !sources[i].Active {
			continue
		}
		stats, err := m.statsFor(ctx, &sources[i], periodHours)
		if err != nil {
			logger.Warn("monitor: health of %s: %v", sources[i].ID, err)
			continue
		}
		result = append(result, *stats)
	}
	return result, nil
}

func (m *HealthMonitor) statsFor(ctx context.Context, source *domain.Source, periodHours int) (*domain.CrawlerHealthStats, error) {
	if periodHours <= 0 {
		periodHours = DefaultHealthPeriodHours
	}
	now := m.now().UTC()
	periodStart := now.Add(-time.Duration(periodHours) * time.Hour)
	hourAgo := now.Add(-time.Hour)
	dayAgo := now.Add(-24 * time.Hour)

	since := periodStart
	if dayAgo.Before(since) {
		since = dayAgo
	}
	buckets, err := m.health.ListMetrics(ctx, source.ID, since)
	if err != nil {
		return nil, fmt.Errorf("list metrics: %w", err)
	}

	stats := &domain.CrawlerHealthStats{
		SourceID:    source.ID,
		SourceName:  source.Name,
		Quota:       source.Quota,
		LastCrawlAt: source.LastCrawlAt,
		PeriodStart: periodStart,
		PeriodEnd:   now,
	}

	var latencies []float64
	for _, b := range buckets {
		if !b.HourStart.Before(hourAgo) {
			stats.PagesThisHour += b.PagesThisHour
		}
		if !b.HourStart.Before(dayAgo) {
			stats.PagesThisDay += b.PagesThisDay
		}
		if b.HourStart.Before(periodStart) {
			continue
		}
		stats.TotalRequests += b.TotalRequests
		stats.SuccessfulRequests += b.SuccessfulRequests
		stats.FailedRequests += b.FailedRequests
		stats.Errors429 += b.Errors429
		stats.Errors403 += b.Errors403
		stats.Errors503 += b.Errors503
		stats.Errors5xx += b.Errors5xx
		stats.BanDetections += b.BanDetections
		latencies = append(latencies, b.AvgResponseTimeMs)
	}

	if stats.TotalRequests > 0 {
		stats.SuccessRate = math.Round(float64(stats.SuccessfulRequests)/float64(stats.TotalRequests)*10000) / 100
	}
	stats.AvgResponseTimeMs = mean(latencies)
	stats.MedianResponseMs = percentile(latencies, 0.5)
	stats.P95ResponseMs = percentile(latencies, 0.95)
	stats.QuotaExceeded = source.Quota.Exceeded(stats.PagesThisHour, stats.PagesThisDay)

	ban, err := m.health.GetBan(ctx, source.ID)
	if err != nil {
		return nil, fmt.Errorf("get ban: %w", err)
	}
	if ban != nil {
		stats.CurrentlyBanned = ban.IsBanned
		stats.BanReason = ban.Reason
		stats.BanConfidence = ban.Confidence
		stats.LastBanAt = ban.BannedAt
		stats.RetryAfter = ban.RetryAfter
	}

	return stats, nil
}

// MarkSourceAsBanned records a ban. A zero retryAfter applies the default duration.
func (m *HealthMonitor) MarkSourceAsBanned(ctx context.Context, sourceID, reason string, confidence domain.BanConfidence, retryAfter time.Time) error {
	if !confidence.IsValid() {
		return fmt.Errorf("%w: ban confidence %q", domain.ErrInvalidInput, confidence)
	}
	now := m.now().UTC()
	if retryAfter.IsZero() {
		retryAfter = now.Add(domain.DefaultBanDuration)
	}

	err := m.health.SaveBan(ctx, domain.BanStatus{
		SourceID:   sourceID,
		IsBanned:   true,
		BannedAt:   now,
		RetryAfter: retryAfter.UTC(),
		Reason:     reason,
		Confidence: confidence,
	})
	if err != nil {
		return fmt.Errorf("save ban: %w", err)
	}
	logger.Info("Source %s marked as banned until %s: %s", sourceID, retryAfter.UTC().Format(time.RFC3339), reason)
	return nil
}

// UnbanSource clears a ban.
func (m *HealthMonitor) UnbanSource(ctx context.Context, sourceID string) error {
	if err := m.health.ClearBan(ctx, sourceID); err != nil {
		return fmt.Errorf("clear ban: %w", err)
	}
	logger.Info("Source %s unbanned", sourceID)
	return nil
}

// CanSourceCrawl decides whether a crawl of the source may start now.
// An elapsed ban is lifted before quotas are checked.
func (m *HealthMonitor) CanSourceCrawl(ctx context.Context, sourceID string) domain.CrawlDecision {
	now := m.now().UTC()

	ban, err := m.health.GetBan(ctx, sourceID)
	if err != nil {
		logger.Warn("monitor: reading ban of %s: %v (allowing crawl)", sourceID, err)
		return domain.CrawlDecision{Allowed: true}
	}
	if ban.Active(now) {
		return domain.CrawlDecision{
			Allowed: false,
			Reason: fmt.Sprintf("banned until %s (reason: %s)",
				ban.RetryAfter.UTC().Format(time.RFC3339), ban.Reason),
		}
	}
	if ban.Expired(now) {
		if err := m.UnbanSource(ctx, sourceID); err != nil {
			logger.Warn("monitor: auto-unban of %s: %v", sourceID, err)
		}
	}

	stats, err := m.GetCrawlerHealthStats(ctx, sourceID, DefaultHealthPeriodHours)
	if err != nil {
		logger.Warn("monitor: health of %s: %v (allowing crawl)", sourceID, err)
		return domain.CrawlDecision{Allowed: true}
	}
	if stats == nil {
		return domain.CrawlDecision{Allowed: false, Reason: "source not found"}
	}
	if stats.QuotaExceeded {
		return domain.CrawlDecision{Allowed: false, Reason: "daily or hourly quota exceeded"}
	}
	return domain.CrawlDecision{Allowed: true}
}

// CleanOldMetrics deletes buckets older than the retention window.
func (m *HealthMonitor) CleanOldMetrics(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		retention = DefaultMetricsRetention
	}
	n, err := m.health.DeleteMetricsBefore(ctx, m.now().UTC().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("delete metrics: %w", err)
	}
	logger.Info("Deleted %d health buckets older than %s", n, retention)
	return n, nil
}

// ==================== Ban detection ====================

var captchaMarkers = []string{"captcha", "cf-challenge", "g-recaptcha", "hcaptcha"}

var blockMarkers = []string{
	"access denied",
	"you have been blocked",
	"too many requests",
	"rate limit exceeded",
	"accès refusé",
	"accès bloqué",
}

// DetectBanSignal classifies a response as a possible ban.
// An empty successful body is reported with low confidence but not detected.
func DetectBanSignal(statusCode int, body string) domain.BanSignal {
	switch statusCode {
	case 403:
		return domain.BanSignal{Detected: true, Confidence: domain.BanConfidenceHigh, Reason: "HTTP 403 Forbidden"}
	case 429:
		return domain.BanSignal{Detected: true, Confidence: domain.BanConfidenceHigh, Reason: "HTTP 429 Too Many Requests"}
	case 503:
		return domain.BanSignal{Detected: true, Confidence: domain.BanConfidenceMedium, Reason: "HTTP 503 Service Unavailable"}
	}

	lower := strings.ToLower(body)
	for _, marker := range captchaMarkers {
		if strings.Contains(lower, marker) {
			return domain.BanSignal{Detected: true, Confidence: domain.BanConfidenceHigh, Reason: "Captcha detected"}
		}
	}
	for _, marker := range blockMarkers {
		if strings.Contains(lower, marker) {
			return domain.BanSignal{Detected: true, Confidence: domain.BanConfidenceMedium, Reason: "Block message: " + marker}
		}
	}

	if strings.TrimSpace(body) == "" && statusCode >= 200 && statusCode < 300 {
		return domain.BanSignal{Confidence: domain.BanConfidenceLow, Reason: "empty response body"}
	}
	return domain.BanSignal{}
}

// ==================== Helpers ====================

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// percentile computes a linearly interpolated percentile (p in [0,1]).
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	pos := p * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return sorted[lower]
	}
	frac := pos - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*frac
}
