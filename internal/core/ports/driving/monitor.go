package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/lexindex/internal/core/domain"
)

// HealthMonitor records crawl metrics and gates crawls on bans and quotas.
type HealthMonitor interface {
	// RecordCrawlMetric adds one request outcome to the current hourly bucket.
	// Failures are logged and never returned.
	RecordCrawlMetric(ctx context.Context, sourceID string, metric domain.CrawlMetric)

	// GetCrawlerHealthStats aggregates the buckets of the last periodHours hours (default 24).
	// Returns nil when the source does not exist.
	GetCrawlerHealthStats(ctx context.Context, sourceID string, periodHours int) (*domain.CrawlerHealthStats, error)

	// AllSourcesHealth returns health stats for every source over the last period.
	AllSourcesHealth(ctx context.Context, periodHours int) ([]domain.CrawlerHealthStats, error)

	// MarkSourceAsBanned records a ban. A zero retryAfter defaults to one hour from now.
	MarkSourceAsBanned(ctx context.Context, sourceID, reason string, confidence domain.BanConfidence, retryAfter time.Time) error

	// UnbanSource clears a ban.
	UnbanSource(ctx context.Context, sourceID string) error

	// CanSourceCrawl decides whether a crawl may start now.
	CanSourceCrawl(ctx context.Context, sourceID string) domain.CrawlDecision

	// CleanOldMetrics removes buckets older than the retention period.
	CleanOldMetrics(ctx context.Context, retention time.Duration) (int64, error)
}
