package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/lexindex/internal/core/domain"
)

// HealthStore persists hourly health buckets and per-source ban state.
type HealthStore interface {
	// RecordMetric adds one request outcome to the (source, hourStart) bucket,
	// creating it if needed. Counters are additive and the running average
	// response time is updated in place.
	RecordMetric(ctx context.Context, sourceID string, hourStart time.Time, metric domain.CrawlMetric) error

	// ListMetrics returns buckets for a source with hour_start >= since, oldest first.
	ListMetrics(ctx context.Context, sourceID string, since time.Time) ([]domain.HealthMetric, error)

	// GetBan returns the ban row of a source, or nil if none exists.
	GetBan(ctx context.Context, sourceID string) (*domain.BanStatus, error)

	// SaveBan creates or replaces the ban row of a source.
	SaveBan(ctx context.Context, ban domain.BanStatus) error

	// ClearBan resets the ban flag of a source.
	ClearBan(ctx context.Context, sourceID string) error

	// DeleteMetricsBefore removes buckets older than the cutoff.
	// Returns the number of buckets removed.
	DeleteMetricsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
