package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/lexindex/internal/core/domain"
	"github.com/custodia-labs/lexindex/internal/core/ports/driven"
)

// healthStore implements driven.HealthStore.
type healthStore struct {
	store *Store
}

var _ driven.HealthStore = (*healthStore)(nil)

// RecordMetric adds one request outcome to the (source, hourStart) bucket.
// Pages are counted only for successful page requests.
// The running average uses the pre-update totals because SQLite evaluates
// every SET expression against the old row.
func (s *healthStore) RecordMetric(ctx context.Context, sourceID string, hourStart time.Time, m domain.CrawlMetric) error {
	var ok, failed, e429, e403, e503, e5xx, bans, pages int
	if m.Success {
		ok = 1
	} else {
		failed = 1
	}
	if m.CountsPage() {
		pages = 1
	}
	switch {
	case m.StatusCode == 429:
		e429 = 1
	case m.StatusCode == 403:
		e403 = 1
	case m.StatusCode == 503:
		e503 = 1
	case m.StatusCode >= 500 && m.StatusCode < 600:
		e5xx = 1
	}
	if m.BanSignal {
		bans = 1
	}
	rtMs := float64(m.ResponseTime) / float64(time.Millisecond)

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO health_metrics (
			source_id, hour_start, total_requests, successful_requests, failed_requests,
			errors_429, errors_403, errors_503, errors_5xx, ban_detections,
			pages_this_hour, pages_this_day, avg_response_time_ms
		) VALUES (?, ?, 1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_id, hour_start) DO UPDATE SET
			avg_response_time_ms = (health_metrics.avg_response_time_ms * health_metrics.total_requests
				+ excluded.avg_response_time_ms) / (health_metrics.total_requests + 1),
			total_requests = health_metrics.total_requests + 1,
			successful_requests = health_metrics.successful_requests + excluded.successful_requests,
			failed_requests = health_metrics.failed_requests + excluded.failed_requests,
			errors_429 = health_metrics.errors_429 + excluded.errors_429,
			errors_403 = health_metrics.errors_403 + excluded.errors_403,
			errors_503 = health_metrics.errors_503 + excluded.errors_503,
			errors_5xx = health_metrics.errors_5xx + excluded.errors_5xx,
			ban_detections = health_metrics.ban_detections + excluded.ban_detections,
			pages_this_hour = health_metrics.pages_this_hour + excluded.pages_this_hour,
			pages_this_day = health_metrics.pages_this_day + excluded.pages_this_day
	`, sourceID, hourStart.UTC().Truncate(time.Hour).Unix(),
		ok, failed, e429, e403, e503, e5xx, bans, pages, pages, rtMs)
	if err != nil {
		return fmt.Errorf("recording health metric: %w", err)
	}
	return nil
}

// ListMetrics returns buckets for a source with hour_start >= since, oldest first.
func (s *healthStore) ListMetrics(ctx context.Context, sourceID string, since time.Time) ([]domain.HealthMetric, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT source_id, hour_start, total_requests, successful_requests, failed_requests,
			errors_429, errors_403, errors_503, errors_5xx, ban_detections,
			pages_this_hour, pages_this_day, avg_response_time_ms
		FROM health_metrics
		WHERE source_id = ? AND hour_start >= ?
		ORDER BY hour_start
	`, sourceID, since.UTC().Truncate(time.Hour).Unix())
	if err != nil {
		return nil, fmt.Errorf("querying health metrics: %w", err)
	}
	defer rows.Close()

	var metrics []domain.HealthMetric //nolint:prealloc // size unknown from query
	for rows.Next() {
		var m domain.HealthMetric
		var hourStart int64
		if err := rows.Scan(&m.SourceID, &hourStart, &m.TotalRequests, &m.SuccessfulRequests,
			&m.FailedRequests, &m.Errors429, &m.Errors403, &m.Errors503, &m.Errors5xx,
			&m.BanDetections, &m.PagesThisHour, &m.PagesThisDay, &m.AvgResponseTimeMs); err != nil {
			return nil, fmt.Errorf("scanning health metric: %w", err)
		}
		m.HourStart = time.Unix(hourStart, 0).UTC()
		metrics = append(metrics, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating health metrics: %w", err)
	}
	return metrics, nil
}

// GetBan returns the ban row of a source, or nil if none exists.
func (s *healthStore) GetBan(ctx context.Context, sourceID string) (*domain.BanStatus, error) {
	var ban domain.BanStatus
	var isBanned int
	var bannedAt, retryAfter sql.NullString
	var confidence string

	err := s.store.db.QueryRowContext(ctx, `
		SELECT source_id, is_banned, banned_at, retry_after, reason, confidence
		FROM ban_status WHERE source_id = ?
	`, sourceID).Scan(&ban.SourceID, &isBanned, &bannedAt, &retryAfter, &ban.Reason, &confidence)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning ban status: %w", err)
	}

	ban.IsBanned = isBanned == 1
	ban.BannedAt = parseNullableTime(bannedAt)
	ban.RetryAfter = parseNullableTime(retryAfter)
	ban.Confidence = domain.BanConfidence(confidence)
	return &ban, nil
}

// SaveBan creates or replaces the ban row of a source.
func (s *healthStore) SaveBan(ctx context.Context, ban domain.BanStatus) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO ban_status (source_id, is_banned, banned_at, retry_after, reason, confidence)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_id) DO UPDATE SET
			is_banned = excluded.is_banned,
			banned_at = excluded.banned_at,
			retry_after = excluded.retry_after,
			reason = excluded.reason,
			confidence = excluded.confidence
	`, ban.SourceID, boolToInt(ban.IsBanned), formatNullableTime(ban.BannedAt),
		formatNullableTime(ban.RetryAfter), ban.Reason, string(ban.Confidence))
	if err != nil {
		return fmt.Errorf("saving ban status: %w", err)
	}
	return nil
}

// ClearBan resets the ban flag of a source. The row is kept so the last
// ban time stays visible in health reports.
func (s *healthStore) ClearBan(ctx context.Context, sourceID string) error {
	_, err := s.store.db.ExecContext(ctx,
		"UPDATE ban_status SET is_banned = 0, retry_after = NULL WHERE source_id = ?", sourceID)
	if err != nil {
		return fmt.Errorf("clearing ban status: %w", err)
	}
	return nil
}

// DeleteMetricsBefore removes buckets older than the cutoff.
func (s *healthStore) DeleteMetricsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.store.db.ExecContext(ctx,
		"DELETE FROM health_metrics WHERE hour_start < ?", cutoff.UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("deleting health metrics: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted health metrics: %w", err)
	}
	return n, nil
}
