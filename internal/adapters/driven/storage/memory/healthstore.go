package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/lexindex/internal/core/domain"
	"github.com/custodia-labs/lexindex/internal/core/ports/driven"
)

// Ensure HealthStore implements the interface.
var _ driven.HealthStore = (*HealthStore)(nil)

type bucketKey struct {
	sourceID string
	hour     int64
}

// HealthStore is an in-memory implementation of driven.HealthStore.
type HealthStore struct {
	mu      sync.RWMutex
	buckets map[bucketKey]domain.HealthMetric
	bans    map[string]domain.BanStatus
}

// NewHealthStore creates a new in-memory health store.
func NewHealthStore() *HealthStore {
	return &HealthStore{
		buckets: make(map[bucketKey]domain.HealthMetric),
		bans:    make(map[string]domain.BanStatus),
	}
}

// RecordMetric adds one request outcome to the bucket of the hour containing hourStart.
func (s *HealthStore) RecordMetric(_ context.Context, sourceID string, hourStart time.Time, m domain.CrawlMetric) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	hour := hourStart.UTC().Truncate(time.Hour)
	key := bucketKey{sourceID: sourceID, hour: hour.Unix()}
	b, ok := s.buckets[key]
	if !ok {
		b = domain.HealthMetric{SourceID: sourceID, HourStart: hour}
	}

	rtMs := float64(m.ResponseTime) / float64(time.Millisecond)
	b.AvgResponseTimeMs = (b.AvgResponseTimeMs*float64(b.TotalRequests) + rtMs) / float64(b.TotalRequests+1)
	b.TotalRequests++
	if m.Success {
		b.SuccessfulRequests++
	} else {
		b.FailedRequests++
	}
	if m.CountsPage() {
		b.PagesThisHour++
		b.PagesThisDay++
	}
	switch {
	case m.StatusCode == 429:
		b.Errors429++
	case m.StatusCode == 403:
		b.Errors403++
	case m.StatusCode == 503:
		b.Errors503++
	case m.StatusCode >= 500 && m.StatusCode < 600:
		b.Errors5xx++
	}
	if m.BanSignal {
		b.BanDetections++
	}

	s.buckets[key] = b
	return nil
}

// ListMetrics returns buckets for a source with HourStart >= since, oldest first.
func (s *HealthStore) ListMetrics(_ context.Context, sourceID string, since time.Time) ([]domain.HealthMetric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.HealthMetric //nolint:prealloc // size unknown until filtered
	for key, b := range s.buckets {
		if key.sourceID != sourceID || b.HourStart.Before(since) {
			continue
		}
		result = append(result, b)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].HourStart.Before(result[j].HourStart) })
	return result, nil
}

// GetBan returns the ban row of a source, or nil when none exists.
func (s *HealthStore) GetBan(_ context.Context, sourceID string) (*domain.BanStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ban, ok := s.bans[sourceID]
	if !ok {
		return nil, nil
	}
	return &ban, nil
}

// SaveBan creates or replaces the ban row of a source.
func (s *HealthStore) SaveBan(_ context.Context, ban domain.BanStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bans[ban.SourceID] = ban
	return nil
}

// ClearBan lifts a ban, keeping the row for history.
func (s *HealthStore) ClearBan(_ context.Context, sourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ban, ok := s.bans[sourceID]
	if !ok {
		return nil
	}
	ban.IsBanned = false
	ban.RetryAfter = time.Time{}
	s.bans[sourceID] = ban
	return nil
}

// DeleteMetricsBefore removes buckets that started before cutoff.
func (s *HealthStore) DeleteMetricsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for key, b := range s.buckets {
		if b.HourStart.Before(cutoff) {
			delete(s.buckets, key)
			n++
		}
	}
	return n, nil
}
