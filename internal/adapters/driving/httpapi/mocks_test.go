package httpapi

import (
	"context"
	"time"

	"github.com/custodia-labs/lexindex/internal/core/domain"
)

type mockSearch struct {
	hits  []domain.HybridHit
	err   error
	query domain.HybridQuery
}

func (m *mockSearch) HybridSearch(_ context.Context, q domain.HybridQuery) ([]domain.HybridHit, error) {
	m.query = q
	return m.hits, m.err
}

type mockMonitor struct {
	decision domain.CrawlDecision
	stats    *domain.CrawlerHealthStats
	hours    int
}

func (m *mockMonitor) RecordCrawlMetric(context.Context, string, domain.CrawlMetric) {}

func (m *mockMonitor) GetCrawlerHealthStats(_ context.Context, _ string, hours int) (*domain.CrawlerHealthStats, error) {
	m.hours = hours
	return m.stats, nil
}

func (m *mockMonitor) AllSourcesHealth(context.Context, int) ([]domain.CrawlerHealthStats, error) {
	if m.stats == nil {
		return []domain.CrawlerHealthStats{}, nil
	}
	return []domain.CrawlerHealthStats{*m.stats}, nil
}

func (m *mockMonitor) MarkSourceAsBanned(context.Context, string, string, domain.BanConfidence, time.Time) error {
	return nil
}

func (m *mockMonitor) UnbanSource(context.Context, string) error { return nil }

func (m *mockMonitor) CanSourceCrawl(context.Context, string) domain.CrawlDecision {
	return m.decision
}

func (m *mockMonitor) CleanOldMetrics(context.Context, time.Duration) (int64, error) { return 0, nil }

type mockCrawler struct {
	decision domain.CrawlDecision
	result   domain.CrawlResult
	forced   bool
	opts     domain.CrawlOptions
}

func (m *mockCrawler) CrawlSource(_ context.Context, _ domain.Source, opts domain.CrawlOptions) domain.CrawlResult {
	m.forced = true
	m.opts = opts
	return m.result
}

func (m *mockCrawler) CrawlIfAllowed(_ context.Context, _ string, opts domain.CrawlOptions) (domain.CrawlDecision, *domain.CrawlResult, error) {
	m.opts = opts
	if !m.decision.Allowed {
		return m.decision, nil, nil
	}
	return m.decision, &m.result, nil
}

func (m *mockCrawler) CrawlAll(context.Context, domain.CrawlOptions) (map[string]domain.CrawlResult, error) {
	return nil, nil
}

type mockSources struct{}

func (mockSources) Add(context.Context, domain.Source) error { return nil }

func (mockSources) Get(_ context.Context, id string) (*domain.Source, error) {
	if id != "src-1" {
		return nil, domain.ErrNotFound
	}
	return &domain.Source{ID: id, Kind: domain.SourceKindDrive}, nil
}

func (mockSources) List(context.Context) ([]domain.Source, error) { return nil, nil }

func (mockSources) Update(context.Context, domain.Source) error { return nil }

func (mockSources) Remove(context.Context, string) error { return nil }

func (mockSources) Import(context.Context, string) ([]domain.Source, error) { return nil, nil }

type mockReprocess struct {
	opts      domain.ReprocessOptions
	threshold int
}

func (m *mockReprocess) Reprocess(_ context.Context, opts domain.ReprocessOptions) (*domain.ReprocessResult, error) {
	m.opts = opts
	return &domain.ReprocessResult{DryRun: opts.DryRun, Selected: 2, Succeeded: 2}, nil
}

func (m *mockReprocess) EligibleCounts(_ context.Context, threshold int) (*domain.EligibleCounts, error) {
	m.threshold = threshold
	return &domain.EligibleCounts{Threshold: 70, Total: 3}, nil
}

type mockEmbeddings struct {
	opts domain.BackfillOptions
	err  error
}

func (m *mockEmbeddings) EmbedChunks(context.Context, []domain.Chunk) (*domain.EmbedReport, error) {
	return &domain.EmbedReport{}, nil
}

func (m *mockEmbeddings) EmbedQuery(context.Context, string, domain.EmbeddingSpace) ([]float32, error) {
	return nil, m.err
}

func (m *mockEmbeddings) Backfill(_ context.Context, opts domain.BackfillOptions) (*domain.BackfillResult, error) {
	m.opts = opts
	if m.err != nil {
		return nil, m.err
	}
	return &domain.BackfillResult{Space: domain.EmbeddingSpaceOpenAI, Total: 5, Processed: 5}, nil
}

func (m *mockEmbeddings) Stats(_ context.Context, documentID string) (*domain.EmbeddingStats, error) {
	if documentID != "doc-1" {
		return nil, domain.ErrNotFound
	}
	return &domain.EmbeddingStats{Total: 4, WithOllama: 4, WithOpenAI: 1}, nil
}
