package mcp

import (
	"context"
	"time"

	"github.com/custodia-labs/lexindex/internal/core/domain"
)

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	hits  []domain.HybridHit
	err   error
	query domain.HybridQuery
}

func (m *mockSearchService) HybridSearch(_ context.Context, query domain.HybridQuery) ([]domain.HybridHit, error) {
	m.query = query
	return m.hits, m.err
}

// mockSourceService is a mock implementation of driving.SourceService.
type mockSourceService struct {
	sources []domain.Source
	source  *domain.Source
	err     error
}

func (m *mockSourceService) Add(_ context.Context, _ domain.Source) error {
	return m.err
}

func (m *mockSourceService) Get(_ context.Context, _ string) (*domain.Source, error) {
	return m.source, m.err
}

func (m *mockSourceService) List(_ context.Context) ([]domain.Source, error) {
	return m.sources, m.err
}

func (m *mockSourceService) Remove(_ context.Context, _ string) error {
	return m.err
}

func (m *mockSourceService) Update(_ context.Context, _ domain.Source) error {
	return m.err
}

func (m *mockSourceService) Import(_ context.Context, _ string) ([]domain.Source, error) {
	return m.sources, m.err
}

// mockMonitor is a mock implementation of driving.HealthMonitor.
type mockMonitor struct {
	decision domain.CrawlDecision
	stats    *domain.CrawlerHealthStats
	err      error
	hours    int
}

func (m *mockMonitor) RecordCrawlMetric(context.Context, string, domain.CrawlMetric) {}

func (m *mockMonitor) GetCrawlerHealthStats(_ context.Context, _ string, periodHours int) (*domain.CrawlerHealthStats, error) {
	m.hours = periodHours
	return m.stats, m.err
}

func (m *mockMonitor) AllSourcesHealth(context.Context, int) ([]domain.CrawlerHealthStats, error) {
	return nil, m.err
}

func (m *mockMonitor) MarkSourceAsBanned(context.Context, string, string, domain.BanConfidence, time.Time) error {
	return m.err
}

func (m *mockMonitor) UnbanSource(context.Context, string) error {
	return m.err
}

func (m *mockMonitor) CanSourceCrawl(context.Context, string) domain.CrawlDecision {
	return m.decision
}

func (m *mockMonitor) CleanOldMetrics(context.Context, time.Duration) (int64, error) {
	return 0, m.err
}

// mockDocuments is a mock implementation of driving.IngestionService.
type mockDocuments struct {
	document *domain.KnowledgeDocument
	err      error
}

func (m *mockDocuments) IngestRecord(context.Context, domain.Source, domain.PageRecord) (*domain.KnowledgeDocument, error) {
	return m.document, m.err
}

func (m *mockDocuments) IngestText(context.Context, domain.KnowledgeDocument) (*domain.KnowledgeDocument, error) {
	return m.document, m.err
}

func (m *mockDocuments) IngestUpload(context.Context, domain.RawDocument, domain.KnowledgeDocument) (*domain.KnowledgeDocument, error) {
	return m.document, m.err
}

func (m *mockDocuments) IndexDocument(context.Context, string) (int, error) {
	return 0, m.err
}

func (m *mockDocuments) IndexPending(context.Context, int) (int, int, error) {
	return 0, 0, m.err
}

func (m *mockDocuments) Get(context.Context, string) (*domain.KnowledgeDocument, error) {
	return m.document, m.err
}

func (m *mockDocuments) Chunks(context.Context, string) ([]domain.Chunk, error) {
	return nil, m.err
}
