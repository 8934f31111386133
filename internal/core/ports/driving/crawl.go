package driving

import (
	"context"

	"github.com/custodia-labs/lexindex/internal/core/domain"
)

// Crawler discovers files of a source and tracks their changes.
type Crawler interface {
	// CrawlSource crawls a source and returns a structured result.
	// Fatal failures are reported in the result, never as a returned error.
	CrawlSource(ctx context.Context, source domain.Source, opts domain.CrawlOptions) domain.CrawlResult

	// CrawlIfAllowed crawls a source by ID after the monitor allows it.
	// Returns the decision and, when allowed, the crawl result.
	CrawlIfAllowed(ctx context.Context, sourceID string, opts domain.CrawlOptions) (domain.CrawlDecision, *domain.CrawlResult, error)

	// CrawlAll crawls every active source that is allowed to crawl.
	CrawlAll(ctx context.Context, opts domain.CrawlOptions) (map[string]domain.CrawlResult, error)
}
