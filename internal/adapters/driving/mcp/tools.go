package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/lexindex/internal/core/domain"
)

// SearchInput is the input schema for the hybrid_search tool.
type SearchInput struct {
	Query     string  `json:"query" jsonschema:"the search query, in French or Arabic"`
	Category  string  `json:"category,omitempty" jsonschema:"restrict to one legal category, e.g. jurisprudence or codes"`
	DocType   string  `json:"doc_type,omitempty" jsonschema:"restrict to one document type: TEXTES, JURIS, PROC, TEMPLATES or DOCTRINE"`
	Limit     int     `json:"limit,omitempty" jsonschema:"maximum number of results to return (default 10, max 100)"`
	Threshold float64 `json:"threshold,omitempty" jsonschema:"minimum vector similarity between 0 and 1"`
	Fallback  bool    `json:"use_fallback_provider,omitempty" jsonschema:"search the fallback embedding space"`
}

// SearchOutput is the output schema for the hybrid_search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

// SearchResultOutput represents a single ranked chunk.
type SearchResultOutput struct {
	DocumentID  string  `json:"document_id"`
	ChunkID     string  `json:"chunk_id"`
	Title       string  `json:"title"`
	Category    string  `json:"category"`
	DocType     string  `json:"doc_type"`
	Snippet     string  `json:"content_snippet"`
	Similarity  float64 `json:"similarity"`
	LexicalRank float64 `json:"lexical_rank"`
	Score       float64 `json:"hybrid_score"`
}

// SourceInput identifies a source.
type SourceInput struct {
	SourceID string `json:"source_id" jsonschema:"the source identifier"`
}

// HealthInput selects a source and a reporting window.
type HealthInput struct {
	SourceID string `json:"source_id" jsonschema:"the source identifier"`
	Hours    int    `json:"hours,omitempty" jsonschema:"reporting window in hours (default 24)"`
}

// CanCrawlOutput is the crawl gate decision.
type CanCrawlOutput struct {
	SourceID string `json:"source_id"`
	CanCrawl bool   `json:"can_crawl"`
	Reason   string `json:"reason,omitempty"`
}

// HealthOutput summarises crawler health for a source.
type HealthOutput struct {
	SourceID         string  `json:"source_id"`
	SourceName       string  `json:"source_name"`
	TotalRequests    int     `json:"total_requests"`
	SuccessRate      float64 `json:"success_rate"`
	AvgResponseMs    float64 `json:"avg_response_time_ms"`
	MedianResponseMs float64 `json:"median_response_time_ms"`
	Errors429        int     `json:"errors_429"`
	Errors403        int     `json:"errors_403"`
	Errors503        int     `json:"errors_503"`
	BanDetections    int     `json:"ban_detections"`
	PagesThisHour    int     `json:"pages_this_hour"`
	PagesThisDay     int     `json:"pages_this_day"`
	QuotaExceeded    bool    `json:"quota_exceeded"`
	CurrentlyBanned  bool    `json:"currently_banned"`
	BanReason        string  `json:"ban_reason,omitempty"`
	RetryAfter       string  `json:"retry_after,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "hybrid_search",
		Description: "Search the legal knowledge base, combining semantic similarity and keyword rank",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "can_crawl",
		Description: "Check whether a source may be crawled now, given bans and quotas",
	}, s.handleCanCrawl)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "crawler_health",
		Description: "Report request, error and quota statistics for a source",
	}, s.handleCrawlerHealth)
}

// handleSearch handles the hybrid_search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	query := domain.HybridQuery{
		Query: input.Query,
		Filter: domain.SearchFilter{
			Category: domain.Category(input.Category),
			DocType:  domain.DocumentType(input.DocType),
		},
		Limit:               input.Limit,
		Threshold:           input.Threshold,
		UseFallbackProvider: input.Fallback,
	}

	hits, err := s.ports.Search.HybridSearch(ctx, query)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results: make([]SearchResultOutput, len(hits)),
		Count:   len(hits),
	}
	for i := range hits {
		output.Results[i] = SearchResultOutput{
			DocumentID:  hits[i].DocumentID,
			ChunkID:     hits[i].ChunkID,
			Title:       hits[i].Title,
			Category:    string(hits[i].Category),
			DocType:     string(hits[i].DocType),
			Snippet:     hits[i].ContentSnippet,
			Similarity:  hits[i].Similarity,
			LexicalRank: hits[i].LexicalRank,
			Score:       hits[i].HybridScore,
		}
	}

	return nil, output, nil
}

// handleCanCrawl handles the can_crawl tool invocation.
func (s *Server) handleCanCrawl(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SourceInput,
) (*mcp.CallToolResult, CanCrawlOutput, error) {
	if s.ports.Monitor == nil {
		return nil, CanCrawlOutput{}, ErrMissingMonitor
	}
	decision := s.ports.Monitor.CanSourceCrawl(ctx, input.SourceID)
	return nil, CanCrawlOutput{
		SourceID: input.SourceID,
		CanCrawl: decision.Allowed,
		Reason:   decision.Reason,
	}, nil
}

// handleCrawlerHealth handles the crawler_health tool invocation.
func (s *Server) handleCrawlerHealth(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input HealthInput,
) (*mcp.CallToolResult, HealthOutput, error) {
	if s.ports.Monitor == nil {
		return nil, HealthOutput{}, ErrMissingMonitor
	}
	stats, err := s.ports.Monitor.GetCrawlerHealthStats(ctx, input.SourceID, input.Hours)
	if err != nil {
		return nil, HealthOutput{}, err
	}
	if stats == nil {
		return nil, HealthOutput{}, fmt.Errorf("source %q: %w", input.SourceID, domain.ErrNotFound)
	}
	return nil, healthOutput(stats), nil
}

func healthOutput(stats *domain.CrawlerHealthStats) HealthOutput {
	out := HealthOutput{
		SourceID:         stats.SourceID,
		SourceName:       stats.SourceName,
		TotalRequests:    stats.TotalRequests,
		SuccessRate:      stats.SuccessRate,
		AvgResponseMs:    stats.AvgResponseTimeMs,
		MedianResponseMs: stats.MedianResponseMs,
		Errors429:        stats.Errors429,
		Errors403:        stats.Errors403,
		Errors503:        stats.Errors503,
		BanDetections:    stats.BanDetections,
		PagesThisHour:    stats.PagesThisHour,
		PagesThisDay:     stats.PagesThisDay,
		QuotaExceeded:    stats.QuotaExceeded,
		CurrentlyBanned:  stats.CurrentlyBanned,
		BanReason:        stats.BanReason,
	}
	if !stats.RetryAfter.IsZero() {
		out.RetryAfter = stats.RetryAfter.UTC().Format(time.RFC3339)
	}
	return out
}
