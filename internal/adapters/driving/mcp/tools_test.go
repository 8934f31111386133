package mcp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lexindex/internal/core/domain"
)

func TestServer_handleSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("returns ranked chunks", func(t *testing.T) {
		mockSearch := &mockSearchService{
			hits: []domain.HybridHit{
				{
					DocumentID:     "doc-1",
					ChunkID:        "doc-1-c0",
					Title:          "Cass. civ. 2019",
					Category:       domain.CategoryJurisprudence,
					DocType:        domain.DocTypeJuris,
					ContentSnippet: "résiliation du bail commercial",
					Similarity:     0.91,
					LexicalRank:    1,
					HybridScore:    0.937,
				},
			},
		}

		server, err := NewServer(&Ports{Search: mockSearch})
		require.NoError(t, err)

		input := SearchInput{Query: "résiliation", Category: "jurisprudence", Limit: 5, Threshold: 0.4, Fallback: true}
		_, output, err := server.handleSearch(ctx, nil, input)

		require.NoError(t, err)
		assert.Equal(t, 1, output.Count)
		require.Len(t, output.Results, 1)
		assert.Equal(t, "doc-1-c0", output.Results[0].ChunkID)
		assert.Equal(t, "JURIS", output.Results[0].DocType)
		assert.InDelta(t, 0.937, output.Results[0].Score, 1e-9)

		assert.Equal(t, domain.CategoryJurisprudence, mockSearch.query.Filter.Category)
		assert.Equal(t, 5, mockSearch.query.Limit)
		assert.InDelta(t, 0.4, mockSearch.query.Threshold, 1e-9)
		assert.True(t, mockSearch.query.UseFallbackProvider)
	})

	t.Run("empty result", func(t *testing.T) {
		server, err := NewServer(&Ports{Search: &mockSearchService{}})
		require.NoError(t, err)

		_, output, err := server.handleSearch(ctx, nil, SearchInput{Query: "rien"})

		require.NoError(t, err)
		assert.Equal(t, 0, output.Count)
		assert.Empty(t, output.Results)
	})

	t.Run("returns error on search failure", func(t *testing.T) {
		server, err := NewServer(&Ports{Search: &mockSearchService{err: errors.New("search failed")}})
		require.NoError(t, err)

		_, _, err = server.handleSearch(ctx, nil, SearchInput{Query: "test"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "search failed")
	})
}

func TestServer_handleCanCrawl(t *testing.T) {
	ctx := context.Background()

	t.Run("without monitor", func(t *testing.T) {
		server, err := NewServer(&Ports{Search: &mockSearchService{}})
		require.NoError(t, err)

		_, _, err = server.handleCanCrawl(ctx, nil, SourceInput{SourceID: "src-1"})
		assert.ErrorIs(t, err, ErrMissingMonitor)
	})

	t.Run("reports decision", func(t *testing.T) {
		monitor := &mockMonitor{decision: domain.CrawlDecision{Allowed: false, Reason: "Source bannie: captcha"}}
		server, err := NewServer(&Ports{Search: &mockSearchService{}, Monitor: monitor})
		require.NoError(t, err)

		_, out, err := server.handleCanCrawl(ctx, nil, SourceInput{SourceID: "src-1"})
		require.NoError(t, err)
		assert.Equal(t, "src-1", out.SourceID)
		assert.False(t, out.CanCrawl)
		assert.Equal(t, "Source bannie: captcha", out.Reason)
	})
}

func TestServer_handleCrawlerHealth(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown source", func(t *testing.T) {
		server, err := NewServer(&Ports{Search: &mockSearchService{}, Monitor: &mockMonitor{}})
		require.NoError(t, err)

		_, _, err = server.handleCrawlerHealth(ctx, nil, HealthInput{SourceID: "missing"})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("maps stats", func(t *testing.T) {
		retry := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		monitor := &mockMonitor{stats: &domain.CrawlerHealthStats{
			SourceID:        "src-1",
			SourceName:      "Drive",
			TotalRequests:   10,
			SuccessRate:     80,
			Errors429:       2,
			CurrentlyBanned: true,
			BanReason:       "rate limited",
			RetryAfter:      retry,
		}}
		server, err := NewServer(&Ports{Search: &mockSearchService{}, Monitor: monitor})
		require.NoError(t, err)

		_, out, err := server.handleCrawlerHealth(ctx, nil, HealthInput{SourceID: "src-1", Hours: 6})
		require.NoError(t, err)
		assert.Equal(t, 6, monitor.hours)
		assert.Equal(t, 10, out.TotalRequests)
		assert.Equal(t, 2, out.Errors429)
		assert.True(t, out.CurrentlyBanned)
		assert.Equal(t, "2026-03-01T12:00:00Z", out.RetryAfter)
	})

	t.Run("propagates errors", func(t *testing.T) {
		server, err := NewServer(&Ports{Search: &mockSearchService{}, Monitor: &mockMonitor{err: errors.New("db down")}})
		require.NoError(t, err)

		_, _, err = server.handleCrawlerHealth(ctx, nil, HealthInput{SourceID: "src-1"})
		assert.EqualError(t, err, "db down")
	})
}
