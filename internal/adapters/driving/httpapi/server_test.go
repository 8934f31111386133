package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lexindex/internal/core/domain"
)

type fixture struct {
	search     *mockSearch
	monitor    *mockMonitor
	crawler    *mockCrawler
	reprocess  *mockReprocess
	embeddings *mockEmbeddings
	server     *Server
}

func newFixture(t *testing.T, secret string) *fixture {
	t.Helper()
	f := &fixture{
		search:     &mockSearch{},
		monitor:    &mockMonitor{decision: domain.CrawlDecision{Allowed: true}},
		crawler:    &mockCrawler{decision: domain.CrawlDecision{Allowed: true}, result: domain.CrawlResult{Success: true, PagesNew: 3}},
		reprocess:  &mockReprocess{},
		embeddings: &mockEmbeddings{},
	}
	server, err := NewServer(&Ports{
		Search:     f.search,
		Monitor:    f.monitor,
		Crawler:    f.crawler,
		Sources:    mockSources{},
		Reprocess:  f.reprocess,
		Embeddings: f.embeddings,
	}, Config{CronSecret: secret})
	require.NoError(t, err)
	f.server = server
	return f
}

func (f *fixture) do(method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestNewServer_RequiresSearch(t *testing.T) {
	_, err := NewServer(&Ports{}, Config{})
	assert.ErrorIs(t, err, ErrMissingSearchService)

	s, err := NewServer(&Ports{Search: &mockSearch{}}, Config{})
	require.NoError(t, err)
	assert.Equal(t, ":8080", s.Addr())
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, "")
	rec := f.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
}

func TestCronSecret(t *testing.T) {
	f := newFixture(t, "s3cret")

	rec := f.do(http.MethodGet, "/api/admin/reprocess", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodGet, "/api/admin/reprocess", "", map[string]string{CronSecretHeader: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodGet, "/api/admin/reprocess", "", map[string]string{CronSecretHeader: "s3cret"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodPost, "/api/sources/src-1/crawl", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Read-only routes are open.
	rec = f.do(http.MethodGet, "/api/sources/src-1/can-crawl", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSourceHealth(t *testing.T) {
	f := newFixture(t, "")

	rec := f.do(http.MethodGet, "/api/sources/missing/health", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	f.monitor.stats = &domain.CrawlerHealthStats{SourceID: "src-1", TotalRequests: 12}
	rec = f.do(http.MethodGet, "/api/sources/src-1/health?hours=6", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 6, f.monitor.hours)
	assert.EqualValues(t, 12, decode(t, rec)["total_requests"])

	rec = f.do(http.MethodGet, "/api/sources/src-1/health?hours=six", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCanCrawl(t *testing.T) {
	f := newFixture(t, "")
	f.monitor.decision = domain.CrawlDecision{Allowed: false, Reason: "daily or hourly quota exceeded"}

	rec := f.do(http.MethodGet, "/api/sources/src-1/can-crawl", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["can_crawl"])
	assert.Equal(t, "daily or hourly quota exceeded", body["reason"])
}

func TestCrawl(t *testing.T) {
	t.Run("allowed", func(t *testing.T) {
		f := newFixture(t, "")
		rec := f.do(http.MethodPost, "/api/sources/src-1/crawl", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.EqualValues(t, 3, decode(t, rec)["pages_new"])
		assert.True(t, f.crawler.opts.Incremental)
		assert.True(t, f.crawler.opts.Ingest)
		assert.False(t, f.crawler.forced)
	})

	t.Run("refused by gate", func(t *testing.T) {
		f := newFixture(t, "")
		f.crawler.decision = domain.CrawlDecision{Allowed: false, Reason: "banned"}
		rec := f.do(http.MethodPost, "/api/sources/src-1/crawl", "", nil)
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "banned", decode(t, rec)["reason"])
	})

	t.Run("forced full crawl", func(t *testing.T) {
		f := newFixture(t, "")
		rec := f.do(http.MethodPost, "/api/sources/src-1/crawl?force=true&full=true", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, f.crawler.forced)
		assert.False(t, f.crawler.opts.Incremental)
	})

	t.Run("forced unknown source", func(t *testing.T) {
		f := newFixture(t, "")
		rec := f.do(http.MethodPost, "/api/sources/nope/crawl?force=true", "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestReprocess(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		f := newFixture(t, "")
		rec := f.do(http.MethodPost, "/api/admin/reprocess", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, domain.DefaultReprocessOptions(), f.reprocess.opts)
	})

	t.Run("body overrides", func(t *testing.T) {
		f := newFixture(t, "")
		body := `{"batchSize": 25, "category": "codes", "maxCompletenessScore": 50, "reprocessAfter": false, "dryRun": true}`
		rec := f.do(http.MethodPost, "/api/admin/reprocess", body, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 25, f.reprocess.opts.BatchSize)
		assert.Equal(t, domain.CategoryCodes, f.reprocess.opts.Category)
		assert.Equal(t, 50, f.reprocess.opts.CompletenessThreshold)
		assert.False(t, f.reprocess.opts.ReprocessAfter)
		assert.True(t, f.reprocess.opts.DryRun)
		assert.Equal(t, true, decode(t, rec)["dry_run"])
	})

	t.Run("bad json", func(t *testing.T) {
		f := newFixture(t, "")
		rec := f.do(http.MethodPost, "/api/admin/reprocess", `{"batchSize":`, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("eligible counts", func(t *testing.T) {
		f := newFixture(t, "")
		rec := f.do(http.MethodGet, "/api/admin/reprocess?threshold=60", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 60, f.reprocess.threshold)
		assert.EqualValues(t, 3, decode(t, rec)["total"])
	})
}

func TestBackfill(t *testing.T) {
	f := newFixture(t, "")
	rec := f.do(http.MethodPost, "/api/admin/embeddings/backfill", `{"space":"openai","batchSize":20,"category":"codes","maxChunks":100}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.BackfillOptions{
		Space:     domain.EmbeddingSpaceOpenAI,
		BatchSize: 20,
		Category:  domain.CategoryCodes,
		MaxChunks: 100,
	}, f.embeddings.opts)
	assert.EqualValues(t, 5, decode(t, rec)["processed"])

	f.embeddings.err = domain.ErrEmbeddingUnavailable
	rec = f.do(http.MethodPost, "/api/admin/embeddings/backfill", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestChunkStats(t *testing.T) {
	f := newFixture(t, "")
	rec := f.do(http.MethodGet, "/api/documents/doc-1/chunks/stats", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 4, decode(t, rec)["with_ollama"])

	rec = f.do(http.MethodGet, "/api/documents/doc-9/chunks/stats", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIndexPending_Unavailable(t *testing.T) {
	f := newFixture(t, "")
	rec := f.do(http.MethodPost, "/api/admin/documents/index-pending", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSearch(t *testing.T) {
	f := newFixture(t, "")
	f.search.hits = []domain.HybridHit{{ChunkID: "a-c0", HybridScore: 0.9}}

	rec := f.do(http.MethodGet, "/api/search?q=bail&category=jurisprudence&doc_type=JURIS&limit=5&threshold=0.3&fallback=true", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode(t, rec)["count"])
	assert.Equal(t, "bail", f.search.query.Query)
	assert.Equal(t, domain.DocTypeJuris, f.search.query.Filter.DocType)
	assert.Equal(t, 5, f.search.query.Limit)
	assert.InDelta(t, 0.3, f.search.query.Threshold, 1e-9)
	assert.True(t, f.search.query.UseFallbackProvider)

	rec = f.do(http.MethodGet, "/api/search?q=bail&threshold=high", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.search.err = domain.ErrInvalidInput
	rec = f.do(http.MethodGet, "/api/search?q=bail", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
