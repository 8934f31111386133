package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/custodia-labs/lexindex/internal/core/domain"
)

type handlers struct {
	ports *Ports
}

// errUnavailable answers when a route's port is not wired.
var errUnavailable = errors.New("service not configured")

func fail(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrUnsupportedType):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrSourceBanned), errors.Is(err, domain.ErrQuotaExceeded):
		status = http.StatusTooManyRequests
	case errors.Is(err, domain.ErrEmbeddingUnavailable),
		errors.Is(err, domain.ErrAcceleratorUnavailable),
		errors.Is(err, errUnavailable):
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}

func queryInt(c echo.Context, name string, def int) (int, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", domain.ErrInvalidInput, name)
	}
	return n, nil
}

// ==================== Health ====================

func (h *handlers) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) AllHealth(c echo.Context) error {
	if h.ports.Monitor == nil {
		return fail(c, errUnavailable)
	}
	hours, err := queryInt(c, "hours", 0)
	if err != nil {
		return fail(c, err)
	}
	stats, err := h.ports.Monitor.AllSourcesHealth(c.Request().Context(), hours)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *handlers) SourceHealth(c echo.Context) error {
	if h.ports.Monitor == nil {
		return fail(c, errUnavailable)
	}
	hours, err := queryInt(c, "hours", 0)
	if err != nil {
		return fail(c, err)
	}
	stats, err := h.ports.Monitor.GetCrawlerHealthStats(c.Request().Context(), c.Param("id"), hours)
	if err != nil {
		return fail(c, err)
	}
	if stats == nil {
		return fail(c, domain.ErrNotFound)
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *handlers) CanCrawl(c echo.Context) error {
	if h.ports.Monitor == nil {
		return fail(c, errUnavailable)
	}
	decision := h.ports.Monitor.CanSourceCrawl(c.Request().Context(), c.Param("id"))
	return c.JSON(http.StatusOK, decision)
}

// ==================== Crawl ====================

// Crawl runs an incremental crawl with ingestion. The monitor gate is
// bypassed with ?force=true.
func (h *handlers) Crawl(c echo.Context) error {
	if h.ports.Crawler == nil {
		return fail(c, errUnavailable)
	}
	ctx := c.Request().Context()
	id := c.Param("id")
	opts := domain.CrawlOptions{Incremental: c.QueryParam("full") != "true", Ingest: true}

	if c.QueryParam("force") == "true" {
		if h.ports.Sources == nil {
			return fail(c, errUnavailable)
		}
		source, err := h.ports.Sources.Get(ctx, id)
		if err != nil {
			return fail(c, err)
		}
		result := h.ports.Crawler.CrawlSource(ctx, *source, opts)
		return c.JSON(http.StatusOK, result)
	}

	decision, result, err := h.ports.Crawler.CrawlIfAllowed(ctx, id, opts)
	if err != nil {
		return fail(c, err)
	}
	if !decision.Allowed {
		return c.JSON(http.StatusTooManyRequests, decision)
	}
	return c.JSON(http.StatusOK, result)
}

// ==================== Re-processing ====================

type reprocessRequest struct {
	BatchSize      int    `json:"batchSize"`
	Category       string `json:"category"`
	Threshold      int    `json:"maxCompletenessScore"`
	ReprocessAfter *bool  `json:"reprocessAfter"`
	DryRun         bool   `json:"dryRun"`
}

func (h *handlers) Reprocess(c echo.Context) error {
	if h.ports.Reprocess == nil {
		return fail(c, errUnavailable)
	}
	var req reprocessRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad json"})
		}
	}

	opts := domain.DefaultReprocessOptions()
	if req.BatchSize > 0 {
		opts.BatchSize = req.BatchSize
	}
	if req.Threshold > 0 {
		opts.CompletenessThreshold = req.Threshold
	}
	if req.ReprocessAfter != nil {
		opts.ReprocessAfter = *req.ReprocessAfter
	}
	opts.Category = domain.Category(strings.TrimSpace(req.Category))
	opts.DryRun = req.DryRun

	result, err := h.ports.Reprocess.Reprocess(c.Request().Context(), opts)
	if err != nil && result == nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *handlers) EligibleCounts(c echo.Context) error {
	if h.ports.Reprocess == nil {
		return fail(c, errUnavailable)
	}
	threshold, err := queryInt(c, "threshold", 0)
	if err != nil {
		return fail(c, err)
	}
	counts, err := h.ports.Reprocess.EligibleCounts(c.Request().Context(), threshold)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, counts)
}

// ==================== Embeddings ====================

type backfillRequest struct {
	Space     string `json:"space"`
	BatchSize int    `json:"batchSize"`
	Category  string `json:"category"`
	MaxChunks int    `json:"maxChunks"`
}

func (h *handlers) Backfill(c echo.Context) error {
	if h.ports.Embeddings == nil {
		return fail(c, errUnavailable)
	}
	var req backfillRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad json"})
		}
	}
	result, err := h.ports.Embeddings.Backfill(c.Request().Context(), domain.BackfillOptions{
		Space:     domain.EmbeddingSpace(req.Space),
		BatchSize: req.BatchSize,
		Category:  domain.Category(req.Category),
		MaxChunks: req.MaxChunks,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *handlers) ChunkStats(c echo.Context) error {
	if h.ports.Embeddings == nil {
		return fail(c, errUnavailable)
	}
	stats, err := h.ports.Embeddings.Stats(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *handlers) IndexPending(c echo.Context) error {
	if h.ports.Documents == nil {
		return fail(c, errUnavailable)
	}
	limit, err := queryInt(c, "limit", 50)
	if err != nil {
		return fail(c, err)
	}
	indexed, failed, err := h.ports.Documents.IndexPending(c.Request().Context(), limit)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]int{"indexed": indexed, "failed": failed})
}

// ==================== Search ====================

func (h *handlers) Search(c echo.Context) error {
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		return fail(c, err)
	}
	query := domain.HybridQuery{
		Query: c.QueryParam("q"),
		Filter: domain.SearchFilter{
			Category: domain.Category(c.QueryParam("category")),
			DocType:  domain.DocumentType(c.QueryParam("doc_type")),
		},
		Limit:               limit,
		UseFallbackProvider: c.QueryParam("fallback") == "true",
	}
	if raw := c.QueryParam("threshold"); raw != "" {
		query.Threshold, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			return fail(c, fmt.Errorf("%w: threshold must be a number", domain.ErrInvalidInput))
		}
	}

	hits, err := h.ports.Search.HybridSearch(c.Request().Context(), query)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"results": hits, "count": len(hits)})
}
