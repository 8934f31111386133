package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
	"unicode/utf8"

	"github.com/custodia-labs/lexindex/internal/core/domain"
	"github.com/custodia-labs/lexindex/internal/core/ports/driven"
	"github.com/custodia-labs/lexindex/internal/core/ports/driving"
	"github.com/custodia-labs/lexindex/internal/logger"
)

// Ensure EmbeddingGenerator implements the interface.
var _ driving.EmbeddingGenerator = (*EmbeddingGenerator)(nil)

// Embedding defaults.
const (
	DefaultEmbedBatchSize   = 100
	DefaultEmbedItemTimeout = 30 * time.Second

	// MaxEmbedTextLength is the longest text, in characters, sent to a provider.
	MaxEmbedTextLength = 30000
)

// EmbeddingProvider pairs an embedding service with the space it populates.
// A zero provider (nil Service) is unconfigured.
type EmbeddingProvider struct {
	Service driven.EmbeddingService
	Space   domain.EmbeddingSpace
}

func (p EmbeddingProvider) configured() bool {
	return p.Service != nil && p.Space.IsValid()
}

// EmbeddingGeneratorOption configures an EmbeddingGenerator.
type EmbeddingGeneratorOption func(*EmbeddingGenerator)

// WithEmbedBatchSize sets how many chunks go into one provider request.
func WithEmbedBatchSize(n int) EmbeddingGeneratorOption {
	return func(g *EmbeddingGenerator) {
		if n > 0 {
			g.batchSize = n
		}
	}
}

// WithEmbedItemTimeout bounds each provider call.
func WithEmbedItemTimeout(d time.Duration) EmbeddingGeneratorOption {
	return func(g *EmbeddingGenerator) {
		if d > 0 {
			g.itemTimeout = d
		}
	}
}

// EmbeddingGenerator embeds chunks with a primary provider and falls back
// to a second provider item by item.
type EmbeddingGenerator struct {
	store       driven.KnowledgeStore
	primary     EmbeddingProvider
	fallback    EmbeddingProvider
	batchSize   int
	itemTimeout time.Duration
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewEmbeddingGenerator creates a generator. Either provider may be unconfigured.
func NewEmbeddingGenerator(
	store driven.KnowledgeStore,
	primary, fallback EmbeddingProvider,
	opts ...EmbeddingGeneratorOption,
) *EmbeddingGenerator {
	g := &EmbeddingGenerator{
		store:       store,
		primary:     primary,
		fallback:    fallback,
		batchSize:   DefaultEmbedBatchSize,
		itemTimeout: DefaultEmbedItemTimeout,
		now:         time.Now,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// PrimarySpace returns the space filled by the primary provider.
func (g *EmbeddingGenerator) PrimarySpace() domain.EmbeddingSpace {
	if g.primary.Space.IsValid() {
		return g.primary.Space
	}
	return domain.EmbeddingSpaceOllama
}

// FallbackSpace returns the space filled by the fallback provider.
func (g *EmbeddingGenerator) FallbackSpace() domain.EmbeddingSpace {
	if g.fallback.Space.IsValid() {
		return g.fallback.Space
	}
	return domain.EmbeddingSpaceOpenAI
}

// Available reports whether any provider is configured.
func (g *EmbeddingGenerator) Available() bool {
	return g.primary.configured() || g.fallback.configured()
}

// providers returns the configured providers in preference order.
func (g *EmbeddingGenerator) providers() []EmbeddingProvider {
	var list []EmbeddingProvider
	if g.primary.configured() {
		list = append(list, g.primary)
	}
	if g.fallback.configured() {
		list = append(list, g.fallback)
	}
	return list
}

// ==================== Chunk embedding ====================

// EmbedChunks embeds the chunks in batches. A batch the first provider
// rejects is retried item by item, trying each provider in turn. Vectors
// are set on the given chunks and written to the store. Chunks no provider
// could embed are reported, never returned as an error.
func (g *EmbeddingGenerator) EmbedChunks(ctx context.Context, chunks []domain.Chunk) (*domain.EmbedReport, error) {
	providers := g.providers()
	if len(providers) == 0 {
		return nil, domain.ErrEmbeddingUnavailable
	}

	report := &domain.EmbedReport{}
	for start := 0; start < len(chunks); start += g.batchSize {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		end := min(start+g.batchSize, len(chunks))
		g.embedBatch(ctx, providers, chunks[start:end], report)
	}

	logger.Debug("Embedded %d chunks: primary=%d fallback=%d failed=%d",
		len(chunks), report.Primary, report.Fallback, len(report.Failed))
	return report, nil
}

func (g *EmbeddingGenerator) embedBatch(ctx context.Context, providers []EmbeddingProvider, batch []domain.Chunk, report *domain.EmbedReport) {
	texts := make([]string, len(batch))
	for i := range batch {
		texts[i] = truncateRunes(batch[i].Content, MaxEmbedTextLength)
	}

	first := providers[0]
	batchCtx, cancel := context.WithTimeout(ctx, g.itemTimeout)
	vectors, err := first.Service.EmbedBatch(batchCtx, texts)
	cancel()
	if err == nil && len(vectors) == len(batch) {
		for i := range batch {
			g.record(ctx, &batch[i], first, g.primary.configured(), vectors[i], report)
		}
		return
	}
	logger.Warn("embedding batch of %d failed (%v), retrying per item", len(batch), err)

	for i := range batch {
		g.embedItem(ctx, providers, &batch[i], texts[i], report)
	}
}

func (g *EmbeddingGenerator) embedItem(ctx context.Context, providers []EmbeddingProvider, chunk *domain.Chunk, text string, report *domain.EmbedReport) {
	var errs []error
	for i, p := range providers {
		vector, err := g.embedOne(ctx, p.Service, text)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Space, err))
			continue
		}
		g.record(ctx, chunk, p, i == 0 && g.primary.configured(), vector, report)
		return
	}
	report.Failed = append(report.Failed, domain.EmbedFailure{
		ChunkID: chunk.ID,
		Error:   errors.Join(errs...).Error(),
	})
}

// record sets one vector on the chunk and writes it to the store.
func (g *EmbeddingGenerator) record(ctx context.Context, chunk *domain.Chunk, p EmbeddingProvider, fromPrimary bool, vector []float32, report *domain.EmbedReport) {
	if err := g.store.SetChunkEmbedding(ctx, chunk.ID, p.Space, vector); err != nil {
		report.Failed = append(report.Failed, domain.EmbedFailure{ChunkID: chunk.ID, Error: err.Error()})
		return
	}
	chunk.SetEmbedding(p.Space, vector)
	if fromPrimary {
		report.Primary++
	} else {
		report.Fallback++
	}
}

func (g *EmbeddingGenerator) embedOne(ctx context.Context, svc driven.EmbeddingService, text string) ([]float32, error) {
	itemCtx, cancel := context.WithTimeout(ctx, g.itemTimeout)
	defer cancel()
	vector, err := svc.Embed(itemCtx, text)
	if err != nil {
		return nil, err
	}
	if len(vector) == 0 {
		return nil, errors.New("empty embedding")
	}
	return vector, nil
}

// ==================== Queries ====================

// EmbedQuery embeds a query with the provider of the requested space.
func (g *EmbeddingGenerator) EmbedQuery(ctx context.Context, text string, space domain.EmbeddingSpace) ([]float32, error) {
	p, ok := g.providerFor(space)
	if !ok {
		return nil, fmt.Errorf("%w: no provider for space %q", domain.ErrEmbeddingUnavailable, space)
	}
	vector, err := g.embedOne(ctx, p.Service, truncateRunes(text, MaxEmbedTextLength))
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return vector, nil
}

func (g *EmbeddingGenerator) providerFor(space domain.EmbeddingSpace) (EmbeddingProvider, bool) {
	for _, p := range g.providers() {
		if p.Space == space {
			return p, true
		}
	}
	return EmbeddingProvider{}, false
}

// ==================== Backfill ====================

// Backfill embeds chunks whose column for opts.Space is empty, writing only
// that column. Runs are resumable: a later run picks up what this one left.
func (g *EmbeddingGenerator) Backfill(ctx context.Context, opts domain.BackfillOptions) (*domain.BackfillResult, error) {
	opts = normaliseBackfill(opts, g.PrimarySpace())
	if !opts.Space.IsValid() {
		return nil, fmt.Errorf("%w: embedding space %q", domain.ErrInvalidInput, opts.Space)
	}
	p, ok := g.providerFor(opts.Space)
	if !ok {
		return nil, fmt.Errorf("%w: no provider for space %q", domain.ErrEmbeddingUnavailable, opts.Space)
	}

	logger.Section("Embedding Backfill")
	started := g.now()

	total, err := g.store.CountMissingEmbedding(ctx, opts.Space, opts.Category)
	if err != nil {
		return nil, fmt.Errorf("count missing embeddings: %w", err)
	}
	if opts.MaxChunks > 0 && total > opts.MaxChunks {
		total = opts.MaxChunks
	}
	result := &domain.BackfillResult{Space: opts.Space, Total: total}
	logger.Info("Backfill %s: %d chunks to embed", opts.Space, total)

	// Failed chunks keep an empty column and come back in later pages,
	// so each fetch is widened by the number already skipped.
	failed := make(map[string]bool)
	for result.Processed+result.Failed < total {
		remaining := total - result.Processed - result.Failed
		limit := min(opts.BatchSize, remaining) + len(failed)

		page, err := g.store.ChunksMissingEmbedding(ctx, opts.Space, opts.Category, limit)
		if err != nil {
			return result, fmt.Errorf("list missing embeddings: %w", err)
		}

		var batch []domain.Chunk
		for _, c := range page {
			if !failed[c.ID] && len(batch) < remaining {
				batch = append(batch, c)
			}
		}
		if len(batch) == 0 {
			break
		}

		for i := range batch {
			vector, err := g.embedOne(ctx, p.Service, truncateRunes(batch[i].Content, MaxEmbedTextLength))
			if err == nil {
				err = g.store.SetChunkEmbedding(ctx, batch[i].ID, opts.Space, vector)
			}
			if err != nil {
				logger.Warn("backfill %s: chunk %s: %v", opts.Space, batch[i].ID, err)
				failed[batch[i].ID] = true
				result.Failed++
			} else {
				result.Processed++
			}
			if err := g.sleep(ctx, opts.ItemDelay); err != nil {
				result.Duration = g.now().Sub(started)
				return result, err
			}
		}

		logger.Debug("Backfill %s: %d/%d", opts.Space, result.Processed+result.Failed, total)
		if result.Processed+result.Failed < total {
			if err := g.sleep(ctx, opts.BatchPause); err != nil {
				result.Duration = g.now().Sub(started)
				return result, err
			}
		}
	}

	result.Duration = g.now().Sub(started)
	logger.Info("Backfill %s done: processed=%d failed=%d", opts.Space, result.Processed, result.Failed)
	return result, nil
}

func normaliseBackfill(opts domain.BackfillOptions, defaultSpace domain.EmbeddingSpace) domain.BackfillOptions {
	if opts.Space == "" {
		opts.Space = defaultSpace
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = domain.DefaultBackfillBatchSize
	}
	if opts.ItemDelay <= 0 {
		opts.ItemDelay = domain.DefaultBackfillItemDelay
	}
	if opts.BatchPause <= 0 {
		opts.BatchPause = domain.DefaultBackfillPause
	}
	return opts
}

// Stats reports embedding coverage of a document's chunks.
func (g *EmbeddingGenerator) Stats(ctx context.Context, documentID string) (*domain.EmbeddingStats, error) {
	if _, err := g.store.GetDocument(ctx, documentID); err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return g.store.EmbeddingStats(ctx, documentID)
}

// ==================== Helpers ====================

// CosineSimilarity returns the cosine of the angle between two vectors.
// Vectors of different lengths or with zero norm have similarity 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// EstimateTokenCount approximates the token count of a text at four
// characters per token.
func EstimateTokenCount(text string) int {
	return (utf8.RuneCountInString(text) + 3) / 4
}

func truncateRunes(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	return string([]rune(text)[:limit])
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
