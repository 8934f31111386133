package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/lexindex/internal/core/domain"
	"github.com/custodia-labs/lexindex/internal/core/ports/driven"
	"github.com/custodia-labs/lexindex/internal/core/ports/driving"
	"github.com/custodia-labs/lexindex/internal/logger"
)

// Ensure HybridSearchService implements the interface.
var _ driving.SearchService = (*HybridSearchService)(nil)

const (
	// lexicalPoolSize bounds the lexical hits considered per query.
	lexicalPoolSize = 200

	// snippetLength is the maximum rune length of a content snippet.
	snippetLength = 300
)

// ==================== Retrievers ====================

// Retriever produces the lexical leg of a hybrid query.
type Retriever interface {
	// Name identifies the strategy in logs.
	Name() string

	// Lexical returns chunks ranked by full-text relevance, best first.
	Lexical(ctx context.Context, query string, filter domain.SearchFilter, limit int) ([]domain.LexicalHit, error)
}

// baselineRetriever reads the knowledge store's full-text index.
type baselineRetriever struct {
	store driven.KnowledgeStore
}

func (r *baselineRetriever) Name() string { return "fts" }

func (r *baselineRetriever) Lexical(ctx context.Context, query string, filter domain.SearchFilter, limit int) ([]domain.LexicalHit, error) {
	return r.store.LexicalSearch(ctx, query, filter, limit)
}

// acceleratedRetriever asks the accelerator first and falls back to the
// baseline on any accelerator error.
type acceleratedRetriever struct {
	accelerator driven.AcceleratorIndex
	baseline    *baselineRetriever
}

func (r *acceleratedRetriever) Name() string { return "accelerator" }

func (r *acceleratedRetriever) Lexical(ctx context.Context, query string, filter domain.SearchFilter, limit int) ([]domain.LexicalHit, error) {
	hits, err := r.accelerator.Search(ctx, domain.AcceleratorQuery{Text: query, Filter: filter, Limit: limit})
	if err != nil {
		logger.Warn("Accelerator search failed, using full-text index: %v", err)
		return r.baseline.Lexical(ctx, query, filter, limit)
	}

	out := make([]domain.LexicalHit, len(hits))
	for i, h := range hits {
		out[i] = domain.LexicalHit{ChunkID: h.ChunkID, Score: h.Score}
	}
	return out, nil
}

// ==================== Service ====================

// QueryEmbedder embeds query text in a named embedding space.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string, space domain.EmbeddingSpace) ([]float32, error)
	PrimarySpace() domain.EmbeddingSpace
	FallbackSpace() domain.EmbeddingSpace
}

// HybridSearchOption configures a HybridSearchService.
type HybridSearchOption func(*HybridSearchService)

// WithSearchSettings sets fusion mode and weights.
func WithSearchSettings(settings domain.SearchSettings) HybridSearchOption {
	return func(s *HybridSearchService) {
		if settings.Fusion.IsValid() {
			s.fusion = settings.Fusion
		}
		if settings.VectorWeight > 0 || settings.LexicalWeight > 0 {
			s.vectorWeight = settings.VectorWeight
			s.lexicalWeight = settings.LexicalWeight
		}
	}
}

// WithRetriever overrides the lexical strategy.
func WithRetriever(r Retriever) HybridSearchOption {
	return func(s *HybridSearchService) {
		s.retriever = r
	}
}

// HybridSearchService ranks chunks by fusing vector similarity with
// lexical relevance.
type HybridSearchService struct {
	store         driven.KnowledgeStore
	embedder      QueryEmbedder
	retriever     Retriever
	fusion        domain.FusionMode
	vectorWeight  float64
	lexicalWeight float64
}

// NewHybridSearchService creates a search service. The embedder is optional.
// The accelerated strategy is chosen when accelerator is non-nil and enabled.
func NewHybridSearchService(
	store driven.KnowledgeStore,
	embedder QueryEmbedder,
	accelerator driven.AcceleratorIndex,
	opts ...HybridSearchOption,
) *HybridSearchService {
	baseline := &baselineRetriever{store: store}
	s := &HybridSearchService{
		store:         store,
		embedder:      embedder,
		retriever:     baseline,
		fusion:        domain.FusionWeighted,
		vectorWeight:  domain.DefaultVectorWeight,
		lexicalWeight: domain.DefaultLexicalWeight,
	}
	if accelerator != nil && accelerator.Enabled() {
		s.retriever = &acceleratedRetriever{accelerator: accelerator, baseline: baseline}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Strategy names the lexical retrieval strategy in use.
func (s *HybridSearchService) Strategy() string {
	return s.retriever.Name()
}

// HybridSearch ranks chunks for a query.
func (s *HybridSearchService) HybridSearch(ctx context.Context, q domain.HybridQuery) ([]domain.HybridHit, error) {
	logger.Section("Hybrid Search")

	query := strings.TrimSpace(q.Query)
	if query == "" && len(q.Embedding) == 0 {
		logger.Debug("Empty query, returning no results")
		return []domain.HybridHit{}, nil
	}
	if q.Threshold < 0 || q.Threshold > 1 {
		return nil, fmt.Errorf("%w: threshold %v outside [0,1]", domain.ErrInvalidInput, q.Threshold)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = domain.DefaultSearchLimit
	}
	if limit > domain.MaxSearchLimit {
		limit = domain.MaxSearchLimit
	}

	space := s.space(q.UseFallbackProvider)
	embedding := q.Embedding
	if len(embedding) == 0 {
		embedding = s.embedQuery(ctx, query, space)
	}
	logger.Debug("Query %q, space %s, embedding %d dims, strategy %s, fusion %s",
		query, space, len(embedding), s.retriever.Name(), s.fusion)

	// Candidate fetch and lexical leg are independent.
	var candidates []domain.Candidate
	var lexical []domain.LexicalHit
	var candErr, lexErr error

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		candidates, candErr = s.store.Candidates(ctx, q.Filter, space)
	}()
	go func() {
		defer wg.Done()
		if query != "" {
			lexical, lexErr = s.retriever.Lexical(ctx, query, q.Filter, lexicalPoolSize)
		}
	}()
	wg.Wait()

	if candErr != nil {
		return nil, fmt.Errorf("load candidates: %w", candErr)
	}
	if lexErr != nil {
		if len(embedding) == 0 {
			return nil, fmt.Errorf("lexical search: %w", lexErr)
		}
		logger.Warn("Lexical search failed, ranking by similarity only: %v", lexErr)
		lexical = nil
	}

	hits := s.score(candidates, NormaliseLexical(lexical), embedding, q.Threshold)
	SortHits(hits)
	if len(hits) > limit {
		hits = hits[:limit]
	}
	if err := s.attachText(ctx, hits); err != nil {
		return nil, err
	}

	logger.Info("Hybrid search %q: %d candidates, %d lexical, %d results",
		query, len(candidates), len(lexical), len(hits))
	return hits, nil
}

func (s *HybridSearchService) space(useFallback bool) domain.EmbeddingSpace {
	if s.embedder == nil {
		if useFallback {
			return domain.EmbeddingSpaceOpenAI
		}
		return domain.EmbeddingSpaceOllama
	}
	if useFallback {
		return s.embedder.FallbackSpace()
	}
	return s.embedder.PrimarySpace()
}

// embedQuery returns nil when no vector can be obtained, which turns the
// query into lexical-only ranking.
func (s *HybridSearchService) embedQuery(ctx context.Context, query string, space domain.EmbeddingSpace) []float32 {
	if s.embedder == nil || query == "" {
		return nil
	}
	vector, err := s.embedder.EmbedQuery(ctx, query, space)
	if err != nil {
		if errors.Is(err, domain.ErrEmbeddingUnavailable) {
			logger.Debug("No %s provider, lexical-only ranking", space)
		} else {
			logger.Warn("Query embedding failed, lexical-only ranking: %v", err)
		}
		return nil
	}
	return vector
}

// score builds hits from candidates. Without a query embedding only
// lexically matched candidates survive.
func (s *HybridSearchService) score(
	candidates []domain.Candidate,
	lexRank map[string]float64,
	embedding []float32,
	threshold float64,
) []domain.HybridHit {
	hasVector := len(embedding) > 0

	hits := make([]domain.HybridHit, 0, len(candidates))
	for _, c := range candidates {
		lex := lexRank[c.ChunkID]
		var sim float64
		if hasVector {
			sim = CosineSimilarity(embedding, c.Embedding)
			if threshold > 0 && sim < threshold {
				continue
			}
		} else if lex == 0 {
			continue
		}

		hits = append(hits, domain.HybridHit{
			DocumentID:  c.DocumentID,
			ChunkID:     c.ChunkID,
			Category:    c.Category,
			DocType:     c.DocType,
			Similarity:  sim,
			LexicalRank: lex,
			HybridScore: s.vectorWeight*sim + s.lexicalWeight*lex,
			UpdatedAt:   c.UpdatedAt,
		})
	}

	if s.fusion == domain.FusionRRF {
		applyRRF(hits, hasVector, domain.DefaultRRFConstant)
	}
	return hits
}

// attachText fills title and snippet of the ranked hits.
func (s *HybridSearchService) attachText(ctx context.Context, hits []domain.HybridHit) error {
	if len(hits) == 0 {
		return nil
	}
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ChunkID
	}
	details, err := s.store.CandidateDetails(ctx, ids)
	if err != nil {
		return fmt.Errorf("load hit text: %w", err)
	}
	for i := range hits {
		d := details[hits[i].ChunkID]
		hits[i].Title = d.Title
		hits[i].ContentSnippet = Snippet(d.Content, snippetLength)
	}
	return nil
}

// ==================== Fusion ====================

// NormaliseLexical maps chunk IDs to a rank in (0,1] by dividing each
// score by the best one.
func NormaliseLexical(hits []domain.LexicalHit) map[string]float64 {
	out := make(map[string]float64, len(hits))
	var best float64
	for _, h := range hits {
		if h.Score > best {
			best = h.Score
		}
	}
	if best <= 0 {
		return out
	}
	for _, h := range hits {
		if h.Score > 0 {
			out[h.ChunkID] = h.Score / best
		}
	}
	return out
}

// applyRRF replaces HybridScore with the Reciprocal Rank Fusion of the
// similarity and lexical orderings.
func applyRRF(hits []domain.HybridHit, hasVector bool, k int) {
	scores := make(map[string]float64, len(hits))

	rankBy := func(value func(domain.HybridHit) float64) {
		order := make([]int, 0, len(hits))
		for i := range hits {
			if value(hits[i]) > 0 {
				order = append(order, i)
			}
		}
		sort.SliceStable(order, func(a, b int) bool {
			return value(hits[order[a]]) > value(hits[order[b]])
		})
		for rank, i := range order {
			scores[hits[i].ChunkID] += 1.0 / float64(k+rank+1)
		}
	}

	if hasVector {
		rankBy(func(h domain.HybridHit) float64 { return h.Similarity })
	}
	rankBy(func(h domain.HybridHit) float64 { return h.LexicalRank })

	for i := range hits {
		hits[i].HybridScore = scores[hits[i].ChunkID]
	}
}

// SortHits orders hits by score descending, then by document recency,
// then by chunk ID.
func SortHits(hits []domain.HybridHit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].HybridScore != hits[j].HybridScore {
			return hits[i].HybridScore > hits[j].HybridScore
		}
		if !hits[i].UpdatedAt.Equal(hits[j].UpdatedAt) {
			return hits[i].UpdatedAt.After(hits[j].UpdatedAt)
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
}

// Snippet shortens content to at most n runes, cutting at a word boundary
// when one is close.
func Snippet(content string, n int) string {
	content = strings.Join(strings.Fields(content), " ")
	runes := []rune(content)
	if len(runes) <= n {
		return content
	}
	cut := string(runes[:n])
	if i := strings.LastIndexByte(cut, ' '); i > len(cut)*3/4 {
		cut = cut[:i]
	}
	return cut + "…"
}
