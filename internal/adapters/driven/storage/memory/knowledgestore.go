package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/custodia-labs/lexindex/internal/core/domain"
	"github.com/custodia-labs/lexindex/internal/core/ports/driven"
)

// Ensure KnowledgeStore implements the interface.
var _ driven.KnowledgeStore = (*KnowledgeStore)(nil)

// KnowledgeStore is an in-memory implementation of driven.KnowledgeStore.
// Lexical search scores chunks by query term frequency.
type KnowledgeStore struct {
	mu        sync.RWMutex
	documents map[string]domain.KnowledgeDocument
	chunks    map[string][]domain.Chunk // document ID -> chunks ordered by position
}

// NewKnowledgeStore creates a new in-memory knowledge store.
func NewKnowledgeStore() *KnowledgeStore {
	return &KnowledgeStore{
		documents: make(map[string]domain.KnowledgeDocument),
		chunks:    make(map[string][]domain.Chunk),
	}
}

// ==================== Documents ====================

// SaveDocument creates or updates a document.
func (s *KnowledgeStore) SaveDocument(_ context.Context, doc *domain.KnowledgeDocument) error {
	if doc == nil || doc.ID == "" {
		return domain.ErrInvalidInput
	}
	if doc.DocType == "" {
		doc.DocType = doc.Category.DocType()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := s.documents[doc.ID]; ok && doc.CreatedAt.IsZero() {
		doc.CreatedAt = existing.CreatedAt
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	s.documents[doc.ID] = cloneDocument(*doc)
	return nil
}

// GetDocument retrieves a document by ID.
func (s *KnowledgeStore) GetDocument(_ context.Context, id string) (*domain.KnowledgeDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	doc = cloneDocument(doc)
	return &doc, nil
}

// FindByRecord returns the document built from a page record, or nil.
func (s *KnowledgeStore) FindByRecord(_ context.Context, recordID string) (*domain.KnowledgeDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, doc := range s.documents {
		if recordID != "" && doc.RecordID == recordID {
			doc = cloneDocument(doc)
			return &doc, nil
		}
	}
	return nil, nil
}

// ListDocuments returns documents matching a filter, newest first.
func (s *KnowledgeStore) ListDocuments(_ context.Context, filter domain.SearchFilter, limit int) ([]domain.KnowledgeDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.KnowledgeDocument //nolint:prealloc // size unknown until filtered
	for _, doc := range s.documents {
		if matchesFilter(doc, filter) {
			result = append(result, cloneDocument(doc))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].UpdatedAt.Equal(result[j].UpdatedAt) {
			return result[i].UpdatedAt.After(result[j].UpdatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return limitDocuments(result, limit), nil
}

// DeleteDocument removes a document and its chunks.
func (s *KnowledgeStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.documents, id)
	delete(s.chunks, id)
	return nil
}

// ListEligible returns active, indexed documents below the completeness
// threshold, least complete first.
func (s *KnowledgeStore) ListEligible(_ context.Context, threshold int, category domain.Category, limit int) ([]domain.KnowledgeDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.KnowledgeDocument //nolint:prealloc // size unknown until filtered
	for _, doc := range s.documents {
		if !eligible(doc, threshold) {
			continue
		}
		if category != "" && doc.Category != category {
			continue
		}
		result = append(result, cloneDocument(doc))
	}
	sort.Slice(result, func(i, j int) bool {
		ci, cj := completeness(result[i]), completeness(result[j])
		if ci != cj {
			return ci < cj
		}
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return limitDocuments(result, limit), nil
}

// CountEligible counts documents a re-processing run would consider.
func (s *KnowledgeStore) CountEligible(_ context.Context, threshold int) (*domain.EligibleCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := &domain.EligibleCounts{Threshold: threshold, ByCategory: make(map[domain.Category]int)}
	for _, doc := range s.documents {
		if eligible(doc, threshold) {
			counts.Total++
			counts.ByCategory[doc.Category]++
		}
	}
	return counts, nil
}

// ListUnindexed returns active documents without chunks, oldest first.
func (s *KnowledgeStore) ListUnindexed(_ context.Context, limit int) ([]domain.KnowledgeDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.KnowledgeDocument //nolint:prealloc // size unknown until filtered
	for _, doc := range s.documents {
		if doc.Active && !doc.Indexed {
			result = append(result, cloneDocument(doc))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return limitDocuments(result, limit), nil
}

// ==================== Chunks ====================

// ReplaceChunks swaps all chunks of a document and marks it indexed.
func (s *KnowledgeStore) ReplaceChunks(_ context.Context, documentID string, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[documentID]
	if !ok {
		return fmt.Errorf("replacing chunks of %s: %w", documentID, domain.ErrNotFound)
	}

	stored := make([]domain.Chunk, len(chunks))
	for i, c := range chunks {
		c.DocumentID = documentID
		stored[i] = cloneChunk(c)
	}
	sort.Slice(stored, func(i, j int) bool { return stored[i].Position < stored[j].Position })
	s.chunks[documentID] = stored

	doc.Indexed = true
	doc.UpdatedAt = time.Now().UTC()
	s.documents[documentID] = doc
	return nil
}

// GetChunks returns the chunks of a document ordered by position.
func (s *KnowledgeStore) GetChunks(_ context.Context, documentID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chunks := s.chunks[documentID]
	result := make([]domain.Chunk, len(chunks))
	for i, c := range chunks {
		result[i] = cloneChunk(c)
	}
	return result, nil
}

// ChunksMissingEmbedding returns chunks of active, indexed documents that
// lack a vector for the space.
func (s *KnowledgeStore) ChunksMissingEmbedding(_ context.Context, space domain.EmbeddingSpace, category domain.Category, limit int) ([]domain.Chunk, error) {
	if !space.IsValid() {
		return nil, fmt.Errorf("%w: embedding space %q", domain.ErrInvalidInput, space)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Chunk //nolint:prealloc // size unknown until filtered
	for _, docID := range s.sortedDocumentIDs() {
		doc := s.documents[docID]
		if !doc.Active || !doc.Indexed || (category != "" && doc.Category != category) {
			continue
		}
		for _, c := range s.chunks[docID] {
			if c.Embedding(space) != nil {
				continue
			}
			result = append(result, cloneChunk(c))
			if limit > 0 && len(result) == limit {
				return result, nil
			}
		}
	}
	return result, nil
}

// CountMissingEmbedding counts the chunks ChunksMissingEmbedding would return without a limit.
func (s *KnowledgeStore) CountMissingEmbedding(ctx context.Context, space domain.EmbeddingSpace, category domain.Category) (int, error) {
	chunks, err := s.ChunksMissingEmbedding(ctx, space, category, 0)
	if err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// SetChunkEmbedding writes one space's vector of a chunk.
func (s *KnowledgeStore) SetChunkEmbedding(_ context.Context, chunkID string, space domain.EmbeddingSpace, vector []float32) error {
	if !space.IsValid() {
		return fmt.Errorf("%w: embedding space %q", domain.ErrInvalidInput, space)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for docID, chunks := range s.chunks {
		for i := range chunks {
			if chunks[i].ID == chunkID {
				chunks[i].SetEmbedding(space, append([]float32(nil), vector...))
				s.chunks[docID] = chunks
				return nil
			}
		}
	}
	return domain.ErrNotFound
}

// EmbeddingStats aggregates embedding coverage over a document's chunks.
func (s *KnowledgeStore) EmbeddingStats(_ context.Context, documentID string) (*domain.EmbeddingStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &domain.EmbeddingStats{}
	for _, c := range s.chunks[documentID] {
		stats.Total++
		ollama := c.Embedding(domain.EmbeddingSpaceOllama) != nil
		openai := c.Embedding(domain.EmbeddingSpaceOpenAI) != nil
		if ollama {
			stats.WithOllama++
		}
		if openai {
			stats.WithOpenAI++
		}
		if !ollama && !openai {
			stats.WithoutEmbedding++
		}
	}
	return stats, nil
}

// ==================== Retrieval ====================

// LexicalSearch scores chunks of active documents by the number of query
// term occurrences, case-insensitively.
func (s *KnowledgeStore) LexicalSearch(_ context.Context, query string, filter domain.SearchFilter, limit int) ([]domain.LexicalHit, error) {
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []domain.LexicalHit //nolint:prealloc // size unknown until scored
	for docID, chunks := range s.chunks {
		doc := s.documents[docID]
		if !doc.Active || !matchesFilter(doc, filter) {
			continue
		}
		for _, c := range chunks {
			words := tokenize(c.Content)
			score := 0
			for _, w := range words {
				for _, term := range terms {
					if w == term {
						score++
					}
				}
			}
			if score > 0 {
				hits = append(hits, domain.LexicalHit{ChunkID: c.ID, Score: float64(score)})
			}
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Candidates returns the ranking inputs of chunks of active documents
// matching the filter. Title and content are left empty.
func (s *KnowledgeStore) Candidates(_ context.Context, filter domain.SearchFilter, space domain.EmbeddingSpace) ([]domain.Candidate, error) {
	if !space.IsValid() {
		return nil, fmt.Errorf("%w: embedding space %q", domain.ErrInvalidInput, space)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidates []domain.Candidate //nolint:prealloc // size unknown until filtered
	for _, docID := range s.sortedDocumentIDs() {
		doc := s.documents[docID]
		if !doc.Active || !matchesFilter(doc, filter) {
			continue
		}
		for _, c := range s.chunks[docID] {
			candidates = append(candidates, domain.Candidate{
				ChunkID:    c.ID,
				DocumentID: docID,
				Category:   doc.Category,
				DocType:    doc.DocType,
				Embedding:  c.Embedding(space),
				UpdatedAt:  doc.UpdatedAt,
			})
		}
	}
	return candidates, nil
}

// CandidateDetails returns title and content for the given chunks.
func (s *KnowledgeStore) CandidateDetails(_ context.Context, chunkIDs []string) (map[string]domain.CandidateDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := make(map[string]bool, len(chunkIDs))
	for _, id := range chunkIDs {
		want[id] = true
	}
	details := make(map[string]domain.CandidateDetail, len(chunkIDs))
	for docID, chunks := range s.chunks {
		for _, c := range chunks {
			if want[c.ID] {
				details[c.ID] = domain.CandidateDetail{Title: s.documents[docID].Title, Content: c.Content}
			}
		}
	}
	return details, nil
}

// AcceleratorEntries returns mirror rows for all chunks of active documents.
func (s *KnowledgeStore) AcceleratorEntries(_ context.Context) ([]domain.AcceleratorEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []domain.AcceleratorEntry //nolint:prealloc // size unknown until filtered
	for _, docID := range s.sortedDocumentIDs() {
		doc := s.documents[docID]
		if !doc.Active {
			continue
		}
		for _, c := range s.chunks[docID] {
			entries = append(entries, domain.AcceleratorEntry{
				ChunkID:    c.ID,
				DocumentID: docID,
				Title:      doc.Title,
				Content:    c.Content,
				Category:   doc.Category,
				DocType:    doc.DocType,
				Language:   doc.Language,
			})
		}
	}
	return entries, nil
}

// ==================== Helpers ====================

// sortedDocumentIDs returns document IDs in ascending order (caller must hold lock).
func (s *KnowledgeStore) sortedDocumentIDs() []string {
	ids := make([]string, 0, len(s.documents))
	for id := range s.documents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func matchesFilter(doc domain.KnowledgeDocument, filter domain.SearchFilter) bool {
	if filter.Category != "" && doc.Category != filter.Category {
		return false
	}
	if filter.DocType != "" && doc.DocType != filter.DocType {
		return false
	}
	if filter.Language != "" && doc.Language != filter.Language {
		return false
	}
	return true
}

func eligible(doc domain.KnowledgeDocument, threshold int) bool {
	return doc.Active && doc.Indexed && completeness(doc) < threshold
}

func completeness(doc domain.KnowledgeDocument) int {
	if doc.Completeness == nil {
		return 0
	}
	return *doc.Completeness
}

func limitDocuments(docs []domain.KnowledgeDocument, limit int) []domain.KnowledgeDocument {
	if limit > 0 && len(docs) > limit {
		return docs[:limit]
	}
	return docs
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.Is(unicode.Mn, r)
	})
}

func cloneDocument(doc domain.KnowledgeDocument) domain.KnowledgeDocument {
	if doc.Tags != nil {
		doc.Tags = append([]string(nil), doc.Tags...)
	}
	if doc.Completeness != nil {
		v := *doc.Completeness
		doc.Completeness = &v
	}
	return doc
}

func cloneChunk(c domain.Chunk) domain.Chunk {
	if c.Embeddings != nil {
		embeddings := make(map[domain.EmbeddingSpace][]float32, len(c.Embeddings))
		for space, v := range c.Embeddings {
			embeddings[space] = append([]float32(nil), v...)
		}
		c.Embeddings = embeddings
	}
	if c.Metadata != nil {
		metadata := make(map[string]any, len(c.Metadata))
		for k, v := range c.Metadata {
			metadata[k] = v
		}
		c.Metadata = metadata
	}
	return c
}
