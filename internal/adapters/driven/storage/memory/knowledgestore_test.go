package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lexindex/internal/core/domain"
)

func intPtr(v int) *int { return &v }

func saveDoc(t *testing.T, store *KnowledgeStore, id string, category domain.Category, completeness *int) {
	t.Helper()
	require.NoError(t, store.SaveDocument(context.Background(), &domain.KnowledgeDocument{
		ID:           id,
		Title:        "Document " + id,
		Category:     category,
		Active:       true,
		Completeness: completeness,
	}))
}

func TestKnowledgeStore_SaveDefaultsDocType(t *testing.T) {
	store := NewKnowledgeStore()
	saveDoc(t, store, "d1", domain.CategoryJurisprudence, nil)

	doc, err := store.GetDocument(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, domain.DocTypeJuris, doc.DocType)
	assert.False(t, doc.Indexed)

	_, err = store.GetDocument(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, store.SaveDocument(context.Background(), &domain.KnowledgeDocument{}), domain.ErrInvalidInput)
}

func TestKnowledgeStore_ChunksAndEmbeddings(t *testing.T) {
	store := NewKnowledgeStore()
	ctx := context.Background()
	saveDoc(t, store, "d1", domain.CategoryCodes, nil)

	require.NoError(t, store.ReplaceChunks(ctx, "d1", []domain.Chunk{
		{ID: "c2", Position: 1, Content: "second"},
		{ID: "c1", Position: 0, Content: "first", Embeddings: map[domain.EmbeddingSpace][]float32{
			domain.EmbeddingSpaceOllama: {1, 0},
		}},
	}))

	chunks, err := store.GetChunks(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "c1", chunks[0].ID)

	doc, err := store.GetDocument(ctx, "d1")
	require.NoError(t, err)
	assert.True(t, doc.Indexed)

	missing, err := store.ChunksMissingEmbedding(ctx, domain.EmbeddingSpaceOllama, "", 0)
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, "c2", missing[0].ID)

	require.NoError(t, store.SetChunkEmbedding(ctx, "c2", domain.EmbeddingSpaceOpenAI, []float32{0, 1}))
	assert.ErrorIs(t, store.SetChunkEmbedding(ctx, "zz", domain.EmbeddingSpaceOpenAI, nil), domain.ErrNotFound)

	stats, err := store.EmbeddingStats(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, domain.EmbeddingStats{Total: 2, WithOllama: 1, WithOpenAI: 1}, *stats)

	n, err := store.CountMissingEmbedding(ctx, domain.EmbeddingSpaceOpenAI, "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Error(t, store.ReplaceChunks(ctx, "missing", nil))
}

func TestKnowledgeStore_LexicalSearchAndFilters(t *testing.T) {
	store := NewKnowledgeStore()
	ctx := context.Background()
	saveDoc(t, store, "juris", domain.CategoryJurisprudence, nil)
	saveDoc(t, store, "code", domain.CategoryCodes, nil)

	require.NoError(t, store.ReplaceChunks(ctx, "juris", []domain.Chunk{
		{ID: "j1", Content: "Le contrat de bail commercial, bail renouvelé."},
	}))
	require.NoError(t, store.ReplaceChunks(ctx, "code", []domain.Chunk{
		{ID: "k1", Content: "Article 1: du contrat"},
	}))

	hits, err := store.LexicalSearch(ctx, "BAIL contrat", domain.SearchFilter{}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "j1", hits[0].ChunkID)
	assert.Equal(t, 3.0, hits[0].Score)

	hits, err = store.LexicalSearch(ctx, "contrat", domain.SearchFilter{DocType: domain.DocTypeJuris}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "j1", hits[0].ChunkID)

	hits, err = store.LexicalSearch(ctx, "  ", domain.SearchFilter{}, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	candidates, err := store.Candidates(ctx, domain.SearchFilter{Category: domain.CategoryCodes}, domain.EmbeddingSpaceOllama)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "k1", candidates[0].ChunkID)

	details, err := store.CandidateDetails(ctx, []string{"k1", "nope"})
	require.NoError(t, err)
	require.Len(t, details, 1)
	assert.NotEmpty(t, details["k1"].Content)

	entries, err := store.AcceleratorEntries(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestKnowledgeStore_EligibleAndUnindexed(t *testing.T) {
	store := NewKnowledgeStore()
	ctx := context.Background()
	saveDoc(t, store, "low", domain.CategoryDoctrine, intPtr(40))
	saveDoc(t, store, "none", domain.CategoryDoctrine, nil)
	saveDoc(t, store, "high", domain.CategoryCodes, intPtr(90))
	saveDoc(t, store, "pending", domain.CategoryCodes, nil)

	for _, id := range []string{"low", "none", "high"} {
		require.NoError(t, store.ReplaceChunks(ctx, id, []domain.Chunk{{ID: id + "-c", Content: "x"}}))
	}

	docs, err := store.ListEligible(ctx, 70, "", 10)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "none", docs[0].ID)
	assert.Equal(t, "low", docs[1].ID)

	counts, err := store.CountEligible(ctx, 70)
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Total)
	assert.Equal(t, 2, counts.ByCategory[domain.CategoryDoctrine])

	unindexed, err := store.ListUnindexed(ctx, 0)
	require.NoError(t, err)
	require.Len(t, unindexed, 1)
	assert.Equal(t, "pending", unindexed[0].ID)
}
