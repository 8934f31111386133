package redisearch

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lexindex/internal/core/domain"
)

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		filter domain.SearchFilter
		want   string
	}{
		{"empty matches all", "", domain.SearchFilter{}, "*"},
		{"text only", "bail commercial", domain.SearchFilter{}, "bail commercial"},
		{
			name:   "all filters",
			text:   "résiliation",
			filter: domain.SearchFilter{Category: domain.CategoryJurisprudence, Language: domain.LanguageFrench, DocType: domain.DocTypeJuris},
			want:   "résiliation @category:{jurisprudence} @language:{fr} @doc_type:{JURIS}",
		},
		{
			name:   "filter without text",
			filter: domain.SearchFilter{Category: domain.CategoryGoogleDrive},
			want:   "* @category:{google_drive}",
		},
		{"syntax characters removed", `@content:{x} -"bail" (a|b)*`, domain.SearchFilter{}, "content x bail a b"},
		{"arabic", "عقد الكراء؟", domain.SearchFilter{Language: domain.LanguageArabic}, "عقد الكراء @language:{ar}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildQuery(tt.text, tt.filter))
		})
	}
}

func TestEscapeTag(t *testing.T) {
	assert.Equal(t, "google_drive", EscapeTag("google_drive"))
	assert.Equal(t, `3f2a\-11ee\-b9d1`, EscapeTag("3f2a-11ee-b9d1"))
	assert.Equal(t, `a\ b\.c`, EscapeTag("a b.c"))
}

func TestParseSearchReply(t *testing.T) {
	t.Run("with scores", func(t *testing.T) {
		reply := []any{
			int64(2),
			"kb:chunk:c1", "2.5", []any{"kb_id", "doc-1", "content", "Article 1er", "category", "codes", "language", "fr"},
			"kb:chunk:c2", "1", []any{"kb_id", "doc-2", "content", "الفصل الأول", "category", "legislation", "language", "ar"},
		}
		hits, err := ParseSearchReply(reply)
		require.NoError(t, err)
		require.Len(t, hits, 2)

		assert.Equal(t, domain.AcceleratorHit{
			ChunkID: "c1", DocumentID: "doc-1", Category: domain.CategoryCodes,
			Language: domain.LanguageFrench, Content: "Article 1er", Score: 2.5,
		}, hits[0])
		assert.Equal(t, "c2", hits[1].ChunkID)
		assert.Equal(t, domain.LanguageArabic, hits[1].Language)
	})

	t.Run("without scores", func(t *testing.T) {
		reply := []any{int64(1), "kb:chunk:c9", []any{"kb_id", "doc-9"}}
		hits, err := ParseSearchReply(reply)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "doc-9", hits[0].DocumentID)
		assert.Equal(t, 1.0, hits[0].Score)
	})

	t.Run("no results", func(t *testing.T) {
		hits, err := ParseSearchReply([]any{int64(0)})
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := ParseSearchReply("OK")
		assert.Error(t, err)

		_, err = ParseSearchReply([]any{int64(1), int64(42)})
		assert.Error(t, err)
	})
}

func TestParseKeys(t *testing.T) {
	assert.Equal(t, []string{"kb:chunk:a", "kb:chunk:b"}, parseKeys([]any{int64(2), "kb:chunk:a", "kb:chunk:b"}))
	assert.Empty(t, parseKeys([]any{int64(0)}))
	assert.Empty(t, parseKeys(nil))
}

func TestPairsAndConversions(t *testing.T) {
	info := pairs([]any{"index_name", "idx:kb_chunks", "num_docs", "42", "num_records", int64(120)})
	assert.Equal(t, int64(42), toInt64(info["num_docs"]))
	assert.Equal(t, int64(120), toInt64(info["num_records"]))
	assert.Equal(t, int64(0), toInt64(info["missing"]))
}

func TestIsUnknownIndex(t *testing.T) {
	assert.False(t, isUnknownIndex(nil))
	assert.True(t, isUnknownIndex(errors.New("Unknown Index name")))
	assert.True(t, isUnknownIndex(errors.New("idx:kb_chunks: no such index")))
	assert.False(t, isUnknownIndex(errors.New("connection refused")))
}

// TestIndex_Live runs against a real Redis Stack when REDIS_URL is set.
func TestIndex_Live(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	ctx := context.Background()

	idx, err := New(ctx, url)
	require.NoError(t, err)
	defer idx.Close()
	require.NoError(t, idx.Clear(ctx))

	require.NoError(t, idx.Upsert(ctx, []domain.AcceleratorEntry{
		{ChunkID: "live-1", DocumentID: "doc-live", Title: "Code des obligations", Content: "le bail commercial est résilié", Category: domain.CategoryCodes, DocType: domain.DocTypeTextes, Language: domain.LanguageFrench},
		{ChunkID: "live-2", DocumentID: "doc-live", Title: "Code des obligations", Content: "la vente est parfaite", Category: domain.CategoryCodes, DocType: domain.DocTypeTextes, Language: domain.LanguageFrench},
	}))

	hits, err := idx.Search(ctx, domain.AcceleratorQuery{Text: "bail", Filter: domain.SearchFilter{Category: domain.CategoryCodes}})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "live-1", hits[0].ChunkID)

	require.NoError(t, idx.DeleteDocument(ctx, "doc-live"))
	stats, err := idx.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.NumDocs)
}
