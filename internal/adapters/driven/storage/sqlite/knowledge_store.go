package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/custodia-labs/lexindex/internal/core/domain"
	"github.com/custodia-labs/lexindex/internal/core/ports/driven"
)

// knowledgeStore implements driven.KnowledgeStore.
type knowledgeStore struct {
	store *Store
}

var _ driven.KnowledgeStore = (*knowledgeStore)(nil)

const documentColumns = `id, source_id, record_id, title, description, category, doc_type,
	language, tags, source_url, full_text, is_active, is_indexed, completeness,
	created_at, updated_at`

// ==================== Documents ====================

// SaveDocument creates or updates a document.
func (s *knowledgeStore) SaveDocument(ctx context.Context, doc *domain.KnowledgeDocument) error {
	if doc == nil || doc.ID == "" {
		return domain.ErrInvalidInput
	}
	if doc.DocType == "" {
		doc.DocType = doc.Category.DocType()
	}

	tags := doc.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("marshalling tags: %w", err)
	}

	var completeness any
	if doc.Completeness != nil {
		completeness = *doc.Completeness
	}

	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO knowledge_documents (`+documentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source_id = excluded.source_id,
			record_id = excluded.record_id,
			title = excluded.title,
			description = excluded.description,
			category = excluded.category,
			doc_type = excluded.doc_type,
			language = excluded.language,
			tags = excluded.tags,
			source_url = excluded.source_url,
			full_text = excluded.full_text,
			is_active = excluded.is_active,
			is_indexed = excluded.is_indexed,
			completeness = excluded.completeness,
			updated_at = excluded.updated_at
	`, doc.ID, nullString(doc.SourceID), nullString(doc.RecordID), doc.Title, doc.Description,
		string(doc.Category), string(doc.DocType), string(doc.Language), string(tagsJSON),
		doc.SourceURL, doc.FullText, boolToInt(doc.Active), boolToInt(doc.Indexed), completeness,
		formatTime(doc.CreatedAt), formatTime(doc.UpdatedAt))
	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *knowledgeStore) GetDocument(ctx context.Context, id string) (*domain.KnowledgeDocument, error) {
	doc, err := scanKnowledgeDocument(s.store.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM knowledge_documents WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return doc, err
}

// FindByRecord returns the document built from a page record, or nil.
func (s *knowledgeStore) FindByRecord(ctx context.Context, recordID string) (*domain.KnowledgeDocument, error) {
	doc, err := scanKnowledgeDocument(s.store.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM knowledge_documents WHERE record_id = ? LIMIT 1`, recordID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return doc, err
}

// ListDocuments returns documents matching a filter, newest first.
// A limit of zero or less returns every match.
func (s *knowledgeStore) ListDocuments(ctx context.Context, filter domain.SearchFilter, limit int) ([]domain.KnowledgeDocument, error) {
	where, args := filterClause("", filter)
	query := `SELECT ` + documentColumns + ` FROM knowledge_documents WHERE 1 = 1` + where +
		` ORDER BY updated_at DESC, id LIMIT ?`
	args = append(args, sqlLimit(limit))
	return s.queryDocuments(ctx, query, args...)
}

// DeleteDocument removes a document and its chunks.
func (s *knowledgeStore) DeleteDocument(ctx context.Context, id string) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM knowledge_documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return nil
}

// ListEligible returns active, indexed documents whose completeness is
// missing or below the threshold, least complete first.
func (s *knowledgeStore) ListEligible(ctx context.Context, threshold int, category domain.Category, limit int) ([]domain.KnowledgeDocument, error) {
	query := `SELECT ` + documentColumns + ` FROM knowledge_documents
		WHERE is_active = 1 AND is_indexed = 1 AND COALESCE(completeness, 0) < ?`
	args := []any{threshold}
	if category != "" {
		query += ` AND category = ?`
		args = append(args, string(category))
	}
	query += ` ORDER BY COALESCE(completeness, 0), created_at, id LIMIT ?`
	args = append(args, sqlLimit(limit))
	return s.queryDocuments(ctx, query, args...)
}

// CountEligible counts eligible documents per category.
func (s *knowledgeStore) CountEligible(ctx context.Context, threshold int) (*domain.EligibleCounts, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT category, COUNT(*) FROM knowledge_documents
		WHERE is_active = 1 AND is_indexed = 1 AND COALESCE(completeness, 0) < ?
		GROUP BY category
	`, threshold)
	if err != nil {
		return nil, fmt.Errorf("counting eligible documents: %w", err)
	}
	defer rows.Close()

	counts := &domain.EligibleCounts{
		Threshold:  threshold,
		ByCategory: make(map[domain.Category]int),
	}
	for rows.Next() {
		var category string
		var n int
		if err := rows.Scan(&category, &n); err != nil {
			return nil, fmt.Errorf("scanning eligible count: %w", err)
		}
		counts.ByCategory[domain.Category(category)] = n
		counts.Total += n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating eligible counts: %w", err)
	}
	return counts, nil
}

// ListUnindexed returns active documents without chunks, oldest first.
func (s *knowledgeStore) ListUnindexed(ctx context.Context, limit int) ([]domain.KnowledgeDocument, error) {
	return s.queryDocuments(ctx, `SELECT `+documentColumns+` FROM knowledge_documents
		WHERE is_active = 1 AND is_indexed = 0
		ORDER BY created_at, id LIMIT ?`, sqlLimit(limit))
}

func (s *knowledgeStore) queryDocuments(ctx context.Context, query string, args ...any) ([]domain.KnowledgeDocument, error) {
	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.KnowledgeDocument //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanKnowledgeDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

// ==================== Chunks ====================

// ReplaceChunks atomically swaps all chunks of a document and marks it indexed.
// The full-text index follows through triggers.
func (s *knowledgeStore) ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, position, content, embedding_ollama, embedding_openai, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for i := range chunks {
		chunk := &chunks[i]
		metadata := chunk.Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}
		metadataJSON, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("marshalling chunk metadata: %w", err)
		}

		_, err = stmt.ExecContext(ctx, chunk.ID, documentID, chunk.Position, chunk.Content,
			float32SliceToBytes(chunk.Embedding(domain.EmbeddingSpaceOllama)),
			float32SliceToBytes(chunk.Embedding(domain.EmbeddingSpaceOpenAI)),
			string(metadataJSON))
		if err != nil {
			return fmt.Errorf("inserting chunk %s: %w", chunk.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE knowledge_documents SET is_indexed = 1, updated_at = ? WHERE id = ?",
		formatTime(time.Now()), documentID); err != nil {
		return fmt.Errorf("marking document indexed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing chunks: %w", err)
	}
	return nil
}

// GetChunks returns the chunks of a document ordered by position.
func (s *knowledgeStore) GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	return s.queryChunks(ctx, `
		SELECT id, document_id, position, content, embedding_ollama, embedding_openai, metadata
		FROM chunks WHERE document_id = ? ORDER BY position
	`, documentID)
}

// ChunksMissingEmbedding returns chunks of active, indexed documents whose
// column for the space is empty.
func (s *knowledgeStore) ChunksMissingEmbedding(ctx context.Context, space domain.EmbeddingSpace, category domain.Category, limit int) ([]domain.Chunk, error) {
	column, err := embeddingColumn(space)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT c.id, c.document_id, c.position, c.content, c.embedding_ollama, c.embedding_openai, c.metadata
		FROM chunks c JOIN knowledge_documents d ON d.id = c.document_id
		WHERE c.` + column + ` IS NULL AND d.is_active = 1 AND d.is_indexed = 1`
	var args []any
	if category != "" {
		query += ` AND d.category = ?`
		args = append(args, string(category))
	}
	query += ` ORDER BY c.document_id, c.position LIMIT ?`
	args = append(args, sqlLimit(limit))

	return s.queryChunks(ctx, query, args...)
}

// CountMissingEmbedding counts chunks lacking the space's column.
func (s *knowledgeStore) CountMissingEmbedding(ctx context.Context, space domain.EmbeddingSpace, category domain.Category) (int, error) {
	column, err := embeddingColumn(space)
	if err != nil {
		return 0, err
	}

	query := `SELECT COUNT(*) FROM chunks c JOIN knowledge_documents d ON d.id = c.document_id
		WHERE c.` + column + ` IS NULL AND d.is_active = 1 AND d.is_indexed = 1`
	var args []any
	if category != "" {
		query += ` AND d.category = ?`
		args = append(args, string(category))
	}

	var n int
	if err := s.store.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting missing embeddings: %w", err)
	}
	return n, nil
}

// SetChunkEmbedding writes one embedding column of a chunk.
func (s *knowledgeStore) SetChunkEmbedding(ctx context.Context, chunkID string, space domain.EmbeddingSpace, vector []float32) error {
	column, err := embeddingColumn(space)
	if err != nil {
		return err
	}
	res, err := s.store.db.ExecContext(ctx,
		`UPDATE chunks SET `+column+` = ? WHERE id = ?`, float32SliceToBytes(vector), chunkID)
	if err != nil {
		return fmt.Errorf("updating chunk embedding: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// EmbeddingStats reports embedding coverage of a document's chunks.
func (s *knowledgeStore) EmbeddingStats(ctx context.Context, documentID string) (*domain.EmbeddingStats, error) {
	var stats domain.EmbeddingStats
	err := s.store.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(embedding_ollama IS NOT NULL), 0),
			COALESCE(SUM(embedding_openai IS NOT NULL), 0),
			COALESCE(SUM(embedding_ollama IS NULL AND embedding_openai IS NULL), 0)
		FROM chunks WHERE document_id = ?
	`, documentID).Scan(&stats.Total, &stats.WithOllama, &stats.WithOpenAI, &stats.WithoutEmbedding)
	if err != nil {
		return nil, fmt.Errorf("computing embedding stats: %w", err)
	}
	return &stats, nil
}

func (s *knowledgeStore) queryChunks(ctx context.Context, query string, args ...any) ([]domain.Chunk, error) {
	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		var chunk domain.Chunk
		var ollamaBlob, openaiBlob []byte
		var metadataJSON string
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Position, &chunk.Content,
			&ollamaBlob, &openaiBlob, &metadataJSON); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		if v := bytesToFloat32Slice(ollamaBlob); v != nil {
			chunk.SetEmbedding(domain.EmbeddingSpaceOllama, v)
		}
		if v := bytesToFloat32Slice(openaiBlob); v != nil {
			chunk.SetEmbedding(domain.EmbeddingSpaceOpenAI, v)
		}
		if metadataJSON != "" {
			if err := json.Unmarshal([]byte(metadataJSON), &chunk.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshaling chunk metadata: %w", err)
			}
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, nil
}

// ==================== Retrieval ====================

// LexicalSearch ranks chunks of active documents with FTS5 bm25.
// Scores are negated so that larger is better.
func (s *knowledgeStore) LexicalSearch(ctx context.Context, query string, filter domain.SearchFilter, limit int) ([]domain.LexicalHit, error) {
	match := sanitizeFTS5Query(query)
	if match == "" {
		return nil, nil
	}

	where, args := filterClause("d.", filter)
	sqlQuery := `
		SELECT c.id, -bm25(chunks_fts) AS score
		FROM chunks_fts
		JOIN chunks c ON c.id = chunks_fts.chunk_id
		JOIN knowledge_documents d ON d.id = c.document_id
		WHERE chunks_fts MATCH ? AND d.is_active = 1` + where + `
		ORDER BY score DESC, c.id
		LIMIT ?`
	args = append([]any{match}, args...)
	args = append(args, sqlLimit(limit))

	rows, err := s.store.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("full-text search: %w", err)
	}
	defer rows.Close()

	var hits []domain.LexicalHit //nolint:prealloc // size unknown from query
	for rows.Next() {
		var hit domain.LexicalHit
		if err := rows.Scan(&hit.ChunkID, &hit.Score); err != nil {
			return nil, fmt.Errorf("scanning search hit: %w", err)
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search hits: %w", err)
	}
	return hits, nil
}

// Candidates returns the ranking inputs of chunks of active documents
// matching the filter. Title and content are not read.
func (s *knowledgeStore) Candidates(ctx context.Context, filter domain.SearchFilter, space domain.EmbeddingSpace) ([]domain.Candidate, error) {
	column, err := embeddingColumn(space)
	if err != nil {
		return nil, err
	}

	where, args := filterClause("d.", filter)
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT c.id, c.document_id, d.category, d.doc_type, c.`+column+`, d.updated_at
		FROM chunks c JOIN knowledge_documents d ON d.id = c.document_id
		WHERE d.is_active = 1`+where, args...)
	if err != nil {
		return nil, fmt.Errorf("querying candidates: %w", err)
	}
	defer rows.Close()

	var candidates []domain.Candidate //nolint:prealloc // size unknown from query
	for rows.Next() {
		var c domain.Candidate
		var category, docType, updatedAt string
		var blob []byte
		if err := rows.Scan(&c.ChunkID, &c.DocumentID, &category, &docType, &blob, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning candidate: %w", err)
		}
		c.Category = domain.Category(category)
		c.DocType = domain.DocumentType(docType)
		c.Embedding = bytesToFloat32Slice(blob)
		c.UpdatedAt = parseTime(updatedAt)
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating candidates: %w", err)
	}
	return candidates, nil
}

// CandidateDetails loads title and content for the given chunks.
func (s *knowledgeStore) CandidateDetails(ctx context.Context, chunkIDs []string) (map[string]domain.CandidateDetail, error) {
	details := make(map[string]domain.CandidateDetail, len(chunkIDs))
	if len(chunkIDs) == 0 {
		return details, nil
	}

	args := make([]any, len(chunkIDs))
	for i, id := range chunkIDs {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunkIDs)), ",")
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT c.id, d.title, c.content
		FROM chunks c JOIN knowledge_documents d ON d.id = c.document_id
		WHERE c.id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying candidate details: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var d domain.CandidateDetail
		if err := rows.Scan(&id, &d.Title, &d.Content); err != nil {
			return nil, fmt.Errorf("scanning candidate detail: %w", err)
		}
		details[id] = d
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating candidate details: %w", err)
	}
	return details, nil
}

// AcceleratorEntries returns mirror rows for all chunks of active documents.
func (s *knowledgeStore) AcceleratorEntries(ctx context.Context) ([]domain.AcceleratorEntry, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT c.id, c.document_id, d.title, c.content, d.category, d.doc_type, d.language
		FROM chunks c JOIN knowledge_documents d ON d.id = c.document_id
		WHERE d.is_active = 1
		ORDER BY c.document_id, c.position
	`)
	if err != nil {
		return nil, fmt.Errorf("querying accelerator entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.AcceleratorEntry //nolint:prealloc // size unknown from query
	for rows.Next() {
		var e domain.AcceleratorEntry
		var category, docType, language string
		if err := rows.Scan(&e.ChunkID, &e.DocumentID, &e.Title, &e.Content,
			&category, &docType, &language); err != nil {
			return nil, fmt.Errorf("scanning accelerator entry: %w", err)
		}
		e.Category = domain.Category(category)
		e.DocType = domain.DocumentType(docType)
		e.Language = domain.Language(language)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating accelerator entries: %w", err)
	}
	return entries, nil
}

// ==================== Helper Functions ====================

// scanKnowledgeDocument scans a document selected with documentColumns.
// sql.ErrNoRows is returned unwrapped.
func scanKnowledgeDocument(row rowScanner) (*domain.KnowledgeDocument, error) {
	var doc domain.KnowledgeDocument
	var sourceID, recordID sql.NullString
	var category, docType, language, tagsJSON, createdAt, updatedAt string
	var active, indexed int
	var completeness sql.NullInt64

	if err := row.Scan(&doc.ID, &sourceID, &recordID, &doc.Title, &doc.Description,
		&category, &docType, &language, &tagsJSON, &doc.SourceURL, &doc.FullText,
		&active, &indexed, &completeness, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	doc.SourceID = sourceID.String
	doc.RecordID = recordID.String
	doc.Category = domain.Category(category)
	doc.DocType = domain.DocumentType(docType)
	doc.Language = domain.Language(language)
	doc.Active = active == 1
	doc.Indexed = indexed == 1
	if completeness.Valid {
		v := int(completeness.Int64)
		doc.Completeness = &v
	}
	doc.CreatedAt = parseTime(createdAt)
	doc.UpdatedAt = parseTime(updatedAt)

	if tagsJSON != "" {
		if err := json.Unmarshal([]byte(tagsJSON), &doc.Tags); err != nil {
			return nil, fmt.Errorf("unmarshaling tags: %w", err)
		}
	}

	return &doc, nil
}

// filterClause builds the conjunctive filter for the given column prefix.
func filterClause(prefix string, filter domain.SearchFilter) (string, []any) {
	var b strings.Builder
	var args []any
	if filter.Category != "" {
		b.WriteString(" AND " + prefix + "category = ?")
		args = append(args, string(filter.Category))
	}
	if filter.DocType != "" {
		b.WriteString(" AND " + prefix + "doc_type = ?")
		args = append(args, string(filter.DocType))
	}
	if filter.Language != "" {
		b.WriteString(" AND " + prefix + "language = ?")
		args = append(args, string(filter.Language))
	}
	return b.String(), args
}

// embeddingColumn maps a space to its chunk column.
func embeddingColumn(space domain.EmbeddingSpace) (string, error) {
	switch space {
	case domain.EmbeddingSpaceOllama:
		return "embedding_ollama", nil
	case domain.EmbeddingSpaceOpenAI:
		return "embedding_openai", nil
	default:
		return "", fmt.Errorf("%w: embedding space %q", domain.ErrInvalidInput, space)
	}
}

// sqlLimit maps non-positive limits to SQLite's "no limit".
func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

// sanitizeFTS5Query keeps letters, digits and spaces, then quotes each term
// and joins them with OR so operators and punctuation cannot break MATCH.
func sanitizeFTS5Query(query string) string {
	var b strings.Builder
	for _, r := range query {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), unicode.Is(unicode.Mn, r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}

	terms := strings.Fields(b.String())
	if len(terms) == 0 {
		return ""
	}
	for i, term := range terms {
		terms[i] = `"` + term + `"`
	}
	return strings.Join(terms, " OR ")
}
