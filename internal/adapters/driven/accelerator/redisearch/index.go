// Package redisearch mirrors knowledge chunks into a RediSearch index for
// fast filtered full-text lookups. The index is never authoritative and can
// be rebuilt from the knowledge store at any time.
package redisearch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/lexindex/internal/core/domain"
	"github.com/custodia-labs/lexindex/internal/core/ports/driven"
	"github.com/custodia-labs/lexindex/internal/logger"
)

// Ensure Index implements the interface.
var _ driven.AcceleratorIndex = (*Index)(nil)

// Index and key layout.
const (
	IndexName = "idx:kb_chunks"
	KeyPrefix = "kb:chunk:"

	// DefaultSearchLimit applies when a query has no limit.
	DefaultSearchLimit = 10

	// deleteScanLimit bounds the chunk keys removed per document.
	deleteScanLimit = 10000

	connectTimeout = 3 * time.Second
)

// Hash fields.
const (
	fieldDocumentID = "kb_id"
	fieldContent    = "content"
	fieldCategory   = "category"
	fieldLanguage   = "language"
	fieldDocType    = "doc_type"
	fieldTitle      = "title"
)

// Index is a RediSearch-backed accelerator.
type Index struct {
	client *redis.Client
}

// New connects to Redis and makes sure the index exists.
func New(ctx context.Context, redisURL string) (*Index, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	// Search replies are parsed in their RESP2 array form.
	opts.Protocol = 2

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %w", domain.ErrAcceleratorUnavailable, err)
	}

	idx := &Index{client: client}
	if err := idx.ensureIndex(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return idx, nil
}

// Enabled always returns true.
func (i *Index) Enabled() bool { return true }

// ==================== Index management ====================

func (i *Index) ensureIndex(ctx context.Context) error {
	err := i.client.Do(ctx, "FT.INFO", IndexName).Err()
	if err == nil {
		return nil
	}
	if !isUnknownIndex(err) {
		return fmt.Errorf("ft.info: %w", err)
	}
	if err := i.client.Do(ctx, createArgs()...).Err(); err != nil {
		return fmt.Errorf("ft.create: %w", err)
	}
	logger.Info("Created RediSearch index %s", IndexName)
	return nil
}

func createArgs() []any {
	return []any{
		"FT.CREATE", IndexName, "ON", "HASH", "PREFIX", "1", KeyPrefix,
		"SCHEMA",
		fieldDocumentID, "TAG", "SEPARATOR", "|",
		fieldContent, "TEXT", "WEIGHT", "1.0",
		fieldCategory, "TAG",
		fieldLanguage, "TAG",
		fieldDocType, "TAG",
		fieldTitle, "TEXT",
	}
}

// Clear drops the index with its documents and recreates it empty.
func (i *Index) Clear(ctx context.Context) error {
	if err := i.client.Do(ctx, "FT.DROPINDEX", IndexName, "DD").Err(); err != nil && !isUnknownIndex(err) {
		return fmt.Errorf("ft.dropindex: %w", err)
	}
	return i.ensureIndex(ctx)
}

// Stats reads the document and record counts from FT.INFO.
func (i *Index) Stats(ctx context.Context) (*domain.AcceleratorStats, error) {
	stats := &domain.AcceleratorStats{Enabled: true, IndexName: IndexName}

	reply, err := i.client.Do(ctx, "FT.INFO", IndexName).Result()
	if isUnknownIndex(err) {
		return stats, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ft.info: %w", err)
	}

	info := pairs(reply)
	stats.NumDocs = toInt64(info["num_docs"])
	stats.NumRecords = toInt64(info["num_records"])
	return stats, nil
}

// ==================== Writes ====================

// Upsert writes all entries in one MULTI/EXEC transaction.
func (i *Index) Upsert(ctx context.Context, entries []domain.AcceleratorEntry) error {
	if len(entries) == 0 {
		return nil
	}
	_, err := i.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, e := range entries {
			pipe.HSet(ctx, KeyPrefix+e.ChunkID, entryFields(e))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("hset %d chunks: %w", len(entries), err)
	}
	return nil
}

func entryFields(e domain.AcceleratorEntry) map[string]any {
	return map[string]any{
		fieldDocumentID: e.DocumentID,
		fieldContent:    e.Content,
		fieldCategory:   string(e.Category),
		fieldLanguage:   string(e.Language),
		fieldDocType:    string(e.DocType),
		fieldTitle:      e.Title,
	}
}

// DeleteChunk removes one chunk key.
func (i *Index) DeleteChunk(ctx context.Context, chunkID string) error {
	if err := i.client.Del(ctx, KeyPrefix+chunkID).Err(); err != nil {
		return fmt.Errorf("del chunk: %w", err)
	}
	return nil
}

// DeleteDocument removes every chunk key of a document.
func (i *Index) DeleteDocument(ctx context.Context, documentID string) error {
	query := fmt.Sprintf("@%s:{%s}", fieldDocumentID, EscapeTag(documentID))
	reply, err := i.client.Do(ctx, "FT.SEARCH", IndexName, query, "NOCONTENT", "LIMIT", 0, deleteScanLimit).Result()
	if err != nil {
		return fmt.Errorf("ft.search: %w", err)
	}

	keys := parseKeys(reply)
	if len(keys) == 0 {
		return nil
	}
	if err := i.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("del document chunks: %w", err)
	}
	return nil
}

// ==================== Search ====================

// Search runs a filtered full-text query. Hits come back best first.
func (i *Index) Search(ctx context.Context, query domain.AcceleratorQuery) ([]domain.AcceleratorHit, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	q := BuildQuery(query.Text, query.Filter)
	reply, err := i.client.Do(ctx, "FT.SEARCH", IndexName, q, "WITHSCORES", "LIMIT", 0, limit).Result()
	if err != nil {
		return nil, fmt.Errorf("ft.search %q: %w", q, err)
	}

	hits, err := ParseSearchReply(reply)
	if err != nil {
		return nil, err
	}
	logger.Debug("RediSearch %q: %d hits", q, len(hits))
	return hits, nil
}

// BuildQuery renders a RediSearch query: the sanitised text (or * when
// empty) followed by one tag clause per non-empty filter field.
func BuildQuery(text string, filter domain.SearchFilter) string {
	parts := []string{"*"}
	if terms := SanitizeText(text); terms != "" {
		parts[0] = terms
	}
	if filter.Category != "" {
		parts = append(parts, fmt.Sprintf("@%s:{%s}", fieldCategory, EscapeTag(string(filter.Category))))
	}
	if filter.Language != "" {
		parts = append(parts, fmt.Sprintf("@%s:{%s}", fieldLanguage, EscapeTag(string(filter.Language))))
	}
	if filter.DocType != "" {
		parts = append(parts, fmt.Sprintf("@%s:{%s}", fieldDocType, EscapeTag(string(filter.DocType))))
	}
	return strings.Join(parts, " ")
}

// SanitizeText keeps letters, digits and marks, turning query syntax
// characters into spaces.
func SanitizeText(text string) string {
	var b strings.Builder
	for _, r := range text {
		if isWordRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// EscapeTag backslash-escapes every character of a tag value that is not
// a letter, digit or underscore.
func EscapeTag(value string) string {
	var b strings.Builder
	for _, r := range value {
		if !isWordRune(r) && r != '_' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ParseSearchReply decodes an FT.SEARCH reply of the form
// [total, key, score?, [field, value, ...], ...].
func ParseSearchReply(reply any) ([]domain.AcceleratorHit, error) {
	items, ok := reply.([]any)
	if !ok || len(items) == 0 {
		return nil, errors.New("ft.search: unexpected reply")
	}

	var hits []domain.AcceleratorHit
	for i := 1; i < len(items); {
		key, ok := items[i].(string)
		if !ok {
			return nil, fmt.Errorf("ft.search: key at %d is %T", i, items[i])
		}
		i++

		hit := domain.AcceleratorHit{ChunkID: strings.TrimPrefix(key, KeyPrefix), Score: 1}
		if i < len(items) {
			if _, isFields := items[i].([]any); !isFields {
				hit.Score = toFloat(items[i])
				i++
			}
		}
		if i < len(items) {
			if fields, isFields := items[i].([]any); isFields {
				doc := pairs(fields)
				hit.DocumentID = toString(doc[fieldDocumentID])
				hit.Content = toString(doc[fieldContent])
				hit.Category = domain.Category(toString(doc[fieldCategory]))
				hit.Language = domain.Language(toString(doc[fieldLanguage]))
				i++
			}
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// parseKeys returns the keys of a NOCONTENT reply.
func parseKeys(reply any) []string {
	items, ok := reply.([]any)
	if !ok {
		return nil
	}
	var keys []string
	for _, item := range items[min(1, len(items)):] {
		if key, ok := item.(string); ok {
			keys = append(keys, key)
		}
	}
	return keys
}

// Close releases the connection pool.
func (i *Index) Close() error {
	return i.client.Close()
}

// ==================== Helpers ====================

func isUnknownIndex(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unknown index name") || strings.Contains(msg, "no such index")
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}

// pairs turns a flat [k1, v1, k2, v2, ...] reply into a map.
func pairs(reply any) map[string]any {
	items, _ := reply.([]any)
	out := make(map[string]any, len(items)/2)
	for i := 0; i+1 < len(items); i += 2 {
		if k, ok := items[i].(string); ok {
			out[k] = items[i+1]
		}
	}
	return out
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int64:
		return float64(t)
	default:
		f, _ := strconv.ParseFloat(toString(v), 64)
		return f
	}
}

func toInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case float64:
		return int64(t)
	default:
		f, _ := strconv.ParseFloat(toString(v), 64)
		return int64(f)
	}
}
