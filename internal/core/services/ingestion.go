package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/custodia-labs/lexindex/internal/core/domain"
	"github.com/custodia-labs/lexindex/internal/core/ports/driven"
	"github.com/custodia-labs/lexindex/internal/core/ports/driving"
	"github.com/custodia-labs/lexindex/internal/logger"
)

// Ensure IngestionService implements the interface.
var _ driving.IngestionService = (*IngestionService)(nil)

// Ingestion defaults.
const (
	DefaultDownloadTimeout   = 30 * time.Second
	DefaultIndexPendingLimit = 10
)

// IngestionOption configures an IngestionService.
type IngestionOption func(*IngestionService)

// WithDriveClients enables IngestRecord by supplying drive clients.
func WithDriveClients(clients driven.DriveClientFactory) IngestionOption {
	return func(s *IngestionService) { s.clients = clients }
}

// WithLanguageDetector sets the detector used to tag documents.
func WithLanguageDetector(detector driven.LanguageDetector) IngestionOption {
	return func(s *IngestionService) { s.language = detector }
}

// WithEmbeddings embeds chunks as they are indexed.
func WithEmbeddings(embeddings driving.EmbeddingGenerator) IngestionOption {
	return func(s *IngestionService) { s.embeddings = embeddings }
}

// WithAccelerator mirrors indexed chunks into the accelerator.
func WithAccelerator(index driven.AcceleratorIndex) IngestionOption {
	return func(s *IngestionService) { s.accelerator = index }
}

// WithDownloadTimeout bounds a single file download.
func WithDownloadTimeout(d time.Duration) IngestionOption {
	return func(s *IngestionService) {
		if d > 0 {
			s.downloadTimeout = d
		}
	}
}

// IngestionService turns drive files and uploaded texts into indexed
// knowledge documents.
type IngestionService struct {
	store           driven.KnowledgeStore
	records         driven.PageRecordStore
	normalisers     driven.NormaliserRegistry
	splitter        driven.SectionSplitter
	chunker         driven.TextChunker
	clients         driven.DriveClientFactory
	language        driven.LanguageDetector
	embeddings      driving.EmbeddingGenerator
	accelerator     driven.AcceleratorIndex
	downloadTimeout time.Duration
	newID           func() string
}

// NewIngestionService creates an ingestion service.
func NewIngestionService(
	store driven.KnowledgeStore,
	records driven.PageRecordStore,
	normalisers driven.NormaliserRegistry,
	splitter driven.SectionSplitter,
	chunker driven.TextChunker,
	opts ...IngestionOption,
) *IngestionService {
	s := &IngestionService{
		store:           store,
		records:         records,
		normalisers:     normalisers,
		splitter:        splitter,
		chunker:         chunker,
		downloadTimeout: DefaultDownloadTimeout,
		newID:           uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ==================== Ingestion ====================

// IngestRecord downloads the file behind a page record, extracts its text
// and creates or updates the document built from it. The record ends in
// status crawled on success and failed otherwise.
func (s *IngestionService) IngestRecord(ctx context.Context, source domain.Source, record domain.PageRecord) (*domain.KnowledgeDocument, error) {
	doc, wordCount, err := s.ingestRecord(ctx, source, record)
	if err != nil {
		if statusErr := s.records.SetStatus(ctx, record.ID, domain.PageStatusFailed, 0); statusErr != nil {
			logger.Warn("ingest: marking record %s failed: %v", record.ID, statusErr)
		}
		return nil, err
	}
	if err := s.records.SetStatus(ctx, record.ID, domain.PageStatusCrawled, wordCount); err != nil {
		return doc, fmt.Errorf("update record status: %w", err)
	}
	return doc, nil
}

func (s *IngestionService) ingestRecord(ctx context.Context, source domain.Source, record domain.PageRecord) (*domain.KnowledgeDocument, int, error) {
	if record.File == nil {
		return nil, 0, fmt.Errorf("%w: record %s has no file", domain.ErrInvalidInput, record.ID)
	}
	if s.clients == nil {
		return nil, 0, errors.New("no drive client configured")
	}
	logger.Debug("Ingesting %s (%s)", record.File.Name, record.File.MimeType)

	client, err := s.clients(ctx, source)
	if err != nil {
		return nil, 0, fmt.Errorf("drive client: %w", err)
	}

	dlCtx, cancel := context.WithTimeout(ctx, s.downloadTimeout)
	raw, err := client.Download(dlCtx, *record.File)
	cancel()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %s: %w", domain.ErrDownload, record.File.Name, err)
	}
	raw.SourceID = source.ID
	raw.RecordID = record.ID

	text, err := s.normalisers.Normalise(ctx, raw)
	if err != nil {
		return nil, 0, fmt.Errorf("normalise %s: %w", record.File.Name, err)
	}
	if err := checkIndexable(text.Text); err != nil {
		return nil, 0, err
	}

	doc, err := s.store.FindByRecord(ctx, record.ID)
	if err != nil {
		return nil, 0, fmt.Errorf("find document: %w", err)
	}
	if doc == nil {
		doc = &domain.KnowledgeDocument{ID: s.newID(), RecordID: record.ID}
	}
	doc.SourceID = source.ID
	doc.Title = firstNonEmpty(text.Title, record.Title, record.File.Name)
	doc.Category = source.Category
	if doc.Category == "" {
		doc.Category = domain.CategoryGoogleDrive
	}
	doc.DocType = source.DocType
	if !doc.DocType.IsValid() {
		doc.DocType = doc.Category.DocType()
	}
	doc.SourceURL = record.URL
	doc.FullText = text.Text
	doc.Language = s.detect(text.Text)
	doc.Active = true
	doc.Indexed = false
	score := doc.ComputeCompleteness()
	doc.Completeness = &score

	if err := s.store.SaveDocument(ctx, doc); err != nil {
		return nil, 0, fmt.Errorf("save document: %w", err)
	}
	if _, err := s.IndexDocument(ctx, doc.ID); err != nil {
		return nil, 0, err
	}

	saved, err := s.store.GetDocument(ctx, doc.ID)
	if err != nil {
		return nil, 0, fmt.Errorf("get document: %w", err)
	}
	return saved, len(strings.Fields(text.Text)), nil
}

// IngestText stores an uploaded text as a document and indexes it.
func (s *IngestionService) IngestText(ctx context.Context, doc domain.KnowledgeDocument) (*domain.KnowledgeDocument, error) {
	doc.FullText = strings.TrimSpace(doc.FullText)
	if err := checkIndexable(doc.FullText); err != nil {
		return nil, err
	}
	if doc.ID == "" {
		doc.ID = s.newID()
	}
	if doc.Category == "" {
		doc.Category = domain.CategoryAutre
	}
	if !doc.Category.IsValid() {
		return nil, fmt.Errorf("%w: category %q", domain.ErrInvalidInput, doc.Category)
	}
	if !doc.DocType.IsValid() {
		doc.DocType = doc.Category.DocType()
	}
	if doc.Language == domain.LanguageUnknown {
		doc.Language = s.detect(doc.FullText)
	}
	doc.Active = true
	doc.Indexed = false
	score := doc.ComputeCompleteness()
	doc.Completeness = &score

	if err := s.store.SaveDocument(ctx, &doc); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}
	if _, err := s.IndexDocument(ctx, doc.ID); err != nil {
		return nil, err
	}
	return s.store.GetDocument(ctx, doc.ID)
}

// IngestUpload extracts the text of an uploaded file with the normaliser
// matching its MIME type, then stores and indexes it like IngestText.
// Title falls back to the extracted title and then to the file name.
func (s *IngestionService) IngestUpload(ctx context.Context, raw domain.RawDocument, meta domain.KnowledgeDocument) (*domain.KnowledgeDocument, error) {
	text, err := s.normalisers.Normalise(ctx, &raw)
	if err != nil {
		return nil, fmt.Errorf("normalise %s: %w", raw.Name, err)
	}
	meta.Title = firstNonEmpty(meta.Title, text.Title, raw.Name)
	meta.FullText = text.Text
	if meta.SourceURL == "" {
		meta.SourceURL = raw.URI
	}
	return s.IngestText(ctx, meta)
}

// ==================== Indexing ====================

// IndexDocument replaces a document's chunks: split into sections, chunk,
// persist, embed and mirror. Embedding and mirroring failures are logged;
// the chunks are kept and can be backfilled later.
func (s *IngestionService) IndexDocument(ctx context.Context, documentID string) (int, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return 0, fmt.Errorf("get document: %w", err)
	}
	logger.Section("Index " + doc.ID)

	s.unmirror(ctx, doc.ID)

	sections, err := s.splitter.Split(doc.FullText)
	if err != nil {
		return 0, fmt.Errorf("split document: %w", err)
	}
	chunks := s.chunker.ChunkSections(doc.ID, sections)
	for i := range chunks {
		if chunks[i].Metadata == nil {
			chunks[i].Metadata = make(map[string]any)
		}
		chunks[i].Metadata["total_sections"] = len(sections)
	}
	logger.Debug("%d sections, %d chunks", len(sections), len(chunks))

	if err := s.store.ReplaceChunks(ctx, doc.ID, chunks); err != nil {
		return 0, fmt.Errorf("replace chunks: %w", err)
	}

	if s.embeddings != nil && len(chunks) > 0 {
		report, err := s.embeddings.EmbedChunks(ctx, chunks)
		switch {
		case errors.Is(err, domain.ErrEmbeddingUnavailable):
			logger.Debug("No embedding provider, chunks stored without vectors")
		case err != nil:
			logger.Warn("ingest: embedding %s: %v", doc.ID, err)
		case len(report.Failed) > 0:
			logger.Warn("ingest: %d of %d chunks of %s left without embedding", len(report.Failed), len(chunks), doc.ID)
		}
	}

	s.mirror(ctx, doc, chunks)
	return len(chunks), nil
}

// IndexPending indexes documents that have no chunks yet, oldest first.
func (s *IngestionService) IndexPending(ctx context.Context, limit int) (indexed, failed int, err error) {
	if limit <= 0 {
		limit = DefaultIndexPendingLimit
	}
	docs, err := s.store.ListUnindexed(ctx, limit)
	if err != nil {
		return 0, 0, fmt.Errorf("list unindexed: %w", err)
	}
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return indexed, failed, err
		}
		if _, err := s.IndexDocument(ctx, doc.ID); err != nil {
			logger.Warn("index pending: %s: %v", doc.ID, err)
			failed++
			continue
		}
		indexed++
	}
	return indexed, failed, nil
}

// Get retrieves a document by ID.
func (s *IngestionService) Get(ctx context.Context, documentID string) (*domain.KnowledgeDocument, error) {
	return s.store.GetDocument(ctx, documentID)
}

// Chunks returns a document's chunks ordered by position.
func (s *IngestionService) Chunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	if _, err := s.store.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}
	return s.store.GetChunks(ctx, documentID)
}

// ==================== Accelerator mirroring ====================

func (s *IngestionService) mirror(ctx context.Context, doc *domain.KnowledgeDocument, chunks []domain.Chunk) {
	if s.accelerator == nil || !s.accelerator.Enabled() || len(chunks) == 0 {
		return
	}
	entries := make([]domain.AcceleratorEntry, len(chunks))
	for i, c := range chunks {
		entries[i] = domain.AcceleratorEntry{
			ChunkID:    c.ID,
			DocumentID: doc.ID,
			Title:      doc.Title,
			Content:    c.Content,
			Category:   doc.Category,
			DocType:    doc.DocType,
			Language:   doc.Language,
		}
	}
	if err := s.accelerator.Upsert(ctx, entries); err != nil {
		logger.Warn("accelerator: mirroring %s: %v", doc.ID, err)
	}
}

func (s *IngestionService) unmirror(ctx context.Context, documentID string) {
	if s.accelerator == nil || !s.accelerator.Enabled() {
		return
	}
	if err := s.accelerator.DeleteDocument(ctx, documentID); err != nil {
		logger.Warn("accelerator: removing %s: %v", documentID, err)
	}
}

// ==================== Helpers ====================

func (s *IngestionService) detect(text string) domain.Language {
	if s.language == nil {
		return domain.LanguageUnknown
	}
	return s.language.Detect(text)
}

func checkIndexable(text string) error {
	if n := utf8.RuneCountInString(strings.TrimSpace(text)); n < domain.MinIndexableLength {
		return fmt.Errorf("%w: %d characters, need %d", domain.ErrTextTooShort, n, domain.MinIndexableLength)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
