package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/custodia-labs/lexindex/internal/core/domain"
	"github.com/custodia-labs/lexindex/internal/core/ports/driven"
	"github.com/custodia-labs/lexindex/internal/core/ports/driving"
	"github.com/custodia-labs/lexindex/internal/logger"
)

// Ensure ReprocessService implements the interface.
var _ driving.ReprocessService = (*ReprocessService)(nil)

const (
	// DefaultReprocessPause separates documents within a run.
	DefaultReprocessPause = time.Second

	descriptionMinLength = 30
	descriptionMaxLength = 240
	maxDerivedTags       = 10

	// summaryInputLength bounds the text sent to a summariser.
	summaryInputLength = 8000
)

// DocumentIndexer re-splits, re-chunks, re-embeds and re-mirrors a document.
type DocumentIndexer interface {
	IndexDocument(ctx context.Context, documentID string) (int, error)
}

// ReprocessOption configures a ReprocessService.
type ReprocessOption func(*ReprocessService)

// WithReprocessPause sets the pause between documents.
func WithReprocessPause(d time.Duration) ReprocessOption {
	return func(s *ReprocessService) {
		if d >= 0 {
			s.pause = d
		}
	}
}

// WithReprocessLanguageDetector fills in missing languages.
func WithReprocessLanguageDetector(d driven.LanguageDetector) ReprocessOption {
	return func(s *ReprocessService) {
		s.detector = d
	}
}

// WithSummariser writes missing descriptions with a language model.
func WithSummariser(summariser driven.Summariser) ReprocessOption {
	return func(s *ReprocessService) {
		s.summariser = summariser
	}
}

// ReprocessService enriches the metadata of incomplete documents.
type ReprocessService struct {
	store      driven.KnowledgeStore
	splitter   driven.SectionSplitter
	indexer    DocumentIndexer
	detector   driven.LanguageDetector
	summariser driven.Summariser
	pause      time.Duration

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// NewReprocessService creates a reprocess service. The indexer is used
// when a run asks for re-indexing and may be nil otherwise.
func NewReprocessService(
	store driven.KnowledgeStore,
	splitter driven.SectionSplitter,
	indexer DocumentIndexer,
	opts ...ReprocessOption,
) *ReprocessService {
	s := &ReprocessService{
		store:    store,
		splitter: splitter,
		indexer:  indexer,
		pause:    DefaultReprocessPause,
		now:      time.Now,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reprocess runs one batch over the least complete eligible documents.
func (s *ReprocessService) Reprocess(ctx context.Context, opts domain.ReprocessOptions) (*domain.ReprocessResult, error) {
	opts = opts.Normalise()
	if opts.Category != "" && !opts.Category.IsValid() {
		return nil, fmt.Errorf("%w: category %q", domain.ErrInvalidInput, opts.Category)
	}
	logger.Section("Reprocess")
	logger.Debug("Batch %d, threshold %d, category %q, reindex %t, dry run %t",
		opts.BatchSize, opts.CompletenessThreshold, opts.Category, opts.ReprocessAfter, opts.DryRun)

	docs, err := s.store.ListEligible(ctx, opts.CompletenessThreshold, opts.Category, opts.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("list eligible documents: %w", err)
	}

	result := &domain.ReprocessResult{
		DryRun:   opts.DryRun,
		Selected: len(docs),
		Items:    make([]domain.ReprocessItem, 0, len(docs)),
	}

	if opts.DryRun {
		for _, doc := range docs {
			result.Items = append(result.Items, domain.ReprocessItem{
				DocumentID:           doc.ID,
				Title:                doc.Title,
				Category:             doc.Category,
				PreviousCompleteness: doc.Completeness,
			})
		}
		return result, nil
	}

	for i := range docs {
		if i > 0 {
			if err := s.sleep(ctx, s.pause); err != nil {
				return result, err
			}
		}

		item := s.reprocessOne(ctx, &docs[i], opts.ReprocessAfter)
		if item.Success {
			result.Succeeded++
		} else {
			result.Failed++
			logger.Warn("Reprocess %s failed: %s", item.DocumentID, item.Error)
		}
		result.Items = append(result.Items, item)
	}

	logger.Info("Reprocess: %d selected, %d succeeded, %d failed", result.Selected, result.Succeeded, result.Failed)
	return result, nil
}

func (s *ReprocessService) reprocessOne(ctx context.Context, doc *domain.KnowledgeDocument, reindex bool) domain.ReprocessItem {
	start := s.now()
	item := domain.ReprocessItem{
		DocumentID:           doc.ID,
		Title:                doc.Title,
		Category:             doc.Category,
		PreviousCompleteness: doc.Completeness,
	}
	fail := func(err error) domain.ReprocessItem {
		item.Error = err.Error()
		item.Duration = s.now().Sub(start)
		return item
	}

	if err := s.enrich(ctx, doc); err != nil {
		return fail(err)
	}
	score := doc.ComputeCompleteness()
	doc.Completeness = &score
	if err := s.store.SaveDocument(ctx, doc); err != nil {
		return fail(fmt.Errorf("save document: %w", err))
	}
	item.NewCompleteness = score

	if reindex && s.indexer != nil {
		n, err := s.indexer.IndexDocument(ctx, doc.ID)
		if err != nil {
			return fail(fmt.Errorf("reindex: %w", err))
		}
		item.ChunksIndexed = n
	}

	item.Success = true
	item.Duration = s.now().Sub(start)
	return item
}

// enrich fills missing language, description and tags from the text.
func (s *ReprocessService) enrich(ctx context.Context, doc *domain.KnowledgeDocument) error {
	if doc.Language == domain.LanguageUnknown && s.detector != nil {
		doc.Language = s.detector.Detect(doc.FullText)
	}

	if utf8.RuneCountInString(strings.TrimSpace(doc.Description)) < descriptionMinLength {
		if d := s.describe(ctx, doc); d != "" {
			doc.Description = d
		}
	}

	if len(doc.Tags) == 0 {
		sections, err := s.splitter.Split(doc.FullText)
		if err != nil {
			return fmt.Errorf("split document: %w", err)
		}
		doc.Tags = DeriveTags(sections, doc.Category)
	}
	return nil
}

// describe asks the summariser first and falls back to the leading text
// when it fails or answers with too little.
func (s *ReprocessService) describe(ctx context.Context, doc *domain.KnowledgeDocument) string {
	if s.summariser != nil && utf8.RuneCountInString(doc.FullText) >= descriptionMinLength {
		input := truncateRunes(doc.FullText, summaryInputLength)
		summary, err := s.summariser.Summarise(ctx, input, descriptionMaxLength)
		switch {
		case err != nil:
			logger.Warn("Reprocess %s: summariser %s failed: %v", doc.ID, s.summariser.ModelName(), err)
		case utf8.RuneCountInString(summary) >= descriptionMinLength:
			return Snippet(summary, descriptionMaxLength)
		default:
			logger.Debug("Reprocess %s: summary too short, using leading text", doc.ID)
		}
	}
	return DeriveDescription(doc.FullText)
}

// EligibleCounts reports how many documents a run would consider.
func (s *ReprocessService) EligibleCounts(ctx context.Context, threshold int) (*domain.EligibleCounts, error) {
	if threshold <= 0 {
		threshold = domain.DefaultCompletenessThreshold
	}
	counts, err := s.store.CountEligible(ctx, threshold)
	if err != nil {
		return nil, fmt.Errorf("count eligible documents: %w", err)
	}
	return counts, nil
}

// DeriveDescription builds a description from the leading text, ending at
// a sentence boundary when one falls in range.
func DeriveDescription(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) < descriptionMinLength {
		return ""
	}
	if len(runes) <= descriptionMaxLength {
		return text
	}

	head := runes[:descriptionMaxLength]
	for i := len(head) - 1; i >= descriptionMinLength; i-- {
		switch head[i] {
		case '.', '!', '?', '؟':
			return string(head[:i+1])
		}
	}
	return Snippet(text, descriptionMaxLength)
}

// DeriveTags collects distinct detected headings. Documents without
// headings are tagged with their category.
func DeriveTags(sections []domain.Section, category domain.Category) []string {
	seen := make(map[string]bool)
	var tags []string
	for _, sec := range sections {
		if sec.Level != 1 {
			continue
		}
		tag := strings.Join(strings.Fields(sec.Title), " ")
		key := strings.ToLower(tag)
		if tag == "" || seen[key] {
			continue
		}
		seen[key] = true
		tags = append(tags, tag)
		if len(tags) == maxDerivedTags {
			break
		}
	}
	if len(tags) == 0 && category.IsValid() && category != domain.CategoryAutre {
		tags = []string{string(category)}
	}
	return tags
}
