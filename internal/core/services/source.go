package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/lexindex/internal/core/domain"
	"github.com/custodia-labs/lexindex/internal/core/ports/driven"
	"github.com/custodia-labs/lexindex/internal/core/ports/driving"
	"github.com/custodia-labs/lexindex/internal/logger"
)

// Ensure SourceService implements the interface.
var _ driving.SourceService = (*SourceService)(nil)

// SourceService manages source configurations.
type SourceService struct {
	sourceStore driven.SourceStore
	recordStore driven.PageRecordStore
	knowledge   driven.KnowledgeStore
	accelerator driven.AcceleratorIndex
}

// NewSourceService creates a new source service. The record, knowledge
// and accelerator stores are used for cleanup on removal and may be nil.
func NewSourceService(
	sourceStore driven.SourceStore,
	recordStore driven.PageRecordStore,
	knowledge driven.KnowledgeStore,
	accelerator driven.AcceleratorIndex,
) *SourceService {
	return &SourceService{
		sourceStore: sourceStore,
		recordStore: recordStore,
		knowledge:   knowledge,
		accelerator: accelerator,
	}
}

// Add creates a new source configuration.
func (s *SourceService) Add(ctx context.Context, source domain.Source) error {
	if err := source.Validate(); err != nil {
		return err
	}
	// Check if already exists
	existing, err := s.sourceStore.Get(ctx, source.ID)
	if err == nil && existing != nil {
		return domain.ErrAlreadyExists
	}
	return s.sourceStore.Save(ctx, source)
}

// Get retrieves a source by ID.
func (s *SourceService) Get(ctx context.Context, id string) (*domain.Source, error) {
	return s.sourceStore.Get(ctx, id)
}

// List returns all configured sources.
func (s *SourceService) List(ctx context.Context) ([]domain.Source, error) {
	return s.sourceStore.List(ctx)
}

// Update modifies an existing source configuration.
func (s *SourceService) Update(ctx context.Context, source domain.Source) error {
	if err := source.Validate(); err != nil {
		return err
	}
	// Verify source exists
	if _, err := s.sourceStore.Get(ctx, source.ID); err != nil {
		return domain.ErrNotFound
	}
	return s.sourceStore.Save(ctx, source)
}

// Remove deletes a source, its discovered records and the documents built from them.
func (s *SourceService) Remove(ctx context.Context, id string) error {
	if _, err := s.sourceStore.Get(ctx, id); err != nil {
		return err
	}

	if s.recordStore != nil {
		records, err := s.recordStore.ListBySource(ctx, id)
		if err != nil {
			return fmt.Errorf("list records: %w", err)
		}
		for i := range records {
			s.removeDocument(ctx, records[i].ID)
		}
		if err := s.recordStore.DeleteBySource(ctx, id); err != nil {
			return fmt.Errorf("delete records: %w", err)
		}
	}
	return s.sourceStore.Delete(ctx, id)
}

// removeDocument deletes the document of a record. Failures are logged so
// that cleanup continues.
func (s *SourceService) removeDocument(ctx context.Context, recordID string) {
	if s.knowledge == nil {
		return
	}
	doc, err := s.knowledge.FindByRecord(ctx, recordID)
	if err != nil || doc == nil {
		return
	}
	if s.accelerator != nil {
		if err := s.accelerator.DeleteDocument(ctx, doc.ID); err != nil {
			logger.Warn("Accelerator cleanup of %s failed: %v", doc.ID, err)
		}
	}
	if err := s.knowledge.DeleteDocument(ctx, doc.ID); err != nil {
		logger.Warn("Delete document %s failed: %v", doc.ID, err)
	}
}

// Import reads source definitions from a YAML file and saves them.
// Existing sources keep their creation and last crawl times.
func (s *SourceService) Import(ctx context.Context, path string) ([]domain.Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	sources, err := ParseSourcesYAML(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	for i := range sources {
		existing, err := s.sourceStore.Get(ctx, sources[i].ID)
		switch {
		case err == nil && existing != nil:
			sources[i].CreatedAt = existing.CreatedAt
			sources[i].LastCrawlAt = existing.LastCrawlAt
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			return nil, fmt.Errorf("get source %s: %w", sources[i].ID, err)
		}
		if err := s.sourceStore.Save(ctx, sources[i]); err != nil {
			return nil, fmt.Errorf("save source %s: %w", sources[i].ID, err)
		}
	}
	logger.Info("Imported %d sources from %s", len(sources), path)
	return sources, nil
}

// ==================== YAML definitions ====================

type sourcesFile struct {
	Sources []sourceEntry `yaml:"sources"`
}

type sourceEntry struct {
	ID            string   `yaml:"id"`
	Name          string   `yaml:"name"`
	Kind          string   `yaml:"kind"`
	BaseLocation  string   `yaml:"base_location"`
	FolderID      string   `yaml:"folder_id"`
	Recursive     *bool    `yaml:"recursive"`
	FileTypes     []string `yaml:"file_types"`
	MaxDepth      int      `yaml:"max_depth"`
	UserAgent     string   `yaml:"user_agent"`
	Exclude       []string `yaml:"exclude"`
	Category      string   `yaml:"category"`
	DocType       string   `yaml:"doc_type"`
	MaxPages      int      `yaml:"max_pages"`
	MaxFileSizeMB int      `yaml:"max_file_size_mb"`
	RateLimitMS   int      `yaml:"rate_limit_ms"`
	TimeoutSec    int      `yaml:"timeout_seconds"`
	Quota         struct {
		PerHour int `yaml:"per_hour"`
		PerDay  int `yaml:"per_day"`
	} `yaml:"quota"`
	Active *bool `yaml:"active"`
}

// ParseSourcesYAML decodes and validates a list of source definitions.
// Drive sources are recursive and all sources are active unless stated.
func ParseSourcesYAML(data []byte) ([]domain.Source, error) {
	var file sourcesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	seen := make(map[string]bool, len(file.Sources))
	sources := make([]domain.Source, 0, len(file.Sources))
	for i, e := range file.Sources {
		src, err := e.toSource()
		if err != nil {
			return nil, fmt.Errorf("source %d: %w", i+1, err)
		}
		if seen[src.ID] {
			return nil, fmt.Errorf("%w: duplicate source id %q", domain.ErrInvalidInput, src.ID)
		}
		seen[src.ID] = true
		sources = append(sources, src)
	}
	return sources, nil
}

func (e sourceEntry) toSource() (domain.Source, error) {
	src := domain.Source{
		ID:           e.ID,
		Name:         e.Name,
		Kind:         domain.SourceKind(e.Kind),
		BaseLocation: e.BaseLocation,
		Category:     domain.Category(e.Category),
		DocType:      domain.DocumentType(e.DocType),
		Crawl: domain.CrawlConfig{
			MaxPages:       e.MaxPages,
			MaxFileSize:    int64(e.MaxFileSizeMB) * 1024 * 1024,
			RateLimitDelay: time.Duration(e.RateLimitMS) * time.Millisecond,
			Timeout:        time.Duration(e.TimeoutSec) * time.Second,
		},
		Quota: domain.Quota{
			MaxPagesPerHour: e.Quota.PerHour,
			MaxPagesPerDay:  e.Quota.PerDay,
		},
		Active: e.Active == nil || *e.Active,
	}
	if src.Name == "" {
		src.Name = src.ID
	}

	switch src.Kind {
	case domain.SourceKindDrive:
		src.Settings = domain.DriveSettings{
			FolderID:  e.FolderID,
			Recursive: e.Recursive == nil || *e.Recursive,
			FileTypes: e.FileTypes,
		}
	case domain.SourceKindWeb:
		src.Settings = domain.WebSettings{
			MaxDepth:        e.MaxDepth,
			UserAgent:       e.UserAgent,
			ExcludePatterns: e.Exclude,
		}
	}

	if src.Category != "" && !src.Category.IsValid() {
		return src, fmt.Errorf("%w: category %q", domain.ErrInvalidInput, src.Category)
	}
	if src.DocType != "" && !src.DocType.IsValid() {
		return src, fmt.Errorf("%w: doc type %q", domain.ErrInvalidInput, src.DocType)
	}
	if err := src.Validate(); err != nil {
		return src, err
	}
	return src, nil
}
