package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// SourceKind identifies the type of origin a source crawls.
type SourceKind string

// Available source kinds.
const (
	// SourceKindWeb is a web domain.
	SourceKindWeb SourceKind = "web"

	// SourceKindDrive is a cloud-drive folder.
	SourceKindDrive SourceKind = "drive"
)

// IsValid returns true if the source kind is recognised.
func (k SourceKind) IsValid() bool {
	return k == SourceKindWeb || k == SourceKindDrive
}

// Default crawl limits applied when a source leaves them unset.
const (
	DefaultMaxPages       = 1000
	DefaultMaxFileSize    = 50 * 1024 * 1024
	DefaultRateLimitDelay = time.Second
	DefaultFetchTimeout   = 30 * time.Second
)

// Source represents a configured crawl origin.
type Source struct {
	// ID is the unique identifier for the source.
	ID string

	// Name is the human-readable name for this source.
	Name string

	// Kind identifies the origin type.
	Kind SourceKind

	// BaseLocation is the root URL or drive folder ID.
	BaseLocation string

	// Category is assigned to every KnowledgeDocument ingested from this source.
	Category Category

	// DocType is the default document type for ingested documents.
	DocType DocumentType

	// Crawl holds limits shared by all source kinds.
	Crawl CrawlConfig

	// Quota bounds the pages processed per hour and per day.
	Quota Quota

	// Settings holds the kind-specific configuration.
	Settings SourceSettings

	// Active sources are crawled by the scheduler.
	Active bool

	// LastCrawlAt is when the last successful crawl finished.
	// Zero means the source has never been crawled.
	LastCrawlAt time.Time

	// CreatedAt is when the source was created.
	CreatedAt time.Time

	// UpdatedAt is when the source was last updated.
	UpdatedAt time.Time
}

// CrawlConfig holds limits shared by all source kinds.
type CrawlConfig struct {
	// MaxPages is the maximum number of files or pages processed per run.
	MaxPages int

	// MaxFileSize is the byte ceiling above which files are skipped.
	MaxFileSize int64

	// RateLimitDelay is the politeness delay between requests.
	RateLimitDelay time.Duration

	// Timeout bounds a single download.
	Timeout time.Duration
}

// WithDefaults returns a copy with unset fields replaced by defaults.
func (c CrawlConfig) WithDefaults() CrawlConfig {
	if c.MaxPages <= 0 {
		c.MaxPages = DefaultMaxPages
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = DefaultMaxFileSize
	}
	if c.RateLimitDelay <= 0 {
		c.RateLimitDelay = DefaultRateLimitDelay
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultFetchTimeout
	}
	return c
}

// Quota is a ceiling on pages processed per window. Zero means unlimited.
type Quota struct {
	MaxPagesPerHour int
	MaxPagesPerDay  int
}

// Exceeded reports whether either window has reached its ceiling.
func (q Quota) Exceeded(pagesThisHour, pagesThisDay int) bool {
	if q.MaxPagesPerHour > 0 && pagesThisHour >= q.MaxPagesPerHour {
		return true
	}
	if q.MaxPagesPerDay > 0 && pagesThisDay >= q.MaxPagesPerDay {
		return true
	}
	return false
}

// SourceSettings is the kind-specific configuration of a source.
// Exactly one implementation exists per SourceKind.
type SourceSettings interface {
	Kind() SourceKind
}

// DriveSettings configures a drive folder source.
type DriveSettings struct {
	// FolderID is the root folder to traverse.
	FolderID string `json:"folder_id"`

	// Recursive enables descent into sub-folders.
	Recursive bool `json:"recursive"`

	// FileTypes restricts crawled files by MIME type or extension. Empty allows all.
	FileTypes []string `json:"file_types,omitempty"`
}

// Kind implements SourceSettings.
func (DriveSettings) Kind() SourceKind { return SourceKindDrive }

// WebSettings configures a web domain source.
type WebSettings struct {
	// MaxDepth bounds link-following depth from the base URL.
	MaxDepth int `json:"max_depth"`

	// UserAgent overrides the default crawler user agent.
	UserAgent string `json:"user_agent,omitempty"`

	// ExcludePatterns lists URL substrings that are never crawled.
	ExcludePatterns []string `json:"exclude_patterns,omitempty"`
}

// Kind implements SourceSettings.
func (WebSettings) Kind() SourceKind { return SourceKindWeb }

// DriveSettings returns the drive settings of the source.
// The second value is false if the source is not a drive source.
func (s *Source) DriveSettings() (DriveSettings, bool) {
	switch v := s.Settings.(type) {
	case DriveSettings:
		return v, true
	case *DriveSettings:
		if v != nil {
			return *v, true
		}
	}
	return DriveSettings{}, false
}

// FolderID returns the configured root folder, falling back to BaseLocation.
func (s *Source) FolderID() string {
	if ds, ok := s.DriveSettings(); ok && ds.FolderID != "" {
		return ds.FolderID
	}
	return s.BaseLocation
}

// Validate checks that the source is internally consistent.
func (s *Source) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("%w: source id is required", ErrInvalidInput)
	}
	if !s.Kind.IsValid() {
		return fmt.Errorf("%w: source kind %q", ErrUnsupportedType, s.Kind)
	}
	if s.Settings != nil && s.Settings.Kind() != s.Kind {
		return fmt.Errorf("%w: settings of kind %q on %q source",
			ErrInvalidInput, s.Settings.Kind(), s.Kind)
	}
	if s.Kind == SourceKindDrive && s.FolderID() == "" {
		return fmt.Errorf("%w: drive source requires a folder id", ErrInvalidInput)
	}
	return nil
}

// EncodeSourceSettings serialises settings for storage.
func EncodeSourceSettings(settings SourceSettings) ([]byte, error) {
	if settings == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(settings)
}

// DecodeSourceSettings restores the settings variant matching kind.
func DecodeSourceSettings(kind SourceKind, data []byte) (SourceSettings, error) {
	if len(data) == 0 {
		data = []byte("{}")
	}
	switch kind {
	case SourceKindDrive:
		var ds DriveSettings
		if err := json.Unmarshal(data, &ds); err != nil {
			return nil, fmt.Errorf("decoding drive settings: %w", err)
		}
		return ds, nil
	case SourceKindWeb:
		var ws WebSettings
		if err := json.Unmarshal(data, &ws); err != nil {
			return nil, fmt.Errorf("decoding web settings: %w", err)
		}
		return ws, nil
	default:
		return nil, fmt.Errorf("%w: source kind %q", ErrUnsupportedType, kind)
	}
}
