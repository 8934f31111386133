package driven

import (
	"context"

	"github.com/custodia-labs/lexindex/internal/core/domain"
)

// PageRecordStore persists discovered files and their change history.
type PageRecordStore interface {
	// Upsert stores a record keyed by (source, identity hash).
	// A missing record is inserted with status new. An existing record whose
	// content hash differs is updated to status changed and a Version row
	// numbered max+1 is appended in the same transaction. An existing record
	// with the same content hash only has its last crawl time refreshed.
	Upsert(ctx context.Context, record domain.PageRecord) (*domain.UpsertOutcome, error)

	// Get retrieves a record by ID.
	Get(ctx context.Context, id string) (*domain.PageRecord, error)

	// GetByIdentity retrieves a record by its source and identity hash.
	// Returns nil and no error if absent.
	GetByIdentity(ctx context.Context, sourceID, identityHash string) (*domain.PageRecord, error)

	// SetStatus moves a record to a new status and stamps its crawl time.
	SetStatus(ctx context.Context, id string, status domain.PageStatus, wordCount int) error

	// ListBySource returns the records discovered by a source.
	ListBySource(ctx context.Context, sourceID string) ([]domain.PageRecord, error)

	// ListVersions returns the version history of a record, oldest first.
	ListVersions(ctx context.Context, recordID string) ([]domain.Version, error)

	// DeleteBySource removes all records of a source.
	DeleteBySource(ctx context.Context, sourceID string) error
}
