package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/lexindex/internal/core/domain"
	"github.com/custodia-labs/lexindex/internal/core/ports/driven"
)

// Ensure PageRecordStore implements the interface.
var _ driven.PageRecordStore = (*PageRecordStore)(nil)

// PageRecordStore is an in-memory implementation of driven.PageRecordStore.
type PageRecordStore struct {
	mu       sync.RWMutex
	records  map[string]domain.PageRecord
	identity map[string]string // sourceID + "\x00" + identityHash -> record ID
	versions map[string][]domain.Version
}

// NewPageRecordStore creates a new in-memory record store.
func NewPageRecordStore() *PageRecordStore {
	return &PageRecordStore{
		records:  make(map[string]domain.PageRecord),
		identity: make(map[string]string),
		versions: make(map[string][]domain.Version),
	}
}

func identityKey(sourceID, identityHash string) string {
	return sourceID + "\x00" + identityHash
}

// Upsert inserts, touches or versions a record keyed by (source, identity).
func (s *PageRecordStore) Upsert(_ context.Context, record domain.PageRecord) (*domain.UpsertOutcome, error) {
	if record.SourceID == "" || record.IdentityHash == "" {
		return nil, domain.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	key := identityKey(record.SourceID, record.IdentityHash)
	id, exists := s.identity[key]
	if !exists {
		record.ID = uuid.New().String()
		record.Status = domain.PageStatusNew
		record.FirstSeenAt = now
		record.LastCrawledAt = now
		s.records[record.ID] = record
		s.identity[key] = record.ID
		return &domain.UpsertOutcome{Record: record, IsNew: true}, nil
	}

	existing := s.records[id]
	if existing.ContentHash == record.ContentHash {
		existing.LastCrawledAt = now
		s.records[id] = existing
		return &domain.UpsertOutcome{Record: existing}, nil
	}

	oldHash := existing.ContentHash
	existing.URL = record.URL
	existing.ContentHash = record.ContentHash
	existing.Title = record.Title
	existing.File = record.File
	existing.Depth = record.Depth
	existing.Status = domain.PageStatusChanged
	existing.LastCrawledAt = now
	existing.LastChangedAt = now
	s.records[id] = existing

	version := domain.Version{
		ID:         uuid.New().String(),
		RecordID:   id,
		Number:     len(s.versions[id]) + 1,
		OldHash:    oldHash,
		NewHash:    record.ContentHash,
		WordCount:  existing.WordCount,
		ChangeType: domain.ChangeTypeContent,
		CreatedAt:  now,
	}
	s.versions[id] = append(s.versions[id], version)

	return &domain.UpsertOutcome{Record: existing, HasChanged: true, Version: &version}, nil
}

// Get retrieves a record by ID.
func (s *PageRecordStore) Get(_ context.Context, id string) (*domain.PageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &record, nil
}

// GetByIdentity returns the record with the given identity, or nil.
func (s *PageRecordStore) GetByIdentity(_ context.Context, sourceID, identityHash string) (*domain.PageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.identity[identityKey(sourceID, identityHash)]
	if !ok {
		return nil, nil
	}
	record := s.records[id]
	return &record, nil
}

// SetStatus moves a record to a new status. A zero word count keeps the old one.
func (s *PageRecordStore) SetStatus(_ context.Context, id string, status domain.PageStatus, wordCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	record.Status = status
	if wordCount > 0 {
		record.WordCount = wordCount
	}
	record.LastCrawledAt = time.Now().UTC()
	s.records[id] = record
	return nil
}

// ListBySource returns all records of a source ordered by first sighting.
func (s *PageRecordStore) ListBySource(_ context.Context, sourceID string) ([]domain.PageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.PageRecord //nolint:prealloc // size unknown until filtered
	for _, record := range s.records {
		if record.SourceID == sourceID {
			result = append(result, record)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].FirstSeenAt.Equal(result[j].FirstSeenAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].FirstSeenAt.Before(result[j].FirstSeenAt)
	})
	return result, nil
}

// ListVersions returns the version history of a record, oldest first.
func (s *PageRecordStore) ListVersions(_ context.Context, recordID string) ([]domain.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := s.versions[recordID]
	result := make([]domain.Version, len(versions))
	copy(result, versions)
	return result, nil
}

// DeleteBySource removes every record of a source and its history.
func (s *PageRecordStore) DeleteBySource(_ context.Context, sourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, record := range s.records {
		if record.SourceID != sourceID {
			continue
		}
		delete(s.identity, identityKey(record.SourceID, record.IdentityHash))
		delete(s.versions, id)
		delete(s.records, id)
	}
	return nil
}
