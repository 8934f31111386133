package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/lexindex/internal/core/domain"
	"github.com/custodia-labs/lexindex/internal/core/ports/driven"
)

// recordStore implements driven.PageRecordStore.
type recordStore struct {
	store *Store
}

var _ driven.PageRecordStore = (*recordStore)(nil)

const recordColumns = `id, source_id, url, identity_hash, content_hash, status, depth,
	title, file_meta, word_count, first_seen_at, last_crawled_at, last_changed_at`

// Upsert stores a record keyed by (source, identity hash).
func (s *recordStore) Upsert(ctx context.Context, record domain.PageRecord) (*domain.UpsertOutcome, error) {
	if record.SourceID == "" || record.IdentityHash == "" {
		return nil, fmt.Errorf("%w: record requires source and identity hash", domain.ErrInvalidInput)
	}

	metaJSON, err := marshalFileMeta(record.File)
	if err != nil {
		return nil, err
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := scanRecord(tx.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM page_file_records WHERE source_id = ? AND identity_hash = ?`,
		record.SourceID, record.IdentityHash))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	now := time.Now().UTC()

	// New record.
	if existing == nil {
		if record.ID == "" {
			record.ID = uuid.New().String()
		}
		record.Status = domain.PageStatusNew
		record.FirstSeenAt = now
		record.LastCrawledAt = now

		_, err = tx.ExecContext(ctx, `
			INSERT INTO page_file_records (`+recordColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, record.ID, record.SourceID, record.URL, record.IdentityHash, record.ContentHash,
			string(record.Status), record.Depth, record.Title, metaJSON, record.WordCount,
			formatTime(record.FirstSeenAt), formatTime(record.LastCrawledAt), nil)
		if err != nil {
			return nil, fmt.Errorf("inserting record: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("committing record: %w", err)
		}
		return &domain.UpsertOutcome{Record: record, IsNew: true}, nil
	}

	// Unchanged fingerprint: only the crawl time moves.
	if existing.ContentHash == record.ContentHash {
		if _, err := tx.ExecContext(ctx,
			"UPDATE page_file_records SET last_crawled_at = ? WHERE id = ?",
			formatTime(now), existing.ID); err != nil {
			return nil, fmt.Errorf("touching record: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("committing record touch: %w", err)
		}
		existing.LastCrawledAt = now
		return &domain.UpsertOutcome{Record: *existing}, nil
	}

	// Changed fingerprint: update and append a version atomically.
	oldHash := existing.ContentHash
	existing.URL = record.URL
	existing.ContentHash = record.ContentHash
	existing.Status = domain.PageStatusChanged
	existing.Title = record.Title
	existing.File = record.File
	existing.LastCrawledAt = now
	existing.LastChangedAt = now

	_, err = tx.ExecContext(ctx, `
		UPDATE page_file_records SET
			url = ?, content_hash = ?, status = ?, title = ?, file_meta = ?,
			last_crawled_at = ?, last_changed_at = ?
		WHERE id = ?
	`, existing.URL, existing.ContentHash, string(existing.Status), existing.Title, metaJSON,
		formatTime(now), formatTime(now), existing.ID)
	if err != nil {
		return nil, fmt.Errorf("updating record: %w", err)
	}

	var next int
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version), 0) + 1 FROM page_versions WHERE record_id = ?",
		existing.ID).Scan(&next); err != nil {
		return nil, fmt.Errorf("selecting next version: %w", err)
	}

	version := &domain.Version{
		ID:         uuid.New().String(),
		RecordID:   existing.ID,
		Number:     next,
		OldHash:    oldHash,
		NewHash:    record.ContentHash,
		WordCount:  existing.WordCount,
		ChangeType: domain.ChangeTypeContent,
		CreatedAt:  now,
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO page_versions (id, record_id, version, old_hash, new_hash, word_count, change_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, version.ID, version.RecordID, version.Number, version.OldHash, version.NewHash,
		version.WordCount, string(version.ChangeType), formatTime(version.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("appending version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing record change: %w", err)
	}

	return &domain.UpsertOutcome{Record: *existing, HasChanged: true, Version: version}, nil
}

// Get retrieves a record by ID.
func (s *recordStore) Get(ctx context.Context, id string) (*domain.PageRecord, error) {
	record, err := scanRecord(s.store.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM page_file_records WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return record, err
}

// GetByIdentity retrieves a record by its source and identity hash.
func (s *recordStore) GetByIdentity(ctx context.Context, sourceID, identityHash string) (*domain.PageRecord, error) {
	record, err := scanRecord(s.store.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM page_file_records WHERE source_id = ? AND identity_hash = ?`,
		sourceID, identityHash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return record, err
}

// SetStatus moves a record to a new status and stamps its crawl time.
// A zero wordCount keeps the stored value.
func (s *recordStore) SetStatus(ctx context.Context, id string, status domain.PageStatus, wordCount int) error {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE page_file_records SET
			status = ?,
			word_count = CASE WHEN ? > 0 THEN ? ELSE word_count END,
			last_crawled_at = ?
		WHERE id = ?
	`, string(status), wordCount, wordCount, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("updating record status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListBySource returns the records discovered by a source.
func (s *recordStore) ListBySource(ctx context.Context, sourceID string) ([]domain.PageRecord, error) {
	rows, err := s.store.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM page_file_records WHERE source_id = ? ORDER BY first_seen_at, id`,
		sourceID)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var records []domain.PageRecord //nolint:prealloc // size unknown from query
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}
	return records, nil
}

// ListVersions returns the version history of a record, oldest first.
func (s *recordStore) ListVersions(ctx context.Context, recordID string) ([]domain.Version, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, record_id, version, old_hash, new_hash, word_count, change_type, created_at
		FROM page_versions WHERE record_id = ? ORDER BY version
	`, recordID)
	if err != nil {
		return nil, fmt.Errorf("querying versions: %w", err)
	}
	defer rows.Close()

	var versions []domain.Version //nolint:prealloc // size unknown from query
	for rows.Next() {
		var v domain.Version
		var changeType, createdAt string
		if err := rows.Scan(&v.ID, &v.RecordID, &v.Number, &v.OldHash, &v.NewHash,
			&v.WordCount, &changeType, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning version: %w", err)
		}
		v.ChangeType = domain.ChangeType(changeType)
		v.CreatedAt = parseTime(createdAt)
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating versions: %w", err)
	}
	return versions, nil
}

// DeleteBySource removes all records of a source.
func (s *recordStore) DeleteBySource(ctx context.Context, sourceID string) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM page_file_records WHERE source_id = ?", sourceID)
	if err != nil {
		return fmt.Errorf("deleting records: %w", err)
	}
	return nil
}

// ==================== Helper Functions ====================

// scanRecord scans a record selected with recordColumns.
// sql.ErrNoRows is returned unwrapped.
func scanRecord(row rowScanner) (*domain.PageRecord, error) {
	var r domain.PageRecord
	var status, firstSeen string
	var metaJSON, lastCrawled, lastChanged sql.NullString

	if err := row.Scan(&r.ID, &r.SourceID, &r.URL, &r.IdentityHash, &r.ContentHash,
		&status, &r.Depth, &r.Title, &metaJSON, &r.WordCount,
		&firstSeen, &lastCrawled, &lastChanged); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning record: %w", err)
	}

	r.Status = domain.PageStatus(status)
	r.FirstSeenAt = parseTime(firstSeen)
	r.LastCrawledAt = parseNullableTime(lastCrawled)
	r.LastChangedAt = parseNullableTime(lastChanged)

	if metaJSON.Valid && metaJSON.String != "" {
		var meta domain.FileMeta
		if err := json.Unmarshal([]byte(metaJSON.String), &meta); err != nil {
			return nil, fmt.Errorf("unmarshaling file meta: %w", err)
		}
		r.File = &meta
	}

	return &r, nil
}

// marshalFileMeta encodes file metadata, or returns nil when absent.
func marshalFileMeta(meta *domain.FileMeta) (any, error) {
	if meta == nil {
		return nil, nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshalling file meta: %w", err)
	}
	return string(data), nil
}
