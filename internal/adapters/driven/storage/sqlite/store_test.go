package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lexindex/internal/core/domain"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "lexindex-test-*")
	require.NoError(t, err)

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NotNil(t, store)

	cleanup := func() {
		assert.NoError(t, store.Close())
		assert.NoError(t, os.RemoveAll(tempDir))
	}

	return store, cleanup
}

// createTestSource creates a drive source to satisfy foreign key constraints.
func createTestSource(t *testing.T, store *Store, sourceID string) domain.Source {
	t.Helper()
	source := domain.Source{
		ID:           sourceID,
		Name:         "Test Source " + sourceID,
		Kind:         domain.SourceKindDrive,
		BaseLocation: "folder-" + sourceID,
		Category:     domain.CategoryGoogleDrive,
		Settings:     domain.DriveSettings{FolderID: "folder-" + sourceID, Recursive: true},
		Active:       true,
	}
	require.NoError(t, store.SourceStore().Save(context.Background(), source))
	return source
}

// ==================== Store Creation and Initialization Tests ====================

func TestNewStore_ErrorHandling(t *testing.T) {
	_, err := NewStore("/invalid\x00path")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "creating data directory")
}

func TestNewStore_Success(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "lexindex-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	defer store.Close()

	dbPath := filepath.Join(tempDir, "lexindex.db")
	assert.Equal(t, dbPath, store.Path())
	assert.FileExists(t, dbPath)
	assert.NoError(t, store.Ping(context.Background()))
}

func TestNewStore_DirectoryCreation(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "lexindex-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	nestedDir := filepath.Join(tempDir, "nested", "path", "to", "db")
	store, err := NewStore(nestedDir)
	require.NoError(t, err)
	defer store.Close()

	assert.DirExists(t, nestedDir)
}

func TestNewStore_Migrations(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	var version int
	err := store.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 1, version)

	tables := []string{
		"sources",
		"page_file_records",
		"page_versions",
		"health_metrics",
		"ban_status",
		"knowledge_documents",
		"chunks",
		"chunks_fts",
		"scheduled_tasks",
		"task_runs",
	}

	for _, table := range tables {
		var exists int
		err := store.db.QueryRow(
			"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&exists)
		require.NoError(t, err)
		assert.Equal(t, 1, exists, "table %s should exist", table)
	}
}

func TestNewStore_ReopenSkipsAppliedMigrations(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "lexindex-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	first, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := NewStore(tempDir)
	require.NoError(t, err)
	defer second.Close()

	var count int
	require.NoError(t, second.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestNewStore_ForeignKeysEnabled(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	var fkEnabled int
	err := store.db.QueryRow("PRAGMA foreign_keys").Scan(&fkEnabled)
	require.NoError(t, err)
	assert.Equal(t, 1, fkEnabled)
}

func TestStore_Close(t *testing.T) {
	store, _ := setupTestStore(t)

	assert.NoError(t, store.Close())
	assert.Error(t, store.db.Ping())
}

// ==================== SourceStore Tests ====================

func TestSourceStore_SaveAndGet(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	source := domain.Source{
		ID:           "src-1",
		Name:         "Modèles de contrats",
		Kind:         domain.SourceKindDrive,
		BaseLocation: "1AbCdEf",
		Category:     domain.CategoryModeles,
		DocType:      domain.DocTypeTemplates,
		Crawl: domain.CrawlConfig{
			MaxPages:       200,
			MaxFileSize:    10 << 20,
			RateLimitDelay: 250 * time.Millisecond,
			Timeout:        15 * time.Second,
		},
		Quota:    domain.Quota{MaxPagesPerHour: 100, MaxPagesPerDay: 500},
		Settings: domain.DriveSettings{FolderID: "1AbCdEf", Recursive: true, FileTypes: []string{"pdf", "docx"}},
		Active:   true,
	}
	require.NoError(t, store.SourceStore().Save(ctx, source))

	got, err := store.SourceStore().Get(ctx, "src-1")
	require.NoError(t, err)
	assert.Equal(t, source.Name, got.Name)
	assert.Equal(t, domain.SourceKindDrive, got.Kind)
	assert.Equal(t, source.Crawl, got.Crawl)
	assert.Equal(t, source.Quota, got.Quota)
	assert.True(t, got.Active)
	assert.True(t, got.LastCrawlAt.IsZero())
	assert.False(t, got.CreatedAt.IsZero())

	ds, ok := got.DriveSettings()
	require.True(t, ok)
	assert.True(t, ds.Recursive)
	assert.Equal(t, []string{"pdf", "docx"}, ds.FileTypes)
}

func TestSourceStore_GetNotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := store.SourceStore().Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSourceStore_UpdateKeepsCreatedAt(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	source := createTestSource(t, store, "src-1")
	first, err := store.SourceStore().Get(ctx, "src-1")
	require.NoError(t, err)

	source.Name = "Renamed"
	source.CreatedAt = first.CreatedAt
	require.NoError(t, store.SourceStore().Save(ctx, source))

	got, err := store.SourceStore().Get(ctx, "src-1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, first.CreatedAt, got.CreatedAt)
}

func TestSourceStore_ListAndDelete(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	createTestSource(t, store, "b")
	createTestSource(t, store, "a")

	sources, err := store.SourceStore().List(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, "a", sources[0].ID)

	require.NoError(t, store.SourceStore().Delete(ctx, "a"))
	sources, err = store.SourceStore().List(ctx)
	require.NoError(t, err)
	assert.Len(t, sources, 1)
}

func TestSourceStore_TouchLastCrawl(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	createTestSource(t, store, "src-1")

	at := time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)
	require.NoError(t, store.SourceStore().TouchLastCrawl(ctx, "src-1", at))

	got, err := store.SourceStore().Get(ctx, "src-1")
	require.NoError(t, err)
	assert.Equal(t, at, got.LastCrawlAt)

	assert.ErrorIs(t, store.SourceStore().TouchLastCrawl(ctx, "missing", at), domain.ErrNotFound)
}

// ==================== Helper Function Tests ====================

func TestFloat32Conversion(t *testing.T) {
	in := []float32{0, 1.5, -2.25, 3.4028235e38}
	assert.Equal(t, in, bytesToFloat32Slice(float32SliceToBytes(in)))
	assert.Nil(t, float32SliceToBytes(nil))
	assert.Nil(t, bytesToFloat32Slice(nil))
}
