package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lexindex/internal/core/domain"
)

func driveSource(id, name string) domain.Source {
	return domain.Source{
		ID:           id,
		Name:         name,
		Kind:         domain.SourceKindDrive,
		BaseLocation: "folder-" + id,
		Category:     domain.CategoryJurisprudence,
		Settings:     domain.DriveSettings{FolderID: "folder-" + id, Recursive: true},
		Active:       true,
	}
}

func TestSourceStore_SaveAndGet(t *testing.T) {
	store := NewSourceStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, driveSource("src-1", "Arrêts de cassation")))

	got, err := store.Get(ctx, "src-1")
	require.NoError(t, err)
	assert.Equal(t, "Arrêts de cassation", got.Name)
	assert.Equal(t, domain.SourceKindDrive, got.Kind)
	assert.Equal(t, "folder-src-1", got.FolderID())
	assert.False(t, got.CreatedAt.IsZero())
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestSourceStore_GetNotFound(t *testing.T) {
	_, err := NewSourceStore().Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSourceStore_UpdateKeepsCreatedAt(t *testing.T) {
	store := NewSourceStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, driveSource("src-1", "Before")))
	first, err := store.Get(ctx, "src-1")
	require.NoError(t, err)

	updated := driveSource("src-1", "After")
	require.NoError(t, store.Save(ctx, updated))

	got, err := store.Get(ctx, "src-1")
	require.NoError(t, err)
	assert.Equal(t, "After", got.Name)
	assert.Equal(t, first.CreatedAt, got.CreatedAt)
}

func TestSourceStore_ListSortedByName(t *testing.T) {
	store := NewSourceStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, driveSource("b", "Codes")))
	require.NoError(t, store.Save(ctx, driveSource("a", "Modèles")))
	require.NoError(t, store.Save(ctx, driveSource("c", "Arrêts")))

	sources, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{sources[0].ID, sources[1].ID, sources[2].ID})
}

func TestSourceStore_Delete(t *testing.T) {
	store := NewSourceStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, driveSource("src-1", "One")))
	require.NoError(t, store.Delete(ctx, "src-1"))
	require.NoError(t, store.Delete(ctx, "src-1"))

	_, err := store.Get(ctx, "src-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSourceStore_TouchLastCrawl(t *testing.T) {
	store := NewSourceStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, driveSource("src-1", "One")))

	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, store.TouchLastCrawl(ctx, "src-1", at))

	got, err := store.Get(ctx, "src-1")
	require.NoError(t, err)
	assert.Equal(t, at, got.LastCrawlAt)

	assert.ErrorIs(t, store.TouchLastCrawl(ctx, "missing", at), domain.ErrNotFound)
}
