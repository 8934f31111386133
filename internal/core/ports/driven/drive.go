package driven

import (
	"context"

	"github.com/custodia-labs/lexindex/internal/core/domain"
)

// DriveClient lists and downloads files of a cloud drive.
type DriveClient interface {
	// GetFolder resolves a folder ID. Returns domain.ErrFolderUnresolvable
	// when the ID does not name an accessible folder.
	GetFolder(ctx context.Context, folderID string) (*domain.DriveFile, error)

	// ListChildren returns one page of the direct, non-trashed children of a folder.
	ListChildren(ctx context.Context, query domain.ListQuery) (*domain.ListPage, error)

	// Download fetches a file's content, exporting native documents to text.
	Download(ctx context.Context, file domain.FileMeta) (*domain.RawDocument, error)
}

// DriveClientFactory builds a DriveClient for a source.
type DriveClientFactory func(ctx context.Context, source domain.Source) (DriveClient, error)
