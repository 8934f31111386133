package drive

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"

	"github.com/custodia-labs/lexindex/internal/connectors/google"
	"github.com/custodia-labs/lexindex/internal/core/domain"
	"github.com/custodia-labs/lexindex/internal/core/ports/driven"
)

// Ensure Client implements the interface.
var _ driven.DriveClient = (*Client)(nil)

// MaxPageSize is the largest page size accepted by files.list.
const MaxPageSize = 1000

const (
	listFields   googleapi.Field = "nextPageToken, files(id, name, mimeType, size, modifiedTime, webViewLink, webContentLink, parents)"
	folderFields googleapi.Field = "id, name, mimeType"
)

// Client lists and downloads files through the Drive v3 API.
type Client struct {
	svc         *drive.Service
	limiter     *google.RateLimiter
	maxFileSize int64
	timeout     time.Duration
}

// NewClient wraps a Drive service. Every API call waits on the limiter.
func NewClient(svc *drive.Service, limiter *google.RateLimiter, crawl domain.CrawlConfig) *Client {
	crawl = crawl.WithDefaults()
	return &Client{
		svc:         svc,
		limiter:     limiter,
		maxFileSize: crawl.MaxFileSize,
		timeout:     crawl.Timeout,
	}
}

// GetFolder resolves a folder ID.
func (c *Client) GetFolder(ctx context.Context, folderID string) (*domain.DriveFile, error) {
	if strings.TrimSpace(folderID) == "" {
		return nil, fmt.Errorf("%w: empty folder id", domain.ErrFolderUnresolvable)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	f, err := c.svc.Files.Get(folderID).
		Fields(folderFields).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		err = c.classify(err)
		if google.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s: %w", domain.ErrFolderUnresolvable, folderID, err)
		}
		return nil, fmt.Errorf("get folder %s: %w", folderID, err)
	}
	if f.MimeType != MimeTypeFolder {
		return nil, fmt.Errorf("%w: %s is a %s", domain.ErrFolderUnresolvable, folderID, f.MimeType)
	}

	folder := toDriveFile(f)
	return &folder, nil
}

// ListChildren returns one page of the direct, non-trashed children of a folder.
func (c *Client) ListChildren(ctx context.Context, query domain.ListQuery) (*domain.ListPage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	pageSize := query.PageSize
	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	call := c.svc.Files.List().
		Q(BuildListQuery(query.FolderID, query.ModifiedAfter)).
		Fields(listFields).
		PageSize(pageSize).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx)
	if query.PageToken != "" {
		call = call.PageToken(query.PageToken)
	}

	resp, err := call.Do()
	if err != nil {
		return nil, c.classify(err)
	}

	page := &domain.ListPage{
		Files:         make([]domain.DriveFile, 0, len(resp.Files)),
		NextPageToken: resp.NextPageToken,
	}
	for _, f := range resp.Files {
		page.Files = append(page.Files, toDriveFile(f))
	}
	return page, nil
}

// Download fetches a file's content within the configured timeout.
// Native Google documents are exported; see ExportFormat.
func (c *Client) Download(ctx context.Context, file domain.FileMeta) (*domain.RawDocument, error) {
	if file.Size > c.maxFileSize {
		return nil, fmt.Errorf("%w: %s is %d bytes", domain.ErrFileTooLarge, file.Name, file.Size)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	content, mimeType, err := c.fetch(ctx, file)
	if err != nil {
		return nil, c.classify(err)
	}

	return &domain.RawDocument{
		URI:      ResolveWebURL(file.FileID, file.WebViewLink),
		Name:     file.Name,
		MIMEType: mimeType,
		Content:  content,
	}, nil
}

// classify wraps a Google API error and starts a backoff on rate limiting.
func (c *Client) classify(err error) error {
	if google.IsRateLimited(err) {
		c.limiter.RecordRateLimitError(0)
	}
	return google.WrapError(err)
}

// BuildListQuery builds the files.list query for the children of a folder.
// A non-zero modifiedAfter restricts the listing to files changed since then.
func BuildListQuery(folderID string, modifiedAfter time.Time) string {
	escaped := strings.ReplaceAll(folderID, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `'`, `\'`)
	q := fmt.Sprintf("'%s' in parents and trashed = false", escaped)
	if !modifiedAfter.IsZero() {
		q += fmt.Sprintf(" and modifiedTime > '%s'", modifiedAfter.UTC().Format(time.RFC3339))
	}
	return q
}

func toDriveFile(f *drive.File) domain.DriveFile {
	return domain.DriveFile{
		ID:             f.Id,
		Name:           f.Name,
		MimeType:       f.MimeType,
		Size:           f.Size,
		ModifiedTime:   f.ModifiedTime,
		WebViewLink:    f.WebViewLink,
		WebContentLink: f.WebContentLink,
		IsFolder:       f.MimeType == MimeTypeFolder,
	}
}
