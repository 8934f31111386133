package drive

import (
	"context"
	"fmt"
	"io"

	"github.com/custodia-labs/lexindex/internal/core/domain"
)

// Google Workspace MIME types.
const (
	MimeTypeGoogleDoc    = "application/vnd.google-apps.document"
	MimeTypeGoogleSheet  = "application/vnd.google-apps.spreadsheet"
	MimeTypeGoogleSlides = "application/vnd.google-apps.presentation"
	MimeTypeFolder       = "application/vnd.google-apps.folder"
)

// Export formats for Google Workspace files.
const (
	ExportMimeText = "text/plain"
	ExportMimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// MaxExportSize is the Drive API limit for exported content (10MB).
const MaxExportSize = 10 * 1024 * 1024

// ExportFormat returns the export MIME type for a native Google file.
// The second value is false for ordinary files, which are downloaded as-is.
func ExportFormat(mimeType string) (string, bool) {
	switch mimeType {
	case MimeTypeGoogleDoc, MimeTypeGoogleSlides:
		return ExportMimeText, true
	case MimeTypeGoogleSheet:
		return ExportMimeXLSX, true
	default:
		return "", false
	}
}

// fetch returns the bytes of a file and the MIME type they are encoded in.
func (c *Client) fetch(ctx context.Context, file domain.FileMeta) ([]byte, string, error) {
	if exportMime, ok := ExportFormat(file.MimeType); ok {
		resp, err := c.svc.Files.Export(file.FileID, exportMime).Context(ctx).Download()
		if err != nil {
			return nil, "", fmt.Errorf("export file: %w", err)
		}
		defer resp.Body.Close()

		data, err := readLimited(resp.Body, MaxExportSize)
		if err != nil {
			return nil, "", fmt.Errorf("read export: %w", err)
		}
		return data, exportMime, nil
	}

	resp, err := c.svc.Files.Get(file.FileID).SupportsAllDrives(true).Context(ctx).Download()
	if err != nil {
		return nil, "", fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	data, err := readLimited(resp.Body, c.maxFileSize)
	if err != nil {
		return nil, "", fmt.Errorf("read file content: %w", err)
	}
	return data, file.MimeType, nil
}

// readLimited reads at most limit bytes and fails if the body is longer.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", domain.ErrFileTooLarge, limit)
	}
	return data, nil
}
