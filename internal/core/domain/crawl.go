package domain

import "time"

// CrawlOptions controls a single crawl run.
type CrawlOptions struct {
	// Incremental restricts listings to items modified since the last crawl.
	Incremental bool

	// Ingest hands new and changed files to the ingestion pipeline, and
	// retries files whose previous ingestion failed.
	Ingest bool
}

// CrawlError is a per-item failure captured during a run.
type CrawlError struct {
	URL       string    `json:"url"`
	Message   string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// CrawlResult is the structured outcome of a crawl run.
// It is returned even when the run fails.
type CrawlResult struct {
	Success        bool         `json:"success"`
	PagesProcessed int          `json:"pages_processed"`
	PagesNew       int          `json:"pages_new"`
	PagesChanged   int          `json:"pages_changed"`
	PagesFailed    int          `json:"pages_failed"`
	PagesSkipped   int          `json:"pages_skipped"`
	PagesRetried   int          `json:"pages_retried"`
	Errors         []CrawlError `json:"errors"`
	StartedAt      time.Time    `json:"started_at"`
	FinishedAt     time.Time    `json:"finished_at"`
}

// FailedCrawl builds the result of a run aborted by a fatal error.
// Counters are zero and the single error entry names the source location.
func FailedCrawl(location string, err error, startedAt time.Time) CrawlResult {
	now := time.Now()
	return CrawlResult{
		Success: false,
		Errors: []CrawlError{{
			URL:       location,
			Message:   err.Error(),
			Timestamp: now,
		}},
		StartedAt:  startedAt,
		FinishedAt: now,
	}
}

// DriveFile is one item returned by a drive folder listing.
type DriveFile struct {
	ID             string
	Name           string
	MimeType       string
	Size           int64
	ModifiedTime   string
	WebViewLink    string
	WebContentLink string
	IsFolder       bool
}

// Meta converts the listing item into stored file metadata.
func (f DriveFile) Meta() *FileMeta {
	return &FileMeta{
		FileID:         f.ID,
		Name:           f.Name,
		MimeType:       f.MimeType,
		Size:           f.Size,
		ModifiedTime:   f.ModifiedTime,
		WebViewLink:    f.WebViewLink,
		WebContentLink: f.WebContentLink,
	}
}

// ListQuery selects the direct children of one folder.
type ListQuery struct {
	FolderID      string
	ModifiedAfter time.Time
	PageToken     string
	PageSize      int64
}

// ListPage is one page of a folder listing.
type ListPage struct {
	Files         []DriveFile
	NextPageToken string
}
