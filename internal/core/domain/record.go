package domain

import "time"

// PageStatus is the lifecycle state of a discovered page or file.
type PageStatus string

// Page statuses. Within a crawl cycle a record only moves forward:
// new or changed, then crawled or failed.
const (
	PageStatusNew     PageStatus = "new"
	PageStatusCrawled PageStatus = "crawled"
	PageStatusChanged PageStatus = "changed"
	PageStatusFailed  PageStatus = "failed"
)

// ChangeType tags a Version row with the reason it was appended.
type ChangeType string

// ChangeTypeContent marks a fingerprint change detected by a crawl.
const ChangeTypeContent ChangeType = "content_change"

// PageRecord is one discovered URL or drive file, unique per (source, identity).
type PageRecord struct {
	// ID is the unique identifier for the record.
	ID string

	// SourceID links to the Source that discovered the record.
	SourceID string

	// URL is the canonical location (web URL or drive view link).
	URL string

	// IdentityHash is a stable hash of the canonical identity (URL or file id).
	IdentityHash string

	// ContentHash is the change fingerprint of the last observed state.
	ContentHash string

	// Status is the lifecycle state.
	Status PageStatus

	// Depth is the crawl depth at which the record was found.
	Depth int

	// Title is the file or page title.
	Title string

	// File carries the linked drive file metadata, when the record is a file.
	File *FileMeta

	// WordCount is the word count of the last ingested text, if any.
	WordCount int

	// FirstSeenAt is when the record was first discovered.
	FirstSeenAt time.Time

	// LastCrawledAt is when the record was last visited.
	LastCrawledAt time.Time

	// LastChangedAt is when the fingerprint last changed.
	LastChangedAt time.Time
}

// FileMeta is the provider metadata of a drive file.
type FileMeta struct {
	FileID         string `json:"file_id"`
	Name           string `json:"name"`
	MimeType       string `json:"mime_type"`
	Size           int64  `json:"size"`
	ModifiedTime   string `json:"modified_time"`
	WebViewLink    string `json:"web_view_link,omitempty"`
	WebContentLink string `json:"web_content_link,omitempty"`
}

// Version is an append-only history row for a PageRecord.
// Numbers increase by one per record and are never reused.
type Version struct {
	ID         string
	RecordID   string
	Number     int
	OldHash    string
	NewHash    string
	WordCount  int
	ChangeType ChangeType
	CreatedAt  time.Time
}

// UpsertOutcome reports what an upsert did to a record.
type UpsertOutcome struct {
	// Record is the stored record after the upsert.
	Record PageRecord

	// IsNew is true when the record did not exist before.
	IsNew bool

	// HasChanged is true when an existing record's fingerprint changed.
	HasChanged bool

	// Version is the appended history row, when HasChanged is true.
	Version *Version
}
