package domain

// RawDocument represents opaque bytes fetched from a source.
// It is the fetcher's output before normalisation.
type RawDocument struct {
	// SourceID links to the Source that produced this document.
	SourceID string

	// RecordID links to the PageRecord describing the file.
	RecordID string

	// URI is the original location (drive link, URL or upload name).
	URI string

	// Name is the file name, used as a title fallback.
	Name string

	// MIMEType is the content type (e.g., "text/html").
	MIMEType string

	// Content is the raw bytes.
	Content []byte
}

// NormalisedText is the plain-text extraction of a RawDocument.
type NormalisedText struct {
	// Title is the title found in the content, if any.
	Title string

	// Text is the extracted plain text.
	Text string
}
