package tui

import "errors"

// ErrMissingSearchService is returned when the search service is not provided.
var ErrMissingSearchService = errors.New("tui: search service is required")

// ErrMissingDocumentReader is returned when no document reader is provided.
var ErrMissingDocumentReader = errors.New("tui: document reader is required")
