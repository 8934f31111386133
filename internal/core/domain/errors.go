package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown source kind or MIME type.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrEmbeddingUnavailable indicates no embedding provider is configured
	// for the requested embedding space.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrAcceleratorUnavailable indicates the accelerator index could not be reached.
	// Retrieval falls back to the authoritative store when this occurs.
	ErrAcceleratorUnavailable = errors.New("accelerator index unavailable")

	// ErrTextTooShort indicates extracted text is below the indexing minimum.
	ErrTextTooShort = errors.New("text too short to index")

	// ErrFileTooLarge indicates a file exceeds the configured size ceiling.
	ErrFileTooLarge = errors.New("file too large")

	// ErrTaskRunning indicates a scheduled task is already executing.
	ErrTaskRunning = errors.New("task already running")

	// Governance Errors.

	// ErrSourceBanned indicates the source is banned and its retry time has not elapsed.
	ErrSourceBanned = errors.New("source banned")

	// ErrQuotaExceeded indicates the hourly or daily page quota was reached.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// Connector Errors.

	// ErrFolderUnresolvable indicates the drive root folder could not be resolved.
	ErrFolderUnresolvable = errors.New("folder could not be resolved")

	// ErrRateLimited indicates the API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// ErrDownload marks a failed file download, as opposed to a failure
	// while processing downloaded content.
	ErrDownload = errors.New("download failed")
)

// StatusError carries the HTTP status of a failed provider call.
type StatusError struct {
	Code int
	Err  error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %v", e.Code, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

// StatusCodeOf returns the HTTP status carried by err, or 0 if there is none.
func StatusCodeOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}
