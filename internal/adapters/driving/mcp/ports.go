package mcp

import (
	"github.com/custodia-labs/lexindex/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Search provides hybrid retrieval.
	Search driving.SearchService

	// Monitor answers crawl gate and health questions.
	Monitor driving.HealthMonitor

	// Source manages source configurations.
	Source driving.SourceService

	// Documents reads ingested documents.
	Documents driving.IngestionService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	// Monitor, Source and Documents are optional
	return nil
}
