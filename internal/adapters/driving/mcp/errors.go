// Package mcp provides an MCP (Model Context Protocol) server adapter for lexindex.
// It lets AI assistants query the legal knowledge base and inspect crawler health.
package mcp

import "errors"

// ErrMissingSearchService is returned when the search service is not provided.
var ErrMissingSearchService = errors.New("mcp: search service is required")

// ErrMissingMonitor is returned by crawler tools when no health monitor is wired.
var ErrMissingMonitor = errors.New("mcp: health monitor is not configured")
