// Package domain defines the core business entities for lexindex.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Source: A crawlable origin (drive folder or web domain)
//   - PageRecord and Version: Discovered files and their change history
//   - HealthMetric and BanStatus: Per-source crawl governance state
//   - KnowledgeDocument and Chunk: Ingested content and its searchable slices
//   - Section: A bounded slice of a long document
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
