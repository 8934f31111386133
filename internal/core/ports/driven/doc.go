// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - SourceStore: Source configuration persistence
//   - PageRecordStore: Discovered file records and their version history
//   - HealthStore: Hourly health buckets and ban state
//   - KnowledgeStore: Documents, chunks, embeddings and full-text search
//   - DriveClient: Folder listing and file download
//   - Normaliser / NormaliserRegistry: Raw bytes to plain text
//   - TextChunker: Fixed-size overlapping chunking
//   - ConfigStore: Application configuration
//   - SchedulerStore: Scheduled task state and run log
//
// # Optional Interfaces
//
// These can be nil or no-op - the application degrades gracefully:
//
//   - EmbeddingService: Without it, chunks are stored without vectors and
//     retrieval relies on lexical rank only.
//   - AcceleratorIndex: Without it, the lexical leg runs on the store's
//     full-text index.
//   - LanguageDetector: Without it, documents keep an unknown language.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, connector, or normaliser package
package driven
