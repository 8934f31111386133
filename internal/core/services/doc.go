// Package services holds the business logic of lexindex: the health
// monitor and crawl gate, the Drive crawler, ingestion, embedding
// generation, hybrid search, reprocessing, the scheduler, settings and
// source management.
//
// Each service implements a driving port and reaches storage, Drive and
// the embedding providers only through driven ports, so the tests run
// them against the in-memory stores.
package services
