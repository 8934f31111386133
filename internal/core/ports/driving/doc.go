// Package driving declares what the CLI, the MCP server, the HTTP admin
// API and the browser may ask of the core: crawl and gate sources, ingest
// and reprocess documents, embed chunks, search, schedule tasks and edit
// settings and sources.
//
// internal/core/services implements every interface here. Adapters must
// not import services directly.
package driving
