// Package sources fetches raw catalog documents from configured data
// sources, validates them against their declared format, and normalizes
// each source's schema into the unified record shape.
//
// A SourceHandler knows how to retrieve one source type (local file or HTTP
// API). The per-format adapters convert validated documents into
// catalog.UnifiedRecord values, deriving canonical keys, categories, tags
// and availability flags along the way.
package sources
