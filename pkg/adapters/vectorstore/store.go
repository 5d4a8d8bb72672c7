// Package vectorstore is the Vector Store port consumed by the MCP Context
// Runtime's store_document/find_relevant tools and by the Vectorization
// Bridge (pkg/services/vectorize). Weaviate is the only production backend;
// MemoryStore exists for tests and for deployments that opt out of a vector
// backend, matching pkg/services/graph's MemoryStore fallback pattern.
package vectorstore

import "context"

// Document is one vector record as returned by Search, ordered by
// descending Score.
type Document struct {
	ID       string
	Text     string
	Score    float64
	Metadata map[string]any
}

// Store is the port the rest of the engine depends on. Callers never talk
// to a Weaviate client directly.
type Store interface {
	// Upsert writes text/vector/metadata under the given collection, keyed
	// by id. A zero-length id asks the store to assign one (returned).
	Upsert(ctx context.Context, collection, id, text string, vector []float32, metadata map[string]any) (string, error)

	// Search runs a nearest-neighbor query against collection, returning up
	// to limit Documents ordered by descending score. filter restricts
	// results to records whose metadata matches every key/value pair given
	// (e.g. {"owner_id": "...", "area_id": "..."}).
	Search(ctx context.Context, collection string, vector []float32, limit int, filter map[string]any) ([]Document, error)

	// Delete removes a record by id. Deleting a non-existent id is not an
	// error.
	Delete(ctx context.Context, collection, id string) error

	// EnsureCollection creates collection if it does not already exist.
	// Idempotent.
	EnsureCollection(ctx context.Context, collection string) error
}

// Well-known collection names per spec.md §9/glossary.
const (
	CollectionGeneral         = "general"
	CollectionPersonal        = "personal"
	CollectionDatabaseSchemas = "database_schemas"
)
