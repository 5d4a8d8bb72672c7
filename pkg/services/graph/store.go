// Package graph implements the Graph Projection component: it turns a
// discovered models.Schema into graph nodes/edges (idempotently) and serves
// the read-side describe/paths/related operations the query planner and
// schema handlers depend on.
package graph

import (
	"context"

	"github.com/google/uuid"

	"github.com/mratomo/graphrag-engine/pkg/models"
)

// Store is the port both the Neo4j-backed implementation and the in-memory
// fallback satisfy. The planner and the schema handlers depend only on this
// interface, never on a concrete backend, so deployments without a
// configured graph backend degrade to MemoryStore without code changes
// elsewhere.
type Store interface {
	// Project applies the six-step projection in spec.md §4.3 for the given
	// Schema as a single logical transaction: re-running it for the same
	// Schema must be idempotent (no duplicate RELATES_TO edges; via_column
	// annotations de-duplicate).
	Project(ctx context.Context, schema *models.Schema) error

	// Describe returns a short textual summary of the projected graph for a
	// connection (table count, relation count), or ErrNotProjected if the
	// connection has no projected graph yet.
	Describe(ctx context.Context, connectionID uuid.UUID) (string, error)

	// Paths returns up to 5 shortest relational paths between two tables, up
	// to maxDepth hops.
	Paths(ctx context.Context, connectionID uuid.UUID, fromTable, toTable string, maxDepth int) ([]models.GraphPath, error)

	// Related returns tables within maxDepth hops of table, closest first.
	Related(ctx context.Context, connectionID uuid.UUID, table string, maxDepth int) ([]models.RelatedTable, error)

	// EntitiesByName looks up Tables by exact name, then (if exact yields
	// nothing) by case-insensitive substring match, scoped to connectionID.
	EntitiesByName(ctx context.Context, connectionID uuid.UUID, name string) ([]models.Entity, error)

	// MostConnected returns the n Tables with the most RELATES_TO edges,
	// used to seed entity identification for exploration/analysis queries
	// with no name match.
	MostConnected(ctx context.Context, connectionID uuid.UUID, n int) ([]models.Entity, error)

	// RichestDescriptions returns up to n Tables ranked by description
	// length, used to seed entity identification for direct queries with no
	// name match.
	RichestDescriptions(ctx context.Context, connectionID uuid.UUID, n int) ([]models.Entity, error)

	// OutgoingRelations returns the RELATES_TO edges leaving table.
	OutgoingRelations(ctx context.Context, connectionID uuid.UUID, table string) ([]models.Relation, error)

	// Communities returns up to n communities for the connection.
	Communities(ctx context.Context, connectionID uuid.UUID, n int) ([]models.Community, error)

	// RawQuery executes an LLM-generated, read-only Cypher statement (the
	// planner's sub-query generation node, spec.md §4.6 step 7) and returns
	// each record as a column-name-to-value map. MemoryStore has no query
	// engine and always returns ErrRawQueryUnsupported; deployments running
	// without a real graph backend simply skip schema sub-queries.
	RawQuery(ctx context.Context, connectionID uuid.UUID, cypher string, params map[string]any) ([]map[string]any, error)

	// Close releases any resources held by the store (driver connections).
	Close(ctx context.Context) error
}

// ErrRawQueryUnsupported is returned by RawQuery on stores with no query
// engine (MemoryStore).
var ErrRawQueryUnsupported = &rawQueryUnsupportedError{}

type rawQueryUnsupportedError struct{}

func (*rawQueryUnsupportedError) Error() string { return "raw graph queries are not supported by this store" }

// ErrNotProjected is returned by Describe when a connection has no projected
// graph.
var ErrNotProjected = &notProjectedError{}

type notProjectedError struct{}

func (*notProjectedError) Error() string { return "connection has no projected graph" }
