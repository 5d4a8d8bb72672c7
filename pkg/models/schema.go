package models

import (
	"time"

	"github.com/google/uuid"
)

// SchemaStatus mirrors the discovery lifecycle of a Schema document.
type SchemaStatus string

const (
	SchemaStatusPending    SchemaStatus = "pending"
	SchemaStatusInProgress SchemaStatus = "in_progress"
	SchemaStatusCompleted  SchemaStatus = "completed"
	SchemaStatusFailed     SchemaStatus = "failed"
)

// Limits enforced by the Schema Discovery Orchestrator while extracting
// structural metadata. Breaching a limit drops the excess, not the job.
const (
	MaxTablesPerSchema  = 500
	MaxColumnsPerTable  = 300
	MaxIdentifierLength = 100
)

// Column is one field of a Table as discovered from the target database.
type Column struct {
	Name         string `json:"name" bson:"name"`
	DataType     string `json:"data_type" bson:"data_type"`
	Nullable     bool   `json:"nullable" bson:"nullable"`
	IsPrimaryKey bool   `json:"is_primary_key" bson:"is_primary_key"`
	IsForeignKey bool   `json:"is_foreign_key" bson:"is_foreign_key"`
	// References is a textual pointer of form "schema.table.column" (or
	// "table.column", or a bare "column" which is never resolved). Only
	// populated when IsForeignKey is true.
	References  string `json:"references,omitempty" bson:"references,omitempty"`
	Description string `json:"description,omitempty" bson:"description,omitempty"`
}

// Table is an ordered sequence of Columns plus discovery metadata.
type Table struct {
	Name        string   `json:"name" bson:"name"`
	Schema      string   `json:"schema" bson:"schema"`
	RowCount    *int64   `json:"row_count,omitempty" bson:"row_count,omitempty"`
	Description string   `json:"description,omitempty" bson:"description,omitempty"`
	Columns     []Column `json:"columns" bson:"columns"`
	// Community is the id assigned by graph community detection (or, absent
	// a graph backend capable of it, the schema-namespace fallback grouping).
	Community *int `json:"community,omitempty" bson:"community,omitempty"`
}

// Schema is the structural description of a target database, keyed by the
// owning Connection. Only one Schema document exists per connection_id; the
// repository upserts on that key.
type Schema struct {
	ConnectionID       uuid.UUID    `json:"connection_id" bson:"connection_id"`
	Name               string       `json:"name" bson:"name"`
	DBType             string       `json:"db_type" bson:"db_type"`
	Version            string       `json:"version,omitempty" bson:"version,omitempty"`
	Status             SchemaStatus `json:"status" bson:"status"`
	DiscoveryDate      *time.Time   `json:"discovery_date,omitempty" bson:"discovery_date,omitempty"`
	VectorID           string       `json:"vector_id,omitempty" bson:"vector_id,omitempty"`
	Error              string       `json:"error,omitempty" bson:"error,omitempty"`
	VectorizationError string       `json:"vectorization_error,omitempty" bson:"vectorization_error,omitempty"`
	Tables             []Table      `json:"tables" bson:"tables"`
	CreatedAt          time.Time    `json:"created_at" bson:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at" bson:"updated_at"`
}

// PendingSchema synthesizes a placeholder Schema document for a connection
// that has no discovery history yet. get_schema returns this without
// blocking on discovery.
func PendingSchema(connectionID uuid.UUID, dbType string) *Schema {
	now := time.Now()
	return &Schema{
		ConnectionID: connectionID,
		DBType:       dbType,
		Status:       SchemaStatusPending,
		Tables:       []Table{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// DiscoveryOptions are the options recognized by start_discovery.
type DiscoveryOptions struct {
	Schemas             []string `json:"schemas,omitempty"`
	ExcludedTables      []string `json:"excluded_tables,omitempty"`
	ExcludedCollections []string `json:"excluded_collections,omitempty"`
	Database            string   `json:"database,omitempty"`
	SampleSize          int      `json:"sample_size,omitempty"`
	Analyze             bool     `json:"analyze,omitempty"`
}

// SchemaQuerySuggestion is a join suggestion produced by the analyze_schema
// insight pass, joining two FK-linked tables.
type SchemaQuerySuggestion struct {
	Description string `json:"description"`
	SQL         string `json:"sql"`
	FromTable   string `json:"from_table"`
	ToTable     string `json:"to_table"`
}

// QueryParameter declares a named parameter usable in a templated SQL query
// (the {{name}} syntax handled by pkg/sql).
type QueryParameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
	Default     any    `json:"default,omitempty"`
}
