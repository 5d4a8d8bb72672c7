package datasource

import "context"

// ConnectionTester tests database connectivity.
// Each implementation owns its connection and must be closed when done.
type ConnectionTester interface {
	// TestConnection verifies the database is reachable with valid credentials.
	// Returns nil if connection is healthy, error otherwise.
	TestConnection(ctx context.Context) error

	// Close releases the database connection.
	Close() error
}

// SchemaExtractor extracts database schema information.
// Used for schema discovery in text2sql workflows.
type SchemaExtractor interface {
	// GetTables returns all tables in the database.
	GetTables(ctx context.Context) ([]Table, error)

	// GetColumns returns columns for a specific table.
	GetColumns(ctx context.Context, table string) ([]Column, error)

	// GetForeignKeys returns foreign key relationships for a table.
	GetForeignKeys(ctx context.Context, table string) ([]ForeignKey, error)
}

// SQLExecutor executes SQL queries against the database.
// Used for running generated SQL in text2sql workflows.
type SQLExecutor interface {
	// Execute runs a query and returns results.
	Execute(ctx context.Context, query string, params ...any) (*QueryResult, error)
}

// MaxQueryLimit bounds the row count returned by an unlimited ExecuteQuery
// call, so an adapter never has to stream an entire table into memory.
const MaxQueryLimit = 1000

// SchemaDiscoverer introspects a target database's structure and collects
// the column statistics the Schema Discovery Orchestrator needs to build a
// Schema document (see pkg/models.Schema). Each driver package
// (postgres, mssql, mysql, mongodb) provides one implementation.
type SchemaDiscoverer interface {
	DiscoverTables(ctx context.Context) ([]TableMetadata, error)
	DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]ColumnMetadata, error)
	DiscoverForeignKeys(ctx context.Context) ([]ForeignKeyMetadata, error)
	SupportsForeignKeys() bool
	AnalyzeColumnStats(ctx context.Context, schemaName, tableName string, columnNames []string) ([]ColumnStats, error)
	CheckValueOverlap(ctx context.Context, sourceSchema, sourceTable, sourceColumn, targetSchema, targetTable, targetColumn string, sampleLimit int) (*ValueOverlapResult, error)
	AnalyzeJoin(ctx context.Context, sourceSchema, sourceTable, sourceColumn, targetSchema, targetTable, targetColumn string) (*JoinAnalysis, error)
	GetDistinctValues(ctx context.Context, schemaName, tableName, columnName string, limit int) ([]string, error)
	GetEnumValueDistribution(ctx context.Context, schemaName, tableName, columnName, completionTimestampCol string, limit int) (*EnumDistributionResult, error)
	Close() error
}

// ColumnInfo names a result column and the driver-reported type it came
// back as, for ExecuteQuery's column metadata.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// QueryExecutionResult is the bounded-row result of a read-only query run
// through QueryExecutor.ExecuteQuery/ExecuteQueryWithParams.
type QueryExecutionResult struct {
	Columns  []ColumnInfo     `json:"columns"`
	Rows     []map[string]any `json:"rows"`
	RowCount int              `json:"row_count"`
}

// ExecuteResult is the result of a DDL/DML statement (or a statement with a
// RETURNING/OUTPUT clause) run through QueryExecutor.Execute.
type ExecuteResult struct {
	Columns      []string         `json:"columns,omitempty"`
	Rows         []map[string]any `json:"rows,omitempty"`
	RowCount     int              `json:"row_count"`
	RowsAffected int64            `json:"rows_affected"`
}

// ExplainResult carries a query's execution plan plus derived performance
// hints, for QueryExecutor.ExplainQuery.
type ExplainResult struct {
	Plan             string   `json:"plan"`
	ExecutionTimeMs  float64  `json:"execution_time_ms"`
	PlanningTimeMs   float64  `json:"planning_time_ms"`
	PerformanceHints []string `json:"performance_hints,omitempty"`
}

// QueryExecutor runs validated SQL against a target database connection.
// pkg/sql validates and parameterizes the statement before it reaches this
// interface; each driver package owns translating bind-parameter syntax and
// row scanning for its wire protocol.
type QueryExecutor interface {
	ExecuteQuery(ctx context.Context, sqlQuery string, limit int) (*QueryExecutionResult, error)
	ExecuteQueryWithParams(ctx context.Context, sqlQuery string, params []any, limit int) (*QueryExecutionResult, error)
	Execute(ctx context.Context, sqlStatement string) (*ExecuteResult, error)
	ValidateQuery(ctx context.Context, sqlQuery string) error
	ExplainQuery(ctx context.Context, sqlQuery string) (*ExplainResult, error)
	QuoteIdentifier(name string) string
	Close() error
}

// Table represents a database table.
type Table struct {
	Schema string `json:"schema"`
	Name   string `json:"name"`
}

// Column represents a database column.
type Column struct {
	Name       string `json:"name"`
	DataType   string `json:"data_type"`
	IsNullable bool   `json:"is_nullable"`
	IsPrimary  bool   `json:"is_primary"`
}

// ForeignKey represents a foreign key relationship.
type ForeignKey struct {
	Column           string `json:"column"`
	ReferencedTable  string `json:"referenced_table"`
	ReferencedColumn string `json:"referenced_column"`
}

// QueryResult contains the results of a SQL query execution.
type QueryResult struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
	RowsAff int64            `json:"rows_affected"`
}
