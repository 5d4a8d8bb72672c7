package weaviate

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"

	"context"

	"github.com/mratomo/graphrag-engine/pkg/adapters/datasource"
)

// SchemaDiscoverer implements datasource.SchemaDiscoverer for Weaviate:
// classes stand in for tables, and their declared properties stand in for
// columns, read straight from the class schema rather than sampled.
type SchemaDiscoverer struct {
	adapter *Adapter
}

// NewSchemaDiscoverer creates a new Weaviate schema discoverer.
func NewSchemaDiscoverer(ctx context.Context, cfg *Config, connMgr *datasource.ConnectionManager, projectID, datasourceID uuid.UUID, userID string) (*SchemaDiscoverer, error) {
	adapter, err := NewAdapter(ctx, cfg, connMgr, projectID, datasourceID, userID)
	if err != nil {
		return nil, err
	}
	return &SchemaDiscoverer{adapter: adapter}, nil
}

// DiscoverTables lists Weaviate classes, one TableMetadata per class, with
// row count filled in by an aggregate count query per class.
func (s *SchemaDiscoverer) DiscoverTables(ctx context.Context) ([]datasource.TableMetadata, error) {
	schema, err := s.adapter.Client().Schema().Getter().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("get weaviate schema: %w", err)
	}

	tables := make([]datasource.TableMetadata, 0, len(schema.Classes))
	for _, class := range schema.Classes {
		count, err := s.classCount(ctx, class.Class)
		if err != nil {
			count = 0
		}
		tables = append(tables, datasource.TableMetadata{
			SchemaName: "weaviate",
			TableName:  class.Class,
			RowCount:   count,
		})
	}

	return tables, nil
}

// classCount runs an Aggregate{class{meta{count}}} query to get an object
// count for a class.
func (s *SchemaDiscoverer) classCount(ctx context.Context, class string) (int64, error) {
	result, err := s.adapter.Client().GraphQL().Aggregate().
		WithClassName(class).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, err
	}
	if len(result.Errors) > 0 {
		return 0, fmt.Errorf("weaviate aggregate error: %v", result.Errors[0].Message)
	}

	data, ok := result.Data["Aggregate"].(map[string]any)
	if !ok {
		return 0, nil
	}
	raw, ok := data[class].([]any)
	if !ok || len(raw) == 0 {
		return 0, nil
	}
	obj, ok := raw[0].(map[string]any)
	if !ok {
		return 0, nil
	}
	meta, ok := obj["meta"].(map[string]any)
	if !ok {
		return 0, nil
	}
	count, ok := meta["count"].(float64)
	if !ok {
		return 0, nil
	}
	return int64(count), nil
}

// DiscoverColumns returns one ColumnMetadata per declared property of a
// class, using the Weaviate data type as the column's data type.
func (s *SchemaDiscoverer) DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]datasource.ColumnMetadata, error) {
	class, err := s.adapter.Client().Schema().ClassGetter().WithClassName(tableName).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("get weaviate class %q: %w", tableName, err)
	}

	columns := make([]datasource.ColumnMetadata, 0, len(class.Properties))
	for i, prop := range class.Properties {
		dataType := "text"
		if len(prop.DataType) > 0 {
			dataType = prop.DataType[0]
		}
		columns = append(columns, datasource.ColumnMetadata{
			ColumnName:      prop.Name,
			DataType:        dataType,
			IsNullable:      true,
			OrdinalPosition: i + 1,
		})
	}

	return columns, nil
}

// DiscoverForeignKeys always returns no results: Weaviate has no foreign
// key constraints. Cross-references are modeled via "ref" properties rather
// than declared constraints, and are out of scope here.
func (s *SchemaDiscoverer) DiscoverForeignKeys(ctx context.Context) ([]datasource.ForeignKeyMetadata, error) {
	return nil, nil
}

// SupportsForeignKeys returns false; Weaviate enforces no referential constraints.
func (s *SchemaDiscoverer) SupportsForeignKeys() bool {
	return false
}

// AnalyzeColumnStats is not supported for Weaviate connections: class
// properties are typically vector payload metadata, not relational
// statistics candidates, and Weaviate's GraphQL API has no GROUP BY/COUNT
// DISTINCT primitive to compute them cheaply.
func (s *SchemaDiscoverer) AnalyzeColumnStats(ctx context.Context, schemaName, tableName string, columnNames []string) ([]datasource.ColumnStats, error) {
	return nil, fmt.Errorf("column statistics are not supported for weaviate connections")
}

// CheckValueOverlap is not supported for Weaviate connections.
func (s *SchemaDiscoverer) CheckValueOverlap(ctx context.Context,
	sourceSchema, sourceTable, sourceColumn,
	targetSchema, targetTable, targetColumn string,
	sampleLimit int) (*datasource.ValueOverlapResult, error) {
	return nil, fmt.Errorf("value overlap analysis is not supported for weaviate connections")
}

// AnalyzeJoin is not supported for Weaviate connections.
func (s *SchemaDiscoverer) AnalyzeJoin(ctx context.Context,
	sourceSchema, sourceTable, sourceColumn,
	targetSchema, targetTable, targetColumn string) (*datasource.JoinAnalysis, error) {
	return nil, fmt.Errorf("join analysis is not supported for weaviate connections")
}

// GetDistinctValues is not supported for Weaviate connections.
func (s *SchemaDiscoverer) GetDistinctValues(ctx context.Context, schemaName, tableName, columnName string, limit int) ([]string, error) {
	return nil, fmt.Errorf("distinct value listing is not supported for weaviate connections")
}

// GetEnumValueDistribution is not supported for Weaviate connections.
func (s *SchemaDiscoverer) GetEnumValueDistribution(ctx context.Context, schemaName, tableName, columnName, completionTimestampCol string, limit int) (*datasource.EnumDistributionResult, error) {
	return nil, fmt.Errorf("enum distribution analysis is not supported for weaviate connections")
}

// Close is a no-op: the underlying client owns no releasable resource.
func (s *SchemaDiscoverer) Close() error {
	return nil
}

// Ensure SchemaDiscoverer implements datasource.SchemaDiscoverer at compile time.
var _ datasource.SchemaDiscoverer = (*SchemaDiscoverer)(nil)
