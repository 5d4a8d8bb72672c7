package mongodb

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mratomo/graphrag-engine/pkg/adapters/datasource"
)

// defaultSampleSize bounds how many documents DiscoverColumns samples to
// infer a collection's field shape; MongoDB has no schema catalog to read
// from directly.
const defaultSampleSize = 100

// SchemaDiscoverer implements datasource.SchemaDiscoverer for MongoDB by
// sampling documents instead of reading information_schema-style catalogs:
// collections stand in for tables, and field shapes are inferred from a
// sample rather than declared.
type SchemaDiscoverer struct {
	config *Config
	db     *mongo.Database
}

// NewSchemaDiscoverer creates a new MongoDB schema discoverer.
func NewSchemaDiscoverer(ctx context.Context, cfg *Config, connMgr *datasource.ConnectionManager, projectID, datasourceID uuid.UUID, userID string) (*SchemaDiscoverer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	adapter, err := NewAdapter(ctx, cfg, connMgr, projectID, datasourceID, userID)
	if err != nil {
		return nil, err
	}

	return &SchemaDiscoverer{
		config: cfg,
		db:     adapter.Database(),
	}, nil
}

// DiscoverTables lists collections in the configured database, one
// TableMetadata per collection with an estimated document count standing in
// for row count.
func (s *SchemaDiscoverer) DiscoverTables(ctx context.Context) ([]datasource.TableMetadata, error) {
	names, err := s.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	sort.Strings(names)

	tables := make([]datasource.TableMetadata, 0, len(names))
	for _, name := range names {
		count, err := s.db.Collection(name).EstimatedDocumentCount(ctx)
		if err != nil {
			count = 0
		}
		tables = append(tables, datasource.TableMetadata{
			SchemaName: s.config.Database,
			TableName:  name,
			RowCount:   count,
		})
	}

	return tables, nil
}

// DiscoverColumns infers a collection's field shape from a bounded sample of
// documents, since there is no declared schema to read. Field order reflects
// first-seen order across the sample; a field's type is the BSON type of its
// first non-null occurrence.
func (s *SchemaDiscoverer) DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]datasource.ColumnMetadata, error) {
	cursor, err := s.db.Collection(tableName).Find(ctx, bson.D{}, options.Find().SetLimit(defaultSampleSize))
	if err != nil {
		return nil, fmt.Errorf("sample documents: %w", err)
	}
	defer cursor.Close(ctx)

	var order []string
	seen := make(map[string]bool)
	types := make(map[string]string)
	nullable := make(map[string]bool)
	present := 0

	for cursor.Next(ctx) {
		present++
		var doc bson.D
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode sample document: %w", err)
		}
		fieldsInDoc := make(map[string]bool)
		for _, elem := range doc {
			fieldsInDoc[elem.Key] = true
			if !seen[elem.Key] {
				seen[elem.Key] = true
				order = append(order, elem.Key)
			}
			if _, ok := types[elem.Key]; !ok && elem.Value != nil {
				types[elem.Key] = bsonTypeName(elem.Value)
			}
		}
		for field := range seen {
			if !fieldsInDoc[field] {
				nullable[field] = true
			}
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate sample documents: %w", err)
	}

	columns := make([]datasource.ColumnMetadata, 0, len(order))
	for i, field := range order {
		dataType := types[field]
		if dataType == "" {
			dataType = "null"
		}
		columns = append(columns, datasource.ColumnMetadata{
			ColumnName:      field,
			DataType:        dataType,
			IsNullable:      nullable[field],
			IsPrimaryKey:    field == "_id",
			OrdinalPosition: i + 1,
		})
	}

	return columns, nil
}

// bsonTypeName returns a stable type label for a decoded BSON value.
func bsonTypeName(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case int32, int64, int:
		return "int"
	case float64, float32:
		return "double"
	case bool:
		return "bool"
	case bson.DateTime:
		return "date"
	case bson.D, bson.M, map[string]any:
		return "object"
	case bson.A, []any:
		return "array"
	default:
		return "mixed"
	}
}

// DiscoverForeignKeys always returns no results: MongoDB has no declared
// foreign key constraints. Cross-collection relationships, if any, are
// inferred the same way SQL ones are for tables lacking constraints —
// through CheckValueOverlap/AnalyzeJoin on candidate fields.
func (s *SchemaDiscoverer) DiscoverForeignKeys(ctx context.Context) ([]datasource.ForeignKeyMetadata, error) {
	return nil, nil
}

// SupportsForeignKeys returns false; MongoDB enforces no referential constraints.
func (s *SchemaDiscoverer) SupportsForeignKeys() bool {
	return false
}

// AnalyzeColumnStats gathers row/distinct/null counts for fields via the
// aggregation framework. Min/max length is computed only when sampled
// values are strings.
func (s *SchemaDiscoverer) AnalyzeColumnStats(ctx context.Context, schemaName, tableName string, columnNames []string) ([]datasource.ColumnStats, error) {
	if len(columnNames) == 0 {
		return nil, nil
	}

	coll := s.db.Collection(tableName)
	rowCount, err := coll.EstimatedDocumentCount(ctx)
	if err != nil {
		rowCount = 0
	}

	var stats []datasource.ColumnStats
	for _, field := range columnNames {
		stat := datasource.ColumnStats{ColumnName: field, RowCount: rowCount}

		nonNull, err := coll.CountDocuments(ctx, bson.D{{Key: field, Value: bson.D{{Key: "$exists", Value: true}, {Key: "$ne", Value: nil}}}})
		if err != nil {
			stats = append(stats, stat)
			continue
		}
		stat.NonNullCount = nonNull

		distinctValues, err := coll.Distinct(ctx, field, bson.D{})
		if err == nil {
			stat.DistinctCount = int64(len(distinctValues))
			stat.MinLength, stat.MaxLength = stringLengthBounds(distinctValues)
		}

		stats = append(stats, stat)
	}

	return stats, nil
}

// stringLengthBounds computes min/max string length across values that are
// strings, returning nil bounds if none of the sampled values are strings.
func stringLengthBounds(values []any) (*int64, *int64) {
	var min, max int64
	found := false
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		length := int64(len(s))
		if !found {
			min, max = length, length
			found = true
			continue
		}
		if length < min {
			min = length
		}
		if length > max {
			max = length
		}
	}
	if !found {
		return nil, nil
	}
	return &min, &max
}

// CheckValueOverlap checks value overlap between two fields across two
// collections (for relationship inference), mirroring the SQL drivers'
// sampled-distinct-value comparison.
func (s *SchemaDiscoverer) CheckValueOverlap(ctx context.Context,
	sourceSchema, sourceTable, sourceColumn,
	targetSchema, targetTable, targetColumn string,
	sampleLimit int) (*datasource.ValueOverlapResult, error) {
	if sampleLimit <= 0 {
		sampleLimit = 1000
	}

	sourceValues, err := s.sampleDistinctValues(ctx, sourceTable, sourceColumn, sampleLimit)
	if err != nil {
		return nil, fmt.Errorf("sample source values: %w", err)
	}
	targetValues, err := s.sampleDistinctValues(ctx, targetTable, targetColumn, sampleLimit)
	if err != nil {
		return nil, fmt.Errorf("sample target values: %w", err)
	}

	targetSet := make(map[any]bool, len(targetValues))
	for _, v := range targetValues {
		targetSet[v] = true
	}

	var matched int64
	for _, v := range sourceValues {
		if targetSet[v] {
			matched++
		}
	}

	result := &datasource.ValueOverlapResult{
		SourceDistinct: int64(len(sourceValues)),
		TargetDistinct: int64(len(targetValues)),
		MatchedCount:   matched,
	}
	if result.SourceDistinct > 0 {
		result.MatchRate = float64(result.MatchedCount) / float64(result.SourceDistinct)
	}

	return result, nil
}

// sampleDistinctValues returns up to limit distinct non-null values for a field.
func (s *SchemaDiscoverer) sampleDistinctValues(ctx context.Context, collection, field string, limit int) ([]any, error) {
	values, err := s.db.Collection(collection).Distinct(ctx, field, bson.D{{Key: field, Value: bson.D{{Key: "$ne", Value: nil}}}})
	if err != nil {
		return nil, err
	}
	if len(values) > limit {
		values = values[:limit]
	}
	return values, nil
}

// AnalyzeJoin performs join analysis between two fields across two
// collections, computing both source→target and target→source (reverse)
// orphan counts the same way the SQL drivers do, to guard against false
// positive relationships visible from only one direction.
func (s *SchemaDiscoverer) AnalyzeJoin(ctx context.Context,
	sourceSchema, sourceTable, sourceColumn,
	targetSchema, targetTable, targetColumn string) (*datasource.JoinAnalysis, error) {
	sourceValues, err := s.sampleDistinctValues(ctx, sourceTable, sourceColumn, datasource.MaxQueryLimit)
	if err != nil {
		return nil, fmt.Errorf("sample source values: %w", err)
	}
	targetValues, err := s.sampleDistinctValues(ctx, targetTable, targetColumn, datasource.MaxQueryLimit)
	if err != nil {
		return nil, fmt.Errorf("sample target values: %w", err)
	}

	targetSet := make(map[any]bool, len(targetValues))
	for _, v := range targetValues {
		targetSet[v] = true
	}
	sourceSet := make(map[any]bool, len(sourceValues))
	for _, v := range sourceValues {
		sourceSet[v] = true
	}

	result := &datasource.JoinAnalysis{
		TargetMatched: int64(len(targetValues)),
	}

	var sourceMatched, orphans int64
	for _, v := range sourceValues {
		if targetSet[v] {
			sourceMatched++
		} else {
			orphans++
		}
	}
	result.SourceMatched = sourceMatched
	result.OrphanCount = orphans
	result.JoinCount = sourceMatched

	var reverseOrphans int64
	for _, v := range targetValues {
		if !sourceSet[v] {
			reverseOrphans++
		}
	}
	result.ReverseOrphanCount = reverseOrphans

	return result, nil
}

// GetDistinctValues returns up to limit distinct non-null values from a
// field, sorted as strings (values are coerced via fmt.Sprint, matching the
// CAST-to-text behavior of the SQL drivers' equivalent method).
func (s *SchemaDiscoverer) GetDistinctValues(ctx context.Context, schemaName, tableName, columnName string, limit int) ([]string, error) {
	values, err := s.sampleDistinctValues(ctx, tableName, columnName, limit)
	if err != nil {
		return nil, fmt.Errorf("get distinct values for %s.%s: %w", tableName, columnName, err)
	}

	strs := make([]string, 0, len(values))
	for _, v := range values {
		strs = append(strs, fmt.Sprintf("%v", v))
	}
	sort.Strings(strs)

	return strs, nil
}

// GetEnumValueDistribution analyzes value distribution for an enum-like
// field via an aggregation pipeline, mirroring the SQL drivers' GROUP BY
// count/percentage computation.
func (s *SchemaDiscoverer) GetEnumValueDistribution(ctx context.Context, schemaName, tableName, columnName, completionTimestampCol string, limit int) (*datasource.EnumDistributionResult, error) {
	coll := s.db.Collection(tableName)

	totalRows, err := coll.EstimatedDocumentCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	nullCount, err := coll.CountDocuments(ctx, bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: columnName, Value: bson.D{{Key: "$exists", Value: false}}}},
		bson.D{{Key: columnName, Value: nil}},
	}}})
	if err != nil {
		return nil, fmt.Errorf("count nulls: %w", err)
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: columnName, Value: bson.D{{Key: "$ne", Value: nil}}}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: fmt.Sprintf("$%s", columnName)},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}}}},
		{{Key: "$limit", Value: int64(limit)}},
	}

	cursor, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate enum distribution: %w", err)
	}
	defer cursor.Close(ctx)

	result := &datasource.EnumDistributionResult{
		ColumnName:             columnName,
		TotalRows:              totalRows,
		NullCount:              nullCount,
		CompletionTimestampCol: completionTimestampCol,
		Distributions:          []datasource.EnumValueDistribution{},
	}

	distinctCount := int64(0)
	for cursor.Next(ctx) {
		var row struct {
			ID    any   `bson:"_id"`
			Count int64 `bson:"count"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, fmt.Errorf("decode distribution row: %w", err)
		}
		distinctCount++

		dist := datasource.EnumValueDistribution{
			Value:     fmt.Sprintf("%v", row.ID),
			Count:     row.Count,
			TotalRows: totalRows,
		}
		if totalRows > 0 {
			dist.Percentage = float64(row.Count) / float64(totalRows) * 100
		}
		if completionTimestampCol != "" {
			completed, err := coll.CountDocuments(ctx, bson.D{
				{Key: columnName, Value: row.ID},
				{Key: completionTimestampCol, Value: bson.D{{Key: "$ne", Value: nil}}},
			})
			if err == nil {
				dist.HasCompletionAt = completed
				if row.Count > 0 {
					dist.CompletionRate = float64(completed) / float64(row.Count) * 100
				}
			}
		}
		result.Distributions = append(result.Distributions, dist)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate distribution cursor: %w", err)
	}
	result.DistinctCount = distinctCount

	if completionTimestampCol != "" && len(result.Distributions) > 0 {
		result.HasStateSemantics = inferStateSemantics(result.Distributions)
	}

	return result, nil
}

// inferStateSemantics classifies distribution values as initial/terminal/error
// states, mirroring the heuristic the SQL drivers apply.
func inferStateSemantics(distributions []datasource.EnumValueDistribution) bool {
	if len(distributions) == 0 {
		return false
	}

	var maxCount, totalCount int64
	maxCount = distributions[0].Count
	for _, d := range distributions {
		if d.Count > maxCount {
			maxCount = d.Count
		}
		totalCount += d.Count
	}
	if totalCount == 0 {
		return false
	}

	foundInitial, foundTerminal := false, false
	avgCount := totalCount / int64(len(distributions))

	for i := range distributions {
		d := &distributions[i]
		if d.CompletionRate >= 95.0 && d.Count > 0 {
			d.IsLikelyTerminalState = true
			foundTerminal = true
		}
		if d.CompletionRate <= 5.0 && d.Count >= avgCount/2 {
			d.IsLikelyInitialState = true
			foundInitial = true
		}
		if maxCount > 0 && float64(d.Count)/float64(maxCount) < 0.05 {
			d.IsLikelyErrorState = true
		}
	}

	return foundInitial || foundTerminal
}

// Close is a no-op: the underlying client is owned by the Adapter/connection
// manager, not the discoverer.
func (s *SchemaDiscoverer) Close() error {
	return nil
}

// Ensure SchemaDiscoverer implements datasource.SchemaDiscoverer at compile time.
var _ datasource.SchemaDiscoverer = (*SchemaDiscoverer)(nil)
