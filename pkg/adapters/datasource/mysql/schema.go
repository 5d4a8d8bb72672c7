package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mratomo/graphrag-engine/pkg/adapters/datasource"
)

// SchemaDiscoverer implements datasource.SchemaDiscoverer for MySQL.
type SchemaDiscoverer struct {
	config *Config
	db     *sql.DB
	logger *zap.Logger
}

// NewSchemaDiscoverer creates a new MySQL schema discoverer.
// Uses connection manager for connection pooling. If logger is nil, a
// no-op logger is used.
func NewSchemaDiscoverer(ctx context.Context, cfg *Config, connMgr *datasource.ConnectionManager, projectID, datasourceID uuid.UUID, userID string, logger *zap.Logger) (*SchemaDiscoverer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	adapter, err := NewAdapter(ctx, cfg, connMgr, projectID, datasourceID, userID)
	if err != nil {
		return nil, err
	}

	return &SchemaDiscoverer{
		config: cfg,
		db:     adapter.DB(),
		logger: logger,
	}, nil
}

// DiscoverTables returns all base tables in the configured database.
func (s *SchemaDiscoverer) DiscoverTables(ctx context.Context) ([]datasource.TableMetadata, error) {
	query := `
	SELECT
	    t.TABLE_SCHEMA,
	    t.TABLE_NAME,
	    COALESCE(t.TABLE_ROWS, 0)
	FROM information_schema.TABLES t
	WHERE t.TABLE_SCHEMA = ?
	  AND t.TABLE_TYPE = 'BASE TABLE'
	ORDER BY t.TABLE_SCHEMA, t.TABLE_NAME
	`

	rows, err := s.db.QueryContext(ctx, query, s.config.Database)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var tables []datasource.TableMetadata
	for rows.Next() {
		var table datasource.TableMetadata
		if err := rows.Scan(&table.SchemaName, &table.TableName, &table.RowCount); err != nil {
			return nil, fmt.Errorf("scan table row: %w", err)
		}
		tables = append(tables, table)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table rows: %w", err)
	}

	return tables, nil
}

// DiscoverColumns returns columns for a specific table.
func (s *SchemaDiscoverer) DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]datasource.ColumnMetadata, error) {
	query := `
	SELECT
	    c.COLUMN_NAME,
	    c.DATA_TYPE,
	    c.IS_NULLABLE,
	    c.ORDINAL_POSITION,
	    c.COLUMN_KEY
	FROM information_schema.COLUMNS c
	WHERE c.TABLE_SCHEMA = ? AND c.TABLE_NAME = ?
	ORDER BY c.ORDINAL_POSITION
	`

	rows, err := s.db.QueryContext(ctx, query, schemaName, tableName)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var columns []datasource.ColumnMetadata
	for rows.Next() {
		var col datasource.ColumnMetadata
		var isNullable, columnKey string

		if err := rows.Scan(&col.ColumnName, &col.DataType, &isNullable, &col.OrdinalPosition, &columnKey); err != nil {
			return nil, fmt.Errorf("scan column row: %w", err)
		}

		col.IsNullable = isNullable == "YES"
		col.IsPrimaryKey = columnKey == "PRI"
		col.DataType = mapMySQLType(col.DataType)

		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate column rows: %w", err)
	}

	return columns, nil
}

// DiscoverForeignKeys returns all foreign key relationships in the configured database.
func (s *SchemaDiscoverer) DiscoverForeignKeys(ctx context.Context) ([]datasource.ForeignKeyMetadata, error) {
	query := `
	SELECT
	    kcu.CONSTRAINT_NAME,
	    kcu.TABLE_SCHEMA,
	    kcu.TABLE_NAME,
	    kcu.COLUMN_NAME,
	    kcu.REFERENCED_TABLE_SCHEMA,
	    kcu.REFERENCED_TABLE_NAME,
	    kcu.REFERENCED_COLUMN_NAME
	FROM information_schema.KEY_COLUMN_USAGE kcu
	WHERE kcu.TABLE_SCHEMA = ?
	  AND kcu.REFERENCED_TABLE_NAME IS NOT NULL
	ORDER BY kcu.TABLE_SCHEMA, kcu.TABLE_NAME, kcu.CONSTRAINT_NAME, kcu.ORDINAL_POSITION
	`

	rows, err := s.db.QueryContext(ctx, query, s.config.Database)
	if err != nil {
		return nil, fmt.Errorf("query foreign keys: %w", err)
	}
	defer rows.Close()

	var fks []datasource.ForeignKeyMetadata
	for rows.Next() {
		var fk datasource.ForeignKeyMetadata
		if err := rows.Scan(
			&fk.ConstraintName,
			&fk.SourceSchema,
			&fk.SourceTable,
			&fk.SourceColumn,
			&fk.TargetSchema,
			&fk.TargetTable,
			&fk.TargetColumn,
		); err != nil {
			return nil, fmt.Errorf("scan foreign key row: %w", err)
		}
		fks = append(fks, fk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate foreign key rows: %w", err)
	}

	return fks, nil
}

// SupportsForeignKeys returns true; InnoDB (the default engine) enforces them.
func (s *SchemaDiscoverer) SupportsForeignKeys() bool {
	return true
}

// AnalyzeColumnStats gathers row/distinct/null counts and, for text-compatible
// columns, min/max length. A column whose stats query fails is included with
// zero values rather than aborting the whole batch.
func (s *SchemaDiscoverer) AnalyzeColumnStats(ctx context.Context, schemaName, tableName string, columnNames []string) ([]datasource.ColumnStats, error) {
	if len(columnNames) == 0 {
		return nil, nil
	}

	fqTable := buildFullyQualifiedName(schemaName, tableName)

	var stats []datasource.ColumnStats
	for _, colName := range columnNames {
		quotedCol := quoteName(colName)
		stat := datasource.ColumnStats{ColumnName: colName}

		colType, typeErr := s.getColumnType(ctx, schemaName, tableName, colName)
		if typeErr != nil {
			s.logger.Debug("could not determine column type, using simplified stats query",
				zap.String("schema", schemaName),
				zap.String("table", tableName),
				zap.String("column", colName),
				zap.Error(typeErr))
		}

		if typeErr == nil && isTextCompatibleType(colType) {
			query := fmt.Sprintf(`
				SELECT
					COUNT(*),
					COUNT(%s),
					COUNT(DISTINCT %s),
					MIN(CHAR_LENGTH(%s)),
					MAX(CHAR_LENGTH(%s))
				FROM %s
			`, quotedCol, quotedCol, quotedCol, quotedCol, fqTable)

			row := s.db.QueryRowContext(ctx, query)
			if err := row.Scan(&stat.RowCount, &stat.NonNullCount, &stat.DistinctCount, &stat.MinLength, &stat.MaxLength); err != nil {
				s.logger.Warn("failed to analyze column stats, using zero values",
					zap.String("schema", schemaName), zap.String("table", tableName),
					zap.String("column", colName), zap.Error(err))
				stat.RowCount, stat.NonNullCount, stat.DistinctCount = 0, 0, 0
				stat.MinLength, stat.MaxLength = nil, nil
			}
		} else {
			query := fmt.Sprintf(`
				SELECT COUNT(*), COUNT(%s), COUNT(DISTINCT %s)
				FROM %s
			`, quotedCol, quotedCol, fqTable)

			row := s.db.QueryRowContext(ctx, query)
			if err := row.Scan(&stat.RowCount, &stat.NonNullCount, &stat.DistinctCount); err != nil {
				s.logger.Warn("failed to analyze column stats, using zero values",
					zap.String("schema", schemaName), zap.String("table", tableName),
					zap.String("column", colName), zap.Error(err))
				stat.RowCount, stat.NonNullCount, stat.DistinctCount = 0, 0, 0
			}
			stat.MinLength, stat.MaxLength = nil, nil
		}

		stats = append(stats, stat)
	}

	return stats, nil
}

// getColumnType queries the data type of a single column from information_schema.
func (s *SchemaDiscoverer) getColumnType(ctx context.Context, schemaName, tableName, columnName string) (string, error) {
	query := `
		SELECT DATA_TYPE FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ? AND COLUMN_NAME = ?
	`
	var typeName string
	err := s.db.QueryRowContext(ctx, query, schemaName, tableName, columnName).Scan(&typeName)
	if err != nil {
		return "", err
	}
	return typeName, nil
}

// CheckValueOverlap checks value overlap between two columns (for relationship inference).
func (s *SchemaDiscoverer) CheckValueOverlap(ctx context.Context,
	sourceSchema, sourceTable, sourceColumn,
	targetSchema, targetTable, targetColumn string,
	sampleLimit int) (*datasource.ValueOverlapResult, error) {
	if sampleLimit <= 0 {
		sampleLimit = 1000
	}

	query := fmt.Sprintf(`
	WITH source_sample AS (
	    SELECT DISTINCT %s AS val
	    FROM %s
	    WHERE %s IS NOT NULL
	    LIMIT %d
	),
	target_sample AS (
	    SELECT DISTINCT %s AS val
	    FROM %s
	    WHERE %s IS NOT NULL
	    LIMIT %d
	)
	SELECT
	    (SELECT COUNT(*) FROM source_sample) AS source_distinct,
	    (SELECT COUNT(*) FROM target_sample) AS target_distinct,
	    (SELECT COUNT(*) FROM source_sample s INNER JOIN target_sample t ON s.val = t.val) AS matched_count
	`,
		quoteName(sourceColumn), buildFullyQualifiedName(sourceSchema, sourceTable), quoteName(sourceColumn), sampleLimit,
		quoteName(targetColumn), buildFullyQualifiedName(targetSchema, targetTable), quoteName(targetColumn), sampleLimit,
	)

	var result datasource.ValueOverlapResult
	if err := s.db.QueryRowContext(ctx, query).Scan(&result.SourceDistinct, &result.TargetDistinct, &result.MatchedCount); err != nil {
		return nil, fmt.Errorf("query value overlap: %w", err)
	}

	if result.SourceDistinct > 0 {
		result.MatchRate = float64(result.MatchedCount) / float64(result.SourceDistinct)
	}

	return &result, nil
}

// AnalyzeJoin performs join analysis between two columns, computing both
// source→target and target→source (reverse) orphan counts to guard against
// false positive relationships found from the smaller side alone.
func (s *SchemaDiscoverer) AnalyzeJoin(ctx context.Context,
	sourceSchema, sourceTable, sourceColumn,
	targetSchema, targetTable, targetColumn string) (*datasource.JoinAnalysis, error) {
	srcTable := buildFullyQualifiedName(sourceSchema, sourceTable)
	tgtTable := buildFullyQualifiedName(targetSchema, targetTable)
	srcCol := quoteName(sourceColumn)
	tgtCol := quoteName(targetColumn)

	query := fmt.Sprintf(`
	SELECT
	    (SELECT COUNT(*) FROM %s src INNER JOIN %s tgt ON src.%s = tgt.%s WHERE src.%s IS NOT NULL) AS join_count,
	    (SELECT COUNT(DISTINCT src.%s) FROM %s src INNER JOIN %s tgt ON src.%s = tgt.%s WHERE src.%s IS NOT NULL) AS source_matched,
	    (SELECT COUNT(DISTINCT %s) FROM %s WHERE %s IS NOT NULL) AS target_matched,
	    (SELECT COUNT(DISTINCT src.%s) FROM %s src LEFT JOIN %s tgt ON src.%s = tgt.%s WHERE src.%s IS NOT NULL AND tgt.%s IS NULL) AS orphan_count,
	    (SELECT COUNT(DISTINCT tgt.%s) FROM %s tgt LEFT JOIN %s src ON tgt.%s = src.%s WHERE tgt.%s IS NOT NULL AND src.%s IS NULL) AS reverse_orphan_count
	`,
		srcTable, tgtTable, srcCol, tgtCol, srcCol,
		srcCol, srcTable, tgtTable, srcCol, tgtCol, srcCol,
		tgtCol, tgtTable, tgtCol,
		srcCol, srcTable, tgtTable, srcCol, tgtCol, srcCol, tgtCol,
		tgtCol, tgtTable, srcTable, tgtCol, srcCol, tgtCol, srcCol,
	)

	var result datasource.JoinAnalysis
	if err := s.db.QueryRowContext(ctx, query).Scan(
		&result.JoinCount,
		&result.SourceMatched,
		&result.TargetMatched,
		&result.OrphanCount,
		&result.ReverseOrphanCount,
	); err != nil {
		return nil, fmt.Errorf("query join analysis: %w", err)
	}

	return &result, nil
}

// GetDistinctValues returns up to limit distinct non-null values from a column, sorted.
func (s *SchemaDiscoverer) GetDistinctValues(ctx context.Context, schemaName, tableName, columnName string, limit int) ([]string, error) {
	query := fmt.Sprintf(`
	SELECT DISTINCT CAST(%s AS CHAR) AS val
	FROM %s
	WHERE %s IS NOT NULL
	ORDER BY 1
	LIMIT %d
	`, quoteName(columnName), buildFullyQualifiedName(schemaName, tableName), quoteName(columnName), limit)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get distinct values for %s.%s.%s: %w", schemaName, tableName, columnName, err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var val string
		if err := rows.Scan(&val); err != nil {
			return nil, fmt.Errorf("scan distinct value: %w", err)
		}
		values = append(values, val)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate distinct values: %w", err)
	}

	return values, nil
}

// GetEnumValueDistribution analyzes value distribution for an enum-like column.
func (s *SchemaDiscoverer) GetEnumValueDistribution(ctx context.Context, schemaName, tableName, columnName, completionTimestampCol string, limit int) (*datasource.EnumDistributionResult, error) {
	quotedTable := buildFullyQualifiedName(schemaName, tableName)
	quotedCol := quoteName(columnName)

	var totalRows, nullCount, distinctCount int64
	totalQuery := fmt.Sprintf(`
		SELECT COUNT(*), SUM(CASE WHEN %s IS NULL THEN 1 ELSE 0 END), COUNT(DISTINCT %s)
		FROM %s
	`, quotedCol, quotedCol, quotedTable)
	if err := s.db.QueryRowContext(ctx, totalQuery).Scan(&totalRows, &nullCount, &distinctCount); err != nil {
		return nil, fmt.Errorf("get totals for %s.%s.%s: %w", schemaName, tableName, columnName, err)
	}

	result := &datasource.EnumDistributionResult{
		ColumnName:    columnName,
		TotalRows:     totalRows,
		DistinctCount: distinctCount,
		NullCount:     nullCount,
		Distributions: []datasource.EnumValueDistribution{},
	}

	var query string
	if completionTimestampCol != "" {
		quotedCompletionCol := quoteName(completionTimestampCol)
		result.CompletionTimestampCol = completionTimestampCol

		query = fmt.Sprintf(`
			SELECT CAST(%s AS CHAR) AS value,
			       COUNT(*) AS cnt,
			       ROUND(100.0 * COUNT(*) / NULLIF(%d, 0), 2) AS percentage,
			       SUM(CASE WHEN %s IS NOT NULL THEN 1 ELSE 0 END) AS has_completion_at,
			       ROUND(100.0 * SUM(CASE WHEN %s IS NOT NULL THEN 1 ELSE 0 END) / NULLIF(COUNT(*), 0), 2) AS completion_rate
			FROM %s
			WHERE %s IS NOT NULL
			GROUP BY %s
			ORDER BY cnt DESC
			LIMIT %d
		`, quotedCol, totalRows, quotedCompletionCol, quotedCompletionCol, quotedTable, quotedCol, quotedCol, limit)
	} else {
		query = fmt.Sprintf(`
			SELECT CAST(%s AS CHAR) AS value,
			       COUNT(*) AS cnt,
			       ROUND(100.0 * COUNT(*) / NULLIF(%d, 0), 2) AS percentage,
			       0 AS has_completion_at,
			       0.0 AS completion_rate
			FROM %s
			WHERE %s IS NOT NULL
			GROUP BY %s
			ORDER BY cnt DESC
			LIMIT %d
		`, quotedCol, totalRows, quotedTable, quotedCol, quotedCol, limit)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get enum distribution for %s.%s.%s: %w", schemaName, tableName, columnName, err)
	}
	defer rows.Close()

	for rows.Next() {
		var dist datasource.EnumValueDistribution
		var percentage, completionRate float64
		if err := rows.Scan(&dist.Value, &dist.Count, &percentage, &dist.HasCompletionAt, &completionRate); err != nil {
			return nil, fmt.Errorf("scan distribution row: %w", err)
		}
		dist.Percentage = percentage
		dist.CompletionRate = completionRate
		dist.TotalRows = totalRows
		result.Distributions = append(result.Distributions, dist)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate distribution rows: %w", err)
	}

	if completionTimestampCol != "" && len(result.Distributions) > 0 {
		result.HasStateSemantics = inferStateSemantics(result.Distributions)
	}

	return result, nil
}

// inferStateSemantics classifies distribution values as initial/terminal/error states,
// mirroring the heuristic the other drivers apply.
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

// Close releases the database connection.
func (s *SchemaDiscoverer) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ensure SchemaDiscoverer implements datasource.SchemaDiscoverer at compile time.
var _ datasource.SchemaDiscoverer = (*SchemaDiscoverer)(nil)
