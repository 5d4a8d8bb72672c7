package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/mratomo/graphrag-engine/pkg/adapters/datasource"
)

// QueryExecutor provides MySQL query execution.
type QueryExecutor struct {
	config *Config
	db     *sql.DB
}

// NewQueryExecutor creates a MySQL query executor.
// Uses connection manager for connection pooling.
func NewQueryExecutor(ctx context.Context, cfg *Config, connMgr *datasource.ConnectionManager, projectID, datasourceID uuid.UUID, userID string) (*QueryExecutor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	adapter, err := NewAdapter(ctx, cfg, connMgr, projectID, datasourceID, userID)
	if err != nil {
		return nil, err
	}

	return &QueryExecutor{
		config: cfg,
		db:     adapter.DB(),
	}, nil
}

// ExecuteQuery runs a SELECT statement and returns bounded results.
// See datasource.QueryExecutor.ExecuteQuery for limit behavior.
func (e *QueryExecutor) ExecuteQuery(ctx context.Context, sqlQuery string, limit int) (*datasource.QueryExecutionResult, error) {
	effectiveLimit := limit
	if effectiveLimit <= 0 || effectiveLimit > datasource.MaxQueryLimit {
		effectiveLimit = datasource.MaxQueryLimit
	}
	queryToRun := fmt.Sprintf("SELECT * FROM (%s) AS _limited LIMIT %d", sqlQuery, effectiveLimit)

	return e.runQuery(ctx, queryToRun)
}

// ExecuteQueryWithParams runs a parameterized SELECT with bounded results.
// The SQL should use $1, $2, etc. for parameter placeholders (PostgreSQL style);
// these are converted to MySQL's bare `?` placeholders in declaration order.
func (e *QueryExecutor) ExecuteQueryWithParams(ctx context.Context, sqlQuery string, params []any, limit int) (*datasource.QueryExecutionResult, error) {
	convertedQuery := convertPostgreSQLParamsToMySQL(sqlQuery)

	effectiveLimit := limit
	if effectiveLimit <= 0 || effectiveLimit > datasource.MaxQueryLimit {
		effectiveLimit = datasource.MaxQueryLimit
	}
	queryToRun := fmt.Sprintf("SELECT * FROM (%s) AS _limited LIMIT %d", convertedQuery, effectiveLimit)

	rows, err := e.db.QueryContext(ctx, queryToRun, params...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute parameterized query: %w", err)
	}
	return scanQueryResult(rows)
}

// runQuery executes a query with no parameters and scans its result set.
func (e *QueryExecutor) runQuery(ctx context.Context, query string) (*datasource.QueryExecutionResult, error) {
	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return scanQueryResult(rows)
}

// scanQueryResult consumes and closes rows, converting them into a QueryExecutionResult.
func scanQueryResult(rows *sql.Rows) (*datasource.QueryExecutionResult, error) {
	defer rows.Close()

	columnNames, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to get column types: %w", err)
	}

	columns := make([]datasource.ColumnInfo, len(columnNames))
	for i, colName := range columnNames {
		columns[i] = datasource.ColumnInfo{
			Name: colName,
			Type: mapMySQLType(columnTypes[i].DatabaseTypeName()),
		}
	}

	resultRows := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(columnNames))
		valuePtrs := make([]any, len(columnNames))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		rowMap := make(map[string]any)
		for i, col := range columnNames {
			val := values[i]
			if val != nil {
				if b, ok := val.([]byte); ok {
					colType := columnTypes[i].DatabaseTypeName()
					if isStringType(colType) {
						val = string(b)
					}
				}
			}
			rowMap[col] = val
		}
		resultRows = append(resultRows, rowMap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return &datasource.QueryExecutionResult{
		Columns:  columns,
		Rows:     resultRows,
		RowCount: len(resultRows),
	}, nil
}

// Execute runs any SQL statement (DDL/DML) and returns results.
// For statements that return rows, returns them; for INSERT/UPDATE/DELETE,
// returns RowsAffected.
func (e *QueryExecutor) Execute(ctx context.Context, sqlStatement string) (*datasource.ExecuteResult, error) {
	result := &datasource.ExecuteResult{}

	rows, err := e.db.QueryContext(ctx, sqlStatement)
	if err != nil {
		execResult, execErr := e.db.ExecContext(ctx, sqlStatement)
		if execErr != nil {
			return nil, fmt.Errorf("failed to execute statement: %w", execErr)
		}
		rowsAffected, err := execResult.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to get rows affected: %w", err)
		}
		result.RowsAffected = rowsAffected
		return result, nil
	}
	defer rows.Close()

	columnNames, err := rows.Columns()
	if err != nil || len(columnNames) == 0 {
		rows.Close()
		execResult, execErr := e.db.ExecContext(ctx, sqlStatement)
		if execErr != nil {
			return nil, fmt.Errorf("failed to execute statement: %w", execErr)
		}
		rowsAffected, err := execResult.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to get rows affected: %w", err)
		}
		result.RowsAffected = rowsAffected
		return result, nil
	}

	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to get column types: %w", err)
	}

	result.Columns = columnNames
	result.Rows = make([]map[string]any, 0)

	for rows.Next() {
		values := make([]any, len(columnNames))
		valuePtrs := make([]any, len(columnNames))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		rowMap := make(map[string]any)
		for i, col := range columnNames {
			val := values[i]
			if val != nil {
				if b, ok := val.([]byte); ok {
					colType := columnTypes[i].DatabaseTypeName()
					if isStringType(colType) {
						val = string(b)
					}
				}
			}
			rowMap[col] = val
		}
		result.Rows = append(result.Rows, rowMap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	result.RowCount = len(result.Rows)
	return result, nil
}

// QuoteIdentifier safely quotes a SQL identifier using MySQL's backtick syntax.
func (e *QueryExecutor) QuoteIdentifier(name string) string {
	return quoteName(name)
}

// convertPostgreSQLParamsToMySQL converts PostgreSQL-style positional
// parameters ($1, $2, ...) to MySQL's bare `?` placeholders. Caller must
// supply params in the same order the placeholders appear in the query.
func convertPostgreSQLParamsToMySQL(query string) string {
	re := regexp.MustCompile(`\$(\d+)`)
	return re.ReplaceAllStringFunc(query, func(match string) string {
		if _, err := strconv.Atoi(match[1:]); err != nil {
			return match
		}
		return "?"
	})
}

// ValidateQuery checks if a SQL query is syntactically valid without executing it.
func (e *QueryExecutor) ValidateQuery(ctx context.Context, sqlQuery string) error {
	stmt, err := e.db.PrepareContext(ctx, sqlQuery)
	if err != nil {
		return fmt.Errorf("invalid SQL: %w", err)
	}
	defer stmt.Close()
	return nil
}

// ExplainQuery returns execution plan output for a SQL query with performance insights.
func (e *QueryExecutor) ExplainQuery(ctx context.Context, sqlQuery string) (*datasource.ExplainResult, error) {
	rows, err := e.db.QueryContext(ctx, "EXPLAIN FORMAT=TRADITIONAL "+sqlQuery)
	if err != nil {
		return nil, fmt.Errorf("EXPLAIN query failed: %w", err)
	}
	defer rows.Close()

	columnNames, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	var planLines []string
	var extraValues []string
	for rows.Next() {
		values := make([]any, len(columnNames))
		valuePtrs := make([]any, len(columnNames))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan explain row: %w", err)
		}

		parts := make([]string, 0, len(columnNames))
		for i, col := range columnNames {
			var s string
			if b, ok := values[i].([]byte); ok {
				s = string(b)
			} else if values[i] != nil {
				s = fmt.Sprintf("%v", values[i])
			}
			parts = append(parts, fmt.Sprintf("%s=%s", col, s))
			if strings.EqualFold(col, "Extra") {
				extraValues = append(extraValues, s)
			}
		}
		planLines = append(planLines, strings.Join(parts, " "))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading execution plan: %w", err)
	}

	result := &datasource.ExplainResult{}
	if len(planLines) > 0 {
		result.Plan = "MySQL Execution Plan:\n" + strings.Join(planLines, "\n")
	} else {
		result.Plan = "Execution plan not available. Query syntax may be invalid."
	}
	result.PerformanceHints = generateMySQLPerformanceHints(planLines, extraValues)

	return result, nil
}

// generateMySQLPerformanceHints analyzes the execution plan and provides optimization suggestions.
func generateMySQLPerformanceHints(planLines, extraValues []string) []string {
	var hints []string
	planText := strings.Join(planLines, " ")

	if containsIgnoreCase(planText, "type=ALL") {
		hints = append(hints, "Full table scan detected - consider adding an index if this table is large")
	}
	for _, extra := range extraValues {
		if containsIgnoreCase(extra, "Using filesort") {
			hints = append(hints, "Filesort detected - consider adding an index to avoid sorting")
		}
		if containsIgnoreCase(extra, "Using temporary") {
			hints = append(hints, "Temporary table detected - query may benefit from restructuring GROUP BY/ORDER BY")
		}
	}

	if len(hints) == 0 {
		hints = append(hints, "Query plan looks efficient - no obvious optimization opportunities detected")
	}

	return hints
}

func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// Close releases the database connection.
func (e *QueryExecutor) Close() error {
	if e.db != nil {
		return e.db.Close()
	}
	return nil
}

// Ensure QueryExecutor implements datasource.QueryExecutor at compile time.
var _ datasource.QueryExecutor = (*QueryExecutor)(nil)
