package orchestrator

import (
	"fmt"
	"strings"

	"github.com/mratomo/graphrag-engine/pkg/models"
)

// AnalyzeSchema produces a SchemaQuerySuggestion for every foreign key
// relationship in schema, joining the referencing table to the referenced
// one. This is a pure function over already-discovered columns, grounded on
// the same "[schema.]table.column" References parsing discover.go and
// pkg/services/graph use for their own FK handling.
func AnalyzeSchema(schema *models.Schema) []models.SchemaQuerySuggestion {
	suggestions := make([]models.SchemaQuerySuggestion, 0)
	for _, table := range schema.Tables {
		for _, col := range table.Columns {
			if !col.IsForeignKey || col.References == "" {
				continue
			}
			targetTable, targetColumn, ok := parseReference(col.References)
			if !ok {
				continue
			}
			suggestions = append(suggestions, models.SchemaQuerySuggestion{
				Description: fmt.Sprintf("Join %s to %s on %s.%s = %s.%s",
					table.Name, targetTable, table.Name, col.Name, targetTable, targetColumn),
				SQL: fmt.Sprintf(
					"SELECT * FROM %s JOIN %s ON %s.%s = %s.%s",
					table.Name, targetTable, table.Name, col.Name, targetTable, targetColumn,
				),
				FromTable: table.Name,
				ToTable:   targetTable,
			})
		}
	}
	return suggestions
}

// parseReference parses a Column.References string of form
// "[schema.]table.column", returning just the table and column (the schema
// qualifier, when present, is dropped since the suggested SQL joins by bare
// table name, matching the teacher's unqualified query style).
func parseReference(ref string) (table, column string, ok bool) {
	parts := strings.Split(ref, ".")
	switch len(parts) {
	case 2:
		return parts[0], parts[1], true
	case 3:
		return parts[1], parts[2], true
	default:
		return "", "", false
	}
}
