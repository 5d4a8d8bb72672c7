package mysql

import (
	"fmt"
	"strings"
)

// quoteName backtick-quotes a MySQL identifier, doubling any embedded backtick.
func quoteName(identifier string) string {
	escaped := strings.ReplaceAll(identifier, "`", "``")
	return fmt.Sprintf("`%s`", escaped)
}

// buildFullyQualifiedName builds a database-qualified table reference: `db`.`table`.
func buildFullyQualifiedName(database, table string) string {
	return fmt.Sprintf("%s.%s", quoteName(database), quoteName(table))
}

// mapMySQLType maps MySQL/information_schema type names to standard type names,
// matching the vocabulary the other drivers normalize to.
func mapMySQLType(mysqlType string) string {
	t := strings.ToUpper(mysqlType)
	// information_schema.COLUMNS reports types like "int(11) unsigned" or
	// "varchar(255)"; strip any parenthesized width/precision and modifiers.
	if idx := strings.Index(t, "("); idx >= 0 {
		t = t[:idx]
	}
	t = strings.TrimSpace(strings.Replace(t, "UNSIGNED", "", 1))
	t = strings.TrimSpace(t)

	switch t {
	case "TINYINT":
		return "TINYINT"
	case "SMALLINT":
		return "SMALLINT"
	case "MEDIUMINT", "INT", "INTEGER":
		return "INTEGER"
	case "BIGINT":
		return "BIGINT"
	case "DECIMAL", "NUMERIC":
		return "NUMERIC"
	case "FLOAT":
		return "REAL"
	case "DOUBLE":
		return "DOUBLE PRECISION"
	case "CHAR":
		return "CHAR"
	case "VARCHAR":
		return "VARCHAR"
	case "TINYTEXT", "TEXT", "MEDIUMTEXT", "LONGTEXT":
		return "TEXT"
	case "BINARY", "VARBINARY":
		return "BYTEA"
	case "TINYBLOB", "BLOB", "MEDIUMBLOB", "LONGBLOB":
		return "BLOB"
	case "DATE":
		return "DATE"
	case "TIME":
		return "TIME"
	case "DATETIME", "TIMESTAMP":
		return "TIMESTAMP"
	case "YEAR":
		return "INTEGER"
	case "BIT", "BOOL", "BOOLEAN":
		return "BOOLEAN"
	case "JSON":
		return "JSON"
	case "ENUM", "SET":
		return "VARCHAR"
	default:
		return t
	}
}

// isTextCompatibleType returns true when LENGTH() is meaningful for the type,
// i.e. it's safe to include min/max length in column stats.
func isTextCompatibleType(mysqlType string) bool {
	switch mapMySQLType(mysqlType) {
	case "CHAR", "VARCHAR", "TEXT":
		return true
	default:
		return false
	}
}

// isStringType reports whether mysqlType is one of the string-family types
// that the go-sql-driver returns as []byte and that callers should coerce to string.
func isStringType(mysqlType string) bool {
	switch strings.ToUpper(mysqlType) {
	case "CHAR", "VARCHAR", "TEXT", "TINYTEXT", "MEDIUMTEXT", "LONGTEXT",
		"VARSTRING", "STRING", "ENUM", "SET", "JSON", "DECIMAL", "NEWDECIMAL":
		return true
	default:
		return false
	}
}
