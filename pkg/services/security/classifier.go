// Package security implements the Connection Registry's Security component:
// classifying a SQL statement as read/write/administrative and rejecting it
// before execute_query when it falls outside an agent's permitted set.
package security

import "strings"

// StatementClass is one of the three permission buckets a Connection
// Assignment grants.
type StatementClass string

const (
	ClassRead           StatementClass = "read"
	ClassWrite          StatementClass = "write"
	ClassAdministrative StatementClass = "administrative"
)

// readKeywords are statements that only observe data.
var readKeywords = map[string]bool{
	"select": true, "with": true, "show": true, "explain": true,
	"describe": true, "desc": true,
}

// writeKeywords mutate row data without changing schema.
var writeKeywords = map[string]bool{
	"insert": true, "update": true, "delete": true, "merge": true,
	"upsert": true, "replace": true,
}

// administrativeKeywords change schema/privileges or are otherwise
// irreversible/high-impact; anything not recognized as read or write also
// falls here, fail-closed.
var administrativeKeywords = map[string]bool{
	"create": true, "drop": true, "alter": true, "truncate": true,
	"grant": true, "revoke": true, "vacuum": true, "reindex": true,
	"analyze": true, "call": true, "exec": true, "execute": true,
}

// Classify inspects the leading keyword of a normalized single SQL statement
// and returns its StatementClass. Unrecognized leading keywords classify as
// administrative — fail-closed rather than silently permitting an unknown
// statement shape.
func Classify(statement string) StatementClass {
	leading := leadingKeyword(statement)

	if readKeywords[leading] {
		return ClassRead
	}
	if writeKeywords[leading] {
		return ClassWrite
	}
	if administrativeKeywords[leading] {
		return ClassAdministrative
	}
	return ClassAdministrative
}

// leadingKeyword returns the first whitespace-delimited token of statement,
// lowercased, skipping leading whitespace/parentheses used to wrap
// subqueries (e.g. "(SELECT ...)").
func leadingKeyword(statement string) string {
	trimmed := strings.TrimLeft(statement, " \t\n\r(")
	fields := strings.Fields(trimmed)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}
