package db

import (
	"strings"

	"github.com/jackc/pgx/v5"
)

// QualifiedTable quotes a schema-qualified table name.
func QualifiedTable(schema, table string) string {
	return pgx.Identifier{schema, table}.Sanitize()
}

// QuoteIdent quotes a single identifier.
func QuoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// QuoteAndJoin quotes each column name and joins with sep.
func QuoteAndJoin(cols []string, sep string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = QuoteIdent(c)
	}
	return strings.Join(quoted, sep)
}
