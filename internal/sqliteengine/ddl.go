package sqliteengine

import (
	"fmt"
	"strings"

	"supersave/entity"
	"supersave/internal/schema"
)

// QuoteIdentifier quotes name the SQLite way: double quotes, doubled to
// escape an embedded quote.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func columnType(kind entity.FieldKind) string {
	switch kind {
	case entity.FieldKindNumber, entity.FieldKindBoolean:
		return "INTEGER"
	default:
		return "TEXT"
	}
}

// generatedExpression returns the SQLite expression reading col.Field
// out of the contents JSON column.
func generatedExpression(col schema.GeneratedColumn) string {
	path := fmt.Sprintf("'$.%s'", col.Field)
	switch {
	case col.Relation != nil && col.Relation.Multiple:
		extract := fmt.Sprintf("json_extract(contents, %s)", path)
		return fmt.Sprintf(
			"REPLACE(REPLACE(REPLACE(REPLACE(%s, '[', ''), ']', ''), '\"', ''), ' ', '')",
			extract,
		)
	case col.Relation != nil:
		return fmt.Sprintf("json_extract(contents, %s)", path)
	case col.Kind == entity.FieldKindBoolean:
		return fmt.Sprintf("CAST(json_extract(contents, %s) AS INTEGER)", path)
	case col.Kind == entity.FieldKindNumber:
		return fmt.Sprintf("CAST(json_extract(contents, %s) AS INTEGER)", path)
	default:
		return fmt.Sprintf("json_extract(contents, %s)", path)
	}
}

// columnDefinition renders the full "name TYPE GENERATED ALWAYS AS (...)
// STORED" fragment for a CREATE TABLE statement.
func columnDefinition(col schema.GeneratedColumn) string {
	return fmt.Sprintf(
		"%s %s GENERATED ALWAYS AS (%s) STORED",
		QuoteIdentifier(col.Field), columnType(col.Kind), generatedExpression(col),
	)
}

// indexName follows the default convention: idx_<fieldname>.
func indexName(field string) string {
	return "idx_" + field
}

// createTableSQL renders the full target CREATE TABLE statement
// (including generated columns) for name.
func createTableSQL(name string, columns []schema.GeneratedColumn) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n", QuoteIdentifier(name))
	b.WriteString("  \"id\" TEXT PRIMARY KEY,\n")
	b.WriteString("  \"contents\" JSON NOT NULL")
	for _, col := range columns {
		b.WriteString(",\n  ")
		b.WriteString(columnDefinition(col))
	}
	b.WriteString("\n)")
	return b.String()
}

func createIndexStatements(table string, columns []schema.GeneratedColumn) []string {
	out := make([]string, 0, len(columns))
	for _, col := range columns {
		out = append(out, fmt.Sprintf(
			"CREATE INDEX %s ON %s(%s)",
			QuoteIdentifier(indexName(col.Field)), QuoteIdentifier(table), QuoteIdentifier(col.Field),
		))
	}
	return out
}
