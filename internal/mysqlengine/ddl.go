package mysqlengine

import (
	"fmt"
	"strings"

	"supersave/entity"
	"supersave/internal/schema"
)

// QuoteIdentifier quotes name the MySQL way: backticks, doubled to
// escape an embedded backtick.
func QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func columnType(kind entity.FieldKind) string {
	switch kind {
	case entity.FieldKindNumber:
		return "INT(11)"
	case entity.FieldKindBoolean:
		return "TINYINT(4)"
	default:
		return "VARCHAR(255)"
	}
}

// generatedExpression returns the MySQL expression reading col.Field out
// of the contents JSON column. MySQL's JSON_EXTRACT keeps a scalar
// string quoted ("\"foo\""), so string-producing paths go through
// JSON_UNQUOTE; multi-valued relations strip the array brackets and
// quoting the same way the SQLite engine does, with MySQL's REPLACE.
func generatedExpression(col schema.GeneratedColumn) string {
	path := fmt.Sprintf("'$.%s'", col.Field)
	extract := fmt.Sprintf("JSON_EXTRACT(`contents`, %s)", path)
	switch {
	case col.Relation != nil && col.Relation.Multiple:
		unquoted := fmt.Sprintf("JSON_UNQUOTE(%s)", extract)
		return fmt.Sprintf(
			"REPLACE(REPLACE(REPLACE(REPLACE(%s, '[', ''), ']', ''), '\"', ''), ' ', '')",
			unquoted,
		)
	case col.Relation != nil:
		return fmt.Sprintf("JSON_UNQUOTE(%s)", extract)
	case col.Kind == entity.FieldKindBoolean:
		return fmt.Sprintf("CASE WHEN JSON_UNQUOTE(%s) IN ('true', '1') THEN 1 ELSE 0 END", extract)
	case col.Kind == entity.FieldKindNumber:
		return fmt.Sprintf("CAST(JSON_UNQUOTE(%s) AS SIGNED)", extract)
	default:
		return fmt.Sprintf(
			"IF(JSON_TYPE(%s) = 'NULL', NULL, JSON_UNQUOTE(%s))",
			extract, extract,
		)
	}
}

// columnDefinition renders "name TYPE GENERATED ALWAYS AS (...) STORED"
// for a CREATE TABLE statement. MySQL requires the STORED keyword to
// index a generated column, same as SQLite.
func columnDefinition(col schema.GeneratedColumn) string {
	return fmt.Sprintf(
		"%s %s GENERATED ALWAYS AS (%s) STORED",
		QuoteIdentifier(col.Field), columnType(col.Kind), generatedExpression(col),
	)
}

func indexName(field string) string {
	return "idx_" + field
}

// createTableSQL renders the full target CREATE TABLE statement
// (including generated columns) for name.
func createTableSQL(name string, columns []schema.GeneratedColumn) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n", QuoteIdentifier(name))
	b.WriteString("  `id` VARCHAR(32) PRIMARY KEY,\n")
	b.WriteString("  `contents` JSON NOT NULL")
	for _, col := range columns {
		b.WriteString(",\n  ")
		b.WriteString(columnDefinition(col))
	}
	b.WriteString("\n) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4")
	return b.String()
}

// createIndexStatements renders one CREATE INDEX per column. A
// string-kind column is indexed with a (191) key-length prefix: MySQL's
// default InnoDB index key limit (767 bytes for a single-column key
// under utf8mb4's 4 bytes/char) can't cover a full VARCHAR(255) column,
// so the index only covers its first 191 characters.
func createIndexStatements(table string, columns []schema.GeneratedColumn) []string {
	out := make([]string, 0, len(columns))
	for _, col := range columns {
		target := QuoteIdentifier(col.Field)
		if col.Kind == entity.FieldKindString {
			target = fmt.Sprintf("%s(191)", target)
		}
		out = append(out, fmt.Sprintf(
			"CREATE INDEX %s ON %s(%s)",
			QuoteIdentifier(indexName(col.Field)), QuoteIdentifier(table), target,
		))
	}
	return out
}
