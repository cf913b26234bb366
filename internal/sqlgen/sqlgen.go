// Package sqlgen translates a backend-neutral query.Query into the SQL
// WHERE/ORDER BY/LIMIT fragments shared by the SQLite and MySQL engine
// repositories. Identifier quoting, NOCASE collation and the "no limit"
// LIMIT literal are the points where the two engines diverge, so all
// three are injected.
package sqlgen

import (
	"fmt"
	"strings"

	"supersave/entity"
	"supersave/query"
)

// QuoteFunc quotes a single identifier per the calling engine's rules.
type QuoteFunc func(string) string

// FieldKindLookup reports the declared FieldKind of field, if any, so
// boolean values can be coerced to 0/1 at bind time.
type FieldKindLookup func(field string) (entity.FieldKind, bool)

// BuildWhere walks the condition tree and returns a SQL fragment (with
// "?" placeholders) plus its bound arguments in order. The top-level list
// is joined with implicit AND.
func BuildWhere(conditions []query.Condition, quote QuoteFunc, kindOf FieldKindLookup) (string, []any, error) {
	var args []any
	parts := make([]string, 0, len(conditions))
	for _, c := range conditions {
		part, err := buildCondition(c, quote, kindOf, &args)
		if err != nil {
			return "", nil, err
		}
		if part == "" {
			continue
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, " AND "), args, nil
}

func buildCondition(c query.Condition, quote QuoteFunc, kindOf FieldKindLookup, args *[]any) (string, error) {
	switch v := c.(type) {
	case query.Filter:
		return buildFilter(v, quote, kindOf, args)
	case query.Group:
		return buildGroup(v, quote, kindOf, args)
	case *query.Group:
		return buildGroup(*v, quote, kindOf, args)
	default:
		return "", fmt.Errorf("sqlgen: unsupported condition type %T", c)
	}
}

func buildGroup(g query.Group, quote QuoteFunc, kindOf FieldKindLookup, args *[]any) (string, error) {
	parts := make([]string, 0, len(g.Conditions))
	for _, child := range g.Conditions {
		part, err := buildCondition(child, quote, kindOf, args)
		if err != nil {
			return "", err
		}
		if part != "" {
			parts = append(parts, part)
		}
	}
	// A group with zero clauses contributes nothing to the SQL.
	if len(parts) == 0 {
		return "", nil
	}
	switch g.Operator {
	case query.LogicNot:
		return "NOT (" + parts[0] + ")", nil
	case query.LogicOr:
		return "(" + strings.Join(parts, " OR ") + ")", nil
	default: // query.LogicAnd
		return "(" + strings.Join(parts, " AND ") + ")", nil
	}
}

func buildFilter(f query.Filter, quote QuoteFunc, kindOf FieldKindLookup, args *[]any) (string, error) {
	col := quote(f.Field)

	if f.Operator == query.OpIn {
		values, _ := f.Value.([]any)
		if len(values) == 0 {
			// IN with an empty list matches nothing; never emit a
			// syntactically invalid IN ().
			return "1 = 0", nil
		}
		placeholders := make([]string, len(values))
		for i, v := range values {
			placeholders[i] = "?"
			*args = append(*args, bindValue(f.Field, v, kindOf))
		}
		return fmt.Sprintf("%s IN (%s)", col, strings.Join(placeholders, ", ")), nil
	}

	if f.Operator == query.OpEquals && f.Value == nil {
		return col + " IS NULL", nil
	}

	if f.Operator == query.OpLike {
		pattern, _ := f.Value.(string)
		*args = append(*args, query.LikePattern(pattern))
		return col + " LIKE ?", nil
	}

	*args = append(*args, bindValue(f.Field, f.Value, kindOf))
	return fmt.Sprintf("%s %s ?", col, f.Operator), nil
}

func bindValue(field string, v any, kindOf FieldKindLookup) any {
	if kindOf != nil {
		if kind, ok := kindOf(field); ok && kind == entity.FieldKindBoolean {
			return query.BoolToBind(v)
		}
	}
	return v
}

// BuildOrderBy renders the ORDER BY clause (without the "ORDER BY"
// keyword itself so callers can skip it entirely when sorts is empty).
// collateNoCase adds SQLite's `COLLATE NOCASE`; MySQL uses its default
// collation and passes false.
func BuildOrderBy(sorts []query.Sort, quote QuoteFunc, collateNoCase bool) string {
	if len(sorts) == 0 {
		return ""
	}
	parts := make([]string, 0, len(sorts))
	for _, s := range sorts {
		dir := "ASC"
		if s.Direction == query.Descending {
			dir = "DESC"
		}
		collate := ""
		if collateNoCase {
			collate = " COLLATE NOCASE"
		}
		parts = append(parts, fmt.Sprintf("%s%s %s", quote(s.Field), collate, dir))
	}
	return strings.Join(parts, ", ")
}

// BuildLimitOffset renders "LIMIT n" or "LIMIT n OFFSET m", honouring
// query.Unbounded (no LIMIT emitted) and a zero Limit (also no LIMIT:
// a query with no limit returns every matching row).
// unboundedLimitLiteral is used only when an Offset is requested without
// a Limit, since some engines require a LIMIT clause to accept OFFSET at
// all; pass the engine's own "no real limit" literal (SQLite: "-1",
// MySQL: a large unsigned literal).
func BuildLimitOffset(limit, offset int, unboundedLimitLiteral string) string {
	if limit <= 0 {
		if offset > 0 {
			return fmt.Sprintf("LIMIT %s OFFSET %d", unboundedLimitLiteral, offset)
		}
		return ""
	}
	if offset > 0 {
		return fmt.Sprintf("LIMIT %d OFFSET %d", limit, offset)
	}
	return fmt.Sprintf("LIMIT %d", limit)
}
