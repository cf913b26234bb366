// Package schema holds pieces of the synchronizer shared by both
// storage engines: field-name validation and the target-shape
// description used to decide whether a table needs a rebuild.
package schema

import (
	"regexp"
	"sort"

	"supersave/entity"
)

var fieldNameRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateFieldName rejects filterSortField names that could not be
// safely interpolated into a JSON path or column DDL.
func ValidateFieldName(name string) error {
	if !fieldNameRE.MatchString(name) {
		return entity.NewConfigError("invalid filterSortField name %q: must match %s", name, fieldNameRE.String())
	}
	return nil
}

// GeneratedColumn is the target shape of one filterSortField-derived
// column, independent of engine syntax.
type GeneratedColumn struct {
	Field    string
	Kind     entity.FieldKind
	Relation *entity.Relation // non-nil when the field aliases a relation attribute
}

// TargetColumns returns, in a stable order, the generated columns a
// table must have for def, validating every field name up front so a
// bad name fails before any DDL is emitted.
func TargetColumns(def entity.Definition) ([]GeneratedColumn, error) {
	if len(def.FilterSortFields) == 0 {
		return nil, nil
	}
	relByField := make(map[string]entity.Relation, len(def.Relations))
	for _, r := range def.Relations {
		relByField[r.Field] = r
	}

	names := make([]string, 0, len(def.FilterSortFields))
	for name := range def.FilterSortFields {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]GeneratedColumn, 0, len(names))
	for _, name := range names {
		if name == "id" {
			continue
		}
		if err := ValidateFieldName(name); err != nil {
			return nil, err
		}
		col := GeneratedColumn{Field: name, Kind: def.FilterSortFields[name]}
		if rel, ok := relByField[name]; ok {
			col.Relation = &rel
		}
		out = append(out, col)
	}
	return out, nil
}
