// Package mysqlengine is SuperSave's concrete repository and
// synchronizer for the MySQL backend, driven through
// github.com/go-sql-driver/mysql.
package mysqlengine

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"supersave/entity"
	"supersave/internal/baserepo"
	"supersave/internal/ids"
	"supersave/internal/sqlgen"
	"supersave/query"
)

// Repository is the MySQL-backed implementation of engine.Repository.
type Repository struct {
	db    *sql.DB
	def   entity.Definition
	table string
	baserepo.Helper
}

// NewRepository builds a Repository for def bound to table. lookup
// resolves relation targets by (entity, namespace).
func NewRepository(db *sql.DB, def entity.Definition, table string, lookup baserepo.Lookup) *Repository {
	return &Repository{
		db:     db,
		def:    def,
		table:  table,
		Helper: baserepo.NewHelper(def, lookup),
	}
}

// NewQuery returns a query.Builder pre-configured to reject filter/sort
// fields not declared on this entity.
func (r *Repository) NewQuery() *query.Builder {
	return query.New(func(field string) error {
		if _, ok := r.def.FilterSortFields[field]; !ok {
			return query.ErrUnknownField(field)
		}
		return nil
	})
}

func (r *Repository) fieldKind(field string) (entity.FieldKind, bool) {
	if field == "id" {
		return entity.FieldKindString, true
	}
	kind, ok := r.def.FilterSortFields[field]
	return kind, ok
}

func (r *Repository) hydrateRow(ctx context.Context, id string, contents any) (map[string]any, error) {
	return r.Helper.Hydrate(ctx, id, contents)
}

// GetByID returns the entity with id, or nil if it does not exist.
func (r *Repository) GetByID(ctx context.Context, id string) (map[string]any, error) {
	row := r.db.QueryRowContext(ctx, fmt.Sprintf("SELECT `contents` FROM %s WHERE `id` = ?", QuoteIdentifier(r.table)), id)
	var contents string
	if err := row.Scan(&contents); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return r.hydrateRow(ctx, id, contents)
}

// GetByIDs returns every entity whose id is in ids, in no particular
// order.
func (r *Repository) GetByIDs(ctx context.Context, idList []string) ([]map[string]any, error) {
	if len(idList) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(idList))
	args := make([]any, len(idList))
	for i, id := range idList {
		placeholders[i] = "?"
		args[i] = id
	}
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf("SELECT `id`, `contents` FROM %s WHERE `id` IN (%s)", QuoteIdentifier(r.table), strings.Join(placeholders, ", ")), args...)
	if err != nil {
		return nil, err
	}
	return r.scanRows(ctx, rows)
}

// GetAll returns every row in the table, hydrated.
func (r *Repository) GetAll(ctx context.Context) ([]map[string]any, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf("SELECT `id`, `contents` FROM %s", QuoteIdentifier(r.table)))
	if err != nil {
		return nil, err
	}
	return r.scanRows(ctx, rows)
}

// GetByQuery translates q to SQL and returns the matching hydrated rows.
func (r *Repository) GetByQuery(ctx context.Context, q *query.Query) ([]map[string]any, error) {
	sqlStr, args, err := r.translate(q)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	return r.scanRows(ctx, rows)
}

// mysqlUnboundedLimit stands in for "no limit" when an offset is given
// without one: MySQL rejects a bare OFFSET, and negative LIMIT values
// (SQLite's convention) are invalid here too.
const mysqlUnboundedLimit = "18446744073709551615"

func (r *Repository) translate(q *query.Query) (string, []any, error) {
	where, args, err := sqlgen.BuildWhere(q.Where, QuoteIdentifier, r.fieldKind)
	if err != nil {
		return "", nil, err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT `id`, `contents` FROM %s", QuoteIdentifier(r.table))
	if where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(where)
	}
	if orderBy := sqlgen.BuildOrderBy(q.Sorts, QuoteIdentifier, false); orderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(orderBy)
	}
	if limitOffset := sqlgen.BuildLimitOffset(q.Limit, q.Offset, mysqlUnboundedLimit); limitOffset != "" {
		b.WriteString(" ")
		b.WriteString(limitOffset)
	}
	return b.String(), args, nil
}

func (r *Repository) scanRows(ctx context.Context, rows *sql.Rows) ([]map[string]any, error) {
	defer rows.Close()
	var out []map[string]any
	for rows.Next() {
		var id, contents string
		if err := rows.Scan(&id, &contents); err != nil {
			return nil, err
		}
		hydrated, err := r.hydrateRow(ctx, id, contents)
		if err != nil {
			return nil, err
		}
		out = append(out, hydrated)
	}
	return out, rows.Err()
}

// Create assigns an id when absent, merges the entity's template under
// the (relation-simplified) input, stores it, and returns the
// rehydrated entity.
func (r *Repository) Create(ctx context.Context, input map[string]any) (map[string]any, error) {
	id, _ := input["id"].(string)
	if id == "" {
		id = ids.New()
	}

	simplified := r.Helper.SimplifyRelations(input)
	merged := make(map[string]any, len(r.def.Template)+len(simplified))
	for k, v := range r.def.Template {
		merged[k] = v
	}
	for k, v := range simplified {
		merged[k] = v
	}
	delete(merged, "id")

	contents, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("marshalling contents: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, fmt.Sprintf("INSERT INTO %s (`id`, `contents`) VALUES (?, ?)", QuoteIdentifier(r.table)), id, string(contents)); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// Update fully replaces contents for id. The id key, if present in
// input, is stripped before serialisation: ids are immutable.
func (r *Repository) Update(ctx context.Context, id string, input map[string]any) (map[string]any, error) {
	simplified := r.Helper.SimplifyRelations(input)
	delete(simplified, "id")

	contents, err := json.Marshal(simplified)
	if err != nil {
		return nil, fmt.Errorf("marshalling contents: %w", err)
	}

	res, err := r.db.ExecContext(ctx, fmt.Sprintf("UPDATE %s SET `contents` = ? WHERE `id` = ?", QuoteIdentifier(r.table)), string(contents), id)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return r.GetByID(ctx, id)
}

// DeleteUsingID removes the row with id. Deleting an absent id is a
// no-op, not an error.
func (r *Repository) DeleteUsingID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE `id` = ?", QuoteIdentifier(r.table)), id)
	return err
}
