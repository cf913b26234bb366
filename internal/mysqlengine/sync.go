package mysqlengine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"supersave/entity"
	"supersave/internal/schema"
)

// Synchronizer reconciles a MySQL table's physical shape with an entity
// definition, introspecting through INFORMATION_SCHEMA rather than
// SQLite's PRAGMA statements.
type Synchronizer struct {
	db     *sql.DB
	schema string
	log    *zap.SugaredLogger
}

// NewSynchronizer builds a Synchronizer bound to db. schemaName is the
// INFORMATION_SCHEMA.TABLE_SCHEMA to introspect against (the database
// named in the connection DSN). log may be nil.
func NewSynchronizer(db *sql.DB, schemaName string, log *zap.SugaredLogger) *Synchronizer {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Synchronizer{db: db, schema: schemaName, log: log}
}

type physicalColumn struct {
	name           string
	dataType       string
	columnType     string
	generationExpr sql.NullString
}

func (s *Synchronizer) columns(ctx context.Context, table string) ([]physicalColumn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT COLUMN_NAME, DATA_TYPE, COLUMN_TYPE, GENERATION_EXPRESSION
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION`, s.schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []physicalColumn
	for rows.Next() {
		var c physicalColumn
		if err := rows.Scan(&c.name, &c.dataType, &c.columnType, &c.generationExpr); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// contentsIsJSONValid reports whether table has a CHECK_CONSTRAINTS
// entry enforcing JSON_VALID(contents), the shape MariaDB gives a
// native JSON column (physically LONGTEXT with a JSON_VALID check,
// since MariaDB has no true JSON storage type). If the query itself
// fails (e.g. the server predates CHECK_CONSTRAINTS), the column is
// treated as not JSON.
func (s *Synchronizer) contentsIsJSONValid(ctx context.Context, table string) bool {
	var count int
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM INFORMATION_SCHEMA.CHECK_CONSTRAINTS cc
		JOIN INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
			ON tc.CONSTRAINT_SCHEMA = cc.CONSTRAINT_SCHEMA AND tc.CONSTRAINT_NAME = cc.CONSTRAINT_NAME
		WHERE tc.TABLE_SCHEMA = ? AND tc.TABLE_NAME = ?
			AND cc.CHECK_CLAUSE LIKE '%JSON_VALID(%contents%)%'`, s.schema, table)
	if err := row.Scan(&count); err != nil {
		return false
	}
	return count > 0
}

func (s *Synchronizer) indexNames(ctx context.Context, table string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT INDEX_NAME
		FROM INFORMATION_SCHEMA.STATISTICS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ? AND INDEX_NAME != 'PRIMARY'`, s.schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// Sync reconciles table with def. The base (id, contents) table must
// already exist; the entity manager is responsible for that.
func (s *Synchronizer) Sync(ctx context.Context, def entity.Definition, table string) error {
	columns, err := schema.TargetColumns(def)
	if err != nil {
		return err
	}

	current, err := s.columns(ctx, table)
	if err != nil {
		return fmt.Errorf("introspecting %s: %w", table, err)
	}

	contentsIsJSON := false
	for _, c := range current {
		if !strings.EqualFold(c.name, "contents") {
			continue
		}
		switch {
		case strings.Contains(strings.ToLower(c.columnType), "json"):
			contentsIsJSON = true
		case strings.EqualFold(c.dataType, "longtext"):
			contentsIsJSON = s.contentsIsJSONValid(ctx, table)
		}
	}

	if !contentsIsJSON {
		s.log.Infow("legacy contents column detected, migrating to JSON", "table", table)
		return s.recreate(ctx, table, columns)
	}

	return s.reconcileColumns(ctx, table, current, columns)
}

func (s *Synchronizer) reconcileColumns(ctx context.Context, table string, current []physicalColumn, expected []schema.GeneratedColumn) error {
	currentByName := make(map[string]physicalColumn, len(current))
	for _, c := range current {
		if c.name == "id" || c.name == "contents" {
			continue
		}
		currentByName[c.name] = c
	}

	needsRecreate := false
	for _, col := range expected {
		phys, ok := currentByName[col.Field]
		if !ok {
			needsRecreate = true
			break
		}
		if !strings.EqualFold(phys.columnType, columnType(col.Kind)) {
			needsRecreate = true
			break
		}
		if !phys.generationExpr.Valid || phys.generationExpr.String == "" {
			// A filterSortField column exists but is not generated: a
			// legacy plain column left over from before it was declared.
			needsRecreate = true
			break
		}
	}
	if !needsRecreate {
		expectedSet := make(map[string]struct{}, len(expected))
		for _, col := range expected {
			expectedSet[col.Field] = struct{}{}
		}
		for name := range currentByName {
			if _, ok := expectedSet[name]; !ok {
				needsRecreate = true
				break
			}
		}
	}

	if needsRecreate {
		s.log.Infow("generated column set changed, recreating table", "table", table)
		return s.recreate(ctx, table, expected)
	}

	return s.reconcileIndexes(ctx, table, expected)
}

func (s *Synchronizer) reconcileIndexes(ctx context.Context, table string, expected []schema.GeneratedColumn) error {
	existingIdx, err := s.indexNames(ctx, table)
	if err != nil {
		return err
	}
	existingSet := make(map[string]struct{}, len(existingIdx))
	for _, n := range existingIdx {
		existingSet[n] = struct{}{}
	}

	expectedIdx := make(map[string]struct{}, len(expected))
	for _, col := range expected {
		name := indexName(col.Field)
		expectedIdx[name] = struct{}{}
		if _, ok := existingSet[name]; ok {
			continue
		}
		target := QuoteIdentifier(col.Field)
		if col.Kind == entity.FieldKindString {
			target = fmt.Sprintf("%s(191)", target)
		}
		stmt := fmt.Sprintf("CREATE INDEX %s ON %s(%s)", QuoteIdentifier(name), QuoteIdentifier(table), target)
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating index %s: %w", name, err)
		}
	}

	for name := range existingSet {
		if !strings.HasPrefix(name, "idx_") {
			continue
		}
		if _, ok := expectedIdx[name]; ok {
			continue
		}
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DROP INDEX %s ON %s", QuoteIdentifier(name), QuoteIdentifier(table))); err != nil {
			return fmt.Errorf("dropping index %s: %w", name, err)
		}
	}
	return nil
}

// recreate performs a shadow/copy/rename migration: build the target
// shape into "<table>_2", re-insert every row (validating JSON and
// recomputing generated columns), then swap it in. MySQL DDL is not
// transactional, so each statement commits on its own; a failure
// partway through leaves the shadow table behind for inspection rather
// than silently rolling back.
func (s *Synchronizer) recreate(ctx context.Context, table string, columns []schema.GeneratedColumn) error {
	shadow := table + "_2"

	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", QuoteIdentifier(shadow))); err != nil {
		return fmt.Errorf("dropping stale shadow table: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, createTableSQL(shadow, columns)); err != nil {
		return entity.NewSchemaError(table, "creating shadow table: %v", err)
	}

	for _, stmt := range createIndexStatements(shadow, columns) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return entity.NewSchemaError(table, "creating index on shadow table: %v", err)
		}
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT `id`, `contents` FROM %s", QuoteIdentifier(table)))
	if err != nil {
		return fmt.Errorf("reading source rows from %s: %w", table, err)
	}

	insert := fmt.Sprintf("INSERT INTO %s (`id`, `contents`) VALUES (?, ?)", QuoteIdentifier(shadow))
	var id, contents string
	for rows.Next() {
		if err := rows.Scan(&id, &contents); err != nil {
			rows.Close()
			return fmt.Errorf("scanning source row from %s: %w", table, err)
		}
		if _, err := s.db.ExecContext(ctx, insert, id, contents); err != nil {
			rows.Close()
			// Fail loud: a row whose contents cannot be re-inserted as
			// JSON aborts the whole migration, leaving the shadow table
			// for inspection.
			return entity.NewSchemaError(table, "re-inserting row %s: %v", id, err)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE %s", QuoteIdentifier(table))); err != nil {
		return fmt.Errorf("dropping source table %s: %w", table, err)
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("RENAME TABLE %s TO %s", QuoteIdentifier(shadow), QuoteIdentifier(table))); err != nil {
		return fmt.Errorf("renaming shadow table into %s: %w", table, err)
	}

	return nil
}
