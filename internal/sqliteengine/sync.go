package sqliteengine

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"supersave/entity"
	"supersave/internal/schema"
)

// Synchronizer reconciles a SQLite table's physical shape with an entity
// definition: legacy TEXT->JSON migration, then incremental generated
// column and index maintenance.
type Synchronizer struct {
	db  *sql.DB
	log *zap.SugaredLogger
}

// NewSynchronizer builds a Synchronizer bound to db. log may be nil.
func NewSynchronizer(db *sql.DB, log *zap.SugaredLogger) *Synchronizer {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Synchronizer{db: db, log: log}
}

type physicalColumn struct {
	name    string
	colType string
}

func (s *Synchronizer) tableInfo(ctx context.Context, table string) ([]physicalColumn, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", QuoteIdentifier(table)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []physicalColumn
	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		out = append(out, physicalColumn{name: name, colType: colType})
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

	current, err := s.tableInfo(ctx, table)
	if err != nil {
		return fmt.Errorf("introspecting %s: %w", table, err)
	}

	contentsIsJSON := false
	for _, c := range current {
		if strings.EqualFold(c.name, "contents") {
			contentsIsJSON = strings.EqualFold(strings.TrimSpace(c.colType), "JSON")
		}
	}

	if !contentsIsJSON {
		s.log.Infow("legacy contents column detected, migrating to JSON", "table", table)
		if err := s.recreate(ctx, table, columns); err != nil {
			return err
		}
		return nil
	}

	return s.reconcileColumns(ctx, table, current, columns)
}

var generatedColumnRE = func(field string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)"?` + regexp.QuoteMeta(field) + `"?\s+[^,)]+GENERATED\s+ALWAYS\s+AS`)
}

func (s *Synchronizer) tableSQL(ctx context.Context, table string) (string, error) {
	var createSQL sql.NullString
	row := s.db.QueryRowContext(ctx, "SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?", table)
	if err := row.Scan(&createSQL); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	return createSQL.String, nil
}

func (s *Synchronizer) indexNames(ctx context.Context, table string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'index' AND tbl_name = ?", table)
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

func (s *Synchronizer) reconcileColumns(ctx context.Context, table string, current []physicalColumn, expected []schema.GeneratedColumn) error {
	createSQL, err := s.tableSQL(ctx, table)
	if err != nil {
		return fmt.Errorf("reading table definition for %s: %w", table, err)
	}

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
		if !strings.EqualFold(phys.colType, columnType(col.Kind)) {
			needsRecreate = true
			break
		}
		if !generatedColumnRE(col.Field).MatchString(createSQL) {
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
		stmt := fmt.Sprintf("CREATE INDEX %s ON %s(%s)", QuoteIdentifier(name), QuoteIdentifier(table), QuoteIdentifier(col.Field))
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
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DROP INDEX %s", QuoteIdentifier(name))); err != nil {
			return fmt.Errorf("dropping index %s: %w", name, err)
		}
	}
	return nil
}

// recreate performs a shadow/copy/rename migration: build the target
// shape into "<table>_2", re-insert every row (validating JSON and
// recomputing generated columns), then swap it in. Wrapped in a
// transaction since SQLite supports transactional DDL.
func (s *Synchronizer) recreate(ctx context.Context, table string, columns []schema.GeneratedColumn) error {
	shadow := table + "_2"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", QuoteIdentifier(shadow))); err != nil {
		return fmt.Errorf("dropping stale shadow table: %w", err)
	}

	if _, err := tx.ExecContext(ctx, createTableSQL(shadow, columns)); err != nil {
		return entity.NewSchemaError(table, "creating shadow table: %v", err)
	}

	for _, stmt := range createIndexStatements(shadow, columns) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return entity.NewSchemaError(table, "creating index on shadow table: %v", err)
		}
	}

	rows, err := tx.QueryContext(ctx, fmt.Sprintf("SELECT %s, %s FROM %s", QuoteIdentifier("id"), QuoteIdentifier("contents"), QuoteIdentifier(table)))
	if err != nil {
		return fmt.Errorf("reading source rows from %s: %w", table, err)
	}

	insert := fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (?, ?)", QuoteIdentifier(shadow), QuoteIdentifier("id"), QuoteIdentifier("contents"))
	var id, contents string
	for rows.Next() {
		if err := rows.Scan(&id, &contents); err != nil {
			rows.Close()
			return fmt.Errorf("scanning source row from %s: %w", table, err)
		}
		if _, err := tx.ExecContext(ctx, insert, id, contents); err != nil {
			rows.Close()
			// Fail loud: a row whose contents cannot be re-inserted as
			// JSON aborts the whole migration.
			return entity.NewSchemaError(table, "re-inserting row %s: %v", id, err)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE %s", QuoteIdentifier(table))); err != nil {
		return fmt.Errorf("dropping source table %s: %w", table, err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s RENAME TO %s", QuoteIdentifier(shadow), QuoteIdentifier(table))); err != nil {
		return fmt.Errorf("renaming shadow table into %s: %w", table, err)
	}

	return tx.Commit()
}
