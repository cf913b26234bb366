// Package migrate runs one-shot user migrations and records which have
// already applied in a bookkeeping table.
package migrate

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"supersave/entity"
)

const bookkeepingTable = "_supersave_migrations"

// Migration is a named, idempotent-by-bookkeeping one-shot operation.
// Engine, when non-empty, restricts it to one active backend ("sqlite"
// or "mysql"); a Runner on the other engine skips it silently.
type Migration struct {
	Name   string
	Run    func(ctx context.Context) error
	Engine string
}

// Runner applies configured migrations in declared order, skipping ones
// already recorded or scoped to a different engine.
type Runner struct {
	db         *sql.DB
	engine     string
	migrations []Migration
	log        *zap.SugaredLogger
}

// NewRunner validates migrations (rejecting duplicate names) and
// returns a Runner bound to db. log may be nil.
func NewRunner(db *sql.DB, engineName string, migrations []Migration, log *zap.SugaredLogger) (*Runner, error) {
	seen := make(map[string]struct{}, len(migrations))
	for _, m := range migrations {
		if _, dup := seen[m.Name]; dup {
			return nil, entity.NewConfigError("duplicate migration name %q", m.Name)
		}
		seen[m.Name] = struct{}{}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Runner{db: db, engine: engineName, migrations: migrations, log: log}, nil
}

// Run applies every migration not yet recorded in the bookkeeping table
// and not scoped away from the active engine. A failing migration
// aborts the run without being recorded, so a later Run retries it.
func (r *Runner) Run(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (name VARCHAR(191) PRIMARY KEY)", bookkeepingTable,
	)); err != nil {
		return fmt.Errorf("creating migration bookkeeping table: %w", err)
	}

	for _, m := range r.migrations {
		if m.Engine != "" && m.Engine != r.engine {
			continue
		}

		var count int
		row := r.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE name = ?", bookkeepingTable), m.Name)
		if err := row.Scan(&count); err != nil {
			return fmt.Errorf("checking migration %q: %w", m.Name, err)
		}
		if count > 0 {
			continue
		}

		if err := m.Run(ctx); err != nil {
			return fmt.Errorf("migration %q: %w", m.Name, err)
		}

		if _, err := r.db.ExecContext(ctx, fmt.Sprintf("INSERT INTO %s (name) VALUES (?)", bookkeepingTable), m.Name); err != nil {
			return fmt.Errorf("recording migration %q: %w", m.Name, err)
		}
		r.log.Infow("migration applied", "name", m.Name)
	}
	return nil
}
