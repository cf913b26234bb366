// Package supersave is an entity store sitting in front of SQLite or
// MySQL: declare an entity.Definition, get back a repository with
// query, relation, and schema-migration support built in.
package supersave

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"supersave/collection"
	"supersave/entity"
	"supersave/internal/engine"
	"supersave/internal/manager"
	"supersave/internal/migrate"
)

// Migration is a named one-shot operation run by the migration runner on
// construction (unless SkipMigrations is set).
type Migration = migrate.Migration

// StoreOptions configures a SuperSave instance at construction time.
type StoreOptions struct {
	// SkipSync suppresses the schema synchronizer on every AddEntity.
	SkipSync bool
	// SkipMigrations short-circuits the user-migration runner entirely.
	SkipMigrations bool
	// Migrations are run in declared order on New, each at most once.
	Migrations []Migration
	// Logger receives structured logs for sync, migration, and legacy
	// upgrade events. A no-op logger is used when nil.
	Logger *zap.SugaredLogger
	// Prefix is the HTTP path prefix handed to the attached router on
	// first acquisition. Re-acquiring with a different prefix is a
	// configuration error.
	Prefix string
}

// Option mutates StoreOptions during construction.
type Option func(*StoreOptions)

// WithSkipSync suppresses the schema synchronizer.
func WithSkipSync() Option { return func(o *StoreOptions) { o.SkipSync = true } }

// WithSkipMigrations suppresses the migration runner.
func WithSkipMigrations() Option { return func(o *StoreOptions) { o.SkipMigrations = true } }

// WithMigrations appends user migrations to run on construction.
func WithMigrations(migrations ...Migration) Option {
	return func(o *StoreOptions) { o.Migrations = append(o.Migrations, migrations...) }
}

// WithLogger sets the structured logger used for sync/migration events.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(o *StoreOptions) { o.Logger = log }
}

// WithPrefix sets the HTTP path prefix handed to the attached router.
func WithPrefix(prefix string) Option {
	return func(o *StoreOptions) { o.Prefix = prefix }
}

// SuperSave is the top-level handle: one connection, a registry of
// entity repositories, and an attached collection registry for an
// external HTTP router.
type SuperSave struct {
	mgr      *manager.Manager
	opts     StoreOptions
	registry collection.Registry

	prefixSet bool
}

// New opens dsn ("sqlite://" or "mysql://") and applies opts. Unless
// SkipMigrations is set, the migration runner executes immediately
// against the opened connection.
func New(dsn string, opts ...Option) (*SuperSave, error) {
	var o StoreOptions
	for _, opt := range opts {
		opt(&o)
	}

	mgr, err := manager.Open(dsn, o.Logger)
	if err != nil {
		return nil, err
	}

	s := &SuperSave{mgr: mgr, opts: o, prefixSet: o.Prefix != ""}

	if !o.SkipMigrations {
		runner, err := migrate.NewRunner(mgr.GetConnection(), string(mgr.Engine()), o.Migrations, o.Logger)
		if err != nil {
			mgr.Close()
			return nil, err
		}
		if err := runner.Run(context.Background()); err != nil {
			mgr.Close()
			return nil, err
		}
	}

	return s, nil
}

// AddEntity registers def, creating/synchronising its table unless
// StoreOptions.SkipSync is set, and returns its repository. Re-adding an
// already-registered entity returns the cached repository.
func (s *SuperSave) AddEntity(ctx context.Context, def entity.Definition) (engine.Repository, error) {
	return s.mgr.AddEntity(ctx, def, s.opts.SkipSync)
}

// AddCollection registers col's underlying entity definition and makes
// col available to any attached external HTTP router via Collections.
func (s *SuperSave) AddCollection(ctx context.Context, col *collection.Collection) (engine.Repository, error) {
	repo, err := s.AddEntity(ctx, col.Definition)
	if err != nil {
		return nil, err
	}
	s.registry.Register(col)
	return repo, nil
}

// Collections returns the route descriptors for every registered
// collection, for an external HTTP router to mount.
func (s *SuperSave) Collections() []collection.RouteDescriptor {
	return s.registry.Routes()
}

// AcquirePrefix records prefix as the HTTP path prefix on first call; a
// later call with a different prefix is a configuration error. A prefix
// set through WithPrefix counts as that first call.
func (s *SuperSave) AcquirePrefix(prefix string) error {
	if !s.prefixSet {
		s.opts.Prefix = prefix
		s.prefixSet = true
		return nil
	}
	if s.opts.Prefix != prefix {
		return entity.NewConfigError("prefix already initialised as %q, cannot reinitialise as %q", s.opts.Prefix, prefix)
	}
	return nil
}

// GetRepository looks up the repository registered for (name, ns).
func (s *SuperSave) GetRepository(name, namespace string) (engine.Repository, error) {
	return s.mgr.GetRepository(name, namespace)
}

// Connection exposes the raw *sql.DB handle, for callers (and tests)
// that need it directly.
func (s *SuperSave) Connection() *sql.DB { return s.mgr.GetConnection() }

// Close releases the underlying connection.
func (s *SuperSave) Close() error {
	if err := s.mgr.Close(); err != nil {
		return fmt.Errorf("closing connection: %w", err)
	}
	return nil
}
