// Package engine declares the capability interfaces that SQLite and
// MySQL concrete implementations satisfy, so the entity manager can stay
// abstract over which backend it is driving: polymorphism across
// engines via composition, not inheritance.
package engine

import (
	"context"

	"supersave/entity"
	"supersave/query"
)

// Repository is the engine-level CRUD and query-translation surface.
// Relation projection/expansion lives a layer above this, in
// internal/baserepo, which every concrete repository embeds.
type Repository interface {
	GetByID(ctx context.Context, id string) (map[string]any, error)
	GetByIDs(ctx context.Context, ids []string) ([]map[string]any, error)
	GetAll(ctx context.Context) ([]map[string]any, error)
	GetByQuery(ctx context.Context, q *query.Query) ([]map[string]any, error)
	Create(ctx context.Context, contents map[string]any) (map[string]any, error)
	Update(ctx context.Context, id string, contents map[string]any) (map[string]any, error)
	DeleteUsingID(ctx context.Context, id string) error
}

// Synchronizer reconciles a table's physical shape with its entity
// definition: legacy-format detection and upgrade, generated-column and
// index maintenance.
type Synchronizer interface {
	Sync(ctx context.Context, def entity.Definition, table string) error
}
