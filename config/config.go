// Package config loads a declarative SuperSave setup from a TOML file:
// the connection string and the entity definitions to register, letting
// a caller (typically the CLI) avoid constructing entity.Definition
// values in code.
package config

import (
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"

	"supersave/entity"
)

// File is the top-level TOML document: a [connection] table and zero or
// more [[entities]] tables.
type File struct {
	Connection Connection `toml:"connection"`
	Entities   []Entity   `toml:"entities"`
}

// Connection maps the [connection] table.
type Connection struct {
	DSN string `toml:"dsn"`
}

// Entity maps one [[entities]] table entry into an entity.Definition.
type Entity struct {
	Name             string            `toml:"name"`
	Namespace        string            `toml:"namespace"`
	Template         map[string]any    `toml:"template"`
	Relations        []TomlRelation    `toml:"relations"`
	FilterSortFields map[string]string `toml:"filter_sort_fields"`
}

// TomlRelation maps one [[entities.relations]] table entry.
type TomlRelation struct {
	Field     string `toml:"field"`
	Entity    string `toml:"entity"`
	Namespace string `toml:"namespace"`
	Multiple  bool   `toml:"multiple"`
}

// Definition converts e into its canonical entity.Definition,
// validating that every declared FieldKind is recognised.
func (e Entity) Definition() (entity.Definition, error) {
	def := entity.Definition{
		Name:      e.Name,
		Namespace: e.Namespace,
		Template:  e.Template,
	}

	for _, r := range e.Relations {
		def.Relations = append(def.Relations, entity.Relation{
			Field:     r.Field,
			Entity:    r.Entity,
			Namespace: r.Namespace,
			Multiple:  r.Multiple,
		})
	}

	if len(e.FilterSortFields) > 0 {
		def.FilterSortFields = make(map[string]entity.FieldKind, len(e.FilterSortFields))
		for field, kind := range e.FilterSortFields {
			fk := entity.FieldKind(kind)
			if !fk.Valid() {
				return entity.Definition{}, entity.NewConfigError("entity %q: unrecognised filterSortField kind %q for field %q", e.Name, kind, field)
			}
			def.FilterSortFields[field] = fk
		}
	}

	return def, nil
}

// Load reads and decodes the TOML config file at path.
func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config %q: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a TOML config document from r.
func Parse(r io.Reader) (*File, error) {
	var f File
	if _, err := toml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if f.Connection.DSN == "" {
		return nil, entity.NewConfigError("config: [connection].dsn is required")
	}
	return &f, nil
}

// Definitions converts every declared entity into its canonical form, in
// file order.
func (f *File) Definitions() ([]entity.Definition, error) {
	out := make([]entity.Definition, 0, len(f.Entities))
	for _, e := range f.Entities {
		def, err := e.Definition()
		if err != nil {
			return nil, err
		}
		out = append(out, def)
	}
	return out, nil
}
