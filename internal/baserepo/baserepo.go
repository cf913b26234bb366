// Package baserepo holds the engine-neutral logic every concrete engine
// repository embeds: relation projection on write, relation expansion on
// read, and row hydration. None of it touches SQL.
package baserepo

import (
	"context"
	"encoding/json"
	"fmt"

	"supersave/entity"
)

// Lookup resolves the repository registered for (entityName, namespace)
// so relations can be expanded without baserepo depending on the entity
// manager (whose registered engine repositories each embed a Helper).
type Lookup func(entityName, namespace string) (Expander, bool)

// Expander is the minimal surface a target repository must offer to
// resolve relations into full entities.
type Expander interface {
	GetByID(ctx context.Context, id string) (map[string]any, error)
	GetByIDs(ctx context.Context, ids []string) ([]map[string]any, error)
}

// Helper bundles the relation projection/expansion/hydration logic for
// one entity definition. Concrete engine repositories embed a Helper.
type Helper struct {
	Def    entity.Definition
	Lookup Lookup
}

// NewHelper builds a Helper for def, resolving relation targets through
// lookup.
func NewHelper(def entity.Definition, lookup Lookup) Helper {
	return Helper{Def: def, Lookup: lookup}
}

// SimplifyRelations projects relation attributes on input down to their
// {id} shorthand before the caller serialises it to the contents column.
// Non-relation attributes pass through untouched.
func (h Helper) SimplifyRelations(input map[string]any) map[string]any {
	if len(h.Def.Relations) == 0 {
		return input
	}
	out := make(map[string]any, len(input))
	for k, v := range input {
		out[k] = v
	}
	for _, rel := range h.Def.Relations {
		v, ok := out[rel.Field]
		if !ok || v == nil {
			continue
		}
		if rel.Multiple {
			out[rel.Field] = simplifyMultiple(v)
		} else {
			out[rel.Field] = simplifyOne(v)
		}
	}
	return out
}

func simplifyOne(v any) any {
	switch t := v.(type) {
	case string:
		return map[string]any{"id": t}
	case map[string]any:
		if id, ok := t["id"]; ok {
			return map[string]any{"id": id}
		}
		return t
	default:
		return v
	}
}

func simplifyMultiple(v any) any {
	items, ok := v.([]any)
	if !ok {
		return v
	}
	out := make([]any, 0, len(items))
	for _, item := range items {
		out = append(out, simplifyOne(item))
	}
	return out
}

// FillInRelations expands every relation on row from its {id} shorthand
// into the full target entity, dropping ids that fail to resolve.
// Non-multiple relations resolve to null when the target id is missing.
func (h Helper) FillInRelations(ctx context.Context, row map[string]any) map[string]any {
	if len(h.Def.Relations) == 0 || h.Lookup == nil {
		return row
	}
	for _, rel := range h.Def.Relations {
		target, ok := h.Lookup(rel.Entity, rel.Namespace)
		if !ok {
			continue
		}
		v, ok := row[rel.Field]
		if !ok || v == nil {
			continue
		}
		if rel.Multiple {
			row[rel.Field] = h.expandMultiple(ctx, target, v)
		} else {
			row[rel.Field] = h.expandOne(ctx, target, v)
		}
	}
	return row
}

func (h Helper) expandOne(ctx context.Context, target Expander, v any) any {
	id := idOf(v)
	if id == "" {
		return nil
	}
	expanded, err := target.GetByID(ctx, id)
	if err != nil || expanded == nil {
		return nil
	}
	return expanded
}

func (h Helper) expandMultiple(ctx context.Context, target Expander, v any) any {
	items, ok := v.([]any)
	if !ok {
		return v
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if id := idOf(item); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return []any{}
	}
	resolved, err := target.GetByIDs(ctx, ids)
	if err != nil {
		return []any{}
	}
	byID := make(map[string]map[string]any, len(resolved))
	for _, e := range resolved {
		if id, ok := e["id"].(string); ok {
			byID[id] = e
		}
	}
	out := make([]any, 0, len(ids))
	for _, id := range ids {
		if e, ok := byID[id]; ok {
			out = append(out, e)
		}
	}
	return out
}

func idOf(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		if id, ok := t["id"].(string); ok {
			return id
		}
	}
	return ""
}

// Hydrate parses the physical contents value (a JSON string, []byte, or
// an already-decoded map depending on driver), merges it over the
// entity's template defaults, expands relations, and overlays the
// authoritative id from the row's id column.
func (h Helper) Hydrate(ctx context.Context, id string, rawContents any) (map[string]any, error) {
	contents, err := decodeContents(rawContents)
	if err != nil {
		return nil, fmt.Errorf("hydrating %s: %w", h.Def.FullName(), err)
	}

	merged := make(map[string]any, len(h.Def.Template)+len(contents))
	for k, v := range h.Def.Template {
		merged[k] = v
	}
	for k, v := range contents {
		merged[k] = v
	}

	merged = h.FillInRelations(ctx, merged)
	merged["id"] = id
	return merged, nil
}

func decodeContents(raw any) (map[string]any, error) {
	switch t := raw.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return t, nil
	case string:
		return decodeJSON([]byte(t))
	case []byte:
		return decodeJSON(t)
	default:
		return nil, fmt.Errorf("unsupported contents type %T", raw)
	}
}

func decodeJSON(b []byte) (map[string]any, error) {
	if len(b) == 0 {
		return map[string]any{}, nil
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("invalid contents JSON: %w", err)
	}
	return out, nil
}
