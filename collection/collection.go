// Package collection is the boundary surface an external HTTP router
// composes: entity definitions widened with presentation metadata and
// hooks, plus the HookError type hook implementations raise to control
// the response status.
package collection

import (
	"context"
	"fmt"

	"supersave/entity"
)

// Collection is an EntityDefinition widened with the metadata an HTTP
// router needs to expose it: a human description, whether unknown
// request-body fields are accepted, and its hook chain.
type Collection struct {
	entity.Definition
	Description          string
	AdditionalProperties bool
	Hooks                Hooks
}

// HookContext is the shared context every hook is called with.
type HookContext struct {
	Params  map[string]string
	Query   map[string][]string
	Body    map[string]any
	Headers map[string][]string
}

// Hook transforms value, or raises a HookError to short-circuit the
// request. The runner threads the returned value into the next hook.
type Hook func(ctx context.Context, hc HookContext, value map[string]any) (map[string]any, error)

// Hooks is the six-point taxonomy a collection may attach to, firing
// around create/update/delete. There are no get hooks: reads are not
// mutating and need no before/after seam.
type Hooks struct {
	CreateBefore Hook
	CreateAfter  Hook
	UpdateBefore Hook
	UpdateAfter  Hook
	DeleteBefore Hook
	DeleteAfter  Hook
}

// Run executes hook if set, passing value through unchanged when nil.
func (h Hook) Run(ctx context.Context, hc HookContext, value map[string]any) (map[string]any, error) {
	if h == nil {
		return value, nil
	}
	return h(ctx, hc, value)
}

// HookError is the sentinel a hook raises to set the HTTP status of the
// response it short-circuits. StatusCode defaults to 500 when zero.
type HookError struct {
	Message    string
	StatusCode int
}

// NewHookError builds a HookError. A statusCode of 0 means "use 500".
func NewHookError(message string, statusCode int) *HookError {
	return &HookError{Message: message, StatusCode: statusCode}
}

func (e *HookError) Error() string {
	return fmt.Sprintf("hook error (status %d): %s", e.Status(), e.Message)
}

// Status returns StatusCode, defaulting to 500 when unset.
func (e *HookError) Status() int {
	if e.StatusCode == 0 {
		return 500
	}
	return e.StatusCode
}

// RouteDescriptor is what an external HTTP router needs to mount one
// collection: its request path segment and the namespace it belongs to.
// Router mechanics (verb dispatch, pluralization, wire format) are the
// router's own concern; this is the minimal handoff.
type RouteDescriptor struct {
	Namespace string
	Path      string
	Collection *Collection
}

// Registry is the list of managed collections an attached HTTP router
// reads to build its route table.
type Registry struct {
	collections []*Collection
}

// Register adds col to the registry.
func (r *Registry) Register(col *Collection) {
	r.collections = append(r.collections, col)
}

// Routes returns a RouteDescriptor per registered collection, grouped in
// registration order.
func (r *Registry) Routes() []RouteDescriptor {
	out := make([]RouteDescriptor, 0, len(r.collections))
	for _, c := range r.collections {
		out = append(out, RouteDescriptor{
			Namespace:  c.Namespace,
			Path:       routePath(c),
			Collection: c,
		})
	}
	return out
}

func routePath(c *Collection) string {
	if c.Namespace == "" {
		return "/" + c.Name
	}
	return "/" + c.Namespace + "/" + c.Name
}
