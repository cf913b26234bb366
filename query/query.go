// Package query implements SuperSave's backend-neutral query builder: a
// fluent composer that produces an immutable condition tree plus sort,
// limit, and offset. Translation of that tree to SQL is the job of each
// storage engine, not this package.
package query

import "supersave/entity"

// Operator is a predicate comparison operator.
type Operator string

const (
	OpEquals           Operator = "="
	OpGreaterThan      Operator = ">"
	OpGreaterOrEqual   Operator = ">="
	OpLessThan         Operator = "<"
	OpLessOrEqual      Operator = "<="
	OpLike             Operator = "LIKE"
	OpIn               Operator = "IN"
)

// LogicalOperator joins or negates a group of conditions.
type LogicalOperator string

const (
	LogicAnd LogicalOperator = "AND"
	LogicOr  LogicalOperator = "OR"
	LogicNot LogicalOperator = "NOT"
)

// SortDirection is the direction of a QuerySort.
type SortDirection string

const (
	Ascending  SortDirection = "asc"
	Descending SortDirection = "desc"
)

// Condition is the sum type of the query tree: a leaf Filter or a
// LogicalGroup of child Conditions.
type Condition interface {
	isCondition()
}

// Filter is a single field/operator/value predicate.
type Filter struct {
	Operator Operator
	Field    string
	Value    any
}

func (Filter) isCondition() {}

// Group is a LogicalGroup: AND/OR hold one or more conditions, NOT holds
// exactly one.
type Group struct {
	Operator   LogicalOperator
	Conditions []Condition
}

func (Group) isCondition() {}

// Sort is a single ORDER BY clause; Query may hold several, the first is
// primary.
type Sort struct {
	Field     string
	Direction SortDirection
}

// Unbounded is the sentinel passed to Limit to request all rows.
const Unbounded = -1

// FieldValidator is injected by the caller (normally the repository,
// which knows the entity's filterSortFields) to reject unknown fields at
// build time rather than at translation time.
type FieldValidator func(field string) error

// Query is the immutable result of composing a Builder. Repositories
// consume it to produce SQL.
type Query struct {
	Where  []Condition
	Sorts  []Sort
	Limit  int // 0 means "unset"; Unbounded (-1) means "no limit"
	Offset int
}

// Builder composes a Query through a fluent, stateful API. It is not
// safe for concurrent use; build one query per logical request.
type Builder struct {
	validate FieldValidator

	// conditions accumulated at the current (only) nesting level. A
	// "pending group" is represented by openGroup != nil: subsequent
	// predicates are appended to it instead of to conditions, until the
	// group is closed by finalize() or another and()/or()/not() call.
	conditions []Condition
	openGroup  *Group
	// notSlot, when true, means the very next predicate closes a
	// single-slot NOT group instead of joining it normally.
	notSlot bool

	sorts  []Sort
	limit  int
	offset int

	err error
}

// New creates a Builder. validate may be nil, in which case all fields
// are accepted (used internally by tests). The "id" pseudo-field, which
// every collection accepts implicitly, is never passed to validate.
func New(validate FieldValidator) *Builder {
	return &Builder{validate: validate}
}

func (b *Builder) checkField(field string) {
	if b.err != nil || b.validate == nil || field == "id" {
		return
	}
	if err := b.validate(field); err != nil {
		b.err = err
	}
}

func (b *Builder) addPredicate(c Filter) *Builder {
	b.checkField(c.Field)
	if b.err != nil {
		return b
	}
	if b.notSlot {
		b.notSlot = false
		b.conditions = append(b.conditions, Group{Operator: LogicNot, Conditions: []Condition{c}})
		return b
	}
	if b.openGroup != nil {
		b.openGroup.Conditions = append(b.openGroup.Conditions, c)
		return b
	}
	b.conditions = append(b.conditions, c)
	return b
}

// Eq adds an equality predicate. A nil value emits IS NULL at
// translation time.
func (b *Builder) Eq(field string, value any) *Builder {
	return b.addPredicate(Filter{Operator: OpEquals, Field: field, Value: value})
}

// Gt adds a ">" predicate.
func (b *Builder) Gt(field string, value any) *Builder {
	return b.addPredicate(Filter{Operator: OpGreaterThan, Field: field, Value: value})
}

// Gte adds a ">=" predicate.
func (b *Builder) Gte(field string, value any) *Builder {
	return b.addPredicate(Filter{Operator: OpGreaterOrEqual, Field: field, Value: value})
}

// Lt adds a "<" predicate.
func (b *Builder) Lt(field string, value any) *Builder {
	return b.addPredicate(Filter{Operator: OpLessThan, Field: field, Value: value})
}

// Lte adds a "<=" predicate.
func (b *Builder) Lte(field string, value any) *Builder {
	return b.addPredicate(Filter{Operator: OpLessOrEqual, Field: field, Value: value})
}

// Like adds a predicate whose value may contain shell-style "*"
// wildcards; the translator converts them to SQL "%".
func (b *Builder) Like(field string, value string) *Builder {
	return b.addPredicate(Filter{Operator: OpLike, Field: field, Value: value})
}

// In adds a predicate matching any of values. An empty values list is
// kept as-is; translators must short-circuit it to zero matches rather
// than emit IN ().
func (b *Builder) In(field string, values []any) *Builder {
	return b.addPredicate(Filter{Operator: OpIn, Field: field, Value: values})
}

// And, called with no arguments, opens a pending AND group at the
// current level: subsequent predicates join it until another group call
// or GetWhere(). Called with sub-queries, it instead creates a finalized
// group by flattening each sub-query's top-level conditions.
func (b *Builder) And(subs ...*Builder) *Builder {
	return b.group(LogicAnd, subs)
}

// Or behaves like And but with OR semantics.
func (b *Builder) Or(subs ...*Builder) *Builder {
	return b.group(LogicOr, subs)
}

func (b *Builder) group(op LogicalOperator, subs []*Builder) *Builder {
	if b.err != nil {
		return b
	}
	b.finalizeOpenGroup()
	if len(subs) == 0 {
		g := &Group{Operator: op}
		b.conditions = append(b.conditions, g)
		b.openGroup = g
		return b
	}
	flat := make([]Condition, 0, len(subs))
	for _, sub := range subs {
		if sub == nil {
			continue
		}
		if sub.err != nil && b.err == nil {
			b.err = sub.err
			continue
		}
		flat = append(flat, sub.Conditions()...)
	}
	b.conditions = append(b.conditions, Group{Operator: op, Conditions: flat})
	return b
}

// Not opens a single-slot group: the very next predicate closes it (NOT
// is unary over the next predicate). Not takes no sub-queries, so only a
// single predicate can be negated: a group added by And/Or after Not is
// not negated, and the NOT still applies to the next predicate.
func (b *Builder) Not() *Builder {
	if b.err != nil {
		return b
	}
	b.finalizeOpenGroup()
	b.notSlot = true
	return b
}

// finalizeOpenGroup closes any group opened by a no-arg And()/Or() call
// so that a subsequent group call or GetWhere() sees a flat conditions
// list containing the (now immutable) group pointer's value.
func (b *Builder) finalizeOpenGroup() {
	if b.openGroup == nil {
		return
	}
	// Replace the pointer entry in conditions with its dereferenced,
	// immutable value so later mutation of openGroup (there is none
	// once finalized, since we clear it) cannot leak.
	for i, c := range b.conditions {
		if g, ok := c.(*Group); ok && g == b.openGroup {
			b.conditions[i] = *g
		}
	}
	b.openGroup = nil
}

// Sort appends an ORDER BY clause; the first Sort call is primary.
func (b *Builder) Sort(field string, direction SortDirection) *Builder {
	b.checkField(field)
	b.sorts = append(b.sorts, Sort{Field: field, Direction: direction})
	return b
}

// Limit sets the row limit. Pass query.Unbounded for no limit.
func (b *Builder) Limit(n int) *Builder {
	b.limit = n
	return b
}

// Offset sets the row offset.
func (b *Builder) Offset(n int) *Builder {
	b.offset = n
	return b
}

// Err returns the first configuration error encountered while building,
// if any (e.g. filtering/sorting on an unknown field).
func (b *Builder) Err() error {
	return b.err
}

// GetWhere finalizes any pending group and returns the built Query. It
// returns an error if any predicate referenced an unknown field.
func (b *Builder) GetWhere() (*Query, error) {
	b.finalizeOpenGroup()
	if b.err != nil {
		return nil, b.err
	}
	limit := b.limit
	return &Query{
		Where:  append([]Condition(nil), b.conditions...),
		Sorts:  append([]Sort(nil), b.sorts...),
		Limit:  limit,
		Offset: b.offset,
	}, nil
}

// Conditions exposes the top-level conditions accumulated so far, used
// when flattening a sub-query into a finalized group (see group()).
func (b *Builder) Conditions() []Condition {
	b.finalizeOpenGroup()
	return b.conditions
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "true" || t == "1"
	case int:
		return t == 1
	case int64:
		return t == 1
	case float64:
		return t == 1
	default:
		return false
	}
}

// BoolToBind coerces a boolean-ish filter value to 0/1 for binding
// (boolean fields accept true, "true", 1, "1").
func BoolToBind(v any) int {
	if truthy(v) {
		return 1
	}
	return 0
}

// LikePattern converts the caller's shell-style "*" wildcard to the SQL
// "%" wildcard.
func LikePattern(v string) string {
	out := make([]byte, 0, len(v))
	for i := 0; i < len(v); i++ {
		if v[i] == '*' {
			out = append(out, '%')
		} else {
			out = append(out, v[i])
		}
	}
	return string(out)
}

// ErrUnknownField is returned by FieldValidator implementations rejecting
// an unrecognised filter/sort field; it is an *entity.ConfigError.
func ErrUnknownField(field string) error {
	return entity.NewConfigError("unknown filter/sort field %q", field)
}
