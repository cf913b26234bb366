package sqlgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supersave/entity"
	"supersave/query"
)

func quote(s string) string { return `"` + s + `"` }

func noKinds(string) (entity.FieldKind, bool) { return "", false }

func TestBuildWhereImplicitAnd(t *testing.T) {
	q, err := query.New(nil).Eq("name", "Earth").Gt("distance", 100).GetWhere()
	require.NoError(t, err)
	where, args, err := BuildWhere(q.Where, quote, noKinds)
	require.NoError(t, err)
	assert.Equal(t, `"name" = ? AND "distance" > ?`, where)
	assert.Equal(t, []any{"Earth", 100}, args)
}

func TestBuildWhereGroupsNest(t *testing.T) {
	mars := query.New(nil).Eq("name", "Mars")
	venus := query.New(nil).Eq("name", "Venus")
	q, err := query.New(nil).Eq("visible", true).Or(mars, venus).GetWhere()
	require.NoError(t, err)
	where, _, err := BuildWhere(q.Where, quote, noKinds)
	require.NoError(t, err)
	assert.Equal(t, `"visible" = ? AND ("name" = ? OR "name" = ?)`, where)
}

func TestBuildWhereEmptyInShortCircuits(t *testing.T) {
	q, err := query.New(nil).In("name", []any{}).GetWhere()
	require.NoError(t, err)
	where, args, err := BuildWhere(q.Where, quote, noKinds)
	require.NoError(t, err)
	assert.Equal(t, "1 = 0", where)
	assert.Empty(t, args)
}

func TestBuildWhereNilEqualsIsNull(t *testing.T) {
	q, err := query.New(nil).Eq("name", nil).GetWhere()
	require.NoError(t, err)
	where, args, err := BuildWhere(q.Where, quote, noKinds)
	require.NoError(t, err)
	assert.Equal(t, `"name" IS NULL`, where)
	assert.Empty(t, args)
}

func TestBuildWhereBooleanCoercesToBind(t *testing.T) {
	kindOf := func(field string) (entity.FieldKind, bool) {
		if field == "visible" {
			return entity.FieldKindBoolean, true
		}
		return "", false
	}
	q, err := query.New(nil).Eq("visible", "true").GetWhere()
	require.NoError(t, err)
	_, args, err := BuildWhere(q.Where, quote, kindOf)
	require.NoError(t, err)
	assert.Equal(t, []any{1}, args)
}

func TestBuildOrderByWithCollation(t *testing.T) {
	sorts := []query.Sort{{Field: "name", Direction: query.Ascending}, {Field: "distance", Direction: query.Descending}}
	assert.Equal(t, `"name" COLLATE NOCASE ASC, "distance" COLLATE NOCASE DESC`, BuildOrderBy(sorts, quote, true))
	assert.Equal(t, `"name" ASC, "distance" DESC`, BuildOrderBy(sorts, quote, false))
}

func TestBuildLimitOffset(t *testing.T) {
	assert.Equal(t, "", BuildLimitOffset(0, 0, "-1"))
	assert.Equal(t, "LIMIT -1 OFFSET 5", BuildLimitOffset(0, 5, "-1"))
	assert.Equal(t, "LIMIT 10", BuildLimitOffset(10, 0, "-1"))
	assert.Equal(t, "LIMIT 10 OFFSET 5", BuildLimitOffset(10, 5, "-1"))
}
