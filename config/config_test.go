package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supersave/entity"
)

const validDoc = `
[connection]
dsn = "sqlite://./data.db"

[[entities]]
name = "planets"
namespace = "astronomy"

[entities.template]
discovered = false

[entities.filter_sort_fields]
name = "string"
distance = "number"

[[entities.relations]]
field = "moons"
entity = "moons"
multiple = true
`

func TestParseValidDocument(t *testing.T) {
	f, err := Parse(strings.NewReader(validDoc))
	require.NoError(t, err)
	assert.Equal(t, "sqlite://./data.db", f.Connection.DSN)
	require.Len(t, f.Entities, 1)
	assert.Equal(t, "planets", f.Entities[0].Name)
}

func TestParseRejectsMissingDSN(t *testing.T) {
	_, err := Parse(strings.NewReader("[[entities]]\nname = \"planets\"\n"))
	require.Error(t, err)
	var cfgErr *entity.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestParseRejectsMalformedTOML(t *testing.T) {
	_, err := Parse(strings.NewReader("this is not = = toml"))
	assert.Error(t, err)
}

func TestEntityDefinitionConvertsRelationsAndFields(t *testing.T) {
	f, err := Parse(strings.NewReader(validDoc))
	require.NoError(t, err)

	defs, err := f.Definitions()
	require.NoError(t, err)
	require.Len(t, defs, 1)

	def := defs[0]
	assert.Equal(t, "astronomy_planets", def.FullName())
	assert.Equal(t, false, def.Template["discovered"])
	require.Len(t, def.Relations, 1)
	assert.Equal(t, "moons", def.Relations[0].Entity)
	assert.True(t, def.Relations[0].Multiple)
	assert.Equal(t, entity.FieldKindNumber, def.FilterSortFields["distance"])
}

func TestEntityDefinitionRejectsUnknownFieldKind(t *testing.T) {
	doc := `
[connection]
dsn = "sqlite://./data.db"

[[entities]]
name = "planets"

[entities.filter_sort_fields]
discovered_at = "timestamp"
`
	f, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)

	_, err = f.Definitions()
	require.Error(t, err)
	var cfgErr *entity.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load("/nonexistent/path/to/config.toml")
	assert.Error(t, err)
}
