package sqliteengine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"supersave/entity"
	"supersave/internal/schema"
)

func TestQuoteIdentifierEscapesEmbeddedQuote(t *testing.T) {
	assert.Equal(t, `"plain"`, QuoteIdentifier("plain"))
	assert.Equal(t, `"weird""name"`, QuoteIdentifier(`weird"name`))
}

func TestGeneratedExpressionScalarKinds(t *testing.T) {
	assert.Equal(t, `json_extract(contents, '$.name')`, generatedExpression(schema.GeneratedColumn{Field: "name", Kind: entity.FieldKindString}))
	assert.Equal(t, `CAST(json_extract(contents, '$.distance') AS INTEGER)`, generatedExpression(schema.GeneratedColumn{Field: "distance", Kind: entity.FieldKindNumber}))
	assert.Equal(t, `CAST(json_extract(contents, '$.visible') AS INTEGER)`, generatedExpression(schema.GeneratedColumn{Field: "visible", Kind: entity.FieldKindBoolean}))
}

func TestGeneratedExpressionRelations(t *testing.T) {
	single := schema.GeneratedColumn{Field: "planet", Kind: entity.FieldKindString, Relation: &entity.Relation{Field: "planet", Entity: "planets"}}
	assert.Equal(t, `json_extract(contents, '$.planet')`, generatedExpression(single))

	multi := schema.GeneratedColumn{Field: "tracks", Kind: entity.FieldKindString, Relation: &entity.Relation{Field: "tracks", Entity: "tracks", Multiple: true}}
	assert.Contains(t, generatedExpression(multi), "REPLACE(REPLACE(REPLACE(REPLACE(")
}

func TestCreateTableSQLIncludesGeneratedColumns(t *testing.T) {
	cols := []schema.GeneratedColumn{{Field: "name", Kind: entity.FieldKindString}}
	sql := createTableSQL("planets", cols)
	assert.Contains(t, sql, `"id" TEXT PRIMARY KEY`)
	assert.Contains(t, sql, `"contents" JSON NOT NULL`)
	assert.Contains(t, sql, `GENERATED ALWAYS AS`)
}

func TestIndexNameConvention(t *testing.T) {
	assert.Equal(t, "idx_name", indexName("name"))
}
