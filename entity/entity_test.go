package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFullNameWithAndWithoutNamespace(t *testing.T) {
	assert.Equal(t, "planets", Definition{Name: "planets"}.FullName())
	assert.Equal(t, "astronomy_planets", Definition{Name: "planets", Namespace: "astronomy"}.FullName())
}

func TestTableNameSlugifies(t *testing.T) {
	assert.Equal(t, "astronomy_planets", Definition{Name: "Planets", Namespace: "Astronomy"}.TableName())
}

func TestSlugCollapsesSeparators(t *testing.T) {
	assert.Equal(t, "some_weird_name", Slug("Some  Weird--Name!!"))
	assert.Equal(t, "trailing", Slug("trailing___"))
	assert.Equal(t, "", Slug("###"))
}

func TestFieldKindValid(t *testing.T) {
	assert.True(t, FieldKindString.Valid())
	assert.True(t, FieldKindNumber.Valid())
	assert.True(t, FieldKindBoolean.Valid())
	assert.False(t, FieldKind("date").Valid())
}

func TestBaseIDHelpers(t *testing.T) {
	b := Base{"name": "Earth"}
	assert.Equal(t, "", b.Id())

	withID := b.WithId("earth-id")
	assert.Equal(t, "earth-id", withID.Id())
	assert.Equal(t, "", b.Id(), "WithId must not mutate the receiver")

	without := withID.WithoutId()
	_, hasID := without["id"]
	assert.False(t, hasID)
	assert.Equal(t, "Earth", without["name"])
}

func TestConfigErrorMessage(t *testing.T) {
	err := NewConfigError("unknown field %q", "bogus")
	assert.EqualError(t, err, `unknown field "bogus"`)
}

func TestSchemaErrorMessage(t *testing.T) {
	err := NewSchemaError("planets", "bad row %s", "abc")
	assert.Contains(t, err.Error(), "planets")
	assert.Contains(t, err.Error(), "bad row abc")
}
