package flatfile

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func typeOf[T any]() reflect.Type { return reflect.TypeFor[T]() }

func TestNewRecordSpec_PositionsSparseAndOrdered(t *testing.T) {
	spec, err := NewRecordSpec("test.sparse", Separator{}, []FieldSpec{
		{Name: "c", Position: 9},
		{Name: "a", Position: 1},
		{Name: "b", Position: 4},
	})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 3, 8}, spec.Positions())
	assert.Equal(t, []string{"a", "b", "c"}, spec.Names())
	assert.Equal(t, 3, spec.Len())
	assert.Equal(t, ' ', spec.Separator.Delimiter)
	assert.Equal(t, DefaultFactory, spec.Separator.Factory)
}

func TestNewRecordSpec_CollisionLastWins(t *testing.T) {
	spec, err := NewRecordSpec("test.collide", Separator{}, []FieldSpec{
		{Name: "first", Position: 2},
		{Name: "second", Position: 2},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, spec.Len())
	f, ok := spec.Field(1)
	require.True(t, ok)
	assert.Equal(t, "second", f.Name)
}

func TestNewRecordSpec_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		typeID string
		sep    Separator
		fields []FieldSpec
	}{
		{"empty type id", "", Separator{}, nil},
		{"position zero", "t", Separator{}, []FieldSpec{{Name: "a", Position: 0}}},
		{"date without format", "t", Separator{}, []FieldSpec{{Name: "d", Position: 1, Type: ValueDate}}},
		{"bad date pattern", "t", Separator{}, []FieldSpec{{Name: "d", Position: 1, Type: ValueDate, DateFormat: "yyyy-QQ"}}},
		{"quote delimiter", "t", Separator{Delimiter: '"'}, nil},
		{"unknown mode", "t", Separator{Mode: SeparatorMode(7)}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRecordSpec(tt.typeID, tt.sep, tt.fields)
			assert.ErrorIs(t, err, ErrConfig)
		})
	}
}

func TestNewRecordSpec_SkippedDateNeedsNoFormat(t *testing.T) {
	_, err := NewRecordSpec("t", Separator{}, []FieldSpec{{Name: "d", Position: 1, Type: ValueDate, Skip: true}})
	assert.NoError(t, err)
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]SeparatorMode{
		"":            ModeCharacter,
		"delimited":   ModeCharacter,
		"FIXED":       ModeFixedWidth,
		"fixed-width": ModeFixedWidth,
	} {
		got, err := ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseMode("columns")
	assert.Error(t, err)
}

func TestParseValueType(t *testing.T) {
	for _, vt := range []ValueType{ValueString, ValueInt, ValueUint, ValueFloat, ValueBool, ValueDate} {
		got, err := ParseValueType(vt.String())
		require.NoError(t, err)
		assert.Equal(t, vt, got)
	}

	got, err := ParseValueType("")
	require.NoError(t, err)
	assert.Equal(t, ValueString, got)

	_, err = ParseValueType("decimal")
	assert.Error(t, err)
}
