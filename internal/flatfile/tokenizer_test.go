package flatfile

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitDelimited(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		delim rune
		want  Tokens
	}{
		{"space separated", "a b c", ' ', Tokens{"a", "b", "c"}},
		{"quoted token keeps delimiter", `"Thomas Mathew" 02`, ' ', Tokens{"Thomas Mathew", "02"}},
		{"empty line", "", ',', Tokens{""}},
		{"empty middle token", "a,,b", ',', Tokens{"a", "", "b"}},
		{"trailing delimiter", "a,b,", ',', Tokens{"a", "b", ""}},
		{"quoted last token", `a,"b,c"`, ',', Tokens{"a", "b,c", ""}},
		{"unterminated quote flows to end", `"open,x`, ',', Tokens{"open,x"}},
		{"text after closing quote", `"a"b`, ',', Tokens{"a", "b"}},
		{"rune after closing quote is kept", `"ab"cd e`, ' ', Tokens{"ab", "cd", "e"}},
		{"quote inside token", `ab"cd`, ',', Tokens{"abcd"}},
		{"multibyte delimiter", "é§ü", '§', Tokens{"é", "ü"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitDelimited(tt.line, tt.delim))
		})
	}
}

func TestTokenize_Deterministic(t *testing.T) {
	spec, err := NewRegistry().Resolve(reflect.TypeFor[delimitedCard]())
	require.NoError(t, err)

	first, err := Tokenize(cardLine, spec, spec.Separator, 0)
	require.NoError(t, err)
	second, err := Tokenize(cardLine, spec, spec.Separator, 0)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, 7)
}

func TestTokenize_FixedWidth(t *testing.T) {
	spec, err := NewRegistry().Resolve(reflect.TypeFor[fixedCard]())
	require.NoError(t, err)

	tokens, err := Tokenize(fixedCardLine, spec, spec.Separator, 0)
	require.NoError(t, err)

	want := Tokens{"Mathew_Thomas", "4111111111111111", "02", "2008", " 12.89", "222", "10212005"}
	assert.Equal(t, want, tokens)

	name, err := tokens.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "Mathew_Thomas", name)
}

func TestTokenize_FixedWidthShortLine(t *testing.T) {
	spec, err := NewRegistry().Resolve(reflect.TypeFor[fixedCard]())
	require.NoError(t, err)

	_, err = Tokenize("Mathew_Thomas41111", spec, spec.Separator, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrParse)
	assert.ErrorIs(t, err, ErrLineTooShort)

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "cardNumber", pe.Field)
}

func TestTokenize_FixedWidthBadColumns(t *testing.T) {
	sep := Separator{Mode: ModeFixedWidth}
	tests := []struct {
		name  string
		field FieldSpec
		span  int
	}{
		{"start before first column", FieldSpec{Name: "a", Position: 1, Start: 0, End: 3}, 0},
		{"end before start", FieldSpec{Name: "a", Position: 1, Start: 5, End: 4}, 0},
		{"span too wide", FieldSpec{Name: "a", Position: 1, Start: 1, End: 10}, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := NewRecordSpec("test.bad", sep, []FieldSpec{tt.field})
			require.NoError(t, err)

			_, err = Tokenize("0123456789abcdef", spec, sep, tt.span)
			assert.ErrorIs(t, err, ErrParse)
			assert.ErrorIs(t, err, ErrBadColumns)
		})
	}
}

func TestTokenize_FixedWidthRunes(t *testing.T) {
	sep := Separator{Mode: ModeFixedWidth}
	spec, err := NewRecordSpec("test.runes", sep, []FieldSpec{
		{Name: "a", Position: 1, Start: 1, End: 3},
		{Name: "b", Position: 3, Start: 4, End: 5},
	})
	require.NoError(t, err)

	tokens, err := Tokenize("Zoë12", spec, sep, 0)
	require.NoError(t, err)
	assert.Equal(t, Tokens{"Zoë", "", "12"}, tokens)
}

func TestTokenize_FixedWidthSkipWithoutBounds(t *testing.T) {
	sep := Separator{Mode: ModeFixedWidth}
	spec, err := NewRecordSpec("test.skip", sep, []FieldSpec{
		{Name: "a", Position: 1, Start: 1, End: 2},
		{Name: "filler", Position: 2, Skip: true},
	})
	require.NoError(t, err)

	tokens, err := Tokenize("ab", spec, sep, 0)
	require.NoError(t, err)
	assert.Equal(t, Tokens{"ab", ""}, tokens)
}

func TestTokenize_UnknownMode(t *testing.T) {
	_, err := Tokenize("a", nil, Separator{Mode: SeparatorMode(9)}, 0)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestTokens_Get(t *testing.T) {
	tokens := Tokens{"a", "b"}

	got, err := tokens.Get(2)
	require.NoError(t, err)
	assert.Equal(t, "b", got)

	for _, pos := range []int{0, 3, -1} {
		_, err := tokens.Get(pos)
		assert.ErrorIs(t, err, ErrParse, "pos %d", pos)
		assert.ErrorIs(t, err, ErrMissingToken, "pos %d", pos)
	}
}
