package catalog

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/flatfile/internal/flatfile"
)

type entry struct {
	_     struct{} `fft:"delim=comma"`
	Key   string   `fft:"pos=1"`
	Count int      `fft:"pos=2"`
}

func entryFormat(key string) Definition {
	return Define[entry](
		Info{Key: key, Label: "Entries", Table: "entries"},
		[]string{"key", "count"},
		func(e *entry) []any { return []any{e.Key, e.Count} },
		flatfile.WithRegistry(flatfile.NewRegistry()),
	)
}

func TestRegistry(t *testing.T) {
	Clear()
	t.Cleanup(Clear)

	Register(entryFormat("b_entries"))
	Register(entryFormat("a_entries"))

	assert.Equal(t, 2, Count())
	assert.Equal(t, []string{"a_entries", "b_entries"}, Keys())

	all := All()
	require.Len(t, all, 2)
	assert.Equal(t, "a_entries", all[0].Info.Key)

	def, ok := Get("b_entries")
	require.True(t, ok)
	assert.Equal(t, []string{"key", "count"}, def.Info.Columns)
	assert.Equal(t, "delimited", def.Info.Mode)
	assert.True(t, def.SupportsCopy())

	_, ok = Get("missing")
	assert.False(t, ok)

	assert.Panics(t, func() { Register(entryFormat("a_entries")) })
	assert.Panics(t, func() { Register(Definition{Info: Info{Key: "no_decoder"}}) })
}

func TestDefine_PanicsOnBadDeclaration(t *testing.T) {
	type broken struct {
		When string `fft:"pos=0"`
	}
	assert.Panics(t, func() {
		Define[broken](Info{Key: "broken"}, nil, nil, flatfile.WithRegistry(flatfile.NewRegistry()))
	})
}

func TestDefinition_Decode(t *testing.T) {
	def := entryFormat("entries")

	var (
		rows       [][]any
		unresolved []*flatfile.RowError
	)
	stats, err := def.Decode(context.Background(), flatfile.Reader(strings.NewReader("a,1\nb\nc,3\n")), HandlerFuncs{
		OnRecord: func(rec any) bool {
			rows = append(rows, def.CopyRow(rec))
			return true
		},
		OnUnresolved: func(row *flatfile.RowError) bool {
			unresolved = append(unresolved, row)
			return true
		},
	})
	require.NoError(t, err)

	assert.Equal(t, [][]any{{"a", 1}, {"c", 3}}, rows)
	require.Len(t, unresolved, 1)
	assert.Equal(t, 2, unresolved[0].Line)
	assert.Equal(t, 2, stats.Records)
}

func TestDefinition_DecodeExtraOptions(t *testing.T) {
	def := entryFormat("entries")

	stats, err := def.Decode(context.Background(),
		flatfile.Reader(strings.NewReader("a,1\nb,2\nc,3\n")),
		HandlerFuncs{},
		flatfile.WithMaxLines(1),
	)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Records)
	assert.True(t, stats.LimitReached)

	_, err = def.Decode(context.Background(), flatfile.Reader(strings.NewReader("")), nil)
	assert.ErrorIs(t, err, flatfile.ErrConfig)
}

func TestTee(t *testing.T) {
	var a, b int
	h := Tee(
		HandlerFuncs{OnRecord: func(any) bool { a++; return true }},
		HandlerFuncs{OnRecord: func(any) bool { b++; return b < 2 }},
	)

	assert.True(t, h.HandleRecord(1))
	assert.False(t, h.HandleRecord(2))
	assert.Equal(t, 2, a, "every handler sees the row")
	assert.Equal(t, 2, b)
	assert.True(t, h.HandleUnresolved(&flatfile.RowError{}))
}
