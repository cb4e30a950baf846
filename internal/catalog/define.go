package catalog

import (
	"context"
	"fmt"
	"slices"

	"github.com/JonMunkholm/flatfile/internal/flatfile"
)

// Define builds a Definition for record type T. The record spec is resolved
// immediately so a malformed declaration panics at registration time rather
// than on the first upload. copyRow may be nil for formats that are never
// persisted.
func Define[T any](info Info, copyColumns []string, copyRow func(*T) []any, opts ...flatfile.Option) Definition {
	tr, err := flatfile.New[T](opts...)
	if err != nil {
		panic(fmt.Sprintf("catalog: format %s: %v", info.Key, err))
	}

	spec := tr.Spec()
	if len(info.Columns) == 0 {
		info.Columns = spec.Names()
	}
	if info.Mode == "" {
		info.Mode = tr.Separator().Mode.String()
	}

	def := Definition{
		Info: info,
		Decode: func(ctx context.Context, src flatfile.Source, h RowHandler, extra ...flatfile.Option) (flatfile.Stats, error) {
			if h == nil {
				return flatfile.Stats{}, &flatfile.ConfigError{Op: "decode " + info.Key, Err: fmt.Errorf("nil row handler")}
			}
			t, err := flatfile.New[T](append(slices.Clone(opts), extra...)...)
			if err != nil {
				return flatfile.Stats{}, err
			}
			return t.Decode(ctx, src, handlerListener[T]{h: h})
		},
		CopyColumns: copyColumns,
	}
	if copyRow != nil {
		def.CopyRow = func(rec any) []any {
			return copyRow(rec.(*T))
		}
	}
	return def
}

// handlerListener adapts a RowHandler to the typed listener protocol.
type handlerListener[T any] struct {
	h RowHandler
}

func (l handlerListener[T]) FoundRecord(rec *T) bool {
	return l.h.HandleRecord(rec)
}

func (l handlerListener[T]) UnresolvableRecord(raw string) bool {
	return l.h.HandleUnresolved(&flatfile.RowError{Raw: raw})
}

func (l handlerListener[T]) UnresolvedRow(row *flatfile.RowError) bool {
	return l.h.HandleUnresolved(row)
}
