package web

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/flatfile/internal/catalog"
)

// indexPage lists the registered formats and how to call the API.
func indexPage(defs []catalog.Definition, persist, objects bool) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>flatfile</title></head><body>`)
		b.WriteString(`<h1>flatfile</h1><p>POST a file to <code>/api/decode/{format}</code>.`)
		if persist {
			b.WriteString(` Add <code>?persist=true</code> to store the records.`)
		}
		if objects {
			b.WriteString(` Use <code>?source=s3://bucket/key</code> to read from object storage.`)
		}
		b.WriteString(`</p><table><thead><tr><th>Format</th><th>Mode</th><th>Columns</th><th>Description</th></tr></thead><tbody>`)
		for _, def := range defs {
			fmt.Fprintf(&b, `<tr><td><code>%s</code><br>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>`,
				templ.EscapeString(def.Info.Key),
				templ.EscapeString(def.Info.Label),
				templ.EscapeString(def.Info.Mode),
				templ.EscapeString(strings.Join(def.Info.Columns, ", ")),
				templ.EscapeString(def.Info.Description),
			)
		}
		if len(defs) == 0 {
			b.WriteString(`<tr><td colspan="4">No formats registered.</td></tr>`)
		}
		b.WriteString(`</tbody></table></body></html>`)

		_, err := io.WriteString(w, b.String())
		return err
	})
}
