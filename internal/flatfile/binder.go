package flatfile

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Values maps binding names to bound values: a string for most fields and a
// time.Time for date fields.
type Values map[string]any

// BindOptions tunes Bind.
type BindOptions struct {
	MaxFixedSpan   int  // zero means DefaultMaxFixedSpan
	StrictRequired bool // an empty required token is a ParseError
}

// Bind tokenizes line and maps the tokens onto the spec's fields in
// position order. Skipped fields consume their position and are dropped.
func Bind(line string, spec *RecordSpec, sep Separator, opts BindOptions) (Values, error) {
	if spec == nil {
		return nil, configErr("bind", "nil spec")
	}
	tokens, err := Tokenize(line, spec, sep, opts.MaxFixedSpan)
	if err != nil {
		return nil, err
	}

	values := make(Values, len(spec.positions))
	for _, idx := range spec.positions {
		f := spec.fields[idx]
		if f.Skip {
			continue
		}

		tok, err := tokens.Get(f.Position)
		if err != nil {
			var pe *ParseError
			if errors.As(err, &pe) {
				pe.Field = f.Name
			}
			return nil, err
		}

		if opts.StrictRequired && f.Required && strings.TrimSpace(tok) == "" {
			return nil, &ParseError{Position: f.Position, Field: f.Name, Err: ErrRequired}
		}

		if f.Type == ValueDate {
			t, err := time.Parse(f.layout, strings.TrimSpace(tok))
			if err != nil {
				return nil, &ParseError{
					Position: f.Position,
					Field:    f.Name,
					Value:    tok,
					Err:      fmt.Errorf("%w: want %s: %v", ErrBadDate, f.DateFormat, err),
				}
			}
			values[f.Name] = t
			continue
		}
		values[f.Name] = tok
	}
	return values, nil
}
