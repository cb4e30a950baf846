package flatfile

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultMaxFixedSpan caps the width of one fixed-width column.
const DefaultMaxFixedSpan = 4096

// Tokens is the positional split of one line.
type Tokens []string

// Get returns the token at a 1-based position.
func (t Tokens) Get(pos int) (string, error) {
	if pos < 1 || pos > len(t) {
		return "", &ParseError{
			Position: pos,
			Err:      fmt.Errorf("%w: line has %d tokens", ErrMissingToken, len(t)),
		}
	}
	return t[pos-1], nil
}

// Tokenize splits a line according to sep. maxSpan bounds fixed-width
// columns; zero means DefaultMaxFixedSpan.
func Tokenize(line string, spec *RecordSpec, sep Separator, maxSpan int) (Tokens, error) {
	switch sep.Mode {
	case ModeCharacter:
		delim := sep.Delimiter
		if delim == 0 {
			delim = DefaultDelimiter
		}
		return splitDelimited(line, delim), nil
	case ModeFixedWidth:
		if maxSpan <= 0 {
			maxSpan = DefaultMaxFixedSpan
		}
		return sliceFixed(line, spec, maxSpan)
	default:
		return nil, configErr("tokenize", "unknown separator mode %d", int(sep.Mode))
	}
}

// splitDelimited is a two-state scanner. A double quote opens a quoted token;
// the closing quote emits it and swallows a directly following delimiter.
// Only a delimiter is swallowed: any other rune after the closing quote is
// kept as the start of the next token, never dropped.
// The trailing buffer is always emitted, so an empty line yields one empty
// token and a line ending in a delimiter yields a trailing empty token.
func splitDelimited(line string, delim rune) Tokens {
	var (
		tokens     = make(Tokens, 0, strings.Count(line, string(delim))+1)
		buf        strings.Builder
		quoted     bool
		afterQuote bool
	)

	for _, r := range line {
		if afterQuote {
			afterQuote = false
			if r == delim {
				continue
			}
		}
		switch {
		case r == '"' && !quoted:
			quoted = true
		case r == '"':
			tokens = append(tokens, buf.String())
			buf.Reset()
			quoted = false
			afterQuote = true
		case r == delim && !quoted:
			tokens = append(tokens, buf.String())
			buf.Reset()
		default:
			buf.WriteRune(r)
		}
	}
	return append(tokens, buf.String())
}

// sliceFixed cuts each declared column range. Tokens land at their field
// position; positions without a bound field stay empty.
func sliceFixed(line string, spec *RecordSpec, maxSpan int) (Tokens, error) {
	if spec == nil || len(spec.positions) == 0 {
		return Tokens{}, nil
	}

	ascii := isASCII(line)
	width := len(line)
	var runes []rune
	if !ascii {
		runes = []rune(line)
		width = len(runes)
	}

	tokens := make(Tokens, spec.positions[len(spec.positions)-1]+1)
	for _, idx := range spec.positions {
		f := spec.fields[idx]
		if f.Skip && f.Start == 0 && f.End == 0 {
			continue
		}

		var err error
		switch {
		case f.Start < 1:
			err = fmt.Errorf("%w: start column %d is before column 1", ErrBadColumns, f.Start)
		case f.End < f.Start:
			err = fmt.Errorf("%w: columns %d-%d are empty", ErrBadColumns, f.Start, f.End)
		case f.End-f.Start+1 > maxSpan:
			err = fmt.Errorf("%w: columns %d-%d exceed %d", ErrBadColumns, f.Start, f.End, maxSpan)
		case f.End > width:
			err = fmt.Errorf("%w: field ends at column %d, line has %d", ErrLineTooShort, f.End, width)
		}
		if err != nil {
			return nil, &ParseError{Position: f.Position, Field: f.Name, Err: err}
		}

		if ascii {
			tokens[idx] = line[f.Start-1 : f.End]
		} else {
			tokens[idx] = string(runes[f.Start-1 : f.End])
		}
	}
	return tokens, nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
