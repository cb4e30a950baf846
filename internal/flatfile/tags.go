package flatfile

import (
	"encoding"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// TagName is the struct tag key read by the registry.
const TagName = "fft"

var (
	timeType            = reflect.TypeOf(time.Time{})
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
)

var namedDelimiters = map[string]rune{
	"space":     ' ',
	"comma":     ',',
	"semicolon": ';',
	"tab":       '\t',
	"pipe":      '|',
	"colon":     ':',
}

// TypeIDOf returns the registry key for a struct type: its package path and
// name. Pointer types resolve to their element.
func TypeIDOf(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

// specFromType reads the fft tags of a struct type.
func specFromType(t reflect.Type) (Separator, []FieldSpec, error) {
	var (
		sep    Separator
		fields []FieldSpec
	)
	typeID := TypeIDOf(t)

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag, ok := sf.Tag.Lookup(TagName)
		if !ok || tag == "-" {
			continue
		}
		opts, err := splitTagOptions(tag)
		if err != nil {
			return sep, nil, configErr("read tags", "%s.%s: %v", typeID, sf.Name, err)
		}

		if sf.Name == "_" {
			if err := applyRecordOptions(&sep, opts); err != nil {
				return sep, nil, configErr("read tags", "%s: %v", typeID, err)
			}
			continue
		}
		if !sf.IsExported() {
			return sep, nil, configErr("read tags", "%s.%s: tagged field must be exported", typeID, sf.Name)
		}

		f := FieldSpec{
			Name: bindingName(sf.Name),
			Type: valueTypeOf(sf.Type),
		}
		if err := applyFieldOptions(&f, opts); err != nil {
			return sep, nil, configErr("read tags", "%s.%s: %v", typeID, sf.Name, err)
		}
		if f.Position == 0 {
			return sep, nil, configErr("read tags", "%s.%s: missing pos", typeID, sf.Name)
		}
		fields = append(fields, f)
	}
	return sep, fields, nil
}

type tagOption struct {
	key   string
	value string
	set   bool
}

// splitTagOptions splits on commas outside single quotes. Quoted values keep
// their spaces and commas.
func splitTagOptions(tag string) ([]tagOption, error) {
	var (
		opts   []tagOption
		buf    strings.Builder
		quoted bool
	)
	flush := func() {
		raw := buf.String()
		buf.Reset()
		key, value, set := strings.Cut(raw, "=")
		key = strings.TrimSpace(key)
		if key == "" {
			return
		}
		if set {
			value = unquoteTagValue(value)
		}
		opts = append(opts, tagOption{key: strings.ToLower(key), value: value, set: set})
	}

	for _, r := range tag {
		switch {
		case r == '\'':
			quoted = !quoted
			buf.WriteRune(r)
		case r == ',' && !quoted:
			flush()
		default:
			buf.WriteRune(r)
		}
	}
	if quoted {
		return nil, fmt.Errorf("unterminated quote in tag %q", tag)
	}
	flush()
	return opts, nil
}

func unquoteTagValue(v string) string {
	t := strings.TrimSpace(v)
	if len(t) >= 2 && t[0] == '\'' && t[len(t)-1] == '\'' {
		return t[1 : len(t)-1]
	}
	return t
}

func applyFieldOptions(f *FieldSpec, opts []tagOption) error {
	for _, o := range opts {
		var err error
		switch o.key {
		case "pos", "position":
			f.Position, err = positiveInt(o)
		case "start":
			f.Start, err = strconv.Atoi(o.value)
		case "end":
			f.End, err = strconv.Atoi(o.value)
		case "format", "dateformat":
			f.DateFormat = o.value
		case "required":
			f.Required, err = flag(o)
		case "skip":
			f.Skip, err = flag(o)
		case "name":
			if o.value == "" {
				err = fmt.Errorf("empty name")
			}
			f.Name = o.value
		default:
			err = fmt.Errorf("unknown option %q", o.key)
		}
		if err != nil {
			return fmt.Errorf("option %s: %w", o.key, err)
		}
	}
	return nil
}

func applyRecordOptions(sep *Separator, opts []tagOption) error {
	for _, o := range opts {
		var err error
		switch o.key {
		case "mode":
			sep.Mode, err = ParseMode(o.value)
		case "delim", "delimiter":
			sep.Delimiter, err = ParseDelimiter(o.value)
		case "skipfirst", "skipfirstline":
			sep.SkipFirstLine, err = flag(o)
		case "factory":
			sep.Factory = o.value
		default:
			err = fmt.Errorf("unknown option %q", o.key)
		}
		if err != nil {
			return fmt.Errorf("option %s: %w", o.key, err)
		}
	}
	return nil
}

// ParseDelimiter accepts a single character or one of the names space,
// comma, semicolon, tab, pipe and colon. Blank input yields the default.
func ParseDelimiter(s string) (rune, error) {
	if strings.TrimSpace(s) == "" {
		return DefaultDelimiter, nil
	}
	if r, ok := namedDelimiters[strings.ToLower(s)]; ok {
		return r, nil
	}
	if s == `\t` {
		return '\t', nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("delimiter %q must be a single character", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	if r == '"' {
		return 0, fmt.Errorf("the quote character cannot be a delimiter")
	}
	return r, nil
}

func positiveInt(o tagOption) (int, error) {
	n, err := strconv.Atoi(o.value)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, fmt.Errorf("must be >= 1, got %d", n)
	}
	return n, nil
}

func flag(o tagOption) (bool, error) {
	if !o.set {
		return true, nil
	}
	return strconv.ParseBool(o.value)
}

// bindingName lower-cases the first rune: Amount becomes amount, URL
// becomes uRL.
func bindingName(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError || !unicode.IsUpper(r) {
		return name
	}
	return string(unicode.ToLower(r)) + name[size:]
}

func valueTypeOf(t reflect.Type) ValueType {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == timeType {
		return ValueDate
	}
	switch t.Kind() {
	case reflect.String:
		return ValueString
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return ValueInt
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return ValueUint
	case reflect.Float32, reflect.Float64:
		return ValueFloat
	case reflect.Bool:
		return ValueBool
	}
	return ValueOther
}
