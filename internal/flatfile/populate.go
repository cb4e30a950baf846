package flatfile

import (
	"encoding"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"
)

// fieldIndexCache maps a struct type to binding name -> field index.
var fieldIndexCache sync.Map

func fieldIndex(t reflect.Type) map[string][]int {
	if v, ok := fieldIndexCache.Load(t); ok {
		return v.(map[string][]int)
	}
	idx := make(map[string][]int, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() || sf.Name == "_" {
			continue
		}
		name := bindingName(sf.Name)
		if tag, ok := sf.Tag.Lookup(TagName); ok {
			if opts, err := splitTagOptions(tag); err == nil {
				for _, o := range opts {
					if o.key == "name" && o.value != "" {
						name = o.value
					}
				}
			}
		}
		idx[name] = sf.Index
	}
	v, _ := fieldIndexCache.LoadOrStore(t, idx)
	return v.(map[string][]int)
}

// Populate copies values into the struct dst points to, matching binding
// names to fields. Numeric and boolean tokens that do not parse leave the
// zero value unless strict is set, in which case a ParseError is returned.
func Populate(dst any, values Values, strict bool) error {
	_, err := populate(dst, values, strict)
	return err
}

// populate also reports the fields that fell back to their zero value.
func populate(dst any, values Values, strict bool) ([]string, error) {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return nil, configErr("populate", "%w: got %T", ErrNotStruct, dst)
	}
	rv = rv.Elem()
	idx := fieldIndex(rv.Type())

	var coerced []string
	for name, value := range values {
		path, ok := idx[name]
		if !ok {
			return nil, configErr("populate", "%w: %s has no field %q", ErrNoSuchField, rv.Type(), name)
		}
		fv := rv.FieldByIndex(path)
		fellBack, err := assign(fv, value, strict)
		if err != nil {
			var pe *ParseError
			if errors.As(err, &pe) {
				pe.Field = name
			}
			return nil, err
		}
		if fellBack {
			coerced = append(coerced, name)
		}
	}
	return coerced, nil
}

// assign sets fv from a bound value. It returns true when a malformed token
// was replaced by the zero value.
func assign(fv reflect.Value, value any, strict bool) (bool, error) {
	if fv.Kind() == reflect.Pointer {
		if fv.IsNil() {
			fv.Set(reflect.New(fv.Type().Elem()))
		}
		return assign(fv.Elem(), value, strict)
	}

	switch v := value.(type) {
	case time.Time:
		if fv.Type() == timeType {
			fv.Set(reflect.ValueOf(v))
			return false, nil
		}
		if fv.Kind() == reflect.String {
			fv.SetString(v.Format(time.RFC3339))
			return false, nil
		}
		return false, configErr("populate", "cannot store a date in %s", fv.Type())
	case string:
		return assignString(fv, v, strict)
	default:
		rv := reflect.ValueOf(value)
		if rv.IsValid() && rv.Type().AssignableTo(fv.Type()) {
			fv.Set(rv)
			return false, nil
		}
		return false, configErr("populate", "cannot store %T in %s", value, fv.Type())
	}
}

func assignString(fv reflect.Value, s string, strict bool) (bool, error) {
	if fv.CanAddr() && fv.Addr().Type().Implements(textUnmarshalerType) {
		u := fv.Addr().Interface().(encoding.TextUnmarshaler)
		if err := u.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
			return coerceFailure(fv, s, strict, err)
		}
		return false, nil
	}

	trimmed := strings.TrimSpace(s)
	if trimmed == "" && fv.Kind() != reflect.String {
		fv.SetZero()
		return false, nil
	}
	switch fv.Kind() {
	case reflect.String:
		fv.SetString(s)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(trimmed, 10, fv.Type().Bits())
		if err != nil {
			return coerceFailure(fv, s, strict, err)
		}
		fv.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(trimmed, 10, fv.Type().Bits())
		if err != nil {
			return coerceFailure(fv, s, strict, err)
		}
		fv.SetUint(n)
	case reflect.Float32, reflect.Float64:
		n, err := strconv.ParseFloat(trimmed, fv.Type().Bits())
		if err != nil {
			return coerceFailure(fv, s, strict, err)
		}
		fv.SetFloat(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(trimmed)
		if err != nil {
			return coerceFailure(fv, s, strict, err)
		}
		fv.SetBool(b)
	default:
		return false, configErr("populate", "unsupported field type %s", fv.Type())
	}
	return false, nil
}

func coerceFailure(fv reflect.Value, s string, strict bool, cause error) (bool, error) {
	if strict {
		return false, &ParseError{Value: s, Err: fmt.Errorf("%w: %v", ErrBadValue, cause)}
	}
	fv.SetZero()
	return true, nil
}
