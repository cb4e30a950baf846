package flatfile

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
)

// ValueType is the conversion class of a field.
type ValueType int

const (
	ValueString ValueType = iota
	ValueInt
	ValueUint
	ValueFloat
	ValueBool
	ValueDate
	ValueOther
)

var valueTypeNames = map[ValueType]string{
	ValueString: "string",
	ValueInt:    "int",
	ValueUint:   "uint",
	ValueFloat:  "float",
	ValueBool:   "bool",
	ValueDate:   "date",
	ValueOther:  "other",
}

func (t ValueType) String() string {
	if s, ok := valueTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("ValueType(%d)", int(t))
}

// ParseValueType is the inverse of String. An empty name means string.
func ParseValueType(name string) (ValueType, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ValueString, nil
	}
	for t, s := range valueTypeNames {
		if s == name {
			return t, nil
		}
	}
	return ValueOther, fmt.Errorf("unknown value type %q", name)
}

// SeparatorMode selects how a line is split into tokens.
type SeparatorMode int

const (
	ModeCharacter  SeparatorMode = iota // split on a delimiter rune, honoring quotes
	ModeFixedWidth                      // slice 1-based column ranges
)

func (m SeparatorMode) String() string {
	switch m {
	case ModeCharacter:
		return "delimited"
	case ModeFixedWidth:
		return "fixed"
	default:
		return fmt.Sprintf("SeparatorMode(%d)", int(m))
	}
}

// ParseMode accepts "delimited" (or "character") and "fixed" (or
// "fixed-width"). An empty string is delimited.
func ParseMode(s string) (SeparatorMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "delimited", "character":
		return ModeCharacter, nil
	case "fixed", "fixed-width", "fixedwidth":
		return ModeFixedWidth, nil
	default:
		return ModeCharacter, fmt.Errorf("unknown separator mode %q", s)
	}
}

// DefaultDelimiter is used when a record declares no delimiter or a blank one.
const DefaultDelimiter = ' '

// DefaultFactory names the built-in allow-list factory.
const DefaultFactory = "default"

// Separator carries the record-level defaults declared on a type.
type Separator struct {
	Mode          SeparatorMode
	Delimiter     rune
	SkipFirstLine bool
	Factory       string
}

func (s Separator) withDefaults() Separator {
	if s.Delimiter == 0 {
		s.Delimiter = DefaultDelimiter
	}
	if s.Factory == "" {
		s.Factory = DefaultFactory
	}
	return s
}

// FieldSpec describes one bound field of a record.
type FieldSpec struct {
	Name       string    // binding key
	Type       ValueType // conversion class
	Required   bool      // advisory unless strict-required is on
	Position   int       // 1-based token position
	Skip       bool      // consume the position but never bind it
	DateFormat string    // pattern for ValueDate fields
	Start      int       // 1-based inclusive start column, fixed width only
	End        int       // 1-based inclusive end column, fixed width only

	layout string // Go layout compiled from DateFormat
}

// Index is the zero-based key of the field inside its RecordSpec.
func (f FieldSpec) Index() int { return f.Position - 1 }

// Layout returns the Go time layout used for date fields.
func (f FieldSpec) Layout() string { return f.layout }

// RecordSpec is the immutable field map of one record type. It is built once
// and shared by every Transformer for that type.
type RecordSpec struct {
	TypeID    string
	Separator Separator

	fields    map[int]FieldSpec
	positions []int
}

// NewRecordSpec validates fields and builds a RecordSpec. When two fields
// claim the same position the later one wins.
func NewRecordSpec(typeID string, sep Separator, fields []FieldSpec) (*RecordSpec, error) {
	return newRecordSpec(typeID, sep, fields, slog.Default())
}

func newRecordSpec(typeID string, sep Separator, fields []FieldSpec, log *slog.Logger) (*RecordSpec, error) {
	if typeID == "" {
		return nil, configErr("build spec", "empty type id")
	}
	if sep.Mode != ModeCharacter && sep.Mode != ModeFixedWidth {
		return nil, configErr("build spec", "%s: unknown separator mode %d", typeID, int(sep.Mode))
	}
	if sep.Delimiter == '"' {
		return nil, configErr("build spec", "%s: the quote character cannot be a delimiter", typeID)
	}

	spec := &RecordSpec{
		TypeID:    typeID,
		Separator: sep.withDefaults(),
		fields:    make(map[int]FieldSpec, len(fields)),
	}

	for _, f := range fields {
		if f.Position < 1 {
			return nil, configErr("build spec", "%s.%s: position must be >= 1, got %d", typeID, f.Name, f.Position)
		}
		if f.Type == ValueDate && !f.Skip {
			if strings.TrimSpace(f.DateFormat) == "" {
				return nil, configErr("build spec", "%s.%s: date field has no format", typeID, f.Name)
			}
			layout, err := DateLayout(f.DateFormat)
			if err != nil {
				return nil, &ConfigError{Op: "build spec", Err: fmt.Errorf("%s.%s: %w", typeID, f.Name, err)}
			}
			f.layout = layout
		}

		if prev, ok := spec.fields[f.Index()]; ok {
			log.Debug("position collision, last declaration wins",
				"type", typeID,
				"position", f.Position,
				"replaced", prev.Name,
				"field", f.Name,
			)
		} else {
			spec.positions = append(spec.positions, f.Index())
		}
		spec.fields[f.Index()] = f
	}

	slices.Sort(spec.positions)
	return spec, nil
}

// Positions returns the occupied zero-based indices in ascending order.
func (s *RecordSpec) Positions() []int {
	return slices.Clone(s.positions)
}

// Field returns the field at a zero-based index.
func (s *RecordSpec) Field(index int) (FieldSpec, bool) {
	f, ok := s.fields[index]
	return f, ok
}

// Fields returns the fields in position order.
func (s *RecordSpec) Fields() []FieldSpec {
	out := make([]FieldSpec, 0, len(s.positions))
	for _, idx := range s.positions {
		out = append(out, s.fields[idx])
	}
	return out
}

// Len is the number of occupied positions.
func (s *RecordSpec) Len() int { return len(s.positions) }

// Names returns the bound (non-skipped) field names in position order.
func (s *RecordSpec) Names() []string {
	names := make([]string, 0, len(s.positions))
	for _, idx := range s.positions {
		if f := s.fields[idx]; !f.Skip {
			names = append(names, f.Name)
		}
	}
	return names
}
