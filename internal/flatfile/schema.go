package flatfile

import (
	"bytes"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Schema is the YAML form of a record declaration. It describes the same
// things as fft struct tags and is loaded into a Registry with Define.
//
//	type: example.com/cards.Card
//	mode: fixed
//	fields:
//	  - {name: nameOnCard, pos: 1, start: 1, end: 13}
//	  - {name: transactionDate, pos: 2, type: date, format: MMddyyyy, start: 14, end: 21}
type Schema struct {
	Type          string        `yaml:"type"`
	Mode          string        `yaml:"mode"`
	Delimiter     string        `yaml:"delimiter"`
	SkipFirstLine bool          `yaml:"skipFirstLine"`
	Factory       string        `yaml:"factory"`
	Fields        []SchemaField `yaml:"fields"`
}

// SchemaField is one entry of Schema.Fields.
type SchemaField struct {
	Name     string `yaml:"name"`
	Pos      int    `yaml:"pos"`
	Type     string `yaml:"type"`
	Required bool   `yaml:"required"`
	Skip     bool   `yaml:"skip"`
	Format   string `yaml:"format"`
	Start    int    `yaml:"start"`
	End      int    `yaml:"end"`
}

// ParseSchema decodes one YAML schema document into a RecordSpec.
func ParseSchema(data []byte) (*RecordSpec, error) {
	var s Schema
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, &ConfigError{Op: "parse schema", Err: err}
	}
	return s.RecordSpec()
}

// LoadSchema reads a YAML schema from r.
func LoadSchema(r io.Reader) (*RecordSpec, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &ConfigError{Op: "load schema", Err: err}
	}
	return ParseSchema(data)
}

// RecordSpec validates the schema and builds the spec.
func (s Schema) RecordSpec() (*RecordSpec, error) {
	if s.Type == "" {
		return nil, configErr("parse schema", "missing type")
	}

	mode, err := ParseMode(s.Mode)
	if err != nil {
		return nil, &ConfigError{Op: "parse schema", Err: fmt.Errorf("%s: %w", s.Type, err)}
	}
	delim, err := ParseDelimiter(s.Delimiter)
	if err != nil {
		return nil, &ConfigError{Op: "parse schema", Err: fmt.Errorf("%s: %w", s.Type, err)}
	}
	sep := Separator{
		Mode:          mode,
		Delimiter:     delim,
		SkipFirstLine: s.SkipFirstLine,
		Factory:       s.Factory,
	}

	fields := make([]FieldSpec, 0, len(s.Fields))
	for i, sf := range s.Fields {
		if sf.Name == "" {
			return nil, configErr("parse schema", "%s: field %d has no name", s.Type, i+1)
		}
		vt, err := ParseValueType(sf.Type)
		if err != nil {
			return nil, &ConfigError{Op: "parse schema", Err: fmt.Errorf("%s.%s: %w", s.Type, sf.Name, err)}
		}
		fields = append(fields, FieldSpec{
			Name:       sf.Name,
			Type:       vt,
			Required:   sf.Required,
			Position:   sf.Pos,
			Skip:       sf.Skip,
			DateFormat: sf.Format,
			Start:      sf.Start,
			End:        sf.End,
		})
	}
	return NewRecordSpec(s.Type, sep, fields)
}
