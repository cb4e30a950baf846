package flatfile

import (
	"errors"
	"fmt"
)

// Error classes. Every error returned by this package matches exactly one of
// them with errors.Is.
var (
	ErrConfig   = errors.New("flatfile: configuration error")
	ErrParse    = errors.New("flatfile: parse error")
	ErrSecurity = errors.New("flatfile: instantiation not allowed")
)

// Row-level causes, wrapped in a *ParseError.
var (
	ErrMissingToken = errors.New("missing token")
	ErrLineTooShort = errors.New("line too short")
	ErrBadColumns   = errors.New("invalid column bounds")
	ErrBadDate      = errors.New("invalid date")
	ErrBadValue     = errors.New("invalid value")
	ErrRequired     = errors.New("required field is empty")
	ErrLineTooLong  = errors.New("line too long")
)

// Source causes, wrapped in a *ConfigError.
var (
	ErrSourceNotFound   = errors.New("file not found")
	ErrIsDirectory      = errors.New("path is a directory")
	ErrFileTooLarge     = errors.New("file too large")
	ErrNotReadable      = errors.New("file not readable")
	ErrSourceConsumed   = errors.New("source already consumed")
	ErrUnknownEncoding  = errors.New("unknown encoding")
	ErrNotStruct        = errors.New("record type must be a struct")
	ErrNoSuchField      = errors.New("no such field")
	ErrDuplicateRecords = errors.New("record type already defined")
)

// ParseError is a per-row failure: a missing token, a bad fixed-width
// slice, a malformed date or a strict coercion failure.
type ParseError struct {
	Line     int    // 1-based line number, 0 outside a stream
	Position int    // 1-based token position, 0 if not field specific
	Field    string // binding name
	Value    string // offending token
	Err      error
}

func (e *ParseError) Error() string {
	msg := "parse error"
	if e.Line > 0 {
		msg += fmt.Sprintf(" on line %d", e.Line)
	}
	if e.Field != "" {
		msg += fmt.Sprintf(" in field %q", e.Field)
	}
	if e.Position > 0 {
		msg += fmt.Sprintf(" (position %d)", e.Position)
	}
	if e.Value != "" {
		msg += fmt.Sprintf(" value %q", e.Value)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() []error { return []error{ErrParse, e.Err} }

// ConfigError reports a problem with the record declaration, the options or
// the source. It is fatal for a stream.
type ConfigError struct {
	Op  string
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("flatfile %s: %v", e.Op, e.Err)
}

func (e *ConfigError) Unwrap() []error { return []error{ErrConfig, e.Err} }

// SecurityError is returned when a factory is asked for a type it was not
// told to build.
type SecurityError struct {
	TypeID string
}

func (e *SecurityError) Error() string {
	return fmt.Sprintf("flatfile: type %q is not registered for instantiation", e.TypeID)
}

func (e *SecurityError) Unwrap() error { return ErrSecurity }

// RowError is what a listener receives for an unresolvable line.
type RowError struct {
	Line int
	Raw  string
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d unresolvable: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

func configErr(op string, format string, args ...any) *ConfigError {
	return &ConfigError{Op: op, Err: fmt.Errorf(format, args...)}
}
