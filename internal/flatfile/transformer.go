package flatfile

import (
	"fmt"
	"log/slog"
	"reflect"

	"golang.org/x/text/encoding"
)

// Transformer decodes lines into records of type T. It is immutable after
// New and safe for concurrent use.
type Transformer[T any] struct {
	spec     *RecordSpec
	sep      Separator
	typeID   string
	factory  Factory
	encoding encoding.Encoding
	limits   Limits
	bind     BindOptions
	strict   bool
	log      *slog.Logger
}

// New resolves T's record spec and applies opts. Declaration problems are
// reported here, before any input is read.
func New[T any](opts ...Option) (*Transformer[T], error) {
	s := settings{limits: DefaultLimits()}
	for _, opt := range opts {
		opt(&s)
	}
	if s.registry == nil {
		s.registry = DefaultRegistry
	}
	if s.log == nil {
		s.log = slog.Default()
	}

	rt := reflect.TypeFor[T]()
	spec, err := s.registry.Resolve(rt)
	if err != nil {
		return nil, err
	}

	sep := spec.Separator
	for _, apply := range s.separator {
		apply(&sep)
	}
	sep = sep.withDefaults()
	if sep.Mode != ModeCharacter && sep.Mode != ModeFixedWidth {
		return nil, configErr("new transformer", "unknown separator mode %d", int(sep.Mode))
	}
	if sep.Delimiter == '"' {
		return nil, configErr("new transformer", "the quote character cannot be a delimiter")
	}

	factory, err := pickFactory[T](sep.Factory, s.factories)
	if err != nil {
		return nil, err
	}

	enc, err := lookupEncoding(s.encoding)
	if err != nil {
		return nil, &ConfigError{Op: "new transformer", Err: err}
	}

	limits := s.limits.normalized()
	return &Transformer[T]{
		spec:     spec,
		sep:      sep,
		typeID:   spec.TypeID,
		factory:  factory,
		encoding: enc,
		limits:   limits,
		bind: BindOptions{
			MaxFixedSpan:   limits.MaxFixedSpan,
			StrictRequired: s.strictRequired,
		},
		strict: s.strictCoercion,
		log:    s.log.With("record", spec.TypeID),
	}, nil
}

// MustNew is New for package-level declarations. It panics on error.
func MustNew[T any](opts ...Option) *Transformer[T] {
	t, err := New[T](opts...)
	if err != nil {
		panic(fmt.Sprintf("flatfile: %v", err))
	}
	return t
}

func pickFactory[T any](name string, named map[string]Factory) (Factory, error) {
	if f, ok := named[name]; ok && f != nil {
		return f, nil
	}
	if name == DefaultFactory {
		c := NewConstructors()
		Allow[T](c)
		return c, nil
	}
	return nil, configErr("new transformer", "unknown factory %q", name)
}

// Spec returns the shared record spec.
func (t *Transformer[T]) Spec() *RecordSpec { return t.spec }

// Separator returns the effective separator after option overrides.
func (t *Transformer[T]) Separator() Separator { return t.sep }

// Limits returns the effective limits.
func (t *Transformer[T]) Limits() Limits { return t.limits }

// LoadRecord decodes one line. Every failure is returned, including per-row
// parse errors.
func (t *Transformer[T]) LoadRecord(line string) (*T, error) {
	values, err := Bind(line, t.spec, t.sep, t.bind)
	if err != nil {
		return nil, err
	}

	obj, err := t.factory.New(t.typeID)
	if err != nil {
		return nil, err
	}
	rec, ok := obj.(*T)
	if !ok {
		return nil, configErr("construct", "factory returned %T, want %T", obj, rec)
	}

	coerced, err := populate(rec, values, t.strict)
	if err != nil {
		return nil, err
	}
	if len(coerced) > 0 {
		t.log.Debug("malformed values replaced by zero", "fields", coerced)
	}
	return rec, nil
}
