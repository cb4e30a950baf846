package flatfile

import (
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
)

// Registry caches one RecordSpec per record type. Reads are lock free; the
// first build of a type is serialized so a spec is built exactly once and
// never published half done.
type Registry struct {
	specs  sync.Map // type id -> *RecordSpec
	mu     sync.Mutex
	count  atomic.Int64
	builds atomic.Int64
	log    *slog.Logger
}

// DefaultRegistry is shared by transformers created without WithRegistry.
var DefaultRegistry = NewRegistry()

// NewRegistry returns an empty registry. Specs live as long as the registry.
func NewRegistry() *Registry {
	return &Registry{log: slog.Default()}
}

// WithLogger sets the logger used for build diagnostics and returns r.
func (r *Registry) WithLogger(log *slog.Logger) *Registry {
	if log != nil {
		r.log = log
	}
	return r
}

// Resolve returns the spec for a struct type, building it from its fft tags
// on first use. A spec added with Define takes precedence over tags.
func (r *Registry) Resolve(t reflect.Type) (*RecordSpec, error) {
	if t == nil {
		return nil, configErr("resolve", "%w: nil type", ErrNotStruct)
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	typeID := TypeIDOf(t)

	if v, ok := r.specs.Load(typeID); ok {
		return v.(*RecordSpec), nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.specs.Load(typeID); ok {
		return v.(*RecordSpec), nil
	}
	if t.Kind() != reflect.Struct {
		return nil, configErr("resolve", "%w: %s", ErrNotStruct, typeID)
	}

	sep, fields, err := specFromType(t)
	if err != nil {
		return nil, err
	}
	spec, err := newRecordSpec(typeID, sep, fields, r.log)
	if err != nil {
		return nil, err
	}

	r.specs.Store(typeID, spec)
	r.count.Add(1)
	r.builds.Add(1)
	r.log.Debug("record spec built",
		"type", typeID,
		"mode", spec.Separator.Mode.String(),
		"fields", spec.Len(),
	)
	return spec, nil
}

// Define seeds the registry with a spec built elsewhere, typically from a
// YAML schema. It fails if the type id is already known.
func (r *Registry) Define(spec *RecordSpec) error {
	if spec == nil {
		return configErr("define", "nil spec")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, loaded := r.specs.LoadOrStore(spec.TypeID, spec); loaded {
		return configErr("define", "%w: %s", ErrDuplicateRecords, spec.TypeID)
	}
	r.count.Add(1)
	return nil
}

// Lookup returns a cached spec without building anything.
func (r *Registry) Lookup(typeID string) (*RecordSpec, bool) {
	v, ok := r.specs.Load(typeID)
	if !ok {
		return nil, false
	}
	return v.(*RecordSpec), true
}

// Len is the number of cached specs.
func (r *Registry) Len() int {
	return int(r.count.Load())
}
