package flatfile

import (
	"reflect"
	"sync"
)

// Factory creates empty destination records by type id.
type Factory interface {
	New(typeID string) (any, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(typeID string) (any, error)

func (f FactoryFunc) New(typeID string) (any, error) { return f(typeID) }

// Constructors is an allow-list Factory. Only registered type ids can be
// built; anything else is a SecurityError.
type Constructors struct {
	mu    sync.RWMutex
	ctors map[string]func() any
}

// NewConstructors returns an empty allow-list.
func NewConstructors() *Constructors {
	return &Constructors{ctors: make(map[string]func() any)}
}

// Register allows typeID and sets its constructor. Registering again
// replaces the constructor.
func (c *Constructors) Register(typeID string, ctor func() any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ctors[typeID] = ctor
}

// Allow registers new(T) for T's type id.
func Allow[T any](c *Constructors) {
	c.Register(TypeIDOf(reflect.TypeFor[T]()), func() any { return new(T) })
}

// Allowed reports whether typeID is registered.
func (c *Constructors) Allowed(typeID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.ctors[typeID]
	return ok
}

// New implements Factory.
func (c *Constructors) New(typeID string) (any, error) {
	c.mu.RLock()
	ctor, ok := c.ctors[typeID]
	c.mu.RUnlock()

	if !ok {
		return nil, &SecurityError{TypeID: typeID}
	}
	if ctor == nil {
		return nil, configErr("construct", "%s: nil constructor", typeID)
	}
	v := ctor()
	if v == nil {
		return nil, configErr("construct", "%s: constructor returned nil", typeID)
	}
	return v, nil
}
