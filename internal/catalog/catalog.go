// Package catalog keeps the named record formats the service can decode.
// Each format binds a flatfile record type to a Postgres table so decoded
// rows can be copied in bulk. Formats register themselves from init
// functions, the way database/sql drivers do.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/JonMunkholm/flatfile/internal/flatfile"
)

var (
	registry   = make(map[string]Definition)
	registryMu sync.RWMutex
)

// Info contains display information about a format.
type Info struct {
	Key         string   // Unique identifier: "cards_fixed"
	Label       string   // Display name: "Card transactions (fixed width)"
	Description string   // One-line summary for listings
	Mode        string   // "delimited" or "fixed"
	Table       string   // Destination table for persisted rows
	Columns     []string // Bound field names in position order
}

// RowHandler receives the rows of one decode. Returning false stops it.
type RowHandler interface {
	HandleRecord(rec any) bool
	HandleUnresolved(row *flatfile.RowError) bool
}

// HandlerFuncs adapts closures to a RowHandler. A nil callback continues.
type HandlerFuncs struct {
	OnRecord     func(rec any) bool
	OnUnresolved func(row *flatfile.RowError) bool
}

func (h HandlerFuncs) HandleRecord(rec any) bool {
	if h.OnRecord == nil {
		return true
	}
	return h.OnRecord(rec)
}

func (h HandlerFuncs) HandleUnresolved(row *flatfile.RowError) bool {
	if h.OnUnresolved == nil {
		return true
	}
	return h.OnUnresolved(row)
}

// Tee fans rows out to every handler in order. The decode continues only
// while all of them return true.
func Tee(hs ...RowHandler) RowHandler {
	return tee(hs)
}

type tee []RowHandler

func (t tee) HandleRecord(rec any) bool {
	ok := true
	for _, h := range t {
		ok = h.HandleRecord(rec) && ok
	}
	return ok
}

func (t tee) HandleUnresolved(row *flatfile.RowError) bool {
	ok := true
	for _, h := range t {
		ok = h.HandleUnresolved(row) && ok
	}
	return ok
}

// DecodeFunc decodes src and hands each row to h. opts are applied after
// the format's own options.
type DecodeFunc func(ctx context.Context, src flatfile.Source, h RowHandler, opts ...flatfile.Option) (flatfile.Stats, error)

// CopyRowFunc converts a decoded record to a row of values for the COPY
// protocol. Values must be in CopyColumns order.
type CopyRowFunc func(rec any) []any

// Definition contains everything needed to decode and store one format.
type Definition struct {
	Info   Info
	Decode DecodeFunc

	// CopyColumns lists the table's columns in the order CopyRow returns
	// values. The run_id column is added by the store.
	CopyColumns []string
	CopyRow     CopyRowFunc
}

// SupportsCopy reports whether rows of this format can be persisted.
func (d Definition) SupportsCopy() bool {
	return d.Info.Table != "" && len(d.CopyColumns) > 0 && d.CopyRow != nil
}

// Register adds a format definition to the catalog.
// Panics if a format with the same key is already registered.
func Register(def Definition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if def.Info.Key == "" {
		panic("catalog: format registered without a key")
	}
	if def.Decode == nil {
		panic(fmt.Sprintf("catalog: format %s has no decoder", def.Info.Key))
	}
	if _, exists := registry[def.Info.Key]; exists {
		panic(fmt.Sprintf("format already registered: %s", def.Info.Key))
	}

	registry[def.Info.Key] = def
}

// Get returns a format definition by key.
// Returns false if not found.
func Get(key string) (Definition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[key]
	return def, ok
}

// All returns all registered formats sorted by key.
func All() []Definition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]Definition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Info.Key < result[j].Info.Key
	})

	return result
}

// Keys returns the registered format keys in sorted order.
func Keys() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	keys := make([]string, 0, len(registry))
	for k := range registry {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Count returns the number of registered formats.
func Count() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// Clear removes all registered formats.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]Definition)
}
