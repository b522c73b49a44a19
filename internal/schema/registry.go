package schema

import (
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Flags mark index behavior on an attribute.
type Flags uint32

const (
	// FlagIndexed marks the attribute for equality indexing.
	FlagIndexed Flags = 1 << iota
	// FlagUnique enforces a uniqueness constraint across all records.
	// Implies FlagIndexed.
	FlagUnique
)

// Attribute is a schema attribute definition.
type Attribute struct {
	// Name is the attribute name as registered (original casing).
	Name string
	// Syntax defines canonicalisation and comparison for values.
	Syntax Syntax
	// Flags carry index behavior.
	Flags Flags
}

// OverrideFunc supplies flags for an attribute directly, bypassing the
// registered definitions and @INDEXLIST membership. It reports whether it
// handled the attribute.
type OverrideFunc func(name string) (Flags, bool)

// attrCacheSize bounds the name-resolution cache. Directory workloads touch
// a small working set of attributes per operation.
const attrCacheSize = 256

// Registry resolves attribute names to definitions. Lookups are
// case-insensitive and cached. Unknown attributes resolve to a default
// definition with the case-ignore syntax and no flags.
type Registry struct {
	mu       sync.RWMutex
	attrs    map[string]*Attribute
	cache    *lru.Cache[string, *Attribute]
	override OverrideFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	cache, _ := lru.New[string, *Attribute](attrCacheSize)
	return &Registry{
		attrs: make(map[string]*Attribute),
		cache: cache,
	}
}

// Register adds or replaces an attribute definition.
func (r *Registry) Register(attr *Attribute) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attrs[strings.ToLower(attr.Name)] = attr
	r.cache.Purge()
}

// SetOverride installs a hook that supplies flags directly. Pass nil to
// remove it.
func (r *Registry) SetOverride(fn OverrideFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.override = fn
	r.cache.Purge()
}

// HasOverride reports whether a flag override hook is installed.
func (r *Registry) HasOverride() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.override != nil
}

// AttributeByName resolves an attribute definition. Never returns nil: an
// unregistered name resolves to a default case-ignore attribute, with flags
// from the override hook when one is installed.
func (r *Registry) AttributeByName(name string) *Attribute {
	key := strings.ToLower(name)
	if a, ok := r.cache.Get(key); ok {
		return a
	}

	r.mu.RLock()
	a := r.attrs[key]
	override := r.override
	r.mu.RUnlock()

	if a == nil {
		a = &Attribute{Name: name, Syntax: caseIgnoreSyntax{}}
	}
	if override != nil {
		if flags, ok := override(name); ok {
			copied := *a
			copied.Flags = flags
			a = &copied
		}
	}

	r.cache.Add(key, a)
	return a
}

// Names returns the registered attribute names, in registration casing.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.attrs))
	for _, a := range r.attrs {
		names = append(names, a.Name)
	}
	return names
}
