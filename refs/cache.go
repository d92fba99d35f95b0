package refs

import (
	"reflect"
	"sort"

	"go.dedis.ch/dcxml"
)

// Cache maps the identifiers read to the objects produced. A reference to an
// identifier that is not produced yet is recorded, and the identifiers still
// missing at the end of the document make it invalid.
type Cache struct {
	objects   map[string]reflect.Value
	requested map[string]struct{}
	fixups    map[string][]func(reflect.Value)
}

// NewCache returns a new empty cache.
func NewCache() *Cache {
	return &Cache{
		objects:   make(map[string]reflect.Value),
		requested: make(map[string]struct{}),
		fixups:    make(map[string][]func(reflect.Value)),
	}
}

// Add registers the object under the identifier and resolves the pending
// references to it. An identifier can be defined only once.
func (c *Cache) Add(id string, obj reflect.Value) error {
	_, found := c.objects[id]
	if found {
		return dcxml.NewError(dcxml.IntegrityError, "multiple Id definition for '%s'", id)
	}

	c.objects[id] = obj
	delete(c.requested, id)

	fixups := c.fixups[id]
	delete(c.fixups, id)

	for _, fn := range fixups {
		fn(obj)
	}

	return nil
}

// Replace changes the object registered under the identifier, for example when
// a surrogate is converted back.
func (c *Cache) Replace(id string, obj reflect.Value) {
	c.objects[id] = obj
}

// Get returns the object registered under the identifier. A missing
// identifier is recorded as requested.
func (c *Cache) Get(id string) (reflect.Value, bool) {
	obj, found := c.objects[id]
	if !found {
		c.requested[id] = struct{}{}
	}

	return obj, found
}

// Has returns true if the identifier is defined.
func (c *Cache) Has(id string) bool {
	_, found := c.objects[id]
	return found
}

// Defer calls fn with the object once the identifier is defined.
func (c *Cache) Defer(id string, fn func(reflect.Value)) {
	obj, found := c.objects[id]
	if found {
		fn(obj)
		return
	}

	c.requested[id] = struct{}{}
	c.fixups[id] = append(c.fixups[id], fn)
}

// Len returns the number of objects defined.
func (c *Cache) Len() int {
	return len(c.objects)
}

// Unresolved returns the identifiers requested but never defined, sorted.
func (c *Cache) Unresolved() []string {
	ids := make([]string, 0, len(c.requested))
	for id := range c.requested {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}
