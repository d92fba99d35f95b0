// Package refs implements the object identity bookkeeping of the traversals.
// The tracker assigns identifiers to the objects written, the cache resolves
// them back to the objects read.
package refs

import (
	"math"
	"reflect"
	"strconv"

	"go.dedis.ch/dcxml"
)

// inlineCapacity is the number of objects tracked before a table is allocated.
const inlineCapacity = 8

// DefaultLimit is the maximum number of objects a tracker identifies.
const DefaultLimit = math.MaxInt32

// Key is the identity of an object: the address of its data and, for slices,
// its length as two slices of different lengths are different objects.
type Key struct {
	typ    reflect.Type
	ptr    uintptr
	length int
}

// KeyOf returns the identity of the value. Only the pointers, maps and
// non-empty slices have an identity.
func KeyOf(v reflect.Value) (Key, bool) {
	switch v.Kind() {
	case reflect.Ptr, reflect.Map:
		if v.IsNil() {
			return Key{}, false
		}

		return Key{typ: v.Type(), ptr: v.Pointer()}, true
	case reflect.Slice:
		// The empty slices can share the same address.
		if v.Len() == 0 {
			return Key{}, false
		}

		return Key{typ: v.Type(), ptr: v.Pointer(), length: v.Len()}, true
	case reflect.Interface:
		if v.IsNil() {
			return Key{}, false
		}

		return KeyOf(v.Elem())
	default:
		return Key{}, false
	}
}

type tracked struct {
	key Key
	id  int
	// The value is kept so that the address cannot be reused during the
	// operation.
	value reflect.Value
}

// Tracker assigns increasing identifiers to the objects, starting at 1. The
// first objects are kept in an inline array, a table is allocated when it is
// full. A tracker is used by a single operation.
type Tracker struct {
	inline [inlineCapacity]tracked
	count  int
	table  map[Key]tracked
	next   int
	limit  int
}

// NewTracker returns a new empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		next:  1,
		limit: DefaultLimit,
	}
}

// SetLimit changes the maximum number of identifiers.
func (t *Tracker) SetLimit(limit int) {
	t.limit = limit
}

// Len returns the number of objects tracked.
func (t *Tracker) Len() int {
	if t.table != nil {
		return len(t.table)
	}

	return t.count
}

// Lookup returns the identifier of the object if it has one.
func (t *Tracker) Lookup(v reflect.Value) (int, bool) {
	key, ok := KeyOf(v)
	if !ok {
		return 0, false
	}

	return t.lookup(key)
}

// GetOrAssignID returns the identifier of the object and true if the
// identifier has just been assigned, which means the object is written for
// the first time. It returns an integrity error when the limit is reached.
func (t *Tracker) GetOrAssignID(v reflect.Value) (int, bool, error) {
	key, ok := KeyOf(v)
	if !ok {
		return 0, false, dcxml.NewError(dcxml.IntegrityError,
			"value of type %v has no identity", v.Type())
	}

	id, found := t.lookup(key)
	if found {
		return id, false, nil
	}

	if t.next > t.limit {
		return 0, false, dcxml.NewError(dcxml.IntegrityError,
			"object table overflow: more than %d objects", t.limit)
	}

	id = t.next
	t.next++

	t.store(tracked{key: key, id: id, value: v})

	return id, true, nil
}

// ReassignID binds the identifier of an object to its replacement. The
// original object keeps the identifier as well so that both resolve to the
// same node.
func (t *Tracker) ReassignID(id int, original, replacement reflect.Value) {
	key, ok := KeyOf(replacement)
	if !ok {
		return
	}

	_, found := t.lookup(key)
	if found {
		return
	}

	t.store(tracked{key: key, id: id, value: replacement})
}

// Alias binds the object to an identifier already assigned.
func (t *Tracker) Alias(v reflect.Value, id int) {
	key, ok := KeyOf(v)
	if !ok {
		return
	}

	t.store(tracked{key: key, id: id, value: v})
}

func (t *Tracker) lookup(key Key) (int, bool) {
	if t.table != nil {
		e, found := t.table[key]
		return e.id, found
	}

	for i := 0; i < t.count; i++ {
		if t.inline[i].key == key {
			return t.inline[i].id, true
		}
	}

	return 0, false
}

func (t *Tracker) store(e tracked) {
	if t.table == nil && t.count < inlineCapacity {
		t.inline[t.count] = e
		t.count++
		return
	}

	if t.table == nil {
		t.table = make(map[Key]tracked, 2*inlineCapacity)
		for _, prev := range t.inline[:t.count] {
			t.table[prev.key] = prev
		}

		t.inline = [inlineCapacity]tracked{}
	}

	t.table[e.key] = e
}

// FormatID returns the textual identifier written in the documents.
func FormatID(id int) string {
	return "i" + strconv.Itoa(id)
}
