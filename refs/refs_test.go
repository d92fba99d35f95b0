package refs

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/dcxml"
)

func TestKeyOf(t *testing.T) {
	value := &struct{ A int }{}

	key, ok := KeyOf(reflect.ValueOf(value))
	require.True(t, ok)

	other, ok := KeyOf(reflect.ValueOf(value))
	require.True(t, ok)
	require.Equal(t, key, other)

	var iface interface{} = value
	other, ok = KeyOf(reflect.ValueOf(&iface).Elem())
	require.True(t, ok)
	require.Equal(t, key, other)

	// Two slices sharing the same array but not the same length are different
	// objects.
	list := []int{1, 2, 3}
	first, ok := KeyOf(reflect.ValueOf(list))
	require.True(t, ok)

	second, ok := KeyOf(reflect.ValueOf(list[:2]))
	require.True(t, ok)
	require.NotEqual(t, first, second)

	_, ok = KeyOf(reflect.ValueOf([]int{}))
	require.False(t, ok)

	_, ok = KeyOf(reflect.ValueOf((*int)(nil)))
	require.False(t, ok)

	_, ok = KeyOf(reflect.ValueOf(map[string]int(nil)))
	require.False(t, ok)

	_, ok = KeyOf(reflect.ValueOf(42))
	require.False(t, ok)

	_, ok = KeyOf(reflect.ValueOf(map[string]int{}))
	require.True(t, ok)
}

func TestTracker_GetOrAssignID(t *testing.T) {
	tracker := NewTracker()

	objects := make([]*int, 20)
	for i := range objects {
		objects[i] = new(int)

		id, isNew, err := tracker.GetOrAssignID(reflect.ValueOf(objects[i]))
		require.NoError(t, err)
		require.True(t, isNew)
		require.Equal(t, i+1, id)
	}

	require.Equal(t, 20, tracker.Len())

	// The identifiers survive the growth of the inline array.
	for i, obj := range objects {
		id, found := tracker.Lookup(reflect.ValueOf(obj))
		require.True(t, found)
		require.Equal(t, i+1, id)

		id, isNew, err := tracker.GetOrAssignID(reflect.ValueOf(obj))
		require.NoError(t, err)
		require.False(t, isNew)
		require.Equal(t, i+1, id)
	}

	_, found := tracker.Lookup(reflect.ValueOf(42))
	require.False(t, found)

	_, _, err := tracker.GetOrAssignID(reflect.ValueOf(42))
	require.ErrorIs(t, err, dcxml.ErrIntegrity)
}

func TestTracker_Limit(t *testing.T) {
	tracker := NewTracker()
	tracker.SetLimit(2)

	_, _, err := tracker.GetOrAssignID(reflect.ValueOf(new(int)))
	require.NoError(t, err)

	_, _, err = tracker.GetOrAssignID(reflect.ValueOf(new(int)))
	require.NoError(t, err)

	_, _, err = tracker.GetOrAssignID(reflect.ValueOf(new(int)))
	require.ErrorIs(t, err, dcxml.ErrIntegrity)
	require.EqualError(t, err, "integrity error: object table overflow: more than 2 objects")
}

func TestTracker_ReassignAndAlias(t *testing.T) {
	tracker := NewTracker()

	original := new(int)
	replacement := new(string)

	id, _, err := tracker.GetOrAssignID(reflect.ValueOf(original))
	require.NoError(t, err)

	tracker.ReassignID(id, reflect.ValueOf(original), reflect.ValueOf(replacement))

	found, ok := tracker.Lookup(reflect.ValueOf(replacement))
	require.True(t, ok)
	require.Equal(t, id, found)

	found, ok = tracker.Lookup(reflect.ValueOf(original))
	require.True(t, ok)
	require.Equal(t, id, found)

	other := new(int)
	tracker.Alias(reflect.ValueOf(other), id)

	found, ok = tracker.Lookup(reflect.ValueOf(other))
	require.True(t, ok)
	require.Equal(t, id, found)

	// The next identifier is not consumed by the replacements.
	next, _, err := tracker.GetOrAssignID(reflect.ValueOf(new(int)))
	require.NoError(t, err)
	require.Equal(t, id+1, next)
}

func TestFormatID(t *testing.T) {
	require.Equal(t, "i1", FormatID(1))
	require.Equal(t, "i42", FormatID(42))
}

func TestCache(t *testing.T) {
	cache := NewCache()

	value := reflect.ValueOf(new(int))

	_, found := cache.Get("i1")
	require.False(t, found)
	require.Equal(t, []string{"i1"}, cache.Unresolved())

	var resolved reflect.Value
	cache.Defer("i1", func(v reflect.Value) { resolved = v })
	require.False(t, resolved.IsValid())

	err := cache.Add("i1", value)
	require.NoError(t, err)
	require.Equal(t, value, resolved)
	require.Empty(t, cache.Unresolved())
	require.True(t, cache.Has("i1"))
	require.Equal(t, 1, cache.Len())

	err = cache.Add("i1", value)
	require.ErrorIs(t, err, dcxml.ErrIntegrity)
	require.EqualError(t, err, "integrity error: multiple Id definition for 'i1'")

	// A deferred reference to a defined id resolves immediately.
	resolved = reflect.Value{}
	cache.Defer("i1", func(v reflect.Value) { resolved = v })
	require.Equal(t, value, resolved)

	replacement := reflect.ValueOf("replacement")
	cache.Replace("i1", replacement)

	obj, found := cache.Get("i1")
	require.True(t, found)
	require.Equal(t, replacement, obj)

	cache.Defer("i3", func(reflect.Value) {})
	cache.Get("i2")
	require.Equal(t, []string{"i2", "i3"}, cache.Unresolved())
}

func TestStack(t *testing.T) {
	stack := NewStack()

	obj := reflect.ValueOf(new(int))

	require.True(t, stack.Enter(obj))
	require.False(t, stack.Enter(obj))
	require.Equal(t, 1, stack.Len())

	require.True(t, stack.Enter(reflect.ValueOf(42)))
	stack.Leave(reflect.ValueOf(42))

	stack.Leave(obj)
	require.Equal(t, 0, stack.Len())
	require.True(t, stack.Enter(obj))
}
