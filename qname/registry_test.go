package qname

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/dcxml"
)

const testNamespace = DefaultNamespacePrefix + "go.dedis.ch/dcxml/qname"

func TestName_String(t *testing.T) {
	require.Equal(t, "local", New("local", "").String())
	require.Equal(t, "{urn:a}local", New("local", "urn:a").String())
	require.True(t, Name{}.IsZero())
	require.False(t, New("a", "").IsZero())
}

func TestRegistry_Builtins(t *testing.T) {
	r := NewRegistry(nil)

	name, err := r.StableName(reflect.TypeOf(0))
	require.NoError(t, err)
	require.Equal(t, New("long", SchemaNamespace), name)

	name, err = r.StableName(reflect.TypeOf(new(string)))
	require.NoError(t, err)
	require.Equal(t, New("string", SchemaNamespace), name)

	name, err = r.StableName(reflect.TypeOf(time.Second))
	require.NoError(t, err)
	require.Equal(t, New("duration", SerializationNamespace), name)

	// A named scalar takes the name of its underlying type.
	name, err = r.StableName(reflect.TypeOf(testLabel("")))
	require.NoError(t, err)
	require.Equal(t, New("string", SchemaNamespace), name)
}

func TestRegistry_Collections(t *testing.T) {
	r := NewRegistry(nil)

	name, err := r.StableName(reflect.TypeOf([]int{}))
	require.NoError(t, err)
	require.Equal(t, New("ArrayOflong", ArraysNamespace), name)

	name, err = r.StableName(reflect.TypeOf([3]testItem{}))
	require.NoError(t, err)
	require.Equal(t, New("ArrayOftestItem", testNamespace), name)

	name, err = r.StableName(reflect.TypeOf(map[string]int{}))
	require.NoError(t, err)
	require.Equal(t, New("ArrayOfKeyValueOfstringlong", ArraysNamespace), name)

	// The arguments outside of the built-in namespaces are disambiguated.
	name, err = r.StableName(reflect.TypeOf(map[string]testItem{}))
	require.NoError(t, err)
	require.Regexp(t, "^ArrayOfKeyValueOfstringtestItem[a-z2-7]{8}$", name.Local)
	require.Equal(t, ArraysNamespace, name.Namespace)

	require.Equal(t, New("KeyValueOfstringlong", ArraysNamespace),
		KeyValueName(New("string", SchemaNamespace), New("long", SchemaNamespace)))
}

func TestRegistry_Named(t *testing.T) {
	r := NewRegistry(nil)

	name, err := r.StableName(reflect.TypeOf(testItem{}))
	require.NoError(t, err)
	require.Equal(t, New("testItem", testNamespace), name)

	name, err = r.StableName(reflect.TypeOf(testGeneric[int]{}))
	require.NoError(t, err)
	require.Equal(t, New("testGenericOflong", testNamespace), name)

	// A named argument can choose its own name, it must be bound.
	_, err = r.StableName(reflect.TypeOf(testGeneric[testItem]{}))
	require.ErrorIs(t, err, dcxml.ErrContract)
	require.Contains(t, err.Error(), "must be bound as a generic argument")

	name, err = r.StableName(reflect.TypeOf(testGeneric[[]string]{}))
	require.NoError(t, err)
	require.Equal(t, New("testGenericOfArrayOfstring", testNamespace), name)
}

func TestRegistry_Hint(t *testing.T) {
	r := NewRegistry(func(t reflect.Type) (Hint, bool) {
		switch t {
		case reflect.TypeOf(testItem{}):
			return Hint{Name: "Item", Namespace: "urn:items"}, true
		case reflect.TypeOf(testGeneric[int]{}):
			return Hint{Name: "Box{0}", Arguments: []reflect.Type{reflect.TypeOf(0)}}, true
		case reflect.TypeOf(testGeneric[string]{}):
			return Hint{Name: "Box{1}"}, true
		case reflect.TypeOf(testGeneric[bool]{}):
			return Hint{Name: "Box{#}"}, true
		}

		return Hint{}, false
	})

	name, err := r.StableName(reflect.TypeOf(testItem{}))
	require.NoError(t, err)
	require.Equal(t, New("Item", "urn:items"), name)

	name, err = r.StableName(reflect.TypeOf(testGeneric[int]{}))
	require.NoError(t, err)
	require.Equal(t, New("Boxlong", testNamespace), name)

	_, err = r.StableName(reflect.TypeOf(testGeneric[string]{}))
	require.ErrorIs(t, err, dcxml.ErrContract)
	require.Contains(t, err.Error(), "generic parameter {1} is not bound")

	name, err = r.StableName(reflect.TypeOf(testGeneric[bool]{}))
	require.NoError(t, err)
	require.Regexp(t, "^Box[a-z2-7]{8}$", name.Local)

	// The items take the name chosen by the type.
	name, err = r.StableName(reflect.TypeOf([]testItem{}))
	require.NoError(t, err)
	require.Equal(t, New("ArrayOfItem", "urn:items"), name)
}

func TestRegistry_BoundArguments(t *testing.T) {
	r := NewRegistry(func(t reflect.Type) (Hint, bool) {
		switch t {
		case reflect.TypeOf(testItem{}):
			return Hint{Name: "Custom", Namespace: "urn:custom"}, true
		case reflect.TypeOf(testGeneric[testItem]{}):
			return Hint{Arguments: []reflect.Type{reflect.TypeOf(testItem{})}}, true
		case reflect.TypeOf(testGeneric[testLabel]{}):
			return Hint{Arguments: []reflect.Type{reflect.TypeOf(testLabel(""))}}, true
		}

		return Hint{}, false
	})

	// The argument is named after its own choice, and its namespace is
	// digested as it differs from the one of the generic type.
	name, err := r.StableName(reflect.TypeOf(testGeneric[testItem]{}))
	require.NoError(t, err)
	require.Regexp(t, "^testGenericOfCustom[a-z2-7]{8}$", name.Local)
	require.Equal(t, testNamespace, name.Namespace)

	name, err = r.StableName(reflect.TypeOf(testGeneric[testLabel]{}))
	require.NoError(t, err)
	require.Equal(t, New("testGenericOfstring", testNamespace), name)
}

func TestRegistry_Errors(t *testing.T) {
	r := NewRegistry(nil)

	_, err := r.StableName(nil)
	require.ErrorIs(t, err, dcxml.ErrContract)

	_, err = r.StableName(reflect.TypeOf(make(chan int)))
	require.ErrorIs(t, err, dcxml.ErrContract)

	_, err = r.StableName(reflect.TypeOf(struct{ A int }{}))
	require.ErrorIs(t, err, dcxml.ErrContract)
	require.Contains(t, err.Error(), "anonymous type")

	// The error is cached with the name.
	_, err = r.StableName(reflect.TypeOf([]func(){}))
	require.ErrorIs(t, err, dcxml.ErrContract)

	_, err = r.StableName(reflect.TypeOf([]func(){}))
	require.ErrorIs(t, err, dcxml.ErrContract)
}

func TestEncodeLocalName(t *testing.T) {
	require.Equal(t, "Simple", EncodeLocalName("Simple"))
	require.Equal(t, "a_x0020_b", EncodeLocalName("a b"))
	require.Equal(t, "_x0031_abc", EncodeLocalName("1abc"))
	require.Equal(t, "Pair_x005B_int_x005D_", EncodeLocalName("Pair[int]"))
	require.Equal(t, "", EncodeLocalName(""))
}

func TestParseGenericName(t *testing.T) {
	base, args, err := ParseGenericName("Pair[int,example.com/pkg.Box[string]]")
	require.NoError(t, err)
	require.Equal(t, "Pair", base)
	require.Equal(t, []string{"int", "example.com/pkg.Box[string]"}, args)

	base, args, err = ParseGenericName("Plain")
	require.NoError(t, err)
	require.Equal(t, "Plain", base)
	require.Nil(t, args)

	_, _, err = ParseGenericName("Pair[int")
	require.EqualError(t, err, "malformed generic name 'Pair[int'")

	_, _, err = ParseGenericName("Pair[int]]")
	require.Error(t, err)

	_, _, err = ParseGenericName("Pair[int,]")
	require.EqualError(t, err, "malformed generic name 'Pair[int,]': empty argument")
}

func TestTextualName(t *testing.T) {
	name, err := textualName("map[string]*int64")
	require.NoError(t, err)
	require.Equal(t, New("ArrayOfKeyValueOfstringlong", ArraysNamespace), name)

	name, err = textualName("[]int32")
	require.NoError(t, err)
	require.Equal(t, New("ArrayOfint", ArraysNamespace), name)

	_, err = textualName("example.com/pkg.Item")
	require.EqualError(t, err, "named type 'example.com/pkg.Item' must be bound as a generic argument")

	_, err = textualName("map[string]*example.com/pkg.Item")
	require.Error(t, err)

	_, err = textualName("struct { A int }")
	require.Error(t, err)

	_, err = textualName("map[string")
	require.EqualError(t, err, "malformed map type 'map[string'")
}

// -----------------------------------------------------------------------------
// Utility functions

type testLabel string

type testItem struct{}

type testGeneric[T any] struct {
	Value T
}
