package knowntypes

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/dcxml"
	"go.dedis.ch/dcxml/contract"
	"go.dedis.ch/dcxml/qname"
)

const testNamespace = qname.DefaultNamespacePrefix + "go.dedis.ch/dcxml/contract/knowntypes"

func TestSet_Add(t *testing.T) {
	set := NewSet()

	err := set.Add(reflect.TypeOf(&testDrawing{}))
	require.NoError(t, err)

	// The primitives are never added and the scoped known types are not part
	// of the flat table.
	require.Equal(t, []qname.Name{
		qname.New("ArrayOftestLine", testNamespace),
		qname.New("testDrawing", testNamespace),
		qname.New("testLine", testNamespace),
		qname.New("testPoint", testNamespace),
		qname.New("testShape", testNamespace),
	}, set.Names())
	require.Equal(t, 5, set.Len())

	c, found := set.Lookup(qname.New("testPoint", testNamespace))
	require.True(t, found)
	require.Equal(t, reflect.TypeOf(testPoint{}), c.Type())

	_, found = set.Lookup(qname.New("testCircle", testNamespace))
	require.False(t, found)

	// Adding the same types again is a no-op.
	err = set.Add(reflect.TypeOf(testDrawing{}), reflect.TypeOf([]testLine{}))
	require.NoError(t, err)
	require.Equal(t, 5, set.Len())
}

func TestSet_Dictionary(t *testing.T) {
	set := NewSet()

	err := set.Add(reflect.TypeOf(map[string]testPoint{}))
	require.NoError(t, err)

	// The synthesized entries have no name of their own.
	require.Equal(t, 2, set.Len())
}

func TestSet_Conflict(t *testing.T) {
	set := NewSet()

	err := set.Add(reflect.TypeOf(testRecordA{}), reflect.TypeOf(testRecordB{}))
	require.ErrorIs(t, err, dcxml.ErrContract)
	require.Contains(t, err.Error(), "share the contract name {urn:records}Record")

	// The sequences of the same items share their name.
	set = NewSet()

	err = set.Add(reflect.TypeOf([]testPoint{}), reflect.TypeOf([3]testPoint{}))
	require.NoError(t, err)

	err = set.Add(reflect.TypeOf(make(chan int)))
	require.ErrorIs(t, err, dcxml.ErrContract)
}

func TestSet_Mapper(t *testing.T) {
	set := NewSet(WithMapper(func(t reflect.Type) reflect.Type {
		if t == reflect.TypeOf(testPoint{}) {
			return reflect.TypeOf(testCircle{})
		}

		return t
	}))

	err := set.Add(reflect.TypeOf(testLine{}))
	require.NoError(t, err)

	_, found := set.Lookup(qname.New("testCircle", testNamespace))
	require.True(t, found)

	_, found = set.Lookup(qname.New("testPoint", testNamespace))
	require.False(t, found)
}

func TestScope_PushPop(t *testing.T) {
	set := NewSet()
	require.NoError(t, set.Add(reflect.TypeOf(testDrawing{})))

	scope := set.NewScope()
	require.Equal(t, 0, scope.Depth())

	circle := qname.New("testCircle", testNamespace)
	require.False(t, scope.IsKnown(circle))

	err := scope.Push([]reflect.Type{reflect.TypeOf(testCircle{})})
	require.NoError(t, err)
	require.Equal(t, 1, scope.Depth())
	require.True(t, scope.IsKnown(circle))

	c, err := scope.Resolve(circle, nil)
	require.NoError(t, err)
	require.Equal(t, reflect.TypeOf(testCircle{}), c.Type())

	name, err := scope.NameOf(c, reflect.TypeOf((*testShape)(nil)).Elem())
	require.NoError(t, err)
	require.Equal(t, circle, name)

	scope.Pop()
	require.Equal(t, 0, scope.Depth())
	require.False(t, scope.IsKnown(circle))

	_, err = scope.Resolve(circle, nil)
	require.ErrorIs(t, err, dcxml.ErrIntegrity)
	require.Contains(t, err.Error(), "is not expected")

	_, err = scope.NameOf(c, nil)
	require.ErrorIs(t, err, dcxml.ErrIntegrity)
	require.Contains(t, err.Error(), "add it to the known types")

	// Popping an empty scope is harmless.
	scope.Pop()
	require.Equal(t, 0, scope.Depth())

	err = scope.Push([]reflect.Type{reflect.TypeOf(func() {})})
	require.ErrorIs(t, err, dcxml.ErrContract)
	require.Equal(t, 0, scope.Depth())
}

func TestScope_SharedFrames(t *testing.T) {
	set := NewSet()
	require.NoError(t, set.Add(reflect.TypeOf(testDrawing{})))

	types := []reflect.Type{reflect.TypeOf(testCircle{})}

	first := set.NewScope()
	require.NoError(t, first.Push(types))

	second := set.NewScope()
	require.NoError(t, second.Push(types))

	// The closure of a list is computed once and shared by the scopes.
	require.Equal(t, reflect.ValueOf(first.frames[0]).Pointer(), reflect.ValueOf(second.frames[0]).Pointer())

	other := set.NewScope()
	require.NoError(t, other.Push([]reflect.Type{reflect.TypeOf(testCircle{})}))
	require.True(t, other.IsKnown(qname.New("testCircle", testNamespace)))

	require.NoError(t, other.Push(nil))
	require.Equal(t, 2, other.Depth())
}

func TestScope_Primitives(t *testing.T) {
	scope := NewSet().NewScope()

	long := qname.New("long", qname.SchemaNamespace)
	require.True(t, scope.IsKnown(long))

	c, err := scope.Resolve(long, nil)
	require.NoError(t, err)
	require.Equal(t, reflect.TypeOf(int64(0)), c.Type())

	name, err := scope.NameOf(contract.MustFor(reflect.TypeOf(int32(0))), nil)
	require.NoError(t, err)
	require.Equal(t, qname.New("int", qname.SchemaNamespace), name)
}

func TestScope_Resolver(t *testing.T) {
	resolver := fakeResolver{
		name: qname.New("Circle", "urn:resolved"),
		typ:  reflect.TypeOf(testCircle{}),
	}

	scope := NewSet(WithResolver(resolver)).NewScope()

	c, err := scope.Resolve(resolver.name, nil)
	require.NoError(t, err)
	require.Equal(t, reflect.TypeOf(testCircle{}), c.Type())

	// The resolver is not consulted for the known types.
	require.False(t, scope.IsKnown(resolver.name))

	name, err := scope.NameOf(c, nil)
	require.NoError(t, err)
	require.Equal(t, resolver.name, name)

	_, err = scope.NameOf(contract.MustFor(reflect.TypeOf(testPoint{})), nil)
	require.ErrorIs(t, err, dcxml.ErrIntegrity)
}

func TestScope_Surrogate(t *testing.T) {
	set := NewSet()
	require.NoError(t, set.Add(reflect.TypeOf(testCircle{})))

	sc, ok, err := contract.NewSurrogate(reflect.TypeOf(testPoint{}), fakeProvider{})
	require.NoError(t, err)
	require.True(t, ok)

	// The surrogate is written with the name of the type used on the wire.
	name, err := set.NewScope().NameOf(sc, nil)
	require.NoError(t, err)
	require.Equal(t, qname.New("testCircle", testNamespace), name)
}

// -----------------------------------------------------------------------------
// Utility functions

type testShape interface {
	isShape()
}

type testPoint struct {
	X int
	Y int
}

func (testPoint) isShape() {}

type testCircle struct {
	Center testPoint
	Radius float64
}

func (testCircle) isShape() {}

type testLine struct {
	From testPoint
	To   testPoint
}

type testDrawing struct {
	Lines []testLine
	Shape testShape
}

func (testDrawing) DescribeContract() contract.Description {
	return contract.Description{
		MemberKnownTypes: map[string][]reflect.Type{
			"Shape": {reflect.TypeOf(testCircle{})},
		},
	}
}

type testRecordA struct {
	Name string
}

func (testRecordA) DescribeContract() contract.Description {
	return contract.Description{Name: "Record", Namespace: "urn:records"}
}

type testRecordB struct {
	Name string
}

func (testRecordB) DescribeContract() contract.Description {
	return contract.Description{Name: "Record", Namespace: "urn:records"}
}

type fakeResolver struct {
	name qname.Name
	typ  reflect.Type
}

func (r fakeResolver) TryResolveType(t reflect.Type, declared reflect.Type) (qname.Name, bool) {
	if t == r.typ {
		return r.name, true
	}

	return qname.Name{}, false
}

func (r fakeResolver) ResolveName(name qname.Name, declared reflect.Type) (reflect.Type, bool) {
	if name == r.name {
		return r.typ, true
	}

	return nil, false
}

type fakeProvider struct{}

func (fakeProvider) GetSurrogateType(t reflect.Type) reflect.Type {
	if t == reflect.TypeOf(testPoint{}) {
		return reflect.TypeOf(testCircle{})
	}

	return t
}

func (fakeProvider) GetObjectToSerialize(obj interface{}, target reflect.Type) (interface{}, error) {
	return testCircle{Center: obj.(testPoint)}, nil
}

func (fakeProvider) GetDeserializedObject(obj interface{}, target reflect.Type) (interface{}, error) {
	return obj.(testCircle).Center, nil
}
