package serializer

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/dcxml"
	"go.dedis.ch/dcxml/internal/testing/fake"
	"go.dedis.ch/dcxml/xmlio"
)

func TestWrite_Enum(t *testing.T) {
	s, err := New(reflect.TypeOf(testColor(0)))
	require.NoError(t, err)

	data, err := s.Marshal(testColor(5))
	require.NoError(t, err)
	require.Contains(t, string(data), ">A C</testColor>")

	_, err = s.Marshal(testColor(8))
	require.ErrorIs(t, err, dcxml.ErrIntegrity)
}

func TestWrite_Quota(t *testing.T) {
	// The root and its two members are visited.
	s, err := New(reflect.TypeOf(testPoint{}), WithMaxItems(3))
	require.NoError(t, err)

	_, err = s.Marshal(testPoint{X: 1, Y: 2})
	require.NoError(t, err)

	s, err = New(reflect.TypeOf(testPoint{}), WithMaxItems(2))
	require.NoError(t, err)

	_, err = s.Marshal(testPoint{X: 1, Y: 2})
	require.ErrorIs(t, err, dcxml.ErrQuota)
	require.EqualError(t, err, "quota error: maximum number of items 2 exceeded")

	// The nil values count as well.
	s, err = New(reflect.TypeOf(testNode{}), WithMaxItems(2))
	require.NoError(t, err)

	_, err = s.Marshal(testNode{})
	require.ErrorIs(t, err, dcxml.ErrQuota)
}

func TestWrite_RequiredDefault(t *testing.T) {
	s, err := New(reflect.TypeOf(testRequired{}))
	require.NoError(t, err)

	_, err = s.Marshal(testRequired{})
	require.ErrorIs(t, err, dcxml.ErrIntegrity)

	data, err := s.Marshal(testRequired{Value: 2})
	require.NoError(t, err)
	require.Contains(t, string(data), "<Value>2</Value>")
}

func TestWrite_KnownTypes(t *testing.T) {
	s, err := New(reflect.TypeOf(testDrawing{}))
	require.NoError(t, err)

	// The square is known in the scope of the member only.
	data, err := s.Marshal(testDrawing{Scoped: testSquare{Side: 2}})
	require.NoError(t, err)
	require.Contains(t, string(data), `i:type="d2p1:testSquare"><Side>2</Side></Scoped>`)
	require.Contains(t, string(data), `<Global i:nil="true"/>`)

	_, err = s.Marshal(testDrawing{Global: testSquare{Side: 2}})
	require.ErrorIs(t, err, dcxml.ErrIntegrity)
	require.Contains(t, err.Error(), "is not expected: add it to the known types")

	_, err = s.Marshal(testDrawing{Scoped: testCircle{Radius: 1}})
	require.ErrorIs(t, err, dcxml.ErrIntegrity)

	s, err = New(reflect.TypeOf(testDrawing{}), WithKnownTypes(reflect.TypeOf(testSquare{})))
	require.NoError(t, err)

	_, err = s.Marshal(testDrawing{Global: testSquare{Side: 2}})
	require.NoError(t, err)
}

func TestWrite_Primitive(t *testing.T) {
	s, err := New(reflect.TypeOf(testBox{}))
	require.NoError(t, err)

	// The primitive types are always known.
	data, err := s.Marshal(testBox{Value: 42})
	require.NoError(t, err)
	require.Contains(t, string(data), `i:type="x:long">42</Value>`)
}

func TestWrite_CycleWithoutPreservation(t *testing.T) {
	s, err := New(reflect.TypeOf(&testNode{}))
	require.NoError(t, err)

	node := &testNode{Name: "a"}
	node.Next = &testNode{Name: "b", Next: node}

	_, err = s.Marshal(node)
	require.ErrorIs(t, err, dcxml.ErrIntegrity)
	require.Contains(t, err.Error(), "contains a cycle")

	// A shared object that is not part of a cycle is written twice.
	shared := &testNode{Name: "shared"}

	s, err = New(reflect.TypeOf(testPair{}))
	require.NoError(t, err)

	data, err := s.Marshal(testPair{First: shared, Second: shared})
	require.NoError(t, err)
	require.Equal(t, 2, strings.Count(string(data), "<Name>shared</Name>"))
	require.NotContains(t, string(data), "z:Id")
}

func TestWrite_PreserveReferences(t *testing.T) {
	s, err := New(reflect.TypeOf(&testNode{}), WithPreserveReferences())
	require.NoError(t, err)

	node := &testNode{Name: "a"}
	node.Next = node

	data, err := s.Marshal(node)
	require.NoError(t, err)
	require.Contains(t, string(data), `z:Id="i1"`)
	require.Contains(t, string(data), `<Next z:Ref="i1" i:nil="true"/>`)
}

func TestWrite_MaxObjects(t *testing.T) {
	s, err := New(reflect.TypeOf(testPair{}), WithPreserveReferences(), WithMaxObjects(1))
	require.NoError(t, err)

	_, err = s.Marshal(testPair{First: &testNode{Name: "a"}})
	require.NoError(t, err)

	_, err = s.Marshal(testPair{First: &testNode{Name: "a"}, Second: &testNode{Name: "b"}})
	require.ErrorIs(t, err, dcxml.ErrIntegrity)
	require.Contains(t, err.Error(), "object table overflow: more than 1 objects")
}

func TestWrite_IsReference(t *testing.T) {
	s, err := New(reflect.TypeOf(testSharedPair{}))
	require.NoError(t, err)

	shared := &testShared{Value: 1}

	data, err := s.Marshal(testSharedPair{A: shared, B: shared})
	require.NoError(t, err)
	require.Contains(t, string(data), `Id="i1"`)
	require.Contains(t, string(data), `Ref="i1"`)
	require.Equal(t, 1, strings.Count(string(data), "<Value>1</Value>"))
}

func TestWrite_Size(t *testing.T) {
	s, err := New(reflect.TypeOf([]int{}), WithPreserveReferences())
	require.NoError(t, err)

	data, err := s.Marshal([]int{1, 2, 3})
	require.NoError(t, err)
	require.Contains(t, string(data), `z:Size="3"`)
	require.Contains(t, string(data), "<long>1</long><long>2</long><long>3</long>")
}

func TestWrite_SurrogateIdentity(t *testing.T) {
	shared := &testTemperatureDTO{Fahrenheit: 50}

	s, err := New(reflect.TypeOf(testReadings{}), WithPreserveReferences(),
		WithSurrogate(fakeProvider{shared: shared}))
	require.NoError(t, err)

	// Two originals replaced by the same surrogate share a single node.
	data, err := s.Marshal(testReadings{A: &testTemperature{}, B: &testTemperature{}})
	require.NoError(t, err)
	require.Equal(t, 1, strings.Count(string(data), "<Fahrenheit>50</Fahrenheit>"))
	require.Contains(t, string(data), `<B z:Ref="i1" i:nil="true"/>`)
}

func TestWrite_TypeHints(t *testing.T) {
	s, err := New(reflect.TypeOf(testBox{}), WithTypeHints(),
		WithKnownTypes(reflect.TypeOf(testSquare{})))
	require.NoError(t, err)

	data, err := s.Marshal(testBox{Value: testSquare{Side: 1}})
	require.NoError(t, err)
	require.Contains(t, string(data), `z:Type="go.dedis.ch/dcxml/serializer.testSquare"`)
}

func TestWrite_BadWriter(t *testing.T) {
	s, err := New(reflect.TypeOf(testPoint{}))
	require.NoError(t, err)

	err = s.WriteObject(badWriter{xmlio.NewWriter(new(bytes.Buffer))}, testPoint{})
	require.EqualError(t, err, "oops")
}

func TestWrite_BadOutput(t *testing.T) {
	s, err := New(reflect.TypeOf(testPoint{}))
	require.NoError(t, err)

	err = s.WriteObject(xmlio.NewWriter(fake.NewBadWriter()), testPoint{X: 1})
	require.Error(t, err)
	require.Contains(t, err.Error(), fake.GetError().Error())
}

// -----------------------------------------------------------------------------
// Utility functions

func toFahrenheit(obj interface{}) interface{} {
	switch v := obj.(type) {
	case *testTemperature:
		return &testTemperatureDTO{Fahrenheit: v.Celsius*9/5 + 32}
	case testTemperature:
		return &testTemperatureDTO{Fahrenheit: v.Celsius*9/5 + 32}
	default:
		return nil
	}
}

type badWriter struct {
	*xmlio.TextWriter
}

func (badWriter) WriteInt(int64) error {
	return fakeError{}
}

type fakeError struct{}

func (fakeError) Error() string {
	return "oops"
}
