package contract

import (
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/dcxml"
	"go.dedis.ch/dcxml/qname"
	"go.dedis.ch/dcxml/xmlio"
)

const testNamespace = qname.DefaultNamespacePrefix + "go.dedis.ch/dcxml/contract"

func TestKind_String(t *testing.T) {
	require.Equal(t, "primitive", Primitive.String())
	require.Equal(t, "generic parameter", GenericParameter.String())
	require.Equal(t, "unknown", Kind(0).String())

	require.Equal(t, "dictionary", DictionaryCollection.String())
	require.Equal(t, "unknown", CollectionKind(42).String())
}

func TestFor_Variants(t *testing.T) {
	cases := []struct {
		value interface{}
		kind  Kind
	}{
		{value: 0, kind: Primitive},
		{value: "", kind: Primitive},
		{value: []byte{}, kind: Primitive},
		{value: time.Time{}, kind: Primitive},
		{value: uuid.UUID{}, kind: Primitive},
		{value: Char('a'), kind: Primitive},
		{value: testLabel(""), kind: Primitive},
		{value: testPoint{}, kind: Class},
		{value: &testPoint{}, kind: Class},
		{value: []testPoint{}, kind: Collection},
		{value: [2]int{}, kind: Collection},
		{value: map[string]int{}, kind: Collection},
		{value: testBag{}, kind: Collection},
		{value: testColor(0), kind: Enum},
		{value: testRaw{}, kind: SelfDescribing},
		{value: (*testShape)(nil), kind: Special},
	}

	for _, c := range cases {
		typ := reflect.TypeOf(c.value)
		if c.kind == Special {
			typ = typ.Elem()
		}

		contract, err := For(typ)
		require.NoError(t, err, typ)
		require.Equal(t, c.kind, contract.Kind(), typ)
	}

	// Pointers share the contract of their element.
	require.Same(t, MustFor(reflect.TypeOf(testPoint{})), MustFor(reflect.TypeOf(&testPoint{})))
}

func TestFor_Errors(t *testing.T) {
	_, err := For(nil)
	require.ErrorIs(t, err, dcxml.ErrContract)

	_, err = For(reflect.TypeOf(new(*int)))
	require.ErrorIs(t, err, dcxml.ErrContract)
	require.Contains(t, err.Error(), "pointer to pointer")

	_, err = For(reflect.TypeOf(make(chan int)))
	require.ErrorIs(t, err, dcxml.ErrContract)

	// The error is kept for the next calls.
	_, err = For(reflect.TypeOf(testTwoBases{}))
	require.ErrorIs(t, err, dcxml.ErrContract)

	_, err = For(reflect.TypeOf(testTwoBases{}))
	require.EqualError(t, err,
		"contract error: type contract.testTwoBases embeds more than one base class")

	require.Panics(t, func() { MustFor(reflect.TypeOf(func() {})) })
}

func TestFor_Concurrent(t *testing.T) {
	type result struct {
		c   Contract
		err error
	}

	results := make(chan result, 10)

	for i := 0; i < cap(results); i++ {
		go func() {
			c, err := For(reflect.TypeOf(testConcurrent{}))
			results <- result{c: c, err: err}
		}()
	}

	first := <-results
	require.NoError(t, first.err)

	for i := 1; i < cap(results); i++ {
		res := <-results
		require.NoError(t, res.err)
		require.Same(t, first.c, res.c)
	}
}

func TestLookupType(t *testing.T) {
	MustFor(reflect.TypeOf(testPoint{}))

	typ, found := LookupType("go.dedis.ch/dcxml/contract.testPoint")
	require.True(t, found)
	require.Equal(t, reflect.TypeOf(testPoint{}), typ)

	_, found = LookupType("go.dedis.ch/dcxml/contract.unknown")
	require.False(t, found)

	require.Equal(t, "[]int", TypeName(reflect.TypeOf([]int{})))
}

func TestPrimitive(t *testing.T) {
	c := MustFor(reflect.TypeOf(0)).(*PrimitiveContract)
	require.Equal(t, qname.New("long", qname.SchemaNamespace), c.Name())
	require.Equal(t, "Int", c.Method())
	require.False(t, c.IsReference())
	require.False(t, c.CanContainReferences())

	c = MustFor(reflect.TypeOf(Char(0))).(*PrimitiveContract)
	require.Equal(t, qname.New("char", qname.SerializationNamespace), c.Name())

	object := MustFor(reflect.TypeOf((*interface{})(nil)).Elem())
	require.Equal(t, Primitive, object.Kind())
	require.True(t, object.CanContainReferences())

	found, ok := PrimitiveByName(qname.New("long", qname.SchemaNamespace))
	require.True(t, ok)
	require.Equal(t, reflect.TypeOf(int64(0)), found.Type())

	found, ok = PrimitiveByName(qname.New("int", qname.SchemaNamespace))
	require.True(t, ok)
	require.Equal(t, reflect.TypeOf(int32(0)), found.Type())

	found, ok = PrimitiveByName(qname.New("guid", qname.SerializationNamespace))
	require.True(t, ok)
	require.Equal(t, "Guid", found.(*PrimitiveContract).Method())

	_, ok = PrimitiveByName(qname.New("testPoint", testNamespace))
	require.False(t, ok)

	primitives := Primitives()
	require.Len(t, primitives, 21)
	require.Equal(t, qname.New("boolean", qname.SchemaNamespace), primitives[0].Name())
	require.Equal(t, reflect.TypeOf(int64(0)), primitives[7].Type())
	require.Equal(t, qname.New("anyType", qname.SchemaNamespace), primitives[20].Name())
}

func TestSelfDescribing(t *testing.T) {
	c := MustFor(reflect.TypeOf(testRaw{}))
	require.Equal(t, qname.New("testRaw", testNamespace), c.Name())
	require.False(t, c.IsReference())
}

func TestSpecial(t *testing.T) {
	c := MustFor(reflect.TypeOf((*testShape)(nil)).Elem())
	require.Equal(t, qname.New("testShape", testNamespace), c.Name())
	require.True(t, c.CanContainReferences())

	err := c.WriteContent(nil, reflect.Value{}, nil)
	require.ErrorIs(t, err, dcxml.ErrContract)
}

func TestGenericParameter(t *testing.T) {
	c := MustFor(reflect.TypeOf(testBox[int]{})).(*ClassContract)
	require.Equal(t, qname.New("BoxOflong", testNamespace), c.Name())

	params := c.GenericParameters()
	require.Len(t, params, 1)
	require.Equal(t, 0, params[0].Position())
	require.Equal(t, GenericParameter, params[0].Kind())
	require.Equal(t, qname.New("{0}", testNamespace), params[0].Name())
	require.Equal(t, reflect.TypeOf(0), params[0].Type())

	bound, err := params[0].Bind()
	require.NoError(t, err)
	require.Equal(t, Primitive, bound.Kind())

	unbound := newGenericParameter(c.Name(), 1, nil)

	_, err = unbound.Bind()
	require.ErrorIs(t, err, dcxml.ErrContract)
	require.Contains(t, err.Error(), "generic parameter 1 of")

	err = unbound.WriteContent(nil, reflect.Value{}, nil)
	require.ErrorIs(t, err, dcxml.ErrContract)

	_, err = unbound.ReadContent(nil, nil)
	require.ErrorIs(t, err, dcxml.ErrContract)
}

func TestSurrogate(t *testing.T) {
	provider := fakeProvider{}

	c, ok, err := NewSurrogate(reflect.TypeOf(&testCelsius{}), provider)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Surrogate, c.Kind())
	require.Equal(t, reflect.TypeOf(testCelsius{}), c.Type())
	require.Equal(t, qname.New("testFahrenheit", testNamespace), c.Name())
	require.Equal(t, Class, c.Surrogate().Kind())

	out, err := c.ToSurrogate(reflect.ValueOf(testCelsius{Degrees: 100}))
	require.NoError(t, err)
	require.Equal(t, testFahrenheit{Degrees: 212}, out.Interface())

	back, err := c.FromSurrogate(out, c.Type())
	require.NoError(t, err)
	require.Equal(t, testCelsius{Degrees: 100}, back.Interface())

	_, ok, err = NewSurrogate(reflect.TypeOf(testPoint{}), provider)
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = NewSurrogate(reflect.TypeOf(testFahrenheit{}), fakeProvider{target: reflect.TypeOf(func() {})})
	require.ErrorIs(t, err, dcxml.ErrContract)
	require.False(t, ok)

	c, _, err = NewSurrogate(reflect.TypeOf(testCelsius{}), fakeProvider{err: fakeError{}})
	require.NoError(t, err)

	_, err = c.ToSurrogate(reflect.ValueOf(testCelsius{}))
	require.ErrorIs(t, err, dcxml.ErrContract)
	require.Contains(t, err.Error(), "couldn't substitute contract.testCelsius: oops")

	_, err = c.FromSurrogate(reflect.ValueOf(testFahrenheit{}), c.Type())
	require.EqualError(t, err, "contract error: couldn't restore contract.testCelsius: oops")
}

// -----------------------------------------------------------------------------
// Utility functions

type testLabel string

type testPoint struct {
	X int
	Y int
}

type testConcurrent struct {
	Value string
}

type testShape interface {
	Area() float64
}

type testBox[T any] struct {
	Value T
}

func (testBox[T]) DescribeContract() Description {
	var zero T

	return Description{
		Name:             "BoxOf{0}",
		GenericArguments: []reflect.Type{reflect.TypeOf(zero)},
	}
}

type testRaw struct {
	Text string
}

func (r *testRaw) WriteXML(w xmlio.Writer) error {
	return w.WriteString(r.Text)
}

func (r *testRaw) ReadXML(rd xmlio.Reader) error {
	text, err := rd.ReadString()
	r.Text = text

	return err
}

type testCelsius struct {
	Degrees float64
}

type testFahrenheit struct {
	Degrees float64
}

type fakeProvider struct {
	target reflect.Type
	err    error
}

func (p fakeProvider) GetSurrogateType(t reflect.Type) reflect.Type {
	if p.target != nil {
		return p.target
	}

	if t == reflect.TypeOf(testCelsius{}) {
		return reflect.TypeOf(testFahrenheit{})
	}

	return t
}

func (p fakeProvider) GetObjectToSerialize(obj interface{}, target reflect.Type) (interface{}, error) {
	if p.err != nil {
		return nil, p.err
	}

	return testFahrenheit{Degrees: obj.(testCelsius).Degrees*9/5 + 32}, nil
}

func (p fakeProvider) GetDeserializedObject(obj interface{}, target reflect.Type) (interface{}, error) {
	if p.err != nil {
		return nil, p.err
	}

	return testCelsius{Degrees: (obj.(testFahrenheit).Degrees - 32) * 5 / 9}, nil
}

type fakeError struct{}

func (fakeError) Error() string {
	return "oops"
}
