package serializer

import (
	"bytes"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/dcxml"
	"go.dedis.ch/dcxml/contract"
	"go.dedis.ch/dcxml/qname"
	"go.dedis.ch/dcxml/xmlio"
	"golang.org/x/xerrors"
)

const testNamespace = qname.DefaultNamespacePrefix + "go.dedis.ch/dcxml/serializer"

func TestSerializer_New(t *testing.T) {
	s, err := New(reflect.TypeOf(testPoint{}))
	require.NoError(t, err)
	require.Equal(t, qname.New("testPoint", testNamespace), s.RootName())
	require.Equal(t, DefaultMaxItems, s.maxItems)
	require.Equal(t, 1, s.KnownTypes().Len())

	s, err = New(reflect.TypeOf(testPoint{}), WithRootName(qname.New("Point", "urn:test")))
	require.NoError(t, err)
	require.Equal(t, qname.New("Point", "urn:test"), s.RootName())

	_, err = New(reflect.TypeOf(make(chan int)))
	require.ErrorIs(t, err, dcxml.ErrContract)
	require.Contains(t, err.Error(), "couldn't describe root: ")

	_, err = New(reflect.TypeOf(testPoint{}), WithKnownTypes(reflect.TypeOf(testHomonym{})))
	require.ErrorIs(t, err, dcxml.ErrContract)
	require.Contains(t, err.Error(), "couldn't build known types: ")
}

func TestSerializer_IsStartObject(t *testing.T) {
	s, err := New(reflect.TypeOf(testPoint{}))
	require.NoError(t, err)

	doc := fmt.Sprintf(`<?xml version="1.0"?><testPoint xmlns="%s"/>`, testNamespace)
	require.True(t, s.IsStartObject(xmlio.NewReader(strings.NewReader(doc))))

	doc = `<Other/>`
	require.False(t, s.IsStartObject(xmlio.NewReader(strings.NewReader(doc))))

	require.False(t, s.IsStartObject(xmlio.NewReader(strings.NewReader(""))))
}

func TestSerializer_MarshalUnmarshal(t *testing.T) {
	s, err := New(reflect.TypeOf(testPoint{}))
	require.NoError(t, err)

	data, err := s.Marshal(testPoint{X: 1, Y: -2})
	require.NoError(t, err)
	require.Equal(t, fmt.Sprintf(`<testPoint xmlns="%s" xmlns:i="%s"><X>1</X><Y>-2</Y></testPoint>`,
		testNamespace, qname.SchemaInstanceNamespace), string(data))

	var p testPoint
	err = s.Unmarshal(data, &p)
	require.NoError(t, err)
	require.Equal(t, testPoint{X: 1, Y: -2}, p)

	err = s.Unmarshal(data, p)
	require.EqualError(t, err, "expecting a non-nil pointer but got serializer.testPoint")

	var other testPerson
	err = s.Unmarshal(data, &other)
	require.EqualError(t, err, "cannot assign serializer.testPoint to serializer.testPerson")
}

func TestSerializer_Logger(t *testing.T) {
	buffer := new(bytes.Buffer)

	s, err := New(reflect.TypeOf(testPoint{}), WithLogger(zerolog.New(buffer).Level(zerolog.DebugLevel)))
	require.NoError(t, err)

	_, err = s.Marshal(testPoint{})
	require.NoError(t, err)
	require.Contains(t, buffer.String(), `"direction":"write"`)
	require.Contains(t, buffer.String(), `"items":3`)
	require.Contains(t, buffer.String(), `"operation":`)
}

func TestErrorKind(t *testing.T) {
	require.Equal(t, "quota", errorKind(dcxml.NewError(dcxml.QuotaError, "")))
	require.Equal(t, "integrity", errorKind(xerrors.Errorf("wrapped: %w",
		dcxml.NewError(dcxml.IntegrityError, ""))))
	require.Equal(t, "other", errorKind(xerrors.New("oops")))
}

// -----------------------------------------------------------------------------
// Utility functions

type testPoint struct {
	X int
	Y int
}

type testPerson struct {
	Name   string
	Age    int `dc:",order=1"`
	Friend *testPerson
}

// testHomonym takes the contract name of testPoint.
type testHomonym struct {
	Z string
}

func (testHomonym) DescribeContract() contract.Description {
	return contract.Description{Name: "testPoint", Namespace: testNamespace}
}

type testNode struct {
	Name string
	Next *testNode
}

type testPair struct {
	First  *testNode
	Second *testNode
}

type testNodeArray struct {
	Items [2]*testNode
	Tail  *testNode
}

type testNodeMap struct {
	Items map[string]*testNode
	Tail  *testNode
}

type testNodeBag struct {
	nodes []*testNode
}

func (b *testNodeBag) Items() []*testNode {
	return b.nodes
}

func (b *testNodeBag) Add(n *testNode) {
	b.nodes = append(b.nodes, n)
}

type testNodeBagHolder struct {
	Items testNodeBag
	Tail  *testNode
}

type testColor int

func (testColor) DescribeContract() contract.Description {
	return contract.Description{
		Flags: true,
		EnumMembers: []contract.EnumMember{
			{Name: "A", Value: 1},
			{Name: "B", Value: 2},
			{Name: "C", Value: 4},
		},
	}
}

type testRequired struct {
	Value int `dc:"Value,required,emitdefault=false"`
}

type testShape interface {
	Area() int
}

type testSquare struct {
	Side int
}

func (s testSquare) Area() int {
	return s.Side * s.Side
}

type testCircle struct {
	Radius int
}

func (c testCircle) Area() int {
	return 3 * c.Radius * c.Radius
}

type testDrawing struct {
	Scoped testShape
	Global testShape
}

func (testDrawing) DescribeContract() contract.Description {
	return contract.Description{
		MemberKnownTypes: map[string][]reflect.Type{
			"Scoped": {reflect.TypeOf(testSquare{})},
		},
	}
}

type testBox struct {
	Value interface{}
}

type testShared struct {
	Value int
}

func (testShared) DescribeContract() contract.Description {
	return contract.Description{IsReference: true}
}

type testSharedPair struct {
	A *testShared
	B *testShared
}

type testRecordV1 struct {
	Name string
	Ext  contract.ExtensionData
}

func (testRecordV1) DescribeContract() contract.Description {
	return contract.Description{Name: "Record", Namespace: "urn:test"}
}

type testRecordV2 struct {
	Name  string
	Extra string
}

func (testRecordV2) DescribeContract() contract.Description {
	return contract.Description{Name: "Record", Namespace: "urn:test"}
}

type testTemperature struct {
	Celsius float64
}

type testTemperatureDTO struct {
	Fahrenheit float64
}

type testReadings struct {
	A *testTemperature
	B *testTemperature
}

// fakeProvider substitutes testTemperatureDTO to testTemperature. When shared
// is set, every temperature is replaced by the same instance.
type fakeProvider struct {
	shared *testTemperatureDTO
}

func (p fakeProvider) GetSurrogateType(t reflect.Type) reflect.Type {
	if t == reflect.TypeOf(testTemperature{}) {
		return reflect.TypeOf(testTemperatureDTO{})
	}

	return t
}

func (p fakeProvider) GetObjectToSerialize(obj interface{}, target reflect.Type) (interface{}, error) {
	if p.shared != nil {
		return p.shared, nil
	}

	switch v := obj.(type) {
	case *testTemperature:
		return &testTemperatureDTO{Fahrenheit: v.Celsius*9/5 + 32}, nil
	case testTemperature:
		return &testTemperatureDTO{Fahrenheit: v.Celsius*9/5 + 32}, nil
	default:
		return nil, xerrors.Errorf("unexpected %T", obj)
	}
}

func (p fakeProvider) GetDeserializedObject(obj interface{}, target reflect.Type) (interface{}, error) {
	switch v := obj.(type) {
	case *testTemperatureDTO:
		return &testTemperature{Celsius: (v.Fahrenheit - 32) * 5 / 9}, nil
	case testTemperatureDTO:
		return &testTemperature{Celsius: (v.Fahrenheit - 32) * 5 / 9}, nil
	default:
		return nil, xerrors.Errorf("unexpected %T", obj)
	}
}

// document wraps the content in the root element of the serializer, with the
// reserved prefixes declared.
func document(s *Serializer, attrs, content string) []byte {
	name := s.RootName()

	return []byte(fmt.Sprintf(`<%s xmlns="%s" xmlns:i="%s" xmlns:z="%s" xmlns:x="%s"%s>%s</%s>`,
		name.Local, name.Namespace, qname.SchemaInstanceNamespace, qname.SerializationNamespace,
		qname.SchemaNamespace, attrs, content, name.Local))
}
