// Package contract defines the data contracts: the description of the wire
// shape of a Go type together with the strategy to read and write it.
//
// A contract is one of a closed set of variants (primitive, class, collection,
// enum, self-describing, surrogate, generic parameter and special). Contracts
// are built once per type and cached for the lifetime of the process. The
// traversal of the graphs is left to the caller through the WriteContext and
// ReadContext interfaces.
//
// Documentation Last Review: 17.10.2026
package contract

import (
	"reflect"

	"go.dedis.ch/dcxml/qname"
	"go.dedis.ch/dcxml/xmlio"
)

// Kind is the variant of a contract.
type Kind int

const (
	// Primitive is a scalar type read and written by the reader and writer
	// primitives.
	Primitive Kind = iota + 1
	// Class is a struct decomposed into data members.
	Class
	// Collection is a sequence of items sharing one element name.
	Collection
	// Enum is a named integer type written as member names.
	Enum
	// SelfDescribing is a type reading and writing its own content.
	SelfDescribing
	// Surrogate substitutes a type for another one.
	Surrogate
	// GenericParameter is a placeholder for a generic argument.
	GenericParameter
	// Special is a type known by its name only.
	Special
)

var kindNames = map[Kind]string{
	Primitive:        "primitive",
	Class:            "class",
	Collection:       "collection",
	Enum:             "enum",
	SelfDescribing:   "self-describing",
	Surrogate:        "surrogate",
	GenericParameter: "generic parameter",
	Special:          "special",
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	name, found := kindNames[k]
	if !found {
		return "unknown"
	}

	return name
}

// Contract is the common interface of the variants.
type Contract interface {
	// Kind returns the variant of the contract.
	Kind() Kind

	// Type returns the Go type described by the contract. Pointers are
	// never described: *T shares the contract of T.
	Type() reflect.Type

	// Name returns the qualified name identifying the contract on the wire.
	Name() qname.Name

	// IsReference returns true if the instances preserve their identity even
	// when the serializer does not preserve the references.
	IsReference() bool

	// CanContainReferences returns true if the values of the contract are
	// subject to reference tracking.
	CanContainReferences() bool

	// WriteContent writes the content of the value, of the contract type,
	// inside the element opened by the caller.
	WriteContent(w xmlio.Writer, v reflect.Value, ctx WriteContext) error

	// ReadContent reads the element the reader is positioned on, up to its
	// end tag included, and returns a value of the contract type.
	ReadContent(r xmlio.Reader, ctx ReadContext) (reflect.Value, error)
}

// WriteContext is the traversal state provided to the contracts when they
// write their content.
type WriteContext interface {
	// WriteValue writes the attributes and the content of a value declared
	// with the given type, inside an element opened by the caller. Setting
	// forceType emits the xsi:type attribute even if the value has the
	// declared type.
	WriteValue(w xmlio.Writer, v reflect.Value, declared reflect.Type, forceType bool) error

	// PushKnownTypes opens a scope of known types.
	PushKnownTypes(types []reflect.Type) error

	// PopKnownTypes closes the scope opened last.
	PopKnownTypes()

	// WriteSize returns true if the collections should emit their size.
	WriteSize() bool
}

// Assign is called with the value of a node once it is available. It might be
// called after the node has been read if it is, or contains by value, a
// forward reference.
type Assign func(v reflect.Value)

// ReadContext is the traversal state provided to the contracts when they read
// their content.
type ReadContext interface {
	// ReadValue reads the element the reader is positioned on as a value of
	// the declared type.
	ReadValue(r xmlio.Reader, declared reflect.Type) (reflect.Value, error)

	// ReadValueInto reads the element and calls assign with the value. A
	// reference to an object not produced yet is resolved later.
	ReadValueInto(r xmlio.Reader, declared reflect.Type, assign Assign) error

	// TakeNode returns the state of the node being read. It must be called
	// by ReadContent before reading any nested value.
	TakeNode() *Node

	// Created registers a new instance as soon as it is allocated so that
	// nested values can refer to it.
	Created(node *Node, obj reflect.Value) error

	// SetExisting passes an existing collection instance to the next value
	// read, for the members that cannot be set.
	SetExisting(v reflect.Value)

	// PushKnownTypes opens a scope of known types.
	PushKnownTypes(types []reflect.Type) error

	// PopKnownTypes closes the scope opened last.
	PopKnownTypes()

	// IgnoreExtensionData returns true if the unknown members must be
	// dropped instead of being preserved.
	IgnoreExtensionData() bool

	// AfterResolve calls fn once every reference of the document is
	// resolved, after the functions registered before it.
	AfterResolve(fn func())
}

// Node is the state of the element being read, extracted from its attributes
// by the traversal.
type Node struct {
	// ID is the identifier the node registers under, or empty.
	ID string

	// Size is the size hint of a collection, or -1.
	Size int

	// Existing is the collection to read into, if any.
	Existing reflect.Value

	// Registered is set once the instance has been registered.
	Registered bool
}

// SurrogateProvider substitutes types and values during the traversal.
type SurrogateProvider interface {
	// GetSurrogateType returns the type to serialize instead of the given
	// one, or the type itself.
	GetSurrogateType(t reflect.Type) reflect.Type

	// GetObjectToSerialize returns the value to write instead of obj.
	GetObjectToSerialize(obj interface{}, target reflect.Type) (interface{}, error)

	// GetDeserializedObject returns the value to use instead of the value
	// read.
	GetDeserializedObject(obj interface{}, target reflect.Type) (interface{}, error)
}

// EnumMember is a named value of an enumeration.
type EnumMember struct {
	Name  string
	Value int64
}

// Description is the metadata a type can provide about its contract.
type Description struct {
	// Name is the local name of the contract. It can contain the generic
	// placeholders {0}, {1}, ... and {#}.
	Name string

	// Namespace is the namespace of the contract.
	Namespace string

	// IsReference preserves the identity of the instances.
	IsReference bool

	// KnownTypes are the types allowed in place of the members declared with
	// a type they implement.
	KnownTypes []reflect.Type

	// MemberKnownTypes are the known types scoped to a single member, by
	// member name.
	MemberKnownTypes map[string][]reflect.Type

	// GenericArguments are the type arguments of a generic instantiation.
	GenericArguments []reflect.Type

	// EnumMembers makes a named integer type an enumeration.
	EnumMembers []EnumMember

	// Flags makes the enumeration a set of bit flags.
	Flags bool

	// ItemName overrides the element name of the items of a collection.
	ItemName string
}

// Describer is implemented by the types providing a description of their
// contract. The method is called on the zero value.
type Describer interface {
	DescribeContract() Description
}

// Initializer is implemented by the classes that need to be initialized after
// being allocated and before their members are read.
type Initializer interface {
	InitContract()
}

// Char is a single character, written as its code point.
type Char rune

// ExtensionMember is an unknown member preserved during a round-trip.
type ExtensionMember struct {
	Name qname.Name
	XML  string
}

// ExtensionData is the type of the field that receives the unknown members of
// a class.
type ExtensionData struct {
	Members []ExtensionMember
}
