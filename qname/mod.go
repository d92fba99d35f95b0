// Package qname defines the qualified names used as the wire identity of the
// data contracts, and the registry deriving a stable name for any Go type.
//
// The registry is deterministic: the same type shape always yields the same
// name so that a writer and an independent reader agree on the identity of the
// types exchanged.
package qname

import "fmt"

const (
	// SchemaNamespace is the namespace of the built-in XML Schema types.
	SchemaNamespace = "http://www.w3.org/2001/XMLSchema"

	// SchemaInstanceNamespace is the namespace of the xsi:type and xsi:nil
	// attributes.
	SchemaInstanceNamespace = "http://www.w3.org/2001/XMLSchema-instance"

	// SerializationNamespace is the namespace of the reserved attributes of
	// the serializer (Id, Ref, Size, ...) and of the extra primitive types.
	SerializationNamespace = "http://schemas.microsoft.com/2003/10/Serialization/"

	// ArraysNamespace is the namespace of the collections of primitive types.
	ArraysNamespace = SerializationNamespace + "Arrays"

	// DefaultNamespacePrefix is prepended to the package path of a type to
	// build its default namespace.
	DefaultNamespacePrefix = "http://schemas.datacontract.org/2004/07/"
)

// Name is a qualified name made of a local name and a namespace. It is a value
// type that can be used as a map key.
type Name struct {
	Local     string
	Namespace string
}

// New returns a qualified name.
func New(local, namespace string) Name {
	return Name{Local: local, Namespace: namespace}
}

// IsZero returns true if the name is not set.
func (n Name) IsZero() bool {
	return n.Local == "" && n.Namespace == ""
}

// String implements fmt.Stringer. It returns the name in the Clark notation.
func (n Name) String() string {
	if n.Namespace == "" {
		return n.Local
	}

	return fmt.Sprintf("{%s}%s", n.Namespace, n.Local)
}
