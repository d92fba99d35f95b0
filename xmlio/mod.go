// Package xmlio defines the streaming XML reader and writer capabilities
// consumed by the serialization engine, and a default implementation of both
// on top of encoding/xml.
//
// The reader is a pull reader positioned on a node of the document. The typed
// read primitives consume exactly one element: its start tag, its text content
// and its end tag. The writer mirrors the reader.
package xmlio

import (
	"time"

	"go.dedis.ch/dcxml/qname"
)

// NodeKind is the kind of node the reader is positioned on.
type NodeKind int

const (
	// NoNode is returned when the reader has not been positioned yet.
	NoNode NodeKind = iota
	// ElementNode is a start tag.
	ElementNode
	// EndElementNode is an end tag.
	EndElementNode
	// TextNode is a non-whitespace character data node.
	TextNode
	// EOFNode is returned at the end of the document.
	EOFNode
)

// String implements fmt.Stringer.
func (k NodeKind) String() string {
	switch k {
	case ElementNode:
		return "element"
	case EndElementNode:
		return "end element"
	case TextNode:
		return "text"
	case EOFNode:
		return "end of document"
	default:
		return "none"
	}
}

// Writer is the push writer the contracts write to.
type Writer interface {
	// WriteStartElement opens an element. Attributes and namespace
	// declarations can be written until some content is written.
	WriteStartElement(local, namespace string) error

	// WriteEndElement closes the element opened last.
	WriteEndElement() error

	// WriteAttribute writes an attribute on the element being opened.
	WriteAttribute(local, namespace, value string) error

	// WriteQNameAttribute writes an attribute whose value is a qualified
	// name, declaring the prefix of the namespace if necessary.
	WriteQNameAttribute(local, namespace string, value qname.Name) error

	// WriteNamespace declares a prefix on the element being opened.
	WriteNamespace(prefix, namespace string) error

	WriteString(value string) error
	WriteBool(value bool) error
	WriteInt(value int64) error
	WriteUint(value uint64) error
	WriteFloat(value float64, bitSize int) error
	WriteBase64(value []byte) error
	WriteTime(value time.Time) error
	WriteDuration(value time.Duration) error
	WriteQName(value qname.Name) error

	// WriteRaw writes a well-formed fragment as it is.
	WriteRaw(fragment string) error

	// Flush writes any buffered data to the underlying writer.
	Flush() error
}

// Reader is the pull reader the contracts read from.
type Reader interface {
	// MoveToContent skips the whitespace, comments and processing
	// instructions and returns the kind of the current node.
	MoveToContent() (NodeKind, error)

	// LocalName returns the local name of the current element.
	LocalName() string

	// NamespaceURI returns the namespace of the current element.
	NamespaceURI() string

	// IsStartElement returns true if the reader is positioned on the start tag
	// of the given element. It does not move the reader.
	IsStartElement(local, namespace string) bool

	// IsEmptyElement returns true if the current element has no content.
	IsEmptyElement() bool

	// Attribute returns the value of the attribute of the current element.
	Attribute(local, namespace string) (string, bool)

	// LookupNamespace resolves a prefix in the scope of the current element.
	LookupNamespace(prefix string) (string, bool)

	// ReadStartElement consumes the start tag of the current element.
	ReadStartElement() error

	// ReadEndElement consumes the end tag the reader is positioned on.
	ReadEndElement() error

	// Skip consumes the current node and its subtree.
	Skip() error

	ReadString() (string, error)
	ReadBool() (bool, error)
	ReadInt(bitSize int) (int64, error)
	ReadUint(bitSize int) (uint64, error)
	ReadFloat(bitSize int) (float64, error)
	ReadBase64() ([]byte, error)
	ReadTime() (time.Time, error)
	ReadDuration() (time.Duration, error)
	ReadQName() (qname.Name, error)

	// ReadSubtree consumes the current element and returns it as a
	// self-contained fragment.
	ReadSubtree() (string, error)

	// Position returns the line and column of the current node.
	Position() (line, column int)
}

// Marshaler is implemented by the types that read and write their own content.
// The writer is positioned inside the wrapping element, the reader on its start
// tag that ReadXML must consume up to its end tag included.
type Marshaler interface {
	WriteXML(w Writer) error
	ReadXML(r Reader) error
}
