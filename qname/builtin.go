package qname

import (
	"math/big"
	"net/url"
	"reflect"
	"time"

	"github.com/google/uuid"
)

// builtins is the table of the Go types that have a fixed, well-known name.
var builtins = map[reflect.Type]Name{
	reflect.TypeOf(false):            New("boolean", SchemaNamespace),
	reflect.TypeOf(int8(0)):          New("byte", SchemaNamespace),
	reflect.TypeOf(uint8(0)):         New("unsignedByte", SchemaNamespace),
	reflect.TypeOf(int16(0)):         New("short", SchemaNamespace),
	reflect.TypeOf(uint16(0)):        New("unsignedShort", SchemaNamespace),
	reflect.TypeOf(int32(0)):         New("int", SchemaNamespace),
	reflect.TypeOf(uint32(0)):        New("unsignedInt", SchemaNamespace),
	reflect.TypeOf(int64(0)):         New("long", SchemaNamespace),
	reflect.TypeOf(uint64(0)):        New("unsignedLong", SchemaNamespace),
	reflect.TypeOf(int(0)):           New("long", SchemaNamespace),
	reflect.TypeOf(uint(0)):          New("unsignedLong", SchemaNamespace),
	reflect.TypeOf(float32(0)):       New("float", SchemaNamespace),
	reflect.TypeOf(float64(0)):       New("double", SchemaNamespace),
	reflect.TypeOf(""):               New("string", SchemaNamespace),
	reflect.TypeOf([]byte(nil)):      New("base64Binary", SchemaNamespace),
	reflect.TypeOf(big.Float{}):      New("decimal", SchemaNamespace),
	reflect.TypeOf(url.URL{}):        New("anyURI", SchemaNamespace),
	reflect.TypeOf(time.Time{}):      New("dateTime", SchemaNamespace),
	reflect.TypeOf(Name{}):           New("QName", SchemaNamespace),
	reflect.TypeOf(time.Duration(0)): New("duration", SerializationNamespace),
	reflect.TypeOf(uuid.UUID{}):      New("guid", SerializationNamespace),
	anyType:                          New("anyType", SchemaNamespace),
}

var anyType = reflect.TypeOf((*interface{})(nil)).Elem()

// kindTypes maps the basic kinds to the type used to name a named scalar type
// that does not provide a name of its own.
var kindTypes = map[reflect.Kind]reflect.Type{
	reflect.Bool:    reflect.TypeOf(false),
	reflect.Int8:    reflect.TypeOf(int8(0)),
	reflect.Uint8:   reflect.TypeOf(uint8(0)),
	reflect.Int16:   reflect.TypeOf(int16(0)),
	reflect.Uint16:  reflect.TypeOf(uint16(0)),
	reflect.Int32:   reflect.TypeOf(int32(0)),
	reflect.Uint32:  reflect.TypeOf(uint32(0)),
	reflect.Int64:   reflect.TypeOf(int64(0)),
	reflect.Uint64:  reflect.TypeOf(uint64(0)),
	reflect.Int:     reflect.TypeOf(int(0)),
	reflect.Uint:    reflect.TypeOf(uint(0)),
	reflect.Float32: reflect.TypeOf(float32(0)),
	reflect.Float64: reflect.TypeOf(float64(0)),
	reflect.String:  reflect.TypeOf(""),
}

// builtinsByGoName indexes the built-in names by the textual Go name of the
// types, as it appears inside the name of a generic instantiation.
var builtinsByGoName = make(map[string]Name)

func init() {
	for typ, name := range builtins {
		builtinsByGoName[goName(typ)] = name
	}

	builtinsByGoName["any"] = builtins[anyType]
}

// BuiltinName returns the well-known name of the type if it is a built-in
// type, or a named scalar type based on one.
func BuiltinName(t reflect.Type) (Name, bool) {
	name, found := builtins[t]
	if found {
		return name, true
	}

	base, found := kindTypes[t.Kind()]
	if found {
		return builtins[base], true
	}

	return Name{}, false
}

// IsBuiltinNamespace returns true for the namespaces that never need to be
// distinguished when composing names.
func IsBuiltinNamespace(ns string) bool {
	switch ns {
	case SchemaNamespace, SerializationNamespace, ArraysNamespace:
		return true
	default:
		return false
	}
}

// goName returns the textual name of the type as the reflection package prints
// it inside generic instantiations.
func goName(t reflect.Type) string {
	if t.Name() != "" && t.PkgPath() != "" {
		return t.PkgPath() + "." + t.Name()
	}

	return t.String()
}
