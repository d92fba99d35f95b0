package contract

import (
	"math/big"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.dedis.ch/dcxml"
	"go.dedis.ch/dcxml/qname"
	"go.dedis.ch/dcxml/xmlio"
)

// codec is the pair of reader and writer primitives of a scalar type. The
// method is the name of the primitive, for diagnostics.
type codec struct {
	method string
	write  func(w xmlio.Writer, v reflect.Value) error
	read   func(r xmlio.Reader, t reflect.Type) (reflect.Value, error)
}

// PrimitiveContract is the contract of the scalar types.
//
// - implements contract.Contract
type PrimitiveContract struct {
	typ   reflect.Type
	name  qname.Name
	codec codec
}

func newPrimitive(t reflect.Type) (*PrimitiveContract, error) {
	c, found := primitiveCodec(t)
	if !found {
		return nil, contractError("type %v is not a primitive", t)
	}

	name, err := StableName(t)
	if err != nil {
		return nil, err
	}

	pc := &PrimitiveContract{
		typ:   t,
		name:  name,
		codec: c,
	}

	return pc, nil
}

// Kind implements contract.Contract.
func (c *PrimitiveContract) Kind() Kind {
	return Primitive
}

// Type implements contract.Contract.
func (c *PrimitiveContract) Type() reflect.Type {
	return c.typ
}

// Name implements contract.Contract.
func (c *PrimitiveContract) Name() qname.Name {
	return c.name
}

// Method returns the name of the reader and writer primitive used by the
// contract.
func (c *PrimitiveContract) Method() string {
	return c.codec.method
}

// IsReference implements contract.Contract.
func (c *PrimitiveContract) IsReference() bool {
	return false
}

// CanContainReferences implements contract.Contract. Only the empty interface
// can hold a value with an identity.
func (c *PrimitiveContract) CanContainReferences() bool {
	return c.typ == anyType
}

// WriteContent implements contract.Contract.
func (c *PrimitiveContract) WriteContent(w xmlio.Writer, v reflect.Value, ctx WriteContext) error {
	return c.codec.write(w, v)
}

// ReadContent implements contract.Contract.
func (c *PrimitiveContract) ReadContent(r xmlio.Reader, ctx ReadContext) (reflect.Value, error) {
	ctx.TakeNode()

	return c.codec.read(r, c.typ)
}

// PrimitiveByName returns the primitive contract with the given name.
func PrimitiveByName(name qname.Name) (Contract, bool) {
	t, found := primitiveTypes[name]
	if !found {
		return nil, false
	}

	c, err := For(t)
	if err != nil {
		return nil, false
	}

	return c, true
}

// Primitives returns the primitive contracts that names resolve to, in a
// stable order.
func Primitives() []Contract {
	res := make([]Contract, 0, len(primitiveTypes))

	for _, t := range canonicalTypes {
		name, _ := StableName(t)
		if primitiveTypes[name] != t {
			continue
		}

		c, err := For(t)
		if err == nil {
			res = append(res, c)
		}
	}

	return res
}

var (
	anyType  = reflect.TypeOf((*interface{})(nil)).Elem()
	byteType = reflect.TypeOf(byte(0))
)

// canonicalTypes are the types a primitive name resolves to when several types
// share it. The first one wins.
var canonicalTypes = []reflect.Type{
	reflect.TypeOf(false),
	reflect.TypeOf(int8(0)),
	reflect.TypeOf(uint8(0)),
	reflect.TypeOf(int16(0)),
	reflect.TypeOf(uint16(0)),
	reflect.TypeOf(int32(0)),
	reflect.TypeOf(uint32(0)),
	reflect.TypeOf(int64(0)),
	reflect.TypeOf(uint64(0)),
	reflect.TypeOf(float32(0)),
	reflect.TypeOf(float64(0)),
	reflect.TypeOf(""),
	reflect.TypeOf([]byte(nil)),
	reflect.TypeOf(big.Float{}),
	reflect.TypeOf(url.URL{}),
	reflect.TypeOf(time.Time{}),
	reflect.TypeOf(time.Duration(0)),
	reflect.TypeOf(uuid.UUID{}),
	reflect.TypeOf(qname.Name{}),
	charType,
	anyType,
}

var primitiveTypes = make(map[qname.Name]reflect.Type)

func init() {
	for _, t := range canonicalTypes {
		name, err := StableName(t)
		if err != nil {
			panic("primitive without name: " + t.String())
		}

		_, found := primitiveTypes[name]
		if !found {
			primitiveTypes[name] = t
		}
	}
}

// typeCodecs are the codecs selected by the exact type. The table is built
// once and only read afterwards.
var typeCodecs = map[reflect.Type]codec{
	reflect.TypeOf(time.Time{}): {
		method: "Time",
		write: func(w xmlio.Writer, v reflect.Value) error {
			return w.WriteTime(v.Interface().(time.Time))
		},
		read: func(r xmlio.Reader, t reflect.Type) (reflect.Value, error) {
			value, err := r.ReadTime()
			return reflect.ValueOf(value), err
		},
	},
	reflect.TypeOf(time.Duration(0)): {
		method: "Duration",
		write: func(w xmlio.Writer, v reflect.Value) error {
			return w.WriteDuration(time.Duration(v.Int()))
		},
		read: func(r xmlio.Reader, t reflect.Type) (reflect.Value, error) {
			value, err := r.ReadDuration()
			return reflect.ValueOf(value), err
		},
	},
	reflect.TypeOf(uuid.UUID{}): {
		method: "Guid",
		write: func(w xmlio.Writer, v reflect.Value) error {
			return w.WriteString(v.Interface().(uuid.UUID).String())
		},
		read: func(r xmlio.Reader, t reflect.Type) (reflect.Value, error) {
			line, column := r.Position()

			text, err := r.ReadString()
			if err != nil {
				return reflect.Value{}, err
			}

			value, err := uuid.Parse(strings.TrimSpace(text))
			if err != nil {
				return reflect.Value{}, dcxml.NewError(dcxml.WireFormatError,
					"invalid guid '%s'", text).At(line, column)
			}

			return reflect.ValueOf(value), nil
		},
	},
	reflect.TypeOf(url.URL{}): {
		method: "Uri",
		write: func(w xmlio.Writer, v reflect.Value) error {
			u := v.Interface().(url.URL)
			return w.WriteString(u.String())
		},
		read: func(r xmlio.Reader, t reflect.Type) (reflect.Value, error) {
			line, column := r.Position()

			text, err := r.ReadString()
			if err != nil {
				return reflect.Value{}, err
			}

			value, err := url.Parse(strings.TrimSpace(text))
			if err != nil {
				return reflect.Value{}, dcxml.NewError(dcxml.WireFormatError,
					"invalid uri '%s'", text).At(line, column)
			}

			return reflect.ValueOf(value).Elem(), nil
		},
	},
	reflect.TypeOf(big.Float{}): {
		method: "Decimal",
		write: func(w xmlio.Writer, v reflect.Value) error {
			var ptr reflect.Value
			if v.CanAddr() {
				ptr = v.Addr()
			} else {
				ptr = reflect.New(v.Type())
				ptr.Elem().Set(v)
			}

			return w.WriteString(ptr.Interface().(*big.Float).Text('g', -1))
		},
		read: func(r xmlio.Reader, t reflect.Type) (reflect.Value, error) {
			line, column := r.Position()

			text, err := r.ReadString()
			if err != nil {
				return reflect.Value{}, err
			}

			value, ok := new(big.Float).SetString(strings.TrimSpace(text))
			if !ok {
				return reflect.Value{}, dcxml.NewError(dcxml.WireFormatError,
					"invalid decimal '%s'", text).At(line, column)
			}

			return reflect.ValueOf(value).Elem(), nil
		},
	},
	reflect.TypeOf(qname.Name{}): {
		method: "QName",
		write: func(w xmlio.Writer, v reflect.Value) error {
			return w.WriteQName(v.Interface().(qname.Name))
		},
		read: func(r xmlio.Reader, t reflect.Type) (reflect.Value, error) {
			value, err := r.ReadQName()
			return reflect.ValueOf(value), err
		},
	},
	anyType: {
		method: "Object",
		write: func(w xmlio.Writer, v reflect.Value) error {
			return nil
		},
		read: func(r xmlio.Reader, t reflect.Type) (reflect.Value, error) {
			text, err := r.ReadString()
			if err != nil {
				return reflect.Value{}, err
			}

			out := reflect.New(anyType).Elem()
			out.Set(reflect.ValueOf(text))

			return out, nil
		},
	},
}

var base64Codec = codec{
	method: "Base64",
	write: func(w xmlio.Writer, v reflect.Value) error {
		return w.WriteBase64(v.Bytes())
	},
	read: func(r xmlio.Reader, t reflect.Type) (reflect.Value, error) {
		value, err := r.ReadBase64()
		if err != nil {
			return reflect.Value{}, err
		}

		return reflect.ValueOf(value).Convert(t), nil
	},
}

func intCodec(bitSize int) codec {
	return codec{
		method: "Int",
		write: func(w xmlio.Writer, v reflect.Value) error {
			return w.WriteInt(v.Int())
		},
		read: func(r xmlio.Reader, t reflect.Type) (reflect.Value, error) {
			value, err := r.ReadInt(bitSize)
			if err != nil {
				return reflect.Value{}, err
			}

			out := reflect.New(t).Elem()
			out.SetInt(value)

			return out, nil
		},
	}
}

func uintCodec(bitSize int) codec {
	return codec{
		method: "Uint",
		write: func(w xmlio.Writer, v reflect.Value) error {
			return w.WriteUint(v.Uint())
		},
		read: func(r xmlio.Reader, t reflect.Type) (reflect.Value, error) {
			value, err := r.ReadUint(bitSize)
			if err != nil {
				return reflect.Value{}, err
			}

			out := reflect.New(t).Elem()
			out.SetUint(value)

			return out, nil
		},
	}
}

func floatCodec(bitSize int) codec {
	return codec{
		method: "Float",
		write: func(w xmlio.Writer, v reflect.Value) error {
			return w.WriteFloat(v.Float(), bitSize)
		},
		read: func(r xmlio.Reader, t reflect.Type) (reflect.Value, error) {
			value, err := r.ReadFloat(bitSize)
			if err != nil {
				return reflect.Value{}, err
			}

			out := reflect.New(t).Elem()
			out.SetFloat(value)

			return out, nil
		},
	}
}

// kindCodecs are the codecs of the basic kinds, which also serve the named
// scalar types.
var kindCodecs = map[reflect.Kind]codec{
	reflect.Bool: {
		method: "Bool",
		write: func(w xmlio.Writer, v reflect.Value) error {
			return w.WriteBool(v.Bool())
		},
		read: func(r xmlio.Reader, t reflect.Type) (reflect.Value, error) {
			value, err := r.ReadBool()
			if err != nil {
				return reflect.Value{}, err
			}

			out := reflect.New(t).Elem()
			out.SetBool(value)

			return out, nil
		},
	},
	reflect.String: {
		method: "String",
		write: func(w xmlio.Writer, v reflect.Value) error {
			return w.WriteString(v.String())
		},
		read: func(r xmlio.Reader, t reflect.Type) (reflect.Value, error) {
			value, err := r.ReadString()
			if err != nil {
				return reflect.Value{}, err
			}

			out := reflect.New(t).Elem()
			out.SetString(value)

			return out, nil
		},
	},
	reflect.Int:     intCodec(64),
	reflect.Int8:    intCodec(8),
	reflect.Int16:   intCodec(16),
	reflect.Int32:   intCodec(32),
	reflect.Int64:   intCodec(64),
	reflect.Uint:    uintCodec(64),
	reflect.Uint8:   uintCodec(8),
	reflect.Uint16:  uintCodec(16),
	reflect.Uint32:  uintCodec(32),
	reflect.Uint64:  uintCodec(64),
	reflect.Float32: floatCodec(32),
	reflect.Float64: floatCodec(64),
}

// primitiveCodec returns the codec of the type if it is a scalar type.
func primitiveCodec(t reflect.Type) (codec, bool) {
	c, found := typeCodecs[t]
	if found {
		return c, true
	}

	if t.Kind() == reflect.Slice && t.Elem() == byteType {
		return base64Codec, true
	}

	c, found = kindCodecs[t.Kind()]

	return c, found
}
