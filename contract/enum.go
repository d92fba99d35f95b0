package contract

import (
	"reflect"
	"strings"

	"go.dedis.ch/dcxml"
	"go.dedis.ch/dcxml/qname"
	"go.dedis.ch/dcxml/xmlio"
)

// EnumContract is the contract of the named integer types with enumerated
// members. A value is written as the name of its member, or as the
// space-separated names of its bits for a set of flags.
//
// - implements contract.Contract
type EnumContract struct {
	typ         reflect.Type
	name        qname.Name
	members     []EnumMember
	flags       bool
	unsigned    bool
	isReference bool
}

func newEnum(t reflect.Type, desc Description) (*EnumContract, error) {
	c := &EnumContract{
		typ:         t,
		flags:       desc.Flags,
		isReference: desc.IsReference,
	}

	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		c.unsigned = true
	default:
		return nil, contractError("enumeration %v must have an integer type", t)
	}

	name, err := StableName(t)
	if err != nil {
		return nil, err
	}

	c.name = name

	seen := make(map[string]bool)

	for _, m := range desc.EnumMembers {
		if m.Name == "" {
			return nil, contractError("enumeration %v has a member without name", t)
		}

		if seen[m.Name] {
			return nil, contractError("enumeration %v has more than one member named %s", t, m.Name)
		}

		seen[m.Name] = true

		c.members = append(c.members, EnumMember{Name: qname.EncodeLocalName(m.Name), Value: m.Value})
	}

	return c, nil
}

// Kind implements contract.Contract.
func (c *EnumContract) Kind() Kind {
	return Enum
}

// Type implements contract.Contract.
func (c *EnumContract) Type() reflect.Type {
	return c.typ
}

// Name implements contract.Contract.
func (c *EnumContract) Name() qname.Name {
	return c.name
}

// IsReference implements contract.Contract.
func (c *EnumContract) IsReference() bool {
	return c.isReference
}

// CanContainReferences implements contract.Contract.
func (c *EnumContract) CanContainReferences() bool {
	return false
}

// Members returns the members of the enumeration.
func (c *EnumContract) Members() []EnumMember {
	return c.members
}

// IsFlags returns true if the enumeration is a set of flags.
func (c *EnumContract) IsFlags() bool {
	return c.flags
}

// Format returns the lexical form of the value.
func (c *EnumContract) Format(v reflect.Value) (string, error) {
	bits := c.bits(v)

	if !c.flags {
		for _, m := range c.members {
			if uint64(m.Value) == bits {
				return m.Name, nil
			}
		}

		return "", dcxml.NewError(dcxml.IntegrityError,
			"value %d is not a member of the enumeration %s", bits, c.name)
	}

	if bits == 0 {
		for _, m := range c.members {
			if m.Value == 0 {
				return m.Name, nil
			}
		}

		return "", nil
	}

	// The members are consumed in the order of declaration.
	remaining := bits
	var names []string

	for i := 0; i < len(c.members) && remaining != 0; i++ {
		value := uint64(c.members[i].Value)
		if value != 0 && remaining&value == value {
			names = append(names, c.members[i].Name)
			remaining &^= value
		}
	}

	if remaining != 0 {
		return "", dcxml.NewError(dcxml.IntegrityError,
			"value %d cannot be expressed with the flags of %s", bits, c.name)
	}

	return strings.Join(names, " "), nil
}

// Parse returns the value of the lexical form.
func (c *EnumContract) Parse(text string) (reflect.Value, error) {
	var bits uint64

	words := strings.Fields(text)

	if !c.flags && len(words) != 1 {
		return reflect.Value{}, dcxml.NewError(dcxml.WireFormatError,
			"invalid value '%s' for the enumeration %s", text, c.name)
	}

	for _, word := range words {
		value, found := c.lookup(word)
		if !found {
			return reflect.Value{}, dcxml.NewError(dcxml.WireFormatError,
				"invalid value '%s' for the enumeration %s", word, c.name)
		}

		bits |= value
	}

	out := reflect.New(c.typ).Elem()
	if c.unsigned {
		out.SetUint(bits)
	} else {
		out.SetInt(int64(bits))
	}

	return out, nil
}

// WriteContent implements contract.Contract.
func (c *EnumContract) WriteContent(w xmlio.Writer, v reflect.Value, ctx WriteContext) error {
	text, err := c.Format(v)
	if err != nil {
		return err
	}

	return w.WriteString(text)
}

// ReadContent implements contract.Contract.
func (c *EnumContract) ReadContent(r xmlio.Reader, ctx ReadContext) (reflect.Value, error) {
	ctx.TakeNode()

	line, column := r.Position()

	text, err := r.ReadString()
	if err != nil {
		return reflect.Value{}, err
	}

	value, err := c.Parse(text)
	if err != nil {
		return reflect.Value{}, err.(*dcxml.Error).At(line, column)
	}

	return value, nil
}

func (c *EnumContract) lookup(name string) (uint64, bool) {
	for _, m := range c.members {
		if m.Name == name {
			return uint64(m.Value), true
		}
	}

	return 0, false
}

func (c *EnumContract) bits(v reflect.Value) uint64 {
	if c.unsigned {
		return v.Uint()
	}

	return uint64(v.Int())
}
