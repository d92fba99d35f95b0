package contract

import (
	"reflect"
	"sort"

	"go.dedis.ch/dcxml"
	"go.dedis.ch/dcxml/qname"
	"go.dedis.ch/dcxml/xmlio"
)

// chainMember is a member of the class or of one of its bases, with the
// accessors from the outermost struct.
type chainMember struct {
	member      *DataMember
	get         getter
	set         setter
	conflicting bool
}

// embedded returns the member as seen from a struct embedding its class at the
// given field.
func (cm chainMember) embedded(field int) chainMember {
	get, set := cm.get, cm.set

	return chainMember{
		member: cm.member,
		get: func(obj reflect.Value) reflect.Value {
			return get(obj.Field(field))
		},
		set: func(obj reflect.Value, value reflect.Value) {
			set(obj.Field(field), value)
		},
	}
}

// ClassContract is the contract of the structs. An embedded struct is the base
// class: its members are written first, and the chain of bases is walked
// iteratively.
//
// - implements contract.Contract
type ClassContract struct {
	typ         reflect.Type
	name        qname.Name
	desc        Description
	base        *ClassContract
	members     []*DataMember
	chain       []chainMember
	extension   []int
	knownTypes  []reflect.Type
	initializer bool
}

func newClass(t reflect.Type, desc Description) (*ClassContract, error) {
	name, err := StableName(t)
	if err != nil {
		return nil, err
	}

	return buildClass(t, name, desc)
}

// newKeyValueClass returns the contract of the entries of a dictionary.
func newKeyValueClass(t reflect.Type, name qname.Name) (*ClassContract, error) {
	c, err := buildClass(t, name, Description{})
	if err != nil {
		return nil, err
	}

	for _, m := range c.members {
		m.Required = true
	}

	return c, nil
}

func buildClass(t reflect.Type, name qname.Name, desc Description) (*ClassContract, error) {
	c := &ClassContract{
		typ:         t,
		name:        name,
		desc:        desc,
		initializer: reflect.PtrTo(t).Implements(initializerType),
	}

	var baseIndex []int

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Type == extensionDataType {
			if c.extension != nil {
				return nil, contractError("type %v has more than one extension data field", t)
			}

			c.extension = field.Index
			continue
		}

		tag, err := parseTag(field)
		if err != nil {
			return nil, err
		}

		if tag.skip {
			continue
		}

		if field.Anonymous {
			index, err := c.setBase(field)
			if err != nil {
				return nil, err
			}

			if index != nil {
				baseIndex = index
			}

			continue
		}

		if field.PkgPath != "" {
			// Unexported fields are not members.
			continue
		}

		m, err := newMember(field, tag, name.Namespace, desc)
		if err != nil {
			return nil, err
		}

		c.members = append(c.members, m)
	}

	sort.SliceStable(c.members, func(i, j int) bool {
		return c.members[i].Order < c.members[j].Order
	})

	err := c.checkMembers()
	if err != nil {
		return nil, err
	}

	c.link(baseIndex)

	return c, nil
}

// setBase records the embedded struct as the base class. It returns the index
// of the field, or nil if the embedded field is not a base.
func (c *ClassContract) setBase(field reflect.StructField) ([]int, error) {
	switch field.Type.Kind() {
	case reflect.Ptr:
		if field.Type.Elem().Kind() == reflect.Struct {
			return nil, contractError("type %v embeds the pointer %v: a base class must be embedded by value",
				c.typ, field.Type)
		}

		return nil, nil
	case reflect.Struct:
	default:
		return nil, nil
	}

	if c.base != nil {
		return nil, contractError("type %v embeds more than one base class", c.typ)
	}

	base, err := For(field.Type)
	if err != nil {
		return nil, wrapContract(err, "invalid base class of %v", c.typ)
	}

	class, ok := base.(*ClassContract)
	if !ok {
		return nil, contractError("base %v of type %v is not a class", field.Type, c.typ)
	}

	c.base = class

	return field.Index, nil
}

func newMember(field reflect.StructField, tag tag, ns string, desc Description) (*DataMember, error) {
	m := &DataMember{
		Name:        qname.EncodeLocalName(tag.name),
		Namespace:   ns,
		Order:       tag.order,
		Required:    tag.required,
		EmitDefault: tag.emitDefault,
		Nullable:    tag.nullable || isNullable(field.Type),
		GetOnly:     tag.getOnly,
		Type:        field.Type,
	}

	m.bind(field.Index[0])

	m.KnownTypes = desc.MemberKnownTypes[tag.name]

	if m.GetOnly && !canReadInPlace(field.Type) {
		return nil, contractError("get-only member %s must be a map or a pointer to a collection", field.Name)
	}

	return m, nil
}

func (c *ClassContract) checkMembers() error {
	names := make(map[string]bool)

	for _, m := range c.members {
		if names[m.Name] {
			return contractError("type %v has more than one member named %s", c.typ, m.Name)
		}

		names[m.Name] = true
	}

	for member := range c.desc.MemberKnownTypes {
		if !names[qname.EncodeLocalName(member)] {
			return contractError("known types are declared for the unknown member %s of %v",
				member, c.typ)
		}
	}

	return nil
}

// link flattens the chain of members, bases first, and detects the members of
// the chain sharing a name with different types.
func (c *ClassContract) link(baseIndex []int) {
	if c.base != nil {
		for _, cm := range c.base.chain {
			c.chain = append(c.chain, cm.embedded(baseIndex[0]))
		}

		c.knownTypes = append(c.knownTypes, c.base.knownTypes...)

		if c.extension == nil && c.base.extension != nil {
			c.extension = append(append([]int{}, baseIndex...), c.base.extension...)
		}
	}

	c.knownTypes = append(c.knownTypes, c.desc.KnownTypes...)

	for _, m := range c.members {
		c.chain = append(c.chain, chainMember{member: m, get: m.get, set: m.set})
	}

	types := make(map[string]reflect.Type)
	conflicts := make(map[string]bool)

	for _, cm := range c.chain {
		prev, found := types[cm.member.Name]
		if found && prev != cm.member.Type {
			conflicts[cm.member.Name] = true
		}

		types[cm.member.Name] = cm.member.Type
	}

	for i := range c.chain {
		c.chain[i].conflicting = conflicts[c.chain[i].member.Name]
	}
}

// Kind implements contract.Contract.
func (c *ClassContract) Kind() Kind {
	return Class
}

// Type implements contract.Contract.
func (c *ClassContract) Type() reflect.Type {
	return c.typ
}

// Name implements contract.Contract.
func (c *ClassContract) Name() qname.Name {
	return c.name
}

// IsReference implements contract.Contract.
func (c *ClassContract) IsReference() bool {
	return c.desc.IsReference
}

// CanContainReferences implements contract.Contract.
func (c *ClassContract) CanContainReferences() bool {
	return true
}

// Base returns the contract of the base class, or nil.
func (c *ClassContract) Base() *ClassContract {
	return c.base
}

// Members returns the members declared by the class itself, in order.
func (c *ClassContract) Members() []*DataMember {
	return c.members
}

// AllMembers returns the members of the chain of classes, bases first.
func (c *ClassContract) AllMembers() []*DataMember {
	members := make([]*DataMember, len(c.chain))
	for i, cm := range c.chain {
		members[i] = cm.member
	}

	return members
}

// IsConflicting returns true if the member shares its name with a member of
// another class of the chain that has a different type.
func (c *ClassContract) IsConflicting(name string) bool {
	for _, cm := range c.chain {
		if cm.member.Name == name && cm.conflicting {
			return true
		}
	}

	return false
}

// KnownTypes returns the known types declared by the class and its bases.
func (c *ClassContract) KnownTypes() []reflect.Type {
	return c.knownTypes
}

// HasExtensionData returns true if the class preserves the unknown members.
func (c *ClassContract) HasExtensionData() bool {
	return c.extension != nil
}

// GenericParameters returns the parameters of the generic instantiation the
// class is, if any.
func (c *ClassContract) GenericParameters() []*GenericParameterContract {
	params := make([]*GenericParameterContract, len(c.desc.GenericArguments))
	for i, arg := range c.desc.GenericArguments {
		params[i] = newGenericParameter(c.name, i, arg)
	}

	return params
}

// WriteContent implements contract.Contract. A member with its zero value is
// omitted if it does not emit the default value, which is an error for a
// required member.
func (c *ClassContract) WriteContent(w xmlio.Writer, v reflect.Value, ctx WriteContext) error {
	if len(c.knownTypes) > 0 {
		err := ctx.PushKnownTypes(c.knownTypes)
		if err != nil {
			return err
		}

		defer ctx.PopKnownTypes()
	}

	for _, cm := range c.chain {
		m := cm.member
		value := cm.get(v)

		if !m.EmitDefault && value.IsZero() {
			if m.Required {
				return dcxml.NewError(dcxml.IntegrityError,
					"required member %s of %s has its default value and cannot be omitted",
					m.Name, c.name)
			}

			continue
		}

		err := c.writeMember(w, m, value, cm.conflicting, ctx)
		if err != nil {
			return err
		}
	}

	if c.extension != nil {
		data := v.FieldByIndex(c.extension).Interface().(ExtensionData)

		for _, ext := range data.Members {
			err := w.WriteRaw(ext.XML)
			if err != nil {
				return err
			}
		}
	}

	return nil
}

func (c *ClassContract) writeMember(w xmlio.Writer, m *DataMember, value reflect.Value,
	conflicting bool, ctx WriteContext) error {

	err := w.WriteStartElement(m.Name, m.Namespace)
	if err != nil {
		return err
	}

	if len(m.KnownTypes) > 0 {
		err = ctx.PushKnownTypes(m.KnownTypes)
		if err != nil {
			return err
		}

		defer ctx.PopKnownTypes()
	}

	err = ctx.WriteValue(w, value, m.Type, conflicting)
	if err != nil {
		return err
	}

	return w.WriteEndElement()
}

// ReadContent implements contract.Contract. The members are matched in order:
// an element that does not match a member after the last one read is unknown
// and either preserved as extension data or skipped.
func (c *ClassContract) ReadContent(r xmlio.Reader, ctx ReadContext) (reflect.Value, error) {
	node := ctx.TakeNode()

	ptr := reflect.New(c.typ)

	err := ctx.Created(node, ptr)
	if err != nil {
		return reflect.Value{}, err
	}

	if c.initializer {
		ptr.Interface().(Initializer).InitContract()
	}

	obj := ptr.Elem()

	if len(c.knownTypes) > 0 {
		err = ctx.PushKnownTypes(c.knownTypes)
		if err != nil {
			return reflect.Value{}, err
		}

		defer ctx.PopKnownTypes()
	}

	err = r.ReadStartElement()
	if err != nil {
		return reflect.Value{}, err
	}

	seen := make([]bool, len(c.chain))
	next := 0

	for {
		kind, err := r.MoveToContent()
		if err != nil {
			return reflect.Value{}, err
		}

		if kind == xmlio.EndElementNode {
			break
		}

		if kind != xmlio.ElementNode {
			return reflect.Value{}, positioned(r, dcxml.WireFormatError,
				"unexpected %s in the content of %s", kind, c.name)
		}

		i := c.lookup(r.LocalName(), r.NamespaceURI(), next)
		if i < 0 {
			err = c.readUnknown(r, obj, ctx)
			if err != nil {
				return reflect.Value{}, err
			}

			continue
		}

		err = c.readMember(r, obj, c.chain[i], ctx)
		if err != nil {
			return reflect.Value{}, err
		}

		seen[i] = true
		next = i + 1
	}

	for i, cm := range c.chain {
		if cm.member.Required && !seen[i] {
			return reflect.Value{}, positioned(r, dcxml.IntegrityError,
				"required member %s of %s is missing", cm.member.Name, c.name)
		}
	}

	err = r.ReadEndElement()
	if err != nil {
		return reflect.Value{}, err
	}

	return obj, nil
}

func (c *ClassContract) lookup(local, ns string, from int) int {
	for i := from; i < len(c.chain); i++ {
		m := c.chain[i].member
		if m.Name == local && m.Namespace == ns {
			return i
		}
	}

	return -1
}

func (c *ClassContract) readMember(r xmlio.Reader, obj reflect.Value, cm chainMember, ctx ReadContext) error {
	m := cm.member

	if len(m.KnownTypes) > 0 {
		err := ctx.PushKnownTypes(m.KnownTypes)
		if err != nil {
			return err
		}

		defer ctx.PopKnownTypes()
	}

	if m.GetOnly {
		field := cm.get(obj)
		if field.IsNil() {
			return positioned(r, dcxml.IntegrityError,
				"get-only member %s of %s is nil", m.Name, c.name)
		}

		ctx.SetExisting(field)

		_, err := ctx.ReadValue(r, m.Type)

		return err
	}

	return ctx.ReadValueInto(r, m.Type, func(v reflect.Value) {
		cm.set(obj, v)
	})
}

func (c *ClassContract) readUnknown(r xmlio.Reader, obj reflect.Value, ctx ReadContext) error {
	if c.extension == nil || ctx.IgnoreExtensionData() {
		return r.Skip()
	}

	name := qname.New(r.LocalName(), r.NamespaceURI())

	fragment, err := r.ReadSubtree()
	if err != nil {
		return err
	}

	field := obj.FieldByIndex(c.extension)
	data := field.Interface().(ExtensionData)
	data.Members = append(data.Members, ExtensionMember{Name: name, XML: fragment})
	field.Set(reflect.ValueOf(data))

	return nil
}

// positioned returns an error at the current position of the reader.
func positioned(r xmlio.Reader, kind dcxml.ErrorKind, format string, args ...interface{}) error {
	line, column := r.Position()

	return dcxml.NewError(kind, format, args...).At(line, column)
}

var (
	initializerType   = reflect.TypeOf((*Initializer)(nil)).Elem()
	extensionDataType = reflect.TypeOf(ExtensionData{})
)
