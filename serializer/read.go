package serializer

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"go.dedis.ch/dcxml"
	"go.dedis.ch/dcxml/contract"
	"go.dedis.ch/dcxml/contract/knowntypes"
	"go.dedis.ch/dcxml/qname"
	"go.dedis.ch/dcxml/refs"
	"go.dedis.ch/dcxml/xmlio"
	"golang.org/x/xerrors"
)

// ReadObject reads the root element and returns the value, of the root type.
// The graph is returned only if every reference of the document is resolved.
func (s *Serializer) ReadObject(r xmlio.Reader) (interface{}, error) {
	ctx := &readContext{
		s:      s,
		scope:  s.set.NewScope(),
		cache:  refs.NewCache(),
		logger: s.operationLogger("read"),
	}

	value, err := ctx.readRoot(r)

	observe("read", ctx.items, err)

	if err != nil {
		ctx.logger.Debug().Err(err).Int("items", ctx.items).Msg("read failed")
		return nil, err
	}

	ctx.logger.Debug().
		Int("items", ctx.items).
		Int("objects", ctx.cache.Len()).
		Msg("object read")

	if !value.IsValid() {
		return nil, nil
	}

	return value.Interface(), nil
}

// attributes are the reserved attributes of a node.
type attributes struct {
	id       string
	ref      string
	isNil    bool
	typeName qname.Name
	hasType  bool
	size     int
	typeHint string
}

// readContext is the state of a read operation.
//
// - implements contract.ReadContext
type readContext struct {
	s        *Serializer
	scope    *knowntypes.Scope
	cache    *refs.Cache
	items    int
	node     *contract.Node
	existing reflect.Value
	err      error
	logger   zerolog.Logger

	// pending counts the forward references met so far.
	pending int
	// resolved are called in order once the references are resolved.
	resolved []func()
}

func (ctx *readContext) readRoot(r xmlio.Reader) (reflect.Value, error) {
	kind, err := r.MoveToContent()
	if err != nil {
		return reflect.Value{}, err
	}

	name := ctx.s.rootName

	if kind != xmlio.ElementNode || !r.IsStartElement(name.Local, name.Namespace) {
		return reflect.Value{}, ctx.errorf(r, dcxml.WireFormatError,
			"expecting root element %s but found {%s}%s", name, r.NamespaceURI(), r.LocalName())
	}

	value, err := ctx.ReadValue(r, ctx.s.root)
	if err != nil {
		return reflect.Value{}, err
	}

	if ctx.err != nil {
		return reflect.Value{}, ctx.err
	}

	missing := ctx.cache.Unresolved()
	if len(missing) > 0 {
		return reflect.Value{}, dcxml.NewError(dcxml.IntegrityError,
			"references to undefined ids: %s", strings.Join(missing, ", "))
	}

	for _, fn := range ctx.resolved {
		fn()
	}

	return value, nil
}

// ReadValue implements contract.ReadContext. A reference to an object not
// read yet is an error.
func (ctx *readContext) ReadValue(r xmlio.Reader, declared reflect.Type) (reflect.Value, error) {
	var out reflect.Value

	err := ctx.read(r, declared, func(v reflect.Value) { out = v }, false)
	if err != nil {
		return reflect.Value{}, err
	}

	return out, nil
}

// ReadValueInto implements contract.ReadContext.
func (ctx *readContext) ReadValueInto(r xmlio.Reader, declared reflect.Type, assign contract.Assign) error {
	return ctx.read(r, declared, assign, true)
}

// TakeNode implements contract.ReadContext.
func (ctx *readContext) TakeNode() *contract.Node {
	node := ctx.node
	ctx.node = nil

	if node == nil {
		node = &contract.Node{Size: -1}
	}

	return node
}

// Created implements contract.ReadContext.
func (ctx *readContext) Created(node *contract.Node, obj reflect.Value) error {
	if node.ID == "" || node.Registered {
		return nil
	}

	node.Registered = true

	return ctx.cache.Add(node.ID, obj)
}

// SetExisting implements contract.ReadContext.
func (ctx *readContext) SetExisting(v reflect.Value) {
	ctx.existing = v
}

// PushKnownTypes implements contract.ReadContext.
func (ctx *readContext) PushKnownTypes(types []reflect.Type) error {
	return ctx.scope.Push(types)
}

// PopKnownTypes implements contract.ReadContext.
func (ctx *readContext) PopKnownTypes() {
	ctx.scope.Pop()
}

// IgnoreExtensionData implements contract.ReadContext.
func (ctx *readContext) IgnoreExtensionData() bool {
	return ctx.s.ignoreExt
}

// AfterResolve implements contract.ReadContext.
func (ctx *readContext) AfterResolve(fn func()) {
	ctx.resolved = append(ctx.resolved, fn)
}

func (ctx *readContext) read(r xmlio.Reader, declared reflect.Type, assign contract.Assign,
	deferrable bool) error {

	existing := ctx.existing
	ctx.existing = reflect.Value{}

	ctx.items++
	if ctx.items > ctx.s.maxItems {
		return ctx.errorf(r, dcxml.QuotaError, "maximum number of items %d exceeded", ctx.s.maxItems)
	}

	attrs, err := ctx.attributes(r)
	if err != nil {
		return err
	}

	if attrs.ref != "" {
		return ctx.readRef(r, attrs, declared, assign, deferrable)
	}

	pending := ctx.pending

	if attrs.id != "" {
		err = ctx.checkID(r, attrs.id, declared)
		if err != nil {
			return err
		}
	}

	if attrs.isNil {
		err = r.Skip()
		if err != nil {
			return err
		}

		if !existing.IsValid() {
			assign(reflect.Zero(declared))
		}

		return nil
	}

	c, err := ctx.contractOf(r, attrs, declared)
	if err != nil {
		return err
	}

	node := &contract.Node{ID: attrs.id, Size: attrs.size, Existing: existing}

	wire := c

	sc, isSurrogate := c.(*contract.SurrogateContract)
	if isSurrogate {
		wire = sc.Surrogate()
	}

	ctx.node = node

	value, err := wire.ReadContent(r, ctx)
	if err != nil {
		return err
	}

	// The node is consumed by the contract, it is cleared in case the
	// contract did not need it.
	ctx.node = nil

	if !isSurrogate && node.ID == "" && value.IsValid() && value.Type() == declared {
		ctx.assign(value, assign, deferrable && ctx.pending > pending)
		return nil
	}

	obj := referable(value)

	if isSurrogate {
		obj, err = sc.FromSurrogate(obj, declared)
		if err != nil {
			return err
		}

		if node.Registered {
			ctx.cache.Replace(node.ID, obj)
		}
	}

	if node.ID != "" && !node.Registered {
		node.Registered = true

		err = ctx.cache.Add(node.ID, obj)
		if err != nil {
			return ctx.positioned(r, err)
		}
	}

	out, err := adapt(obj, declared)
	if err != nil {
		return ctx.positioned(r, err)
	}

	ctx.assign(out, assign, deferrable && ctx.pending > pending)

	return nil
}

// assign passes the value read to the parent. A struct or an array is copied
// by the assignment: when a forward reference was met inside it, the copy is
// made once the references are resolved.
func (ctx *readContext) assign(v reflect.Value, assign contract.Assign, hasPending bool) {
	copied := v.Kind() == reflect.Struct || v.Kind() == reflect.Array

	if hasPending && copied {
		ctx.AfterResolve(func() { assign(v) })
		return
	}

	assign(v)
}

func (ctx *readContext) readRef(r xmlio.Reader, attrs attributes, declared reflect.Type,
	assign contract.Assign, deferrable bool) error {

	if attrs.id != "" {
		return ctx.errorf(r, dcxml.IntegrityError,
			"node cannot have both the Id '%s' and the Ref '%s'", attrs.id, attrs.ref)
	}

	if !canHoldReference(declared) {
		return ctx.errorf(r, dcxml.IntegrityError,
			"value of type %v cannot be the reference '%s'", declared, attrs.ref)
	}

	line, column := r.Position()

	// The reference has precedence over any content.
	err := r.Skip()
	if err != nil {
		return err
	}

	obj, found := ctx.cache.Get(attrs.ref)
	if found {
		out, err := adapt(obj, declared)
		if err != nil {
			return withPosition(err, line, column)
		}

		assign(out)

		return nil
	}

	if !deferrable {
		return dcxml.NewError(dcxml.IntegrityError,
			"reference to the id '%s' that is not defined yet", attrs.ref).At(line, column)
	}

	ctx.pending++

	ctx.cache.Defer(attrs.ref, func(obj reflect.Value) {
		out, err := adapt(obj, declared)
		if err != nil {
			if ctx.err == nil {
				ctx.err = withPosition(err, line, column)
			}

			return
		}

		assign(out)
	})

	return nil
}

// checkID verifies that a new object can be registered under the identifier
// before its content is read.
func (ctx *readContext) checkID(r xmlio.Reader, id string, declared reflect.Type) error {
	if !canHoldReference(declared) {
		return ctx.errorf(r, dcxml.IntegrityError,
			"value of type %v cannot carry the Id '%s'", declared, id)
	}

	if ctx.cache.Has(id) {
		return ctx.errorf(r, dcxml.IntegrityError, "multiple Id definition for '%s'", id)
	}

	if ctx.cache.Len() >= ctx.s.maxObjects {
		return ctx.errorf(r, dcxml.IntegrityError,
			"object table overflow: more than %d objects", ctx.s.maxObjects)
	}

	return nil
}

// contractOf returns the contract of the node: the declared contract or the
// one named by the type attribute.
func (ctx *readContext) contractOf(r xmlio.Reader, attrs attributes, declared reflect.Type) (contract.Contract, error) {
	declaredContract, err := ctx.s.contractOf(declared)
	if err != nil {
		return nil, err
	}

	if attrs.hasType && attrs.typeName != declaredContract.Name() {
		c, err := ctx.scope.Resolve(attrs.typeName, declared)
		if err != nil {
			return nil, ctx.positioned(r, err)
		}

		sc, found := ctx.s.surrogateOf(c)
		if found {
			c = sc
		}

		if !assignable(c.Type(), declared) {
			return nil, ctx.errorf(r, dcxml.IntegrityError,
				"type %s cannot be assigned to %v", attrs.typeName, declared)
		}

		return c, nil
	}

	isAbstract := declaredContract.Kind() == contract.Special || declaredContract.Type() == anyType

	if isAbstract && !attrs.hasType && attrs.typeHint != "" {
		t, found := contract.LookupType(attrs.typeHint)
		if found && assignable(t, declared) {
			c, err := ctx.s.contractOf(t)
			if err != nil {
				return nil, err
			}

			// A hint never widens the set of the types expected at this node.
			if !ctx.scope.IsKnown(c.Name()) {
				return nil, ctx.errorf(r, dcxml.IntegrityError,
					"type %v with contract name %s is not expected: add it to the known types",
					t, c.Name())
			}

			return c, nil
		}
	}

	return declaredContract, nil
}

func (ctx *readContext) attributes(r xmlio.Reader) (attributes, error) {
	attrs := attributes{size: -1}

	attrs.id, _ = r.Attribute("Id", qname.SerializationNamespace)
	attrs.ref, _ = r.Attribute("Ref", qname.SerializationNamespace)
	attrs.typeHint, _ = r.Attribute("Type", qname.SerializationNamespace)

	text, found := r.Attribute("nil", qname.SchemaInstanceNamespace)
	if found {
		isNil, err := xmlio.ParseBool(text)
		if err != nil {
			return attrs, ctx.errorf(r, dcxml.WireFormatError, "invalid nil attribute '%s'", text)
		}

		attrs.isNil = isNil
	}

	text, found = r.Attribute("type", qname.SchemaInstanceNamespace)
	if found {
		name, err := xmlio.ResolveQName(strings.TrimSpace(text), r.LookupNamespace)
		if err != nil {
			return attrs, ctx.positioned(r, err)
		}

		attrs.typeName = name
		attrs.hasType = true
	}

	text, found = r.Attribute("Size", qname.SerializationNamespace)
	if found {
		size, err := strconv.Atoi(strings.TrimSpace(text))
		if err != nil || size < 0 {
			return attrs, ctx.errorf(r, dcxml.WireFormatError, "invalid size '%s'", text)
		}

		attrs.size = size
	}

	return attrs, nil
}

func (ctx *readContext) errorf(r xmlio.Reader, kind dcxml.ErrorKind, format string, args ...interface{}) error {
	line, column := r.Position()

	return dcxml.NewError(kind, format, args...).At(line, column)
}

// positioned sets the position of the reader on the error if it has none.
func (ctx *readContext) positioned(r xmlio.Reader, err error) error {
	line, column := r.Position()

	return withPosition(err, line, column)
}

func withPosition(err error, line, column int) error {
	var e *dcxml.Error
	if xerrors.As(err, &e) {
		return e.At(line, column)
	}

	return err
}

var anyType = reflect.TypeOf((*interface{})(nil)).Elem()

// canHoldReference returns true if a value of the type can be shared.
func canHoldReference(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return true
	default:
		return false
	}
}

// referable returns the form of the value that carries its identity: the
// pointer to a struct, or the map or slice itself.
func referable(v reflect.Value) reflect.Value {
	switch v.Kind() {
	case reflect.Map, reflect.Slice, reflect.Ptr, reflect.Interface:
		return v
	}

	if v.CanAddr() {
		return v.Addr()
	}

	ptr := reflect.New(v.Type())
	ptr.Elem().Set(v)

	return ptr
}

// assignable returns true if a value of the contract type, or a pointer to it,
// can be assigned to the declared type.
func assignable(t, declared reflect.Type) bool {
	if declared.Kind() == reflect.Ptr {
		declared = declared.Elem()
	}

	if t.AssignableTo(declared) || reflect.PtrTo(t).AssignableTo(declared) {
		return true
	}

	return false
}

// adapt converts the referable form of a value to the declared type. A struct
// is kept behind its pointer in an interface whenever the pointer implements
// it, so that its identity is preserved.
func adapt(obj reflect.Value, declared reflect.Type) (reflect.Value, error) {
	if !obj.IsValid() {
		return reflect.Zero(declared), nil
	}

	if obj.Kind() == reflect.Interface {
		if obj.IsNil() {
			return reflect.Zero(declared), nil
		}

		obj = obj.Elem()
	}

	t := obj.Type()

	if t == declared {
		return obj, nil
	}

	if declared.Kind() == reflect.Interface {
		if t.Kind() == reflect.Ptr {
			elem := t.Elem()
			prefersPointer := elem.Kind() == reflect.Struct && !isScalarStruct(elem)

			if prefersPointer && t.Implements(declared) {
				return obj, nil
			}

			if elem.Implements(declared) {
				return obj.Elem(), nil
			}
		}

		if t.Implements(declared) {
			return obj, nil
		}

		return reflect.Value{}, dcxml.NewError(dcxml.IntegrityError,
			"value of type %v does not implement %v", t, declared)
	}

	if t.Kind() == reflect.Ptr && t.Elem() == declared {
		return obj.Elem(), nil
	}

	if declared.Kind() == reflect.Ptr && declared.Elem() == t {
		return referable(obj), nil
	}

	if t.AssignableTo(declared) {
		return obj, nil
	}

	return reflect.Value{}, dcxml.NewError(dcxml.IntegrityError,
		"value of type %v cannot be assigned to %v", t, declared)
}

// isScalarStruct returns true for the structs written as a primitive, which
// are values rather than objects.
func isScalarStruct(t reflect.Type) bool {
	c, err := contract.For(t)
	return err == nil && c.Kind() == contract.Primitive
}
