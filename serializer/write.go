package serializer

import (
	"reflect"

	"github.com/rs/zerolog"
	"go.dedis.ch/dcxml"
	"go.dedis.ch/dcxml/contract"
	"go.dedis.ch/dcxml/contract/knowntypes"
	"go.dedis.ch/dcxml/qname"
	"go.dedis.ch/dcxml/refs"
	"go.dedis.ch/dcxml/xmlio"
)

// WriteObject writes the value as the root element.
func (s *Serializer) WriteObject(w xmlio.Writer, v interface{}) error {
	ctx := &writeContext{
		s:       s,
		scope:   s.set.NewScope(),
		tracker: refs.NewTracker(),
		stack:   refs.NewStack(),
		logger:  s.operationLogger("write"),
	}

	ctx.tracker.SetLimit(s.maxObjects)

	err := ctx.writeRoot(w, reflect.ValueOf(v))

	observe("write", ctx.items, err)

	if err != nil {
		ctx.logger.Debug().Err(err).Int("items", ctx.items).Msg("write failed")
		return err
	}

	ctx.logger.Debug().
		Int("items", ctx.items).
		Int("objects", ctx.tracker.Len()).
		Msg("object written")

	return nil
}

// writeContext is the state of a write operation.
//
// - implements contract.WriteContext
type writeContext struct {
	s       *Serializer
	scope   *knowntypes.Scope
	tracker *refs.Tracker
	stack   *refs.Stack
	items   int
	logger  zerolog.Logger
}

func (ctx *writeContext) writeRoot(w xmlio.Writer, v reflect.Value) error {
	name := ctx.s.rootName

	err := w.WriteStartElement(name.Local, name.Namespace)
	if err != nil {
		return err
	}

	err = w.WriteNamespace("i", qname.SchemaInstanceNamespace)
	if err != nil {
		return err
	}

	if ctx.s.preserve || ctx.s.typeHints {
		err = w.WriteNamespace("z", qname.SerializationNamespace)
		if err != nil {
			return err
		}
	}

	err = ctx.WriteValue(w, v, ctx.s.root, false)
	if err != nil {
		return err
	}

	err = w.WriteEndElement()
	if err != nil {
		return err
	}

	return w.Flush()
}

// WriteValue implements contract.WriteContext. It writes the nil marker, a
// reference to an object already written, or the type and identifier
// attributes followed by the content.
func (ctx *writeContext) WriteValue(w xmlio.Writer, v reflect.Value, declared reflect.Type,
	forceType bool) error {

	ctx.items++
	if ctx.items > ctx.s.maxItems {
		return dcxml.NewError(dcxml.QuotaError,
			"maximum number of items %d exceeded", ctx.s.maxItems)
	}

	v = unwrap(v)
	if isNil(v) {
		return writeNil(w)
	}

	c, err := ctx.s.contractOf(v.Type())
	if err != nil {
		return err
	}

	declaredContract, err := ctx.s.contractOf(declared)
	if err != nil {
		return err
	}

	// A value declared by value is written by value even if it is shared,
	// as it could not carry its identifier when it is read.
	track := canHoldReference(declared) && hasIdentity(v) && c.CanContainReferences() &&
		(ctx.s.preserve || c.IsReference())

	if track {
		id, found := ctx.tracker.Lookup(v)
		if found {
			return writeRef(w, id)
		}
	}

	content := v
	wire := c

	sc, isSurrogate := c.(*contract.SurrogateContract)
	if isSurrogate {
		content, err = sc.ToSurrogate(v)
		if err != nil {
			return err
		}

		if isNil(content) {
			return writeNil(w)
		}

		if track {
			// The provider can return the same replacement for several
			// objects, which are then written once.
			id, found := ctx.tracker.Lookup(content)
			if found {
				ctx.tracker.Alias(v, id)
				return writeRef(w, id)
			}
		}

		wire = sc.Surrogate()
	}

	id := 0

	if track {
		id, _, err = ctx.tracker.GetOrAssignID(v)
		if err != nil {
			return err
		}

		if isSurrogate {
			ctx.tracker.ReassignID(id, v, content)
		}
	} else if hasIdentity(v) && c.CanContainReferences() {
		if !ctx.stack.Enter(v) {
			return dcxml.NewError(dcxml.IntegrityError,
				"object graph of type %v contains a cycle: references must be preserved", v.Type())
		}

		defer ctx.stack.Leave(v)
	}

	if forceType || !sameContract(c, declaredContract) {
		err = ctx.writeType(w, c, declared)
		if err != nil {
			return err
		}
	}

	if track {
		err = w.WriteAttribute("Id", qname.SerializationNamespace, refs.FormatID(id))
		if err != nil {
			return err
		}
	}

	return wire.WriteContent(w, reflect.Indirect(unwrap(content)), ctx)
}

// PushKnownTypes implements contract.WriteContext.
func (ctx *writeContext) PushKnownTypes(types []reflect.Type) error {
	return ctx.scope.Push(types)
}

// PopKnownTypes implements contract.WriteContext.
func (ctx *writeContext) PopKnownTypes() {
	ctx.scope.Pop()
}

// WriteSize implements contract.WriteContext.
func (ctx *writeContext) WriteSize() bool {
	return ctx.s.preserve
}

func (ctx *writeContext) writeType(w xmlio.Writer, c contract.Contract, declared reflect.Type) error {
	name, err := ctx.scope.NameOf(c, declared)
	if err != nil {
		return err
	}

	err = w.WriteQNameAttribute("type", qname.SchemaInstanceNamespace, name)
	if err != nil {
		return err
	}

	if !ctx.s.typeHints {
		return nil
	}

	return w.WriteAttribute("Type", qname.SerializationNamespace, contract.TypeName(c.Type()))
}

func writeNil(w xmlio.Writer) error {
	return w.WriteAttribute("nil", qname.SchemaInstanceNamespace, "true")
}

func writeRef(w xmlio.Writer, id int) error {
	err := w.WriteAttribute("Ref", qname.SerializationNamespace, refs.FormatID(id))
	if err != nil {
		return err
	}

	return writeNil(w)
}

// unwrap returns the dynamic value of an interface.
func unwrap(v reflect.Value) reflect.Value {
	for v.IsValid() && v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}
		}

		v = v.Elem()
	}

	return v
}

func isNil(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}

	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return v.IsNil()
	default:
		return false
	}
}

func hasIdentity(v reflect.Value) bool {
	_, ok := refs.KeyOf(v)
	return ok
}

func sameContract(a, b contract.Contract) bool {
	return a == b || a.Type() == b.Type()
}
