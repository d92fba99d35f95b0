package contract

import (
	"fmt"
	"reflect"
	"sync"

	"go.dedis.ch/dcxml"
	"go.dedis.ch/dcxml/qname"
	"go.dedis.ch/dcxml/xmlio"
	"golang.org/x/sync/singleflight"
	"golang.org/x/xerrors"
)

// entry is a cached contract, or the terminal error of its construction.
type entry struct {
	contract Contract
	err      error
}

var (
	contracts sync.Map
	building  singleflight.Group
	names     = qname.NewRegistry(hintOf)

	// goTypes indexes the types by their Go name as it is written in the type
	// hints.
	goTypes sync.Map
)

// For returns the contract of the type. Pointer types share the contract of
// their element type. The construction happens once per type: concurrent
// callers wait for the first one and a construction error is cached as well.
func For(t reflect.Type) (Contract, error) {
	if t == nil {
		return nil, dcxml.NewError(dcxml.ContractError, "nil type has no contract")
	}

	if t.Kind() == reflect.Ptr {
		if t.Elem().Kind() == reflect.Ptr {
			return nil, dcxml.NewError(dcxml.ContractError,
				"pointer to pointer %v is not supported", t)
		}

		t = t.Elem()
	}

	value, found := contracts.Load(t)
	if found {
		e := value.(entry)
		return e.contract, e.err
	}

	// The type pointer makes the key unique even for types sharing the same
	// textual name.
	key := fmt.Sprintf("%p", t)

	value, _, _ = building.Do(key, func() (interface{}, error) {
		value, found := contracts.Load(t)
		if found {
			return value, nil
		}

		c, err := build(t)

		value, _ = contracts.LoadOrStore(t, entry{contract: c, err: err})

		if err == nil {
			goTypes.LoadOrStore(TypeName(t), t)
		}

		return value, nil
	})

	e := value.(entry)

	return e.contract, e.err
}

// MustFor returns the contract of the type and panics if it cannot be built.
func MustFor(t reflect.Type) Contract {
	c, err := For(t)
	if err != nil {
		panic(fmt.Sprintf("couldn't build contract: %v", err))
	}

	return c
}

// StableName returns the qualified name of the type.
func StableName(t reflect.Type) (qname.Name, error) {
	return names.StableName(t)
}

// TypeName returns the name of the type written in the type hints.
func TypeName(t reflect.Type) string {
	if t.Name() != "" && t.PkgPath() != "" {
		return t.PkgPath() + "." + t.Name()
	}

	return t.String()
}

// LookupType returns the type with the given hint name if its contract has
// already been built in the process.
func LookupType(name string) (reflect.Type, bool) {
	value, found := goTypes.Load(name)
	if !found {
		return nil, false
	}

	return value.(reflect.Type), true
}

// build selects the variant of the type.
func build(t reflect.Type) (Contract, error) {
	if t == charType {
		return newPrimitive(t)
	}

	if reflect.PtrTo(t).Implements(marshalerType) {
		return newSelfDescribing(t)
	}

	desc, described := describe(t)

	if described && len(desc.EnumMembers) > 0 {
		return newEnum(t, desc)
	}

	_, isPrimitive := primitiveCodec(t)
	if isPrimitive {
		return newPrimitive(t)
	}

	switch t.Kind() {
	case reflect.Interface:
		return newSpecial(t)
	case reflect.Slice, reflect.Array, reflect.Map:
		return newCollection(t, desc)
	case reflect.Struct:
		if isCustomCollection(t) {
			return newCollection(t, desc)
		}

		return newClass(t, desc)
	default:
		return nil, dcxml.NewError(dcxml.ContractError, "type %v cannot be serialized", t)
	}
}

// describe returns the description provided by the type, if any. The method
// can be declared on the value or on the pointer receiver.
func describe(t reflect.Type) (Description, bool) {
	if t.Kind() == reflect.Interface || t.Kind() == reflect.Ptr {
		return Description{}, false
	}

	if t.Implements(describerType) {
		return reflect.Zero(t).Interface().(Describer).DescribeContract(), true
	}

	if reflect.PtrTo(t).Implements(describerType) {
		return reflect.New(t).Interface().(Describer).DescribeContract(), true
	}

	return Description{}, false
}

// hintOf provides the names chosen by the types to the name registry.
func hintOf(t reflect.Type) (qname.Hint, bool) {
	if t == charType {
		return qname.Hint{Name: "char", Namespace: qname.SerializationNamespace}, true
	}

	desc, found := describe(t)
	if !found {
		return qname.Hint{}, false
	}

	// An enumeration is named after its type even when its underlying type
	// is a scalar with a built-in name.
	isEnum := len(desc.EnumMembers) > 0

	if !isEnum && desc.Name == "" && desc.Namespace == "" && len(desc.GenericArguments) == 0 {
		return qname.Hint{}, false
	}

	hint := qname.Hint{
		Name:      desc.Name,
		Namespace: desc.Namespace,
		Arguments: desc.GenericArguments,
	}

	return hint, true
}

func contractError(format string, args ...interface{}) error {
	return dcxml.NewError(dcxml.ContractError, format, args...)
}

// wrapContract keeps the kind of the error when it is already categorized.
func wrapContract(err error, format string, args ...interface{}) error {
	if xerrors.Is(err, dcxml.ErrContract) {
		return err
	}

	return dcxml.NewError(dcxml.ContractError, "%s: %v", fmt.Sprintf(format, args...), err)
}

var (
	describerType = reflect.TypeOf((*Describer)(nil)).Elem()
	marshalerType = reflect.TypeOf((*xmlio.Marshaler)(nil)).Elem()
	charType      = reflect.TypeOf(Char(0))
)
