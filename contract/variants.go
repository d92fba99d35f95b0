package contract

import (
	"reflect"
	"strconv"

	"go.dedis.ch/dcxml"
	"go.dedis.ch/dcxml/qname"
	"go.dedis.ch/dcxml/xmlio"
)

// SelfDescribingContract is the contract of the types implementing
// xmlio.Marshaler on their pointer.
//
// - implements contract.Contract
type SelfDescribingContract struct {
	typ         reflect.Type
	name        qname.Name
	isReference bool
}

func newSelfDescribing(t reflect.Type) (*SelfDescribingContract, error) {
	name, err := StableName(t)
	if err != nil {
		return nil, err
	}

	desc, _ := describe(t)

	c := &SelfDescribingContract{
		typ:         t,
		name:        name,
		isReference: desc.IsReference,
	}

	return c, nil
}

// Kind implements contract.Contract.
func (c *SelfDescribingContract) Kind() Kind {
	return SelfDescribing
}

// Type implements contract.Contract.
func (c *SelfDescribingContract) Type() reflect.Type {
	return c.typ
}

// Name implements contract.Contract.
func (c *SelfDescribingContract) Name() qname.Name {
	return c.name
}

// IsReference implements contract.Contract.
func (c *SelfDescribingContract) IsReference() bool {
	return c.isReference
}

// CanContainReferences implements contract.Contract.
func (c *SelfDescribingContract) CanContainReferences() bool {
	return c.isReference
}

// WriteContent implements contract.Contract.
func (c *SelfDescribingContract) WriteContent(w xmlio.Writer, v reflect.Value, ctx WriteContext) error {
	return addressable(v).Interface().(xmlio.Marshaler).WriteXML(w)
}

// ReadContent implements contract.Contract.
func (c *SelfDescribingContract) ReadContent(r xmlio.Reader, ctx ReadContext) (reflect.Value, error) {
	node := ctx.TakeNode()

	ptr := reflect.New(c.typ)

	err := ctx.Created(node, ptr)
	if err != nil {
		return reflect.Value{}, err
	}

	err = ptr.Interface().(xmlio.Marshaler).ReadXML(r)
	if err != nil {
		return reflect.Value{}, err
	}

	return ptr.Elem(), nil
}

// SpecialContract is the contract of the interfaces: it has a name but its
// values are always written with the contract of their dynamic type.
//
// - implements contract.Contract
type SpecialContract struct {
	typ  reflect.Type
	name qname.Name
}

func newSpecial(t reflect.Type) (*SpecialContract, error) {
	name, err := StableName(t)
	if err != nil {
		return nil, err
	}

	return &SpecialContract{typ: t, name: name}, nil
}

// Kind implements contract.Contract.
func (c *SpecialContract) Kind() Kind {
	return Special
}

// Type implements contract.Contract.
func (c *SpecialContract) Type() reflect.Type {
	return c.typ
}

// Name implements contract.Contract.
func (c *SpecialContract) Name() qname.Name {
	return c.name
}

// IsReference implements contract.Contract.
func (c *SpecialContract) IsReference() bool {
	return false
}

// CanContainReferences implements contract.Contract.
func (c *SpecialContract) CanContainReferences() bool {
	return true
}

// WriteContent implements contract.Contract. It always fails as an interface
// has no content of its own.
func (c *SpecialContract) WriteContent(w xmlio.Writer, v reflect.Value, ctx WriteContext) error {
	return contractError("abstract type %s has no content", c.name)
}

// ReadContent implements contract.Contract. It always fails as the concrete
// type of the value must be given by the document.
func (c *SpecialContract) ReadContent(r xmlio.Reader, ctx ReadContext) (reflect.Value, error) {
	return reflect.Value{}, positioned(r, dcxml.IntegrityError,
		"abstract type %s cannot be read without a type attribute", c.name)
}

// GenericParameterContract is a parameter of a generic instantiation. It is
// bound to the type argument when the instantiation provides it.
//
// - implements contract.Contract
type GenericParameterContract struct {
	owner    qname.Name
	position int
	bound    reflect.Type
}

func newGenericParameter(owner qname.Name, position int, bound reflect.Type) *GenericParameterContract {
	return &GenericParameterContract{
		owner:    owner,
		position: position,
		bound:    bound,
	}
}

// Kind implements contract.Contract.
func (c *GenericParameterContract) Kind() Kind {
	return GenericParameter
}

// Type implements contract.Contract. It returns the bound type, or nil.
func (c *GenericParameterContract) Type() reflect.Type {
	return c.bound
}

// Name implements contract.Contract.
func (c *GenericParameterContract) Name() qname.Name {
	return qname.New("{"+strconv.Itoa(c.position)+"}", c.owner.Namespace)
}

// Position returns the index of the parameter.
func (c *GenericParameterContract) Position() int {
	return c.position
}

// IsReference implements contract.Contract.
func (c *GenericParameterContract) IsReference() bool {
	return false
}

// CanContainReferences implements contract.Contract.
func (c *GenericParameterContract) CanContainReferences() bool {
	return false
}

// Bind returns the contract of the type argument.
func (c *GenericParameterContract) Bind() (Contract, error) {
	if c.bound == nil {
		return nil, contractError("generic parameter %d of %s is not bound", c.position, c.owner)
	}

	return For(c.bound)
}

// WriteContent implements contract.Contract. A parameter is never written.
func (c *GenericParameterContract) WriteContent(w xmlio.Writer, v reflect.Value, ctx WriteContext) error {
	return contractError("generic parameter %d of %s cannot be written", c.position, c.owner)
}

// ReadContent implements contract.Contract. A parameter is never read.
func (c *GenericParameterContract) ReadContent(r xmlio.Reader, ctx ReadContext) (reflect.Value, error) {
	return reflect.Value{}, contractError("generic parameter %d of %s cannot be read", c.position, c.owner)
}

// SurrogateContract substitutes the contract of another type to a type. The
// provider converts the values in both directions.
//
// - implements contract.Contract
type SurrogateContract struct {
	typ       reflect.Type
	surrogate Contract
	provider  SurrogateProvider
}

// NewSurrogate returns the surrogate contract of the type if the provider
// substitutes it. Surrogate contracts depend on the provider and are therefore
// not cached with the other contracts.
func NewSurrogate(t reflect.Type, provider SurrogateProvider) (*SurrogateContract, bool, error) {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	target := provider.GetSurrogateType(t)
	if target == nil || target == t {
		return nil, false, nil
	}

	surrogate, err := For(target)
	if err != nil {
		return nil, false, wrapContract(err, "invalid surrogate of %v", t)
	}

	c := &SurrogateContract{
		typ:       t,
		surrogate: surrogate,
		provider:  provider,
	}

	return c, true, nil
}

// Kind implements contract.Contract.
func (c *SurrogateContract) Kind() Kind {
	return Surrogate
}

// Type implements contract.Contract. It returns the substituted type.
func (c *SurrogateContract) Type() reflect.Type {
	return c.typ
}

// Name implements contract.Contract. It returns the name of the surrogate.
func (c *SurrogateContract) Name() qname.Name {
	return c.surrogate.Name()
}

// Surrogate returns the contract used on the wire.
func (c *SurrogateContract) Surrogate() Contract {
	return c.surrogate
}

// IsReference implements contract.Contract.
func (c *SurrogateContract) IsReference() bool {
	return c.surrogate.IsReference()
}

// CanContainReferences implements contract.Contract.
func (c *SurrogateContract) CanContainReferences() bool {
	return c.surrogate.CanContainReferences()
}

// ToSurrogate converts the value to the value to write. The result is invalid
// if the provider returns nil.
func (c *SurrogateContract) ToSurrogate(v reflect.Value) (reflect.Value, error) {
	out, err := c.provider.GetObjectToSerialize(v.Interface(), c.surrogate.Type())
	if err != nil {
		return reflect.Value{}, wrapContract(err, "couldn't substitute %v", c.typ)
	}

	if out == nil {
		return reflect.Value{}, nil
	}

	return reflect.ValueOf(out), nil
}

// FromSurrogate converts a value read to the target type.
func (c *SurrogateContract) FromSurrogate(v reflect.Value, target reflect.Type) (reflect.Value, error) {
	out, err := c.provider.GetDeserializedObject(v.Interface(), target)
	if err != nil {
		return reflect.Value{}, wrapContract(err, "couldn't restore %v", c.typ)
	}

	if out == nil {
		return reflect.Value{}, nil
	}

	return reflect.ValueOf(out), nil
}

// WriteContent implements contract.Contract.
func (c *SurrogateContract) WriteContent(w xmlio.Writer, v reflect.Value, ctx WriteContext) error {
	out, err := c.ToSurrogate(v)
	if err != nil {
		return err
	}

	if !out.IsValid() {
		return nil
	}

	return c.surrogate.WriteContent(w, reflect.Indirect(out), ctx)
}

// ReadContent implements contract.Contract.
func (c *SurrogateContract) ReadContent(r xmlio.Reader, ctx ReadContext) (reflect.Value, error) {
	value, err := c.surrogate.ReadContent(r, ctx)
	if err != nil {
		return reflect.Value{}, err
	}

	out, err := c.FromSurrogate(value, c.typ)
	if err != nil {
		return reflect.Value{}, err
	}

	if !out.IsValid() {
		return reflect.Zero(c.typ), nil
	}

	return reflect.Indirect(out), nil
}
