// Package knowntypes implements the set of contracts that can be resolved by
// name during an operation. The set is built once from the root type and the
// known types given to the serializer; the scopes declared on the classes and
// members are pushed and popped while the graph is traversed.
package knowntypes

import (
	"reflect"
	"sort"
	"sync"

	"go.dedis.ch/dcxml"
	"go.dedis.ch/dcxml/contract"
	"go.dedis.ch/dcxml/qname"
)

// Resolver resolves the names the contracts do not know about. It is consulted
// after the known types.
type Resolver interface {
	// TryResolveType returns the name to write for the type, if the resolver
	// knows it.
	TryResolveType(t reflect.Type, declared reflect.Type) (qname.Name, bool)

	// ResolveName returns the type of the name read, if the resolver knows it.
	ResolveName(name qname.Name, declared reflect.Type) (reflect.Type, bool)
}

// Mapper substitutes a type before its contract is looked up.
type Mapper func(reflect.Type) reflect.Type

// Option is the type of option to create a set.
type Option func(*Set)

// WithResolver sets the resolver consulted when a name is not known.
func WithResolver(r Resolver) Option {
	return func(s *Set) {
		s.resolver = r
	}
}

// WithMapper sets the substitution of the types reached by the closure.
func WithMapper(m Mapper) Option {
	return func(s *Set) {
		s.mapper = m
	}
}

// Set is the flat table of the contracts reachable from the types added. It
// must not be modified once scopes are created from it.
type Set struct {
	contracts map[qname.Name]contract.Contract
	resolver  Resolver
	mapper    Mapper

	// frames caches the closure of the lists of known types pushed by the
	// scopes. The frames are never modified and shared by the operations.
	frames sync.Map
}

// frameKey identifies a list of types by its backing array. The lists pushed
// are the ones held by the contracts, which never change.
type frameKey struct {
	first *reflect.Type
	n     int
}

// NewSet returns a new empty set.
func NewSet(opts ...Option) *Set {
	s := &Set{
		contracts: make(map[qname.Name]contract.Contract),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Add adds the types and every type reachable from them: bases, members, items,
// declared known types and generic arguments. It returns a contract error if
// two different types would share the same name.
func (s *Set) Add(types ...reflect.Type) error {
	return s.closure(types, s.contracts)
}

// Lookup returns the contract registered with the name.
func (s *Set) Lookup(name qname.Name) (contract.Contract, bool) {
	c, found := s.contracts[name]
	return c, found
}

// Len returns the number of contracts in the set.
func (s *Set) Len() int {
	return len(s.contracts)
}

// Names returns the names of the contracts in the set, sorted.
func (s *Set) Names() []qname.Name {
	names := make([]qname.Name, 0, len(s.contracts))
	for name := range s.contracts {
		names = append(names, name)
	}

	sort.Slice(names, func(i, j int) bool {
		if names[i].Namespace != names[j].Namespace {
			return names[i].Namespace < names[j].Namespace
		}

		return names[i].Local < names[j].Local
	})

	return names
}

// NewScope returns a scope backed by the set, for a single operation.
func (s *Set) NewScope() *Scope {
	return &Scope{set: s}
}

// frame returns the table of the contracts reachable from the types, computed
// once per list.
func (s *Set) frame(types []reflect.Type) (map[qname.Name]contract.Contract, error) {
	if len(types) == 0 {
		return map[qname.Name]contract.Contract{}, nil
	}

	key := frameKey{first: &types[0], n: len(types)}

	value, found := s.frames.Load(key)
	if found {
		return value.(map[qname.Name]contract.Contract), nil
	}

	frame := make(map[qname.Name]contract.Contract)

	err := s.closure(types, frame)
	if err != nil {
		return nil, err
	}

	value, _ = s.frames.LoadOrStore(key, frame)

	return value.(map[qname.Name]contract.Contract), nil
}

func (s *Set) closure(roots []reflect.Type, into map[qname.Name]contract.Contract) error {
	queue := append([]reflect.Type{}, roots...)
	visited := make(map[reflect.Type]bool)

	for len(queue) > 0 {
		t := queue[0]
		queue = queue[1:]

		if t == nil {
			continue
		}

		if t.Kind() == reflect.Ptr {
			t = t.Elem()
		}

		if s.mapper != nil {
			t = s.mapper(t)
			if t.Kind() == reflect.Ptr {
				t = t.Elem()
			}
		}

		if visited[t] {
			continue
		}

		visited[t] = true

		c, err := contract.For(t)
		if err != nil {
			return err
		}

		switch x := c.(type) {
		case *contract.PrimitiveContract:
			// The names of the primitives are always known.
			continue
		case *contract.ClassContract:
			if x.Base() != nil {
				queue = append(queue, x.Base().Type())
			}

			for _, m := range x.Members() {
				queue = append(queue, m.Type)
			}

			queue = append(queue, x.KnownTypes()...)

			for _, param := range x.GenericParameters() {
				arg, err := param.Bind()
				if err != nil {
					return err
				}

				queue = append(queue, arg.Type())
			}

			if t.Name() == "" {
				// The entries of the dictionaries are never named in a
				// document.
				continue
			}
		case *contract.CollectionContract:
			queue = append(queue, x.ItemType())
			queue = append(queue, x.KnownTypes()...)
		}

		err = insert(into, c)
		if err != nil {
			return err
		}
	}

	return nil
}

func insert(table map[qname.Name]contract.Contract, c contract.Contract) error {
	existing, found := table[c.Name()]
	if !found {
		table[c.Name()] = c
		return nil
	}

	if existing.Type() == c.Type() {
		return nil
	}

	// Sequences of the same items are interchangeable on the wire.
	if existing.Kind() == contract.Collection && contract.Equal(existing, c) {
		return nil
	}

	return dcxml.NewError(dcxml.ContractError,
		"types %v and %v share the contract name %s", existing.Type(), c.Type(), c.Name())
}

// Scope is the stack of known types of a single operation on top of the flat
// table of a set. It is not safe for concurrent use.
type Scope struct {
	set    *Set
	frames []map[qname.Name]contract.Contract
}

// Push opens a frame with the types and the types reachable from them.
func (s *Scope) Push(types []reflect.Type) error {
	frame, err := s.set.frame(types)
	if err != nil {
		return err
	}

	s.frames = append(s.frames, frame)

	return nil
}

// Pop closes the frame opened last.
func (s *Scope) Pop() {
	if len(s.frames) > 0 {
		s.frames = s.frames[:len(s.frames)-1]
	}
}

// Depth returns the number of frames open.
func (s *Scope) Depth() int {
	return len(s.frames)
}

// Resolve returns the contract of the name read in a document. The frames are
// searched from the innermost, then the flat table, the primitives and finally
// the resolver.
func (s *Scope) Resolve(name qname.Name, declared reflect.Type) (contract.Contract, error) {
	c, found := s.lookup(name)
	if found {
		return c, nil
	}

	if s.set.resolver != nil {
		t, ok := s.set.resolver.ResolveName(name, declared)
		if ok {
			if s.set.mapper != nil {
				t = s.set.mapper(t)
			}

			return contract.For(t)
		}
	}

	return nil, dcxml.NewError(dcxml.IntegrityError,
		"type name %s is not expected: no known type maps to it", name)
}

// NameOf returns the name to write for a value of the contract declared with
// the given type. The name must resolve back to the same type on the reading
// side, otherwise the type is not expected.
func (s *Scope) NameOf(c contract.Contract, declared reflect.Type) (qname.Name, error) {
	if s.set.resolver != nil {
		name, ok := s.set.resolver.TryResolveType(wireType(c), declared)
		if ok {
			return name, nil
		}
	}

	if c.Kind() == contract.Primitive {
		return c.Name(), nil
	}

	known, found := s.lookup(c.Name())
	if found && (wireType(known) == wireType(c) || contract.Equal(known, wire(c))) {
		return c.Name(), nil
	}

	return qname.Name{}, dcxml.NewError(dcxml.IntegrityError,
		"type %v with contract name %s is not expected: add it to the known types",
		c.Type(), c.Name())
}

// IsKnown returns true if the name resolves without the resolver.
func (s *Scope) IsKnown(name qname.Name) bool {
	_, found := s.lookup(name)
	return found
}

func (s *Scope) lookup(name qname.Name) (contract.Contract, bool) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		c, found := s.frames[i][name]
		if found {
			return c, true
		}
	}

	c, found := s.set.contracts[name]
	if found {
		return c, true
	}

	return contract.PrimitiveByName(name)
}

// wire returns the contract used on the wire.
func wire(c contract.Contract) contract.Contract {
	sc, ok := c.(*contract.SurrogateContract)
	if ok {
		return sc.Surrogate()
	}

	return c
}

func wireType(c contract.Contract) reflect.Type {
	return wire(c).Type()
}
