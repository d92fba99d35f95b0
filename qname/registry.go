package qname

import (
	"reflect"
	"strconv"
	"strings"
	"sync"

	"go.dedis.ch/dcxml"
	"golang.org/x/xerrors"
)

// Hint is the naming convention a type can supply for itself. The name can
// contain the placeholders {0}, {1}, ... replaced by the local names of the
// generic arguments, and {#} replaced by a digest of their namespaces.
type Hint struct {
	Name      string
	Namespace string
	Arguments []reflect.Type
}

// HintFunc returns the naming hint of a type if it has one.
type HintFunc func(reflect.Type) (Hint, bool)

type cached struct {
	name Name
	err  error
}

// Registry derives and caches the stable names of the types. It is safe for
// concurrent use.
type Registry struct {
	hint  HintFunc
	names sync.Map
}

// NewRegistry returns a new registry using the hint function to discover the
// names chosen by the types themselves. The function can be nil.
func NewRegistry(hint HintFunc) *Registry {
	return &Registry{
		hint: hint,
	}
}

// StableName returns the qualified name of the type. It returns a contract
// error if the type cannot be named.
func (r *Registry) StableName(t reflect.Type) (Name, error) {
	if t == nil {
		return Name{}, dcxml.NewError(dcxml.ContractError, "nil type cannot be named")
	}

	value, found := r.names.Load(t)
	if found {
		entry := value.(cached)
		return entry.name, entry.err
	}

	name, err := r.derive(t)

	// Concurrent derivations yield the same result, the first stored wins.
	value, _ = r.names.LoadOrStore(t, cached{name: name, err: err})
	entry := value.(cached)

	return entry.name, entry.err
}

func (r *Registry) derive(t reflect.Type) (Name, error) {
	if t.Kind() == reflect.Ptr {
		return r.StableName(t.Elem())
	}

	name, found := builtins[t]
	if found {
		return name, nil
	}

	if r.hint != nil {
		hint, ok := r.hint(t)
		if ok {
			return r.fromHint(t, hint)
		}
	}

	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		item, err := r.StableName(t.Elem())
		if err != nil {
			return Name{}, err
		}

		return collectionName(item), nil
	case reflect.Map:
		key, err := r.StableName(t.Key())
		if err != nil {
			return Name{}, err
		}

		value, err := r.StableName(t.Elem())
		if err != nil {
			return Name{}, err
		}

		return dictionaryName(key, value), nil
	case reflect.Chan, reflect.Func, reflect.UnsafePointer, reflect.Complex64,
		reflect.Complex128, reflect.Uintptr:
		return Name{}, dcxml.NewError(dcxml.ContractError,
			"type %v cannot be serialized", t)
	}

	base, found := BuiltinName(t)
	if found {
		return base, nil
	}

	if t.Name() == "" {
		return Name{}, dcxml.NewError(dcxml.ContractError,
			"anonymous type %v cannot be exported", t)
	}

	return r.fromHint(t, Hint{})
}

// fromHint builds the name of a named type from the hint, using the default
// convention for the fields left empty.
func (r *Registry) fromHint(t reflect.Type, hint Hint) (Name, error) {
	base, textArgs, err := ParseGenericName(t.Name())
	if err != nil {
		return Name{}, dcxml.NewError(dcxml.ContractError, "%v", err)
	}

	ns := hint.Namespace
	if ns == "" {
		ns = DefaultNamespacePrefix + t.PkgPath()
	}

	if len(hint.Arguments) > 0 && len(textArgs) != len(hint.Arguments) {
		return Name{}, dcxml.NewError(dcxml.ContractError,
			"generic type %v has %d parameters but %d are bound",
			t, len(textArgs), len(hint.Arguments))
	}

	args, err := r.argumentNames(hint.Arguments, textArgs)
	if err != nil {
		return Name{}, dcxml.NewError(dcxml.ContractError,
			"couldn't name the arguments of %v: %v", t, err)
	}

	if hint.Name == "" {
		local := EncodeLocalName(base)
		if len(args) > 0 {
			local = genericLocalName(local, ns, args)
		}

		return New(local, ns), nil
	}

	local, err := expand(hint.Name, args)
	if err != nil {
		return Name{}, dcxml.NewError(dcxml.ContractError,
			"generic type %v cannot be exported: %v", t, err)
	}

	return New(local, ns), nil
}

func (r *Registry) argumentNames(types []reflect.Type, text []string) ([]Name, error) {
	if len(types) > 0 {
		names := make([]Name, len(types))

		for i, typ := range types {
			name, err := r.StableName(typ)
			if err != nil {
				return nil, err
			}

			names[i] = name
		}

		return names, nil
	}

	names := make([]Name, len(text))

	for i, arg := range text {
		name, err := textualName(arg)
		if err != nil {
			return nil, err
		}

		names[i] = name
	}

	return names, nil
}

// expand replaces the placeholders of the template. A placeholder referring to
// an argument that is not bound leaves the generic open, which is an error.
func expand(template string, args []Name) (string, error) {
	var b strings.Builder

	for i := 0; i < len(template); i++ {
		c := template[i]
		if c != '{' {
			b.WriteByte(c)
			continue
		}

		end := strings.IndexByte(template[i:], '}')
		if end < 0 {
			return "", xerrors.Errorf("unterminated placeholder in '%s'", template)
		}

		param := template[i+1 : i+end]
		i += end

		if param == "#" {
			b.WriteString(namespaceHash(args))
			continue
		}

		index, err := strconv.Atoi(param)
		if err != nil {
			return "", xerrors.Errorf("invalid placeholder '{%s}'", param)
		}

		if index < 0 || index >= len(args) {
			return "", xerrors.Errorf("generic parameter {%d} is not bound", index)
		}

		b.WriteString(args[index].Local)
	}

	return EncodeLocalName(b.String()), nil
}
