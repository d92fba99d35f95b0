package qname

import (
	"encoding/base32"
	"hash/fnv"
	"strings"

	"golang.org/x/xerrors"
)

var hashEncoding = base32.NewEncoding("abcdefghijklmnopqrstuvwxyz234567").WithPadding(base32.NoPadding)

// ParseGenericName splits the name of a generic instantiation as printed by the
// reflection package, e.g. "Pair[int,example.com/pkg.Box[string]]", into its
// base name and the textual names of its arguments. A name without brackets
// returns no argument.
func ParseGenericName(name string) (string, []string, error) {
	open := strings.IndexByte(name, '[')
	if open < 0 {
		return name, nil, nil
	}

	if !strings.HasSuffix(name, "]") {
		return "", nil, xerrors.Errorf("malformed generic name '%s'", name)
	}

	args, err := splitTopLevel(name[open+1 : len(name)-1])
	if err != nil {
		return "", nil, xerrors.Errorf("malformed generic name '%s': %v", name, err)
	}

	return name[:open], args, nil
}

// splitTopLevel splits the string on the commas that are not nested inside
// brackets.
func splitTopLevel(s string) ([]string, error) {
	var parts []string

	depth := 0
	start := 0

	for i, c := range s {
		switch c {
		case '[':
			depth++
		case ']':
			depth--
			if depth < 0 {
				return nil, xerrors.New("unbalanced brackets")
			}
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}

	if depth != 0 {
		return nil, xerrors.New("unbalanced brackets")
	}

	parts = append(parts, strings.TrimSpace(s[start:]))

	for _, p := range parts {
		if p == "" {
			return nil, xerrors.New("empty argument")
		}
	}

	return parts, nil
}

// closingBracket returns the index of the bracket closing the one opened at
// the given index.
func closingBracket(s string, open int) int {
	depth := 0

	for i := open; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}

	return -1
}

// textualName derives the stable name of a generic argument from its textual
// Go name. Only the builtin types and the collections of them can be named
// that way: a named type can choose its own name, which only its
// reflect.Type tells.
func textualName(s string) (Name, error) {
	name, found := builtinsByGoName[s]
	if found {
		return name, nil
	}

	switch {
	case strings.HasPrefix(s, "*"):
		return textualName(s[1:])
	case strings.HasPrefix(s, "map["):
		end := closingBracket(s, 3)
		if end < 0 {
			return Name{}, xerrors.Errorf("malformed map type '%s'", s)
		}

		key, err := textualName(s[4:end])
		if err != nil {
			return Name{}, err
		}

		value, err := textualName(s[end+1:])
		if err != nil {
			return Name{}, err
		}

		return dictionaryName(key, value), nil
	case strings.HasPrefix(s, "["):
		end := closingBracket(s, 0)
		if end < 0 {
			return Name{}, xerrors.Errorf("malformed array type '%s'", s)
		}

		item, err := textualName(s[end+1:])
		if err != nil {
			return Name{}, err
		}

		return collectionName(item), nil
	}

	if strings.ContainsAny(s, " {}()") || strings.LastIndexByte(s, '.') <= 0 {
		return Name{}, xerrors.Errorf("type '%s' cannot be named", s)
	}

	return Name{}, xerrors.Errorf("named type '%s' must be bound as a generic argument", s)
}

// collectionName returns the name of a collection of the given item.
func collectionName(item Name) Name {
	ns := item.Namespace
	if IsBuiltinNamespace(ns) {
		ns = ArraysNamespace
	}

	return New("ArrayOf"+item.Local, ns)
}

// dictionaryName returns the name of a dictionary from the key and the value.
func dictionaryName(key, value Name) Name {
	local := "ArrayOfKeyValueOf" + key.Local + value.Local

	return New(local+namespaceSuffix(ArraysNamespace, []Name{key, value}), ArraysNamespace)
}

// KeyValueName returns the name of an item of a dictionary.
func KeyValueName(key, value Name) Name {
	local := "KeyValueOf" + key.Local + value.Local

	return New(local+namespaceSuffix(ArraysNamespace, []Name{key, value}), ArraysNamespace)
}

// genericLocalName composes the local name of a generic instantiation. The
// hash of the argument namespaces is appended when they differ from the
// namespace of the generic type so that two instantiations with homonym
// arguments stay distinct.
func genericLocalName(base, ns string, args []Name) string {
	var b strings.Builder

	b.WriteString(base)
	b.WriteString("Of")

	for _, arg := range args {
		b.WriteString(arg.Local)
	}

	b.WriteString(namespaceSuffix(ns, args))

	return b.String()
}

func namespaceSuffix(ns string, args []Name) string {
	for _, arg := range args {
		if arg.Namespace != ns && !IsBuiltinNamespace(arg.Namespace) {
			return namespaceHash(args)
		}
	}

	return ""
}

// namespaceHash returns a short deterministic digest of the namespaces of the
// arguments.
func namespaceHash(args []Name) string {
	h := fnv.New64a()

	for _, arg := range args {
		h.Write([]byte(arg.Namespace))
		h.Write([]byte{0})
	}

	return hashEncoding.EncodeToString(h.Sum(nil))[:8]
}
