package contract

// Equal returns true if the two contracts describe the same wire shape: the
// same variant and name, and the same members or items.
func Equal(a, b Contract) bool {
	if a == nil || b == nil {
		return a == b
	}

	if a == b {
		return true
	}

	if a.Kind() != b.Kind() || a.Name() != b.Name() || a.IsReference() != b.IsReference() {
		return false
	}

	switch x := a.(type) {
	case *PrimitiveContract:
		return true
	case *ClassContract:
		y := b.(*ClassContract)
		return equalMembers(x.AllMembers(), y.AllMembers())
	case *CollectionContract:
		y := b.(*CollectionContract)
		return x.itemName == y.itemName &&
			(x.kind == y.kind || isSequence(x.kind) && isSequence(y.kind))
	case *EnumContract:
		y := b.(*EnumContract)
		return x.flags == y.flags && equalEnumMembers(x.members, y.members)
	case *SurrogateContract:
		return Equal(x.surrogate, b.(*SurrogateContract).surrogate)
	default:
		return a.Type() == b.Type()
	}
}

func equalMembers(a, b []*DataMember) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i].Name != b[i].Name || a[i].Namespace != b[i].Namespace ||
			a[i].Required != b[i].Required {
			return false
		}
	}

	return true
}

func equalEnumMembers(a, b []EnumMember) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

// isSequence returns true for the collections written as a plain sequence of
// items, that are interchangeable on the wire.
func isSequence(kind CollectionKind) bool {
	return kind != DictionaryCollection
}
