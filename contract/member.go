package contract

import (
	"reflect"
	"strconv"
	"strings"
)

// TagName is the key of the struct tag describing a data member.
const TagName = "dc"

// DataMember is a member of a class contract. The accessors are bound to the
// field when the contract is built, the traversal never looks a field up by
// name.
type DataMember struct {
	// Name is the local name of the member element.
	Name string

	// Namespace is the namespace of the class declaring the member.
	Namespace string

	// Order is the explicit order of the member, or -1.
	Order int

	// Required makes the absence of the member an error.
	Required bool

	// EmitDefault writes the member even if it has its zero value.
	EmitDefault bool

	// Nullable is true when the member can be written as nil.
	Nullable bool

	// GetOnly members are read into the existing value instead of being set.
	GetOnly bool

	// Type is the declared type of the member.
	Type reflect.Type

	// KnownTypes are scoped to the member.
	KnownTypes []reflect.Type

	get getter
	set setter
}

// getter returns a member of a struct value.
type getter func(obj reflect.Value) reflect.Value

// setter assigns a member of an addressable struct value. An invalid value
// resets the member to its zero value.
type setter func(obj reflect.Value, value reflect.Value)

// bind builds the accessors of the member declared by the field at the given
// position of its struct.
func (m *DataMember) bind(field int) {
	zero := reflect.Zero(m.Type)

	m.get = func(obj reflect.Value) reflect.Value {
		return obj.Field(field)
	}

	m.set = func(obj reflect.Value, value reflect.Value) {
		if !value.IsValid() {
			value = zero
		}

		obj.Field(field).Set(value)
	}
}

// tag is the parsed struct tag of a member.
type tag struct {
	name        string
	skip        bool
	order       int
	required    bool
	emitDefault bool
	nullable    bool
	getOnly     bool
}

// parseTag parses a tag of the form "Name,order=2,required,emitdefault=false".
func parseTag(field reflect.StructField) (tag, error) {
	t := tag{
		name:        field.Name,
		order:       -1,
		emitDefault: true,
	}

	raw, found := field.Tag.Lookup(TagName)
	if !found {
		return t, nil
	}

	if raw == "-" {
		t.skip = true
		return t, nil
	}

	parts := strings.Split(raw, ",")
	if parts[0] != "" {
		t.name = parts[0]
	}

	for _, opt := range parts[1:] {
		key, value := opt, ""

		eq := strings.IndexByte(opt, '=')
		if eq >= 0 {
			key, value = opt[:eq], opt[eq+1:]
		}

		switch key {
		case "required":
			t.required = value == "" || value == "true"
		case "nullable":
			t.nullable = value == "" || value == "true"
		case "getonly":
			t.getOnly = value == "" || value == "true"
		case "emitdefault":
			t.emitDefault = value == "" || value == "true"
		case "order":
			order, err := strconv.Atoi(value)
			if err != nil || order < 0 {
				return t, contractError("invalid order '%s' for field %s", value, field.Name)
			}

			t.order = order
		default:
			return t, contractError("unknown option '%s' for field %s", key, field.Name)
		}
	}

	return t, nil
}

func isNullable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return true
	default:
		return false
	}
}
