package contract

import (
	"reflect"
	"sort"
	"strconv"

	"go.dedis.ch/dcxml"
	"go.dedis.ch/dcxml/qname"
	"go.dedis.ch/dcxml/xmlio"
)

// CollectionKind is the shape of a collection.
type CollectionKind int

const (
	// ArrayCollection is a fixed-length array.
	ArrayCollection CollectionKind = iota + 1
	// ListCollection is a slice.
	ListCollection
	// DictionaryCollection is a map, written as a sequence of key-value
	// entries.
	DictionaryCollection
	// AddCollection is a type exposing its items and an Add method.
	AddCollection
	// EnumerableCollection is a type exposing its items only. It can be
	// written but not read.
	EnumerableCollection
)

var collectionKindNames = map[CollectionKind]string{
	ArrayCollection:      "array",
	ListCollection:       "list",
	DictionaryCollection: "dictionary",
	AddCollection:        "collection",
	EnumerableCollection: "enumerable",
}

// String implements fmt.Stringer.
func (k CollectionKind) String() string {
	name, found := collectionKindNames[k]
	if !found {
		return "unknown"
	}

	return name
}

const (
	addMethod   = "Add"
	itemsMethod = "Items"
)

// CollectionContract is the contract of the arrays, slices, maps and of the
// types exposing their items.
//
// - implements contract.Contract
type CollectionContract struct {
	typ      reflect.Type
	name     qname.Name
	kind     CollectionKind
	desc     Description
	itemType reflect.Type
	itemName qname.Name
	entry    *ClassContract
	add      int
	items    int
}

func newCollection(t reflect.Type, desc Description) (*CollectionContract, error) {
	name, err := StableName(t)
	if err != nil {
		return nil, err
	}

	c := &CollectionContract{
		typ:   t,
		name:  name,
		desc:  desc,
		add:   -1,
		items: -1,
	}

	switch t.Kind() {
	case reflect.Array:
		c.kind = ArrayCollection
		c.itemType = t.Elem()
	case reflect.Slice:
		c.kind = ListCollection
		c.itemType = t.Elem()
	case reflect.Map:
		c.kind = DictionaryCollection

		c.entry, err = entryContract(t)
		if err != nil {
			return nil, err
		}

		c.itemType = c.entry.typ
		c.itemName = qname.New(c.entry.name.Local, name.Namespace)
	default:
		err = c.setMethods()
		if err != nil {
			return nil, err
		}
	}

	if c.itemName.IsZero() {
		local := desc.ItemName
		if local == "" {
			item, err := StableName(c.itemType)
			if err != nil {
				return nil, wrapContract(err, "invalid item of %v", t)
			}

			local = item.Local
		}

		c.itemName = qname.New(local, name.Namespace)
	}

	return c, nil
}

// entryContract returns the contract of the key-value entries of the map type.
// The type of the entries is synthesized and shared by the maps with the same
// key and value types.
func entryContract(t reflect.Type) (*ClassContract, error) {
	entryType := reflect.StructOf([]reflect.StructField{
		{Name: "Key", Type: t.Key()},
		{Name: "Value", Type: t.Elem()},
	})

	value, found := contracts.Load(entryType)
	if found {
		e := value.(entry)
		if e.err != nil {
			return nil, e.err
		}

		return e.contract.(*ClassContract), nil
	}

	key, err := StableName(t.Key())
	if err != nil {
		return nil, wrapContract(err, "invalid key of %v", t)
	}

	elem, err := StableName(t.Elem())
	if err != nil {
		return nil, wrapContract(err, "invalid value of %v", t)
	}

	c, err := newKeyValueClass(entryType, qname.KeyValueName(key, elem))
	if err != nil {
		return nil, err
	}

	value, _ = contracts.LoadOrStore(entryType, entry{contract: c})

	return value.(entry).contract.(*ClassContract), nil
}

func (c *CollectionContract) setMethods() error {
	ptr := reflect.PtrTo(c.typ)

	items, found := ptr.MethodByName(itemsMethod)
	if !found || !isItemsMethod(items) {
		return contractError("type %v does not expose its items", c.typ)
	}

	c.items = items.Index
	c.itemType = items.Type.Out(0).Elem()
	c.kind = EnumerableCollection

	add, found := ptr.MethodByName(addMethod)
	if found && add.Type.NumIn() == 2 && add.Type.In(1) == c.itemType {
		c.add = add.Index
		c.kind = AddCollection
	}

	return nil
}

// isCustomCollection returns true if the pointer to the struct type exposes
// its items.
func isCustomCollection(t reflect.Type) bool {
	items, found := reflect.PtrTo(t).MethodByName(itemsMethod)

	return found && isItemsMethod(items)
}

func isItemsMethod(m reflect.Method) bool {
	return m.Type.NumIn() == 1 && m.Type.NumOut() == 1 && m.Type.Out(0).Kind() == reflect.Slice
}

// canReadInPlace returns true for the types that can be filled without being
// assigned.
func canReadInPlace(t reflect.Type) bool {
	if t.Kind() == reflect.Map {
		return true
	}

	if t.Kind() != reflect.Ptr || t.Elem().Kind() != reflect.Struct || !isCustomCollection(t.Elem()) {
		return false
	}

	_, found := t.MethodByName(addMethod)

	return found
}

// Kind implements contract.Contract.
func (c *CollectionContract) Kind() Kind {
	return Collection
}

// Type implements contract.Contract.
func (c *CollectionContract) Type() reflect.Type {
	return c.typ
}

// Name implements contract.Contract.
func (c *CollectionContract) Name() qname.Name {
	return c.name
}

// IsReference implements contract.Contract.
func (c *CollectionContract) IsReference() bool {
	return c.desc.IsReference
}

// CanContainReferences implements contract.Contract.
func (c *CollectionContract) CanContainReferences() bool {
	return true
}

// CollectionKind returns the shape of the collection.
func (c *CollectionContract) CollectionKind() CollectionKind {
	return c.kind
}

// ItemType returns the declared type of the items. The items of a dictionary
// are its key-value entries.
func (c *CollectionContract) ItemType() reflect.Type {
	return c.itemType
}

// ItemName returns the name of the elements of the items.
func (c *CollectionContract) ItemName() qname.Name {
	return c.itemName
}

// Entry returns the contract of the entries of a dictionary, or nil.
func (c *CollectionContract) Entry() *ClassContract {
	return c.entry
}

// KnownTypes returns the known types declared by the collection.
func (c *CollectionContract) KnownTypes() []reflect.Type {
	return c.desc.KnownTypes
}

// WriteContent implements contract.Contract. The entries of a dictionary are
// written in the order of the keys when the keys can be ordered.
func (c *CollectionContract) WriteContent(w xmlio.Writer, v reflect.Value, ctx WriteContext) error {
	if len(c.desc.KnownTypes) > 0 {
		err := ctx.PushKnownTypes(c.desc.KnownTypes)
		if err != nil {
			return err
		}

		defer ctx.PopKnownTypes()
	}

	items := v

	switch c.kind {
	case DictionaryCollection:
		return c.writeEntries(w, v, ctx)
	case AddCollection, EnumerableCollection:
		items = addressable(v).Method(c.items).Call(nil)[0]
	}

	err := c.writeSize(w, items.Len(), ctx)
	if err != nil {
		return err
	}

	for i := 0; i < items.Len(); i++ {
		err := c.writeItem(w, items.Index(i), ctx)
		if err != nil {
			return err
		}
	}

	return nil
}

func (c *CollectionContract) writeEntries(w xmlio.Writer, v reflect.Value, ctx WriteContext) error {
	err := c.writeSize(w, v.Len(), ctx)
	if err != nil {
		return err
	}

	for _, key := range sortedKeys(v) {
		kv := reflect.New(c.itemType).Elem()
		kv.Field(0).Set(key)
		kv.Field(1).Set(v.MapIndex(key))

		err := c.writeItem(w, kv, ctx)
		if err != nil {
			return err
		}
	}

	return nil
}

func (c *CollectionContract) writeSize(w xmlio.Writer, size int, ctx WriteContext) error {
	if !ctx.WriteSize() {
		return nil
	}

	return w.WriteAttribute("Size", qname.SerializationNamespace, strconv.Itoa(size))
}

func (c *CollectionContract) writeItem(w xmlio.Writer, item reflect.Value, ctx WriteContext) error {
	err := w.WriteStartElement(c.itemName.Local, c.itemName.Namespace)
	if err != nil {
		return err
	}

	err = ctx.WriteValue(w, item, c.itemType, false)
	if err != nil {
		return err
	}

	return w.WriteEndElement()
}

// ReadContent implements contract.Contract. The size hint of the node, when
// present, preallocates the collection and bounds the number of items.
func (c *CollectionContract) ReadContent(r xmlio.Reader, ctx ReadContext) (reflect.Value, error) {
	node := ctx.TakeNode()

	if len(c.desc.KnownTypes) > 0 {
		err := ctx.PushKnownTypes(c.desc.KnownTypes)
		if err != nil {
			return reflect.Value{}, err
		}

		defer ctx.PopKnownTypes()
	}

	switch c.kind {
	case ArrayCollection:
		return c.readArray(r, node, ctx)
	case ListCollection:
		return c.readList(r, node, ctx)
	case DictionaryCollection:
		return c.readEntries(r, node, ctx)
	case AddCollection:
		return c.readAdd(r, node, ctx)
	default:
		return reflect.Value{}, positioned(r, dcxml.ContractError,
			"collection %v has no %s method and cannot be read", c.typ, addMethod)
	}
}

func (c *CollectionContract) readArray(r xmlio.Reader, node *Node, ctx ReadContext) (reflect.Value, error) {
	array := reflect.New(c.typ).Elem()

	if node.Size > array.Len() {
		return reflect.Value{}, positioned(r, dcxml.IntegrityError,
			"size %d exceeds the length %d of %v", node.Size, array.Len(), c.typ)
	}

	n := 0

	err := c.readItems(r, node, func() error {
		if n >= array.Len() {
			return positioned(r, dcxml.IntegrityError,
				"array %v cannot hold more than %d items", c.typ, array.Len())
		}

		i := n
		n++

		return ctx.ReadValueInto(r, c.itemType, func(v reflect.Value) {
			if v.IsValid() {
				array.Index(i).Set(v)
			}
		})
	})

	if err != nil {
		return reflect.Value{}, err
	}

	return array, nil
}

// readList reads the items of a slice, doubling the capacity when it is full
// and trimming the result to the exact count.
func (c *CollectionContract) readList(r xmlio.Reader, node *Node, ctx ReadContext) (reflect.Value, error) {
	capacity := 0
	if node.Size > 0 {
		capacity = node.Size
	}

	items := reflect.MakeSlice(c.typ, capacity, capacity)
	n := 0

	err := c.readItems(r, node, func() error {
		if n == items.Len() {
			length := 2 * n
			if length == 0 {
				length = 4
			}

			grown := reflect.MakeSlice(c.typ, length, length)
			reflect.Copy(grown, items)
			items = grown
		}

		i := n
		n++

		// The slice can be reallocated before a forward reference is
		// resolved, the current backing array is looked up when it is.
		return ctx.ReadValueInto(r, c.itemType, func(v reflect.Value) {
			if v.IsValid() {
				items.Index(i).Set(v)
			}
		})
	})

	if err != nil {
		return reflect.Value{}, err
	}

	return items.Slice3(0, n, n), nil
}

func (c *CollectionContract) readEntries(r xmlio.Reader, node *Node, ctx ReadContext) (reflect.Value, error) {
	m := node.Existing
	if !m.IsValid() {
		size := 0
		if node.Size > 0 {
			size = node.Size
		}

		m = reflect.MakeMapWithSize(c.typ, size)
	}

	err := ctx.Created(node, m)
	if err != nil {
		return reflect.Value{}, err
	}

	err = c.readItems(r, node, func() error {
		// An entry referring forward is inserted once its key and value are
		// resolved.
		return ctx.ReadValueInto(r, c.itemType, func(kv reflect.Value) {
			m.SetMapIndex(kv.Field(0), kv.Field(1))
		})
	})

	if err != nil {
		return reflect.Value{}, err
	}

	return m, nil
}

func (c *CollectionContract) readAdd(r xmlio.Reader, node *Node, ctx ReadContext) (reflect.Value, error) {
	ptr := node.Existing
	if !ptr.IsValid() {
		ptr = reflect.New(c.typ)
	}

	err := ctx.Created(node, ptr)
	if err != nil {
		return reflect.Value{}, err
	}

	var items []reflect.Value
	resolved := 0

	err = c.readItems(r, node, func() error {
		i := len(items)
		items = append(items, reflect.Zero(c.itemType))

		return ctx.ReadValueInto(r, c.itemType, func(v reflect.Value) {
			resolved++

			if v.IsValid() {
				items[i] = v
			}
		})
	})

	if err != nil {
		return reflect.Value{}, err
	}

	add := ptr.Method(c.add)

	fill := func() {
		for _, item := range items {
			add.Call([]reflect.Value{item})
		}
	}

	// The items are added in the order of the document, after the last
	// forward reference is resolved when there is one.
	if resolved < len(items) {
		ctx.AfterResolve(fill)
	} else {
		fill()
	}

	return ptr.Elem(), nil
}

// readItems consumes the element of the collection and calls fn for each item
// element, with the reader positioned on it.
func (c *CollectionContract) readItems(r xmlio.Reader, node *Node, fn func() error) error {
	err := r.ReadStartElement()
	if err != nil {
		return err
	}

	count := 0

	for {
		kind, err := r.MoveToContent()
		if err != nil {
			return err
		}

		if kind == xmlio.EndElementNode {
			break
		}

		if kind != xmlio.ElementNode || !r.IsStartElement(c.itemName.Local, c.itemName.Namespace) {
			return positioned(r, dcxml.WireFormatError, "expecting element %s in %s",
				c.itemName, c.name)
		}

		if node.Size >= 0 && count >= node.Size {
			return positioned(r, dcxml.IntegrityError,
				"collection %s has more items than its size %d", c.name, node.Size)
		}

		err = fn()
		if err != nil {
			return err
		}

		count++
	}

	return r.ReadEndElement()
}

// addressable returns a pointer to the value, copying it if necessary.
func addressable(v reflect.Value) reflect.Value {
	if v.CanAddr() {
		return v.Addr()
	}

	ptr := reflect.New(v.Type())
	ptr.Elem().Set(v)

	return ptr
}

// sortedKeys returns the keys of the map, in order when the kind of the keys
// is ordered.
func sortedKeys(m reflect.Value) []reflect.Value {
	keys := m.MapKeys()

	var less func(a, b reflect.Value) bool

	switch m.Type().Key().Kind() {
	case reflect.String:
		less = func(a, b reflect.Value) bool { return a.String() < b.String() }
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		less = func(a, b reflect.Value) bool { return a.Int() < b.Int() }
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		less = func(a, b reflect.Value) bool { return a.Uint() < b.Uint() }
	case reflect.Float32, reflect.Float64:
		less = func(a, b reflect.Value) bool { return a.Float() < b.Float() }
	case reflect.Bool:
		less = func(a, b reflect.Value) bool { return !a.Bool() && b.Bool() }
	default:
		return keys
	}

	sort.Slice(keys, func(i, j int) bool {
		return less(keys[i], keys[j])
	})

	return keys
}
