package serializer

import (
	"reflect"
	"strings"

	"go.dedis.ch/dcxml"
	"go.dedis.ch/dcxml/qname"
	"go.dedis.ch/dcxml/refs"
	"go.dedis.ch/dcxml/xmlio"
)

// Report summarizes the structure of a document verified by Check.
type Report struct {
	// Root is the name of the root element.
	Root qname.Name

	// Elements is the number of elements of the document.
	Elements int

	// IDs is the number of objects declared with an identifier.
	IDs int

	// Refs is the number of references.
	Refs int

	// Nils is the number of elements marked as nil.
	Nils int

	// Types are the names found in the type attributes, without duplicates
	// and in order of appearance.
	Types []qname.Name
}

// Check verifies a document without knowing its contracts: the serialization
// attributes must be well-formed, every identifier must be declared once and
// every reference must point to an identifier of the document. The number of
// elements is bounded by maxItems when it is positive.
func Check(r xmlio.Reader, maxItems int) (Report, error) {
	report, err := check(r, maxItems)

	observe("check", report.Elements, err)

	return report, err
}

func check(r xmlio.Reader, maxItems int) (Report, error) {
	chk := checker{
		cache:    refs.NewCache(),
		maxItems: maxItems,
		seen:     make(map[qname.Name]bool),
	}

	kind, err := r.MoveToContent()
	if err != nil {
		return chk.report, err
	}

	if kind != xmlio.ElementNode {
		line, column := r.Position()

		return chk.report, dcxml.NewError(dcxml.WireFormatError,
			"expecting the root element but found %s", kind).At(line, column)
	}

	chk.report.Root = qname.New(r.LocalName(), r.NamespaceURI())

	err = chk.element(r)
	if err != nil {
		return chk.report, err
	}

	missing := chk.cache.Unresolved()
	if len(missing) > 0 {
		return chk.report, dcxml.NewError(dcxml.IntegrityError,
			"references to undefined ids: %s", strings.Join(missing, ", "))
	}

	return chk.report, nil
}

type checker struct {
	cache    *refs.Cache
	maxItems int
	report   Report
	seen     map[qname.Name]bool

	// ctx provides the attribute parsing of the read traversal.
	ctx readContext
}

func (chk *checker) element(r xmlio.Reader) error {
	chk.report.Elements++

	if chk.maxItems > 0 && chk.report.Elements > chk.maxItems {
		return chk.ctx.errorf(r, dcxml.QuotaError, "maximum number of items %d exceeded", chk.maxItems)
	}

	attrs, err := chk.ctx.attributes(r)
	if err != nil {
		return err
	}

	if attrs.hasType && !chk.seen[attrs.typeName] {
		chk.seen[attrs.typeName] = true
		chk.report.Types = append(chk.report.Types, attrs.typeName)
	}

	if attrs.isNil {
		chk.report.Nils++
	}

	switch {
	case attrs.id != "" && attrs.ref != "":
		return chk.ctx.errorf(r, dcxml.IntegrityError,
			"node cannot have both the Id '%s' and the Ref '%s'", attrs.id, attrs.ref)
	case attrs.id != "":
		chk.report.IDs++

		err = chk.cache.Add(attrs.id, reflect.ValueOf(chk.report.Elements))
		if err != nil {
			return chk.ctx.positioned(r, err)
		}
	case attrs.ref != "":
		chk.report.Refs++

		if !r.IsEmptyElement() {
			return chk.ctx.errorf(r, dcxml.WireFormatError,
				"element with the Ref '%s' must be empty", attrs.ref)
		}

		// A forward reference stays unresolved until its id is declared.
		chk.cache.Get(attrs.ref)
	}

	err = r.ReadStartElement()
	if err != nil {
		return err
	}

	for {
		kind, err := r.MoveToContent()
		if err != nil {
			return err
		}

		switch kind {
		case xmlio.ElementNode:
			err = chk.element(r)
		case xmlio.TextNode:
			err = r.Skip()
		default:
			return r.ReadEndElement()
		}

		if err != nil {
			return err
		}
	}
}
