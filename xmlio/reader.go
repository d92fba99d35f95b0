package xmlio

import (
	"encoding/base64"
	"encoding/xml"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.dedis.ch/dcxml"
	"go.dedis.ch/dcxml/qname"
)

const xmlNamespace = "http://www.w3.org/XML/1998/namespace"

// item is a token of the document with the position where it starts.
type item struct {
	tok    xml.Token
	line   int
	column int
}

// TextReader is the default implementation of the reader on top of the
// encoding/xml tokenizer. It keeps a small lookahead to detect the empty
// elements.
//
// - implements xmlio.Reader
type TextReader struct {
	dec    *xml.Decoder
	queue  []item
	scopes []map[string]string
	err    error
}

// NewReader returns a new reader of the input.
func NewReader(in io.Reader) *TextReader {
	dec := xml.NewDecoder(in)
	dec.Strict = true

	return &TextReader{
		dec: dec,
	}
}

// MoveToContent implements xmlio.Reader.
func (r *TextReader) MoveToContent() (NodeKind, error) {
	for {
		cur, err := r.peek(0)
		if err != nil {
			return NoNode, err
		}

		switch tok := cur.tok.(type) {
		case nil:
			return EOFNode, nil
		case xml.StartElement:
			return ElementNode, nil
		case xml.EndElement:
			return EndElementNode, nil
		case xml.CharData:
			if len(strings.TrimSpace(string(tok))) > 0 {
				return TextNode, nil
			}
		}

		r.pop()
	}
}

// LocalName implements xmlio.Reader.
func (r *TextReader) LocalName() string {
	switch tok := r.front().(type) {
	case xml.StartElement:
		return tok.Name.Local
	case xml.EndElement:
		return tok.Name.Local
	default:
		return ""
	}
}

// NamespaceURI implements xmlio.Reader.
func (r *TextReader) NamespaceURI() string {
	switch tok := r.front().(type) {
	case xml.StartElement:
		return tok.Name.Space
	case xml.EndElement:
		return tok.Name.Space
	default:
		return ""
	}
}

// IsStartElement implements xmlio.Reader.
func (r *TextReader) IsStartElement(local, namespace string) bool {
	start, ok := r.front().(xml.StartElement)

	return ok && start.Name.Local == local && start.Name.Space == namespace
}

// IsEmptyElement implements xmlio.Reader.
func (r *TextReader) IsEmptyElement() bool {
	_, ok := r.front().(xml.StartElement)
	if !ok {
		return false
	}

	next, err := r.peek(1)
	if err != nil {
		return false
	}

	_, ok = next.tok.(xml.EndElement)

	return ok
}

// Attribute implements xmlio.Reader.
func (r *TextReader) Attribute(local, namespace string) (string, bool) {
	start, ok := r.front().(xml.StartElement)
	if !ok {
		return "", false
	}

	for _, attr := range start.Attr {
		if attr.Name.Local == local && attr.Name.Space == namespace {
			return attr.Value, true
		}
	}

	return "", false
}

// LookupNamespace implements xmlio.Reader. The declarations of the current
// element are in scope.
func (r *TextReader) LookupNamespace(prefix string) (string, bool) {
	if prefix == "xml" {
		return xmlNamespace, true
	}

	start, ok := r.front().(xml.StartElement)
	if ok {
		for _, attr := range start.Attr {
			if isDeclaration(attr) && declaredPrefix(attr) == prefix {
				return attr.Value, true
			}
		}
	}

	for i := len(r.scopes) - 1; i >= 0; i-- {
		ns, found := r.scopes[i][prefix]
		if found {
			return ns, true
		}
	}

	return "", false
}

// ReadStartElement implements xmlio.Reader.
func (r *TextReader) ReadStartElement() error {
	kind, err := r.MoveToContent()
	if err != nil {
		return err
	}

	if kind != ElementNode {
		return r.unexpected(kind, "element")
	}

	r.pop()

	return nil
}

// ReadEndElement implements xmlio.Reader.
func (r *TextReader) ReadEndElement() error {
	kind, err := r.MoveToContent()
	if err != nil {
		return err
	}

	if kind != EndElementNode {
		return r.unexpected(kind, "end element")
	}

	r.pop()

	return nil
}

// Skip implements xmlio.Reader.
func (r *TextReader) Skip() error {
	kind, err := r.MoveToContent()
	if err != nil {
		return err
	}

	if kind == EOFNode {
		return nil
	}

	if kind != ElementNode {
		r.pop()
		return nil
	}

	depth := 0

	for {
		cur, err := r.peek(0)
		if err != nil {
			return err
		}

		switch cur.tok.(type) {
		case nil:
			return r.wireError("unexpected end of document")
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		}

		r.pop()

		if depth == 0 {
			return nil
		}
	}
}

// ReadString implements xmlio.Reader. It returns the text content of the
// current element and consumes it.
func (r *TextReader) ReadString() (string, error) {
	kind, err := r.MoveToContent()
	if err != nil {
		return "", err
	}

	if kind != ElementNode {
		return "", r.unexpected(kind, "element")
	}

	start := r.front().(xml.StartElement)
	r.pop()

	var b strings.Builder

	for {
		cur, err := r.peek(0)
		if err != nil {
			return "", err
		}

		switch tok := cur.tok.(type) {
		case nil:
			return "", r.wireError("unexpected end of document")
		case xml.CharData:
			b.Write(tok)
		case xml.StartElement:
			return "", r.wireError("element '%s' is not expected in the content of '%s'",
				tok.Name.Local, start.Name.Local)
		case xml.EndElement:
			r.pop()
			return b.String(), nil
		}

		r.pop()
	}
}

// ReadBool implements xmlio.Reader.
func (r *TextReader) ReadBool() (bool, error) {
	line, column := r.Position()

	text, err := r.ReadString()
	if err != nil {
		return false, err
	}

	value, err := ParseBool(text)
	if err != nil {
		return false, wireErrorAt(line, column, err)
	}

	return value, nil
}

// ReadInt implements xmlio.Reader.
func (r *TextReader) ReadInt(bitSize int) (int64, error) {
	line, column := r.Position()

	text, err := r.ReadString()
	if err != nil {
		return 0, err
	}

	value, err := strconv.ParseInt(strings.TrimSpace(text), 10, bitSize)
	if err != nil {
		return 0, wireErrorAt(line, column, err)
	}

	return value, nil
}

// ReadUint implements xmlio.Reader.
func (r *TextReader) ReadUint(bitSize int) (uint64, error) {
	line, column := r.Position()

	text, err := r.ReadString()
	if err != nil {
		return 0, err
	}

	value, err := strconv.ParseUint(strings.TrimSpace(text), 10, bitSize)
	if err != nil {
		return 0, wireErrorAt(line, column, err)
	}

	return value, nil
}

// ReadFloat implements xmlio.Reader.
func (r *TextReader) ReadFloat(bitSize int) (float64, error) {
	line, column := r.Position()

	text, err := r.ReadString()
	if err != nil {
		return 0, err
	}

	value, err := ParseFloat(text, bitSize)
	if err != nil {
		return 0, wireErrorAt(line, column, err)
	}

	return value, nil
}

// ReadBase64 implements xmlio.Reader.
func (r *TextReader) ReadBase64() ([]byte, error) {
	line, column := r.Position()

	text, err := r.ReadString()
	if err != nil {
		return nil, err
	}

	value, err := base64.StdEncoding.DecodeString(strings.TrimSpace(text))
	if err != nil {
		return nil, wireErrorAt(line, column, err)
	}

	return value, nil
}

// ReadTime implements xmlio.Reader.
func (r *TextReader) ReadTime() (time.Time, error) {
	line, column := r.Position()

	text, err := r.ReadString()
	if err != nil {
		return time.Time{}, err
	}

	value, err := ParseTime(text)
	if err != nil {
		return time.Time{}, wireErrorAt(line, column, err)
	}

	return value, nil
}

// ReadDuration implements xmlio.Reader.
func (r *TextReader) ReadDuration() (time.Duration, error) {
	line, column := r.Position()

	text, err := r.ReadString()
	if err != nil {
		return 0, err
	}

	value, err := ParseDuration(text)
	if err != nil {
		return 0, wireErrorAt(line, column, err)
	}

	return value, nil
}

// ReadQName implements xmlio.Reader. The prefix is resolved in the scope of
// the element holding the value.
func (r *TextReader) ReadQName() (qname.Name, error) {
	line, column := r.Position()

	// The scope must be captured before the element is consumed.
	scope := r.currentScope()

	text, err := r.ReadString()
	if err != nil {
		return qname.Name{}, err
	}

	name, err := ResolveQName(strings.TrimSpace(text), func(prefix string) (string, bool) {
		ns, found := scope[prefix]
		return ns, found
	})
	if err != nil {
		return qname.Name{}, wireErrorAt(line, column, err)
	}

	return name, nil
}

// ReadSubtree implements xmlio.Reader. The namespaces in scope are declared on
// the root of the fragment so that it can be parsed on its own.
func (r *TextReader) ReadSubtree() (string, error) {
	kind, err := r.MoveToContent()
	if err != nil {
		return "", err
	}

	if kind != ElementNode {
		return "", r.unexpected(kind, "element")
	}

	scope := r.currentScope()

	var b strings.Builder
	w := NewWriter(&b)

	depth := 0

	for {
		cur, err := r.peek(0)
		if err != nil {
			return "", err
		}

		switch tok := cur.tok.(type) {
		case nil:
			return "", r.wireError("unexpected end of document")
		case xml.StartElement:
			err = w.WriteStartElement(tok.Name.Local, tok.Name.Space)
			if err == nil && depth == 0 {
				err = declareScope(w, scope)
			}
			if err == nil {
				err = copyAttributes(w, tok.Attr)
			}

			depth++
		case xml.EndElement:
			err = w.WriteEndElement()
			depth--
		case xml.CharData:
			err = w.WriteString(string(tok))
		}

		if err != nil {
			return "", r.wireError("couldn't copy subtree: %v", err)
		}

		r.pop()

		if depth == 0 {
			break
		}
	}

	err = w.Flush()
	if err != nil {
		return "", r.wireError("couldn't copy subtree: %v", err)
	}

	return b.String(), nil
}

// Position implements xmlio.Reader.
func (r *TextReader) Position() (int, int) {
	if len(r.queue) == 0 {
		return r.dec.InputPos()
	}

	return r.queue[0].line, r.queue[0].column
}

func (r *TextReader) front() xml.Token {
	cur, err := r.peek(0)
	if err != nil {
		return nil
	}

	return cur.tok
}

// peek makes sure the n-th token of the lookahead is available and returns
// it. The end of the document is a nil token.
func (r *TextReader) peek(n int) (item, error) {
	for len(r.queue) <= n {
		if r.err != nil {
			return item{}, r.err
		}

		line, column := r.dec.InputPos()

		tok, err := r.dec.Token()
		if err == io.EOF {
			r.queue = append(r.queue, item{line: line, column: column})
			continue
		}

		if err != nil {
			r.err = dcxml.NewError(dcxml.WireFormatError, "malformed document: %v", err).
				At(line, column)

			return item{}, r.err
		}

		r.queue = append(r.queue, item{tok: xml.CopyToken(tok), line: line, column: column})
	}

	return r.queue[n], nil
}

// pop consumes the current token and maintains the namespace scopes.
func (r *TextReader) pop() {
	if len(r.queue) == 0 {
		return
	}

	switch tok := r.queue[0].tok.(type) {
	case nil:
		// The end of the document is sticky.
		return
	case xml.StartElement:
		scope := make(map[string]string)
		for _, attr := range tok.Attr {
			if isDeclaration(attr) {
				scope[declaredPrefix(attr)] = attr.Value
			}
		}

		r.scopes = append(r.scopes, scope)
	case xml.EndElement:
		if len(r.scopes) > 0 {
			r.scopes = r.scopes[:len(r.scopes)-1]
		}
	}

	r.queue = r.queue[1:]
}

// currentScope returns the flattened namespace bindings visible from the
// current element.
func (r *TextReader) currentScope() map[string]string {
	scope := make(map[string]string)

	for _, s := range r.scopes {
		for prefix, ns := range s {
			scope[prefix] = ns
		}
	}

	start, ok := r.front().(xml.StartElement)
	if ok {
		for _, attr := range start.Attr {
			if isDeclaration(attr) {
				scope[declaredPrefix(attr)] = attr.Value
			}
		}
	}

	return scope
}

func (r *TextReader) unexpected(kind NodeKind, expected string) error {
	return r.wireError("expecting %s but found %s", expected, kind)
}

func (r *TextReader) wireError(format string, args ...interface{}) error {
	line, column := r.Position()

	return dcxml.NewError(dcxml.WireFormatError, format, args...).At(line, column)
}

func wireErrorAt(line, column int, err error) error {
	return dcxml.NewError(dcxml.WireFormatError, "%v", err).At(line, column)
}

// ResolveQName parses a prefixed name and resolves the prefix with the lookup
// function. An unprefixed name belongs to the default namespace.
func ResolveQName(text string, lookup func(prefix string) (string, bool)) (qname.Name, error) {
	prefix := ""
	local := text

	colon := strings.IndexByte(text, ':')
	if colon >= 0 {
		prefix = text[:colon]
		local = text[colon+1:]
	}

	if local == "" || strings.ContainsAny(local, ": \t\n") {
		return qname.Name{}, dcxml.NewError(dcxml.WireFormatError,
			"invalid qualified name '%s'", text)
	}

	ns, found := lookup(prefix)
	if !found && prefix != "" {
		return qname.Name{}, dcxml.NewError(dcxml.WireFormatError,
			"prefix '%s' is not declared", prefix)
	}

	return qname.New(local, ns), nil
}

func isDeclaration(attr xml.Attr) bool {
	return attr.Name.Space == "xmlns" || (attr.Name.Space == "" && attr.Name.Local == "xmlns")
}

func declaredPrefix(attr xml.Attr) string {
	if attr.Name.Space == "xmlns" {
		return attr.Name.Local
	}

	return ""
}

func declareScope(w *TextWriter, scope map[string]string) error {
	prefixes := make([]string, 0, len(scope))
	for prefix := range scope {
		if prefix != "" {
			prefixes = append(prefixes, prefix)
		}
	}

	sort.Strings(prefixes)

	for _, prefix := range prefixes {
		err := w.WriteNamespace(prefix, scope[prefix])
		if err != nil {
			return err
		}
	}

	return nil
}

func copyAttributes(w *TextWriter, attrs []xml.Attr) error {
	for _, attr := range attrs {
		if attr.Name.Space == "xmlns" {
			err := w.WriteNamespace(attr.Name.Local, attr.Value)
			if err != nil {
				return err
			}

			continue
		}

		if isDeclaration(attr) {
			continue
		}

		err := w.WriteAttribute(attr.Name.Local, attr.Name.Space, attr.Value)
		if err != nil {
			return err
		}
	}

	return nil
}
