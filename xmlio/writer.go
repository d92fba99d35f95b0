package xmlio

import (
	"bufio"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"time"

	"go.dedis.ch/dcxml/qname"
	"golang.org/x/xerrors"
)

// wellKnownPrefixes are the prefixes used for the namespaces of the engine
// when they need to be declared.
var wellKnownPrefixes = map[string]string{
	qname.SchemaInstanceNamespace: "i",
	qname.SerializationNamespace:  "z",
	qname.SchemaNamespace:         "x",
}

// frame is an open element.
type frame struct {
	local     string
	defaultNS string
	prefixes  map[string]string
}

// TextWriter is the default implementation of the writer. It writes elements
// in the default namespace and uses prefixes for the attributes and the
// qualified name values only.
//
// - implements xmlio.Writer
type TextWriter struct {
	out     *bufio.Writer
	stack   []*frame
	pending bool
	counter int
}

// NewWriter returns a new writer to the output.
func NewWriter(out io.Writer) *TextWriter {
	return &TextWriter{
		out: bufio.NewWriter(out),
	}
}

// Depth returns the number of elements currently open.
func (w *TextWriter) Depth() int {
	return len(w.stack)
}

// WriteStartElement implements xmlio.Writer. It opens an element and declares
// the default namespace when it differs from the parent.
func (w *TextWriter) WriteStartElement(local, namespace string) error {
	if local == "" {
		return xerrors.New("element name is empty")
	}

	err := w.closeStart()
	if err != nil {
		return err
	}

	parentNS := ""
	if len(w.stack) > 0 {
		parentNS = w.stack[len(w.stack)-1].defaultNS
	}

	f := &frame{
		local:     local,
		defaultNS: namespace,
		prefixes:  make(map[string]string),
	}

	w.stack = append(w.stack, f)
	w.pending = true

	_, err = fmt.Fprintf(w.out, "<%s", local)
	if err != nil {
		return xerrors.Errorf("couldn't write start tag: %v", err)
	}

	if namespace != parentNS {
		err = w.writeAttr("xmlns", namespace)
		if err != nil {
			return err
		}
	}

	return nil
}

// WriteEndElement implements xmlio.Writer. An element without content is
// written as an empty element.
func (w *TextWriter) WriteEndElement() error {
	if len(w.stack) == 0 {
		return xerrors.New("no element to close")
	}

	f := w.stack[len(w.stack)-1]
	w.stack = w.stack[:len(w.stack)-1]

	var err error
	if w.pending {
		w.pending = false
		_, err = w.out.WriteString("/>")
	} else {
		_, err = fmt.Fprintf(w.out, "</%s>", f.local)
	}

	if err != nil {
		return xerrors.Errorf("couldn't write end tag: %v", err)
	}

	return nil
}

// WriteAttribute implements xmlio.Writer.
func (w *TextWriter) WriteAttribute(local, namespace, value string) error {
	if !w.pending {
		return xerrors.Errorf("attribute '%s' written outside of a start tag", local)
	}

	name := local

	if namespace != "" {
		prefix, err := w.prefixFor(namespace)
		if err != nil {
			return err
		}

		name = prefix + ":" + local
	}

	return w.writeAttr(name, value)
}

// WriteQNameAttribute implements xmlio.Writer.
func (w *TextWriter) WriteQNameAttribute(local, namespace string, value qname.Name) error {
	if !w.pending {
		return xerrors.Errorf("attribute '%s' written outside of a start tag", local)
	}

	text, err := w.qualify(value)
	if err != nil {
		return err
	}

	return w.WriteAttribute(local, namespace, text)
}

// WriteNamespace implements xmlio.Writer. It binds the prefix to the namespace
// on the element being opened.
func (w *TextWriter) WriteNamespace(prefix, namespace string) error {
	if !w.pending {
		return xerrors.Errorf("namespace '%s' declared outside of a start tag", prefix)
	}

	current, found := w.lookupPrefix(prefix)
	if found && current == namespace {
		return nil
	}

	if prefix == "" {
		f := w.stack[len(w.stack)-1]
		if f.defaultNS == namespace {
			return nil
		}

		return xerrors.New("default namespace cannot be redeclared")
	}

	w.stack[len(w.stack)-1].prefixes[prefix] = namespace

	return w.writeAttr("xmlns:"+prefix, namespace)
}

// WriteString implements xmlio.Writer. The text is escaped.
func (w *TextWriter) WriteString(value string) error {
	err := w.closeStart()
	if err != nil {
		return err
	}

	err = xml.EscapeText(w.out, []byte(value))
	if err != nil {
		return xerrors.Errorf("couldn't write text: %v", err)
	}

	return nil
}

// WriteBool implements xmlio.Writer.
func (w *TextWriter) WriteBool(value bool) error {
	return w.WriteString(FormatBool(value))
}

// WriteInt implements xmlio.Writer.
func (w *TextWriter) WriteInt(value int64) error {
	return w.WriteString(strconv.FormatInt(value, 10))
}

// WriteUint implements xmlio.Writer.
func (w *TextWriter) WriteUint(value uint64) error {
	return w.WriteString(strconv.FormatUint(value, 10))
}

// WriteFloat implements xmlio.Writer.
func (w *TextWriter) WriteFloat(value float64, bitSize int) error {
	return w.WriteString(FormatFloat(value, bitSize))
}

// WriteBase64 implements xmlio.Writer.
func (w *TextWriter) WriteBase64(value []byte) error {
	return w.WriteString(base64.StdEncoding.EncodeToString(value))
}

// WriteTime implements xmlio.Writer.
func (w *TextWriter) WriteTime(value time.Time) error {
	return w.WriteString(FormatTime(value))
}

// WriteDuration implements xmlio.Writer.
func (w *TextWriter) WriteDuration(value time.Duration) error {
	return w.WriteString(FormatDuration(value))
}

// WriteQName implements xmlio.Writer. The prefix of the namespace is declared
// on the enclosing element when needed, which requires the start tag to be
// still open.
func (w *TextWriter) WriteQName(value qname.Name) error {
	if !w.pending && value.Namespace != "" {
		_, found := w.lookupNamespace(value.Namespace)
		if !found {
			return xerrors.Errorf("namespace '%s' is not declared", value.Namespace)
		}
	}

	text, err := w.qualify(value)
	if err != nil {
		return err
	}

	return w.WriteString(text)
}

// WriteRaw implements xmlio.Writer.
func (w *TextWriter) WriteRaw(fragment string) error {
	err := w.closeStart()
	if err != nil {
		return err
	}

	_, err = w.out.WriteString(fragment)
	if err != nil {
		return xerrors.Errorf("couldn't write fragment: %v", err)
	}

	return nil
}

// Flush implements xmlio.Writer.
func (w *TextWriter) Flush() error {
	err := w.closeStart()
	if err != nil {
		return err
	}

	return w.out.Flush()
}

func (w *TextWriter) closeStart() error {
	if !w.pending {
		return nil
	}

	w.pending = false

	err := w.out.WriteByte('>')
	if err != nil {
		return xerrors.Errorf("couldn't close start tag: %v", err)
	}

	return nil
}

func (w *TextWriter) writeAttr(name, value string) error {
	_, err := fmt.Fprintf(w.out, " %s=\"", name)
	if err == nil {
		err = xml.EscapeText(w.out, []byte(value))
	}
	if err == nil {
		err = w.out.WriteByte('"')
	}

	if err != nil {
		return xerrors.Errorf("couldn't write attribute: %v", err)
	}

	return nil
}

// qualify returns the prefixed form of the name, declaring the prefix when it
// is not in scope yet.
func (w *TextWriter) qualify(value qname.Name) (string, error) {
	if value.Namespace == "" {
		return value.Local, nil
	}

	prefix, err := w.prefixFor(value.Namespace)
	if err != nil {
		return "", err
	}

	return prefix + ":" + value.Local, nil
}

func (w *TextWriter) prefixFor(namespace string) (string, error) {
	prefix, found := w.lookupNamespace(namespace)
	if found {
		return prefix, nil
	}

	if !w.pending {
		return "", xerrors.Errorf("namespace '%s' is not declared", namespace)
	}

	prefix, known := wellKnownPrefixes[namespace]
	if known {
		if _, taken := w.lookupPrefix(prefix); taken {
			known = false
		}
	}

	for !known {
		w.counter++
		prefix = "d" + strconv.Itoa(len(w.stack)) + "p" + strconv.Itoa(w.counter)

		_, taken := w.lookupPrefix(prefix)
		known = !taken
	}

	return prefix, w.WriteNamespace(prefix, namespace)
}

func (w *TextWriter) lookupNamespace(namespace string) (string, bool) {
	for i := len(w.stack) - 1; i >= 0; i-- {
		for prefix, ns := range w.stack[i].prefixes {
			if ns != namespace {
				continue
			}

			// The binding must not be shadowed by an inner declaration.
			current, _ := w.lookupPrefix(prefix)
			if current == namespace {
				return prefix, true
			}
		}
	}

	return "", false
}

func (w *TextWriter) lookupPrefix(prefix string) (string, bool) {
	for i := len(w.stack) - 1; i >= 0; i-- {
		ns, found := w.stack[i].prefixes[prefix]
		if found {
			return ns, true
		}
	}

	return "", false
}
