// Package serializer implements the traversal of the object graphs. A
// serializer is created for a root type and can then be used concurrently:
// each operation owns its object tracker, its scope of known types and its
// item budget.
//
// Documentation Last Review: 17.10.2026
package serializer

import (
	"bytes"
	"reflect"
	"sync"

	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"go.dedis.ch/dcxml"
	"go.dedis.ch/dcxml/contract"
	"go.dedis.ch/dcxml/contract/knowntypes"
	"go.dedis.ch/dcxml/qname"
	"go.dedis.ch/dcxml/refs"
	"go.dedis.ch/dcxml/xmlio"
	"golang.org/x/xerrors"
)

// DefaultMaxItems is the default number of nodes an operation can visit.
const DefaultMaxItems = 65536

type config struct {
	knownTypes []reflect.Type
	maxItems   int
	maxObjects int
	preserve   bool
	provider   contract.SurrogateProvider
	resolver   knowntypes.Resolver
	rootName   qname.Name
	typeHints  bool
	ignoreExt  bool
	logger     zerolog.Logger
}

// Option is the type of option to create a serializer.
type Option func(*config)

// WithKnownTypes adds types that can be written in place of the declared types
// they implement.
func WithKnownTypes(types ...reflect.Type) Option {
	return func(cfg *config) {
		cfg.knownTypes = append(cfg.knownTypes, types...)
	}
}

// WithMaxItems sets the maximum number of nodes an operation can visit.
func WithMaxItems(n int) Option {
	return func(cfg *config) {
		cfg.maxItems = n
	}
}

// WithMaxObjects sets the maximum number of objects an operation can identify
// when the references are preserved.
func WithMaxObjects(n int) Option {
	return func(cfg *config) {
		cfg.maxObjects = n
	}
}

// WithPreserveReferences enables the preservation of the identities: an object
// reached twice is written once and referred to afterwards, which supports the
// cycles.
func WithPreserveReferences() Option {
	return func(cfg *config) {
		cfg.preserve = true
	}
}

// WithSurrogate sets the provider substituting the types.
func WithSurrogate(p contract.SurrogateProvider) Option {
	return func(cfg *config) {
		cfg.provider = p
	}
}

// WithResolver sets the resolver of the names the known types do not cover.
func WithResolver(r knowntypes.Resolver) Option {
	return func(cfg *config) {
		cfg.resolver = r
	}
}

// WithRootName overrides the name of the root element.
func WithRootName(name qname.Name) Option {
	return func(cfg *config) {
		cfg.rootName = name
	}
}

// WithTypeHints writes the Go type of the polymorphic values next to their
// contract name.
func WithTypeHints() Option {
	return func(cfg *config) {
		cfg.typeHints = true
	}
}

// WithIgnoreExtensionData drops the unknown members instead of preserving
// them.
func WithIgnoreExtensionData() Option {
	return func(cfg *config) {
		cfg.ignoreExt = true
	}
}

// WithLogger sets the logger of the serializer.
func WithLogger(l zerolog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = l
	}
}

// Serializer writes and reads the graphs of a root type.
type Serializer struct {
	root       reflect.Type
	rootName   qname.Name
	set        *knowntypes.Set
	provider   contract.SurrogateProvider
	maxItems   int
	maxObjects int
	preserve   bool
	typeHints  bool
	ignoreExt  bool
	logger     zerolog.Logger

	// surrogates caches the contracts of the types, which depend on the
	// provider, and reverse maps the surrogate types back.
	surrogates sync.Map
	reverse    sync.Map
}

// New returns a new serializer for the root type. It builds the contracts of
// every type reachable from the root and the known types, and fails if one of
// them cannot be described.
func New(root reflect.Type, opts ...Option) (*Serializer, error) {
	cfg := config{
		maxItems:   DefaultMaxItems,
		maxObjects: refs.DefaultLimit,
		logger:     dcxml.Logger,
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Serializer{
		root:       root,
		provider:   cfg.provider,
		maxItems:   cfg.maxItems,
		maxObjects: cfg.maxObjects,
		preserve:   cfg.preserve,
		typeHints:  cfg.typeHints,
		ignoreExt:  cfg.ignoreExt,
		logger:     cfg.logger,
	}

	c, err := s.contractOf(root)
	if err != nil {
		return nil, xerrors.Errorf("couldn't describe root: %w", err)
	}

	s.rootName = cfg.rootName
	if s.rootName.IsZero() {
		s.rootName = c.Name()
	}

	setOpts := []knowntypes.Option{}
	if cfg.resolver != nil {
		setOpts = append(setOpts, knowntypes.WithResolver(cfg.resolver))
	}

	if cfg.provider != nil {
		setOpts = append(setOpts, knowntypes.WithMapper(s.wireType))
	}

	s.set = knowntypes.NewSet(setOpts...)

	err = s.set.Add(append([]reflect.Type{root}, cfg.knownTypes...)...)
	if err != nil {
		return nil, xerrors.Errorf("couldn't build known types: %w", err)
	}

	return s, nil
}

// RootName returns the name of the root element.
func (s *Serializer) RootName() qname.Name {
	return s.rootName
}

// KnownTypes returns the set of the contracts known by name.
func (s *Serializer) KnownTypes() *knowntypes.Set {
	return s.set
}

// IsStartObject returns true if the reader is positioned on the root element.
func (s *Serializer) IsStartObject(r xmlio.Reader) bool {
	kind, err := r.MoveToContent()
	if err != nil || kind != xmlio.ElementNode {
		return false
	}

	return r.IsStartElement(s.rootName.Local, s.rootName.Namespace)
}

// Marshal returns the document of the value.
func (s *Serializer) Marshal(v interface{}) ([]byte, error) {
	buffer := new(bytes.Buffer)

	err := s.WriteObject(xmlio.NewWriter(buffer), v)
	if err != nil {
		return nil, err
	}

	return buffer.Bytes(), nil
}

// Unmarshal reads the document into the value pointed by out.
func (s *Serializer) Unmarshal(data []byte, out interface{}) error {
	target := reflect.ValueOf(out)
	if target.Kind() != reflect.Ptr || target.IsNil() {
		return xerrors.Errorf("expecting a non-nil pointer but got %T", out)
	}

	v, err := s.ReadObject(xmlio.NewReader(bytes.NewReader(data)))
	if err != nil {
		return err
	}

	value := reflect.ValueOf(v)
	if !value.IsValid() {
		target.Elem().Set(reflect.Zero(target.Elem().Type()))
		return nil
	}

	if !value.Type().AssignableTo(target.Elem().Type()) {
		return xerrors.Errorf("cannot assign %v to %v", value.Type(), target.Elem().Type())
	}

	target.Elem().Set(value)

	return nil
}

// contractOf returns the contract of the type, or its surrogate contract if the
// provider substitutes it.
func (s *Serializer) contractOf(t reflect.Type) (contract.Contract, error) {
	if s.provider == nil {
		return contract.For(t)
	}

	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	value, found := s.surrogates.Load(t)
	if found {
		return value.(contract.Contract), nil
	}

	sc, ok, err := contract.NewSurrogate(t, s.provider)
	if err != nil {
		return nil, err
	}

	if !ok {
		return contract.For(t)
	}

	s.reverse.LoadOrStore(sc.Surrogate().Type(), sc)
	value, _ = s.surrogates.LoadOrStore(t, sc)

	return value.(contract.Contract), nil
}

// wireType returns the type written for the type.
func (s *Serializer) wireType(t reflect.Type) reflect.Type {
	c, err := s.contractOf(t)
	if err != nil {
		return t
	}

	sc, ok := c.(*contract.SurrogateContract)
	if ok {
		return sc.Surrogate().Type()
	}

	return t
}

// surrogateOf returns the surrogate contract of which the contract is the wire
// contract, if any.
func (s *Serializer) surrogateOf(c contract.Contract) (*contract.SurrogateContract, bool) {
	value, found := s.reverse.Load(c.Type())
	if !found {
		return nil, false
	}

	return value.(*contract.SurrogateContract), true
}

func (s *Serializer) operationLogger(direction string) zerolog.Logger {
	return s.logger.With().
		Str("direction", direction).
		Stringer("operation", xid.New()).
		Logger()
}
