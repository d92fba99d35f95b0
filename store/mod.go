// Package store implements an archive of serialized documents on top of a
// key/value database. The documents are kept as their XML representation so
// that they can be read back with any serializer whose contract matches.
//
// Documentation Last Review: 17.10.2026
package store

import (
	"bytes"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"go.dedis.ch/dcxml"
	"go.dedis.ch/dcxml/serializer"
	"go.dedis.ch/dcxml/store/kv"
	"go.dedis.ch/dcxml/xmlio"
	"golang.org/x/xerrors"
)

// DefaultBucket is the name of the bucket used when none is specified.
const DefaultBucket = "documents"

// ErrNotFound is returned when a key is not in the archive.
var ErrNotFound = xerrors.New("document not found")

var promDocuments = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "dcxml_archive_operations_total",
	Help: "total number of archive operations",
}, []string{"operation"})

func init() {
	dcxml.PromCollectors = append(dcxml.PromCollectors, promDocuments)
}

// Option is the type of option to create an archive.
type Option func(*Archive)

// WithBucket sets the bucket the documents are stored in.
func WithBucket(name string) Option {
	return func(a *Archive) {
		a.bucket = []byte(name)
	}
}

// WithLogger sets the logger of the archive.
func WithLogger(l zerolog.Logger) Option {
	return func(a *Archive) {
		a.logger = l
	}
}

// Archive stores XML documents by key.
type Archive struct {
	db     kv.DB
	bucket []byte
	logger zerolog.Logger
}

// NewArchive returns a new archive backed by the database.
func NewArchive(db kv.DB, opts ...Option) *Archive {
	a := &Archive{
		db:     db,
		bucket: []byte(DefaultBucket),
		logger: dcxml.Logger,
	}

	for _, opt := range opts {
		opt(a)
	}

	a.logger = a.logger.With().Str("bucket", string(a.bucket)).Logger()

	return a
}

// Put serializes the value and stores the document under the key.
func (a *Archive) Put(key string, s *serializer.Serializer, v interface{}) error {
	data, err := s.Marshal(v)
	if err != nil {
		return xerrors.Errorf("couldn't serialize: %w", err)
	}

	return a.Store(key, data)
}

// Get reads the document stored under the key into out, which must be a
// pointer to a value of the root type of the serializer.
func (a *Archive) Get(key string, s *serializer.Serializer, out interface{}) error {
	data, err := a.Load(key)
	if err != nil {
		return err
	}

	err = s.Unmarshal(data, out)
	if err != nil {
		return xerrors.Errorf("couldn't deserialize '%s': %w", key, err)
	}

	return nil
}

// Store stores the raw document under the key, replacing any previous one.
func (a *Archive) Store(key string, doc []byte) error {
	if key == "" {
		return xerrors.New("key is empty")
	}

	err := a.db.Update(a.bucket, func(b kv.Bucket) error {
		return b.Set([]byte(key), doc)
	})
	if err != nil {
		return xerrors.Errorf("couldn't store '%s': %v", key, err)
	}

	promDocuments.WithLabelValues("store").Inc()
	a.logger.Debug().Str("key", key).Int("size", len(doc)).Msg("document stored")

	return nil
}

// Append stores the raw document under a new unique key and returns it. The
// keys are sortable by creation time.
func (a *Archive) Append(doc []byte) (string, error) {
	key := xid.New().String()

	err := a.Store(key, doc)
	if err != nil {
		return "", err
	}

	return key, nil
}

// Load returns the raw document stored under the key.
func (a *Archive) Load(key string) ([]byte, error) {
	var doc []byte

	err := a.db.View(a.bucket, func(b kv.Bucket) error {
		value := b.Get([]byte(key))
		if value == nil {
			return xerrors.Errorf("'%s': %w", key, ErrNotFound)
		}

		// The value is only valid during the transaction.
		doc = append([]byte{}, value...)

		return nil
	})

	if xerrors.Is(err, kv.ErrBucketNotFound) {
		return nil, xerrors.Errorf("'%s': %w", key, ErrNotFound)
	}

	if err != nil {
		return nil, xerrors.Errorf("couldn't load: %w", err)
	}

	promDocuments.WithLabelValues("load").Inc()

	return doc, nil
}

// Delete removes the document stored under the key. Deleting a missing key is
// not an error.
func (a *Archive) Delete(key string) error {
	err := a.db.Update(a.bucket, func(b kv.Bucket) error {
		return b.Delete([]byte(key))
	})
	if err != nil {
		return xerrors.Errorf("couldn't delete '%s': %v", key, err)
	}

	promDocuments.WithLabelValues("delete").Inc()
	a.logger.Debug().Str("key", key).Msg("document deleted")

	return nil
}

// Keys returns the keys starting with the prefix, sorted.
func (a *Archive) Keys(prefix string) ([]string, error) {
	var keys []string

	err := a.db.View(a.bucket, func(b kv.Bucket) error {
		return b.Scan([]byte(prefix), func(k, v []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})

	if xerrors.Is(err, kv.ErrBucketNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, xerrors.Errorf("couldn't scan: %v", err)
	}

	sort.Strings(keys)

	return keys, nil
}

// Find returns the keys of the documents whose root element has the given
// local name, sorted. The documents that cannot be parsed are skipped.
func (a *Archive) Find(root string) ([]string, error) {
	var keys []string

	err := a.db.View(a.bucket, func(b kv.Bucket) error {
		return b.ForEach(func(k, v []byte) error {
			if rootName(v) == root {
				keys = append(keys, string(k))
			}

			return nil
		})
	})

	if xerrors.Is(err, kv.ErrBucketNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, xerrors.Errorf("couldn't iterate: %v", err)
	}

	sort.Strings(keys)

	return keys, nil
}

// rootName returns the local name of the root element of the document, or an
// empty string.
func rootName(doc []byte) string {
	r := xmlio.NewReader(bytes.NewReader(doc))

	kind, err := r.MoveToContent()
	if err != nil || kind != xmlio.ElementNode {
		return ""
	}

	return r.LocalName()
}
