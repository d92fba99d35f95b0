package kv

import (
	"bytes"
	"os"
	"time"

	"go.etcd.io/bbolt"
	"golang.org/x/xerrors"
)

// DefaultLockTimeout is the time to wait for another process to release the
// database file.
const DefaultLockTimeout = time.Second

// ErrBucketNotFound is returned by a view on a bucket that does not exist.
var ErrBucketNotFound = xerrors.New("bucket not found")

type openConfig struct {
	timeout time.Duration
	mode    os.FileMode
}

// Option is the type of option to open a database.
type Option func(*openConfig)

// WithLockTimeout sets the time to wait for the lock of the database file. A
// zero duration waits forever.
func WithLockTimeout(d time.Duration) Option {
	return func(cfg *openConfig) {
		cfg.timeout = d
	}
}

// WithFileMode sets the permissions of the database file when it is created.
func WithFileMode(mode os.FileMode) Option {
	return func(cfg *openConfig) {
		cfg.mode = mode
	}
}

// boltDB stores each bucket of documents as a bbolt bucket of a single file.
//
// - implements kv.DB
type boltDB struct {
	bolt *bbolt.DB
}

// New opens the database file at the given path, creating it if necessary.
func New(path string, opts ...Option) (DB, error) {
	cfg := openConfig{
		timeout: DefaultLockTimeout,
		mode:    0600,
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := bbolt.Open(path, cfg.mode, &bbolt.Options{Timeout: cfg.timeout})
	if err != nil {
		return nil, xerrors.Errorf("couldn't open '%s': %v", path, err)
	}

	return boltDB{bolt: db}, nil
}

// View implements kv.DB. The function reads the bucket in a read-only
// transaction, which fails when the bucket was never written.
func (db boltDB) View(bucket []byte, fn func(Bucket) error) error {
	return db.bolt.View(func(txn *bbolt.Tx) error {
		b := txn.Bucket(bucket)
		if b == nil {
			return xerrors.Errorf("bucket '%s': %w", bucket, ErrBucketNotFound)
		}

		return fn(boltBucket{b})
	})
}

// Update implements kv.DB. The bucket is created on the first write.
func (db boltDB) Update(bucket []byte, fn func(Bucket) error) error {
	return db.bolt.Update(func(txn *bbolt.Tx) error {
		b, err := txn.CreateBucketIfNotExists(bucket)
		if err != nil {
			return xerrors.Errorf("couldn't create bucket: %v", err)
		}

		return fn(boltBucket{b})
	})
}

// Close implements kv.DB. It releases the lock of the file.
func (db boltDB) Close() error {
	return db.bolt.Close()
}

// boltBucket reads and writes the documents of a bucket within a transaction.
//
// - implements kv.Bucket
type boltBucket struct {
	*bbolt.Bucket
}

// Set implements kv.Bucket.
func (b boltBucket) Set(key, value []byte) error {
	return b.Put(key, value)
}

// Scan implements kv.Bucket. The cursor starts at the first key not less than
// the prefix and stops at the first one without it.
func (b boltBucket) Scan(prefix []byte, fn func(k, v []byte) error) error {
	cursor := b.Cursor()

	for k, v := cursor.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = cursor.Next() {
		err := fn(k, v)
		if err != nil {
			return xerrors.Errorf("callback failed: %v", err)
		}
	}

	return nil
}
