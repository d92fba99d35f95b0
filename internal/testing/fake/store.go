package fake

import (
	"bytes"
	"sort"

	"go.dedis.ch/dcxml/store/kv"
)

// InMemoryDB is a fake implementation of a key/value database.
//
// - implements kv.DB
type InMemoryDB struct {
	buckets  map[string]*InMemoryBucket
	ErrView  error
	ErrWrite error
	ErrClose error
}

// NewInMemoryDB returns a new empty database.
func NewInMemoryDB() *InMemoryDB {
	return &InMemoryDB{
		buckets: make(map[string]*InMemoryBucket),
	}
}

// NewBadDB returns a new empty database that will always return an error.
func NewBadDB() *InMemoryDB {
	db := NewInMemoryDB()
	db.ErrView = fakeErr
	db.ErrWrite = fakeErr
	db.ErrClose = fakeErr

	return db
}

// View implements kv.DB.
func (db *InMemoryDB) View(bucket []byte, fn func(kv.Bucket) error) error {
	if db.ErrView != nil {
		return db.ErrView
	}

	b, found := db.buckets[string(bucket)]
	if !found {
		return kv.ErrBucketNotFound
	}

	return fn(b)
}

// Update implements kv.DB.
func (db *InMemoryDB) Update(bucket []byte, fn func(kv.Bucket) error) error {
	b, found := db.buckets[string(bucket)]
	if !found {
		b = &InMemoryBucket{values: make(map[string][]byte), errWrite: db.ErrWrite}
		db.buckets[string(bucket)] = b
	}

	return fn(b)
}

// Close implements kv.DB.
func (db *InMemoryDB) Close() error {
	return db.ErrClose
}

// InMemoryBucket is a fake implementation of a bucket.
//
// - implements kv.Bucket
type InMemoryBucket struct {
	values   map[string][]byte
	errWrite error
}

// Get implements kv.Bucket.
func (b *InMemoryBucket) Get(key []byte) []byte {
	return b.values[string(key)]
}

// Set implements kv.Bucket.
func (b *InMemoryBucket) Set(key, value []byte) error {
	if b.errWrite != nil {
		return b.errWrite
	}

	b.values[string(key)] = value

	return nil
}

// Delete implements kv.Bucket.
func (b *InMemoryBucket) Delete(key []byte) error {
	if b.errWrite != nil {
		return b.errWrite
	}

	delete(b.values, string(key))

	return nil
}

// ForEach implements kv.Bucket.
func (b *InMemoryBucket) ForEach(fn func(k, v []byte) error) error {
	return b.Scan(nil, fn)
}

// Scan implements kv.Bucket.
func (b *InMemoryBucket) Scan(prefix []byte, fn func(k, v []byte) error) error {
	keys := make([]string, 0, len(b.values))
	for key := range b.values {
		if bytes.HasPrefix([]byte(key), prefix) {
			keys = append(keys, key)
		}
	}

	sort.Strings(keys)

	for _, key := range keys {
		err := fn([]byte(key), b.values[key])
		if err != nil {
			return err
		}
	}

	return nil
}
