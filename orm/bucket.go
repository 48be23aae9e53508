package orm

import (
	"fmt"
	"regexp"

	"github.com/iov-one/custodian"
	"github.com/iov-one/custodian/codec"
	"github.com/iov-one/custodian/errors"
)

var isBucketName = regexp.MustCompile(`^[a-z_]{3,10}$`).MatchString

// Model is implemented by any entity that can be stored using ModelBucket.
type Model interface {
	Validate() error
}

// ModelBucket is a prefixed subspace of the database holding models of
// one type, serialized with the codec package.
type ModelBucket struct {
	name   string
	prefix []byte
}

// NewModelBucket returns a bucket instance with the given name. The
// name is used to prefix all keys stored through this bucket.
func NewModelBucket(name string) ModelBucket {
	if !isBucketName(name) {
		panic(fmt.Sprintf("Illegal bucket: %s", name))
	}
	return ModelBucket{
		name:   name,
		prefix: append([]byte(name), ':'),
	}
}

// DBKey is the full key we store in the db, including prefix.
// We copy into a new array rather than use append, as we don't
// want consecutive calls to overwrite the same byte array.
func (b ModelBucket) DBKey(key []byte) []byte {
	l := len(b.prefix)
	out := make([]byte, l+len(key))
	copy(out, b.prefix)
	copy(out[l:], key)
	return out
}

// One queries the database for a single model instance. Lookup is done
// by the primary key. Result is loaded into given destination model.
// This method returns ErrNotFound if the entity does not exist in the
// database.
func (b ModelBucket) One(db custodian.ReadOnlyKVStore, key []byte, dest Model) error {
	raw := db.Get(b.DBKey(key))
	if raw == nil {
		return errors.Wrapf(errors.ErrNotFound, "%T not in the store", dest)
	}
	if err := codec.Unmarshal(raw, dest); err != nil {
		return errors.Wrap(err, "cannot decode stored model")
	}
	return nil
}

// Has returns whether an entity with given primary key exists.
func (b ModelBucket) Has(db custodian.ReadOnlyKVStore, key []byte) bool {
	return db.Has(b.DBKey(key))
}

// Put saves given model in the database. The model is validated before
// any write happens.
func (b ModelBucket) Put(db custodian.KVStore, key []byte, m Model) error {
	if err := m.Validate(); err != nil {
		return errors.Wrap(err, "invalid model")
	}
	raw, err := codec.Marshal(m)
	if err != nil {
		return errors.Wrap(err, "cannot serialize model")
	}
	db.Set(b.DBKey(key), raw)
	return nil
}

// Delete removes an entity with given primary key from the database.
// It returns ErrNotFound if an entity with given key does not exist.
func (b ModelBucket) Delete(db custodian.KVStore, key []byte) error {
	dbkey := b.DBKey(key)
	if !db.Has(dbkey) {
		return errors.ErrNotFound
	}
	db.Delete(dbkey)
	return nil
}

// All returns all key/value pairs stored under the bucket prefix, in
// ascending key order. Returned keys are stripped of the bucket prefix.
func (b ModelBucket) All(db custodian.ReadOnlyKVStore) []custodian.Model {
	var out []custodian.Model

	it := db.Iterator(b.prefix, prefixEnd(b.prefix))
	defer it.Close()
	for ; it.Valid(); it.Next() {
		key := it.Key()[len(b.prefix):]
		out = append(out, custodian.Model{Key: key, Value: it.Value()})
	}
	return out
}

// prefixEnd returns the first key that is no longer covered by given
// prefix, to be used as the exclusive end of an iterator range.
func prefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	// The whole prefix is 0xff bytes, iterate until the end of the store.
	return nil
}
