// Package storage implements the opaque transactional KV the core
// treats every per-space database through (§3 "Databases per space",
// §6 "Storage engine"): authored, dht, cache, peer_meta and the
// singleton conductor database. The teacher's BoltStore (one bucket
// per entity, JSON-marshaled CRUD over a single warren.db) is
// generalized here from a fixed entity set into an arbitrary
// named-bucket KV opened once per database kind, since the core's
// callers (cascade, sys/app validation, gossip) each need their own
// bucket layout per space rather than one shared schema.
package storage

import (
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

// Kind names which per-space database a DB instance backs, used for
// file naming and logging (§3: authored/dht/cache/peer_meta, plus the
// singleton conductor database).
type Kind string

const (
	KindAuthored  Kind = "authored"
	KindDht       Kind = "dht"
	KindCache     Kind = "cache"
	KindPeerMeta  Kind = "peer_meta"
	KindConductor Kind = "conductor"
)

// Txn is the read/write handle passed into ReadAsync/WriteAsync
// callbacks. It wraps one bbolt transaction; Bucket lazily creates
// buckets on write transactions and errors on read transactions if
// absent, matching bbolt's own rule that only writers create buckets.
type Txn struct {
	tx *bolt.Tx
}

// Bucket returns the named bucket, creating it if the transaction is
// writable and the bucket does not yet exist.
func (t *Txn) Bucket(name string) (*bolt.Bucket, error) {
	if t.tx.Writable() {
		return t.tx.CreateBucketIfNotExists([]byte(name))
	}
	b := t.tx.Bucket([]byte(name))
	if b == nil {
		return nil, fmt.Errorf("storage: bucket %q does not exist", name)
	}
	return b, nil
}

// Put JSON-encodes value and stores it under key in the named bucket.
func (t *Txn) Put(bucket, key string, value any) error {
	b, err := t.Bucket(bucket)
	if err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("storage: marshal: %w", err)
	}
	return b.Put([]byte(key), data)
}

// Get decodes the value stored under key in the named bucket into out.
// Returns false if the key (or bucket) does not exist.
func (t *Txn) Get(bucket, key string, out any) (bool, error) {
	b, err := t.Bucket(bucket)
	if err != nil {
		return false, nil
	}
	data := b.Get([]byte(key))
	if data == nil {
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("storage: unmarshal: %w", err)
	}
	return true, nil
}

// Delete removes key from the named bucket. Idempotent, matching the
// teacher's delete semantics.
func (t *Txn) Delete(bucket, key string) error {
	b, err := t.Bucket(bucket)
	if err != nil {
		return err
	}
	return b.Delete([]byte(key))
}

// ForEach iterates every key/value pair in bucket, invoking fn with
// the raw (undecoded) value so callers can choose their own type per
// row. A missing bucket iterates zero rows rather than erroring.
func (t *Txn) ForEach(bucket string, fn func(key string, raw []byte) error) error {
	b, err := t.Bucket(bucket)
	if err != nil {
		return nil
	}
	return b.ForEach(func(k, v []byte) error {
		return fn(string(k), v)
	})
}
