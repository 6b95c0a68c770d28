// Package storage implements the per-space transactional KV the rest
// of the core treats as an opaque engine (§6 "Storage engine"):
// bbolt-backed databases opened per space per Kind (authored, dht,
// cache, peer_meta) plus a singleton conductor database, each with its
// own serialized-writer goroutine so a slow write on one space never
// blocks a concurrent reader's snapshot on another.
//
// ReadAsync and WriteAsync are free functions rather than interface
// methods because Go does not allow generic methods; both take a *DB
// and a callback operating on a Txn, which exposes JSON Put/Get/Delete
// and bucket-scoped ForEach over bbolt's native bucket API.
//
// Cache is a bounded, TTL-expiring in-memory layer for cached records;
// pkg/cascade does not use it.
package storage
