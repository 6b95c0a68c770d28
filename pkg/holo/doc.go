// Package holo defines the content-addressed data model shared by every
// node in a space: hashes, actions, entries, records, DHT ops and
// warrants. Nothing in this package talks to storage or the network; it
// is pure data plus the deterministic functions (hashing, op
// projection) that must agree bit-for-bit across nodes.
package holo
