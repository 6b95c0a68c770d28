package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/holochain/holochain-core/pkg/config"
	"github.com/holochain/holochain-core/pkg/herr"
	bolt "go.etcd.io/bbolt"
)

// DB is one opened bbolt file, generalizing the teacher's single
// warren.db BoltStore into one file per (space, Kind) plus the
// singleton conductor database. Writes serialize through a dedicated
// goroutine per DB so a slow write never blocks a concurrent reader's
// snapshot transaction on a different DB.
type DB struct {
	kind   Kind
	path   string
	bolt   *bolt.DB
	writes chan func()
	done   chan struct{}
}

// Open opens (creating if absent) the database file for kind under
// dataRootPath, honoring the configured sync level (§6: "open(kind,
// key, max_readers, sync_level)").
func Open(dataRootPath string, kind Kind, filename string, level config.SyncLevel, maxReaders int) (*DB, error) {
	if err := os.MkdirAll(dataRootPath, 0o700); err != nil {
		return nil, herr.Storage("storage.Open", err)
	}
	path := filepath.Join(dataRootPath, filename)

	opts := &bolt.Options{}
	switch level {
	case config.SyncOff:
		opts.NoSync = true
	case config.SyncNormal, config.SyncFull:
		opts.NoSync = false
	}
	_ = maxReaders // bbolt readers are bounded by OS mmap limits, not a tunable pool

	b, err := bolt.Open(path, 0o600, opts)
	if err != nil {
		return nil, herr.Storage("storage.Open", err)
	}

	db := &DB{
		kind:   kind,
		path:   path,
		bolt:   b,
		writes: make(chan func(), 64),
		done:   make(chan struct{}),
	}
	go db.writer()
	return db, nil
}

func (db *DB) Kind() Kind   { return db.kind }
func (db *DB) Path() string { return db.path }

// writer serializes writes through a single goroutine per database, so
// bucket creation races never occur and callers never need their own
// locking around WriteAsync.
func (db *DB) writer() {
	for {
		select {
		case fn := <-db.writes:
			fn()
		case <-db.done:
			return
		}
	}
}

type result[R any] struct {
	val R
	err error
}

// ReadAsync runs fn against a read-only snapshot transaction. Readers
// never block writers or each other, matching bbolt's MVCC semantics;
// ctx cancellation returns before the transaction result is observed,
// but does not abort the in-flight bbolt call.
func ReadAsync[R any](ctx context.Context, db *DB, fn func(*Txn) (R, error)) (R, error) {
	var zero R
	out := make(chan result[R], 1)

	go func() {
		var res R
		err := db.bolt.View(func(tx *bolt.Tx) error {
			var innerErr error
			res, innerErr = fn(&Txn{tx: tx})
			return innerErr
		})
		out <- result[R]{res, err}
	}()

	select {
	case r := <-out:
		if r.err != nil {
			return zero, herr.Storage("storage.ReadAsync", r.err)
		}
		return r.val, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// WriteAsync queues fn to run against this DB's single writable
// transaction, on its dedicated writer goroutine, and blocks for the
// commit result.
func WriteAsync[R any](ctx context.Context, db *DB, fn func(*Txn) (R, error)) (R, error) {
	var zero R
	out := make(chan result[R], 1)

	submit := func() {
		var res R
		err := db.bolt.Update(func(tx *bolt.Tx) error {
			var innerErr error
			res, innerErr = fn(&Txn{tx: tx})
			return innerErr
		})
		out <- result[R]{res, err}
	}

	select {
	case db.writes <- submit:
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-db.done:
		return zero, fmt.Errorf("storage: db %s closed", db.kind)
	}

	select {
	case r := <-out:
		if r.err != nil {
			return zero, herr.Storage("storage.WriteAsync", r.err)
		}
		return r.val, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Close stops the writer goroutine and closes the underlying file.
func (db *DB) Close() error {
	close(db.done)
	return db.bolt.Close()
}
