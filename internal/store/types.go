// Package store provides the ordered byte key/value store backing dirkv.
//
// Two backends are available, selected by configuration: "bolt"
// (go.etcd.io/bbolt, the default) and "sqlite" (modernc.org/sqlite). Both
// satisfy the KV interface: an ordered byte-key store with explicit write
// transactions. Iteration order is byte-lexicographic.
package store

import (
	"errors"
	"fmt"
)

// PutFlag selects put semantics.
type PutFlag int

const (
	// Insert fails with ErrExists when the key is already present.
	Insert PutFlag = iota
	// Replace overwrites an existing key.
	Replace
)

// Sentinel errors returned by KV implementations.
var (
	// ErrNotFound reports a missing key on Get or Delete.
	ErrNotFound = errors.New("store: key not found")
	// ErrExists reports an Insert against an existing key.
	ErrExists = errors.New("store: key already exists")
	// ErrReadOnly reports a write against a read-only store.
	ErrReadOnly = errors.New("store: database is read-only")
	// ErrLocked reports that another process holds the database lock.
	ErrLocked = errors.New("store: database is locked by another process")
	// ErrNoTransaction reports Commit or Cancel without Begin.
	ErrNoTransaction = errors.New("store: no transaction open")
	// ErrInTransaction reports Begin while a transaction is already open.
	ErrInTransaction = errors.New("store: transaction already open")
)

// StopIteration can be returned by an iteration visitor to end iteration
// early without error.
var StopIteration = errors.New("store: stop iteration") //nolint:errname // sentinel, not a failure

// Visitor receives each key/value pair during iteration. The slices are
// only valid for the duration of the call; visitors copy what they keep.
type Visitor func(key, value []byte) error

// KV is the ordered byte key/value store interface.
//
// All writes performed between Begin and Commit are atomic; Cancel discards
// them. Writes outside a transaction commit individually. Implementations
// are not safe for concurrent writers; callers serialise.
type KV interface {
	// Get returns the value for key, or ErrNotFound. The returned slice is
	// owned by the caller.
	Get(key []byte) ([]byte, error)

	// Put stores a value under key. With Insert, an existing key fails with
	// ErrExists.
	Put(key, value []byte, flag PutFlag) error

	// Delete removes a key. Missing keys fail with ErrNotFound.
	Delete(key []byte) error

	// Iterate visits every pair in byte-lexicographic key order. A visitor
	// error stops iteration and is returned, except StopIteration which
	// stops cleanly.
	Iterate(fn Visitor) error

	// UpdateKey moves a record from oldKey to newKey with the given value,
	// failing with ErrExists if newKey is already present.
	UpdateKey(oldKey, newKey, value []byte) error

	// Begin opens a write transaction.
	Begin() error

	// Commit applies the open transaction.
	Commit() error

	// Cancel discards the open transaction.
	Cancel() error

	// InTransaction reports whether a write transaction is open.
	InTransaction() bool

	// ReadOnly reports whether the store was opened read-only.
	ReadOnly() bool

	// Close releases the store and its lock.
	Close() error
}

// Backend names accepted by Open.
const (
	BackendBolt   = "bolt"
	BackendSQLite = "sqlite"
)

// Options configures Open.
type Options struct {
	// Backend selects the storage engine: "bolt" (default) or "sqlite".
	Backend string
	// Path is the database file path.
	Path string
	// ReadOnly opens the store without write access.
	ReadOnly bool
}

// Open opens the configured backend, taking the database lock.
func Open(opts Options) (KV, error) {
	switch opts.Backend {
	case "", BackendBolt:
		return OpenBolt(opts)
	case BackendSQLite:
		return OpenSQLite(opts)
	}
	return nil, fmt.Errorf("store: unknown backend %q", opts.Backend)
}
