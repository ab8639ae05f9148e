// Package pmap holds the persistent key-value map behind /api/pmap.
//
// Keys keep the order of their last put, so the oldest entry is always the
// first one to go when a size limit is enforced.
package pmap

import "errors"

var (
	// ErrClosed is returned by mutating calls after Close
	ErrClosed = errors.New("pmap: store is closed")

	// ErrInvalidLimit is returned by PutWithLimit when the limit is not positive
	ErrInvalidLimit = errors.New("pmap: max entries must be > 0")
)

// Store is a persistent map of item keys to raw values
type Store interface {
	Get(key string) (string, bool)
	Snapshot() map[string]string
	Len() int

	// Put stores the value and moves the key to the newest position
	Put(key, value string) error

	// PutWithLimit stores the value and evicts the oldest keys until at most
	// maxEntries remain. The evicted keys are returned oldest first.
	PutWithLimit(key, value string, maxEntries int) ([]string, error)

	// Remove deletes the key and reports whether it was present
	Remove(key string) (bool, error)

	// Compact rewrites the backing storage to hold only live entries
	Compact() error

	Close() error
}
