// Package objectstore abstracts the remote key-value blob store that backs
// the cache. The cache core only ever sees this interface; S3 is the
// default implementation and an in-process map serves tests and demos.
package objectstore

import (
	"context"
	"errors"
)

// ErrNotFound reports that a key has no object behind it. A read miss is
// normal operation, not a store failure.
var ErrNotFound = errors.New("objectstore: key not found")

// ErrStoreUnavailable reports a transport, auth, or permission failure.
// Errors wrapping it must surface to the caller; masking a store outage as
// a cache miss would silently drop the durability guarantee.
var ErrStoreUnavailable = errors.New("objectstore: store unavailable")

/*
Store is the contract between the cache and the backing blob store.

Implementations must be safe for concurrent use and byte-for-byte
transparent: Get returns exactly the bytes previously passed to Put for
the same key. All methods may block on network I/O; these calls are the
only places the cache suspends, so timeouts belong to the implementation's
transport, never to the cache core.
*/
type Store interface {

	// Get returns the object stored under key, or an error wrapping
	// ErrNotFound when there is none.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores value under key, replacing any previous object.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes the object under key. Deleting a missing key is not
	// an error; the operation is idempotent.
	Delete(ctx context.Context, key string) error

	// ListKeys returns every key starting with prefix, in stable order.
	ListKeys(ctx context.Context, prefix string) ([]string, error)
}
