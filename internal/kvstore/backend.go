// Package kvstore implements the content-addressed persistent key/value
// store fronted by a bounded in-memory LRU.
package kvstore

import "context"

// Digest is a SHA-256 digest of a logical key, the unit backends operate on.
type Digest [32]byte

// Backend is the storage contract both the embedded store and the SQL
// store satisfy. Get returns domain.ErrNotFound (via the concrete
// implementation) when the digest is absent.
type Backend interface {
	Get(ctx context.Context, digest Digest) ([]byte, error)
	Put(ctx context.Context, digest Digest, value []byte) error
	Close() error
}
