// Package pgstore is the Postgres-backed KVStore backend, selected via
// DB_BACKEND=postgres|postgrestest. Grounded on the teacher's use of
// database/sql against Supabase's Postgres instance, swapped here for a
// direct github.com/lib/pq connection since the Supabase REST client has
// no home in this system's single-table digest/value schema.
package pgstore

import (
	"context"
	"database/sql"
	"encoding/hex"

	_ "github.com/lib/pq"

	"github.com/rawbytedev/trustmesh/internal/domain"
	"github.com/rawbytedev/trustmesh/internal/kvstore"
)

const schema = `
CREATE TABLE IF NOT EXISTS trustmesh_kv (
	digest TEXT PRIMARY KEY,
	value  BYTEA NOT NULL
)`

// Backend is a single-table Postgres KV store, keyed on the hex-encoded
// digest.
type Backend struct {
	db *sql.DB
}

// Open connects to dsn and ensures the backing table exists.
func Open(dsn string) (*Backend, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, domain.Wrap(domain.KindBackendFailure, "open postgres", err)
	}
	if err := db.Ping(); err != nil {
		return nil, domain.Wrap(domain.KindBackendFailure, "ping postgres", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, domain.Wrap(domain.KindBackendFailure, "ensure schema", err)
	}
	return &Backend{db: db}, nil
}

// Get returns the value stored at digest, or domain.ErrNotFound.
func (b *Backend) Get(ctx context.Context, digest kvstore.Digest) ([]byte, error) {
	var value []byte
	key := hex.EncodeToString(digest[:])
	err := b.db.QueryRowContext(ctx, `SELECT value FROM trustmesh_kv WHERE digest = $1`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, domain.Wrap(domain.KindNotFound, "digest absent", nil)
	}
	if err != nil {
		return nil, domain.Wrap(domain.KindBackendFailure, "select", err)
	}
	return value, nil
}

// Put upserts value at digest.
func (b *Backend) Put(ctx context.Context, digest kvstore.Digest, value []byte) error {
	key := hex.EncodeToString(digest[:])
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO trustmesh_kv (digest, value) VALUES ($1, $2)
		ON CONFLICT (digest) DO UPDATE SET value = EXCLUDED.value`, key, value)
	if err != nil {
		return domain.Wrap(domain.KindBackendFailure, "upsert", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (b *Backend) Close() error {
	return b.db.Close()
}
