package kvstore

import (
	"fmt"

	"github.com/rawbytedev/trustmesh/internal/config"
	"github.com/rawbytedev/trustmesh/internal/kvstore/fsstore"
	"github.com/rawbytedev/trustmesh/internal/kvstore/pgstore"
)

// NewFromConfig builds the Store's Backend according to cfg.KVStore.Backend,
// selected at construction time with no import-time side effects, per the
// pluggable-backend design note.
func NewFromConfig(cfg *config.KVStoreConfig) (*Store, error) {
	var backend Backend
	var err error

	switch cfg.Backend {
	case "postgres", "postgrestest":
		backend, err = pgstore.Open(cfg.DatabaseURL)
	case "lmdb", "":
		backend, err = fsstore.Open(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown kvstore backend: %s", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	return New(backend, cfg.CacheSize), nil
}
