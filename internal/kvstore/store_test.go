package kvstore_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rawbytedev/trustmesh/internal/domain"
	"github.com/rawbytedev/trustmesh/internal/kvstore"
	"github.com/rawbytedev/trustmesh/internal/kvstore/fsstore"
)

func newTestStore(t *testing.T, capacity int) *kvstore.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trustmesh.db")
	backend, err := fsstore.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	return kvstore.New(backend, capacity)
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 30)

	require.NoError(t, store.Put(ctx, "k", "v"))
	v, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}

func TestEmptyKeyAndValueRejected(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 30)

	err := store.Put(ctx, "", "x")
	assertKind(t, err, domain.KindInvalidArgument)

	err = store.Put(ctx, "x", "")
	assertKind(t, err, domain.KindInvalidArgument)

	_, err = store.Get(ctx, "")
	assertKind(t, err, domain.KindInvalidArgument)

	_, err = store.Get(ctx, "missing")
	assertKind(t, err, domain.KindNotFound)
}

func TestLRUEviction(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 2)

	require.NoError(t, store.Put(ctx, "a", "1"))
	require.NoError(t, store.Put(ctx, "b", "2"))
	require.NoError(t, store.Put(ctx, "c", "3"))

	assert.False(t, store.CacheContains("a"))
	assert.True(t, store.CacheContains("b"))
	assert.True(t, store.CacheContains("c"))

	// "a" is still retrievable from the backing store, repopulating the cache.
	v, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "1", v)
}

func assertKind(t *testing.T, err error, kind domain.ErrorKind) {
	t.Helper()
	require.Error(t, err)
	de, ok := err.(*domain.Error)
	require.True(t, ok, "expected *domain.Error, got %T", err)
	assert.Equal(t, kind, de.Kind)
}
