package kvstore

import (
	"container/list"
	"context"
	"crypto/sha256"
	"sync"

	"github.com/rawbytedev/trustmesh/internal/domain"
)

// DefaultCacheSize is the LRU capacity used when none is configured.
const DefaultCacheSize = 30

type entry struct {
	key   string
	value string
}

// Store is the read-through, write-through KVStore: a bounded LRU in front
// of a pluggable Backend. Eviction is strictly on insertion, same as the
// pack's in-memory cache implementations, with no TTL — only capacity
// triggers eviction.
type Store struct {
	mu       sync.Mutex
	data     map[string]*list.Element
	order    *list.List
	capacity int
	backend  Backend
}

// New wraps backend with an LRU of the given capacity (DefaultCacheSize if
// capacity <= 0).
func New(backend Backend, capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	return &Store{
		data:     make(map[string]*list.Element),
		order:    list.New(),
		capacity: capacity,
		backend:  backend,
	}
}

func digestOf(key string) Digest {
	return sha256.Sum256([]byte(key))
}

// Put rejects an empty key or value, writes through to the backend, and
// inserts into the LRU, evicting the oldest entry if at capacity.
func (s *Store) Put(ctx context.Context, key, value string) error {
	if key == "" {
		return domain.Wrap(domain.KindInvalidArgument, "empty key", nil)
	}
	if value == "" {
		return domain.Wrap(domain.KindInvalidArgument, "empty value", nil)
	}

	if err := s.backend.Put(ctx, digestOf(key), []byte(value)); err != nil {
		return domain.Wrap(domain.KindBackendFailure, "put failed", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.data[key]; ok {
		el.Value.(*entry).value = value
		s.order.MoveToFront(el)
		return nil
	}
	if s.order.Len() >= s.capacity {
		s.evictOldest()
	}
	el := s.order.PushFront(&entry{key: key, value: value})
	s.data[key] = el
	return nil
}

// Get rejects an empty key, returns the cached value if present, otherwise
// reads through to the backend and populates the cache on a hit.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", domain.Wrap(domain.KindInvalidArgument, "empty key", nil)
	}

	s.mu.Lock()
	if el, ok := s.data[key]; ok {
		s.order.MoveToFront(el)
		v := el.Value.(*entry).value
		s.mu.Unlock()
		return v, nil
	}
	s.mu.Unlock()

	raw, err := s.backend.Get(ctx, digestOf(key))
	if err != nil {
		if de, ok := err.(*domain.Error); ok {
			return "", de
		}
		return "", domain.Wrap(domain.KindBackendFailure, "get failed", err)
	}
	if raw == nil {
		return "", domain.Wrap(domain.KindNotFound, key, nil)
	}
	value := string(raw)

	s.mu.Lock()
	if s.order.Len() >= s.capacity {
		s.evictOldest()
	}
	el := s.order.PushFront(&entry{key: key, value: value})
	s.data[key] = el
	s.mu.Unlock()

	return value, nil
}

// Close releases the backing store's handles.
func (s *Store) Close() error {
	return s.backend.Close()
}

// CacheLen reports the number of keys currently held in the in-memory LRU,
// for tests asserting the capacity bound.
func (s *Store) CacheLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

// CacheContains reports whether key is currently resident in the in-memory
// LRU (without touching the backend), for eviction tests.
func (s *Store) CacheContains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[key]
	return ok
}

func (s *Store) evictOldest() {
	oldest := s.order.Back()
	if oldest == nil {
		return
	}
	s.order.Remove(oldest)
	delete(s.data, oldest.Value.(*entry).key)
}
