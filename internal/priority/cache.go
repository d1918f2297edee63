// Package priority implements the PriorityCache: the in-memory working set
// of escrow references awaiting a decision, ordered by (kind, seen_count,
// first_seen_at).
package priority

import (
	"sort"
	"sync"
	"time"

	"github.com/rawbytedev/trustmesh/internal/domain"
)

// Cache is the thread-safe set of EscrowRef indexed by escrow id, grounded
// on the registry-map-plus-mutex shape used for live transaction state
// elsewhere in this codebase.
type Cache struct {
	mu      sync.Mutex
	entries map[uint64]*domain.EscrowRef
}

// New returns an empty PriorityCache.
func New() *Cache {
	return &Cache{entries: make(map[uint64]*domain.EscrowRef)}
}

// Add inserts a new entry for id if absent. If id is already present, this
// is a no-op: the kind on record is never upgraded (§9 open question,
// resolved as "no", pinned by TestAddDoesNotUpgradeKind).
func (c *Cache) Add(id uint64, kind domain.EscrowKind) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[id]; ok {
		return
	}
	now := time.Now()
	c.entries[id] = &domain.EscrowRef{
		EscrowID:    id,
		Kind:        kind,
		FirstSeenAt: now,
		LastSeenAt:  now,
		SeenCount:   0,
	}
}

// PopBatch takes a snapshot of unlocked entries sorted by sort key, returns
// up to n of them, each marked locked with seen_count incremented by
// exactly one. Entries remain in the cache; the caller must call Release
// after successfully processing them.
func (c *Cache) PopBatch(n int) []domain.EscrowRef {
	c.mu.Lock()
	defer c.mu.Unlock()

	candidates := make([]*domain.EscrowRef, 0, len(c.entries))
	for _, ref := range c.entries {
		if !ref.Locked {
			candidates = append(candidates, ref)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Less(candidates[j])
	})

	if n > len(candidates) {
		n = len(candidates)
	}
	batch := make([]domain.EscrowRef, n)
	now := time.Now()
	for i := 0; i < n; i++ {
		ref := candidates[i]
		ref.Locked = true
		ref.SeenCount++
		ref.LastSeenAt = now
		batch[i] = *ref
	}
	return batch
}

// Release removes id from the cache, called after the entry has been
// successfully processed.
func (c *Cache) Release(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

// Unlock clears the locked flag without removing the entry, called after a
// failed batch so a later pop can retry it (its now-higher seen_count
// naturally demotes it).
func (c *Cache) Unlock(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ref, ok := c.entries[id]; ok {
		ref.Locked = false
	}
}

// Size returns the current entry count.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Contains reports whether id currently has an entry in the cache.
func (c *Cache) Contains(id uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[id]
	return ok
}
