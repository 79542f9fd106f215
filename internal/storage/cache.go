package storage

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/neuracity/risk-index-service/internal/risk"
)

// CachedStore wraps a Store with an in-memory LRU cache over block lookups.
// Writes pass through and invalidate the affected entries, so reads after an
// upsert always see the new profile. List and bounds queries bypass the
// cache.
type CachedStore struct {
	Store
	cache   *lruCache
	lookups *prometheus.CounterVec // label: result={hit,miss}; nil disables
}

// NewCachedStore creates a cache decorator around a store. A nil lookups
// counter disables cache metrics.
func NewCachedStore(inner Store, maxEntries int, lookups *prometheus.CounterVec) *CachedStore {
	return &CachedStore{
		Store:   inner,
		cache:   newLRUCache(maxEntries),
		lookups: lookups,
	}
}

func (c *CachedStore) GetBlock(ctx context.Context, blockID string) (risk.BlockRiskProfile, error) {
	if p, ok := c.cache.get(blockID); ok {
		c.countLookup("hit")
		return p, nil
	}
	c.countLookup("miss")
	p, err := c.Store.GetBlock(ctx, blockID)
	if err != nil {
		return p, err
	}
	c.cache.put(blockID, p)
	return p, nil
}

func (c *CachedStore) countLookup(result string) {
	if c.lookups != nil {
		c.lookups.WithLabelValues(result).Inc()
	}
}

func (c *CachedStore) UpsertBlock(ctx context.Context, p risk.BlockRiskProfile) error {
	if err := c.Store.UpsertBlock(ctx, p); err != nil {
		return err
	}
	c.cache.invalidate(p.BlockID)
	return nil
}

func (c *CachedStore) UpsertBlocks(ctx context.Context, profiles []risk.BlockRiskProfile) error {
	if err := c.Store.UpsertBlocks(ctx, profiles); err != nil {
		return err
	}
	for _, p := range profiles {
		c.cache.invalidate(p.BlockID)
	}
	return nil
}

// lruCache is a simple thread-safe LRU cache for block profiles.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value risk.BlockRiskProfile
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (risk.BlockRiskProfile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return risk.BlockRiskProfile{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value risk.BlockRiskProfile) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		delete(c.entries, key)
		c.remove(e)
	}
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
