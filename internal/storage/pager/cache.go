package pager

import "sync"

type cacheKey struct {
	id     PageID
	offset PageOffset
}

// PageCache is a bounded LRU of page payloads keyed by (page identity,
// offset), directly grounded on the teacher's PageBufferPool head/tail
// frame list (C4). Values returned and stored are always private copies,
// so a caller mutating its own buffer never corrupts the cached bytes, and
// a cache hit never hands back a slice another writer is still filling in.
type PageCache struct {
	mu  sync.Mutex
	lru *lruCache[cacheKey, []byte]
}

// NewPageCache constructs a page cache bounded to MaxPageCache frames.
func NewPageCache() *PageCache {
	return &PageCache{lru: newLRUCache[cacheKey, []byte](MaxPageCache, nil)}
}

// Get returns a copy of the cached bytes for (id, offset), if present.
func (c *PageCache) Get(id PageID, offset PageOffset) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	buf, ok := c.lru.get(cacheKey{id, offset})
	if !ok {
		return nil, false
	}
	out := make([]byte, len(buf))
	copy(out, buf)
	return out, true
}

// Put stores a copy of buf as the cached content for (id, offset).
func (c *PageCache) Put(id PageID, offset PageOffset, buf []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]byte, len(buf))
	copy(cp, buf)
	c.lru.put(cacheKey{id, offset}, cp)
}

// Invalidate drops any cached content for (id, offset).
func (c *PageCache) Invalidate(id PageID, offset PageOffset) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.remove(cacheKey{id, offset})
}
