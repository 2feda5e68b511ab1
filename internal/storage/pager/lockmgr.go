package pager

import "sync"

// lockManagerCapacity bounds how many per-page locks the manager keeps
// warm at once (§4.3: "a bounded associative cache (capacity ~1000)").
const lockManagerCapacity = 1000

type lockKey struct {
	id     PageID
	offset PageOffset
}

// LockManager hands out per-(page-identity, offset) reader/writer guards
// from a bounded, evictable keyed cache (C3). An evicted, currently-unheld
// lock simply ceases to exist; a later acquirer builds a fresh
// sync.RWMutex, which is safe because no writer can be in flight without
// holding a pinned guard.
type LockManager struct {
	mu    sync.Mutex
	locks *lruCache[lockKey, *sync.RWMutex]
}

// NewLockManager constructs a lock manager with the standard bounded
// capacity.
func NewLockManager() *LockManager {
	return &LockManager{locks: newLRUCache[lockKey, *sync.RWMutex](lockManagerCapacity, nil)}
}

// Guard represents a held page lock; callers must call Release exactly
// once.
type Guard struct {
	mgr   *LockManager
	key   lockKey
	rw    *sync.RWMutex
	write bool
}

func (m *LockManager) entry(key lockKey) *sync.RWMutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	rw, ok := m.locks.get(key)
	if !ok {
		rw = &sync.RWMutex{}
		m.locks.put(key, rw)
	}
	m.locks.pin(key)
	return rw
}

// Read acquires a reader guard on (id, offset).
func (m *LockManager) Read(id PageID, offset PageOffset) *Guard {
	key := lockKey{id, offset}
	rw := m.entry(key)
	rw.RLock()
	return &Guard{mgr: m, key: key, rw: rw, write: false}
}

// Write acquires a writer guard on (id, offset).
func (m *LockManager) Write(id PageID, offset PageOffset) *Guard {
	key := lockKey{id, offset}
	rw := m.entry(key)
	rw.Lock()
	return &Guard{mgr: m, key: key, rw: rw, write: true}
}

// Release drops the guard's hold on its page lock.
func (g *Guard) Release() {
	if g.write {
		g.rw.Unlock()
	} else {
		g.rw.RUnlock()
	}
	g.mgr.mu.Lock()
	g.mgr.locks.unpin(g.key)
	g.mgr.mu.Unlock()
}
