package godb

// BufferPool caches pages read from disk, up to a fixed capacity, and is
// the sole path through which a transaction touches a page: every GetPage
// acquires the matching PageLock first, so the locking protocol in §4.3 is
// enforced uniformly regardless of which DBFile a page belongs to.
//
// Eviction is NO-STEAL LRU (§4.4.1): the least-recently-used clean page is
// evicted first; if every cached page is dirty, eviction fails with
// CacheFullError rather than writing an uncommitted page to disk.

import (
	"container/list"
	"sync"
)

// BufferPool is a fixed-capacity page cache with LRU eviction under
// NO-STEAL, and the LockTable it acquires page locks through.
type BufferPool struct {
	mu       sync.Mutex
	numPages int
	cache    map[PageID]Page
	lru      *list.List
	elems    map[PageID]*list.Element

	locks *LockTable
}

// NewBufferPool creates a new BufferPool with the specified number of
// pages, backed by a fresh LockTable.
func NewBufferPool(numPages int) (*BufferPool, error) {
	return &BufferPool{
		numPages: numPages,
		cache:    make(map[PageID]Page),
		lru:      list.New(),
		elems:    make(map[PageID]*list.Element),
		locks:    NewLockTable(),
	}, nil
}

// touch moves pid to the tail of the LRU list (most-recently-used),
// inserting it if it is not already present. Must be called with mu held.
func (bp *BufferPool) touch(pid PageID) {
	if e, ok := bp.elems[pid]; ok {
		bp.lru.MoveToBack(e)
		return
	}
	bp.elems[pid] = bp.lru.PushBack(pid)
}

func (bp *BufferPool) forget(pid PageID) {
	if e, ok := bp.elems[pid]; ok {
		bp.lru.Remove(e)
		delete(bp.elems, pid)
	}
	delete(bp.cache, pid)
}

// GetPage fetches pid from file on behalf of tid under the given
// permission, blocking on the corresponding page lock (§4.3) and
// propagating TransactionAbortedError on deadlock. On a cache miss it loads
// the page via file.readPage, evicting an LRU clean page first if the pool
// is full (§4.4.1).
func (bp *BufferPool) GetPage(tid TransactionID, file DBFile, pageNo int, perm RWPerm) (Page, error) {
	pid := file.pageKey(pageNo)

	var err error
	switch perm {
	case ReadPerm:
		err = bp.locks.AcquireShared(tid, pid)
	case WritePerm:
		err = bp.locks.AcquireExclusive(tid, pid)
	default:
		return nil, newGoDBError(BadPermissionError, "unknown permission %v", perm)
	}
	if err != nil {
		return nil, err
	}

	bp.mu.Lock()
	defer bp.mu.Unlock()

	if p, ok := bp.cache[pid]; ok {
		bp.touch(pid)
		return p, nil
	}

	if len(bp.cache) >= bp.numPages {
		if err := bp.evictLocked(); err != nil {
			return nil, err
		}
	}

	p, err := file.readPage(pageNo)
	if err != nil {
		return nil, newGoDBError(IOError, "reading page %d: %v", pageNo, err)
	}
	bp.cache[pid] = p
	bp.touch(pid)
	return p, nil
}

// evictLocked scans the LRU list head (least-recently-used) to tail,
// evicting the first clean page it finds. Must be called with mu held.
func (bp *BufferPool) evictLocked() error {
	for e := bp.lru.Front(); e != nil; e = e.Next() {
		pid := e.Value.(PageID)
		p := bp.cache[pid]
		if p.isDirty() {
			continue
		}
		// The victim is clean by construction, so flushing it back is a
		// no-op in practice, but do it anyway so a file that lazily
		// extends itself on flush stays consistent.
		if err := p.getFile().flushPage(p); err != nil {
			return newGoDBError(IOError, "flushing eviction victim: %v", err)
		}
		bp.lru.Remove(e)
		delete(bp.elems, pid)
		delete(bp.cache, pid)
		return nil
	}
	return newGoDBError(CacheFullError, "buffer pool full of dirty pages")
}

// ReleasePage releases tid's lock on pid without flushing or reverting
// anything. This breaks strict two-phase locking and exists only so tests
// can probe lock state directly; production code should always go through
// TransactionComplete.
func (bp *BufferPool) ReleasePage(tid TransactionID, pid PageID) {
	bp.locks.lockFor(pid).TryRelease(tid)
}

// TransactionComplete ends tid's transaction. On commit, every page dirtied
// by tid is flushed to disk and marked clean. On abort, every page dirtied
// by tid has its before-image restored in place (NO-STEAL: since nothing
// tid wrote ever reached disk, this is sufficient to undo it) and is left
// resident rather than evicted. Either way, every lock tid holds is
// released last, so no other transaction can observe a partially-applied
// commit or abort.
func (bp *BufferPool) TransactionComplete(tid TransactionID, commit bool) error {
	bp.mu.Lock()
	for pid, p := range bp.cache {
		owner, dirty := p.dirtyTid()
		if !dirty || owner != tid {
			continue
		}
		if commit {
			if err := p.getFile().flushPage(p); err != nil {
				bp.mu.Unlock()
				return newGoDBError(IOError, "flushing page %v on commit: %v", pid, err)
			}
			p.setDirty(tid, false)
			p.setBeforeImage()
		} else {
			// The restored snapshot's own before-image is itself; give it a
			// fresh one so a later abort cannot revert to the page it mutated.
			restored := p.beforeImage()
			restored.setBeforeImage()
			bp.cache[pid] = restored
		}
	}
	bp.mu.Unlock()

	bp.locks.ReleaseAll(tid)
	return nil
}

// InsertTuple dispatches to file.insertTuple and marks every page it
// reports as dirtied by tid, per §4.4.
func (bp *BufferPool) InsertTuple(tid TransactionID, file DBFile, t *Tuple) error {
	dirtied, err := file.insertTuple(t, tid)
	if err != nil {
		return err
	}
	bp.markDirty(tid, dirtied)
	return nil
}

// DeleteTuple dispatches to file.deleteTuple and marks every page it
// reports as dirtied by tid, per §4.4.
func (bp *BufferPool) DeleteTuple(tid TransactionID, file DBFile, t *Tuple) error {
	dirtied, err := file.deleteTuple(t, tid)
	if err != nil {
		return err
	}
	bp.markDirty(tid, dirtied)
	return nil
}

func (bp *BufferPool) markDirty(tid TransactionID, pids []PageID) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	for _, pid := range pids {
		if p, ok := bp.cache[pid]; ok {
			p.setDirty(tid, true)
		}
	}
}

// FlushAllPages flushes every dirty cached page to disk regardless of
// owner and clears its dirty flag. Intended for tests and for recovery
// tooling outside the normal commit/abort path; it is not
// transaction/thread safe in the way GetPage/TransactionComplete are.
func (bp *BufferPool) FlushAllPages() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	for _, p := range bp.cache {
		if !p.isDirty() {
			continue
		}
		if err := p.getFile().flushPage(p); err != nil {
			return newGoDBError(IOError, "flushing page: %v", err)
		}
		if tid, ok := p.dirtyTid(); ok {
			p.setDirty(tid, false)
		}
		p.setBeforeImage()
	}
	return nil
}

// Discard evicts pid from the cache without flushing it, regardless of
// dirty state. Maintenance endpoint for tests and recovery tooling.
func (bp *BufferPool) Discard(pid PageID) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	bp.forget(pid)
}
