package godb

import "sync"

// LockTable is the process-wide façade over per-page locks: a lazily
// populated PageID -> *PageLock map, plus the single WaitGraph shared by
// every PageLock it hands out. Map mutation is guarded by its own mutex,
// held only long enough to look up or create a PageLock; all further
// synchronization happens inside that PageLock's own mutex, per the mutex
// hierarchy in §5 (LockTable map mutex -> PageLock mutex -> WaitGraphNode
// mutex, never two PageLock mutexes at once).
type LockTable struct {
	mu    sync.Mutex
	locks map[PageID]*PageLock
	wg    *WaitGraph
}

// NewLockTable returns an empty LockTable with a fresh WaitGraph.
func NewLockTable() *LockTable {
	return &LockTable{
		locks: make(map[PageID]*PageLock),
		wg:    NewWaitGraph(),
	}
}

func (lt *LockTable) lockFor(pid PageID) *PageLock {
	lt.mu.Lock()
	l, ok := lt.locks[pid]
	if !ok {
		l = newPageLock(lt.wg)
		lt.locks[pid] = l
	}
	lt.mu.Unlock()
	return l
}

// AcquireShared acquires a shared lock on pid on behalf of tid, blocking per
// §4.3. Propagates TransactionAbortedError on deadlock.
func (lt *LockTable) AcquireShared(tid TransactionID, pid PageID) error {
	return lt.lockFor(pid).AcquireShared(tid)
}

// AcquireExclusive acquires an exclusive lock on pid on behalf of tid,
// blocking per §4.3. Propagates TransactionAbortedError on deadlock.
func (lt *LockTable) AcquireExclusive(tid TransactionID, pid PageID) error {
	return lt.lockFor(pid).AcquireExclusive(tid)
}

// ReleaseShared releases tid's shared lock on pid.
func (lt *LockTable) ReleaseShared(tid TransactionID, pid PageID) error {
	return lt.lockFor(pid).ReleaseShared(tid)
}

// ReleaseExclusive releases tid's exclusive lock on pid.
func (lt *LockTable) ReleaseExclusive(tid TransactionID, pid PageID) error {
	return lt.lockFor(pid).ReleaseExclusive(tid)
}

// IsLocked reports whether tid holds a lock, in either mode, on pid.
func (lt *LockTable) IsLocked(tid TransactionID, pid PageID) bool {
	lt.mu.Lock()
	l, ok := lt.locks[pid]
	lt.mu.Unlock()
	if !ok {
		return false
	}
	return l.IsHeldBy(tid)
}

// ReleaseAll releases every lock tid holds, across every page this table
// has ever handed out a PageLock for. The map mutex is held only while the
// lock collection is snapshotted; TryRelease is then called on each
// snapshotted lock outside of it, rather than holding the map mutex across
// per-page work. This shortens the critical section without changing
// observable behavior, since TryRelease operates only on PageLocks already
// present in the snapshot.
func (lt *LockTable) ReleaseAll(tid TransactionID) {
	lt.mu.Lock()
	snapshot := make([]*PageLock, 0, len(lt.locks))
	for _, l := range lt.locks {
		snapshot = append(snapshot, l)
	}
	lt.mu.Unlock()

	for _, l := range snapshot {
		l.TryRelease(tid)
	}
}
