package godb

import "sync"

// PageLock is the per-page shared/exclusive lock described in §4.3. All
// state transitions happen with mu held; cond.Wait(&mu) is the only
// suspension point. Every PageLock is registered into a shared WaitGraph so
// that a blocking wait can be checked for deadlock before the caller
// actually sleeps.
type PageLock struct {
	mu   sync.Mutex
	cond *sync.Cond

	shared    map[TransactionID]struct{}
	exclusive *TransactionID

	wg *WaitGraph
}

func newPageLock(wg *WaitGraph) *PageLock {
	l := &PageLock{
		shared: make(map[TransactionID]struct{}),
		wg:     wg,
	}
	l.cond = sync.NewCond(&l.mu)
	return l
}

func (l *PageLock) heldExclusiveBy(t TransactionID) bool {
	return l.exclusive != nil && *l.exclusive == t
}

// AcquireShared grants t a shared (read) lock on the page, blocking while
// some other transaction holds exclusive. Returns TransactionAbortedError
// if waiting would deadlock.
func (l *PageLock) AcquireShared(t TransactionID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.heldExclusiveBy(t) {
		return nil // exclusive subsumes shared
	}
	if _, ok := l.shared[t]; ok {
		return nil // re-entrant shared
	}

	for l.exclusive != nil {
		holder := *l.exclusive
		l.wg.AddWait(t, holder)
		if l.wg.GetNode(t).CheckCycle() {
			l.wg.ReleaseThis(t)
			return newGoDBError(TransactionAbortedError, "transaction %v deadlocked acquiring shared lock", t)
		}
		l.cond.Wait()
	}

	l.wg.ReleaseThis(t)
	l.shared[t] = struct{}{}
	return nil
}

// AcquireExclusive grants t an exclusive (write) lock on the page. If t
// already holds shared, this performs an upgrade in place using the
// claim-then-drain protocol of §4.3: t first claims the exclusive slot
// (blocking out new shared acquirers, preventing writer starvation), then
// waits for any other existing shared holders to release.
func (l *PageLock) AcquireExclusive(t TransactionID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for l.exclusive == nil || *l.exclusive != t {
		for l.exclusive != nil && *l.exclusive != t {
			holder := *l.exclusive
			l.wg.AddWait(t, holder)
			if l.wg.GetNode(t).CheckCycle() {
				l.wg.ReleaseThis(t)
				return newGoDBError(TransactionAbortedError, "transaction %v deadlocked acquiring exclusive lock", t)
			}
			l.cond.Wait()
		}
		if l.exclusive == nil {
			tid := t
			l.exclusive = &tid
		}
	}
	l.wg.ReleaseThis(t)

	delete(l.shared, t) // upgrade: t no longer needs its own shared entry

	for len(l.otherSharedHolders(t)) > 0 {
		others := l.otherSharedHolders(t)
		l.wg.AddWaits(t, others)
		if l.wg.GetNode(t).CheckCycle() {
			l.wg.ReleaseThis(t)
			l.exclusive = nil
			l.cond.Broadcast()
			return newGoDBError(TransactionAbortedError, "transaction %v deadlocked draining shared holders", t)
		}
		l.cond.Wait()
	}
	l.wg.ReleaseThis(t)

	return nil
}

func (l *PageLock) otherSharedHolders(t TransactionID) []TransactionID {
	others := make([]TransactionID, 0, len(l.shared))
	for s := range l.shared {
		if s != t {
			others = append(others, s)
		}
	}
	return others
}

// ReleaseShared releases t's shared lock. Fails with NotHeldError if t does
// not currently hold shared.
func (l *PageLock) ReleaseShared(t TransactionID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.shared[t]; !ok {
		return newGoDBError(NotHeldError, "transaction %v does not hold a shared lock", t)
	}
	delete(l.shared, t)
	l.wg.ReleaseThis(t)
	if len(l.shared) == 0 {
		l.cond.Broadcast()
	}
	return nil
}

// ReleaseExclusive releases t's exclusive lock. Fails with NotHeldError if t
// is not the exclusive holder.
func (l *PageLock) ReleaseExclusive(t TransactionID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.heldExclusiveBy(t) {
		return newGoDBError(NotHeldError, "transaction %v does not hold the exclusive lock", t)
	}
	l.exclusive = nil
	l.wg.ReleaseThis(t)
	l.cond.Broadcast()
	return nil
}

// TryRelease releases whichever lock mode t holds, if any, and is a no-op
// otherwise. Used during transaction cleanup, where the caller does not
// know which mode each of its locks was acquired in.
func (l *PageLock) TryRelease(t TransactionID) {
	l.mu.Lock()
	heldShared := false
	if _, ok := l.shared[t]; ok {
		heldShared = true
	}
	heldExclusive := l.heldExclusiveBy(t)
	l.mu.Unlock()

	if heldShared {
		_ = l.ReleaseShared(t)
		return
	}
	if heldExclusive {
		_ = l.ReleaseExclusive(t)
	}
}

// IsHeldBy reports whether t currently holds the lock in any mode.
func (l *PageLock) IsHeldBy(t TransactionID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.heldExclusiveBy(t) {
		return true
	}
	_, ok := l.shared[t]
	return ok
}
