package godb

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPageLockSharedSharedNonBlocking(t *testing.T) {
	l := newPageLock(NewWaitGraph())
	t1, t2 := NewTID(), NewTID()

	if err := l.AcquireShared(t1); err != nil {
		t.Fatalf("t1 acquire shared: %v", err)
	}
	if err := l.AcquireShared(t2); err != nil {
		t.Fatalf("t2 acquire shared: %v", err)
	}

	if err := l.ReleaseShared(t1); err != nil {
		t.Fatalf("t1 release shared: %v", err)
	}
	if err := l.ReleaseShared(t2); err != nil {
		t.Fatalf("t2 release shared: %v", err)
	}
	if err := l.ReleaseShared(t1); !isNotHeld(err) {
		t.Fatalf("expected NotHeldError releasing an already-released shared lock, got %v", err)
	}
}

func isNotHeld(err error) bool {
	gerr, ok := err.(GoDBError)
	return ok && gerr.Code() == NotHeldError
}

func TestPageLockWriterWaitsForReader(t *testing.T) {
	l := newPageLock(NewWaitGraph())
	t1, t2 := NewTID(), NewTID()

	if err := l.AcquireShared(t1); err != nil {
		t.Fatalf("t1 acquire shared: %v", err)
	}

	var unblocked int32
	done := make(chan error, 1)
	go func() {
		err := l.AcquireExclusive(t2)
		atomic.StoreInt32(&unblocked, 1)
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	if atomic.LoadInt32(&unblocked) != 0 {
		t.Fatalf("writer should still be blocked on the reader")
	}

	if err := l.ReleaseShared(t1); err != nil {
		t.Fatalf("t1 release shared: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("t2 acquire exclusive: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("writer never unblocked after reader released")
	}
}

func TestPageLockUpgrade(t *testing.T) {
	l := newPageLock(NewWaitGraph())
	t1 := NewTID()

	if err := l.AcquireShared(t1); err != nil {
		t.Fatalf("acquire shared: %v", err)
	}
	if err := l.AcquireShared(t1); err != nil {
		t.Fatalf("re-entrant acquire shared: %v", err)
	}
	if err := l.AcquireExclusive(t1); err != nil {
		t.Fatalf("upgrade to exclusive: %v", err)
	}

	if err := l.ReleaseShared(t1); !isNotHeld(err) {
		t.Fatalf("expected NotHeldError releasing shared after upgrade, got %v", err)
	}
	if err := l.ReleaseExclusive(t1); err != nil {
		t.Fatalf("release exclusive: %v", err)
	}
	if err := l.ReleaseExclusive(t1); !isNotHeld(err) {
		t.Fatalf("expected NotHeldError on second exclusive release, got %v", err)
	}
}

func TestPageLockWriterBlocksNewReaders(t *testing.T) {
	l := newPageLock(NewWaitGraph())
	t1, t2, t3 := NewTID(), NewTID(), NewTID()

	if err := l.AcquireShared(t1); err != nil {
		t.Fatalf("t1 acquire shared: %v", err)
	}

	t2Done := make(chan error, 1)
	go func() { t2Done <- l.AcquireExclusive(t2) }()
	time.Sleep(30 * time.Millisecond)

	t3Done := make(chan error, 1)
	go func() { t3Done <- l.AcquireShared(t3) }()
	time.Sleep(30 * time.Millisecond)

	select {
	case <-t3Done:
		t.Fatalf("t3 must not acquire shared while t2's exclusive claim is pending (writer starvation)")
	default:
	}

	if err := l.ReleaseShared(t1); err != nil {
		t.Fatalf("t1 release shared: %v", err)
	}
	if err := <-t2Done; err != nil {
		t.Fatalf("t2 acquire exclusive: %v", err)
	}
	if err := l.ReleaseExclusive(t2); err != nil {
		t.Fatalf("t2 release exclusive: %v", err)
	}
	if err := <-t3Done; err != nil {
		t.Fatalf("t3 acquire shared: %v", err)
	}
}

func TestPageLockManyReadersOneWriter(t *testing.T) {
	l := newPageLock(NewWaitGraph())
	const n = 1001

	readers := make([]TransactionID, n)
	for i := range readers {
		readers[i] = NewTID()
		if err := l.AcquireShared(readers[i]); err != nil {
			t.Fatalf("reader %d acquire shared: %v", i, err)
		}
	}

	writer := NewTID()
	writerDone := make(chan error, 1)

	var released int32
	var releasedAtAcquire int32
	go func() {
		err := l.AcquireExclusive(writer)
		atomic.StoreInt32(&releasedAtAcquire, atomic.LoadInt32(&released))
		writerDone <- err
	}()

	var wg sync.WaitGroup
	for _, r := range readers {
		wg.Add(1)
		go func(r TransactionID) {
			defer wg.Done()
			time.Sleep(time.Millisecond)
			// Count before releasing, so every release the writer waited on
			// is already counted when it acquires.
			atomic.AddInt32(&released, 1)
			if err := l.ReleaseShared(r); err != nil {
				t.Errorf("release shared: %v", err)
			}
		}(r)
	}
	wg.Wait()

	if err := <-writerDone; err != nil {
		t.Fatalf("writer acquire exclusive: %v", err)
	}
	if got := atomic.LoadInt32(&releasedAtAcquire); got != n {
		t.Fatalf("expected all %d readers released before writer acquired, got %d", n, got)
	}
}

func TestPageLockDeadlockAbort(t *testing.T) {
	wg := NewWaitGraph()
	pageA := newPageLock(wg)
	pageB := newPageLock(wg)
	t1, t2 := NewTID(), NewTID()

	if err := pageA.AcquireExclusive(t1); err != nil {
		t.Fatalf("t1 acquire A: %v", err)
	}
	if err := pageB.AcquireExclusive(t2); err != nil {
		t.Fatalf("t2 acquire B: %v", err)
	}

	t1Err := make(chan error, 1)
	go func() { t1Err <- pageB.AcquireExclusive(t1) }()
	time.Sleep(30 * time.Millisecond)

	t2Err := pageA.AcquireExclusive(t2)

	if t2Err != nil && IsTransactionAborted(t2Err) {
		// t2 aborted; once its lock on B is released, as its rollback
		// would do, t1 must proceed.
		if err := pageB.ReleaseExclusive(t2); err != nil {
			t.Fatalf("t2 release B after abort: %v", err)
		}
		select {
		case err := <-t1Err:
			if err != nil {
				t.Fatalf("t1 should proceed after t2 aborted and released B, got %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("t1 never proceeded after t2 aborted and released B")
		}
		return
	}

	select {
	case err := <-t1Err:
		if err == nil || !IsTransactionAborted(err) {
			t.Fatalf("expected one side to observe TransactionAbortedError, t1 got %v, t2 got %v", err, t2Err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("deadlock was never broken: t1 still blocked, t2 got %v", t2Err)
	}
}
