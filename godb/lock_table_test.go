package godb

import "testing"

func TestLockTableLazyCreationAndIsLocked(t *testing.T) {
	lt := NewLockTable()
	pid := PageID{TableID: 1, PageNumber: 0}
	tid := NewTID()

	if lt.IsLocked(tid, pid) {
		t.Fatalf("expected no lock before any acquire")
	}

	if err := lt.AcquireShared(tid, pid); err != nil {
		t.Fatalf("acquire shared: %v", err)
	}
	if !lt.IsLocked(tid, pid) {
		t.Fatalf("expected lock to be held after acquire")
	}

	if err := lt.ReleaseShared(tid, pid); err != nil {
		t.Fatalf("release shared: %v", err)
	}
	if lt.IsLocked(tid, pid) {
		t.Fatalf("expected no lock after release")
	}
}

func TestLockTableReleaseAll(t *testing.T) {
	lt := NewLockTable()
	tid := NewTID()
	pids := []PageID{
		{TableID: 1, PageNumber: 0},
		{TableID: 1, PageNumber: 1},
		{TableID: 2, PageNumber: 0},
	}

	for _, pid := range pids {
		if err := lt.AcquireExclusive(tid, pid); err != nil {
			t.Fatalf("acquire exclusive on %v: %v", pid, err)
		}
	}

	lt.ReleaseAll(tid)

	for _, pid := range pids {
		if lt.IsLocked(tid, pid) {
			t.Fatalf("expected %v to be unlocked after ReleaseAll", pid)
		}
	}
}

func TestLockTableDifferentPagesDoNotContend(t *testing.T) {
	lt := NewLockTable()
	t1, t2 := NewTID(), NewTID()
	p1 := PageID{TableID: 1, PageNumber: 0}
	p2 := PageID{TableID: 1, PageNumber: 1}

	if err := lt.AcquireExclusive(t1, p1); err != nil {
		t.Fatalf("t1 acquire p1: %v", err)
	}
	if err := lt.AcquireExclusive(t2, p2); err != nil {
		t.Fatalf("t2 acquire p2 (should not block on p1's lock): %v", err)
	}
}
