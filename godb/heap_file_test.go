package godb

import (
	"os"
	"testing"
)

func makeHeapFileTestVars(t *testing.T) (*TupleDesc, *HeapFile, *BufferPool, TransactionID) {
	t.Helper()
	backing := t.TempDir() + "/heaptest.dat"
	os.Remove(backing)

	td := &TupleDesc{Fields: []FieldType{
		{Fname: "name", Ftype: StringType},
		{Fname: "age", Ftype: IntType},
	}}

	bp, err := NewBufferPool(25)
	if err != nil {
		t.Fatalf("NewBufferPool: %v", err)
	}

	hf, err := NewHeapFile(0, backing, td, bp)
	if err != nil {
		t.Fatalf("NewHeapFile: %v", err)
	}

	return td, hf, bp, NewTID()
}

func TestHeapFileInsertAndIterate(t *testing.T) {
	td, hf, bp, tid := makeHeapFileTestVars(t)

	names := []string{"josie", "annie", "sam"}
	for i, name := range names {
		tup := &Tuple{Desc: *td, Fields: []DBValue{
			StringField{Value: name},
			IntField{Value: int64(i)},
		}}
		if err := bp.InsertTuple(tid, hf, tup); err != nil {
			t.Fatalf("insert %s: %v", name, err)
		}
	}
	if err := bp.TransactionComplete(tid, true); err != nil {
		t.Fatalf("commit: %v", err)
	}

	readTid := NewTID()
	iter, err := hf.Iterator(readTid)
	if err != nil {
		t.Fatalf("iterator: %v", err)
	}

	seen := 0
	for {
		tup, err := iter()
		if err != nil {
			t.Fatalf("iterate: %v", err)
		}
		if tup == nil {
			break
		}
		seen++
	}
	if seen != len(names) {
		t.Fatalf("expected %d tuples, saw %d", len(names), seen)
	}
	bp.TransactionComplete(readTid, true)
}

func TestHeapFileGrowsOnFullPage(t *testing.T) {
	td, hf, bp, tid := makeHeapFileTestVars(t)

	before := hf.NumPages()
	for i := 0; i < 500; i++ {
		tup := &Tuple{Desc: *td, Fields: []DBValue{
			StringField{Value: "x"},
			IntField{Value: int64(i)},
		}}
		if err := bp.InsertTuple(tid, hf, tup); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	if err := bp.TransactionComplete(tid, true); err != nil {
		t.Fatalf("commit: %v", err)
	}

	if hf.NumPages() <= before {
		t.Fatalf("expected file to grow beyond %d pages, got %d", before, hf.NumPages())
	}
}

func TestHeapFileDeleteFreesSlot(t *testing.T) {
	td, hf, bp, tid := makeHeapFileTestVars(t)

	tup := &Tuple{Desc: *td, Fields: []DBValue{
		StringField{Value: "to-delete"},
		IntField{Value: 42},
	}}
	if err := bp.InsertTuple(tid, hf, tup); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := bp.TransactionComplete(tid, true); err != nil {
		t.Fatalf("commit insert: %v", err)
	}

	readTid := NewTID()
	iter, _ := hf.Iterator(readTid)
	got, err := iter()
	if err != nil || got == nil {
		t.Fatalf("expected to read back the inserted tuple, got %v, %v", got, err)
	}
	bp.TransactionComplete(readTid, true)

	delTid := NewTID()
	if err := bp.DeleteTuple(delTid, hf, got); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := bp.TransactionComplete(delTid, true); err != nil {
		t.Fatalf("commit delete: %v", err)
	}

	checkTid := NewTID()
	iter2, _ := hf.Iterator(checkTid)
	remaining, err := iter2()
	if err != nil {
		t.Fatalf("iterate after delete: %v", err)
	}
	if remaining != nil {
		t.Fatalf("expected no tuples after delete, found one")
	}
	bp.TransactionComplete(checkTid, true)
}
