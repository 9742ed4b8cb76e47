package godb

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEngineLoadCatalogAndRoundTrip(t *testing.T) {
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "catalog.txt")
	if err := os.WriteFile(catalogPath, []byte("people(name string, age int)\n"), 0644); err != nil {
		t.Fatalf("writing catalog fixture: %v", err)
	}

	e, err := NewEngine(10)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if err := e.LoadCatalog(catalogPath); err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}

	hf := e.Table("people")
	if hf == nil {
		t.Fatalf("expected an open HeapFile for people")
	}

	tid := e.Begin()
	desc := hf.Descriptor()
	tup := &Tuple{Desc: *desc, Fields: []DBValue{StringField{Value: "ada"}, IntField{Value: 36}}}
	if err := e.BufferPool().InsertTuple(tid, hf, tup); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := e.Commit(tid); err != nil {
		t.Fatalf("commit: %v", err)
	}

	readTid := e.Begin()
	iter, err := hf.Iterator(readTid)
	if err != nil {
		t.Fatalf("iterator: %v", err)
	}
	got, err := iter()
	if err != nil || got == nil {
		t.Fatalf("expected to read back the committed tuple, got %v, %v", got, err)
	}
	e.Commit(readTid)
}

func TestEngineAbortDropsUncommittedRows(t *testing.T) {
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "catalog.txt")
	if err := os.WriteFile(catalogPath, []byte("people(name string, age int)\n"), 0644); err != nil {
		t.Fatalf("writing catalog fixture: %v", err)
	}

	e, err := NewEngine(10)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if err := e.LoadCatalog(catalogPath); err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	hf := e.Table("people")
	desc := hf.Descriptor()

	tid := e.Begin()
	tup := &Tuple{Desc: *desc, Fields: []DBValue{StringField{Value: "doomed"}, IntField{Value: 1}}}
	if err := e.BufferPool().InsertTuple(tid, hf, tup); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := e.Abort(tid); err != nil {
		t.Fatalf("abort: %v", err)
	}

	readTid := e.Begin()
	iter, _ := hf.Iterator(readTid)
	got, err := iter()
	if err != nil {
		t.Fatalf("iterate after abort: %v", err)
	}
	if got != nil {
		t.Fatalf("expected no rows to survive an aborted transaction")
	}
	e.Commit(readTid)
}
