package godb

import "bytes"

// RWPerm is the permission requested when fetching a page from the
// BufferPool: ReadPerm acquires a shared lock, WritePerm an exclusive one.
type RWPerm int

const (
	ReadPerm RWPerm = iota
	WritePerm
)

// Page is the BufferPool's view of a cached page: opaque payload bytes plus
// the bookkeeping the core needs to run NO-STEAL. isDirty/dirtyTid/setDirty track
// which transaction (if any) has modified the page since it was last clean;
// beforeImage/setBeforeImage give BufferPool a byte-exact snapshot to
// restore on abort without re-reading the disk.
type Page interface {
	isDirty() bool
	dirtyTid() (TransactionID, bool)
	setDirty(tid TransactionID, dirty bool)
	getFile() DBFile
	toBuffer() (*bytes.Buffer, error)
	beforeImage() Page
	setBeforeImage()
}

// DBFile is the external collaborator the spec requires of the heap-page
// layer above the core (§1): stable per-page identity, and the handful of
// operations BufferPool and HeapFile.Iterator need to move pages and tuples
// to and from disk. HeapFile is the only implementation in this module;
// column-store or index-organized files are out of scope (§1, "heap-page
// byte layout" is the only page layout the core requires).
type DBFile interface {
	readPage(pageNo int) (Page, error)
	flushPage(p Page) error
	NumPages() int
	insertTuple(t *Tuple, tid TransactionID) ([]PageID, error)
	deleteTuple(t *Tuple, tid TransactionID) ([]PageID, error)
	Descriptor() *TupleDesc
	pageKey(pageNo int) PageID
	Iterator(tid TransactionID) (func() (*Tuple, error), error)
}
