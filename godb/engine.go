package godb

import "sync"

// Engine is the explicit, non-global handle every operation is threaded
// through (§9: "Structure them as an explicit Engine value threaded through
// every operation; avoid hidden global state"). It bundles the BufferPool
// (which in turn owns the LockTable), the loaded Catalog, and the open
// HeapFile for every table the catalog names.
type Engine struct {
	mu      sync.Mutex
	bp      *BufferPool
	catalog *Catalog
	tables  map[string]*HeapFile
}

// NewEngine constructs an Engine with a fresh BufferPool of the given page
// capacity and no catalog loaded.
func NewEngine(numPages int) (*Engine, error) {
	bp, err := NewBufferPool(numPages)
	if err != nil {
		return nil, err
	}
	return &Engine{
		bp:     bp,
		tables: make(map[string]*HeapFile),
	}, nil
}

// BufferPool returns the Engine's BufferPool, for callers that need direct
// access (e.g. GetPage during an iterator walk).
func (e *Engine) BufferPool() *BufferPool {
	return e.bp
}

// LoadCatalog parses catalogFile and opens a HeapFile, backed by this
// Engine's BufferPool, for each table it declares.
func (e *Engine) LoadCatalog(catalogFile string) error {
	cat, err := LoadCatalog(catalogFile)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.catalog = cat
	for i, name := range cat.Tables() {
		hf, err := NewHeapFile(i, cat.BackingFile(name), cat.Descriptor(name), e.bp)
		if err != nil {
			return err
		}
		e.tables[name] = hf
	}
	return nil
}

// Table returns the open HeapFile for name, or nil if name is not a known
// table.
func (e *Engine) Table(name string) *HeapFile {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tables[name]
}

// Catalog returns the Engine's loaded Catalog, or nil if none has been
// loaded yet.
func (e *Engine) Catalog() *Catalog {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.catalog
}

// Begin starts a new transaction and returns its TransactionID. Locks are
// acquired lazily as the transaction touches pages (§4.3); Begin itself does
// not block.
func (e *Engine) Begin() TransactionID {
	return NewTID()
}

// Commit flushes every page tid dirtied and releases its locks.
func (e *Engine) Commit(tid TransactionID) error {
	return e.bp.TransactionComplete(tid, true)
}

// Abort reverts every page tid dirtied to its before-image and releases its
// locks.
func (e *Engine) Abort(tid TransactionID) error {
	return e.bp.TransactionComplete(tid, false)
}
