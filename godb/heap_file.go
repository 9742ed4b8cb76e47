package godb

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
)

// HeapFile is an unordered collection of tuples, organized as a sequence of
// fixed-size pages on disk. It is the DBFile implementation the core
// requires of the page-layout layer above it (§1): stable page identity via
// pageKey, readPage/flushPage for a single page, NumPages, and
// insertTuple/deleteTuple that report the set of pages they touched so
// BufferPool can track dirtiness (§4.4) rather than setting the dirty flag
// itself.
type HeapFile struct {
	tableID        int
	backingFile    string
	tupleDesc      *TupleDesc
	bufPool        *BufferPool
	pagesNum       int
	availablePages []bool
	hfLock         sync.Mutex
}

// NewHeapFile creates a HeapFile.
//   - tableID: the stable table identifier half of this file's PageIDs.
//   - fromFile: backing file for the HeapFile. May be empty or a previously
//     created heap file.
//   - td: the TupleDesc for the HeapFile.
//   - bp: the BufferPool used to cache pages read from the HeapFile.
func NewHeapFile(tableID int, fromFile string, td *TupleDesc, bp *BufferPool) (*HeapFile, error) {
	hf := &HeapFile{
		tableID:        tableID,
		backingFile:    fromFile,
		tupleDesc:      td,
		bufPool:        bp,
		availablePages: make([]bool, 0),
	}
	hf.pagesNum = hf.NumPages()
	for i := 0; i < hf.pagesNum; i++ {
		hf.availablePages = append(hf.availablePages, true)
	}
	return hf, nil
}

// BackingFile returns the name of the backing file.
func (f *HeapFile) BackingFile() string {
	return f.backingFile
}

// NumPages returns the number of pages currently in the heap file, computed
// from the backing file's size on disk (§6: page number = byte offset / P).
func (f *HeapFile) NumPages() int {
	fileInfo, err := os.Stat(f.backingFile)
	if err != nil {
		return 0
	}
	size := fileInfo.Size()
	numPages := int(size / int64(PageSize))
	if size%int64(PageSize) != 0 {
		numPages++
	}
	return numPages
}

// LoadFromCSV loads the contents of a CSV file into the heap file, one
// transaction per tuple. Parameters:
//   - hasHeader: whether the CSV file has a header line to skip.
//   - sep: the field separator.
//   - skipLastField: if true, the final field of each line is dropped
//     (some datasets include a trailing separator).
func (f *HeapFile) LoadFromCSV(file *os.File, hasHeader bool, sep string, skipLastField bool) error {
	scanner := bufio.NewScanner(file)
	cnt := 0
	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.Split(line, sep)
		if skipLastField {
			fields = fields[:len(fields)-1]
		}
		numFields := len(fields)
		cnt++
		desc := f.Descriptor()
		if desc == nil || desc.Fields == nil {
			return newGoDBError(MalformedDataError, "Descriptor was nil")
		}
		if numFields != len(desc.Fields) {
			return newGoDBError(MalformedDataError, "LoadFromCSV: line %d (%s) does not have expected number of fields (expected %d, got %d)", cnt, line, len(desc.Fields), numFields)
		}
		if cnt == 1 && hasHeader {
			continue
		}
		var newFields []DBValue
		for fno, field := range fields {
			switch desc.Fields[fno].Ftype {
			case IntType:
				field = strings.TrimSpace(field)
				floatVal, err := strconv.ParseFloat(field, 64)
				if err != nil {
					return newGoDBError(TypeMismatchError, "LoadFromCSV: couldn't convert value %s to int, tuple %d", field, cnt)
				}
				newFields = append(newFields, IntField{int64(floatVal)})
			case StringType:
				if len(field) > StringLength {
					field = field[:StringLength]
				}
				newFields = append(newFields, StringField{field})
			}
		}
		newT := Tuple{Desc: *desc, Fields: newFields}
		tid := NewTID()
		if err := f.bufPool.InsertTuple(tid, f, &newT); err != nil {
			return err
		}
		if err := f.bufPool.TransactionComplete(tid, true); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// readPage reads the specified page number from the HeapFile's backing
// file. Called by BufferPool.GetPage on a cache miss.
func (f *HeapFile) readPage(pageNo int) (Page, error) {
	if pageNo < 0 || pageNo >= f.NumPages() {
		return nil, newGoDBError(BadPageIDError, "page %d does not exist in %s", pageNo, f.backingFile)
	}

	data := make([]byte, PageSize)
	offset := int64(pageNo) * int64(PageSize)
	file, err := os.OpenFile(f.backingFile, os.O_CREATE|os.O_RDWR, 0666)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek to page: %w", err)
	}
	if _, err := io.ReadFull(file, data); err != nil && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("failed to read page: %w", err)
	}

	buf := bytes.NewBuffer(data)
	hp := &heapPage{
		pageNumber: pageNo,
		desc:       f.tupleDesc,
		file:       f,
	}
	if err := hp.initFromBuffer(buf); err != nil {
		return nil, fmt.Errorf("failed to initialize heap page: %w", err)
	}
	return hp, nil
}

// insertTuple adds t to the heap file. It scans pages looking for an empty
// slot (tracked with availablePages as a fast-path cache so repeated
// inserts don't rescan already-full pages); if none is found, it extends
// the file by one empty page (growFile) and places the tuple there. Neither
// path marks the resulting page dirty itself — it returns the touched
// PageID so BufferPool.InsertTuple can do that uniformly (§4.4).
func (f *HeapFile) insertTuple(t *Tuple, tid TransactionID) ([]PageID, error) {
	if len(t.Fields) != len(t.Desc.Fields) {
		return nil, newGoDBError(MalformedDataError, "tuple field count does not match descriptor")
	}

	for pageNo, idle := range f.availablePages {
		if !idle {
			continue
		}
		page, err := f.bufPool.GetPage(tid, f, pageNo, WritePerm)
		if err != nil {
			return nil, err
		}
		hp := page.(*heapPage)
		if hp.numUsedSlots >= hp.numSlots {
			f.availablePages[pageNo] = false
			continue
		}
		if _, err := hp.insertTuple(t); err != nil {
			return nil, err
		}
		f.availablePages[pageNo] = hp.numUsedSlots < hp.numSlots
		return []PageID{f.pageKey(pageNo)}, nil
	}

	return f.createNewPage(t, tid)
}

// createNewPage extends the backing file by one empty page (§4.5)
// and inserts t into it. The new page is loaded through the BufferPool
// rather than written with the tuple already in it, so the insert stays an
// in-memory, NO-STEAL-compliant write until the owning transaction commits.
func (f *HeapFile) createNewPage(t *Tuple, tid TransactionID) ([]PageID, error) {
	f.hfLock.Lock()
	pageNo := f.pagesNum
	if err := f.growFile(pageNo); err != nil {
		f.hfLock.Unlock()
		return nil, err
	}
	f.pagesNum++
	f.availablePages = append(f.availablePages, true)
	f.hfLock.Unlock()

	page, err := f.bufPool.GetPage(tid, f, pageNo, WritePerm)
	if err != nil {
		return nil, err
	}
	hp := page.(*heapPage)
	if _, err := hp.insertTuple(t); err != nil {
		return nil, err
	}
	f.availablePages[pageNo] = hp.numUsedSlots < hp.numSlots

	return []PageID{f.pageKey(pageNo)}, nil
}

// growFile appends one zero-tuple page to the backing file, with a header
// declaring the slot count this file's TupleDesc implies so the page is
// immediately usable once read back (§4.5: "extend the file by one
// zero-initialized page").
func (f *HeapFile) growFile(pageNo int) error {
	empty, err := newHeapPage(f.tupleDesc, pageNo, f)
	if err != nil {
		return err
	}
	buf, err := empty.toBuffer()
	if err != nil {
		return err
	}

	file, err := os.OpenFile(f.backingFile, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0666)
	if err != nil {
		return err
	}
	defer file.Close()
	if _, err := buf.WriteTo(file); err != nil {
		return err
	}
	return nil
}

// deleteTuple removes t, identified by t.Rid, from the heap file. Returns
// the PageID the tuple was removed from so BufferPool can mark it dirty.
func (f *HeapFile) deleteTuple(t *Tuple, tid TransactionID) ([]PageID, error) {
	rid := t.Rid

	page, err := f.bufPool.GetPage(tid, f, rid.PID.PageNumber, WritePerm)
	if err != nil {
		return nil, err
	}
	hp, ok := page.(*heapPage)
	if !ok {
		return nil, newGoDBError(MalformedDataError, "invalid page type")
	}
	if err := hp.deleteTuple(rid); err != nil {
		return nil, err
	}
	f.availablePages[rid.PID.PageNumber] = true

	return []PageID{rid.PID}, nil
}

// flushPage writes p back to its offset in the backing file. Called by
// BufferPool when it evicts or commits a page.
func (f *HeapFile) flushPage(p Page) error {
	page, ok := p.(*heapPage)
	if !ok {
		return newGoDBError(MalformedDataError, "invalid page type")
	}

	file, err := os.OpenFile(f.backingFile, os.O_CREATE|os.O_RDWR, 0666)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := file.Seek(int64(page.pageNumber)*int64(PageSize), io.SeekStart); err != nil {
		return err
	}
	buf, err := page.toBuffer()
	if err != nil {
		return err
	}
	if _, err := buf.WriteTo(file); err != nil {
		return err
	}
	return nil
}

// Descriptor returns the TupleDesc for this HeapFile.
func (f *HeapFile) Descriptor() *TupleDesc {
	return f.tupleDesc
}

// Iterator returns a function that walks the records in the heap file in
// page order, acquiring a shared lock page-by-page through the BufferPool
// (§4.5).
func (f *HeapFile) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	pageIdx := 0
	var curIter func() (*Tuple, error)

	return func() (*Tuple, error) {
		for pageIdx < f.pagesNum {
			if curIter == nil {
				page, err := f.bufPool.GetPage(tid, f, pageIdx, ReadPerm)
				if err != nil {
					return nil, err
				}
				curIter = page.(*heapPage).tupleIter()
			}

			tuple, err := curIter()
			if err != nil {
				return nil, err
			}
			if tuple == nil {
				pageIdx++
				curIter = nil
				continue
			}
			tuple.Desc = *f.tupleDesc
			return tuple, nil
		}
		return nil, nil
	}, nil
}

// pageKey returns the PageID BufferPool and LockTable key this HeapFile's
// pages by.
func (f *HeapFile) pageKey(pgNo int) PageID {
	return PageID{TableID: f.tableID, PageNumber: pgNo}
}
