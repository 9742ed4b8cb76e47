package godb

import (
	"bytes"
	"encoding/binary"
	"errors"
)

/* heapPage implements the Page interface for pages of a HeapFile.

In GoDB all tuples are fixed length, which means that given a TupleDesc it is
possible to figure out how many tuple "slots" fit on a given page.

All pages are PageSize bytes. They begin with a header with a 32 bit integer
with the number of slots (tuples), and a second 32 bit integer with the
number of used slots.

Each tuple occupies the same number of bytes. A GoDB integer (represented as
an int64) requires 8 bytes; strings are encoded as byte arrays of
StringLength, so they occupy StringLength bytes.

remPageSize = PageSize - 8 // bytes after header
numSlots = remPageSize / bytesPerTuple // integer division rounds down

Deletions clear a slot in place, so tuples keep their slot numbers while the
page stays cached. toBuffer writes only the occupied slots, packed in slot
order, so a page that is flushed and read back has its tuples renumbered
0..numUsedSlots-1.
*/

type heapPage struct {
	dirty        bool
	dirtyBy      TransactionID
	pageNumber   int
	numSlots     int32
	numUsedSlots int32
	desc         *TupleDesc
	file         *HeapFile
	tuples       []*Tuple

	before *heapPage // before-image snapshot; nil entries mean "same as self"
}

// Construct a new heap page
func newHeapPage(desc *TupleDesc, pageNo int, f *HeapFile) (*heapPage, error) {
	perTupleSize := int32(0)
	for _, field := range desc.Fields {
		switch field.Ftype {
		case IntType:
			perTupleSize += 8
		case StringType:
			perTupleSize += int32(StringLength)
		default:
			return nil, errors.New("invalid field type")
		}
	}
	page := &heapPage{
		pageNumber:   pageNo,
		numSlots:     int32(PageSize-8) / perTupleSize,
		numUsedSlots: 0,
		desc:         desc,
		file:         f,
	}
	page.tuples = make([]*Tuple, page.numSlots)
	page.setBeforeImage()
	return page, nil
}

func (h *heapPage) getNumSlots() int {
	return int(h.numSlots)
}

// Insert the tuple into a free slot on the page, or return an error if there
// are no free slots. The slot holds a new Tuple sharing t's Fields with its
// Rid set; that Rid is returned, and t itself is not modified.
func (h *heapPage) insertTuple(t *Tuple) (RecordID, error) {
	for slot, tup := range h.tuples {
		if tup != nil {
			continue
		}
		h.numUsedSlots++
		rid := RecordID{PID: h.file.pageKey(h.pageNumber), SlotNo: slot}
		h.tuples[slot] = &Tuple{
			Desc:   *h.desc,
			Fields: t.Fields,
			Rid:    rid,
		}
		return rid, nil
	}
	return RecordID{}, errors.New("no available slots for tuple insertion")
}

// Delete the tuple at the specified record ID, or return an error if the ID
// is invalid.
func (h *heapPage) deleteTuple(rid RecordID) error {
	if rid.SlotNo < 0 || rid.SlotNo >= len(h.tuples) || h.tuples[rid.SlotNo] == nil {
		return errors.New("invalid slot or tuple does not exist")
	}
	h.tuples[rid.SlotNo] = nil
	h.numUsedSlots--
	return nil
}

func (h *heapPage) isDirty() bool {
	return h.dirty
}

func (h *heapPage) dirtyTid() (TransactionID, bool) {
	return h.dirtyBy, h.dirty
}

func (h *heapPage) setDirty(tid TransactionID, dirty bool) {
	h.dirty = dirty
	if dirty {
		h.dirtyBy = tid
	}
}

func (p *heapPage) getFile() DBFile {
	return p.file
}

// beforeImage returns the page's byte-exact state from before this
// transaction's writes, as a standalone Page the BufferPool can swap into
// the cache on abort. The returned page's own before-image points at
// itself, since it is by definition clean.
func (h *heapPage) beforeImage() Page {
	if h.before == nil {
		return h
	}
	return h.before
}

// setBeforeImage captures a fresh snapshot of the page's current contents,
// to be restored on a future abort. Called when a page is first read from
// disk and again whenever a transaction that dirtied it commits.
func (h *heapPage) setBeforeImage() {
	snapshot := &heapPage{
		pageNumber:   h.pageNumber,
		numSlots:     h.numSlots,
		numUsedSlots: h.numUsedSlots,
		desc:         h.desc,
		file:         h.file,
		tuples:       make([]*Tuple, len(h.tuples)),
	}
	for i, t := range h.tuples {
		if t == nil {
			continue
		}
		cp := *t
		snapshot.tuples[i] = &cp
	}
	snapshot.before = snapshot
	h.before = snapshot
}

// Allocate a new bytes.Buffer and write the heap page to it, for use by
// HeapFile.flushPage. Writes the page header in LittleEndian order,
// followed by the tuples, then zero-pads to PageSize.
func (h *heapPage) toBuffer() (*bytes.Buffer, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, h.numSlots); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, h.numUsedSlots); err != nil {
		return nil, err
	}

	for _, tuple := range h.tuples {
		if tuple == nil {
			continue
		}
		if err := tuple.writeTo(buf); err != nil {
			return nil, err
		}
	}
	if buf.Len() < PageSize {
		padding := make([]byte, PageSize-buf.Len())
		if _, err := buf.Write(padding); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// Read the contents of the heap page from the supplied buffer.
func (h *heapPage) initFromBuffer(buf *bytes.Buffer) error {
	if err := binary.Read(buf, binary.LittleEndian, &h.numSlots); err != nil {
		return err
	}
	if err := binary.Read(buf, binary.LittleEndian, &h.numUsedSlots); err != nil {
		return err
	}
	h.tuples = make([]*Tuple, h.numSlots)
	for i := 0; i < int(h.numUsedSlots); i++ {
		tuple, err := readTupleFrom(buf, h.desc)
		if err != nil {
			break
		}
		tuple.Rid = RecordID{PID: h.file.pageKey(h.pageNumber), SlotNo: i}
		tuple.Desc = *h.desc
		h.tuples[i] = tuple
	}
	h.setBeforeImage()
	return nil
}

// tupleIter returns a function that iterates through the tuples of the
// page in slot order, skipping empty slots.
func (p *heapPage) tupleIter() func() (*Tuple, error) {
	i := 0
	return func() (res *Tuple, err error) {
		for {
			if i >= len(p.tuples) {
				return nil, nil
			}
			res = p.tuples[i]
			i++
			if res == nil {
				continue
			}
			return res, nil
		}
	}
}
