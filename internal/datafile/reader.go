// Copyright 2025 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package datafile

import (
	"bytes"
	"fmt"

	"github.com/cdbio/cdb/internal/djbhash"
	"github.com/cdbio/cdb/internal/mmap"
)

// tableRef locates one bucket's slot table inside the file.
type tableRef struct {
	off   uint32
	slots uint32
}

// Reader provides lookups and iteration over a finished database.  The
// file is memory-mapped and immutable, so a Reader is safe for
// concurrent use; iterators carry their own cursors.
type Reader struct {
	mmap    *mmap.ReaderAt
	tables  [NumBuckets]tableRef
	dataEnd uint32
}

// NewMMapReaderWithPath maps the file at path and decodes and
// validates its header.
func NewMMapReaderWithPath(path string) (*Reader, error) {
	m, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mmap.Open(%s): %w", path, err)
	}
	r, err := newReader(m)
	if err != nil {
		_ = m.Close()
		return nil, err
	}
	return r, nil
}

func newReader(m *mmap.ReaderAt) (*Reader, error) {
	size := m.Len()
	if size < HeaderSize {
		return nil, fmt.Errorf("%w: file too short (%d < %d bytes)", ErrMalformedHeader, size, HeaderSize)
	}
	if int64(size) > maxFileSize {
		return nil, fmt.Errorf("%w: file too large (%d bytes)", ErrMalformedHeader, size)
	}
	if err := m.AdviseRandom(); err != nil {
		return nil, fmt.Errorf("madvise: %w", err)
	}

	r := &Reader{
		mmap: m,
		// the records section runs from the header's end to the
		// first slot table; with no tables it runs to EOF
		dataEnd: uint32(size),
	}
	data := m.Data()
	for i := 0; i < NumBuckets; i++ {
		off, slots := pair(data[i*headerEntrySize:])
		r.tables[i] = tableRef{off: off, slots: slots}
		if slots == 0 {
			// offset is a don't-care sentinel for empty buckets
			continue
		}
		end := uint64(off) + uint64(slots)*SlotSize
		if off < HeaderSize || end > uint64(size) {
			return nil, fmt.Errorf("%w: bucket %d table [%d, %d) outside %d byte file",
				ErrMalformedHeader, i, off, end, size)
		}
		if off < r.dataEnd {
			r.dataEnd = off
		}
	}
	return r, nil
}

// Size returns the length of the underlying file in bytes.
func (r *Reader) Size() uint32 {
	return uint32(r.mmap.Len())
}

// DataEnd returns the offset one past the last record: the start of
// the first slot table, or EOF if every bucket is empty.
func (r *Reader) DataEnd() uint32 {
	return r.dataEnd
}

// TableRef returns the file offset and slot count of a bucket's table.
func (r *Reader) TableRef(bucket int) (off, slots uint32) {
	t := r.tables[bucket&0xff]
	return t.off, t.slots
}

// Slot returns the stored (hash, position) pair of one cell of a
// bucket's table.  (0, 0) is the empty sentinel.
func (r *Reader) Slot(bucket int, slot uint32) (hash, pos uint32) {
	t := r.tables[bucket&0xff]
	return pair(r.mmap.Data()[t.off+slot*SlotSize:])
}

// ReadRecordAt decodes the record starting at pos.  The returned
// slices alias the mapping and stay valid until Close.
func (r *Reader) ReadRecordAt(pos uint32) (key, value []byte, err error) {
	data := r.mmap.Data()
	size := uint64(len(data))
	// a record can never start inside the header, so position 0 in
	// a slot is unambiguously "empty"
	if pos < HeaderSize {
		return nil, nil, fmt.Errorf("%w: record position %d inside header", ErrMalformedRecord, pos)
	}
	if uint64(pos)+RecordHeaderSize > size {
		return nil, nil, fmt.Errorf("%w: truncated record header at %d in %d byte file",
			ErrMalformedRecord, pos, size)
	}
	klen, vlen := pair(data[pos:])
	keyStart := uint64(pos) + RecordHeaderSize
	end := keyStart + uint64(klen) + uint64(vlen)
	if end > size {
		return nil, nil, fmt.Errorf("%w: record at %d declares %d+%d bytes past end of %d byte file",
			ErrMalformedRecord, pos, klen, vlen, size)
	}
	key = data[keyStart : keyStart+uint64(klen)]
	value = data[keyStart+uint64(klen) : end]
	return key, value, nil
}

// Find returns an iterator over the values of every record whose key
// equals key, in insertion order.  The iterator borrows key: it must
// not be modified until iteration ends.
func (r *Reader) Find(key []byte) *ValueIter {
	h := djbhash.Sum32(key)
	t := r.tables[h&0xff]
	it := &ValueIter{
		r:     r,
		key:   key,
		khash: h,
		table: t,
	}
	if t.slots > 0 {
		it.spos = t.off + ((h>>8)%t.slots)*SlotSize
	}
	return it
}

// ValueIter probes one bucket's slot run for records matching a key.
type ValueIter struct {
	r      *Reader
	key    []byte
	khash  uint32
	table  tableRef
	spos   uint32 // byte offset of the next slot to probe
	probes uint32
	err    error
}

// Next returns the next matching value.  The probe stops at the first
// empty slot or after every slot of the bucket has been inspected.
func (it *ValueIter) Next() ([]byte, bool) {
	if it.err != nil {
		return nil, false
	}
	data := it.r.mmap.Data()
	tableEnd := it.table.off + it.table.slots*SlotSize
	for it.probes < it.table.slots {
		h, pos := pair(data[it.spos:])
		if pos == 0 {
			// an empty slot is conclusive: placement never
			// leaves a gap inside a key's probe run
			return nil, false
		}
		it.probes++
		it.spos += SlotSize
		if it.spos == tableEnd {
			it.spos = it.table.off
		}
		if h != it.khash {
			continue
		}
		key, value, err := it.r.ReadRecordAt(pos)
		if err != nil {
			it.err = err
			return nil, false
		}
		if bytes.Equal(key, it.key) {
			return value, true
		}
	}
	return nil, false
}

// Err reports any corruption or I/O error that stopped iteration.
func (it *ValueIter) Err() error {
	return it.err
}

// IterItem is one record yielded by a sequential scan.
type IterItem struct {
	Key    []byte
	Value  []byte
	Offset uint32
}

// Iter returns an iterator over all records in insertion order.  It
// scans the records section sequentially and never consults the hash
// tables.  Each call starts a fresh scan.
func (r *Reader) Iter() *RecordIter {
	return &RecordIter{r: r, pos: HeaderSize}
}

// RecordIter walks the records section from its first byte to its last.
type RecordIter struct {
	r   *Reader
	pos uint32
	err error
}

func (it *RecordIter) Next() (IterItem, bool) {
	if it.err != nil {
		return IterItem{}, false
	}
	pos := uint64(it.pos)
	end := uint64(it.r.dataEnd)
	if pos == end {
		return IterItem{}, false
	}
	if pos+RecordHeaderSize > end {
		it.err = fmt.Errorf("%w: %d trailing bytes in record section", ErrMalformedRecord, end-pos)
		return IterItem{}, false
	}
	data := it.r.mmap.Data()
	klen, vlen := pair(data[pos:])
	keyStart := pos + RecordHeaderSize
	recordEnd := keyStart + uint64(klen) + uint64(vlen)
	if recordEnd > end {
		it.err = fmt.Errorf("%w: record at %d declares %d+%d bytes past record section end %d",
			ErrMalformedRecord, pos, klen, vlen, end)
		return IterItem{}, false
	}
	item := IterItem{
		Key:    data[keyStart : keyStart+uint64(klen)],
		Value:  data[keyStart+uint64(klen) : recordEnd],
		Offset: it.pos,
	}
	it.pos = uint32(recordEnd)
	return item, true
}

// Err reports any corruption that stopped the scan.
func (it *RecordIter) Err() error {
	return it.err
}

// Close unmaps the file.  Slices returned by lookups and iterators
// must not be used afterwards.
func (r *Reader) Close() error {
	return r.mmap.Close()
}
