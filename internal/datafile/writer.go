// Copyright 2025 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package datafile

import (
	"bufio"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/cdbio/cdb/internal/djbhash"
	"github.com/cdbio/cdb/internal/zero"
)

type nopWriter struct{}

func (nopWriter) Write([]byte) (int, error) {
	return 0, io.EOF
}

// FileWriter is usually an *os.File, but specified as an interface for
// easier testing.
type FileWriter interface {
	io.Writer
	io.WriterAt
}

// hashPos is one in-memory accumulation entry: the hash of a key and
// the file position of its record.
type hashPos struct {
	hash uint32
	pos  uint32
}

// Writer streams records to a sink and commits the hash tables and
// header when finished.  Slot placement can't be decided until every
// key of a bucket is known, so Put only accumulates (hash, position)
// pairs in memory; Finish writes the 256 slot tables and then rewrites
// the header region in place.
//
// A Writer must be owned by a single goroutine.
type Writer struct {
	f        FileWriter
	w        *bufio.Writer
	entries  [NumBuckets][]hashPos
	pos      uint32
	count    uint64
	finished atomic.Bool
}

// NewWriter reserves the header region of the sink and returns a
// Writer ready to accept records.
func NewWriter(f FileWriter) (*Writer, error) {
	w := &Writer{
		f: f,
		w: bufio.NewWriterSize(f, defaultBufferSize),
	}

	var blank [HeaderSize]byte
	if _, err := w.w.Write(blank[:]); err != nil {
		return nil, fmt.Errorf("bufio.Write: %w", err)
	}
	w.pos = HeaderSize

	// try to expose errors when writing to the backing file early
	if err := w.w.Flush(); err != nil {
		return nil, fmt.Errorf("flush: %w", err)
	}

	return w, nil
}

// advance moves the write position forward, failing if the 32-bit
// offset space would overflow.
func (w *Writer) advance(n uint32) error {
	if w.pos+n < n {
		return ErrTooBig
	}
	w.pos += n
	return nil
}

// Put appends one record.  Duplicate keys are allowed; every record is
// kept and later retrievable in insertion order.
func (w *Writer) Put(key, value []byte) error {
	if w.finished.Load() {
		return ErrFinished
	}
	if uint64(len(key)) > MaxKeyLen {
		return ErrKeyTooLarge
	}
	if uint64(len(value)) > MaxValueLen {
		return ErrValueTooLarge
	}

	var header [RecordHeaderSize]byte
	putPair(header[:], uint32(len(key)), uint32(len(value)))
	if _, err := w.w.Write(header[:]); err != nil {
		return fmt.Errorf("bufio.Write: %w", err)
	}
	if _, err := w.w.Write(key); err != nil {
		return fmt.Errorf("bufio.Write: %w", err)
	}
	if _, err := w.w.Write(value); err != nil {
		return fmt.Errorf("bufio.Write: %w", err)
	}

	h := djbhash.Sum32(key)
	w.entries[h&0xff] = append(w.entries[h&0xff], hashPos{hash: h, pos: w.pos})

	if err := w.advance(RecordHeaderSize); err != nil {
		return err
	}
	if err := w.advance(uint32(len(key))); err != nil {
		return err
	}
	if err := w.advance(uint32(len(value))); err != nil {
		return err
	}
	w.count++
	return nil
}

// Count returns the number of records written so far.
func (w *Writer) Count() uint64 {
	return w.count
}

// Size returns the current write position; after Finish it is the
// total file size.
func (w *Writer) Size() uint32 {
	return w.pos
}

// Finish writes the slot table of every bucket in index order, then
// rewrites the header with each table's (offset, slot count) pair.
// Calling Finish a second time is a no-op.
func (w *Writer) Finish() error {
	if alreadyFinished := w.finished.Swap(true); alreadyFinished {
		return nil
	}

	defer func() {
		w.w.Reset(nopWriter{})
		w.w = nil
	}()

	maxSlots := 0
	for i := range w.entries {
		if n := len(w.entries[i]) * 2; n > maxSlots {
			maxSlots = n
		}
	}
	if uint64(maxSlots)+w.count > maxFileSize/SlotSize {
		return ErrTooBig
	}

	// scratch table of (hash, pos) cells, reused across buckets
	table := make([]uint32, 2*maxSlots)
	var header [HeaderSize]byte
	var buf [SlotSize]byte

	for i := 0; i < NumBuckets; i++ {
		entries := w.entries[i]
		// twice the bucket's population, so at least half the
		// slots stay empty and linear probing always terminates
		nslots := uint32(len(entries)) * 2
		putPair(header[i*headerEntrySize:], w.pos, nslots)
		if nslots == 0 {
			continue
		}

		for _, e := range entries {
			s := (e.hash >> 8) % nslots
			// pos 0 marks an empty slot: no record can start
			// inside the header region
			for table[2*s+1] != 0 {
				s++
				if s == nslots {
					s = 0
				}
			}
			table[2*s] = e.hash
			table[2*s+1] = e.pos
		}

		for s := uint32(0); s < nslots; s++ {
			putPair(buf[:], table[2*s], table[2*s+1])
			if _, err := w.w.Write(buf[:]); err != nil {
				return fmt.Errorf("bufio.Write: %w", err)
			}
			if err := w.advance(SlotSize); err != nil {
				return err
			}
		}
		zero.U32(table[:2*nslots])
	}

	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("bufio.Flush: %w", err)
	}
	if _, err := w.f.WriteAt(header[:], 0); err != nil {
		return fmt.Errorf("f.WriteAt: %w", err)
	}
	return nil
}
