// Copyright 2025 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package datafile

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// NumBuckets is the number of hash-table partitions; a key's
	// bucket is the low byte of its hash.
	NumBuckets = 256

	headerEntrySize = 8
	// HeaderSize is the fixed length of the header: one
	// (table offset, slot count) pair per bucket, at offset 0.
	HeaderSize = NumBuckets * headerEntrySize

	// RecordHeaderSize is the fixed prefix of every record:
	// a (key length, value length) pair.
	RecordHeaderSize = 8

	// SlotSize is the width of one slot-table cell:
	// a (hash, record position) pair.
	SlotSize = 8

	// all offsets and lengths are 32-bit, so a database can never
	// exceed 4 GiB
	maxFileSize = 1<<32 - 1

	// MaxKeyLen and MaxValueLen bound what fits in a 32-bit length
	// field.
	MaxKeyLen   = 1<<32 - 2
	MaxValueLen = 1<<32 - 2

	defaultBufferSize = 4 * 1024 * 1024
)

var (
	// ErrCorrupt is the umbrella for any structural inconsistency
	// found while reading a database.  ErrMalformedHeader and
	// ErrMalformedRecord wrap it, so errors.Is(err, ErrCorrupt)
	// matches all three.
	ErrCorrupt         = errors.New("corrupt database file")
	ErrMalformedHeader = fmt.Errorf("%w: malformed header", ErrCorrupt)
	ErrMalformedRecord = fmt.Errorf("%w: malformed record", ErrCorrupt)

	ErrKeyTooLarge   = errors.New("key exceeds 32-bit length field")
	ErrValueTooLarge = errors.New("value exceeds 32-bit length field")
	ErrTooBig        = errors.New("database exceeds 4 GiB size limit")
	ErrFinished      = errors.New("writer already finished")
)

// putPair encodes the format's universal 8-byte cell: two little-endian
// 32-bit integers.  Header entries, record headers, and slots all use it.
func putPair(b []byte, first, second uint32) {
	binary.LittleEndian.PutUint32(b[0:4], first)
	binary.LittleEndian.PutUint32(b[4:8], second)
}

func pair(b []byte) (uint32, uint32) {
	return binary.LittleEndian.Uint32(b[0:4]), binary.LittleEndian.Uint32(b[4:8])
}
