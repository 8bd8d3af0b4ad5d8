// Copyright 2025 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package mmap provides a read-only memory-mapped view of a file.
// The mapping is immutable, so it may be shared between goroutines
// without synchronization.
package mmap

import (
	"fmt"
	"os"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// ReaderAt is a read-only view of a file's contents.
type ReaderAt struct {
	data     []byte
	isClosed atomic.Bool
}

// Open memory-maps the named file for reading.
func Open(path string) (*ReaderAt, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("os.Open(%s): %w", path, err)
	}
	defer func() {
		// the mapping stays valid after the descriptor is closed
		_ = f.Close()
	}()

	stats, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("f.Stat: %w", err)
	}
	size := stats.Size()
	if size == 0 {
		// mmap of an empty file is an error on Linux; an empty
		// mapping behaves the same to callers
		return &ReaderAt{}, nil
	}
	if size != int64(int(size)) {
		return nil, fmt.Errorf("file %s too large to map (%d bytes)", path, size)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("unix.Mmap(%s, %d): %w", path, size, err)
	}

	return &ReaderAt{data: data}, nil
}

// Data returns the mapped contents.  The returned slice must not be
// written to, and must not be used after Close.
func (r *ReaderAt) Data() []byte {
	return r.data
}

// Len returns the length of the underlying file.
func (r *ReaderAt) Len() int {
	return len(r.data)
}

// AdviseRandom hints to the kernel that the mapping will be accessed
// in random order, as point lookups do.
func (r *ReaderAt) AdviseRandom() error {
	if len(r.data) == 0 {
		return nil
	}
	return unix.Madvise(r.data, unix.MADV_RANDOM)
}

// Close unmaps the file.  It is safe to call multiple times.
func (r *ReaderAt) Close() error {
	if r.isClosed.Swap(true) {
		return nil
	}
	if r.data == nil {
		return nil
	}
	data := r.data
	r.data = nil
	return unix.Munmap(data)
}
