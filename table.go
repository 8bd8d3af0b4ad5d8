// Copyright 2025 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package cdb

import (
	"fmt"

	"github.com/cdbio/cdb/internal/datafile"
	"github.com/cdbio/cdb/internal/unsafestring"
)

// Errors surfaced by readers.  ErrMalformedHeader and
// ErrMalformedRecord wrap ErrCorrupt, so errors.Is(err, ErrCorrupt)
// matches any structural inconsistency.
var (
	ErrCorrupt         = datafile.ErrCorrupt
	ErrMalformedHeader = datafile.ErrMalformedHeader
	ErrMalformedRecord = datafile.ErrMalformedRecord
	ErrKeyTooLarge     = datafile.ErrKeyTooLarge
	ErrValueTooLarge   = datafile.ErrValueTooLarge
)

// Table is an open database.  It is safe for concurrent use: lookups
// and iterators never mutate shared state.
type Table struct {
	data *datafile.Reader
}

// Open memory-maps the database at path, validating its header.
func Open(path string) (*Table, error) {
	r, err := datafile.NewMMapReaderWithPath(path)
	if err != nil {
		return nil, fmt.Errorf("datafile.NewMMapReaderWithPath(%s): %w", path, err)
	}
	return &Table{data: r}, nil
}

// Get returns the value of the first record inserted under key, or
// found == false if the key is absent.  The returned slice aliases the
// mapped file and stays valid until Close.
func (t *Table) Get(key []byte) (value []byte, found bool, err error) {
	it := t.data.Find(key)
	v, ok := it.Next()
	if !ok {
		return nil, false, it.Err()
	}
	return v, true, nil
}

// GetString is Get for a string key, without copying the key.
func (t *Table) GetString(key string) (value []byte, found bool, err error) {
	return t.Get(unsafestring.ToBytes(key))
}

// GetAll returns every value stored under key, in insertion order.
func (t *Table) GetAll(key []byte) ([][]byte, error) {
	it := t.Find(key)
	var values [][]byte
	for {
		v, ok := it.Next()
		if !ok {
			break
		}
		values = append(values, v)
	}
	return values, it.Err()
}

// Find returns a lazy iterator over the values stored under key, in
// insertion order.  The iterator borrows key: don't modify it until
// iteration ends.
func (t *Table) Find(key []byte) *ValueIter {
	return &ValueIter{it: t.data.Find(key)}
}

// ValueIter yields the values of one key.  See Table.Find.
type ValueIter struct {
	it *datafile.ValueIter
}

// Next returns the next value for the key, or ok == false when the
// probe is exhausted or an error occurred (check Err).
func (it *ValueIter) Next() (value []byte, ok bool) {
	return it.it.Next()
}

// Err reports any corruption or I/O error that stopped iteration.
func (it *ValueIter) Err() error {
	return it.it.Err()
}

// Record is one key/value pair, with the file offset of its record.
type Record struct {
	Key    []byte
	Value  []byte
	Offset uint32
}

// Iter returns an iterator over every record in insertion order.  It
// scans the file sequentially and does not consult the hash tables.
// Each call starts a fresh scan.
func (t *Table) Iter() *RecordIter {
	return &RecordIter{it: t.data.Iter()}
}

// RecordIter yields all records of a database.  See Table.Iter.
type RecordIter struct {
	it *datafile.RecordIter
}

func (it *RecordIter) Next() (Record, bool) {
	item, ok := it.it.Next()
	if !ok {
		return Record{}, false
	}
	return Record{Key: item.Key, Value: item.Value, Offset: item.Offset}, true
}

// Err reports any corruption that stopped the scan.
func (it *RecordIter) Err() error {
	return it.it.Err()
}

// Close unmaps the database.  Slices returned by lookups must not be
// used afterwards.
func (t *Table) Close() error {
	return t.data.Close()
}
