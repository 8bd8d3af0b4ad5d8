// Copyright 2025 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package cdb reads and writes constant databases: on-disk hash tables
// that are built once from a stream of key/value pairs and afterwards
// support constant-time point lookups and full scans without any
// in-memory index.  A database is never modified in place; updating
// one means rebuilding it from scratch.  That immutability is what
// makes lock-free concurrent reads safe.
//
// A database file looks like:
//
//	┌─────────────────────┐
//	│ header              │ 256 × (table offset, slot count)
//	├─────────────────────┤
//	│ repeated KV records │ (klen, vlen, key, value)*
//	│                     │
//	│                     │
//	├─────────────────────┤
//	│ slot tables         │ 256 tables of (hash, position) slots
//	└─────────────────────┘
//
// Every integer in the file is a little-endian uint32.  A key selects
// a bucket by the low byte of its hash; the bucket's table is sized to
// twice its population and searched by linear probing, so lookups cost
// O(1) probes regardless of table size.  Multiple records may share a
// key; they are retrievable in insertion order.
//
// The format is the classic cdb layout, interoperable with other cdb
// implementations.
package cdb
