// Copyright 2025 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package djbhash implements the hash function fixed by the cdb file
// format: Dan Bernstein's times-33 hash, XOR variant, truncated to 32
// bits at every step.  The writer and the reader of a database must
// agree on this function bit-for-bit, so it is not configurable.
package djbhash

// Start is the initial accumulator value.  Sum32 of empty input
// returns it unchanged.
const Start uint32 = 5381

// Sum32 returns the 32-bit cdb hash of data.
func Sum32(data []byte) uint32 {
	h := Start
	for _, b := range data {
		h = ((h << 5) + h) ^ uint32(b)
	}
	return h
}
