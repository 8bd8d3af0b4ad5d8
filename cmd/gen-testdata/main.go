// Copyright 2025 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// gen-testdata writes a deterministic-shape corpus of records in
// cdbmake format to stdout, for feeding to "cdb make".  Every 100th
// key is emitted twice with different values, so the result exercises
// multi-value lookups.
package main

import (
	"bufio"
	"crypto/hmac"
	crand "crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/rand"
	"os"
)

const (
	nPairs    = 1000000
	prefix    = "pref_"
	suffixLen = 16
	hmacKey   = "d259c7f656caf7f1"
)

func newRand() *rand.Rand {
	var seedBytes [8]byte
	_, _ = crand.Read(seedBytes[:])
	seed := int64(binary.LittleEndian.Uint64(seedBytes[:]))
	return rand.New(rand.NewSource(seed))
}

func main() {
	rng := newRand()
	h := hmac.New(sha256.New, []byte(hmacKey))
	w := bufio.NewWriterSize(os.Stdout, 1<<20)

	for i := 0; i < nPairs; i++ {
		var buf [suffixLen / 2]byte
		if _, err := rng.Read(buf[:]); err != nil {
			panic(err)
		}
		value := fmt.Sprintf("%s%x", prefix, buf)
		h.Reset()
		h.Write([]byte(value))
		key := hex.EncodeToString(h.Sum(nil))

		fmt.Fprintf(w, "+%d,%d:%s->%s\n", len(key), len(value), key, value)
		if i%100 == 0 {
			second := value + "_alt"
			fmt.Fprintf(w, "+%d,%d:%s->%s\n", len(key), len(second), key, second)
		}
	}

	if _, err := w.WriteString("\n"); err != nil {
		panic(err)
	}
	if err := w.Flush(); err != nil {
		panic(err)
	}
}
