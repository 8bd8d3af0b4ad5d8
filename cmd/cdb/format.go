// Copyright 2025 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package main

import (
	"bufio"
	"fmt"
	"io"
)

// The text record format understood by make and produced by dump is
// the classic cdbmake/cdbdump interchange format:
//
//	+klen,vlen:key->value\n
//
// one line per record, terminated by one final blank line.  Keys and
// values are raw bytes; lengths are decimal.

const maxTextLength = 1<<32 - 2

func writeTextRecord(w *bufio.Writer, key, value []byte) error {
	if _, err := fmt.Fprintf(w, "+%d,%d:", len(key), len(value)); err != nil {
		return err
	}
	if _, err := w.Write(key); err != nil {
		return err
	}
	if _, err := w.WriteString("->"); err != nil {
		return err
	}
	if _, err := w.Write(value); err != nil {
		return err
	}
	return w.WriteByte('\n')
}

// readLength parses a decimal length up to and including term.
func readLength(r *bufio.Reader, term byte) (uint64, error) {
	var n uint64
	digits := 0
	for {
		c, err := r.ReadByte()
		if err != nil {
			return 0, fmt.Errorf("truncated length field: %w", err)
		}
		if c == term {
			if digits == 0 {
				return 0, fmt.Errorf("empty length field before %q", term)
			}
			return n, nil
		}
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("bad byte %q in length field", c)
		}
		n = n*10 + uint64(c-'0')
		if n > maxTextLength {
			return 0, fmt.Errorf("length field exceeds %d", uint64(maxTextLength))
		}
		digits++
	}
}

// readTextRecord parses one record line.  done is true at the
// terminating blank line (or a clean EOF, which some producers emit
// instead).
func readTextRecord(r *bufio.Reader) (key, value []byte, done bool, err error) {
	c, err := r.ReadByte()
	if err == io.EOF {
		return nil, nil, true, nil
	}
	if err != nil {
		return nil, nil, false, err
	}
	if c == '\n' {
		return nil, nil, true, nil
	}
	if c != '+' {
		return nil, nil, false, fmt.Errorf("expected '+' at record start, got %q", c)
	}

	klen, err := readLength(r, ',')
	if err != nil {
		return nil, nil, false, err
	}
	vlen, err := readLength(r, ':')
	if err != nil {
		return nil, nil, false, err
	}

	key = make([]byte, klen)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, nil, false, fmt.Errorf("truncated key: %w", err)
	}
	var sep [2]byte
	if _, err := io.ReadFull(r, sep[:]); err != nil {
		return nil, nil, false, fmt.Errorf("truncated separator: %w", err)
	}
	if sep != [2]byte{'-', '>'} {
		return nil, nil, false, fmt.Errorf("expected \"->\" after key, got %q", sep[:])
	}
	value = make([]byte, vlen)
	if _, err := io.ReadFull(r, value); err != nil {
		return nil, nil, false, fmt.Errorf("truncated value: %w", err)
	}
	nl, err := r.ReadByte()
	if err != nil {
		return nil, nil, false, fmt.Errorf("truncated record: %w", err)
	}
	if nl != '\n' {
		return nil, nil, false, fmt.Errorf("expected newline after value, got %q", nl)
	}
	return key, value, false, nil
}
