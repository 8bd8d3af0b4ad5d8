// Copyright 2025 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package datafile

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cdbio/cdb/internal/djbhash"
)

type testPair struct {
	key, value string
}

func buildFileBytes(t *testing.T, pairs []testPair) []byte {
	t.Helper()
	var buf safeBuffer
	w, err := NewWriter(&buf)
	require.NoError(t, err)
	for _, p := range pairs {
		require.NoError(t, w.Put([]byte(p.key), []byte(p.value)))
	}
	require.NoError(t, w.Finish())
	return buf.Bytes()
}

func openFileBytes(t *testing.T, contents []byte) (*Reader, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.cdb")
	require.NoError(t, os.WriteFile(path, contents, 0o644))
	return NewMMapReaderWithPath(path)
}

func openReader(t *testing.T, pairs []testPair) *Reader {
	t.Helper()
	r, err := openFileBytes(t, buildFileBytes(t, pairs))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = r.Close()
	})
	return r
}

// first returns the first value for key, like a point lookup.
func first(r *Reader, key string) (string, bool, error) {
	it := r.Find([]byte(key))
	v, ok := it.Next()
	if !ok {
		return "", false, it.Err()
	}
	return string(v), true, nil
}

func TestReaderRoundTrip(t *testing.T) {
	r := openReader(t, []testPair{
		{"a", "1"},
		{"b", "2"},
		{"a", "3"},
	})

	// first match is the first-inserted record
	v, found, err := first(r, "a")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "1", v)

	v, found, err = first(r, "b")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "2", v)

	_, found, err = first(r, "c")
	require.NoError(t, err)
	require.False(t, found)

	// all values for a duplicated key come back in insertion order
	it := r.Find([]byte("a"))
	var all []string
	for {
		v, ok := it.Next()
		if !ok {
			break
		}
		all = append(all, string(v))
	}
	require.NoError(t, it.Err())
	assert.Equal(t, []string{"1", "3"}, all)

	// Find is restartable: a fresh call re-runs the probe
	it = r.Find([]byte("a"))
	v2, ok := it.Next()
	require.True(t, ok)
	assert.Equal(t, "1", string(v2))
}

func TestReaderIterInsertionOrder(t *testing.T) {
	pairs := []testPair{
		{"one", "Hello"},
		{"one", ", World!"},
		{"two", "Goodbye"},
		{"", ""},
		{"last", "record"},
	}
	r := openReader(t, pairs)

	it := r.Iter()
	var got []testPair
	prevOffset := uint32(0)
	for {
		item, ok := it.Next()
		if !ok {
			break
		}
		require.Greater(t, item.Offset, prevOffset)
		prevOffset = item.Offset
		got = append(got, testPair{string(item.Key), string(item.Value)})
	}
	require.NoError(t, it.Err())
	assert.Equal(t, pairs, got)
}

func TestReaderEmptyDatabase(t *testing.T) {
	r := openReader(t, nil)

	_, found, err := first(r, "anything")
	require.NoError(t, err)
	require.False(t, found)

	it := r.Iter()
	_, ok := it.Next()
	require.False(t, ok)
	require.NoError(t, it.Err())
}

func TestReaderEmptyKeyAndValue(t *testing.T) {
	r := openReader(t, []testPair{{"", ""}})

	v, found, err := first(r, "")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "", v)

	// a record that is nothing but its header still shows up in a scan
	it := r.Iter()
	item, ok := it.Next()
	require.True(t, ok)
	assert.Empty(t, item.Key)
	assert.Empty(t, item.Value)
	_, ok = it.Next()
	require.False(t, ok)
	require.NoError(t, it.Err())
}

func TestReaderNonMembership(t *testing.T) {
	var pairs []testPair
	for i := 0; i < 1000; i++ {
		pairs = append(pairs, testPair{fmt.Sprintf("present-%04d", i), fmt.Sprintf("value-%d", i)})
	}
	r := openReader(t, pairs)

	for _, p := range pairs {
		v, found, err := first(r, p.key)
		require.NoError(t, err)
		require.True(t, found, "key %q", p.key)
		require.Equal(t, p.value, v)
	}
	for i := 0; i < 1000; i++ {
		_, found, err := first(r, fmt.Sprintf("absent-%04d", i))
		require.NoError(t, err)
		require.False(t, found)
	}
}

func TestReaderSlotsAgreeWithRecords(t *testing.T) {
	var pairs []testPair
	for i := 0; i < 300; i++ {
		pairs = append(pairs, testPair{fmt.Sprintf("key-%d", i), fmt.Sprintf("v%d", i)})
	}
	r := openReader(t, pairs)

	occupied := 0
	for b := 0; b < NumBuckets; b++ {
		off, slots := r.TableRef(b)
		if slots == 0 {
			continue
		}
		require.GreaterOrEqual(t, off, r.DataEnd())
		for s := uint32(0); s < slots; s++ {
			h, pos := r.Slot(b, s)
			if h == 0 && pos == 0 {
				continue
			}
			occupied++
			key, _, err := r.ReadRecordAt(pos)
			require.NoError(t, err)
			require.Equal(t, h, djbhash.Sum32(key))
			require.Equal(t, b, int(h&0xff))
		}
	}
	assert.Equal(t, len(pairs), occupied)
}

func TestReaderOpenTooShort(t *testing.T) {
	_, err := openFileBytes(t, make([]byte, HeaderSize-1))
	require.ErrorIs(t, err, ErrMalformedHeader)
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestReaderOpenTruncated(t *testing.T) {
	contents := buildFileBytes(t, []testPair{{"a", "1"}, {"b", "2"}})
	for _, drop := range []int{1, SlotSize, 3 * SlotSize} {
		_, err := openFileBytes(t, contents[:len(contents)-drop])
		require.ErrorIs(t, err, ErrMalformedHeader, "dropped %d bytes", drop)
	}
}

func TestReaderOpenCorruptHeader(t *testing.T) {
	contents := buildFileBytes(t, []testPair{{"a", "1"}})

	// bucket 196 holds the only table; inflate its slot count so it
	// extends past EOF
	corrupt := append([]byte(nil), contents...)
	binary.LittleEndian.PutUint32(corrupt[196*8+4:], 10000)
	_, err := openFileBytes(t, corrupt)
	require.ErrorIs(t, err, ErrMalformedHeader)

	// point the table inside the header region
	corrupt = append([]byte(nil), contents...)
	binary.LittleEndian.PutUint32(corrupt[196*8:], 100)
	_, err = openFileBytes(t, corrupt)
	require.ErrorIs(t, err, ErrMalformedHeader)
}

func TestReaderCorruptRecordLength(t *testing.T) {
	contents := buildFileBytes(t, []testPair{{"a", "1"}})
	// the record's key length field lives right after the header
	binary.LittleEndian.PutUint32(contents[HeaderSize:], 0xfffffff0)

	r, err := openFileBytes(t, contents)
	require.NoError(t, err)
	defer func() {
		_ = r.Close()
	}()

	it := r.Find([]byte("a"))
	_, ok := it.Next()
	require.False(t, ok)
	require.ErrorIs(t, it.Err(), ErrMalformedRecord)
	require.ErrorIs(t, it.Err(), ErrCorrupt)
}

func TestReaderSlotPointsIntoHeader(t *testing.T) {
	contents := buildFileBytes(t, []testPair{{"a", "1"}})
	// the occupied slot is the second of bucket 196's two-slot table;
	// rewrite its record position to land inside the header
	tableOff := HeaderSize + 10
	binary.LittleEndian.PutUint32(contents[tableOff+SlotSize+4:], 100)

	r, err := openFileBytes(t, contents)
	require.NoError(t, err)
	defer func() {
		_ = r.Close()
	}()

	it := r.Find([]byte("a"))
	_, ok := it.Next()
	require.False(t, ok)
	require.ErrorIs(t, it.Err(), ErrMalformedRecord)
}

func TestReaderTrailingRecordBytes(t *testing.T) {
	// hand-build a file with 3 bytes of junk between the last record
	// and the first slot table
	const (
		recordPos = uint32(HeaderSize)
		tableOff  = uint32(HeaderSize + 10 + 3)
		fileSize  = int(tableOff) + 2*SlotSize
		hashA     = uint32(177604) // bucket 196, start slot 1
	)
	contents := make([]byte, fileSize)
	for i := 0; i < NumBuckets; i++ {
		slots := uint32(0)
		if i == 196 {
			slots = 2
		}
		putPair(contents[i*8:], tableOff, slots)
	}
	copy(contents[recordPos:], []byte{1, 0, 0, 0, 1, 0, 0, 0, 'a', '1'})
	contents[recordPos+10] = 0xee
	contents[recordPos+11] = 0xee
	contents[recordPos+12] = 0xee
	putPair(contents[tableOff+SlotSize:], hashA, recordPos)

	r, err := openFileBytes(t, contents)
	require.NoError(t, err)
	defer func() {
		_ = r.Close()
	}()

	// lookups go through the (valid) slot table and still succeed
	v, found, err := first(r, "a")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "1", v)

	// the sequential scan hits the junk and reports corruption
	// instead of fabricating a record
	it := r.Iter()
	item, ok := it.Next()
	require.True(t, ok)
	require.Equal(t, "a", string(item.Key))
	_, ok = it.Next()
	require.False(t, ok)
	require.ErrorIs(t, it.Err(), ErrMalformedRecord)
}

func BenchmarkReaderFind(b *testing.B) {
	var buf safeBuffer
	w, err := NewWriter(&buf)
	if err != nil {
		b.Fatal(err)
	}
	keys := make([][]byte, 10000)
	for i := range keys {
		keys[i] = []byte(fmt.Sprintf("bench-key-%05d", i))
		if err := w.Put(keys[i], []byte("payload")); err != nil {
			b.Fatal(err)
		}
	}
	if err := w.Finish(); err != nil {
		b.Fatal(err)
	}
	path := filepath.Join(b.TempDir(), "bench.cdb")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		b.Fatal(err)
	}
	r, err := NewMMapReaderWithPath(path)
	if err != nil {
		b.Fatal(err)
	}
	defer func() {
		_ = r.Close()
	}()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		it := r.Find(keys[i%len(keys)])
		if _, ok := it.Next(); !ok {
			b.Fatal("missing key")
		}
	}
}
