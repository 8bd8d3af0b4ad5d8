// Copyright 2025 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package djbhash

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSum32(t *testing.T) {
	for _, testcase := range []struct {
		input    string
		expected uint32
	}{
		{"", 5381},
		{"a", 177604},
		{"b", 177607},
		{"one", 193420161},
		{"two", 193421353},
		{"hello", 178056679},
		{"key", 193424690},
		{"The quick brown fox", 358000238},
	} {
		require.Equal(t, testcase.expected, Sum32([]byte(testcase.input)), "input %q", testcase.input)
	}
}

func TestSum32Stable(t *testing.T) {
	input := []byte("stability matters more than speed here")
	first := Sum32(input)
	for i := 0; i < 16; i++ {
		require.Equal(t, first, Sum32(input))
	}
}

func TestSum32NoAllocs(t *testing.T) {
	input := []byte("some key")
	allocs := testing.AllocsPerRun(8, func() {
		_ = Sum32(input)
	})
	require.Zero(t, allocs)
}

func BenchmarkSum32(b *testing.B) {
	input := []byte("a medium length key like a URL path /api/v1/users/123")
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Sum32(input)
	}
}
