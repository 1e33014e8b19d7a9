// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package testsupport // import "github.com/barebox/barebox-sub023/testsupport"

import (
	"bytes"
	"io"
	"math/rand/v2"
	"testing"
)

// ValidateReadAtWrapperTransparency checks that testee provides a transparent
// random access view into reference, including truncated reads at the end.
func ValidateReadAtWrapperTransparency(
	t testing.TB, iterations uint, reference []byte, testee io.ReaderAt) {
	t.Helper()
	size := uint64(len(reference))

	r := rand.New(rand.NewPCG(0, 0)) //nolint:gosec
	for range iterations {
		// Over-reads are allowed on purpose.
		length := r.Uint64() % size
		start := r.Uint64() % size

		buf := make([]byte, length)
		n, err := testee.ReadAt(buf, int64(start))

		want := min(size-start, length)
		switch {
		case want != length && err != io.EOF:
			t.Fatalf("read of %d at %d: expected EOF, got %v", length, start, err)
		case want == length && err != nil:
			t.Fatalf("read of %d at %d failed: %v", length, start, err)
		case uint64(n) != want:
			t.Fatalf("read of %d at %d: got %d bytes, expected %d", length, start, n, want)
		}
		if !bytes.Equal(buf[:want], reference[start:][:want]) {
			t.Fatalf("data mismatch at %d", start)
		}
	}
}

// GenerateTestInputFile returns outputSize bytes repeating the sequence 0..seqLen-1.
func GenerateTestInputFile(seqLen uint8, outputSize uint) []byte {
	out := make([]byte, 0, outputSize)
	for i := range outputSize {
		out = append(out, byte(i%uint(seqLen)))
	}
	return out
}
