// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package elfimage // import "github.com/barebox/barebox-sub023/elfimage"

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/barebox/barebox-sub023/source"
)

// zeroChunk is the largest block written at once when clearing BSS.
const zeroChunk = 4096

var zeroes [zeroChunk]byte

// loadSegments copies all claimed segments from the image source. Segments
// are visited in ascending file offset so the source is read strictly
// forward; sources like network transfers cannot seek back.
func (img *Image) loadSegments() (err error) {
	slices.SortStableFunc(img.segments, func(a, b *Segment) int {
		return cmp.Compare(a.Off, b.Off)
	})

	s, err := img.src.Open()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	for _, seg := range img.segments {
		if err = img.loadSegment(s, seg); err != nil {
			return err
		}
	}
	return nil
}

func (img *Image) loadSegment(s source.Stream, seg *Segment) error {
	if seg.Filesz > 0 {
		if _, err := s.Seek(int64(seg.Off), io.SeekStart); err != nil {
			return fmt.Errorf("failed to seek to segment at %#x: %w", seg.Off, err)
		}
		w := io.NewOffsetWriter(img.mem, int64(seg.Dest))
		if _, err := io.CopyN(w, s, int64(seg.Filesz)); err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return fmt.Errorf("failed to read segment at %#x (%#x bytes): %w",
				seg.Off, seg.Filesz, err)
		}
	}

	addr := seg.Dest + seg.Filesz
	for left := seg.Memsz - seg.Filesz; left > 0; {
		n := min(left, zeroChunk)
		if _, err := img.mem.WriteAt(zeroes[:n], int64(addr)); err != nil {
			return fmt.Errorf("failed to clear %#x bytes at %#x: %w", n, addr, err)
		}
		addr += n
		left -= n
	}
	return nil
}
