// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package memory // import "github.com/barebox/barebox-sub023/memory"

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/hashicorp/go-multierror"
)

// Bank is one contiguous range of RAM.
type Bank struct {
	Name  string
	Start uint64

	data    []byte
	release func() error

	// claimed is kept sorted by start address.
	claimed []*Region
}

// Size returns the bank size in bytes.
func (b *Bank) Size() uint64 {
	return uint64(len(b.data))
}

// End returns the address of the last byte of the bank.
func (b *Bank) End() uint64 {
	return b.Start + b.Size() - 1
}

func (b *Bank) covers(start, size uint64) bool {
	return start >= b.Start && start-b.Start <= b.Size() && size <= b.Size()-(start-b.Start)
}

// Map is a simulated physical address space made of RAM banks.
//
// Map is not safe for concurrent use. The loader runs single threaded.
type Map struct {
	banks []*Bank
}

// NewMap returns an empty memory map.
func NewMap() *Map {
	return &Map{}
}

// AddBank adds a RAM bank. Banks must not overlap.
func (m *Map) AddBank(name string, start, size uint64) (*Bank, error) {
	if size == 0 || start+size-1 < start {
		return nil, fmt.Errorf("bank %s at %#x: %w", name, start, ErrInvalidSize)
	}
	if size != uint64(int(size)) {
		return nil, fmt.Errorf("bank %s size %#x too large: %w", name, size, ErrInvalidSize)
	}
	end := start + size - 1
	for _, b := range m.banks {
		if start <= b.End() && b.Start <= end {
			return nil, fmt.Errorf("bank %s overlaps bank %s: %w", name, b.Name, ErrBusy)
		}
	}

	data, release, err := allocBacking(int(size))
	if err != nil {
		return nil, fmt.Errorf("failed to allocate backing for bank %s: %w", name, err)
	}
	b := &Bank{
		Name:    name,
		Start:   start,
		data:    data,
		release: release,
	}
	idx, _ := slices.BinarySearchFunc(m.banks, start, func(b *Bank, s uint64) int {
		return cmp.Compare(b.Start, s)
	})
	m.banks = slices.Insert(m.banks, idx, b)
	return b, nil
}

// Banks returns the RAM banks ordered by start address.
func (m *Map) Banks() []*Bank {
	return slices.Clone(m.banks)
}

func (m *Map) bankFor(start, size uint64) *Bank {
	for _, b := range m.banks {
		if b.covers(start, size) {
			return b
		}
	}
	return nil
}

// Request claims [start, start+size) exclusively.
func (m *Map) Request(name string, start, size uint64, purpose Purpose,
	access Access) (*Region, error) {
	if size == 0 || start+size-1 < start {
		return nil, fmt.Errorf("request %s at %#x size %#x: %w", name, start, size, ErrInvalidSize)
	}
	b := m.bankFor(start, size)
	if b == nil {
		return nil, fmt.Errorf("request %s at %#x size %#x: %w", name, start, size, ErrOutOfRange)
	}

	end := start + size - 1
	idx, _ := slices.BinarySearchFunc(b.claimed, start, func(r *Region, s uint64) int {
		return cmp.Compare(r.Start, s)
	})
	if idx > 0 && b.claimed[idx-1].End() >= start {
		return nil, fmt.Errorf("request %s at %#x conflicts with %s: %w",
			name, start, b.claimed[idx-1].Name, ErrBusy)
	}
	if idx < len(b.claimed) && b.claimed[idx].Start <= end {
		return nil, fmt.Errorf("request %s at %#x conflicts with %s: %w",
			name, start, b.claimed[idx].Name, ErrBusy)
	}

	r := &Region{
		Name:    name,
		Start:   start,
		Size:    size,
		Purpose: purpose,
		Access:  access,
		bank:    b,
	}
	b.claimed = slices.Insert(b.claimed, idx, r)
	return r, nil
}

// Release gives back a region obtained from Request.
func (m *Map) Release(r *Region) error {
	if r == nil || r.bank == nil {
		return ErrNotClaimed
	}
	b := r.bank
	idx := slices.Index(b.claimed, r)
	if idx < 0 {
		return fmt.Errorf("release %s at %#x: %w", r.Name, r.Start, ErrNotClaimed)
	}
	b.claimed = slices.Delete(b.claimed, idx, idx+1)
	r.bank = nil
	return nil
}

// Regions returns all claimed regions ordered by address.
func (m *Map) Regions() []*Region {
	var regions []*Region
	for _, b := range m.banks {
		regions = append(regions, b.claimed...)
	}
	return regions
}

// slice returns the backing bytes of [addr, addr+n).
func (m *Map) slice(addr uint64, n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	b := m.bankFor(addr, uint64(n))
	if b == nil {
		return nil, fmt.Errorf("access at %#x size %#x: %w", addr, n, ErrOutOfRange)
	}
	off := addr - b.Start
	return b.data[off : off+uint64(n)], nil
}

// ReadAt implements io.ReaderAt. The offset is a physical address; it is
// reinterpreted as unsigned so that the full 64-bit address space is reachable.
func (m *Map) ReadAt(p []byte, off int64) (int, error) {
	src, err := m.slice(uint64(off), len(p))
	if err != nil {
		return 0, err
	}
	return copy(p, src), nil
}

// WriteAt implements io.WriterAt with the same addressing as ReadAt.
func (m *Map) WriteAt(p []byte, off int64) (int, error) {
	dst, err := m.slice(uint64(off), len(p))
	if err != nil {
		return 0, err
	}
	return copy(dst, p), nil
}

// Fill sets [addr, addr+size) to val.
func (m *Map) Fill(addr, size uint64, val byte) error {
	if size != uint64(int(size)) {
		return fmt.Errorf("fill at %#x size %#x: %w", addr, size, ErrInvalidSize)
	}
	dst, err := m.slice(addr, int(size))
	if err != nil {
		return err
	}
	for i := range dst {
		dst[i] = val
	}
	return nil
}

// Close drops all claims and frees the backing storage of every bank.
func (m *Map) Close() error {
	var result *multierror.Error
	for _, b := range m.banks {
		for _, r := range b.claimed {
			r.bank = nil
		}
		b.claimed = nil
		if b.release != nil {
			if err := b.release(); err != nil {
				result = multierror.Append(result, fmt.Errorf("bank %s: %w", b.Name, err))
			}
		}
		b.data = nil
	}
	m.banks = nil
	return result.ErrorOrNil()
}
