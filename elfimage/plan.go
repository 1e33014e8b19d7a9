// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package elfimage // import "github.com/barebox/barebox-sub023/elfimage"

import (
	"debug/elf"
	"fmt"

	"github.com/barebox/barebox-sub023/internal/log"
	"github.com/barebox/barebox-sub023/memory"
)

// computeLoadOffset derives the relocation mode and offset from the PT_LOAD
// headers and the optional load address.
//
// ET_EXEC images are linked for their final location, so without an
// override they are placed at p_paddr unmodified. Otherwise the lowest
// virtual address is moved to the override, or for ET_DYN images without
// override to the lowest physical address.
func (img *Image) computeLoadOffset() (RelocMode, uint64, error) {
	minVaddr, minPaddr := ^uint64(0), ^uint64(0)
	found := false
	for i := range img.hdr.Phnum() {
		ph := img.hdr.Prog(i)
		if ph.Type != elf.PT_LOAD {
			continue
		}
		found = true
		minVaddr = min(minVaddr, ph.Vaddr)
		minPaddr = min(minPaddr, ph.Paddr)
	}
	if !found {
		return NoRelocation, 0, fmt.Errorf("%w: no PT_LOAD segments", ErrInvalidFormat)
	}

	var base uint64
	switch {
	case img.hasLoadAddress:
		base = img.loadAddress
	case img.typ == elf.ET_EXEC:
		return NoRelocation, 0, nil
	default:
		base = minPaddr
	}

	offset := base - minVaddr
	if offset == 0 {
		return FixedZeroOffset, 0, nil
	}
	return ComputedOffset, offset, nil
}

// destination returns the physical address of program header ph.
func destination(mode RelocMode, offset uint64, ph *elf.ProgHeader) uint64 {
	if mode == NoRelocation {
		return ph.Paddr
	}
	return ph.Vaddr + offset
}

// planSegment computes the placement of ph. It returns nil for headers that
// occupy no memory.
func planSegment(mode RelocMode, offset uint64, ph *elf.ProgHeader) (*Segment, error) {
	if ph.Type != elf.PT_LOAD || ph.Memsz == 0 {
		return nil, nil
	}
	if ph.Filesz > ph.Memsz {
		return nil, fmt.Errorf("%w: segment at offset %#x has filesz %#x > memsz %#x",
			ErrInvalidFormat, ph.Off, ph.Filesz, ph.Memsz)
	}
	dest := destination(mode, offset, ph)
	if dest+ph.Memsz-1 < dest {
		return nil, fmt.Errorf("%w: segment at %#x size %#x wraps the address space",
			ErrInvalidFormat, dest, ph.Memsz)
	}
	return &Segment{ProgHeader: *ph, Dest: dest}, nil
}

// requestSegment reserves memory for seg and records it.
func (img *Image) requestSegment(seg *Segment) error {
	region, err := img.mem.Request(img.Name(), seg.Dest, seg.Memsz,
		memory.PurposeLoaderCode, memory.AccessRWX)
	if err != nil {
		return fmt.Errorf("%w at %#x size %#x: %w", ErrOutOfMemory, seg.Dest, seg.Memsz, err)
	}
	seg.region = region

	end := seg.Dest + seg.Memsz - 1
	if len(img.segments) == 0 {
		img.low, img.high = seg.Dest, end
	} else {
		img.low = min(img.low, seg.Dest)
		img.high = max(img.high, end)
	}
	img.segments = append(img.segments, seg)

	log.Debugf("Segment offset %#x filesz %#x memsz %#x -> %#x",
		seg.Off, seg.Filesz, seg.Memsz, seg.Dest)
	return nil
}

// requestSegments computes the load offset and reserves memory for every
// PT_LOAD segment.
func (img *Image) requestSegments() (err error) {
	if img.mode, img.relocOffset, err = img.computeLoadOffset(); err != nil {
		return err
	}
	for i := range img.hdr.Phnum() {
		ph := img.hdr.Prog(i)
		seg, err := planSegment(img.mode, img.relocOffset, &ph)
		if err != nil {
			return err
		}
		if seg == nil {
			continue
		}
		if err = img.requestSegment(seg); err != nil {
			return err
		}
	}
	return nil
}

// Plan returns where the segments would be placed by Load, without
// reserving memory.
func (img *Image) Plan() ([]Segment, RelocMode, int64, error) {
	if img.hdr == nil {
		return nil, NoRelocation, 0, ErrClosed
	}
	mode, offset, err := img.computeLoadOffset()
	if err != nil {
		return nil, mode, 0, err
	}

	var segs []Segment
	for i := range img.hdr.Phnum() {
		ph := img.hdr.Prog(i)
		seg, err := planSegment(mode, offset, &ph)
		if err != nil {
			return nil, mode, 0, err
		}
		if seg != nil {
			segs = append(segs, *seg)
		}
	}
	return segs, mode, int64(offset), nil
}
