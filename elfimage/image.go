// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// elfimage loads ELF32/ELF64 executables (ET_EXEC) and position independent
// images (ET_DYN) into physical memory without any operating system support.
//
// Only program headers are used. Every PT_LOAD segment gets its own memory
// region reserved through a memory.Allocator, is filled from the image
// source in file offset order and has its BSS tail cleared. Position
// independent images are then relocated using the tables referenced from
// PT_DYNAMIC and an architecture specific reloc.Applier.
package elfimage // import "github.com/barebox/barebox-sub023/elfimage"

import (
	"debug/elf"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"

	"github.com/barebox/barebox-sub023/internal/log"
	"github.com/barebox/barebox-sub023/memory"
	"github.com/barebox/barebox-sub023/reloc"
	"github.com/barebox/barebox-sub023/source"
)

// Memory is the physical memory an image is loaded into.
type Memory interface {
	memory.Allocator
	memory.ReaderWriterAt
}

// RelocMode tells how link time addresses map to load addresses.
type RelocMode uint8

const (
	// NoRelocation: an ET_EXEC image without load address override. Segments
	// go to their p_paddr and no relocation is performed.
	NoRelocation RelocMode = iota
	// FixedZeroOffset: addresses are relocated, but the computed offset is zero.
	FixedZeroOffset
	// ComputedOffset: addresses are relocated by a nonzero offset.
	ComputedOffset
)

func (m RelocMode) String() string {
	switch m {
	case NoRelocation:
		return "none"
	case FixedZeroOffset:
		return "zero-offset"
	case ComputedOffset:
		return "offset"
	default:
		return fmt.Sprintf("RelocMode(%d)", uint8(m))
	}
}

type state uint8

const (
	stateOpened state = iota
	stateLoaded
	stateClosed
)

// Segment is a PT_LOAD program header together with its placement.
type Segment struct {
	elf.ProgHeader
	// Dest is the physical address of the first byte of the segment.
	Dest uint64

	region *memory.Region
}

// Region returns the reserved memory region, nil if the segment is only planned.
func (s *Segment) Region() *memory.Region {
	return s.region
}

// Option configures an Image at open time.
type Option func(*Image)

// WithLoadAddress overrides the address the lowest segment is placed at.
func WithLoadAddress(addr uint64) Option {
	return func(img *Image) {
		img.loadAddress = addr
		img.hasLoadAddress = true
	}
}

// WithApplier sets the architecture relocation code. The default is
// reloc.Unsupported.
func WithApplier(a reloc.Applier) Option {
	return func(img *Image) {
		img.applier = a
	}
}

// WithApplierFor selects the relocation code by the e_machine field of the
// image. It takes precedence over WithApplier.
func WithApplierFor(lookup func(elf.Machine) reloc.Applier) Option {
	return func(img *Image) {
		img.lookup = lookup
	}
}

// WithClass sets the ELF class accepted by the loader. The default is
// NativeClass.
func WithClass(class elf.Class) Option {
	return func(img *Image) {
		img.class = class
	}
}

// Image is an ELF image being loaded. Image is not safe for concurrent use.
type Image struct {
	src     source.Source
	mem     Memory
	applier reloc.Applier
	lookup  func(elf.Machine) reloc.Applier
	class   elf.Class

	// hdr owns the buffer holding the ELF header and program headers.
	hdr     accessor
	order   binary.ByteOrder
	typ     elf.Type
	machine elf.Machine

	// entry is adjusted by relocOffset once the image is loaded.
	entry uint64

	loadAddress    uint64
	hasLoadAddress bool

	mode RelocMode
	// relocOffset is added to link time virtual addresses. It is a two's
	// complement displacement and may be "negative".
	relocOffset uint64

	// low and high bound the claimed footprint, high is inclusive.
	low, high uint64
	segments  []*Segment

	state state
}

// Open opens the named ELF file on fs.
func Open(fs afero.Fs, filename string, mem Memory, opts ...Option) (*Image, error) {
	return OpenSource(source.File(fs, filename), mem, opts...)
}

// OpenBuffer opens an ELF image held in buf. buf must stay unmodified until
// the image is closed.
func OpenBuffer(buf []byte, mem Memory, opts ...Option) (*Image, error) {
	return OpenSource(source.Buffer("buffer", buf), mem, opts...)
}

// OpenSource opens an ELF image from src and validates its headers.
func OpenSource(src source.Source, mem Memory, opts ...Option) (*Image, error) {
	if mem == nil {
		return nil, errors.New("no memory to load into")
	}
	img := &Image{
		src:     src,
		mem:     mem,
		applier: reloc.Unsupported,
		class:   NativeClass,
	}
	for _, opt := range opts {
		opt(img)
	}

	hdr, err := readHeaders(src, img.class)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", src.Name(), err)
	}
	img.hdr = hdr
	img.order = hdr.ByteOrder()
	img.typ = hdr.Type()
	img.machine = hdr.Machine()
	img.entry = hdr.Entry()
	if img.lookup != nil {
		img.applier = img.lookup(img.machine)
	}

	log.Debugf("Opened %s: %v %v %v, %d program headers, entry %#x",
		src.Name(), img.class, img.typ, img.machine, hdr.Phnum(), img.entry)
	return img, nil
}

// Name returns the name of the image source.
func (img *Image) Name() string {
	if img.src == nil {
		return ""
	}
	return img.src.Name()
}

// Class returns the ELF class of the image.
func (img *Image) Class() elf.Class { return img.class }

// ByteOrder returns the byte order of the image.
func (img *Image) ByteOrder() binary.ByteOrder { return img.order }

// Type returns ET_EXEC or ET_DYN.
func (img *Image) Type() elf.Type { return img.typ }

// Machine returns the e_machine field.
func (img *Image) Machine() elf.Machine { return img.machine }

// Entry returns the entry point. After a successful Load it is the physical
// entry address of the relocated image.
func (img *Image) Entry() uint64 { return img.entry }

// RelocMode returns the relocation mode of the last load.
func (img *Image) RelocMode() RelocMode { return img.mode }

// RelocOffset returns the displacement applied to link time addresses.
func (img *Image) RelocOffset() int64 { return int64(img.relocOffset) }

// MemRange returns the first and last byte claimed by the loaded image.
func (img *Image) MemRange() (low, high uint64, ok bool) {
	if len(img.segments) == 0 {
		return 0, 0, false
	}
	return img.low, img.high, true
}

// Segments returns the claimed segments in load order.
func (img *Image) Segments() []Segment {
	segs := make([]Segment, 0, len(img.segments))
	for _, s := range img.segments {
		segs = append(segs, *s)
	}
	return segs
}

// Progs returns all program headers.
func (img *Image) Progs() []elf.ProgHeader {
	if img.hdr == nil {
		return nil
	}
	progs := make([]elf.ProgHeader, img.hdr.Phnum())
	for i := range progs {
		progs[i] = img.hdr.Prog(i)
	}
	return progs
}

// Load places all segments in memory and relocates the image. On failure
// every region claimed so far is released and the image may be loaded again.
func (img *Image) Load() (err error) {
	switch img.state {
	case stateLoaded:
		return ErrAlreadyLoaded
	case stateClosed:
		return ErrClosed
	}

	defer func() {
		if err == nil {
			return
		}
		if rerr := img.releaseSegments(); rerr != nil {
			log.Errorf("Failed to release segments of %s: %v", img.Name(), rerr)
		}
		img.entry = img.hdr.Entry()
	}()

	if err = img.requestSegments(); err != nil {
		return fmt.Errorf("failed to place %s: %w", img.Name(), err)
	}
	if err = img.loadSegments(); err != nil {
		return fmt.Errorf("failed to load %s: %w", img.Name(), err)
	}
	if err = img.relocate(); err != nil {
		return fmt.Errorf("failed to relocate %s: %w", img.Name(), err)
	}
	if img.mode != NoRelocation {
		img.entry = img.hdr.Entry() + img.relocOffset
	}

	img.state = stateLoaded
	log.Infof("Loaded %s at %#x-%#x (%d segments, %v), entry %#x",
		img.Name(), img.low, img.high, len(img.segments), img.mode, img.entry)
	return nil
}

// releaseSegments gives back every claimed region.
func (img *Image) releaseSegments() error {
	var result *multierror.Error
	for _, s := range img.segments {
		if s.region == nil {
			continue
		}
		if err := img.mem.Release(s.region); err != nil {
			result = multierror.Append(result, fmt.Errorf("segment at %#x: %w", s.Dest, err))
		}
		s.region = nil
	}
	img.segments = nil
	img.low, img.high = 0, 0
	return result.ErrorOrNil()
}

// Close releases all memory claimed by the image and drops the header
// buffer. It may be called in any state; calls after the first are no-ops.
func (img *Image) Close() error {
	if img.state == stateClosed {
		return nil
	}
	err := img.releaseSegments()
	img.hdr = nil
	img.src = nil
	img.state = stateClosed
	return err
}
