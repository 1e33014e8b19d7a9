// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package elfimage // import "github.com/barebox/barebox-sub023/elfimage"

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/barebox/barebox-sub023/source"
)

// maxHeaderSize bounds the ELF header plus program header table we are
// willing to buffer.
const maxHeaderSize = 1 << 20

var elfMagic = []byte{0x7f, 'E', 'L', 'F'}

// accessor gives word width independent access to the ELF header and the
// program headers held in one buffer. There is one implementation per ELF
// class; no other code looks at the class to decode structures.
type accessor interface {
	Class() elf.Class
	ByteOrder() binary.ByteOrder
	Type() elf.Type
	Machine() elf.Machine
	Entry() uint64
	Phoff() uint64
	Phnum() int
	Phentsize() int
	// Prog decodes program header i. The caller guarantees i < Phnum().
	Prog(i int) elf.ProgHeader
	// DynSize is the size of one dynamic section entry.
	DynSize() int
	// Dyn decodes one dynamic section entry from b.
	Dyn(b []byte) (elf.DynTag, uint64)
}

type header struct {
	buf   []byte
	order binary.ByteOrder
}

func (h *header) ByteOrder() binary.ByteOrder { return h.order }

func (h *header) Type() elf.Type {
	return elf.Type(h.order.Uint16(h.buf[16:]))
}

func (h *header) Machine() elf.Machine {
	return elf.Machine(h.order.Uint16(h.buf[18:]))
}

// elf32 decodes Elf32_Ehdr / Elf32_Phdr / Elf32_Dyn.
type elf32 struct {
	header
}

func (e *elf32) Class() elf.Class { return elf.ELFCLASS32 }
func (e *elf32) Entry() uint64    { return uint64(e.order.Uint32(e.buf[24:])) }
func (e *elf32) Phoff() uint64    { return uint64(e.order.Uint32(e.buf[28:])) }
func (e *elf32) Phentsize() int   { return int(e.order.Uint16(e.buf[42:])) }
func (e *elf32) Phnum() int       { return int(e.order.Uint16(e.buf[44:])) }
func (e *elf32) DynSize() int     { return 8 }

func (e *elf32) Prog(i int) elf.ProgHeader {
	p := e.buf[e.Phoff()+uint64(i*e.Phentsize()):]
	return elf.ProgHeader{
		Type:   elf.ProgType(e.order.Uint32(p[0:])),
		Off:    uint64(e.order.Uint32(p[4:])),
		Vaddr:  uint64(e.order.Uint32(p[8:])),
		Paddr:  uint64(e.order.Uint32(p[12:])),
		Filesz: uint64(e.order.Uint32(p[16:])),
		Memsz:  uint64(e.order.Uint32(p[20:])),
		Flags:  elf.ProgFlag(e.order.Uint32(p[24:])),
		Align:  uint64(e.order.Uint32(p[28:])),
	}
}

func (e *elf32) Dyn(b []byte) (elf.DynTag, uint64) {
	return elf.DynTag(int32(e.order.Uint32(b))), uint64(e.order.Uint32(b[4:]))
}

// elf64 decodes Elf64_Ehdr / Elf64_Phdr / Elf64_Dyn.
type elf64 struct {
	header
}

func (e *elf64) Class() elf.Class { return elf.ELFCLASS64 }
func (e *elf64) Entry() uint64    { return e.order.Uint64(e.buf[24:]) }
func (e *elf64) Phoff() uint64    { return e.order.Uint64(e.buf[32:]) }
func (e *elf64) Phentsize() int   { return int(e.order.Uint16(e.buf[54:])) }
func (e *elf64) Phnum() int       { return int(e.order.Uint16(e.buf[56:])) }
func (e *elf64) DynSize() int     { return 16 }

func (e *elf64) Prog(i int) elf.ProgHeader {
	p := e.buf[e.Phoff()+uint64(i*e.Phentsize()):]
	return elf.ProgHeader{
		Type:   elf.ProgType(e.order.Uint32(p[0:])),
		Flags:  elf.ProgFlag(e.order.Uint32(p[4:])),
		Off:    e.order.Uint64(p[8:]),
		Vaddr:  e.order.Uint64(p[16:]),
		Paddr:  e.order.Uint64(p[24:]),
		Filesz: e.order.Uint64(p[32:]),
		Memsz:  e.order.Uint64(p[40:]),
		Align:  e.order.Uint64(p[48:]),
	}
}

func (e *elf64) Dyn(b []byte) (elf.DynTag, uint64) {
	return elf.DynTag(int64(e.order.Uint64(b))), e.order.Uint64(b[8:])
}

// ehdrSize returns the ELF header size of class.
func ehdrSize(class elf.Class) int {
	if class == elf.ELFCLASS32 {
		return 52
	}
	return 64
}

// phdrSize returns the program header entry size of class.
func phdrSize(class elf.Class) int {
	if class == elf.ELFCLASS32 {
		return 32
	}
	return 56
}

func newAccessor(class elf.Class, order binary.ByteOrder, buf []byte) accessor {
	h := header{buf: buf, order: order}
	if class == elf.ELFCLASS32 {
		return &elf32{h}
	}
	return &elf64{h}
}

// checkIdent validates the identification bytes and returns the class and
// byte order of the image. want is the class this loader accepts.
func checkIdent(ident []byte, want elf.Class) (elf.Class, binary.ByteOrder, error) {
	if len(ident) < elf.EI_NIDENT || !bytes.Equal(ident[:len(elfMagic)], elfMagic) {
		return 0, nil, fmt.Errorf("%w: bad magic", ErrInvalidFormat)
	}

	class := elf.Class(ident[elf.EI_CLASS])
	if class != elf.ELFCLASS32 && class != elf.ELFCLASS64 {
		return 0, nil, fmt.Errorf("%w: unknown class %v", ErrInvalidFormat, class)
	}
	if class != want {
		return 0, nil, fmt.Errorf("%w: %v image, expected %v", ErrInvalidFormat, class, want)
	}

	var order binary.ByteOrder
	switch elf.Data(ident[elf.EI_DATA]) {
	case elf.ELFDATA2LSB:
		order = binary.LittleEndian
	case elf.ELFDATA2MSB:
		order = binary.BigEndian
	default:
		return 0, nil, fmt.Errorf("%w: unknown data encoding %v",
			ErrInvalidFormat, elf.Data(ident[elf.EI_DATA]))
	}

	if v := elf.Version(ident[elf.EI_VERSION]); v != elf.EV_CURRENT {
		return 0, nil, fmt.Errorf("%w: unsupported version %v", ErrInvalidFormat, v)
	}
	return class, order, nil
}

// checkHeader validates the fields of a decoded ELF header.
func checkHeader(h accessor) error {
	if t := h.Type(); t != elf.ET_EXEC && t != elf.ET_DYN {
		return fmt.Errorf("%w: unsupported type %v", ErrInvalidFormat, t)
	}
	if h.Phnum() == 0 {
		return fmt.Errorf("%w: no program headers", ErrInvalidFormat)
	}
	if h.Phentsize() != phdrSize(h.Class()) {
		return fmt.Errorf("%w: program header size %d, expected %d",
			ErrInvalidFormat, h.Phentsize(), phdrSize(h.Class()))
	}
	if h.Phoff() < uint64(ehdrSize(h.Class())) || h.Phoff() > maxHeaderSize {
		return fmt.Errorf("%w: program headers at %#x", ErrInvalidFormat, h.Phoff())
	}
	return nil
}

// readHeaders reads and validates the ELF header and the program header
// table of src. The returned accessor owns a buffer covering both.
func readHeaders(src source.Source, want elf.Class) (accessor, error) {
	var ident [elf.EI_NIDENT]byte
	if err := readFull(src, ident[:]); err != nil {
		return nil, err
	}
	class, order, err := checkIdent(ident[:], want)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, ehdrSize(class))
	if err = readFull(src, buf); err != nil {
		return nil, err
	}
	h := newAccessor(class, order, buf)
	if err = checkHeader(h); err != nil {
		return nil, err
	}

	size := h.Phoff() + uint64(h.Phnum()*h.Phentsize())
	if size > maxHeaderSize {
		return nil, fmt.Errorf("%w: program header table too large (%d bytes)",
			ErrInvalidFormat, size)
	}
	buf = make([]byte, size)
	if err = readFull(src, buf); err != nil {
		return nil, err
	}
	return newAccessor(class, order, buf), nil
}

// readFull reads len(p) bytes from the start of src. A source shorter than
// p is a format error.
func readFull(src source.Source, p []byte) error {
	err := source.ReadAt(src, p, 0)
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: truncated image: %w", ErrInvalidFormat, err)
	}
	return err
}
