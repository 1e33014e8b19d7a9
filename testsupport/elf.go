// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package testsupport // import "github.com/barebox/barebox-sub023/testsupport"

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
)

// Segment describes one program header of a synthetic ELF image.
type Segment struct {
	Type  elf.ProgType
	Flags elf.ProgFlag
	Vaddr uint64
	Paddr uint64
	// Data is the file backed part of the segment.
	Data []byte
	// Memsz defaults to len(Data) when zero.
	Memsz uint64
	// Offset places Data at a fixed file offset. When zero the data is
	// appended after the previous segment.
	Offset uint64
	Align  uint64
}

// Image describes a synthetic ELF image with program headers only.
type Image struct {
	Class    elf.Class
	Order    binary.ByteOrder
	Type     elf.Type
	Machine  elf.Machine
	Entry    uint64
	Segments []Segment
}

// HeaderSize returns the ELF header size for class.
func HeaderSize(class elf.Class) int {
	if class == elf.ELFCLASS32 {
		return 52
	}
	return 64
}

// ProgSize returns the program header entry size for class.
func ProgSize(class elf.Class) int {
	if class == elf.ELFCLASS32 {
		return 32
	}
	return 56
}

func (img *Image) order() binary.ByteOrder {
	if img.Order == nil {
		return binary.LittleEndian
	}
	return img.Order
}

// Bytes serializes the image. Program headers directly follow the ELF header.
func (img *Image) Bytes() []byte {
	order := img.order()
	class := img.Class
	if class == elf.ELFCLASSNONE {
		class = elf.ELFCLASS64
	}

	phoff := uint64(HeaderSize(class))
	next := phoff + uint64(len(img.Segments)*ProgSize(class))
	next = (next + 15) &^ 15

	offsets := make([]uint64, len(img.Segments))
	end := next
	for i, s := range img.Segments {
		off := s.Offset
		if off == 0 {
			off = next
			next = (off + uint64(len(s.Data)) + 15) &^ 15
		}
		offsets[i] = off
		end = max(end, off+uint64(len(s.Data)))
	}

	var hdr bytes.Buffer
	ident := [elf.EI_NIDENT]byte{0x7f, 'E', 'L', 'F', byte(class), byte(dataOf(order)),
		byte(elf.EV_CURRENT)}
	if class == elf.ELFCLASS32 {
		write(&hdr, order, elf.Header32{
			Ident:     ident,
			Type:      uint16(img.Type),
			Machine:   uint16(img.Machine),
			Version:   uint32(elf.EV_CURRENT),
			Entry:     uint32(img.Entry),
			Phoff:     uint32(phoff),
			Ehsize:    uint16(HeaderSize(class)),
			Phentsize: uint16(ProgSize(class)),
			Phnum:     uint16(len(img.Segments)),
		})
	} else {
		write(&hdr, order, elf.Header64{
			Ident:     ident,
			Type:      uint16(img.Type),
			Machine:   uint16(img.Machine),
			Version:   uint32(elf.EV_CURRENT),
			Entry:     img.Entry,
			Phoff:     phoff,
			Ehsize:    uint16(HeaderSize(class)),
			Phentsize: uint16(ProgSize(class)),
			Phnum:     uint16(len(img.Segments)),
		})
	}

	for i, s := range img.Segments {
		memsz := s.Memsz
		if memsz == 0 {
			memsz = uint64(len(s.Data))
		}
		if class == elf.ELFCLASS32 {
			write(&hdr, order, elf.Prog32{
				Type:   uint32(s.Type),
				Off:    uint32(offsets[i]),
				Vaddr:  uint32(s.Vaddr),
				Paddr:  uint32(s.Paddr),
				Filesz: uint32(len(s.Data)),
				Memsz:  uint32(memsz),
				Flags:  uint32(s.Flags),
				Align:  uint32(s.Align),
			})
		} else {
			write(&hdr, order, elf.Prog64{
				Type:   uint32(s.Type),
				Flags:  uint32(s.Flags),
				Off:    offsets[i],
				Vaddr:  s.Vaddr,
				Paddr:  s.Paddr,
				Filesz: uint64(len(s.Data)),
				Memsz:  memsz,
				Align:  s.Align,
			})
		}
	}

	out := make([]byte, end)
	copy(out, hdr.Bytes())
	for i, s := range img.Segments {
		copy(out[offsets[i]:], s.Data)
	}
	return out
}

func dataOf(order binary.ByteOrder) elf.Data {
	if order == binary.BigEndian {
		return elf.ELFDATA2MSB
	}
	return elf.ELFDATA2LSB
}

func write(buf *bytes.Buffer, order binary.ByteOrder, v any) {
	if err := binary.Write(buf, order, v); err != nil {
		panic(err)
	}
}

// Dyn is one dynamic section entry.
type Dyn struct {
	Tag elf.DynTag
	Val uint64
}

// EncodeDynamic serializes entries followed by a DT_NULL terminator.
func EncodeDynamic(class elf.Class, order binary.ByteOrder, entries ...Dyn) []byte {
	var buf bytes.Buffer
	for _, d := range append(entries, Dyn{Tag: elf.DT_NULL}) {
		if class == elf.ELFCLASS32 {
			write(&buf, order, elf.Dyn32{Tag: int32(d.Tag), Val: uint32(d.Val)})
		} else {
			write(&buf, order, elf.Dyn64{Tag: int64(d.Tag), Val: d.Val})
		}
	}
	return buf.Bytes()
}

// Rel is one relocation entry. Addend is ignored for REL tables.
type Rel struct {
	Offset uint64
	Type   uint32
	Sym    uint32
	Addend int64
}

// EncodeRel serializes a REL table, or a RELA table when withAddend is set.
func EncodeRel(class elf.Class, order binary.ByteOrder, withAddend bool, entries ...Rel) []byte {
	var buf bytes.Buffer
	for _, r := range entries {
		switch {
		case class == elf.ELFCLASS32 && withAddend:
			write(&buf, order, elf.Rela32{Off: uint32(r.Offset),
				Info: elf.R_INFO32(r.Sym, r.Type), Addend: int32(r.Addend)})
		case class == elf.ELFCLASS32:
			write(&buf, order, elf.Rel32{Off: uint32(r.Offset),
				Info: elf.R_INFO32(r.Sym, r.Type)})
		case withAddend:
			write(&buf, order, elf.Rela64{Off: r.Offset,
				Info: elf.R_INFO(r.Sym, r.Type), Addend: r.Addend})
		default:
			write(&buf, order, elf.Rel64{Off: r.Offset, Info: elf.R_INFO(r.Sym, r.Type)})
		}
	}
	return buf.Bytes()
}

// Sym is one dynamic symbol table entry.
type Sym struct {
	Value uint64
	Shndx elf.SectionIndex
}

// EncodeSymbols serializes a symbol table. A null symbol is not added
// implicitly.
func EncodeSymbols(class elf.Class, order binary.ByteOrder, syms ...Sym) []byte {
	var buf bytes.Buffer
	for _, s := range syms {
		if class == elf.ELFCLASS32 {
			write(&buf, order, elf.Sym32{Value: uint32(s.Value), Shndx: uint16(s.Shndx)})
		} else {
			write(&buf, order, elf.Sym64{Value: s.Value, Shndx: uint16(s.Shndx)})
		}
	}
	return buf.Bytes()
}
