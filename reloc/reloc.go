// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// reloc applies dynamic relocations to an ELF image that has already been
// copied to its final physical location. Support for a CPU architecture is
// one Applier; images for architectures without one fail with
// ErrNotSupported.
package reloc // import "github.com/barebox/barebox-sub023/reloc"

import (
	"debug/elf"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/barebox/barebox-sub023/memory"
)

var (
	// ErrNotSupported is returned by Unsupported: no relocation code exists
	// for the image's architecture.
	ErrNotSupported = errors.New("relocation not supported on this architecture")
	// ErrUnknownType is returned for a relocation type the applier does not
	// handle. It indicates an image the architecture code cannot process,
	// not a missing architecture.
	ErrUnknownType = errors.New("unknown relocation type")
	// ErrUndefinedSymbol is returned when a symbolic relocation refers to an
	// undefined symbol. There is no dynamic linker to resolve it.
	ErrUndefinedSymbol = errors.New("relocation against undefined symbol")
	// ErrOutOfBounds is returned when a table or a relocated word lies
	// outside of the loaded image.
	ErrOutOfBounds = errors.New("relocation outside of image")
)

// Kind selects the on-disk relocation entry format.
type Kind uint8

const (
	// REL entries carry the addend in the relocated word.
	REL Kind = iota
	// RELA entries carry an explicit addend.
	RELA
)

func (k Kind) String() string {
	if k == RELA {
		return "RELA"
	}
	return "REL"
}

// EntrySize returns the size of one entry of kind k for class.
func EntrySize(class elf.Class, k Kind) uint64 {
	switch {
	case class == elf.ELFCLASS32 && k == REL:
		return 8
	case class == elf.ELFCLASS32:
		return 12
	case k == REL:
		return 16
	default:
		return 24
	}
}

// Table describes one relocation table of a loaded image. All addresses are
// physical, i.e. already adjusted by Offset.
type Table struct {
	Kind    Kind
	Class   elf.Class
	Order   binary.ByteOrder
	Machine elf.Machine

	// Addr is the address of the first entry.
	Addr uint64
	// Size is the total table size in bytes.
	Size uint64
	// EntSize is the size of one entry.
	EntSize uint64
	// SymTab is the address of the dynamic symbol table, zero if absent.
	SymTab uint64
	// Offset is the displacement between link time virtual addresses and
	// physical load addresses (two's complement).
	Offset uint64
	// Low and High bound the loaded image, High is inclusive. A zero High
	// disables the bounds check.
	Low, High uint64
}

// Entry is one decoded relocation.
type Entry struct {
	// Offset is the link time virtual address of the relocated word.
	Offset uint64
	Type   uint32
	Sym    uint32
	// Addend is zero for REL entries.
	Addend int64
}

// Where returns the physical address of the word e relocates.
func (t *Table) Where(e Entry) uint64 {
	return e.Offset + t.Offset
}

// Contains reports whether [addr, addr+n) lies inside the image bounds.
func (t *Table) Contains(addr, n uint64) bool {
	if t.High == 0 {
		return true
	}
	if n == 0 {
		return addr >= t.Low && addr <= t.High
	}
	end := addr + n - 1
	return addr >= t.Low && end >= addr && end <= t.High
}

// Len returns the number of entries in the table.
func (t *Table) Len() uint64 {
	if t.EntSize == 0 {
		return 0
	}
	return t.Size / t.EntSize
}

// Each decodes every entry of the table from mem and calls fn for it.
// Iteration stops at the first error.
func (t *Table) Each(mem memory.ReaderWriterAt, fn func(Entry) error) error {
	if !t.Contains(t.Addr, t.Size) {
		return fmt.Errorf("%s table at %#x size %#x: %w", t.Kind, t.Addr, t.Size, ErrOutOfBounds)
	}
	acc := memory.NewAccessor(mem, t.Order)
	buf := make([]byte, t.EntSize)
	for i := range t.Len() {
		addr := t.Addr + i*t.EntSize
		if err := acc.Read(addr, buf); err != nil {
			return fmt.Errorf("failed to read %s entry %d at %#x: %w", t.Kind, i, addr, err)
		}
		if err := fn(t.decode(buf)); err != nil {
			return fmt.Errorf("%s entry %d: %w", t.Kind, i, err)
		}
	}
	return nil
}

func (t *Table) decode(b []byte) Entry {
	var e Entry
	if t.Class == elf.ELFCLASS32 {
		info := t.Order.Uint32(b[4:])
		e = Entry{
			Offset: uint64(t.Order.Uint32(b)),
			Type:   elf.R_TYPE32(info),
			Sym:    elf.R_SYM32(info),
		}
		if t.Kind == RELA {
			e.Addend = int64(int32(t.Order.Uint32(b[8:])))
		}
		return e
	}
	info := t.Order.Uint64(b[8:])
	e = Entry{
		Offset: t.Order.Uint64(b),
		Type:   elf.R_TYPE64(info),
		Sym:    elf.R_SYM64(info),
	}
	if t.Kind == RELA {
		e.Addend = int64(t.Order.Uint64(b[16:]))
	}
	return e
}

// SymbolValue returns the relocated value of dynamic symbol idx.
func (t *Table) SymbolValue(mem memory.ReaderWriterAt, idx uint32) (uint64, error) {
	if t.SymTab == 0 {
		return 0, fmt.Errorf("symbol %d referenced without DT_SYMTAB: %w", idx, ErrUndefinedSymbol)
	}
	acc := memory.NewAccessor(mem, t.Order)
	var value uint64
	var shndx uint16
	if t.Class == elf.ELFCLASS32 {
		var sym [16]byte
		if err := acc.Read(t.SymTab+uint64(idx)*16, sym[:]); err != nil {
			return 0, err
		}
		value = uint64(t.Order.Uint32(sym[4:]))
		shndx = t.Order.Uint16(sym[14:])
	} else {
		var sym [24]byte
		if err := acc.Read(t.SymTab+uint64(idx)*24, sym[:]); err != nil {
			return 0, err
		}
		shndx = t.Order.Uint16(sym[6:])
		value = t.Order.Uint64(sym[8:])
	}
	if elf.SectionIndex(shndx) == elf.SHN_UNDEF {
		return 0, fmt.Errorf("symbol %d: %w", idx, ErrUndefinedSymbol)
	}
	if elf.SectionIndex(shndx) == elf.SHN_ABS {
		return value, nil
	}
	return value + t.Offset, nil
}

// Applier applies one relocation table to loaded image memory.
type Applier interface {
	Apply(mem memory.ReaderWriterAt, tab *Table) error
}

// ApplierFunc adapts a function to the Applier interface.
type ApplierFunc func(mem memory.ReaderWriterAt, tab *Table) error

// Apply implements Applier.
func (f ApplierFunc) Apply(mem memory.ReaderWriterAt, tab *Table) error {
	return f(mem, tab)
}

// Unsupported is the default Applier. It fails every table with ErrNotSupported.
var Unsupported Applier = ApplierFunc(func(_ memory.ReaderWriterAt, tab *Table) error {
	return fmt.Errorf("%s table for %v: %w", tab.Kind, tab.Machine, ErrNotSupported)
})

var appliers = map[elf.Machine]Applier{
	elf.EM_AARCH64: ApplierFunc(applyAArch64),
	elf.EM_X86_64:  ApplierFunc(applyX86_64),
	elf.EM_386:     ApplierFunc(apply386),
	elf.EM_ARM:     ApplierFunc(applyARM),
	elf.EM_RISCV:   ApplierFunc(applyRISCV),
}

// ForMachine returns the Applier for machine m, or Unsupported.
func ForMachine(m elf.Machine) Applier {
	if a, ok := appliers[m]; ok {
		return a
	}
	return Unsupported
}

// TypeName returns the symbolic name of relocation type t on machine m.
func TypeName(m elf.Machine, t uint32) string {
	switch m {
	case elf.EM_AARCH64:
		return elf.R_AARCH64(t).String()
	case elf.EM_X86_64:
		return elf.R_X86_64(t).String()
	case elf.EM_386:
		return elf.R_386(t).String()
	case elf.EM_ARM:
		return elf.R_ARM(t).String()
	case elf.EM_RISCV:
		return elf.R_RISCV(t).String()
	default:
		return fmt.Sprintf("R_%d", t)
	}
}
