// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package reloc // import "github.com/barebox/barebox-sub023/reloc"

import (
	"debug/elf"
	"fmt"

	"github.com/barebox/barebox-sub023/memory"
)

type operation uint8

const (
	// relative stores B + A.
	relative operation = iota
	// absolute stores S + A.
	absolute
)

// fixup patches the word relocated by e. For REL tables the addend is the
// current content of that word.
func fixup(mem memory.ReaderWriterAt, tab *Table, e Entry, bits int, op operation) error {
	acc := memory.NewAccessor(mem, tab.Order)
	where := tab.Where(e)
	if !tab.Contains(where, uint64(bits/8)) {
		return fmt.Errorf("word at %#x: %w", where, ErrOutOfBounds)
	}

	addend := uint64(e.Addend)
	if tab.Kind == REL {
		var err error
		if bits == 32 {
			var v uint32
			v, err = acc.Uint32(where)
			addend = uint64(v)
		} else {
			addend, err = acc.Uint64(where)
		}
		if err != nil {
			return err
		}
	}

	var value uint64
	switch op {
	case relative:
		value = tab.Offset + addend
	case absolute:
		var sym uint64
		if e.Sym != 0 {
			var err error
			if sym, err = tab.SymbolValue(mem, e.Sym); err != nil {
				return err
			}
		}
		value = sym + addend
	}

	if bits == 32 {
		return acc.PutUint32(where, uint32(value))
	}
	return acc.PutUint64(where, value)
}

func unknown(e Entry, name fmt.Stringer) error {
	return fmt.Errorf("%v at %#x: %w", name, e.Offset, ErrUnknownType)
}

func applyAArch64(mem memory.ReaderWriterAt, tab *Table) error {
	return tab.Each(mem, func(e Entry) error {
		switch t := elf.R_AARCH64(e.Type); t {
		case elf.R_AARCH64_NONE:
			return nil
		case elf.R_AARCH64_RELATIVE:
			return fixup(mem, tab, e, 64, relative)
		case elf.R_AARCH64_ABS64:
			return fixup(mem, tab, e, 64, absolute)
		default:
			return unknown(e, t)
		}
	})
}

func applyX86_64(mem memory.ReaderWriterAt, tab *Table) error {
	return tab.Each(mem, func(e Entry) error {
		switch t := elf.R_X86_64(e.Type); t {
		case elf.R_X86_64_NONE:
			return nil
		case elf.R_X86_64_RELATIVE:
			return fixup(mem, tab, e, 64, relative)
		case elf.R_X86_64_64:
			return fixup(mem, tab, e, 64, absolute)
		default:
			return unknown(e, t)
		}
	})
}

func apply386(mem memory.ReaderWriterAt, tab *Table) error {
	return tab.Each(mem, func(e Entry) error {
		switch t := elf.R_386(e.Type); t {
		case elf.R_386_NONE:
			return nil
		case elf.R_386_RELATIVE:
			return fixup(mem, tab, e, 32, relative)
		case elf.R_386_32:
			return fixup(mem, tab, e, 32, absolute)
		default:
			return unknown(e, t)
		}
	})
}

func applyARM(mem memory.ReaderWriterAt, tab *Table) error {
	return tab.Each(mem, func(e Entry) error {
		switch t := elf.R_ARM(e.Type); t {
		case elf.R_ARM_NONE:
			return nil
		case elf.R_ARM_RELATIVE:
			return fixup(mem, tab, e, 32, relative)
		case elf.R_ARM_ABS32:
			return fixup(mem, tab, e, 32, absolute)
		default:
			return unknown(e, t)
		}
	})
}

// applyRISCV serves both RV32 and RV64; the word size follows the ELF class.
func applyRISCV(mem memory.ReaderWriterAt, tab *Table) error {
	bits := 64
	if tab.Class == elf.ELFCLASS32 {
		bits = 32
	}
	return tab.Each(mem, func(e Entry) error {
		switch t := elf.R_RISCV(e.Type); t {
		case elf.R_RISCV_NONE:
			return nil
		case elf.R_RISCV_RELATIVE:
			return fixup(mem, tab, e, bits, relative)
		case elf.R_RISCV_32:
			return fixup(mem, tab, e, 32, absolute)
		case elf.R_RISCV_64:
			return fixup(mem, tab, e, 64, absolute)
		default:
			return unknown(e, t)
		}
	})
}
