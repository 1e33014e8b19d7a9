// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package reloc

import (
	"debug/elf"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barebox/barebox-sub023/memory"
	"github.com/barebox/barebox-sub023/testsupport"
)

const (
	ramBase = 0x80000000
	// loadOffset is the displacement of an image linked at zero.
	loadOffset = ramBase
)

func newRAM(t *testing.T) *memory.Map {
	t.Helper()
	m := memory.NewMap()
	_, err := m.AddBank("ram", ramBase, 0x10000)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func put(t *testing.T, m *memory.Map, addr uint64, data []byte) {
	t.Helper()
	_, err := m.WriteAt(data, int64(addr))
	require.NoError(t, err)
}

func TestEntrySize(t *testing.T) {
	assert.Equal(t, uint64(8), EntrySize(elf.ELFCLASS32, REL))
	assert.Equal(t, uint64(12), EntrySize(elf.ELFCLASS32, RELA))
	assert.Equal(t, uint64(16), EntrySize(elf.ELFCLASS64, REL))
	assert.Equal(t, uint64(24), EntrySize(elf.ELFCLASS64, RELA))
}

func TestUnsupported(t *testing.T) {
	m := newRAM(t)
	tab := &Table{Kind: RELA, Class: elf.ELFCLASS64, Order: binary.LittleEndian,
		Machine: elf.EM_MIPS}

	err := ForMachine(elf.EM_MIPS).Apply(m, tab)
	require.ErrorIs(t, err, ErrNotSupported)
	assert.NotErrorIs(t, err, ErrUnknownType)
}

func TestAArch64(t *testing.T) {
	m := newRAM(t)
	le := binary.LittleEndian
	acc := memory.NewAccessor(m, le)

	const (
		tabAddr = ramBase + 0x100
		symAddr = ramBase + 0x200
	)
	put(t, m, tabAddr, testsupport.EncodeRel(elf.ELFCLASS64, le, true,
		testsupport.Rel{Offset: 0x1000, Type: uint32(elf.R_AARCH64_RELATIVE), Addend: 0x1234},
		testsupport.Rel{Offset: 0x1008, Type: uint32(elf.R_AARCH64_ABS64), Sym: 1, Addend: 8},
		testsupport.Rel{Offset: 0x1010, Type: uint32(elf.R_AARCH64_ABS64), Sym: 2, Addend: 1},
		testsupport.Rel{Type: uint32(elf.R_AARCH64_NONE)},
	))
	put(t, m, symAddr, testsupport.EncodeSymbols(elf.ELFCLASS64, le,
		testsupport.Sym{},
		testsupport.Sym{Value: 0x2000, Shndx: 5},
		testsupport.Sym{Value: 0x42, Shndx: elf.SHN_ABS},
	))

	tab := &Table{
		Kind:    RELA,
		Class:   elf.ELFCLASS64,
		Order:   le,
		Machine: elf.EM_AARCH64,
		Addr:    tabAddr,
		Size:    4 * 24,
		EntSize: 24,
		SymTab:  symAddr,
		Offset:  loadOffset,
	}
	require.NoError(t, ForMachine(elf.EM_AARCH64).Apply(m, tab))

	v, err := acc.Uint64(ramBase + 0x1000)
	require.NoError(t, err)
	assert.Equal(t, uint64(ramBase+0x1234), v)

	v, err = acc.Uint64(ramBase + 0x1008)
	require.NoError(t, err)
	assert.Equal(t, uint64(ramBase+0x2008), v)

	v, err = acc.Uint64(ramBase + 0x1010)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x43), v)
}

func TestARMBigEndianREL(t *testing.T) {
	m := newRAM(t)
	be := binary.BigEndian
	acc := memory.NewAccessor(m, be)

	const tabAddr = ramBase + 0x100
	put(t, m, tabAddr, testsupport.EncodeRel(elf.ELFCLASS32, be, false,
		testsupport.Rel{Offset: 0x1000, Type: uint32(elf.R_ARM_RELATIVE)},
	))
	// The addend lives in the relocated word.
	require.NoError(t, acc.PutUint32(ramBase+0x1000, 0x5678))

	tab := &Table{Kind: REL, Class: elf.ELFCLASS32, Order: be, Machine: elf.EM_ARM,
		Addr: tabAddr, Size: 8, EntSize: 8, Offset: loadOffset}
	require.NoError(t, ForMachine(elf.EM_ARM).Apply(m, tab))

	v, err := acc.Uint32(ramBase + 0x1000)
	require.NoError(t, err)
	assert.Equal(t, uint32(ramBase+0x5678), v)
}

func TestRISCV32(t *testing.T) {
	m := newRAM(t)
	le := binary.LittleEndian
	acc := memory.NewAccessor(m, le)

	const tabAddr = ramBase + 0x100
	put(t, m, tabAddr, testsupport.EncodeRel(elf.ELFCLASS32, le, true,
		testsupport.Rel{Offset: 0x1000, Type: uint32(elf.R_RISCV_RELATIVE), Addend: 0x10},
	))
	require.NoError(t, acc.PutUint32(ramBase+0x1004, 0xdeadbeef))

	tab := &Table{Kind: RELA, Class: elf.ELFCLASS32, Order: le, Machine: elf.EM_RISCV,
		Addr: tabAddr, Size: 12, EntSize: 12, Offset: loadOffset}
	require.NoError(t, ForMachine(elf.EM_RISCV).Apply(m, tab))

	v, err := acc.Uint32(ramBase + 0x1000)
	require.NoError(t, err)
	assert.Equal(t, uint32(ramBase+0x10), v)

	// Neighbouring word untouched by the 32-bit store.
	v, err = acc.Uint32(ramBase + 0x1004)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xdeadbeef), v)
}

func TestApplyErrors(t *testing.T) {
	m := newRAM(t)
	le := binary.LittleEndian
	const tabAddr = ramBase + 0x100

	base := Table{Kind: RELA, Class: elf.ELFCLASS64, Order: le, Machine: elf.EM_X86_64,
		Addr: tabAddr, Size: 24, EntSize: 24, Offset: loadOffset}

	t.Run("unknown type", func(t *testing.T) {
		put(t, m, tabAddr, testsupport.EncodeRel(elf.ELFCLASS64, le, true,
			testsupport.Rel{Offset: 0x1000, Type: uint32(elf.R_X86_64_PC32)}))
		tab := base
		err := ForMachine(elf.EM_X86_64).Apply(m, &tab)
		require.ErrorIs(t, err, ErrUnknownType)
		assert.NotErrorIs(t, err, ErrNotSupported)
	})

	t.Run("missing symtab", func(t *testing.T) {
		put(t, m, tabAddr, testsupport.EncodeRel(elf.ELFCLASS64, le, true,
			testsupport.Rel{Offset: 0x1000, Type: uint32(elf.R_X86_64_64), Sym: 1}))
		tab := base
		err := ForMachine(elf.EM_X86_64).Apply(m, &tab)
		assert.ErrorIs(t, err, ErrUndefinedSymbol)
	})

	t.Run("undefined symbol", func(t *testing.T) {
		const symAddr = ramBase + 0x200
		put(t, m, tabAddr, testsupport.EncodeRel(elf.ELFCLASS64, le, true,
			testsupport.Rel{Offset: 0x1000, Type: uint32(elf.R_X86_64_64), Sym: 1}))
		put(t, m, symAddr, testsupport.EncodeSymbols(elf.ELFCLASS64, le,
			testsupport.Sym{}, testsupport.Sym{Value: 0x10, Shndx: elf.SHN_UNDEF}))
		tab := base
		tab.SymTab = symAddr
		err := ForMachine(elf.EM_X86_64).Apply(m, &tab)
		assert.ErrorIs(t, err, ErrUndefinedSymbol)
	})

	t.Run("relocation outside RAM", func(t *testing.T) {
		put(t, m, tabAddr, testsupport.EncodeRel(elf.ELFCLASS64, le, true,
			testsupport.Rel{Offset: 0x20000, Type: uint32(elf.R_X86_64_RELATIVE)}))
		tab := base
		err := ForMachine(elf.EM_X86_64).Apply(m, &tab)
		assert.ErrorIs(t, err, memory.ErrOutOfRange)
	})

	t.Run("relocation outside bounds", func(t *testing.T) {
		put(t, m, tabAddr, testsupport.EncodeRel(elf.ELFCLASS64, le, true,
			testsupport.Rel{Offset: 0x1000, Type: uint32(elf.R_X86_64_RELATIVE)}))
		put(t, m, ramBase+0x1000, []byte{1, 2, 3, 4, 5, 6, 7, 8})
		tab := base
		tab.Low, tab.High = ramBase, ramBase+0xfff
		err := ForMachine(elf.EM_X86_64).Apply(m, &tab)
		require.ErrorIs(t, err, ErrOutOfBounds)

		buf := make([]byte, 8)
		_, err = m.ReadAt(buf, ramBase+0x1000)
		require.NoError(t, err)
		assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, buf)
	})

	t.Run("table outside bounds", func(t *testing.T) {
		tab := base
		tab.Low, tab.High = ramBase, tabAddr+0xf
		err := ForMachine(elf.EM_X86_64).Apply(m, &tab)
		assert.ErrorIs(t, err, ErrOutOfBounds)
	})
}

func TestTableContains(t *testing.T) {
	tab := Table{Low: 0x1000, High: 0x1fff}
	assert.True(t, tab.Contains(0x1000, 8))
	assert.True(t, tab.Contains(0x1ff8, 8))
	assert.False(t, tab.Contains(0x1ffc, 8))
	assert.False(t, tab.Contains(0xff8, 8))
	assert.False(t, tab.Contains(^uint64(0)-3, 8))

	unbounded := Table{}
	assert.True(t, unbounded.Contains(0x10, 8))
}

func TestTypeName(t *testing.T) {
	assert.Equal(t, "R_AARCH64_RELATIVE", TypeName(elf.EM_AARCH64, uint32(elf.R_AARCH64_RELATIVE)))
	assert.Equal(t, "R_ARM_ABS32", TypeName(elf.EM_ARM, uint32(elf.R_ARM_ABS32)))
	assert.Equal(t, "R_X86_64_64", TypeName(elf.EM_X86_64, uint32(elf.R_X86_64_64)))
	assert.Equal(t, "R_7", TypeName(elf.EM_MIPS, 7))
}
