// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package disasm

import (
	"debug/elf"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestX86_64(t *testing.T) {
	code := []byte{
		0x55,             // push %rbp
		0x48, 0x89, 0xe5, // mov %rsp,%rbp
		0xc3, // ret
		0x90, // nop
	}
	lines, err := Entry(elf.EM_X86_64, code, 0x100000, 3)
	require.NoError(t, err)
	require.Len(t, lines, 3)

	assert.Equal(t, uint64(0x100000), lines[0].Addr)
	assert.Contains(t, lines[0].Text, "push")
	assert.Equal(t, uint64(0x100001), lines[1].Addr)
	assert.Len(t, lines[1].Bytes, 3)
	assert.Contains(t, lines[1].Text, "mov")
	assert.Contains(t, lines[2].Text, "ret")
	assert.Contains(t, lines[1].String(), "4889e5")
}

func TestAArch64(t *testing.T) {
	code := []byte{
		0x1f, 0x20, 0x03, 0xd5, // nop
		0xc0, 0x03, 0x5f, 0xd6, // ret
	}
	lines, err := Entry(elf.EM_AARCH64, code, 0x9e780000, 8)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "nop", lines[0].Text)
	assert.Equal(t, uint64(0x9e780004), lines[1].Addr)
	assert.Contains(t, lines[1].Text, "ret")
}

func TestShortTail(t *testing.T) {
	lines, err := Entry(elf.EM_AARCH64, []byte{0x1f, 0x20, 0x03, 0xd5, 0x00, 0x01}, 0, 4)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Len(t, lines[1].Bytes, 2)
	assert.Equal(t, ".byte 0x00, 0x01", lines[1].Text)
}

func TestUnsupported(t *testing.T) {
	_, err := Entry(elf.EM_MIPS, []byte{0, 0, 0, 0}, 0, 1)
	require.ErrorIs(t, err, ErrUnsupported)
}
