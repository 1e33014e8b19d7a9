// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package elfimage

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/barebox/barebox-sub023/memory"
)

const (
	sramBase = 0x0
	sramSize = 0x10000
	ddrBase  = 0x9e700000
	ddrSize  = 0x100000

	// poison is written to all RAM before loading so cleared bytes stand out.
	poison = 0xaa
)

func newRAM(t *testing.T) *memory.Map {
	t.Helper()
	m := memory.NewMap()
	_, err := m.AddBank("sram", sramBase, sramSize)
	require.NoError(t, err)
	_, err = m.AddBank("ddr", ddrBase, ddrSize)
	require.NoError(t, err)
	require.NoError(t, m.Fill(sramBase, sramSize, poison))
	require.NoError(t, m.Fill(ddrBase, ddrSize, poison))
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func readMem(t *testing.T, m *memory.Map, addr uint64, n int) []byte {
	t.Helper()
	buf := make([]byte, n)
	_, err := m.ReadAt(buf, int64(addr))
	require.NoError(t, err)
	return buf
}

func pattern(seed byte, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = seed + byte(i)
	}
	return b
}

func zeroBytes(n int) []byte {
	return bytes.Repeat([]byte{0}, n)
}
