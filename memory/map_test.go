// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMap(t *testing.T) *Map {
	t.Helper()
	m := NewMap()
	_, err := m.AddBank("ram0", 0x1000, 0x4000)
	require.NoError(t, err)
	_, err = m.AddBank("ram1", 0x10000, 0x1000)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, m.Close()) })
	return m
}

func TestAddBankOverlap(t *testing.T) {
	m := newTestMap(t)

	_, err := m.AddBank("ram2", 0x4000, 0x2000)
	require.ErrorIs(t, err, ErrBusy)

	_, err = m.AddBank("empty", 0x20000, 0)
	require.ErrorIs(t, err, ErrInvalidSize)

	banks := m.Banks()
	require.Len(t, banks, 2)
	assert.Equal(t, uint64(0x1000), banks[0].Start)
	assert.Equal(t, uint64(0x4fff), banks[0].End())
}

func TestRequestRelease(t *testing.T) {
	m := newTestMap(t)

	a, err := m.Request("a", 0x2000, 0x100, PurposeLoaderCode, AccessRWX)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x20ff), a.End())
	assert.True(t, a.Contains(0x2000))
	assert.False(t, a.Contains(0x2100))

	b, err := m.Request("b", 0x1000, 0x1000, PurposeLoaderData, AccessRead|AccessWrite)
	require.NoError(t, err)

	tests := map[string]struct {
		start, size uint64
		err         error
	}{
		"overlap start":  {start: 0x20ff, size: 0x10, err: ErrBusy},
		"overlap end":    {start: 0x1f00, size: 0x200, err: ErrBusy},
		"enclosing":      {start: 0x1000, size: 0x3000, err: ErrBusy},
		"outside banks":  {start: 0x8000, size: 0x10, err: ErrOutOfRange},
		"crossing banks": {start: 0x4f00, size: 0x200, err: ErrOutOfRange},
		"zero size":      {start: 0x3000, size: 0, err: ErrInvalidSize},
		"wrapping":       {start: ^uint64(0) - 4, size: 0x10, err: ErrInvalidSize},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := m.Request(name, tc.start, tc.size, PurposeLoaderCode, AccessRWX)
			assert.ErrorIs(t, err, tc.err)
		})
	}

	// Adjacent ranges do not conflict.
	c, err := m.Request("c", 0x2100, 0x100, PurposeLoaderCode, AccessRWX)
	require.NoError(t, err)

	assert.Equal(t, []*Region{b, a, c}, m.Regions())

	require.NoError(t, m.Release(a))
	require.ErrorIs(t, m.Release(a), ErrNotClaimed)
	assert.Equal(t, []*Region{b, c}, m.Regions())

	// The released range can be claimed again.
	_, err = m.Request("a2", 0x2000, 0x100, PurposeLoaderCode, AccessRWX)
	require.NoError(t, err)
}

func TestReadWrite(t *testing.T) {
	m := newTestMap(t)

	n, err := m.WriteAt([]byte{1, 2, 3, 4}, 0x10ffc)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	buf := make([]byte, 4)
	_, err = m.ReadAt(buf, 0x10ffc)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, buf)

	_, err = m.ReadAt(buf, 0x10ffc+2)
	require.ErrorIs(t, err, ErrOutOfRange)

	require.NoError(t, m.Fill(0x1000, 0x10, 0xaa))
	_, err = m.ReadAt(buf, 0x100c)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xaa, 0xaa, 0xaa, 0xaa}, buf)
}

func TestStrings(t *testing.T) {
	assert.Equal(t, "rwx", AccessRWX.String())
	assert.Equal(t, "r-x", (AccessRead | AccessExec).String())
	assert.Equal(t, "loader-code", PurposeLoaderCode.String())
}
