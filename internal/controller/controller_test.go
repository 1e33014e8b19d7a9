// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package controller

import (
	"bytes"
	"context"
	"debug/elf"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/xxh3"

	"github.com/barebox/barebox-sub023/elfimage"
	"github.com/barebox/barebox-sub023/memory"
	"github.com/barebox/barebox-sub023/reloc"
	"github.com/barebox/barebox-sub023/source"
	"github.com/barebox/barebox-sub023/testsupport"
)

const (
	testBanks = "sdram=0x80000000:64K"
	testLoad  = "0x80001000"
)

// testImage returns an AArch64 position independent image linked at zero
// with code at the entry point and one RELATIVE relocation at 0x300.
func testImage() []byte {
	le := binary.LittleEndian
	data := make([]byte, 0x400)
	copy(data, []byte{
		0x1f, 0x20, 0x03, 0xd5, // nop
		0xc0, 0x03, 0x5f, 0xd6, // ret
	})
	dyn := testsupport.EncodeDynamic(elf.ELFCLASS64, le,
		testsupport.Dyn{Tag: elf.DT_RELA, Val: 0x200},
		testsupport.Dyn{Tag: elf.DT_RELASZ, Val: 24},
		testsupport.Dyn{Tag: elf.DT_RELAENT, Val: 24})
	copy(data[0x100:], dyn)
	copy(data[0x200:], testsupport.EncodeRel(elf.ELFCLASS64, le, true,
		testsupport.Rel{Offset: 0x300, Type: uint32(elf.R_AARCH64_RELATIVE), Addend: 0x10}))

	return (&testsupport.Image{
		Class:   elf.ELFCLASS64,
		Type:    elf.ET_DYN,
		Machine: elf.EM_AARCH64,
		Segments: []testsupport.Segment{
			{Type: elf.PT_LOAD, Flags: elf.PF_R | elf.PF_X, Offset: 0x1000, Data: data,
				Memsz: 0x800},
			{Type: elf.PT_DYNAMIC, Flags: elf.PF_R, Vaddr: 0x100, Paddr: 0x100,
				Offset: 0x1100, Data: dyn},
		},
	}).Bytes()
}

func memFs(t *testing.T, name string, data []byte) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, name, data, 0o644))
	return fs
}

func run(t *testing.T, cfg *Config) (*Controller, *Report, error) {
	t.Helper()
	c := New(cfg)
	t.Cleanup(func() { assert.NoError(t, c.Shutdown()) })
	r, err := c.Run(context.Background())
	return c, r, err
}

func TestRun(t *testing.T) {
	cfg := &Config{
		Image:       "/images/barebox.elf",
		Banks:       testBanks,
		LoadAddress: testLoad,
		Class:       "64",
		Disasm:      4,
		Fs:          memFs(t, "/images/barebox.elf", testImage()),
	}
	c, r, err := run(t, cfg)
	require.NoError(t, err)

	assert.Equal(t, "/images/barebox.elf", r.Name)
	assert.Equal(t, elf.EM_AARCH64, r.Machine)
	assert.Equal(t, elfimage.ComputedOffset, r.Mode)
	assert.Equal(t, int64(0x80001000), r.RelocOffset)
	assert.Equal(t, uint64(0x80001000), r.Entry)
	assert.Equal(t, uint64(0x80001000), r.Low)
	assert.Equal(t, uint64(0x800017ff), r.High)

	v, err := memory.NewAccessor(c.mem, binary.LittleEndian).Uint64(0x80001300)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x80001010), v)

	require.Len(t, r.Segments, 1)
	seg := r.Segments[0]
	assert.Equal(t, uint64(0x1000), seg.Offset)
	assert.Equal(t, uint64(0x80001000), seg.Dest)
	buf := make([]byte, seg.Memsz)
	_, err = c.mem.ReadAt(buf, int64(seg.Dest))
	require.NoError(t, err)
	assert.Equal(t, xxh3.Hash(buf), seg.Digest)

	require.Len(t, r.Disasm, 4)
	assert.Equal(t, "nop", r.Disasm[0].Text)
	assert.Contains(t, r.Disasm[1].Text, "ret")

	var out bytes.Buffer
	n, err := r.WriteTo(&out)
	require.NoError(t, err)
	assert.Equal(t, int64(out.Len()), n)
	assert.Contains(t, out.String(), "entry:      0x80001000")
	assert.Contains(t, out.String(), "nop")
}

func TestRunCompressed(t *testing.T) {
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	compressed := enc.EncodeAll(testImage(), nil)
	require.NoError(t, enc.Close())

	for _, stream := range []bool{false, true} {
		cfg := &Config{
			Image:       "/images/barebox.elf.zst",
			Banks:       testBanks,
			LoadAddress: testLoad,
			Class:       "64",
			Stream:      stream,
			Fs:          memFs(t, "/images/barebox.elf.zst", compressed),
		}
		_, r, err := run(t, cfg)
		require.NoError(t, err)
		assert.Equal(t, uint64(0x80001000), r.Entry)
		assert.Empty(t, r.Disasm)
	}
}

func TestRunCompressedTooLarge(t *testing.T) {
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	compressed := enc.EncodeAll(make([]byte, 0x20000), nil)
	require.NoError(t, enc.Close())

	_, _, err = run(t, &Config{
		Image: "/images/zeroes.zst",
		Banks: testBanks,
		Class: "64",
		Fs:    memFs(t, "/images/zeroes.zst", compressed),
	})
	require.ErrorIs(t, err, source.ErrTooLarge)
}

func TestRunMmap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "barebox.elf")
	require.NoError(t, os.WriteFile(path, testImage(), 0o644))

	_, r, err := run(t, &Config{
		Image:       path,
		Banks:       testBanks,
		LoadAddress: testLoad,
		Class:       "64",
		Mmap:        true,
	})
	require.NoError(t, err)
	assert.Equal(t, path, r.Name)
	assert.Len(t, r.Segments, 1)
}

func TestRunNoRelocate(t *testing.T) {
	c, _, err := run(t, &Config{
		Image:       "/barebox.elf",
		Banks:       testBanks,
		LoadAddress: testLoad,
		Class:       "64",
		NoRelocate:  true,
		Fs:          memFs(t, "/barebox.elf", testImage()),
	})
	require.ErrorIs(t, err, reloc.ErrNotSupported)
	assert.Empty(t, c.mem.Regions())
}

func TestRunErrors(t *testing.T) {
	_, _, err := run(t, &Config{
		Image: "/missing.elf",
		Banks: testBanks,
		Fs:    afero.NewMemMapFs(),
	})
	require.Error(t, err)

	_, _, err = run(t, &Config{
		Image:       "/barebox.elf",
		Banks:       testBanks,
		LoadAddress: "0x10000000",
		Class:       "64",
		Fs:          memFs(t, "/barebox.elf", testImage()),
	})
	require.ErrorIs(t, err, elfimage.ErrOutOfMemory)

	_, _, err = run(t, nil)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{Image: "x.elf", Banks: DefaultBanks}
	}
	require.NoError(t, (&Config{Image: "x.elf", Banks: DefaultBanks}).Validate())

	tests := map[string]func(*Config){
		"no image":          func(c *Config) { c.Image = "" },
		"no banks":          func(c *Config) { c.Banks = "" },
		"bad bank":          func(c *Config) { c.Banks = "ram0=0x1000" },
		"bad load address":  func(c *Config) { c.LoadAddress = "0xzz" },
		"bad class":         func(c *Config) { c.Class = "16" },
		"mmap and stream":   func(c *Config) { c.Mmap, c.Stream = true, true },
		"negative disasm":   func(c *Config) { c.Disasm = -1 },
		"empty bank":        func(c *Config) { c.Banks = "ram0=0x1000:0" },
		"size out of range": func(c *Config) { c.Banks = "ram0=0:0xffffffffffffG" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestParseBanks(t *testing.T) {
	banks, err := ParseBanks("sram=0x0:64k, ddr=0x40000000:1G,0x90000000:0x1000")
	require.NoError(t, err)
	assert.Equal(t, []Bank{
		{Name: "sram", Start: 0, Size: 64 << 10},
		{Name: "ddr", Start: 0x40000000, Size: 1 << 30},
		{Name: "ram2", Start: 0x90000000, Size: 0x1000},
	}, banks)

	banks, err = ParseBanks(DefaultBanks)
	require.NoError(t, err)
	assert.Equal(t, []Bank{{Name: "ram0", Start: 0x40000000, Size: 256 << 20}}, banks)
}
