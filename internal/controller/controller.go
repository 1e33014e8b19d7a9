// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package controller // import "github.com/barebox/barebox-sub023/internal/controller"

import (
	"context"
	"debug/elf"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/hashicorp/go-multierror"
	"github.com/zeebo/xxh3"

	"github.com/barebox/barebox-sub023/disasm"
	"github.com/barebox/barebox-sub023/elfimage"
	"github.com/barebox/barebox-sub023/internal/log"
	"github.com/barebox/barebox-sub023/memory"
	"github.com/barebox/barebox-sub023/reloc"
	"github.com/barebox/barebox-sub023/source"
)

// maxDisasmBytes bounds the code read at the entry point.
const maxDisasmBytes = 256

// Controller loads one image into simulated RAM.
type Controller struct {
	config *Config

	mem     *memory.Map
	image   *elfimage.Image
	closers []io.Closer
}

// New creates a new controller.
func New(cfg *Config) *Controller {
	return &Controller{config: cfg}
}

// Run validates the configuration, sets up RAM, and loads the image.
// The loaded image stays in memory until Shutdown.
func (c *Controller) Run(ctx context.Context) (*Report, error) {
	if c.config == nil {
		return nil, errors.New("no configuration")
	}
	if err := c.config.Validate(); err != nil {
		return nil, err
	}
	if c.mem != nil {
		return nil, errors.New("controller already ran")
	}

	if err := c.setupMemory(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, err := c.openSource()
	if err != nil {
		return nil, err
	}

	img, err := elfimage.OpenSource(src, c.mem, c.imageOptions()...)
	if err != nil {
		return nil, err
	}
	c.image = img

	if err = ctx.Err(); err != nil {
		return nil, err
	}
	if err = img.Load(); err != nil {
		return nil, err
	}
	return c.report()
}

func (c *Controller) setupMemory() error {
	banks, err := ParseBanks(c.config.Banks)
	if err != nil {
		return err
	}
	c.mem = memory.NewMap()
	for _, b := range banks {
		if _, err = c.mem.AddBank(b.Name, b.Start, b.Size); err != nil {
			return fmt.Errorf("failed to add bank %s: %w", b.Name, err)
		}
		log.Debugf("RAM bank %s at %#x size %#x", b.Name, b.Start, b.Size)
	}
	return nil
}

// openSource returns the image source. Compressed images are decompressed
// into memory first.
func (c *Controller) openSource() (source.Source, error) {
	var src source.Source
	if c.config.Mmap {
		mf, err := source.Mmap(c.config.Image)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, mf)
		src = mf
	} else {
		src = source.File(c.config.fs(), c.config.Image)
	}

	var magic [4]byte
	if err := source.ReadAt(src, magic[:], 0); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", src.Name(), err)
	}
	if source.IsZstd(magic[:]) {
		s, err := src.Open()
		if err != nil {
			return nil, err
		}
		defer s.Close()
		if src, err = source.Zstd(src.Name(), s, c.ramSize()); err != nil {
			return nil, fmt.Errorf("failed to decompress %s: %w", c.config.Image, err)
		}
		log.Debugf("Decompressed %s", c.config.Image)
	}

	if c.config.Stream {
		src = source.ForwardOnly(src)
	}
	return src, nil
}

// ramSize returns the total size of all RAM banks. No image larger than
// that can be loaded.
func (c *Controller) ramSize() int64 {
	var size uint64
	for _, b := range c.mem.Banks() {
		size += b.Size()
	}
	return int64(min(size, math.MaxInt64))
}

func (c *Controller) imageOptions() []elfimage.Option {
	var opts []elfimage.Option
	if addr, ok, _ := c.config.loadAddress(); ok {
		opts = append(opts, elfimage.WithLoadAddress(addr))
	}
	if class, _ := c.config.class(); class != elf.ELFCLASSNONE {
		opts = append(opts, elfimage.WithClass(class))
	}
	if c.config.NoRelocate {
		log.Debugf("Relocation disabled")
	} else {
		opts = append(opts, elfimage.WithApplierFor(reloc.ForMachine))
	}
	return opts
}

func (c *Controller) report() (*Report, error) {
	img := c.image
	low, high, _ := img.MemRange()
	r := &Report{
		Name:        img.Name(),
		Class:       img.Class(),
		Type:        img.Type(),
		Machine:     img.Machine(),
		Entry:       img.Entry(),
		Mode:        img.RelocMode(),
		RelocOffset: img.RelocOffset(),
		Low:         low,
		High:        high,
	}

	for _, seg := range img.Segments() {
		buf := make([]byte, seg.Memsz)
		if _, err := c.mem.ReadAt(buf, int64(seg.Dest)); err != nil {
			return nil, fmt.Errorf("failed to read back segment at %#x: %w", seg.Dest, err)
		}
		r.Segments = append(r.Segments, SegmentReport{
			Offset: seg.Off,
			Dest:   seg.Dest,
			Filesz: seg.Filesz,
			Memsz:  seg.Memsz,
			Flags:  seg.Flags,
			Digest: xxh3.Hash(buf),
		})
	}

	if c.config.Disasm > 0 {
		lines, err := c.disassemble(r.Entry)
		switch {
		case errors.Is(err, disasm.ErrUnsupported):
			log.Debugf("Not disassembling: %v", err)
		case err != nil:
			return nil, err
		}
		r.Disasm = lines
	}
	return r, nil
}

// disassemble decodes the code at entry, limited to the segment holding it.
func (c *Controller) disassemble(entry uint64) ([]disasm.Line, error) {
	for _, seg := range c.image.Segments() {
		if entry < seg.Dest || entry-seg.Dest >= seg.Memsz {
			continue
		}
		code := make([]byte, min(maxDisasmBytes, seg.Dest+seg.Memsz-entry))
		if _, err := c.mem.ReadAt(code, int64(entry)); err != nil {
			return nil, err
		}
		return disasm.Entry(c.image.Machine(), code, entry, c.config.Disasm)
	}
	log.Warnf("Entry point %#x is outside of the loaded image", entry)
	return nil, nil
}

// Shutdown releases the image, the RAM and any mapped files.
func (c *Controller) Shutdown() error {
	var result *multierror.Error
	if c.image != nil {
		if err := c.image.Close(); err != nil {
			result = multierror.Append(result, err)
		}
		c.image = nil
	}
	if c.mem != nil {
		if err := c.mem.Close(); err != nil {
			result = multierror.Append(result, err)
		}
		c.mem = nil
	}
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	c.closers = nil
	return result.ErrorOrNil()
}
