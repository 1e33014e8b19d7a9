// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"debug/elf"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/afero"
	log "github.com/sirupsen/logrus"

	"github.com/barebox/barebox-sub023/elfimage"
	ilog "github.com/barebox/barebox-sub023/internal/log"
	"github.com/barebox/barebox-sub023/memory"
	"github.com/barebox/barebox-sub023/source"
)

// maxImageSize bounds the size of decompressed images.
const maxImageSize = 1 << 30

// imageArgs are the flags shared by all subcommands.
type imageArgs struct {
	fs          afero.Fs
	out         io.Writer
	class       string
	loadAddress string
	debugLog    bool
}

func (a *imageArgs) register(set *flag.FlagSet) {
	set.StringVar(&a.class, "class", "64", "ELF class of the image (32 or 64)")
	set.StringVar(&a.loadAddress, "load-address", "", "Load address override")
	set.BoolVar(&a.debugLog, "debug-log", false, "Enable loader debug logging")
}

func (a *imageArgs) options() ([]elfimage.Option, error) {
	var opts []elfimage.Option
	switch a.class {
	case "32":
		opts = append(opts, elfimage.WithClass(elf.ELFCLASS32))
	case "64":
		opts = append(opts, elfimage.WithClass(elf.ELFCLASS64))
	default:
		return nil, fmt.Errorf("invalid class %q", a.class)
	}
	if a.loadAddress != "" {
		addr, err := strconv.ParseUint(a.loadAddress, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid load address %q: %v", a.loadAddress, err)
		}
		opts = append(opts, elfimage.WithLoadAddress(addr))
	}
	return opts, nil
}

// source returns the image named by the single positional argument.
// zstd compressed images are decompressed transparently.
func (a *imageArgs) source(args []string) (source.Source, error) {
	if len(args) != 1 {
		return nil, errors.New("please specify exactly one image")
	}
	if a.debugLog {
		log.SetLevel(log.DebugLevel)
		ilog.SetDebugLogger()
	}

	src := source.File(a.fs, args[0])
	var magic [4]byte
	if err := source.ReadAt(src, magic[:], 0); err != nil {
		return nil, err
	}
	if !source.IsZstd(magic[:]) {
		return src, nil
	}

	log.Debugf("Decompressing %s", args[0])
	s, err := src.Open()
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return source.Zstd(args[0], s, maxImageSize)
}

// open opens the image against mem. mem may be an empty map when nothing
// gets loaded.
func (a *imageArgs) open(src source.Source, mem elfimage.Memory,
	extra ...elfimage.Option) (*elfimage.Image, error) {
	opts, err := a.options()
	if err != nil {
		return nil, err
	}
	return elfimage.OpenSource(src, mem, append(opts, extra...)...)
}

// scratchMemory returns RAM covering [low, high].
func scratchMemory(low, high uint64) (*memory.Map, error) {
	m := memory.NewMap()
	if _, err := m.AddBank("scratch", low, high-low+1); err != nil {
		return nil, errors.Join(err, m.Close())
	}
	return m, nil
}
