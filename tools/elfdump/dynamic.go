// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"debug/elf"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/spf13/afero"
	log "github.com/sirupsen/logrus"

	"github.com/barebox/barebox-sub023/elfimage"
	"github.com/barebox/barebox-sub023/memory"
	"github.com/barebox/barebox-sub023/reloc"
	"github.com/barebox/barebox-sub023/source"
)

type dynamicCmd struct {
	imageArgs
}

func newDynamicCmd(out io.Writer) *ffcli.Command {
	args := &dynamicCmd{imageArgs{fs: afero.NewOsFs(), out: out}}

	set := flag.NewFlagSet("dynamic", flag.ExitOnError)
	args.register(set)

	return &ffcli.Command{
		Name:       "dynamic",
		Exec:       args.exec,
		ShortUsage: "dynamic [flags] <image>",
		ShortHelp:  "List the dynamic relocations of an image",
		FlagSet:    set,
	}
}

// exec loads the image into scratch memory sized to its footprint, which
// makes the loader parse the dynamic section, and lists every table handed
// to the relocation applier.
func (cmd *dynamicCmd) exec(_ context.Context, args []string) error {
	src, err := cmd.source(args)
	if err != nil {
		return err
	}

	var extra []elfimage.Option
	if cmd.loadAddress == "" {
		if extra, err = cmd.forceRelocation(src); err != nil {
			return err
		}
	}

	empty := memory.NewMap()
	defer empty.Close()
	img, err := cmd.open(src, empty, extra...)
	if err != nil {
		return err
	}
	segs, _, _, err := img.Plan()
	_ = img.Close()
	if err != nil {
		return err
	}
	if len(segs) == 0 {
		return fmt.Errorf("%s has no loadable segments", src.Name())
	}
	low, high := segs[0].Dest, segs[0].Dest+segs[0].Memsz-1
	for _, s := range segs[1:] {
		low = min(low, s.Dest)
		high = max(high, s.Dest+s.Memsz-1)
	}

	mem, err := scratchMemory(low, high)
	if err != nil {
		return err
	}
	defer mem.Close()

	tables := 0
	lister := reloc.ApplierFunc(func(m memory.ReaderWriterAt, tab *reloc.Table) error {
		tables++
		return cmd.list(m, tab)
	})
	img, err = cmd.open(src, mem, append(extra, elfimage.WithApplier(lister))...)
	if err != nil {
		return err
	}
	defer img.Close()
	if err = img.Load(); err != nil {
		return err
	}
	if tables == 0 {
		fmt.Fprintln(cmd.out, "No relocations")
	}
	return nil
}

// forceRelocation returns the options that make the loader relocate the
// image in place. ET_EXEC images are only relocated with an override.
func (cmd *dynamicCmd) forceRelocation(src source.Source) ([]elfimage.Option, error) {
	empty := memory.NewMap()
	defer empty.Close()
	img, err := cmd.open(src, empty)
	if err != nil {
		return nil, err
	}
	defer img.Close()
	if img.Type() != elf.ET_EXEC {
		return nil, nil
	}

	minVaddr, found := ^uint64(0), false
	for _, ph := range img.Progs() {
		if ph.Type == elf.PT_LOAD {
			minVaddr = min(minVaddr, ph.Vaddr)
			found = true
		}
	}
	if !found {
		return nil, nil
	}
	log.Debugf("Placing executable at its link address %#x", minVaddr)
	return []elfimage.Option{elfimage.WithLoadAddress(minVaddr)}, nil
}

func (cmd *dynamicCmd) list(mem memory.ReaderWriterAt, tab *reloc.Table) error {
	fmt.Fprintf(cmd.out, "%v table at %#x, %d entries:\n", tab.Kind, tab.Addr, tab.Len())

	tw := tabwriter.NewWriter(cmd.out, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "OFFSET\tTYPE\tSYM\tADDEND")
	err := tab.Each(mem, func(e reloc.Entry) error {
		addend := "-"
		if tab.Kind == reloc.RELA {
			addend = fmt.Sprintf("%#x", e.Addend)
		}
		fmt.Fprintf(tw, "%#x\t%s\t%d\t%s\n",
			e.Offset, reloc.TypeName(tab.Machine, e.Type), e.Sym, addend)
		return nil
	})
	if err != nil {
		return err
	}
	return tw.Flush()
}
