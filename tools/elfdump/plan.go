// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/spf13/afero"
	"github.com/zeebo/xxh3"

	"github.com/barebox/barebox-sub023/elfimage"
	"github.com/barebox/barebox-sub023/memory"
	"github.com/barebox/barebox-sub023/source"
)

type planCmd struct {
	imageArgs
}

func newPlanCmd(out io.Writer) *ffcli.Command {
	args := &planCmd{imageArgs{fs: afero.NewOsFs(), out: out}}

	set := flag.NewFlagSet("plan", flag.ExitOnError)
	args.register(set)

	return &ffcli.Command{
		Name:       "plan",
		Exec:       args.exec,
		ShortUsage: "plan [flags] <image>",
		ShortHelp:  "Show where the loader would place each segment",
		FlagSet:    set,
	}
}

func (cmd *planCmd) exec(_ context.Context, args []string) error {
	src, err := cmd.source(args)
	if err != nil {
		return err
	}
	mem := memory.NewMap()
	defer mem.Close()
	img, err := cmd.open(src, mem)
	if err != nil {
		return err
	}
	defer img.Close()

	segs, mode, offset, err := img.Plan()
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.out, "Relocation: %v, offset %#x\n", mode, uint64(offset))
	if mode != elfimage.NoRelocation {
		fmt.Fprintf(cmd.out, "Entry:      %#x\n\n", img.Entry()+uint64(offset))
	} else {
		fmt.Fprintf(cmd.out, "Entry:      %#x\n\n", img.Entry())
	}

	tw := tabwriter.NewWriter(cmd.out, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "OFFSET\tVADDR\tDEST\tEND\tFILESZ\tMEMSZ\tFILE XXH3")
	for _, s := range segs {
		data := make([]byte, s.Filesz)
		if err = source.ReadAt(src, data, int64(s.Off)); err != nil {
			return fmt.Errorf("failed to read segment at %#x: %v", s.Off, err)
		}
		fmt.Fprintf(tw, "%#x\t%#x\t%#x\t%#x\t%#x\t%#x\t%016x\n",
			s.Off, s.Vaddr, s.Dest, s.Dest+s.Memsz-1, s.Filesz, s.Memsz, xxh3.Hash(data))
	}
	return tw.Flush()
}
