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

	"github.com/barebox/barebox-sub023/elfimage"
	"github.com/barebox/barebox-sub023/memory"
)

type headersCmd struct {
	imageArgs
}

func newHeadersCmd(out io.Writer) *ffcli.Command {
	args := &headersCmd{imageArgs{fs: afero.NewOsFs(), out: out}}

	set := flag.NewFlagSet("headers", flag.ExitOnError)
	args.register(set)

	return &ffcli.Command{
		Name:       "headers",
		Exec:       args.exec,
		ShortUsage: "headers [flags] <image>",
		ShortHelp:  "Print the ELF header and the program headers",
		FlagSet:    set,
	}
}

func (cmd *headersCmd) exec(_ context.Context, args []string) error {
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

	fmt.Fprintf(cmd.out, "Class:   %v\n", img.Class())
	fmt.Fprintf(cmd.out, "Data:    %v\n", img.ByteOrder())
	fmt.Fprintf(cmd.out, "Type:    %v\n", img.Type())
	host := ""
	if img.Machine() == elfimage.CurrentMachine {
		host = " (host)"
	}
	fmt.Fprintf(cmd.out, "Machine: %v%s\n", img.Machine(), host)
	fmt.Fprintf(cmd.out, "Entry:   %#x\n\n", img.Entry())

	tw := tabwriter.NewWriter(cmd.out, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tFLAGS\tOFFSET\tVADDR\tPADDR\tFILESZ\tMEMSZ\tALIGN")
	for _, ph := range img.Progs() {
		fmt.Fprintf(tw, "%v\t%v\t%#x\t%#x\t%#x\t%#x\t%#x\t%#x\n",
			ph.Type, ph.Flags, ph.Off, ph.Vaddr, ph.Paddr, ph.Filesz, ph.Memsz, ph.Align)
	}
	return tw.Flush()
}
