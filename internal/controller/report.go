// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package controller // import "github.com/barebox/barebox-sub023/internal/controller"

import (
	"debug/elf"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/barebox/barebox-sub023/disasm"
	"github.com/barebox/barebox-sub023/elfimage"
)

// SegmentReport describes one loaded segment.
type SegmentReport struct {
	Offset uint64
	Dest   uint64
	Filesz uint64
	Memsz  uint64
	Flags  elf.ProgFlag
	// Digest is the XXH3 hash of the segment memory after relocation.
	Digest uint64
}

// Report is the outcome of a successful load.
type Report struct {
	Name        string
	Class       elf.Class
	Type        elf.Type
	Machine     elf.Machine
	Entry       uint64
	Mode        elfimage.RelocMode
	RelocOffset int64
	Low, High   uint64
	Segments    []SegmentReport
	Disasm      []disasm.Line
}

// WriteTo prints the report in human readable form.
func (r *Report) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	fmt.Fprintf(cw, "image:      %s\n", r.Name)
	fmt.Fprintf(cw, "format:     %v %v %v\n", r.Class, r.Type, r.Machine)
	fmt.Fprintf(cw, "relocation: %v (offset %#x)\n", r.Mode, uint64(r.RelocOffset))
	fmt.Fprintf(cw, "memory:     %#x-%#x\n", r.Low, r.High)
	fmt.Fprintf(cw, "entry:      %#x\n\n", r.Entry)

	tw := tabwriter.NewWriter(cw, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "OFFSET\tDEST\tFILESZ\tMEMSZ\tFLAGS\tXXH3")
	for _, s := range r.Segments {
		fmt.Fprintf(tw, "%#x\t%#x\t%#x\t%#x\t%v\t%016x\n",
			s.Offset, s.Dest, s.Filesz, s.Memsz, s.Flags, s.Digest)
	}
	if err := tw.Flush(); err != nil {
		return cw.n, err
	}

	if len(r.Disasm) > 0 {
		fmt.Fprintln(cw)
		for _, l := range r.Disasm {
			fmt.Fprintln(cw, l)
		}
	}
	return cw.n, cw.err
}

type countingWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (c *countingWriter) Write(p []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	n, err := c.w.Write(p)
	c.n += int64(n)
	c.err = err
	return n, err
}
