// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package memory // import "github.com/barebox/barebox-sub023/memory"

import (
	"debug/elf"
	"encoding/binary"
	"fmt"
	"io"
)

// ReaderWriterAt is random access to physical memory.
type ReaderWriterAt interface {
	io.ReaderAt
	io.WriterAt
}

// Accessor implements typed access to physical memory in a given byte order.
type Accessor struct {
	ReaderWriterAt
	Order binary.ByteOrder
}

// NewAccessor returns an Accessor over rw using order.
func NewAccessor(rw ReaderWriterAt, order binary.ByteOrder) Accessor {
	return Accessor{ReaderWriterAt: rw, Order: order}
}

// Read fills p with data from physical address addr.
func (a Accessor) Read(addr uint64, p []byte) error {
	n, err := a.ReadAt(p, int64(addr))
	if err != nil {
		return err
	}
	if n != len(p) {
		return fmt.Errorf("short read at %#x: %d of %d: %w", addr, n, len(p), io.ErrUnexpectedEOF)
	}
	return nil
}

// Write stores p at physical address addr.
func (a Accessor) Write(addr uint64, p []byte) error {
	n, err := a.WriteAt(p, int64(addr))
	if err != nil {
		return err
	}
	if n != len(p) {
		return fmt.Errorf("short write at %#x: %d of %d: %w", addr, n, len(p), io.ErrShortWrite)
	}
	return nil
}

// Uint32 reads a 32-bit unsigned integer.
func (a Accessor) Uint32(addr uint64) (uint32, error) {
	var buf [4]byte
	if err := a.Read(addr, buf[:]); err != nil {
		return 0, err
	}
	return a.Order.Uint32(buf[:]), nil
}

// Uint64 reads a 64-bit unsigned integer.
func (a Accessor) Uint64(addr uint64) (uint64, error) {
	var buf [8]byte
	if err := a.Read(addr, buf[:]); err != nil {
		return 0, err
	}
	return a.Order.Uint64(buf[:]), nil
}

// PutUint32 writes a 32-bit unsigned integer.
func (a Accessor) PutUint32(addr uint64, v uint32) error {
	var buf [4]byte
	a.Order.PutUint32(buf[:], v)
	return a.Write(addr, buf[:])
}

// PutUint64 writes a 64-bit unsigned integer.
func (a Accessor) PutUint64(addr uint64, v uint64) error {
	var buf [8]byte
	a.Order.PutUint64(buf[:], v)
	return a.Write(addr, buf[:])
}

// Word reads a native word of the given ELF class.
func (a Accessor) Word(class elf.Class, addr uint64) (uint64, error) {
	if class == elf.ELFCLASS32 {
		v, err := a.Uint32(addr)
		return uint64(v), err
	}
	return a.Uint64(addr)
}

// PutWord writes a native word of the given ELF class. For ELFCLASS32 the
// value is truncated to 32 bits.
func (a Accessor) PutWord(class elf.Class, addr, v uint64) error {
	if class == elf.ELFCLASS32 {
		return a.PutUint32(addr, uint32(v))
	}
	return a.PutUint64(addr, v)
}
