// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// memory models the physical address space an image is loaded into. RAM is
// described as a set of banks; consumers claim exclusive ranges inside them
// with Request and give them back with Release.
package memory // import "github.com/barebox/barebox-sub023/memory"

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrOutOfRange is returned when an address range is not fully covered by one bank.
	ErrOutOfRange = errors.New("address range not backed by RAM")
	// ErrBusy is returned when a requested range overlaps an already claimed region.
	ErrBusy = errors.New("address range already claimed")
	// ErrInvalidSize is returned for zero sized or wrapping ranges.
	ErrInvalidSize = errors.New("invalid range size")
	// ErrNotClaimed is returned when releasing a region that is not claimed.
	ErrNotClaimed = errors.New("region not claimed")
)

// Purpose tags a claimed region with what it is used for.
type Purpose uint8

const (
	PurposeReserved Purpose = iota
	PurposeLoaderCode
	PurposeLoaderData
)

func (p Purpose) String() string {
	switch p {
	case PurposeReserved:
		return "reserved"
	case PurposeLoaderCode:
		return "loader-code"
	case PurposeLoaderData:
		return "loader-data"
	default:
		return fmt.Sprintf("purpose(%d)", uint8(p))
	}
}

// Access describes the access rights requested for a region.
type Access uint8

const (
	AccessRead Access = 1 << iota
	AccessWrite
	AccessExec

	AccessRWX = AccessRead | AccessWrite | AccessExec
)

func (a Access) String() string {
	var sb strings.Builder
	for _, f := range []struct {
		bit Access
		c   byte
	}{{AccessRead, 'r'}, {AccessWrite, 'w'}, {AccessExec, 'x'}} {
		if a&f.bit != 0 {
			sb.WriteByte(f.c)
		} else {
			sb.WriteByte('-')
		}
	}
	return sb.String()
}

// Allocator reserves physical address ranges. It is the only memory
// interface the loader relies on for segment placement.
type Allocator interface {
	Request(name string, start, size uint64, purpose Purpose, access Access) (*Region, error)
	Release(r *Region) error
}

// Region is a claimed physical address range.
type Region struct {
	Name    string
	Start   uint64
	Size    uint64
	Purpose Purpose
	Access  Access

	bank *Bank
}

// End returns the address of the last byte of the region.
func (r *Region) End() uint64 {
	return r.Start + r.Size - 1
}

// Contains reports whether addr lies within the region.
func (r *Region) Contains(addr uint64) bool {
	return addr >= r.Start && addr-r.Start < r.Size
}

func (r *Region) String() string {
	return fmt.Sprintf("%#x-%#x (size %#x) %s %s %q",
		r.Start, r.End(), r.Size, r.Purpose, r.Access, r.Name)
}
