// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package elfimage // import "github.com/barebox/barebox-sub023/elfimage"

import "errors"

var (
	// ErrInvalidFormat is returned for images this loader cannot handle:
	// bad magic, wrong class or type, broken program headers or
	// inconsistent dynamic relocation information.
	ErrInvalidFormat = errors.New("invalid ELF image")
	// ErrOutOfMemory is returned when a segment destination cannot be reserved.
	ErrOutOfMemory = errors.New("cannot reserve memory for segment")
	// ErrAlreadyLoaded is returned by Load on an image that is loaded.
	ErrAlreadyLoaded = errors.New("image already loaded")
	// ErrClosed is returned for operations on a closed image.
	ErrClosed = errors.New("image closed")

	// errNoTable signals that a dynamic section lacks the requested
	// relocation table.
	errNoTable = errors.New("relocation table not present")
)
