//go:build linux

// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package source // import "github.com/barebox/barebox-sub023/source"

import (
	"fmt"
	"os"
	"runtime"

	"golang.org/x/sys/unix"
)

// Mmap memory-maps the named file for reading.
func Mmap(path string) (*MappedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}

	size := fi.Size()
	if size == 0 {
		// mmap(2) rejects zero length mappings.
		return &MappedFile{name: path, data: []byte{}}, nil
	}
	if size != int64(int(size)) {
		return nil, fmt.Errorf("mmap: file %q is too large", path)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("mmap %q: %w", path, err)
	}
	m := &MappedFile{name: path, data: data, unmap: unix.Munmap}
	runtime.SetFinalizer(m, (*MappedFile).Close)
	return m, nil
}
