//go:build linux

// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package memory // import "github.com/barebox/barebox-sub023/memory"

import "golang.org/x/sys/unix"

// allocBacking maps anonymous memory for a bank. The pages are not touched
// until written, so large sparse banks stay cheap.
func allocBacking(size int) (data []byte, release func() error, err error) {
	data, err = unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, err
	}
	return data, func() error { return unix.Munmap(data) }, nil
}
