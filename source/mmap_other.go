//go:build !linux

// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package source // import "github.com/barebox/barebox-sub023/source"

import "os"

// Mmap reads the named file into memory. Platforms other than Linux get a
// heap copy instead of a mapping.
func Mmap(path string) (*MappedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &MappedFile{name: path, data: data}, nil
}
