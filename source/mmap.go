// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package source // import "github.com/barebox/barebox-sub023/source"

import (
	"errors"
	"fmt"
	"io"
)

var errMappingClosed = errors.New("mmap: closed")

// MappedFile is a file whose contents are accessed as an in-memory buffer.
//
// It is not safe to call Close and Open concurrently.
type MappedFile struct {
	name string
	data []byte
	// unmap releases data, nil if data is a plain heap copy.
	unmap func([]byte) error
}

// Name implements Source.
func (m *MappedFile) Name() string {
	return m.name
}

// Len returns the length of the mapped file.
func (m *MappedFile) Len() int {
	return len(m.data)
}

// Bytes returns the mapped contents. The slice is invalid after Close.
func (m *MappedFile) Bytes() []byte {
	return m.data
}

// ReadAt implements io.ReaderAt.
func (m *MappedFile) ReadAt(p []byte, off int64) (int, error) {
	if m.data == nil {
		return 0, errMappingClosed
	}
	if off < 0 || int64(len(m.data)) < off {
		return 0, fmt.Errorf("mmap: invalid ReadAt offset %d", off)
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Open implements Source.
func (m *MappedFile) Open() (Stream, error) {
	if m.data == nil {
		return nil, errMappingClosed
	}
	return Buffer(m.name, m.data).Open()
}

// Close releases the mapping.
func (m *MappedFile) Close() error {
	if m.data == nil {
		return nil
	}
	data := m.data
	m.data = nil
	if m.unmap == nil || len(data) == 0 {
		return nil
	}
	return m.unmap(data)
}
