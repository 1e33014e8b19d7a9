// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// source provides the byte sources an ELF image is read from: named files,
// in-memory buffers, memory mapped files and compressed images.
package source // import "github.com/barebox/barebox-sub023/source"

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/afero"
)

// ErrBackwardSeek is returned by forward-only streams for seeks behind the
// current position.
var ErrBackwardSeek = errors.New("backward seek not supported")

// Stream is an open, sequentially read view of a Source.
type Stream interface {
	io.Reader
	io.Seeker
	io.Closer
}

// Source is something an image can be (re)opened from.
type Source interface {
	// Name identifies the source in logs and region names.
	Name() string
	// Open returns a new Stream positioned at offset zero.
	Open() (Stream, error)
}

type fileSource struct {
	fs   afero.Fs
	path string
}

// File returns a Source reading the named file from fs.
func File(fs afero.Fs, path string) Source {
	return &fileSource{fs: fs, path: path}
}

func (f *fileSource) Name() string {
	return f.path
}

func (f *fileSource) Open() (Stream, error) {
	return f.fs.Open(f.path)
}

type bufferSource struct {
	name string
	data []byte
}

// Buffer returns a Source reading from data. The slice is not copied.
func Buffer(name string, data []byte) Source {
	return &bufferSource{name: name, data: data}
}

func (b *bufferSource) Name() string {
	return b.name
}

func (b *bufferSource) Open() (Stream, error) {
	return nopCloser{bytes.NewReader(b.data)}, nil
}

type nopCloser struct {
	*bytes.Reader
}

func (nopCloser) Close() error {
	return nil
}

// ReadAt opens src, reads len(p) bytes at offset off and closes it again.
func ReadAt(src Source, p []byte, off int64) (err error) {
	s, err := src.Open()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err = s.Seek(off, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek %s to %#x: %w", src.Name(), off, err)
	}
	if _, err = io.ReadFull(s, p); err != nil {
		return fmt.Errorf("failed to read %d bytes at %#x from %s: %w",
			len(p), off, src.Name(), err)
	}
	return nil
}
