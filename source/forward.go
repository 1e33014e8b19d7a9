// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package source // import "github.com/barebox/barebox-sub023/source"

import (
	"errors"
	"fmt"
	"io"
)

type forwardSource struct {
	Source
}

// ForwardOnly wraps src so that its streams behave like a network transfer:
// seeking is emulated by reading and discarding, and seeking backwards fails
// with ErrBackwardSeek.
func ForwardOnly(src Source) Source {
	return forwardSource{Source: src}
}

func (f forwardSource) Open() (Stream, error) {
	s, err := f.Source.Open()
	if err != nil {
		return nil, err
	}
	return &forwardStream{inner: s}, nil
}

type forwardStream struct {
	inner Stream
	pos   int64
}

func (s *forwardStream) Read(p []byte) (int, error) {
	n, err := s.inner.Read(p)
	s.pos += int64(n)
	return n, err
}

func (s *forwardStream) Seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = s.pos + offset
	default:
		return s.pos, errors.New("forward-only stream cannot seek relative to end")
	}
	if target < s.pos {
		return s.pos, fmt.Errorf("seek from %#x to %#x: %w", s.pos, target, ErrBackwardSeek)
	}
	n, err := io.CopyN(io.Discard, s.inner, target-s.pos)
	s.pos += n
	if err != nil {
		return s.pos, err
	}
	return s.pos, nil
}

func (s *forwardStream) Close() error {
	return s.inner.Close()
}
