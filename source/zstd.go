// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package source // import "github.com/barebox/barebox-sub023/source"

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// ErrTooLarge is returned when a compressed image expands beyond its limit.
var ErrTooLarge = errors.New("decompressed image too large")

// IsZstd reports whether header starts with the zstd frame magic.
func IsZstd(header []byte) bool {
	return bytes.HasPrefix(header, zstdMagic)
}

// Zstd decompresses a zstd stream fully into memory and returns it as a
// buffer Source. At most limit decompressed bytes are accepted.
func Zstd(name string, r io.Reader, limit int64) (Source, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd reader: %w", err)
	}
	defer dec.Close()

	data, err := io.ReadAll(io.LimitReader(dec, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to decompress %s: %w", name, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%s exceeds %d bytes: %w", name, limit, ErrTooLarge)
	}
	return Buffer(name, data), nil
}
