//go:build !amd64 && !arm64

// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package elfimage // import "github.com/barebox/barebox-sub023/elfimage"

import (
	"debug/elf"
	"math/bits"
)

const (
	CurrentMachine = elf.EM_NONE
	// NativeClass follows the pointer width: ELFCLASS32 is 1, ELFCLASS64 is 2.
	NativeClass = elf.Class(1 + bits.UintSize/64)
)
